package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type DBConfig struct {
	Host            string  `mapstructure:"host"`
	Port            int     `mapstructure:"port"`
	Name            string  `mapstructure:"name"`
	User            string  `mapstructure:"user"`
	Password        string  `mapstructure:"password"`
	Schema          string  `mapstructure:"schema"`
	MaxConns        int32   `mapstructure:"max_conns"`
	NodesTable      string  `mapstructure:"nodes_table"`
	WaysTable       string  `mapstructure:"ways_table"`
	EdgesTable      string  `mapstructure:"edges_table"`
	TagsFormat      string  `mapstructure:"tags_format"` // "array" (text[] key/value pairs) or "jsonb"
	CoordinateScale float64 `mapstructure:"coordinate_scale"`
}

// ConnectionString returns a PostgreSQL connection string
func (c DBConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.Host, c.Port, c.Name, c.User,
	)
	if c.Password != "" {
		connStr += fmt.Sprintf(" password=%s", c.Password)
	}
	return connStr
}

type SourceConfig struct {
	Kind    string `mapstructure:"kind"` // "postgres" or "pbf"
	PBFFile string `mapstructure:"pbf_file"`
}

type RoutingConfig struct {
	Metric             string        `mapstructure:"metric"` // "haversine" or "planar"
	SearchRadius       float64       `mapstructure:"search_radius"`
	MaxSettled         int           `mapstructure:"max_settled"`
	QueryTimeout       time.Duration `mapstructure:"query_timeout"`
	StaleLengthAbs     float64       `mapstructure:"stale_length_abs"`
	StaleLengthRel     float64       `mapstructure:"stale_length_rel"`
	RouteCacheSize     int           `mapstructure:"route_cache_size"`
	ProfileFile        string        `mapstructure:"profile_file"`
	BuildWorkers       int           `mapstructure:"build_workers"`
	DisableHeuristic   bool          `mapstructure:"disable_heuristic"`
	RejectedLogSamples int           `mapstructure:"rejected_log_samples"`
}

type RefreshConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	MaxBackoff   time.Duration `mapstructure:"max_backoff"`
}

type APIConfig struct {
	Port       int           `mapstructure:"port"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  bool          `mapstructure:"rate_limit"`
	Rate       float64       `mapstructure:"rate"`
	Burst      int           `mapstructure:"burst"`
	AdminToken string        `mapstructure:"admin_token"`
}

type LogConfig struct {
	Debug bool   `mapstructure:"debug"`
	File  string `mapstructure:"file"`
}

type Config struct {
	DB      DBConfig      `mapstructure:"db"`
	Source  SourceConfig  `mapstructure:"source"`
	Routing RoutingConfig `mapstructure:"routing"`
	Refresh RefreshConfig `mapstructure:"refresh"`
	API     APIConfig     `mapstructure:"api"`
	Log     LogConfig     `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "osm")
	v.SetDefault("db.user", "osm")
	v.SetDefault("db.password", "")
	v.SetDefault("db.schema", "public")
	v.SetDefault("db.max_conns", 15)
	v.SetDefault("db.nodes_table", "planet_osm_nodes")
	v.SetDefault("db.ways_table", "planet_osm_ways")
	v.SetDefault("db.edges_table", "ways_length")
	v.SetDefault("db.tags_format", "array")
	v.SetDefault("db.coordinate_scale", 1e7)

	v.SetDefault("source.kind", "postgres")
	v.SetDefault("source.pbf_file", "")

	v.SetDefault("routing.metric", "haversine")
	v.SetDefault("routing.search_radius", 500.0) // meter
	v.SetDefault("routing.max_settled", 5_000_000)
	v.SetDefault("routing.query_timeout", "5s")
	v.SetDefault("routing.stale_length_abs", 1.0)
	v.SetDefault("routing.stale_length_rel", 0.01)
	v.SetDefault("routing.route_cache_size", 4096)
	v.SetDefault("routing.profile_file", "")
	v.SetDefault("routing.build_workers", 0)
	v.SetDefault("routing.disable_heuristic", false)
	v.SetDefault("routing.rejected_log_samples", 50)

	v.SetDefault("refresh.interval", "0s")
	v.SetDefault("refresh.retry_backoff", "5s")
	v.SetDefault("refresh.max_backoff", "2m")

	v.SetDefault("api.port", 6060)
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.rate_limit", false)
	v.SetDefault("api.rate", 50.0)
	v.SetDefault("api.burst", 100)
	v.SetDefault("api.admin_token", "")

	v.SetDefault("log.debug", false)
	v.SetDefault("log.file", "")
}

// Load reads config.yaml from path (or ./data and the working directory when path is empty),
// applying defaults and environment overrides such as DB_HOST or ROUTING_SEARCH_RADIUS.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./data/")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// legacy variable name for the database
	_ = v.BindEnv("db.name", "DB_NAME", "DB_DATABASE")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("fatal error config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "postgres":
	case "pbf":
		if c.Source.PBFFile == "" {
			return fmt.Errorf("source.pbf_file is required when source.kind is pbf")
		}
	default:
		return fmt.Errorf("unknown source.kind %q", c.Source.Kind)
	}
	switch c.Routing.Metric {
	case "haversine", "planar":
	default:
		return fmt.Errorf("unknown routing.metric %q", c.Routing.Metric)
	}
	switch c.DB.TagsFormat {
	case "array", "jsonb":
	default:
		return fmt.Errorf("unknown db.tags_format %q", c.DB.TagsFormat)
	}
	if c.Routing.SearchRadius <= 0 {
		return fmt.Errorf("routing.search_radius must be positive")
	}
	if c.Routing.MaxSettled < 1 {
		return fmt.Errorf("routing.max_settled must be at least 1")
	}
	if c.DB.CoordinateScale <= 0 {
		return fmt.Errorf("db.coordinate_scale must be positive")
	}
	return nil
}
