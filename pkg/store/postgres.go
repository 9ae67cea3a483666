package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lintang-b-s/navigatorx-pg/pkg/config"
	"github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PostgresStore reads the road network from the osm2pgsql middle tables plus the way length table.
type PostgresStore struct {
	cfg  config.DBConfig
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewPostgresStore(ctx context.Context, cfg config.DBConfig, log *zap.Logger) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return &PostgresStore{
		cfg:  cfg,
		pool: pool,
		log:  log,
	}, nil
}

func (s *PostgresStore) Name() string {
	return "postgres"
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) table(name string) string {
	return pgx.Identifier{s.cfg.Schema, name}.Sanitize()
}

// Load reads ways, the nodes they reference and the stored way lengths concurrently.
func (s *PostgresStore) Load(ctx context.Context) (*datastructure.Network, error) {
	network := &datastructure.Network{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		nodes, err := s.loadNodes(gctx)
		network.Nodes = nodes
		return err
	})
	g.Go(func() error {
		ways, err := s.loadWays(gctx)
		network.Ways = ways
		return err
	})
	g.Go(func() error {
		edges, err := s.LoadEdges(gctx)
		network.Edges = edges
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return network, nil
}

func (s *PostgresStore) loadNodes(ctx context.Context) ([]datastructure.Node, error) {
	sql := fmt.Sprintf(`
		SELECT n.id, n.lat::double precision / $1, n.lon::double precision / $1
		FROM %s n
		WHERE n.id IN (SELECT DISTINCT unnest(w.nodes) FROM %s w)`,
		s.table(s.cfg.NodesTable), s.table(s.cfg.WaysTable))

	rows, err := s.pool.Query(ctx, sql, s.cfg.CoordinateScale)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]datastructure.Node, 0, 1<<16)
	for rows.Next() {
		var (
			id       int64
			lat, lon float64
		)
		if err := rows.Scan(&id, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, datastructure.NewNode(id, lat, lon))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}
	s.log.Debug("nodes loaded", zap.Int("count", len(nodes)))
	return nodes, nil
}

func (s *PostgresStore) loadWays(ctx context.Context) ([]datastructure.Way, error) {
	var tagsExpr string
	switch s.cfg.TagsFormat {
	case "jsonb":
		tagsExpr = "COALESCE(tags, '{}'::jsonb)::text"
	default:
		tagsExpr = "COALESCE(tags, '{}'::text[])"
	}
	sql := fmt.Sprintf("SELECT id, nodes, %s FROM %s", tagsExpr, s.table(s.cfg.WaysTable))

	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to query ways: %w", err)
	}
	defer rows.Close()

	ways := make([]datastructure.Way, 0, 1<<14)
	for rows.Next() {
		var (
			id      int64
			nodeIDs []int64
			tags    map[string]string
		)
		if s.cfg.TagsFormat == "jsonb" {
			var raw string
			if err := rows.Scan(&id, &nodeIDs, &raw); err != nil {
				return nil, fmt.Errorf("failed to scan way: %w", err)
			}
			tags, err = TagsFromJSON([]byte(raw))
			if err != nil {
				return nil, fmt.Errorf("way %d: %w", id, err)
			}
		} else {
			var pairs []string
			if err := rows.Scan(&id, &nodeIDs, &pairs); err != nil {
				return nil, fmt.Errorf("failed to scan way: %w", err)
			}
			tags = TagsFromPairs(pairs)
		}
		ways = append(ways, datastructure.NewWay(id, nodeIDs, tags))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ways: %w", err)
	}
	s.log.Debug("ways loaded", zap.Int("count", len(ways)))
	return ways, nil
}

// LoadEdges reads the way length table. A missing table yields no rows.
func (s *PostgresStore) LoadEdges(ctx context.Context) ([]datastructure.EdgeRecord, error) {
	var exists bool
	// to_regclass parses its argument like SQL text, so it gets the same quoted name as the queries
	err := s.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL",
		s.table(s.cfg.EdgesTable)).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", s.cfg.EdgesTable, err)
	}
	if !exists {
		s.log.Warn("way length table not found, all lengths will be computed",
			zap.String("table", s.cfg.EdgesTable))
		return nil, nil
	}

	sql := fmt.Sprintf("SELECT ways_id, length, first_node, last_node FROM %s", s.table(s.cfg.EdgesTable))
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to query way lengths: %w", err)
	}
	defer rows.Close()

	edges := make([]datastructure.EdgeRecord, 0, 1<<14)
	for rows.Next() {
		var e datastructure.EdgeRecord
		if err := rows.Scan(&e.WayID, &e.Length, &e.FirstNode, &e.LastNode); err != nil {
			return nil, fmt.Errorf("failed to scan way length: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// EnsureEdgesTable creates the way length table if it does not exist.
func (s *PostgresStore) EnsureEdgesTable(ctx context.Context) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			ways_id BIGINT PRIMARY KEY,
			length DOUBLE PRECISION NOT NULL CHECK (length >= 0),
			first_node BIGINT NOT NULL,
			last_node BIGINT NOT NULL
		)`, s.table(s.cfg.EdgesTable))
	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.cfg.EdgesTable, err)
	}
	return nil
}

// WriteEdges upserts way length rows: they are copied into a temporary table and merged in one transaction.
func (s *PostgresStore) WriteEdges(ctx context.Context, records []datastructure.EdgeRecord) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		CREATE TEMP TABLE ways_length_staging (
			ways_id BIGINT,
			length DOUBLE PRECISION,
			first_node BIGINT,
			last_node BIGINT
		) ON COMMIT DROP`); err != nil {
		return 0, fmt.Errorf("failed to create staging table: %w", err)
	}

	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		rows = append(rows, []interface{}{r.WayID, r.Length, r.FirstNode, r.LastNode})
	}
	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"ways_length_staging"},
		[]string{"ways_id", "length", "first_node", "last_node"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy way lengths: %w", err)
	}

	upsert := fmt.Sprintf(`
		INSERT INTO %s (ways_id, length, first_node, last_node)
		SELECT ways_id, length, first_node, last_node FROM ways_length_staging
		ON CONFLICT (ways_id) DO UPDATE
		SET length = EXCLUDED.length, first_node = EXCLUDED.first_node, last_node = EXCLUDED.last_node`,
		s.table(s.cfg.EdgesTable))
	if _, err := tx.Exec(ctx, upsert); err != nil {
		return 0, fmt.Errorf("failed to upsert way lengths: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit way lengths: %w", err)
	}
	return copied, nil
}

// TagsFromPairs turns the flat key/value text[] of osm2pgsql into a map. A trailing key without value is dropped.
func TagsFromPairs(pairs []string) map[string]string {
	tags := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		tags[pairs[i]] = pairs[i+1]
	}
	return tags
}

// TagsFromJSON decodes a jsonb tag object. Non-string values keep their JSON text.
func TagsFromJSON(raw []byte) (map[string]string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	tags := make(map[string]string, len(obj))
	for k, v := range obj {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			tags[k] = s
			continue
		}
		tags[k] = string(v)
	}
	return tags, nil
}
