package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile decides which ways are routable and how oneway tags are read.
type Profile struct {
	Name string `yaml:"name"`
	// RequireAny lists tag keys of which at least one must be present.
	RequireAny []string `yaml:"require_any,omitempty"`
	// Include restricts ways to these key/value pairs. An empty value list matches any value.
	Include map[string][]string `yaml:"include,omitempty"`
	// Exclude drops ways carrying any of these key/value pairs. Applied after Include.
	Exclude map[string][]string `yaml:"exclude,omitempty"`
	Oneway  *OnewayConfig       `yaml:"oneway,omitempty"`
}

type OnewayConfig struct {
	Respect bool `yaml:"respect"`
	// Keys are checked in order and the first one present decides, e.g. oneway:bicycle before oneway.
	Keys []string `yaml:"keys,omitempty"`
	// ImpliedBy marks ways as forward-only when no key is present, e.g. junction=roundabout.
	ImpliedBy map[string][]string `yaml:"implied_by,omitempty"`
}

// Load reads a profile from a YAML file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile YAML: %w", err)
	}
	if p.Name == "" {
		p.Name = "custom"
	}
	return &p, nil
}

// Default accepts every way tagged highway and ignores oneway tags.
func Default() *Profile {
	return &Profile{Name: "default", RequireAny: []string{"highway"}}
}

func matches(rules map[string][]string, tags map[string]string) bool {
	for key, values := range rules {
		tagValue, ok := tags[key]
		if !ok {
			continue
		}
		if len(values) == 0 {
			return true
		}
		for _, v := range values {
			if v == tagValue || v == "*" {
				return true
			}
		}
	}
	return false
}

// Accept returns true if the way should be part of the graph.
func (p *Profile) Accept(tags map[string]string) bool {
	if len(p.RequireAny) > 0 {
		found := false
		for _, key := range p.RequireAny {
			if _, ok := tags[key]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(p.Include) > 0 && !matches(p.Include, tags) {
		return false
	}

	if len(p.Exclude) > 0 && matches(p.Exclude, tags) {
		return false
	}

	return true
}

// Direction returns whether the way may be traversed along and against its node order.
func (p *Profile) Direction(tags map[string]string) (forward, backward bool) {
	if p.Oneway == nil || !p.Oneway.Respect {
		return true, true
	}

	keys := p.Oneway.Keys
	if len(keys) == 0 {
		keys = []string{"oneway"}
	}
	for _, key := range keys {
		value, ok := tags[key]
		if !ok {
			continue
		}
		switch value {
		case "yes", "true", "1":
			return true, false
		case "-1", "reverse":
			return false, true
		default:
			return true, true
		}
	}

	if matches(p.Oneway.ImpliedBy, tags) {
		return true, false
	}
	return true, true
}
