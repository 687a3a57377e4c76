// Package config loads pool deployment configuration from YAML and builds
// a ready-to-run engine from it.
//
// A configuration file declares, per pool: the discovery provider type and
// its options, the discovery interval and probe ceiling, the balance policy
// with optional weights, and the data sources. Source definitions use
// database/sql driver names; the importing program must link the drivers it
// references (e.g. import _ "github.com/go-sql-driver/mysql").
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/rudder/types"
)

// Duration wraps time.Duration with YAML unmarshalling from strings like
// "5s" or "250ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid duration %q", types.ErrInvalidConfiguration, raw)
	}
	*d = Duration(parsed)

	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// File is the root of a rudder YAML configuration.
type File struct {
	// Pools maps pool name to its configuration.
	Pools map[string]Pool `yaml:"pools"`
}

// Pool configures one pool.
type Pool struct {
	// Discovery configures the discovery provider and schedule.
	Discovery Discovery `yaml:"discovery"`

	// LoadBalance configures the read balance policy.
	LoadBalance LoadBalance `yaml:"load-balance"`

	// Sources lists the pool's data sources in configured order.
	// May be empty when the deployment supplies its own registry.
	Sources []Source `yaml:"sources"`
}

// Discovery configures the discovery provider of a pool.
type Discovery struct {
	// Type is the registered provider type name (e.g. "mysql").
	Type string `yaml:"type"`

	// Props holds engine-specific provider options, such as
	// delay-milliseconds-threshold.
	Props map[string]string `yaml:"props"`

	// Interval is the suggested period between discovery passes.
	Interval Duration `yaml:"interval"`

	// ProbeTimeout is the ceiling for one discovery pass.
	ProbeTimeout Duration `yaml:"probe-timeout"`
}

// LoadBalance configures the read balance policy of a pool.
type LoadBalance struct {
	// Type is the registered policy name (e.g. "round_robin").
	// Empty means the selector's first-eligible fallback.
	Type string `yaml:"type"`

	// Weights holds per-source weights for the "weight" policy.
	Weights map[string]int `yaml:"weights"`
}

// Source defines one data source of a pool.
type Source struct {
	// Name is the unique data source name within the pool.
	Name string `yaml:"name"`

	// Driver is the database/sql driver name.
	Driver string `yaml:"driver"`

	// DSN is the driver-specific connection string.
	DSN string `yaml:"dsn"`
}

// Load reads and parses a YAML configuration file.
//
// Parameters:
//   - path: The file path
//
// Returns:
//   - *File: The parsed and validated configuration
//   - error: Read, parse, or validation failure
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse parses and validates YAML configuration bytes.
//
// Parameters:
//   - data: Raw YAML content
//
// Returns:
//   - *File: The parsed and validated configuration
//   - error: Parse or validation failure
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidConfiguration, err)
	}

	if err := file.Validate(); err != nil {
		return nil, err
	}

	return &file, nil
}

// Validate checks structural constraints that do not require the provider
// and policy registries.
//
// Returns:
//   - error: An error wrapping types.ErrInvalidConfiguration, or nil
func (f *File) Validate() error {
	if len(f.Pools) == 0 {
		return fmt.Errorf("%w: no pools defined", types.ErrInvalidConfiguration)
	}

	for name, pool := range f.Pools {
		if pool.Discovery.Type == "" {
			return fmt.Errorf("%w: pool %s has no discovery type", types.ErrInvalidConfiguration, name)
		}
		if pool.Discovery.ProbeTimeout < 0 || pool.Discovery.Interval < 0 {
			return fmt.Errorf("%w: pool %s has a negative duration", types.ErrInvalidConfiguration, name)
		}

		seen := make(map[string]bool, len(pool.Sources))
		for _, source := range pool.Sources {
			if source.Name == "" {
				return fmt.Errorf("%w: pool %s has an unnamed source", types.ErrInvalidConfiguration, name)
			}
			if seen[source.Name] {
				return fmt.Errorf("%w: pool %s defines source %s twice", types.ErrInvalidConfiguration, name, source.Name)
			}
			seen[source.Name] = true
			if source.Driver == "" || source.DSN == "" {
				return fmt.Errorf("%w: source %s in pool %s needs driver and dsn", types.ErrInvalidConfiguration, source.Name, name)
			}
		}
	}

	return nil
}
