// Package config handles the two configuration inputs: connection
// strings from the environment (populated by .env in main) and the
// YAML sync file listing the tables to replicate.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StrategyIncremental = "incremental"
	StrategyBatch       = "batch"
)

// Env holds connection strings, kept out of the sync file so the file
// can be committed.
type Env struct {
	SQLConnString   string
	MongoConnString string
}

func LoadEnv() (*Env, error) {
	sqlConn := os.Getenv("SQL_CONNECTION_STRING")
	if sqlConn == "" {
		return nil, errors.New("SQL_CONNECTION_STRING environment variable not set")
	}

	mongoConn := os.Getenv("MONGO_CONNECTION_STRING")
	if mongoConn == "" {
		return nil, errors.New("MONGO_CONNECTION_STRING environment variable not set")
	}

	return &Env{
		SQLConnString:   sqlConn,
		MongoConnString: mongoConn,
	}, nil
}

// Config is the parsed sync file.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Target    TargetConfig    `yaml:"target"`
	Watermark WatermarkConfig `yaml:"watermark"`
	Overlap   string          `yaml:"overlap"`
	Tables    []TableConfig   `yaml:"tables"`
}

type SourceConfig struct {
	Type   string `yaml:"type"`
	Schema string `yaml:"schema"`
}

type TargetConfig struct {
	Database string `yaml:"database"`
	Prefix   string `yaml:"prefix"`
}

type WatermarkConfig struct {
	Path string `yaml:"path"`
}

type TableConfig struct {
	Name       string   `yaml:"name"`
	Columns    []string `yaml:"columns"`
	PrimaryKey string   `yaml:"primaryKey"`
	Strategy   string   `yaml:"strategy"`
}

func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Source.Type != "sqlserver" && c.Source.Type != "mysql" {
		return errors.New("source.type must be sqlserver or mysql")
	}
	if c.Source.Schema == "" {
		return errors.New("source.schema is required")
	}
	if c.Target.Database == "" {
		return errors.New("target.database is required")
	}
	if c.Watermark.Path == "" {
		return errors.New("watermark.path is required")
	}
	if c.Overlap != "" {
		if _, err := time.ParseDuration(c.Overlap); err != nil {
			return fmt.Errorf("overlap is not a duration: %w", err)
		}
	}
	if len(c.Tables) == 0 {
		return errors.New("at least one table is required")
	}
	for i := range c.Tables {
		t := &c.Tables[i]
		if t.Name == "" {
			return errors.New("table.name is required")
		}
		if t.Strategy == "" {
			t.Strategy = StrategyIncremental
		}
		if t.Strategy != StrategyIncremental && t.Strategy != StrategyBatch {
			return fmt.Errorf("table %s: strategy must be incremental or batch", t.Name)
		}
		if t.Strategy == StrategyIncremental && t.PrimaryKey == "" {
			return fmt.Errorf("table %s must define primaryKey", t.Name)
		}
	}
	return nil
}

// OverlapDuration returns the configured overlap window, or zero when
// the file leaves it to the default.
func (c *Config) OverlapDuration() time.Duration {
	if c.Overlap == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Overlap)
	return d
}
