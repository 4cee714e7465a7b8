// Package config loads analyzer settings from an HCL file.
//
//	database        = "app.db"
//	format          = "json"
//	query           = "$.tables[*].name"
//	log_level       = "debug"
//	workers         = 4
//	exclude_indices = false
//	tables          = ["users", "orders"]
package config

import (
	"fmt"
	"runtime"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds the settings shared by every command.
type Config struct {
	// Database is the file to analyse when none is given on the command line.
	Database string `hcl:"database,optional"`
	// Format is "text" or "json".
	Format string `hcl:"format,optional"`
	// Query is a JSONPath expression applied to the JSON report.
	Query    string `hcl:"query,optional"`
	LogLevel string `hcl:"log_level,optional"`
	LogJSON  bool   `hcl:"log_json,optional"`
	// Workers bounds concurrent extraction; 0 means GOMAXPROCS.
	Workers        int  `hcl:"workers,optional"`
	ExcludeIndices bool `hcl:"exclude_indices,optional"`
	// Tables restricts the per-table report sections. Empty means all.
	Tables []string `hcl:"tables,optional"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Format:   FormatText,
		LogLevel: "info",
		Workers:  runtime.GOMAXPROCS(0),
	}
}

// Load reads the HCL file at path. Settings missing from the file keep
// their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg.finish()
}

// Parse decodes HCL source. filename is used in diagnostics and must end
// in ".hcl".
func Parse(filename string, src []byte) (Config, error) {
	cfg := Default()
	if err := hclsimple.Decode(filename, src, nil, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", filename, err)
	}
	return cfg.finish()
}

func (c Config) finish() (Config, error) {
	d := Default()
	if c.Format == "" {
		c.Format = d.Format
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	return c, c.Validate()
}

// Validate checks the values that have a fixed set of choices.
func (c Config) Validate() error {
	switch c.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown format %q (want %q or %q)", c.Format, FormatText, FormatJSON)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// Wants reports whether the per-table report should include table.
func (c Config) Wants(table string) bool {
	if len(c.Tables) == 0 {
		return true
	}
	for _, t := range c.Tables {
		if t == table {
			return true
		}
	}
	return false
}
