// Package config holds the process configuration for csvdb.
package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/cabewaldrop/csvdb/internal/catalog"
	"github.com/cabewaldrop/csvdb/internal/logging"
)

// Version is reported by -version.
const Version = "0.3.0"

// Config is the full set of startup options.
type Config struct {
	// SchemaPath is the JSON schema definition to instantiate.
	SchemaPath string

	// DataDir is the directory under which <schema>/<table>/ is created.
	DataDir string

	// OnExisting decides what happens when a table directory already exists.
	OnExisting catalog.InitPolicy

	// HTTPAddr enables the HTTP API when non-empty, e.g. ":8080".
	HTTPAddr string

	Log logging.Config

	ShowVersion bool
}

// Default returns the configuration used when no flags are given.
func Default() Config {
	return Config{
		SchemaPath: "schema.json",
		DataDir:    ".",
		OnExisting: catalog.PolicyKeep,
		Log: logging.Config{
			Level:  logging.LevelInfo,
			Format: "text",
		},
	}
}

// Parse builds a Config from command line arguments (without the program
// name). Usage and flag errors are written to output.
func Parse(args []string, output io.Writer) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("csvdb", flag.ContinueOnError)
	fs.SetOutput(output)

	var onExisting, level string
	fs.StringVar(&cfg.SchemaPath, "schema", cfg.SchemaPath, "Path to the JSON schema definition")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "Directory holding the schema's table directories")
	fs.StringVar(&onExisting, "on-existing", string(cfg.OnExisting), "What to do with existing tables: keep, reset or fail")
	fs.StringVar(&cfg.HTTPAddr, "http", "", "Serve the HTTP API on this address (disabled when empty)")
	fs.StringVar(&level, "log-level", string(cfg.Log.Level), "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "Log format: text or json")
	fs.StringVar(&cfg.Log.OutputPath, "log-file", "", "Write logs to this file instead of stderr")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	policy, err := catalog.ParseInitPolicy(onExisting)
	if err != nil {
		return Config{}, err
	}
	cfg.OnExisting = policy
	cfg.Log.Level = logging.Level(level)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks option values that flag parsing cannot.
func (c Config) Validate() error {
	if c.SchemaPath == "" {
		return fmt.Errorf("-schema must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("-data must not be empty")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
