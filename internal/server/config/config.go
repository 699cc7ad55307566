// Package config provides functionality for managing configuration options
// for the reference backend using command-line flags, environment
// variables, and an optional TOML file.
package config

import (
	"flag"
	"log"
	"os"

	"github.com/BurntSushi/toml"
)

// Options holds the configuration values for the backend.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `toml:"addr"`

	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string `toml:"database_dsn"`

	// LogLevel sets the zap logging level.
	LogLevel string `toml:"log_level"`

	// Config is the path to the TOML config file.
	Config string `toml:"-"`
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Addr, "a", "localhost:8080", "run on ip:port server")
	flag.StringVar(&options.DatabaseDSN, "d", "", "db address")
	flag.StringVar(&options.LogLevel, "l", "info", "log level")
	flag.StringVar(&options.Config, "config", "config.toml", "path to config file")
	flag.StringVar(&options.Config, "c", "config.toml", "path to config file (shorthand)")
}

// Parse parses the command-line flags, the config file, and environment
// variables to set configuration values. It returns a pointer to the
// Options struct containing the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			if _, err := toml.DecodeFile(options.Config, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Addr = serverAddress
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}

	return options
}
