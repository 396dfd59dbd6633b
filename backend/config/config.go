// Package config provides global configuration.
package config

import (
	"flag"
)

// Config for the weft tools. When adding or removing fields,
// adjust Default() and BindFlags() accordingly.
type Config struct {
	LogLevel string
}

// Default creates the default config.
func Default() Config {
	return Config{
		LogLevel: "info",
	}
}

// BindFlags binds the config fields to the given FlagSet.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log verbosity debug | info | warning | error")
}
