// Package config wraps github.com/spf13/viper as a thin typed accessor
// layer over a Viper instance, with named keys instead of bare strings
// and defaults set once up front.
package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Key names every setting this module reads through Config, as named
// constants instead of inline string literals at call sites.
const (
	KeyBoardSize           = "board-size"
	KeyP4                  = "p4"
	KeyStoreKind           = "store-kind" // "memory" or "sqlite"
	KeyDBPath              = "db-path"
	KeyBatchSize           = "batch-size"
	KeyMaxDepth            = "max-depth"
	KeyPageCacheFraction   = "page-cache-fraction"
	KeyLogLevel            = "log-level"
)

// Config is a typed accessor over a Viper instance, with TB2048_
// environment variable overrides bound for every key.
type Config struct {
	v *viper.Viper
}

// New returns a Config with the package defaults set, reading no file.
func New() *Config {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TB2048")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &Config{v: v}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyBoardSize, 4)
	v.SetDefault(KeyP4, 0.1)
	v.SetDefault(KeyStoreKind, "memory")
	v.SetDefault(KeyDBPath, "tb2048.sqlite")
	v.SetDefault(KeyBatchSize, 50000)
	v.SetDefault(KeyMaxDepth, 0)
	v.SetDefault(KeyPageCacheFraction, 0.05)
	v.SetDefault(KeyLogLevel, "info")
}

// ReadConfigFile loads settings from a YAML/TOML/JSON file at path,
// overriding defaults but not environment overrides already applied.
func (c *Config) ReadConfigFile(path string) error {
	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("loaded config file")
	return nil
}

func (c *Config) GetInt(key string) int          { return c.v.GetInt(key) }
func (c *Config) GetFloat64(key string) float64  { return c.v.GetFloat64(key) }
func (c *Config) GetString(key string) string    { return c.v.GetString(key) }
func (c *Config) Set(key string, value any)      { c.v.Set(key, value) }
func (c *Config) AllSettings() map[string]any     { return c.v.AllSettings() }

// BoardSize, P4, StoreKind, DBPath, BatchSize, MaxDepth, and
// PageCacheFraction are named shortcuts over the generic accessors
// above, for the handful of settings every component in this module
// reads.
func (c *Config) BoardSize() int             { return c.GetInt(KeyBoardSize) }
func (c *Config) P4() float32                { return float32(c.GetFloat64(KeyP4)) }
func (c *Config) StoreKind() string          { return c.GetString(KeyStoreKind) }
func (c *Config) DBPath() string             { return c.GetString(KeyDBPath) }
func (c *Config) BatchSize() int             { return c.GetInt(KeyBatchSize) }
func (c *Config) MaxDepth() int              { return c.GetInt(KeyMaxDepth) }
func (c *Config) PageCacheFraction() float64 { return c.GetFloat64(KeyPageCacheFraction) }
