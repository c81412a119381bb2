// Package config loads process configuration the way pkg/config does:
// an optional .env file merged with ENT_-prefixed environment variables,
// unmarshaled into a typed struct via spf13/viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every key spec.md §6 names for the process entrypoint.
type Config struct {
	Server struct {
		Host           string `mapstructure:"host"`
		Port           int    `mapstructure:"port"`
		MaxConnections int    `mapstructure:"max_connections"`
	} `mapstructure:"server"`

	Database struct {
		URL            string `mapstructure:"url"`
		MaxConnections int    `mapstructure:"max_connections"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"database"`

	JWT struct {
		PublicKeyPath string `mapstructure:"public_key_path"`
		Issuer        string `mapstructure:"issuer"`
	} `mapstructure:"jwt"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
}

// Timeout returns database.timeout_seconds as a time.Duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Database.TimeoutSeconds) * time.Second
}

// Default returns a Config with the reference server's fallback values,
// applied before Load overlays whatever the environment sets.
func Default() Config {
	var c Config
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8080
	c.Server.MaxConnections = 100
	c.Database.URL = "entgraph.db"
	c.Database.MaxConnections = 10
	c.Database.TimeoutSeconds = 30
	c.Logging.Level = "INFO"
	c.Logging.Format = "json"
	return c
}

// Load overlays a .env file (if present) and prefix-matching environment
// variables onto target, then unmarshals into it. prefix is matched
// case-insensitively against the ENT_-style uppercase convention; the
// remainder of each variable name becomes a dotted viper key, e.g.
// ENT_DATABASE_MAX_CONNECTIONS -> database.max_connections.
func Load(prefix string, target interface{}) error {
	v := viper.New()

	v.SetConfigFile(".env")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: read .env: %w", err)
		}
	}

	prefixUpper := strings.ToUpper(prefix)
	for _, envStr := range os.Environ() {
		pair := strings.SplitN(envStr, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key, value := pair[0], pair[1]
		if !strings.HasPrefix(key, prefixUpper) {
			continue
		}
		propKey := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(key, prefixUpper), "_"))
		section, field, hasField := strings.Cut(propKey, "_")
		if hasField {
			propKey = section + "." + field
		}
		v.Set(propKey, value)
	}

	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}
	return nil
}
