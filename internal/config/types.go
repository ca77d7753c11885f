package config

import (
	"net"
	"strconv"
	"time"
)

// Config represents the main configuration structure
type Config struct {
	Host        string           `mapstructure:"host"`
	Port        int              `mapstructure:"port"`
	LogLevel    string           `mapstructure:"logLevel"`
	MaxBodySize int64            `mapstructure:"maxBodySize"` // bytes, 0 means no limit
	MetricsAddr string           `mapstructure:"metricsAddr"` // empty disables the metrics server
	CACertFile  string           `mapstructure:"caCertFile"`
	CAKeyFile   string           `mapstructure:"caKeyFile"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Strategies  []StrategyConfig `mapstructure:"strategies"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Size    int  `mapstructure:"size"` // number of entries
	TTL     int  `mapstructure:"ttl"`  // seconds, 0 means entries never expire
}

// StrategyConfig binds a registered strategy to the hosts it handles
type StrategyConfig struct {
	Name  string   `mapstructure:"name"`
	Hosts []string `mapstructure:"hosts"`
}

// Default values
const (
	DefaultHost         = "localhost"
	DefaultPort         = 9999
	DefaultLogLevel     = "info"
	DefaultMaxBodySize  = int64(0)
	DefaultCacheEnabled = true
	DefaultCacheSize    = 10000
	DefaultCacheTTL     = 0

	EnvPrefix = "CATCHY"
)

// Addr returns the proxy listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// HasCustomCA returns true if a MITM signing certificate is configured
func (c *Config) HasCustomCA() bool {
	return c.CACertFile != "" && c.CAKeyFile != ""
}

// GetTTLDuration returns cache TTL as time.Duration
func (c *CacheConfig) GetTTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}
