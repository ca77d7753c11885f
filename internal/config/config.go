package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"catchy/internal/strategy"
)

// Flag names bound onto config keys
const (
	FlagConfig      = "config"
	FlagHost        = "host"
	FlagPort        = "port"
	FlagLogLevel    = "log-level"
	FlagMetricsAddr = "metrics-addr"
)

var flagKeys = map[string]string{
	FlagHost:        "host",
	FlagPort:        "port",
	FlagLogLevel:    "logLevel",
	FlagMetricsAddr: "metricsAddr",
}

// RegisterFlags adds the command-line flags understood by Load to fs,
// including one repeatable host flag per registered strategy.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP(FlagConfig, "c", "", "path to config file (JSON or YAML)")
	fs.String(FlagHost, DefaultHost, "proxy listen host")
	fs.IntP(FlagPort, "p", DefaultPort, "proxy listen port")
	fs.String(FlagLogLevel, DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.String(FlagMetricsAddr, "", "address for the Prometheus metrics endpoint, disabled if empty")

	for _, reg := range strategy.Registrations() {
		fs.StringArray(reg.Name, nil, fmt.Sprintf("monitor HOST and %s (repeatable)", reg.Description))
	}
}

// Load builds the configuration from defaults, an optional config file,
// CATCHY_* environment variables and command-line flags, in increasing
// order of precedence. Strategy host flags are appended after the
// strategies from the config file.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if fs != nil {
		for flagName, key := range flagKeys {
			if f := fs.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flagName, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if fs != nil {
		if err := appendStrategyFlags(cfg, fs); err != nil {
			return nil, err
		}
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("logLevel", DefaultLogLevel)
	v.SetDefault("maxBodySize", DefaultMaxBodySize)
	v.SetDefault("metricsAddr", "")
	v.SetDefault("caCertFile", "")
	v.SetDefault("caKeyFile", "")
	v.SetDefault("cache.enabled", DefaultCacheEnabled)
	v.SetDefault("cache.size", DefaultCacheSize)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
}

// appendStrategyFlags merges --<strategy> HOST flags into cfg in registry order
func appendStrategyFlags(cfg *Config, fs *pflag.FlagSet) error {
	for _, name := range strategy.Names() {
		if fs.Lookup(name) == nil {
			continue
		}
		hosts, err := fs.GetStringArray(name)
		if err != nil {
			return fmt.Errorf("failed to read --%s: %w", name, err)
		}
		if len(hosts) == 0 {
			continue
		}

		merged := false
		for i := range cfg.Strategies {
			if cfg.Strategies[i].Name == name {
				cfg.Strategies[i].Hosts = append(cfg.Strategies[i].Hosts, hosts...)
				merged = true
				break
			}
		}
		if !merged {
			cfg.Strategies = append(cfg.Strategies, StrategyConfig{Name: name, Hosts: hosts})
		}
	}
	return nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.Cache.Size == 0 {
		cfg.Cache.Size = DefaultCacheSize
	}
	for i := range cfg.Strategies {
		cfg.Strategies[i].Name = strings.ToLower(strings.TrimSpace(cfg.Strategies[i].Name))
	}
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if len(cfg.Strategies) == 0 {
		return errors.New("at least one strategy is required")
	}

	for i, sc := range cfg.Strategies {
		if sc.Name == "" {
			return fmt.Errorf("strategy[%d]: name is required", i)
		}
		if _, ok := strategy.Lookup(sc.Name); !ok {
			return fmt.Errorf("strategy[%d]: unknown strategy '%s' (known: %s)",
				i, sc.Name, strings.Join(strategy.Names(), ", "))
		}
		if len(sc.Hosts) == 0 {
			return fmt.Errorf("strategy '%s': at least one host is required", sc.Name)
		}
		for j, host := range sc.Hosts {
			if strings.TrimSpace(host) == "" {
				return fmt.Errorf("strategy '%s', host[%d]: must not be empty", sc.Name, j)
			}
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	if cfg.MaxBodySize < 0 {
		return fmt.Errorf("maxBodySize must be non-negative")
	}

	if cfg.Cache.Size < 0 {
		return fmt.Errorf("cache.size must be non-negative")
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be non-negative")
	}

	if (cfg.CACertFile == "") != (cfg.CAKeyFile == "") {
		return fmt.Errorf("caCertFile and caKeyFile must be set together")
	}

	return nil
}
