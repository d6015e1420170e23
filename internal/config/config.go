package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-json"
)

// envOverrides holds the settings that may be overridden from the environment.
// Zero values leave the file configuration untouched.
type envOverrides struct {
	Host          string `env:"DAOQUERY_HOST"`
	RPCPort       int    `env:"DAOQUERY_RPC_PORT"`
	WSPort        int    `env:"DAOQUERY_WS_PORT"`
	LogLevel      string `env:"DAOQUERY_LOG_LEVEL"`
	DraftsBackend string `env:"DAOQUERY_DRAFTS_BACKEND"`
	RedisAddr     string `env:"DAOQUERY_REDIS_ADDR"`
	RedisPassword string `env:"DAOQUERY_REDIS_PASSWORD"`
	SQLitePath    string `env:"DAOQUERY_SQLITE_PATH"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration bytes, applies defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadWithEnv reads the configuration file and applies DAOQUERY_* environment overrides
func LoadWithEnv(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnv overlays non-empty environment values on top of the file config
func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if o.Host != "" {
		cfg.Host = o.Host
	}
	if o.RPCPort != 0 {
		cfg.RPCPort = o.RPCPort
	}
	if o.WSPort != 0 {
		cfg.WSPort = o.WSPort
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.DraftsBackend != "" {
		cfg.Drafts.Backend = o.DraftsBackend
	}
	if o.RedisAddr != "" {
		cfg.Drafts.RedisAddr = o.RedisAddr
	}
	if o.RedisPassword != "" {
		cfg.Drafts.RedisPassword = o.RedisPassword
	}
	if o.SQLitePath != "" {
		cfg.Drafts.SQLitePath = o.SQLitePath
	}
	return nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.RPCPort == 0 {
		cfg.RPCPort = DefaultRPCPort
	}
	if cfg.WSPort == 0 {
		cfg.WSPort = DefaultWSPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.StatsLogInterval == 0 {
		cfg.StatsLogInterval = DefaultStatsLogInterval
	}
	if cfg.ListPageLimit == 0 {
		cfg.ListPageLimit = DefaultListPageLimit
	}
	if cfg.MaxSubscriptions == 0 {
		cfg.MaxSubscriptions = DefaultMaxSubscriptions
	}

	if cfg.Cache.Size == 0 {
		cfg.Cache.Size = DefaultCacheSize
	}
	// Cache.TTL default is 0, which is valid
	if cfg.Cache.FetchTimeout == 0 {
		cfg.Cache.FetchTimeout = DefaultFetchTimeout
	}

	if cfg.Drafts.Backend == "" {
		cfg.Drafts.Backend = DefaultDraftsBackend
	}
	if cfg.Drafts.Debounce == 0 {
		cfg.Drafts.Debounce = DefaultDraftsDebounce
	}
	if cfg.Drafts.KeyPrefix == "" {
		cfg.Drafts.KeyPrefix = DefaultDraftsKeyPrefix
	}
	if cfg.Drafts.Backend == BackendSQLite && cfg.Drafts.SQLitePath == "" {
		cfg.Drafts.SQLitePath = DefaultSQLitePath
	}

	for i := range cfg.Chains {
		for j := range cfg.Chains[i].Endpoints {
			if cfg.Chains[i].Endpoints[j].Weight == 0 {
				cfg.Chains[i].Endpoints[j].Weight = DefaultEndpointWeight
			}
			if cfg.Chains[i].Endpoints[j].Role == "" {
				cfg.Chains[i].Endpoints[j].Role = DefaultEndpointRole
			}
		}
	}
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if len(cfg.Chains) == 0 {
		return errors.New("at least one chain is required")
	}

	chainIDs := make(map[string]bool)
	for i, chain := range cfg.Chains {
		if chain.ChainID == "" {
			return fmt.Errorf("chain[%d]: chainId is required", i)
		}

		if chainIDs[chain.ChainID] {
			return fmt.Errorf("chain[%d]: duplicate chainId '%s'", i, chain.ChainID)
		}
		chainIDs[chain.ChainID] = true

		if len(chain.Endpoints) == 0 {
			return fmt.Errorf("chain '%s': at least one endpoint is required", chain.ChainID)
		}

		endpointNames := make(map[string]bool)
		for j, endpoint := range chain.Endpoints {
			if endpoint.Name == "" {
				return fmt.Errorf("chain '%s', endpoint[%d]: name is required", chain.ChainID, j)
			}

			if endpointNames[endpoint.Name] {
				return fmt.Errorf("chain '%s': duplicate endpoint name '%s'", chain.ChainID, endpoint.Name)
			}
			endpointNames[endpoint.Name] = true

			if endpoint.LCDURL == "" {
				return fmt.Errorf("chain '%s', endpoint '%s': lcdUrl is required", chain.ChainID, endpoint.Name)
			}

			if endpoint.Weight <= 0 {
				return fmt.Errorf("chain '%s', endpoint '%s': weight must be positive",
					chain.ChainID, endpoint.Name)
			}

			if endpoint.Role != RoleMain && endpoint.Role != RoleFallback {
				return fmt.Errorf("chain '%s', endpoint '%s': role must be 'main' or 'fallback'",
					chain.ChainID, endpoint.Name)
			}
		}
	}

	if cfg.RPCPort < 1 || cfg.RPCPort > 65535 {
		return fmt.Errorf("rpcPort must be between 1 and 65535")
	}

	if cfg.WSPort < 1 || cfg.WSPort > 65535 {
		return fmt.Errorf("wsPort must be between 1 and 65535")
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

	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("requestTimeout must be non-negative")
	}

	if cfg.StatsLogInterval < 0 {
		return fmt.Errorf("statsLogInterval must be non-negative")
	}

	if cfg.ListPageLimit < 0 {
		return fmt.Errorf("listPageLimit must be positive")
	}

	if cfg.MaxSubscriptions < 0 {
		return fmt.Errorf("maxSubscriptionsPerClient must be non-negative")
	}

	if cfg.Cache.Size < 0 {
		return fmt.Errorf("cache.size must be positive")
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be non-negative")
	}
	if cfg.Cache.FetchTimeout < 0 {
		return fmt.Errorf("cache.fetchTimeout must be non-negative")
	}

	switch cfg.Drafts.Backend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if cfg.Drafts.RedisAddr == "" {
			return fmt.Errorf("drafts.redisAddr is required for the redis backend")
		}
	default:
		return fmt.Errorf("drafts.backend must be one of: memory, redis, sqlite")
	}

	if cfg.Drafts.Debounce < 0 {
		return fmt.Errorf("drafts.debounce must be non-negative")
	}

	return nil
}
