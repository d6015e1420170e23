package config

import "time"

// Role defines the endpoint role type
type Role string

const (
	RoleMain     Role = "main"
	RoleFallback Role = "fallback"
)

// Draft storage backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config represents the main configuration structure
type Config struct {
	Host             string        `json:"host"`
	RPCPort          int           `json:"rpcPort"`
	WSPort           int           `json:"wsPort"`
	LogLevel         string        `json:"logLevel"`
	MaxBodySize      int64         `json:"maxBodySize"`
	RequestTimeout   int           `json:"requestTimeout"`   // ms - per smart query HTTP timeout
	StatsLogInterval int           `json:"statsLogInterval"` // ms - interval for logging cache and endpoint statistics
	ListPageLimit    int           `json:"listPageLimit"`    // page size used by list-all accumulators
	MaxSubscriptions int           `json:"maxSubscriptionsPerClient"`
	Cache            CacheConfig   `json:"cache"`
	Drafts           DraftsConfig  `json:"drafts"`
	Chains           []ChainConfig `json:"chains"`
}

// CacheConfig represents query cache configuration
type CacheConfig struct {
	Size         int `json:"size"`         // number of resolved entries kept
	TTL          int `json:"ttl"`          // seconds, 0 keeps entries until invalidated or evicted
	FetchTimeout int `json:"fetchTimeout"` // ms, deadline for a single detached fetch
}

// DraftsConfig represents draft persistence configuration
type DraftsConfig struct {
	Backend       string `json:"backend"`
	Debounce      int    `json:"debounce"` // ms
	KeyPrefix     string `json:"keyPrefix"`
	RedisAddr     string `json:"redisAddr"`
	RedisPassword string `json:"redisPassword"`
	RedisDB       int    `json:"redisDb"`
	SQLitePath    string `json:"sqlitePath"`
}

// ChainConfig represents the query endpoints of a single chain
type ChainConfig struct {
	ChainID   string           `json:"chainId"`
	Endpoints []EndpointConfig `json:"endpoints"`
}

// EndpointConfig represents a single LCD REST endpoint
type EndpointConfig struct {
	Name   string `json:"name"`
	LCDURL string `json:"lcdUrl"`
	Weight int    `json:"weight"`
	Role   Role   `json:"role"`
}

// Default values
const (
	DefaultHost             = "localhost"
	DefaultRPCPort          = 8645
	DefaultWSPort           = 8646
	DefaultLogLevel         = "info"
	DefaultMaxBodySize      = int64(0) // 0 means no limit
	DefaultRequestTimeout   = 10000    // ms
	DefaultStatsLogInterval = 60000    // ms
	DefaultListPageLimit    = 10
	DefaultMaxSubscriptions = 100
	DefaultCacheSize        = 10000
	DefaultCacheTTL         = 0     // s
	DefaultFetchTimeout     = 30000 // ms
	DefaultDraftsBackend    = BackendMemory
	DefaultDraftsDebounce   = 10000 // ms
	DefaultDraftsKeyPrefix  = "daoquery:draft:"
	DefaultSQLitePath       = "daoquery-drafts.db"
	DefaultEndpointWeight   = 1
	DefaultEndpointRole     = RoleMain
)

// GetRequestTimeoutDuration returns request timeout as time.Duration
func (c *Config) GetRequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Millisecond
}

// GetStatsLogIntervalDuration returns stats log interval as time.Duration
func (c *Config) GetStatsLogIntervalDuration() time.Duration {
	return time.Duration(c.StatsLogInterval) * time.Millisecond
}

// GetTTLDuration returns cache TTL as time.Duration
func (c *CacheConfig) GetTTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// GetFetchTimeoutDuration returns the detached fetch deadline as time.Duration
func (c *CacheConfig) GetFetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Millisecond
}

// GetDebounceDuration returns the draft idle interval as time.Duration
func (c *DraftsConfig) GetDebounceDuration() time.Duration {
	return time.Duration(c.Debounce) * time.Millisecond
}

// ChainIDs returns the configured chain IDs in config order
func (c *Config) ChainIDs() []string {
	ids := make([]string, 0, len(c.Chains))
	for _, chain := range c.Chains {
		ids = append(ids, chain.ChainID)
	}
	return ids
}
