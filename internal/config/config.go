package config

import (
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all ingestion-engine configuration, mirroring the §6
// environment table of the specification.
type Config struct {
	Feed       FeedConfig       `mapstructure:"feed"`
	RPC        RPCConfig        `mapstructure:"rpc"`
	Enrich     EnrichConfig     `mapstructure:"enrich"`
	Store      StoreConfig      `mapstructure:"store"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	Holder     HolderConfig     `mapstructure:"holder"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Backoff    BackoffConfig    `mapstructure:"backoff"`
	Health     HealthConfig     `mapstructure:"health"`
	Venues     VenuesConfig     `mapstructure:"venues"`
}

// VenuesConfig carries the well-known program ids each consumer subscribes
// to. These are operator-supplied configuration, never source-embedded
// (§6), so a mainnet/devnet/replay switch never touches code.
type VenuesConfig struct {
	RaydiumLaunchpadProgram string `mapstructure:"raydium_launchpad_program"`
	PumpFunProgram          string `mapstructure:"pumpfun_program"`
	PumpSwapProgram         string `mapstructure:"pumpswap_program"`
	MigrationProgram        string `mapstructure:"migration_program"`
}

type FeedConfig struct {
	URLEnv   string `mapstructure:"url_env"`
	TokenEnv string `mapstructure:"token_env"`
}

type RPCConfig struct {
	URLEnv string `mapstructure:"url_env"`
}

type EnrichConfig struct {
	KeyEnv string `mapstructure:"key_env"`
}

type StoreConfig struct {
	URLEnv string `mapstructure:"url_env"`
}

type ReconcilerConfig struct {
	BatchSize            int `mapstructure:"batch_size"`
	BatchTimeoutMs        int `mapstructure:"batch_timeout_ms"`
	PoolUpdateDebounceMs  int `mapstructure:"pool_update_debounce_ms"`
}

type HolderConfig struct {
	Budget      int64   `mapstructure:"budget"`
	TargetPct   float64 `mapstructure:"target_pct"`
	HardStopPct float64 `mapstructure:"hard_stop_pct"`
}

type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
	PerSecond int `mapstructure:"per_second"`
}

type BackoffConfig struct {
	InitialMs int `mapstructure:"initial_ms"`
	MaxMs     int `mapstructure:"max_ms"`
}

type HealthConfig struct {
	ListenHost string `mapstructure:"listen_host"`
	ListenPort int    `mapstructure:"listen_port"`
}

// Manager handles config loading, env resolution and hot-reload, the same
// shape as the viper-backed manager the rest of the corpus uses.
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	viper    *viper.Viper
	onChange func(*Config)
}

// NewManager loads configuration from an optional YAML file (defaults
// filled in first) plus environment variables, and watches the file for
// changes when one is given.
func NewManager(configPath string) (*Manager, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("feed.url_env", "FEED_URL")
	v.SetDefault("feed.token_env", "FEED_TOKEN")
	v.SetDefault("rpc.url_env", "RPC_URL")
	v.SetDefault("enrich.key_env", "ENRICH_KEY")
	v.SetDefault("store.url_env", "DB_URL")
	v.SetDefault("reconciler.batch_size", 50)
	v.SetDefault("reconciler.batch_timeout_ms", 5000)
	v.SetDefault("reconciler.pool_update_debounce_ms", 5000)
	v.SetDefault("holder.budget", int64(10_000_000))
	v.SetDefault("holder.target_pct", 62.5)
	v.SetDefault("holder.hard_stop_pct", 85.0)
	v.SetDefault("rate_limit.per_minute", 600)
	v.SetDefault("rate_limit.per_second", 10)
	v.SetDefault("backoff.initial_ms", 1000)
	v.SetDefault("backoff.max_ms", 30000)
	v.SetDefault("health.listen_host", "0.0.0.0")
	v.SetDefault("health.listen_port", 9090)
	v.SetDefault("venues.raydium_launchpad_program", "LanMV9sAd7wArD4vJFi2qDdfnVhFxYSUg6eADduJ3uj")
	v.SetDefault("venues.pumpfun_program", "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	v.SetDefault("venues.pumpswap_program", "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA")
	v.SetDefault("venues.migration_program", "39azUYFWPz3VHgKCf3VChUwbpURdCHRxjWVowf5jUJjg")

	v.SetEnvPrefix("INGEST")
	v.AutomaticEnv()
	bindOverrides(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	m := &Manager{config: &cfg, viper: v}

	if configPath != "" {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			log.Info().Str("file", e.Name).Msg("config file changed, reloading")
			m.reload()
		})
	}

	return m, nil
}

// bindOverrides wires the §6 environment knobs that the spec gives literal
// names to (BATCH_SIZE, HOLDER_BUDGET, ...) directly, so an operator can set
// them without the INGEST_ prefix the rest of this file uses.
func bindOverrides(v *viper.Viper) {
	_ = v.BindEnv("reconciler.batch_size", "BATCH_SIZE")
	_ = v.BindEnv("reconciler.batch_timeout_ms", "BATCH_TIMEOUT_MS")
	_ = v.BindEnv("reconciler.pool_update_debounce_ms", "POOL_UPDATE_DEBOUNCE_MS")
	_ = v.BindEnv("holder.budget", "HOLDER_BUDGET")
	_ = v.BindEnv("holder.target_pct", "HOLDER_TARGET_PCT")
	_ = v.BindEnv("holder.hard_stop_pct", "HOLDER_HARD_STOP_PCT")
	_ = v.BindEnv("rate_limit.per_minute", "RATE_PER_MIN")
	_ = v.BindEnv("rate_limit.per_second", "RATE_PER_SEC")
	_ = v.BindEnv("backoff.initial_ms", "CONSUMER_BACKOFF_MS_INITIAL")
	_ = v.BindEnv("backoff.max_ms", "CONSUMER_BACKOFF_MS_MAX")
	_ = v.BindEnv("venues.raydium_launchpad_program", "RAYDIUM_LAUNCHPAD_PROGRAM")
	_ = v.BindEnv("venues.pumpfun_program", "PUMPFUN_PROGRAM")
	_ = v.BindEnv("venues.pumpswap_program", "PUMPSWAP_PROGRAM")
	_ = v.BindEnv("venues.migration_program", "MIGRATION_PROGRAM")
}

// Get returns the current config (thread-safe).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetOnChange registers a callback fired after a hot reload.
func (m *Manager) SetOnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

func (m *Manager) reload() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cfg Config
	if err := m.viper.Unmarshal(&cfg); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal config on reload")
		return
	}
	m.config = &cfg
	if m.onChange != nil {
		m.onChange(&cfg)
	}
}

// FeedURL resolves the block-subscription endpoint from its configured
// environment variable.
func (m *Manager) FeedURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.Feed.URLEnv)
}

// FeedToken resolves the block-subscription auth token.
func (m *Manager) FeedToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.Feed.TokenEnv)
}

// RPCURL resolves the chain JSON-RPC endpoint.
func (m *Manager) RPCURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.RPC.URLEnv)
}

// EnrichKey resolves the holder-enrichment API key.
func (m *Manager) EnrichKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.Enrich.KeyEnv)
}

// StoreURL resolves the persistent store DSN.
func (m *Manager) StoreURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.Store.URLEnv)
}

// BatchFlushTimeout returns the trade-batch flush timeout as a duration.
func (m *Manager) BatchFlushTimeout() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Duration(m.config.Reconciler.BatchTimeoutMs) * time.Millisecond
}

// PoolDebounce returns the pool-state debounce interval as a duration.
func (m *Manager) PoolDebounce() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Duration(m.config.Reconciler.PoolUpdateDebounceMs) * time.Millisecond
}

// BackoffRange returns the initial and max reconnect backoff durations.
func (m *Manager) BackoffRange() (time.Duration, time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Duration(m.config.Backoff.InitialMs) * time.Millisecond,
		time.Duration(m.config.Backoff.MaxMs) * time.Millisecond
}

// Venues returns the configured program ids for each consumer to filter on.
func (m *Manager) Venues() VenuesConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Venues
}
