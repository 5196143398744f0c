package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Crawler     CrawlerConfig     `mapstructure:"crawler"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Verify      VerifyConfig      `mapstructure:"verify"`
	Tenant      TenantConfig      `mapstructure:"tenant"`
}

// TenantConfig names the default tenant applied to requests that don't
// override it via ExtractOptions.Tenant, per § 6.5.
type TenantConfig struct {
	ID string `mapstructure:"id"`
}

// PersistenceConfig selects and tunes the C1 store backend.
type PersistenceConfig struct {
	Backend       string `mapstructure:"backend"` // "file" or "postgres"
	FilePath      string `mapstructure:"file_path"`
	DebounceMs    int    `mapstructure:"debounce_ms"`
}

// DiscoveryConfig tunes the C5 probe and C2 cache.
type DiscoveryConfig struct {
	ProbeTimeoutMs   int `mapstructure:"probe_timeout_ms"`
	CacheTTLSeconds  int `mapstructure:"cache_ttl_seconds"`
	CacheMaxEntries  int `mapstructure:"cache_max_entries"`
	MaxEndpoints     int `mapstructure:"max_endpoints"`
	CooldownBaseMs   int `mapstructure:"cooldown_base_ms"`
	CooldownMaxMs    int `mapstructure:"cooldown_max_ms"`
}

// OrchestratorConfig tunes the C7 strategy chain budgets.
type OrchestratorConfig struct {
	TotalBudgetMs   int `mapstructure:"total_budget_ms"`
	PerTierBudgetMs int `mapstructure:"per_tier_budget_ms"`
	MaxAttempts     int `mapstructure:"max_attempts"`
}

// VerifyConfig selects the default run mode for C8.
type VerifyConfig struct {
	DefaultMode string `mapstructure:"default_mode"`
}

type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	Host            string `mapstructure:"host"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxConnections  int    `mapstructure:"max_connections"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type BrowserConfig struct {
	PoolSize        int         `mapstructure:"pool_size"`
	Headless        bool        `mapstructure:"headless"`
	Timeout         int         `mapstructure:"timeout"`
	MaxConcurrency  int         `mapstructure:"max_concurrency"`
	ContextLifetime int         `mapstructure:"context_lifetime"`
	Proxy           ProxyConfig `mapstructure:"proxy"`
}

type ProxyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Server   string `mapstructure:"server"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type CrawlerConfig struct {
	MaxDepth           int    `mapstructure:"max_depth"`
	UserAgent          string `mapstructure:"user_agent"`
	RespectRobotsTxt   bool   `mapstructure:"respect_robots_txt"`
	MaxRetries         int    `mapstructure:"max_retries"`
	RetryDelay         int    `mapstructure:"retry_delay"`
	ConcurrentWorkers  int    `mapstructure:"concurrent_workers"`
	QueueCheckInterval int    `mapstructure:"queue_check_interval"`
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.shutdown_timeout", 10)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.database", "webextract")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Browser defaults
	viper.SetDefault("browser.pool_size", 5)
	viper.SetDefault("browser.headless", false)
	viper.SetDefault("browser.timeout", 30000)
	viper.SetDefault("browser.max_concurrency", 10)
	viper.SetDefault("browser.context_lifetime", 300)

	// Proxy defaults
	viper.SetDefault("browser.proxy.enabled", false)
	viper.SetDefault("browser.proxy.server", "")
	viper.SetDefault("browser.proxy.username", "")
	viper.SetDefault("browser.proxy.password", "")

	// Crawler defaults
	viper.SetDefault("crawler.max_depth", 3)
	viper.SetDefault("crawler.user_agent", "webextract/1.0")
	viper.SetDefault("crawler.respect_robots_txt", true)
	viper.SetDefault("crawler.max_retries", 3)
	viper.SetDefault("crawler.retry_delay", 1000)
	viper.SetDefault("crawler.concurrent_workers", 5)
	viper.SetDefault("crawler.queue_check_interval", 1000)

	// Persistence defaults
	viper.SetDefault("persistence.backend", "file")
	viper.SetDefault("persistence.file_path", "./data/store.json")
	viper.SetDefault("persistence.debounce_ms", 500)

	// Discovery defaults
	viper.SetDefault("discovery.probe_timeout_ms", 5000)
	viper.SetDefault("discovery.cache_ttl_seconds", 3600)
	viper.SetDefault("discovery.cache_max_entries", 500)
	viper.SetDefault("discovery.max_endpoints", 50)
	viper.SetDefault("discovery.cooldown_base_ms", 1000)
	viper.SetDefault("discovery.cooldown_max_ms", 300000)

	// Orchestrator defaults
	viper.SetDefault("orchestrator.total_budget_ms", 15000)
	viper.SetDefault("orchestrator.per_tier_budget_ms", 5000)
	viper.SetDefault("orchestrator.max_attempts", 4)

	// Verify defaults
	viper.SetDefault("verify.default_mode", "standard")

	// Tenant defaults
	viper.SetDefault("tenant.id", "default")
}
