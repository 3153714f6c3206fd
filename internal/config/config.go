package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
)

// Config represents the application configuration. The yaml tags keep
// `fsdash config show` output loadable as a config file.
type Config struct {
	App          AppConfig          `mapstructure:"app" yaml:"app"`
	Freshservice FreshserviceConfig `mapstructure:"freshservice" yaml:"freshservice"`
	Collector    CollectorConfig    `mapstructure:"collector" yaml:"collector"`
	Warehouse    WarehouseConfig    `mapstructure:"warehouse" yaml:"warehouse"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline" yaml:"pipeline"`
	Schedule     ScheduleConfig     `mapstructure:"schedule" yaml:"schedule"`
	Ops          OpsConfig          `mapstructure:"ops" yaml:"ops"`
	Lock         LockConfig         `mapstructure:"lock" yaml:"lock"`
	Notify       NotifyConfig       `mapstructure:"notify" yaml:"notify"`
}

type AppConfig struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Env      string `mapstructure:"env" yaml:"env"`
	Debug    bool   `mapstructure:"debug" yaml:"debug"`
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

type FreshserviceConfig struct {
	Domain           string        `mapstructure:"domain" yaml:"domain"`
	APIKey           string        `mapstructure:"api_key" yaml:"api_key"`
	APIKeySecretName string        `mapstructure:"api_key_secret_name" yaml:"api_key_secret_name"`
	FilterTag        string        `mapstructure:"filter_tag" yaml:"filter_tag"`
	WorkspaceID      int64         `mapstructure:"workspace_id" yaml:"workspace_id"`
	PageSize         int           `mapstructure:"page_size" yaml:"page_size"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	RetryCount       int           `mapstructure:"retry_count" yaml:"retry_count"`
	RetryWaitTime    time.Duration `mapstructure:"retry_wait_time" yaml:"retry_wait_time"`
}

type CollectorConfig struct {
	BatchSize    int           `mapstructure:"batch_size" yaml:"batch_size"`
	PauseBetween time.Duration `mapstructure:"pause_between" yaml:"pause_between"`
}

type WarehouseConfig struct {
	Backend  string         `mapstructure:"backend" yaml:"backend"`
	BigQuery BigQueryConfig `mapstructure:"bigquery" yaml:"bigquery"`
	SQL      SQLConfig      `mapstructure:"sql" yaml:"sql"`
}

type BigQueryConfig struct {
	ProjectID       string `mapstructure:"project_id" yaml:"project_id"`
	Dataset         string `mapstructure:"dataset" yaml:"dataset"`
	Table           string `mapstructure:"table" yaml:"table"`
	Location        string `mapstructure:"location" yaml:"location"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
}

type SQLConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
	Table  string `mapstructure:"table" yaml:"table"`
}

type PipelineConfig struct {
	StrictInsert    bool `mapstructure:"strict_insert" yaml:"strict_insert"`
	StrictDiscovery bool `mapstructure:"strict_discovery" yaml:"strict_discovery"`
}

type ScheduleConfig struct {
	Cron    string        `mapstructure:"cron" yaml:"cron"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type OpsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
}

type LockConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	RedisURL string        `mapstructure:"redis_url" yaml:"redis_url"`
	Key      string        `mapstructure:"key" yaml:"key"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url" yaml:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Load initializes the configuration with hot reload support.
// configFile may be empty, in which case fsdash.yaml is searched for in
// the working directory and /etc/fsdash; a missing file is not an error
// because every key has a default and can be set via FSDASH_* variables.
func Load(configFile string) error {
	var err error
	once.Do(func() {
		v := viper.New()
		v.SetConfigType("yaml")
		setDefaults(v)

		if configFile != "" {
			v.SetConfigFile(configFile)
			if err = v.ReadInConfig(); err != nil {
				err = fmt.Errorf("failed to read config file %s: %w", configFile, err)
				return
			}
		} else {
			v.SetConfigName("fsdash")
			v.AddConfigPath(".")
			v.AddConfigPath("/etc/fsdash")
			if err = v.ReadInConfig(); err != nil {
				// It's OK if fsdash.yaml doesn't exist
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					err = fmt.Errorf("failed to read config: %w", err)
					return
				}
				err = nil
			}
		}

		// Environment variable overrides
		v.SetEnvPrefix("FSDASH")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		// Unmarshal configuration
		cfg = &Config{}
		if err = v.Unmarshal(cfg); err != nil {
			err = fmt.Errorf("failed to unmarshal config: %w", err)
			return
		}

		// Watch for config changes when a file is in play
		if v.ConfigFileUsed() != "" {
			v.WatchConfig()
			v.OnConfigChange(func(e fsnotify.Event) {
				fmt.Printf("Config file changed: %s\n", e.Name)
				mu.Lock()
				defer mu.Unlock()

				newCfg := &Config{}
				if err := v.Unmarshal(newCfg); err != nil {
					fmt.Printf("Failed to reload config: %v\n", err)
					return
				}

				// Atomic swap
				cfg = newCfg
				fmt.Println("Configuration reloaded successfully")
			})
		}
	})

	return err
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fsdash")
	v.SetDefault("app.env", "production")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.timezone", "UTC")

	// Keys without a real default still register an empty one: viper only
	// surfaces FSDASH_* environment overrides for keys it knows about.
	v.SetDefault("freshservice.domain", "")
	v.SetDefault("freshservice.api_key", "")
	v.SetDefault("freshservice.api_key_secret_name", "")
	v.SetDefault("freshservice.filter_tag", "dashboard")
	v.SetDefault("freshservice.workspace_id", 2)
	v.SetDefault("freshservice.page_size", 100)
	v.SetDefault("freshservice.request_timeout", 30*time.Second)
	v.SetDefault("freshservice.retry_count", 0)
	v.SetDefault("freshservice.retry_wait_time", 2*time.Second)

	v.SetDefault("collector.batch_size", 70)
	v.SetDefault("collector.pause_between", 60*time.Second)

	v.SetDefault("warehouse.backend", "bigquery")
	v.SetDefault("warehouse.bigquery.project_id", "")
	v.SetDefault("warehouse.bigquery.dataset", "helpdesk")
	v.SetDefault("warehouse.bigquery.table", "time_entries")
	v.SetDefault("warehouse.bigquery.location", "EU")
	v.SetDefault("warehouse.bigquery.credentials_file", "")
	v.SetDefault("warehouse.sql.driver", "postgres")
	v.SetDefault("warehouse.sql.dsn", "")
	v.SetDefault("warehouse.sql.table", "time_entries")

	v.SetDefault("pipeline.strict_insert", false)
	v.SetDefault("pipeline.strict_discovery", false)

	v.SetDefault("schedule.cron", "0 0 5 * * *")
	v.SetDefault("schedule.timeout", 30*time.Minute)

	v.SetDefault("ops.enabled", true)
	v.SetDefault("ops.host", "0.0.0.0")
	v.SetDefault("ops.port", 9090)

	v.SetDefault("lock.enabled", false)
	v.SetDefault("lock.redis_url", "")
	v.SetDefault("lock.key", "fsdash:export:lock")
	v.SetDefault("lock.ttl", 45*time.Minute)

	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.timeout", 10*time.Second)
}

// Get returns the current configuration (thread-safe)
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Validate checks that the settings required for an export run are present.
func (c *Config) Validate() error {
	if c.Freshservice.Domain == "" {
		return fmt.Errorf("freshservice.domain is required")
	}
	if c.Freshservice.APIKey == "" && c.Freshservice.APIKeySecretName == "" {
		return fmt.Errorf("one of freshservice.api_key or freshservice.api_key_secret_name is required")
	}
	if c.Collector.BatchSize <= 0 {
		return fmt.Errorf("collector.batch_size must be positive, got %d", c.Collector.BatchSize)
	}
	if c.Freshservice.PageSize <= 0 {
		return fmt.Errorf("freshservice.page_size must be positive, got %d", c.Freshservice.PageSize)
	}
	switch c.Warehouse.Backend {
	case "bigquery":
		if c.Warehouse.BigQuery.ProjectID == "" {
			return fmt.Errorf("warehouse.bigquery.project_id is required")
		}
	case "sql":
		if c.Warehouse.SQL.DSN == "" {
			return fmt.Errorf("warehouse.sql.dsn is required")
		}
	default:
		return fmt.Errorf("unknown warehouse backend %q", c.Warehouse.Backend)
	}
	return nil
}

// BaseURL returns the helpdesk API base URL, e.g. https://acme.freshservice.com/api/v2
func (c *FreshserviceConfig) BaseURL() string {
	domain := strings.TrimSuffix(c.Domain, "/")
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	return domain + "/api/v2"
}

// TableRef returns the fully qualified BigQuery table reference.
func (c *BigQueryConfig) TableRef() string {
	return fmt.Sprintf("%s.%s.%s", c.ProjectID, c.Dataset, c.Table)
}

// GetOpsAddr returns the ops server listen address
func (c *OpsConfig) GetOpsAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction returns true if running in production mode
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment returns true if running in development mode
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// LoadFromFile loads configuration from a specific file (useful for testing)
func LoadFromFile(configFile string) error {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

// MustLoad loads configuration and panics on error
func MustLoad(configFile string) {
	if err := Load(configFile); err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
}
