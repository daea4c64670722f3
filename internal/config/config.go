package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Ingest      IngestConfig      `mapstructure:"ingest"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Destination DestinationConfig `mapstructure:"destination"`
	Status      StatusConfig      `mapstructure:"status"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Report      ReportConfig      `mapstructure:"report"`
	Notify      NotifyConfig      `mapstructure:"notify"`
}

type ServerConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	Port    int        `mapstructure:"port"`
	Mode    string     `mapstructure:"mode"`
	CORS    CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type IngestConfig struct {
	Folder        string   `mapstructure:"folder"`
	Extensions    []string `mapstructure:"extensions"`
	Workers       int      `mapstructure:"workers"`
	BatchSize     int      `mapstructure:"batch_size"`
	MaxRetries    int      `mapstructure:"max_retries"`
	TablePrefix   string   `mapstructure:"table_prefix"`
	SyncStructure bool     `mapstructure:"sync_structure"`
}

type ScheduleConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	Watch         bool          `mapstructure:"watch"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
	RunOnStart    bool          `mapstructure:"run_on_start"`
}

type DestinationConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN builds the connection string for the configured driver.
func (d *DestinationConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type StatusConfig struct {
	Backend string      `mapstructure:"backend"`
	Path    string      `mapstructure:"path"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

type ArchiveConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Backend       string        `mapstructure:"backend"`
	Dir           string        `mapstructure:"dir"`
	RetryDir      string        `mapstructure:"retry_dir"`
	RetentionDays int           `mapstructure:"retention_days"`
	CleanupEvery  time.Duration `mapstructure:"cleanup_every"`
	S3            S3Config      `mapstructure:"s3"`
}

type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	UseSSL       bool   `mapstructure:"use_ssl"`
	Prefix       string `mapstructure:"prefix"`
}

type ReportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type NotifyConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
}

type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("ingest.folder", "./data/inbox")
	v.SetDefault("ingest.extensions", []string{".sqlite", ".db", ".csv"})
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.batch_size", 500)
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.table_prefix", "")
	v.SetDefault("ingest.sync_structure", true)
	v.SetDefault("schedule.interval", "5m")
	v.SetDefault("schedule.watch", true)
	v.SetDefault("schedule.watch_debounce", "2s")
	v.SetDefault("schedule.run_on_start", true)
	v.SetDefault("destination.driver", "postgres")
	v.SetDefault("destination.host", "localhost")
	v.SetDefault("destination.port", 5432)
	v.SetDefault("destination.user", "granary")
	v.SetDefault("destination.name", "granary")
	v.SetDefault("destination.ssl_mode", "disable")
	v.SetDefault("destination.path", "./data/granary.db")
	v.SetDefault("destination.max_open_conns", 10)
	v.SetDefault("destination.max_idle_conns", 5)
	v.SetDefault("destination.conn_max_lifetime", "30m")
	v.SetDefault("status.backend", "file")
	v.SetDefault("status.path", "./data/status.json")
	v.SetDefault("status.redis.addr", "localhost:6379")
	v.SetDefault("status.redis.db", 0)
	v.SetDefault("status.redis.key", "granary:files")
	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.backend", "local")
	v.SetDefault("archive.dir", "./data/archive")
	v.SetDefault("archive.retry_dir", "./data/retry")
	v.SetDefault("archive.retention_days", 0)
	v.SetDefault("archive.cleanup_every", "12h")
	v.SetDefault("archive.s3.region", "us-east-1")
	v.SetDefault("report.enabled", true)
	v.SetDefault("report.dir", "./data/reports")
	v.SetDefault("notify.webhook.enabled", false)
	v.SetDefault("notify.webhook.timeout", "10s")
	v.SetDefault("notify.kafka.enabled", false)
	v.SetDefault("notify.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("notify.kafka.topic", "granary.passes")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("ingest.folder", "INGEST_FOLDER")
	v.BindEnv("destination.driver", "DESTINATION_DRIVER")
	v.BindEnv("destination.host", "DESTINATION_HOST")
	v.BindEnv("destination.port", "DESTINATION_PORT")
	v.BindEnv("destination.user", "DESTINATION_USER")
	v.BindEnv("destination.password", "DESTINATION_PASSWORD")
	v.BindEnv("destination.name", "DESTINATION_NAME")
	v.BindEnv("status.redis.addr", "REDIS_ADDR")
	v.BindEnv("status.redis.password", "REDIS_PASSWORD")
	v.BindEnv("archive.s3.bucket", "ARCHIVE_S3_BUCKET")
	v.BindEnv("archive.s3.region", "AWS_REGION")
	v.BindEnv("archive.s3.endpoint", "ARCHIVE_S3_ENDPOINT")
	v.BindEnv("archive.s3.access_key", "AWS_ACCESS_KEY_ID")
	v.BindEnv("archive.s3.secret_key", "AWS_SECRET_ACCESS_KEY")
	v.BindEnv("notify.webhook.url", "NOTIFY_WEBHOOK_URL")
	v.BindEnv("notify.kafka.brokers", "KAFKA_BROKERS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks settings that have no usable fallback. It runs once at
// startup so a bad deployment fails before the first pass.
func (c *Config) Validate() error {
	if c.Ingest.Folder == "" {
		return fmt.Errorf("ingest.folder must not be empty")
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be at least 1, got %d", c.Ingest.Workers)
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size must be at least 1, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.MaxRetries < 0 {
		return fmt.Errorf("ingest.max_retries must not be negative, got %d", c.Ingest.MaxRetries)
	}
	switch c.Destination.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("destination.driver must be postgres or sqlite, got %q", c.Destination.Driver)
	}
	switch c.Status.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("status.backend must be file or redis, got %q", c.Status.Backend)
	}
	switch c.Archive.Backend {
	case "local", "s3", "minio":
	default:
		return fmt.Errorf("archive.backend must be local, s3, or minio, got %q", c.Archive.Backend)
	}
	if c.Archive.Enabled && c.Archive.Backend != "local" && c.Archive.S3.Bucket == "" {
		return fmt.Errorf("archive.s3.bucket must be set when the %s archive backend is enabled", c.Archive.Backend)
	}
	if c.Archive.Enabled && c.Archive.Backend == "minio" && c.Archive.S3.Endpoint == "" {
		return fmt.Errorf("archive.s3.endpoint must be set when the minio archive backend is enabled")
	}
	if c.Notify.Webhook.Enabled && c.Notify.Webhook.URL == "" {
		return fmt.Errorf("notify.webhook.url must be set when webhook notifications are enabled")
	}
	return nil
}
