package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Feed     FeedConfig     `mapstructure:"feed"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Cron     CronConfig     `mapstructure:"cron"`
	MockFeed MockFeedConfig `mapstructure:"mockfeed"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// FeedConfig describes the upstream order book stream.
type FeedConfig struct {
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay"`
	MaxRetries       int           `mapstructure:"max_retries"` // 0 retries forever
	SubscriberBuffer int           `mapstructure:"subscriber_buffer"`
	Fetch            FetchConfig   `mapstructure:"fetch"`
}

// FetchConfig controls one on-demand collection round.
type FetchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	ExpectedCount int           `mapstructure:"expected_count"`
	Symbols       []string      `mapstructure:"symbols"` // overrides expected_count when set
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CronConfig controls the fetch-and-store job.
type CronConfig struct {
	Secret     string        `mapstructure:"secret"`      // shared bearer token for the HTTP trigger
	Interval   time.Duration `mapstructure:"interval"`    // in-process schedule; 0 disables
	MaxRecords int           `mapstructure:"max_records"` // history rows kept after pruning
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

type MockFeedConfig struct {
	Addr     string        `mapstructure:"addr"`
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	cfg, err := Read(defaultPaths()...)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Read loads config.yaml from the first of paths that has one. A missing file is not
// an error: defaults and environment variables still apply.
func Read(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	// Support environment variables with dot notation (e.g., FEED_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("feed.url", "FEED_URL", "WS_URL")
	_ = v.BindEnv("cron.secret", "CRON_SECRET")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func defaultPaths() []string {
	paths := []string{".", "./config"}

	ex, err := os.Executable()
	if err != nil {
		return paths
	}
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		paths = append(paths, filepath.Join(pwd, "../../config"))
	} else {
		paths = append(paths, filepath.Join(filepath.Dir(ex), "../config"))
	}
	return paths
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("feed.url", "ws://localhost:8080")
	v.SetDefault("feed.handshake_timeout", 10*time.Second)
	v.SetDefault("feed.reconnect_delay", 5*time.Second)
	v.SetDefault("feed.max_retries", 0)
	v.SetDefault("feed.subscriber_buffer", 256)
	v.SetDefault("feed.fetch.timeout", 10*time.Second)
	v.SetDefault("feed.fetch.expected_count", 5)
	v.SetDefault("feed.fetch.symbols", []string{})

	v.SetDefault("http.addr", ":3000")
	v.SetDefault("http.shutdown_timeout", 5*time.Second)

	v.SetDefault("cron.secret", "")
	v.SetDefault("cron.interval", 0)
	v.SetDefault("cron.max_records", 1000)
	v.SetDefault("cron.job_timeout", 60*time.Second)

	v.SetDefault("mockfeed.addr", ":8080")
	v.SetDefault("mockfeed.interval", 500*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("postgres.enabled", true)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "orderbookfeed")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.create_db", false)
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
}
