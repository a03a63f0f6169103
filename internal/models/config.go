package models

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/drone/envsubst"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type APIConfig struct {
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RetryMax     int           `mapstructure:"retry_max" yaml:"retry_max"` // applies to reads only
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
}

type SocketConfig struct {
	URL               string        `mapstructure:"url" yaml:"url"`
	Path              string        `mapstructure:"path" yaml:"path"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	ReconnectDelayMax time.Duration `mapstructure:"reconnect_delay_max" yaml:"reconnect_delay_max"`
	Randomization     float64       `mapstructure:"randomization_factor" yaml:"randomization_factor"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // file, memory, postgres
	Dir     string `mapstructure:"dir" yaml:"dir"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
	Table   string `mapstructure:"table" yaml:"table"`
}

type TrackingConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

type OutputConfig struct {
	Destination      string `mapstructure:"destination" yaml:"destination"` // console, file, kafka, rabbitmq, postgres, none
	FilePath         string `mapstructure:"file_path" yaml:"file_path"`
	PostgresDSN      string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	PostgresTable    string `mapstructure:"postgres_table" yaml:"postgres_table"`
	KafkaBrokerList  string `mapstructure:"kafka_broker_list" yaml:"kafka_broker_list"`
	KafkaTopicPrefix string `mapstructure:"kafka_topic_prefix" yaml:"kafka_topic_prefix"`
	RabbitMQURL      string `mapstructure:"rabbitmq_url" yaml:"rabbitmq_url"`
	RabbitMQExchange string `mapstructure:"rabbitmq_exchange" yaml:"rabbitmq_exchange"`
}

type CloudStorageConfig struct {
	Provider   string `mapstructure:"provider" yaml:"provider"`
	BucketName string `mapstructure:"bucket_name" yaml:"bucket_name"`
	Region     string `mapstructure:"region" yaml:"region"`
}

type ExportConfig struct {
	Format       string             `mapstructure:"format" yaml:"format"`           // csv, parquet
	Destination  string             `mapstructure:"destination" yaml:"destination"` // local, cloud
	OutputPath   string             `mapstructure:"output_path" yaml:"output_path"`
	CloudStorage CloudStorageConfig `mapstructure:"cloud_storage" yaml:"cloud_storage"`
}

type PayoutConfig struct {
	MinAmount           float64 `mapstructure:"min_amount" yaml:"min_amount"`
	WithdrawalMinAmount float64 `mapstructure:"withdrawal_min_amount" yaml:"withdrawal_min_amount"`
}

type LogConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Service string `mapstructure:"service" yaml:"service"`
}

type Config struct {
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Socket   SocketConfig   `mapstructure:"socket" yaml:"socket"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Tracking TrackingConfig `mapstructure:"tracking" yaml:"tracking"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Export   ExportConfig   `mapstructure:"export" yaml:"export"`
	Payout   PayoutConfig   `mapstructure:"payout" yaml:"payout"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

const envPrefix = "CHOWRIDER"

// LoadConfig reads the configuration into a fresh viper instance.
func LoadConfig(cfgFile string) (*Config, error) {
	return LoadConfigWith(viper.New(), cfgFile)
}

// LoadConfigWith reads the configuration using v, which may already carry
// bound command-line flags. A .env file in the working directory is loaded
// first, and ${VAR:-default} references in the config file are expanded
// before parsing.
func LoadConfigWith(v *viper.Viper, cfgFile string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := cfgFile
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := readExpanded(v, path); err != nil {
			return nil, err
		}
	}

	var config Config
	decoderConfigOption := viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err := v.Unmarshal(&config, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func readExpanded(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	expanded, err := envsubst.EvalEnv(string(data))
	if err != nil {
		return fmt.Errorf("error expanding config file: %w", err)
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" || ext == "yml" {
		ext = "yaml"
	}
	v.SetConfigType(ext)
	if err := v.ReadConfig(strings.NewReader(expanded)); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return nil
}

func findConfigFile() string {
	candidates := []string{"chowrider.yaml", "chowrider.yml", "chowrider.json"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".chowrider.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://food-ordering-app.up.railway.app/api")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.retry_max", 0)
	v.SetDefault("api.retry_backoff", 500*time.Millisecond)

	v.SetDefault("socket.url", "https://food-ordering-app.up.railway.app")
	v.SetDefault("socket.path", "/socket.io/")
	v.SetDefault("socket.handshake_timeout", 20*time.Second)
	v.SetDefault("socket.reconnect_delay", time.Second)
	v.SetDefault("socket.reconnect_delay_max", 5*time.Second)
	v.SetDefault("socket.randomization_factor", 0.5)

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.dir", defaultStorageDir())
	v.SetDefault("storage.table", "client_kv")

	v.SetDefault("tracking.base_url", "https://choweazy.com/ride")

	v.SetDefault("output.destination", "console")
	v.SetDefault("output.kafka_broker_list", "localhost:9092")
	v.SetDefault("output.kafka_topic_prefix", "chowrider")
	v.SetDefault("output.rabbitmq_exchange", "chowrider_events")
	v.SetDefault("output.file_path", "events")
	v.SetDefault("output.postgres_table", "realtime_events")

	v.SetDefault("export.format", "csv")
	v.SetDefault("export.destination", "local")
	v.SetDefault("export.output_path", "exports")

	v.SetDefault("payout.min_amount", 100)
	v.SetDefault("payout.withdrawal_min_amount", 1000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.service", "chowrider")
}

func defaultStorageDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "chowrider")
	}
	return ".chowrider"
}

func (cfg *Config) Validate() error {
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	switch cfg.Storage.Backend {
	case "file", "memory":
	case "postgres":
		if cfg.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
	switch cfg.Output.Destination {
	case "", "none", "console", "file", "kafka", "rabbitmq":
	case "postgres":
		if cfg.Output.PostgresDSN == "" {
			return fmt.Errorf("output.postgres_dsn is required for the postgres destination")
		}
	default:
		return fmt.Errorf("unsupported output destination: %s", cfg.Output.Destination)
	}
	if cfg.Payout.MinAmount < 0 || cfg.Payout.WithdrawalMinAmount < 0 {
		return fmt.Errorf("payout minimums cannot be negative")
	}
	return nil
}
