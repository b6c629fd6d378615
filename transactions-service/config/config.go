package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	sharedinfra "github.com/draftea/booking-system/shared/infrastructure"
	"github.com/draftea/booking-system/shared/logging"
	"github.com/spf13/viper"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
)

type Config struct {
	ServiceName string                          `mapstructure:"service_name"`
	Env         string                          `mapstructure:"env"`
	Port        string                          `mapstructure:"port"`
	Logging     logging.Config                  `mapstructure:"logging"`
	Telemetry   Telemetry                       `mapstructure:"telemetry"`
	Store       Store                           `mapstructure:"store"`
	Database    Database                        `mapstructure:"database"`
	AWS         sharedinfra.AWSConfig           `mapstructure:"aws"`
	Subscriber  sharedinfra.SQSSubscriberConfig `mapstructure:"subscriber"`
	Transition  Transition                      `mapstructure:"transition"`
	Publisher   Publisher                       `mapstructure:"publisher"`
}

type Telemetry struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Version      string `mapstructure:"version"`
}

// Store selects the transaction repository backend
type Store struct {
	Driver   string   `mapstructure:"driver"`
	DynamoDB DynamoDB `mapstructure:"dynamodb"`
}

type DynamoDB struct {
	Table    string `mapstructure:"table"`
	Endpoint string `mapstructure:"endpoint"`
}

type Database struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type Transition struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

type Publisher struct {
	QueueSize      int           `mapstructure:"queue_size"`
	Workers        int           `mapstructure:"workers"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

func ReadConfig() (*Config, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return nil, fmt.Errorf("unable to get current file")
	}

	return readConfig(filepath.Dir(filename), getConfigName())
}

func readConfig(configDir, name string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("json")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("TRANSACTIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	switch config.Store.Driver {
	case DriverPostgres, DriverDynamoDB, DriverMemory:
	default:
		return nil, fmt.Errorf("unknown store driver %q", config.Store.Driver)
	}

	return &config, nil
}

func getConfigName() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		return "local"
	}
	return env
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "transactions-service")
	v.SetDefault("env", "local")
	v.SetDefault("port", "8081")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.version", "")

	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("store.dynamodb.table", "transactions")
	v.SetDefault("store.dynamodb.endpoint", "")

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "transactions")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("aws.topic_arn", "")
	v.SetDefault("aws.queue_url", "")

	v.SetDefault("subscriber.workers", 10)
	v.SetDefault("subscriber.readers", 1)
	v.SetDefault("subscriber.wait_time_seconds", 15)
	v.SetDefault("subscriber.visibility_timeout", 30)

	v.SetDefault("transition.max_attempts", 3)

	v.SetDefault("publisher.queue_size", 256)
	v.SetDefault("publisher.workers", 4)
	v.SetDefault("publisher.publish_timeout", 5*time.Second)
}

// GetDatabaseURL returns the full URL when set, otherwise builds one from the parts
func (c *Config) GetDatabaseURL() string {
	d := c.Database
	if d.URL != "" {
		return d.URL
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
		d.SSLMode,
	)
}
