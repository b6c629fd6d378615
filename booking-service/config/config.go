package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/draftea/booking-system/booking-service/domain"
	"github.com/draftea/booking-system/booking-service/infrastructure"
	sharedinfra "github.com/draftea/booking-system/shared/infrastructure"
	"github.com/draftea/booking-system/shared/logging"
	"github.com/spf13/viper"
)

type Config struct {
	ServiceName  string                          `mapstructure:"service_name"`
	Env          string                          `mapstructure:"env"`
	Port         string                          `mapstructure:"port"`
	Logging      logging.Config                  `mapstructure:"logging"`
	Telemetry    Telemetry                       `mapstructure:"telemetry"`
	Database     Database                        `mapstructure:"database"`
	AWS          sharedinfra.AWSConfig           `mapstructure:"aws"`
	Subscriber   sharedinfra.SQSSubscriberConfig `mapstructure:"subscriber"`
	Reservations Reservations                    `mapstructure:"reservations"`
	Simulation   infrastructure.SimulationConfig `mapstructure:"simulation"`
	EventStore   EventStore                      `mapstructure:"event_store"`
	Publisher    Publisher                       `mapstructure:"publisher"`
}

type Telemetry struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Version      string `mapstructure:"version"`
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

// Reservations holds one remote endpoint per resource. A resource without an
// endpoint is served by the simulated reservation service.
type Reservations struct {
	Flight infrastructure.HTTPReservationConfig `mapstructure:"flight"`
	Hotel  infrastructure.HTTPReservationConfig `mapstructure:"hotel"`
	Car    infrastructure.HTTPReservationConfig `mapstructure:"car"`
}

type EventStore struct {
	Enabled bool `mapstructure:"enabled"`
}

type Publisher struct {
	QueueSize      int           `mapstructure:"queue_size"`
	Workers        int           `mapstructure:"workers"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

var envKeyReplacer = strings.NewReplacer(".", "_")

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

	// Allow environment variables to override config
	v.SetEnvPrefix("BOOKING")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	setDefaults(v)

	// without a config file (e.g. in Lambda) defaults and env still apply
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

	for _, resources := range [][]string{config.Simulation.FailResources, config.Simulation.FailCancels} {
		for _, resource := range resources {
			if _, err := domain.NewResourceKind(resource); err != nil {
				return nil, fmt.Errorf("invalid simulation config: %w", err)
			}
		}
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
	// Service defaults
	v.SetDefault("service_name", "booking-service")
	v.SetDefault("env", "local")
	v.SetDefault("port", "8080")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.version", "")

	// Database defaults
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "booking_system")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("aws.topic_arn", "")
	v.SetDefault("aws.queue_url", "")

	v.SetDefault("subscriber.workers", 10)
	v.SetDefault("subscriber.readers", 1)
	v.SetDefault("subscriber.wait_time_seconds", 15)
	v.SetDefault("subscriber.visibility_timeout", 30)

	v.SetDefault("event_store.enabled", false)
	v.SetDefault("simulation.failure_message", "")
	v.SetDefault("simulation.latency", 0)

	for _, resource := range []string{"flight", "hotel", "car"} {
		v.SetDefault("reservations."+resource+".endpoint", "")
		v.SetDefault("reservations."+resource+".timeout", 10*time.Second)
		v.SetDefault("reservations."+resource+".rate_limit", 20)
		v.SetDefault("reservations."+resource+".burst", 5)
	}

	v.SetDefault("publisher.queue_size", 256)
	v.SetDefault("publisher.workers", 4)
	v.SetDefault("publisher.publish_timeout", 5*time.Second)
}

// GetDatabaseURL constructs database URL from config
func (c *Config) GetDatabaseURL() string {
	return c.Database.DSN()
}

// DSN returns the full URL when set, otherwise builds one from the parts
func (d Database) DSN() string {
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
