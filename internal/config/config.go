package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Data      DataConfig      `mapstructure:"data"`
	ML        MLConfig        `mapstructure:"ml"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Push      PushConfig      `mapstructure:"push"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
	Environment  string `mapstructure:"environment"`
}

// DatabaseConfig holds database-specific configuration.
// Driver selects between the embedded SQLite file and PostgreSQL.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

// DataConfig controls the reading listing endpoint
type DataConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// MLConfig points at the external model service used for predictions
type MLConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SimulatorConfig holds settings for the reading simulator
type SimulatorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	// TargetURL is used by the standalone simulator binary only
	TargetURL string `mapstructure:"target_url"`
	DeviceID  string `mapstructure:"device_id"`
}

// DashboardConfig holds the monitoring dashboard settings
type DashboardConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	DataURL        string        `mapstructure:"data_url"`
	PredictURL     string        `mapstructure:"predict_url"`
	AlertsURL      string        `mapstructure:"alerts_url"`
	PollIntervalMs int           `mapstructure:"poll_interval_ms"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AlertThreshold float64       `mapstructure:"alert_threshold"`
	WindowSize     int           `mapstructure:"window_size"`
	NoiseCeiling   float64       `mapstructure:"noise_ceiling"`
	TrackNoise     bool          `mapstructure:"track_noise"`
	AutoPredict    bool          `mapstructure:"auto_predict"`
	PredictionTTL  time.Duration `mapstructure:"prediction_ttl"`
}

// AudioConfig holds the alarm playback settings
type AudioConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AlarmFile  string `mapstructure:"alarm_file"`
	Permission bool   `mapstructure:"permission"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Brokers        string `mapstructure:"brokers"`
	ReadingsTopic  string `mapstructure:"readings_topic"`
	AlertsTopic    string `mapstructure:"alerts_topic"`
	SecurityEnable bool   `mapstructure:"security_enable"`
	SecurityUser   string `mapstructure:"security_user"`
	SecurityPass   string `mapstructure:"security_pass"`
}

// MQTTConfig holds the MQTT alert publisher configuration
type MQTTConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Broker      string        `mapstructure:"broker"`
	ClientID    string        `mapstructure:"client_id"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	TopicPrefix string        `mapstructure:"topic_prefix"`
	QoS         byte          `mapstructure:"qos"`
	Retain      bool          `mapstructure:"retain"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// PushConfig holds shoutrrr notification URLs for alert pushes
type PushConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URLs    []string      `mapstructure:"urls"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig holds per-client ingest rate limiting
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// JWTConfig holds device token configuration.
// An empty secret in development leaves ingest unauthenticated.
type JWTConfig struct {
	Secret          string `mapstructure:"secret"`
	ExpirationHours int    `mapstructure:"expiration_hours"`
	RequireDevice   bool   `mapstructure:"require_device"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LoadConfig loads the application configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	// Set default configuration file path if not provided
	if configPath == "" {
		configPath = "./config"
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	// Environment overrides use BEEWATCH_SECTION_KEY
	v.SetEnvPrefix("BEEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, defaults and env vars still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	v.AutomaticEnv()

	setDefaults(v)

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 15)  // seconds
	v.SetDefault("server.write_timeout", 15) // seconds
	v.SetDefault("server.idle_timeout", 60)  // seconds
	v.SetDefault("server.environment", "development")

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "abelhas.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "beewatch")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")

	// Data listing defaults
	v.SetDefault("data.default_limit", 300)
	v.SetDefault("data.max_limit", 1000)

	// Model service defaults
	v.SetDefault("ml.url", "")
	v.SetDefault("ml.timeout", 10*time.Second)

	// Simulator defaults
	v.SetDefault("simulator.enabled", true)
	v.SetDefault("simulator.interval", 5*time.Second)
	v.SetDefault("simulator.target_url", "http://localhost:8000/api/data/ingest")
	v.SetDefault("simulator.device_id", "hive-simulator")

	// Dashboard defaults
	v.SetDefault("dashboard.port", 8090)
	v.SetDefault("dashboard.host", "0.0.0.0")
	v.SetDefault("dashboard.data_url", "http://localhost:8000/api/data/dados")
	v.SetDefault("dashboard.predict_url", "http://localhost:8000/api/predicao")
	v.SetDefault("dashboard.alerts_url", "http://localhost:8000/api/alerts")
	v.SetDefault("dashboard.poll_interval_ms", 3000)
	v.SetDefault("dashboard.request_timeout", 5*time.Second)
	v.SetDefault("dashboard.alert_threshold", 580)
	v.SetDefault("dashboard.window_size", 10)
	v.SetDefault("dashboard.noise_ceiling", 80)
	v.SetDefault("dashboard.track_noise", true)
	v.SetDefault("dashboard.auto_predict", true)
	v.SetDefault("dashboard.prediction_ttl", 30*time.Second)

	// Audio defaults
	v.SetDefault("audio.enabled", true)
	v.SetDefault("audio.alarm_file", "assets/alarm.wav")
	v.SetDefault("audio.permission", false)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "kafka:9092")
	v.SetDefault("kafka.readings_topic", "hive-readings")
	v.SetDefault("kafka.alerts_topic", "hive-alerts")
	v.SetDefault("kafka.security_enable", false)

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.client_id", "beewatch-dashboard")
	v.SetDefault("mqtt.topic_prefix", "beewatch")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.timeout", 10*time.Second)

	// Push defaults
	v.SetDefault("push.enabled", false)
	v.SetDefault("push.timeout", 10*time.Second)

	// Rate limit defaults
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 5)
	v.SetDefault("ratelimit.burst", 10)

	// JWT defaults
	v.SetDefault("jwt.expiration_hours", 24*365)
	v.SetDefault("jwt.require_device", false)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.JWT.RequireDevice && config.JWT.Secret == "" {
		if config.Server.Environment == "development" {
			config.JWT.Secret = "development-device-secret-change-in-production"
		} else {
			return fmt.Errorf("JWT secret is required when device authentication is enabled")
		}
	}

	switch config.Database.Driver {
	case "sqlite":
		if config.Database.Path == "" {
			return fmt.Errorf("database path is required for the sqlite driver")
		}
	case "postgres":
		if config.Database.Password == "" {
			dbPassword := os.Getenv("BEEWATCH_DATABASE_PASSWORD")
			if dbPassword == "" {
				if config.Server.Environment != "development" {
					return fmt.Errorf("database password is required in non-development environments")
				}
			} else {
				config.Database.Password = dbPassword
			}
		}
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if config.Data.DefaultLimit < 1 || config.Data.MaxLimit < config.Data.DefaultLimit {
		return fmt.Errorf("invalid data limits: default %d, max %d", config.Data.DefaultLimit, config.Data.MaxLimit)
	}

	if config.Dashboard.WindowSize < 1 {
		return fmt.Errorf("dashboard window size must be at least 1")
	}
	if config.Dashboard.PollIntervalMs < 100 {
		return fmt.Errorf("dashboard poll interval must be at least 100ms")
	}

	if config.Simulator.Interval <= 0 {
		return fmt.Errorf("simulator interval must be positive")
	}

	if config.Push.Enabled && len(config.Push.URLs) == 0 {
		return fmt.Errorf("push notifications enabled but no URLs configured")
	}
	if config.MQTT.Enabled && config.MQTT.Broker == "" {
		return fmt.Errorf("MQTT enabled but no broker configured")
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode, c.TimeZone)
}

// PollInterval returns the poll interval as a duration
func (c *DashboardConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// IsProduction returns true if the environment is production
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if the environment is development
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsTest returns true if the environment is test
func (c *ServerConfig) IsTest() bool {
	return c.Environment == "test"
}
