package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Port        string   `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	Timezone    string   `mapstructure:"timezone"`

	Database struct {
		Driver       string `mapstructure:"driver"`
		Host         string `mapstructure:"host"`
		Port         string `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		Name         string `mapstructure:"name"`
		SSLMode      string `mapstructure:"sslmode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
	} `mapstructure:"database"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Auth struct {
		JWTSecret     string `mapstructure:"jwt_secret"`
		AdminUsername string `mapstructure:"admin_username"`
		AdminPassword string `mapstructure:"admin_password"`
	} `mapstructure:"auth"`

	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`

	Scheduler struct {
		Enabled  bool          `mapstructure:"enabled"`
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"scheduler"`

	Email struct {
		APIKey      string `mapstructure:"api_key"`
		FromAddress string `mapstructure:"from_address"`
		AlertTo     string `mapstructure:"alert_to"`
	} `mapstructure:"email"`

	OrderDailyLimit int `mapstructure:"order_daily_limit"`
}

// envBindings maps config keys to the environment variables the deployment already uses.
var envBindings = map[string]string{
	"port":                    "PORT",
	"cors_origins":            "CORS_ORIGINS",
	"timezone":                "TIMEZONE",
	"database.driver":         "DB_DRIVER",
	"database.host":           "DB_HOST",
	"database.port":           "DB_PORT",
	"database.user":           "DB_USERNAME",
	"database.password":       "DB_PASSWORD",
	"database.name":           "DB_NAME",
	"database.sslmode":        "DB_SSLMODE",
	"database.max_open_conns": "DB_MAX_OPEN_CONNS",
	"log.level":               "LOG_LEVEL",
	"log.format":              "LOG_FORMAT",
	"auth.jwt_secret":         "JWT_SECRET",
	"auth.admin_username":     "ADMIN_USERNAME",
	"auth.admin_password":     "ADMIN_PASSWORD",
	"kafka.brokers":           "KAFKA_BROKERS",
	"kafka.topic":             "KAFKA_TOPIC",
	"scheduler.enabled":       "SCHEDULER_ENABLED",
	"scheduler.interval":      "SCHEDULER_INTERVAL",
	"email.api_key":           "RESEND_API_KEY",
	"email.from_address":      "EMAIL_FROM_ADDRESS",
	"email.alert_to":          "ALERT_EMAIL",
	"order_daily_limit":       "ORDER_DAILY_LIMIT",
}

// Load reads config.yaml (optional) and the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Comma separated env values arrive as a single element.
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)

	cfg.warnMissing()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("timezone", "Asia/Kolkata")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "cafe.orders")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", time.Hour)
	v.SetDefault("email.api_key", "")
	v.SetDefault("email.from_address", "")
	v.SetDefault("email.alert_to", "")
	v.SetDefault("order_daily_limit", 0)
}

// warnMissing logs absent database settings without stopping startup.
func (c *Config) warnMissing() {
	missing := []string{}
	if c.Database.Host == "" {
		missing = append(missing, "DB_HOST")
	}
	if c.Database.User == "" {
		missing = append(missing, "DB_USERNAME")
	}
	if c.Database.Name == "" {
		missing = append(missing, "DB_NAME")
	}
	if len(missing) > 0 {
		log.Error().Strs("missing", missing).Msg("Database configuration incomplete")
	}
	if c.Database.Password == "" {
		log.Warn().Msg("DB_PASSWORD is empty")
	}
}

func splitList(in []string) []string {
	out := []string{}
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
