package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Billing    BillingConfig    `mapstructure:"billing"`
	Email      EmailConfig      `mapstructure:"email"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port" envconfig:"SERVER_PORT"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" envconfig:"DB_HOST"`
	Port     int    `mapstructure:"port" envconfig:"DB_PORT"`
	User     string `mapstructure:"user" envconfig:"DB_USER"`
	Password string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name     string `mapstructure:"name" envconfig:"DB_NAME"`
	SSLMode  string `mapstructure:"sslmode" envconfig:"DB_SSLMODE"`
}

type RedisConfig struct {
	URL     string        `mapstructure:"url" envconfig:"REDIS_URL"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret" envconfig:"JWT_SECRET"`
}

type SchedulingConfig struct {
	SlotMinutes  int           `mapstructure:"slot_minutes"`
	WorkStart    string        `mapstructure:"work_start"`
	WorkEnd      string        `mapstructure:"work_end"`
	Timezone     string        `mapstructure:"timezone"`
	SlotCacheTTL time.Duration `mapstructure:"slot_cache_ttl"`
}

type BillingConfig struct {
	NumberPrefix string `mapstructure:"number_prefix"`
}

type EmailConfig struct {
	Host     string `mapstructure:"host" envconfig:"SMTP_HOST"`
	Port     int    `mapstructure:"port" envconfig:"SMTP_PORT"`
	Username string `mapstructure:"username" envconfig:"SMTP_USERNAME"`
	Password string `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
	From     string `mapstructure:"from" envconfig:"SMTP_FROM"`
}

// LoadConfig reads config.yaml, then lets environment variables override it.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.lock_ttl", 5*time.Second)
	viper.SetDefault("scheduling.slot_minutes", 30)
	viper.SetDefault("scheduling.work_start", "09:00")
	viper.SetDefault("scheduling.work_end", "17:00")
	viper.SetDefault("scheduling.timezone", "UTC")
	viper.SetDefault("scheduling.slot_cache_ttl", 30*time.Second)
	viper.SetDefault("billing.number_prefix", "BILL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment overrides: %w", err)
	}

	return &config, nil
}

// WorkWindow parses the configured HH:MM bounds.
func (c SchedulingConfig) WorkWindow() (startHour, startMin, endHour, endMin int, err error) {
	if _, err = fmt.Sscanf(c.WorkStart, "%d:%d", &startHour, &startMin); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid work_start %q: %w", c.WorkStart, err)
	}
	if _, err = fmt.Sscanf(c.WorkEnd, "%d:%d", &endHour, &endMin); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid work_end %q: %w", c.WorkEnd, err)
	}
	return startHour, startMin, endHour, endMin, nil
}
