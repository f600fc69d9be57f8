// Package config loads application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envFile = ".env"

type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int    `mapstructure:"max_conns"`
}

type AuthConfig struct {
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
}

// NewConfig loads configuration from environment using viper with typed defaults and validation.
func NewConfig() (*Config, error) {
	v := viper.New()
	if envMap, err := godotenv.Read(envFile); err == nil {
		for k, val := range envMap {
			if _, exists := os.LookupEnv(k); !exists {
				_ = os.Setenv(k, val)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.db_name", "taskdb")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)

	v.SetDefault("auth.private_key_path", "/etc/certs/private_key.pem")
	v.SetDefault("auth.public_key_path", "/etc/certs/public_key.pem")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
}

func bindEnvs(v *viper.Viper) {
	keys := []string{
		"logging.level",
		"server.host",
		"server.port",
		"server.shutdown_timeout",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.db_name",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"auth.private_key_path",
		"auth.public_key_path",
		"auth.token_ttl",
		"auth.bcrypt_cost",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("invalid token ttl: %s", c.Auth.TokenTTL)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("invalid bcrypt cost: %d", c.Auth.BcryptCost)
	}
	return nil
}

func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User, c.Postgres.Password, c.Postgres.Host, c.Postgres.Port, c.Postgres.DBName, c.Postgres.SSLMode)
}
