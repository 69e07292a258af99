// internal/config/config.go
package config

import (
	"github.com/spf13/viper"

	"southmoney-ledger/pkg/db"
)

// RedisConfig holds the connection settings for the notification queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	DB         db.Config
	Redis      RedisConfig
	JWTSecret  string
}

// LoadConfig loads configuration from an optional .env file with
// environment variables taking precedence. Missing values fall back to
// local-development defaults.
func LoadConfig() (*AppConfig, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	// A missing .env file is fine; env vars and defaults cover everything.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "ledgerdb")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "5m")

	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_QUEUE", "notifications")

	viper.SetDefault("JWT_SECRET", "")

	return &AppConfig{
		ServerPort: viper.GetString("SERVER_PORT"),
		DB: db.Config{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			DBName:          viper.GetString("DB_NAME"),
			SSLMode:         viper.GetString("DB_SSLMODE"),
			MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: viper.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
			Queue:    viper.GetString("REDIS_QUEUE"),
		},
		JWTSecret: viper.GetString("JWT_SECRET"),
	}, nil
}
