package database

import (
	"fmt"
	"net/url"
	"time"

	"estatetoken/internal/config"
)

// Config holds database connection and pool settings.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsPath  string
}

// NewConfig derives the database configuration from the application config.
func NewConfig(cfg *config.Config) *Config {
	return &Config{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		DBName:          cfg.DBName,
		SSLMode:         cfg.DBSSLMode,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		MigrationsPath:  cfg.MigrationsPath,
	}
}

// DSN returns the key/value connection string for the gorm postgres driver.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// MigrationURL returns the postgres:// URL golang-migrate expects. Credentials
// are escaped so passwords may contain URL metacharacters.
func (c *Config) MigrationURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// SourceURL returns the file:// URL of the migrations directory.
func (c *Config) SourceURL() string {
	path := c.MigrationsPath
	if path == "" {
		path = "migrations"
	}
	return "file://" + path
}
