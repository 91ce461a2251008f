package config

import (
	"fmt"
)

type Config struct {
	Server ServerConfig `json:"server"`

	// Entity/view/token source of truth (document store)
	Mongo MongoConfig `json:"mongo"`

	// Dispatch audit log (relational)
	Database DatabaseConfig `json:"database"`

	// Firebase Cloud Messaging
	Firebase FirebaseConfig `json:"firebase"`

	// Unread aggregation and delivery tuning
	Notification NotificationConfig `json:"notification"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	Environment  string `json:"environment"` // development, staging, production
}

// MongoConfig contains document store connection configuration
type MongoConfig struct {
	URI      string `json:"uri"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Database string `json:"database"`
}

// DatabaseConfig contains the MySQL delivery-log connection configuration
type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DatabaseName string `json:"database_name"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

// FirebaseConfig contains Firebase Cloud Messaging configuration
type FirebaseConfig struct {
	ProjectID           string `json:"project_id"`
	CredentialsFilePath string `json:"credentials_file_path"`
	Enabled             bool   `json:"enabled"`
}

// NotificationConfig contains unread-aggregation and delivery tuning
type NotificationConfig struct {
	WindowSize       int64 `json:"window_size"`        // capped live-query result size per category
	ChunkSize        int   `json:"chunk_size"`         // mark-viewed batch chunk size
	ChunkDelayMS     int   `json:"chunk_delay_ms"`     // pause between mark-viewed chunks
	SetupTimeoutSec  int   `json:"setup_timeout_sec"`  // bound on initial snapshot fetch
	NoticeDismissSec int   `json:"notice_dismiss_sec"` // foreground notice auto-dismiss
}

func (cfg *Config) DSN() string {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "3306"
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DatabaseName,
	)
}

func (cfg *Config) GetMongoURI() string {
	if cfg.Mongo.URI != "" {
		return cfg.Mongo.URI
	}
	if cfg.Mongo.Host == "" {
		cfg.Mongo.Host = "localhost"
	}
	if cfg.Mongo.Port == "" {
		cfg.Mongo.Port = "27017"
	}
	return fmt.Sprintf("mongodb://%s:%s", cfg.Mongo.Host, cfg.Mongo.Port)
}
