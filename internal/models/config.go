package models

import "time"

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Redemption RedemptionConfig
	Audit      AuditConfig
	Server     ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path                  string
	MaxOpenConns          int
	MaxIdleConns          int
	ConnMaxLifetime       time.Duration
	ConnMaxIdleTime       time.Duration
	PingTimeout           time.Duration
	CreateDummyHouseholds bool
}

// RedemptionConfig holds redeem code settings
type RedemptionConfig struct {
	CodeTTL       time.Duration
	CodeLength    int
	SweepInterval time.Duration
	TranchesFile  string
}

// AuditConfig holds audit sink settings
type AuditConfig struct {
	BucketSize    time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

// ServerConfig holds settings for the long-running daemon
type ServerConfig struct {
	MetricsAddr string
}
