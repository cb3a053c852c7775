/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"household-voucher-go/internal/models"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	codeTTL, err := getEnvDuration("REDEMPTION_CODE_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	sweepInterval, err := getEnvDuration("SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	bucketSize, err := getEnvDuration("AUDIT_BUCKET_SIZE", time.Hour)
	if err != nil {
		return nil, err
	}

	retryBackoff, err := getEnvDuration("AUDIT_RETRY_BACKOFF", 200*time.Millisecond)
	if err != nil {
		return nil, err
	}

	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:                  getEnvString("DATABASE_PATH", "vouchers.db"),
			MaxOpenConns:          getEnvInt("DB_MAX_OPEN_CONNS", 1),
			MaxIdleConns:          getEnvInt("DB_MAX_IDLE_CONNS", 1),
			ConnMaxLifetime:       connMaxLifetime,
			ConnMaxIdleTime:       connMaxIdleTime,
			PingTimeout:           pingTimeout,
			CreateDummyHouseholds: getEnvBool("CREATE_DUMMY_HOUSEHOLDS", false),
		},
		Redemption: models.RedemptionConfig{
			CodeTTL:       codeTTL,
			CodeLength:    getEnvInt("REDEMPTION_CODE_LENGTH", 8),
			SweepInterval: sweepInterval,
			TranchesFile:  getEnvString("TRANCHES_FILE", "tranches.yaml"),
		},
		Audit: models.AuditConfig{
			BucketSize:    bucketSize,
			RetryAttempts: getEnvInt("AUDIT_RETRY_ATTEMPTS", 3),
			RetryBackoff:  retryBackoff,
		},
		Server: models.ServerConfig{
			MetricsAddr: os.Getenv("METRICS_ADDR"),
		},
	}
	if _, set := os.LookupEnv("METRICS_ADDR"); !set {
		cfg.Server.MetricsAddr = ":9090"
	}

	if cfg.Redemption.CodeTTL <= 0 {
		return nil, fmt.Errorf("REDEMPTION_CODE_TTL must be positive, got %v", cfg.Redemption.CodeTTL)
	}
	if cfg.Redemption.CodeLength < 6 {
		return nil, fmt.Errorf("REDEMPTION_CODE_LENGTH must be at least 6, got %d", cfg.Redemption.CodeLength)
	}
	if cfg.Audit.BucketSize <= 0 {
		return nil, fmt.Errorf("AUDIT_BUCKET_SIZE must be positive, got %v", cfg.Audit.BucketSize)
	}

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
