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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"household-voucher-go/internal/models"
	"household-voucher-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.VoucherStore.
var _ store.VoucherStore = (*Service)(nil)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(ctx, cfg.CreateDummyHouseholds); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// Ping checks the connection is still usable.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Service) initSchema(ctx context.Context, createDummyHouseholds bool) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	// Insert 3 dummy households for testing if configured to do so
	if createDummyHouseholds {
		households := []models.Household{
			{Id: uuid.New().String(), Name: "Tan Household", Email: "tan.family@example.com", PostalCode: "560123"},
			{Id: uuid.New().String(), Name: "Lim Household", Email: "lim.family@example.com", PostalCode: "310045"},
			{Id: uuid.New().String(), Name: "Kumar Household", Email: "kumar.family@example.com", PostalCode: "650289"},
		}

		for _, h := range households {
			h.CreatedAt = time.Now().UTC()
			if err := s.SaveHousehold(ctx, h); err != nil {
				if errors.Is(err, store.ErrDuplicateHousehold) {
					continue
				}
				zap.L().Error("Failed to insert dummy household", zap.String("name", h.Name), zap.Error(err))
			} else {
				zap.L().Info("Dummy household created", zap.String("id", h.Id), zap.String("name", h.Name))
			}
		}
	} else {
		zap.L().Info("Skipping dummy household creation (CREATE_DUMMY_HOUSEHOLDS=false)")
	}

	return nil
}

const schema = `
	-- Households and the tranches they have claimed
	CREATE TABLE IF NOT EXISTS households (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_households_email ON households(email);

	CREATE TABLE IF NOT EXISTS household_claims (
		household_id TEXT NOT NULL REFERENCES households(id),
		tranche_id TEXT NOT NULL,
		claimed_at TIMESTAMP NOT NULL,
		PRIMARY KEY (household_id, tranche_id)
	);

	-- Merchants accepting vouchers
	CREATE TABLE IF NOT EXISTS merchants (
		id TEXT PRIMARY KEY,
		business_name TEXT NOT NULL,
		registration_number TEXT NOT NULL UNIQUE,
		account_holder TEXT NOT NULL,
		bank_name TEXT NOT NULL,
		bank_code TEXT NOT NULL,
		branch_code TEXT NOT NULL,
		branch_name TEXT NOT NULL DEFAULT '',
		account_number TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'pending', 'suspended')),
		created_at TIMESTAMP NOT NULL
	);

	-- Vouchers (state only ever moves active -> redeemed)
	CREATE TABLE IF NOT EXISTS vouchers (
		id TEXT PRIMARY KEY,
		household_id TEXT NOT NULL,
		tranche_id TEXT NOT NULL,
		denomination TEXT NOT NULL,
		state TEXT NOT NULL CHECK (state IN ('active', 'redeemed')),
		redemption_code TEXT NOT NULL DEFAULT '',
		redeemed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_vouchers_household ON vouchers(household_id);
	CREATE INDEX IF NOT EXISTS idx_vouchers_household_tranche ON vouchers(household_id, tranche_id);

	-- Pending redemptions keyed by redeem code (terminal rows are kept so codes are never reused)
	CREATE TABLE IF NOT EXISTS pending_redemptions (
		code TEXT PRIMARY KEY,
		household_id TEXT NOT NULL,
		voucher_ids TEXT NOT NULL,
		total TEXT NOT NULL,
		merchant_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		verified_at TIMESTAMP,
		completed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pending_redemptions_status ON pending_redemptions(status);
	CREATE INDEX IF NOT EXISTS idx_pending_redemptions_household ON pending_redemptions(household_id);

	-- Append-only audit trail grouped into time buckets
	CREATE TABLE IF NOT EXISTS audit_records (
		id TEXT PRIMARY KEY,
		bucket TIMESTAMP NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		code TEXT NOT NULL UNIQUE,
		merchant_id TEXT NOT NULL,
		household_id TEXT NOT NULL,
		voucher_ids TEXT NOT NULL,
		total TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_records_bucket ON audit_records(bucket);
	`

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		zap.L().Warn("Failed to roll back transaction", zap.Error(err))
	}
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}
