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

	"go.uber.org/zap"
)

// SaveHousehold upserts the household row and its claim rows in one transaction.
// Claim rows are only ever added.
func (s *Service) SaveHousehold(ctx context.Context, household models.Household) error {
	zap.L().Debug("Saving household",
		zap.String("household_id", household.Id),
		zap.Int("claims", len(household.Claims)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	_, err = tx.ExecContext(ctx, queryUpsertHousehold,
		household.Id, household.Name, household.Email, household.Phone, household.PostalCode, household.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email %s already registered", store.ErrDuplicateHousehold, household.Email)
		}
		return fmt.Errorf("failed to upsert household: %w", err)
	}

	for trancheId, claimedAt := range household.Claims {
		if _, err := tx.ExecContext(ctx, queryInsertClaim, household.Id, trancheId, claimedAt.UTC()); err != nil {
			return fmt.Errorf("failed to insert claim for tranche %s: %w", trancheId, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit household: %w", err)
	}
	return nil
}

func (s *Service) GetHousehold(ctx context.Context, householdId string) (*models.Household, error) {
	zap.L().Debug("Querying household by ID", zap.String("household_id", householdId))
	return s.getHousehold(ctx, queryGetHouseholdById, householdId)
}

func (s *Service) GetHouseholdByEmail(ctx context.Context, email string) (*models.Household, error) {
	zap.L().Debug("Querying household by email", zap.String("email", email))
	return s.getHousehold(ctx, queryGetHouseholdByEmail, email)
}

func (s *Service) getHousehold(ctx context.Context, query, arg string) (*models.Household, error) {
	household, err := scanHousehold(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: household %s", store.ErrNotFound, arg)
		}
		zap.L().Error("Failed to query household", zap.String("key", arg), zap.Error(err))
		return nil, fmt.Errorf("unable to query household: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryGetClaimsByHousehold, household.Id)
	if err != nil {
		return nil, fmt.Errorf("unable to query claims: %w", err)
	}
	defer closeRows(rows)

	for rows.Next() {
		var trancheId string
		var claimedAt time.Time
		if err := rows.Scan(&trancheId, &claimedAt); err != nil {
			return nil, fmt.Errorf("unable to scan claim row: %w", err)
		}
		household.Claims[trancheId] = claimedAt.UTC()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claim rows: %w", err)
	}

	return household, nil
}

// loadHouseholds returns every household with its claims.
func (s *Service) loadHouseholds(ctx context.Context) ([]models.Household, error) {
	rows, err := s.db.QueryContext(ctx, queryGetHouseholds)
	if err != nil {
		return nil, fmt.Errorf("unable to query households: %w", err)
	}
	defer closeRows(rows)

	var households []models.Household
	index := make(map[string]int)
	for rows.Next() {
		household, err := scanHousehold(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan household row: %w", err)
		}
		index[household.Id] = len(households)
		households = append(households, *household)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating household rows: %w", err)
	}

	claimRows, err := s.db.QueryContext(ctx, queryGetAllClaims)
	if err != nil {
		return nil, fmt.Errorf("unable to query claims: %w", err)
	}
	defer closeRows(claimRows)

	for claimRows.Next() {
		var householdId, trancheId string
		var claimedAt time.Time
		if err := claimRows.Scan(&householdId, &trancheId, &claimedAt); err != nil {
			return nil, fmt.Errorf("unable to scan claim row: %w", err)
		}
		i, ok := index[householdId]
		if !ok {
			zap.L().Warn("Claim row for unknown household", zap.String("household_id", householdId))
			continue
		}
		households[i].Claims[trancheId] = claimedAt.UTC()
	}
	if err := claimRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claim rows: %w", err)
	}

	return households, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHousehold(row rowScanner) (*models.Household, error) {
	household := &models.Household{Claims: make(map[string]time.Time)}
	if err := row.Scan(&household.Id, &household.Name, &household.Email, &household.Phone,
		&household.PostalCode, &household.CreatedAt); err != nil {
		return nil, err
	}
	household.CreatedAt = household.CreatedAt.UTC()
	return household, nil
}
