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
	"encoding/json"
	"errors"
	"fmt"

	"household-voucher-go/internal/models"
	"household-voucher-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaveRedemption upserts a pending redemption. Terminal rows only accept a
// re-save of the same status, so an expired or confirmed code never reopens.
func (s *Service) SaveRedemption(ctx context.Context, r models.PendingRedemption) error {
	zap.L().Debug("Saving pending redemption",
		zap.String("code", r.Code),
		zap.String("status", string(r.Status)))

	voucherIds, err := json.Marshal(r.VoucherIds)
	if err != nil {
		return fmt.Errorf("failed to encode voucher ids: %w", err)
	}

	result, err := s.db.ExecContext(ctx, queryUpsertRedemption,
		r.Code, r.HouseholdId, string(voucherIds), r.Total.String(), r.MerchantId, string(r.Status),
		r.CreatedAt.UTC(), r.ExpiresAt.UTC(), nullTime(r.VerifiedAt), nullTime(r.CompletedAt))
	if err != nil {
		zap.L().Error("Failed to upsert pending redemption", zap.String("code", r.Code), zap.Error(err))
		return fmt.Errorf("failed to upsert pending redemption: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: redemption %s is already terminal", store.ErrInvalidState, r.Code)
	}
	return nil
}

func (s *Service) GetRedemption(ctx context.Context, code string) (*models.PendingRedemption, error) {
	zap.L().Debug("Querying pending redemption", zap.String("code", code))

	r, err := scanRedemption(s.db.QueryRowContext(ctx, queryGetRedemptionByCode, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: redemption %s", store.ErrNotFound, code)
		}
		return nil, fmt.Errorf("unable to query pending redemption: %w", err)
	}
	return r, nil
}

func (s *Service) loadRedemptions(ctx context.Context) ([]models.PendingRedemption, error) {
	rows, err := s.db.QueryContext(ctx, queryGetRedemptions)
	if err != nil {
		return nil, fmt.Errorf("unable to query pending redemptions: %w", err)
	}
	defer closeRows(rows)

	var redemptions []models.PendingRedemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan pending redemption row: %w", err)
		}
		redemptions = append(redemptions, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending redemption rows: %w", err)
	}
	return redemptions, nil
}

func scanRedemption(row rowScanner) (*models.PendingRedemption, error) {
	var r models.PendingRedemption
	var voucherIds, totalStr, status string
	var verifiedAt, completedAt sql.NullTime
	if err := row.Scan(&r.Code, &r.HouseholdId, &voucherIds, &totalStr, &r.MerchantId, &status,
		&r.CreatedAt, &r.ExpiresAt, &verifiedAt, &completedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(voucherIds), &r.VoucherIds); err != nil {
		return nil, fmt.Errorf("failed to decode voucher ids for %s: %w", r.Code, err)
	}
	total, err := decimal.NewFromString(totalStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total '%s': %w", totalStr, err)
	}
	r.Total = total
	r.Status = models.RedemptionStatus(status)
	r.CreatedAt = r.CreatedAt.UTC()
	r.ExpiresAt = r.ExpiresAt.UTC()
	r.VerifiedAt = fromNullTime(verifiedAt)
	r.CompletedAt = fromNullTime(completedAt)
	return &r, nil
}
