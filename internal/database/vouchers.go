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

	"household-voucher-go/internal/models"
	"household-voucher-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaveVouchers upserts a batch of vouchers atomically. A row that is already
// redeemed is never changed, so a stale active copy cannot revert it.
func (s *Service) SaveVouchers(ctx context.Context, vouchers []models.Voucher) error {
	if len(vouchers) == 0 {
		return nil
	}

	zap.L().Debug("Saving vouchers", zap.Int("count", len(vouchers)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	stmt, err := tx.PrepareContext(ctx, queryUpsertVoucher)
	if err != nil {
		return fmt.Errorf("failed to prepare voucher upsert: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			zap.L().Warn("Failed to close statement", zap.Error(err))
		}
	}()

	for _, v := range vouchers {
		_, err := stmt.ExecContext(ctx,
			v.Id, v.HouseholdId, v.TrancheId, v.Denomination.String(), string(v.State),
			v.RedemptionCode, nullTime(v.RedeemedAt), v.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to upsert voucher %s: %w", v.Id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vouchers: %w", err)
	}
	return nil
}

func (s *Service) GetVoucher(ctx context.Context, voucherId string) (*models.Voucher, error) {
	zap.L().Debug("Querying voucher by ID", zap.String("voucher_id", voucherId))

	voucher, err := scanVoucher(s.db.QueryRowContext(ctx, queryGetVoucherById, voucherId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: voucher %s", store.ErrNotFound, voucherId)
		}
		return nil, fmt.Errorf("unable to query voucher: %w", err)
	}
	return voucher, nil
}

func (s *Service) loadVouchers(ctx context.Context) ([]models.Voucher, error) {
	rows, err := s.db.QueryContext(ctx, queryGetVouchers)
	if err != nil {
		return nil, fmt.Errorf("unable to query vouchers: %w", err)
	}
	defer closeRows(rows)

	var vouchers []models.Voucher
	for rows.Next() {
		voucher, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan voucher row: %w", err)
		}
		vouchers = append(vouchers, *voucher)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during voucher row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating voucher rows: %w", err)
	}
	return vouchers, nil
}

func scanVoucher(row rowScanner) (*models.Voucher, error) {
	var v models.Voucher
	var denominationStr, state string
	var redeemedAt sql.NullTime
	if err := row.Scan(&v.Id, &v.HouseholdId, &v.TrancheId, &denominationStr, &state,
		&v.RedemptionCode, &redeemedAt, &v.CreatedAt); err != nil {
		return nil, err
	}

	denomination, err := decimal.NewFromString(denominationStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse denomination '%s': %w", denominationStr, err)
	}
	v.Denomination = denomination
	v.State = models.VoucherState(state)
	v.RedeemedAt = fromNullTime(redeemedAt)
	v.CreatedAt = v.CreatedAt.UTC()
	return &v, nil
}
