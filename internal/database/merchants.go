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

	"go.uber.org/zap"
)

func (s *Service) SaveMerchant(ctx context.Context, merchant models.Merchant) error {
	zap.L().Debug("Saving merchant", zap.String("merchant_id", merchant.Id))

	_, err := s.db.ExecContext(ctx, queryUpsertMerchant,
		merchant.Id, merchant.BusinessName, merchant.RegistrationNumber,
		merchant.Bank.AccountHolder, merchant.Bank.BankName, merchant.Bank.BankCode,
		merchant.Bank.BranchCode, merchant.Bank.BranchName, merchant.Bank.AccountNumber,
		string(merchant.Status), merchant.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: registration number %s already registered", store.ErrDuplicateMerchant, merchant.RegistrationNumber)
		}
		zap.L().Error("Failed to upsert merchant", zap.String("merchant_id", merchant.Id), zap.Error(err))
		return fmt.Errorf("failed to upsert merchant: %w", err)
	}
	return nil
}

func (s *Service) GetMerchant(ctx context.Context, merchantId string) (*models.Merchant, error) {
	zap.L().Debug("Querying merchant by ID", zap.String("merchant_id", merchantId))

	merchant, err := scanMerchant(s.db.QueryRowContext(ctx, queryGetMerchantById, merchantId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: merchant %s", store.ErrNotFound, merchantId)
		}
		return nil, fmt.Errorf("unable to query merchant: %w", err)
	}
	return merchant, nil
}

func (s *Service) loadMerchants(ctx context.Context) ([]models.Merchant, error) {
	rows, err := s.db.QueryContext(ctx, queryGetMerchants)
	if err != nil {
		return nil, fmt.Errorf("unable to query merchants: %w", err)
	}
	defer closeRows(rows)

	var merchants []models.Merchant
	for rows.Next() {
		merchant, err := scanMerchant(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan merchant row: %w", err)
		}
		merchants = append(merchants, *merchant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating merchant rows: %w", err)
	}
	return merchants, nil
}

func scanMerchant(row rowScanner) (*models.Merchant, error) {
	var m models.Merchant
	var status string
	if err := row.Scan(&m.Id, &m.BusinessName, &m.RegistrationNumber,
		&m.Bank.AccountHolder, &m.Bank.BankName, &m.Bank.BankCode,
		&m.Bank.BranchCode, &m.Bank.BranchName, &m.Bank.AccountNumber,
		&status, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Status = models.MerchantStatus(status)
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}
