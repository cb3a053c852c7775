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

package api

import (
	"context"
	"fmt"
	"time"

	"household-voucher-go/internal/models"
	"household-voucher-go/internal/store"
)

func (s *VoucherService) InitiateRedemption(ctx context.Context, householdId string, voucherIds []string) (*models.Ticket, error) {
	return s.coordinator.InitiateRedemption(ctx, householdId, voucherIds)
}

func (s *VoucherService) VerifyCode(ctx context.Context, merchantId, code string) (*models.VerificationSummary, error) {
	return s.coordinator.VerifyCode(ctx, merchantId, code)
}

func (s *VoucherService) ConfirmRedemption(ctx context.Context, merchantId, code string) (*models.ConfirmationResult, error) {
	return s.coordinator.ConfirmRedemption(ctx, merchantId, code)
}

func (s *VoucherService) CancelRedemption(ctx context.Context, householdId, code string) error {
	return s.coordinator.CancelRedemption(ctx, householdId, code)
}

// Redemption returns the current record of a redeem code.
func (s *VoucherService) Redemption(code string) (models.PendingRedemption, bool) {
	return s.coordinator.Redemption(code)
}

// RedemptionHistory lists every code the household was issued, in any
// status, oldest first.
func (s *VoucherService) RedemptionHistory(_ context.Context, householdId string) ([]models.PendingRedemption, error) {
	if _, ok := s.registry.Household(householdId); !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownHousehold, householdId)
	}
	return s.coordinator.History(householdId), nil
}

// ExpireStale runs one expiry sweep.
func (s *VoucherService) ExpireStale(ctx context.Context) (int, error) {
	return s.coordinator.ExpireStale(ctx)
}

// AuditBucket lists the confirmed redemptions logged in the bucket containing at.
func (s *VoucherService) AuditBucket(ctx context.Context, at time.Time) ([]models.AuditRecord, error) {
	records, err := s.audit.Bucket(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return records, nil
}

// SettleHour rolls the audit bucket containing at up into per-merchant payouts.
func (s *VoucherService) SettleHour(ctx context.Context, at time.Time) (*models.Settlement, error) {
	settlement, err := s.audit.Settle(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("failed to settle audit bucket: %w", err)
	}
	return settlement, nil
}
