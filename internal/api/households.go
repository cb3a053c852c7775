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
	"errors"
	"fmt"

	"household-voucher-go/internal/models"
	"household-voucher-go/internal/store"

	"go.uber.org/zap"
)

func (s *VoucherService) RegisterHousehold(ctx context.Context, profile models.HouseholdProfile) (*models.Household, error) {
	household, err := s.registry.RegisterHousehold(ctx, profile)
	if err != nil {
		if !errors.Is(err, store.ErrDuplicateHousehold) && !errors.Is(err, store.ErrInvalidProfile) {
			zap.L().Error("Household registration failed", zap.String("email", profile.Email), zap.Error(err))
		}
		return nil, err
	}
	return household, nil
}

func (s *VoucherService) RegisterMerchant(ctx context.Context, profile models.MerchantProfile) (*models.Merchant, error) {
	merchant, err := s.registry.RegisterMerchant(ctx, profile)
	if err != nil {
		if !errors.Is(err, store.ErrDuplicateMerchant) &&
			!errors.Is(err, store.ErrInvalidProfile) &&
			!errors.Is(err, store.ErrInvalidBankDetails) {
			zap.L().Error("Merchant registration failed",
				zap.String("registration_number", profile.RegistrationNumber),
				zap.Error(err))
		}
		return nil, err
	}
	return merchant, nil
}

func (s *VoucherService) Household(householdId string) (models.Household, bool) {
	return s.registry.Household(householdId)
}

func (s *VoucherService) Households() []models.Household {
	return s.registry.Households()
}

func (s *VoucherService) Merchant(merchantId string) (models.Merchant, bool) {
	return s.registry.Merchant(merchantId)
}

// SetMerchantStatus activates, parks or suspends a merchant. Only active
// merchants can verify or confirm codes.
func (s *VoucherService) SetMerchantStatus(ctx context.Context, merchantId string, status models.MerchantStatus) (*models.Merchant, error) {
	return s.registry.SetMerchantStatus(ctx, merchantId, status)
}

// ClaimTranche mints the catalog tranche's vouchers for the household.
func (s *VoucherService) ClaimTranche(ctx context.Context, householdId, trancheId string) ([]models.Voucher, error) {
	tranche, ok := s.catalog[trancheId]
	if !ok {
		err := fmt.Errorf("%w: %s is not in the catalog", store.ErrInvalidTranche, trancheId)
		s.metrics.Rejected("claim", err)
		return nil, err
	}
	if !tranche.OpenAt(s.now()) {
		err := fmt.Errorf("%w: %s is not open for claims", store.ErrInvalidTranche, trancheId)
		s.metrics.Rejected("claim", err)
		return nil, err
	}
	return s.claims.ClaimTranche(ctx, householdId, trancheId, tranche.Plan)
}

// GetBalance returns the household's active vouchers grouped by denomination.
func (s *VoucherService) GetBalance(_ context.Context, householdId string) (*models.BalanceSummary, error) {
	if _, ok := s.registry.Household(householdId); !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownHousehold, householdId)
	}
	balance := s.ledger.Balance(householdId)
	return &balance, nil
}

// RemainingVouchers reports what the household has left per tranche. With a
// tranche id only that tranche is reported, and a tranche the household never
// claimed is ErrInvalidTranche.
func (s *VoucherService) RemainingVouchers(_ context.Context, householdId, trancheId string) (*models.RemainingSummary, error) {
	if _, ok := s.registry.Household(householdId); !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownHousehold, householdId)
	}
	remaining := s.ledger.Remaining(householdId)
	if trancheId == "" {
		return &remaining, nil
	}

	for _, t := range remaining.Tranches {
		if t.TrancheId == trancheId {
			return &models.RemainingSummary{
				HouseholdId: householdId,
				Tranches:    []models.TrancheRemaining{t},
				Total:       t.Total,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: household %s has no vouchers from tranche %s", store.ErrInvalidTranche, householdId, trancheId)
}

// Vouchers returns every voucher the household was ever given, redeemed ones included.
func (s *VoucherService) Vouchers(_ context.Context, householdId string) ([]models.Voucher, error) {
	if _, ok := s.registry.Household(householdId); !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownHousehold, householdId)
	}
	return s.ledger.Vouchers(householdId), nil
}
