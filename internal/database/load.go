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
	"fmt"

	"household-voucher-go/internal/store"

	"go.uber.org/zap"
)

// Load reads every committed household, merchant, voucher and pending redemption.
func (s *Service) Load(ctx context.Context) (*store.Snapshot, error) {
	households, err := s.loadHouseholds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load households: %w", err)
	}

	merchants, err := s.loadMerchants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load merchants: %w", err)
	}

	vouchers, err := s.loadVouchers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load vouchers: %w", err)
	}

	redemptions, err := s.loadRedemptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending redemptions: %w", err)
	}

	zap.L().Info("Loaded voucher state",
		zap.Int("households", len(households)),
		zap.Int("merchants", len(merchants)),
		zap.Int("vouchers", len(vouchers)),
		zap.Int("redemptions", len(redemptions)))

	return &store.Snapshot{
		Households:  households,
		Merchants:   merchants,
		Vouchers:    vouchers,
		Redemptions: redemptions,
	}, nil
}
