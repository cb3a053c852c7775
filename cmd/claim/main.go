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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"household-voucher-go/internal/api"
	"household-voucher-go/internal/common"
	"household-voucher-go/internal/config"
	"household-voucher-go/internal/ledger"
	"household-voucher-go/internal/store"

	"go.uber.org/zap"
)

type claimStats struct {
	claimed        int
	alreadyClaimed int
	failed         int
	vouchers       int
}

func claimForHousehold(ctx context.Context, svc *api.VoucherService, household common.HouseholdInfo, trancheId string, stats *claimStats) {
	vouchers, err := svc.ClaimTranche(ctx, household.Id, trancheId)
	switch {
	case err == nil:
		_, total := ledger.Group(vouchers)
		stats.claimed++
		stats.vouchers += len(vouchers)
		fmt.Printf("  ✓ %-24s %3d vouchers, total %s\n", household.Name, len(vouchers), total.String())
	case errors.Is(err, store.ErrAlreadyClaimed):
		stats.alreadyClaimed++
		fmt.Printf("  - %-24s already claimed\n", household.Name)
	default:
		stats.failed++
		fmt.Printf("  ✗ %-24s %v\n", household.Name, err)
		zap.L().Error("Claim failed",
			zap.String("household_id", household.Id),
			zap.String("tranche_id", trancheId),
			zap.Error(err))
	}
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	trancheId := flag.String("tranche", "", "Tranche id to claim (required)")
	emailFlag := flag.String("email", "", "Claim for the household with this email (default: every household)")
	flag.Parse()

	if *trancheId == "" {
		zap.L().Fatal("Missing -tranche flag")
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	households, err := common.FindHouseholds(ctx, services.VoucherService, *emailFlag)
	if err != nil {
		zap.L().Fatal("Failed to find households", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("CLAIMING TRANCHE %s", *trancheId), common.DefaultWidth)

	stats := &claimStats{}
	for _, household := range households {
		claimForHousehold(ctx, services.VoucherService, household, *trancheId, stats)
	}

	common.PrintFooter(fmt.Sprintf("SUMMARY: %d claimed (%d vouchers), %d already claimed, %d failed",
		stats.claimed, stats.vouchers, stats.alreadyClaimed, stats.failed), common.DefaultWidth)

	zap.L().Info("Claim run completed",
		zap.String("tranche_id", *trancheId),
		zap.Int("claimed", stats.claimed),
		zap.Int("already_claimed", stats.alreadyClaimed),
		zap.Int("failed", stats.failed))
}
