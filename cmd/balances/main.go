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
	"flag"
	"fmt"
	"time"

	"household-voucher-go/internal/api"
	"household-voucher-go/internal/common"
	"household-voucher-go/internal/config"
	"household-voucher-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalHouseholds       int
	householdsWithBalance int
	activeVouchers        int
	total                 decimal.Decimal
}

func printHouseholdHeader(household common.HouseholdInfo, balance *models.BalanceSummary) {
	fmt.Printf("\n┌─ Household: %s (%s)\n", household.Name, household.Email)
	fmt.Printf("│  ID: %s\n", household.Id)
	fmt.Printf("│  Active vouchers: %d, total %s\n", balance.Count, balance.Total.String())
	common.PrintBoxSeparator(78)
}

func processHousehold(ctx context.Context, svc *api.VoucherService, household common.HouseholdInfo, stats *balanceStats) error {
	balance, err := svc.GetBalance(ctx, household.Id)
	if err != nil {
		return fmt.Errorf("failed to get balance: %w", err)
	}

	stats.totalHouseholds++
	if balance.Count == 0 {
		return nil
	}
	stats.householdsWithBalance++
	stats.activeVouchers += balance.Count
	stats.total = stats.total.Add(balance.Total)

	printHouseholdHeader(household, balance)
	common.PrintGroups(balance.Groups)
	return nil
}

func printRemaining(ctx context.Context, svc *api.VoucherService, household common.HouseholdInfo, trancheId string) error {
	remaining, err := svc.RemainingVouchers(ctx, household.Id, trancheId)
	if err != nil {
		return fmt.Errorf("failed to get remaining vouchers: %w", err)
	}

	fmt.Printf("\n┌─ Household: %s (%s)\n", household.Name, household.Email)
	fmt.Printf("│  Remaining across tranches: %s\n", remaining.Total.String())
	for _, t := range remaining.Tranches {
		common.PrintBoxSeparator(78)
		fmt.Printf("│  Tranche %s: %d vouchers, %s\n", t.TrancheId, t.Count, t.Total.String())
		common.PrintGroups(t.Groups)
	}
	return nil
}

func printHistory(ctx context.Context, svc *api.VoucherService, household common.HouseholdInfo) error {
	history, err := svc.RedemptionHistory(ctx, household.Id)
	if err != nil {
		return fmt.Errorf("failed to get redemption history: %w", err)
	}

	fmt.Printf("\n┌─ Household: %s (%s), %d codes\n", household.Name, household.Email, len(history))
	for i, r := range history {
		merchant := "-"
		if r.MerchantId != "" {
			merchant = common.ShortId(r.MerchantId)
		}
		fmt.Printf("%s %s  %-10s %-9s merchant %s  %8s  [%s]\n",
			common.BoxPrefix(i == len(history)-1),
			r.CreatedAt.Format(time.RFC3339),
			r.Code,
			r.Status,
			merchant,
			r.Total.String(),
			common.FormatVoucherIds(r.VoucherIds))
	}
	return nil
}

func printAuditBucket(ctx context.Context, svc *api.VoucherService, at time.Time) {
	records, err := svc.AuditBucket(ctx, at)
	if err != nil {
		zap.L().Fatal("Failed to read audit bucket", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("AUDIT LOG (bucket containing %s)", at.UTC().Format(time.RFC3339)), common.WideWidth)

	total := decimal.Zero
	for i, r := range records {
		total = total.Add(r.Total)
		fmt.Printf("%s %s  %-10s merchant %s  household %s  %8s  [%s]\n",
			common.BoxPrefix(i == len(records)-1),
			r.Timestamp.Format("15:04:05"),
			r.Code,
			common.ShortId(r.MerchantId),
			common.ShortId(r.HouseholdId),
			r.Total.String(),
			common.FormatVoucherIds(r.VoucherIds))
	}

	common.PrintFooter(fmt.Sprintf("SUMMARY: %d confirmed redemptions, total %s", len(records), total.String()), common.WideWidth)
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific household email (optional)")
	auditFlag := flag.Bool("audit", false, "Print the audit bucket instead of balances")
	atFlag := flag.String("at", "", "RFC3339 time selecting the audit bucket (default: now)")
	byTranche := flag.Bool("by-tranche", false, "Break remaining vouchers down by tranche")
	trancheFlag := flag.String("tranche", "", "Only report this tranche (implies -by-tranche)")
	historyFlag := flag.Bool("history", false, "Print each household's redemption history")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *auditFlag {
		at := time.Now()
		if *atFlag != "" {
			if at, err = time.Parse(time.RFC3339, *atFlag); err != nil {
				logger.Fatal("Invalid -at time", zap.String("at", *atFlag), zap.Error(err))
			}
		}
		printAuditBucket(ctx, services.VoucherService, at)
		return
	}

	households, err := common.FindHouseholds(ctx, services.VoucherService, *emailFlag)
	if err != nil {
		logger.Fatal("Failed to find households", zap.Error(err))
	}

	if *historyFlag || *byTranche || *trancheFlag != "" {
		title := "REMAINING VOUCHERS BY TRANCHE"
		if *historyFlag {
			title = "REDEMPTION HISTORY"
		}
		common.PrintHeader(title, common.DefaultWidth)
		for _, household := range households {
			if *historyFlag {
				err = printHistory(ctx, services.VoucherService, household)
			} else {
				err = printRemaining(ctx, services.VoucherService, household, *trancheFlag)
			}
			if err != nil {
				logger.Error("Failed to report household",
					zap.String("household_id", household.Id),
					zap.Error(err))
			}
		}
		common.PrintSeparator("=", common.DefaultWidth)
		return
	}

	common.PrintHeader("HOUSEHOLD VOUCHER BALANCES", common.DefaultWidth)

	stats := &balanceStats{total: decimal.Zero}
	for _, household := range households {
		if err := processHousehold(ctx, services.VoucherService, household, stats); err != nil {
			logger.Error("Failed to process household",
				zap.String("household_id", household.Id),
				zap.String("household_name", household.Name),
				zap.Error(err))
		}
	}

	common.PrintFooter(fmt.Sprintf("SUMMARY: %d of %d households hold %d active vouchers worth %s",
		stats.householdsWithBalance, stats.totalHouseholds, stats.activeVouchers, stats.total.String()), common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("households_queried", stats.totalHouseholds),
		zap.Int("households_with_balance", stats.householdsWithBalance),
		zap.Int("active_vouchers", stats.activeVouchers))
}
