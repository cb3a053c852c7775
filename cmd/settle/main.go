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
	"os"
	"path/filepath"
	"time"

	"household-voucher-go/internal/audit"
	"household-voucher-go/internal/common"
	"household-voucher-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	atFlag := flag.String("at", "", "RFC3339 time inside the hour to settle (default: the previous hour)")
	outDir := flag.String("out", "", "Directory to write the settlement CSV to (optional)")
	flag.Parse()

	at := time.Now().Add(-time.Hour)
	if *atFlag != "" {
		parsed, err := time.Parse(time.RFC3339, *atFlag)
		if err != nil {
			logger.Fatal("Invalid -at time", zap.String("at", *atFlag), zap.Error(err))
		}
		at = parsed
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	settlement, err := services.VoucherService.SettleHour(ctx, at)
	if err != nil {
		logger.Fatal("Failed to settle hour", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("SETTLEMENT %s", settlement.Bucket.Format(time.RFC3339)), common.WideWidth)
	for i, m := range settlement.Merchants {
		name := common.ShortId(m.MerchantId)
		if merchant, ok := services.VoucherService.Merchant(m.MerchantId); ok {
			name = merchant.BusinessName
		}
		fmt.Printf("%s %-30s %4d codes  %4d vouchers  %10s\n",
			common.BoxPrefix(i == len(settlement.Merchants)-1),
			name, m.Redemptions, m.Vouchers, m.Total.StringFixed(2))
	}
	common.PrintFooter(fmt.Sprintf("SUMMARY: %d merchants, %d redemptions, %d vouchers, total %s",
		len(settlement.Merchants), settlement.Redemptions, settlement.Vouchers, settlement.Total.StringFixed(2)), common.WideWidth)

	if *outDir == "" {
		return
	}

	data, checksum, err := audit.SettlementCSV(settlement)
	if err != nil {
		logger.Fatal("Failed to render settlement", zap.Error(err))
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Fatal("Failed to create output directory", zap.String("dir", *outDir), zap.Error(err))
	}
	path := filepath.Join(*outDir, audit.SettlementFileName(settlement.Bucket))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Fatal("Failed to write settlement", zap.String("path", path), zap.Error(err))
	}

	logger.Info("Settlement written",
		zap.String("path", path),
		zap.String("sha256", checksum),
		zap.Int("redemptions", settlement.Redemptions))
}
