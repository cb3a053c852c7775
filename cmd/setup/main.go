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

	"household-voucher-go/internal/common"
	"household-voucher-go/internal/config"
	"household-voucher-go/internal/models"

	"go.uber.org/zap"
)

func printTranche(tranche models.Tranche, isLast bool) {
	window := "always open"
	switch {
	case !tranche.OpensAt.IsZero() && !tranche.ClosesAt.IsZero():
		window = fmt.Sprintf("%s to %s", tranche.OpensAt.Format("2006-01-02"), tranche.ClosesAt.Format("2006-01-02"))
	case !tranche.OpensAt.IsZero():
		window = "from " + tranche.OpensAt.Format("2006-01-02")
	case !tranche.ClosesAt.IsZero():
		window = "until " + tranche.ClosesAt.Format("2006-01-02")
	}

	fmt.Printf("%s %-12s %-24s total %8s  (%s)\n",
		common.BoxPrefix(isLast), tranche.Id, tranche.Name, tranche.Total().String(), window)
	for _, item := range tranche.Plan {
		fmt.Printf("     %6d x %s\n", item.Count, item.Denomination.String())
	}
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	initFlag := flag.Bool("init", false, "Only create the database schema, without loading the catalog")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	if *initFlag {
		dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
		if err != nil {
			zap.L().Fatal("Failed to initialize database", zap.Error(err))
		}
		dbService.Close()
		zap.L().Info("Database initialized", zap.String("path", cfg.Database.Path))
		return
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if err := services.VoucherService.HealthCheck(ctx); err != nil {
		zap.L().Fatal("Health check failed", zap.Error(err))
	}

	tranches := services.VoucherService.Tranches()
	common.PrintHeader("TRANCHE CATALOG", common.DefaultWidth)
	for i, tranche := range tranches {
		printTranche(tranche, i == len(tranches)-1)
	}

	households := services.VoucherService.Households()
	common.PrintFooter(fmt.Sprintf("SETUP OK: %d tranches, %d households, database %s",
		len(tranches), len(households), cfg.Database.Path), common.DefaultWidth)
}
