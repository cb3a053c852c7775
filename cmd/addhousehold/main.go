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
	"strings"

	"household-voucher-go/internal/common"
	"household-voucher-go/internal/config"
	"household-voucher-go/internal/models"
	"household-voucher-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	name := flag.String("name", "", "Household name (required)")
	email := flag.String("email", "", "Contact email (required)")
	phone := flag.String("phone", "", "Contact phone (optional)")
	postalCode := flag.String("postal-code", "", "Postal code (required)")
	claim := flag.String("claim", "", "Comma-separated tranche ids to claim right away (optional)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	household, err := services.VoucherService.RegisterHousehold(ctx, models.HouseholdProfile{
		Name:       strings.TrimSpace(*name),
		Email:      *email,
		Phone:      *phone,
		PostalCode: *postalCode,
	})
	if err != nil {
		common.PrintHeader("REGISTRATION FAILED", common.DefaultWidth)
		switch {
		case errors.Is(err, store.ErrDuplicateHousehold):
			fmt.Printf("A household with email %s is already registered\n", *email)
		case errors.Is(err, store.ErrInvalidProfile):
			fmt.Printf("Invalid profile: %v\n", err)
		default:
			fmt.Printf("Error: %v\n", err)
		}
		common.PrintSeparator("=", common.DefaultWidth)
		zap.L().Fatal("Failed to register household", zap.Error(err))
	}

	common.PrintHeader("HOUSEHOLD REGISTERED", common.DefaultWidth)
	fmt.Printf("Name:         %s\n", household.Name)
	fmt.Printf("Email:        %s\n", household.Email)
	fmt.Printf("Postal code:  %s\n", household.PostalCode)
	fmt.Printf("ID:           %s\n", household.Id)

	if *claim == "" {
		common.PrintSeparator("=", common.DefaultWidth)
		return
	}

	common.PrintBoxSeparator(common.DefaultWidth - 2)
	for _, trancheId := range strings.Split(*claim, ",") {
		trancheId = strings.TrimSpace(trancheId)
		vouchers, err := services.VoucherService.ClaimTranche(ctx, household.Id, trancheId)
		if err != nil {
			fmt.Printf("✗ %s: %v\n", trancheId, err)
			zap.L().Error("Claim failed",
				zap.String("household_id", household.Id),
				zap.String("tranche_id", trancheId),
				zap.Error(err))
			continue
		}
		fmt.Printf("✓ %s: %d vouchers\n", trancheId, len(vouchers))
	}
	common.PrintSeparator("=", common.DefaultWidth)
}
