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

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	businessName := flag.String("name", "", "Business name (required)")
	registration := flag.String("registration", "", "Business registration number (required)")
	holder := flag.String("account-holder", "", "Bank account holder (required)")
	bankName := flag.String("bank-name", "", "Bank name as listed in the payout bank table (required)")
	bankCode := flag.String("bank-code", "", "4-digit bank code (required)")
	branchCode := flag.String("branch-code", "", "3-digit branch code (required)")
	account := flag.String("account", "", "Bank account number, 6 to 20 digits (required)")
	status := flag.String("status", "", "Merchant status: active, pending or suspended (default active)")
	merchantId := flag.String("merchant", "", "Existing merchant ID; with -status, only changes its status")
	listBanks := flag.Bool("banks", false, "List the payout bank table and exit")
	flag.Parse()

	if *listBanks {
		common.PrintHeader("PAYOUT BANKS", common.DefaultWidth)
		for _, b := range models.Banks {
			fmt.Printf("%-26s %s  %s  %s\n", b.Name, b.Code, b.BranchCode, b.BranchName)
		}
		common.PrintSeparator("=", common.DefaultWidth)
		return
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

	if *merchantId != "" {
		merchant, err := services.VoucherService.SetMerchantStatus(ctx, *merchantId, models.MerchantStatus(*status))
		if err != nil {
			common.PrintHeader("STATUS CHANGE FAILED", common.DefaultWidth)
			fmt.Printf("Error: %v\n", err)
			common.PrintSeparator("=", common.DefaultWidth)
			zap.L().Fatal("Failed to change merchant status", zap.Error(err))
		}
		common.PrintHeader("MERCHANT STATUS", common.DefaultWidth)
		fmt.Printf("Business:      %s\n", merchant.BusinessName)
		fmt.Printf("Status:        %s\n", merchant.Status)
		common.PrintSeparator("=", common.DefaultWidth)
		return
	}

	merchant, err := services.VoucherService.RegisterMerchant(ctx, models.MerchantProfile{
		BusinessName:       *businessName,
		RegistrationNumber: *registration,
		Bank: models.BankDetails{
			AccountHolder: *holder,
			BankName:      *bankName,
			BankCode:      *bankCode,
			BranchCode:    *branchCode,
			AccountNumber: *account,
		},
		Status: models.MerchantStatus(*status),
	})
	if err != nil {
		common.PrintHeader("REGISTRATION FAILED", common.DefaultWidth)
		fmt.Printf("Error: %v\n", err)
		common.PrintSeparator("=", common.DefaultWidth)
		zap.L().Fatal("Failed to register merchant", zap.Error(err))
	}

	common.PrintHeader("MERCHANT REGISTERED", common.DefaultWidth)
	fmt.Printf("Business:      %s\n", merchant.BusinessName)
	fmt.Printf("Registration:  %s\n", merchant.RegistrationNumber)
	fmt.Printf("Bank:          %s, %s\n", merchant.Bank.BankName, merchant.Bank.BranchName)
	fmt.Printf("Payout:        %s-%s-%s (%s)\n",
		merchant.Bank.BankCode, merchant.Bank.BranchCode, merchant.Bank.AccountNumber, merchant.Bank.AccountHolder)
	fmt.Printf("Status:        %s\n", merchant.Status)
	fmt.Printf("ID:            %s\n", merchant.Id)
	common.PrintSeparator("=", common.DefaultWidth)
}
