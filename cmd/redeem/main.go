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
	"strings"

	"household-voucher-go/internal/api"
	"household-voucher-go/internal/common"
	"household-voucher-go/internal/config"

	"go.uber.org/zap"
)

type redeemRequest struct {
	action     string
	email      string
	merchantId string
	code       string
	voucherIds []string
}

func parseAndValidateFlags() (*redeemRequest, error) {
	action := flag.String("action", "", "initiate, verify, confirm, cancel or status (required)")
	email := flag.String("email", "", "Household email (initiate, cancel)")
	merchant := flag.String("merchant", "", "Merchant id (verify, confirm)")
	code := flag.String("code", "", "Redeem code (verify, confirm, cancel, status)")
	vouchers := flag.String("vouchers", "", "Comma-separated voucher ids to redeem (initiate; default: every active voucher)")
	flag.Parse()

	req := &redeemRequest{
		action:     strings.ToLower(strings.TrimSpace(*action)),
		email:      strings.TrimSpace(*email),
		merchantId: strings.TrimSpace(*merchant),
		code:       strings.ToUpper(strings.TrimSpace(*code)),
	}
	if *vouchers != "" {
		for _, id := range strings.Split(*vouchers, ",") {
			if id = strings.TrimSpace(id); id != "" {
				req.voucherIds = append(req.voucherIds, id)
			}
		}
	}

	switch req.action {
	case "initiate":
		if req.email == "" {
			return nil, fmt.Errorf("-email is required to initiate")
		}
	case "verify", "confirm":
		if req.merchantId == "" || req.code == "" {
			return nil, fmt.Errorf("-merchant and -code are required to %s", req.action)
		}
	case "cancel":
		if req.email == "" || req.code == "" {
			return nil, fmt.Errorf("-email and -code are required to cancel")
		}
	case "status":
		if req.code == "" {
			return nil, fmt.Errorf("-code is required for status")
		}
	default:
		return nil, fmt.Errorf("unknown action %q", req.action)
	}
	return req, nil
}

func findHousehold(ctx context.Context, svc *api.VoucherService, email string) (common.HouseholdInfo, error) {
	households, err := common.FindHouseholds(ctx, svc, email)
	if err != nil {
		return common.HouseholdInfo{}, err
	}
	return households[0], nil
}

func initiate(ctx context.Context, svc *api.VoucherService, req *redeemRequest) error {
	household, err := findHousehold(ctx, svc, req.email)
	if err != nil {
		return err
	}

	voucherIds := req.voucherIds
	if len(voucherIds) == 0 {
		balance, err := svc.GetBalance(ctx, household.Id)
		if err != nil {
			return err
		}
		for _, g := range balance.Groups {
			voucherIds = append(voucherIds, g.VoucherIds...)
		}
	}

	ticket, err := svc.InitiateRedemption(ctx, household.Id, voucherIds)
	if err != nil {
		return err
	}

	common.PrintHeader("REDEEM CODE ISSUED", common.DefaultWidth)
	fmt.Printf("Household:  %s (%s)\n", household.Name, household.Email)
	fmt.Printf("Code:       %s\n", ticket.Code)
	fmt.Printf("Vouchers:   %d\n", len(ticket.VoucherIds))
	fmt.Printf("Total:      %s\n", ticket.Total.String())
	fmt.Printf("Expires:    %s\n", ticket.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	common.PrintSeparator("=", common.DefaultWidth)
	return nil
}

func verify(ctx context.Context, svc *api.VoucherService, req *redeemRequest) error {
	summary, err := svc.VerifyCode(ctx, req.merchantId, req.code)
	if err != nil {
		return err
	}

	common.PrintHeader("CODE VERIFIED", common.DefaultWidth)
	fmt.Printf("Code:       %s\n", summary.Code)
	fmt.Printf("Household:  %s\n", summary.HouseholdName)
	fmt.Printf("Expires:    %s\n", summary.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	common.PrintBoxSeparator(common.DefaultWidth - 2)
	common.PrintGroups(summary.Groups)
	common.PrintFooter(fmt.Sprintf("TOTAL: %s", summary.Total.String()), common.DefaultWidth)
	return nil
}

func confirm(ctx context.Context, svc *api.VoucherService, req *redeemRequest) error {
	result, err := svc.ConfirmRedemption(ctx, req.merchantId, req.code)
	if err != nil {
		return err
	}

	common.PrintHeader("REDEMPTION CONFIRMED", common.DefaultWidth)
	fmt.Printf("Code:       %s\n", result.Code)
	fmt.Printf("Merchant:   %s\n", result.MerchantId)
	fmt.Printf("Vouchers:   %s\n", common.FormatVoucherIds(result.VoucherIds))
	fmt.Printf("Total:      %s\n", result.Total.String())
	fmt.Printf("Confirmed:  %s\n", result.ConfirmedAt.Local().Format("2006-01-02 15:04:05"))
	common.PrintSeparator("=", common.DefaultWidth)
	return nil
}

func cancel(ctx context.Context, svc *api.VoucherService, req *redeemRequest) error {
	household, err := findHousehold(ctx, svc, req.email)
	if err != nil {
		return err
	}
	if err := svc.CancelRedemption(ctx, household.Id, req.code); err != nil {
		return err
	}
	fmt.Printf("Redeem code %s cancelled; its vouchers are available again\n", req.code)
	return nil
}

func status(svc *api.VoucherService, req *redeemRequest) error {
	r, ok := svc.Redemption(req.code)
	if !ok {
		return fmt.Errorf("redeem code %s not found", req.code)
	}

	common.PrintHeader("REDEEM CODE STATUS", common.DefaultWidth)
	fmt.Printf("Code:       %s\n", r.Code)
	fmt.Printf("Status:     %s\n", r.Status)
	fmt.Printf("Household:  %s\n", r.HouseholdId)
	fmt.Printf("Merchant:   %s\n", common.ShortId(r.MerchantId))
	fmt.Printf("Vouchers:   %s\n", common.FormatVoucherIds(r.VoucherIds))
	fmt.Printf("Total:      %s\n", r.Total.String())
	fmt.Printf("Expires:    %s\n", r.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	common.PrintSeparator("=", common.DefaultWidth)
	return nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
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

	svc := services.VoucherService
	switch req.action {
	case "initiate":
		err = initiate(ctx, svc, req)
	case "verify":
		err = verify(ctx, svc, req)
	case "confirm":
		err = confirm(ctx, svc, req)
	case "cancel":
		err = cancel(ctx, svc, req)
	case "status":
		err = status(svc, req)
	}

	if err != nil {
		common.PrintHeader(fmt.Sprintf("%s FAILED", strings.ToUpper(req.action)), common.DefaultWidth)
		fmt.Printf("Error: %v\n", err)
		common.PrintSeparator("=", common.DefaultWidth)
		zap.L().Error("Redeem action failed",
			zap.String("action", req.action),
			zap.String("code", req.code),
			zap.Error(err))
	}
}
