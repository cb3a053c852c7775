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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// HouseholdProfile is the registration input for a household
type HouseholdProfile struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	PostalCode string `json:"postal_code"`
}

// MerchantProfile is the registration input for a merchant
type MerchantProfile struct {
	BusinessName       string         `json:"business_name"`
	RegistrationNumber string         `json:"registration_number"`
	Bank               BankDetails    `json:"bank"`
	Status             MerchantStatus `json:"status,omitempty"` // active when empty
}

// DenominationGroup lists the active vouchers of one denomination
type DenominationGroup struct {
	Denomination decimal.Decimal `json:"denomination"`
	Count        int             `json:"count"`
	VoucherIds   []string        `json:"voucher_ids"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	RunningTotal decimal.Decimal `json:"running_total"`
}

// BalanceSummary is a household's spendable vouchers, largest denomination first
type BalanceSummary struct {
	HouseholdId string              `json:"household_id"`
	Groups      []DenominationGroup `json:"groups"`
	Count       int                 `json:"count"`
	Total       decimal.Decimal     `json:"total"`
}

// Counts maps each denomination (as a string) to the number of active vouchers.
func (b BalanceSummary) Counts() map[string]int {
	counts := make(map[string]int, len(b.Groups))
	for _, g := range b.Groups {
		counts[g.Denomination.String()] = g.Count
	}
	return counts
}

// Ticket is returned to a household when a redemption is initiated
type Ticket struct {
	Code       string          `json:"code"`
	VoucherIds []string        `json:"voucher_ids"`
	Total      decimal.Decimal `json:"total"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// VerificationSummary is what a merchant sees after verifying a code
type VerificationSummary struct {
	Code          string              `json:"code"`
	HouseholdId   string              `json:"household_id"`
	HouseholdName string              `json:"household_name,omitempty"`
	Groups        []DenominationGroup `json:"groups"`
	Total         decimal.Decimal     `json:"total"`
	ExpiresAt     time.Time           `json:"expires_at"`
}

// ConfirmationResult is returned once a merchant confirms a redemption
type ConfirmationResult struct {
	Code        string          `json:"code"`
	HouseholdId string          `json:"household_id"`
	MerchantId  string          `json:"merchant_id"`
	VoucherIds  []string        `json:"voucher_ids"`
	Total       decimal.Decimal `json:"total"`
	ConfirmedAt time.Time       `json:"confirmed_at"`
}

// TrancheRemaining is what a household has left to spend from one tranche
type TrancheRemaining struct {
	TrancheId string              `json:"tranche"`
	Groups    []DenominationGroup `json:"groups"`
	Count     int                 `json:"remaining_count"`
	Total     decimal.Decimal     `json:"remaining_total_value"`
}

// RemainingSummary breaks a household's unspent vouchers down by tranche
type RemainingSummary struct {
	HouseholdId string             `json:"household_id"`
	Tranches    []TrancheRemaining `json:"by_tranche"`
	Total       decimal.Decimal    `json:"grand_total_value"`
}

// MerchantSettlement is one merchant's payout for a settled bucket
type MerchantSettlement struct {
	MerchantId  string          `json:"merchant_id"`
	Redemptions int             `json:"redemptions"`
	Vouchers    int             `json:"vouchers"`
	Total       decimal.Decimal `json:"total"`
}

// Settlement rolls one audit bucket up into per-merchant payouts
type Settlement struct {
	Bucket      time.Time            `json:"bucket"`
	Records     []AuditRecord        `json:"records"`
	Merchants   []MerchantSettlement `json:"merchants"`
	Redemptions int                  `json:"redemptions"`
	Vouchers    int                  `json:"vouchers"`
	Total       decimal.Decimal      `json:"total"`
}
