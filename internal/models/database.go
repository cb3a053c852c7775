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

// VoucherState is the lifecycle state of a voucher
type VoucherState string

const (
	VoucherActive   VoucherState = "active"
	VoucherRedeemed VoucherState = "redeemed"
)

// RedemptionStatus is the lifecycle state of a pending redemption
type RedemptionStatus string

const (
	RedemptionIssued    RedemptionStatus = "issued"
	RedemptionVerified  RedemptionStatus = "verified"
	RedemptionConfirmed RedemptionStatus = "confirmed"
	RedemptionExpired   RedemptionStatus = "expired"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s RedemptionStatus) Terminal() bool {
	return s == RedemptionConfirmed || s == RedemptionExpired || s == RedemptionCancelled
}

// MerchantStatus gates whether a merchant may accept redeem codes
type MerchantStatus string

const (
	MerchantActive    MerchantStatus = "active"
	MerchantPending   MerchantStatus = "pending"
	MerchantSuspended MerchantStatus = "suspended"
)

func (s MerchantStatus) Valid() bool {
	return s == MerchantActive || s == MerchantPending || s == MerchantSuspended
}

// Household represents a registered household and the tranches it has claimed
type Household struct {
	Id         string               `db:"id"`
	Name       string               `db:"name"`
	Email      string               `db:"email"`
	Phone      string               `db:"phone"`
	PostalCode string               `db:"postal_code"`
	Claims     map[string]time.Time `db:"-"` // tranche id -> claimed at
	CreatedAt  time.Time            `db:"created_at"`
}

// HasClaimed reports whether the tranche is already claimed.
func (h *Household) HasClaimed(trancheId string) bool {
	_, ok := h.Claims[trancheId]
	return ok
}

// Clone returns a copy that shares no maps with h.
func (h Household) Clone() Household {
	claims := make(map[string]time.Time, len(h.Claims))
	for k, v := range h.Claims {
		claims[k] = v
	}
	h.Claims = claims
	return h
}

// BankDetails holds the payout account of a merchant
type BankDetails struct {
	AccountHolder string `db:"account_holder"`
	BankName      string `db:"bank_name"`
	BankCode      string `db:"bank_code"`
	BranchCode    string `db:"branch_code"`
	BranchName    string `db:"branch_name"` // resolved from the bank table at registration
	AccountNumber string `db:"account_number"`
}

// Merchant represents a registered merchant that accepts vouchers
type Merchant struct {
	Id                 string         `db:"id"`
	BusinessName       string         `db:"business_name"`
	RegistrationNumber string         `db:"registration_number"`
	Bank               BankDetails    `db:"-"`
	Status             MerchantStatus `db:"status"`
	CreatedAt          time.Time      `db:"created_at"`
}

// Voucher is a single fixed-denomination voucher owned by a household
type Voucher struct {
	Id             string          `db:"id"`
	HouseholdId    string          `db:"household_id"`
	TrancheId      string          `db:"tranche_id"`
	Denomination   decimal.Decimal `db:"denomination"`
	State          VoucherState    `db:"state"`
	RedemptionCode string          `db:"redemption_code"`
	RedeemedAt     time.Time       `db:"redeemed_at"`
	CreatedAt      time.Time       `db:"created_at"`
}

// PendingRedemption tracks a redeem code from issuance until it is confirmed, expired or cancelled
type PendingRedemption struct {
	Code        string           `db:"code"`
	HouseholdId string           `db:"household_id"`
	VoucherIds  []string         `db:"voucher_ids"`
	Total       decimal.Decimal  `db:"total"`
	MerchantId  string           `db:"merchant_id"`
	Status      RedemptionStatus `db:"status"`
	CreatedAt   time.Time        `db:"created_at"`
	ExpiresAt   time.Time        `db:"expires_at"`
	VerifiedAt  time.Time        `db:"verified_at"`
	CompletedAt time.Time        `db:"completed_at"`
}

// Clone returns a copy that shares no slices with r.
func (r PendingRedemption) Clone() PendingRedemption {
	r.VoucherIds = append([]string(nil), r.VoucherIds...)
	return r
}

// AuditRecord is an append-only entry written once a redemption is confirmed
type AuditRecord struct {
	Id          string          `db:"id"`
	Bucket      time.Time       `db:"bucket"`
	Timestamp   time.Time       `db:"timestamp"`
	Code        string          `db:"code"`
	MerchantId  string          `db:"merchant_id"`
	HouseholdId string          `db:"household_id"`
	VoucherIds  []string        `db:"voucher_ids"`
	Total       decimal.Decimal `db:"total"`
}
