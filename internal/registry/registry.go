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

package registry

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"household-voucher-go/internal/models"
	"household-voucher-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	emailRegex         = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	postalCodeRegex    = regexp.MustCompile(`^[0-9]{4,10}$`)
	accountNumberRegex = regexp.MustCompile(`^[0-9]{6,20}$`)
)

// Bank lookup rejection reasons.
const (
	InvalidBankName   = "INVALID_BANK_NAME"
	InvalidBankCode   = "INVALID_BANK_CODE"
	InvalidBranchCode = "INVALID_BRANCH_CODE"
)

// BankLookupError reports which part of a bank/branch triple did not match
// the payout reference table.
type BankLookupError struct {
	Reason string
	Value  string
}

func (e *BankLookupError) Error() string {
	return fmt.Sprintf("%s: %s %q", store.ErrInvalidBankDetails, e.Reason, e.Value)
}

func (e *BankLookupError) Unwrap() error { return store.ErrInvalidBankDetails }

// LookupBank resolves a bank name, bank code and branch code against
// models.Banks. The name is matched first, then the code among the banks of
// that name, then the branch.
func LookupBank(name, code, branch string) (models.Bank, error) {
	var named []models.Bank
	for _, b := range models.Banks {
		if b.Name == name {
			named = append(named, b)
		}
	}
	if len(named) == 0 {
		return models.Bank{}, &BankLookupError{Reason: InvalidBankName, Value: name}
	}

	var coded []models.Bank
	for _, b := range named {
		if b.Code == code {
			coded = append(coded, b)
		}
	}
	if len(coded) == 0 {
		return models.Bank{}, &BankLookupError{Reason: InvalidBankCode, Value: code}
	}

	for _, b := range coded {
		if b.BranchCode == branch {
			return b, nil
		}
	}
	return models.Bank{}, &BankLookupError{Reason: InvalidBranchCode, Value: branch}
}

// Registry holds registered households and merchants. Households carry the
// per-tranche claim flags; the claim manager replaces them through Put.
type Registry struct {
	store store.VoucherStore
	now   func() time.Time

	regMu sync.Mutex // serializes registrations so uniqueness checks cannot race

	mu            sync.RWMutex
	households    map[string]models.Household
	emails        map[string]string // lower-cased email -> household id
	merchants     map[string]models.Merchant
	registrations map[string]string // registration number -> merchant id
}

func New(st store.VoucherStore, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		store:         st,
		now:           now,
		households:    make(map[string]models.Household),
		emails:        make(map[string]string),
		merchants:     make(map[string]models.Merchant),
		registrations: make(map[string]string),
	}
}

// Restore loads already-persisted records.
func (r *Registry) Restore(households []models.Household, merchants []models.Merchant) {
	for _, h := range households {
		r.Put(h)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range merchants {
		r.merchants[m.Id] = m
		r.registrations[m.RegistrationNumber] = m.Id
	}
}

func validateHouseholdProfile(p models.HouseholdProfile) error {
	if len(strings.TrimSpace(p.Name)) < 2 {
		return fmt.Errorf("%w: name must be at least 2 characters", store.ErrInvalidProfile)
	}
	if !emailRegex.MatchString(p.Email) {
		return fmt.Errorf("%w: invalid email format: %s", store.ErrInvalidProfile, p.Email)
	}
	if !postalCodeRegex.MatchString(p.PostalCode) {
		return fmt.Errorf("%w: invalid postal code: %s", store.ErrInvalidProfile, p.PostalCode)
	}
	return nil
}

// validateMerchantProfile returns the bank details with the branch name
// filled in from the reference table.
func validateMerchantProfile(p models.MerchantProfile) (models.BankDetails, error) {
	if len(strings.TrimSpace(p.BusinessName)) < 2 {
		return models.BankDetails{}, fmt.Errorf("%w: business name must be at least 2 characters", store.ErrInvalidProfile)
	}
	if strings.TrimSpace(p.RegistrationNumber) == "" {
		return models.BankDetails{}, fmt.Errorf("%w: registration number cannot be empty", store.ErrInvalidProfile)
	}
	if p.Status != "" && !p.Status.Valid() {
		return models.BankDetails{}, fmt.Errorf("%w: invalid merchant status %q", store.ErrInvalidProfile, p.Status)
	}

	bank := p.Bank
	bank.BankName = strings.TrimSpace(bank.BankName)
	if strings.TrimSpace(bank.AccountHolder) == "" {
		return models.BankDetails{}, fmt.Errorf("%w: account holder cannot be empty", store.ErrInvalidBankDetails)
	}
	if !accountNumberRegex.MatchString(bank.AccountNumber) {
		return models.BankDetails{}, fmt.Errorf("%w: account number must be 6 to 20 digits", store.ErrInvalidBankDetails)
	}

	branch, err := LookupBank(bank.BankName, bank.BankCode, bank.BranchCode)
	if err != nil {
		return models.BankDetails{}, err
	}
	bank.BranchName = branch.BranchName
	return bank, nil
}

func (r *Registry) RegisterHousehold(ctx context.Context, profile models.HouseholdProfile) (*models.Household, error) {
	profile.Email = strings.TrimSpace(profile.Email)
	if err := validateHouseholdProfile(profile); err != nil {
		return nil, err
	}

	r.regMu.Lock()
	defer r.regMu.Unlock()

	r.mu.RLock()
	existingId, taken := r.emails[strings.ToLower(profile.Email)]
	r.mu.RUnlock()
	if taken {
		zap.L().Warn("Duplicate household registration",
			zap.String("email", profile.Email),
			zap.String("existing_household_id", existingId))
		return nil, fmt.Errorf("%w: email %s already registered", store.ErrDuplicateHousehold, profile.Email)
	}

	household := models.Household{
		Id:         uuid.New().String(),
		Name:       strings.TrimSpace(profile.Name),
		Email:      profile.Email,
		Phone:      strings.TrimSpace(profile.Phone),
		PostalCode: profile.PostalCode,
		Claims:     make(map[string]time.Time),
		CreatedAt:  r.now().UTC(),
	}
	if err := r.store.SaveHousehold(ctx, household); err != nil {
		return nil, fmt.Errorf("failed to save household: %w", err)
	}
	r.Put(household)

	zap.L().Info("Household registered",
		zap.String("household_id", household.Id),
		zap.String("name", household.Name))

	clone := household.Clone()
	return &clone, nil
}

func (r *Registry) RegisterMerchant(ctx context.Context, profile models.MerchantProfile) (*models.Merchant, error) {
	bank, err := validateMerchantProfile(profile)
	if err != nil {
		return nil, err
	}
	status := profile.Status
	if status == "" {
		status = models.MerchantActive
	}

	r.regMu.Lock()
	defer r.regMu.Unlock()

	r.mu.RLock()
	_, taken := r.registrations[profile.RegistrationNumber]
	r.mu.RUnlock()
	if taken {
		return nil, fmt.Errorf("%w: registration number %s already registered", store.ErrDuplicateMerchant, profile.RegistrationNumber)
	}

	merchant := models.Merchant{
		Id:                 uuid.New().String(),
		BusinessName:       strings.TrimSpace(profile.BusinessName),
		RegistrationNumber: profile.RegistrationNumber,
		Bank:               bank,
		Status:             status,
		CreatedAt:          r.now().UTC(),
	}
	if err := r.store.SaveMerchant(ctx, merchant); err != nil {
		return nil, fmt.Errorf("failed to save merchant: %w", err)
	}

	r.mu.Lock()
	r.merchants[merchant.Id] = merchant
	r.registrations[merchant.RegistrationNumber] = merchant.Id
	r.mu.Unlock()

	zap.L().Info("Merchant registered",
		zap.String("merchant_id", merchant.Id),
		zap.String("business_name", merchant.BusinessName),
		zap.String("bank", bank.BankName),
		zap.String("status", string(status)))

	return &merchant, nil
}

// SetMerchantStatus moves a merchant between active, pending and suspended.
func (r *Registry) SetMerchantStatus(ctx context.Context, merchantId string, status models.MerchantStatus) (*models.Merchant, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: invalid merchant status %q", store.ErrInvalidProfile, status)
	}

	r.regMu.Lock()
	defer r.regMu.Unlock()

	merchant, ok := r.Merchant(merchantId)
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownMerchant, merchantId)
	}
	if merchant.Status == status {
		return &merchant, nil
	}

	previous := merchant.Status
	merchant.Status = status
	if err := r.store.SaveMerchant(ctx, merchant); err != nil {
		return nil, fmt.Errorf("failed to save merchant status: %w", err)
	}

	r.mu.Lock()
	r.merchants[merchant.Id] = merchant
	r.mu.Unlock()

	zap.L().Info("Merchant status changed",
		zap.String("merchant_id", merchant.Id),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))
	return &merchant, nil
}

// ActiveMerchant returns the merchant if it may accept redeem codes.
func (r *Registry) ActiveMerchant(merchantId string) (models.Merchant, error) {
	m, ok := r.Merchant(merchantId)
	if !ok {
		return models.Merchant{}, fmt.Errorf("%w: %s", store.ErrUnknownMerchant, merchantId)
	}
	if m.Status != models.MerchantActive {
		return models.Merchant{}, fmt.Errorf("%w: merchant %s is %s", store.ErrMerchantInactive, merchantId, m.Status)
	}
	return m, nil
}

// Household returns a copy of the household.
func (r *Registry) Household(householdId string) (models.Household, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.households[householdId]
	if !ok {
		return models.Household{}, false
	}
	return h.Clone(), true
}

// Households returns copies of every household ordered by registration time.
func (r *Registry) Households() []models.Household {
	r.mu.RLock()
	defer r.mu.RUnlock()

	households := make([]models.Household, 0, len(r.households))
	for _, h := range r.households {
		households = append(households, h.Clone())
	}
	sort.Slice(households, func(i, j int) bool {
		if !households[i].CreatedAt.Equal(households[j].CreatedAt) {
			return households[i].CreatedAt.Before(households[j].CreatedAt)
		}
		return households[i].Id < households[j].Id
	})
	return households
}

func (r *Registry) Merchant(merchantId string) (models.Merchant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.merchants[merchantId]
	return m, ok
}

// Put replaces the in-memory household with an already-persisted copy.
func (r *Registry) Put(household models.Household) {
	if household.Claims == nil {
		household.Claims = make(map[string]time.Time)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.households[household.Id] = household.Clone()
	r.emails[strings.ToLower(household.Email)] = household.Id
}
