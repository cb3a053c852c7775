package store

import (
	"context"
	"errors"

	"household-voucher-go/internal/models"
)

// Sentinel errors shared across all backend implementations and the domain packages.
var (
	// validation
	ErrUnknownHousehold        = errors.New("unknown household")
	ErrUnknownMerchant         = errors.New("unknown merchant")
	ErrInvalidTranche          = errors.New("invalid tranche")
	ErrInvalidDenominationPlan = errors.New("invalid denomination plan")
	ErrInvalidProfile          = errors.New("invalid profile")
	ErrInvalidBankDetails      = errors.New("invalid bank details")
	ErrVoucherNotFound         = errors.New("voucher not found")

	// state conflicts
	ErrDuplicateHousehold = errors.New("duplicate household")
	ErrDuplicateMerchant  = errors.New("duplicate merchant")
	ErrAlreadyClaimed     = errors.New("tranche already claimed")
	ErrVoucherUnavailable = errors.New("voucher unavailable")
	ErrInvalidState       = errors.New("invalid state")
	ErrCodeNotFound       = errors.New("redeem code not found")
	ErrCodeExpired        = errors.New("redeem code expired")
	ErrMerchantMismatch   = errors.New("merchant mismatch")
	ErrMerchantInactive   = errors.New("merchant not active")

	// lookups
	ErrNotFound = errors.New("record not found")
)

// Snapshot is the full committed state of a backend, as returned by Load.
type Snapshot struct {
	Households  []models.Household
	Merchants   []models.Merchant
	Vouchers    []models.Voucher
	Redemptions []models.PendingRedemption
}

// VoucherStore defines the contract that every backend (SQLite, in-memory, ...) must satisfy.
// Each Save call commits one entity's full record atomically: a later Load sees all of it or none of it.
type VoucherStore interface {
	Load(ctx context.Context) (*Snapshot, error)

	// --- Households ---
	SaveHousehold(ctx context.Context, household models.Household) error
	GetHousehold(ctx context.Context, householdId string) (*models.Household, error)
	GetHouseholdByEmail(ctx context.Context, email string) (*models.Household, error)

	// --- Merchants ---
	SaveMerchant(ctx context.Context, merchant models.Merchant) error
	GetMerchant(ctx context.Context, merchantId string) (*models.Merchant, error)

	// --- Vouchers ---
	// SaveVouchers commits the whole batch in one transaction.
	SaveVouchers(ctx context.Context, vouchers []models.Voucher) error
	GetVoucher(ctx context.Context, voucherId string) (*models.Voucher, error)

	// --- Pending redemptions ---
	SaveRedemption(ctx context.Context, redemption models.PendingRedemption) error
	GetRedemption(ctx context.Context, code string) (*models.PendingRedemption, error)

	// --- Lifecycle ---
	Close()
}
