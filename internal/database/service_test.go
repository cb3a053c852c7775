package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"household-voucher-go/internal/models"
	"household-voucher-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDb(t *testing.T) *Service {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err, "Failed to open test database")
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	service := &Service{db: db}
	require.NoError(t, service.initSchema(context.Background(), false), "Failed to create test schema")

	t.Cleanup(func() { db.Close() })
	return service
}

var testTime = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func testHousehold(id, email string) models.Household {
	return models.Household{
		Id:         id,
		Name:       "Household " + id,
		Email:      email,
		PostalCode: "560123",
		Claims:     map[string]time.Time{},
		CreatedAt:  testTime,
	}
}

func TestSaveHousehold_RoundTripWithClaims(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	h := testHousehold("h1", "h1@example.com")
	require.NoError(t, service.SaveHousehold(ctx, h))

	h.Claims["2026-jan"] = testTime.Add(time.Minute)
	require.NoError(t, service.SaveHousehold(ctx, h))

	got, err := service.GetHousehold(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "h1@example.com", got.Email)
	assert.True(t, got.HasClaimed("2026-jan"))
	assert.True(t, got.Claims["2026-jan"].Equal(testTime.Add(time.Minute)))

	byEmail, err := service.GetHouseholdByEmail(ctx, "h1@example.com")
	require.NoError(t, err)
	assert.Equal(t, "h1", byEmail.Id)
}

func TestSaveHousehold_DuplicateEmail(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	require.NoError(t, service.SaveHousehold(ctx, testHousehold("h1", "same@example.com")))
	err := service.SaveHousehold(ctx, testHousehold("h2", "same@example.com"))
	assert.ErrorIs(t, err, store.ErrDuplicateHousehold)
}

func TestGetHousehold_NotFound(t *testing.T) {
	service := setupTestDb(t)

	_, err := service.GetHousehold(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveMerchant_DuplicateRegistration(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	m := models.Merchant{
		Id:                 "m1",
		BusinessName:       "Corner Provisions",
		RegistrationNumber: "53012345A",
		Bank: models.BankDetails{
			AccountHolder: "Corner Provisions",
			BankName:      "DBS Bank Ltd",
			BankCode:      "7171",
			BranchCode:    "001",
			BranchName:    "Main Branch",
			AccountNumber: "1234567890",
		},
		Status:    models.MerchantActive,
		CreatedAt: testTime,
	}
	require.NoError(t, service.SaveMerchant(ctx, m))

	got, err := service.GetMerchant(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, m.Bank, got.Bank)
	assert.Equal(t, models.MerchantActive, got.Status)

	m.Status = models.MerchantSuspended
	require.NoError(t, service.SaveMerchant(ctx, m))
	got, err = service.GetMerchant(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.MerchantSuspended, got.Status)

	m.Id = "m2"
	assert.ErrorIs(t, service.SaveMerchant(ctx, m), store.ErrDuplicateMerchant)
}

func TestSaveVouchers_RedeemedIsNeverReverted(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	v := models.Voucher{
		Id:           "v1",
		HouseholdId:  "h1",
		TrancheId:    "2026-jan",
		Denomination: decimal.NewFromInt(10),
		State:        models.VoucherActive,
		CreatedAt:    testTime,
	}
	require.NoError(t, service.SaveVouchers(ctx, []models.Voucher{v}))

	redeemed := v
	redeemed.State = models.VoucherRedeemed
	redeemed.RedemptionCode = "ABC123"
	redeemed.RedeemedAt = testTime.Add(time.Hour)
	require.NoError(t, service.SaveVouchers(ctx, []models.Voucher{redeemed}))

	// a stale active copy must not win
	require.NoError(t, service.SaveVouchers(ctx, []models.Voucher{v}))

	got, err := service.GetVoucher(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, models.VoucherRedeemed, got.State)
	assert.Equal(t, "ABC123", got.RedemptionCode)
	assert.True(t, got.RedeemedAt.Equal(testTime.Add(time.Hour)))
	assert.True(t, got.Denomination.Equal(decimal.NewFromInt(10)))
}

func TestSaveRedemption_TerminalIsFinal(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	r := models.PendingRedemption{
		Code:        "ABC123",
		HouseholdId: "h1",
		VoucherIds:  []string{"v1", "v2"},
		Total:       decimal.NewFromInt(15),
		Status:      models.RedemptionIssued,
		CreatedAt:   testTime,
		ExpiresAt:   testTime.Add(15 * time.Minute),
	}
	require.NoError(t, service.SaveRedemption(ctx, r))

	r.Status = models.RedemptionExpired
	r.CompletedAt = testTime.Add(20 * time.Minute)
	require.NoError(t, service.SaveRedemption(ctx, r))
	// same terminal status again is accepted
	require.NoError(t, service.SaveRedemption(ctx, r))

	reopened := r
	reopened.Status = models.RedemptionVerified
	reopened.MerchantId = "m1"
	assert.ErrorIs(t, service.SaveRedemption(ctx, reopened), store.ErrInvalidState)

	got, err := service.GetRedemption(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionExpired, got.Status)
	assert.Equal(t, []string{"v1", "v2"}, got.VoucherIds)
	assert.Empty(t, got.MerchantId)
	assert.True(t, got.VerifiedAt.IsZero())
}

func TestAppendAudit_BucketAndDedupe(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	bucket := testTime.Truncate(time.Hour)
	record := models.AuditRecord{
		Id:          "a1",
		Bucket:      bucket,
		Timestamp:   testTime,
		Code:        "ABC123",
		MerchantId:  "m1",
		HouseholdId: "h1",
		VoucherIds:  []string{"v1", "v2"},
		Total:       decimal.NewFromInt(15),
	}
	require.NoError(t, service.AppendAudit(ctx, record))

	record.Id = "a2"
	require.NoError(t, service.AppendAudit(ctx, record))

	records, err := service.AuditBucket(ctx, bucket)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a1", records[0].Id)
	assert.True(t, records[0].Total.Equal(decimal.NewFromInt(15)))

	empty, err := service.AuditBucket(ctx, bucket.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLoad_ReturnsCommittedState(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	h := testHousehold("h1", "h1@example.com")
	h.Claims["2026-jan"] = testTime
	require.NoError(t, service.SaveHousehold(ctx, h))
	require.NoError(t, service.SaveVouchers(ctx, []models.Voucher{
		{Id: "v1", HouseholdId: "h1", TrancheId: "2026-jan", Denomination: decimal.NewFromInt(10), State: models.VoucherActive, CreatedAt: testTime},
		{Id: "v2", HouseholdId: "h1", TrancheId: "2026-jan", Denomination: decimal.NewFromInt(5), State: models.VoucherActive, CreatedAt: testTime},
	}))
	require.NoError(t, service.SaveRedemption(ctx, models.PendingRedemption{
		Code: "ABC123", HouseholdId: "h1", VoucherIds: []string{"v1"}, Total: decimal.NewFromInt(10),
		Status: models.RedemptionIssued, CreatedAt: testTime, ExpiresAt: testTime.Add(15 * time.Minute),
	}))

	snapshot, err := service.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot.Households, 1)
	assert.True(t, snapshot.Households[0].HasClaimed("2026-jan"))
	assert.Len(t, snapshot.Vouchers, 2)
	require.Len(t, snapshot.Redemptions, 1)
	assert.Equal(t, models.RedemptionIssued, snapshot.Redemptions[0].Status)
	assert.Empty(t, snapshot.Merchants)
}
