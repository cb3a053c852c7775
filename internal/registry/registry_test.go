package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"household-voucher-go/internal/models"
	"household-voucher-go/internal/store"
	"household-voucher-go/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC) }

func validMerchant() models.MerchantProfile {
	return models.MerchantProfile{
		BusinessName:       "Ah Seng Provision Shop",
		RegistrationNumber: "53012345A",
		Bank: models.BankDetails{
			AccountHolder: "Ah Seng Provision Shop",
			BankName:      "DBS Bank Ltd",
			BankCode:      "7171",
			BranchCode:    "001",
			AccountNumber: "0123456789",
		},
	}
}

func TestRegisterHousehold(t *testing.T) {
	st := memory.New()
	r := New(st, fixedNow)
	ctx := context.Background()

	h, err := r.RegisterHousehold(ctx, models.HouseholdProfile{Name: "Tan Household", Email: "tan@example.com", PostalCode: "560123"})
	require.NoError(t, err)
	assert.NotEmpty(t, h.Id)
	assert.True(t, h.CreatedAt.Equal(fixedNow()))

	persisted, err := st.GetHousehold(ctx, h.Id)
	require.NoError(t, err)
	assert.Equal(t, "tan@example.com", persisted.Email)

	_, err = r.RegisterHousehold(ctx, models.HouseholdProfile{Name: "Other", Email: "TAN@example.com", PostalCode: "560124"})
	assert.ErrorIs(t, err, store.ErrDuplicateHousehold)
}

func TestRegisterHousehold_Validation(t *testing.T) {
	r := New(memory.New(), fixedNow)
	tests := []struct {
		name    string
		profile models.HouseholdProfile
	}{
		{"short name", models.HouseholdProfile{Name: "A", Email: "a@example.com", PostalCode: "560123"}},
		{"bad email", models.HouseholdProfile{Name: "Tan", Email: "not-an-email", PostalCode: "560123"}},
		{"bad postal code", models.HouseholdProfile{Name: "Tan", Email: "tan@example.com", PostalCode: "56-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.RegisterHousehold(context.Background(), tt.profile)
			assert.ErrorIs(t, err, store.ErrInvalidProfile)
		})
	}
	assert.Empty(t, r.Households())
}

func TestRegisterHousehold_ConcurrentDuplicates(t *testing.T) {
	r := New(memory.New(), fixedNow)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.RegisterHousehold(context.Background(), models.HouseholdProfile{Name: "Tan", Email: "tan@example.com", PostalCode: "560123"})
			if err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Len(t, r.Households(), 1)
}

func TestRegisterHousehold_PersistenceFailure(t *testing.T) {
	st := memory.New()
	st.FailWrites(func(string, string) error { return errors.New("disk full") })
	r := New(st, fixedNow)

	_, err := r.RegisterHousehold(context.Background(), models.HouseholdProfile{Name: "Tan", Email: "tan@example.com", PostalCode: "560123"})
	require.Error(t, err)
	assert.Empty(t, r.Households())
}

func TestRegisterMerchant_BankDetails(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.MerchantProfile)
		want   error
	}{
		{"valid", func(*models.MerchantProfile) {}, nil},
		{"sixteen digit account", func(p *models.MerchantProfile) { p.Bank.AccountNumber = "1234567890123456" }, nil},
		{"pending status", func(p *models.MerchantProfile) { p.Status = models.MerchantPending }, nil},
		{"missing holder", func(p *models.MerchantProfile) { p.Bank.AccountHolder = " " }, store.ErrInvalidBankDetails},
		{"unknown bank", func(p *models.MerchantProfile) { p.Bank.BankName = "Bank of Nowhere" }, store.ErrInvalidBankDetails},
		{"unknown branch", func(p *models.MerchantProfile) { p.Bank.BankCode, p.Bank.BranchCode = "0000", "999" }, store.ErrInvalidBankDetails},
		{"account letters", func(p *models.MerchantProfile) { p.Bank.AccountNumber = "12ab" }, store.ErrInvalidBankDetails},
		{"account too short", func(p *models.MerchantProfile) { p.Bank.AccountNumber = "12345" }, store.ErrInvalidBankDetails},
		{"account too long", func(p *models.MerchantProfile) { p.Bank.AccountNumber = "123456789012345678901" }, store.ErrInvalidBankDetails},
		{"registration", func(p *models.MerchantProfile) { p.RegistrationNumber = "" }, store.ErrInvalidProfile},
		{"status", func(p *models.MerchantProfile) { p.Status = "closed" }, store.ErrInvalidProfile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(memory.New(), fixedNow)
			profile := validMerchant()
			tt.mutate(&profile)

			m, err := r.RegisterMerchant(context.Background(), profile)
			if tt.want == nil {
				require.NoError(t, err)
				_, found := r.Merchant(m.Id)
				assert.True(t, found)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegisterMerchant_ResolvesBranch(t *testing.T) {
	r := New(memory.New(), fixedNow)
	profile := validMerchant()
	profile.Bank.BankName = "POSB Bank"
	profile.Bank.BranchCode = "081"

	m, err := r.RegisterMerchant(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, "Toa Payoh Branch", m.Bank.BranchName)
	assert.Equal(t, models.MerchantActive, m.Status)
}

func TestLookupBank(t *testing.T) {
	tests := []struct {
		name   string
		bank   string
		code   string
		branch string
		reason string
	}{
		{"dbs main branch", "DBS Bank Ltd", "7171", "001", ""},
		{"posb shares the dbs code", "POSB Bank", "7171", "081", ""},
		{"hsbc orchard", "HSBC Singapore", "7375", "146", ""},
		{"unknown name", "Bank of Nowhere", "7171", "001", InvalidBankName},
		{"name is case sensitive", "dbs bank ltd", "7171", "001", InvalidBankName},
		{"code of another bank", "OCBC Bank", "7171", "501", InvalidBankCode},
		{"unknown code", "UOB Bank", "0000", "001", InvalidBankCode},
		{"branch of the sibling bank", "DBS Bank Ltd", "7171", "081", InvalidBranchCode},
		{"unknown branch", "Citibank Singapore", "9465", "999", InvalidBranchCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank, err := LookupBank(tt.bank, tt.code, tt.branch)
			if tt.reason == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.branch, bank.BranchCode)
				assert.NotEmpty(t, bank.BranchName)
				return
			}
			require.ErrorIs(t, err, store.ErrInvalidBankDetails)
			var lookupErr *BankLookupError
			require.ErrorAs(t, err, &lookupErr)
			assert.Equal(t, tt.reason, lookupErr.Reason)
		})
	}
}

func TestSetMerchantStatus(t *testing.T) {
	st := memory.New()
	r := New(st, fixedNow)
	ctx := context.Background()

	m, err := r.RegisterMerchant(ctx, validMerchant())
	require.NoError(t, err)
	_, err = r.ActiveMerchant(m.Id)
	require.NoError(t, err)

	suspended, err := r.SetMerchantStatus(ctx, m.Id, models.MerchantSuspended)
	require.NoError(t, err)
	assert.Equal(t, models.MerchantSuspended, suspended.Status)

	_, err = r.ActiveMerchant(m.Id)
	assert.ErrorIs(t, err, store.ErrMerchantInactive)
	persisted, err := st.GetMerchant(ctx, m.Id)
	require.NoError(t, err)
	assert.Equal(t, models.MerchantSuspended, persisted.Status)

	_, err = r.SetMerchantStatus(ctx, m.Id, "closed")
	assert.ErrorIs(t, err, store.ErrInvalidProfile)
	_, err = r.SetMerchantStatus(ctx, "missing", models.MerchantActive)
	assert.ErrorIs(t, err, store.ErrUnknownMerchant)
	_, err = r.ActiveMerchant("missing")
	assert.ErrorIs(t, err, store.ErrUnknownMerchant)

	st.FailWrites(func(string, string) error { return errors.New("disk full") })
	_, err = r.SetMerchantStatus(ctx, m.Id, models.MerchantActive)
	require.Error(t, err)
	current, _ := r.Merchant(m.Id)
	assert.Equal(t, models.MerchantSuspended, current.Status)
}

func TestRegisterMerchant_Duplicate(t *testing.T) {
	r := New(memory.New(), fixedNow)
	_, err := r.RegisterMerchant(context.Background(), validMerchant())
	require.NoError(t, err)

	_, err = r.RegisterMerchant(context.Background(), validMerchant())
	assert.ErrorIs(t, err, store.ErrDuplicateMerchant)
}

func TestRestoreAndPut(t *testing.T) {
	r := New(memory.New(), fixedNow)
	r.Restore(
		[]models.Household{{Id: "h1", Email: "h1@example.com"}},
		[]models.Merchant{{Id: "m1", RegistrationNumber: "R1"}},
	)

	h, ok := r.Household("h1")
	require.True(t, ok)
	assert.NotNil(t, h.Claims)

	h.Claims["t1"] = fixedNow()
	unchanged, _ := r.Household("h1")
	assert.False(t, unchanged.HasClaimed("t1"), "Household returns a copy")

	r.Put(h)
	updated, _ := r.Household("h1")
	assert.True(t, updated.HasClaimed("t1"))

	_, err := r.RegisterMerchant(context.Background(), models.MerchantProfile{
		BusinessName: "Shop", RegistrationNumber: "R1", Bank: validMerchant().Bank,
	})
	assert.ErrorIs(t, err, store.ErrDuplicateMerchant)
}
