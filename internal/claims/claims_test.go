package claims

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"household-voucher-go/internal/keylock"
	"household-voucher-go/internal/ledger"
	"household-voucher-go/internal/models"
	"household-voucher-go/internal/registry"
	"household-voucher-go/internal/store"
	"household-voucher-go/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var claimedAt = time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return claimedAt }

type fixture struct {
	store    *memory.Store
	registry *registry.Registry
	ledger   *ledger.Ledger
	manager  *Manager
	house    *models.Household
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	reg := registry.New(st, fixedNow)
	led := ledger.New(st)

	house, err := reg.RegisterHousehold(context.Background(), models.HouseholdProfile{
		Name:       "Tan Family",
		Email:      "tan@example.com",
		PostalCode: "520123",
	})
	require.NoError(t, err)

	return &fixture{
		store:    st,
		registry: reg,
		ledger:   led,
		house:    house,
		manager: NewManager(Config{
			Store:          st,
			Registry:       reg,
			Ledger:         led,
			HouseholdLocks: keylock.New(keylock.DefaultShards),
			Now:            fixedNow,
		}),
	}
}

func plan(items ...int64) []models.PlanItem {
	var p []models.PlanItem
	for i := 0; i+1 < len(items); i += 2 {
		p = append(p, models.PlanItem{Denomination: decimal.NewFromInt(items[i]), Count: int(items[i+1])})
	}
	return p
}

func TestClaimTranche(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	vouchers, err := f.manager.ClaimTranche(ctx, f.house.Id, "2026-oct", plan(10, 2, 5, 3))
	require.NoError(t, err)
	require.Len(t, vouchers, 5)

	for i, v := range vouchers {
		assert.Equal(t, VoucherId(f.house.Id, "2026-oct", i), v.Id)
		assert.Equal(t, models.VoucherActive, v.State)
		assert.Equal(t, claimedAt, v.CreatedAt)

		stored, err := f.store.GetVoucher(ctx, v.Id)
		require.NoError(t, err)
		assert.True(t, stored.Denomination.Equal(v.Denomination))
	}

	balance := f.ledger.Balance(f.house.Id)
	assert.Equal(t, map[string]int{"10": 2, "5": 3}, balance.Counts())
	assert.True(t, balance.Total.Equal(decimal.NewFromInt(35)))

	household, ok := f.registry.Household(f.house.Id)
	require.True(t, ok)
	assert.True(t, household.HasClaimed("2026-oct"))

	persisted, err := f.store.GetHousehold(ctx, f.house.Id)
	require.NoError(t, err)
	assert.True(t, persisted.HasClaimed("2026-oct"))
}

func TestClaimTranche_AlreadyClaimed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.manager.ClaimTranche(ctx, f.house.Id, "2026-oct", plan(10, 1))
	require.NoError(t, err)

	_, err = f.manager.ClaimTranche(ctx, f.house.Id, "2026-oct", plan(10, 1))
	assert.ErrorIs(t, err, store.ErrAlreadyClaimed)
	assert.Len(t, f.ledger.Vouchers(f.house.Id), 1)

	_, err = f.manager.ClaimTranche(ctx, f.house.Id, "2027-jan", plan(2, 1))
	assert.NoError(t, err)
	assert.Len(t, f.ledger.Vouchers(f.house.Id), 2)
}

func TestClaimTranche_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		household string
		tranche   string
		plan      []models.PlanItem
		want      error
	}{
		{"unknown household", "nobody", "t1", plan(10, 1), store.ErrUnknownHousehold},
		{"empty tranche", f.house.Id, "", plan(10, 1), store.ErrInvalidTranche},
		{"empty plan", f.house.Id, "t1", nil, store.ErrInvalidDenominationPlan},
		{"zero count", f.house.Id, "t1", plan(10, 0), store.ErrInvalidDenominationPlan},
		{"negative denomination", f.house.Id, "t1", plan(-5, 1), store.ErrInvalidDenominationPlan},
		{"fractional denomination", f.house.Id, "t1",
			[]models.PlanItem{{Denomination: decimal.RequireFromString("2.5"), Count: 1}},
			store.ErrInvalidDenominationPlan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.ClaimTranche(ctx, tt.household, tt.tranche, tt.plan)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.ledger.Vouchers(f.house.Id))
}

func TestClaimTranche_ConcurrentSingleWinner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var wins, already atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.ClaimTranche(ctx, f.house.Id, "2026-oct", plan(5, 4))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, store.ErrAlreadyClaimed):
				already.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(15), already.Load())
	assert.Len(t, f.ledger.Vouchers(f.house.Id), 4)
}

func TestClaimTranche_ClaimWriteFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.store.FailWrites(func(op, _ string) error {
		if op == "household" {
			return errors.New("disk full")
		}
		return nil
	})

	_, err := f.manager.ClaimTranche(ctx, f.house.Id, "2026-oct", plan(10, 2))
	require.Error(t, err)
	assert.Empty(t, f.ledger.Vouchers(f.house.Id))
	household, _ := f.registry.Household(f.house.Id)
	assert.False(t, household.HasClaimed("2026-oct"))

	// A retry rewrites the same voucher ids instead of minting a second set.
	f.store.FailWrites(nil)
	vouchers, err := f.manager.ClaimTranche(ctx, f.house.Id, "2026-oct", plan(10, 2))
	require.NoError(t, err)
	require.Len(t, vouchers, 2)

	snapshot, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot.Vouchers, 2)
}

func TestVoucherId_Deterministic(t *testing.T) {
	assert.Equal(t, VoucherId("h1", "t1", 0), VoucherId("h1", "t1", 0))
	assert.NotEqual(t, VoucherId("h1", "t1", 0), VoucherId("h1", "t1", 1))
	assert.NotEqual(t, VoucherId("h1", "t1", 0), VoucherId("h2", "t1", 0))
}

func TestRecover_MarksClaimOfPersistedVouchers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.store.FailWrites(func(op, _ string) error {
		if op == "household" {
			return errors.New("crash")
		}
		return nil
	})
	_, err := f.manager.ClaimTranche(ctx, f.house.Id, "2026-oct", plan(10, 2))
	require.Error(t, err)
	f.store.FailWrites(nil)

	// Simulate a restart: rebuild memory from the store.
	snapshot, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot.Vouchers, 2)

	reg := registry.New(f.store, fixedNow)
	reg.Restore(snapshot.Households, snapshot.Merchants)
	led := ledger.New(f.store)
	led.Add(snapshot.Vouchers...)
	manager := NewManager(Config{Store: f.store, Registry: reg, Ledger: led, Now: fixedNow})

	marked, err := manager.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	_, err = manager.ClaimTranche(ctx, f.house.Id, "2026-oct", plan(10, 2))
	assert.ErrorIs(t, err, store.ErrAlreadyClaimed)

	persisted, err := f.store.GetHousehold(ctx, f.house.Id)
	require.NoError(t, err)
	assert.True(t, persisted.HasClaimed("2026-oct"))

	marked, err = manager.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, marked)
}
