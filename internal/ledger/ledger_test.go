package ledger

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

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var minted = time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

func voucher(id, household string, value int64, offset time.Duration) models.Voucher {
	return models.Voucher{
		Id:           id,
		HouseholdId:  household,
		TrancheId:    "t1",
		Denomination: decimal.NewFromInt(value),
		State:        models.VoucherActive,
		CreatedAt:    minted.Add(offset),
	}
}

func setupLedger(t *testing.T, vouchers ...models.Voucher) (*Ledger, *memory.Store) {
	t.Helper()
	st := memory.New()
	require.NoError(t, st.SaveVouchers(context.Background(), vouchers))
	l := New(st)
	l.Add(vouchers...)
	return l, st
}

func TestBalance_GroupsByDenomination(t *testing.T) {
	l, _ := setupLedger(t,
		voucher("v1", "h1", 10, 0),
		voucher("v2", "h1", 5, time.Second),
		voucher("v3", "h1", 5, 2*time.Second),
		voucher("other", "h2", 50, 0),
	)

	balance := l.Balance("h1")
	require.Len(t, balance.Groups, 2)
	assert.Equal(t, 3, balance.Count)
	assert.True(t, balance.Total.Equal(decimal.NewFromInt(20)))

	assert.True(t, balance.Groups[0].Denomination.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1, balance.Groups[0].Count)
	assert.True(t, balance.Groups[0].RunningTotal.Equal(decimal.NewFromInt(10)))

	assert.True(t, balance.Groups[1].Denomination.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, []string{"v2", "v3"}, balance.Groups[1].VoucherIds)
	assert.True(t, balance.Groups[1].Subtotal.Equal(decimal.NewFromInt(10)))
	assert.True(t, balance.Groups[1].RunningTotal.Equal(decimal.NewFromInt(20)))

	assert.Equal(t, map[string]int{"10": 1, "5": 2}, balance.Counts())
}

func TestBalance_UnknownHouseholdIsEmpty(t *testing.T) {
	l, _ := setupLedger(t)

	balance := l.Balance("nobody")
	assert.Zero(t, balance.Count)
	assert.True(t, balance.Total.IsZero())
	assert.Empty(t, balance.Groups)
}

func TestRemaining_ByTranche(t *testing.T) {
	later := voucher("v4", "h1", 2, 3*time.Second)
	later.TrancheId = "t2"
	spent := voucher("v5", "h1", 10, 4*time.Second)
	spent.TrancheId = "t0"
	l, _ := setupLedger(t,
		voucher("v1", "h1", 10, 0),
		voucher("v2", "h1", 5, time.Second),
		voucher("v3", "h1", 5, 2*time.Second),
		later,
		spent,
		voucher("other", "h2", 50, 0),
	)
	_, err := l.TransitionToRedeemed(context.Background(), []string{"v2", "v5"}, "ABC123", minted.Add(time.Hour))
	require.NoError(t, err)

	remaining := l.Remaining("h1")
	assert.Equal(t, "h1", remaining.HouseholdId)
	assert.True(t, remaining.Total.Equal(decimal.NewFromInt(17)))

	require.Len(t, remaining.Tranches, 3)
	assert.Equal(t, "t0", remaining.Tranches[0].TrancheId)
	assert.Zero(t, remaining.Tranches[0].Count)
	assert.True(t, remaining.Tranches[0].Total.IsZero())

	assert.Equal(t, "t1", remaining.Tranches[1].TrancheId)
	assert.Equal(t, 2, remaining.Tranches[1].Count)
	assert.True(t, remaining.Tranches[1].Total.Equal(decimal.NewFromInt(15)))
	require.Len(t, remaining.Tranches[1].Groups, 2)

	assert.Equal(t, "t2", remaining.Tranches[2].TrancheId)
	assert.Equal(t, 1, remaining.Tranches[2].Count)

	assert.Empty(t, l.Remaining("nobody").Tranches)
}

func TestTransitionToRedeemed_RejectsAlreadyRedeemed(t *testing.T) {
	l, st := setupLedger(t, voucher("v1", "h1", 10, 0), voucher("v2", "h1", 5, 0))
	ctx := context.Background()
	at := minted.Add(time.Hour)

	_, err := l.TransitionToRedeemed(ctx, []string{"v1"}, "CODE1", at)
	require.NoError(t, err)

	_, err = l.TransitionToRedeemed(ctx, []string{"v2", "v1"}, "CODE2", at.Add(time.Minute))
	assert.ErrorIs(t, err, store.ErrInvalidState)

	v1, _ := l.Get("v1")
	assert.Equal(t, "CODE1", v1.RedemptionCode)
	assert.True(t, v1.RedeemedAt.Equal(at))

	v2, _ := l.Get("v2")
	assert.Equal(t, models.VoucherActive, v2.State, "all or none")

	persisted, err := st.GetVoucher(ctx, "v2")
	require.NoError(t, err)
	assert.Equal(t, models.VoucherActive, persisted.State)
}

func TestTransitionToRedeemed_UnknownAndDuplicateIds(t *testing.T) {
	l, _ := setupLedger(t, voucher("v1", "h1", 10, 0))
	ctx := context.Background()

	_, err := l.TransitionToRedeemed(ctx, []string{"v1", "ghost"}, "C", minted)
	assert.ErrorIs(t, err, store.ErrVoucherNotFound)

	_, err = l.TransitionToRedeemed(ctx, []string{"v1", "v1"}, "C", minted)
	assert.ErrorIs(t, err, store.ErrInvalidState)

	_, err = l.TransitionToRedeemed(ctx, nil, "C", minted)
	assert.ErrorIs(t, err, store.ErrInvalidState)

	v1, _ := l.Get("v1")
	assert.Equal(t, models.VoucherActive, v1.State)
}

func TestTransitionToRedeemed_PersistenceFailureLeavesMemory(t *testing.T) {
	l, st := setupLedger(t, voucher("v1", "h1", 10, 0), voucher("v2", "h1", 5, 0))
	boom := errors.New("disk full")
	st.FailWrites(func(op, _ string) error {
		if op == "vouchers" {
			return boom
		}
		return nil
	})

	_, err := l.TransitionToRedeemed(context.Background(), []string{"v1", "v2"}, "C", minted)
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 2, l.Balance("h1").Count)
	active, redeemed := l.Counts()
	assert.Equal(t, 2, active)
	assert.Equal(t, 0, redeemed)
}

func TestTransitionToRedeemed_ConcurrentOverlapOnlyOneWins(t *testing.T) {
	l, _ := setupLedger(t, voucher("v1", "h1", 10, 0), voucher("v2", "h1", 5, 0), voucher("v3", "h1", 2, 0))

	var wins atomic.Int32
	var wg sync.WaitGroup
	sets := [][]string{{"v1", "v2"}, {"v2", "v3"}, {"v3", "v1"}, {"v2", "v1"}}
	for _, ids := range sets {
		wg.Add(1)
		go func(ids []string) {
			defer wg.Done()
			if _, err := l.TransitionToRedeemed(context.Background(), ids, "C", minted); err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, store.ErrInvalidState)
			}
		}(ids)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	_, redeemed := l.Counts()
	assert.Equal(t, 2, redeemed)
}

func TestAdd_DoesNotRevertRedeemed(t *testing.T) {
	l, _ := setupLedger(t, voucher("v1", "h1", 10, 0))
	_, err := l.TransitionToRedeemed(context.Background(), []string{"v1"}, "C", minted)
	require.NoError(t, err)

	l.Add(voucher("v1", "h1", 10, 0))

	v1, _ := l.Get("v1")
	assert.Equal(t, models.VoucherRedeemed, v1.State)
	assert.Len(t, l.Vouchers("h1"), 1)
}
