package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"household-voucher-go/internal/models"
	"household-voucher-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveHousehold_ClaimsAreAppendOnly(t *testing.T) {
	s := New()
	ctx := context.Background()

	h := models.Household{Id: "h1", Email: "h1@example.com", Claims: map[string]time.Time{"t1": time.Now()}}
	require.NoError(t, s.SaveHousehold(ctx, h))

	h.Claims = map[string]time.Time{"t2": time.Now()}
	require.NoError(t, s.SaveHousehold(ctx, h))

	got, err := s.GetHousehold(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, got.HasClaimed("t1"))
	assert.True(t, got.HasClaimed("t2"))
}

func TestSaveHousehold_DuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.SaveHousehold(ctx, models.Household{Id: "h1", Email: "a@example.com"}))
	err := s.SaveHousehold(ctx, models.Household{Id: "h2", Email: "A@example.com"})
	assert.ErrorIs(t, err, store.ErrDuplicateHousehold)
}

func TestFailWrites_LeavesStateUntouched(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("disk full")

	s.FailWrites(func(op, key string) error {
		if op == "vouchers" && key == "v2" {
			return boom
		}
		return nil
	})

	err := s.SaveVouchers(ctx, []models.Voucher{
		{Id: "v1", Denomination: decimal.NewFromInt(10), State: models.VoucherActive},
		{Id: "v2", Denomination: decimal.NewFromInt(5), State: models.VoucherActive},
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetVoucher(ctx, "v1")
	assert.ErrorIs(t, err, store.ErrNotFound, "a failed batch must not be partially visible")

	s.FailWrites(nil)
	require.NoError(t, s.SaveVouchers(ctx, []models.Voucher{{Id: "v1", State: models.VoucherActive}}))
}

func TestSaveRedemption_TerminalIsFinal(t *testing.T) {
	s := New()
	ctx := context.Background()

	r := models.PendingRedemption{Code: "C1", Status: models.RedemptionConfirmed, VoucherIds: []string{"v1"}}
	require.NoError(t, s.SaveRedemption(ctx, r))

	r.Status = models.RedemptionVerified
	assert.ErrorIs(t, s.SaveRedemption(ctx, r), store.ErrInvalidState)
}
