package metrics

import (
	"errors"
	"fmt"
	"testing"

	"household-voucher-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestReason(t *testing.T) {
	assert.Equal(t, "already_claimed", Reason(fmt.Errorf("h1: %w", store.ErrAlreadyClaimed)))
	assert.Equal(t, "code_expired", Reason(store.ErrCodeExpired))
	assert.Equal(t, "internal", Reason(errors.New("disk full")))
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ClaimSucceeded(3)
	m.Rejected("claim", store.ErrAlreadyClaimed)
	m.Rejected("verify", store.ErrCodeNotFound)
	m.Redeemed(decimal.NewFromInt(15))
	m.AuditFailed()
	m.SetGauges(2, 7, 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClaimsTotal.WithLabelValues("claimed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClaimsTotal.WithLabelValues("already_claimed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.VouchersMintedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectionsTotal.WithLabelValues("verify", "code_not_found")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.RedeemedValueTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditFailuresTotal))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ActiveVouchers))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ClaimSucceeded(1)
		m.Rejected("claim", store.ErrAlreadyClaimed)
		m.RedemptionTransition("issued")
		m.Redeemed(decimal.NewFromInt(1))
		m.AuditFailed()
		m.SetGauges(0, 0, 0)
	})
}
