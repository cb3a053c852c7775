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

package metrics

import (
	"errors"

	"household-voucher-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Metrics holds the Prometheus collectors for claims and redemptions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ClaimsTotal         *prometheus.CounterVec
	VouchersMintedTotal prometheus.Counter
	RedemptionsTotal    *prometheus.CounterVec
	RedeemedValueTotal  prometheus.Counter
	RejectionsTotal     *prometheus.CounterVec
	AuditFailuresTotal  prometheus.Counter
	PendingRedemptions  prometheus.Gauge
	ActiveVouchers      prometheus.Gauge
	RedeemedVouchers    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ClaimsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voucher_tranche_claims_total",
			Help: "Tranche claim attempts by result",
		}, []string{"result"}),
		VouchersMintedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "voucher_minted_total",
			Help: "Vouchers minted by successful claims",
		}),
		RedemptionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voucher_redemptions_total",
			Help: "Pending redemption transitions by resulting status",
		}, []string{"status"}),
		RedeemedValueTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "voucher_redeemed_value_total",
			Help: "Face value of confirmed redemptions",
		}),
		RejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voucher_rejections_total",
			Help: "Rejected operations by operation and reason",
		}, []string{"operation", "reason"}),
		AuditFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "voucher_audit_append_failures_total",
			Help: "Audit records that could not be written after all retries",
		}),
		PendingRedemptions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voucher_pending_redemptions",
			Help: "Redemptions currently issued or verified",
		}),
		ActiveVouchers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voucher_active_vouchers",
			Help: "Vouchers currently active",
		}),
		RedeemedVouchers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voucher_redeemed_vouchers",
			Help: "Vouchers redeemed so far",
		}),
	}
}

func (m *Metrics) ClaimSucceeded(minted int) {
	if m == nil {
		return
	}
	m.ClaimsTotal.WithLabelValues("claimed").Inc()
	m.VouchersMintedTotal.Add(float64(minted))
}

func (m *Metrics) Rejected(operation string, err error) {
	if m == nil {
		return
	}
	if operation == "claim" {
		m.ClaimsTotal.WithLabelValues(Reason(err)).Inc()
	}
	m.RejectionsTotal.WithLabelValues(operation, Reason(err)).Inc()
}

func (m *Metrics) RedemptionTransition(status string) {
	if m == nil {
		return
	}
	m.RedemptionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) Redeemed(total decimal.Decimal) {
	if m == nil {
		return
	}
	m.RedemptionsTotal.WithLabelValues("confirmed").Inc()
	value, _ := total.Float64()
	m.RedeemedValueTotal.Add(value)
}

func (m *Metrics) AuditFailed() {
	if m == nil {
		return
	}
	m.AuditFailuresTotal.Inc()
}

// SetGauges publishes point-in-time counts.
func (m *Metrics) SetGauges(pending, active, redeemed int) {
	if m == nil {
		return
	}
	m.PendingRedemptions.Set(float64(pending))
	m.ActiveVouchers.Set(float64(active))
	m.RedeemedVouchers.Set(float64(redeemed))
}

var reasons = []struct {
	err   error
	label string
}{
	{store.ErrUnknownHousehold, "unknown_household"},
	{store.ErrUnknownMerchant, "unknown_merchant"},
	{store.ErrInvalidTranche, "invalid_tranche"},
	{store.ErrInvalidDenominationPlan, "invalid_plan"},
	{store.ErrAlreadyClaimed, "already_claimed"},
	{store.ErrVoucherUnavailable, "voucher_unavailable"},
	{store.ErrInvalidState, "invalid_state"},
	{store.ErrCodeNotFound, "code_not_found"},
	{store.ErrCodeExpired, "code_expired"},
	{store.ErrMerchantMismatch, "merchant_mismatch"},
	{store.ErrMerchantInactive, "merchant_inactive"},
}

// Reason maps an error to a low-cardinality label.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	return "internal"
}
