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

package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"household-voucher-go/internal/keylock"
	"household-voucher-go/internal/models"
	"household-voucher-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is the in-memory authoritative view of every voucher. It is
// populated from the store at startup and written through on every transition.
type Ledger struct {
	store store.VoucherStore
	locks *keylock.Locker

	mu          sync.RWMutex
	vouchers    map[string]models.Voucher
	byHousehold map[string][]string // voucher ids in mint order
}

func New(st store.VoucherStore) *Ledger {
	return &Ledger{
		store:       st,
		locks:       keylock.New(keylock.DefaultShards),
		vouchers:    make(map[string]models.Voucher),
		byHousehold: make(map[string][]string),
	}
}

// Add places already-persisted vouchers into the ledger. Known ids are
// replaced only while they are still active.
func (l *Ledger) Add(vouchers ...models.Voucher) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, v := range vouchers {
		existing, ok := l.vouchers[v.Id]
		if ok && existing.State == models.VoucherRedeemed {
			continue
		}
		if !ok {
			l.byHousehold[v.HouseholdId] = append(l.byHousehold[v.HouseholdId], v.Id)
		}
		l.vouchers[v.Id] = v
	}
}

func (l *Ledger) Get(voucherId string) (models.Voucher, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	v, ok := l.vouchers[voucherId]
	return v, ok
}

// Vouchers returns every voucher of the household, in any state, in mint order.
func (l *Ledger) Vouchers(householdId string) []models.Voucher {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.byHousehold[householdId]
	vouchers := make([]models.Voucher, 0, len(ids))
	for _, id := range ids {
		vouchers = append(vouchers, l.vouchers[id])
	}
	return vouchers
}

// Balance lists the household's active vouchers grouped by denomination.
func (l *Ledger) Balance(householdId string) models.BalanceSummary {
	var active []models.Voucher
	for _, v := range l.Vouchers(householdId) {
		if v.State == models.VoucherActive {
			active = append(active, v)
		}
	}

	groups, total := Group(active)
	return models.BalanceSummary{
		HouseholdId: householdId,
		Groups:      groups,
		Count:       len(active),
		Total:       total,
	}
}

// Remaining breaks the household's active vouchers down by tranche. Every
// tranche the household holds vouchers from is listed, spent ones with a zero
// count, ordered by tranche id.
func (l *Ledger) Remaining(householdId string) models.RemainingSummary {
	active := make(map[string][]models.Voucher)
	for _, v := range l.Vouchers(householdId) {
		if _, ok := active[v.TrancheId]; !ok {
			active[v.TrancheId] = nil
		}
		if v.State == models.VoucherActive {
			active[v.TrancheId] = append(active[v.TrancheId], v)
		}
	}

	summary := models.RemainingSummary{HouseholdId: householdId, Total: decimal.Zero}
	for trancheId, vouchers := range active {
		groups, total := Group(vouchers)
		summary.Tranches = append(summary.Tranches, models.TrancheRemaining{
			TrancheId: trancheId,
			Groups:    groups,
			Count:     len(vouchers),
			Total:     total,
		})
		summary.Total = summary.Total.Add(total)
	}
	sort.Slice(summary.Tranches, func(i, j int) bool {
		return summary.Tranches[i].TrancheId < summary.Tranches[j].TrancheId
	})
	return summary
}

// Counts returns the number of active and redeemed vouchers.
func (l *Ledger) Counts() (active, redeemed int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, v := range l.vouchers {
		if v.State == models.VoucherActive {
			active++
		} else {
			redeemed++
		}
	}
	return active, redeemed
}

// TransitionToRedeemed moves every listed voucher from active to redeemed, or
// none of them. The batch is persisted before the in-memory flip.
func (l *Ledger) TransitionToRedeemed(ctx context.Context, voucherIds []string, code string, at time.Time) ([]models.Voucher, error) {
	if len(voucherIds) == 0 {
		return nil, fmt.Errorf("%w: no vouchers to redeem", store.ErrInvalidState)
	}

	unlock := l.locks.LockAll(voucherIds)
	defer unlock()

	updated := make([]models.Voucher, 0, len(voucherIds))
	seen := make(map[string]struct{}, len(voucherIds))

	l.mu.RLock()
	for _, id := range voucherIds {
		if _, dup := seen[id]; dup {
			l.mu.RUnlock()
			return nil, fmt.Errorf("%w: voucher %s listed twice", store.ErrInvalidState, id)
		}
		seen[id] = struct{}{}

		v, ok := l.vouchers[id]
		if !ok {
			l.mu.RUnlock()
			return nil, fmt.Errorf("%w: %s", store.ErrVoucherNotFound, id)
		}
		if v.State != models.VoucherActive {
			l.mu.RUnlock()
			return nil, fmt.Errorf("%w: voucher %s is %s", store.ErrInvalidState, id, v.State)
		}
		v.State = models.VoucherRedeemed
		v.RedemptionCode = code
		v.RedeemedAt = at
		updated = append(updated, v)
	}
	l.mu.RUnlock()

	if err := l.store.SaveVouchers(ctx, updated); err != nil {
		zap.L().Error("Failed to persist voucher redemption",
			zap.String("code", code),
			zap.Strings("voucher_ids", voucherIds),
			zap.Error(err))
		return nil, fmt.Errorf("failed to persist redeemed vouchers: %w", err)
	}

	l.mu.Lock()
	for _, v := range updated {
		l.vouchers[v.Id] = v
	}
	l.mu.Unlock()

	zap.L().Info("Vouchers redeemed",
		zap.String("code", code),
		zap.Int("count", len(updated)),
		zap.Strings("voucher_ids", voucherIds))

	return updated, nil
}

// Group buckets vouchers by denomination, largest first, keeping each
// group's vouchers in mint order and carrying a running total.
func Group(vouchers []models.Voucher) ([]models.DenominationGroup, decimal.Decimal) {
	sorted := append([]models.Voucher(nil), vouchers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].Denomination.Cmp(sorted[j].Denomination); c != 0 {
			return c > 0
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].Id < sorted[j].Id
	})

	var groups []models.DenominationGroup
	running := decimal.Zero
	for _, v := range sorted {
		n := len(groups)
		if n == 0 || !groups[n-1].Denomination.Equal(v.Denomination) {
			groups = append(groups, models.DenominationGroup{
				Denomination: v.Denomination,
				Subtotal:     decimal.Zero,
			})
			n++
		}
		g := &groups[n-1]
		g.Count++
		g.VoucherIds = append(g.VoucherIds, v.Id)
		g.Subtotal = g.Subtotal.Add(v.Denomination)
		running = running.Add(v.Denomination)
		g.RunningTotal = running
	}
	return groups, running
}
