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

package api

import (
	"context"
	"fmt"
	"sort"
	"time"

	"household-voucher-go/internal/audit"
	"household-voucher-go/internal/claims"
	"household-voucher-go/internal/database"
	"household-voucher-go/internal/keylock"
	"household-voucher-go/internal/ledger"
	"household-voucher-go/internal/metrics"
	"household-voucher-go/internal/models"
	"household-voucher-go/internal/redemption"
	"household-voucher-go/internal/registry"
	"household-voucher-go/internal/store"

	"go.uber.org/zap"
)

// Store is the persistence the service runs on: the entity store plus the
// audit sink.
type Store interface {
	store.VoucherStore
	audit.Sink
}

var _ Store = (*database.Service)(nil)

type Options struct {
	Tranches   []models.Tranche
	Redemption models.RedemptionConfig
	Audit      models.AuditConfig
	Metrics    *metrics.Metrics
	Now        func() time.Time
	Codes      redemption.CodeGenerator
}

// VoucherService is the entry point for households and merchants
type VoucherService struct {
	store    Store
	tranches []models.Tranche
	catalog  map[string]models.Tranche
	now      func() time.Time
	metrics  *metrics.Metrics

	registry    *registry.Registry
	ledger      *ledger.Ledger
	claims      *claims.Manager
	coordinator *redemption.Coordinator
	audit       *audit.Logger
}

// NewVoucherService loads every persisted record into memory and finishes
// any operation a previous run left half-written.
func NewVoucherService(ctx context.Context, st Store, opts Options) (*VoucherService, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	catalog := make(map[string]models.Tranche, len(opts.Tranches))
	for _, t := range opts.Tranches {
		if t.Id == "" {
			return nil, fmt.Errorf("%w: tranche without id", store.ErrInvalidTranche)
		}
		if _, dup := catalog[t.Id]; dup {
			return nil, fmt.Errorf("%w: duplicate tranche %s", store.ErrInvalidTranche, t.Id)
		}
		if err := claims.ValidatePlan(t.Plan); err != nil {
			return nil, fmt.Errorf("tranche %s: %w", t.Id, err)
		}
		catalog[t.Id] = t
	}
	tranches := append([]models.Tranche(nil), opts.Tranches...)
	sort.SliceStable(tranches, func(i, j int) bool { return tranches[i].OpensAt.Before(tranches[j].OpensAt) })

	snapshot, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	reg := registry.New(st, now)
	reg.Restore(snapshot.Households, snapshot.Merchants)

	led := ledger.New(st)
	led.Add(snapshot.Vouchers...)

	householdLocks := keylock.New(keylock.DefaultShards)
	auditLogger := audit.NewLogger(st, opts.Audit, opts.Metrics)

	claimManager := claims.NewManager(claims.Config{
		Store:          st,
		Registry:       reg,
		Ledger:         led,
		HouseholdLocks: householdLocks,
		Metrics:        opts.Metrics,
		Now:            now,
	})

	coordinator, err := redemption.NewCoordinator(redemption.Config{
		Store:          st,
		Ledger:         led,
		Registry:       reg,
		Audit:          auditLogger,
		Metrics:        opts.Metrics,
		HouseholdLocks: householdLocks,
		CodeTTL:        opts.Redemption.CodeTTL,
		CodeLength:     opts.Redemption.CodeLength,
		Codes:          opts.Codes,
		Now:            now,
	})
	if err != nil {
		return nil, err
	}
	coordinator.Restore(snapshot.Redemptions)

	if _, err := claimManager.Recover(ctx); err != nil {
		return nil, fmt.Errorf("claim recovery failed: %w", err)
	}
	if err := coordinator.Recover(ctx); err != nil {
		return nil, fmt.Errorf("redemption recovery failed: %w", err)
	}

	zap.L().Info("Voucher service ready",
		zap.Int("households", len(snapshot.Households)),
		zap.Int("merchants", len(snapshot.Merchants)),
		zap.Int("vouchers", len(snapshot.Vouchers)),
		zap.Int("pending_redemptions", coordinator.Pending()),
		zap.Int("tranches", len(tranches)))

	return &VoucherService{
		store:       st,
		tranches:    tranches,
		catalog:     catalog,
		now:         now,
		metrics:     opts.Metrics,
		registry:    reg,
		ledger:      led,
		claims:      claimManager,
		coordinator: coordinator,
		audit:       auditLogger,
	}, nil
}

func (s *VoucherService) HealthCheck(ctx context.Context) error {
	if pinger, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
	}
	return nil
}

// Tranches lists the catalog, earliest opening first.
func (s *VoucherService) Tranches() []models.Tranche {
	return append([]models.Tranche(nil), s.tranches...)
}

// Sweeper returns a sweeper bound to this service's redemptions.
func (s *VoucherService) Sweeper(interval time.Duration) *redemption.Sweeper {
	return redemption.NewSweeper(s.coordinator, interval)
}

func (s *VoucherService) Close() {
	s.store.Close()
}
