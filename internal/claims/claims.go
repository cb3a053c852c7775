// Package claims mints the vouchers of a tranche for a household, at most
// once per household and tranche.
package claims

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"household-voucher-go/internal/keylock"
	"household-voucher-go/internal/ledger"
	"household-voucher-go/internal/metrics"
	"household-voucher-go/internal/models"
	"household-voucher-go/internal/registry"
	"household-voucher-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var voucherNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("household-voucher-go/voucher"))

type Manager struct {
	store      store.VoucherStore
	registry   *registry.Registry
	ledger     *ledger.Ledger
	households *keylock.Locker
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Config struct {
	Store    store.VoucherStore
	Registry *registry.Registry
	Ledger   *ledger.Ledger
	// HouseholdLocks must be the same locker the redemption coordinator uses.
	HouseholdLocks *keylock.Locker
	Metrics        *metrics.Metrics
	Now            func() time.Time
}

func NewManager(cfg Config) *Manager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	locks := cfg.HouseholdLocks
	if locks == nil {
		locks = keylock.New(keylock.DefaultShards)
	}
	return &Manager{
		store:      cfg.Store,
		registry:   cfg.Registry,
		ledger:     cfg.Ledger,
		households: locks,
		metrics:    cfg.Metrics,
		now:        now,
	}
}

// VoucherId derives the id of the index-th voucher minted for a claim. The
// same claim always produces the same ids.
func VoucherId(householdId, trancheId string, index int) string {
	name := householdId + "/" + trancheId + "/" + strconv.Itoa(index)
	return uuid.NewSHA1(voucherNamespace, []byte(name)).String()
}

// ValidatePlan checks that every item mints at least one voucher of a
// positive whole denomination.
func ValidatePlan(plan []models.PlanItem) error {
	if len(plan) == 0 {
		return fmt.Errorf("%w: plan is empty", store.ErrInvalidDenominationPlan)
	}
	for i, item := range plan {
		if item.Count <= 0 {
			return fmt.Errorf("%w: item %d has count %d", store.ErrInvalidDenominationPlan, i, item.Count)
		}
		d := item.Denomination
		if !d.IsPositive() || !d.Equal(d.Truncate(0)) {
			return fmt.Errorf("%w: item %d has denomination %s", store.ErrInvalidDenominationPlan, i, d.String())
		}
	}
	return nil
}

// ClaimTranche mints the plan's vouchers for the household and records the
// claim. Vouchers are persisted before the claim flag.
func (m *Manager) ClaimTranche(ctx context.Context, householdId, trancheId string, plan []models.PlanItem) ([]models.Voucher, error) {
	vouchers, err := m.claim(ctx, householdId, trancheId, plan)
	if err != nil {
		m.metrics.Rejected("claim", err)
		return nil, err
	}
	m.metrics.ClaimSucceeded(len(vouchers))
	return vouchers, nil
}

func (m *Manager) claim(ctx context.Context, householdId, trancheId string, plan []models.PlanItem) ([]models.Voucher, error) {
	if trancheId == "" {
		return nil, fmt.Errorf("%w: tranche id is empty", store.ErrInvalidTranche)
	}
	if err := ValidatePlan(plan); err != nil {
		return nil, err
	}

	unlock := m.households.Lock(householdId)
	defer unlock()

	household, ok := m.registry.Household(householdId)
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownHousehold, householdId)
	}
	if household.HasClaimed(trancheId) {
		return nil, fmt.Errorf("%w: household %s, tranche %s", store.ErrAlreadyClaimed, householdId, trancheId)
	}

	now := m.now().UTC()
	var vouchers []models.Voucher
	for _, item := range plan {
		for i := 0; i < item.Count; i++ {
			vouchers = append(vouchers, models.Voucher{
				Id:           VoucherId(householdId, trancheId, len(vouchers)),
				HouseholdId:  householdId,
				TrancheId:    trancheId,
				Denomination: item.Denomination,
				State:        models.VoucherActive,
				CreatedAt:    now,
			})
		}
	}

	if err := m.store.SaveVouchers(ctx, vouchers); err != nil {
		zap.L().Error("Failed to persist minted vouchers",
			zap.String("household_id", householdId),
			zap.String("tranche_id", trancheId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to persist vouchers: %w", err)
	}

	household.Claims[trancheId] = now
	if err := m.store.SaveHousehold(ctx, household); err != nil {
		zap.L().Error("Failed to persist tranche claim",
			zap.String("household_id", householdId),
			zap.String("tranche_id", trancheId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to persist claim: %w", err)
	}

	m.ledger.Add(vouchers...)
	m.registry.Put(household)

	zap.L().Info("Tranche claimed",
		zap.String("household_id", householdId),
		zap.String("tranche_id", trancheId),
		zap.Int("vouchers", len(vouchers)),
		zap.String("total", ledgerTotal(vouchers)))

	return vouchers, nil
}

func ledgerTotal(vouchers []models.Voucher) string {
	_, total := ledger.Group(vouchers)
	return total.String()
}

// Recover marks the claims whose vouchers reached the store before the
// claim flag did. It returns the number of claims it marked.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	marked := 0
	for _, household := range m.registry.Households() {
		n, err := m.recoverHousehold(ctx, household.Id)
		if err != nil {
			return marked, err
		}
		marked += n
	}
	if marked > 0 {
		zap.L().Warn("Recovered interrupted tranche claims", zap.Int("claims", marked))
	}
	return marked, nil
}

func (m *Manager) recoverHousehold(ctx context.Context, householdId string) (int, error) {
	unlock := m.households.Lock(householdId)
	defer unlock()

	household, ok := m.registry.Household(householdId)
	if !ok {
		return 0, nil
	}

	missing := make(map[string]time.Time)
	for _, v := range m.ledger.Vouchers(householdId) {
		if household.HasClaimed(v.TrancheId) {
			continue
		}
		if at, seen := missing[v.TrancheId]; !seen || v.CreatedAt.Before(at) {
			missing[v.TrancheId] = v.CreatedAt
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	for trancheId, at := range missing {
		household.Claims[trancheId] = at
	}
	if err := m.store.SaveHousehold(ctx, household); err != nil {
		return 0, fmt.Errorf("failed to persist recovered claims of %s: %w", householdId, err)
	}
	m.registry.Put(household)

	for trancheId := range missing {
		zap.L().Info("Marked interrupted claim",
			zap.String("household_id", householdId),
			zap.String("tranche_id", trancheId))
	}
	return len(missing), nil
}
