// Package redemption runs the redeem code lifecycle: a household turns a
// selection of vouchers into a one-time code, a merchant verifies and then
// confirms it, and stale codes expire.
package redemption

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"household-voucher-go/internal/audit"
	"household-voucher-go/internal/keylock"
	"household-voucher-go/internal/ledger"
	"household-voucher-go/internal/metrics"
	"household-voucher-go/internal/models"
	"household-voucher-go/internal/registry"
	"household-voucher-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultCodeTTL = 15 * time.Minute

	maxCodeAttempts = 16
)

type Config struct {
	Store    store.VoucherStore
	Ledger   *ledger.Ledger
	Registry *registry.Registry
	Audit    *audit.Logger
	Metrics  *metrics.Metrics
	// HouseholdLocks must be the same locker the claim manager uses.
	HouseholdLocks *keylock.Locker
	CodeTTL        time.Duration
	CodeLength     int
	Codes          CodeGenerator // overrides CodeLength when set
	Now            func() time.Time
}

type Coordinator struct {
	store    store.VoucherStore
	ledger   *ledger.Ledger
	registry *registry.Registry
	audit    *audit.Logger
	metrics  *metrics.Metrics

	households *keylock.Locker
	codes      *keylock.Locker

	newCode CodeGenerator
	ttl     time.Duration
	now     func() time.Time

	mu          sync.RWMutex
	redemptions map[string]models.PendingRedemption // every code ever issued
	holds       map[string]string                   // voucher id -> code of a live redemption
}

func NewCoordinator(cfg Config) (*Coordinator, error) {
	newCode := cfg.Codes
	if newCode == nil {
		gen, err := NewCodeGenerator(cfg.CodeLength)
		if err != nil {
			return nil, err
		}
		newCode = gen
	}
	ttl := cfg.CodeTTL
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	households := cfg.HouseholdLocks
	if households == nil {
		households = keylock.New(keylock.DefaultShards)
	}

	return &Coordinator{
		store:       cfg.Store,
		ledger:      cfg.Ledger,
		registry:    cfg.Registry,
		audit:       cfg.Audit,
		metrics:     cfg.Metrics,
		households:  households,
		codes:       keylock.New(keylock.DefaultShards),
		newCode:     newCode,
		ttl:         ttl,
		now:         now,
		redemptions: make(map[string]models.PendingRedemption),
		holds:       make(map[string]string),
	}, nil
}

// Restore loads persisted redemptions and re-takes the holds of live ones and
// of confirmations whose vouchers were never flipped.
func (c *Coordinator) Restore(redemptions []models.PendingRedemption) {
	c.mu.Lock()
	for _, r := range redemptions {
		c.redemptions[r.Code] = r.Clone()
		if !r.Status.Terminal() || len(c.unfinished(r)) > 0 {
			for _, id := range r.VoucherIds {
				c.holds[id] = r.Code
			}
		}
	}
	c.mu.Unlock()

	c.publishGauges()
}

// Redemption returns a copy of the redemption for code.
func (c *Coordinator) Redemption(code string) (models.PendingRedemption, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.redemptions[code]
	if !ok {
		return models.PendingRedemption{}, false
	}
	return r.Clone(), true
}

// History lists every code the household was issued, oldest first.
func (c *Coordinator) History(householdId string) []models.PendingRedemption {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var history []models.PendingRedemption
	for _, r := range c.redemptions {
		if r.HouseholdId == householdId {
			history = append(history, r.Clone())
		}
	}
	sort.Slice(history, func(i, j int) bool {
		if !history[i].CreatedAt.Equal(history[j].CreatedAt) {
			return history[i].CreatedAt.Before(history[j].CreatedAt)
		}
		return history[i].Code < history[j].Code
	})
	return history
}

// Pending counts redemptions that are issued or verified.
func (c *Coordinator) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, r := range c.redemptions {
		if !r.Status.Terminal() {
			n++
		}
	}
	return n
}

// InitiateRedemption holds the selected vouchers behind a new redeem code.
func (c *Coordinator) InitiateRedemption(ctx context.Context, householdId string, voucherIds []string) (*models.Ticket, error) {
	ticket, err := c.initiate(ctx, householdId, voucherIds)
	if err != nil {
		c.metrics.Rejected("initiate", err)
		return nil, err
	}
	return ticket, nil
}

func (c *Coordinator) initiate(ctx context.Context, householdId string, voucherIds []string) (*models.Ticket, error) {
	unlock := c.households.Lock(householdId)
	defer unlock()

	if _, ok := c.registry.Household(householdId); !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownHousehold, householdId)
	}
	if len(voucherIds) == 0 {
		return nil, fmt.Errorf("%w: no vouchers selected", store.ErrVoucherUnavailable)
	}

	total, err := c.checkSelection(householdId, voucherIds)
	if err != nil {
		return nil, err
	}

	code, err := c.uniqueCode()
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	pending := models.PendingRedemption{
		Code:        code,
		HouseholdId: householdId,
		VoucherIds:  append([]string(nil), voucherIds...),
		Total:       total,
		Status:      models.RedemptionIssued,
		CreatedAt:   now,
		ExpiresAt:   now.Add(c.ttl),
	}

	if err := c.store.SaveRedemption(ctx, pending); err != nil {
		zap.L().Error("Failed to persist redeem code",
			zap.String("household_id", householdId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to persist redemption: %w", err)
	}

	c.mu.Lock()
	c.redemptions[code] = pending
	for _, id := range voucherIds {
		c.holds[id] = code
	}
	c.mu.Unlock()

	c.metrics.RedemptionTransition(string(models.RedemptionIssued))
	c.publishGauges()

	zap.L().Info("Redeem code issued",
		zap.String("household_id", householdId),
		zap.String("code", code),
		zap.Int("vouchers", len(voucherIds)),
		zap.String("total", total.String()),
		zap.Time("expires_at", pending.ExpiresAt))

	return &models.Ticket{
		Code:       code,
		VoucherIds: pending.VoucherIds,
		Total:      total,
		ExpiresAt:  pending.ExpiresAt,
	}, nil
}

// checkSelection requires every voucher to be active, owned by the
// household, listed once and free of any live hold. It returns the total.
func (c *Coordinator) checkSelection(householdId string, voucherIds []string) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := decimal.Zero
	seen := make(map[string]struct{}, len(voucherIds))
	for _, id := range voucherIds {
		if _, dup := seen[id]; dup {
			return decimal.Zero, fmt.Errorf("%w: voucher %s selected twice", store.ErrVoucherUnavailable, id)
		}
		seen[id] = struct{}{}

		v, ok := c.ledger.Get(id)
		if !ok || v.HouseholdId != householdId {
			return decimal.Zero, fmt.Errorf("%w: voucher %s", store.ErrVoucherUnavailable, id)
		}
		if v.State != models.VoucherActive {
			return decimal.Zero, fmt.Errorf("%w: voucher %s is %s", store.ErrVoucherUnavailable, id, v.State)
		}
		if _, held := c.holds[id]; held {
			return decimal.Zero, fmt.Errorf("%w: voucher %s is held by another code", store.ErrVoucherUnavailable, id)
		}
		total = total.Add(v.Denomination)
	}
	return total, nil
}

func (c *Coordinator) uniqueCode() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := 0; i < maxCodeAttempts; i++ {
		code := c.newCode()
		if _, taken := c.redemptions[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate an unused redeem code after %d attempts", maxCodeAttempts)
}

// VerifyCode binds a code to the merchant and returns what it pays for.
// Verifying again from the same merchant returns the same summary.
func (c *Coordinator) VerifyCode(ctx context.Context, merchantId, code string) (*models.VerificationSummary, error) {
	summary, err := c.verify(ctx, merchantId, code)
	if err != nil {
		c.metrics.Rejected("verify", err)
		return nil, err
	}
	return summary, nil
}

func (c *Coordinator) verify(ctx context.Context, merchantId, code string) (*models.VerificationSummary, error) {
	if _, err := c.registry.ActiveMerchant(merchantId); err != nil {
		return nil, err
	}

	unlock := c.codes.Lock(code)
	defer unlock()

	r, err := c.live(ctx, code)
	if err != nil {
		return nil, err
	}

	switch r.Status {
	case models.RedemptionVerified:
		if r.MerchantId != merchantId {
			return nil, fmt.Errorf("%w: code %s was verified by another merchant", store.ErrMerchantMismatch, code)
		}
	case models.RedemptionIssued:
		verified := r.Clone()
		verified.Status = models.RedemptionVerified
		verified.MerchantId = merchantId
		verified.VerifiedAt = c.now().UTC()

		if err := c.store.SaveRedemption(ctx, verified); err != nil {
			zap.L().Error("Failed to persist code verification",
				zap.String("code", code),
				zap.String("merchant_id", merchantId),
				zap.Error(err))
			return nil, fmt.Errorf("failed to persist verification: %w", err)
		}

		c.mu.Lock()
		c.redemptions[code] = verified
		c.mu.Unlock()
		r = verified

		c.metrics.RedemptionTransition(string(models.RedemptionVerified))
		zap.L().Info("Redeem code verified",
			zap.String("code", code),
			zap.String("merchant_id", merchantId),
			zap.String("total", r.Total.String()))
	}

	return c.summary(r), nil
}

func (c *Coordinator) summary(r models.PendingRedemption) *models.VerificationSummary {
	vouchers := make([]models.Voucher, 0, len(r.VoucherIds))
	for _, id := range r.VoucherIds {
		if v, ok := c.ledger.Get(id); ok {
			vouchers = append(vouchers, v)
		}
	}
	groups, _ := ledger.Group(vouchers)

	var name string
	if h, ok := c.registry.Household(r.HouseholdId); ok {
		name = h.Name
	}

	return &models.VerificationSummary{
		Code:          r.Code,
		HouseholdId:   r.HouseholdId,
		HouseholdName: name,
		Groups:        groups,
		Total:         r.Total,
		ExpiresAt:     r.ExpiresAt,
	}
}

// live returns the redemption for code if it can still be acted on. It must
// be called with the code lock held. A code past its deadline is expired on
// the spot.
func (c *Coordinator) live(ctx context.Context, code string) (models.PendingRedemption, error) {
	r, ok := c.Redemption(code)
	if !ok {
		return r, fmt.Errorf("%w: %s", store.ErrCodeNotFound, code)
	}

	switch r.Status {
	case models.RedemptionConfirmed:
		if len(c.unfinished(r)) > 0 {
			if err := c.finish(ctx, r); err != nil {
				zap.L().Warn("Failed to finish confirmed code", zap.String("code", code), zap.Error(err))
			}
		}
		return r, fmt.Errorf("%w: %s", store.ErrCodeNotFound, code)
	case models.RedemptionCancelled:
		return r, fmt.Errorf("%w: %s", store.ErrCodeNotFound, code)
	case models.RedemptionExpired:
		return r, fmt.Errorf("%w: %s", store.ErrCodeExpired, code)
	}

	if !c.now().Before(r.ExpiresAt) {
		if err := c.expire(ctx, r); err != nil {
			zap.L().Warn("Failed to expire stale code", zap.String("code", code), zap.Error(err))
		}
		return r, fmt.Errorf("%w: %s", store.ErrCodeExpired, code)
	}
	return r, nil
}

// ConfirmRedemption redeems the vouchers behind a verified code. The
// confirmed status is persisted before the vouchers are flipped. If the flip
// fails the code stays confirmed with its holds taken, and the next confirm
// from the same merchant, sweep or restart finishes it.
func (c *Coordinator) ConfirmRedemption(ctx context.Context, merchantId, code string) (*models.ConfirmationResult, error) {
	result, err := c.confirm(ctx, merchantId, code)
	if err != nil {
		c.metrics.Rejected("confirm", err)
		return nil, err
	}
	return result, nil
}

func (c *Coordinator) confirm(ctx context.Context, merchantId, code string) (*models.ConfirmationResult, error) {
	if _, err := c.registry.ActiveMerchant(merchantId); err != nil {
		return nil, err
	}

	unlock := c.codes.Lock(code)
	defer unlock()

	if r, ok := c.Redemption(code); ok && r.Status == models.RedemptionConfirmed && len(c.unfinished(r)) > 0 {
		if r.MerchantId != merchantId {
			return nil, fmt.Errorf("%w: code %s was verified by another merchant", store.ErrMerchantMismatch, code)
		}
		if err := c.finish(ctx, r); err != nil {
			return nil, err
		}
		zap.L().Info("Interrupted confirmation completed",
			zap.String("code", code),
			zap.String("merchant_id", merchantId))
		return confirmation(r), nil
	}

	r, err := c.live(ctx, code)
	if err != nil {
		return nil, err
	}
	if r.Status == models.RedemptionIssued {
		return nil, fmt.Errorf("%w: code %s has not been verified", store.ErrInvalidState, code)
	}
	if r.MerchantId != merchantId {
		return nil, fmt.Errorf("%w: code %s was verified by another merchant", store.ErrMerchantMismatch, code)
	}

	confirmed := r.Clone()
	confirmed.Status = models.RedemptionConfirmed
	confirmed.CompletedAt = c.now().UTC()

	if err := c.store.SaveRedemption(ctx, confirmed); err != nil {
		zap.L().Error("Failed to persist confirmation",
			zap.String("code", code),
			zap.String("merchant_id", merchantId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to persist confirmation: %w", err)
	}

	c.mu.Lock()
	c.redemptions[code] = confirmed
	c.mu.Unlock()

	if err := c.finish(ctx, confirmed); err != nil {
		return nil, err
	}

	zap.L().Info("Redemption confirmed",
		zap.String("code", code),
		zap.String("merchant_id", merchantId),
		zap.String("household_id", confirmed.HouseholdId),
		zap.String("total", confirmed.Total.String()))

	return confirmation(confirmed), nil
}

func confirmation(r models.PendingRedemption) *models.ConfirmationResult {
	return &models.ConfirmationResult{
		Code:        r.Code,
		HouseholdId: r.HouseholdId,
		MerchantId:  r.MerchantId,
		VoucherIds:  append([]string(nil), r.VoucherIds...),
		Total:       r.Total,
		ConfirmedAt: r.CompletedAt,
	}
}

// unfinished lists the vouchers of a confirmed redemption that are still active.
func (c *Coordinator) unfinished(r models.PendingRedemption) []string {
	if r.Status != models.RedemptionConfirmed {
		return nil
	}
	var ids []string
	for _, id := range r.VoucherIds {
		if v, ok := c.ledger.Get(id); ok && v.State == models.VoucherActive {
			ids = append(ids, id)
		}
	}
	return ids
}

// finish flips whatever a confirmed redemption left active, frees its holds
// and writes the audit record. It must be called with the code lock held,
// or before the coordinator serves requests. On error the holds stay taken.
func (c *Coordinator) finish(ctx context.Context, r models.PendingRedemption) error {
	if pending := c.unfinished(r); len(pending) > 0 {
		if _, err := c.ledger.TransitionToRedeemed(ctx, pending, r.Code, r.CompletedAt); err != nil {
			return fmt.Errorf("failed to redeem vouchers for %s: %w", r.Code, err)
		}
	}

	c.mu.Lock()
	c.releaseLocked(r)
	c.mu.Unlock()

	c.metrics.Redeemed(r.Total)
	c.publishGauges()

	c.appendAudit(ctx, r)
	return nil
}

func (c *Coordinator) appendAudit(ctx context.Context, r models.PendingRedemption) {
	if c.audit == nil {
		return
	}
	err := c.audit.Append(ctx, models.AuditRecord{
		Timestamp:   r.CompletedAt,
		Code:        r.Code,
		MerchantId:  r.MerchantId,
		HouseholdId: r.HouseholdId,
		VoucherIds:  r.VoucherIds,
		Total:       r.Total,
	})
	if err != nil {
		zap.L().Error("Redemption confirmed without audit record",
			zap.String("code", r.Code),
			zap.Error(err))
	}
}

// CancelRedemption withdraws a live code on behalf of its household and
// frees its vouchers.
func (c *Coordinator) CancelRedemption(ctx context.Context, householdId, code string) error {
	if err := c.cancel(ctx, householdId, code); err != nil {
		c.metrics.Rejected("cancel", err)
		return err
	}
	return nil
}

func (c *Coordinator) cancel(ctx context.Context, householdId, code string) error {
	unlockHousehold := c.households.Lock(householdId)
	defer unlockHousehold()
	unlockCode := c.codes.Lock(code)
	defer unlockCode()

	if r, ok := c.Redemption(code); !ok || r.HouseholdId != householdId {
		return fmt.Errorf("%w: %s", store.ErrCodeNotFound, code)
	}
	r, err := c.live(ctx, code)
	if err != nil {
		return err
	}

	cancelled := r.Clone()
	cancelled.Status = models.RedemptionCancelled
	cancelled.CompletedAt = c.now().UTC()

	if err := c.store.SaveRedemption(ctx, cancelled); err != nil {
		zap.L().Error("Failed to persist cancellation", zap.String("code", code), zap.Error(err))
		return fmt.Errorf("failed to persist cancellation: %w", err)
	}

	c.mu.Lock()
	c.redemptions[code] = cancelled
	c.releaseLocked(cancelled)
	c.mu.Unlock()

	c.metrics.RedemptionTransition(string(models.RedemptionCancelled))
	c.publishGauges()

	zap.L().Info("Redeem code cancelled",
		zap.String("code", code),
		zap.String("household_id", householdId))
	return nil
}

// ExpireStale expires every live code whose deadline has passed and returns
// how many it expired. Confirmed codes whose vouchers were never flipped are
// finished on the same pass.
func (c *Coordinator) ExpireStale(ctx context.Context) (int, error) {
	now := c.now()

	c.mu.RLock()
	var stale, interrupted []string
	for code, r := range c.redemptions {
		switch {
		case !r.Status.Terminal() && !now.Before(r.ExpiresAt):
			stale = append(stale, code)
		case len(c.unfinished(r)) > 0:
			interrupted = append(interrupted, code)
		}
	}
	c.mu.RUnlock()

	var errs []error
	for _, code := range interrupted {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		unlock := c.codes.Lock(code)
		if r, ok := c.Redemption(code); ok && len(c.unfinished(r)) > 0 {
			if err := c.finish(ctx, r); err != nil {
				errs = append(errs, err)
			} else {
				zap.L().Info("Interrupted confirmation completed", zap.String("code", code))
			}
		}
		unlock()
	}

	expired := 0
	for _, code := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		unlock := c.codes.Lock(code)
		r, ok := c.Redemption(code)
		if ok && !r.Status.Terminal() && !c.now().Before(r.ExpiresAt) {
			if err := c.expire(ctx, r); err != nil {
				errs = append(errs, err)
			} else {
				expired++
			}
		}
		unlock()
	}

	return expired, errors.Join(errs...)
}

// expire must be called with the code lock held.
func (c *Coordinator) expire(ctx context.Context, r models.PendingRedemption) error {
	expired := r.Clone()
	expired.Status = models.RedemptionExpired
	expired.CompletedAt = c.now().UTC()

	if err := c.store.SaveRedemption(ctx, expired); err != nil {
		return fmt.Errorf("failed to persist expiry of %s: %w", r.Code, err)
	}

	c.mu.Lock()
	c.redemptions[r.Code] = expired
	c.releaseLocked(expired)
	c.mu.Unlock()

	c.metrics.RedemptionTransition(string(models.RedemptionExpired))
	c.publishGauges()

	zap.L().Info("Redeem code expired",
		zap.String("code", r.Code),
		zap.String("household_id", r.HouseholdId),
		zap.Time("expires_at", r.ExpiresAt))
	return nil
}

func (c *Coordinator) releaseLocked(r models.PendingRedemption) {
	for _, id := range r.VoucherIds {
		if c.holds[id] == r.Code {
			delete(c.holds, id)
		}
	}
}

func (c *Coordinator) publishGauges() {
	if c.metrics == nil {
		return
	}
	active, redeemed := c.ledger.Counts()
	c.metrics.SetGauges(c.Pending(), active, redeemed)
}
