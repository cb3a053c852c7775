// Package memory is an in-process VoucherStore. It keeps committed records in
// maps, copies on every boundary, and can be told to fail writes so callers'
// rollback paths can be exercised.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"household-voucher-go/internal/models"
	"household-voucher-go/internal/store"
)

// Compile-time check: *Store must satisfy store.VoucherStore.
var _ store.VoucherStore = (*Store)(nil)

// FailFunc decides whether a write should fail. op is one of "household",
// "merchant", "vouchers", "redemption" or "audit"; key is the record key.
type FailFunc func(op, key string) error

type Store struct {
	mu          sync.RWMutex
	households  map[string]models.Household
	merchants   map[string]models.Merchant
	vouchers    map[string]models.Voucher
	redemptions map[string]models.PendingRedemption
	audit       map[string]models.AuditRecord // by code
	failWrite   FailFunc
}

func New() *Store {
	return &Store{
		households:  make(map[string]models.Household),
		merchants:   make(map[string]models.Merchant),
		vouchers:    make(map[string]models.Voucher),
		redemptions: make(map[string]models.PendingRedemption),
		audit:       make(map[string]models.AuditRecord),
	}
}

// FailWrites installs (or clears, with nil) a write failure hook.
func (s *Store) FailWrites(fn FailFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrite = fn
}

func (s *Store) check(op, key string) error {
	if s.failWrite == nil {
		return nil
	}
	return s.failWrite(op, key)
}

func (s *Store) Load(_ context.Context) (*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := &store.Snapshot{}
	for _, h := range s.households {
		snapshot.Households = append(snapshot.Households, h.Clone())
	}
	for _, m := range s.merchants {
		snapshot.Merchants = append(snapshot.Merchants, m)
	}
	for _, v := range s.vouchers {
		snapshot.Vouchers = append(snapshot.Vouchers, v)
	}
	for _, r := range s.redemptions {
		snapshot.Redemptions = append(snapshot.Redemptions, r.Clone())
	}

	sort.Slice(snapshot.Households, func(i, j int) bool { return snapshot.Households[i].Id < snapshot.Households[j].Id })
	sort.Slice(snapshot.Merchants, func(i, j int) bool { return snapshot.Merchants[i].Id < snapshot.Merchants[j].Id })
	sort.Slice(snapshot.Vouchers, func(i, j int) bool { return snapshot.Vouchers[i].Id < snapshot.Vouchers[j].Id })
	sort.Slice(snapshot.Redemptions, func(i, j int) bool { return snapshot.Redemptions[i].Code < snapshot.Redemptions[j].Code })
	return snapshot, nil
}

func (s *Store) SaveHousehold(_ context.Context, household models.Household) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("household", household.Id); err != nil {
		return err
	}
	for id, existing := range s.households {
		if id != household.Id && strings.EqualFold(existing.Email, household.Email) {
			return fmt.Errorf("%w: email %s already registered", store.ErrDuplicateHousehold, household.Email)
		}
	}

	next := household.Clone()
	// claims are append-only
	if existing, ok := s.households[household.Id]; ok {
		for trancheId, claimedAt := range existing.Claims {
			if _, kept := next.Claims[trancheId]; !kept {
				next.Claims[trancheId] = claimedAt
			}
		}
	}
	s.households[household.Id] = next
	return nil
}

func (s *Store) GetHousehold(_ context.Context, householdId string) (*models.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.households[householdId]
	if !ok {
		return nil, fmt.Errorf("%w: household %s", store.ErrNotFound, householdId)
	}
	clone := h.Clone()
	return &clone, nil
}

func (s *Store) GetHouseholdByEmail(_ context.Context, email string) (*models.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, h := range s.households {
		if strings.EqualFold(h.Email, email) {
			clone := h.Clone()
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("%w: household %s", store.ErrNotFound, email)
}

func (s *Store) SaveMerchant(_ context.Context, merchant models.Merchant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("merchant", merchant.Id); err != nil {
		return err
	}
	for id, existing := range s.merchants {
		if id != merchant.Id && existing.RegistrationNumber == merchant.RegistrationNumber {
			return fmt.Errorf("%w: registration number %s already registered", store.ErrDuplicateMerchant, merchant.RegistrationNumber)
		}
	}
	s.merchants[merchant.Id] = merchant
	return nil
}

func (s *Store) GetMerchant(_ context.Context, merchantId string) (*models.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.merchants[merchantId]
	if !ok {
		return nil, fmt.Errorf("%w: merchant %s", store.ErrNotFound, merchantId)
	}
	return &m, nil
}

func (s *Store) SaveVouchers(_ context.Context, vouchers []models.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range vouchers {
		if err := s.check("vouchers", v.Id); err != nil {
			return err
		}
	}
	for _, v := range vouchers {
		if existing, ok := s.vouchers[v.Id]; ok && existing.State == models.VoucherRedeemed {
			continue
		}
		s.vouchers[v.Id] = v
	}
	return nil
}

func (s *Store) GetVoucher(_ context.Context, voucherId string) (*models.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vouchers[voucherId]
	if !ok {
		return nil, fmt.Errorf("%w: voucher %s", store.ErrNotFound, voucherId)
	}
	return &v, nil
}

func (s *Store) SaveRedemption(_ context.Context, r models.PendingRedemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("redemption", r.Code); err != nil {
		return err
	}
	if existing, ok := s.redemptions[r.Code]; ok && existing.Status.Terminal() && existing.Status != r.Status {
		return fmt.Errorf("%w: redemption %s is already terminal", store.ErrInvalidState, r.Code)
	}
	s.redemptions[r.Code] = r.Clone()
	return nil
}

func (s *Store) GetRedemption(_ context.Context, code string) (*models.PendingRedemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.redemptions[code]
	if !ok {
		return nil, fmt.Errorf("%w: redemption %s", store.ErrNotFound, code)
	}
	clone := r.Clone()
	return &clone, nil
}

// AppendAudit stores one record per redeem code.
func (s *Store) AppendAudit(_ context.Context, record models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("audit", record.Code); err != nil {
		return err
	}
	if _, ok := s.audit[record.Code]; ok {
		return nil
	}
	record.VoucherIds = append([]string(nil), record.VoucherIds...)
	s.audit[record.Code] = record
	return nil
}

// AuditBucket returns the records of one bucket ordered by timestamp.
func (s *Store) AuditBucket(_ context.Context, bucket time.Time) ([]models.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []models.AuditRecord
	for _, r := range s.audit {
		if r.Bucket.Equal(bucket) {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Id < records[j].Id
		}
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

func (s *Store) Close() {}
