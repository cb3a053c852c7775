package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrorsAreDistinct(t *testing.T) {
	all := []error{
		ErrUnknownHousehold, ErrUnknownMerchant, ErrInvalidTranche, ErrInvalidDenominationPlan,
		ErrInvalidProfile, ErrInvalidBankDetails, ErrVoucherNotFound, ErrDuplicateHousehold,
		ErrDuplicateMerchant, ErrAlreadyClaimed, ErrVoucherUnavailable, ErrInvalidState,
		ErrCodeNotFound, ErrCodeExpired, ErrMerchantMismatch, ErrMerchantInactive, ErrNotFound,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}

func TestSentinelErrorsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("household h1: %w", ErrAlreadyClaimed)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.NotErrorIs(t, err, ErrCodeNotFound)
}
