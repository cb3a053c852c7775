package common

import (
	"context"
	"testing"

	"household-voucher-go/internal/models"
	"household-voucher-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLister []models.Household

func (l staticLister) Households() []models.Household { return l }

func TestFindHouseholds(t *testing.T) {
	lister := staticLister{
		{Id: "h1", Name: "Lim Family", Email: "lim@example.com"},
		{Id: "h2", Name: "Ng Family", Email: "ng@example.com"},
	}
	ctx := context.Background()

	all, err := FindHouseholds(ctx, lister, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := FindHouseholds(ctx, lister, "NG@example.com")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "h2", one[0].Id)

	_, err = FindHouseholds(ctx, lister, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrUnknownHousehold)
}
