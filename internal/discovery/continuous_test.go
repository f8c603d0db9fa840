package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospeqta/leadgen-cli/internal/model"
)

func TestContinuousRunsUntilExhausted(t *testing.T) {
	var pages []int
	fetch := func(_ context.Context, page int) ([]model.Lead, bool, error) {
		pages = append(pages, page)
		return []model.Lead{{Name: "lead"}}, page == 3, nil
	}
	var emitted int
	err := NewContinuous(1000, 0).Run(context.Background(), fetch, func(leads []model.Lead) {
		emitted += len(leads)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, pages)
	assert.Equal(t, 3, emitted)
}

func TestContinuousHonorsPageBudget(t *testing.T) {
	var calls int
	fetch := func(_ context.Context, _ int) ([]model.Lead, bool, error) {
		calls++
		return nil, false, nil
	}
	err := NewContinuous(1000, 2).Run(context.Background(), fetch, func([]model.Lead) {})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestContinuousStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	fetch := func(_ context.Context, _ int) ([]model.Lead, bool, error) {
		calls++
		cancel()
		return nil, false, nil
	}
	err := NewContinuous(1000, 0).Run(ctx, fetch, func([]model.Lead) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestContinuousHaltsOnError(t *testing.T) {
	fetch := func(_ context.Context, _ int) ([]model.Lead, bool, error) {
		return nil, false, errVendorDown
	}
	err := NewContinuous(1000, 0).Run(context.Background(), fetch, func([]model.Lead) {})
	assert.ErrorIs(t, err, errVendorDown)
}
