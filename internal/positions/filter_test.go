package positions

import (
	"testing"

	"github.com/pscheid92/thereiwas/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestFilterByAccuracy(t *testing.T) {
	records := []domain.Position{
		{HorizontalAccuracy: 10, Latitude: 1},
		{HorizontalAccuracy: 20, Latitude: 2},
		{HorizontalAccuracy: 15, Latitude: 3},
		{HorizontalAccuracy: 15.01, Latitude: 4},
		{HorizontalAccuracy: 0, Latitude: 5},
	}

	kept := FilterByAccuracy(records, 15)

	assert.Equal(t, []domain.Position{
		{HorizontalAccuracy: 10, Latitude: 1},
		{HorizontalAccuracy: 15, Latitude: 3},
		{HorizontalAccuracy: 0, Latitude: 5},
	}, kept)
}

func TestFilterByAccuracy_Empty(t *testing.T) {
	assert.Empty(t, FilterByAccuracy(nil, 15))
	assert.NotNil(t, FilterByAccuracy(nil, 15))
}

func TestFilterByAccuracy_AllDropped(t *testing.T) {
	kept := FilterByAccuracy([]domain.Position{{HorizontalAccuracy: 16}, {HorizontalAccuracy: 100}}, 15)
	assert.Empty(t, kept)
}

func TestFilterByAccuracy_DoesNotMutateInput(t *testing.T) {
	records := []domain.Position{{HorizontalAccuracy: 20}, {HorizontalAccuracy: 5}}
	_ = FilterByAccuracy(records, 15)
	assert.Equal(t, float64(20), records[0].HorizontalAccuracy)
}
