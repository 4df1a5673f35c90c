package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCentroidFormula(t *testing.T) {
	tests := []struct {
		name   string
		box    Box
		wantCx int
		wantCy int
	}{
		{"origin box", Box{X: 0, Y: 0, W: 10, H: 20}, 5, 10},
		{"offset box", Box{X: 100, Y: 50, W: 40, H: 30}, 70, 40},
		{"odd sums truncate", Box{X: 1, Y: 1, W: 2, H: 4}, 1, 2},
		{"zero size", Box{X: 7, Y: 9, W: 0, H: 0}, 3, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cx, cy := tt.box.Centroid()
			assert.Equal(t, tt.wantCx, cx)
			assert.Equal(t, tt.wantCy, cy)

			// Recomputation is idempotent.
			cx2, cy2 := tt.box.Centroid()
			assert.Equal(t, cx, cx2)
			assert.Equal(t, cy, cy2)
		})
	}
}

func TestUpdateReusesIDWithinMaxDistance(t *testing.T) {
	tr := New(0, 30)

	first := tr.Update([]Box{{X: 10, Y: 10, W: 20, H: 20}})
	require.Len(t, first, 1)
	assert.Equal(t, 0, first[0].ObjectID)

	// Moved a few pixels, same object.
	second := tr.Update([]Box{{X: 14, Y: 12, W: 20, H: 20}})
	require.Len(t, second, 1)
	assert.Equal(t, 0, second[0].ObjectID)

	// Jumped beyond the threshold, new object.
	third := tr.Update([]Box{{X: 200, Y: 200, W: 20, H: 20}})
	require.Len(t, third, 1)
	assert.Equal(t, 1, third[0].ObjectID)
}

func TestUpdateAllocatesMonotonicIDs(t *testing.T) {
	tr := New(5, 10)

	out := tr.Update([]Box{
		{X: 0, Y: 0, W: 4, H: 4},
		{X: 100, Y: 0, W: 4, H: 4},
		{X: 200, Y: 0, W: 4, H: 4},
	})
	require.Len(t, out, 3)
	assert.Equal(t, 5, out[0].ObjectID)
	assert.Equal(t, 6, out[1].ObjectID)
	assert.Equal(t, 7, out[2].ObjectID)
	assert.Equal(t, 8, tr.NextID())
}

func TestUpdateTieResolvesToLowestID(t *testing.T) {
	tr := New(0, 50)

	// Entities at centroids (0,0) id 0 and (80,0) id 1, too far apart to
	// match each other.
	tr.Update([]Box{
		{X: 0, Y: 0, W: 0, H: 0},
		{X: 80, Y: 0, W: 80, H: 0},
	})
	require.Equal(t, 2, tr.Count())

	// Centroid (40,0) is exactly 40 away from both; the lower id wins.
	out := tr.Update([]Box{{X: 40, Y: 0, W: 40, H: 0}})
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].ObjectID)
}

func TestEntitiesRetainedWhenUnmatched(t *testing.T) {
	tr := New(0, 30)

	tr.Update([]Box{{X: 10, Y: 10, W: 10, H: 10}})
	// Several empty frames, object gone.
	tr.Update(nil)
	tr.Update(nil)
	assert.Equal(t, 1, tr.Count())

	// Object comes back near its old position and keeps its id.
	out := tr.Update([]Box{{X: 12, Y: 11, W: 10, H: 10}})
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].ObjectID)
}

func TestNewTrackerSeededFromPersistedMax(t *testing.T) {
	// Restart scenario: ids already persisted for today must not repeat.
	tr := New(42, 30)
	out := tr.Update([]Box{{X: 0, Y: 0, W: 2, H: 2}})
	require.Len(t, out, 1)
	assert.Equal(t, 42, out[0].ObjectID)
}
