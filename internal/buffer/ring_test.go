package buffer_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OldStager01/leakwatch/internal/buffer"
)

func TestRing_EvictsOldest(t *testing.T) {
	r := buffer.NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}

	assert.Equal(t, []int{3, 4, 5}, r.Snapshot())
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{4, 5}, r.Last(2))
	assert.Equal(t, []int{3, 4, 5}, r.Last(10))
	assert.Nil(t, r.Last(0))
}

func TestRing_Replace(t *testing.T) {
	tests := []struct {
		name     string
		src      []int
		expected []int
	}{
		{"shorter than capacity", []int{1, 2}, []int{1, 2}},
		{"longer than capacity", []int{1, 2, 3, 4, 5, 6}, []int{3, 4, 5, 6}},
		{"empty", nil, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := buffer.NewRing[int](4)
			r.Push(99)
			r.Replace(tt.src)
			assert.Equal(t, tt.expected, r.Snapshot())
		})
	}
}

func TestRing_SnapshotIsCopy(t *testing.T) {
	r := buffer.NewRing[int](2)
	r.Push(1)
	snap := r.Snapshot()
	snap[0] = 42

	assert.Equal(t, []int{1}, r.Snapshot())
}

func TestRing_ConcurrentPushNeverExceedsCapacity(t *testing.T) {
	r := buffer.NewSequenceBuffer(0)
	h := buffer.NewPredictionHistory(0)
	assert.Equal(t, buffer.DefaultSequenceLength, r.Cap())
	assert.Equal(t, buffer.DefaultHistoryLength, h.Cap())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				h.Push(float64(j))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				assert.LessOrEqual(t, len(h.Snapshot()), h.Cap())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, h.Cap(), h.Len())
}
