package aggregate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/aggregate"
)

func TestWindow_PushEvictsOldest(t *testing.T) {
	w := aggregate.NewWindow[int](3)
	for i := 1; i <= 5; i++ {
		w.Push(i)
	}
	assert.Equal(t, []int{5, 4, 3}, w.Items())
	assert.Equal(t, 3, w.Len())
}

func TestWindow_ResetTruncates(t *testing.T) {
	w := aggregate.NewWindow[int](2)
	w.Push(9)
	w.Reset([]int{3, 2, 1})
	assert.Equal(t, []int{3, 2}, w.Items())

	w.Reset(nil)
	assert.Empty(t, w.Items())
}

func TestWindow_ItemsIsCopy(t *testing.T) {
	w := aggregate.NewWindow[int](2)
	w.Push(1)
	items := w.Items()
	items[0] = 42
	assert.Equal(t, []int{1}, w.Items())
}

func TestWindow_InsertKeepsOrder(t *testing.T) {
	newer := func(a, b int) bool { return a > b }
	w := aggregate.NewWindow[int](3)

	assert.True(t, w.Insert(5, newer))
	assert.True(t, w.Insert(9, newer))
	assert.True(t, w.Insert(7, newer))
	assert.Equal(t, []int{9, 7, 5}, w.Items())

	// Older than everything in a full window: not kept.
	assert.False(t, w.Insert(1, newer))
	assert.Equal(t, []int{9, 7, 5}, w.Items())

	assert.True(t, w.Insert(6, newer))
	assert.Equal(t, []int{9, 7, 6}, w.Items())
}

func TestWindow_Find(t *testing.T) {
	w := aggregate.NewWindow[int](3)
	w.Push(4)
	w.Push(8)

	v, ok := w.Find(func(i int) bool { return i%4 == 0 })
	assert.True(t, ok)
	assert.Equal(t, 8, v)

	_, ok = w.Find(func(i int) bool { return i > 100 })
	assert.False(t, ok)
}
