package aggregate

// Window is a bounded most-recent-first list. Pushing past the cap evicts
// the oldest entry.
type Window[T any] struct {
	items []T
	cap   int
}

func NewWindow[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{items: make([]T, 0, capacity), cap: capacity}
}

// Push prepends v.
func (w *Window[T]) Push(v T) {
	if len(w.items) < w.cap {
		w.items = append(w.items, v)
	}
	copy(w.items[1:], w.items[:len(w.items)-1])
	w.items[0] = v
}

// Insert places v ahead of the first entry it is newer than, keeping the
// window ordered by newer. It reports false when v is older than every
// entry of a full window and was not kept.
func (w *Window[T]) Insert(v T, newer func(a, b T) bool) bool {
	i := 0
	for i < len(w.items) && !newer(v, w.items[i]) {
		i++
	}
	if i == w.cap {
		return false
	}
	if len(w.items) < w.cap {
		w.items = append(w.items, v)
	}
	copy(w.items[i+1:], w.items[i:len(w.items)-1])
	w.items[i] = v
	return true
}

// Find returns the newest entry matching match.
func (w *Window[T]) Find(match func(T) bool) (T, bool) {
	for _, v := range w.items {
		if match(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Reset replaces the contents with the first Cap entries of newestFirst.
func (w *Window[T]) Reset(newestFirst []T) {
	n := min(len(newestFirst), w.cap)
	w.items = append(w.items[:0], newestFirst[:n]...)
}

func (w *Window[T]) Len() int { return len(w.items) }
func (w *Window[T]) Cap() int { return w.cap }

// Items returns a copy, newest first.
func (w *Window[T]) Items() []T {
	out := make([]T, len(w.items))
	copy(out, w.items)
	return out
}
