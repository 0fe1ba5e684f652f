// Package par runs independent work items on a bounded set of goroutines.
package par

import "sync"

// Work manages a set of work items to be executed in parallel, at most once each.
// The items in the set must all be valid map keys.
type Work[T comparable] struct {
	mu    sync.Mutex
	added map[T]bool
	todo  []T
}

// Add adds item to the work set, if it hasn't already been added.
// Add must not be called once Do has started.
func (w *Work[T]) Add(item T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.added == nil {
		w.added = make(map[T]bool)
	}
	if !w.added[item] {
		w.added[item] = true
		w.todo = append(w.todo, item)
	}
}

// Len returns the number of distinct items added.
func (w *Work[T]) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.todo)
}

// Do runs f on every item, with at most n invocations of f running at a
// time, and returns when all have finished. Items are started in the
// order they were added. A failing f does not stop the others; errors are
// for f to record.
func (w *Work[T]) Do(n int, f func(item T)) {
	if n < 1 {
		panic("par.Work.Do: n < 1")
	}
	w.mu.Lock()
	todo := w.todo
	w.todo = nil
	w.mu.Unlock()

	if n == 1 {
		for _, item := range todo {
			f(item)
		}
		return
	}

	items := make(chan T)
	var wg sync.WaitGroup
	for i := 0; i < min(n, len(todo)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range items {
				f(item)
			}
		}()
	}
	for _, item := range todo {
		items <- item
	}
	close(items)
	wg.Wait()
}
