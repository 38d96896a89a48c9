// Package paging implements the infinite-scroll list controller: fixed-size
// pages fetched one at a time, reset whenever the filter changes.
package paging

import (
	"context"
	"sync"
)

type State int

const (
	Idle State = iota
	LoadingFirstPage
	LoadingNextPage
	Exhausted
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LoadingFirstPage:
		return "loading_first_page"
	case LoadingNextPage:
		return "loading_next_page"
	case Exhausted:
		return "exhausted"
	case Error:
		return "error"
	}
	return "unknown"
}

// Fetcher loads page index of size rows for filter.
type Fetcher[T, F any] func(ctx context.Context, filter F, index, size int) ([]T, error)

// Controller accumulates pages for the current filter. Fetches run outside
// the lock; a result is committed only if no newer filter was set meanwhile.
type Controller[T, F any] struct {
	fetch Fetcher[T, F]
	size  int

	mu     sync.Mutex
	filter F
	gen    uint64
	state  State
	loaded int
	items  []T
	err    error
}

// Snapshot is a consistent copy of the controller's view state.
type Snapshot[T, F any] struct {
	Filter F
	State  State
	Items  []T
	// Pages is the number of pages loaded, which is also the next page index.
	Pages int
	Err   error
}

// HasMore reports whether scrolling further can load more rows.
func (s Snapshot[T, F]) HasMore() bool { return s.State != Exhausted }

func New[T, F any](size int, fetch Fetcher[T, F]) *Controller[T, F] {
	if size <= 0 {
		panic("paging: page size must be positive")
	}
	return &Controller[T, F]{fetch: fetch, size: size}
}

func (c *Controller[T, F]) PageSize() int { return c.size }

// SetFilter discards loaded rows and loads the first page for filter. It
// returns the fetch error, or nil when the result was superseded.
func (c *Controller[T, F]) SetFilter(ctx context.Context, filter F) error {
	c.mu.Lock()
	c.gen++
	c.filter = filter
	c.items = nil
	c.loaded = 0
	c.err = nil
	c.state = LoadingFirstPage
	gen := c.gen
	c.mu.Unlock()

	rows, err := c.fetch(ctx, filter, 0, c.size)
	if !c.commit(gen, 0, rows, err) {
		return nil
	}
	return err
}

// NearBottom is the scroll trigger. It loads the next page when the
// controller is idle, or retries the failed page after an error. Triggers
// while a page is loading or after exhaustion are ignored and report false,
// as does a fetch superseded by a newer filter.
func (c *Controller[T, F]) NearBottom(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.state != Idle && c.state != Error {
		c.mu.Unlock()
		return false, nil
	}
	index := c.loaded
	if index == 0 {
		c.state = LoadingFirstPage
	} else {
		c.state = LoadingNextPage
	}
	c.err = nil
	gen, filter := c.gen, c.filter
	c.mu.Unlock()

	rows, err := c.fetch(ctx, filter, index, c.size)
	if !c.commit(gen, index, rows, err) {
		return false, nil
	}
	return true, err
}

func (c *Controller[T, F]) commit(gen uint64, index int, rows []T, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	if err != nil {
		c.state = Error
		c.err = err
		return true
	}
	c.items = append(c.items, rows...)
	c.loaded = index + 1
	if len(rows) < c.size {
		c.state = Exhausted
	} else {
		c.state = Idle
	}
	return true
}

func (c *Controller[T, F]) Snapshot() Snapshot[T, F] {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]T, len(c.items))
	copy(items, c.items)
	return Snapshot[T, F]{
		Filter: c.filter,
		State:  c.state,
		Items:  items,
		Pages:  c.loaded,
		Err:    c.err,
	}
}
