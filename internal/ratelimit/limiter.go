// Package ratelimit bounds concurrent access to expensive read paths with
// per-category semaphores.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
)

// Categories with dedicated semaphores. Document reads cover heavyweight
// format conversion; markdown reads are cheap and get a wider lane.
const (
	CategoryDocument = "document"
	CategoryMarkdown = "markdown"
)

// Config sizes each category's semaphore. A zero or negative size leaves
// the category unlimited.
type Config struct {
	DocumentReads int
	MarkdownReads int
}

// Limiter holds one counting semaphore per category. Acquire returns a
// release function so the acquire-release pairing survives early returns
// and panics via defer.
type Limiter struct {
	mu   sync.RWMutex
	sems map[string]chan struct{}
}

// NewLimiter builds a limiter for the configured categories.
func NewLimiter(cfg Config) *Limiter {
	l := &Limiter{sems: make(map[string]chan struct{})}
	if cfg.DocumentReads > 0 {
		l.sems[CategoryDocument] = make(chan struct{}, cfg.DocumentReads)
	}
	if cfg.MarkdownReads > 0 {
		l.sems[CategoryMarkdown] = make(chan struct{}, cfg.MarkdownReads)
	}
	return l
}

// Acquire blocks until a slot in the category is free or ctx is done.
// The returned release function is idempotent. Unknown categories are
// unlimited and release is a no-op.
func (l *Limiter) Acquire(ctx context.Context, category string) (func(), error) {
	l.mu.RLock()
	sem, ok := l.sems[category]
	l.mu.RUnlock()
	if !ok {
		return func() {}, nil
	}

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire %s slot: %w", category, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-sem })
	}, nil
}

// TryAcquire takes a slot without blocking. The boolean reports whether a
// slot was taken; the release function is always safe to call.
func (l *Limiter) TryAcquire(category string) (func(), bool) {
	l.mu.RLock()
	sem, ok := l.sems[category]
	l.mu.RUnlock()
	if !ok {
		return func() {}, true
	}

	select {
	case sem <- struct{}{}:
	default:
		return func() {}, false
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-sem })
	}, true
}

// InFlight reports how many slots a category currently has taken.
func (l *Limiter) InFlight(category string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if sem, ok := l.sems[category]; ok {
		return len(sem)
	}
	return 0
}
