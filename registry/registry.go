// Package registry keeps weak observers of reference-counted objects under
// caller-chosen keys.
//
// A registry never keeps an object alive: it stores weak handles and hands out
// strong ones only while the object still exists. Expired entries stay in
// place until they are looked up, deleted or swept.
package registry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/rnkv/refbase-go"
)

// DefaultSweepInterval is how often Run drops expired entries unless
// WithSweepInterval says otherwise.
const DefaultSweepInterval = 30 * time.Second

// ErrNotFound indicates no entry is registered under the key.
var ErrNotFound = errors.New("registry: key not found")

// Option is a functional option for configuring a Registry.
type Option func(*options)

type options struct {
	sweepInterval time.Duration
	logger        *slog.Logger
}

// WithSweepInterval sets how often Run sweeps expired entries. Non-positive
// values are ignored.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sweepInterval = d
		}
	}
}

// WithLogger sets the logger used for sweep reports.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Registry maps keys to weak handles.
//
// Thread Safety: Registry is safe for concurrent use. Handles are released
// outside the internal lock, so object hooks may call back into the registry.
type Registry[K comparable, T refbase.Object] struct {
	mu      sync.RWMutex
	entries map[K]*refbase.Weak[T]
	opts    options
}

// New creates an empty registry.
func New[K comparable, T refbase.Object](opts ...Option) *Registry[K, T] {
	o := options{
		sweepInterval: DefaultSweepInterval,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return &Registry[K, T]{
		entries: make(map[K]*refbase.Weak[T]),
		opts:    o,
	}
}

// Put registers a weak observer of the object held by s under key, replacing
// any previous entry. The registry does not take over the strong claim.
func (r *Registry[K, T]) Put(key K, s *refbase.Strong[T]) error {
	if s.IsEmpty() {
		return fmt.Errorf("registry: put %v: %w", key, refbase.ErrNullAccess)
	}

	w := s.Weak()

	r.mu.Lock()
	prev := r.entries[key]
	r.entries[key] = w
	r.mu.Unlock()

	prev.Reset()
	return nil
}

// Get returns a strong handle to the object registered under key. It fails
// with ErrNotFound for unknown keys and with refbase.ErrPromotionFailed once
// the object is gone; the expired entry is kept until Delete or Sweep.
func (r *Registry[K, T]) Get(key K) (*refbase.Strong[T], error) {
	r.mu.RLock()
	w, ok := r.entries[key]
	if ok {
		// A private clone keeps the counter alive once the lock is dropped.
		w = w.Clone()
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, key)
	}
	defer w.Reset()

	s, ok := w.Promote()
	if !ok {
		return nil, fmt.Errorf("%w: %v", refbase.ErrPromotionFailed, key)
	}

	return s, nil
}

// Delete removes the entry under key and reports whether there was one.
func (r *Registry[K, T]) Delete(key K) bool {
	r.mu.Lock()
	w, ok := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()

	w.Reset()
	return ok
}

// Len returns the number of entries, expired ones included.
func (r *Registry[K, T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Keys returns the registered keys ordered by the identity of the objects they
// observe.
func (r *Registry[K, T]) Keys() []K {
	type keyed struct {
		key K
		id  uint64
	}

	r.mu.RLock()
	all := make([]keyed, 0, len(r.entries))
	for k, w := range r.entries {
		all = append(all, keyed{key: k, id: w.ID()})
	}
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b keyed) int {
		return cmp.Compare(a.id, b.id)
	})

	keys := make([]K, len(all))
	for i, e := range all {
		keys[i] = e.key
	}
	return keys
}

// Sweep drops every entry whose object can no longer be promoted and returns
// how many were dropped.
func (r *Registry[K, T]) Sweep() int {
	var expired []*refbase.Weak[T]

	r.mu.Lock()
	for k, w := range r.entries {
		if w.Expired() {
			expired = append(expired, w)
			delete(r.entries, k)
		}
	}
	r.mu.Unlock()

	for _, w := range expired {
		w.Reset()
	}

	if len(expired) > 0 {
		r.opts.logger.Debug("registry: swept expired entries", "count", len(expired))
	}

	return len(expired)
}

// Clear drops every entry.
func (r *Registry[K, T]) Clear() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[K]*refbase.Weak[T])
	r.mu.Unlock()

	for _, w := range entries {
		w.Reset()
	}
}

// Run sweeps the registry periodically until ctx is canceled.
func (r *Registry[K, T]) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Sweep()
		}
	}
}
