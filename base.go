package refbase

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"go.uber.org/atomic"
)

// policySealed marks the policy word once a counter has been bound.
const policySealed uint32 = 1 << 31

// Base makes the embedding type an [Object]. The zero value is ready to use.
type Base struct {
	counter        atomic.Pointer[Counter]
	policy         atomic.Uint32
	done           chan struct{}
	initializeDone sync.Once
}

func (b *Base) base() *Base {
	return b
}

func kindOf(o Object) string {
	if o == nil {
		return "Unknown"
	}

	t := reflect.TypeOf(o)

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return t.Name()
}

func isNil(o Object) bool {
	if o == nil {
		return true
	}

	v := reflect.ValueOf(o)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// bind returns the counter of owner, creating it on first use. The lifetime
// policy is sealed by the first bind.
func (b *Base) bind(owner Object) *Counter {
	if c := b.counter.Load(); c != nil {
		return c
	}

	c := newCounter(owner, b.seal())

	if b.counter.CompareAndSwap(nil, c) {
		traceCounter("bind", c)
		return c
	}

	return b.counter.Load()
}

func (b *Base) seal() Policy {
	for {
		cur := b.policy.Load()

		if cur&policySealed != 0 {
			return Policy(cur &^ policySealed)
		}

		if b.policy.CompareAndSwap(cur, cur|policySealed) {
			return Policy(cur)
		}
	}
}

// SetLifetimePolicy chooses the lifetime policy of the object. It must be
// called before the first handle to the object is created. A later call is
// reported as [ErrPolicyMisuse] and the policy in effect is kept.
func (b *Base) SetLifetimePolicy(p Policy) error {
	if !p.valid() {
		err := fmt.Errorf("%w: unknown policy %s", ErrPolicyMisuse, p)
		contractViolation(violationPolicy, err)
		return err
	}

	for {
		cur := b.policy.Load()

		if cur&policySealed != 0 {
			err := fmt.Errorf(
				"%w: %s requested after the first handle, keeping %s",
				ErrPolicyMisuse, p, Policy(cur&^policySealed),
			)
			contractViolation(violationPolicy, err)
			return err
		}

		if b.policy.CompareAndSwap(cur, uint32(p)) {
			return nil
		}
	}
}

// ExtendObjectLifetime switches the object to [WeakGoverns].
func (b *Base) ExtendObjectLifetime() error {
	return b.SetLifetimePolicy(WeakGoverns)
}

// LifetimePolicy returns the current lifetime policy.
func (b *Base) LifetimePolicy() Policy {
	return Policy(b.policy.Load() &^ policySealed)
}

// IsLifeTimeExtended reports whether the object uses [WeakGoverns].
func (b *Base) IsLifeTimeExtended() bool {
	return b.LifetimePolicy() == WeakGoverns
}

// Counter returns the shared counter of the object, or nil if no handle has
// been created yet.
func (b *Base) Counter() *Counter {
	return b.counter.Load()
}

// StrongRefCount returns the number of strong claims. The bias of an object
// that was never strongly referenced reads as zero.
func (b *Base) StrongRefCount() int32 {
	c := b.counter.Load()
	if c == nil {
		return 0
	}

	if s := c.strong.Load(); s != InitialStrong {
		return s
	}

	return 0
}

// WeakRefCount returns the number of weak claims, strong handles included.
func (b *Base) WeakRefCount() uint32 {
	c := b.counter.Load()
	if c == nil {
		return 0
	}

	return c.weak.Load()
}

// RefCount returns the number of handles referencing the shared counter.
func (b *Base) RefCount() int32 {
	c := b.counter.Load()
	if c == nil {
		return 0
	}

	return c.self.Load()
}

// Alive reports whether the object has not been destroyed yet.
func (b *Base) Alive() bool {
	c := b.counter.Load()
	return c == nil || !c.destroyed.Load()
}

func (b *Base) initializeDoneChan() {
	b.initializeDone.Do(func() {
		b.done = make(chan struct{})
	})
}

// Done returns a channel that is closed once the object has been destroyed.
func (b *Base) Done() <-chan struct{} {
	b.initializeDoneChan()
	return b.done
}

func (b *Base) markDone() {
	b.initializeDoneChan()
	close(b.done)
}

func (b *Base) debug(msg string) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	c := b.counter.Load()
	if c == nil {
		logger.Debug(msg)
		return
	}

	logger.Debug(fmt.Sprintf("%s %s", c.kind, msg), "id", c.id)
}

func (b *Base) OnFirstStrongRef() {
	b.debug("first strong reference.")
}

func (b *Base) OnLastStrongRef() {
	b.debug("last strong reference released.")
}

func (b *Base) OnLastWeakRef() {
	b.debug("last weak reference released.")
}

func (b *Base) OnAttemptPromoted() bool {
	return true
}

func (b *Base) OnDestroy() {
	b.debug("destroyed.")
}
