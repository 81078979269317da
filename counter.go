package refbase

import (
	"fmt"
	"math"

	"go.uber.org/atomic"
)

// InitialStrong is the bias a fresh strong count starts at. It tells "no strong
// handle has ever existed" apart from "every strong handle has been released".
// Real strong counts stay far below it, and InitialStrong plus any plausible
// count still fits in an int32.
const InitialStrong int32 = 1 << 28

var counterSeq atomic.Uint64

// Counter is the shared block holding the strong, weak and self counts of one
// managed object. It is bound lazily to its object when the first handle is
// created and is only ever mutated through handles.
//
// Every strong handle is also a weak claim, so the weak count never drops below
// the number of live strong handles. Every handle of either kind holds one self
// claim; the block is released when the self count reaches zero.
type Counter struct {
	id     uint64
	kind   string
	policy Policy
	owner  Object

	strong atomic.Int32
	weak   atomic.Uint32
	self   atomic.Int32

	destroyed atomic.Bool
	freed     atomic.Bool
}

func newCounter(owner Object, policy Policy) *Counter {
	c := &Counter{
		id:     counterSeq.Inc(),
		kind:   kindOf(owner),
		policy: policy,
		owner:  owner,
	}
	c.strong.Store(InitialStrong)
	return c
}

// ID returns the process-unique identity of the managed object.
func (c *Counter) ID() uint64 {
	return c.id
}

// StrongCount returns the raw strong count, InitialStrong included while no
// strong handle has ever existed.
func (c *Counter) StrongCount() int32 {
	return c.strong.Load()
}

// WeakCount returns the weak count, including the implicit claim of every
// live strong handle.
func (c *Counter) WeakCount() uint32 {
	return c.weak.Load()
}

// SelfCount returns the number of handles referencing the counter.
func (c *Counter) SelfCount() int32 {
	return c.self.Load()
}

// Policy returns the lifetime policy sealed when the counter was bound.
func (c *Counter) Policy() Policy {
	return c.policy
}

// IsDestroyed reports whether OnDestroy has run for the managed object.
func (c *Counter) IsDestroyed() bool {
	return c.destroyed.Load()
}

// IsFreed reports whether the last handle referencing the counter is gone.
func (c *Counter) IsFreed() bool {
	return c.freed.Load()
}

// alive reports whether the owner has neither been destroyed nor released.
func (c *Counter) alive() bool {
	return !c.destroyed.Load() && !c.freed.Load()
}

// acquirable reports whether a new strong claim may be built from a raw
// reference to the owner. The bias counts as positive, so objects that were
// never strongly referenced qualify.
func (c *Counter) acquirable() bool {
	return c.alive() && c.strong.Load() > 0
}

func (c *Counter) incStrong() {
	c.weak.Inc()
	prev := c.strong.Inc() - 1
	traceCounter("incStrong", c)

	if prev == InitialStrong {
		c.strong.Sub(InitialStrong)
		c.owner.OnFirstStrongRef()
	}
}

func (c *Counter) decStrong() {
	n := c.strong.Dec()
	traceCounter("decStrong", c)

	switch {
	case n == 0:
		c.owner.OnLastStrongRef()
		if c.policy == StrongGoverns {
			c.destroy()
		}
	case n < 0:
		contractViolation(violationOverRelease, fmt.Errorf("%w: %s #%d strong count %d", ErrOverRelease, c.kind, c.id, n))
	}

	c.decWeak()
}

func (c *Counter) incWeak() {
	c.weak.Inc()
	traceCounter("incWeak", c)
}

func (c *Counter) decWeak() {
	n := c.weak.Dec()
	traceCounter("decWeak", c)

	if n == math.MaxUint32 {
		contractViolation(violationOverRelease, fmt.Errorf("%w: %s #%d weak count below zero", ErrOverRelease, c.kind, c.id))
		return
	}

	if n != 0 {
		return
	}

	c.owner.OnLastWeakRef()

	// An object that was only ever weakly referenced has nobody left to
	// release it under StrongGoverns either.
	if c.policy == WeakGoverns || c.strong.Load() == InitialStrong {
		c.destroy()
	}
}

func (c *Counter) incSelf() {
	c.self.Inc()
}

func (c *Counter) decSelf() {
	n := c.self.Dec()

	switch {
	case n == 0:
		c.free()
	case n < 0:
		contractViolation(violationOverRelease, fmt.Errorf("%w: %s #%d self count %d", ErrOverRelease, c.kind, c.id, n))
	}
}

// attemptPromote turns a weak claim into an additional strong claim if, and
// only if, the object is still alive. It never moves the strong count away from
// a value at or below zero, so a thread observing zero knows the destruction
// decision has already been taken.
//
// A weak-only object is asked before the bias is consumed: the caller's weak
// claim keeps it alive meanwhile, and a veto must leave it untouched. Owned
// objects are asked after the claim is won, so they cannot die during the
// hook.
func (c *Counter) attemptPromote() bool {
	approved := false

	for {
		cur := c.strong.Load()

		switch {
		case cur == InitialStrong:
			if !approved {
				if !c.owner.OnAttemptPromoted() {
					traceCounter("attemptPromote vetoed", c)
					recordPromotion(false)
					return false
				}
				approved = true
			}
			if !c.strong.CompareAndSwap(cur, cur+1) {
				continue
			}
			c.strong.Sub(InitialStrong)
			c.weak.Inc()
			c.owner.OnFirstStrongRef()
		case cur <= 0:
			traceCounter("attemptPromote failed", c)
			recordPromotion(false)
			return false
		default:
			if !c.strong.CompareAndSwap(cur, cur+1) {
				continue
			}
			c.weak.Inc()
		}

		traceCounter("attemptPromote", c)

		if !approved && !c.owner.OnAttemptPromoted() {
			// Vetoed: hand the claim back through the ordinary release path.
			c.decStrong()
			recordPromotion(false)
			return false
		}

		recordPromotion(true)
		return true
	}
}

func (c *Counter) destroy() {
	if !c.destroyed.CompareAndSwap(false, true) {
		return
	}

	traceCounter("destroy", c)
	c.owner.OnDestroy()
	c.owner.base().markDone()
	recordDestroyed()
}

// free drops the back-link to the owner. Only the thread releasing the last
// self claim gets here, after every other handle finished its strong and weak
// bookkeeping.
func (c *Counter) free() {
	if !c.freed.CompareAndSwap(false, true) {
		contractViolation(violationOverRelease, fmt.Errorf("%w: %s #%d freed twice", ErrOverRelease, c.kind, c.id))
		return
	}

	if !c.destroyed.Load() {
		// Unreachable unless a claim was released twice.
		logger.Warn("refbase: counter released before its object", "kind", c.kind, "id", c.id)
	}

	traceCounter("free", c)
	c.owner = nil
	recordFreed()
}
