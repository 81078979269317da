package refbase

import (
	"cmp"
	"fmt"
)

// Weak observes an object without keeping it alive. It references only the
// shared counter; the object is reached exclusively through [Weak.Promote].
//
// Like [Strong], a Weak is used through a pointer and must not be copied by
// value. A nil *Weak behaves as an empty handle.
type Weak[T Object] struct {
	noCopy  noCopy
	counter *Counter
}

// NewWeak creates a weak handle directly from an object. If no strong handle
// has ever existed, the object stays alive but inaccessible until a promotion
// succeeds or the last weak handle is released.
func NewWeak[T Object](object T) *Weak[T] {
	w := &Weak[T]{}
	if isNil(object) {
		return w
	}

	c := object.base().bind(object)

	if !c.alive() {
		contractViolation(violationDeadObject, fmt.Errorf("%w: %s #%d", ErrObjectDead, c.kind, c.id))
		return w
	}

	c.incWeak()
	c.incSelf()

	w.counter = c
	return w
}

// IsEmpty reports whether the handle holds no claim.
func (w *Weak[T]) IsEmpty() bool {
	return w == nil || w.counter == nil
}

// Promote returns a strong handle to the object if it is still alive. On
// failure it returns nil and false; the weak handle itself stays valid.
func (w *Weak[T]) Promote() (*Strong[T], bool) {
	if w.IsEmpty() {
		return nil, false
	}

	c := w.counter

	if !c.attemptPromote() {
		return nil, false
	}

	object, ok := c.owner.(T)
	if !ok {
		c.decStrong()
		contractViolation(violationDeadObject, fmt.Errorf("%w: %s #%d is not a %T", ErrObjectDead, c.kind, c.id, object))
		return nil, false
	}

	c.incSelf()
	return &Strong[T]{object: object, counter: c}, true
}

// Expired reports whether a promotion can no longer succeed.
func (w *Weak[T]) Expired() bool {
	if w.IsEmpty() {
		return true
	}

	return w.counter.destroyed.Load() || w.counter.strong.Load() <= 0
}

// Clone returns a new weak handle observing the same object.
func (w *Weak[T]) Clone() *Weak[T] {
	if w.IsEmpty() {
		return &Weak[T]{}
	}

	w.counter.incWeak()
	w.counter.incSelf()

	return &Weak[T]{counter: w.counter}
}

// Move transfers the claim to a new handle and leaves w empty.
func (w *Weak[T]) Move() *Weak[T] {
	if w.IsEmpty() {
		return &Weak[T]{}
	}

	m := &Weak[T]{counter: w.counter}
	w.counter = nil
	return m
}

// Reset releases the claim, if any, and leaves the handle empty.
func (w *Weak[T]) Reset() {
	if w.IsEmpty() {
		return
	}

	c := w.counter
	w.counter = nil

	c.decWeak()
	c.decSelf()
}

// Assign makes w observe the object observed by other, releasing the claim w
// held before.
func (w *Weak[T]) Assign(other *Weak[T]) {
	if w == nil {
		return
	}

	n := other.Clone()
	w.Reset()
	w.counter = n.counter
	n.counter = nil
}

// ID returns the identity of the observed object, or 0 for an empty handle.
func (w *Weak[T]) ID() uint64 {
	if w.IsEmpty() {
		return 0
	}

	return w.counter.id
}

// Equal reports whether both handles observe the same object.
func (w *Weak[T]) Equal(other *Weak[T]) bool {
	return w.ID() == other.ID()
}

// Compare orders handles by object identity. Empty handles sort first.
func (w *Weak[T]) Compare(other *Weak[T]) int {
	return cmp.Compare(w.ID(), other.ID())
}

func (w *Weak[T]) String() string {
	if w.IsEmpty() {
		return "Weak(<empty>)"
	}

	return fmt.Sprintf("Weak(%s#%d)", w.counter.kind, w.counter.id)
}
