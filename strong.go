package refbase

import (
	"cmp"
	"fmt"
)

// Strong is an owning handle: while it is non-empty the managed object stays
// alive.
//
// Handles are used through pointers and must not be copied by value; Clone
// creates an additional claim and Move transfers one. A nil *Strong behaves as
// an empty handle. Distinct handles to the same object may be used from
// different goroutines; a single handle is not safe for concurrent mutation.
type Strong[T Object] struct {
	noCopy  noCopy
	object  T
	counter *Counter
}

// New wraps object in a strong handle.
//
// A nil object yields an empty handle. Wrapping an object that has already
// been destroyed is a contract violation and also yields an empty handle.
func New[T Object](object T) *Strong[T] {
	s := &Strong[T]{}
	if isNil(object) {
		return s
	}

	c := object.base().bind(object)

	if !c.acquirable() {
		contractViolation(violationDeadObject, fmt.Errorf("%w: %s #%d", ErrObjectDead, c.kind, c.id))
		return s
	}

	c.incStrong()
	c.incSelf()

	s.object = object
	s.counter = c
	return s
}

// IsEmpty reports whether the handle holds no claim.
func (s *Strong[T]) IsEmpty() bool {
	return s == nil || s.counter == nil
}

// Get returns the managed object, or [ErrNullAccess] if the handle is empty.
//
// The returned value is a non-owning reference: it must not be used after the
// handle it came from has been reset.
func (s *Strong[T]) Get() (T, error) {
	if s.IsEmpty() {
		var zero T
		return zero, ErrNullAccess
	}

	return s.object, nil
}

// Value returns the managed object. Calling it on an empty handle is a
// contract violation; release builds log it and return the zero value.
func (s *Strong[T]) Value() T {
	if s.IsEmpty() {
		contractViolation(violationNullAccess, ErrNullAccess)
		var zero T
		return zero
	}

	return s.object
}

// Clone returns a new handle sharing ownership of the same object.
func (s *Strong[T]) Clone() *Strong[T] {
	if s.IsEmpty() {
		return &Strong[T]{}
	}

	s.counter.incStrong()
	s.counter.incSelf()

	return &Strong[T]{object: s.object, counter: s.counter}
}

// Move transfers the claim to a new handle and leaves s empty.
func (s *Strong[T]) Move() *Strong[T] {
	if s.IsEmpty() {
		return &Strong[T]{}
	}

	m := &Strong[T]{object: s.object, counter: s.counter}
	s.clear()
	return m
}

// Reset releases the claim, if any, and leaves the handle empty.
func (s *Strong[T]) Reset() {
	if s.IsEmpty() {
		return
	}

	c := s.counter
	s.clear()

	c.decStrong()
	c.decSelf()
}

// Assign makes s share ownership of the object held by other, releasing the
// claim s held before.
func (s *Strong[T]) Assign(other *Strong[T]) {
	if s == nil {
		return
	}

	n := other.Clone()
	s.Reset()
	s.object, s.counter = n.object, n.counter
	n.clear()
}

// Weak returns a weak handle observing the same object.
func (s *Strong[T]) Weak() *Weak[T] {
	if s.IsEmpty() {
		return &Weak[T]{}
	}

	s.counter.incWeak()
	s.counter.incSelf()

	return &Weak[T]{counter: s.counter}
}

// ID returns the identity of the managed object, or 0 for an empty handle.
func (s *Strong[T]) ID() uint64 {
	if s.IsEmpty() {
		return 0
	}

	return s.counter.id
}

// Equal reports whether both handles refer to the same object. Two empty
// handles are equal.
func (s *Strong[T]) Equal(other *Strong[T]) bool {
	return s.ID() == other.ID()
}

// Compare orders handles by object identity. Empty handles sort first.
func (s *Strong[T]) Compare(other *Strong[T]) int {
	return cmp.Compare(s.ID(), other.ID())
}

// Detach empties the handle without releasing its claim and returns the
// object. The caller becomes responsible for exactly one matching
// [ReleaseDetached] or [Attach].
func (s *Strong[T]) Detach() T {
	if s.IsEmpty() {
		var zero T
		return zero
	}

	object := s.object
	s.clear()
	return object
}

// Attach adopts a claim previously handed out by [Strong.Detach] without
// incrementing any counter.
func Attach[T Object](object T) *Strong[T] {
	if isNil(object) {
		return &Strong[T]{}
	}

	c := object.base().counter.Load()
	if c == nil {
		contractViolation(violationNotBound, fmt.Errorf("%w: %s", ErrNotBound, kindOf(object)))
		return &Strong[T]{}
	}

	return &Strong[T]{object: object, counter: c}
}

// ReleaseDetached releases a claim previously handed out by [Strong.Detach].
func ReleaseDetached(object Object) {
	if isNil(object) {
		return
	}

	c := object.base().counter.Load()
	if c == nil {
		contractViolation(violationNotBound, fmt.Errorf("%w: %s", ErrNotBound, kindOf(object)))
		return
	}

	c.decStrong()
	c.decSelf()
}

func (s *Strong[T]) String() string {
	if s.IsEmpty() {
		return "Strong(<empty>)"
	}

	return fmt.Sprintf("Strong(%s#%d)", s.counter.kind, s.counter.id)
}

func (s *Strong[T]) clear() {
	var zero T
	s.object = zero
	s.counter = nil
}

// noCopy lets go vet flag handles copied by value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
