package refbase

// Object is the contract a type fulfils to be managed by [Strong] and [Weak]
// handles.
//
// Implement it by embedding [Base] in a struct and using the struct through a
// pointer. [Base] provides no-op defaults for every hook; override the ones you
// need. Hooks run on whichever goroutine caused the transition. They must not
// block for long and must not create or release handles to the same object.
type Object interface {
	base() *Base

	// OnFirstStrongRef is called once, when the first strong handle is created
	// or the first promotion of a weak-only object succeeds.
	OnFirstStrongRef()

	// OnLastStrongRef is called once, when the strong count drops to zero.
	OnLastStrongRef()

	// OnLastWeakRef is called once, when the weak count (which includes the
	// claim of every strong handle) drops to zero.
	OnLastWeakRef()

	// OnAttemptPromoted is called when a weak handle tries to become strong.
	// Returning false vetoes the promotion.
	//
	// For an object with live strong handles it runs after the new claim is
	// won, and a veto releases that claim again. For an object that has only
	// had weak handles it runs before anything changes, and a veto leaves the
	// object as it was. It is not called once the object is dying, that is
	// once the strong count has reached zero, because such a promotion fails
	// without consulting the object. It runs at most once per attempt.
	OnAttemptPromoted() bool

	// OnDestroy is called exactly once, when the lifetime policy decides the
	// object is dead.
	OnDestroy()
}
