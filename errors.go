package refbase

import "errors"

var (
	// ErrNullAccess indicates an access through an empty strong handle.
	ErrNullAccess = errors.New("refbase: access through an empty strong handle")

	// ErrPromotionFailed indicates the object behind a weak handle is no longer
	// alive. It is an expected outcome, not a failure of the handle itself.
	ErrPromotionFailed = errors.New("refbase: weak handle promotion failed")

	// ErrPolicyMisuse indicates a lifetime policy change after the first
	// handle was created, or an unknown policy value.
	ErrPolicyMisuse = errors.New("refbase: lifetime policy misuse")

	// ErrObjectDead indicates a new handle was requested for an object that has
	// already been destroyed.
	ErrObjectDead = errors.New("refbase: object is no longer alive")

	// ErrOverRelease indicates a counter was decremented more times than it was
	// incremented.
	ErrOverRelease = errors.New("refbase: reference released too many times")

	// ErrNotBound indicates a detached claim was returned for an object that
	// was never wrapped in a handle.
	ErrNotBound = errors.New("refbase: object has no shared counter")

	// ErrUnknownHandle indicates an exported token that is not registered or
	// holds a different object type.
	ErrUnknownHandle = errors.New("refbase: unknown exported handle")
)

// violation labels a contract violation for logs and metrics.
type violation string

const (
	violationNullAccess  violation = "null_access"
	violationPolicy      violation = "policy_misuse"
	violationDeadObject  violation = "dead_object"
	violationOverRelease violation = "over_release"
	violationNotBound    violation = "not_bound"
)
