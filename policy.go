package refbase

import "fmt"

// Policy decides which counter reaching zero destroys the managed object.
type Policy uint32

const (
	// StrongGoverns destroys the object when its last strong handle is released.
	StrongGoverns Policy = iota

	// WeakGoverns keeps the object allocated until its last weak claim is
	// released, even after every strong handle is gone.
	WeakGoverns
)

func (p Policy) String() string {
	switch p {
	case StrongGoverns:
		return "StrongGoverns"
	case WeakGoverns:
		return "WeakGoverns"
	default:
		return fmt.Sprintf("Policy(%d)", uint32(p))
	}
}

func (p Policy) valid() bool {
	return p == StrongGoverns || p == WeakGoverns
}
