package refbase

import (
	"fmt"

	"github.com/rnkv/refbase-go/internal/handles"
)

type exported struct {
	object  Object
	counter *Counter
}

// Export detaches the claim held by s into a process-wide table and returns an
// opaque non-zero token for it, or 0 for an empty handle. The token must be
// passed exactly once to [Import] or [DropExported].
func (s *Strong[T]) Export() uintptr {
	if s.IsEmpty() {
		return 0
	}

	c := s.counter
	object := s.Detach()
	return handles.Register(exported{object: object, counter: c})
}

// Import turns a token created by [Strong.Export] back into a strong handle.
// It fails with [ErrUnknownHandle] if the token is not registered or holds an
// object of another type; the token stays registered in the latter case.
func Import[T Object](token uintptr) (*Strong[T], error) {
	e, ok := handles.Lookup(token).(exported)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, token)
	}

	object, ok := e.object.(T)
	if !ok {
		return nil, fmt.Errorf("%w: %d holds %s", ErrUnknownHandle, token, e.counter.kind)
	}

	if _, ok := handles.Take(token); !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, token)
	}

	return &Strong[T]{object: object, counter: e.counter}, nil
}

// DropExported releases the claim behind a token created by [Strong.Export].
func DropExported(token uintptr) error {
	v, ok := handles.Take(token)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, token)
	}

	e, ok := v.(exported)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, token)
	}

	e.counter.decStrong()
	e.counter.decSelf()
	return nil
}

// ExportedCount returns the number of claims currently parked under tokens.
func ExportedCount() int {
	return handles.Count()
}
