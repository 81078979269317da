//go:build !debug

package refbase

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogger collects contract violation reports for the duration of a test.
func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := logger
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetLogger(prev) })
	return &buf
}

func TestSetLifetimePolicy_AfterFirstHandle(t *testing.T) {
	logs := captureLogger(t)

	o := newTracked("late")
	s := New(o)

	err := o.SetLifetimePolicy(WeakGoverns)
	require.ErrorIs(t, err, ErrPolicyMisuse)
	assert.Equal(t, StrongGoverns, o.LifetimePolicy(), "the policy in effect is kept")
	assert.Equal(t, StrongGoverns, o.Counter().Policy())
	assert.Contains(t, logs.String(), "kind=policy_misuse")

	s.Reset()
	assert.Equal(t, int32(1), o.destroyed.Load(), "StrongGoverns still applies")
}

func TestSetLifetimePolicy_Unknown(t *testing.T) {
	captureLogger(t)

	o := newTracked("unknown")
	require.ErrorIs(t, o.SetLifetimePolicy(Policy(9)), ErrPolicyMisuse)
	assert.Equal(t, StrongGoverns, o.LifetimePolicy())
}

func TestValue_EmptyHandle(t *testing.T) {
	logs := captureLogger(t)

	var s Strong[*tracked]
	assert.Nil(t, s.Value())
	assert.Contains(t, logs.String(), "kind=null_access")
}

func TestNew_DeadObject(t *testing.T) {
	logs := captureLogger(t)

	o := newTracked("dead")
	first := New(o)
	w := first.Weak()
	first.Reset()
	defer w.Reset()
	require.False(t, o.Alive())

	s := New(o)
	assert.True(t, s.IsEmpty())
	assert.Contains(t, logs.String(), "kind=dead_object")

	v := NewWeak(o)
	assert.True(t, v.IsEmpty())
}

func TestReleaseDetached_Unbound(t *testing.T) {
	logs := captureLogger(t)

	ReleaseDetached(newTracked("unbound"))
	assert.Contains(t, logs.String(), "kind=not_bound")

	assert.True(t, Attach(newTracked("unbound")).IsEmpty())
}

func TestOverRelease(t *testing.T) {
	logs := captureLogger(t)

	o := newTracked("over")
	s := New(o)
	raw := s.Detach()
	ReleaseDetached(raw)
	require.True(t, o.Counter().IsFreed())

	ReleaseDetached(raw)
	assert.Contains(t, logs.String(), "kind=over_release")
	assert.Equal(t, int32(1), o.destroyed.Load(), "the object is destroyed only once")
}
