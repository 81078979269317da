package refbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeak_EmptyHandle(t *testing.T) {
	var w *Weak[*tracked]

	assert.True(t, w.IsEmpty())
	assert.True(t, w.Expired())
	assert.Zero(t, w.ID())

	p, ok := w.Promote()
	assert.False(t, ok)
	assert.Nil(t, p)

	assert.True(t, w.Clone().IsEmpty())
	assert.True(t, w.Move().IsEmpty())
	assert.Equal(t, "Weak(<empty>)", w.String())
	w.Reset()
}

func TestWeak_PromoteWhileStronglyOwned(t *testing.T) {
	o := newTracked("owned")
	s := New(o)
	w := s.Weak()

	assert.False(t, w.Expired())
	assert.Equal(t, uint32(2), o.WeakRefCount())
	assert.Equal(t, int32(2), o.RefCount())

	p, ok := w.Promote()
	require.True(t, ok)
	assert.Same(t, o, p.Value())
	assert.True(t, p.Equal(s))
	assert.Equal(t, int32(2), o.StrongRefCount())
	assert.Equal(t, uint32(3), o.WeakRefCount())

	s.Reset()
	assert.True(t, o.Alive(), "the promoted handle keeps the object alive")

	p.Reset()
	assert.False(t, o.Alive())
	assert.True(t, w.Expired())

	w.Reset()
	assert.True(t, o.Counter().IsFreed())
}

func TestWeak_FailedPromotionLeavesHandleUsable(t *testing.T) {
	o := newTracked("failed")
	s := New(o)
	w := s.Weak()
	s.Reset()

	for range 3 {
		p, ok := w.Promote()
		assert.False(t, ok)
		assert.Nil(t, p)
	}

	assert.False(t, w.IsEmpty())
	assert.Equal(t, uint32(1), o.WeakRefCount())
	assert.Equal(t, int32(1), o.RefCount())

	c := w.Clone()
	assert.True(t, c.Equal(w))
	assert.Equal(t, uint32(2), o.WeakRefCount())

	c.Reset()
	w.Reset()
	assert.True(t, o.Counter().IsFreed())
	assert.Equal(t, int32(1), o.lastWeak.Load())
}

func TestWeak_WeakGovernsScenario(t *testing.T) {
	o := newTracked("extended")
	require.NoError(t, o.ExtendObjectLifetime())
	assert.True(t, o.IsLifeTimeExtended())

	s := New(o)
	w := s.Weak()
	s.Reset()

	assert.Equal(t, int32(1), o.lastStrong.Load())
	assert.Zero(t, o.destroyed.Load(), "the weak claim keeps the object allocated")
	assert.True(t, w.Expired())

	p, ok := w.Promote()
	assert.False(t, ok, "the strong count already reached zero")
	assert.Nil(t, p)

	w.Reset()
	assert.Equal(t, int32(1), o.lastWeak.Load())
	assert.Equal(t, int32(1), o.destroyed.Load())
	assert.True(t, o.Counter().IsFreed())
	assert.Equal(t, []string{"first-strong", "last-strong", "last-weak", "destroy"}, o.history())
}

func TestWeak_WeakOnlyObject(t *testing.T) {
	t.Run("promoted through the bias", func(t *testing.T) {
		o := newTracked("weak-only")
		w := NewWeak(o)

		assert.False(t, w.Expired())
		assert.Zero(t, o.StrongRefCount())
		assert.Equal(t, uint32(1), o.WeakRefCount())

		p, ok := w.Promote()
		require.True(t, ok)
		assert.Equal(t, int32(1), o.firstStrong.Load())
		assert.Equal(t, int32(1), o.StrongRefCount())

		w.Reset()
		assert.True(t, o.Alive())

		p.Reset()
		assert.False(t, o.Alive())
		assert.True(t, o.Counter().IsFreed())
	})

	t.Run("never promoted", func(t *testing.T) {
		o := newTracked("weak-only")
		w := NewWeak(o)
		v := w.Clone()

		w.Reset()
		assert.True(t, o.Alive())

		v.Reset()
		assert.False(t, o.Alive())
		assert.Zero(t, o.firstStrong.Load())
		assert.Zero(t, o.lastStrong.Load())
		assert.Equal(t, int32(1), o.destroyed.Load())
		assert.True(t, o.Counter().IsFreed())
	})
}

func TestWeak_VetoedPromotion(t *testing.T) {
	o := newTracked("veto")
	s := New(o)
	w := s.Weak()
	o.veto.Store(true)

	p, ok := w.Promote()
	assert.False(t, ok)
	assert.Nil(t, p)
	assert.Equal(t, int32(1), o.StrongRefCount())
	assert.Equal(t, uint32(2), o.WeakRefCount())
	assert.True(t, o.Alive())

	o.veto.Store(false)
	p, ok = w.Promote()
	require.True(t, ok)

	p.Reset()
	s.Reset()
	w.Reset()
	assert.Equal(t, int32(1), o.destroyed.Load())
	assert.Equal(t, int32(2), o.promoted.Load())
}

func TestWeak_VetoedPromotionOfWeakOnlyObject(t *testing.T) {
	o := newTracked("weak-only-veto")
	w := NewWeak(o)
	o.veto.Store(true)

	p, ok := w.Promote()
	assert.False(t, ok)
	assert.Nil(t, p)

	assert.Equal(t, int32(1), o.promoted.Load())
	assert.True(t, o.Alive(), "a veto must not destroy the object")
	assert.False(t, w.Expired())
	assert.Equal(t, InitialStrong, o.Counter().StrongCount(), "the bias is left in place")
	assert.Equal(t, uint32(1), o.WeakRefCount())
	assert.Empty(t, o.history(), "no hook fires for a promotion that never happened")

	o.veto.Store(false)
	p, ok = w.Promote()
	require.True(t, ok)
	assert.Equal(t, int32(2), o.promoted.Load(), "the hook runs once per attempt")
	assert.Equal(t, int32(1), o.firstStrong.Load())

	p.Reset()
	w.Reset()
	assert.Equal(t, []string{"first-strong", "last-strong", "destroy", "last-weak"}, o.history())
	assert.True(t, o.Counter().IsFreed())
}

func TestWeak_MoveAndAssign(t *testing.T) {
	x, y := newTracked("x"), newTracked("y")
	sx, sy := New(x), New(y)
	defer sx.Reset()
	defer sy.Reset()

	a := sx.Weak()
	b := a.Move()
	assert.True(t, a.IsEmpty())
	assert.Equal(t, uint32(2), x.WeakRefCount(), "moving does not touch the counters")

	wy := sy.Weak()
	a.Assign(wy)
	assert.Equal(t, y.Counter().ID(), a.ID())
	assert.Equal(t, uint32(3), y.WeakRefCount())

	wx := b.Clone()
	b.Assign(a)
	assert.True(t, b.Equal(a))
	assert.Equal(t, uint32(2), x.WeakRefCount())
	assert.Equal(t, -1, wx.Compare(b))
	assert.Equal(t, 1, b.Compare(nil))

	for _, w := range []*Weak[*tracked]{a, b, wx, wy} {
		w.Reset()
	}
	assert.Equal(t, uint32(1), x.WeakRefCount())
	assert.Equal(t, uint32(1), y.WeakRefCount())
}

func TestNewWeak_NilObject(t *testing.T) {
	var o *tracked
	w := NewWeak(o)

	assert.True(t, w.IsEmpty())
	assert.True(t, w.Expired())
}
