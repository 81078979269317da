package stress

import (
	"go.uber.org/atomic"

	"github.com/rnkv/refbase-go"
)

// probe is the managed object every scenario tortures. Its hooks count their
// invocations and check the counts they observe at destruction time.
type probe struct {
	refbase.Base

	firstStrong atomic.Int32
	lastStrong  atomic.Int32
	lastWeak    atomic.Int32
	destroyed   atomic.Int32

	// Claims observed while OnDestroy ran. Both must be zero except for the
	// weak count of a StrongGoverns object.
	strongAtDestroy atomic.Int32
	weakAtDestroy   atomic.Uint32
}

func newProbe(policy refbase.Policy) (*probe, error) {
	p := &probe{}
	if err := p.SetLifetimePolicy(policy); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *probe) OnFirstStrongRef() {
	p.firstStrong.Inc()
}

func (p *probe) OnLastStrongRef() {
	p.lastStrong.Inc()
}

func (p *probe) OnLastWeakRef() {
	p.lastWeak.Inc()
}

func (p *probe) OnDestroy() {
	p.strongAtDestroy.Store(p.StrongRefCount())
	p.weakAtDestroy.Store(p.WeakRefCount())
	p.destroyed.Inc()
}

func (p *probe) isDestroyed() bool {
	return p.destroyed.Load() != 0
}
