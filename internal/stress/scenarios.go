package stress

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/rnkv/refbase-go"
)

// maxRecordedFailures bounds the failure messages kept per scenario.
const maxRecordedFailures = 20

type scenarioFunc func(ctx context.Context, sc ScenarioConfig, t *tally) error

var scenarios = map[string]scenarioFunc{
	"clone-drop":   cloneDrop,
	"promote-race": promoteRace,
	"weak-governs": weakGoverns,
	"weak-only":    weakOnly,
}

// Scenarios returns the known scenario names in sorted order.
func Scenarios() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// tally accumulates the outcome of one scenario.
type tally struct {
	objects          atomic.Int64
	promotions       atomic.Int64
	failedPromotions atomic.Int64

	mu       sync.Mutex
	failures []string
	failed   int
}

func (t *tally) failf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failed++
	if len(t.failures) < maxRecordedFailures {
		t.failures = append(t.failures, fmt.Sprintf(format, args...))
	}
}

func (t *tally) promoted(ok bool) {
	if ok {
		t.promotions.Inc()
		return
	}
	t.failedPromotions.Inc()
}

// checkTeardown verifies the hook counts of a probe once every handle to it is
// gone. A negative wantLastStrong skips that check.
func (t *tally) checkTeardown(iter int, p *probe, wantLastStrong int32) {
	t.objects.Inc()

	if n := p.destroyed.Load(); n != 1 {
		t.failf("iteration %d: destroyed %d times", iter, n)
	}
	if c := p.Counter(); c == nil || !c.IsFreed() {
		t.failf("iteration %d: counter not released", iter)
	}
	if n := p.lastWeak.Load(); n != 1 {
		t.failf("iteration %d: last weak hook ran %d times", iter, n)
	}
	if wantLastStrong >= 0 {
		if n := p.lastStrong.Load(); n != wantLastStrong {
			t.failf("iteration %d: last strong hook ran %d times, want %d", iter, n, wantLastStrong)
		}
	}
	if n := p.firstStrong.Load(); n > 1 {
		t.failf("iteration %d: first strong hook ran %d times", iter, n)
	}
	if n := p.strongAtDestroy.Load(); n != 0 {
		t.failf("iteration %d: destroyed with %d strong claims", iter, n)
	}
	if p.IsLifeTimeExtended() {
		if n := p.weakAtDestroy.Load(); n != 0 {
			t.failf("iteration %d: destroyed with %d weak claims", iter, n)
		}
	}
}

// race runs fn once per goroutine index, releasing them together.
func race(n int, fn func(g int)) {
	start := make(chan struct{})

	var eg errgroup.Group
	for g := range n {
		eg.Go(func() error {
			<-start
			fn(g)
			return nil
		})
	}

	close(start)
	_ = eg.Wait()
}

// cloneDrop spreads clones of one strong handle across goroutines that all
// release them at once. The object must be destroyed exactly once.
func cloneDrop(ctx context.Context, sc ScenarioConfig, t *tally) error {
	for iter := range sc.Iterations {
		if err := ctx.Err(); err != nil {
			return err
		}

		p, err := newProbe(refbase.StrongGoverns)
		if err != nil {
			return err
		}

		root := refbase.New(p)
		held := make([][]*refbase.Strong[*probe], sc.Goroutines)
		for g := range held {
			held[g] = make([]*refbase.Strong[*probe], sc.Handles)
			for h := range held[g] {
				held[g][h] = root.Clone()
			}
		}
		root.Reset()

		race(sc.Goroutines, func(g int) {
			for _, s := range held[g] {
				c := s.Clone()
				s.Reset()
				c.Reset()
			}
		})

		t.checkTeardown(iter, p, 1)
	}

	return nil
}

// promoteRace promotes weak handles while the only owner is being released.
// No promotion may succeed once the object has been destroyed.
func promoteRace(ctx context.Context, sc ScenarioConfig, t *tally) error {
	for iter := range sc.Iterations {
		if err := ctx.Err(); err != nil {
			return err
		}

		p, err := newProbe(refbase.StrongGoverns)
		if err != nil {
			return err
		}

		owner := refbase.New(p)
		w := owner.Weak()
		observers := make([]*refbase.Weak[*probe], sc.Goroutines)
		for g := range observers {
			observers[g] = w.Clone()
		}

		race(sc.Goroutines+1, func(g int) {
			if g == sc.Goroutines {
				owner.Reset()
				return
			}

			o := observers[g]
			for range sc.Handles {
				s, ok := o.Promote()
				t.promoted(ok)
				if !ok {
					continue
				}
				if p.isDestroyed() {
					t.failf("iteration %d: promoted a destroyed object", iter)
				}
				s.Reset()
			}
			o.Reset()
		})

		if s, ok := w.Promote(); ok {
			t.failf("iteration %d: promotion succeeded after the last owner was released", iter)
			s.Reset()
		}
		w.Reset()

		t.checkTeardown(iter, p, 1)
	}

	return nil
}

// weakGoverns releases the owner of a WeakGoverns object while weak handles
// are still promoting. The object must outlive every weak claim.
func weakGoverns(ctx context.Context, sc ScenarioConfig, t *tally) error {
	for iter := range sc.Iterations {
		if err := ctx.Err(); err != nil {
			return err
		}

		p, err := newProbe(refbase.WeakGoverns)
		if err != nil {
			return err
		}

		owner := refbase.New(p)
		observers := make([][]*refbase.Weak[*probe], sc.Goroutines)
		for g := range observers {
			observers[g] = make([]*refbase.Weak[*probe], sc.Handles)
			for h := range observers[g] {
				observers[g][h] = owner.Weak()
			}
		}

		race(sc.Goroutines+1, func(g int) {
			if g == sc.Goroutines {
				owner.Reset()
				return
			}

			for _, o := range observers[g] {
				s, ok := o.Promote()
				t.promoted(ok)
				if ok {
					s.Reset()
				}
				if p.isDestroyed() {
					t.failf("iteration %d: destroyed while weak handles remain", iter)
				}
				o.Reset()
			}
		})

		t.checkTeardown(iter, p, 1)
	}

	return nil
}

// weakOnly creates objects through weak handles only. Half of the goroutines
// promote before releasing; the bias must be consumed at most once.
func weakOnly(ctx context.Context, sc ScenarioConfig, t *tally) error {
	for iter := range sc.Iterations {
		if err := ctx.Err(); err != nil {
			return err
		}

		p, err := newProbe(refbase.StrongGoverns)
		if err != nil {
			return err
		}

		root := refbase.NewWeak(p)
		observers := make([][]*refbase.Weak[*probe], sc.Goroutines)
		for g := range observers {
			observers[g] = make([]*refbase.Weak[*probe], sc.Handles)
			for h := range observers[g] {
				observers[g][h] = root.Clone()
			}
		}

		race(sc.Goroutines, func(g int) {
			for _, o := range observers[g] {
				if g%2 == 0 {
					s, ok := o.Promote()
					t.promoted(ok)
					if ok {
						s.Reset()
					}
				}
				o.Reset()
			}
		})
		root.Reset()

		want := int32(0)
		if p.firstStrong.Load() == 1 {
			want = 1
		}
		t.checkTeardown(iter, p, want)
	}

	return nil
}
