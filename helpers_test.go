package refbase

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"go.uber.org/atomic"
)

// tracked counts every hook invocation and remembers their order.
type tracked struct {
	Base

	name string

	firstStrong atomic.Int32
	lastStrong  atomic.Int32
	lastWeak    atomic.Int32
	promoted    atomic.Int32
	destroyed   atomic.Int32
	veto        atomic.Bool

	mu     sync.Mutex
	events []string
}

func newTracked(name string) *tracked {
	return &tracked{name: name}
}

func (t *tracked) record(event string) {
	t.mu.Lock()
	t.events = append(t.events, event)
	t.mu.Unlock()
}

func (t *tracked) history() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

func (t *tracked) OnFirstStrongRef() {
	t.firstStrong.Inc()
	t.record("first-strong")
}

func (t *tracked) OnLastStrongRef() {
	t.lastStrong.Inc()
	t.record("last-strong")
}

func (t *tracked) OnLastWeakRef() {
	t.lastWeak.Inc()
	t.record("last-weak")
}

func (t *tracked) OnAttemptPromoted() bool {
	t.promoted.Inc()
	return !t.veto.Load()
}

func (t *tracked) OnDestroy() {
	t.destroyed.Inc()
	t.record("destroy")
}

// plain relies on the default hooks of Base.
type plain struct {
	Base
	value int
}

// quietLogger silences contract violation reports for the duration of a test.
func quietLogger(t *testing.T) {
	t.Helper()
	prev := logger
	SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { SetLogger(prev) })
}
