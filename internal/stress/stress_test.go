package stress

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rnkv/refbase-go"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func small(name string) ScenarioConfig {
	return ScenarioConfig{Name: name, Goroutines: 4, Iterations: 25, Handles: 8}
}

func TestScenarios(t *testing.T) {
	assert.Equal(t, []string{"clone-drop", "promote-race", "weak-governs", "weak-only"}, Scenarios())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Scenarios, len(Scenarios()))
	assert.Equal(t, "refstress", cfg.Telemetry.ServiceName)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{name: "empty", cfg: Config{}},
		{name: "unknown scenario", cfg: Config{Scenarios: []ScenarioConfig{small("leak-everything")}}},
		{
			name: "zero goroutines",
			cfg:  Config{Scenarios: []ScenarioConfig{{Name: "clone-drop", Iterations: 1, Handles: 1}}},
		},
		{name: "valid", cfg: Config{Scenarios: []ScenarioConfig{small("weak-only")}}, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refstress.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scenarios:
  - name: promote-race
    goroutines: 3
    iterations: 10
    handles: 5
telemetry:
  metric_exporter: none
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Len(t, cfg.Scenarios, 1)
	assert.Equal(t, ScenarioConfig{Name: "promote-race", Goroutines: 3, Iterations: 10, Handles: 5}, cfg.Scenarios[0])
	assert.Equal(t, "none", cfg.Telemetry.MetricExporter)
	assert.Equal(t, "refstress", cfg.Telemetry.ServiceName, "unset fields keep their defaults")
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scenarios:\n  - name: nope\n    goroutines: 1\n    iterations: 1\n    handles: 1\n"), 0o644))

	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfig_MarshalRoundTrip(t *testing.T) {
	data, err := DefaultConfig().Marshal()
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestRunner_AllScenariosPass(t *testing.T) {
	cfg := Config{}
	for _, name := range Scenarios() {
		cfg.Scenarios = append(cfg.Scenarios, small(name))
	}

	r, err := NewRunner(cfg, quietLogger())
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Scenarios, len(cfg.Scenarios))
	for _, sr := range report.Scenarios {
		assert.True(t, sr.Passed(), "%s: %v", sr.Name, sr.Failures)
		assert.Equal(t, int64(25), sr.Objects, sr.Name)
	}
	assert.True(t, report.Passed())

	_, err = yaml.Marshal(report)
	assert.NoError(t, err)
}

func TestRunner_InvalidConfig(t *testing.T) {
	_, err := NewRunner(Config{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunner_Canceled(t *testing.T) {
	r, err := NewRunner(Config{Scenarios: []ScenarioConfig{small("clone-drop")}}, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Scenarios, 1)
	assert.Zero(t, report.Scenarios[0].Objects)
}

func TestCheckTeardown_ReportsBrokenGuarantees(t *testing.T) {
	p, err := newProbe(refbase.WeakGoverns)
	require.NoError(t, err)

	s := refbase.New(p)
	w := s.Weak()
	s.Reset()
	defer w.Reset()

	var tl tally
	tl.checkTeardown(0, p, 1)

	assert.Equal(t, int64(1), tl.objects.Load())
	assert.Equal(t, 3, tl.failed, "not destroyed, counter held, no last weak hook")
	assert.Contains(t, tl.failures[0], "destroyed 0 times")
}

func TestTally_BoundsRecordedFailures(t *testing.T) {
	var tl tally
	for i := range maxRecordedFailures + 5 {
		tl.failf("failure %d", i)
	}

	assert.Equal(t, maxRecordedFailures+5, tl.failed)
	assert.Len(t, tl.failures, maxRecordedFailures)
}
