package stress

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rnkv/refbase-go/internal/telemetry"
)

// ErrInvalidConfig is returned by Validate for unusable configurations.
var ErrInvalidConfig = errors.New("stress: invalid config")

// ScenarioConfig sizes one scenario run.
type ScenarioConfig struct {
	// Name selects the scenario; see Scenarios for the known names.
	Name string `yaml:"name"`

	// Goroutines is the number of goroutines racing on each object.
	Goroutines int `yaml:"goroutines"`

	// Iterations is the number of objects created and torn down.
	Iterations int `yaml:"iterations"`

	// Handles is the number of handles or promotion attempts per goroutine.
	Handles int `yaml:"handles"`
}

// Config is the refstress configuration file.
type Config struct {
	Scenarios []ScenarioConfig `yaml:"scenarios"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// DefaultConfig runs every scenario at a size that finishes in about a second.
func DefaultConfig() Config {
	cfg := Config{Telemetry: telemetry.DefaultConfig()}

	for _, name := range Scenarios() {
		cfg.Scenarios = append(cfg.Scenarios, ScenarioConfig{
			Name:       name,
			Goroutines: 8,
			Iterations: 200,
			Handles:    16,
		})
	}

	return cfg
}

// LoadConfig reads a YAML configuration file. Fields missing from the file
// keep their DefaultConfig values; a scenarios list in the file replaces the
// default one.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks that every scenario is known and has positive sizes.
func (c Config) Validate() error {
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("%w: no scenarios", ErrInvalidConfig)
	}

	var errs []error
	for i, sc := range c.Scenarios {
		if _, ok := scenarios[sc.Name]; !ok {
			errs = append(errs, fmt.Errorf("%w: scenarios[%d]: unknown scenario %q", ErrInvalidConfig, i, sc.Name))
			continue
		}
		if sc.Goroutines <= 0 || sc.Iterations <= 0 || sc.Handles <= 0 {
			errs = append(errs, fmt.Errorf(
				"%w: scenarios[%d] (%s): goroutines, iterations and handles must be positive",
				ErrInvalidConfig, i, sc.Name,
			))
		}
	}

	return errors.Join(errs...)
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
