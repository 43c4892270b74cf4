package dataset

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/digitake/thyroidset/transform"
)

// Defaults for the thyroid marker datasource layout.
const (
	DefaultRoot       = "thyroid-ds3"
	DefaultPattern    = "*.png"
	DefaultValSize    = 24
	DefaultTestSize   = 24
	DefaultTargetSize = 100
)

// SourceConfig describes a datasource on disk: a root directory holding one
// subdirectory per class.
type SourceConfig struct {
	// Root is the datasource directory.
	Root string `yaml:"root"`

	// Classes maps class labels to subdirectory names under Root.
	Classes map[string]string `yaml:"classes"`

	// Pattern is the non-recursive file glob applied inside each class
	// directory.
	Pattern string `yaml:"pattern"`

	// ValSize is the number of leading paths per class reserved for
	// validation.
	ValSize int `yaml:"val_size"`

	// TestSize is reserved for a held-out test split. The shipped
	// datasource has none: the test phase reads the validation split.
	TestSize int `yaml:"test_size"`
}

// DefaultThyroidSource returns the thyroid ultrasound marker datasource
// layout.
func DefaultThyroidSource() SourceConfig {
	return SourceConfig{
		Root: DefaultRoot,
		Classes: map[string]string{
			"malignant": "Malignant_Markers_Crop",
			"benign":    "Benign_Markers_Crop",
		},
		Pattern:  DefaultPattern,
		ValSize:  DefaultValSize,
		TestSize: DefaultTestSize,
	}
}

// Validate checks that the source names a root, at least one class and
// non-negative split sizes.
func (c SourceConfig) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("%w: empty root", ErrInvalidSource)
	}
	if len(c.Classes) == 0 {
		return fmt.Errorf("%w: no classes", ErrInvalidSource)
	}
	if c.Pattern == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidSource)
	}
	if c.ValSize < 0 {
		return fmt.Errorf("%w: negative val_size %d", ErrInvalidSource, c.ValSize)
	}
	if c.TestSize < 0 {
		return fmt.Errorf("%w: negative test_size %d", ErrInvalidSource, c.TestSize)
	}
	return nil
}

// LoadSourceConfig reads a YAML datasource manifest. Pattern and split
// sizes fall back to the thyroid defaults when the manifest omits them.
func LoadSourceConfig(path string) (SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SourceConfig{}, fmt.Errorf("failed to read source config: %w", err)
	}

	cfg := SourceConfig{
		Pattern:  DefaultPattern,
		ValSize:  DefaultValSize,
		TestSize: DefaultTestSize,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SourceConfig{}, fmt.Errorf("failed to parse source config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return SourceConfig{}, err
	}
	return cfg, nil
}

// Config configures a PartitionDataset.
type Config struct {
	// Source locates the class images. Ignored when ClassPaths is set.
	Source SourceConfig

	// Phase selects both the split and the transform pipeline.
	Phase transform.Phase

	// Target is the transform output size.
	Target transform.Size

	// Seed fixes the augmentation random source; zero seeds from the
	// clock.
	Seed int64

	// Transform, when non-nil, replaces the phase-built pipeline.
	Transform *transform.Pipeline

	// ClassPaths supplies the class map directly, skipping collect and
	// split.
	ClassPaths ClassPaths

	// Cache, when non-nil, keeps decoded source images between reads.
	// Without it every read decodes from disk.
	Cache DecodeCache

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config for phase with the thyroid datasource and
// a square 100-pixel target.
func DefaultConfig(phase transform.Phase) Config {
	return Config{
		Source: DefaultThyroidSource(),
		Phase:  phase,
		Target: transform.Square(DefaultTargetSize),
	}
}
