// Package transform builds the per-phase image transformation pipelines used
// by the marker datasets. A pipeline composes operations from the imaging
// library (resize, crop, rotate, flip, color adjustments) and finishes by
// converting the result into a normalized CHW float32 tensor.
package transform

import (
	"errors"
	"fmt"
	"image"
	"math/rand"
	"sync"
	"time"
)

// Phase selects which transformation pipeline a dataset applies to its
// images.
type Phase string

// Supported pipeline phases.
const (
	PhaseTrain Phase = "train"
	PhaseVal   Phase = "val"
	PhaseTest  Phase = "test"
)

var (
	// ErrUnsupportedPhase is returned for phases outside train, val and test.
	ErrUnsupportedPhase = errors.New("transform: unsupported phase")

	// ErrInvalidSize is returned when a target size has non-positive
	// dimensions.
	ErrInvalidSize = errors.New("transform: invalid target size")
)

// ParsePhase validates s and returns it as a Phase.
func ParsePhase(s string) (Phase, error) {
	switch Phase(s) {
	case PhaseTrain, PhaseVal, PhaseTest:
		return Phase(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPhase, s)
}

// Size is the width and height of a pipeline's output, in pixels.
type Size struct {
	Width  int
	Height int
}

// Square returns a Size with equal width and height.
func Square(n int) Size {
	return Size{Width: n, Height: n}
}

// Validate reports whether both dimensions are positive.
func (s Size) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, s.Width, s.Height)
	}
	return nil
}

// enlarged is the pre-crop working size, 10% larger in both dimensions. The
// float conversion truncates, so 99 enlarges to 108, not 109.
func (s Size) enlarged() Size {
	return Size{
		Width:  int(float64(s.Width) * 1.1),
		Height: int(float64(s.Height) * 1.1),
	}
}

// Augmentation parameters of the train phase.
const (
	maxRotationDegrees     = 45.0
	flipProbability        = 0.5
	perspectiveScale       = 0.2
	perspectiveProbability = 0.5
	jitterProbability      = 0.5
	brightnessJitterPct    = 12.6
	contrastJitterPct      = 20.0
)

// ImageNet channel statistics, the default normalization constants.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// op is one image operation in a pipeline. Deterministic ops ignore the
// random source.
type op func(rng *rand.Rand, img image.Image) image.Image

// Pipeline is a composed image transform for one phase. Apply may be called
// concurrently: the random source is locked per draw, and every operation
// works on freshly allocated images.
type Pipeline struct {
	phase  Phase
	target Size
	rng    *rand.Rand
	ops    []op
	mean   [3]float32
	std    [3]float32
}

// Option configures optional pipeline behavior.
type Option func(*Pipeline)

// WithSeed fixes the augmentation random source, making train pipelines
// reproducible. Without it the source is seeded from the clock.
func WithSeed(seed int64) Option {
	return func(p *Pipeline) {
		p.rng = newLockedRand(seed)
	}
}

// WithNormalization overrides the ImageNet channel statistics.
func WithNormalization(mean, std [3]float32) Option {
	return func(p *Pipeline) {
		p.mean = mean
		p.std = std
	}
}

// New builds the pipeline for a phase.
//
// Every phase resizes to 110% of target, center-crops back to target and
// normalizes with the configured channel statistics. The train phase
// additionally rotates by a uniform angle in [-45°,+45°] with expanded
// bounds before the crop, then after the crop flips horizontally (p=0.5),
// warps perspective with distortion scale 0.2 (p=0.5) and jitters brightness
// (±12.6%) and contrast (±20%) together with p=0.5.
func New(target Size, phase Phase, opts ...Option) (*Pipeline, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		phase:  phase,
		target: target,
		mean:   ImageNetMean,
		std:    ImageNetStd,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = newLockedRand(time.Now().UnixNano())
	}

	working := target.enlarged()
	switch phase {
	case PhaseTrain:
		p.ops = []op{
			resizeTo(working),
			randomRotation(maxRotationDegrees),
			cropCenterTo(target),
			randomHorizontalFlip(flipProbability),
			randomPerspective(perspectiveScale, perspectiveProbability),
			randomColorJitter(jitterProbability, brightnessJitterPct, contrastJitterPct),
		}
	case PhaseVal, PhaseTest:
		p.ops = []op{
			resizeTo(working),
			cropCenterTo(target),
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPhase, phase)
	}
	return p, nil
}

// Phase returns the phase the pipeline was built for.
func (p *Pipeline) Phase() Phase {
	return p.phase
}

// Target returns the pipeline's output size.
func (p *Pipeline) Target() Size {
	return p.target
}

// Normalization returns the channel mean and standard deviation the
// pipeline normalizes with.
func (p *Pipeline) Normalization() (mean, std [3]float32) {
	return p.mean, p.std
}

// Apply runs the pipeline on img and returns the normalized tensor of shape
// [3, target.Height, target.Width].
func (p *Pipeline) Apply(img image.Image) (*ImageTensor, error) {
	out := img
	for _, f := range p.ops {
		out = f(p.rng, out)
	}
	return toNormalizedTensor(out, p.mean, p.std), nil
}

// lockedSource guards a seeded random source so pipelines stay safe under
// concurrent Apply calls from dataloader workers.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source64
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

func newLockedRand(seed int64) *rand.Rand {
	return rand.New(&lockedSource{src: rand.NewSource(seed).(rand.Source64)})
}
