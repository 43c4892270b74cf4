// Package dataset implements a partitioned-index image dataset for the
// thyroid marker classification task. Class directories are globbed into
// per-class path lists, split into training and validation sets, and
// addressed through a single linear index that walks the classes in
// sorted-label order. Reads decode the source image and run it through the
// phase's transform pipeline.
package dataset

import (
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/digitake/thyroidset/transform"
)

// Partition is one class's entry in the partition table: its label and the
// number of paths it contributes to the linear index space.
type Partition struct {
	Label string
	Count int
}

// SampleMeta records where a sample came from.
type SampleMeta struct {
	Path         string
	Label        string
	ClassIndex   int
	InClassIndex int
}

// Sample is the unit produced by a dataset read: the transformed image, the
// numeric class index and the source metadata.
type Sample struct {
	Image      *transform.ImageTensor
	ClassIndex int
	Meta       SampleMeta
}

// DecodeCache keeps decoded source images between reads. Implementations
// must be safe for concurrent use.
type DecodeCache interface {
	Get(path string) (image.Image, bool)
	Put(path string, img image.Image)
}

// PartitionDataset maps a linear index across class-partitioned path lists
// to samples. Class indices are assigned by sorting labels ascending, not
// by map insertion order. Concurrent GetItem calls are safe as long as
// nothing calls SetClassPaths at the same time; the dataset takes no locks
// of its own.
type PartitionDataset struct {
	classPaths ClassPaths
	partitions []Partition
	pipeline   *transform.Pipeline
	cache      DecodeCache
	logger     *slog.Logger
}

// New builds a dataset for cfg.Phase. With an explicit cfg.ClassPaths the
// datasource is ignored; otherwise the train phase reads the training split
// and both the val and test phases read the validation split (the shipped
// datasource has no held-out test set).
func New(cfg Config) (*PartitionDataset, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pipeline := cfg.Transform
	if pipeline == nil {
		var opts []transform.Option
		if cfg.Seed != 0 {
			opts = append(opts, transform.WithSeed(cfg.Seed))
		}
		var err error
		pipeline, err = transform.New(cfg.Target, cfg.Phase, opts...)
		if err != nil {
			return nil, err
		}
	}

	paths := cfg.ClassPaths
	if paths == nil {
		train, val, err := BuildTrainValidation(cfg.Source, logger)
		if err != nil {
			return nil, err
		}
		switch cfg.Phase {
		case transform.PhaseTrain:
			paths = train
		case transform.PhaseVal, transform.PhaseTest:
			paths = val
		default:
			return nil, fmt.Errorf("%w: %q", transform.ErrUnsupportedPhase, cfg.Phase)
		}
	}

	d := &PartitionDataset{
		pipeline: pipeline,
		cache:    cfg.Cache,
		logger:   logger,
	}
	d.SetClassPaths(paths)
	return d, nil
}

// SetClassPaths replaces the dataset's class map and rebuilds the partition
// table in sorted-label order. Empty classes are permitted and contribute
// nothing to index resolution; paths are not checked for existence until
// read. Not safe to call concurrently with reads.
func (d *PartitionDataset) SetClassPaths(paths ClassPaths) {
	if paths == nil {
		paths = ClassPaths{}
	}
	d.classPaths = paths

	labels := paths.Labels()
	d.partitions = make([]Partition, len(labels))
	for i, label := range labels {
		d.partitions[i] = Partition{Label: label, Count: len(paths[label])}
	}
}

// SetDecodeCache installs a decoded-image cache, or removes it with nil.
func (d *PartitionDataset) SetDecodeCache(cache DecodeCache) {
	d.cache = cache
}

// Pipeline returns the dataset's transform pipeline.
func (d *PartitionDataset) Pipeline() *transform.Pipeline {
	return d.pipeline
}

// Len returns the number of samples across all classes. It recounts the
// live class map so the value tracks SetClassPaths.
func (d *PartitionDataset) Len() int {
	return d.classPaths.Total()
}

// Resolve maps a linear index to its class label, the label's position in
// the sorted partition table, and the offset inside the class.
func (d *PartitionDataset) Resolve(index int) (label string, classIndex, inClassIndex int, err error) {
	if index < 0 {
		return "", 0, 0, fmt.Errorf("%w: index %d out of range [0, %d)", ErrIndexOutOfRange, index, d.Len())
	}
	remaining := index
	for i, part := range d.partitions {
		if remaining < part.Count {
			return part.Label, i, remaining, nil
		}
		remaining -= part.Count
	}
	return "", 0, 0, fmt.Errorf("%w: index %d out of range [0, %d)", ErrIndexOutOfRange, index, d.Len())
}

// GetItem reads the sample at the given linear index: the path is resolved,
// decoded as a color image and run through the transform pipeline. Open and
// decode failures are returned as-is.
func (d *PartitionDataset) GetItem(index int) (*Sample, error) {
	label, classIndex, inClassIndex, err := d.Resolve(index)
	if err != nil {
		return nil, err
	}
	path := d.classPaths[label][inClassIndex]

	img, err := d.loadImage(path)
	if err != nil {
		return nil, err
	}
	tensor, err := d.pipeline.Apply(img)
	if err != nil {
		return nil, err
	}

	return &Sample{
		Image:      tensor,
		ClassIndex: classIndex,
		Meta: SampleMeta{
			Path:         path,
			Label:        label,
			ClassIndex:   classIndex,
			InClassIndex: inClassIndex,
		},
	}, nil
}

func (d *PartitionDataset) loadImage(path string) (image.Image, error) {
	if d.cache != nil {
		if img, ok := d.cache.Get(path); ok {
			return img, nil
		}
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		d.cache.Put(path, img)
	}
	return img, nil
}

// ClassLabel returns the label at classIndex in the sorted partition table.
func (d *PartitionDataset) ClassLabel(classIndex int) (string, error) {
	if classIndex < 0 || classIndex >= len(d.partitions) {
		return "", fmt.Errorf("%w: class %d out of range [0, %d)", ErrClassOutOfRange, classIndex, len(d.partitions))
	}
	return d.partitions[classIndex].Label, nil
}

// NumClasses returns the number of classes in the partition table.
func (d *PartitionDataset) NumClasses() int {
	return len(d.partitions)
}

// Labels returns the class labels in partition-table order.
func (d *PartitionDataset) Labels() []string {
	labels := make([]string, len(d.partitions))
	for i, part := range d.partitions {
		labels[i] = part.Label
	}
	return labels
}

// Partitions returns a copy of the partition table.
func (d *PartitionDataset) Partitions() []Partition {
	return append([]Partition(nil), d.partitions...)
}

// ClassDistribution returns the number of samples per class label.
func (d *PartitionDataset) ClassDistribution() map[string]int {
	dist := make(map[string]int, len(d.partitions))
	for _, part := range d.partitions {
		dist[part.Label] = part.Count
	}
	return dist
}

// String returns a one-line description of the dataset
func (d *PartitionDataset) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("PartitionDataset: %d samples, %d classes [", d.Len(), len(d.partitions)))
	for i, part := range d.partitions {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(fmt.Sprintf("%s:%d", part.Label, part.Count))
	}
	sb.WriteString("]")
	return sb.String()
}
