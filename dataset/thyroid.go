package dataset

import (
	"fmt"
	"strings"

	"github.com/digitake/thyroidset/transform"
)

// ThyroidDataset is a specialized dataset for the thyroid ultrasound marker
// classification task: malignant and benign marker crops in the standard
// datasource layout.
type ThyroidDataset struct {
	*PartitionDataset

	source SourceConfig
	phase  transform.Phase
}

// NewThyroid creates the thyroid marker dataset for a phase. An empty root
// falls back to DefaultRoot; a zero target falls back to the square
// 100-pixel default.
func NewThyroid(root string, phase transform.Phase, target transform.Size) (*ThyroidDataset, error) {
	src := DefaultThyroidSource()
	if root != "" {
		src.Root = root
	}
	if target == (transform.Size{}) {
		target = transform.Square(DefaultTargetSize)
	}

	inner, err := New(Config{Source: src, Phase: phase, Target: target})
	if err != nil {
		return nil, err
	}
	return &ThyroidDataset{PartitionDataset: inner, source: src, phase: phase}, nil
}

// Source returns the datasource configuration the dataset was built from.
func (d *ThyroidDataset) Source() SourceConfig {
	return d.source
}

// Phase returns the split and pipeline phase the dataset serves.
func (d *ThyroidDataset) Phase() transform.Phase {
	return d.phase
}

// Summary returns a multi-line description of the dataset
func (d *ThyroidDataset) Summary() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Thyroid Marker Dataset (%s): %d samples, %d classes\n", d.phase, d.Len(), d.NumClasses()))
	sb.WriteString(fmt.Sprintf("  root: %s\n", d.source.Root))
	for _, part := range d.Partitions() {
		sb.WriteString(fmt.Sprintf("  %s: %d samples\n", part.Label, part.Count))
	}
	return sb.String()
}
