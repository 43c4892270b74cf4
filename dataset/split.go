package dataset

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Split partitions each class's path list into a validation head of valSize
// paths and a training remainder. The split is deterministic, not
// randomized: reproducibility follows from the stability of the underlying
// listing order. Fails when valSize is negative or when any class has
// valSize or fewer paths, naming the offending class.
func Split(paths ClassPaths, valSize int) (train, val ClassPaths, err error) {
	if valSize < 0 {
		return nil, nil, fmt.Errorf("%w: %d", ErrValidationSize, valSize)
	}

	train = make(ClassPaths, len(paths))
	val = make(ClassPaths, len(paths))
	for _, label := range paths.Labels() {
		class := paths[label]
		if valSize >= len(class) {
			return nil, nil, fmt.Errorf("%w: class %q has %d paths, want more than %d",
				ErrValidationSize, label, len(class), valSize)
		}
		val[label] = class[:valSize]
		train[label] = class[valSize:]
	}
	return train, val, nil
}

// ClassSplit is one class's share of a train/validation split.
type ClassSplit struct {
	Label string
	Train int
	Val   int
}

// SplitSummary reports per-class and total counts for a split.
type SplitSummary struct {
	Classes []ClassSplit
	Train   int
	Val     int
}

// Total returns the combined number of training and validation samples.
func (s SplitSummary) Total() int {
	return s.Train + s.Val
}

// String renders one line per class plus a total line with the train/val
// fractions.
func (s SplitSummary) String() string {
	var sb strings.Builder
	for _, c := range s.Classes {
		sb.WriteString(fmt.Sprintf("%s: %d train / %d val\n", c.Label, c.Train, c.Val))
	}
	total := s.Total()
	if total == 0 {
		sb.WriteString("total: 0 samples\n")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("total: %d samples, %.1f%% train / %.1f%% val\n",
		total,
		100*float64(s.Train)/float64(total),
		100*float64(s.Val)/float64(total)))
	return sb.String()
}

// Summarize computes the per-class counts of an existing split. Labels
// present on only one side count as zero on the other.
func Summarize(train, val ClassPaths) SplitSummary {
	seen := make(map[string]bool, len(train)+len(val))
	var labels []string
	for _, label := range append(train.Labels(), val.Labels()...) {
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)

	var sum SplitSummary
	for _, label := range labels {
		c := ClassSplit{Label: label, Train: len(train[label]), Val: len(val[label])}
		sum.Classes = append(sum.Classes, c)
		sum.Train += c.Train
		sum.Val += c.Val
	}
	return sum
}

// BuildTrainValidation collects the datasource's class paths and splits
// them into training and validation sets, logging the resulting counts.
func BuildTrainValidation(src SourceConfig, logger *slog.Logger) (train, val ClassPaths, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := src.Validate(); err != nil {
		return nil, nil, err
	}

	paths, err := Collect(src.Classes, src.Root, src.Pattern)
	if err != nil {
		return nil, nil, err
	}
	train, val, err = Split(paths, src.ValSize)
	if err != nil {
		return nil, nil, err
	}

	sum := Summarize(train, val)
	logger.Info("built train/validation split",
		"root", src.Root,
		"classes", len(sum.Classes),
		"train", sum.Train,
		"val", sum.Val)
	for _, c := range sum.Classes {
		logger.Debug("class split", "label", c.Label, "train", c.Train, "val", c.Val)
	}
	return train, val, nil
}
