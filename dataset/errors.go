package dataset

import "errors"

// Sentinel errors returned by this package. Callers match them with
// errors.Is; the wrapped messages carry the failing index, class or size.
var (
	// ErrIndexOutOfRange reports a linear index outside [0, Len()).
	ErrIndexOutOfRange = errors.New("dataset: index out of range")

	// ErrClassOutOfRange reports a class index outside the partition table.
	ErrClassOutOfRange = errors.New("dataset: class index out of range")

	// ErrValidationSize reports a validation size that is negative or not
	// smaller than every class's path count.
	ErrValidationSize = errors.New("dataset: invalid validation size")

	// ErrInvalidSource reports a datasource configuration that cannot be
	// collected.
	ErrInvalidSource = errors.New("dataset: invalid source configuration")
)
