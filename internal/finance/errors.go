package finance

import "github.com/pkg/errors"

var (
	// ErrInvalidRange is returned for unparsable, reversed or too wide date ranges.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrInvalidInput is returned when a request fails validation.
	ErrInvalidInput = errors.New("invalid input")
)
