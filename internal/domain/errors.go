package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers wrap these with fmt.Errorf("...: %w", ...) and
// classify with errors.Is.
var (
	// ErrConfiguration covers unknown strategies, missing indicator columns
	// and invalid parameter values.
	ErrConfiguration = errors.New("configuration error")

	// ErrData covers empty, misaligned or malformed input series.
	ErrData = errors.New("data error")

	// ErrComputation covers non-finite or non-positive values reaching the
	// portfolio arithmetic.
	ErrComputation = errors.New("computation error")

	// ErrNoData is the data error for a symbol and range with no bars.
	// Wrap it as fmt.Errorf("%w for symbol %s", ErrNoData, symbol).
	ErrNoData = fmt.Errorf("%w: no data found", ErrData)
)
