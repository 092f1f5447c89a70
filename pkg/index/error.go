package index

import "errors"

// ErrDimensionMismatch is returned when a vector's length differs from the
// store's configured dimension. It is a configuration error.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")
