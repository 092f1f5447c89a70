package loader

import "errors"

// ErrNoDocuments is returned when the given paths match no loadable files.
var ErrNoDocuments = errors.New("no documents found")
