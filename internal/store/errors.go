package store

import "errors"

// ErrNotFound reports that no record exists for the given key. Callers
// updating metadata use it to fall back to a full create.
var ErrNotFound = errors.New("not found")
