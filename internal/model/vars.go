package model

import "errors"

// ErrNotFound is returned by every FindOne when no row matches, shielding
// callers from the underlying cache/sql package's sentinel error.
var ErrNotFound = errors.New("model: record not found")
