package storage

import "errors"

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("not found")
