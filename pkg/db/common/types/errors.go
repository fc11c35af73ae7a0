package types

import "github.com/pkg/errors"

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("record not found")
