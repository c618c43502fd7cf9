package value

import "errors"

// ErrTypeMismatch indicates a value was accessed as a type other than the
// one fixed at construction.
var ErrTypeMismatch = errors.New("type mismatch")
