// Package graph defines domain-specific errors
package graph

import (
	"errors"

	"github.com/flowcore/flowcore/internal/core/value"
)

// Domain errors - defined once, asserted with errors.Is everywhere.
var (
	// Argument errors
	ErrInvalidArgument = errors.New("invalid argument")

	// Node errors
	ErrNodeNotFound      = errors.New("node not found")
	ErrDuplicateNode     = errors.New("duplicate node ID")
	ErrNilNode           = errors.New("node cannot be nil")
	ErrComputationFailed = errors.New("node computation failed")

	// Port errors
	ErrPortNotFound = errors.New("port not found")

	// Connection errors
	ErrConnectionFailed   = errors.New("connection failed")
	ErrConnectionNotFound = errors.New("connection not found")

	// Factory errors
	ErrClassNotRegistered = errors.New("node class not registered")
)

// ErrTypeMismatch is the value package's sentinel, re-exported so callers
// can assert port type failures without importing two packages.
var ErrTypeMismatch = value.ErrTypeMismatch
