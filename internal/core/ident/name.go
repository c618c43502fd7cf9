// Package ident provides the identity primitives used across the engine:
// UUIDs for nodes, connections, and graphs, and interned names for port and
// category keys.
package ident

import (
	"strings"
	"sync"
)

// Name is an interned string used as a map key for ports and categories.
// Equality and hashing are by string content; interning deduplicates the
// backing storage so repeated keys share one allocation.
type Name string

var internTable sync.Map // string -> Name

// Intern returns the canonical Name for s.
func Intern(s string) Name {
	if v, ok := internTable.Load(s); ok {
		return v.(Name)
	}
	n := Name(strings.Clone(s))
	actual, _ := internTable.LoadOrStore(string(n), n)
	return actual.(Name)
}

// String returns the underlying string content.
func (n Name) String() string {
	return string(n)
}
