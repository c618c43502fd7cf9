package graph

import (
	"sync"
	"sync/atomic"

	"github.com/flowcore/flowcore/internal/core/ident"
	"github.com/flowcore/flowcore/internal/core/value"
)

// Token identifies one event subscription. Tokens are unique per owning
// node or graph; unsubscribing with a token from another owner is a no-op.
type Token uint64

var tokenCounter atomic.Uint64

func nextToken() Token {
	return Token(tokenCounter.Add(1))
}

// PortEvent describes a value write on a port. Value is nil when the port
// was cleared. Auto reports whether the write requested downstream activity
// (auto-compute for inputs, propagation for outputs).
type PortEvent struct {
	Key   ident.Name
	Value *value.Value
	Auto  bool

	// depth of the propagation wave that produced the write; zero for
	// direct writes.
	depth int
}

// NodeFault pairs a node with the compute error it raised.
type NodeFault struct {
	NodeID ident.UUID
	Err    error
}

// DataEvent describes a value write observed at graph level.
type DataEvent struct {
	NodeID  ident.UUID
	PortKey ident.Name
	Value   *value.Value
	IsInput bool
}

// emitter is an ordered set of subscribers keyed by token. Each graph and
// node owns its own emitters; there is no process-wide registry.
type emitter[T any] struct {
	mu   sync.RWMutex
	subs map[Token]func(T)
}

func (e *emitter[T]) subscribe(fn func(T)) Token {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subs == nil {
		e.subs = make(map[Token]func(T))
	}
	tok := nextToken()
	e.subs[tok] = fn
	return tok
}

func (e *emitter[T]) unsubscribe(tok Token) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subs[tok]; !ok {
		return false
	}
	delete(e.subs, tok)
	return true
}

// emit invokes every subscriber with ev. Callbacks run on the caller's
// goroutine, which for compute-triggered events is a worker thread.
func (e *emitter[T]) emit(ev T) {
	e.mu.RLock()
	fns := make([]func(T), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}
