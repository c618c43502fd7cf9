package flowcore

import (
	"fmt"
	"os"
	"strconv"

	"github.com/flowcore/flowcore/internal/app/modules"
	"github.com/flowcore/flowcore/internal/core/graph"
	"github.com/flowcore/flowcore/internal/core/scheduler"
	"github.com/flowcore/flowcore/pkg/stdnodes"
)

// Settings configures an Env.
type Settings struct {
	// MaxThreads is the worker pool size. It must be positive.
	MaxThreads int
	// QueueCapacity is the per-worker task queue depth; zero selects the
	// pool default.
	QueueCapacity int
	// SkipBuiltins leaves the builtin node classes unloaded, for hosts
	// that supply their own class packs.
	SkipBuiltins bool
}

// SettingsFromEnv reads settings from FLOWCORE_MAX_THREADS and
// FLOWCORE_QUEUE_CAPACITY, with the given fallback for anything unset.
func SettingsFromEnv(fallback Settings) Settings {
	s := fallback
	if v, ok := os.LookupEnv("FLOWCORE_MAX_THREADS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.MaxThreads = n
		}
	}
	if v, ok := os.LookupEnv("FLOWCORE_QUEUE_CAPACITY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.QueueCapacity = n
		}
	}
	return s
}

// Env is the execution environment graphs run under: one node factory, one
// module manager, and one worker pool shared by every graph it creates.
type Env struct {
	factory *graph.NodeFactory
	modules *modules.Manager
	pool    *scheduler.Pool
}

// NewEnv creates an environment with the given settings. Unless
// SkipBuiltins is set, the stdnodes pack is loaded so the usual constant,
// arithmetic, and string classes are available immediately.
func NewEnv(settings Settings) (*Env, error) {
	if settings.MaxThreads <= 0 {
		return nil, fmt.Errorf("%w: max_threads must be positive, got %d",
			graph.ErrInvalidArgument, settings.MaxThreads)
	}

	factory := graph.NewNodeFactory()
	env := &Env{
		factory: factory,
		modules: modules.NewManager(factory),
		pool:    scheduler.New(settings.MaxThreads, settings.QueueCapacity),
	}
	if !settings.SkipBuiltins {
		if err := env.modules.Load(stdnodes.New()); err != nil {
			env.pool.Stop()
			return nil, err
		}
	}
	return env, nil
}

// Factory returns the shared node factory.
func (e *Env) Factory() *graph.NodeFactory { return e.factory }

// Modules returns the module manager for loading further class packs.
func (e *Env) Modules() *modules.Manager { return e.modules }

// Submit queues a task on the worker pool.
func (e *Env) Submit(task func()) { e.pool.Submit(task) }

// Wait blocks until every queued task, including tasks those tasks spawn,
// has finished. Use it as the barrier after Graph.Run.
func (e *Env) Wait() { e.pool.Wait() }

// Workers returns the pool size.
func (e *Env) Workers() int { return e.pool.Workers() }

// Stop shuts the worker pool down and unloads every module. The Env must
// not be used afterwards.
func (e *Env) Stop() error {
	e.pool.Stop()
	return e.modules.UnloadAll()
}

// GetVar reads a process environment variable, the host's channel for
// passing configuration strings to node computes.
func (e *Env) GetVar(name string) (string, bool) {
	return os.LookupEnv(name)
}

// NewGraph creates an empty graph bound to this environment.
func (e *Env) NewGraph(name string) *Graph {
	return graph.NewGraph(name, e)
}
