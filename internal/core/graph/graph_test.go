package graph

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/flowcore/internal/core/ident"
	"github.com/flowcore/flowcore/internal/core/scheduler"
	"github.com/flowcore/flowcore/internal/core/value"
)

func TestGraph_AddNode(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	n := mustNode(env, "const.int", "c")
	require.NoError(t, g.AddNode(n))

	got, err := g.Node(n.ID())
	require.NoError(t, err)
	assert.Same(t, n, got)

	t.Run("duplicate id rejected", func(t *testing.T) {
		err := g.AddNode(n)
		assert.ErrorIs(t, err, ErrDuplicateNode)
	})

	t.Run("nil node rejected", func(t *testing.T) {
		assert.ErrorIs(t, g.AddNode(nil), ErrNilNode)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := g.Node(ident.NewUUID())
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})
}

func TestGraph_AddNodeOf(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	n, err := g.AddNodeOf("math.double", "d")
	require.NoError(t, err)
	assert.Equal(t, "math.double", n.Class())
	assert.Len(t, g.Nodes(), 1)

	_, err = g.AddNodeOf("no.such", "x")
	assert.ErrorIs(t, err, ErrClassNotRegistered)
}

func TestGraph_Nodes_SortedByID(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	for i := 0; i < 5; i++ {
		_, err := g.AddNodeOf("const.int", "c")
		require.NoError(t, err)
	}

	nodes := g.Nodes()
	require.Len(t, nodes, 5)
	for i := 1; i < len(nodes); i++ {
		assert.Negative(t, ident.CompareUUID(nodes[i-1].ID(), nodes[i].ID()))
	}
}

func TestGraph_ConnectNodes(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	src, err := g.AddNodeOf("const.int", "src")
	require.NoError(t, err)
	dst, err := g.AddNodeOf("math.double", "dst")
	require.NoError(t, err)

	conn, err := g.ConnectNodes(src.ID(), keyValue, dst.ID(), keyInput)
	require.NoError(t, err)
	assert.Equal(t, src.ID(), conn.SourceNodeID())
	assert.Equal(t, keyValue, conn.SourcePortKey())
	assert.Equal(t, dst.ID(), conn.TargetNodeID())
	assert.Equal(t, keyInput, conn.TargetPortKey())

	got, err := g.Connection(conn.ID())
	require.NoError(t, err)
	assert.Same(t, conn, got)
	assert.Len(t, g.Connections(), 1)
}

func TestGraph_ConnectNodes_Validation(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	src, err := g.AddNodeOf("math.add", "src")
	require.NoError(t, err)
	dst, err := g.AddNodeOf("math.double", "dst")
	require.NoError(t, err)

	tests := []struct {
		name       string
		sourceID   ident.UUID
		sourcePort ident.Name
		targetID   ident.UUID
		targetPort ident.Name
	}{
		{"missing source node", ident.NewUUID(), keySum, dst.ID(), keyInput},
		{"missing target node", src.ID(), keySum, ident.NewUUID(), keyInput},
		{"missing source port", src.ID(), ident.Intern("nope"), dst.ID(), keyInput},
		{"missing target port", src.ID(), keySum, dst.ID(), ident.Intern("nope")},
		// double -> int has no registered conversion.
		{"incompatible types", src.ID(), keySum, dst.ID(), keyInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.ConnectNodes(tt.sourceID, tt.sourcePort, tt.targetID, tt.targetPort)
			assert.ErrorIs(t, err, ErrConnectionFailed)
			assert.False(t, g.CanConnect(tt.sourceID, tt.sourcePort, tt.targetID, tt.targetPort))
		})
	}
	assert.Empty(t, g.Connections())
}

func TestGraph_CanConnect(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	src, err := g.AddNodeOf("const.int", "src")
	require.NoError(t, err)
	add, err := g.AddNodeOf("math.add", "add")
	require.NoError(t, err)

	// int -> double goes through the registered conversion.
	assert.True(t, g.CanConnect(src.ID(), keyValue, add.ID(), keyA))
	assert.Empty(t, g.Connections(), "CanConnect must not mutate")
}

func TestGraph_ConnectNodes_SupersedesExisting(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	first, err := g.AddNodeOf("const.int", "first")
	require.NoError(t, err)
	second, err := g.AddNodeOf("const.int", "second")
	require.NoError(t, err)
	dst, err := g.AddNodeOf("math.double", "dst")
	require.NoError(t, err)

	_, err = g.ConnectNodes(first.ID(), keyValue, dst.ID(), keyInput)
	require.NoError(t, err)
	replacement, err := g.ConnectNodes(second.ID(), keyValue, dst.ID(), keyInput)
	require.NoError(t, err)

	conns := g.Connections()
	require.Len(t, conns, 1, "fan-in stays at one")
	assert.Equal(t, replacement.ID(), conns[0].ID())
	assert.Equal(t, second.ID(), conns[0].SourceNodeID())
}

func TestGraph_ConnectNodes_SeedsFromPopulatedOutput(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	src, err := g.AddNodeOf("const.int", "src")
	require.NoError(t, err)
	dst, err := g.AddNodeOf("math.double", "dst")
	require.NoError(t, err)

	// Populate the source output before any connection exists.
	require.NoError(t, src.SetInputData(keyValue, value.NewInt(6), true))

	_, err = g.ConnectNodes(src.ID(), keyValue, dst.ID(), keyInput)
	require.NoError(t, err)

	// The connect pushed the held value and triggered the consumer.
	out, err := dst.OutputData(keyOutput)
	require.NoError(t, err)
	require.NotNil(t, out)
	i, err := out.Int()
	require.NoError(t, err)
	assert.Equal(t, int32(12), i)
}

func TestGraph_Propagation(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	src, err := g.AddNodeOf("const.int", "src")
	require.NoError(t, err)
	dbl, err := g.AddNodeOf("math.double", "dbl")
	require.NoError(t, err)
	_, err = g.ConnectNodes(src.ID(), keyValue, dbl.ID(), keyInput)
	require.NoError(t, err)

	require.NoError(t, src.SetInputData(keyValue, value.NewInt(5), true))

	out, err := dbl.OutputData(keyOutput)
	require.NoError(t, err)
	require.NotNil(t, out)
	i, err := out.Int()
	require.NoError(t, err)
	assert.Equal(t, int32(10), i)
}

func TestGraph_Run_TriggersSourceNodes(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	src, err := g.AddNodeOf("const.int", "src")
	require.NoError(t, err)
	dbl, err := g.AddNodeOf("math.double", "dbl")
	require.NoError(t, err)
	_, err = g.ConnectNodes(src.ID(), keyValue, dbl.ID(), keyInput)
	require.NoError(t, err)

	// Stage the value without computing, then run the whole graph.
	require.NoError(t, src.SetInputData(keyValue, value.NewInt(5), false))
	g.Run()

	out, err := dbl.OutputData(keyOutput)
	require.NoError(t, err)
	require.NotNil(t, out)
	i, err := out.Int()
	require.NoError(t, err)
	assert.Equal(t, int32(10), i)
}

func TestGraph_RemoveNode_SeversConnections(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	src, err := g.AddNodeOf("const.int", "src")
	require.NoError(t, err)
	mid, err := g.AddNodeOf("math.double", "mid")
	require.NoError(t, err)
	end, err := g.AddNodeOf("math.double", "end")
	require.NoError(t, err)
	_, err = g.ConnectNodes(src.ID(), keyValue, mid.ID(), keyInput)
	require.NoError(t, err)
	_, err = g.ConnectNodes(mid.ID(), keyOutput, end.ID(), keyInput)
	require.NoError(t, err)

	require.NoError(t, g.RemoveNode(mid.ID()))

	assert.Empty(t, g.Connections(), "both incident connections removed")
	assert.Len(t, g.Nodes(), 2)

	assert.ErrorIs(t, g.RemoveNode(mid.ID()), ErrNodeNotFound)
}

func TestGraph_DisconnectNodes_KeepsLastValue(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	src, err := g.AddNodeOf("const.int", "src")
	require.NoError(t, err)
	dst, err := g.AddNodeOf("math.double", "dst")
	require.NoError(t, err)
	_, err = g.ConnectNodes(src.ID(), keyValue, dst.ID(), keyInput)
	require.NoError(t, err)
	require.NoError(t, src.SetInputData(keyValue, value.NewInt(3), true))

	require.NoError(t, g.DisconnectNodes(src.ID(), keyValue, dst.ID(), keyInput))
	assert.Empty(t, g.Connections())

	v, err := dst.InputData(keyInput)
	require.NoError(t, err)
	require.NotNil(t, v, "disconnect keeps the last propagated value")
	i, err := v.Int()
	require.NoError(t, err)
	assert.Equal(t, int32(3), i)

	err = g.DisconnectNodes(src.ID(), keyValue, dst.ID(), keyInput)
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}

func TestGraph_RemoveConnection(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	src, err := g.AddNodeOf("const.int", "src")
	require.NoError(t, err)
	dst, err := g.AddNodeOf("math.double", "dst")
	require.NoError(t, err)
	conn, err := g.ConnectNodes(src.ID(), keyValue, dst.ID(), keyInput)
	require.NoError(t, err)

	require.NoError(t, g.RemoveConnection(conn.ID()))
	assert.Empty(t, g.Connections())
	assert.ErrorIs(t, g.RemoveConnection(conn.ID()), ErrConnectionNotFound)
}

func TestGraph_Clear(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	src, err := g.AddNodeOf("const.int", "src")
	require.NoError(t, err)
	dst, err := g.AddNodeOf("math.double", "dst")
	require.NoError(t, err)
	_, err = g.ConnectNodes(src.ID(), keyValue, dst.ID(), keyInput)
	require.NoError(t, err)

	g.Clear()
	assert.Empty(t, g.Nodes())
	assert.Empty(t, g.Connections())
}

func TestGraph_OnDataSet(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	src, err := g.AddNodeOf("const.int", "src")
	require.NoError(t, err)

	var mu sync.Mutex
	var events []DataEvent
	tok := g.OnDataSet(func(ev DataEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	require.NoError(t, src.SetInputData(keyValue, value.NewInt(1), true))

	mu.Lock()
	// One input write plus the compute's output write.
	require.Len(t, events, 2)
	assert.True(t, events[0].IsInput)
	assert.False(t, events[1].IsInput)
	mu.Unlock()

	g.Unsubscribe(tok)
	require.NoError(t, src.SetInputData(keyValue, value.NewInt(2), false))
	mu.Lock()
	assert.Len(t, events, 2)
	mu.Unlock()
}

func TestGraph_OnError_AggregatesNodeFaults(t *testing.T) {
	env := newTestEnv()
	g := NewGraph("test", env)

	n, err := g.AddNodeOf("math.double", "d")
	require.NoError(t, err)

	var mu sync.Mutex
	var faults []NodeFault
	g.OnError(func(f NodeFault) {
		mu.Lock()
		faults = append(faults, f)
		mu.Unlock()
	})

	_ = n.InvokeCompute() // empty input, compute faults

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, faults, 1)
	assert.Equal(t, n.ID(), faults[0].NodeID)
	assert.ErrorIs(t, faults[0].Err, ErrComputationFailed)
}

func TestGraph_CycleHitsDepthLimit(t *testing.T) {
	pool := scheduler.New(2, 64)
	defer pool.Stop()

	env := newTestEnv()
	env.submit = pool.Submit
	g := NewGraph("test", env)

	n, err := g.AddNodeOf("math.double", "loop")
	require.NoError(t, err)
	// Self-loop: output feeds the node's own input.
	_, err = g.ConnectNodes(n.ID(), keyOutput, n.ID(), keyInput)
	require.NoError(t, err)

	overflow := make(chan NodeFault, 1)
	g.OnError(func(f NodeFault) {
		select {
		case overflow <- f:
		default:
		}
	})

	require.NoError(t, n.SetInputData(keyInput, value.NewInt(1), true))

	select {
	case f := <-overflow:
		assert.ErrorIs(t, f.Err, ErrComputationFailed)
		assert.ErrorContains(t, f.Err, "depth limit")
	case <-time.After(10 * time.Second):
		t.Fatal("propagation never hit the depth limit")
	}
	pool.Wait()
}
