package phpindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/phpindex/internal/store"
)

const callsSrc = `<?php
namespace Calls;

class Base
{
    public function run()
    {
        return $this->step();
    }

    public function step()
    {
        return helper();
    }
}

class Child extends Base
{
    public function go()
    {
        return $this->run();
    }
}

function helper()
{
    return strlen("x");
}

function entry()
{
    $c = new Child();
    $c->go();
    $c->run();
    helper();
}

function ping()
{
    return pong();
}

function pong()
{
    return ping();
}

function lonely()
{
}

$top = new Child();
$top->go();
`

func newCallsQuery(t *testing.T) *QueryBuilder {
	t.Helper()
	e := newTestEngine(t)
	root := t.TempDir()
	writePHP(t, root, "calls.php", callsSrc)
	require.NoError(t, e.Build(context.Background(), root, Callbacks{}))
	return e.Query()
}

var (
	fnHelper = Declaration{Kind: store.KindFunction, Name: `Calls\helper`}
	fnEntry  = Declaration{Kind: store.KindFunction, Name: `Calls\entry`}
	mRun     = Declaration{Kind: store.KindMethod, Name: "run", Class: `Calls\Base`}
	mStep    = Declaration{Kind: store.KindMethod, Name: "step", Class: `Calls\Base`}
	mGo      = Declaration{Kind: store.KindMethod, Name: "go", Class: `Calls\Child`}
)

func nodesAtDepth(g *CallGraph) map[Declaration]int {
	out := map[Declaration]int{}
	for _, n := range g.Nodes {
		out[n.Declaration] = n.Depth
	}
	return out
}

// =============================================================================
// TransitiveCallers
// =============================================================================

func TestTransitiveCallers_Depth1MatchesDirectCallers(t *testing.T) {
	q := newCallsQuery(t)

	graph, err := q.TransitiveCallers(context.Background(), fnHelper, 1)
	require.NoError(t, err)
	require.NotNil(t, graph)

	assert.Equal(t, fnHelper, graph.Root)
	assert.Equal(t, map[Declaration]int{fnHelper: 0, mStep: 1, fnEntry: 1}, nodesAtDepth(graph))
	assert.Len(t, graph.Edges, 2)
	assert.Equal(t, 1, graph.Depth)
	require.NotNil(t, graph.Nodes[0].Position)
	assert.Equal(t, 25, graph.Nodes[0].Position.Line)
}

func TestTransitiveCallers_Depth3FollowsInheritedCalls(t *testing.T) {
	q := newCallsQuery(t)

	graph, err := q.TransitiveCallers(context.Background(), fnHelper, 3)
	require.NoError(t, err)

	// go calls run on Child, which Base declares; top-level code is left out.
	assert.Equal(t, map[Declaration]int{
		fnHelper: 0, mStep: 1, fnEntry: 1, mRun: 2, mGo: 3,
	}, nodesAtDepth(graph))
	assert.Equal(t, 3, graph.Depth)
}

func TestTransitiveCallers_SubclassRootMovesToDeclaringClass(t *testing.T) {
	q := newCallsQuery(t)

	graph, err := q.TransitiveCallers(context.Background(),
		Declaration{Kind: store.KindMethod, Name: "run", Class: `Calls\Child`}, 1)
	require.NoError(t, err)
	require.NotNil(t, graph)
	assert.Equal(t, mRun, graph.Root)
	assert.Equal(t, map[Declaration]int{mRun: 0, mGo: 1, fnEntry: 1}, nodesAtDepth(graph))
}

func TestTransitiveCallers_Depth0ReturnsRootOnly(t *testing.T) {
	q := newCallsQuery(t)

	graph, err := q.TransitiveCallers(context.Background(), fnHelper, 0)
	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 1)
	assert.Empty(t, graph.Edges)
	assert.Equal(t, 0, graph.Depth)
}

func TestTransitiveCallers_HandlesCyclesWithoutInfiniteLoop(t *testing.T) {
	q := newCallsQuery(t)
	ping := Declaration{Kind: store.KindFunction, Name: `Calls\ping`}
	pong := Declaration{Kind: store.KindFunction, Name: `Calls\pong`}

	graph, err := q.TransitiveCallers(context.Background(), ping, 10)
	require.NoError(t, err)
	assert.Equal(t, map[Declaration]int{ping: 0, pong: 1}, nodesAtDepth(graph))
	assert.Len(t, graph.Edges, 2)
}

func TestTransitiveCallers_NoCallersReturnsRootOnly(t *testing.T) {
	q := newCallsQuery(t)

	graph, err := q.TransitiveCallers(context.Background(),
		Declaration{Kind: store.KindFunction, Name: `Calls\lonely`}, 5)
	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 1)
	assert.Empty(t, graph.Edges)
}

func TestTransitiveCallers_UnknownReturnsNil(t *testing.T) {
	q := newCallsQuery(t)

	graph, err := q.TransitiveCallers(context.Background(),
		Declaration{Kind: store.KindFunction, Name: `Calls\missing`}, 1)
	require.NoError(t, err)
	assert.Nil(t, graph)
}

func TestTransitiveCallers_Errors(t *testing.T) {
	q := newCallsQuery(t)
	ctx := context.Background()

	_, err := q.TransitiveCallers(ctx, fnHelper, -1)
	assert.ErrorContains(t, err, "maxDepth must be non-negative")

	_, err = q.TransitiveCallers(ctx, Declaration{Kind: store.KindClass, Name: `Calls\Base`}, 1)
	assert.ErrorContains(t, err, "not a function or method")
}

func TestTransitiveCallers_EdgeLocation(t *testing.T) {
	q := newCallsQuery(t)

	graph, err := q.TransitiveCallers(context.Background(), mGo, 1)
	require.NoError(t, err)
	require.Len(t, graph.Edges, 1)
	e := graph.Edges[0]
	assert.Equal(t, fnEntry, e.Caller)
	assert.Equal(t, mGo, e.Callee)
	line, col := posOf(t, callsSrc, "go();", 0)
	assert.Equal(t, line, e.Line)
	assert.Equal(t, col, e.Col)
}

// =============================================================================
// TransitiveCallees
// =============================================================================

func TestTransitiveCallees_Depth1MatchesDirectCallees(t *testing.T) {
	q := newCallsQuery(t)

	graph, err := q.TransitiveCallees(context.Background(), fnEntry, 1)
	require.NoError(t, err)
	require.NotNil(t, graph)
	assert.Equal(t, map[Declaration]int{fnEntry: 0, mGo: 1, mRun: 1, fnHelper: 1}, nodesAtDepth(graph))
	assert.Len(t, graph.Edges, 3)
}

func TestTransitiveCallees_FollowsChainsIntoBuiltins(t *testing.T) {
	q := newCallsQuery(t)
	strlen := Declaration{Kind: store.KindFunction, Name: "strlen"}

	graph, err := q.TransitiveCallees(context.Background(), mGo, 10)
	require.NoError(t, err)
	assert.Equal(t, map[Declaration]int{
		mGo: 0, mRun: 1, mStep: 2, fnHelper: 3, strlen: 4,
	}, nodesAtDepth(graph))
	assert.Equal(t, 4, graph.Depth)
	for _, n := range graph.Nodes {
		if n.Declaration == strlen {
			require.NotNil(t, n.Position)
			assert.Equal(t, store.BuiltinPath, n.Position.File)
		}
	}
}

func TestTransitiveCallees_HandlesCyclesWithoutInfiniteLoop(t *testing.T) {
	q := newCallsQuery(t)
	ping := Declaration{Kind: store.KindFunction, Name: `Calls\ping`}
	pong := Declaration{Kind: store.KindFunction, Name: `Calls\pong`}

	graph, err := q.TransitiveCallees(context.Background(), ping, 100)
	require.NoError(t, err)
	assert.Equal(t, map[Declaration]int{ping: 0, pong: 1}, nodesAtDepth(graph))
}

func TestTransitiveCallees_LeafFunctionReturnsRootOnly(t *testing.T) {
	q := newCallsQuery(t)

	graph, err := q.TransitiveCallees(context.Background(),
		Declaration{Kind: store.KindFunction, Name: `Calls\lonely`}, 3)
	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 1)
}

// =============================================================================
// Hotspots
// =============================================================================

func TestHotspots_TopNByUses(t *testing.T) {
	q := newCallsQuery(t)

	hot, err := q.Hotspots(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, hot, 2)

	// helper, run and go are each used twice; ties order by class, then
	// name.
	for _, h := range hot {
		assert.Equal(t, 2, h.Uses)
		assert.Equal(t, 1, h.Files)
	}
	assert.Equal(t, fnHelper, hot[0].Declaration)
	assert.Equal(t, mRun, hot[1].Declaration)
}

func TestHotspots_TopNLargerThanTotal(t *testing.T) {
	q := newCallsQuery(t)

	hot, err := q.Hotspots(context.Background(), 1000)
	require.NoError(t, err)
	var names []string
	for _, h := range hot {
		names = append(names, h.Declaration.Name)
	}
	assert.NotContains(t, names, `Calls\lonely`)
	assert.Contains(t, names, "strlen")
}

func TestHotspots_TopNZeroReturnsEmpty(t *testing.T) {
	q := newCallsQuery(t)

	hot, err := q.Hotspots(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, hot)

	_, err = q.Hotspots(context.Background(), -1)
	assert.Error(t, err)
}
