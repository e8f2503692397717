package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warriorguo/graphflow/types"
)

func TestRenderDOTGraph(t *testing.T) {
	g := newGraphBuilder(t).
		node("start", types.NodeStart).
		node("check", types.NodeCondition).
		node("call tool", types.NodeToolCall).
		node("hold", types.NodeWait).
		node("end", types.NodeEnd).
		edge("start", "check").
		cond("check", "call tool", `mode == "tool"`).
		typedEdge("check", "hold", types.EdgeFlexibleConditional, "").
		edge("call tool", "end").
		edge("hold", "end").
		build()
	g.Metadata.Name = "agent"

	dot, err := renderDOT(g, nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(dot), "\n")
	assert.Equal(t, "digraph D {", lines[0])
	assert.Equal(t, "}", lines[len(lines)-1])
	assert.Contains(t, lines, `label="agent"`)
	assert.Contains(t, lines, `start [label="start" shape="doublecircle"]`)
	assert.Contains(t, lines, `check [label="check" shape="diamond"]`)
	assert.Contains(t, lines, `hold [label="hold" shape="octagon"]`)
	assert.Contains(t, lines, `call_tool [label="call tool" shape="record"]`)
	assert.Contains(t, lines, `check -> call_tool [label="mode == \"tool\""]`)
	assert.Contains(t, lines, `check -> hold [label="?" style="dashed"]`)
	assert.Contains(t, lines, `call_tool -> end`)
}

func TestRenderDOTExecution(t *testing.T) {
	g := newGraphBuilder(t).
		node("start", types.NodeStart).
		node("a", types.NodeToolCall).
		node("b", types.NodeToolCall).
		node("end", types.NodeEnd).
		edge("start", "a").
		edge("start", "b").
		edge("a", "end").
		build()

	state := types.NewExecutionState()
	state.SetNodeStatus("start", types.NodeCompleted)
	state.SetNodeStatus("a", types.NodeFailed)
	state.SetNodeStatus("b", types.NodeSkipped)
	state.AddFrontier("a")

	dot, err := renderDOT(g, state)
	require.NoError(t, err)
	assert.Contains(t, dot, `start [label="start" shape="doublecircle" style="filled" fillcolor="green" comment="completed"]`)
	assert.Contains(t, dot, `a [label="a" shape="record" style="filled" fillcolor="red" comment="failed" penwidth="3"]`)
	assert.Contains(t, dot, `b [label="b" shape="record" style="filled" fillcolor="lightgrey" comment="skipped"]`)
	assert.Contains(t, dot, `end [label="end" shape="doublecircle"]`)
}

func TestIDString(t *testing.T) {
	assert.Equal(t, "fetch_quote_v1_", idString("fetch-quote.v1!"))
	assert.Equal(t, `"say \"hi\""`, quoteString(`say "hi"`))
}
