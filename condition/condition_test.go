package condition

import (
	"fmt"
	"testing"

	"github.com/juju/errors"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/warriorguo/graphflow/types"
)

func ctxWith(vars types.Data) *types.ExecutionContext {
	c := types.NewExecutionContext()
	c.Merge(vars)
	return c
}

func TestEvaluateEquality(t *testing.T) {
	result := types.NewSuccessResult(nil)

	assert.True(t, Evaluate("x == 5", result, ctxWith(types.Data{"x": 5})))
	assert.False(t, Evaluate("x == 5", result, ctxWith(types.Data{"x": 6})))
	assert.True(t, Evaluate("x != 5", result, ctxWith(types.Data{"x": 6})))
	assert.True(t, Evaluate("x == 5", result, ctxWith(types.Data{"x": 5.0})))
	assert.True(t, Evaluate("x == 5.5", result, ctxWith(types.Data{"x": float32(5.5)})))
	assert.False(t, Evaluate("x == 5", result, ctxWith(types.Data{"x": "5"})))

	assert.True(t, Evaluate(`name == "bob"`, result, ctxWith(types.Data{"name": "bob"})))
	assert.False(t, Evaluate(`name == "alice"`, result, ctxWith(types.Data{"name": "bob"})))

	assert.True(t, Evaluate("flag == true", result, ctxWith(types.Data{"flag": true})))
	assert.False(t, Evaluate("flag == false", result, ctxWith(types.Data{"flag": true})))
	assert.False(t, Evaluate("flag == True", result, ctxWith(types.Data{"flag": true})))
}

func TestEvaluateRightSideVariable(t *testing.T) {
	result := types.NewSuccessResult(nil)
	vars := types.Data{"a": 3, "b": 3, "c": 4}

	assert.True(t, Evaluate("a == b", result, ctxWith(vars)))
	assert.True(t, Evaluate("a < c", result, ctxWith(vars)))
	assert.False(t, Evaluate("a == missing", result, ctxWith(vars)))
}

func TestEvaluateResultPrefix(t *testing.T) {
	result := types.NewSuccessResult(types.Data{"score": 0.9, "label": "spam"})
	execCtx := ctxWith(types.Data{"score": 0.1})

	assert.True(t, Evaluate("result.score > 0.5", result, execCtx))
	assert.False(t, Evaluate("score > 0.5", result, execCtx))
	assert.True(t, Evaluate(`result.label == "spam"`, result, execCtx))
	assert.False(t, Evaluate("result.missing == 1", result, execCtx))
	assert.False(t, Evaluate("result.score > 0.5", nil, execCtx))
}

func TestEvaluateResultPrefixFallsBackToContext(t *testing.T) {
	result := types.NewSuccessResult(types.Data{"score": 0.9})
	execCtx := ctxWith(types.Data{"result.score": 0.1, "result.approved": true})

	// the output wins when it has the name
	assert.True(t, Evaluate("result.score > 0.5", result, execCtx))
	assert.True(t, Evaluate("result.approved == true", result, execCtx))
	assert.True(t, Evaluate("result.approved == true", nil, execCtx))
	assert.True(t, Evaluate("result.score < 0.5", nil, execCtx))

	_, err := EvaluateE("result.other == 1", result, execCtx)
	assert.True(t, errors.Is(err, types.ContextError))
}

func TestEvaluateOrdering(t *testing.T) {
	result := types.NewSuccessResult(nil)
	execCtx := ctxWith(types.Data{"n": int64(10), "s": "abc"})

	assert.True(t, Evaluate("n > 9", result, execCtx))
	assert.True(t, Evaluate("n >= 10", result, execCtx))
	assert.True(t, Evaluate("n <= 10", result, execCtx))
	assert.False(t, Evaluate("n < 10", result, execCtx))

	assert.False(t, Evaluate(`s >= "a"`, result, execCtx))
	ok, err := EvaluateE(`s >= "a"`, result, execCtx)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, types.ContextError))
}

func TestEvaluateMalformed(t *testing.T) {
	result := types.NewSuccessResult(nil)
	execCtx := ctxWith(types.Data{"x": 1})

	for _, expr := range []string{
		"",
		"x",
		"x ==",
		"x == 1 && x == 1",
		"x =~ 1",
		"missing == 1",
	} {
		ok, err := EvaluateE(expr, result, execCtx)
		assert.False(t, ok, expr)
		assert.Error(t, err, expr)
		assert.True(t, errors.Is(err, types.ContextError), expr)
		assert.False(t, Evaluate(expr, result, execCtx), expr)
	}
}

func TestEvaluateNumericProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	result := types.NewSuccessResult(nil)

	properties.Property("== agrees with integer equality", prop.ForAll(
		func(a, b int32) bool {
			execCtx := ctxWith(types.Data{"x": a})
			return Evaluate(fmt.Sprintf("x == %d", b), result, execCtx) == (a == b)
		},
		gen.Int32Range(-50, 50), gen.Int32Range(-50, 50),
	))
	properties.Property("> and <= are complements", prop.ForAll(
		func(a, b int32) bool {
			execCtx := ctxWith(types.Data{"x": a})
			gt := Evaluate(fmt.Sprintf("x > %d", b), result, execCtx)
			le := Evaluate(fmt.Sprintf("x <= %d", b), result, execCtx)
			return gt != le && gt == (a > b)
		},
		gen.Int32(), gen.Int32(),
	))
	properties.Property("string ordering never fires", prop.ForAll(
		func(s string) bool {
			execCtx := ctxWith(types.Data{"x": s})
			return !Evaluate(`x > "a"`, result, execCtx) && !Evaluate(`x < "a"`, result, execCtx)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
