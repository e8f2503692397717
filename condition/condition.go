package condition

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/spf13/cast"

	"github.com/warriorguo/graphflow/types"
)

const (
	resultPrefix = "result."
)

type operator string

const (
	opEqual        operator = "=="
	opNotEqual     operator = "!="
	opGreater      operator = ">"
	opLess         operator = "<"
	opGreaterEqual operator = ">="
	opLessEqual    operator = "<="
)

/**
 * Evaluate runs a `left operator right` expression against the result of
 * the node that just completed and the current execution context.
 * Anything that cannot be evaluated is false.
 */
func Evaluate(expr string, result *types.NodeExecutionResult, execCtx *types.ExecutionContext) bool {
	ok, err := EvaluateE(expr, result, execCtx)
	if err != nil {
		return false
	}
	return ok
}

// EvaluateE is Evaluate with the reason of a failed evaluation.
// Failures carry the types.ContextError kind.
func EvaluateE(expr string, result *types.NodeExecutionResult, execCtx *types.ExecutionContext) (bool, error) {
	tokens := strings.Fields(expr)
	if len(tokens) != 3 {
		return false, types.NewContextErrorf("", "expression %q: want 3 tokens, got %d", expr, len(tokens))
	}

	left, err := resolveLeft(tokens[0], result, execCtx)
	if err != nil {
		return false, errors.Trace(err)
	}
	right, err := resolveRight(tokens[2], execCtx)
	if err != nil {
		return false, errors.Trace(err)
	}
	return compare(operator(tokens[1]), left, right)
}

func resolveLeft(token string, result *types.NodeExecutionResult, execCtx *types.ExecutionContext) (any, error) {
	if strings.HasPrefix(token, resultPrefix) {
		name := strings.TrimPrefix(token, resultPrefix)
		if result != nil {
			if v, exists := result.Output.Get(name); exists {
				return v, nil
			}
		}
		// a variable literally named "result.x" answers when the output lacks x
		if v, exists := execCtx.GetVariable(token); exists {
			return v, nil
		}
		return nil, types.NewContextErrorf("", "result variable %s not found", name)
	}
	return lookupVariable(token, execCtx)
}

func resolveRight(token string, execCtx *types.ExecutionContext) (any, error) {
	if len(token) >= 2 && strings.HasPrefix(token, `"`) && strings.HasSuffix(token, `"`) {
		return strings.Trim(token, `"`), nil
	}
	if num, err := strconv.ParseFloat(token, 64); err == nil {
		return num, nil
	}
	switch token {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return lookupVariable(token, execCtx)
}

func lookupVariable(name string, execCtx *types.ExecutionContext) (any, error) {
	v, exists := execCtx.GetVariable(name)
	if !exists {
		return nil, types.NewContextErrorf("", "variable %s not found", name)
	}
	return v, nil
}

func compare(op operator, left, right any) (bool, error) {
	switch op {
	case opEqual:
		return equal(left, right), nil
	case opNotEqual:
		return !equal(left, right), nil
	case opGreater, opLess, opGreaterEqual, opLessEqual:
	default:
		return false, types.NewContextErrorf("", "unsupported operator %s", op)
	}

	l, lok := toNumber(left)
	r, rok := toNumber(right)
	if !lok || !rok {
		return false, types.NewContextErrorf("", "operator %s needs numeric operands, got %T and %T", op, left, right)
	}
	switch op {
	case opGreater:
		return l > r, nil
	case opLess:
		return l < r, nil
	case opGreaterEqual:
		return l >= r, nil
	default:
		return l <= r, nil
	}
}

// equal treats every numeric type as a number, so an int variable equals a
// float literal and values restored from JSON still compare.
func equal(left, right any) bool {
	l, lok := toNumber(left)
	r, rok := toNumber(right)
	if lok && rok {
		return l == r
	}
	if lok != rok {
		return false
	}
	return reflect.DeepEqual(left, right)
}

// toNumber accepts numeric Go values only. Numeric strings are strings.
func toNumber(v any) (float64, bool) {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return cast.ToFloat64(v), true
	}
	return 0, false
}
