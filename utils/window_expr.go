package utils

import (
	"fmt"
	"sort"
	"strings"

	goeval "github.com/edisonguo/govaluate"
	"gonum.org/v1/gonum/stat"
)

// Variables available to window expressions.
var windowExprVariables = map[string]struct{}{
	"min":    struct{}{},
	"max":    struct{}{},
	"mean":   struct{}{},
	"std":    struct{}{},
	"median": struct{}{},
	"count":  struct{}{},
}

// WindowExpr derives a range window from expressions over volume
// statistics, e.g. "mean - 2*std" and "max * 0.8".
type WindowExpr struct {
	MinExpr string
	MaxExpr string

	lo *goeval.EvaluableExpression
	hi *goeval.EvaluableExpression
}

// ParseWindowExpr parses both bound expressions and checks that they only
// refer to known statistics.
func ParseWindowExpr(minExpr, maxExpr string) (*WindowExpr, error) {
	lo, err := parseStatExpression(minExpr)
	if err != nil {
		return nil, fmt.Errorf("%w: lower bound %q: %v", ErrInvalidWindow, minExpr, err)
	}
	hi, err := parseStatExpression(maxExpr)
	if err != nil {
		return nil, fmt.Errorf("%w: upper bound %q: %v", ErrInvalidWindow, maxExpr, err)
	}
	return &WindowExpr{MinExpr: minExpr, MaxExpr: maxExpr, lo: lo, hi: hi}, nil
}

func parseStatExpression(pattern string) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(pattern)) == 0 {
		return nil, fmt.Errorf("empty expression")
	}

	expr, err := goeval.NewEvaluableExpression(pattern)
	if err != nil {
		return nil, err
	}

	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := windowExprVariables[varName]; !found {
				return nil, fmt.Errorf("variable %v is not supported. Valid variables are min, max, mean, std, median, count", varName)
			}
		}
	}
	return expr, nil
}

// Policy evaluates the expressions against the statistics of v and returns
// the equivalent range policy.
func (we *WindowExpr) Policy(v Volume) (WindowPolicy, error) {
	params, err := VolumeStats(v)
	if err != nil {
		return WindowPolicy{}, err
	}

	lo, err := evalBound(we.lo, params)
	if err != nil {
		return WindowPolicy{}, fmt.Errorf("%w: lower bound %q: %v", ErrInvalidWindow, we.MinExpr, err)
	}
	hi, err := evalBound(we.hi, params)
	if err != nil {
		return WindowPolicy{}, fmt.Errorf("%w: upper bound %q: %v", ErrInvalidWindow, we.MaxExpr, err)
	}
	return RangeWindow(lo, hi), nil
}

func evalBound(expr *goeval.EvaluableExpression, params map[string]interface{}) (float64, error) {
	res, err := expr.Evaluate(params)
	if err != nil {
		return 0, err
	}
	// The evaluator computes in float32, so bounds carry about seven
	// significant digits.
	var val float64
	switch r := res.(type) {
	case float32:
		val = float64(r)
	case float64:
		val = r
	default:
		return 0, fmt.Errorf("expression evaluates to %T, not a number", res)
	}
	if !isFinite(val) {
		return 0, fmt.Errorf("expression evaluates to %v", val)
	}
	return val, nil
}

// VolumeStats summarises the finite voxels of v as expression parameters.
func VolumeStats(v Volume) (map[string]interface{}, error) {
	if v == nil || v.Len() == 0 {
		return nil, fmt.Errorf("%w: no voxels for statistics", ErrEmptyVolume)
	}

	values := Values(v)
	n := 0
	for _, x := range values {
		if isFinite(x) {
			values[n] = x
			n++
		}
	}
	values = values[:n]
	if n == 0 {
		return nil, fmt.Errorf("%w: no finite voxels", ErrEmptyVolume)
	}
	sort.Float64s(values)

	mean, std := stat.MeanStdDev(values, nil)
	if n == 1 {
		std = 0
	}
	return map[string]interface{}{
		"min":    values[0],
		"max":    values[n-1],
		"mean":   mean,
		"std":    std,
		"median": stat.Quantile(0.5, stat.Empirical, values, nil),
		"count":  float64(n),
	}, nil
}
