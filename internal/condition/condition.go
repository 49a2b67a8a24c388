// Package condition implements the restricted boolean expression language
// used by layer type filters and quality-indicator input filters. The
// grammar is closed: literals, comparisons, AND/OR/NOT and IN membership
// over a flat variable map. Nothing in an expression can reach host code.
package condition

import "fmt"

// EvaluationError reports an expression that could not be parsed, referenced
// an unbound variable, or did not reduce to a boolean.
type EvaluationError struct {
	Expr   string
	Reason string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("condition: cannot evaluate %q: %s", e.Expr, e.Reason)
}

// Evaluate parses expr and evaluates it against vars. A result of any type
// other than boolean is an error, never coerced.
func Evaluate(expr string, vars map[string]any) (bool, error) {
	tokens, err := lex(expr)
	if err != nil {
		return false, &EvaluationError{Expr: expr, Reason: err.Error()}
	}
	p := &parser{tokens: tokens}
	node, err := p.parseExpr()
	if err != nil {
		return false, &EvaluationError{Expr: expr, Reason: err.Error()}
	}
	if !p.atEnd() {
		return false, &EvaluationError{Expr: expr, Reason: fmt.Sprintf("unexpected token %q", p.peek().text)}
	}
	v, err := node.eval(vars)
	if err != nil {
		return false, &EvaluationError{Expr: expr, Reason: err.Error()}
	}
	b, ok := v.(bool)
	if !ok {
		return false, &EvaluationError{Expr: expr, Reason: fmt.Sprintf("result is %T, not boolean", v)}
	}
	return b, nil
}
