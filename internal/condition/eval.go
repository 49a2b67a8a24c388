package condition

import "fmt"

func (n *literalNode) eval(map[string]any) (any, error) {
	return n.value, nil
}

func (n *varNode) eval(vars map[string]any) (any, error) {
	v, ok := vars[n.name]
	if !ok {
		return nil, fmt.Errorf("unbound variable %q", n.name)
	}
	return normalize(v), nil
}

func (n *notNode) eval(vars map[string]any) (any, error) {
	v, err := n.inner.eval(vars)
	if err != nil {
		return nil, err
	}
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("NOT applied to %T, not boolean", v)
	}
	return !b, nil
}

func (n *binaryNode) eval(vars map[string]any) (any, error) {
	lv, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}
	lb, ok := lv.(bool)
	if !ok {
		return nil, fmt.Errorf("%s operand is %T, not boolean", n.op, lv)
	}
	// Short circuit.
	if n.op == "AND" && !lb {
		return false, nil
	}
	if n.op == "OR" && lb {
		return true, nil
	}
	rv, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}
	rb, ok := rv.(bool)
	if !ok {
		return nil, fmt.Errorf("%s operand is %T, not boolean", n.op, rv)
	}
	return rb, nil
}

func (n *compareNode) eval(vars map[string]any) (any, error) {
	lv, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}
	rv, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "=", "==":
		return valuesEqual(lv, rv), nil
	case "!=":
		return !valuesEqual(lv, rv), nil
	case ">", ">=", "<", "<=":
		lf, lok := asNumber(lv)
		rf, rok := asNumber(rv)
		if !lok || !rok {
			return nil, fmt.Errorf("%s requires numeric operands, got %T and %T", n.op, lv, rv)
		}
		switch n.op {
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		case "<":
			return lf < rf, nil
		default:
			return lf <= rf, nil
		}
	}
	return nil, fmt.Errorf("unknown operator %q", n.op)
}

func (n *inNode) eval(vars map[string]any) (any, error) {
	lv, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}
	found := false
	for _, item := range n.items {
		iv, err := item.eval(vars)
		if err != nil {
			return nil, err
		}
		if valuesEqual(lv, iv) {
			found = true
			break
		}
	}
	if n.negate {
		return !found, nil
	}
	return found, nil
}

// Integers from upstream JSON or config arrive as several Go types; fold
// them all into float64 so comparisons behave uniformly.
func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	}
	return v
}

func asNumber(v any) (float64, bool) {
	f, ok := normalize(v).(float64)
	return f, ok
}

// ValuesEqual compares two values with the expression language's equality
// rule, promoting integer types to float64 so 5 matches 5.0.
func ValuesEqual(a, b any) bool {
	return valuesEqual(a, b)
}

func valuesEqual(a, b any) bool {
	if af, ok := asNumber(a); ok {
		if bf, ok := asNumber(b); ok {
			return af == bf
		}
		return false
	}
	return normalize(a) == normalize(b)
}
