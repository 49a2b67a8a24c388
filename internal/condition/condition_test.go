package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name string
		expr string
		vars map[string]any
		want bool
	}{
		{
			"and with comparison true",
			"theme = 'Plan' AND area > 1000",
			map[string]any{"theme": "Plan", "area": 1500},
			true,
		},
		{
			"and with comparison false",
			"theme = 'Plan' AND area > 1000",
			map[string]any{"theme": "Plan", "area": 500},
			false,
		},
		{
			"single equals is equality",
			"context = 'byggesak'",
			map[string]any{"context": "byggesak"},
			true,
		},
		{
			"double equals",
			"context == 'byggesak'",
			map[string]any{"context": "plan"},
			false,
		},
		{
			"not equals",
			"objekttype != 'Flomsone'",
			map[string]any{"objekttype": "Kvikkleire"},
			true,
		},
		{
			"numeric promotion int vs float",
			"score = 4",
			map[string]any{"score": 4.0},
			true,
		},
		{
			"or short circuit",
			"context = 'byggesak' OR area > 100",
			map[string]any{"context": "byggesak", "area": 5},
			true,
		},
		{
			"not",
			"NOT context = 'byggesak'",
			map[string]any{"context": "plan"},
			true,
		},
		{
			"membership",
			"kommunenummer IN ('3203', '0301')",
			map[string]any{"kommunenummer": "0301"},
			true,
		},
		{
			"negated membership",
			"kommunenummer NOT IN ('3203', '0301')",
			map[string]any{"kommunenummer": "4601"},
			true,
		},
		{
			"parenthesized grouping",
			"(area > 100 OR area < 10) AND theme = 'Plan'",
			map[string]any{"area": 5, "theme": "Plan"},
			true,
		},
		{
			"ordering operators",
			"area >= 1000 AND area <= 2000",
			map[string]any{"area": 1000},
			true,
		},
		{
			"boolean variable",
			"relevant = true",
			map[string]any{"relevant": true},
			true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(tc.expr, tc.vars)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateNonBooleanResult(t *testing.T) {
	_, err := Evaluate("'just a string'", nil)
	require.Error(t, err)
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Contains(t, evalErr.Reason, "not boolean")
}

func TestEvaluateUnboundVariable(t *testing.T) {
	_, err := Evaluate("missing = 'x'", map[string]any{})
	require.Error(t, err)
	var evalErr *EvaluationError
	assert.ErrorAs(t, err, &evalErr)
}

func TestEvaluateSyntaxErrors(t *testing.T) {
	for _, expr := range []string{
		"area >",
		"theme = 'unterminated",
		"area > 10 10",
		"(area > 10",
		"theme IN 'Plan'",
	} {
		_, err := Evaluate(expr, map[string]any{"area": 1, "theme": "Plan"})
		assert.Error(t, err, expr)
	}
}

func TestKeywordsAreCaseSensitive(t *testing.T) {
	// Lowercase "and" is a variable reference, not an operator.
	_, err := Evaluate("a = 1 and b = 2", map[string]any{"a": 1, "b": 2})
	assert.Error(t, err)
}
