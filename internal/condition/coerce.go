package condition

import (
	"strconv"
	"strings"
)

// Coerce turns a raw upstream string into the strongest matching value
// type: number, then boolean, then the string itself. Numbers come back as
// float64 to match the expression value model.
func Coerce(s string) any {
	trimmed := strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return n
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
