package quality

import (
	"github.com/geonorge/dokanalyse/internal/config"
)

// ObjectQuality summarizes a configured property across the features an
// analysis matched. Distinct observed values become measurements, in order
// of first occurrence; a warning fires when any distinct non-empty value is
// in the indicator's threshold list.
func (s *Service) ObjectQuality(indicators []config.QualityIndicatorConfig, data []map[string]any) ([]Measurement, []string) {
	if len(data) == 0 {
		return nil, nil
	}

	var (
		measurements []Measurement
		warnings     []string
	)

	for _, qi := range indicatorsOfKind(indicators, KindObject) {
		thresholds := ThresholdValues(qi.WarningThreshold)
		distinct := distinctValues(data, qi.Property)
		shouldWarn := false

		for _, value := range distinct {
			measurements = append(measurements, Measurement{
				QualityDimensionID:   qi.QualityDimensionID,
				QualityDimensionName: qi.QualityDimensionName,
				Value:                value,
			})
			if !isEmptyValue(value) && matchesThreshold(value, thresholds) {
				shouldWarn = true
			}
		}

		if shouldWarn && qi.QualityWarningText != "" {
			warnings = append(warnings, qi.QualityWarningText)
		}
	}

	return measurements, warnings
}

func distinctValues(data []map[string]any, property string) []any {
	var out []any
	seen := make(map[any]struct{})

	for _, entry := range data {
		value, ok := entry[property]
		if !ok {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	default:
		return false
	}
}
