// Package quality computes quality indicators for analyzed datasets.
//
// Three kinds of indicators exist. Coverage indicators sample a dedicated
// coverage map service within the analysis area. Dataset indicators map the
// national DOK suitability register onto quality dimensions. Object
// indicators summarize a property across the features an analysis matched.
package quality

import (
	"strings"

	"github.com/geonorge/dokanalyse/internal/adapter"
	"github.com/geonorge/dokanalyse/internal/condition"
	"github.com/geonorge/dokanalyse/internal/config"
	"github.com/geonorge/dokanalyse/internal/registry"
)

// Indicator kinds as they appear in dataset configuration.
const (
	KindCoverage = "coverage"
	KindDataset  = "dataset"
	KindObject   = "object"
)

// Measurement is a single quality statement attached to a dataset result.
type Measurement struct {
	QualityDimensionID   string `json:"qualityDimensionId"`
	QualityDimensionName string `json:"qualityDimensionName"`
	Value                any    `json:"value"`
	Comment              string `json:"comment,omitempty"`
}

// Service evaluates quality indicators against the registries and the
// coverage map services the dataset configuration points at.
type Service struct {
	registry *registry.Service
	wfs      *adapter.WFS
}

func NewService(reg *registry.Service, wfs *adapter.WFS) *Service {
	return &Service{registry: reg, wfs: wfs}
}

// ThresholdValues splits a stored warning threshold on the literal token
// "OR" and coerces each piece, so "5 OR 4" matches both numeric and string
// representations of the scores.
func ThresholdValues(threshold string) []any {
	if strings.TrimSpace(threshold) == "" {
		return nil
	}
	parts := strings.Split(threshold, "OR")
	values := make([]any, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		values = append(values, condition.Coerce(p))
	}
	return values
}

func matchesThreshold(value any, thresholds []any) bool {
	for _, t := range thresholds {
		if condition.ValuesEqual(value, t) {
			return true
		}
	}
	return false
}

// Canonical presentation order for quality dimensions. Coverage comes
// first, then the suitability dimensions from plan to building matter.
var dimensionOrder = map[string]int{
	"fullstendighet_dekningskart": 0,
	"egnethet_reguleringsplan":    1,
	"egnethet_kommuneplan":        2,
	"egnethet_byggesak":           3,
}

// Sort orders measurements by the canonical dimension order in place.
// Unknown dimensions keep their relative order after the known ones.
func Sort(measurements []Measurement) {
	rank := func(m Measurement) int {
		if r, ok := dimensionOrder[m.QualityDimensionID]; ok {
			return r
		}
		return len(dimensionOrder)
	}
	// Insertion sort keeps the sort stable without pulling in sort.SliceStable
	// for a list that is at most a handful of entries.
	for i := 1; i < len(measurements); i++ {
		for j := i; j > 0 && rank(measurements[j]) < rank(measurements[j-1]); j-- {
			measurements[j], measurements[j-1] = measurements[j-1], measurements[j]
		}
	}
}

func indicatorsOfKind(indicators []config.QualityIndicatorConfig, kind string) []config.QualityIndicatorConfig {
	var out []config.QualityIndicatorConfig
	for _, qi := range indicators {
		if qi.Kind == kind {
			out = append(out, qi)
		}
	}
	return out
}
