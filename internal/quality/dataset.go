package quality

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/geonorge/dokanalyse/internal/condition"
	"github.com/geonorge/dokanalyse/internal/config"
)

// DatasetQuality maps the published suitability scores for the dataset onto
// measurements. Every score becomes a measurement; a warning is added for a
// score only when a dataset indicator exists for its dimension, the
// indicator's input filter (if any) passes against vars, and the score is in
// the indicator's threshold list.
func (s *Service) DatasetQuality(ctx context.Context, datasetID string, indicators []config.QualityIndicatorConfig, vars map[string]any) ([]Measurement, []string, error) {
	if datasetID == "" {
		return nil, nil, nil
	}

	status, err := s.registry.GetDOKStatus(ctx, datasetID)
	if err != nil {
		return nil, nil, err
	}
	if status == nil {
		return nil, nil, nil
	}

	datasetIndicators := indicatorsOfKind(indicators, KindDataset)

	var (
		measurements []Measurement
		warnings     []string
	)

	for _, score := range status.Suitability {
		measurements = append(measurements, Measurement{
			QualityDimensionID:   score.QualityDimensionID,
			QualityDimensionName: score.QualityDimensionName,
			Value:                score.Value,
			Comment:              score.Comment,
		})

		for _, qi := range datasetIndicators {
			if qi.QualityDimensionID != score.QualityDimensionID {
				continue
			}
			warn, err := suitabilityWarning(score.Value, qi, vars)
			if err != nil {
				return nil, nil, err
			}
			if warn != "" {
				warnings = append(warnings, warn)
			}
			break
		}
	}

	return measurements, warnings, nil
}

func suitabilityWarning(value int, qi config.QualityIndicatorConfig, vars map[string]any) (string, error) {
	if qi.InputFilter != "" {
		ok, err := condition.Evaluate(qi.InputFilter, vars)
		if err != nil {
			return "", eris.Wrapf(err, "quality: input filter %q failed", qi.InputFilter)
		}
		if !ok {
			return "", nil
		}
	}

	if matchesThreshold(value, ThresholdValues(qi.WarningThreshold)) {
		return qi.QualityWarningText, nil
	}
	return "", nil
}
