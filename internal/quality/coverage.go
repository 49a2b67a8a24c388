package quality

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/geonorge/dokanalyse/internal/adapter"
	"github.com/geonorge/dokanalyse/internal/condition"
	"github.com/geonorge/dokanalyse/internal/config"
	"github.com/geonorge/dokanalyse/internal/geomutil"
	"github.com/geonorge/dokanalyse/internal/registry"
)

// Sampled values that mean the area is unmapped or out of scope for the
// coverage map, and the code list the value labels come from.
const (
	coverageNotMapped    = "ikkeKartlagt"
	coverageNotRelevant  = "ikkeRelevant"
	coverageCodelistName = "fullstendighet_dekning"
)

// CoverageResult is the outcome of sampling a coverage map over an
// analysis area. HasCoverage false means the dataset has not been mapped
// here at all and the analysis should not bother querying it.
type CoverageResult struct {
	Measurements []Measurement
	Warning      string
	HasCoverage  bool
}

// CoverageQuality samples the indicator's coverage service over the working
// geometry and derives measurements, an optional warning and the coverage
// verdict for the area.
func (s *Service) CoverageQuality(ctx context.Context, qi config.QualityIndicatorConfig, g geom.T, epsg int) (*CoverageResult, error) {
	values, hitAreaPercent, err := s.sampleCoverage(ctx, qi, g, epsg)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return &CoverageResult{HasCoverage: false}, nil
	}

	codelist, err := s.registry.GetCodelist(ctx, coverageCodelistName)
	if err != nil {
		zap.L().Warn("quality: coverage code list unavailable", zap.Error(err))
		codelist = nil
	}

	result := &CoverageResult{HasCoverage: hasCoverage(values)}

	for _, value := range values {
		measValue := "Ja"
		if isUnmappedValue(value) {
			measValue = "Nei"
		}
		result.Measurements = append(result.Measurements, Measurement{
			QualityDimensionID:   qi.QualityDimensionID,
			QualityDimensionName: qi.QualityDimensionName,
			Value:                measValue,
			Comment:              codelistLabel(codelist, value),
		})
	}

	result.Warning = coverageWarning(qi, values, hitAreaPercent)
	return result, nil
}

// sampleCoverage queries the indicator's WFS source and returns the sampled
// property values along with the share of the area the unmapped features
// cover. Indicators without a WFS source sample nothing.
func (s *Service) sampleCoverage(ctx context.Context, qi config.QualityIndicatorConfig, g geom.T, epsg int) ([]any, float64, error) {
	svc := qi.WFS
	if svc == nil {
		return nil, 0, nil
	}

	res, err := s.wfs.GetFeatures(ctx, svc.URL, svc.Layer, svc.GeomField, []string{svc.Property}, g, epsg)
	if err != nil {
		return nil, 0, eris.Wrap(err, "quality: coverage service query failed")
	}
	if res.Status != adapter.StatusOK {
		return nil, 0, eris.Errorf("quality: coverage service query ended with status %s", res.Status)
	}

	var (
		values    []any
		unmapped  []geom.T
		hitArea   float64
		hitPct    float64
		propLocal = svc.Property
	)
	// Response properties are keyed by local name regardless of the
	// namespace prefix used in the request.
	if i := strings.LastIndex(propLocal, ":"); i >= 0 {
		propLocal = propLocal[i+1:]
	}

	for _, f := range res.Features {
		value, ok := f.Properties[propLocal]
		if !ok {
			continue
		}
		values = append(values, value)

		if condition.ValuesEqual(value, coverageNotMapped) && f.Geometry != nil {
			unmapped = append(unmapped, f.Geometry)
		}
	}

	if len(unmapped) > 0 {
		aoiArea, err := geomutil.Area(g)
		if err != nil {
			return nil, 0, eris.Wrap(err, "quality: coverage area")
		}
		if aoiArea > 0 {
			for _, fg := range unmapped {
				area, err := geomutil.IntersectionArea(fg, g)
				if err != nil {
					zap.L().Warn("quality: skipping unmapped footprint", zap.Error(err))
					continue
				}
				hitArea += area
			}
			hitPct = geomutil.RoundArea(hitArea / aoiArea * 100)
		}
	}

	return values, hitPct, nil
}

func coverageWarning(qi config.QualityIndicatorConfig, values []any, hitAreaPercent float64) string {
	thresholds := ThresholdValues(qi.WarningThreshold)

	shouldWarn := false
	for _, v := range values {
		if matchesThreshold(v, thresholds) {
			shouldWarn = true
			break
		}
	}
	if !shouldWarn {
		return ""
	}

	warning := qi.QualityWarningText

	if hitAreaPercent > 0 && hitAreaPercent < 100 {
		warning = formatPercent(hitAreaPercent) + " % av " + strings.ToLower(warning)
	}

	return warning
}

// formatPercent renders the percentage with a decimal comma and always at
// least one decimal, so a full degree of coverage reads "25,0" not "25".
func formatPercent(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return strings.ReplaceAll(s, ".", ",")
}

// hasCoverage reports whether the sampled values leave any mapped area. A
// sample containing only "not mapped" values means no coverage.
func hasCoverage(values []any) bool {
	sawNotMapped := false
	sawOther := false
	for _, v := range values {
		if condition.ValuesEqual(v, coverageNotMapped) {
			sawNotMapped = true
		} else {
			sawOther = true
		}
	}
	if sawNotMapped {
		return sawOther
	}
	return true
}

func isUnmappedValue(v any) bool {
	return condition.ValuesEqual(v, coverageNotMapped) || condition.ValuesEqual(v, coverageNotRelevant)
}

func codelistLabel(entries []registry.CodelistEntry, value any) string {
	for _, e := range entries {
		if condition.ValuesEqual(e.Value, value) {
			return e.Label
		}
	}
	return ""
}
