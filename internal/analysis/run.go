package analysis

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/geonorge/dokanalyse/internal/adapter"
	"github.com/geonorge/dokanalyse/internal/config"
	"github.com/geonorge/dokanalyse/internal/geomutil"
	"github.com/geonorge/dokanalyse/internal/quality"
	"github.com/geonorge/dokanalyse/internal/registry"
)

// run carries the mutable state of one dataset analysis.
type run struct {
	runner   *Runner
	ds       *config.DatasetConfig
	geometry geom.T // unbuffered input in the working CRS
	working  geom.T
	epsg     int
	origEPSG int
	params   Params

	res        *Result
	geometries []geom.T
	geolett    *registry.GeolettItem
	coverage   *quality.CoverageResult
}

// Run analyzes one dataset against the input geometry. It never returns an
// error: any internal failure degrades the result to the ERROR status so a
// single dataset cannot take down its siblings.
func (r *Runner) Run(ctx context.Context, ds *config.DatasetConfig, g geom.T, epsg, origEPSG int, params Params) *Result {
	a := &run{
		runner:   r,
		ds:       ds,
		geometry: g,
		epsg:     epsg,
		origEPSG: origEPSG,
		params:   params,
		res: &Result{
			ResultStatus:     StatusNoHitGreen,
			Buffer:           params.Buffer,
			DistanceToObject: 0,
		},
	}

	if err := a.setInputGeometry(); err != nil {
		zap.L().Error("analysis: input geometry failed",
			zap.String("dataset", ds.Name), zap.Error(err))
		a.res.ResultStatus = StatusError
		a.finalize(ctx)
		return a.res
	}

	if covered := a.checkCoverage(ctx); covered {
		if err := a.runQueries(ctx); err != nil {
			zap.L().Error("analysis: query pipeline failed",
				zap.String("dataset", ds.Name), zap.Error(err))
			a.res.ResultStatus = StatusError
		}
	}

	if a.res.ResultStatus != StatusTimeout && a.res.ResultStatus != StatusError {
		a.setGeometryAreas()

		if a.res.ResultStatus == StatusNoHitGreen {
			a.setDistanceToObject(ctx)
		}
		if a.res.ResultStatus == StatusNoHitGreen &&
			a.res.DistanceToObject >= distanceSearchRadius &&
			params.Context != "byggesak" {
			a.res.ResultStatus = StatusNoHitYellow
		}
	}

	a.finalize(ctx)
	return a.res
}

func (a *run) trace(step string) {
	a.res.RunAlgorithm = append(a.res.RunAlgorithm, step)
}

// Step 1: establish the working geometry, buffered when requested.
func (a *run) setInputGeometry() error {
	a.trace("set input_geometry")

	if a.params.Buffer > 0 {
		buffered, err := geomutil.Buffer(a.geometry, a.params.Buffer, a.epsg)
		if err != nil {
			return err
		}
		a.trace("add buffer")
		a.working = buffered
		return nil
	}

	clone, err := geomutil.Clone(a.geometry)
	if err != nil {
		return err
	}
	a.working = clone
	return nil
}

// Step 2: the coverage gate. Returns false when the dataset has no coverage
// for the area, which skips the query pipeline entirely.
func (a *run) checkCoverage(ctx context.Context) bool {
	var indicator *config.QualityIndicatorConfig
	for i := range a.ds.QualityIndicators {
		if a.ds.QualityIndicators[i].Kind == quality.KindCoverage {
			indicator = &a.ds.QualityIndicators[i]
			break
		}
	}
	if indicator == nil {
		return true
	}

	a.trace("check coverage")

	result, err := a.runner.quality.CoverageQuality(ctx, *indicator, a.working, a.epsg)
	if err != nil {
		// A failed coverage check does not decide the result; the
		// layer queries still run.
		zap.L().Warn("analysis: coverage check failed",
			zap.String("dataset", a.ds.Name), zap.Error(err))
		return true
	}
	a.coverage = result

	if !result.HasCoverage {
		a.res.ResultStatus = StatusNoHitYellow
		if result.Warning != "" {
			a.res.QualityWarning = append(a.res.QualityWarning, result.Warning)
		}
		return false
	}

	if result.Warning != "" {
		a.res.QualityWarning = append(a.res.QualityWarning, result.Warning)
	}
	return true
}

// Step 3: first-hit-wins layer loop.
func (a *run) runQueries(ctx context.Context) error {
	if len(a.ds.Layers) == 0 {
		return nil
	}

	kind := a.ds.SourceKind()
	geolett, err := a.runner.registry.GetGeolett(ctx, a.ds.Layers[0].GeolettID)
	if err != nil {
		zap.L().Warn("analysis: guidance lookup failed",
			zap.String("dataset", a.ds.Name), zap.Error(err))
	}

	for i := range a.ds.Layers {
		layer := &a.ds.Layers[i]
		layerName := layer.LayerName(kind)

		if kind == config.SourceArcGIS {
			if where := adapter.WhereClause(layer.TypeFilter); where != "" {
				a.trace("query " + where)
			}
		}

		result, err := a.queryLayer(ctx, layer)
		if result != nil && result.Status == adapter.StatusTimeout {
			a.res.ResultStatus = StatusTimeout
			return nil
		}
		if err != nil || (result != nil && result.Status != adapter.StatusOK) {
			a.res.ResultStatus = StatusError
			if err != nil {
				zap.L().Error("analysis: layer query failed",
					zap.String("dataset", a.ds.Name),
					zap.String("layer", layerName), zap.Error(err))
			}
			return nil
		}

		// The intersect step is only recorded for answered queries.
		a.trace("intersect layer " + layerName)

		features, err := a.filterFeatures(kind, layer, result.Features)
		if err != nil {
			return err
		}
		if len(features) == 0 {
			continue
		}

		// First hit wins: adopt this layer's data and stop.
		if layer.GeolettID != "" {
			hit, err := a.runner.registry.GetGeolett(ctx, layer.GeolettID)
			if err != nil {
				zap.L().Warn("analysis: guidance lookup failed",
					zap.String("dataset", a.ds.Name), zap.Error(err))
			} else if hit != nil {
				geolett = hit
			}
		}

		for _, f := range features {
			a.res.Data = append(a.res.Data, f.Properties)
			if f.Geometry != nil {
				a.geometries = append(a.geometries, f.Geometry)
			}
		}
		a.res.RasterResult = rasterResult(a.ds.WMS, layer.WMS)
		a.res.Cartography = a.cartography(ctx, layer.WMS)
		a.res.ResultStatus = layer.ResultStatus
		break
	}

	a.geolett = geolett
	return nil
}

func (a *run) queryLayer(ctx context.Context, layer *config.LayerConfig) (*adapter.Result, error) {
	switch a.ds.SourceKind() {
	case config.SourceWFS:
		return a.runner.wfs.Query(ctx, a.ds, layer, a.working, a.epsg)
	case config.SourceArcGIS:
		return a.runner.arcgis.Query(ctx, a.ds, layer, a.working, a.epsg)
	case config.SourceOGCAPI:
		return a.runner.ogcapi.Query(ctx, a.ds, layer, a.working, a.epsg)
	}
	return nil, eris.Errorf("analysis: dataset %s has no queryable source", a.ds.Name)
}

// filterFeatures applies a layer's type filter to parsed features. ArcGIS
// filters are pushed into the where clause instead, so they pass through.
func (a *run) filterFeatures(kind config.SourceKind, layer *config.LayerConfig, features []adapter.Feature) ([]adapter.Feature, error) {
	if layer.TypeFilter == nil || kind == config.SourceArcGIS {
		return features, nil
	}
	return adapter.FilterFeatures(features, layer.TypeFilter)
}

// Step 4a: input area and the summed hit area of matched geometries.
func (a *run) setGeometryAreas() {
	area, err := geomutil.Area(a.working)
	if err != nil {
		zap.L().Warn("analysis: area computation failed",
			zap.String("dataset", a.ds.Name), zap.Error(err))
	} else {
		rounded := geomutil.RoundArea(area)
		a.res.InputGeometryArea = &rounded
	}

	if len(a.geometries) == 0 {
		return
	}

	var hit float64
	for _, g := range a.geometries {
		part, err := geomutil.IntersectionArea(a.working, g)
		if err != nil {
			zap.L().Warn("analysis: hit area computation failed",
				zap.String("dataset", a.ds.Name), zap.Error(err))
			continue
		}
		hit += part
	}
	rounded := geomutil.RoundArea(hit)
	a.res.HitArea = &rounded
}

// Step 4b: distance to the nearest object on the primary layer, searched
// within a fixed radius around the unbuffered geometry.
func (a *run) setDistanceToObject(ctx context.Context) {
	a.res.DistanceToObject = math.MaxInt64

	if len(a.ds.Layers) == 0 {
		return
	}

	search, err := geomutil.Buffer(a.geometry, distanceSearchRadius, a.epsg)
	if err != nil {
		zap.L().Warn("analysis: distance search buffer failed",
			zap.String("dataset", a.ds.Name), zap.Error(err))
		return
	}

	saved := a.working
	a.working = search
	result, err := a.queryLayer(ctx, &a.ds.Layers[0])
	a.working = saved

	a.trace("get distance")

	if err != nil || result == nil || result.Status != adapter.StatusOK {
		return
	}

	for _, f := range result.Features {
		if f.Geometry == nil {
			continue
		}
		d, err := geomutil.Distance(a.geometry, f.Geometry)
		if err != nil {
			continue
		}
		if rounded := int64(math.Round(d)); rounded < a.res.DistanceToObject {
			a.res.DistanceToObject = rounded
		}
	}
}

// Steps 6 through 10: title, metadata, guidance, quality and serialization.
func (a *run) finalize(ctx context.Context) {
	a.res.Themes = a.ds.Themes
	a.res.Title = datasetTitle(a.geolett, a.ds)

	if a.working != nil {
		a.res.RunOnInputGeometry = a.runOnInputGeometryJSON()
	}

	metadata, err := a.runner.registry.GetKartkatalogMetadata(ctx, a.ds.DatasetID)
	if err != nil {
		zap.L().Warn("analysis: dataset metadata lookup failed",
			zap.String("dataset", a.ds.Name), zap.Error(err))
	} else {
		a.res.RunOnDataset = metadata
	}

	terminal := a.res.ResultStatus == StatusTimeout || a.res.ResultStatus == StatusError
	if !terminal {
		if a.params.IncludeGuidance && a.geolett != nil {
			a.setGuidance()
		}
		a.setQuality(ctx)
	}

	a.trace("deliver result")
}

func (a *run) runOnInputGeometryJSON() []byte {
	g := a.working
	if a.origEPSG != a.epsg {
		back, err := geomutil.Transform(g, a.epsg, a.origEPSG)
		if err != nil {
			zap.L().Warn("analysis: geometry reprojection failed",
				zap.String("dataset", a.ds.Name), zap.Error(err))
			return nil
		}
		g = back
	}

	raw, err := geomutil.ToGeoJSON(g, a.origEPSG)
	if err != nil {
		zap.L().Warn("analysis: geometry encoding failed",
			zap.String("dataset", a.ds.Name), zap.Error(err))
		return nil
	}
	return raw
}

// Step 7: guidance payload. Explanatory texts are withheld on a clean
// no-hit; links and possible actions are always attached.
func (a *run) setGuidance() {
	if a.res.ResultStatus != StatusNoHitGreen {
		a.res.Description = a.geolett.ForklarendeTekst
		a.res.GuidanceText = a.geolett.Dialogtekst
	}

	for _, link := range a.geolett.Lenker {
		a.res.GuidanceURI = append(a.res.GuidanceURI, GuidanceLink{
			Href:  link.Href,
			Title: link.Tittel,
		})
	}

	a.res.PossibleActions = append(a.res.PossibleActions, possibleActions(a.geolett.MuligeTiltak)...)
}

// Steps 8 and 9: quality measurements when requested; warnings always.
func (a *run) setQuality(ctx context.Context) {
	vars := map[string]any{"context": a.params.Context}

	datasetMeasurements, datasetWarnings, err := a.runner.quality.DatasetQuality(
		ctx, a.ds.DatasetID, a.ds.QualityIndicators, vars)
	if err != nil {
		zap.L().Warn("analysis: dataset quality failed",
			zap.String("dataset", a.ds.Name), zap.Error(err))
	}

	objectMeasurements, objectWarnings := a.runner.quality.ObjectQuality(
		a.ds.QualityIndicators, a.res.Data)

	if a.params.IncludeQualityMeasurement {
		var measurements []quality.Measurement
		if a.coverage != nil {
			measurements = append(measurements, a.coverage.Measurements...)
		}
		measurements = append(measurements, datasetMeasurements...)
		measurements = append(measurements, objectMeasurements...)
		quality.Sort(measurements)
		a.res.QualityMeasurement = measurements
	}

	a.res.QualityWarning = append(a.res.QualityWarning, datasetWarnings...)
	a.res.QualityWarning = append(a.res.QualityWarning, objectWarnings...)
}
