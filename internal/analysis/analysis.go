// Package analysis evaluates one dataset against one input geometry: it
// buffers the geometry, checks coverage, queries the dataset's layers until
// one hits, derives areas and the distance to the nearest object, and
// attaches guidance and quality information to the result.
package analysis

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/geonorge/dokanalyse/internal/adapter"
	"github.com/geonorge/dokanalyse/internal/config"
	"github.com/geonorge/dokanalyse/internal/quality"
	"github.com/geonorge/dokanalyse/internal/registry"
)

// Result statuses. Layer hits carry the status configured on the winning
// layer instead of one of these.
const (
	StatusNoHitGreen  = "NO-HIT-GREEN"
	StatusNoHitYellow = "NO-HIT-YELLOW"
	StatusNotRelevant = "NOT-RELEVANT"
	StatusTimeout     = "TIMEOUT"
	StatusError       = "ERROR"
)

// Datasets within 20 km of the input geometry count as nearby; beyond that
// a clean "no hit" cannot be asserted.
const distanceSearchRadius = 20000

const fallbackTitle = "<Mangler tittel>"

// Params are the per-request switches that shape a dataset analysis.
type Params struct {
	Context                   string
	Buffer                    float64
	IncludeGuidance           bool
	IncludeQualityMeasurement bool
}

// GuidanceLink is one reference attached to the guidance payload.
type GuidanceLink struct {
	Href  string `json:"href"`
	Title string `json:"title"`
}

// Result is the serialized outcome of one dataset analysis.
type Result struct {
	Title              string                    `json:"title"`
	RunOnInputGeometry json.RawMessage           `json:"runOnInputGeometry,omitempty"`
	Buffer             float64                   `json:"buffer"`
	RunAlgorithm       []string                  `json:"runAlgorithm"`
	InputGeometryArea  *float64                  `json:"inputGeometryArea,omitempty"`
	HitArea            *float64                  `json:"hitArea,omitempty"`
	ResultStatus       string                    `json:"resultStatus"`
	DistanceToObject   int64                     `json:"distanceToObject"`
	RasterResult       string                    `json:"rasterResult,omitempty"`
	Cartography        string                    `json:"cartography,omitempty"`
	Data               []map[string]any          `json:"data,omitempty"`
	Themes             []string                  `json:"themes"`
	RunOnDataset       *registry.DatasetMetadata `json:"runOnDataset,omitempty"`
	Description        string                    `json:"description,omitempty"`
	GuidanceText       string                    `json:"guidanceText,omitempty"`
	GuidanceURI        []GuidanceLink            `json:"guidanceUri,omitempty"`
	PossibleActions    []string                  `json:"possibleActions,omitempty"`
	QualityMeasurement []quality.Measurement     `json:"qualityMeasurement,omitempty"`
	QualityWarning     []string                  `json:"qualityWarning,omitempty"`
}

// Runner wires the protocol adapters and registry lookups an analysis needs.
type Runner struct {
	registry *registry.Service
	quality  *quality.Service
	client   *adapter.Client
	wfs      *adapter.WFS
	arcgis   *adapter.ArcGIS
	ogcapi   *adapter.OGCAPI
}

func NewRunner(reg *registry.Service, qual *quality.Service, client *adapter.Client) *Runner {
	return &Runner{
		registry: reg,
		quality:  qual,
		client:   client,
		wfs:      adapter.NewWFS(client),
		arcgis:   adapter.NewArcGIS(client),
		ogcapi:   adapter.NewOGCAPI(client),
	}
}

// Empty builds a NOT-RELEVANT result for a dataset excluded by the
// municipal applicability filter. Only title, themes and metadata are
// resolved; no queries run.
func (r *Runner) Empty(ctx context.Context, ds *config.DatasetConfig) *Result {
	res := &Result{
		ResultStatus: StatusNotRelevant,
		Themes:       ds.Themes,
		Title:        datasetTitle(nil, ds),
	}

	metadata, err := r.registry.GetKartkatalogMetadata(ctx, ds.DatasetID)
	if err != nil {
		zap.L().Warn("analysis: dataset metadata lookup failed",
			zap.String("dataset", ds.Name), zap.Error(err))
	} else {
		res.RunOnDataset = metadata
	}
	return res
}

func datasetTitle(geolett *registry.GeolettItem, ds *config.DatasetConfig) string {
	if geolett != nil && geolett.Tittel != "" {
		return geolett.Tittel
	}
	if ds.Title != "" {
		return ds.Title
	}
	return fallbackTitle
}
