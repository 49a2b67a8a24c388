package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	geogeojson "github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/geonorge/dokanalyse/internal/config"
	"github.com/geonorge/dokanalyse/internal/geomutil"
)

// ArcGIS queries ArcGIS REST map services with a POSTed form query.
type ArcGIS struct {
	client *Client
}

func NewArcGIS(client *Client) *ArcGIS {
	return &ArcGIS{client: client}
}

// Query runs a spatial intersect against one dataset layer. The layer's
// type filter becomes the where clause; without one the service default
// "1=1" matches everything.
func (a *ArcGIS) Query(ctx context.Context, ds *config.DatasetConfig, layer *config.LayerConfig, g geom.T, epsg int) (*Result, error) {
	where := WhereClause(layer.TypeFilter)
	return a.GetFeatures(ctx, ds.ArcGIS, layer.ArcGIS, where, ds.Properties, g, epsg)
}

// WhereClause renders a type filter as an ArcGIS where expression.
func WhereClause(filter *config.TypeFilter) string {
	switch {
	case filter == nil:
		return ""
	case filter.Expression != "":
		return filter.Expression
	case filter.Attribute != "":
		return fmt.Sprintf("%s = '%s'", filter.Attribute, filter.Value)
	}
	return ""
}

func (a *ArcGIS) GetFeatures(ctx context.Context, serviceURL, layer, where string, props []string, g geom.T, epsg int) (*Result, error) {
	esriGeom, err := geomutil.ToEsriJSON(g, epsg)
	if err != nil {
		return &Result{Status: StatusError}, eris.Wrap(err, "arcgis: encode geometry")
	}
	if where == "" {
		where = "1=1"
	}

	form := url.Values{}
	form.Set("geometry", string(esriGeom))
	form.Set("geometryType", "esriGeometryPolygon")
	form.Set("spatialRel", "esriSpatialRelIntersects")
	form.Set("where", where)
	form.Set("inSR", fmt.Sprintf("%d", epsg))
	form.Set("outSR", fmt.Sprintf("%d", epsg))
	form.Set("units", "esriSRUnit_Meter")
	form.Set("outFields", "*")
	form.Set("returnGeometry", "true")
	form.Set("f", "geojson")

	queryURL := fmt.Sprintf("%s/%s/query", strings.TrimSuffix(serviceURL, "/"), layer)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, queryURL,
		bytes.NewBufferString(form.Encode()))
	if err != nil {
		return &Result{Status: StatusError}, eris.Wrap(err, "arcgis: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	raw, status, err := a.client.Do(req)
	if status != StatusOK {
		return &Result{Status: status}, err
	}

	// ArcGIS reports failures inside an HTTP 200 body.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return &Result{Status: StatusError}, eris.Wrap(err, "arcgis: parse response")
	}
	if _, found := probe["error"]; found {
		return &Result{Status: StatusError}, eris.Errorf("arcgis: service error: %s", string(probe["error"]))
	}

	features, err := parseGeoJSONFeatures(raw, props, arcGISPropertyKey, nil)
	if err != nil {
		return &Result{Status: StatusError}, err
	}
	return &Result{Status: StatusOK, Features: features}, nil
}

// geoJSONCollection is the subset of a FeatureCollection both the ArcGIS
// (f=geojson) and OGC API adapters consume.
type geoJSONCollection struct {
	Features []struct {
		Properties map[string]any  `json:"properties"`
		Geometry   json.RawMessage `json:"geometry"`
	} `json:"features"`
}

// parseGeoJSONFeatures maps a feature collection to the common shape.
// keyFn renames each configured property; lookup resolves a property from
// the feature when non-nil, otherwise a flat map access is used.
func parseGeoJSONFeatures(raw []byte, props []string, keyFn func(string) string, lookup func(map[string]any, string) (any, bool)) ([]Feature, error) {
	var collection geoJSONCollection
	if err := json.Unmarshal(raw, &collection); err != nil {
		return nil, eris.Wrap(err, "adapter: parse feature collection")
	}

	var features []Feature
	for _, f := range collection.Features {
		properties := make(map[string]any)
		for _, prop := range props {
			var v any
			var found bool
			if lookup != nil {
				v, found = lookup(f.Properties, prop)
			} else {
				v, found = f.Properties[prop]
			}
			if found {
				properties[keyFn(prop)] = v
			}
		}

		var g geom.T
		if len(f.Geometry) > 0 && string(f.Geometry) != "null" {
			if err := geogeojson.Unmarshal(f.Geometry, &g); err != nil {
				zap.L().Warn("adapter: skipping unparseable feature geometry", zap.Error(err))
				g = nil
			}
		}
		features = append(features, Feature{Properties: properties, Geometry: g})
	}
	return features, nil
}

var wordSplitPattern = regexp.MustCompile(`[_\-]+`)

var titleCaser = cases.Title(language.Und, cases.NoLower)

// arcGISPropertyKey camel-cases a configured property name, so
// "gjentaksinterval_aar" maps to "gjentaksintervalAar".
func arcGISPropertyKey(name string) string {
	words := wordSplitPattern.Split(name, -1)
	var b strings.Builder
	for _, w := range words {
		if w == "" {
			continue
		}
		b.WriteString(titleCaser.String(strings.ToLower(w)))
	}
	s := b.String()
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
