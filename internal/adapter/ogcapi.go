package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/geonorge/dokanalyse/internal/config"
	"github.com/geonorge/dokanalyse/internal/geomutil"
)

// OGCAPI queries OGC API Features services with a CQL2 text filter.
type OGCAPI struct {
	client *Client
}

func NewOGCAPI(client *Client) *OGCAPI {
	return &OGCAPI{client: client}
}

// Query runs a spatial intersect against one dataset layer. OGC API
// services deliver geometry in 4326, so each feature is transformed back
// into the working CRS.
func (a *OGCAPI) Query(ctx context.Context, ds *config.DatasetConfig, layer *config.LayerConfig, g geom.T, epsg int) (*Result, error) {
	return a.GetFeatures(ctx, ds.OGCAPI, layer.OGCAPI, ds.GeomField, ds.Properties, g, epsg)
}

func (a *OGCAPI) GetFeatures(ctx context.Context, serviceURL, layer, geomField string, props []string, g geom.T, epsg int) (*Result, error) {
	wkt, err := geomutil.ToWKT(g, epsg)
	if err != nil {
		return &Result{Status: StatusError}, eris.Wrap(err, "ogcapi: encode geometry")
	}

	// filter-crs is only sent when the working CRS is not the 4326 default.
	filterCRS := ""
	if epsg != geomutil.WGS84 {
		filterCRS = fmt.Sprintf("&filter-crs=http://www.opengis.net/def/crs/EPSG/0/%d", epsg)
	}
	filter := fmt.Sprintf("S_INTERSECTS(%s,%s)", geomField, wkt)
	itemsURL := fmt.Sprintf("%s/%s/items?filter-lang=cql2-text%s&filter=%s",
		strings.TrimSuffix(serviceURL, "/"), layer, filterCRS, url.QueryEscape(filter))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, itemsURL, nil)
	if err != nil {
		return &Result{Status: StatusError}, eris.Wrap(err, "ogcapi: create request")
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	raw, status, err := a.client.Do(req)
	if status != StatusOK {
		return &Result{Status: status}, err
	}

	features, err := parseGeoJSONFeatures(raw, props, lastPathSegment, nestedLookup)
	if err != nil {
		return &Result{Status: StatusError}, err
	}

	for i := range features {
		if features[i].Geometry == nil {
			continue
		}
		transformed, err := geomutil.Transform(features[i].Geometry, geomutil.WGS84, epsg)
		if err != nil {
			return &Result{Status: StatusError}, eris.Wrap(err, "ogcapi: transform feature geometry")
		}
		features[i].Geometry = transformed
	}
	return &Result{Status: StatusOK, Features: features}, nil
}

// Configured properties may be dotted paths into nested objects; the
// result key is the path's last segment.
func lastPathSegment(prop string) string {
	parts := strings.Split(prop, ".")
	return parts[len(parts)-1]
}

func nestedLookup(properties map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = properties
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
