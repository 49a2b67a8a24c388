// Package geomutil is the geometry engine behind the analysis pipeline:
// CRS handling, reprojection, buffering, geometry algebra and the
// precision-correct wire serializations (GeoJSON, WKT, GML, Esri JSON).
package geomutil

import (
	"encoding/json"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

const (
	// EarthRadius is the mean earth radius in meters, used for the
	// meters-to-degrees buffer conversion in geographic CRSs.
	EarthRadius = 6371008.8

	// WGS84 is the implicit CRS of untagged GeoJSON input.
	WGS84 = 4326

	// WorkingEPSG is the national working CRS. All 4326 input is
	// reprojected here before querying or intersecting.
	WorkingEPSG = 25833
)

var crsNamePattern = regexp.MustCompile(`^(http://www\.opengis\.net/def/crs/EPSG/0/|urn:ogc:def:crs:EPSG::|EPSG:)(\d+)$`)

// GetEPSG extracts the EPSG code from a GeoJSON document's
// crs.properties.name member. Three value forms are accepted: the OGC URL
// form, the OGC URN form and the plain EPSG:<n> form. A missing or
// unrecognized crs member defaults to 4326.
func GetEPSG(raw []byte) int {
	var doc struct {
		CRS struct {
			Properties struct {
				Name string `json:"name"`
			} `json:"properties"`
		} `json:"crs"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return WGS84
	}
	if doc.CRS.Properties.Name == "" {
		return WGS84
	}
	m := crsNamePattern.FindStringSubmatch(doc.CRS.Properties.Name)
	if m == nil {
		return WGS84
	}
	code, err := strconv.Atoi(m[2])
	if err != nil {
		return WGS84
	}
	return code
}

// ParseGeoJSON decodes a GeoJSON geometry and returns it together with its
// declared EPSG code.
func ParseGeoJSON(raw []byte) (geom.T, int, error) {
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, 0, eris.Wrap(err, "geomutil: parse geojson")
	}
	return g, GetEPSG(raw), nil
}

// CreateInputGeometry parses the request geometry and reprojects 4326 input
// into the national working CRS. Any other EPSG is used as-is. It returns
// the working geometry and the working EPSG.
func CreateInputGeometry(raw []byte) (geom.T, int, error) {
	g, epsg, err := ParseGeoJSON(raw)
	if err != nil {
		return nil, 0, err
	}
	if epsg == WGS84 {
		transformed, err := Transform(g, WGS84, WorkingEPSG)
		if err != nil {
			return nil, 0, err
		}
		return transformed, WorkingEPSG, nil
	}
	return g, epsg, nil
}

// CoordPrecision returns the number of coordinate decimal digits for the
// given CRS: 6 for geographic 4326, 2 for projected CRSs.
func CoordPrecision(epsg int) int {
	if epsg == WGS84 {
		return 6
	}
	return 2
}

// Clone returns a deep copy of the geometry.
func Clone(g geom.T) (geom.T, error) {
	return mapCoords(g, func(x, y float64) (float64, float64) { return x, y })
}
