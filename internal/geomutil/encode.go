package geomutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// ToWKT serializes a geometry as WKT with the CRS-dependent coordinate
// precision.
func ToWKT(g geom.T, epsg int) (string, error) {
	out, err := wkt.Marshal(g, wkt.EncodeOptionWithMaxDecimalDigits(CoordPrecision(epsg)))
	if err != nil {
		return "", eris.Wrap(err, "geomutil: encode wkt")
	}
	return out, nil
}

// ToGeoJSON serializes a geometry as a GeoJSON object with CRS-dependent
// coordinate precision, tagging the CRS per AddGeoJSONCRS.
func ToGeoJSON(g geom.T, epsg int) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"`)
	buf.WriteString(geoJSONType(g))
	buf.WriteString(`","coordinates":`)
	if err := writeCoords(&buf, g, CoordPrecision(epsg)); err != nil {
		return nil, err
	}
	if crs := geoJSONCRS(epsg); crs != "" {
		buf.WriteString(`,"crs":`)
		buf.WriteString(crs)
	}
	buf.WriteByte('}')
	return json.RawMessage(buf.Bytes()), nil
}

// AddGeoJSONCRS attaches a named CRS member to a raw GeoJSON document.
// EPSG:4326 is the implicit GeoJSON default and is left untagged.
func AddGeoJSONCRS(raw json.RawMessage, epsg int) (json.RawMessage, error) {
	crs := geoJSONCRS(epsg)
	if crs == "" {
		return raw, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrap(err, "geomutil: attach crs")
	}
	doc["crs"] = json.RawMessage(crs)
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "geomutil: attach crs")
	}
	return out, nil
}

func geoJSONCRS(epsg int) string {
	if epsg == 0 || epsg == WGS84 {
		return ""
	}
	return fmt.Sprintf(`{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::%d"}}`, epsg)
}

func geoJSONType(g geom.T) string {
	switch g.(type) {
	case *geom.Point:
		return "Point"
	case *geom.MultiPoint:
		return "MultiPoint"
	case *geom.LineString:
		return "LineString"
	case *geom.MultiLineString:
		return "MultiLineString"
	case *geom.Polygon:
		return "Polygon"
	case *geom.MultiPolygon:
		return "MultiPolygon"
	default:
		return "GeometryCollection"
	}
}

func writeCoords(buf *bytes.Buffer, g geom.T, prec int) error {
	writePair := func(flat []float64, at int) {
		buf.WriteByte('[')
		buf.WriteString(formatCoord(flat[at], prec))
		buf.WriteByte(',')
		buf.WriteString(formatCoord(flat[at+1], prec))
		buf.WriteByte(']')
	}
	writeSeq := func(flat []float64, stride, start, end int) {
		buf.WriteByte('[')
		for i := start; i < end; i += stride {
			if i > start {
				buf.WriteByte(',')
			}
			writePair(flat, i)
		}
		buf.WriteByte(']')
	}

	switch t := g.(type) {
	case *geom.Point:
		writePair(t.FlatCoords(), 0)
	case *geom.MultiPoint:
		writeSeq(t.FlatCoords(), t.Stride(), 0, len(t.FlatCoords()))
	case *geom.LineString:
		writeSeq(t.FlatCoords(), t.Stride(), 0, len(t.FlatCoords()))
	case *geom.MultiLineString:
		buf.WriteByte('[')
		start := 0
		for i, end := range t.Ends() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeSeq(t.FlatCoords(), t.Stride(), start, end)
			start = end
		}
		buf.WriteByte(']')
	case *geom.Polygon:
		buf.WriteByte('[')
		start := 0
		for i, end := range t.Ends() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeSeq(t.FlatCoords(), t.Stride(), start, end)
			start = end
		}
		buf.WriteByte(']')
	case *geom.MultiPolygon:
		buf.WriteByte('[')
		start := 0
		for i, ends := range t.Endss() {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('[')
			for j, end := range ends {
				if j > 0 {
					buf.WriteByte(',')
				}
				writeSeq(t.FlatCoords(), t.Stride(), start, end)
				start = end
			}
			buf.WriteByte(']')
		}
		buf.WriteByte(']')
	default:
		return eris.Errorf("geomutil: cannot serialize geometry type %T", g)
	}
	return nil
}

func formatCoord(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// ToEsriJSON serializes a polygonal geometry in the Esri JSON ring form used
// by ArcGIS REST query endpoints, with CRS-dependent coordinate precision.
func ToEsriJSON(g geom.T, epsg int) (string, error) {
	prec := CoordPrecision(epsg)
	var rings [][]string

	appendRings := func(p *geom.Polygon) {
		flat, stride := p.FlatCoords(), p.Stride()
		start := 0
		for _, end := range p.Ends() {
			var ring []string
			for i := start; i < end; i += stride {
				ring = append(ring, "["+formatCoord(flat[i], prec)+","+formatCoord(flat[i+1], prec)+"]")
			}
			rings = append(rings, ring)
			start = end
		}
	}

	switch t := g.(type) {
	case *geom.Polygon:
		appendRings(t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			appendRings(t.Polygon(i))
		}
	default:
		return "", eris.Errorf("geomutil: esri json requires polygonal geometry, got %T", g)
	}

	var buf strings.Builder
	buf.WriteString(`{"rings":[`)
	for i, ring := range rings {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		buf.WriteString(strings.Join(ring, ","))
		buf.WriteByte(']')
	}
	buf.WriteString(fmt.Sprintf(`],"spatialReference":{"wkid":%d}}`, epsg))
	return buf.String(), nil
}
