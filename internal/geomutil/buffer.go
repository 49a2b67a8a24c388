package geomutil

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// circleSegments is the number of segments used to discretize a full circle
// when buffering with round joins.
const circleSegments = 32

// LengthToDegrees converts a distance in meters to degrees of arc on the
// mean-radius sphere. The result wraps at 2π radians, so a distance that is
// an exact multiple of the earth circumference maps to zero degrees. The
// wrap bounds absurdly large buffer requests.
func LengthToDegrees(distance float64) float64 {
	radians := math.Mod(distance/EarthRadius, 2*math.Pi)
	return radians * 180 / math.Pi
}

// Buffer expands a geometry by the given distance in meters. In a geographic
// CRS the distance is first converted to degrees; in a projected CRS it is
// used directly. The result is the round-join offset of the input, built as
// the union of the input with vertex disks and edge corridors.
func Buffer(g geom.T, distance float64, epsg int) (geom.T, error) {
	radius := distance
	if epsg == WGS84 {
		radius = LengthToDegrees(distance)
	}
	if radius <= 0 {
		return Clone(g)
	}

	parts, err := bufferParts(g, radius)
	if err != nil {
		return nil, err
	}
	return unionAll(parts)
}

// bufferParts decomposes a geometry into the primitive polygons whose union
// forms its round-join buffer.
func bufferParts(g geom.T, radius float64) ([]geom.T, error) {
	var parts []geom.T

	addRing := func(flat []float64, stride int) {
		for i := 0; i+1 < len(flat); i += stride {
			parts = append(parts, circlePolygon(flat[i], flat[i+1], radius))
			if i+stride+1 < len(flat) {
				if rect := edgeCorridor(flat[i], flat[i+1], flat[i+stride], flat[i+stride+1], radius); rect != nil {
					parts = append(parts, rect)
				}
			}
		}
	}

	switch t := g.(type) {
	case *geom.Point:
		parts = append(parts, circlePolygon(t.X(), t.Y(), radius))
	case *geom.MultiPoint:
		flat, stride := t.FlatCoords(), t.Stride()
		for i := 0; i+1 < len(flat); i += stride {
			parts = append(parts, circlePolygon(flat[i], flat[i+1], radius))
		}
	case *geom.LineString:
		addRing(t.FlatCoords(), t.Stride())
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			ls := t.LineString(i)
			addRing(ls.FlatCoords(), ls.Stride())
		}
	case *geom.Polygon:
		parts = append(parts, t)
		for i := 0; i < t.NumLinearRings(); i++ {
			ring := t.LinearRing(i)
			addRing(ring.FlatCoords(), ring.Stride())
		}
	case *geom.MultiPolygon:
		parts = append(parts, t)
		for i := 0; i < t.NumPolygons(); i++ {
			p := t.Polygon(i)
			for j := 0; j < p.NumLinearRings(); j++ {
				ring := p.LinearRing(j)
				addRing(ring.FlatCoords(), ring.Stride())
			}
		}
	default:
		return nil, eris.Errorf("geomutil: cannot buffer geometry type %T", g)
	}

	return parts, nil
}

// circlePolygon returns a closed polygon approximating a circle.
func circlePolygon(cx, cy, r float64) *geom.Polygon {
	flat := make([]float64, 0, (circleSegments+1)*2)
	for i := 0; i < circleSegments; i++ {
		angle := 2 * math.Pi * float64(i) / circleSegments
		flat = append(flat, cx+r*math.Cos(angle), cy+r*math.Sin(angle))
	}
	// The closing vertex must repeat the first one exactly; recomputing it
	// from the angle leaves a rounding gap that breaks ring validation.
	flat = append(flat, flat[0], flat[1])
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
}

// edgeCorridor returns the rectangle of width 2r along one edge, or nil for
// a degenerate edge.
func edgeCorridor(x1, y1, x2, y2, r float64) *geom.Polygon {
	dx, dy := x2-x1, y2-y1
	length := math.Hypot(dx, dy)
	if length == 0 {
		return nil
	}
	// Unit normal of the edge.
	nx, ny := -dy/length*r, dx/length*r

	flat := []float64{
		x1 + nx, y1 + ny,
		x2 + nx, y2 + ny,
		x2 - nx, y2 - ny,
		x1 - nx, y1 - ny,
		x1 + nx, y1 + ny,
	}
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
}
