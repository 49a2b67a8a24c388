package geomutil

import (
	"math"

	sf "github.com/peterstace/simplefeatures/geom"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// toSF converts a go-geom geometry to a simplefeatures geometry via WKB.
func toSF(g geom.T) (sf.Geometry, error) {
	data, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return sf.Geometry{}, eris.Wrap(err, "geomutil: encode wkb")
	}
	out, err := sf.UnmarshalWKB(data)
	if err != nil {
		return sf.Geometry{}, eris.Wrap(err, "geomutil: decode wkb")
	}
	return out, nil
}

// fromSF converts a simplefeatures geometry back to go-geom.
func fromSF(g sf.Geometry) (geom.T, error) {
	out, err := wkb.Unmarshal(g.AsBinary())
	if err != nil {
		return nil, eris.Wrap(err, "geomutil: decode wkb")
	}
	return out, nil
}

// Area returns the planar area of a geometry in squared CRS units.
func Area(g geom.T) (float64, error) {
	s, err := toSF(g)
	if err != nil {
		return 0, err
	}
	return s.Area(), nil
}

// Distance returns the minimum planar distance between two geometries in CRS
// units. Intersecting geometries have distance zero.
func Distance(a, b geom.T) (float64, error) {
	sa, err := toSF(a)
	if err != nil {
		return 0, err
	}
	sb, err := toSF(b)
	if err != nil {
		return 0, err
	}
	d, ok := sf.Distance(sa, sb)
	if !ok {
		return 0, eris.New("geomutil: distance between empty geometries")
	}
	return d, nil
}

// Intersection returns the geometric intersection of two geometries.
func Intersection(a, b geom.T) (geom.T, error) {
	sa, err := toSF(a)
	if err != nil {
		return nil, err
	}
	sb, err := toSF(b)
	if err != nil {
		return nil, err
	}
	out, err := sf.Intersection(sa, sb)
	if err != nil {
		return nil, eris.Wrap(err, "geomutil: intersection")
	}
	return fromSF(out)
}

// IntersectionArea returns the area of the overlap between two geometries,
// zero when they are disjoint.
func IntersectionArea(a, b geom.T) (float64, error) {
	sa, err := toSF(a)
	if err != nil {
		return 0, err
	}
	sb, err := toSF(b)
	if err != nil {
		return 0, err
	}
	out, err := sf.Intersection(sa, sb)
	if err != nil {
		return 0, eris.Wrap(err, "geomutil: intersection")
	}
	return out.Area(), nil
}

// Centroid returns the centroid coordinate of a geometry.
func Centroid(g geom.T) (x, y float64, err error) {
	s, err := toSF(g)
	if err != nil {
		return 0, 0, err
	}
	xy, ok := s.Centroid().XY()
	if !ok {
		return 0, 0, eris.New("geomutil: centroid of empty geometry")
	}
	return xy.X, xy.Y, nil
}

// unionAll folds a list of geometries into their union.
func unionAll(parts []geom.T) (geom.T, error) {
	if len(parts) == 0 {
		return nil, eris.New("geomutil: union of nothing")
	}
	acc, err := toSF(parts[0])
	if err != nil {
		return nil, err
	}
	for _, part := range parts[1:] {
		s, err := toSF(part)
		if err != nil {
			return nil, err
		}
		acc, err = sf.Union(acc, s)
		if err != nil {
			return nil, eris.Wrap(err, "geomutil: union")
		}
	}
	return fromSF(acc)
}

// RoundArea rounds a square-meter area to two decimals.
func RoundArea(area float64) float64 {
	return math.Round(area*100) / 100
}
