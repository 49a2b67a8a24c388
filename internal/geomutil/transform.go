package geomutil

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/wroge/wgs84"
)

// Transform reprojects a geometry between two EPSG codes. A no-op when the
// codes are equal.
func Transform(g geom.T, srcEPSG, dstEPSG int) (geom.T, error) {
	if srcEPSG == dstEPSG {
		return Clone(g)
	}
	src := wgs84.EPSG().Code(srcEPSG)
	dst := wgs84.EPSG().Code(dstEPSG)
	if src == nil || dst == nil {
		return nil, eris.Errorf("geomutil: unsupported transform %d -> %d", srcEPSG, dstEPSG)
	}
	f := wgs84.Transform(src, dst)
	out, err := mapCoords(g, func(x, y float64) (float64, float64) {
		tx, ty, _ := f(x, y, 0)
		return tx, ty
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mapCoords rebuilds a geometry with every coordinate pair passed through f.
func mapCoords(g geom.T, f func(x, y float64) (float64, float64)) (geom.T, error) {
	mapFlat := func(flat []float64, stride int) []float64 {
		out := make([]float64, len(flat))
		copy(out, flat)
		for i := 0; i+1 < len(out); i += stride {
			out[i], out[i+1] = f(out[i], out[i+1])
		}
		return out
	}

	switch t := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(t.Layout(), mapFlat(t.FlatCoords(), t.Stride())), nil
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(t.Layout(), mapFlat(t.FlatCoords(), t.Stride())), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(t.Layout(), mapFlat(t.FlatCoords(), t.Stride())), nil
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(t.Layout(), mapFlat(t.FlatCoords(), t.Stride()), t.Ends()), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(t.Layout(), mapFlat(t.FlatCoords(), t.Stride()), t.Ends()), nil
	case *geom.MultiPolygon:
		return geom.NewMultiPolygonFlat(t.Layout(), mapFlat(t.FlatCoords(), t.Stride()), t.Endss()), nil
	default:
		return nil, eris.Errorf("geomutil: unsupported geometry type %T", g)
	}
}
