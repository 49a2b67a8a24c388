package geomutil

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// gmlNS is the GML 3.2 namespace used on serialized query geometries.
const gmlNS = "http://www.opengis.net/gml/3.2"

// ToGML serializes a geometry as a GML 3 literal suitable for embedding in a
// WFS GetFeature filter, with CRS-dependent coordinate precision. The GML
// namespace is declared on the outermost element.
func ToGML(g geom.T, epsg int) (string, error) {
	prec := CoordPrecision(epsg)
	var buf strings.Builder

	switch t := g.(type) {
	case *geom.Point:
		buf.WriteString(`<gml:Point xmlns:gml="` + gmlNS + `"><gml:pos>`)
		buf.WriteString(formatCoord(t.X(), prec) + " " + formatCoord(t.Y(), prec))
		buf.WriteString("</gml:pos></gml:Point>")
	case *geom.LineString:
		buf.WriteString(`<gml:LineString xmlns:gml="` + gmlNS + `">`)
		writeGMLPosList(&buf, t.FlatCoords(), t.Stride(), 0, len(t.FlatCoords()), prec)
		buf.WriteString("</gml:LineString>")
	case *geom.Polygon:
		writeGMLPolygon(&buf, t, prec, true)
	case *geom.MultiPolygon:
		buf.WriteString(`<gml:MultiSurface xmlns:gml="` + gmlNS + `">`)
		for i := 0; i < t.NumPolygons(); i++ {
			buf.WriteString("<gml:surfaceMember>")
			writeGMLPolygon(&buf, t.Polygon(i), prec, false)
			buf.WriteString("</gml:surfaceMember>")
		}
		buf.WriteString("</gml:MultiSurface>")
	default:
		return "", eris.Errorf("geomutil: cannot serialize geometry type %T as gml", g)
	}
	return buf.String(), nil
}

func writeGMLPolygon(buf *strings.Builder, p *geom.Polygon, prec int, withNS bool) {
	if withNS {
		buf.WriteString(`<gml:Polygon xmlns:gml="` + gmlNS + `">`)
	} else {
		buf.WriteString("<gml:Polygon>")
	}
	flat, stride := p.FlatCoords(), p.Stride()
	start := 0
	for i, end := range p.Ends() {
		ring := "interior"
		if i == 0 {
			ring = "exterior"
		}
		buf.WriteString("<gml:" + ring + "><gml:LinearRing>")
		writeGMLPosList(buf, flat, stride, start, end, prec)
		buf.WriteString("</gml:LinearRing></gml:" + ring + ">")
		start = end
	}
	buf.WriteString("</gml:Polygon>")
}

func writeGMLPosList(buf *strings.Builder, flat []float64, stride, start, end, prec int) {
	buf.WriteString("<gml:posList>")
	for i := start; i < end; i += stride {
		if i > start {
			buf.WriteByte(' ')
		}
		buf.WriteString(formatCoord(flat[i], prec))
		buf.WriteByte(' ')
		buf.WriteString(formatCoord(flat[i+1], prec))
	}
	buf.WriteString("</gml:posList>")
}

// gmlNode is a generic XML tree used when interpreting GML from upstream
// responses, matching elements by local name regardless of prefix.
type gmlNode struct {
	XMLName xml.Name
	Nodes   []gmlNode `xml:",any"`
	Text    string    `xml:",chardata"`
}

func (n *gmlNode) find(local string) *gmlNode {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == local {
			return &n.Nodes[i]
		}
	}
	return nil
}

func (n *gmlNode) findAll(local string) []*gmlNode {
	var out []*gmlNode
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == local {
			out = append(out, &n.Nodes[i])
		}
	}
	return out
}

// ParseGML decodes a GML 3 geometry fragment (Point, LineString, Polygon,
// MultiSurface/MultiPolygon) into a go-geom geometry.
func ParseGML(fragment []byte) (geom.T, error) {
	var root gmlNode
	if err := xml.Unmarshal(fragment, &root); err != nil {
		return nil, eris.Wrap(err, "geomutil: parse gml")
	}
	return gmlGeometry(&root)
}

func gmlGeometry(node *gmlNode) (geom.T, error) {
	switch node.XMLName.Local {
	case "Point":
		pos := node.find("pos")
		if pos == nil {
			return nil, eris.New("geomutil: gml point without pos")
		}
		coords, err := parsePosList(pos.Text)
		if err != nil || len(coords) < 2 {
			return nil, eris.New("geomutil: malformed gml pos")
		}
		return geom.NewPointFlat(geom.XY, coords[:2]), nil
	case "LineString":
		flat, err := ringCoords(node)
		if err != nil {
			return nil, err
		}
		return geom.NewLineStringFlat(geom.XY, flat), nil
	case "Polygon", "Surface":
		return gmlPolygon(node)
	case "MultiSurface", "MultiPolygon":
		mp := geom.NewMultiPolygon(geom.XY)
		for _, member := range append(node.findAll("surfaceMember"), node.findAll("polygonMember")...) {
			for i := range member.Nodes {
				p, err := gmlPolygon(&member.Nodes[i])
				if err != nil {
					return nil, err
				}
				if err := mp.Push(p); err != nil {
					return nil, eris.Wrap(err, "geomutil: gml multisurface")
				}
			}
		}
		return mp, nil
	default:
		return nil, eris.Errorf("geomutil: unsupported gml element %q", node.XMLName.Local)
	}
}

func gmlPolygon(node *gmlNode) (*geom.Polygon, error) {
	var flat []float64
	var ends []int

	addRing := func(ringParent *gmlNode) error {
		ring := ringParent.find("LinearRing")
		if ring == nil {
			return eris.New("geomutil: gml ring without LinearRing")
		}
		coords, err := ringCoords(ring)
		if err != nil {
			return err
		}
		flat = append(flat, coords...)
		ends = append(ends, len(flat))
		return nil
	}

	exterior := node.find("exterior")
	if exterior == nil {
		return nil, eris.New("geomutil: gml polygon without exterior")
	}
	if err := addRing(exterior); err != nil {
		return nil, err
	}
	for _, interior := range node.findAll("interior") {
		if err := addRing(interior); err != nil {
			return nil, err
		}
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends), nil
}

// ringCoords extracts the flat coordinate list from a posList or a series of
// pos elements.
func ringCoords(node *gmlNode) ([]float64, error) {
	if posList := node.find("posList"); posList != nil {
		return parsePosList(posList.Text)
	}
	var flat []float64
	for _, pos := range node.findAll("pos") {
		coords, err := parsePosList(pos.Text)
		if err != nil {
			return nil, err
		}
		if len(coords) >= 2 {
			flat = append(flat, coords[0], coords[1])
		}
	}
	if len(flat) == 0 {
		return nil, eris.New("geomutil: gml ring without coordinates")
	}
	return flat, nil
}

func parsePosList(text string) ([]float64, error) {
	fields := strings.Fields(text)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "geomutil: bad coordinate %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}
