package adapter

import (
	"bytes"
	"context"
	"encoding/xml"
	"net/http"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/geonorge/dokanalyse/internal/condition"
	"github.com/geonorge/dokanalyse/internal/config"
	"github.com/geonorge/dokanalyse/internal/geomutil"
)

// The GetFeature body is a bit-exact contract with live WFS 2.0.0 services.
const wfsRequestTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<wfs:GetFeature xmlns:wfs="http://www.opengis.net/wfs/2.0" xmlns:fes="http://www.opengis.net/fes/2.0" service="WFS" version="2.0.0" outputFormat="application/gml+xml; version=3.2">
  <wfs:Query typeNames="{{.Layer}}" srsName="urn:ogc:def:crs:EPSG::{{.EPSG}}">
    <fes:Filter>
      <fes:Intersects>
        <fes:ValueReference>{{.GeomField}}</fes:ValueReference>
        {{.Geometry}}
      </fes:Intersects>
    </fes:Filter>
  </wfs:Query>
</wfs:GetFeature>`

var wfsTemplate = template.Must(template.New("getfeature").Parse(wfsRequestTemplate))

// WFS queries WFS 2.0.0 services with a POSTed GetFeature body.
type WFS struct {
	client *Client
}

func NewWFS(client *Client) *WFS {
	return &WFS{client: client}
}

// Query runs a spatial intersect against one dataset layer.
func (a *WFS) Query(ctx context.Context, ds *config.DatasetConfig, layer *config.LayerConfig, g geom.T, epsg int) (*Result, error) {
	return a.GetFeatures(ctx, ds.WFS, layer.WFS, ds.GeomField, ds.Properties, g, epsg)
}

// GetFeatures issues a GetFeature intersect request and maps each response
// member to the common feature shape. Property names are matched on their
// local part, so "app:symbol" maps to a "symbol" key.
func (a *WFS) GetFeatures(ctx context.Context, serviceURL, layer, geomField string, props []string, g geom.T, epsg int) (*Result, error) {
	gml, err := geomutil.ToGML(g, epsg)
	if err != nil {
		return &Result{Status: StatusError}, eris.Wrap(err, "wfs: encode geometry")
	}

	var body bytes.Buffer
	err = wfsTemplate.Execute(&body, map[string]any{
		"Layer":     layer,
		"GeomField": geomField,
		"EPSG":      epsg,
		"Geometry":  gml,
	})
	if err != nil {
		return &Result{Status: StatusError}, eris.Wrap(err, "wfs: render request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wfsURL(serviceURL), &body)
	if err != nil {
		return &Result{Status: StatusError}, eris.Wrap(err, "wfs: create request")
	}
	req.Header.Set("Content-Type", "application/xml")

	raw, status, err := a.client.Do(req)
	if status != StatusOK {
		return &Result{Status: status}, err
	}

	features, err := parseWFSResponse(raw, geomField, props)
	if err != nil {
		return &Result{Status: StatusError}, err
	}
	return &Result{Status: StatusOK, Features: features}, nil
}

func wfsURL(serviceURL string) string {
	sep := "?"
	if strings.Contains(serviceURL, "?") {
		sep = "&"
	}
	return serviceURL + sep + "service=WFS&version=2.0.0"
}

// xmlNode is a generic XML tree used to walk GML feature collections
// without binding to per-dataset schemas. Inner keeps the verbatim child
// markup so geometry fragments can be re-parsed on their own.
type xmlNode struct {
	XMLName xml.Name
	Nodes   []xmlNode `xml:",any"`
	Text    string    `xml:",chardata"`
	Inner   string    `xml:",innerxml"`
}

func (n *xmlNode) findAll(local string, out *[]*xmlNode) {
	for i := range n.Nodes {
		child := &n.Nodes[i]
		if child.XMLName.Local == local {
			*out = append(*out, child)
		}
		child.findAll(local, out)
	}
}

func (n *xmlNode) findFirst(local string) *xmlNode {
	for i := range n.Nodes {
		child := &n.Nodes[i]
		if child.XMLName.Local == local {
			return child
		}
		if found := child.findFirst(local); found != nil {
			return found
		}
	}
	return nil
}

func parseWFSResponse(raw []byte, geomField string, props []string) ([]Feature, error) {
	var root xmlNode
	if err := xml.Unmarshal(raw, &root); err != nil {
		return nil, eris.Wrap(err, "wfs: parse response")
	}

	var members []*xmlNode
	root.findAll("member", &members)

	geomLocal := localName(geomField)
	var features []Feature

	for _, member := range members {
		if len(member.Nodes) == 0 {
			continue
		}
		feature := &member.Nodes[0]

		properties := make(map[string]any)
		for _, prop := range props {
			local := localName(prop)
			if el := feature.findFirst(local); el != nil {
				properties[local] = condition.Coerce(strings.TrimSpace(el.Text))
			}
		}

		var g geom.T
		if geomEl := feature.findFirst(geomLocal); geomEl != nil && len(geomEl.Nodes) > 0 {
			parsed, err := geomutil.ParseGML([]byte(strings.TrimSpace(geomEl.Inner)))
			if err != nil {
				zap.L().Warn("wfs: skipping unparseable member geometry", zap.Error(err))
			} else {
				g = parsed
			}
		}

		features = append(features, Feature{Properties: properties, Geometry: g})
	}
	return features, nil
}

func localName(qualified string) string {
	if i := strings.LastIndex(qualified, ":"); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}
