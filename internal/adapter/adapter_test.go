package adapter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/geonorge/dokanalyse/internal/config"
)

func testSquare() *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY,
		[]float64{221000, 6662000, 221100, 6662000, 221100, 6662100, 221000, 6662100, 221000, 6662000},
		[]int{10})
}

const wfsResponseBody = `<?xml version="1.0" encoding="UTF-8"?>
<wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs/2.0" xmlns:gml="http://www.opengis.net/gml/3.2" xmlns:app="https://skjema.geonorge.no/SOSI/produktspesifikasjon/Flomsoner/1.0">
  <wfs:member>
    <app:Flomsone>
      <app:symbol>1</app:symbol>
      <app:gjentaksinterval>200</app:gjentaksinterval>
      <app:omrade>
        <gml:Polygon srsName="urn:ogc:def:crs:EPSG::25833">
          <gml:exterior><gml:LinearRing>
            <gml:posList>221000 6662000 221100 6662000 221100 6662100 221000 6662100 221000 6662000</gml:posList>
          </gml:LinearRing></gml:exterior>
        </gml:Polygon>
      </app:omrade>
    </app:Flomsone>
  </wfs:member>
</wfs:FeatureCollection>`

func TestWFSQuery(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))
		assert.Equal(t, "WFS", r.URL.Query().Get("service"))
		assert.Equal(t, "2.0.0", r.URL.Query().Get("version"))
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(wfsResponseBody))
	}))
	defer server.Close()

	ds := &config.DatasetConfig{
		WFS:        server.URL,
		GeomField:  "app:omrade",
		Properties: []string{"app:symbol", "app:gjentaksinterval"},
		Layers:     []config.LayerConfig{{WFS: "Flomsone"}},
	}

	wfs := NewWFS(NewClient(5 * time.Second))
	result, err := wfs.Query(context.Background(), ds, &ds.Layers[0], testSquare(), 25833)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)

	assert.Contains(t, gotBody, `typeNames="Flomsone"`)
	assert.Contains(t, gotBody, "urn:ogc:def:crs:EPSG::25833")
	assert.Contains(t, gotBody, "<fes:Intersects>")
	assert.Contains(t, gotBody, "<fes:ValueReference>app:omrade</fes:ValueReference>")
	assert.Contains(t, gotBody, "<gml:Polygon")

	require.Len(t, result.Features, 1)
	f := result.Features[0]
	assert.Equal(t, 1.0, f.Properties["symbol"])
	assert.Equal(t, 200.0, f.Properties["gjentaksinterval"])
	require.NotNil(t, f.Geometry)
	_, ok := f.Geometry.(*geom.Polygon)
	assert.True(t, ok)
}

func TestWFSQueryTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	ds := &config.DatasetConfig{
		WFS:       server.URL,
		GeomField: "app:omrade",
		Layers:    []config.LayerConfig{{WFS: "Flomsone"}},
	}

	wfs := NewWFS(NewClient(50 * time.Millisecond))
	result, err := wfs.Query(context.Background(), ds, &ds.Layers[0], testSquare(), 25833)
	assert.Error(t, err)
	assert.Equal(t, StatusTimeout, result.Status)
}

func TestWFSQueryServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ds := &config.DatasetConfig{
		WFS:       server.URL,
		GeomField: "app:omrade",
		Layers:    []config.LayerConfig{{WFS: "Flomsone"}},
	}

	wfs := NewWFS(NewClient(5 * time.Second))
	result, err := wfs.Query(context.Background(), ds, &ds.Layers[0], testSquare(), 25833)
	assert.Error(t, err)
	assert.Equal(t, StatusError, result.Status)
}

func TestArcGISQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/query", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "esriGeometryPolygon", r.PostForm.Get("geometryType"))
		assert.Equal(t, "esriSpatialRelIntersects", r.PostForm.Get("spatialRel"))
		assert.Equal(t, "1=1", r.PostForm.Get("where"))
		assert.Equal(t, "25833", r.PostForm.Get("inSR"))
		assert.Equal(t, "25833", r.PostForm.Get("outSR"))
		assert.Equal(t, "geojson", r.PostForm.Get("f"))
		assert.Contains(t, r.PostForm.Get("geometry"), `"rings"`)

		w.Write([]byte(`{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"skredType":"Kvikkleire","risiko_klasse":3},
			 "geometry":{"type":"Polygon","coordinates":[[[221000,6662000],[221100,6662000],[221100,6662100],[221000,6662000]]]}}]}`))
	}))
	defer server.Close()

	ds := &config.DatasetConfig{
		ArcGIS:     server.URL,
		Properties: []string{"skredType", "risiko_klasse"},
		Layers:     []config.LayerConfig{{ArcGIS: "0"}},
	}

	arcgis := NewArcGIS(NewClient(5 * time.Second))
	result, err := arcgis.Query(context.Background(), ds, &ds.Layers[0], testSquare(), 25833)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)

	require.Len(t, result.Features, 1)
	f := result.Features[0]
	assert.Equal(t, "Kvikkleire", f.Properties["skredtype"])
	assert.Equal(t, 3.0, f.Properties["risikoKlasse"])
	assert.NotNil(t, f.Geometry)
}

func TestArcGISQueryWhereFromTypeFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "skredType = 'Kvikkleire'", r.PostForm.Get("where"))
		w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer server.Close()

	ds := &config.DatasetConfig{
		ArcGIS: server.URL,
		Layers: []config.LayerConfig{{
			ArcGIS:     "1",
			TypeFilter: &config.TypeFilter{Attribute: "skredType", Value: "Kvikkleire"},
		}},
	}

	arcgis := NewArcGIS(NewClient(5 * time.Second))
	result, err := arcgis.Query(context.Background(), ds, &ds.Layers[0], testSquare(), 25833)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)
	assert.Empty(t, result.Features)
}

func TestArcGISQueryErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":400,"message":"Invalid query"}}`))
	}))
	defer server.Close()

	ds := &config.DatasetConfig{
		ArcGIS: server.URL,
		Layers: []config.LayerConfig{{ArcGIS: "0"}},
	}

	arcgis := NewArcGIS(NewClient(5 * time.Second))
	result, err := arcgis.Query(context.Background(), ds, &ds.Layers[0], testSquare(), 25833)
	assert.Error(t, err)
	assert.Equal(t, StatusError, result.Status)
}

func TestOGCAPIQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/fotrute/items", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "cql2-text", q.Get("filter-lang"))
		assert.Equal(t, "http://www.opengis.net/def/crs/EPSG/0/25833", q.Get("filter-crs"))
		assert.Contains(t, q.Get("filter"), "S_INTERSECTS(geometri,")

		w.Write([]byte(`{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"rutenavn":"Kyststien","vedlikehold":{"ansvar":"DNT"}},
			 "geometry":{"type":"Point","coordinates":[10.0,60.0]}}]}`))
	}))
	defer server.Close()

	ds := &config.DatasetConfig{
		OGCAPI:     server.URL + "/collections",
		GeomField:  "geometri",
		Properties: []string{"rutenavn", "vedlikehold.ansvar"},
		Layers:     []config.LayerConfig{{OGCAPI: "fotrute"}},
	}

	ogc := NewOGCAPI(NewClient(5 * time.Second))
	result, err := ogc.Query(context.Background(), ds, &ds.Layers[0], testSquare(), 25833)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)

	require.Len(t, result.Features, 1)
	f := result.Features[0]
	assert.Equal(t, "Kyststien", f.Properties["rutenavn"])
	// Dotted path maps to its last segment.
	assert.Equal(t, "DNT", f.Properties["ansvar"])

	// Geometry is transformed from 4326 into the working CRS.
	p, ok := f.Geometry.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, 221288, p.X(), 500)
	assert.InDelta(t, 6661953, p.Y(), 500)
}

func TestWhereClause(t *testing.T) {
	assert.Equal(t, "", WhereClause(nil))
	assert.Equal(t, "a = 'b'", WhereClause(&config.TypeFilter{Attribute: "a", Value: "b"}))
	assert.Equal(t, "x > 1", WhereClause(&config.TypeFilter{Expression: "x > 1"}))
}
