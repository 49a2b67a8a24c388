package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonorge/dokanalyse/internal/adapter"
	"github.com/geonorge/dokanalyse/internal/analysis"
	"github.com/geonorge/dokanalyse/internal/cache"
	"github.com/geonorge/dokanalyse/internal/config"
	"github.com/geonorge/dokanalyse/internal/orchestrator"
	"github.com/geonorge/dokanalyse/internal/quality"
	"github.com/geonorge/dokanalyse/internal/registry"
)

func newTestServices(t *testing.T) *services {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/wfs.administrative_enheter", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs/2.0" xmlns:app="https://skjema.geonorge.no/SOSI/produktspesifikasjon/AdmEnheter/20240101">
  <wfs:member><app:Kommune><app:kommunenummer>0301</app:kommunenummer><app:kommunenavn>Oslo</app:kommunenavn></app:Kommune></wfs:member>
</wfs:FeatureCollection>`))
	})
	mux.HandleFunc("/kartgrunnlag.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"containeditems": []}`))
	})
	mux.HandleFunc("/wfs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs/2.0"/>`))
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	regCfg := config.RegistryConfig{
		KartkatalogAPI:  upstream.URL + "/kartkatalog/",
		GeolettAPI:      upstream.URL + "/geolett/",
		KartgrunnlagAPI: upstream.URL + "/kartgrunnlag.json",
		DokStatusAPI:    upstream.URL + "/dok-status.json",
		CodelistAPI:     upstream.URL + "/kodelister/",
		AdminUnitsWFS:   upstream.URL + "/wfs.administrative_enheter",
	}
	datasets := []*config.DatasetConfig{{
		Name:      "flomsoner",
		Title:     "Flomsoner",
		Themes:    []string{"Natur"},
		WFS:       upstream.URL + "/wfs",
		GeomField: "app:omrade",
		Layers:    []config.LayerConfig{{WFS: "Flomsone", ResultStatus: "HIT-RED"}},
	}}

	client := adapter.NewClient(5 * time.Second)
	reg := registry.NewService(regCfg, client, cache.New(t.TempDir()), 7, "")
	qual := quality.NewService(reg, adapter.NewWFS(client))
	runner := analysis.NewRunner(reg, qual, client)

	return &services{
		datasets:     datasets,
		orchestrator: orchestrator.New(datasets, reg, runner, nil, 4),
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newRouter(newTestServices(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestProcessDescriptionEndpoint(t *testing.T) {
	router := newRouter(newTestServices(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dokanalyse", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"dokanalyse"`)
	assert.Contains(t, rec.Body.String(), `"version":"0.1.0"`)
}

func TestDatasetsEndpoint(t *testing.T) {
	router := newRouter(newTestServices(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/datasets", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"flomsoner"`)
	assert.Contains(t, rec.Body.String(), `"title":"Flomsoner"`)
}

func TestAnalyzeEndpoint(t *testing.T) {
	router := newRouter(newTestServices(t))

	body := `{
		"inputGeometry": {"type": "Polygon", "coordinates": [[[261000, 6648000], [262000, 6648000], [262000, 6649000], [261000, 6649000], [261000, 6648000]]], "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::25833"}}},
		"context": "byggesak"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/dokanalyse", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"municipalityNumber":"0301"`)
	assert.Contains(t, rec.Body.String(), `"resultList"`)
	assert.Contains(t, rec.Body.String(), `"NO-HIT-GREEN"`)
}

func TestAnalyzeEndpointRejectsBadBody(t *testing.T) {
	router := newRouter(newTestServices(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/dokanalyse", strings.NewReader(`not json`))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/dokanalyse", strings.NewReader(`{}`))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
