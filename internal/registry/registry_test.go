package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/geonorge/dokanalyse/internal/adapter"
	"github.com/geonorge/dokanalyse/internal/cache"
	"github.com/geonorge/dokanalyse/internal/config"
)

func newTestService(t *testing.T, handler http.Handler) (*Service, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.RegistryConfig{
		KartkatalogAPI:  server.URL + "/kartkatalog/",
		GeolettAPI:      server.URL + "/geolett/",
		KartgrunnlagAPI: server.URL + "/kartgrunnlag.json",
		DokStatusAPI:    server.URL + "/dok-status.json",
		CodelistAPI:     server.URL + "/kodelister/",
		AdminUnitsWFS:   server.URL + "/wfs.administrative_enheter",
	}
	svc := NewService(cfg, adapter.NewClient(5*time.Second), cache.New(t.TempDir()), 7, "")
	return svc, server
}

func TestGetGeolett(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/geolett/", r.URL.Path)
		json.NewEncoder(w).Encode([]GeolettItem{
			{ID: "abc", Tittel: "Flomsone", Dialogtekst: "Området berører en flomsone."},
			{ID: "def", Tittel: "Kvikkleire"},
		})
	}))

	item, err := svc.GetGeolett(context.Background(), "abc")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Flomsone", item.Tittel)

	missing, err := svc.GetGeolett(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	none, err := svc.GetGeolett(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGetGeolettLocalOverride(t *testing.T) {
	dir := t.TempDir()
	local := []GeolettItem{{ID: "local-1", Tittel: "Upublisert veiledning"}}
	raw, _ := json.Marshal(local)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geolett.local.json"), raw, 0644))

	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("local entries must not hit the remote register")
	}))
	svc.localGeolettDir = dir

	item, err := svc.GetGeolett(context.Background(), "local-1")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Upublisert veiledning", item.Tittel)
}

func TestGetKartkatalogMetadata(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/kartkatalog/uuid-1", r.URL.Path)
		w.Write([]byte(`{
			"NorwegianTitle": "Flomsoner",
			"Abstract": "Flomsoner viser arealer som oversvømmes.",
			"DateMetadataUpdated": "2025-11-02",
			"ContactOwner": {"Organization": "NVE"}
		}`))
	}))

	meta, err := svc.GetKartkatalogMetadata(context.Background(), "uuid-1")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "Flomsoner", meta.Title)
	assert.Equal(t, "NVE", meta.Owner)
	// DateUpdated missing, falls back to DateMetadataUpdated.
	assert.Equal(t, "2025-11-02", meta.Updated)
	assert.Equal(t, "https://kartkatalog.geonorge.no/metadata/uuid-1", meta.DatasetDescriptionURI)

	none, err := svc.GetKartkatalogMetadata(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGetKartgrunnlag(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0301", r.URL.Query().Get("municipality"))
		w.Write([]byte(`{"containeditems": [
			{"ConfirmedDok": "JA", "dokStatus": "Godkjent", "MetadataUrl": "https://kartkatalog.geonorge.no/metadata/uuid-1"},
			{"ConfirmedDok": "NEI", "dokStatus": "Godkjent", "MetadataUrl": "https://kartkatalog.geonorge.no/metadata/uuid-2"},
			{"ConfirmedDok": "JA", "dokStatus": "Foreslått", "MetadataUrl": "https://kartkatalog.geonorge.no/metadata/uuid-3"}
		]}`))
	}))

	ids, err := svc.GetKartgrunnlag(context.Background(), "0301")
	require.NoError(t, err)
	assert.Equal(t, []string{"uuid-1"}, ids)
}

func TestGetDOKStatus(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"containeditems": [
			{"MetadataUrl": "https://kartkatalog.geonorge.no/metadata/uuid-1",
			 "Suitability": {"BuildingMatter": 5, "ZoningPlan": 3, "Irrelevant": 1}}
		]}`))
	}))

	status, err := svc.GetDOKStatus(context.Background(), "uuid-1")
	require.NoError(t, err)
	require.NotNil(t, status)
	require.Len(t, status.Suitability, 2)

	byDim := map[string]SuitabilityScore{}
	for _, s := range status.Suitability {
		byDim[s.QualityDimensionID] = s
	}
	assert.Equal(t, 5, byDim["egnethet_byggesak"].Value)
	assert.Equal(t, "Svært godt egnet", byDim["egnethet_byggesak"].Comment)
	assert.Equal(t, "Byggesak", byDim["egnethet_byggesak"].QualityDimensionName)
	assert.Equal(t, 3, byDim["egnethet_reguleringsplan"].Value)
	assert.Equal(t, "Egnet", byDim["egnethet_reguleringsplan"].Comment)

	missing, err := svc.GetDOKStatus(context.Background(), "uuid-x")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetCodelist(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/kodelister/dekningsstatus.json", r.URL.Path)
		w.Write([]byte(`{"containeditems": [
			{"codevalue": "ikkeKartlagt", "label": "Ikke kartlagt", "description": "Data mangler", "status": "Gyldig"},
			{"codevalue": "utgått", "label": "Utgått", "status": false}
		]}`))
	}))

	entries, err := svc.GetCodelist(context.Background(), "fullstendighet_dekning")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ikkeKartlagt", entries[0].Value)
	assert.Equal(t, "Ikke kartlagt", entries[0].Label)

	unknown, err := svc.GetCodelist(context.Background(), "finnes_ikke")
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestGetMunicipality(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wfs.administrative_enheter", r.URL.Path)
		assert.Equal(t, "WFS", r.URL.Query().Get("service"))
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs/2.0" xmlns:app="https://skjema.geonorge.no/SOSI/produktspesifikasjon/AdmEnheter/20240101">
  <wfs:member>
    <app:Kommune>
      <app:kommunenummer>0301</app:kommunenummer>
      <app:kommunenavn>Oslo</app:kommunenavn>
    </app:Kommune>
  </wfs:member>
</wfs:FeatureCollection>`))
	}))

	square := geom.NewPolygonFlat(geom.XY,
		[]float64{261000, 6648000, 262000, 6648000, 262000, 6649000, 261000, 6649000, 261000, 6648000},
		[]int{10})

	muni, err := svc.GetMunicipality(context.Background(), square, 25833)
	require.NoError(t, err)
	require.NotNil(t, muni)
	assert.Equal(t, "0301", muni.Number)
	assert.Equal(t, "Oslo", muni.Name)
}
