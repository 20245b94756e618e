package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"

	"geodump/internal/session"
	"geodump/internal/source"
)

// newTestAPI wires the handler against an offline catalog: a single
// static source, so no test ever talks to the network.
func newTestAPI(t *testing.T) humatest.TestAPI {
	t.Helper()

	catalog, err := source.NewCatalog([]source.Descriptor{
		{Name: "Natural Earth Countries", Kind: source.KindStatic, Description: "Country boundaries"},
	}, source.Options{})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	_, api := humatest.New(t)
	handler := NewAPIHandler(session.New(nil), catalog, nil, nil, t.TempDir())
	huma.AutoRegister(api, handler)
	return api
}

const aoiGeoJSON = `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`

func TestHealthAndInfo(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"ok"`) {
		t.Errorf("health body: %s", resp.Body.String())
	}

	resp = api.Get("/api/v1/info")
	if resp.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/info = %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"sources":1`) {
		t.Errorf("info body: %s", resp.Body.String())
	}
}

func TestGetSources(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Get("/api/v1/sources")
	if resp.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/sources = %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Natural Earth Countries") {
		t.Errorf("sources body: %s", resp.Body.String())
	}
}

func TestAOILifecycle(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Get("/api/v1/aoi")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"set":false`) {
		t.Fatalf("fresh AOI status: %d %s", resp.Code, resp.Body.String())
	}

	resp = api.Put("/api/v1/aoi", strings.NewReader("not geojson"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("invalid AOI = %d, want 400", resp.Code)
	}

	resp = api.Put("/api/v1/aoi", strings.NewReader(aoiGeoJSON))
	if resp.Code != http.StatusOK {
		t.Fatalf("PUT /api/v1/aoi = %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"set":true`) {
		t.Errorf("AOI body: %s", resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "area_km2") {
		t.Errorf("AOI body has no area estimate: %s", resp.Body.String())
	}
}

func TestUploadAOIGeoJSON(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Post("/api/v1/aoi/upload", strings.NewReader(aoiGeoJSON))
	if resp.Code != http.StatusOK {
		t.Fatalf("POST /api/v1/aoi/upload = %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"set":true`) {
		t.Errorf("upload response: %s", resp.Body.String())
	}
}

func TestFetchWithoutAOI(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Post("/api/v1/fetch", map[string]any{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("fetch without AOI = %d, want 400", resp.Code)
	}
}

func TestFetchExportBundleFlow(t *testing.T) {
	api := newTestAPI(t)

	if resp := api.Put("/api/v1/aoi", strings.NewReader(aoiGeoJSON)); resp.Code != http.StatusOK {
		t.Fatalf("PUT /api/v1/aoi = %d", resp.Code)
	}

	resp := api.Post("/api/v1/fetch", map[string]any{"sources": []string{"Natural Earth Countries"}})
	if resp.Code != http.StatusOK {
		t.Fatalf("POST /api/v1/fetch = %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"features":1`) {
		t.Errorf("fetch outcomes: %s", resp.Body.String())
	}

	resp = api.Get("/api/v1/layers")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "Natural Earth Countries") {
		t.Fatalf("GET /api/v1/layers = %d: %s", resp.Code, resp.Body.String())
	}

	resp = api.Get("/api/v1/layers/Natural%20Earth%20Countries/export?format=geojson")
	if resp.Code != http.StatusOK {
		t.Fatalf("export = %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("export content type = %q", ct)
	}
	if cd := resp.Header().Get("Content-Disposition"); !strings.Contains(cd, "natural_earth_countries.geojson") {
		t.Errorf("export disposition = %q", cd)
	}

	resp = api.Get("/api/v1/layers/Natural%20Earth%20Countries/export?format=kml")
	if resp.Code != http.StatusBadRequest {
		t.Errorf("bad format = %d, want 400", resp.Code)
	}

	resp = api.Get("/api/v1/layers/Unknown/export?format=geojson")
	if resp.Code != http.StatusNotFound {
		t.Errorf("unknown layer = %d, want 404", resp.Code)
	}

	resp = api.Post("/api/v1/bundle", map[string]any{"format": "geojson"})
	if resp.Code != http.StatusOK {
		t.Fatalf("POST /api/v1/bundle = %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("bundle content type = %q", ct)
	}

	if resp := api.Delete("/api/v1/layers"); resp.Code != http.StatusOK {
		t.Fatalf("DELETE /api/v1/layers = %d", resp.Code)
	}
	if resp := api.Post("/api/v1/bundle", map[string]any{"format": "geojson"}); resp.Code != http.StatusNotFound {
		t.Errorf("bundle after clear = %d, want 404", resp.Code)
	}
}
