package source

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"geodump/internal/layer"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := LoadCatalog("", Options{})
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	names := c.Names()
	if len(names) != 7 {
		t.Fatalf("built-in catalog has %d sources, want 7", len(names))
	}
	for _, name := range names {
		if _, ok := c.Fetcher(name); !ok {
			t.Errorf("no fetcher for %q", name)
		}
	}
	if _, ok := c.Fetcher("No Such Source"); ok {
		t.Error("unknown source should have no fetcher")
	}
}

func TestLoadCatalogYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	yaml := `sources:
  - name: City Roads
    kind: overpass
    description: Roads only
    tags:
      highway: []
  - name: Footprints
    kind: tiled
    indexUrl: https://example.com/index.csv
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path, Options{})
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if got := c.Names(); len(got) != 2 || got[0] != "City Roads" || got[1] != "Footprints" {
		t.Errorf("Names = %v", got)
	}
}

func TestLoadCatalogRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"empty.yaml":     "sources: []\n",
		"duplicate.yaml": "sources:\n  - name: A\n    kind: static\n  - name: A\n    kind: static\n",
		"badkind.yaml":   "sources:\n  - name: A\n    kind: quantum\n",
		"notiles.yaml":   "sources:\n  - name: A\n    kind: tiled\n",
		"notags.yaml":    "sources:\n  - name: A\n    kind: overpass\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(body), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadCatalog(path, Options{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStaticFetch(t *testing.T) {
	f, err := NewFetcher(Descriptor{Name: "Natural Earth Countries", Kind: KindStatic}, Options{})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	l, sum, err := f.Fetch(context.Background(), testAOI, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if l.Count() != 1 || sum.Kept != 1 {
		t.Fatalf("layer count = %d, summary = %+v", l.Count(), sum)
	}

	fe := l.Features[0]
	p, ok := fe.Geometry.(orb.Point)
	if !ok {
		t.Fatalf("expected a Point, got %T", fe.Geometry)
	}
	if math.Abs(p[0]-0.5) > 1e-9 || math.Abs(p[1]-0.5) > 1e-9 {
		t.Errorf("centroid = %v, want (0.5, 0.5)", p)
	}
	if fe.Attributes["name"] != "Sample Country" {
		t.Errorf("name attr = %v", fe.Attributes["name"])
	}
	if fe.Attributes[layer.AttrSource] != "Natural Earth Countries" {
		t.Errorf("source attr = %v", fe.Attributes[layer.AttrSource])
	}
}
