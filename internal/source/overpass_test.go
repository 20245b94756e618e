package source

import (
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

func TestBuildOverpassQuery(t *testing.T) {
	aoi := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}

	q := buildOverpassQuery(map[string][]string{"highway": nil}, aoi)
	want := "[out:json][timeout:30];\n(\n" +
		"  nwr[\"highway\"](poly:\"0 0 0 1 1 1 1 0 0 0\");\n" +
		");\nout body;\n>;\nout skel qt;"
	if q != want {
		t.Errorf("query:\n%s\nwant:\n%s", q, want)
	}
}

func TestBuildOverpassQueryValues(t *testing.T) {
	aoi := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}

	q := buildOverpassQuery(map[string][]string{"leisure": {"park", "garden"}}, aoi)
	if !strings.Contains(q, `nwr["leisure"~"^(park|garden)$"]`) {
		t.Errorf("value filter missing from query:\n%s", q)
	}
}

func TestBuildOverpassQueryDeterministicKeyOrder(t *testing.T) {
	aoi := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	tags := map[string][]string{"waterway": nil, "amenity": nil, "highway": nil}

	first := buildOverpassQuery(tags, aoi)
	for i := 0; i < 10; i++ {
		if buildOverpassQuery(tags, aoi) != first {
			t.Fatal("query ordering is not deterministic")
		}
	}
	if strings.Index(first, "amenity") > strings.Index(first, "waterway") {
		t.Error("keys should be emitted in sorted order")
	}
}

func TestBuildOverpassQueryMultiPolygon(t *testing.T) {
	aoi := orb.MultiPolygon{
		{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
		{{{2, 2}, {3, 2}, {3, 3}, {2, 3}, {2, 2}}},
	}

	q := buildOverpassQuery(map[string][]string{"building": nil}, aoi)
	if strings.Count(q, "poly:") != 2 {
		t.Errorf("expected one poly clause per member:\n%s", q)
	}
}

func TestTagFilter(t *testing.T) {
	tests := []struct {
		key    string
		values []string
		want   string
	}{
		{"highway", nil, `["highway"]`},
		{"leisure", []string{"park"}, `["leisure"~"^(park)$"]`},
		{"leisure", []string{"park", "garden", "recreation_ground"}, `["leisure"~"^(park|garden|recreation_ground)$"]`},
	}
	for _, tt := range tests {
		if got := tagFilter(tt.key, tt.values); got != tt.want {
			t.Errorf("tagFilter(%q, %v) = %s, want %s", tt.key, tt.values, got, tt.want)
		}
	}
}

func TestTrimFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1.5, "1.5"},
		{13.4050000, "13.405"},
		{52.5200001, "52.5200001"},
	}
	for _, tt := range tests {
		if got := trimFloat(tt.in); got != tt.want {
			t.Errorf("trimFloat(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
