package geo

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestIntersects(t *testing.T) {
	aoi := orb.Geometry(unitSquare)

	tests := []struct {
		name string
		g    orb.Geometry
		want bool
	}{
		{"point inside", orb.Point{0.5, 0.5}, true},
		{"point outside", orb.Point{2, 2}, false},
		{"multipoint one inside", orb.MultiPoint{{5, 5}, {0.2, 0.8}}, true},
		{"polygon overlapping", orb.Polygon{{{0.5, 0.5}, {1.5, 0.5}, {1.5, 1.5}, {0.5, 1.5}, {0.5, 0.5}}}, true},
		{"polygon containing the AOI", orb.Polygon{{{-1, -1}, {2, -1}, {2, 2}, {-1, 2}, {-1, -1}}}, true},
		{"polygon disjoint", orb.Polygon{{{5, 5}, {6, 5}, {6, 6}, {5, 6}, {5, 5}}}, false},
		{"polygon strip through the AOI", orb.Polygon{{{0.4, -1}, {0.6, -1}, {0.6, 2}, {0.4, 2}, {0.4, -1}}}, true},
		{"polygon near miss with overlapping bounds", orb.Polygon{{{0.9, 1.5}, {1.5, 0.9}, {1.5, 1.5}, {0.9, 1.5}}}, false},
		{"line with vertex inside", orb.LineString{{0.5, 0.5}, {5, 5}}, true},
		{"line crossing with no vertex inside", orb.LineString{{-0.5, 0.5}, {1.5, 0.5}}, true},
		{"line near miss with overlapping bounds", orb.LineString{{0.9, 1.5}, {1.5, 0.9}}, false},
		{"line touching the boundary", orb.LineString{{1, 0.5}, {2, 0.5}}, true},
		{"line disjoint", orb.LineString{{5, 5}, {6, 6}}, false},
		{"multiline one member inside", orb.MultiLineString{{{5, 5}, {6, 6}}, {{0.1, 0.1}, {0.9, 0.9}}}, true},
		{"nil geometry", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Intersects(aoi, tt.g); got != tt.want {
				t.Errorf("Intersects = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntersectsMultiPolygonAOI(t *testing.T) {
	aoi := orb.MultiPolygon{
		unitSquare,
		{{{10, 10}, {11, 10}, {11, 11}, {10, 11}, {10, 10}}},
	}

	if !Intersects(aoi, orb.Point{10.5, 10.5}) {
		t.Error("point in the second member should intersect")
	}
	if !Intersects(aoi, orb.Point{0.5, 0.5}) {
		t.Error("point in the first member should intersect")
	}
	if Intersects(aoi, orb.Point{5, 5}) {
		t.Error("point between members should not intersect")
	}
}

func TestIntersectsNilAOI(t *testing.T) {
	if Intersects(nil, orb.Point{0, 0}) {
		t.Error("nil AOI intersects nothing")
	}
}
