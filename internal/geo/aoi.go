// Package geo normalizes user input into a canonical AOI geometry and
// provides the spatial predicates the fetchers filter with.
//
// The working reference frame is WGS84 lon/lat. Every geometry entering
// the system is converted into that frame here; downstream packages
// never reproject.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	// ErrInvalidInput marks AOI input that yields no usable geometry.
	ErrInvalidInput = errors.New("invalid AOI input")

	// ErrUnsupportedFormat marks input or export formats the pipeline
	// does not recognize.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// FromGeoJSON parses a drawn AOI from GeoJSON. The payload may be a bare
// geometry, a feature, or a feature collection; all polygonal geometries
// found are merged into one AOI.
func FromGeoJSON(data []byte) (orb.Geometry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidInput)
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var geoms []orb.Geometry
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		for _, f := range fc.Features {
			if f.Geometry != nil {
				geoms = append(geoms, f.Geometry)
			}
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if f.Geometry != nil {
			geoms = append(geoms, f.Geometry)
		}
	case "":
		return nil, fmt.Errorf("%w: missing GeoJSON type", ErrInvalidInput)
	default:
		var g geojson.Geometry
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		geoms = append(geoms, g.Geometry())
	}

	return Union(geoms)
}

// Union merges polygonal geometries into a single AOI geometry: one
// polygon stays a Polygon, several become a MultiPolygon. Overlap
// between members is tolerated; intersection predicates treat the
// multi-polygon as the union of its parts, so no ring dissolve is
// needed. Non-polygonal geometries are rejected.
func Union(geoms []orb.Geometry) (orb.Geometry, error) {
	var polys orb.MultiPolygon
	for _, g := range geoms {
		switch v := g.(type) {
		case orb.Polygon:
			if len(v) == 0 || len(v[0]) < 4 {
				continue
			}
			polys = append(polys, v)
		case orb.MultiPolygon:
			for _, p := range v {
				if len(p) == 0 || len(p[0]) < 4 {
					continue
				}
				polys = append(polys, p)
			}
		}
	}

	switch len(polys) {
	case 0:
		return nil, fmt.Errorf("%w: no polygon geometry found", ErrInvalidInput)
	case 1:
		return polys[0], nil
	default:
		return polys, nil
	}
}

// ApproxAreaKm2 estimates the AOI area from its bounding box, matching
// the coarse 111 km-per-degree estimate shown to users.
func ApproxAreaKm2(g orb.Geometry) float64 {
	if g == nil {
		return 0
	}
	b := g.Bound()
	return (b.Max[0] - b.Min[0]) * (b.Max[1] - b.Min[1]) * 111 * 111
}
