package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Intersects reports whether a candidate geometry intersects the AOI.
// Tiled providers return whole partitions, so this is the filter that
// enforces the "every feature intersects the AOI" invariant.
//
// After a bounding-box rejection the test is exact for the supported
// types: vertex containment in either direction, plus a segment
// crossing test between the candidate's edges and the AOI ring edges.
func Intersects(aoi orb.Geometry, g orb.Geometry) bool {
	if aoi == nil || g == nil {
		return false
	}
	if !aoi.Bound().Intersects(g.Bound()) {
		return false
	}

	switch v := g.(type) {
	case orb.Point:
		return containsPoint(aoi, v)

	case orb.MultiPoint:
		for _, p := range v {
			if containsPoint(aoi, p) {
				return true
			}
		}
		return false

	case orb.Polygon:
		return polygonIntersects(aoi, v)

	case orb.MultiPolygon:
		for _, p := range v {
			if polygonIntersects(aoi, p) {
				return true
			}
		}
		return false

	case orb.LineString:
		for _, p := range v {
			if containsPoint(aoi, p) {
				return true
			}
		}
		return crossesAOI(aoi, v)

	case orb.MultiLineString:
		for _, ls := range v {
			if Intersects(aoi, ls) {
				return true
			}
		}
		return false

	default:
		return true
	}
}

func polygonIntersects(aoi orb.Geometry, poly orb.Polygon) bool {
	for _, ring := range poly {
		for _, p := range ring {
			if containsPoint(aoi, p) {
				return true
			}
		}
	}
	// The candidate may fully contain the AOI.
	for _, p := range aoiVertices(aoi) {
		if planar.PolygonContains(poly, p) {
			return true
		}
	}
	// Overlap with no vertex inside either shape shows up as ring edges
	// crossing.
	for _, ring := range poly {
		if crossesAOI(aoi, []orb.Point(ring)) {
			return true
		}
	}
	return false
}

// crossesAOI reports whether any segment of the path crosses an AOI
// ring edge.
func crossesAOI(aoi orb.Geometry, path []orb.Point) bool {
	for _, ring := range aoiRings(aoi) {
		for i := 1; i < len(path); i++ {
			for j := 1; j < len(ring); j++ {
				if segmentsCross(path[i-1], path[i], ring[j-1], ring[j]) {
					return true
				}
			}
		}
	}
	return false
}

// segmentsCross reports whether segments ab and cd intersect,
// including endpoint touches and collinear overlap.
func segmentsCross(a, b, c, d orb.Point) bool {
	d1 := side(c, d, a)
	d2 := side(c, d, b)
	d3 := side(a, b, c)
	d4 := side(a, b, d)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && inBox(c, d, a):
		return true
	case d2 == 0 && inBox(c, d, b):
		return true
	case d3 == 0 && inBox(a, b, c):
		return true
	case d4 == 0 && inBox(a, b, d):
		return true
	}
	return false
}

// side is the cross product sign of p relative to the directed segment
// ab: positive left, negative right, zero collinear.
func side(a, b, p orb.Point) float64 {
	return (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
}

// inBox reports whether the collinear point p lies within the bounding
// box of segment ab.
func inBox(a, b, p orb.Point) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}

func containsPoint(aoi orb.Geometry, p orb.Point) bool {
	switch a := aoi.(type) {
	case orb.Polygon:
		return planar.PolygonContains(a, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(a, p)
	case orb.Bound:
		return a.Contains(p)
	default:
		return false
	}
}

func aoiRings(aoi orb.Geometry) []orb.Ring {
	switch a := aoi.(type) {
	case orb.Polygon:
		return a
	case orb.MultiPolygon:
		var rings []orb.Ring
		for _, p := range a {
			rings = append(rings, p...)
		}
		return rings
	}
	return nil
}

func aoiVertices(aoi orb.Geometry) []orb.Point {
	switch a := aoi.(type) {
	case orb.Polygon:
		if len(a) > 0 {
			return a[0]
		}
	case orb.MultiPolygon:
		var pts []orb.Point
		for _, p := range a {
			if len(p) > 0 {
				pts = append(pts, p[0]...)
			}
		}
		return pts
	}
	return nil
}
