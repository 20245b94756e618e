package geo

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-shapefile"
)

// FromShapefileZip extracts an AOI from an uploaded zip containing a
// shapefile bundle (.shp plus its sidecars). All record geometries are
// merged into one AOI. A zip without a .shp member fails with
// ErrUnsupportedFormat; a readable bundle without polygon geometry
// fails with ErrInvalidInput.
func FromShapefileZip(data []byte) (orb.Geometry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hasSHP := false
	prj := ""
	for _, f := range zr.File {
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".shp":
			hasSHP = true
		case ".prj":
			if rc, err := f.Open(); err == nil {
				if b, err := io.ReadAll(io.LimitReader(rc, 1<<16)); err == nil {
					prj = string(b)
				}
				rc.Close()
			}
		}
	}
	if !hasSHP {
		return nil, fmt.Errorf("%w: no .shp member in upload", ErrUnsupportedFormat)
	}

	mercator, err := classifyPRJ(prj)
	if err != nil {
		return nil, err
	}

	sf, err := shapefile.ReadZipReader(zr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: reading shapefile: %v", ErrInvalidInput, err)
	}

	var geoms []orb.Geometry
	for i := 0; i < sf.NumRecords(); i++ {
		_, g := sf.Record(i)
		og := geomToOrb(g)
		if og == nil {
			continue
		}
		if mercator {
			og = project.Geometry(og, project.Mercator.ToWGS84)
		}
		geoms = append(geoms, og)
	}

	return Union(geoms)
}

// classifyPRJ decides whether the declared reference frame needs
// unprojecting. Geographic WGS84 passes through, Web Mercator is
// unprojected; anything else is outside the working frame and rejected
// rather than silently misinterpreted. A missing .prj is treated as
// already being in the working frame.
func classifyPRJ(prj string) (mercator bool, err error) {
	if prj == "" {
		return false, nil
	}
	upper := strings.ToUpper(prj)
	switch {
	case strings.Contains(upper, "MERCATOR"):
		return true, nil
	case strings.HasPrefix(strings.TrimSpace(upper), "GEOGCS"),
		strings.Contains(upper, "WGS_1984"),
		strings.Contains(upper, "WGS 84"):
		return false, nil
	default:
		return false, fmt.Errorf("%w: unsupported coordinate reference system in .prj", ErrUnsupportedFormat)
	}
}

// geomToOrb converts a go-geom geometry into the orb model used
// everywhere else. Unsupported types map to nil and are skipped.
func geomToOrb(g geom.T) orb.Geometry {
	switch v := g.(type) {
	case *geom.Point:
		return coordToPoint(v.Coords())
	case *geom.MultiPoint:
		var mp orb.MultiPoint
		for _, c := range v.Coords() {
			mp = append(mp, coordToPoint(c))
		}
		return mp
	case *geom.LineString:
		return coordsToLine(v.Coords())
	case *geom.MultiLineString:
		var mls orb.MultiLineString
		for i := 0; i < v.NumLineStrings(); i++ {
			mls = append(mls, coordsToLine(v.LineString(i).Coords()))
		}
		return mls
	case *geom.Polygon:
		return polygonToOrb(v)
	case *geom.MultiPolygon:
		var mp orb.MultiPolygon
		for i := 0; i < v.NumPolygons(); i++ {
			mp = append(mp, polygonToOrb(v.Polygon(i)))
		}
		return mp
	default:
		return nil
	}
}

func polygonToOrb(p *geom.Polygon) orb.Polygon {
	var poly orb.Polygon
	for i := 0; i < p.NumLinearRings(); i++ {
		var ring orb.Ring
		for _, c := range p.LinearRing(i).Coords() {
			ring = append(ring, coordToPoint(c))
		}
		poly = append(poly, ring)
	}
	return poly
}

func coordsToLine(coords []geom.Coord) orb.LineString {
	var ls orb.LineString
	for _, c := range coords {
		ls = append(ls, coordToPoint(c))
	}
	return ls
}

func coordToPoint(c geom.Coord) orb.Point {
	return orb.Point{c.X(), c.Y()}
}
