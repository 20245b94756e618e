package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"geodump/internal/layer"
)

// wgs84WKT is the .prj payload for the working reference frame.
const wgs84WKT = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

const dbfFieldWidth = 64

// exportShapefile writes the layer to the shapefile component set
// (.shp, .shx, .dbf, .prj) and zips the components into one artifact.
// A shapefile holds a single shape class, chosen from the layer's first
// geometry; features of another class are skipped.
func exportShapefile(l *layer.Layer) (*Artifact, error) {
	shapeType, err := shapeTypeFor(l)
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "geodump-shp-")
	if err != nil {
		return nil, fmt.Errorf("%w: layer %q: %v", ErrExport, l.Name, err)
	}
	defer os.RemoveAll(tmpDir)

	safe := SafeName(l.Name)
	shpPath := filepath.Join(tmpDir, safe+".shp")

	w, err := shp.Create(shpPath, shapeType)
	if err != nil {
		return nil, fmt.Errorf("%w: layer %q: creating shapefile: %v", ErrExport, l.Name, err)
	}

	attrKeys := l.AttributeKeys()
	fields := make([]shp.Field, len(attrKeys))
	for i, k := range attrKeys {
		fields[i] = shp.StringField(dbfFieldName(k, i), dbfFieldWidth)
	}
	w.SetFields(fields)

	row := 0
	for _, f := range l.Features {
		shape := toShape(f.Geometry, shapeType)
		if shape == nil {
			continue
		}
		w.Write(shape)
		for i, k := range attrKeys {
			val := ""
			if v, ok := f.Attributes[k]; ok && v != nil {
				val = fmt.Sprintf("%v", v)
			}
			w.WriteAttribute(row, i, val)
		}
		row++
	}
	w.Close()

	if row == 0 {
		return nil, fmt.Errorf("%w: layer %q: no geometry matched shape type", ErrExport, l.Name)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, safe+".prj"), []byte(wgs84WKT), 0644); err != nil {
		return nil, fmt.Errorf("%w: layer %q: writing .prj: %v", ErrExport, l.Name, err)
	}

	data, err := zipComponents(tmpDir, safe)
	if err != nil {
		return nil, fmt.Errorf("%w: layer %q: %v", ErrExport, l.Name, err)
	}
	return &Artifact{
		Data:        data,
		Filename:    safe + "_shapefile.zip",
		ContentType: "application/zip",
	}, nil
}

func shapeTypeFor(l *layer.Layer) (shp.ShapeType, error) {
	for _, f := range l.Features {
		switch f.Geometry.(type) {
		case orb.Point, orb.MultiPoint:
			return shp.POINT, nil
		case orb.LineString, orb.MultiLineString:
			return shp.POLYLINE, nil
		case orb.Polygon, orb.MultiPolygon:
			return shp.POLYGON, nil
		}
	}
	return 0, fmt.Errorf("%w: layer %q: no supported geometry", ErrExport, l.Name)
}

// dbfFieldName fits an attribute name into the 10-character DBF limit,
// using the field index to keep truncated names unique.
func dbfFieldName(name string, idx int) string {
	n := strings.ToUpper(name)
	if len(n) <= 10 {
		return n
	}
	suffix := fmt.Sprintf("_%d", idx)
	return n[:10-len(suffix)] + suffix
}

func toShape(g orb.Geometry, want shp.ShapeType) shp.Shape {
	switch want {
	case shp.POINT:
		if p, ok := g.(orb.Point); ok {
			return &shp.Point{X: p[0], Y: p[1]}
		}
		if mp, ok := g.(orb.MultiPoint); ok && len(mp) > 0 {
			return &shp.Point{X: mp[0][0], Y: mp[0][1]}
		}
	case shp.POLYLINE:
		var parts [][]shp.Point
		switch v := g.(type) {
		case orb.LineString:
			parts = append(parts, toShpPoints(v))
		case orb.MultiLineString:
			for _, ls := range v {
				parts = append(parts, toShpPoints(ls))
			}
		}
		if len(parts) > 0 {
			return shp.NewPolyLine(parts)
		}
	case shp.POLYGON:
		var parts [][]shp.Point
		switch v := g.(type) {
		case orb.Polygon:
			parts = ringsToParts(v)
		case orb.MultiPolygon:
			for _, p := range v {
				parts = append(parts, ringsToParts(p)...)
			}
		}
		if len(parts) > 0 {
			pl := shp.NewPolyLine(parts)
			pg := shp.Polygon(*pl)
			return &pg
		}
	}
	return nil
}

func ringsToParts(p orb.Polygon) [][]shp.Point {
	parts := make([][]shp.Point, 0, len(p))
	for _, ring := range p {
		parts = append(parts, toShpPoints(orb.LineString(ring)))
	}
	return parts
}

func toShpPoints(ls orb.LineString) []shp.Point {
	pts := make([]shp.Point, len(ls))
	for i, p := range ls {
		pts[i] = shp.Point{X: p[0], Y: p[1]}
	}
	return pts
}

// zipComponents archives every component sharing the shapefile base
// name (.shp, .shx, .dbf, .prj).
func zipComponents(dir, base string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), base+".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		f, err := zw.Create(e.Name())
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
