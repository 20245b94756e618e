// Package export serializes layers into downloadable artifacts and
// bundles. Artifacts are computed on demand from the layer contents and
// never cached.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb/geojson"

	"geodump/internal/geo"
	"geodump/internal/layer"
)

// ErrExport marks a serialization or archive construction failure. It
// is always scoped to one layer or one bundle; sibling exports proceed.
var ErrExport = errors.New("export failed")

// Format is a target export format.
type Format string

const (
	FormatGeoJSON   Format = "geojson"
	FormatCSV       Format = "csv"
	FormatShapefile Format = "shapefile"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatGeoJSON:
		return FormatGeoJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatShapefile:
		return FormatShapefile, nil
	}
	return "", fmt.Errorf("%w: export format %q", geo.ErrUnsupportedFormat, s)
}

// Artifact is one exported layer: payload, download filename and
// content type.
type Artifact struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Export serializes a layer. Empty layers produce no artifact and no
// error: the caller decides whether "nothing to export" matters.
func Export(l *layer.Layer, format Format) (*Artifact, error) {
	if l == nil || l.Empty() {
		return nil, nil
	}

	switch format {
	case FormatGeoJSON:
		return exportGeoJSON(l)
	case FormatCSV:
		return exportCSV(l)
	case FormatShapefile:
		return exportShapefile(l)
	}
	return nil, fmt.Errorf("%w: export format %q", geo.ErrUnsupportedFormat, format)
}

// SafeName derives the artifact base name from a layer name: lower
// case, with spaces and path separators replaced by underscores.
func SafeName(name string) string {
	s := strings.ToLower(name)
	for _, r := range []string{" ", "/", "\\"} {
		s = strings.ReplaceAll(s, r, "_")
	}
	return s
}

func exportGeoJSON(l *layer.Layer) (*Artifact, error) {
	fc := geojson.NewFeatureCollection()
	for _, f := range l.Features {
		gf := geojson.NewFeature(f.Geometry)
		for k, v := range f.Attributes {
			gf.Properties[k] = v
		}
		fc.Append(gf)
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("%w: layer %q to geojson: %v", ErrExport, l.Name, err)
	}
	return &Artifact{
		Data:        data,
		Filename:    SafeName(l.Name) + ".geojson",
		ContentType: "application/geo+json",
	}, nil
}

// exportCSV writes attributes only; the geometry column is dropped.
// Headers are the sorted union of attribute names so column order is
// stable across exports.
func exportCSV(l *layer.Layer) (*Artifact, error) {
	headers := l.AttributeKeys()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("%w: layer %q csv header: %v", ErrExport, l.Name, err)
	}
	row := make([]string, len(headers))
	for _, f := range l.Features {
		for i, h := range headers {
			if v, ok := f.Attributes[h]; ok && v != nil {
				row[i] = fmt.Sprintf("%v", v)
			} else {
				row[i] = ""
			}
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("%w: layer %q csv row: %v", ErrExport, l.Name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("%w: layer %q csv: %v", ErrExport, l.Name, err)
	}

	return &Artifact{
		Data:        buf.Bytes(),
		Filename:    SafeName(l.Name) + ".csv",
		ContentType: "text/csv",
	}, nil
}
