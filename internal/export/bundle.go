package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"geodump/internal/layer"
)

// BundleMetadata is the metadata.json record written into every bundle.
type BundleMetadata struct {
	ExportDate    string   `json:"export_date"`
	Layers        []string `json:"layers"`
	Format        string   `json:"format"`
	TotalFeatures int      `json:"total_features"`
}

// BuildBundle archives one artifact per non-empty layer plus a metadata
// record. Individual layer export failures are logged and skipped; only
// a failure to construct the archive itself is an error. Layers are
// processed in sorted name order so bundle contents are deterministic.
func BuildBundle(layers map[string]*layer.Layer, format Format, log *slog.Logger) ([]byte, error) {
	names := make([]string, 0, len(layers))
	total := 0
	for name, l := range layers {
		names = append(names, name)
		total += l.Count()
	}
	sort.Strings(names)

	meta := BundleMetadata{
		ExportDate:    time.Now().Format(time.RFC3339),
		Layers:        names,
		Format:        string(format),
		TotalFeatures: total,
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: bundle metadata: %v", ErrExport, err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	mw, err := zw.Create("metadata.json")
	if err != nil {
		return nil, fmt.Errorf("%w: bundle archive: %v", ErrExport, err)
	}
	if _, err := mw.Write(metaJSON); err != nil {
		return nil, fmt.Errorf("%w: bundle archive: %v", ErrExport, err)
	}

	for _, name := range names {
		artifact, err := Export(layers[name], format)
		if err != nil {
			if log != nil {
				log.Warn("skipping layer in bundle", "layer", name, "error", err)
			}
			continue
		}
		if artifact == nil {
			// Empty layer: metadata still lists it, but there is no
			// artifact to pack.
			continue
		}
		fw, err := zw.Create(artifact.Filename)
		if err != nil {
			return nil, fmt.Errorf("%w: bundle archive: %v", ErrExport, err)
		}
		if _, err := fw.Write(artifact.Data); err != nil {
			return nil, fmt.Errorf("%w: bundle archive: %v", ErrExport, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: bundle archive: %v", ErrExport, err)
	}
	return buf.Bytes(), nil
}

// BundleFilename derives the timestamped download name for a bundle.
func BundleFilename(now time.Time) string {
	return "gis_bulk_export_" + now.Format("20060102_150405") + ".zip"
}
