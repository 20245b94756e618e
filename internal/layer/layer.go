// Package layer defines the in-memory feature collection model shared by
// the source fetchers, the exporter and the session registry.
package layer

import (
	"sort"

	"github.com/paulmach/orb"
)

// Provenance attribute keys set by the source fetchers.
const (
	AttrSource = "source"
	AttrTileID = "tile_id"
)

// Feature is one geometry plus a flat attribute map. The attribute map
// always carries at least the provenance tag of the source that
// produced it.
type Feature struct {
	Geometry   orb.Geometry
	Attributes map[string]any
}

// Layer is a named, ordered collection of features from one data
// source. Layers are replaced wholesale on re-fetch, never partially
// mutated; exporters only ever read them.
type Layer struct {
	Name     string
	Features []Feature
}

// New returns an empty layer for the given source name.
func New(name string) *Layer {
	return &Layer{Name: name}
}

// Append adds a feature to the layer.
func (l *Layer) Append(f Feature) {
	l.Features = append(l.Features, f)
}

// Count returns the number of features in the layer.
func (l *Layer) Count() int {
	if l == nil {
		return 0
	}
	return len(l.Features)
}

// Empty reports whether the layer holds no features.
func (l *Layer) Empty() bool {
	return l.Count() == 0
}

// GeometryTypes returns the distinct geometry types present in the
// layer, sorted alphabetically.
func (l *Layer) GeometryTypes() []string {
	seen := make(map[string]struct{})
	for _, f := range l.Features {
		if f.Geometry != nil {
			seen[f.Geometry.GeoJSONType()] = struct{}{}
		}
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// AttributeKeys returns the sorted union of attribute names across all
// features.
func (l *Layer) AttributeKeys() []string {
	seen := make(map[string]struct{})
	for _, f := range l.Features {
		for k := range f.Attributes {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
