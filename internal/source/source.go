// Package source implements the per-provider fetch strategies. Each
// strategy turns an AOI geometry into a layer of intersecting features;
// the strategy for a source is picked once from its descriptor, not by
// string dispatch at fetch time.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/paulmach/orb"

	"geodump/internal/layer"
)

// ErrSourceUnavailable marks a source that failed entirely: its index
// could not be loaded or its query provider errored. Per-tile and
// per-record failures never surface as this; they are counted in the
// fetch summary instead.
var ErrSourceUnavailable = errors.New("source unavailable")

// Kind selects the fetch strategy for a source.
type Kind string

const (
	// KindTiled fetches quadkey-partitioned NDJSON resources resolved
	// through a remote tile index.
	KindTiled Kind = "tiled"
	// KindOverpass queries a tag-filtered feature provider that does
	// its own spatial filtering.
	KindOverpass Kind = "overpass"
	// KindStatic serves a fixed or locally derived feature set.
	KindStatic Kind = "static"
)

// Descriptor configures one data source. Tags apply to overpass
// sources: an empty value list means "key must be present", a non-empty
// list means "key must match one of these values".
type Descriptor struct {
	Name        string              `yaml:"name" json:"name"`
	Kind        Kind                `yaml:"kind" json:"kind"`
	Description string              `yaml:"description,omitempty" json:"description,omitempty"`
	IndexURL    string              `yaml:"indexUrl,omitempty" json:"indexUrl,omitempty"`
	Tags        map[string][]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Validate checks that the descriptor is complete for its kind.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("source has no name")
	}
	switch d.Kind {
	case KindTiled:
		if d.IndexURL == "" {
			return fmt.Errorf("source %q: tiled source needs an indexUrl", d.Name)
		}
	case KindOverpass:
		if len(d.Tags) == 0 {
			return fmt.Errorf("source %q: overpass source needs tags", d.Name)
		}
	case KindStatic:
	default:
		return fmt.Errorf("source %q: unknown kind %q", d.Name, d.Kind)
	}
	return nil
}

// Summary counts what happened during one fetch. TilesRequested may
// exceed TilesFetched when the AOI covers more tiles than the fetch
// cap; callers surface that discrepancy rather than hiding it.
type Summary struct {
	TilesRequested int `json:"tilesRequested,omitempty"`
	TilesFetched   int `json:"tilesFetched,omitempty"`
	Attempted      int `json:"attempted"`
	Kept           int `json:"kept"`
	Skipped        int `json:"skipped"`
}

// ProgressFunc receives coarse progress updates during a fetch.
type ProgressFunc func(progress int, status string)

// Fetcher is the single contract all strategies satisfy. Fetch never
// fails on partial remote trouble; it returns ErrSourceUnavailable only
// when the whole source is unusable. An empty layer means zero features
// intersected the AOI.
type Fetcher interface {
	Fetch(ctx context.Context, aoi orb.Geometry, onProgress ProgressFunc) (*layer.Layer, Summary, error)
}

// Options tunes fetcher construction. Zero values pick the defaults
// documented on each field.
type Options struct {
	// HTTPClient is used for tile and index downloads. Defaults to a
	// client with Timeout.
	HTTPClient *http.Client
	// Timeout bounds every individual remote call. Default 30s.
	Timeout time.Duration
	// TileZoom is the quadkey partition level. Default tileindex.DefaultZoom.
	TileZoom int
	// TileCap bounds how many tiles one fetch downloads. Default 10.
	TileCap int
	// IndexTTL is the tile index cache lifetime. Default 1h.
	IndexTTL time.Duration
	// OverpassURL overrides the Overpass API endpoint.
	OverpassURL string
}

const (
	defaultTimeout = 30 * time.Second
	defaultTileCap = 10
)

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return defaultTimeout
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: o.timeout()}
}

func (o Options) tileCap() int {
	if o.TileCap > 0 {
		return o.TileCap
	}
	return defaultTileCap
}

// NewFetcher builds the strategy implementation for a descriptor.
func NewFetcher(d Descriptor, opts Options) (Fetcher, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	switch d.Kind {
	case KindTiled:
		return newTiledFetcher(d, opts), nil
	case KindOverpass:
		return newOverpassFetcher(d, opts), nil
	case KindStatic:
		return newStaticFetcher(d), nil
	}
	return nil, fmt.Errorf("source %q: unknown kind %q", d.Name, d.Kind)
}
