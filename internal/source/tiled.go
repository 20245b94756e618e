package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"geodump/internal/geo"
	"geodump/internal/layer"
	"geodump/internal/tileindex"
)

// tiledFetcher pulls quadkey-partitioned NDJSON resources. Tiles are
// fetched sequentially to stay polite to the provider and to allow
// per-tile progress reporting.
type tiledFetcher struct {
	name   string
	index  *tileindex.Index
	client *http.Client
	zoom   maptile.Zoom
	cap    int
}

func newTiledFetcher(d Descriptor, opts Options) *tiledFetcher {
	zoom := tileindex.DefaultZoom
	if opts.TileZoom > 0 {
		zoom = maptile.Zoom(opts.TileZoom)
	}
	client := opts.httpClient()
	return &tiledFetcher{
		name:   d.Name,
		index:  tileindex.NewIndex(d.IndexURL, opts.IndexTTL, client),
		client: client,
		zoom:   zoom,
		cap:    opts.tileCap(),
	}
}

// tileRecord is one NDJSON line: a GeoJSON-style record with a geometry
// field and arbitrary scalar properties.
type tileRecord struct {
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties map[string]any    `json:"properties"`
}

func (f *tiledFetcher) Fetch(ctx context.Context, aoi orb.Geometry, onProgress ProgressFunc) (*layer.Layer, Summary, error) {
	var sum Summary

	keys := tileindex.Cover(aoi.Bound(), f.zoom)
	sum.TilesRequested = len(keys)
	if len(keys) > f.cap {
		keys = keys[:f.cap]
	}

	l := layer.New(f.name)
	for i, qk := range keys {
		if err := ctx.Err(); err != nil {
			return nil, sum, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		if onProgress != nil {
			onProgress((i*100)/len(keys), fmt.Sprintf("Fetching tile %d/%d", i+1, len(keys)))
		}

		url, ok, err := f.index.Lookup(ctx, qk)
		if err != nil {
			// The index is the only hard dependency of this strategy.
			return nil, sum, fmt.Errorf("%w: loading tile index: %v", ErrSourceUnavailable, err)
		}
		if !ok {
			continue
		}

		if err := f.fetchTile(ctx, url, qk, aoi, l, &sum); err != nil {
			// One bad tile never aborts the fetch.
			sum.Skipped++
			continue
		}
		sum.TilesFetched++
	}
	if onProgress != nil {
		onProgress(100, fmt.Sprintf("%s: %d features", f.name, l.Count()))
	}

	return l, sum, nil
}

func (f *tiledFetcher) fetchTile(ctx context.Context, url, quadkey string, aoi orb.Geometry, l *layer.Layer, sum *Summary) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tile %s: status %d", quadkey, resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		sum.Attempted++

		var rec tileRecord
		if err := json.Unmarshal(line, &rec); err != nil || rec.Geometry == nil {
			sum.Skipped++
			continue
		}
		g := rec.Geometry.Geometry()
		if !geo.Intersects(aoi, g) {
			continue
		}

		attrs := make(map[string]any, len(rec.Properties)+2)
		for k, v := range rec.Properties {
			attrs[k] = v
		}
		attrs[layer.AttrSource] = f.name
		attrs[layer.AttrTileID] = quadkey
		l.Append(layer.Feature{Geometry: g, Attributes: attrs})
		sum.Kept++
	}
	return sc.Err()
}
