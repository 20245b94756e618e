package source

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"geodump/internal/layer"
)

// staticFetcher serves datasets that have no live tiled or query API
// behind them. The current boundary provider is a placeholder: it
// returns the AOI centroid as a single named point, keeping the layer
// contract in place until a real boundary dataset is wired in.
//
// TODO: replace the centroid placeholder with the Natural Earth admin-0
// polygons once a stable mirror for the 1:10m archive is chosen.
type staticFetcher struct {
	name string
}

func newStaticFetcher(d Descriptor) *staticFetcher {
	return &staticFetcher{name: d.Name}
}

func (f *staticFetcher) Fetch(ctx context.Context, aoi orb.Geometry, onProgress ProgressFunc) (*layer.Layer, Summary, error) {
	var sum Summary
	if err := ctx.Err(); err != nil {
		return nil, sum, err
	}

	centroid, _ := planar.CentroidArea(aoi)
	l := layer.New(f.name)
	l.Append(layer.Feature{
		Geometry: centroid,
		Attributes: map[string]any{
			"name":           "Sample Country",
			layer.AttrSource: f.name,
		},
	})
	sum.Attempted, sum.Kept = 1, 1

	if onProgress != nil {
		onProgress(100, f.name+": 1 feature")
	}
	return l, sum, nil
}
