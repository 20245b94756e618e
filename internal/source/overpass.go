package source

import (
	"context"
	"fmt"
	"sort"
	"strings"

	overpass "github.com/cwbudde/go-overpass"
	"github.com/paulmach/orb"

	"geodump/internal/layer"
)

const defaultOverpassURL = "https://overpass-api.de/api/interpreter"

// overpassFetcher queries a tag-filtered feature provider. Spatial
// filtering is delegated: the query carries the AOI outline and the
// provider returns only overlapping elements.
type overpassFetcher struct {
	name   string
	tags   map[string][]string
	client overpass.Client
}

func newOverpassFetcher(d Descriptor, opts Options) *overpassFetcher {
	url := opts.OverpassURL
	if url == "" {
		url = defaultOverpassURL
	}
	return &overpassFetcher{
		name:   d.Name,
		tags:   d.Tags,
		client: overpass.NewWithSettings(url, 1, opts.httpClient()),
	}
}

func (f *overpassFetcher) Fetch(ctx context.Context, aoi orb.Geometry, onProgress ProgressFunc) (*layer.Layer, Summary, error) {
	var sum Summary
	if err := ctx.Err(); err != nil {
		return nil, sum, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	query := buildOverpassQuery(f.tags, aoi)
	if onProgress != nil {
		onProgress(10, fmt.Sprintf("Querying %s", f.name))
	}

	res, err := f.client.Query(query)
	if err != nil {
		return nil, sum, fmt.Errorf("%w: overpass query: %v", ErrSourceUnavailable, err)
	}

	l := layer.New(f.name)
	f.collectNodes(&res, l, &sum)
	f.collectWays(&res, l, &sum)
	// Relation assembly (multipolygon stitching) is not supported;
	// count them as skipped rather than dropping them silently.
	sum.Attempted += len(res.Relations)
	sum.Skipped += len(res.Relations)

	if onProgress != nil {
		onProgress(100, fmt.Sprintf("%s: %d features", f.name, l.Count()))
	}
	return l, sum, nil
}

func (f *overpassFetcher) collectNodes(res *overpass.Result, l *layer.Layer, sum *Summary) {
	for _, n := range res.Nodes {
		// Untagged nodes are way vertices pulled in by recursion.
		if len(n.Tags) == 0 {
			continue
		}
		sum.Attempted++
		attrs := tagAttrs(n.Tags, f.name)
		l.Append(layer.Feature{Geometry: orb.Point{n.Lon, n.Lat}, Attributes: attrs})
		sum.Kept++
	}
}

func (f *overpassFetcher) collectWays(res *overpass.Result, l *layer.Layer, sum *Summary) {
	for _, w := range res.Ways {
		sum.Attempted++
		var ls orb.LineString
		for _, n := range w.Nodes {
			if n == nil {
				continue
			}
			ls = append(ls, orb.Point{n.Lon, n.Lat})
		}
		if len(ls) < 2 {
			sum.Skipped++
			continue
		}

		attrs := tagAttrs(w.Tags, f.name)
		var g orb.Geometry = ls
		if len(ls) >= 4 && ls[0] == ls[len(ls)-1] {
			g = orb.Polygon{orb.Ring(ls)}
		}
		l.Append(layer.Feature{Geometry: g, Attributes: attrs})
		sum.Kept++
	}
}

func tagAttrs(tags map[string]string, sourceName string) map[string]any {
	attrs := make(map[string]any, len(tags)+1)
	for k, v := range tags {
		attrs[k] = v
	}
	attrs[layer.AttrSource] = sourceName
	return attrs
}

// buildOverpassQuery renders the tag filter and AOI outline as Overpass
// QL. Keys are emitted in sorted order so the query for a given
// descriptor and AOI is deterministic.
func buildOverpassQuery(tags map[string][]string, aoi orb.Geometry) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	polys := polyClauses(aoi)

	var b strings.Builder
	b.WriteString("[out:json][timeout:30];\n(\n")
	for _, k := range keys {
		filter := tagFilter(k, tags[k])
		for _, poly := range polys {
			fmt.Fprintf(&b, "  nwr%s(poly:%q);\n", filter, poly)
		}
	}
	b.WriteString(");\nout body;\n>;\nout skel qt;")
	return b.String()
}

func tagFilter(key string, values []string) string {
	if len(values) == 0 {
		return fmt.Sprintf("[%q]", key)
	}
	return fmt.Sprintf("[%q~\"^(%s)$\"]", key, strings.Join(values, "|"))
}

// polyClauses renders each AOI polygon's outer ring as the
// "lat lon lat lon ..." list the poly filter expects.
func polyClauses(aoi orb.Geometry) []string {
	var rings []orb.Ring
	switch v := aoi.(type) {
	case orb.Polygon:
		if len(v) > 0 {
			rings = append(rings, v[0])
		}
	case orb.MultiPolygon:
		for _, p := range v {
			if len(p) > 0 {
				rings = append(rings, p[0])
			}
		}
	default:
		b := aoi.Bound()
		rings = append(rings, orb.Ring{
			b.Min,
			{b.Max[0], b.Min[1]},
			b.Max,
			{b.Min[0], b.Max[1]},
			b.Min,
		})
	}

	clauses := make([]string, 0, len(rings))
	for _, ring := range rings {
		parts := make([]string, 0, len(ring)*2)
		for _, p := range ring {
			parts = append(parts, trimFloat(p[1]), trimFloat(p[0]))
		}
		clauses = append(clauses, strings.Join(parts, " "))
	}
	return clauses
}

func trimFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.7f", f), "0"), ".")
}
