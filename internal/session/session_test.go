package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"geodump/internal/geo"
	"geodump/internal/layer"
	"geodump/internal/source"
)

var testAOI = orb.Geometry(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}})

type stubFetcher struct {
	fn func(ctx context.Context, aoi orb.Geometry, onProgress source.ProgressFunc) (*layer.Layer, source.Summary, error)
}

func (s stubFetcher) Fetch(ctx context.Context, aoi orb.Geometry, onProgress source.ProgressFunc) (*layer.Layer, source.Summary, error) {
	return s.fn(ctx, aoi, onProgress)
}

type stubResolver map[string]source.Fetcher

func (r stubResolver) Fetcher(name string) (source.Fetcher, bool) {
	f, ok := r[name]
	return f, ok
}

func fixedLayer(name string, n int) stubFetcher {
	return stubFetcher{fn: func(ctx context.Context, aoi orb.Geometry, onProgress source.ProgressFunc) (*layer.Layer, source.Summary, error) {
		l := layer.New(name)
		for i := 0; i < n; i++ {
			l.Append(layer.Feature{
				Geometry:   orb.Point{float64(i), float64(i)},
				Attributes: map[string]any{layer.AttrSource: name},
			})
		}
		return l, source.Summary{Attempted: n, Kept: n}, nil
	}}
}

func TestFetchAllRequiresAOI(t *testing.T) {
	s := New(nil)
	_, err := s.FetchAll(context.Background(), stubResolver{}, []string{"a"}, nil)
	if !errors.Is(err, ErrNoAOI) {
		t.Fatalf("err = %v, want ErrNoAOI", err)
	}
	if !errors.Is(err, geo.ErrInvalidInput) {
		t.Error("ErrNoAOI should wrap the invalid-input sentinel")
	}
}

func TestFetchAllPartialFailure(t *testing.T) {
	resolver := stubResolver{
		"roads": fixedLayer("roads", 2),
		"down": stubFetcher{fn: func(ctx context.Context, aoi orb.Geometry, onProgress source.ProgressFunc) (*layer.Layer, source.Summary, error) {
			return nil, source.Summary{}, source.ErrSourceUnavailable
		}},
	}

	s := New(nil)
	s.SetAOI(testAOI)

	outcomes, err := s.FetchAll(context.Background(), resolver, []string{"roads", "down", "missing"}, nil)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}

	// Outcomes come back in request order regardless of completion order.
	if outcomes[0].Source != "roads" || outcomes[0].Features != 2 || outcomes[0].Error != "" {
		t.Errorf("roads outcome = %+v", outcomes[0])
	}
	if outcomes[1].Source != "down" || outcomes[1].Error == "" {
		t.Errorf("down outcome = %+v", outcomes[1])
	}
	if outcomes[2].Source != "missing" || !strings.Contains(outcomes[2].Error, "unknown source") {
		t.Errorf("missing outcome = %+v", outcomes[2])
	}

	// Only the successful source lands in the registry.
	layers := s.Layers()
	if len(layers) != 1 {
		t.Fatalf("registry holds %d layers, want 1", len(layers))
	}
	if l, ok := s.Layer("roads"); !ok || l.Count() != 2 {
		t.Errorf("roads layer = %v, %v", l, ok)
	}
}

func TestFetchAllDropsEmptyLayers(t *testing.T) {
	s := New(nil)
	s.SetAOI(testAOI)

	outcomes, err := s.FetchAll(context.Background(), stubResolver{"empty": fixedLayer("empty", 0)}, []string{"empty"}, nil)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if outcomes[0].Features != 0 || outcomes[0].Error != "" {
		t.Errorf("outcome = %+v", outcomes[0])
	}
	if len(s.Layers()) != 0 {
		t.Error("empty layers must not be stored")
	}
}

func TestFetchAllDiscardsStaleEpoch(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	slow := stubFetcher{fn: func(ctx context.Context, aoi orb.Geometry, onProgress source.ProgressFunc) (*layer.Layer, source.Summary, error) {
		close(entered)
		<-release
		l := layer.New("slow")
		l.Append(layer.Feature{Geometry: orb.Point{0, 0}, Attributes: map[string]any{layer.AttrSource: "slow"}})
		return l, source.Summary{Attempted: 1, Kept: 1}, nil
	}}

	s := New(nil)
	s.SetAOI(testAOI)

	done := make(chan []Outcome)
	go func() {
		outcomes, _ := s.FetchAll(context.Background(), stubResolver{"slow": slow}, []string{"slow"}, nil)
		done <- outcomes
	}()

	// FetchAll snapshots the AOI and epoch before dispatching fetchers,
	// so once the stub has been entered the snapshot is taken. Replace
	// the AOI while the fetch is in flight, then let it finish.
	<-entered
	s.SetAOI(orb.Polygon{{{5, 5}, {6, 5}, {6, 6}, {5, 6}, {5, 5}}})
	close(release)

	outcomes := <-done
	if len(outcomes) != 1 || outcomes[0].Error != "" {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	if len(s.Layers()) != 0 {
		t.Error("result fetched against a replaced AOI must be discarded")
	}
}

func TestStoreHook(t *testing.T) {
	var hookName string
	var hookCount int

	s := New(nil)
	s.OnStore(func(name string, l *layer.Layer) {
		hookName = name
		hookCount = l.Count()
	})
	s.SetAOI(testAOI)

	if _, err := s.FetchAll(context.Background(), stubResolver{"roads": fixedLayer("roads", 3)}, []string{"roads"}, nil); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if hookName != "roads" || hookCount != 3 {
		t.Errorf("hook saw %q/%d, want roads/3", hookName, hookCount)
	}
}

func TestClear(t *testing.T) {
	s := New(nil)
	s.SetAOI(testAOI)
	if _, err := s.FetchAll(context.Background(), stubResolver{"roads": fixedLayer("roads", 1)}, []string{"roads"}, nil); err != nil {
		t.Fatal(err)
	}
	s.Clear()
	if len(s.Layers()) != 0 {
		t.Error("Clear should drop all layers")
	}
	// The AOI survives a clear.
	if _, ok := s.AOI(); !ok {
		t.Error("Clear must not drop the AOI")
	}
}
