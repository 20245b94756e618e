// Package session holds the per-interaction retrieval state: the
// current AOI, its epoch, and the registry of loaded layers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"

	"geodump/internal/geo"
	"geodump/internal/layer"
	"geodump/internal/logger"
	"geodump/internal/source"
)

// ErrNoAOI is returned when a fetch is requested before an AOI exists.
var ErrNoAOI = fmt.Errorf("%w: no AOI selected", geo.ErrInvalidInput)

// Outcome is the per-source result of a batch fetch. Partial success is
// the normal case: a failed source reports its error here and never
// blocks the others.
type Outcome struct {
	Source   string         `json:"source"`
	Features int            `json:"features"`
	Summary  source.Summary `json:"summary"`
	Error    string         `json:"error,omitempty"`
}

// StoreHook observes every layer merged into the registry. Used to
// mirror layer attributes into the query store.
type StoreHook func(name string, l *layer.Layer)

// FetcherResolver resolves source names to fetchers. Satisfied by
// source.Catalog.
type FetcherResolver interface {
	Fetcher(name string) (source.Fetcher, bool)
}

// Session is the retrieval session state. The AOI is replaced
// wholesale, never edited; each replacement bumps the epoch so results
// from fetches that started against an older AOI are discarded instead
// of merged.
type Session struct {
	log *slog.Logger

	mu     sync.Mutex
	aoi    orb.Geometry
	epoch  uint64
	layers map[string]*layer.Layer

	onStore StoreHook
}

// New creates an empty session. A nil logger falls back to the shared
// default.
func New(log *slog.Logger) *Session {
	if log == nil {
		log = logger.L()
	}
	return &Session{log: log, layers: make(map[string]*layer.Layer)}
}

// OnStore registers a hook called whenever a layer lands in the
// registry. Must be set before fetching starts.
func (s *Session) OnStore(h StoreHook) {
	s.onStore = h
}

// SetAOI atomically replaces the AOI and invalidates in-flight fetches.
func (s *Session) SetAOI(g orb.Geometry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aoi = g
	s.epoch++
}

// AOI returns the current AOI, if any.
func (s *Session) AOI() (orb.Geometry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aoi, s.aoi != nil
}

// Epoch returns the current AOI generation.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Layer returns one loaded layer by source name.
func (s *Session) Layer(name string) (*layer.Layer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers[name]
	return l, ok
}

// Layers returns a snapshot of the loaded-layer registry.
func (s *Session) Layers() map[string]*layer.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*layer.Layer, len(s.layers))
	for k, v := range s.layers {
		out[k] = v
	}
	return out
}

// Clear drops all loaded layers.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers = make(map[string]*layer.Layer)
}

// FetchAll runs one fetch per selected source concurrently and merges
// the results. Each fetcher's internal remote calls stay sequential;
// only the per-source tasks run in parallel. Results are collected and
// merged on this goroutine, and merges are keyed by the AOI epoch
// captured at dispatch: if the AOI changed mid-fetch, stale layers are
// dropped rather than mixed into the new AOI's registry.
func (s *Session) FetchAll(ctx context.Context, catalog FetcherResolver, names []string, onProgress source.ProgressFunc) ([]Outcome, error) {
	s.mu.Lock()
	aoi := s.aoi
	epoch := s.epoch
	s.mu.Unlock()
	if aoi == nil {
		return nil, ErrNoAOI
	}

	type result struct {
		idx     int
		name    string
		layer   *layer.Layer
		summary source.Summary
		err     error
	}

	results := make(chan result, len(names))
	launched := 0
	outcomes := make([]Outcome, len(names))

	for i, name := range names {
		f, ok := catalog.Fetcher(name)
		if !ok {
			outcomes[i] = Outcome{Source: name, Error: fmt.Sprintf("unknown source %q", name)}
			continue
		}
		launched++
		go func(idx int, name string, f source.Fetcher) {
			l, sum, err := f.Fetch(ctx, aoi, onProgress)
			results <- result{idx: idx, name: name, layer: l, summary: sum, err: err}
		}(i, name, f)
	}

	for n := 0; n < launched; n++ {
		r := <-results
		out := Outcome{Source: r.name, Summary: r.summary}
		switch {
		case r.err != nil:
			out.Error = r.err.Error()
			if !errors.Is(r.err, source.ErrSourceUnavailable) {
				out.Error = source.ErrSourceUnavailable.Error() + ": " + r.err.Error()
			}
			s.log.Warn("source fetch failed", "source", r.name, "error", r.err)
		default:
			normalized := layer.Normalize(r.layer)
			out.Features = normalized.Count()
			if normalized.Count() > 0 {
				if s.store(epoch, r.name, normalized) {
					s.log.Info("source fetched", "source", r.name, "features", normalized.Count(),
						"tiles_requested", r.summary.TilesRequested, "tiles_fetched", r.summary.TilesFetched,
						"skipped", r.summary.Skipped)
				} else {
					s.log.Info("discarding stale fetch result", "source", r.name, "epoch", epoch)
				}
			} else {
				s.log.Info("source returned no data", "source", r.name)
			}
		}
		outcomes[r.idx] = out
	}

	return outcomes, nil
}

// store merges a fetched layer if the AOI epoch is still current.
func (s *Session) store(epoch uint64, name string, l *layer.Layer) bool {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	s.layers[name] = l
	hook := s.onStore
	s.mu.Unlock()

	if hook != nil {
		hook(name, l)
	}
	return true
}
