package api

import (
	"context"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"
)

// SSE wraps a Datastar SSE generator with a write lock so concurrent
// fetch goroutines can report progress on one stream.
type SSE struct {
	mu  sync.Mutex
	sse *datastar.ServerSentEventGenerator
}

// NewSSE creates a Datastar SSE helper from a Huma streaming context.
func NewSSE(ctx huma.Context) *SSE {
	r, w := humago.Unwrap(ctx)
	return &SSE{sse: datastar.NewSSE(w, r)}
}

// Signals patches client signals.
func (s *SSE) Signals(signals map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sse.MarshalAndPatchSignals(signals)
}

// Error sends an error signal.
func (s *SSE) Error(msg string) {
	s.Signals(map[string]any{"error": msg})
}

// RegisterFetchStream registers the streaming variant of the batch
// fetch: progress arrives as Datastar signal patches while sources run.
func (h *APIHandler) RegisterFetchStream(api huma.API) {
	huma.Post(api, "/api/v1/fetch/stream", h.StreamFetch, huma.OperationTags("fetch"))
}

// StreamFetch runs a batch fetch and streams per-source progress as
// fetchStatus/fetchProgress signals, finishing with the outcome list.
func (h *APIHandler) StreamFetch(ctx context.Context, input *FetchInput) (*huma.StreamResponse, error) {
	names := input.Body.Sources
	if len(names) == 0 {
		names = h.catalog.Names()
	}

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := NewSSE(humaCtx)
			sse.Signals(map[string]any{"fetchStatus": "Starting fetch...", "fetchProgress": 0})

			onProgress := func(progress int, status string) {
				sse.Signals(map[string]any{"fetchStatus": status, "fetchProgress": progress})
			}

			outcomes, err := h.session.FetchAll(humaCtx.Context(), h.catalog, names, onProgress)
			if err != nil {
				sse.Error(err.Error())
				return
			}

			total := 0
			for _, o := range outcomes {
				total += o.Features
			}
			sse.Signals(map[string]any{
				"fetchStatus":   "Fetch complete",
				"fetchProgress": 100,
				"outcomes":      outcomes,
				"totalFeatures": total,
			})
		},
	}, nil
}
