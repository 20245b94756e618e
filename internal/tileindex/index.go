package tileindex

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a loaded index is served before it is
// re-fetched.
const DefaultTTL = time.Hour

// Index is the quadkey-to-URL lookup table for one tiled dataset. The
// remote resource is a CSV with QuadKey and Url columns. The table is
// loaded lazily, shared by all callers, and refreshed after its TTL;
// concurrent first-callers share a single download.
type Index struct {
	url    string
	ttl    time.Duration
	client *http.Client

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]string
	loaded  time.Time
}

// NewIndex creates an index backed by the CSV at url. A nil client
// falls back to http.DefaultClient; ttl <= 0 uses DefaultTTL.
func NewIndex(url string, ttl time.Duration, client *http.Client) *Index {
	if client == nil {
		client = http.DefaultClient
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Index{url: url, ttl: ttl, client: client}
}

// Lookup resolves a quadkey to its resource URL. The boolean is false
// when the key has no entry. An error means the index itself could not
// be loaded; callers treat that as the whole source being unavailable.
func (ix *Index) Lookup(ctx context.Context, quadkey string) (string, bool, error) {
	entries, err := ix.load(ctx)
	if err != nil {
		return "", false, err
	}
	url, ok := entries[quadkey]
	return url, ok, nil
}

// Len returns the number of entries in the loaded index, loading it if
// needed.
func (ix *Index) Len(ctx context.Context) (int, error) {
	entries, err := ix.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (ix *Index) load(ctx context.Context) (map[string]string, error) {
	ix.mu.RLock()
	if ix.entries != nil && time.Since(ix.loaded) < ix.ttl {
		entries := ix.entries
		ix.mu.RUnlock()
		return entries, nil
	}
	ix.mu.RUnlock()

	v, err, _ := ix.group.Do("load", func() (any, error) {
		// Re-check under the flight: another caller may have just
		// refreshed.
		ix.mu.RLock()
		if ix.entries != nil && time.Since(ix.loaded) < ix.ttl {
			entries := ix.entries
			ix.mu.RUnlock()
			return entries, nil
		}
		ix.mu.RUnlock()

		entries, err := ix.fetch(ctx)
		if err != nil {
			return nil, err
		}

		ix.mu.Lock()
		ix.entries = entries
		ix.loaded = time.Now()
		ix.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]string), nil
}

func (ix *Index) fetch(ctx context.Context) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ix.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building index request: %w", err)
	}
	resp, err := ix.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching tile index: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching tile index: status %d", resp.StatusCode)
	}
	return parseIndexCSV(resp.Body)
}

// parseIndexCSV reads the index table, locating the QuadKey and Url
// columns by header name (case-insensitive). Rows with missing cells
// are skipped.
func parseIndexCSV(r io.Reader) (map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading index header: %w", err)
	}
	keyCol, urlCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "quadkey":
			keyCol = i
		case "url":
			urlCol = i
		}
	}
	if keyCol < 0 || urlCol < 0 {
		return nil, fmt.Errorf("index is missing QuadKey/Url columns")
	}

	entries := make(map[string]string)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading index row: %w", err)
		}
		if len(rec) <= keyCol || len(rec) <= urlCol {
			continue
		}
		qk := strings.TrimSpace(rec[keyCol])
		url := strings.TrimSpace(rec[urlCol])
		if qk == "" || url == "" {
			continue
		}
		entries[qk] = url
	}
	return entries, nil
}
