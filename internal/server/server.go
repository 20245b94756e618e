// Package server assembles the HTTP server: Huma API over a stdlib
// mux, the source catalog, the session, and the attribute store.
package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"geodump/internal/api"
	"geodump/internal/db"
	"geodump/internal/layer"
	"geodump/internal/logger"
	"geodump/internal/session"
	"geodump/internal/source"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	Catalog string // optional YAML source catalog path; empty uses built-ins
}

// Server is the geodump HTTP server.
type Server struct {
	config  Config
	mux     *http.ServeMux
	humaAPI huma.API
	db      *sql.DB
	session *session.Session
	catalog *source.Catalog
	log     *slog.Logger
}

// New creates a new geodump server.
func New(cfg Config) (*Server, error) {
	log := logger.Setup()
	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("geodump API", api.Version)
	humaConfig.Info.Description = "AOI-driven GIS data retrieval and export: select an area, fetch from tiled, OpenStreetMap, and static sources, export as GeoJSON, CSV, or shapefile."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	catalog, err := source.LoadCatalog(cfg.Catalog, source.Options{})
	if err != nil {
		return nil, fmt.Errorf("loading source catalog: %w", err)
	}

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
		session: session.New(log),
		catalog: catalog,
		log:     log,
	}

	// The attribute store is optional: fetch and export work without it.
	conn, err := db.Get(db.Config{DataDir: cfg.DataDir, DBName: "geodump"})
	if err != nil {
		log.Warn("attribute store unavailable", "error", err)
	} else {
		s.db = conn
		s.session.OnStore(func(name string, l *layer.Layer) {
			if err := db.LoadLayer(conn, name, l); err != nil {
				log.Warn("failed to mirror layer into store", "layer", name, "error", err)
			}
		})
	}

	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI exposes the generated spec for the CLI export command.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Sources returns the configured source descriptors.
func (s *Server) Sources() []source.Descriptor {
	return s.catalog.Descriptors()
}

// Close closes server resources.
func (s *Server) Close() error {
	return db.Close()
}

func (s *Server) routes() {
	handler := api.NewAPIHandler(s.session, s.catalog, s.db, s.log, s.config.DataDir)
	huma.AutoRegister(s.humaAPI, handler)

	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "geodump",
		"status":  "running",
	})
}
