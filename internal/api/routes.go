// Package api defines the Huma API routes and handlers.
package api

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"geodump/internal/db"
	"geodump/internal/export"
	"geodump/internal/geo"
	"geodump/internal/layer"
	"geodump/internal/logger"
	"geodump/internal/session"
	"geodump/internal/source"
)

// Version is reported by the health and info endpoints.
const Version = "1.0.0"

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	session *session.Session
	catalog *source.Catalog
	db      *sql.DB
	log     *slog.Logger
	dataDir string
}

func NewAPIHandler(s *session.Session, c *source.Catalog, db *sql.DB, log *slog.Logger, dataDir string) *APIHandler {
	if log == nil {
		log = logger.L()
	}
	return &APIHandler{session: s, catalog: c, db: db, log: log, dataDir: dataDir}
}

// Types

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type InfoBody struct {
	Name    string `json:"name" doc:"Service name"`
	Version string `json:"version" doc:"Service version"`
	DataDir string `json:"data_dir" doc:"Data directory path"`
	DB      bool   `json:"db" doc:"Whether the attribute store is available"`
	Sources int    `json:"sources" doc:"Number of configured sources"`
}

type AOIBody struct {
	Set          bool    `json:"set" doc:"Whether an AOI is selected"`
	GeometryType string  `json:"geometry_type,omitempty" doc:"GeoJSON geometry type of the AOI"`
	AreaKm2      float64 `json:"area_km2,omitempty" doc:"Approximate AOI area in square kilometers"`
	Epoch        uint64  `json:"epoch" doc:"AOI generation counter"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type LayerSummary struct {
	Name          string   `json:"name" doc:"Source name the layer was fetched from"`
	Features      int      `json:"features" doc:"Feature count"`
	GeometryTypes []string `json:"geometry_types" doc:"Distinct geometry types"`
	Attributes    []string `json:"attributes" doc:"Attribute names after normalization"`
}

type FetchInput struct {
	Body struct {
		Sources []string `json:"sources,omitempty" doc:"Source names to fetch; empty means all configured sources"`
	}
}

type FetchBody struct {
	Outcomes []session.Outcome `json:"outcomes" doc:"Per-source fetch results in request order"`
}

// ArtifactOutput carries a raw export payload.
type ArtifactOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// Routes

func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

func (h *APIHandler) RegisterAOI(api huma.API) {
	huma.Get(api, "/api/v1/aoi", h.GetAOI, huma.OperationTags("aoi"))
	huma.Put(api, "/api/v1/aoi", h.PutAOI, huma.OperationTags("aoi"))
	huma.Post(api, "/api/v1/aoi/upload", h.UploadAOI, huma.OperationTags("aoi"))
}

func (h *APIHandler) RegisterFetch(api huma.API) {
	huma.Post(api, "/api/v1/fetch", h.PostFetch, huma.OperationTags("fetch"))
}

func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{name}/export", h.ExportLayer, huma.OperationTags("layers"))
	huma.Delete(api, "/api/v1/layers", h.ClearLayers, huma.OperationTags("layers"))
}

func (h *APIHandler) RegisterBundle(api huma.API) {
	huma.Post(api, "/api/v1/bundle", h.PostBundle, huma.OperationTags("export"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:    "geodump",
		Version: Version,
		DataDir: h.dataDir,
		DB:      h.db != nil,
		Sources: len(h.catalog.Names()),
	}}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []source.Descriptor }, error) {
	return &struct{ Body []source.Descriptor }{Body: h.catalog.Descriptors()}, nil
}

func (h *APIHandler) GetAOI(ctx context.Context, input *struct{}) (*struct{ Body AOIBody }, error) {
	body := AOIBody{Epoch: h.session.Epoch()}
	if aoi, ok := h.session.AOI(); ok {
		body.Set = true
		body.GeometryType = string(aoi.GeoJSONType())
		body.AreaKm2 = geo.ApproxAreaKm2(aoi)
	}
	return &struct{ Body AOIBody }{Body: body}, nil
}

// PutAOI replaces the AOI from a GeoJSON payload. The previous AOI and
// any in-flight fetches against it are invalidated.
func (h *APIHandler) PutAOI(ctx context.Context, input *struct {
	RawBody []byte `contentType:"application/geo+json"`
}) (*struct{ Body AOIBody }, error) {
	aoi, err := geo.FromGeoJSON(input.RawBody)
	if err != nil {
		return nil, mapGeoError(err)
	}
	h.session.SetAOI(aoi)
	h.log.Info("AOI set", "type", aoi.GeoJSONType(), "area_km2", geo.ApproxAreaKm2(aoi))
	return h.GetAOI(ctx, nil)
}

// UploadAOI replaces the AOI from an uploaded file. Zipped shapefiles
// are detected by the archive magic bytes; everything else is parsed as
// GeoJSON.
func (h *APIHandler) UploadAOI(ctx context.Context, input *struct {
	RawBody []byte `contentType:"application/octet-stream"`
}) (*struct{ Body AOIBody }, error) {
	var (
		aoi orb.Geometry
		err error
	)
	if bytes.HasPrefix(input.RawBody, []byte("PK")) {
		aoi, err = geo.FromShapefileZip(input.RawBody)
	} else {
		aoi, err = geo.FromGeoJSON(input.RawBody)
	}
	if err != nil {
		return nil, mapGeoError(err)
	}
	h.session.SetAOI(aoi)
	h.log.Info("AOI uploaded", "type", aoi.GeoJSONType(), "area_km2", geo.ApproxAreaKm2(aoi))
	return h.GetAOI(ctx, nil)
}

func (h *APIHandler) PostFetch(ctx context.Context, input *FetchInput) (*struct{ Body FetchBody }, error) {
	names := input.Body.Sources
	if len(names) == 0 {
		names = h.catalog.Names()
	}
	outcomes, err := h.session.FetchAll(ctx, h.catalog, names, nil)
	if err != nil {
		return nil, mapGeoError(err)
	}
	return &struct{ Body FetchBody }{Body: FetchBody{Outcomes: outcomes}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*struct{ Body []LayerSummary }, error) {
	layers := h.session.Layers()
	summaries := make([]LayerSummary, 0, len(layers))
	for _, name := range h.catalog.Names() {
		l, ok := layers[name]
		if !ok {
			continue
		}
		summaries = append(summaries, summarize(name, l))
	}
	return &struct{ Body []LayerSummary }{Body: summaries}, nil
}

func (h *APIHandler) ExportLayer(ctx context.Context, input *struct {
	Name   string `path:"name" doc:"Layer name" example:"Microsoft Buildings"`
	Format string `query:"format" default:"geojson" doc:"Export format: geojson, csv, or shapefile"`
}) (*ArtifactOutput, error) {
	format, err := export.ParseFormat(input.Format)
	if err != nil {
		return nil, mapGeoError(err)
	}
	l, ok := h.session.Layer(input.Name)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("layer %q not loaded", input.Name))
	}
	artifact, err := export.Export(l, format)
	if err != nil {
		return nil, huma.Error500InternalServerError("export failed", err)
	}
	if artifact == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("layer %q is empty", input.Name))
	}
	return &ArtifactOutput{
		ContentType:        artifact.ContentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", artifact.Filename),
		Body:               artifact.Data,
	}, nil
}

func (h *APIHandler) PostBundle(ctx context.Context, input *struct {
	Body struct {
		Format string `json:"format" default:"geojson" doc:"Export format for every layer in the bundle"`
	}
}) (*ArtifactOutput, error) {
	format, err := export.ParseFormat(input.Body.Format)
	if err != nil {
		return nil, mapGeoError(err)
	}
	layers := h.session.Layers()
	if len(layers) == 0 {
		return nil, huma.Error404NotFound("no layers loaded")
	}
	data, err := export.BuildBundle(layers, format, h.log)
	if err != nil {
		return nil, huma.Error500InternalServerError("bundle failed", err)
	}
	return &ArtifactOutput{
		ContentType:        "application/zip",
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", export.BundleFilename(time.Now())),
		Body:               data,
	}, nil
}

func (h *APIHandler) ClearLayers(ctx context.Context, input *struct{}) (*struct{ Body MessageBody }, error) {
	h.session.Clear()
	if h.db != nil {
		if err := db.DropLayerTables(h.db); err != nil {
			h.log.Warn("failed to drop layer tables", "error", err)
		}
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Layers cleared"}}, nil
}

// Helpers

func summarize(name string, l *layer.Layer) LayerSummary {
	return LayerSummary{
		Name:          name,
		Features:      l.Count(),
		GeometryTypes: l.GeometryTypes(),
		Attributes:    l.AttributeKeys(),
	}
}

// mapGeoError translates domain sentinels into HTTP status errors.
func mapGeoError(err error) error {
	switch {
	case errors.Is(err, geo.ErrUnsupportedFormat):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, geo.ErrInvalidInput):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, source.ErrSourceUnavailable):
		return huma.Error502BadGateway(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
