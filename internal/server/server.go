// Package server exposes the conversion service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/gridconv/internal/convert"
	"github.com/sells-group/gridconv/internal/geometry"
	"github.com/sells-group/gridconv/internal/griddata"
	"github.com/sells-group/gridconv/internal/tileid"
)

// maxBody bounds request bodies (footprint WKT can be large).
const maxBody = 4 << 20

// Converter is the part of convert.Service the handlers use.
type Converter interface {
	FootprintForWrsTile(ctx context.Context, pathrow string) (*convert.Footprint, error)
	FootprintForMgrsTile(ctx context.Context, id string) (*convert.Footprint, error)
	GzdIntersections(ctx context.Context, footprintWKT string) ([]string, error)
	Mgrs100kmIntersections(ctx context.Context, footprintWKT, zone string) ([]string, error)
	AllMgrsIntersections(ctx context.Context, footprintWKT string) ([]string, error)
	WrsIntersections(ctx context.Context, footprintWKT string) ([]string, error)
	ConvertWrsToMgrs(ctx context.Context, pathrow string) ([]string, error)
	ConvertMgrsToWrs(ctx context.Context, id string) ([]string, error)
	ConvertWrsListToMgrs(ctx context.Context, pathrows []string) ([]string, error)
	ConvertMgrsListToWrs(ctx context.Context, ids []string) ([]string, error)
}

// Options configures the handler.
type Options struct {
	AllowedOrigins []string // default "*"
	Logger         *zap.Logger
}

type handler struct {
	svc Converter
	log *zap.Logger
}

// New returns the HTTP handler for svc.
func New(svc Converter, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	h := &handler{svc: svc, log: opts.Logger.With(zap.String("component", "server"))}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/tiles/{id}", h.tile)
		r.Get("/tiles/{id}/overlaps", h.overlaps)
		r.Post("/tiles/convert", h.convertTiles)
		r.Post("/intersect", h.intersect)
	})
	return r
}

// footprint resolves a tile id, writing the error response itself when it cannot.
func (h *handler) footprint(w http.ResponseWriter, r *http.Request) (*convert.Footprint, bool) {
	id := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "id")))

	var (
		fp  *convert.Footprint
		err error
	)
	switch tileid.Classify(id) {
	case tileid.KindWRS:
		fp, err = h.svc.FootprintForWrsTile(r.Context(), id)
	case tileid.KindMGRS:
		fp, err = h.svc.FootprintForMgrsTile(r.Context(), id)
	default:
		writeError(w, http.StatusBadRequest, "invalid tile identifier: "+id)
		return nil, false
	}
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if fp == nil {
		writeError(w, http.StatusNotFound, "no footprint for tile "+id)
		return nil, false
	}
	return fp, true
}

func (h *handler) tile(w http.ResponseWriter, r *http.Request) {
	fp, ok := h.footprint(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, fp)
}

type overlapsResponse struct {
	TileID   string   `json:"tile_id"`
	TileType string   `json:"tile_type"`
	Overlaps []string `json:"overlaps"`
}

// overlaps converts one tile into the other grid. A well-formed id with no footprint
// has no overlaps.
func (h *handler) overlaps(w http.ResponseWriter, r *http.Request) {
	id := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "id")))
	kind := tileid.Classify(id)

	var (
		ids []string
		err error
	)
	switch kind {
	case tileid.KindWRS:
		ids, err = h.svc.ConvertWrsToMgrs(r.Context(), id)
	case tileid.KindMGRS:
		ids, err = h.svc.ConvertMgrsToWrs(r.Context(), id)
	default:
		writeError(w, http.StatusBadRequest, "invalid tile identifier: "+id)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overlapsResponse{TileID: id, TileType: kind.String(), Overlaps: ids})
}

type convertRequest struct {
	Tiles []string `json:"tiles"`
}

type convertResponse struct {
	MGRS    []string `json:"mgrs"`
	WRS     []string `json:"wrs"`
	Unknown []string `json:"unknown"`
}

// convertTiles converts a mixed list: path/rows into MGRS ids, MGRS ids into path/rows.
func (h *handler) convertTiles(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Tiles) == 0 {
		writeError(w, http.StatusBadRequest, "tiles is required")
		return
	}

	var wrs, mgrs []string
	resp := convertResponse{Unknown: []string{}}
	for _, id := range req.Tiles {
		id = strings.ToUpper(strings.TrimSpace(id))
		switch tileid.Classify(id) {
		case tileid.KindWRS:
			wrs = append(wrs, id)
		case tileid.KindMGRS:
			mgrs = append(mgrs, id)
		default:
			resp.Unknown = append(resp.Unknown, id)
		}
	}

	var err error
	if resp.MGRS, err = h.svc.ConvertWrsListToMgrs(r.Context(), wrs); err != nil {
		h.fail(w, r, err)
		return
	}
	if resp.WRS, err = h.svc.ConvertMgrsListToWrs(r.Context(), mgrs); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type intersectRequest struct {
	WKT  string `json:"wkt"`
	Grid string `json:"grid"` // wrs | mgrs | gzd
	Zone string `json:"zone"` // optional, mgrs only
}

type intersectResponse struct {
	Grid  string   `json:"grid"`
	Tiles []string `json:"tiles"`
}

// intersect lists the tiles of one grid intersecting a WKT footprint.
func (h *handler) intersect(w http.ResponseWriter, r *http.Request) {
	var req intersectRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := geometry.New().ParseWKT(req.WKT); err != nil {
		writeError(w, http.StatusBadRequest, "invalid wkt")
		return
	}
	req.Grid = strings.ToLower(strings.TrimSpace(req.Grid))
	req.Zone = strings.ToUpper(strings.TrimSpace(req.Zone))

	var (
		tiles []string
		err   error
	)
	switch {
	case req.Grid == "wrs":
		tiles, err = h.svc.WrsIntersections(r.Context(), req.WKT)
	case req.Grid == "gzd":
		tiles, err = h.svc.GzdIntersections(r.Context(), req.WKT)
	case req.Grid == "mgrs" && req.Zone == "":
		tiles, err = h.svc.AllMgrsIntersections(r.Context(), req.WKT)
	case req.Grid == "mgrs":
		if !tileid.IsZone(req.Zone) {
			writeError(w, http.StatusBadRequest, "invalid grid zone: "+req.Zone)
			return
		}
		tiles, err = h.svc.Mgrs100kmIntersections(r.Context(), req.WKT, req.Zone)
	default:
		writeError(w, http.StatusBadRequest, "grid must be one of wrs, mgrs, gzd")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, intersectResponse{Grid: req.Grid, Tiles: tiles})
}

// fail maps service errors: missing reference data is 503, anything else 500.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	if errors.Is(err, griddata.ErrReferenceDataMissing) {
		status = http.StatusServiceUnavailable
		msg = "reference grid data not installed"
	}
	h.log.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Int("status", status),
		zap.Error(err),
	)
	writeError(w, status, msg)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
