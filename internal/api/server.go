// Package api serves rendered extinction maps, distance profiles and pixel
// listings over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/dustmap/internal/clouds"
	"github.com/banshee-data/dustmap/internal/dustmap"
	"github.com/banshee-data/dustmap/internal/httputil"
	"github.com/banshee-data/dustmap/internal/monitoring"
	"github.com/banshee-data/dustmap/internal/pixelstore"
	"github.com/banshee-data/dustmap/internal/render"
	"github.com/banshee-data/dustmap/internal/version"
)

// ANSI escape codes for request logging
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

var contentTypes = map[dustmap.Format]string{
	dustmap.FormatPNG:  "image/png",
	dustmap.FormatHTML: "text/html; charset=utf-8",
	dustmap.FormatJSON: "application/json",
}

type Server struct {
	pipeline *dustmap.Pipeline
	store    pixelstore.Store
}

// NewServer returns a server computing from pipeline. store must be the
// store the pipeline reads; when it is a *pixelstore.SQLiteStore the pixel
// listing includes summaries and /debug/ gains the SQL browser and backup.
func NewServer(pipeline *dustmap.Pipeline, store pixelstore.Store) *Server {
	return &Server{pipeline: pipeline, store: store}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux registers the API routes and the /debug/ handlers.
func (s *Server) ServeMux() (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pixels", s.listPixels)
	mux.HandleFunc("/api/map", s.showMap)
	mux.HandleFunc("/api/profile", s.showProfile)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/reload", s.reload)

	debug := tsweb.Debugger(mux)
	debug.KV("Version", version.String())
	if sq, ok := s.store.(*pixelstore.SQLiteStore); ok {
		debug.KV("Pixel store", sq.Path())
		if err := sq.AttachAdminRoutes(debug); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux, err := s.ServeMux()
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("[api] listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	monitoring.Logf("[api] shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("[api] HTTP server shutdown error: %v", err)
		return server.Close()
	}
	return nil
}

type pixelsResponse struct {
	Count     int                       `json:"count"`
	Pixels    []int64                   `json:"pixels"`
	Summaries []pixelstore.PixelSummary `json:"summaries,omitempty"`
}

func (s *Server) listPixels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	ids, err := s.store.ListPixels(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list pixels: %v", err))
		return
	}
	resp := pixelsResponse{Count: len(ids), Pixels: ids}
	if resp.Pixels == nil {
		resp.Pixels = []int64{}
	}
	if sq, ok := s.store.(*pixelstore.SQLiteStore); ok {
		if resp.Summaries, err = sq.Summaries(r.Context()); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to summarize pixels: %v", err))
			return
		}
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showMap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	cfg := s.pipeline.Config()

	mu, ok, err := httputil.QueryFloat(q, "mu")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if !ok {
		mu = cfg.GetDistanceModulus()
	}
	format, err := dustmap.ParseFormat(q.Get("format"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	layer, err := httputil.QueryInt(q, "layer", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	reducer, err := s.pipeline.Reducer(q.Get("reducer"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	opts := dustmap.MapOptions(cfg, fmt.Sprintf("E(B-V) at mu = %.2f", mu))
	for key, dst := range map[string]**float64{"vmin": &opts.VMin, "vmax": &opts.VMax} {
		v, ok, err := httputil.QueryFloat(q, key)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if ok {
			*dst = &v
		}
	}

	result, err := s.pipeline.Map(r.Context(), mu, reducer)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	img, err := result.Image(layer)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteRendered(w, contentTypes[format], func(b *bytes.Buffer) error {
		return dustmap.WriteMap(b, format, img, mu, layer, opts)
	})
}

func (s *Server) showProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	format, err := dustmap.ParseFormat(r.URL.Query().Get("format"))
	if err != nil || format == dustmap.FormatHTML {
		httputil.BadRequest(w, "format must be png or json")
		return
	}
	prof, err := s.pipeline.Profile(r.Context())
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	opts := render.PlotOptions{Title: "Extinction vs distance modulus"}
	httputil.WriteRendered(w, contentTypes[format], func(b *bytes.Buffer) error {
		return dustmap.WriteProfile(b, format, prof, opts)
	})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	cfg := s.pipeline.Config()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"distance_modulus": cfg.GetDistanceModulus(),
		"reducer":          cfg.GetReducer(),
		"percentiles":      cfg.GetPercentiles(),
		"oversample":       cfg.GetOversample(),
		"lookup":           cfg.GetLookup(),
		"profile_mu_min":   cfg.GetProfileMuMin(),
		"profile_mu_max":   cfg.GetProfileMuMax(),
		"profile_steps":    cfg.GetProfileSteps(),
		"workers":          cfg.GetWorkers(),
	})
}

// reload drops the cached model so the next request rereads the store.
func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.pipeline.Reset()
	httputil.WriteJSONOK(w, map[string]string{"status": "reloaded"})
}

func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clouds.ErrNoPixels):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, clouds.ErrShape):
		httputil.InternalServerError(w, fmt.Sprintf("invalid cloud data: %v", err))
	default:
		httputil.InternalServerError(w, err.Error())
	}
}
