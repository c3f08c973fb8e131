package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"eve-jita-price/internal/config"
	"eve-jita-price/internal/inquiry"
	"eve-jita-price/internal/logger"
	"eve-jita-price/internal/metrics"
	"eve-jita-price/internal/resolver"
	"eve-jita-price/internal/sde"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	healthTTL          = 30 * time.Second
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// Catalogs is the catalog store seen by the API.
type Catalogs interface {
	Catalog(ctx context.Context) (*sde.Catalog, error)
	Loaded() bool
	Size() int
}

// Inquirer runs price inquiries and holds their runtime options.
type Inquirer interface {
	Ask(ctx context.Context, req inquiry.Request) (inquiry.Reply, error)
	Options() inquiry.Options
	SetOptions(o inquiry.Options)
}

// HealthChecker reports market API reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// SettingsStore persists runtime settings. It may be nil.
type SettingsStore interface {
	SaveConfig(cfg *config.Config) error
}

// Server is the HTTP API server.
type Server struct {
	catalogs Catalogs
	inquiry  Inquirer
	esi      HealthChecker
	store    SettingsStore
	health   *cache.Cache

	mu  sync.RWMutex
	cfg *config.Config
}

// NewServer creates a new API server. store may be nil.
func NewServer(cfg *config.Config, catalogs Catalogs, inq Inquirer, esiHealth HealthChecker, store SettingsStore) *Server {
	return &Server{
		cfg:      cfg.Clone(),
		catalogs: catalogs,
		inquiry:  inq,
		esi:      esiHealth,
		store:    store,
		health:   cache.New(healthTTL, 2*healthTTL),
	}
}

// Handler returns the HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Use(corsMiddleware)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/price/{command}", s.handlePrice)
	r.Get("/api/search", s.handleSearch)
	r.Get("/api/config", s.handleGetConfig)
	r.Post("/api/config", s.handleSetConfig)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Server(addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server", "Stopped")
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) esiHealthy(ctx context.Context) bool {
	if v, ok := s.health.Get("esi"); ok {
		return v.(bool)
	}
	ok := s.esi.HealthCheck(ctx)
	s.health.SetDefault("esi", ok)
	return ok
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"catalog_loaded": s.catalogs.Loaded(),
		"catalog_types":  s.catalogs.Size(),
		"esi_ok":         s.esiHealthy(r.Context()),
	})
}

type priceResponse struct {
	ID      string `json:"id"`
	Preface string `json:"preface,omitempty"`
	Text    string `json:"text"`
	Outcome string `json:"outcome"`
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	command := chi.URLParam(r, "command")
	s.mu.RLock()
	region, ok := s.cfg.Location(command)
	s.mu.RUnlock()
	if !ok {
		writeError(w, 404, "unknown command")
		return
	}

	reply, err := s.inquiry.Ask(r.Context(), inquiry.Request{
		Command:  command,
		RegionID: region,
		Text:     r.URL.Query().Get("q"),
	})
	if err != nil {
		writeError(w, 503, "item data unavailable")
		return
	}
	writeJSON(w, priceResponse{
		ID:      reply.ID,
		Preface: reply.Preface,
		Text:    reply.Text,
		Outcome: string(reply.Outcome),
	})
}

type searchHit struct {
	ID      int32     `json:"id"`
	Name    sde.Names `json:"name"`
	GroupID int32     `json:"groupID"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, []searchHit{})
		return
	}
	limit := defaultSearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, 400, "invalid limit")
			return
		}
		limit = min(n, maxSearchLimit)
	}

	cat, err := s.catalogs.Catalog(r.Context())
	if err != nil {
		logger.Error("API", "Catalog unavailable", zap.Error(err))
		writeError(w, 503, "item data unavailable")
		return
	}

	matches := resolver.Match(q, cat)
	hits := make([]searchHit, 0, min(len(matches), limit))
	for _, it := range matches {
		if len(hits) == limit {
			break
		}
		hits = append(hits, searchHit{ID: it.ID, Name: it.Name, GroupID: it.GroupID})
	}
	writeJSON(w, hits)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	cfg := s.cfg.Clone()
	s.mu.RUnlock()
	opts := s.inquiry.Options()
	cfg.MaxSearch = opts.MaxSearch
	cfg.SpecialFields = opts.SpecialFields
	writeJSON(w, cfg)
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var patch map[string]jsoniter.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, 400, "invalid json")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.Clone()
	opts := s.inquiry.Options()
	next.MaxSearch = opts.MaxSearch
	next.SpecialFields = opts.SpecialFields

	for key, raw := range patch {
		dst := patchTarget(next, key)
		if dst == nil {
			writeError(w, 400, "unknown field "+key)
			return
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			writeError(w, 400, "invalid "+key)
			return
		}
	}
	if err := next.Validate(); err != nil {
		writeError(w, 400, err.Error())
		return
	}

	if s.store != nil {
		if err := s.store.SaveConfig(next); err != nil {
			logger.Error("API", "Config save failed", zap.Error(err))
			writeError(w, 500, "save failed")
			return
		}
	}

	s.cfg = next
	s.inquiry.SetOptions(inquiry.OptionsFrom(next))
	logger.Info("API", "Config updated", zap.Int("fields", len(patch)))
	writeJSON(w, next)
}

// patchTarget maps a config JSON key to the field it updates.
// Price commands and the catalog settings apply to the API at once and to the
// bot and catalog store after a restart.
func patchTarget(cfg *config.Config, key string) interface{} {
	switch key {
	case "maxSearch":
		return &cfg.MaxSearch
	case "preDecompression":
		return &cfg.PreDecompression
	case "customTypesJsonFilePath":
		return &cfg.TypesPath
	case "customSpecialFields":
		return &cfg.SpecialFields
	case "customPriceInquiryInstructionsAndLocation":
		return &cfg.PriceCommands
	}
	return nil
}
