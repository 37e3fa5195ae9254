package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"magnate/internal/config"
	"magnate/internal/econ"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Store is what the API needs from persistence: the engine's store plus
// the admin-only sector config write.
type Store interface {
	econ.Store
	SaveSectorConfig(ctx context.Context, body []byte) (*econ.SectorConfig, error)
}

type Server struct {
	cfg    config.APIConfig
	log    *slog.Logger
	store  Store
	engine *econ.Scheduler
	mux    *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, store Store, engine *econ.Scheduler) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		log:    logger,
		store:  store,
		engine: engine,
		mux:    chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/market/prices", s.handleMarketPrices)
		r.Get("/corporations", s.handleCorporationsList)
		r.Get("/corporations/{id}", s.handleCorporationDetail)

		r.Group(func(r chi.Router) {
			r.Use(s.triggerAuthMiddleware)

			r.Post("/turns/actions", s.handleTriggerActions)
			r.Post("/turns/market", s.handleTriggerMarket)
			r.Post("/turns/salaries", s.handleTriggerSalaries)
			r.Post("/turns/prices", s.handleTriggerPrices)
			r.Post("/turns/proposals", s.handleTriggerProposals)
			r.Post("/turns/run", s.handleRunTurn)

			r.Post("/admin/jobs", s.handleSetJobs)
			r.Get("/admin/jobs", s.handleGetJobs)
			r.Put("/admin/sector-config", s.handleSaveSectorConfig)
			r.Get("/admin/sector-config", s.handleGetSectorConfig)
		})
	})
}

// triggerAuthMiddleware gates the job triggers and admin routes behind the
// shared secret. Constant-time compare so the secret cannot be probed a
// byte at a time.
func (s *Server) triggerAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = strings.TrimSpace(r.Header.Get("X-Trigger-Secret"))
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing trigger secret")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.TriggerSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid trigger secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleMarketPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := s.store.ListLatestPrices(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
}

func (s *Server) handleCorporationsList(w http.ResponseWriter, r *http.Request) {
	corps, err := s.store.FindAllCorporations(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"corporations": corps})
}

func (s *Server) handleCorporationDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid corporation id")
		return
	}
	corp, err := s.store.FindCorporationByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, corp)
}

func (s *Server) handleTriggerActions(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.TriggerActionsIncrement(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTriggerMarket(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.TriggerMarketRevenue(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTriggerSalaries(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.TriggerCeoSalaries(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTriggerPrices(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.TriggerPriceHistoryRecording(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTriggerProposals(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.ResolveExpiredProposals(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRunTurn(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.RunTurn(r.Context())
	if err != nil {
		// A turn can fail part way; the partial result still tells the
		// caller which steps landed.
		s.log.Error("turn aborted", "run_id", out.RunID, "err", err)
		writeJSON(w, statusForError(err), map[string]any{
			"error":   err.Error(),
			"partial": out,
		})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetJobs(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SetJobsEnabled(r.Context(), in.Enabled); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": in.Enabled})
}

func (s *Server) handleGetJobs(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.store.JobsEnabled(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": enabled})
}

func (s *Server) handleSaveSectorConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, err := s.store.SaveSectorConfig(r.Context(), body)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": cfg.Version})
}

func (s *Server) handleGetSectorConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetSectorConfig(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, econ.ErrJobsDisabled):
		return http.StatusForbidden
	case errors.Is(err, econ.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, econ.ErrInvalidInput), errors.Is(err, econ.ErrConfigMissing):
		return http.StatusBadRequest
	case errors.Is(err, econ.ErrCorporationNotFound), errors.Is(err, econ.ErrPlayerNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
