// Package opsapi serves a small operator HTTP API over the sanction scheduler
// and the command history.
package opsapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/keshon/warden/internal/moderation"
	"github.com/keshon/warden/internal/storage"
)

// Sanctions is the part of the scheduler operators can drive.
type Sanctions interface {
	Pending() []moderation.PendingSanction
	Pardon(scopeID, subjectID int64) bool
	Save(ctx context.Context) error
	RunSweep(ctx context.Context) []moderation.PendingSanction
	LastSaveError() error
	CurrentEpochHours() int64
}

type History interface {
	CommandHistory(ctx context.Context, scopeID int64) ([]storage.CommandRecord, error)
}

type Config struct {
	Addr      string
	Sanctions Sanctions
	History   History
	// ActiveGames reports running mini-game sessions. Optional.
	ActiveGames func() int
	// Jobs lists running background jobs. Optional.
	Jobs func() []string
}

type Server struct {
	srv    *http.Server
	router *mux.Router
	cfg    Config
}

func New(cfg Config) *Server {
	s := &Server{router: mux.NewRouter(), cfg: cfg}
	s.routes()
	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/sanctions", s.handleListSanctions).Methods(http.MethodGet)
	s.router.HandleFunc("/sanctions/save", s.handleSave).Methods(http.MethodPost)
	s.router.HandleFunc("/sanctions/sweep", s.handleSweep).Methods(http.MethodPost)
	s.router.HandleFunc("/sanctions/{scope}/{subject}", s.handlePardon).Methods(http.MethodDelete)
	s.router.HandleFunc("/history/{scope}", s.handleHistory).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("ops api shutdown")
		}
	}()

	log.Info().Str("addr", s.cfg.Addr).Msg("ops api listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type healthResponse struct {
	Status        string   `json:"status"`
	Pending       int      `json:"pending"`
	EpochHour     int64    `json:"epoch_hour"`
	LastSaveError string   `json:"last_save_error,omitempty"`
	ActiveGames   *int     `json:"active_games,omitempty"`
	Jobs          []string `json:"jobs,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Pending:   len(s.cfg.Sanctions.Pending()),
		EpochHour: s.cfg.Sanctions.CurrentEpochHours(),
	}
	if err := s.cfg.Sanctions.LastSaveError(); err != nil {
		resp.Status = "degraded"
		resp.LastSaveError = err.Error()
	}
	if s.cfg.ActiveGames != nil {
		n := s.cfg.ActiveGames()
		resp.ActiveGames = &n
	}
	if s.cfg.Jobs != nil {
		resp.Jobs = s.cfg.Jobs()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSanctions(w http.ResponseWriter, r *http.Request) {
	list := s.cfg.Sanctions.Pending()
	if list == nil {
		list = []moderation.PendingSanction{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Sanctions.Save(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	lifted := s.cfg.Sanctions.RunSweep(r.Context())
	if lifted == nil {
		lifted = []moderation.PendingSanction{}
	}
	writeJSON(w, http.StatusOK, lifted)
}

func (s *Server) handlePardon(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	scope, err1 := strconv.ParseInt(vars["scope"], 10, 64)
	subject, err2 := strconv.ParseInt(vars["subject"], 10, 64)
	if err := errors.Join(err1, err2); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if !s.cfg.Sanctions.Pardon(scope, subject) {
		writeError(w, http.StatusNotFound, errors.New("no pending sanction"))
		return
	}
	if err := s.cfg.Sanctions.Save(r.Context()); err != nil {
		log.Error().Err(err).Msg("save after pardon failed")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		writeError(w, http.StatusNotFound, errors.New("history disabled"))
		return
	}
	scope, err := strconv.ParseInt(mux.Vars(r)["scope"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	records, err := s.cfg.History.CommandHistory(r.Context(), scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []storage.CommandRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
