package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreamware/jukebox/internal/api"
	"github.com/dreamware/jukebox/internal/catalog"
	"github.com/dreamware/jukebox/internal/logging"
	"github.com/dreamware/jukebox/internal/song"
)

const welcome = "Welcome to jukebox!"

// maxBodyBytes bounds the size of a new-song request body.
const maxBodyBytes = 64 << 10

// snapshotStatus reports the outcome of periodic snapshots.
// *persistence.Scheduler satisfies it.
type snapshotStatus interface {
	LastResult() (int, error)
}

type server struct {
	svc       *catalog.Service
	snapshots snapshotStatus // nil when no scheduler runs
	logger    logr.Logger
}

func newServer(svc *catalog.Service, snapshots snapshotStatus, logger logr.Logger) *server {
	return &server{svc: svc, snapshots: snapshots, logger: logger}
}

// routes returns the HTTP handler for every jukebox endpoint.
func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+api.PathRoot+"{$}", s.handleRoot)
	mux.HandleFunc("GET "+api.PathCount, s.handleCount)
	mux.HandleFunc("POST "+api.PathAdd, s.handleAddSong)
	mux.HandleFunc("GET "+api.PathSearch, s.handleSearch)
	mux.HandleFunc("GET "+api.PathPlay+"{id}", s.handlePlay)
	mux.HandleFunc("GET "+api.PathShards, s.handleShards)
	mux.HandleFunc("GET "+api.PathCache, s.handleCache)
	mux.HandleFunc(api.PathHealth, s.handleHealth)
	mux.Handle("GET "+api.PathMetrics, promhttp.Handler())
	return s.withRequestContext(mux)
}

// withRequestContext tags every request with an id and a logger carrying it.
func (s *server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(api.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(api.HeaderRequestID, id)

		logger := s.logger.WithValues("requestID", id)
		logger.V(logging.TRACE).Info("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(logr.NewContext(r.Context(), logger)))
	})
}

func (s *server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(welcome))
}

func (s *server) handleCount(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(api.FormatVisitCount(s.svc.GetVisitCount())))
}

func (s *server) handleAddSong(w http.ResponseWriter, r *http.Request) {
	var req song.NewSongRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "bad json")
		return
	}
	if err := req.Validate(); err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.svc.AddSong(r.Context(), req)
	if err != nil {
		logr.FromContextOrDiscard(r.Context()).Error(err, "add song failed")
		api.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, rec)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, err := song.ParseQuery(r.URL.Query())
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, _ := s.svc.SearchSongs(r.Context(), q)
	api.WriteJSON(w, http.StatusOK, results)
}

func (s *server) handlePlay(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid song id %q", r.PathValue("id")))
		return
	}

	rec, err := s.svc.PlaySong(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		api.WriteError(w, http.StatusNotFound, api.MsgSongNotFound)
		return
	}
	if err != nil {
		logr.FromContextOrDiscard(r.Context()).Error(err, "play failed", "id", id)
		api.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, rec)
}

func (s *server) handleShards(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, s.svc.Shards())
}

func (s *server) handleCache(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, s.svc.CacheStats())
}

// handleHealth answers 200 while the process serves requests. A failing
// snapshot is reported in the body but does not fail the check.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := api.HealthResponse{Status: "ok"}
	if s.snapshots != nil {
		saves, err := s.snapshots.LastResult()
		resp.SnapshotSaves = saves
		if err != nil {
			resp.SnapshotError = err.Error()
		}
	}
	api.WriteJSON(w, http.StatusOK, resp)
}
