package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"PerpCore/internal/observability"
	"PerpCore/internal/query"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// HTTPServer serves the read-side JSON API over the settlement log.
type HTTPServer struct {
	server  *http.Server
	queries *query.Service
	health  *observability.HealthChecker
	log     zerolog.Logger
}

func NewHTTPServer(addr string, queries *query.Service, health *observability.HealthChecker) *HTTPServer {
	s := &HTTPServer{
		queries: queries,
		health:  health,
		log:     observability.NewLogger("http"),
	}

	r := mux.NewRouter()
	r.HandleFunc("/v1/head", s.handleHead).Methods(http.MethodGet)
	r.HandleFunc("/v1/transactions", s.handleListTransactions).Methods(http.MethodGet)
	r.HandleFunc("/v1/transactions/{sequence}", s.handleGetTransaction).Methods(http.MethodGet)
	r.HandleFunc("/v1/positions/{id}", s.handleGetPosition).Methods(http.MethodGet)
	r.HandleFunc("/v1/integrity", s.handleVerifyChain).Methods(http.MethodGet)
	if health != nil {
		r.HandleFunc("/healthz", health.LivenessHandler).Methods(http.MethodGet)
		r.HandleFunc("/readyz", health.ReadinessHandler).Methods(http.MethodGet)
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start blocks until the listener fails or Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http api listening")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHead(w http.ResponseWriter, r *http.Request) {
	head, err := s.queries.GetHead(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, head)
}

func (s *HTTPServer) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	from := parseInt64(r.URL.Query().Get("from"), 0)
	limit := int(parseInt64(r.URL.Query().Get("limit"), 100))

	txs, err := s.queries.ListTransactions(r.Context(), from, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (s *HTTPServer) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	sequence, err := strconv.ParseInt(mux.Vars(r)["sequence"], 10, 64)
	if err != nil {
		http.Error(w, "invalid sequence", http.StatusBadRequest)
		return
	}

	tx, err := s.queries.GetTransaction(r.Context(), sequence)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if tx == nil {
		http.Error(w, "transaction not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, tx)
}

func (s *HTTPServer) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid position id", http.StatusBadRequest)
		return
	}

	pos, err := s.queries.GetPosition(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if pos == nil {
		http.Error(w, "position not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, pos)
}

func (s *HTTPServer) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	from := parseInt64(r.URL.Query().Get("from"), 0)
	to := parseInt64(r.URL.Query().Get("to"), -1)
	if to < 0 {
		head, err := s.queries.GetHead(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		to = head.Sequence
	}

	report, err := s.queries.VerifyChain(r.Context(), from, to)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encode response")
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, err error) {
	s.log.Error().Err(err).Msg("request failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func parseInt64(s string, def int64) int64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return v
}
