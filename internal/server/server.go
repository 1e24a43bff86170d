package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quantfeed/marketsync/internal/model"
	"github.com/quantfeed/marketsync/internal/orchestrator"
	"github.com/quantfeed/marketsync/internal/provider"
	"github.com/quantfeed/marketsync/internal/timeseries"
)

const dateLayout = "2006-01-02"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the sync HTTP API on a single listener.
type Server struct {
	orch     *orchestrator.Orchestrator
	service  *timeseries.Service
	pinger   Pinger
	interval provider.Interval
	logger   *slog.Logger

	httpSrv *http.Server
}

// New wires the handler set. interval is the default used when a sync
// trigger does not specify one.
func New(port int, orch *orchestrator.Orchestrator, service *timeseries.Service, pinger Pinger, interval provider.Interval, logger *slog.Logger) *Server {
	s := &Server{
		orch:     orch,
		service:  service,
		pinger:   pinger,
		interval: interval,
		logger:   logger,
	}
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Handler(),
	}
	return s
}

// Handler builds the route table. Exposed separately so tests can drive
// it through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sync", s.handleSync)
	mux.HandleFunc("GET /sync/status", s.handleSyncStatus)
	mux.HandleFunc("POST /history/upsert", s.handleUpsert)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

// Start begins serving. It returns immediately; listener errors are
// logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("starting http server", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

type syncRequest struct {
	Symbols      []string `json:"symbols"`
	DelaySeconds int      `json:"delay_seconds"`
}

// handleSync requests a background sync. The response is 202 regardless
// of whether the run is accepted or coalesced into one already in
// flight; callers watch /sync/status for the outcome.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if r.Body != nil {
		// An empty or malformed body means "sync the configured set".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	delay := time.Duration(req.DelaySeconds) * time.Second
	s.orch.TriggerAsync(context.WithoutCancel(r.Context()), req.Symbols, delay)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Status())
}

type upsertRequest struct {
	Symbol   string `json:"symbol"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Interval string `json:"interval"`
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	start, err := time.Parse(dateLayout, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse(dateLayout, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}

	interval := s.interval
	if req.Interval != "" {
		interval = provider.Interval(req.Interval)
		if interval != provider.IntervalDaily && interval != provider.IntervalMonthly {
			writeError(w, http.StatusBadRequest, "interval must be 1d or 1mo")
			return
		}
	}

	count, err := s.service.UpsertHistory(r.Context(), req.Symbol, start, end, interval)
	if err != nil {
		s.logger.Error("upsert failed", "symbol", req.Symbol, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol query parameter is required")
		return
	}

	from, err := optionalDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := optionalDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}

	bars, err := s.service.History(r.Context(), symbol, from, to)
	if err != nil {
		s.logger.Error("history read failed", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bars == nil {
		bars = []model.Bar{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": strings.ToUpper(symbol),
		"count":  len(bars),
		"bars":   bars,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
