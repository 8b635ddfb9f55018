// Package adminhttp is the operator-facing side channel described in
// SPEC_FULL.md's DOMAIN STACK: a small net/http+JSON surface, grounded
// on cmd/gojodb_cli's APIRequest/APIResponse shapes and
// cmd/gojodb_standalone_server's constant-configured listener, that
// lets an operator inspect site status, dump committed state, and
// drive fail/recover against the one live *ssi.TransactionManager the
// deterministic driver also owns. It never advances the tick counter
// and never touches transactions directly — only Site up/down state.
// Its fail, recover and dump calls go through the same
// TransactionManager methods the driver uses, so their events are
// written to the same event stream as the driver's. It runs on
// its own goroutine alongside the driver's; ssi.TransactionManager
// serializes every method behind its own lock, so the two never race
// on shared state.
package adminhttp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vealocia/advdb-final-proj/core/ssi"
	internaltelemetry "github.com/vealocia/advdb-final-proj/internal/telemetry"
)

// Server exposes the admin HTTP handlers.
type Server struct {
	tm      *ssi.TransactionManager
	metrics *internaltelemetry.ServiceMetrics
	limiter *rate.Limiter
	log     *zap.Logger
}

// New builds a Server. limiter may be nil to disable rate limiting.
func New(tm *ssi.TransactionManager, metrics *internaltelemetry.ServiceMetrics, limiter *rate.Limiter, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{tm: tm, metrics: metrics, limiter: limiter, log: log.Named("admin-http")}
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.withMiddleware("status", s.handleStatus))
	mux.HandleFunc("/dump", s.withMiddleware("dump", s.handleDump))
	mux.HandleFunc("/admin/fail", s.withMiddleware("fail", s.handleFail))
	mux.HandleFunc("/admin/recover", s.withMiddleware("recover", s.handleRecover))
	return mux
}

// apiResponse mirrors cmd/gojodb_cli's APIResponse{Status, Message}
// shape, repurposed for the admin surface's JSON replies.
type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (s *Server) withMiddleware(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := uuid.NewString()
		log := s.log.With(zap.String("correlation_id", correlationID), zap.String("route", route))

		if s.limiter != nil && !s.limiter.Allow() {
			log.Warn("rate limited")
			writeJSON(w, http.StatusTooManyRequests, apiResponse{Status: "ERROR", Message: "rate limited"})
			return
		}

		end := s.metrics.StartRequest(r.Context(), route)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		end(strconv.Itoa(rec.status))
		log.Debug("handled admin request", zap.Int("status", rec.status))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.tm.SiteStatuses()
	out := make(map[string]string, len(statuses))
	for _, site := range ssi.AllSites() {
		out[fmt.Sprintf("%d", site)] = statuses[site].String()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tm.Dump())
}

func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	s.handleSiteTransition(w, r, s.tm.Fail)
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	s.handleSiteTransition(w, r, s.tm.Recover)
}

func (s *Server) handleSiteTransition(w http.ResponseWriter, r *http.Request, transition func(ssi.SiteID) error) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiResponse{Status: "ERROR", Message: "POST required"})
		return
	}
	raw := r.URL.Query().Get("site")
	n, err := strconv.Atoi(raw)
	if err != nil || !ssi.IsValidSite(ssi.SiteID(n)) {
		writeJSON(w, http.StatusBadRequest, apiResponse{Status: "ERROR", Message: fmt.Sprintf("invalid site %q", raw)})
		return
	}
	if err := transition(ssi.SiteID(n)); err != nil {
		writeJSON(w, http.StatusConflict, apiResponse{Status: "ERROR", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Status: "OK"})
}
