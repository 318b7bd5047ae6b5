package visualization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nvandessel/gossipsim/internal/config"
	"github.com/nvandessel/gossipsim/internal/driver"
	"github.com/nvandessel/gossipsim/internal/gossip"
	"github.com/nvandessel/gossipsim/internal/logging"
	"github.com/nvandessel/gossipsim/internal/ratelimit"
	"github.com/nvandessel/gossipsim/internal/telemetry"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 1 << 16

// Server exposes a driver over HTTP: snapshots for rendering, control
// endpoints for the simulation, and Prometheus metrics.
type Server struct {
	driver     *driver.Driver
	metrics    *telemetry.Metrics
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
	listenAddr string
	interval   time.Duration

	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	addr       string
}

// ServerOption customizes NewServer.
type ServerOption func(*Server)

// WithMetrics records request metrics and serves them on /metrics.
func WithMetrics(m *telemetry.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithRateLimit throttles the control endpoints, one bucket per path.
func WithRateLimit(l *ratelimit.Limiter) ServerOption {
	return func(s *Server) { s.limiter = l }
}

// WithServerLogger sets the request logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAutoStep steps the simulation every interval while it is running.
func WithAutoStep(interval time.Duration) ServerOption {
	return func(s *Server) { s.interval = interval }
}

// NewServer creates a server for d that will listen on addr. An empty addr
// lets the OS pick a free localhost port.
func NewServer(d *driver.Driver, addr string, opts ...ServerOption) *Server {
	s := &Server{
		driver:     d,
		listenAddr: addr,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.listenAddr == "" {
		s.listenAddr = "localhost:0"
	}
	return s
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "/", "index", s.handleIndex)
	s.route(mux, "/api/snapshot", "snapshot", s.handleSnapshot)
	s.route(mux, "/api/statistics", "statistics", s.handleStatistics)
	s.route(mux, "/api/history", "history", s.handleHistory)
	s.route(mux, "/api/start", "start", s.limit(s.handleStart))
	s.route(mux, "/api/step", "step", s.limit(s.handleStep))
	s.route(mux, "/api/reset", "reset", s.limit(s.handleReset))
	s.route(mux, "/api/rebuild", "rebuild", s.limit(s.handleRebuild))
	s.route(mux, "/api/parameters", "parameters", s.limit(s.handleParameters))
	s.route(mux, "/graph.dot", "dot", s.handleDOT)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern, op string, h http.HandlerFunc) {
	var handler http.Handler = h
	if s.metrics != nil {
		handler = s.metrics.Instrument(op, handler)
	}
	mux.Handle(pattern, handler)
}

func (s *Server) limit(h http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return h
	}
	byPath := func(r *http.Request) string { return r.URL.Path }
	return ratelimit.Middleware(s.limiter, byPath, h).ServeHTTP
}

// ListenAndServe starts the HTTP server and blocks until the context is
// cancelled. Returns nil on clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.mu.Unlock()

	s.logger.Info("snapshot server listening", "addr", s.addr, "auto_step", s.interval)

	if s.interval > 0 {
		go s.driver.Loop(ctx, s.interval)
	}

	// Graceful shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// handleIndex lists the endpoints.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, `gossipsim snapshot server

GET  /api/snapshot          nodes, edges, statistics, parameters
GET  /api/statistics        S/I/R counts
GET  /api/history?node=ID   messages received by a node
POST /api/start?ids=0,5     start an epidemic (default node 0)
POST /api/step              advance one step
POST /api/reset             clear epidemic state
POST /api/rebuild?nodes=N   draw a new topology
POST /api/parameters        JSON object of parameter fields
GET  /graph.dot             Graphviz rendering
GET  /metrics               Prometheus metrics
`)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	data, err := RenderJSON(s.driver.Snapshot())
	if err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.driver.Statistics())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	id, err := strconv.Atoi(r.URL.Query().Get("node"))
	if err != nil {
		http.Error(w, "missing or invalid 'node' query parameter", http.StatusBadRequest)
		return
	}
	history, err := s.driver.History(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if history == nil {
		history = []gossip.Message{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	ids, err := config.ParseIDList(r.URL.Query().Get("ids"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.driver.Start(ids); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.driver.Statistics())
}

// stepResponse pairs a step report with the statistics after it.
type stepResponse struct {
	Report     gossip.StepReport `json:"report"`
	Statistics gossip.Statistics `json:"statistics"`
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	rep, stats := s.driver.Step()
	writeJSON(w, http.StatusOK, stepResponse{Report: rep, Statistics: stats})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	s.driver.Reset()
	writeJSON(w, http.StatusOK, s.driver.Statistics())
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	n, err := strconv.Atoi(r.URL.Query().Get("nodes"))
	if err != nil {
		http.Error(w, "missing or invalid 'nodes' query parameter", http.StatusBadRequest)
		return
	}
	if err := s.driver.Rebuild(n); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.driver.Snapshot().Topology)
}

// handleParameters returns the parameters on GET and merges a JSON field
// map on POST.
func (s *Server) handleParameters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.driver.Parameters())
	case http.MethodPost:
		var fields map[string]any
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&fields); err != nil {
			http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.driver.UpdateParameterFields(fields); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.driver.Parameters())
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDOT(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	fmt.Fprint(w, RenderDOT(s.driver.Snapshot()))
}

// writeError maps engine errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, gossip.ErrInvalidArgument) || errors.Is(err, gossip.ErrConfiguration) {
		status = http.StatusBadRequest
	} else {
		s.logger.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
