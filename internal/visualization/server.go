package visualization

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/nvandessel/ideograph/internal/attractors"
	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/logging"
	"github.com/nvandessel/ideograph/internal/ranking"
)

// Server serves the HTML report and read-only analytics endpoints for a
// live graph. Every request renders from a fresh snapshot.
type Server struct {
	src        graph.Source
	detector   *attractors.Detector
	logger     *slog.Logger
	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	addr       string
}

// NewServer creates a new graph visualization server. A nil logger discards.
func NewServer(src graph.Source, opts attractors.Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		src:      src,
		detector: attractors.NewDetector(src, opts),
		logger:   logger,
	}
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ListenAndServe starts the HTTP server on an OS-assigned port and blocks
// until the context is cancelled. Returns nil on clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/graph.json", s.handleJSON)
	mux.HandleFunc("/graph.dot", s.handleDOT)
	mux.HandleFunc("/api/attractors", s.handleAttractors)
	mux.HandleFunc("/api/voids", s.handleVoids)

	// Let the OS pick a free port.
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.mu.Unlock()

	// Graceful shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info("visualization server listening", "addr", s.addr)
	err = s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) enrichment(ctx context.Context, snap *graph.Snapshot) (*EnrichmentData, error) {
	pr, err := ranking.ComputePageRank(ctx, snap, ranking.DefaultPageRankConfig())
	if err != nil {
		return nil, err
	}
	return &EnrichmentData{PageRank: pr}, nil
}

// handleIndex serves the HTML report with the API base URL configured.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	snap := s.src.Snapshot()
	enrichment, err := s.enrichment(r.Context(), snap)
	if err != nil {
		http.Error(w, "pagerank error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	opts := s.detector.Options()
	found := attractors.NewDetector(snap, opts).DetectAttractors(opts.MinVisits, opts.MinStrength)

	html, err := RenderHTML(snap, enrichment, found, "http://"+s.Addr())
	if err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	enrichment, err := s.enrichment(r.Context(), snap)
	if err != nil {
		http.Error(w, "pagerank error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, RenderJSON(snap, enrichment))
}

func (s *Server) handleDOT(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	enrichment, err := s.enrichment(r.Context(), snap)
	if err != nil {
		http.Error(w, "pagerank error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	w.Write([]byte(RenderDOT(snap, enrichment)))
}

func (s *Server) handleAttractors(w http.ResponseWriter, r *http.Request) {
	opts := s.detector.Options()
	writeJSON(w, s.detector.DetectAttractors(opts.MinVisits, opts.MinStrength))
}

func (s *Server) handleVoids(w http.ResponseWriter, r *http.Request) {
	opts := s.detector.Options()
	writeJSON(w, s.detector.DetectVoids(opts.MinExpected, opts.MinVoidRatio))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// OpenBrowser opens the specified URL in the user's default browser.
// It supports Linux (xdg-open), macOS (open), and Windows (cmd start).
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
