// Package mcp provides an MCP (Model Context Protocol) server for ideograph.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/ideograph/internal/config"
	"github.com/nvandessel/ideograph/internal/forks"
	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/logging"
	"github.com/nvandessel/ideograph/internal/pathutil"
	"github.com/nvandessel/ideograph/internal/patterns"
	"github.com/nvandessel/ideograph/internal/probing"
	"github.com/nvandessel/ideograph/internal/ratelimit"
	"github.com/nvandessel/ideograph/internal/store"
)

// Server wraps the MCP SDK server around one live graph and its store.
type Server struct {
	server   *sdk.Server
	store    store.GraphStore
	graph    *graph.Graph
	tree     *forks.Tree
	settings *config.Config
	matcher  *patterns.Matcher

	logger    *slog.Logger
	decisions *logging.DecisionLogger

	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	exportDirs   []string

	// sessionMu guards live walkers, which handlers mutate outside the
	// graph's own lock, and the pending probes.
	sessionMu sync.Mutex
	probes    map[string]probing.ProbeQuestion

	saveMu sync.Mutex
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "ideograph")
	Version string // Server version

	// StorePath is the persisted graph. Empty means ~/.ideograph/graph.db.
	StorePath string

	// Root is the project directory; exports may also go under
	// <Root>/.ideograph/exports.
	Root string

	// Settings supplies learning, detection and pattern parameters.
	// Nil means config.Default().
	Settings *config.Config

	// Tree seeds an empty store. Nil means the canonical fork tree.
	Tree *forks.Tree

	Logger *slog.Logger
}

// NewServer opens the store, loads or seeds the graph, and registers tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	tree := cfg.Tree
	if tree == nil {
		tree = forks.Canonical()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	storePath := cfg.StorePath
	if storePath == "" {
		p, err := store.DefaultStorePath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve store path: %w", err)
		}
		storePath = p
	}
	dataDir := filepath.Dir(storePath)
	decisions := logging.NewDecisionLogger(dataDir, settings.Logging.Level)

	graphStore, err := store.Open(storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph store: %w", err)
	}

	opts := []graph.Option{graph.WithLogger(logger), graph.WithDecisionLogger(decisions)}
	g, err := graphStore.Load(context.Background(), settings.GraphConfig(), opts...)
	switch {
	case errors.Is(err, store.ErrNoGraph):
		g = graph.New(settings.GraphConfig(), opts...)
		tree.ToGraph(g)
		logger.Info("seeded new graph", "store", pathutil.RedactPath(storePath), "forks", tree.Len())
	case err != nil:
		graphStore.Close()
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}

	matcher, err := settings.Matcher()
	if err != nil {
		graphStore.Close()
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}

	exportDirs, err := pathutil.DefaultExportDirs()
	if err != nil {
		exportDirs = nil
	}
	if cfg.Root != "" {
		exportDirs = append(exportDirs, filepath.Join(cfg.Root, ".ideograph", pathutil.ExportDirName))
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		store:        graphStore,
		graph:        g,
		tree:         tree,
		settings:     settings,
		matcher:      matcher,
		logger:       logger,
		decisions:    decisions,
		toolLimiters: ratelimit.NewToolLimiters(),
		auditLogger:  NewAuditLogger(dataDir),
		exportDirs:   exportDirs,
		probes:       make(map[string]probing.ProbeQuestion),
	}

	if err := s.registerTools(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	if err := s.registerResources(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}

	return s, nil
}

// Graph returns the live graph.
func (s *Server) Graph() *graph.Graph { return s.graph }

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if saveErr := s.save(context.WithoutCancel(ctx)); saveErr != nil {
		s.logger.Error("final save failed", "error", saveErr)
	}
	if closeErr := s.Close(); err == nil {
		err = closeErr
	}
	return err
}

// save persists the graph. Saves are serialized; each writes a full snapshot.
func (s *Server) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := s.store.Save(ctx, s.graph); err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}
	return nil
}

// Close releases the store and log files.
func (s *Server) Close() error {
	err := s.store.Close()
	if aerr := s.auditLogger.Close(); err == nil {
		err = aerr
	}
	if derr := s.decisions.Close(); err == nil {
		err = derr
	}
	return err
}
