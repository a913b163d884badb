package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/ideograph/internal/config"
	"github.com/nvandessel/ideograph/internal/forks"
	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/logging"
	"github.com/nvandessel/ideograph/internal/models"
	"github.com/nvandessel/ideograph/internal/store"
)

// workspace is everything a command needs to work on the persisted graph.
type workspace struct {
	settings  *config.Config
	logger    *slog.Logger
	decisions *logging.DecisionLogger
	storePath string
	store     store.GraphStore
	graph     *graph.Graph
	tree      *forks.Tree

	// seeded is set when the graph was created from the tree on open.
	seeded bool
}

// loadSettings reads --config, or the default config location plus
// environment overrides.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var (
		settings *config.Config
		err      error
	)
	if path != "" {
		settings, err = config.LoadFromFile(path)
	} else {
		settings, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return settings, nil
}

// resolveStorePath applies --store, then the config, then the default.
func resolveStorePath(cmd *cobra.Command, settings *config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("store"); p != "" {
		return p, nil
	}
	if settings.Store.Path != "" {
		return settings.Store.Path, nil
	}
	return store.DefaultStorePath()
}

// resolveTree loads --forks as a file if one exists at that path, else as
// a built-in catalog name.
func resolveTree(cmd *cobra.Command) (*forks.Tree, error) {
	name, _ := cmd.Flags().GetString("forks")
	if name == "" {
		return forks.Canonical(), nil
	}
	if _, err := os.Stat(name); err == nil {
		return forks.Load(name)
	}
	return forks.Catalog(name)
}

// openWorkspace opens the store and loads the graph. With seed, a missing
// graph is created from the fork tree; otherwise it is an error.
func openWorkspace(cmd *cobra.Command, seed bool) (*workspace, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	tree, err := resolveTree(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to load fork tree: %w", err)
	}
	storePath, err := resolveStorePath(cmd, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(storePath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	logger := logging.NewLogger(settings.Logging.Level, cmd.ErrOrStderr())
	decisions := logging.NewDecisionLogger(filepath.Dir(storePath), settings.Logging.Level)

	gs, err := store.Open(storePath)
	if err != nil {
		decisions.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	opts := []graph.Option{graph.WithLogger(logger), graph.WithDecisionLogger(decisions)}
	g, err := gs.Load(cmd.Context(), settings.GraphConfig(), opts...)
	seeded := false
	switch {
	case errors.Is(err, store.ErrNoGraph) && seed:
		g = graph.New(settings.GraphConfig(), opts...)
		tree.ToGraph(g)
		seeded = true
		logger.Debug("seeded new graph", "forks", tree.Len())
	case errors.Is(err, store.ErrNoGraph):
		gs.Close()
		decisions.Close()
		return nil, fmt.Errorf("no graph at %s. Run 'ideograph init' first", storePath)
	case err != nil:
		gs.Close()
		decisions.Close()
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}

	return &workspace{
		settings:  settings,
		logger:    logger,
		decisions: decisions,
		storePath: storePath,
		store:     gs,
		graph:     g,
		tree:      tree,
		seeded:    seeded,
	}, nil
}

// save persists the graph.
func (ws *workspace) save(ctx context.Context) error {
	if err := ws.store.Save(ctx, ws.graph); err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}
	return nil
}

// Close releases the store and decision log.
func (ws *workspace) Close() error {
	err := ws.store.Close()
	if derr := ws.decisions.Close(); err == nil {
		err = derr
	}
	return err
}

// walker finds a session, reporting a helpful error when it is missing.
func (ws *workspace) walker(sessionID string) (*models.Walker, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("--session is required")
	}
	w, ok := ws.graph.Walker(sessionID)
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	return w, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}
