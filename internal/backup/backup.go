// Package backup writes compressed, checksummed snapshots of an ideological
// graph and restores them into a store.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/store"
)

const (
	filePrefix = "ideograph-backup-"
	fileSuffix = ".json.gz"
)

// DefaultDir returns the default backup directory (~/.ideograph/backups/).
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".ideograph", "backups"), nil
}

// GeneratePath creates a timestamped backup filename in dir.
func GeneratePath(dir string, now time.Time) string {
	return filepath.Join(dir, filePrefix+now.UTC().Format("20060102-150405")+fileSuffix)
}

// Backup writes src to path.
func Backup(src graph.Source, path string, metadata map[string]string) (*Header, error) {
	return Write(path, store.DocumentOf(src), time.Now(), metadata)
}

// RestoreMode controls how restore handles existing data.
type RestoreMode string

const (
	// RestoreMerge keeps what the store holds and adds what it lacks (default).
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace discards the stored graph.
	RestoreReplace RestoreMode = "replace"
)

// ParseRestoreMode converts s to a RestoreMode. Empty means merge.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch RestoreMode(s) {
	case "", RestoreMerge:
		return RestoreMerge, nil
	case RestoreReplace:
		return RestoreReplace, nil
	default:
		return "", fmt.Errorf("invalid restore mode %q (must be merge or replace)", s)
	}
}

// RestoreResult contains statistics about the restore operation.
type RestoreResult struct {
	PositionsRestored int `json:"positions_restored"`
	PositionsSkipped  int `json:"positions_skipped"`
	EdgesRestored     int `json:"edges_restored"`
	EdgesSkipped      int `json:"edges_skipped"`
	WalkersRestored   int `json:"walkers_restored"`
	WalkersSkipped    int `json:"walkers_skipped"`
}

// Restore reads the backup at path into gs. Merge keeps every stored
// position, edge and walker and adds the backup's missing ones; replace
// saves the backup as is.
func Restore(ctx context.Context, path string, gs store.GraphStore, cfg graph.Config, mode RestoreMode, opts ...graph.Option) (*RestoreResult, error) {
	doc, _, err := Read(path)
	if err != nil {
		return nil, err
	}

	var merged store.Document
	result := &RestoreResult{}

	switch mode {
	case RestoreReplace:
		merged = doc
		result.PositionsRestored = len(doc.Positions)
		result.EdgesRestored = len(doc.Edges)
		result.WalkersRestored = len(doc.Walkers)

	case RestoreMerge, "":
		existing, err := gs.Load(ctx, cfg, opts...)
		switch {
		case errors.Is(err, store.ErrNoGraph):
			merged = store.Document{Name: doc.Name, CreatedAt: doc.CreatedAt}
		case err != nil:
			return nil, fmt.Errorf("failed to load current graph: %w", err)
		default:
			merged = store.DocumentOf(existing)
		}
		merge(&merged, doc, result)

	default:
		return nil, fmt.Errorf("invalid restore mode %q", mode)
	}

	if err := gs.Save(ctx, merged.Graph(cfg, opts...)); err != nil {
		return nil, fmt.Errorf("failed to save restored graph: %w", err)
	}
	return result, nil
}

// merge appends from's entities that dst lacks, by position ID, edge
// triple and session ID.
func merge(dst *store.Document, from store.Document, result *RestoreResult) {
	positions := make(map[string]bool, len(dst.Positions))
	for _, p := range dst.Positions {
		positions[p.ID] = true
	}
	for _, p := range from.Positions {
		if positions[p.ID] {
			result.PositionsSkipped++
			continue
		}
		dst.Positions = append(dst.Positions, p)
		positions[p.ID] = true
		result.PositionsRestored++
	}

	edges := make(map[string]bool, len(dst.Edges))
	for _, e := range dst.Edges {
		edges[e.ID()] = true
	}
	for _, e := range from.Edges {
		if edges[e.ID()] {
			result.EdgesSkipped++
			continue
		}
		dst.Edges = append(dst.Edges, e)
		edges[e.ID()] = true
		result.EdgesRestored++
	}

	walkers := make(map[string]bool, len(dst.Walkers))
	for _, w := range dst.Walkers {
		walkers[w.SessionID] = true
	}
	for _, w := range from.Walkers {
		if walkers[w.SessionID] {
			result.WalkersSkipped++
			continue
		}
		dst.Walkers = append(dst.Walkers, w)
		walkers[w.SessionID] = true
		result.WalkersRestored++
	}

	if from.UpdatedAt.After(dst.UpdatedAt) {
		dst.UpdatedAt = from.UpdatedAt
	}
}
