package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
	"github.com/nvandessel/ideograph/internal/store"
)

func testGraph(t *testing.T, ids ...string) *graph.Graph {
	t.Helper()
	g := graph.New(graph.DefaultConfig())
	for _, id := range ids {
		g.AddPosition(models.Stance("claim "+id, models.DomainEconomics, models.WithID(id)))
	}
	for i := 1; i < len(ids); i++ {
		g.AddEdge(models.Implies(ids[i-1], ids[i], 0.6))
	}
	return g
}

func addWalker(g *graph.Graph, user string, at time.Time, positionID string) *models.Walker {
	w := models.NewWalker(user, at)
	g.RegisterWalker(w)
	g.WalkStep(w, positionID, true, 1, "")
	return w
}

func TestWriteRead_RoundTrip(t *testing.T) {
	g := testGraph(t, "a", "b", "c")
	addWalker(g, "ann", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "a")

	path := filepath.Join(t.TempDir(), "nested", "backup.json.gz")
	header, err := Backup(g, path, map[string]string{"reason": "test"})
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if header.Positions != 3 || header.Edges != 2 || header.Walkers != 1 {
		t.Errorf("header counts = %d/%d/%d, want 3/2/1", header.Positions, header.Edges, header.Walkers)
	}
	if !strings.HasPrefix(header.Checksum, "sha256:") {
		t.Errorf("checksum = %q", header.Checksum)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if fi.Mode().Perm() != 0600 {
		t.Errorf("permissions = %o, want 0600", fi.Mode().Perm())
	}

	doc, read, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if read.Checksum != header.Checksum || read.Metadata["reason"] != "test" {
		t.Errorf("header = %+v", read)
	}
	if len(doc.Positions) != 3 || len(doc.Edges) != 2 || len(doc.Walkers) != 1 {
		t.Errorf("doc counts = %d/%d/%d", len(doc.Positions), len(doc.Edges), len(doc.Walkers))
	}
	if doc.Walkers[0].UserID != "ann" {
		t.Errorf("walker user = %q", doc.Walkers[0].UserID)
	}
}

func TestVerify_DetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.json.gz")
	if _, err := Backup(testGraph(t, "a", "b"), path, nil); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if _, err := Verify(path); err != nil {
		t.Fatalf("Verify() on intact file error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Verify(path); err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("Verify() error = %v, want checksum mismatch", err)
	}
	if _, _, err := Read(path); err == nil {
		t.Error("Read() should fail on a corrupted payload")
	}
	if _, err := ReadHeader(path); err != nil {
		t.Errorf("ReadHeader() should not check the payload, got %v", err)
	}
}

func TestRead_RejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.json.gz")
	if err := os.WriteFile(path, []byte(`{"version":9}`+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadHeader(path); err == nil || !strings.Contains(err.Error(), "unsupported backup version") {
		t.Errorf("ReadHeader() error = %v", err)
	}

	plain := filepath.Join(t.TempDir(), "graph.json")
	if err := os.WriteFile(plain, []byte("not a backup"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Read(plain); err == nil {
		t.Error("Read() should reject a file without a header line")
	}
}

func TestGeneratePath(t *testing.T) {
	at := time.Date(2024, 6, 1, 14, 30, 5, 0, time.UTC)
	got := GeneratePath("/tmp/b", at)
	want := filepath.Join("/tmp/b", "ideograph-backup-20240601-143005.json.gz")
	if got != want {
		t.Errorf("GeneratePath() = %q, want %q", got, want)
	}
	if !isBackupFile(filepath.Base(got)) {
		t.Error("generated name should be recognized as a backup")
	}
}

func TestParseRestoreMode(t *testing.T) {
	tests := []struct {
		in      string
		want    RestoreMode
		wantErr bool
	}{
		{"", RestoreMerge, false},
		{"merge", RestoreMerge, false},
		{"replace", RestoreReplace, false},
		{"overwrite", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRestoreMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRestoreMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseRestoreMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRestore_Merge(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	backed := testGraph(t, "a", "b", "c")
	addWalker(backed, "ann", at, "a")
	path := filepath.Join(dir, "backup.json.gz")
	if _, err := Backup(backed, path, nil); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	current := testGraph(t, "a", "d")
	addWalker(current, "ann", at, "d")
	addWalker(current, "ben", at, "a")
	gs := store.NewDocumentStore(filepath.Join(dir, "graph.json"), store.FormatJSON)
	if err := gs.Save(ctx, current); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	result, err := Restore(ctx, path, gs, graph.DefaultConfig(), RestoreMerge)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.PositionsRestored != 2 || result.PositionsSkipped != 1 {
		t.Errorf("positions restored/skipped = %d/%d, want 2/1", result.PositionsRestored, result.PositionsSkipped)
	}
	if result.EdgesRestored != 2 || result.EdgesSkipped != 0 {
		t.Errorf("edges restored/skipped = %d/%d, want 2/0", result.EdgesRestored, result.EdgesSkipped)
	}
	if result.WalkersRestored != 0 || result.WalkersSkipped != 1 {
		t.Errorf("walkers restored/skipped = %d/%d, want 0/1", result.WalkersRestored, result.WalkersSkipped)
	}

	g, err := gs.Load(ctx, graph.DefaultConfig())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	snap := g.Snapshot()
	if snap.Len() != 4 || snap.EdgeCount() != 3 || len(snap.Walkers) != 2 {
		t.Errorf("merged graph = %d positions, %d edges, %d walkers; want 4, 3, 2", snap.Len(), snap.EdgeCount(), len(snap.Walkers))
	}
	w, ok := g.Walker(models.NewWalker("ann", at).SessionID)
	if !ok || w.Path[0] != "d" {
		t.Error("merge should keep the stored walker over the backed-up one")
	}
}

func TestRestore_MergeIntoEmptyStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "backup.json.gz")
	if _, err := Backup(testGraph(t, "a", "b"), path, nil); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	gs := store.NewDocumentStore(filepath.Join(dir, "graph.yaml"), store.FormatYAML)
	result, err := Restore(ctx, path, gs, graph.DefaultConfig(), RestoreMerge)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.PositionsRestored != 2 || result.EdgesRestored != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestRestore_Replace(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "backup.json.gz")
	if _, err := Backup(testGraph(t, "a", "b"), path, nil); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	gs, err := store.Open(filepath.Join(dir, "graph.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer gs.Close()
	if err := gs.Save(ctx, testGraph(t, "x", "y", "z")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := Restore(ctx, path, gs, graph.DefaultConfig(), RestoreReplace); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	g, err := gs.Load(ctx, graph.DefaultConfig())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := g.Position("x"); ok {
		t.Error("replace should drop positions missing from the backup")
	}
	if g.Snapshot().Len() != 2 {
		t.Errorf("positions = %d, want 2", g.Snapshot().Len())
	}

	if _, err := Restore(ctx, path, gs, graph.DefaultConfig(), RestoreMode("bogus")); err == nil {
		t.Error("expected error for invalid mode")
	}
}
