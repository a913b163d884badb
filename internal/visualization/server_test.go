package visualization

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/ideograph/internal/attractors"
	"github.com/nvandessel/ideograph/internal/models"
)

func startServer(t *testing.T, srv *Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go srv.ListenAndServe(ctx)
	waitForServer(t, srv, 2*time.Second)
}

func TestServer_ServesHTML(t *testing.T) {
	g := setupTestGraph(t)
	addPosition(t, g, "p1", "test claim", models.DomainSocial, 0)

	srv := NewServer(g, attractors.DefaultOptions(), nil)
	startServer(t, srv)

	resp, err := http.Get("http://" + srv.Addr() + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET / status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "/api/attractors") {
		t.Error("expected API links when served")
	}
}

func TestServer_UnknownPath(t *testing.T) {
	srv := NewServer(setupTestGraph(t), attractors.DefaultOptions(), nil)
	startServer(t, srv)

	resp, err := http.Get("http://" + srv.Addr() + "/missing")
	if err != nil {
		t.Fatalf("GET /missing: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_GraphJSONReflectsLiveGraph(t *testing.T) {
	g := setupTestGraph(t)
	addPosition(t, g, "p1", "a", models.DomainSocial, 0)

	srv := NewServer(g, attractors.DefaultOptions(), nil)
	startServer(t, srv)

	addPosition(t, g, "p2", "b", models.DomainSocial, 0)
	g.Connect("p1", "p2", models.EdgeImplies, 0.5)

	resp, err := http.Get("http://" + srv.Addr() + "/graph.json")
	if err != nil {
		t.Fatalf("GET /graph.json: %v", err)
	}
	defer resp.Body.Close()

	var out GraphJSON
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if out.NodeCount != 2 || out.EdgeCount != 1 {
		t.Errorf("expected 2 nodes and 1 edge, got %d and %d", out.NodeCount, out.EdgeCount)
	}
	for _, n := range out.Nodes {
		if n.PageRank == nil {
			t.Errorf("expected PageRank on %s", n.ID)
		}
	}
}

func TestServer_GraphDOT(t *testing.T) {
	g := setupTestGraph(t)
	addPosition(t, g, "p1", "a", models.DomainSocial, 0)

	srv := NewServer(g, attractors.DefaultOptions(), nil)
	startServer(t, srv)

	resp, err := http.Get("http://" + srv.Addr() + "/graph.dot")
	if err != nil {
		t.Fatalf("GET /graph.dot: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), `digraph "test"`) {
		t.Errorf("unexpected DOT body: %s", body)
	}
}

func TestServer_AttractorsEndpoint(t *testing.T) {
	g := setupTestGraph(t)
	addPosition(t, g, "hub", "hub", models.DomainSocial, 20)
	addPosition(t, g, "feeder", "feeder", models.DomainSocial, 1)
	g.Connect("feeder", "hub", models.EdgeImplies, 0.8)

	srv := NewServer(g, attractors.DefaultOptions(), nil)
	startServer(t, srv)

	resp, err := http.Get("http://" + srv.Addr() + "/api/attractors")
	if err != nil {
		t.Fatalf("GET /api/attractors: %v", err)
	}
	defer resp.Body.Close()

	var found []attractors.Attractor
	if err := json.NewDecoder(resp.Body).Decode(&found); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(found) != 1 || found[0].CenterID != "hub" {
		t.Fatalf("expected hub attractor, got %+v", found)
	}
}

func TestServer_CleanShutdown(t *testing.T) {
	srv := NewServer(setupTestGraph(t), attractors.DefaultOptions(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	waitForServer(t, srv, 2*time.Second)

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("unexpected error on shutdown: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down within 3 seconds")
	}
}

// waitForServer polls the server until it's ready or the timeout is reached.
func waitForServer(t *testing.T, srv *Server, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		addr := srv.Addr()
		if addr == "" {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		resp, err := http.Get("http://" + addr + "/")
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server did not start within timeout")
}
