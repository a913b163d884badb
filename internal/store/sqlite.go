package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
)

// SQLiteStore keeps a graph in a SQLite database. Save replaces the whole
// graph in one transaction.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens or creates the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string { return s.dbPath }

// Save replaces the stored graph with src's contents.
func (s *SQLiteStore) Save(ctx context.Context, src graph.Source) error {
	d := DocumentOf(src)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"choices", "walkers", "edges", "positions", "meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	meta := [][2]string{
		{"name", d.Name},
		{"created_at", formatTime(d.CreatedAt)},
		{"updated_at", formatTime(d.UpdatedAt)},
	}
	for _, kv := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to write meta %s: %w", kv[0], err)
		}
	}

	for i, p := range d.Positions {
		if err := insertPosition(ctx, tx, i, p); err != nil {
			return err
		}
	}
	for i, e := range d.Edges {
		if err := insertEdge(ctx, tx, i, e); err != nil {
			return err
		}
	}
	for i, w := range d.Walkers {
		if err := insertWalker(ctx, tx, i, w); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit graph: %w", err)
	}
	return nil
}

func insertPosition(ctx context.Context, tx *sql.Tx, seq int, p models.Position) error {
	traditions, err := marshalColumn(p.Traditions)
	if err != nil {
		return err
	}
	sources, err := marshalColumn(p.Sources)
	if err != nil {
		return err
	}
	var valence sql.NullFloat64
	if v, ok := p.Valence.Get(); ok {
		valence = sql.NullFloat64{Float64: v, Valid: true}
	}
	level := p.Level
	if level == "" {
		level = models.LevelPosition
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO positions (id, seq, claim, domain, valence, level, visit_count,
			canonical_score, traditions, sources, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, seq, p.Claim, string(p.Domain), valence, string(level), p.VisitCount,
		p.CanonicalScore, traditions, sources, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert position %s: %w", p.ID, err)
	}
	return nil
}

func insertEdge(ctx context.Context, tx *sql.Tx, seq int, e models.Edge) error {
	sources, err := marshalColumn(e.Sources)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO edges (source_id, target_id, edge_type, seq, weight, evidence_count,
			confidence, co_occurrence, tension, priority_context, sources, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SourceID, e.TargetID, string(e.Type), seq, e.Weight, e.EvidenceCount,
		e.Confidence, e.CoOccurrence, e.Tension, nullString(e.PriorityContext), sources,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert edge %s: %w", e.ID(), err)
	}
	return nil
}

func insertWalker(ctx context.Context, tx *sql.Tx, seq int, w *models.Walker) error {
	cols := make([]sql.NullString, 0, 6)
	for _, v := range []any{w.Path, w.Trajectory, w.Aberrations, w.PredictionErrors, w.EdgesStrengthened, w.EdgesWeakened} {
		c, err := marshalColumn(v)
		if err != nil {
			return fmt.Errorf("walker %s: %w", w.SessionID, err)
		}
		cols = append(cols, c)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO walkers (session_id, seq, user_id, path, trajectory, canonical_fit,
			canonical_fit_score, aberrations, prediction_errors, edges_strengthened,
			edges_weakened, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.SessionID, seq, w.UserID, cols[0], cols[1], nullString(w.CanonicalFit),
		w.CanonicalFitScore, cols[2], cols[3], cols[4], cols[5],
		formatTime(w.CreatedAt), formatTime(w.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert walker %s: %w", w.SessionID, err)
	}

	for i, c := range w.Choices {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO choices (session_id, seq, position_id, question, accepted, confidence,
				reasoning, was_predicted, prediction_confidence, timestamp, response_time_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			w.SessionID, i, c.PositionID, nullString(c.Question), c.Accepted, c.Confidence,
			nullString(c.Reasoning), c.WasPredicted, c.PredictionConfidence,
			formatTime(c.Timestamp), int64(c.ResponseTime))
		if err != nil {
			return fmt.Errorf("failed to insert choice %d of %s: %w", i, w.SessionID, err)
		}
	}
	return nil
}

// Load rebuilds the stored graph. An empty database yields ErrNoGraph.
func (s *SQLiteStore) Load(ctx context.Context, cfg graph.Config, opts ...graph.Option) (*graph.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.readDocument(ctx)
	if err != nil {
		return nil, err
	}
	return d.Graph(cfg, opts...), nil
}

func (s *SQLiteStore) readDocument(ctx context.Context) (Document, error) {
	meta, err := s.readMeta(ctx)
	if err != nil {
		return Document{}, err
	}
	if len(meta) == 0 {
		return Document{}, fmt.Errorf("%w in %s", ErrNoGraph, s.dbPath)
	}

	d := Document{Name: meta["name"]}
	if d.CreatedAt, err = parseTime(meta["created_at"]); err != nil {
		return Document{}, fmt.Errorf("meta created_at: %w", err)
	}
	if d.UpdatedAt, err = parseTime(meta["updated_at"]); err != nil {
		return Document{}, fmt.Errorf("meta updated_at: %w", err)
	}
	if d.Positions, err = s.readPositions(ctx); err != nil {
		return Document{}, err
	}
	if d.Edges, err = s.readEdges(ctx); err != nil {
		return Document{}, err
	}
	if d.Walkers, err = s.readWalkers(ctx); err != nil {
		return Document{}, err
	}
	return d, nil
}

func (s *SQLiteStore) readMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to query meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func (s *SQLiteStore) readPositions(ctx context.Context) ([]models.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, claim, domain, valence, level, visit_count, canonical_score,
			traditions, sources, created_at, updated_at
		FROM positions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		var (
			p                    models.Position
			domain, level        string
			valence              sql.NullFloat64
			traditions, sources  sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&p.ID, &p.Claim, &domain, &valence, &level, &p.VisitCount,
			&p.CanonicalScore, &traditions, &sources, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		if p.Domain, err = models.ParseDomain(domain); err != nil {
			return nil, fmt.Errorf("position %q: %w", p.ID, err)
		}
		if p.Level, err = models.ParseLevel(level); err != nil {
			return nil, fmt.Errorf("position %q: %w", p.ID, err)
		}
		if valence.Valid {
			p.Valence = models.NewValence(valence.Float64)
		}
		if err := unmarshalColumn(traditions, &p.Traditions); err != nil {
			return nil, fmt.Errorf("position %q traditions: %w", p.ID, err)
		}
		if err := unmarshalColumn(sources, &p.Sources); err != nil {
			return nil, fmt.Errorf("position %q sources: %w", p.ID, err)
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("position %q: %w", p.ID, err)
		}
		if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("position %q: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) readEdges(ctx context.Context) ([]models.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, target_id, edge_type, weight, evidence_count, confidence,
			co_occurrence, tension, priority_context, sources, created_at, updated_at
		FROM edges ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var out []models.Edge
	for rows.Next() {
		var (
			e                    models.Edge
			edgeType             string
			priority, sources    sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&e.SourceID, &e.TargetID, &edgeType, &e.Weight, &e.EvidenceCount,
			&e.Confidence, &e.CoOccurrence, &e.Tension, &priority, &sources, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if e.Type, err = models.ParseEdgeType(edgeType); err != nil {
			return nil, fmt.Errorf("edge %s->%s: %w", e.SourceID, e.TargetID, err)
		}
		e.PriorityContext = priority.String
		if err := unmarshalColumn(sources, &e.Sources); err != nil {
			return nil, fmt.Errorf("edge %s sources: %w", e.ID(), err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("edge %s: %w", e.ID(), err)
		}
		if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("edge %s: %w", e.ID(), err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) readWalkers(ctx context.Context) ([]*models.Walker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, user_id, path, trajectory, canonical_fit, canonical_fit_score,
			aberrations, prediction_errors, edges_strengthened, edges_weakened,
			created_at, updated_at
		FROM walkers ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query walkers: %w", err)
	}
	defer rows.Close()

	var out []*models.Walker
	bySession := make(map[string]*models.Walker)
	for rows.Next() {
		var (
			w                                 models.Walker
			path, trajectory, fit, aberration sql.NullString
			predErrs, strengthened, weakened  sql.NullString
			createdAt, updatedAt              string
		)
		if err := rows.Scan(&w.SessionID, &w.UserID, &path, &trajectory, &fit, &w.CanonicalFitScore,
			&aberration, &predErrs, &strengthened, &weakened, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan walker: %w", err)
		}
		w.CanonicalFit = fit.String
		columns := []struct {
			raw sql.NullString
			dst any
		}{
			{path, &w.Path},
			{trajectory, &w.Trajectory},
			{aberration, &w.Aberrations},
			{predErrs, &w.PredictionErrors},
			{strengthened, &w.EdgesStrengthened},
			{weakened, &w.EdgesWeakened},
		}
		for _, c := range columns {
			if err := unmarshalColumn(c.raw, c.dst); err != nil {
				return nil, fmt.Errorf("walker %s: %w", w.SessionID, err)
			}
		}
		if w.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("walker %s: %w", w.SessionID, err)
		}
		if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("walker %s: %w", w.SessionID, err)
		}
		w.Choices = []models.Choice{}
		out = append(out, &w)
		bySession[w.SessionID] = &w
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := s.readChoices(ctx, bySession); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) readChoices(ctx context.Context, bySession map[string]*models.Walker) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, position_id, question, accepted, confidence, reasoning,
			was_predicted, prediction_confidence, timestamp, response_time_ns
		FROM choices ORDER BY session_id, seq`)
	if err != nil {
		return fmt.Errorf("failed to query choices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			session, ts         string
			question, reasoning sql.NullString
			responseNS          int64
			c                   models.Choice
		)
		if err := rows.Scan(&session, &c.PositionID, &question, &c.Accepted, &c.Confidence, &reasoning,
			&c.WasPredicted, &c.PredictionConfidence, &ts, &responseNS); err != nil {
			return fmt.Errorf("failed to scan choice: %w", err)
		}
		c.Question = question.String
		c.Reasoning = reasoning.String
		c.ResponseTime = time.Duration(responseNS)
		if c.Timestamp, err = parseTime(ts); err != nil {
			return fmt.Errorf("choice in %s: %w", session, err)
		}
		if w, ok := bySession[session]; ok {
			w.Choices = append(w.Choices, c)
		}
	}
	return rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// marshalColumn encodes v for a JSON column; nil slices and maps are NULL.
func marshalColumn(v any) (sql.NullString, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal column: %w", err)
	}
	if string(b) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalColumn(raw sql.NullString, dst any) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), dst)
}
