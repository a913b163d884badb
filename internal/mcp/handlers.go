package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/ideograph/internal/attractors"
	"github.com/nvandessel/ideograph/internal/compaction"
	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/models"
	"github.com/nvandessel/ideograph/internal/pathutil"
	"github.com/nvandessel/ideograph/internal/probing"
	"github.com/nvandessel/ideograph/internal/ranking"
	"github.com/nvandessel/ideograph/internal/ratelimit"
	"github.com/nvandessel/ideograph/internal/sanitize"
	"github.com/nvandessel/ideograph/internal/spreading"
	"github.com/nvandessel/ideograph/internal/stance"
	"github.com/nvandessel/ideograph/internal/store"
	"github.com/nvandessel/ideograph/internal/tension"
	"github.com/nvandessel/ideograph/internal/visualization"
)

const (
	defaultChallengeCount = 3
	defaultVoidSuggestion = 3
	defaultConfidence     = 1.0
	defaultSpreadCount    = 10
	resourceTopCount      = 5
)

// registerTools registers all ideograph MCP tools with the server.
func (s *Server) registerTools() error {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ideograph_walk_step",
		Description: "Record a walker's response to a position; starts a session when session_id is omitted",
	}, s.handleWalkStep)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ideograph_probe",
		Description: "Generate the next probe question for a walker, with the positions the graph is least sure about",
	}, s.handleProbe)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ideograph_tensions",
		Description: "Analyze a walker's structural balance and find productive tensions and positions worth challenging",
	}, s.handleTensions)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ideograph_spread",
		Description: "Predict which unvisited positions a walker will accept or reject by spreading activation from its choices",
	}, s.handleSpread)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ideograph_attractors",
		Description: "Detect attractors: heavily visited positions that pull walkers in",
	}, s.handleAttractors)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ideograph_voids",
		Description: "Detect voids: positions the graph structure predicts visitors for but that few walkers reach",
	}, s.handleVoids)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ideograph_forks",
		Description: "Analyze the fork tree: decisiveness of each fork and the minimal set that predicts walkers",
	}, s.handleForks)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ideograph_graph",
		Description: "Render the ideological graph in DOT (Graphviz), JSON, or HTML format for visualization",
	}, s.handleGraph)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ideograph_stance",
		Description: "Extract a stance signature (frames, blame and credit, sources, domains) from text",
	}, s.handleStance)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ideograph_export",
		Description: "Export the graph with its walkers to a JSON or YAML document under ~/.ideograph/exports",
	}, s.handleExport)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "ideograph_validate",
		Description: "Validate the graph for consistency issues (dangling references, self-references, conflicts, priority cycles)",
	}, s.handleValidate)

	return nil
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() error {
	s.server.AddResource(&sdk.Resource{
		URI:         "ideograph://graph/summary",
		Name:        "ideograph-summary",
		Description: "Size of the ideological graph, its most central positions and current attractors.",
		MIMEType:    "text/markdown",
	}, s.handleSummaryResource)

	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: "ideograph://positions/{id}",
		Name:        "ideograph-position",
		Description: "Full details for a position: claim, traditions, visits and its edges.",
		MIMEType:    "text/markdown",
	}, s.handlePositionResource)

	return nil
}

// handleSummaryResource describes the graph for context injection.
func (s *Server) handleSummaryResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	snap := s.graph.Snapshot()
	stats := s.graph.Stats()

	var sb strings.Builder
	sb.WriteString("# Ideological Graph\n\n")
	sb.WriteString(fmt.Sprintf("%d positions, %d edges, %d walkers, %d visits (avg edge weight %.2f)\n",
		stats.Positions, stats.Edges, stats.Walkers, stats.TotalVisits, stats.AvgEdgeWeight))

	scores, err := ranking.ComputePageRank(ctx, snap, ranking.DefaultPageRankConfig())
	if err != nil {
		return nil, err
	}
	if top := ranking.Top(scores, resourceTopCount); len(top) > 0 {
		sb.WriteString("\n## Most Central\n\n")
		for _, r := range top {
			p, _ := snap.Position(r.ID)
			sb.WriteString(fmt.Sprintf("- `%s` %s (%.2f)\n", r.ID, p.Claim, r.Score))
		}
	}

	opts := s.settings.DetectorOptions()
	found := attractors.NewDetector(snap, opts).DetectAttractors(opts.MinVisits, opts.MinStrength)
	if len(found) > 0 {
		sb.WriteString("\n## Attractors\n\n")
		for _, a := range found[:min(len(found), resourceTopCount)] {
			sb.WriteString(fmt.Sprintf("- `%s` %s: %d visits, strength %.2f, basin %d\n",
				a.CenterID, a.CenterClaim, a.VisitCount, a.Strength, len(a.BasinIDs)))
		}
	}

	sb.WriteString("\n---\n*Position details via ideograph://positions/{id}*\n")

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      "ideograph://graph/summary",
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

// handlePositionResource returns full details for one position.
func (s *Server) handlePositionResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	// URI format: ideograph://positions/{id}
	uri := req.Params.URI
	prefix := "ideograph://positions/"
	if !strings.HasPrefix(uri, prefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	id := strings.TrimPrefix(uri, prefix)
	if id == "" {
		return nil, fmt.Errorf("position ID is required")
	}

	snap := s.graph.Snapshot()
	p, ok := snap.Position(id)
	if !ok {
		return nil, fmt.Errorf("position not found: %s", id)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Position: %s\n\n", p.Claim))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", p.ID))
	sb.WriteString(fmt.Sprintf("**Domain:** %s\n", p.Domain))
	sb.WriteString(fmt.Sprintf("**Level:** %s\n", p.Level))
	sb.WriteString(fmt.Sprintf("**Visits:** %d\n", p.VisitCount))
	sb.WriteString(fmt.Sprintf("**Canonical score:** %.2f\n", p.CanonicalScore))
	if len(p.Traditions) > 0 {
		sb.WriteString(fmt.Sprintf("**Traditions:** %s\n", strings.Join(p.Traditions, ", ")))
	}

	if edges := snap.EdgesTouching(p.ID); len(edges) > 0 {
		sb.WriteString("\n## Edges\n\n")
		for _, e := range edges {
			sb.WriteString(fmt.Sprintf("- %s -[%s %.2f]-> %s\n", e.SourceID, e.Type, e.Weight, e.TargetID))
		}
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      uri,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

// sessionWalker finds a session's walker in a snapshot. The walker is a
// copy; analyses on it never race with walk steps.
func sessionWalker(snap *graph.Snapshot, sessionID string) (*models.Walker, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("'session_id' parameter is required")
	}
	for _, w := range snap.Walkers {
		if w.SessionID == sessionID {
			return w, nil
		}
	}
	return nil, fmt.Errorf("session not found: %s", sessionID)
}

// handleWalkStep implements the ideograph_walk_step tool.
func (s *Server) handleWalkStep(ctx context.Context, req *sdk.CallToolRequest, args WalkStepInput) (_ *sdk.CallToolResult, _ WalkStepOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ideograph_walk_step", start, retErr, sanitizeToolParams("ideograph_walk_step", map[string]interface{}{
			"session_id": args.SessionID, "user_id": args.UserID, "position_id": args.PositionID,
			"accepted": args.Accepted, "confidence": args.Confidence, "reasoning": args.Reasoning,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ideograph_walk_step"); err != nil {
		return nil, WalkStepOutput{}, err
	}

	if args.PositionID == "" {
		return nil, WalkStepOutput{}, fmt.Errorf("'position_id' parameter is required")
	}
	if args.Confidence < 0 || args.Confidence > 1 {
		return nil, WalkStepOutput{}, fmt.Errorf("confidence must be in [0.0, 1.0], got %f", args.Confidence)
	}
	confidence := args.Confidence
	if confidence == 0 {
		confidence = defaultConfidence
	}
	if _, ok := s.graph.Position(args.PositionID); !ok {
		return nil, WalkStepOutput{}, fmt.Errorf("position not found: %s", args.PositionID)
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	var w *models.Walker
	switch {
	case args.SessionID != "":
		live, ok := s.graph.Walker(args.SessionID)
		if !ok {
			return nil, WalkStepOutput{}, fmt.Errorf("session not found: %s", args.SessionID)
		}
		w = live
	default:
		user := sanitize.Identifier(args.UserID)
		if user == "" {
			return nil, WalkStepOutput{}, fmt.Errorf("'user_id' parameter is required to start a session")
		}
		w = s.graph.CreateWalker(user)
	}

	choice := models.NewChoice(args.PositionID, args.Accepted, confidence, sanitize.Text(args.Reasoning))
	probe, answered := s.probes[w.SessionID]
	answered = answered && probe.PositionID == args.PositionID
	if answered {
		choice.Question = probe.Question
		if probe.Prediction.PredictedYes() {
			choice.WasPredicted = true
			choice.PredictionConfidence = 1 - probe.Prediction.Uncertainty
		}
	}

	suggestions := s.graph.Step(w, choice)

	// Further walker updates happen on a copy that then replaces the live
	// walker, so snapshots taken meanwhile never see a partial update.
	updated := w.Clone()
	out := WalkStepOutput{
		SessionID:   updated.SessionID,
		PositionID:  args.PositionID,
		Accepted:    args.Accepted,
		PathLength:  len(updated.Path),
		Suggestions: summarizeAll(suggestions),
	}
	if answered {
		delete(s.probes, updated.SessionID)
		out.ProbeAnswered = true
		prober := probing.NewProber(s.graph, probing.WithDecisionLogger(s.decisions))
		if perr, missed := prober.RecordResponse(updated, &probe, args.Accepted); missed {
			out.PredictionMissed = true
			out.DimensionHint = perr.DimensionHint
		}
	}
	if m, ok := s.matcher.Classify(updated); ok {
		out.CanonicalFit = m.Pattern.Name
		out.CanonicalFitScore = m.Score
	}
	out.SurpriseRate = updated.SurpriseRate()
	s.graph.RegisterWalker(updated)

	if err := s.save(ctx); err != nil {
		return nil, WalkStepOutput{}, err
	}

	verb := "rejected"
	if args.Accepted {
		verb = "accepted"
	}
	out.Message = fmt.Sprintf("Session %s %s %s (%d suggestions)", updated.SessionID, verb, args.PositionID, len(suggestions))
	if out.PredictionMissed {
		out.Message += fmt.Sprintf("; prediction missed, hint: %s", out.DimensionHint)
	}

	return nil, out, nil
}

// handleProbe implements the ideograph_probe tool.
func (s *Server) handleProbe(ctx context.Context, req *sdk.CallToolRequest, args ProbeInput) (_ *sdk.CallToolResult, _ ProbeOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ideograph_probe", start, retErr, sanitizeToolParams("ideograph_probe", map[string]interface{}{
			"session_id": args.SessionID, "kind": args.Kind, "scenario": args.Scenario, "limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ideograph_probe"); err != nil {
		return nil, ProbeOutput{}, err
	}

	snap := s.graph.Snapshot()
	w, err := sessionWalker(snap, args.SessionID)
	if err != nil {
		return nil, ProbeOutput{}, err
	}

	prober := probing.NewProber(snap, probing.WithDecisionLogger(s.decisions))

	kind := probing.ProbeType(args.Kind)
	if kind == "" {
		kind = probing.ProbeDirect
	}
	var probe probing.ProbeQuestion
	var ok bool
	switch kind {
	case probing.ProbeDirect:
		probe, ok = prober.GenerateProbe(w)
	case probing.ProbeCounterfactual:
		scenario := sanitize.Text(args.Scenario)
		if scenario == "" {
			return nil, ProbeOutput{}, fmt.Errorf("'scenario' parameter is required for counterfactual probes")
		}
		probe, ok = prober.GenerateCounterfactualProbe(w, scenario)
	case probing.ProbePriority:
		probe, ok = prober.GeneratePriorityProbe(w)
	default:
		return nil, ProbeOutput{}, fmt.Errorf("invalid probe kind %q (use 'direct', 'counterfactual', or 'priority')", args.Kind)
	}

	limit := args.Limit
	if limit <= 0 {
		limit = s.settings.Probing.UncertainCount
	}
	out := ProbeOutput{
		SessionID:   w.SessionID,
		Uncertain:   prober.FindHighestUncertainty(w, limit),
		Informative: prober.FindMostInformative(w, s.settings.Probing.InformativeCount),
		Untested:    len(prober.UntestedPositions(w)),
	}

	if !ok {
		out.Message = fmt.Sprintf("No %s probe available for session %s", kind, w.SessionID)
		return nil, out, nil
	}

	// Priority probes name a pair, not a position, so walk steps cannot
	// answer them.
	if _, known := snap.Position(probe.PositionID); known {
		s.sessionMu.Lock()
		s.probes[w.SessionID] = probe
		s.sessionMu.Unlock()
	}
	out.Probe = &probe
	out.Message = fmt.Sprintf("%s probe on %s (predicted acceptance %.2f, uncertainty %.2f)",
		kind, probe.PositionID, probe.Prediction.PredictedAcceptance, probe.Prediction.Uncertainty)

	return nil, out, nil
}

// handleTensions implements the ideograph_tensions tool.
func (s *Server) handleTensions(ctx context.Context, req *sdk.CallToolRequest, args TensionsInput) (_ *sdk.CallToolResult, _ TensionsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ideograph_tensions", start, retErr, sanitizeToolParams("ideograph_tensions", map[string]interface{}{
			"session_id": args.SessionID, "limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ideograph_tensions"); err != nil {
		return nil, TensionsOutput{}, err
	}

	snap := s.graph.Snapshot()
	w, err := sessionWalker(snap, args.SessionID)
	if err != nil {
		return nil, TensionsOutput{}, err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultChallengeCount
	}

	analyzer := tension.NewAnalyzer(snap)
	balance := analyzer.BalanceState(w)
	tensions := analyzer.FindProductiveTensions(w)
	if tensions == nil {
		tensions = []tension.Score{}
	}
	challenges := analyzer.SuggestChallenge(w, limit)

	out := TensionsOutput{
		SessionID:   w.SessionID,
		SGM:         balance.SGM,
		Extremeness: balance.Extremeness,
		Constraint:  balance.Constraint,
		Tensions:    tensions,
		Challenges:  make([]ChallengeSummary, len(challenges)),
	}
	for i, c := range challenges {
		out.Challenges[i] = ChallengeSummary{Position: summarize(c.Position), Score: c.Score}
	}
	out.Message = fmt.Sprintf("Found %d tension point(s); balance %.2f over %d attitude(s)",
		len(tensions), balance.SGM, len(balance.Attitudes))

	return nil, out, nil
}

// handleSpread implements the ideograph_spread tool.
func (s *Server) handleSpread(ctx context.Context, req *sdk.CallToolRequest, args SpreadInput) (_ *sdk.CallToolResult, _ SpreadOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ideograph_spread", start, retErr, sanitizeToolParams("ideograph_spread", map[string]interface{}{
			"session_id": args.SessionID, "limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ideograph_spread"); err != nil {
		return nil, SpreadOutput{}, err
	}

	snap := s.graph.Snapshot()
	w, err := sessionWalker(snap, args.SessionID)
	if err != nil {
		return nil, SpreadOutput{}, err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultSpreadCount
	}

	results, err := spreading.NewEngine(spreading.DefaultConfig()).Propagate(ctx, snap, w)
	if err != nil {
		return nil, SpreadOutput{}, fmt.Errorf("spreading activation: %w", err)
	}
	if results == nil {
		results = []spreading.Result{}
	}
	if len(results) > limit {
		results = results[:limit]
	}

	return nil, SpreadOutput{
		SessionID:   w.SessionID,
		Predictions: results,
		Message:     fmt.Sprintf("Predicted %d unvisited position(s) for %s", len(results), w.SessionID),
	}, nil
}

// detectorOptions applies per-call overrides to the configured thresholds.
func (s *Server) detectorOptions(minVisits int, minStrength, minExpected, minVoidRatio float64) (attractors.Options, error) {
	opts := s.settings.DetectorOptions()
	if minVisits < 0 {
		return opts, fmt.Errorf("min_visits must be non-negative, got %d", minVisits)
	}
	for name, v := range map[string]float64{"min_strength": minStrength, "min_void_ratio": minVoidRatio} {
		if v < 0 || v > 1 {
			return opts, fmt.Errorf("%s must be in [0.0, 1.0], got %f", name, v)
		}
	}
	if minExpected < 0 {
		return opts, fmt.Errorf("min_expected must be non-negative, got %f", minExpected)
	}
	if minVisits > 0 {
		opts.MinVisits = minVisits
	}
	if minStrength > 0 {
		opts.MinStrength = minStrength
	}
	if minExpected > 0 {
		opts.MinExpected = minExpected
	}
	if minVoidRatio > 0 {
		opts.MinVoidRatio = minVoidRatio
	}
	return opts, nil
}

// handleAttractors implements the ideograph_attractors tool.
func (s *Server) handleAttractors(ctx context.Context, req *sdk.CallToolRequest, args AttractorsInput) (_ *sdk.CallToolResult, _ AttractorsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ideograph_attractors", start, retErr, sanitizeToolParams("ideograph_attractors", map[string]interface{}{
			"session_id": args.SessionID, "min_visits": args.MinVisits, "min_strength": args.MinStrength,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ideograph_attractors"); err != nil {
		return nil, AttractorsOutput{}, err
	}

	opts, err := s.detectorOptions(args.MinVisits, args.MinStrength, 0, 0)
	if err != nil {
		return nil, AttractorsOutput{}, err
	}

	snap := s.graph.Snapshot()
	detector := attractors.NewDetector(snap, opts)
	found := detector.DetectAttractors(opts.MinVisits, opts.MinStrength)
	if found == nil {
		found = []attractors.Attractor{}
	}
	out := AttractorsOutput{Attractors: found, Count: len(found)}

	if args.SessionID != "" {
		w, err := sessionWalker(snap, args.SessionID)
		if err != nil {
			return nil, AttractorsOutput{}, err
		}
		if basin, ok := detector.FindBasinForWalker(w); ok {
			out.Basin = &basin
		}
	}

	out.Message = fmt.Sprintf("Found %d attractor(s) with at least %d visits and strength %.2f",
		len(found), opts.MinVisits, opts.MinStrength)
	if out.Basin != nil {
		out.Message += fmt.Sprintf("; walker sits in the basin of %s", out.Basin.CenterID)
	}

	return nil, out, nil
}

// handleVoids implements the ideograph_voids tool.
func (s *Server) handleVoids(ctx context.Context, req *sdk.CallToolRequest, args VoidsInput) (_ *sdk.CallToolResult, _ VoidsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ideograph_voids", start, retErr, sanitizeToolParams("ideograph_voids", map[string]interface{}{
			"session_id": args.SessionID, "min_expected": args.MinExpected,
			"min_void_ratio": args.MinVoidRatio, "limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ideograph_voids"); err != nil {
		return nil, VoidsOutput{}, err
	}

	opts, err := s.detectorOptions(0, 0, args.MinExpected, args.MinVoidRatio)
	if err != nil {
		return nil, VoidsOutput{}, err
	}

	snap := s.graph.Snapshot()
	detector := attractors.NewDetector(snap, opts)
	voids := detector.DetectVoids(opts.MinExpected, opts.MinVoidRatio)
	if voids == nil {
		voids = []attractors.Void{}
	}
	out := VoidsOutput{Voids: voids, Count: len(voids)}

	if args.SessionID != "" {
		w, err := sessionWalker(snap, args.SessionID)
		if err != nil {
			return nil, VoidsOutput{}, err
		}
		limit := args.Limit
		if limit <= 0 {
			limit = defaultVoidSuggestion
		}
		out.Suggested = detector.SuggestVoidExploration(w, limit)
		out.OutsideBasin = summarizeAll(s.graph.SuggestOutsideBasin(w, limit))
	}

	out.Message = fmt.Sprintf("Found %d void(s)", len(voids))
	if len(out.Suggested) > 0 {
		out.Message += fmt.Sprintf("; %d adjacent to the walker", len(out.Suggested))
	}
	if len(out.OutsideBasin) > 0 {
		out.Message += fmt.Sprintf("; %d outside the walker's basin", len(out.OutsideBasin))
	}

	return nil, out, nil
}

// handleForks implements the ideograph_forks tool.
func (s *Server) handleForks(ctx context.Context, req *sdk.CallToolRequest, args ForksInput) (_ *sdk.CallToolResult, _ ForksOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ideograph_forks", start, retErr, sanitizeToolParams("ideograph_forks", map[string]interface{}{
			"target_accuracy": args.TargetAccuracy, "limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ideograph_forks"); err != nil {
		return nil, ForksOutput{}, err
	}

	target := args.TargetAccuracy
	if target == 0 {
		target = compaction.DefaultTargetAccuracy
	}
	if target < 0 || target > 1 {
		return nil, ForksOutput{}, fmt.Errorf("target_accuracy must be in (0.0, 1.0], got %f", args.TargetAccuracy)
	}

	walkers := s.graph.Snapshot().Walkers
	compactor := compaction.NewCompactor(s.tree)
	decisiveness := compactor.Analyze(walkers)
	if args.Limit > 0 && args.Limit < len(decisiveness) {
		decisiveness = decisiveness[:args.Limit]
	}

	out := ForksOutput{
		Structure:    compactor.AnalyzeStructure(),
		Decisiveness: decisiveness,
		Walkers:      len(walkers),
	}
	for _, f := range compactor.MinimalSet(walkers, target) {
		out.MinimalSet = append(out.MinimalSet, f.ID)
	}

	shape := "linear"
	if out.Structure.IsDivergent {
		shape = "divergent"
	}
	out.Message = fmt.Sprintf("%d forks (%s, linearity %.2f); %d fork(s) reach %.0f%% accuracy over %d walker(s)",
		out.Structure.TotalForks, shape, out.Structure.Linearity, len(out.MinimalSet), target*100, len(walkers))

	return nil, out, nil
}

// handleGraph implements the ideograph_graph tool.
func (s *Server) handleGraph(ctx context.Context, req *sdk.CallToolRequest, args GraphInput) (_ *sdk.CallToolResult, _ GraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ideograph_graph", start, retErr, sanitizeToolParams("ideograph_graph", map[string]interface{}{
			"format": args.Format,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ideograph_graph"); err != nil {
		return nil, GraphOutput{}, err
	}

	format := args.Format
	if format == "" {
		format = "json"
	}
	parsed, err := visualization.ParseFormat(format)
	if err != nil {
		return nil, GraphOutput{}, err
	}

	snap := s.graph.Snapshot()
	pageRank, err := ranking.ComputePageRank(ctx, snap, ranking.DefaultPageRankConfig())
	if err != nil {
		return nil, GraphOutput{}, err
	}
	enrichment := &visualization.EnrichmentData{PageRank: pageRank}
	out := GraphOutput{Format: string(parsed), NodeCount: snap.Len(), EdgeCount: snap.EdgeCount()}

	switch parsed {
	case visualization.FormatDOT:
		out.Graph = visualization.RenderDOT(snap, enrichment)
	case visualization.FormatJSON:
		out.Graph = visualization.RenderJSON(snap, enrichment)
	case visualization.FormatHTML:
		opts := s.settings.DetectorOptions()
		found := attractors.NewDetector(snap, opts).DetectAttractors(opts.MinVisits, opts.MinStrength)
		html, err := visualization.RenderHTML(snap, enrichment, found, "")
		if err != nil {
			return nil, GraphOutput{}, fmt.Errorf("render HTML: %w", err)
		}
		out.Graph = string(html)
	}

	return nil, out, nil
}

// handleStance implements the ideograph_stance tool.
func (s *Server) handleStance(ctx context.Context, req *sdk.CallToolRequest, args StanceInput) (_ *sdk.CallToolResult, _ StanceOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ideograph_stance", start, retErr, sanitizeToolParams("ideograph_stance", map[string]interface{}{
			"text": args.Text, "headline": args.Headline,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ideograph_stance"); err != nil {
		return nil, StanceOutput{}, err
	}

	text := sanitize.Text(args.Text)
	if text == "" {
		return nil, StanceOutput{}, fmt.Errorf("'text' parameter is required")
	}

	extractor := stance.NewExtractor(s.graph.Snapshot())
	sig := extractor.Extract(text)
	out := StanceOutput{Signature: sig}
	if f, ok := sig.DominantFrame(); ok {
		out.DominantFrame = string(f.Type)
	}
	if d, ok := sig.TopDomain(); ok {
		out.TopDomain = d
	}
	if args.Headline {
		out.Candidates = summarizeAll(extractor.PositionsFromHeadline(text))
	}

	out.Message = fmt.Sprintf("%d frame(s), %d attribution(s), %d source(s); %d known position(s) matched (confidence %.2f)",
		len(sig.Frames), len(sig.Attributions), len(sig.Sources), len(sig.Positions), sig.Confidence)

	return nil, out, nil
}

// handleExport implements the ideograph_export tool.
func (s *Server) handleExport(ctx context.Context, req *sdk.CallToolRequest, args ExportInput) (_ *sdk.CallToolResult, _ ExportOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ideograph_export", start, retErr, sanitizeToolParams("ideograph_export", map[string]interface{}{
			"output_path": args.OutputPath,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ideograph_export"); err != nil {
		return nil, ExportOutput{}, err
	}

	if args.OutputPath == "" {
		return nil, ExportOutput{}, fmt.Errorf("'output_path' parameter is required")
	}
	if err := pathutil.ValidatePath(args.OutputPath, s.exportDirs); err != nil {
		return nil, ExportOutput{}, fmt.Errorf("export path rejected: %w", err)
	}

	format := store.FormatJSON
	switch strings.ToLower(filepath.Ext(args.OutputPath)) {
	case ".yaml", ".yml":
		format = store.FormatYAML
	}

	snap := s.graph.Snapshot()
	if err := store.NewDocumentStore(args.OutputPath, format).Save(ctx, snap); err != nil {
		return nil, ExportOutput{}, fmt.Errorf("export failed: %w", err)
	}
	if err := os.Chmod(args.OutputPath, 0600); err != nil {
		s.logger.Warn("could not restrict export permissions", "path", pathutil.RedactPath(args.OutputPath), "error", err)
	}

	redacted := pathutil.RedactPath(args.OutputPath)
	return nil, ExportOutput{
		Path:      redacted,
		Format:    string(format),
		Positions: snap.Len(),
		Edges:     snap.EdgeCount(),
		Walkers:   len(snap.Walkers),
		Message:   fmt.Sprintf("Exported %d positions, %d edges and %d walkers to %s", snap.Len(), snap.EdgeCount(), len(snap.Walkers), redacted),
	}, nil
}

// handleValidate implements the ideograph_validate tool.
func (s *Server) handleValidate(ctx context.Context, req *sdk.CallToolRequest, args ValidateInput) (_ *sdk.CallToolResult, _ ValidateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("ideograph_validate", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "ideograph_validate"); err != nil {
		return nil, ValidateOutput{}, err
	}

	errs := store.Validate(s.graph)
	if len(errs) == 0 {
		return nil, ValidateOutput{Valid: true, Message: "Graph is valid - no issues found"}, nil
	}

	counts := make(map[string]int)
	for _, e := range errs {
		counts[e.Issue]++
	}
	var parts []string
	for _, issue := range []string{store.IssueDangling, store.IssueSelfReference, store.IssueConflict, store.IssueCycle} {
		if n := counts[issue]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, issue))
		}
	}

	return nil, ValidateOutput{
		ErrorCount: len(errs),
		Errors:     errs,
		Message:    fmt.Sprintf("Found %d issue(s): %s", len(errs), strings.Join(parts, ", ")),
	}, nil
}
