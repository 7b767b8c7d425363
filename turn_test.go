package felt

import (
	"testing"
)

func TestNewTurnIdentity(t *testing.T) {
	a := NewTurn("hello", nil, GlobalContext{})
	b := NewTurn("hello", nil, GlobalContext{})

	if a.ID == "" || a.TraceID == "" {
		t.Error("turn missing identity")
	}
	if a.ID == b.ID || a.TraceID == b.TraceID {
		t.Error("turns share identity")
	}
	if a.CreatedAt.IsZero() {
		t.Error("turn missing creation time")
	}
}

func TestTurnCurrentLabel(t *testing.T) {
	turn := NewTurn("", nil, GlobalContext{})
	if got := turn.CurrentLabel(); got != "" {
		t.Errorf("empty trajectory: expected empty label, got %s", got)
	}

	turn.Trajectory = []TrajectoryState{
		{Current: LabelEmergence, Next: LabelAttunement},
		{Current: LabelAttunement, Next: LabelDeepening},
	}
	if got := turn.CurrentLabel(); got != LabelDeepening {
		t.Errorf("expected deepening, got %s", got)
	}
}

func TestTurnActivations(t *testing.T) {
	turn := NewTurn("", map[string]DetectorResult{
		"presence": {DetectorID: "presence", Coherence: 0.8, Confidence: 0.5},
		"threat":   {DetectorID: "threat", Coherence: 2.0, Confidence: 1.0}, // clamped
	}, GlobalContext{})

	acts := turn.Activations()
	if got := acts["presence"]; got != 0.4 {
		t.Errorf("presence: expected 0.4, got %v", got)
	}
	if got := acts["threat"]; got != 1.0 {
		t.Errorf("threat: expected clamped 1.0, got %v", got)
	}
}

func TestTurnCloneIndependence(t *testing.T) {
	turn := NewTurn("input", map[string]DetectorResult{
		"presence": {
			DetectorID:      "presence",
			Coherence:       0.8,
			Confidence:      0.9,
			AtomActivations: map[string]float64{"warmth": 0.7},
		},
	}, GlobalContext{Zone: ZoneEngaged})
	turn.Signature = fuseUniform(0.5, 0.3)
	turn.Convergence = &ConvergenceState{Cycle: 3, Outcome: OutcomeSettled}
	turn.Trajectory = []TrajectoryState{{Current: LabelEmergence, Next: LabelAttunement}}
	turn.Selection = &SelectionResult{
		Winner: EmissionCandidate{Text: "original", Source: SourcePersona},
		Ranked: []ScoredCandidate{{Candidate: EmissionCandidate{Text: "original"}, Rank: 1}},
	}

	clone := turn.Clone()

	// Mutate every mutable part of the clone.
	clone.Signature[0] = 0.99
	r := clone.Results["presence"]
	r.Coherence = 0.1
	r.AtomActivations["warmth"] = 0.01
	clone.Results["presence"] = r
	clone.Convergence.Cycle = 99
	clone.Trajectory[0].Next = LabelCollapse
	clone.Selection.Winner.Text = "mutated"
	clone.Selection.Ranked[0].Rank = 42

	if turn.Signature[0] == 0.99 {
		t.Error("clone shares signature storage")
	}
	if turn.Results["presence"].Coherence != 0.8 {
		t.Error("clone shares results map")
	}
	if turn.Results["presence"].AtomActivations["warmth"] != 0.7 {
		t.Error("clone shares atom activations")
	}
	if turn.Convergence.Cycle != 3 {
		t.Error("clone shares convergence state")
	}
	if turn.Trajectory[0].Next != LabelAttunement {
		t.Error("clone shares trajectory")
	}
	if turn.Selection.Winner.Text != "original" {
		t.Error("clone shares selection winner")
	}
	if turn.Selection.Ranked[0].Rank != 1 {
		t.Error("clone shares ranked slice")
	}
}
