package felt

import (
	"time"

	"github.com/google/uuid"
)

// Turn is the rolling state of one conversational turn as it moves through
// the pipeline: detector results in, selected emission out.
//
// # Concurrency
//
// A Turn is owned by exactly one goroutine for the duration of its
// pipeline pass; per-turn processing is synchronous. For pipz connectors
// that require isolation (Concurrent, Race), Clone produces an
// independent deep copy.
type Turn struct {
	// Identity
	ID      string `db:"id" type:"uuid" constraints:"primarykey" default:"gen_random_uuid()"`
	TraceID string `db:"trace_id" type:"text" constraints:"notnull,unique"`

	// Input
	Input   string                    `db:"input" type:"text"`
	Results map[string]DetectorResult `db:"-"`
	Global  GlobalContext             `db:"-"`

	// Derived state, populated stage by stage.
	Signature   FeltSignature     `db:"signature" type:"vector(57)"`
	Convergence *ConvergenceState `db:"-"`
	Trajectory  []TrajectoryState `db:"-"`
	FamilyID    string            `db:"family_id" type:"text"`
	Candidates  []EmissionCandidate
	Selection   *SelectionResult

	CreatedAt time.Time `db:"created_at" type:"timestamp" constraints:"notnull"`
}

// NewTurn creates a turn for the given input text and detector results.
func NewTurn(input string, results map[string]DetectorResult, global GlobalContext) *Turn {
	return &Turn{
		ID:        uuid.New().String(),
		TraceID:   uuid.New().String(),
		Input:     input,
		Results:   results,
		Global:    global,
		CreatedAt: time.Now(),
	}
}

// CurrentLabel returns the most recent trajectory label, or the empty
// label when classification has not yet run.
func (t *Turn) CurrentLabel() Label {
	if len(t.Trajectory) == 0 {
		return ""
	}
	return t.Trajectory[len(t.Trajectory)-1].Next
}

// Pathway returns the dominant pathway class of the turn's trajectory.
func (t *Turn) Pathway() Pathway {
	return DominantPathway(t.Trajectory)
}

// Activations returns the per-detector coherence-weighted activation used
// by the coupling learner: activation = coherence × confidence.
func (t *Turn) Activations() map[string]float64 {
	out := make(map[string]float64, len(t.Results))
	for id, r := range t.Results {
		out[id] = clamp01(r.Coherence) * clamp01(r.Confidence)
	}
	return out
}

// Clone creates a deep copy of the turn for parallel connectors.
// Required for pipz.Concurrent and other cloning operations.
func (t *Turn) Clone() *Turn {
	clone := &Turn{
		ID:        t.ID,
		TraceID:   t.TraceID,
		Input:     t.Input,
		Global:    t.Global,
		FamilyID:  t.FamilyID,
		CreatedAt: t.CreatedAt,
	}

	if t.Results != nil {
		clone.Results = make(map[string]DetectorResult, len(t.Results))
		for id, r := range t.Results {
			if r.AtomActivations != nil {
				atoms := make(map[string]float64, len(r.AtomActivations))
				for k, v := range r.AtomActivations {
					atoms[k] = v
				}
				r.AtomActivations = atoms
			}
			clone.Results[id] = r
		}
	}

	clone.Signature = FeltSignature(Vector(t.Signature).Clone())

	if t.Convergence != nil {
		cs := *t.Convergence
		clone.Convergence = &cs
	}

	if t.Trajectory != nil {
		clone.Trajectory = make([]TrajectoryState, len(t.Trajectory))
		copy(clone.Trajectory, t.Trajectory)
	}

	if t.Candidates != nil {
		clone.Candidates = make([]EmissionCandidate, len(t.Candidates))
		copy(clone.Candidates, t.Candidates)
	}

	if t.Selection != nil {
		sel := t.Selection.clone()
		clone.Selection = &sel
	}

	return clone
}

// Compile-time check: *Turn must implement pipz.Cloner[*Turn].
var _ interface{ Clone() *Turn } = (*Turn)(nil)
