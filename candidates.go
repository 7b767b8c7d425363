package felt

import (
	"context"
	"fmt"
)

// Candidate source names. Sources register under these names and the
// ranking phase uses them for pathway alignment and tie-breaking.
const (
	SourceReconstruction = "reconstruction"
	SourceTransduction   = "transduction"
	SourcePersona        = "persona"
	SourceFallback       = "hebbian-fallback"
	SourceMemory         = "memory"
)

// EmissionCandidate is one possible response text with its readiness and
// intrinsic safety penalty. Contextual penalties are added at ranking.
type EmissionCandidate struct {
	Text          string  `json:"text"`
	Source        string  `json:"source"`
	Readiness     float64 `json:"readiness"`
	SafetyPenalty float64 `json:"safety_penalty"`
}

// SelectionContext is everything the Collect and Rank phases may consult:
// the turn's fused signature and the states derived from it.
type SelectionContext struct {
	TurnID      string
	Signature   FeltSignature
	Convergence ConvergenceState
	Label       Label
	Pathway     Pathway
	Zone        Zone
	Autonomic   AutonomicState
	FamilyID    string
}

// CandidateSource produces zero or more candidates for a turn. Sources
// are external collaborators (template engines, retrieval, LLM-backed
// generators); at least one registered source must be a pure,
// side-effect-free fallback that never returns an empty slice.
type CandidateSource interface {
	// Name returns the source identifier recorded in provenance.
	Name() string

	// Produce generates candidates for the selection context.
	Produce(ctx context.Context, sel SelectionContext) ([]EmissionCandidate, error)
}

// FallbackSource is the mandatory pure candidate source. It composes one
// minimal, zone- and state-appropriate acknowledgment from fixed tables;
// it never fails and never returns an empty slice.
type FallbackSource struct{}

// NewFallbackSource creates the mandatory fallback.
func NewFallbackSource() *FallbackSource {
	return &FallbackSource{}
}

// Name implements CandidateSource.
func (*FallbackSource) Name() string { return SourceFallback }

var fallbackByAutonomic = map[AutonomicState]string{
	AutonomicVentral:     "I'm here with you.",
	AutonomicSympathetic: "I'm here. We can slow down.",
	AutonomicDorsal:      "I'm here. No rush.",
}

var fallbackByZone = map[Zone]string{
	ZoneIntimate: "Staying with this.",
	ZoneEngaged:  "Go on, I'm listening.",
	ZoneNeutral:  "I'm listening.",
	ZoneGuarded:  "Take whatever space you need.",
	ZoneRupture:  "Something went sideways between us. I'm still here.",
}

// Produce implements CandidateSource. Deterministic in the selection
// context; readiness is modest so richer sources win when present.
func (*FallbackSource) Produce(_ context.Context, sel SelectionContext) ([]EmissionCandidate, error) {
	text, ok := fallbackByZone[sel.Zone]
	if !ok {
		text = fallbackByAutonomic[sel.Autonomic]
	}
	if text == "" {
		text = "I'm here."
	}
	return []EmissionCandidate{{
		Text:      text,
		Source:    SourceFallback,
		Readiness: 0.4,
	}}, nil
}

// PersonaSource renders short template responses keyed by the trajectory
// label and pathway. A stand-in for richer external template engines.
type PersonaSource struct {
	templates map[Label]string
}

// NewPersonaSource creates a persona source with the default templates.
func NewPersonaSource() *PersonaSource {
	return &PersonaSource{templates: defaultPersonaTemplates}
}

var defaultPersonaTemplates = map[Label]string{
	LabelEmergence:      "Something new is taking shape here. Tell me more.",
	LabelAttunement:     "I can feel where you're coming from. Let's stay close to that.",
	LabelDeepening:      "There's more underneath this. I'd like to go there with you.",
	LabelPlateau:        "We can rest here for a moment before going further.",
	LabelRepair:         "I want to make this right between us.",
	LabelConsolidation:  "Look how far this has come. It's holding.",
	LabelRelease:        "It's okay to let this go now.",
	LabelHolding:        "Your boundary is clear, and I'll respect it.",
	LabelOverwhelm:      "That's a lot at once. One piece at a time.",
	LabelShutdown:       "No pressure to respond. I'm not going anywhere.",
	LabelFragmentation:  "Let's find one solid thing to stand on.",
	LabelHypervigilance: "Nothing here needs defending right now.",
	LabelCollapse:       "Just breathing is enough.",
	LabelDissociation:   "When you're ready, come back to this moment.",
}

// Name implements CandidateSource.
func (*PersonaSource) Name() string { return SourcePersona }

// Produce implements CandidateSource.
func (p *PersonaSource) Produce(_ context.Context, sel SelectionContext) ([]EmissionCandidate, error) {
	text, ok := p.templates[sel.Label]
	if !ok {
		return nil, nil
	}
	readiness := clamp01(0.5 + 0.4*sel.Convergence.Satisfaction)
	return []EmissionCandidate{{
		Text:      text,
		Source:    SourcePersona,
		Readiness: readiness,
	}}, nil
}

// ReconstructionSource composes a response from the strongest atom
// activations across the turn's detector results, naming what the
// detectors actually registered. Pure; no external calls.
type ReconstructionSource struct{}

// NewReconstructionSource creates a reconstruction source.
func NewReconstructionSource() *ReconstructionSource {
	return &ReconstructionSource{}
}

// Name implements CandidateSource.
func (*ReconstructionSource) Name() string { return SourceReconstruction }

// Produce implements CandidateSource. The turn's dominant detector (by
// coherence × confidence) anchors the phrasing; its strongest atom, when
// present, is surfaced directly.
func (*ReconstructionSource) Produce(_ context.Context, sel SelectionContext) ([]EmissionCandidate, error) {
	bestSlot := -1
	bestWeight := 0.0
	for i := 0; i < DetectorCount; i++ {
		coherence, _, _, confidence := sel.Signature.DetectorBlock(i)
		if w := coherence * confidence; w > bestWeight {
			bestWeight = w
			bestSlot = i
		}
	}
	if bestSlot < 0 || bestWeight < 0.1 {
		return nil, nil
	}

	text := fmt.Sprintf("What stands out most right now is %s. I want to stay with that.", DetectorOrder[bestSlot])
	return []EmissionCandidate{{
		Text:      text,
		Source:    SourceReconstruction,
		Readiness: clamp01(bestWeight),
	}}, nil
}

// MemorySource seeds the candidate pool from cached high-satisfaction
// emissions similar to the current signature.
type MemorySource struct {
	memory *EmissionMemory
	k      int
}

// NewMemorySource creates a memory-backed source retrieving up to k
// entries per turn.
func NewMemorySource(memory *EmissionMemory, k int) *MemorySource {
	if k <= 0 {
		k = 3
	}
	return &MemorySource{memory: memory, k: k}
}

// Name implements CandidateSource.
func (*MemorySource) Name() string { return SourceMemory }

// Produce implements CandidateSource.
func (s *MemorySource) Produce(_ context.Context, sel SelectionContext) ([]EmissionCandidate, error) {
	if s.memory == nil {
		return nil, fmt.Errorf("memory source: no emission memory configured")
	}

	entries := s.memory.RetrieveSimilar(sel.Signature, sel.Zone, sel.Pathway, sel.Autonomic, s.k)
	candidates := make([]EmissionCandidate, 0, len(entries))
	for _, e := range entries {
		sim := sel.Signature.Cosine(e.Signature)
		candidates = append(candidates, EmissionCandidate{
			Text:      e.Text,
			Source:    SourceMemory,
			Readiness: clamp01(e.Satisfaction * clamp01(sim)),
		})
	}
	return candidates, nil
}
