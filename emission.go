package felt

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/zoobzio/capitan"
)

// ErrSelectionExhausted means every candidate was excluded and no
// fallback source was registered. The pipeline cannot produce output.
var ErrSelectionExhausted = errors.New("selection exhausted: no candidates survived and no fallback source is registered")

// ScoredCandidate is one ranked candidate with its full scoring record.
type ScoredCandidate struct {
	Candidate EmissionCandidate `json:"candidate"`
	Score     float64           `json:"score"`
	Rank      int               `json:"rank"`
}

// ExclusionRecord explains why a candidate was removed before ranking.
type ExclusionRecord struct {
	Candidate EmissionCandidate `json:"candidate"`
	Reason    string            `json:"reason"`
}

// SelectionResult is the auditable outcome of one selection: the winner
// plus full provenance for every candidate considered.
type SelectionResult struct {
	Winner         EmissionCandidate `json:"winner"`
	Score          float64           `json:"score"`
	Ranked         []ScoredCandidate `json:"ranked"`
	Excluded       []ExclusionRecord `json:"excluded"`
	FallbackForced bool              `json:"fallback_forced"`
}

func (r SelectionResult) clone() SelectionResult {
	out := r
	out.Ranked = make([]ScoredCandidate, len(r.Ranked))
	copy(out.Ranked, r.Ranked)
	out.Excluded = make([]ExclusionRecord, len(r.Excluded))
	copy(out.Excluded, r.Excluded)
	return out
}

// EmissionSelector chooses one response from the candidates of all
// registered sources in three strict phases: Collect, Rank, Emit.
type EmissionSelector struct {
	cfg      SelectionConfig
	sources  []CandidateSource
	fallback CandidateSource
}

// NewEmissionSelector creates a selector over the given sources. The
// fallback competes in Collect like any other source and is re-consulted
// at Emit time when nothing survived ranking: construct with
// NewFallbackSource (or any pure source) unless candidates are guaranteed
// by other means.
func NewEmissionSelector(cfg SelectionConfig, fallback CandidateSource, sources ...CandidateSource) *EmissionSelector {
	return &EmissionSelector{
		cfg:      cfg,
		sources:  sources,
		fallback: fallback,
	}
}

// AddSource registers an additional candidate source.
func (s *EmissionSelector) AddSource(source CandidateSource) *EmissionSelector {
	s.sources = append(s.sources, source)
	return s
}

// Select runs the three phases and returns the winner with provenance.
// Source errors are reported and skipped; an empty survivor set forces
// the mandatory fallback, and only a missing or failing fallback is
// fatal.
func (s *EmissionSelector) Select(ctx context.Context, sel SelectionContext) (SelectionResult, error) {
	// PHASE 1: COLLECT.
	pool := s.collect(ctx, sel)

	capitan.Emit(ctx, CandidatesCollected,
		FieldTurnID.Field(sel.TurnID),
		FieldCandidateCount.Field(len(pool)),
	)

	// PHASE 2: RANK.
	ranked, excluded := s.rank(ctx, sel, pool)

	// PHASE 3: EMIT.
	result, err := s.emit(ctx, sel, ranked, excluded)
	if err != nil {
		return SelectionResult{}, err
	}

	capitan.Emit(ctx, EmissionSelected,
		FieldTurnID.Field(sel.TurnID),
		FieldSource.Field(result.Winner.Source),
		FieldScore.Field(float32(result.Score)),
		FieldCandidateCount.Field(len(result.Ranked)),
	)
	return result, nil
}

// collect gathers candidates from every source including the fallback,
// preserving registration and insertion order for deterministic
// tie-breaking later.
func (s *EmissionSelector) collect(ctx context.Context, sel SelectionContext) []EmissionCandidate {
	sources := s.sources
	if s.fallback != nil {
		sources = append(append([]CandidateSource(nil), s.sources...), s.fallback)
	}

	var pool []EmissionCandidate
	for _, source := range sources {
		candidates, err := source.Produce(ctx, sel)
		if err != nil {
			capitan.Error(ctx, CandidateExcluded,
				FieldTurnID.Field(sel.TurnID),
				FieldSource.Field(source.Name()),
				FieldError.Field(fmt.Errorf("source failed: %w", err)),
			)
			continue
		}
		pool = append(pool, candidates...)
	}
	return pool
}

// rank scores every candidate and gates out those below the safety floor.
// score = w1·readiness + w2·pathwayAlignment − w3·safetyPenalty, with
// readiness discounted when convergence was forced to terminate.
func (s *EmissionSelector) rank(ctx context.Context, sel SelectionContext, pool []EmissionCandidate) ([]ScoredCandidate, []ExclusionRecord) {
	var ranked []ScoredCandidate
	var excluded []ExclusionRecord

	for _, c := range pool {
		penalty := clamp01(c.SafetyPenalty + contextPenalty(c, sel))
		if safety := 1 - penalty; safety < s.cfg.SafetyFloor {
			reason := fmt.Sprintf("safety %.2f below floor %.2f for %s/%s", safety, s.cfg.SafetyFloor, sel.Autonomic, sel.Zone)
			excluded = append(excluded, ExclusionRecord{Candidate: c, Reason: reason})
			capitan.Emit(ctx, CandidateExcluded,
				FieldTurnID.Field(sel.TurnID),
				FieldSource.Field(c.Source),
				FieldReason.Field(reason),
			)
			continue
		}

		readiness := c.Readiness
		if sel.Convergence.Outcome == OutcomeTimeout {
			readiness *= s.cfg.TimeoutConfidencePenalty
		}

		score := s.cfg.ReadinessWeight*readiness +
			s.cfg.PathwayWeight*pathwayAlignment(c.Source, sel.Pathway) -
			s.cfg.SafetyWeight*penalty

		c.SafetyPenalty = penalty
		ranked = append(ranked, ScoredCandidate{Candidate: c, Score: score})
	}

	// Deterministic order: score desc, then source priority, then
	// insertion order (the stable sort preserves it).
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return sourcePriority(ranked[i].Candidate.Source) < sourcePriority(ranked[j].Candidate.Source)
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, excluded
}

// emit applies the budget policy over the surviving ranked list. An empty
// list means even the fallback's candidates were excluded; the fallback is
// then forced through the gate, because a rupture or shutdown turn still
// needs some response.
func (s *EmissionSelector) emit(ctx context.Context, sel SelectionContext, ranked []ScoredCandidate, excluded []ExclusionRecord) (SelectionResult, error) {
	if len(ranked) == 0 {
		if s.fallback == nil {
			return SelectionResult{}, ErrSelectionExhausted
		}
		candidates, err := s.fallback.Produce(ctx, sel)
		if err != nil || len(candidates) == 0 {
			if err != nil {
				return SelectionResult{}, fmt.Errorf("%w: fallback source failed: %v", ErrSelectionExhausted, err)
			}
			return SelectionResult{}, fmt.Errorf("%w: fallback source returned no candidates", ErrSelectionExhausted)
		}
		winner := candidates[0]
		return SelectionResult{
			Winner:         winner,
			Score:          s.cfg.ReadinessWeight * winner.Readiness,
			Ranked:         []ScoredCandidate{{Candidate: winner, Score: s.cfg.ReadinessWeight * winner.Readiness, Rank: 1}},
			Excluded:       excluded,
			FallbackForced: true,
		}, nil
	}

	budget := s.cfg.Budget
	if budget <= 0 || budget > len(ranked) {
		budget = len(ranked)
	}
	window := ranked[:budget]

	// Family-aware preference inside the budget window: a memory
	// candidate recalled for this family wins over an equal-scored
	// stranger. With the default top-1 budget this is a no-op.
	winner := window[0]
	for _, sc := range window {
		if sc.Candidate.Source == SourceMemory && sc.Score == winner.Score && winner.Candidate.Source != SourceMemory {
			winner = sc
			break
		}
	}

	return SelectionResult{
		Winner:   winner.Candidate,
		Score:    winner.Score,
		Ranked:   ranked,
		Excluded: excluded,
	}, nil
}

// contextPenalty raises a candidate's safety penalty when its shape does
// not suit the autonomic-state/zone combination: long, effortful text has
// no place in a shutdown or high-urgency turn.
func contextPenalty(c EmissionCandidate, sel SelectionContext) float64 {
	var penalty float64

	verbose := len(c.Text) > 120
	if verbose {
		switch sel.Autonomic {
		case AutonomicSympathetic:
			penalty += 0.45
		case AutonomicDorsal:
			penalty += 0.6
		}
	}

	if sel.Zone == ZoneRupture && c.Source == SourceTransduction {
		// Rupture turns get grounded, known-safe phrasing, not fresh
		// generation.
		penalty += 0.3
	}

	if IsCrisis(sel.Label) && verbose {
		penalty += 0.2
	}

	return penalty
}

// pathwayAlignment scores how well a source's character fits the turn's
// dominant pathway.
var alignmentTable = map[Pathway]map[string]float64{
	PathwayCrisis: {
		SourceFallback:       0.9,
		SourceMemory:         0.7,
		SourcePersona:        0.6,
		SourceReconstruction: 0.4,
		SourceTransduction:   0.2,
	},
	PathwayProtective: {
		SourcePersona:        0.8,
		SourceFallback:       0.7,
		SourceMemory:         0.6,
		SourceReconstruction: 0.5,
		SourceTransduction:   0.4,
	},
	PathwayHealing: {
		SourceTransduction:   0.8,
		SourceMemory:         0.8,
		SourcePersona:        0.7,
		SourceReconstruction: 0.6,
		SourceFallback:       0.3,
	},
}

func pathwayAlignment(source string, pathway Pathway) float64 {
	if table, ok := alignmentTable[pathway]; ok {
		if a, ok := table[source]; ok {
			return a
		}
	}
	return 0.5
}

// sourceRank is the deterministic tie-break order between sources.
var sourceRank = map[string]int{
	SourceMemory:         0,
	SourceTransduction:   1,
	SourceReconstruction: 2,
	SourcePersona:        3,
	SourceFallback:       4,
}

func sourcePriority(source string) int {
	if r, ok := sourceRank[source]; ok {
		return r
	}
	return len(sourceRank)
}
