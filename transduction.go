package felt

import (
	"context"
	"fmt"
	"strings"

	"github.com/zoobzio/zyn"
)

// TransductionSource generates a candidate by transducing the turn's felt
// state into language through an LLM. It is an external collaborator like
// every other candidate source: when no provider resolves, it produces
// nothing rather than failing the pipeline.
type TransductionSource struct {
	provider    Provider
	temperature float32
}

// NewTransductionSource creates an LLM-backed candidate source. Provider
// resolution follows the source → context → global hierarchy.
func NewTransductionSource() *TransductionSource {
	return &TransductionSource{}
}

// WithProvider sets a source-level provider.
func (s *TransductionSource) WithProvider(p Provider) *TransductionSource {
	s.provider = p
	return s
}

// WithTemperature sets the generation temperature.
func (s *TransductionSource) WithTemperature(temp float32) *TransductionSource {
	s.temperature = temp
	return s
}

// Name implements CandidateSource.
func (*TransductionSource) Name() string { return SourceTransduction }

// Produce implements CandidateSource. The felt state is rendered as
// structured context and a transform synapse phrases one response in it.
func (s *TransductionSource) Produce(ctx context.Context, sel SelectionContext) ([]EmissionCandidate, error) {
	provider, err := ResolveProvider(ctx, s.provider)
	if err != nil {
		// No provider is a configuration state, not a turn failure.
		return nil, nil
	}

	synapse, err := zyn.Transform(
		"Phrase one short response that fits the described relational state",
		provider,
	)
	if err != nil {
		return nil, fmt.Errorf("transduction: failed to create transform synapse: %w", err)
	}

	temp := s.temperature
	if temp == 0 {
		temp = zyn.DefaultTemperatureCreative
	}

	text, err := synapse.FireWithInput(ctx, zyn.NewSession(), zyn.TransformInput{
		Text:        renderSelectionContext(sel),
		Context:     "You are responding inside an ongoing conversation. One or two sentences.",
		Style:       "Plain, warm, unhurried. Match the autonomic state: brief under sympathetic or dorsal activation.",
		Temperature: temp,
	})
	if err != nil {
		return nil, fmt.Errorf("transduction: synapse execution failed: %w", err)
	}

	readiness := clamp01(0.4 + 0.5*sel.Convergence.Satisfaction)
	return []EmissionCandidate{{
		Text:      strings.TrimSpace(text),
		Source:    SourceTransduction,
		Readiness: readiness,
	}}, nil
}

// renderSelectionContext formats the felt state for the transform synapse.
func renderSelectionContext(sel SelectionContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "relational state: %s\n", sel.Label)
	fmt.Fprintf(&b, "pathway: %s\n", sel.Pathway)
	fmt.Fprintf(&b, "zone: %s\n", sel.Zone)
	fmt.Fprintf(&b, "autonomic state: %s\n", sel.Autonomic)
	fmt.Fprintf(&b, "satisfaction: %.2f\n", sel.Convergence.Satisfaction)
	fmt.Fprintf(&b, "residual energy: %.2f\n", sel.Convergence.ResidualEnergy)
	if sel.Convergence.OpportuneMoment {
		b.WriteString("an opportune moment is open\n")
	}
	return b.String()
}
