package felt

import (
	"context"

	"github.com/zoobzio/capitan"
)

// Outcome distinguishes how a convergence run terminated. Downstream
// scoring weighs these differently: a forced termination carries less
// confidence than a settled or kairos run.
type Outcome string

const (
	// OutcomeSettled means residual energy dropped below epsilon.
	OutcomeSettled Outcome = "settled"

	// OutcomeTimeout means the cycle cap was reached first. Reported,
	// never fatal.
	OutcomeTimeout Outcome = "timeout"

	// OutcomeKairos means a coherence spike coincided with low residual
	// energy and the remaining cycles were cut short.
	OutcomeKairos Outcome = "kairos"
)

// ConvergenceState is the per-turn convergence record. Created once per
// turn, mutated once per cycle, discarded after selection.
type ConvergenceState struct {
	Cycle           int     `json:"cycle"`
	ResidualEnergy  float64 `json:"residual_energy"`
	Satisfaction    float64 `json:"satisfaction"`
	OpportuneMoment bool    `json:"opportune_moment"`
	Outcome         Outcome `json:"outcome"`
}

// CycleFunc observes one completed convergence cycle. The engine invokes
// observers synchronously, in registration order, before checking terminal
// conditions.
type CycleFunc func(ctx context.Context, cycle int, state ConvergenceState)

// ConvergenceEngine drives residual energy toward zero across bounded
// cycles. The only observable state between cycles is the cycle counter;
// the hard cycle cap doubles as the per-turn timeout mechanism.
type ConvergenceEngine struct {
	cfg ConvergenceConfig
}

// NewConvergenceEngine creates an engine with the given configuration.
func NewConvergenceEngine(cfg ConvergenceConfig) *ConvergenceEngine {
	if cfg.MaxCycles <= 0 {
		cfg.MaxCycles = DefaultConfig().Convergence.MaxCycles
	}
	return &ConvergenceEngine{cfg: cfg}
}

// Run iterates the relaxation update
//
//	V[t+1] = clamp01(V[t] · (1 − relaxation · meanCoherence))
//
// starting from the signature's fused residual energy, until one of the
// terminal conditions is met, first match wins: residual energy below
// epsilon (settled), cycle cap reached (timeout), or a coherence spike
// co-occurring with low residual energy (kairos, which ends the run
// early). Run never exceeds MaxCycles regardless of input.
func (e *ConvergenceEngine) Run(ctx context.Context, sig FeltSignature, observers ...CycleFunc) ConvergenceState {
	coherence := sig.MeanCoherence()
	state := ConvergenceState{
		ResidualEnergy: clamp01(sig.ResidualEnergy()),
	}

	for state.Cycle < e.cfg.MaxCycles {
		state.Cycle++
		state.ResidualEnergy = clamp01(state.ResidualEnergy * (1 - e.cfg.Relaxation*coherence))
		state.Satisfaction = clamp01((1 - state.ResidualEnergy) * (0.6 + 0.4*coherence))

		capitan.Emit(ctx, ConvergenceCycle,
			FieldCycle.Field(state.Cycle),
			FieldResidualEnergy.Field(float32(state.ResidualEnergy)),
			FieldMeanCoherence.Field(float32(coherence)),
		)

		for _, observe := range observers {
			observe(ctx, state.Cycle, state)
		}

		if state.ResidualEnergy < e.cfg.Epsilon {
			state.Outcome = OutcomeSettled
			capitan.Emit(ctx, ConvergenceSettled,
				FieldCycle.Field(state.Cycle),
				FieldResidualEnergy.Field(float32(state.ResidualEnergy)),
			)
			return state
		}

		if state.Cycle >= e.cfg.MaxCycles {
			break
		}

		if coherence >= e.cfg.KairosCoherence && state.ResidualEnergy < e.cfg.KairosEnergy {
			state.OpportuneMoment = true
			state.Outcome = OutcomeKairos
			capitan.Emit(ctx, KairosDetected,
				FieldCycle.Field(state.Cycle),
				FieldResidualEnergy.Field(float32(state.ResidualEnergy)),
				FieldMeanCoherence.Field(float32(coherence)),
			)
			return state
		}
	}

	state.Outcome = OutcomeTimeout
	capitan.Emit(ctx, ConvergenceTimeout,
		FieldCycle.Field(state.Cycle),
		FieldResidualEnergy.Field(float32(state.ResidualEnergy)),
	)
	return state
}

// MaxCycles returns the engine's hard cycle cap.
func (e *ConvergenceEngine) MaxCycles() int {
	return e.cfg.MaxCycles
}
