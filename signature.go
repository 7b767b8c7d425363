package felt

import (
	"context"
	"fmt"
	"math"

	"github.com/zoobzio/capitan"
)

// Zone is the relational zone of a turn, one-hot encoded into the
// signature's global block.
type Zone string

// Relational zones, ordered by signature one-hot position.
const (
	ZoneIntimate Zone = "intimate"
	ZoneEngaged  Zone = "engaged"
	ZoneNeutral  Zone = "neutral"
	ZoneGuarded  Zone = "guarded"
	ZoneRupture  Zone = "rupture"
)

var zoneOrder = [ZoneCount]Zone{ZoneIntimate, ZoneEngaged, ZoneNeutral, ZoneGuarded, ZoneRupture}

// ZoneIndex returns the one-hot position of a zone, or -1 for unknown zones.
func ZoneIndex(z Zone) int {
	for i, zone := range zoneOrder {
		if zone == z {
			return i
		}
	}
	return -1
}

// AutonomicState is the turn's autonomic classification, one-hot encoded
// into the signature's global block.
type AutonomicState string

// Autonomic states, ordered by signature one-hot position.
const (
	AutonomicVentral     AutonomicState = "ventral"
	AutonomicSympathetic AutonomicState = "sympathetic"
	AutonomicDorsal      AutonomicState = "dorsal"
)

var autonomicOrder = [AutonomicCount]AutonomicState{AutonomicVentral, AutonomicSympathetic, AutonomicDorsal}

// AutonomicIndex returns the one-hot position of a state, or -1 if unknown.
func AutonomicIndex(a AutonomicState) int {
	for i, state := range autonomicOrder {
		if state == a {
			return i
		}
	}
	return -1
}

// GlobalContext carries the turn-level scalars fused into the signature
// alongside the per-detector blocks.
type GlobalContext struct {
	ResidualEnergy    float64        `json:"residual_energy"`
	Satisfaction      float64        `json:"satisfaction"`
	Zone              Zone           `json:"zone"`
	Autonomic         AutonomicState `json:"autonomic"`
	ActiveTransitions int            `json:"active_transitions"`
	FieldCoherence    float64        `json:"field_coherence"`
	Kairos            bool           `json:"kairos"`
}

// FeltSignature is the fixed-length fusion of all detector blocks and
// global scalars. Layout (SignatureVersion 1):
//
//	[0, 44)   11 detector blocks × (coherence, intensity, polarity, confidence)
//	[44]      residual energy
//	[45]      satisfaction
//	[46, 51)  relational-zone one-hot
//	[51, 54)  autonomic-state one-hot
//	[54]      active-transition count (scaled by 1/8)
//	[55]      field coherence
//	[56]      kairos flag
//
// The zero signature is valid; normalization never divides by zero.
type FeltSignature Vector

// Offsets into the global block of the signature.
const (
	sigGlobalOffset    = DetectorCount * DetectorBlockSize
	sigResidualOffset  = sigGlobalOffset
	sigSatisfiedOffset = sigGlobalOffset + 1
	sigZoneOffset      = sigGlobalOffset + 2
	sigAutonomicOffset = sigZoneOffset + ZoneCount
	sigTransitionIdx   = sigAutonomicOffset + AutonomicCount
	sigFieldCohIdx     = sigTransitionIdx + 1
	sigKairosIdx       = sigFieldCohIdx + 1

	// transitionScale keeps the active-transition count inside [0,1]
	// for trajectories up to 8 concurrent transitions.
	transitionScale = 8
)

// Vector returns the signature as a plain Vector.
func (s FeltSignature) Vector() Vector {
	return Vector(s)
}

// DetectorBlock returns the (coherence, intensity, polarity, confidence)
// block for the detector at slot i. Out-of-range slots return zeros.
func (s FeltSignature) DetectorBlock(i int) (coherence, intensity, polarity, confidence float64) {
	if i < 0 || i >= DetectorCount || len(s) != SignatureLength {
		return 0, 0, 0, 0
	}
	base := i * DetectorBlockSize
	return float64(s[base]), float64(s[base+1]), float64(s[base+2]), float64(s[base+3])
}

// ResidualEnergy returns the fused residual-energy scalar.
func (s FeltSignature) ResidualEnergy() float64 {
	if len(s) != SignatureLength {
		return 0
	}
	return float64(s[sigResidualOffset])
}

// Zone decodes the one-hot relational zone. A zero one-hot block decodes
// to ZoneNeutral.
func (s FeltSignature) Zone() Zone {
	if len(s) != SignatureLength {
		return ZoneNeutral
	}
	for i := 0; i < ZoneCount; i++ {
		if s[sigZoneOffset+i] > 0.5 {
			return zoneOrder[i]
		}
	}
	return ZoneNeutral
}

// Autonomic decodes the one-hot autonomic state. A zero block decodes to
// AutonomicVentral.
func (s FeltSignature) Autonomic() AutonomicState {
	if len(s) != SignatureLength {
		return AutonomicVentral
	}
	for i := 0; i < AutonomicCount; i++ {
		if s[sigAutonomicOffset+i] > 0.5 {
			return autonomicOrder[i]
		}
	}
	return AutonomicVentral
}

// FieldCoherence returns the fused field-coherence scalar.
func (s FeltSignature) FieldCoherence() float64 {
	if len(s) != SignatureLength {
		return 0
	}
	return float64(s[sigFieldCohIdx])
}

// Kairos reports whether the opportune-moment flag was set at fusion time.
func (s FeltSignature) Kairos() bool {
	return len(s) == SignatureLength && s[sigKairosIdx] > 0.5
}

// MeanCoherence averages the coherence field across all detector blocks.
func (s FeltSignature) MeanCoherence() float64 {
	if len(s) != SignatureLength {
		return 0
	}
	var sum float64
	for i := 0; i < DetectorCount; i++ {
		sum += float64(s[i*DetectorBlockSize])
	}
	return sum / DetectorCount
}

// Cosine returns cosine similarity against another signature.
func (s FeltSignature) Cosine(other FeltSignature) float64 {
	return Vector(s).Cosine(Vector(other))
}

// Fuse combines per-detector results and turn-level context into one felt
// signature. Deterministic and pure apart from data-quality telemetry:
// out-of-range fields are clamped and reported via DetectorClamped,
// missing detectors padded with zero blocks and reported via
// DetectorPadded. Fuse never fails on bad input; a wrong output length is
// a bug in the layout constants and panics.
func Fuse(ctx context.Context, results map[string]DetectorResult, global GlobalContext) FeltSignature {
	sig := make(FeltSignature, SignatureLength)

	for slot, id := range DetectorOrder {
		r, ok := results[id]
		if !ok {
			capitan.Emit(ctx, DetectorPadded, FieldDetectorID.Field(id))
			continue
		}
		base := slot * DetectorBlockSize
		sig[base] = float32(clampField(ctx, id, "coherence", r.Coherence, 0, 1))
		sig[base+1] = float32(clampField(ctx, id, "intensity", r.Intensity, 0, 1))
		sig[base+2] = float32(clampField(ctx, id, "polarity", r.Polarity, -1, 1))
		sig[base+3] = float32(clampField(ctx, id, "confidence", r.Confidence, 0, 1))
	}

	sig[sigResidualOffset] = float32(clampField(ctx, "global", "residual_energy", global.ResidualEnergy, 0, 1))
	sig[sigSatisfiedOffset] = float32(clampField(ctx, "global", "satisfaction", global.Satisfaction, 0, 1))

	if zi := ZoneIndex(global.Zone); zi >= 0 {
		sig[sigZoneOffset+zi] = 1
	} else {
		sig[sigZoneOffset+ZoneIndex(ZoneNeutral)] = 1
	}
	if ai := AutonomicIndex(global.Autonomic); ai >= 0 {
		sig[sigAutonomicOffset+ai] = 1
	} else {
		sig[sigAutonomicOffset+AutonomicIndex(AutonomicVentral)] = 1
	}

	transitions := float64(global.ActiveTransitions) / transitionScale
	sig[sigTransitionIdx] = float32(clamp01(transitions))
	sig[sigFieldCohIdx] = float32(clampField(ctx, "global", "field_coherence", global.FieldCoherence, 0, 1))
	if global.Kairos {
		sig[sigKairosIdx] = 1
	}

	if len(sig) != SignatureLength {
		panic(fmt.Sprintf("felt: fused signature length %d, want %d", len(sig), SignatureLength))
	}

	capitan.Emit(ctx, SignatureFused,
		FieldMeanCoherence.Field(float32(sig.MeanCoherence())),
		FieldResidualEnergy.Field(float32(sig.ResidualEnergy())),
	)

	return sig
}

// clampField clamps one detector field into its declared range, reporting
// the raw value when it was out of range or non-finite.
func clampField(ctx context.Context, detectorID, field string, value, lo, hi float64) float64 {
	if value >= lo && value <= hi && !math.IsNaN(value) && !math.IsInf(value, 0) {
		return value
	}
	capitan.Emit(ctx, DetectorClamped,
		FieldDetectorID.Field(detectorID),
		FieldFieldName.Field(field),
		FieldRawValue.Field(float32(value)),
	)
	if math.IsInf(value, 1) {
		return hi
	}
	return clampRange(value, lo, hi)
}
