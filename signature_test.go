package felt

import (
	"context"
	"math"
	"testing"
)

// uniformResults builds a full detector result set with the same field
// values on every detector.
func uniformResults(coherence, intensity, polarity, confidence float64) map[string]DetectorResult {
	results := make(map[string]DetectorResult, DetectorCount)
	for _, id := range DetectorOrder {
		results[id] = DetectorResult{
			DetectorID: id,
			Coherence:  coherence,
			Intensity:  intensity,
			Polarity:   polarity,
			Confidence: confidence,
		}
	}
	return results
}

// fuseUniform is the common test signature: every detector at the given
// coherence, a chosen residual energy, neutral ventral context.
func fuseUniform(coherence, residual float64) FeltSignature {
	return Fuse(context.Background(), uniformResults(coherence, 0.5, 0, 0.8), GlobalContext{
		ResidualEnergy: residual,
		Zone:           ZoneNeutral,
		Autonomic:      AutonomicVentral,
	})
}

func TestFuseLength(t *testing.T) {
	sig := fuseUniform(0.5, 0.5)
	if len(sig) != SignatureLength {
		t.Fatalf("expected length %d, got %d", SignatureLength, len(sig))
	}
}

func TestFuseMissingDetectorPadded(t *testing.T) {
	results := uniformResults(0.8, 0.5, 0, 0.9)
	delete(results, "grief")
	delete(results, "threat")

	sig := Fuse(context.Background(), results, GlobalContext{Zone: ZoneNeutral, Autonomic: AutonomicVentral})

	if len(sig) != SignatureLength {
		t.Fatalf("expected length %d, got %d", SignatureLength, len(sig))
	}
	for _, slot := range []int{slotGrief, slotThreat} {
		c, i, p, conf := sig.DetectorBlock(slot)
		if c != 0 || i != 0 || p != 0 || conf != 0 {
			t.Errorf("slot %d: expected zero block, got (%v,%v,%v,%v)", slot, c, i, p, conf)
		}
	}
	// Present detectors keep their values.
	if c, _, _, _ := sig.DetectorBlock(slotPresence); math.Abs(c-0.8) > 1e-6 {
		t.Errorf("presence coherence: expected 0.8, got %v", c)
	}
}

func TestFuseClampsOutOfRange(t *testing.T) {
	results := uniformResults(0.5, 0.5, 0, 0.5)
	results["presence"] = DetectorResult{
		DetectorID: "presence",
		Coherence:  1.7,
		Intensity:  math.Inf(1),
		Polarity:   -3,
		Confidence: math.NaN(),
	}

	sig := Fuse(context.Background(), results, GlobalContext{
		ResidualEnergy: 2.5,
		Satisfaction:   -1,
		Zone:           ZoneNeutral,
		Autonomic:      AutonomicVentral,
	})

	c, i, p, conf := sig.DetectorBlock(slotPresence)
	if c != 1 {
		t.Errorf("coherence: expected clamp to 1, got %v", c)
	}
	if i != 1 {
		t.Errorf("intensity: expected +Inf clamped to 1, got %v", i)
	}
	if p != -1 {
		t.Errorf("polarity: expected clamp to -1, got %v", p)
	}
	if conf != 0 {
		t.Errorf("confidence: expected NaN collapsed to 0, got %v", conf)
	}
	if sig.ResidualEnergy() != 1 {
		t.Errorf("residual energy: expected clamp to 1, got %v", sig.ResidualEnergy())
	}
}

func TestFuseOneHotEncoding(t *testing.T) {
	tests := []struct {
		name          string
		zone          Zone
		autonomic     AutonomicState
		wantZone      Zone
		wantAutonomic AutonomicState
	}{
		{name: "known values", zone: ZoneGuarded, autonomic: AutonomicDorsal, wantZone: ZoneGuarded, wantAutonomic: AutonomicDorsal},
		{name: "unknown zone defaults neutral", zone: "unknown", autonomic: AutonomicSympathetic, wantZone: ZoneNeutral, wantAutonomic: AutonomicSympathetic},
		{name: "unknown autonomic defaults ventral", zone: ZoneIntimate, autonomic: "unknown", wantZone: ZoneIntimate, wantAutonomic: AutonomicVentral},
		{name: "empty context", zone: "", autonomic: "", wantZone: ZoneNeutral, wantAutonomic: AutonomicVentral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Fuse(context.Background(), uniformResults(0.5, 0.5, 0, 0.5), GlobalContext{
				Zone:      tt.zone,
				Autonomic: tt.autonomic,
			})

			if got := sig.Zone(); got != tt.wantZone {
				t.Errorf("zone: expected %s, got %s", tt.wantZone, got)
			}
			if got := sig.Autonomic(); got != tt.wantAutonomic {
				t.Errorf("autonomic: expected %s, got %s", tt.wantAutonomic, got)
			}

			// Exactly one position hot per block.
			var zoneHot, autHot int
			for i := 0; i < ZoneCount; i++ {
				if sig[sigZoneOffset+i] > 0.5 {
					zoneHot++
				}
			}
			for i := 0; i < AutonomicCount; i++ {
				if sig[sigAutonomicOffset+i] > 0.5 {
					autHot++
				}
			}
			if zoneHot != 1 || autHot != 1 {
				t.Errorf("expected exactly one hot per block, got zone=%d autonomic=%d", zoneHot, autHot)
			}
		})
	}
}

func TestFuseGlobalScalars(t *testing.T) {
	sig := Fuse(context.Background(), uniformResults(0.5, 0.5, 0, 0.5), GlobalContext{
		ResidualEnergy:    0.7,
		Satisfaction:      0.4,
		Zone:              ZoneEngaged,
		Autonomic:         AutonomicVentral,
		ActiveTransitions: 4,
		FieldCoherence:    0.6,
		Kairos:            true,
	})

	if math.Abs(sig.ResidualEnergy()-0.7) > 1e-6 {
		t.Errorf("residual energy: expected 0.7, got %v", sig.ResidualEnergy())
	}
	if math.Abs(sig.FieldCoherence()-0.6) > 1e-6 {
		t.Errorf("field coherence: expected 0.6, got %v", sig.FieldCoherence())
	}
	if !sig.Kairos() {
		t.Error("expected kairos flag set")
	}
	if got := float64(sig[sigTransitionIdx]); math.Abs(got-0.5) > 1e-6 {
		t.Errorf("transitions: expected 4/8=0.5, got %v", got)
	}
}

func TestMeanCoherence(t *testing.T) {
	sig := fuseUniform(0.6, 0)
	if got := sig.MeanCoherence(); math.Abs(got-0.6) > 1e-6 {
		t.Errorf("expected 0.6, got %v", got)
	}
}

func TestDetectorBlockOutOfRange(t *testing.T) {
	sig := fuseUniform(0.5, 0)
	for _, slot := range []int{-1, DetectorCount} {
		c, i, p, conf := sig.DetectorBlock(slot)
		if c != 0 || i != 0 || p != 0 || conf != 0 {
			t.Errorf("slot %d: expected zeros, got (%v,%v,%v,%v)", slot, c, i, p, conf)
		}
	}
}

func TestZeroSignatureDecodes(t *testing.T) {
	sig := make(FeltSignature, SignatureLength)
	if got := sig.Zone(); got != ZoneNeutral {
		t.Errorf("zone: expected neutral, got %s", got)
	}
	if got := sig.Autonomic(); got != AutonomicVentral {
		t.Errorf("autonomic: expected ventral, got %s", got)
	}
	if sig.Kairos() {
		t.Error("expected kairos unset")
	}
}
