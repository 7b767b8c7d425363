package felt

import (
	"context"
	"math"
	"testing"
)

// sigWith fuses a quiet baseline result set with specific detector
// overrides applied on top.
func sigWith(global GlobalContext, overrides map[string]DetectorResult) FeltSignature {
	results := uniformResults(0.5, 0.3, 0, 0.5)
	for id, r := range overrides {
		results[id] = r
	}
	return Fuse(context.Background(), results, global)
}

func TestInitialLabelCrisisPrecedence(t *testing.T) {
	// Dorsal shutdown wins even inside an intimate zone.
	sig := sigWith(GlobalContext{
		Zone:           ZoneIntimate,
		Autonomic:      AutonomicDorsal,
		FieldCoherence: 0.1,
	}, nil)

	classifier := NewTrajectoryClassifier()
	if got := classifier.InitialLabel(sig); got != LabelShutdown {
		t.Errorf("expected shutdown, got %s", got)
	}
}

func TestInitialLabelZoneDefaults(t *testing.T) {
	tests := []struct {
		zone     Zone
		expected Label
	}{
		{ZoneIntimate, LabelDeepening},
		{ZoneEngaged, LabelAttunement},
		{ZoneNeutral, LabelEmergence},
		{ZoneGuarded, LabelHolding},
		{ZoneRupture, LabelFragmentation},
	}

	classifier := NewTrajectoryClassifier()
	for _, tt := range tests {
		t.Run(string(tt.zone), func(t *testing.T) {
			// Calm ventral context so no crisis mechanism preempts the
			// zone default.
			sig := sigWith(GlobalContext{
				Zone:           tt.zone,
				Autonomic:      AutonomicVentral,
				FieldCoherence: 0.5,
			}, map[string]DetectorResult{
				"rupture": {DetectorID: "rupture", Coherence: 0.1, Confidence: 0.5},
			})
			if got := classifier.InitialLabel(sig); got != tt.expected {
				t.Errorf("zone %s: expected %s, got %s", tt.zone, tt.expected, got)
			}
		})
	}
}

func TestStepMaintainWhenNothingFires(t *testing.T) {
	// Quiet mid-range signals fire no mechanism.
	sig := sigWith(GlobalContext{
		Zone:           ZoneNeutral,
		Autonomic:      AutonomicVentral,
		FieldCoherence: 0.5,
	}, map[string]DetectorResult{
		"attunement": {DetectorID: "attunement", Coherence: 0.5, Confidence: 0.5},
		"grief":      {DetectorID: "grief", Coherence: 0.2, Confidence: 0.5},
		"boundary":   {DetectorID: "boundary", Coherence: 0.2, Confidence: 0.5},
		"threat":     {DetectorID: "threat", Coherence: 0.2, Confidence: 0.5},
	})

	classifier := NewTrajectoryClassifier()
	state := classifier.Step(context.Background(), LabelPlateau, sig, ConvergenceState{Satisfaction: 0.5})

	if state.Mechanism != "maintain" {
		t.Fatalf("expected maintain, got %s", state.Mechanism)
	}
	if state.Next != LabelPlateau {
		t.Errorf("maintain must keep the label, got %s", state.Next)
	}
	if state.Pathway != PathwayMaintain {
		t.Errorf("expected maintain pathway, got %s", state.Pathway)
	}
}

func TestStepCrisisOutranksHealing(t *testing.T) {
	// Rupture zone with both a hot rupture detector and a hot repair
	// detector: rupture-cascade (crisis) must win over repair-initiation
	// (healing).
	sig := sigWith(GlobalContext{
		Zone:           ZoneRupture,
		Autonomic:      AutonomicVentral,
		FieldCoherence: 0.5,
	}, map[string]DetectorResult{
		"rupture": {DetectorID: "rupture", Coherence: 0.8, Confidence: 0.8},
		"repair":  {DetectorID: "repair", Coherence: 0.8, Confidence: 0.8},
		"threat":  {DetectorID: "threat", Coherence: 0.2, Confidence: 0.5},
	})

	classifier := NewTrajectoryClassifier()
	state := classifier.Step(context.Background(), LabelAttunement, sig, ConvergenceState{})

	if state.Mechanism != "rupture-cascade" {
		t.Fatalf("expected rupture-cascade, got %s", state.Mechanism)
	}
	if state.Next != LabelFragmentation {
		t.Errorf("expected fragmentation, got %s", state.Next)
	}
	if state.Pathway != PathwayCrisis {
		t.Errorf("expected crisis pathway, got %s", state.Pathway)
	}
}

func TestStepCoRegulation(t *testing.T) {
	sig := sigWith(GlobalContext{
		Zone:           ZoneEngaged,
		Autonomic:      AutonomicVentral,
		FieldCoherence: 0.5,
	}, map[string]DetectorResult{
		"attunement": {DetectorID: "attunement", Coherence: 0.8, Confidence: 0.8},
		"threat":     {DetectorID: "threat", Coherence: 0.1, Confidence: 0.5},
		"grief":      {DetectorID: "grief", Coherence: 0.1, Confidence: 0.5},
		"boundary":   {DetectorID: "boundary", Coherence: 0.1, Confidence: 0.5},
	})

	classifier := NewTrajectoryClassifier()
	state := classifier.Step(context.Background(), LabelEmergence, sig, ConvergenceState{})

	if state.Mechanism != "co-regulation" {
		t.Fatalf("expected co-regulation, got %s", state.Mechanism)
	}
	if state.Next != LabelAttunement {
		t.Errorf("expected attunement, got %s", state.Next)
	}
}

func TestIsCrisis(t *testing.T) {
	for _, l := range []Label{LabelOverwhelm, LabelShutdown, LabelFragmentation, LabelHypervigilance, LabelCollapse, LabelDissociation} {
		if !IsCrisis(l) {
			t.Errorf("%s should be a crisis label", l)
		}
	}
	for _, l := range []Label{LabelEmergence, LabelAttunement, LabelDeepening, LabelPlateau, LabelRepair, LabelConsolidation, LabelRelease, LabelHolding} {
		if IsCrisis(l) {
			t.Errorf("%s should not be a crisis label", l)
		}
	}
}

func TestPathwayRatios(t *testing.T) {
	trajectory := []TrajectoryState{
		{Pathway: PathwayHealing},
		{Pathway: PathwayHealing},
		{Pathway: PathwayCrisis},
		{Pathway: PathwayMaintain},
		{Pathway: PathwayProtective},
	}

	healing, crisis, protective := PathwayRatios(trajectory)
	if sum := healing + crisis + protective; math.Abs(sum-1) > 1e-9 {
		t.Errorf("ratios should sum to 1, got %v", sum)
	}
	if math.Abs(healing-0.5) > 1e-9 {
		t.Errorf("expected healing 0.5, got %v", healing)
	}
}

func TestPathwayRatiosAllMaintain(t *testing.T) {
	trajectory := []TrajectoryState{
		{Pathway: PathwayMaintain},
		{Pathway: PathwayMaintain},
	}

	healing, crisis, protective := PathwayRatios(trajectory)
	if healing != 0 || crisis != 0 || protective != 0 {
		t.Errorf("expected all-zero ratios, got %v/%v/%v", healing, crisis, protective)
	}
}

func TestDominantPathwayTieBreaksTowardCrisis(t *testing.T) {
	trajectory := []TrajectoryState{
		{Pathway: PathwayHealing},
		{Pathway: PathwayCrisis},
	}
	if got := DominantPathway(trajectory); got != PathwayCrisis {
		t.Errorf("tie must break toward crisis, got %s", got)
	}

	if got := DominantPathway(nil); got != PathwayMaintain {
		t.Errorf("empty trajectory: expected maintain, got %s", got)
	}
}
