package felt

import (
	"context"
	"strings"
	"testing"
)

func TestFallbackNeverEmpty(t *testing.T) {
	source := NewFallbackSource()

	contexts := []SelectionContext{
		{Zone: ZoneIntimate, Autonomic: AutonomicVentral},
		{Zone: ZoneRupture, Autonomic: AutonomicDorsal},
		{Zone: "unknown", Autonomic: AutonomicSympathetic},
		{Zone: "unknown", Autonomic: "unknown"},
		{},
	}

	for _, sel := range contexts {
		candidates, err := source.Produce(context.Background(), sel)
		if err != nil {
			t.Fatalf("fallback failed for %+v: %v", sel, err)
		}
		if len(candidates) == 0 {
			t.Fatalf("fallback returned no candidates for %+v", sel)
		}
		if candidates[0].Text == "" {
			t.Errorf("fallback returned empty text for %+v", sel)
		}
		if candidates[0].Source != SourceFallback {
			t.Errorf("expected source %s, got %s", SourceFallback, candidates[0].Source)
		}
	}
}

func TestFallbackDeterministic(t *testing.T) {
	source := NewFallbackSource()
	sel := SelectionContext{Zone: ZoneGuarded, Autonomic: AutonomicSympathetic}

	first, _ := source.Produce(context.Background(), sel)
	second, _ := source.Produce(context.Background(), sel)
	if first[0].Text != second[0].Text {
		t.Errorf("fallback not deterministic: %q vs %q", first[0].Text, second[0].Text)
	}
}

func TestPersonaCoversVocabulary(t *testing.T) {
	source := NewPersonaSource()

	labels := []Label{
		LabelEmergence, LabelAttunement, LabelDeepening, LabelPlateau,
		LabelRepair, LabelConsolidation, LabelRelease, LabelHolding,
		LabelOverwhelm, LabelShutdown, LabelFragmentation,
		LabelHypervigilance, LabelCollapse, LabelDissociation,
	}
	for _, label := range labels {
		candidates, err := source.Produce(context.Background(), SelectionContext{Label: label})
		if err != nil {
			t.Fatalf("persona failed for %s: %v", label, err)
		}
		if len(candidates) != 1 || candidates[0].Text == "" {
			t.Errorf("persona has no template for %s", label)
		}
	}

	// Unknown label produces nothing rather than failing.
	candidates, err := source.Produce(context.Background(), SelectionContext{Label: "unknown"})
	if err != nil || len(candidates) != 0 {
		t.Errorf("unknown label: expected no candidates, got %v, %v", candidates, err)
	}
}

func TestPersonaReadinessTracksSatisfaction(t *testing.T) {
	source := NewPersonaSource()

	low, _ := source.Produce(context.Background(), SelectionContext{
		Label:       LabelAttunement,
		Convergence: ConvergenceState{Satisfaction: 0.1},
	})
	high, _ := source.Produce(context.Background(), SelectionContext{
		Label:       LabelAttunement,
		Convergence: ConvergenceState{Satisfaction: 0.9},
	})

	if low[0].Readiness >= high[0].Readiness {
		t.Errorf("readiness should rise with satisfaction: %v vs %v", low[0].Readiness, high[0].Readiness)
	}
}

func TestReconstructionNamesDominantDetector(t *testing.T) {
	source := NewReconstructionSource()

	sig := sigWith(GlobalContext{Zone: ZoneEngaged, Autonomic: AutonomicVentral}, map[string]DetectorResult{
		"grief": {DetectorID: "grief", Coherence: 0.9, Confidence: 0.9},
	})

	candidates, err := source.Produce(context.Background(), SelectionContext{Signature: sig})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if got := candidates[0].Text; !strings.Contains(got, "grief") {
		t.Errorf("expected text naming grief, got %q", got)
	}
}

func TestReconstructionSilentOnWeakSignal(t *testing.T) {
	source := NewReconstructionSource()

	// Everything near zero: the dominant weight stays below the floor.
	sig := Fuse(context.Background(), uniformResults(0.1, 0.1, 0, 0.1), GlobalContext{})
	candidates, err := source.Produce(context.Background(), SelectionContext{Signature: sig})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("expected no candidates for weak signal, got %d", len(candidates))
	}
}

func TestMemorySourceRequiresMemory(t *testing.T) {
	source := NewMemorySource(nil, 3)
	if _, err := source.Produce(context.Background(), SelectionContext{}); err == nil {
		t.Error("expected error when no emission memory is configured")
	}
}

func TestMemorySourceReadiness(t *testing.T) {
	memory := NewEmissionMemory(DefaultConfig().Memory)
	sig := hotSignature(slotAttunement)
	memory.Record(context.Background(), cachedEmission("past", "remembered", 0.9, sig, ZoneEngaged, PathwayHealing, AutonomicVentral))

	source := NewMemorySource(memory, 3)
	candidates, err := source.Produce(context.Background(), SelectionContext{
		Signature: sig,
		Zone:      ZoneEngaged,
		Pathway:   PathwayHealing,
		Autonomic: AutonomicVentral,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	// readiness = satisfaction × cosine = 0.9 × 1.
	if r := candidates[0].Readiness; r < 0.89 || r > 0.91 {
		t.Errorf("expected readiness near 0.9, got %v", r)
	}
}
