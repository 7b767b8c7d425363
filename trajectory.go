package felt

import (
	"context"

	"github.com/zoobzio/capitan"
)

// Label is a relational-state classification drawn from the closed
// vocabulary below. The vocabulary is versioned with the mechanism table.
type Label string

// Constitutional labels.
const (
	LabelEmergence     Label = "emergence"
	LabelAttunement    Label = "attunement"
	LabelDeepening     Label = "deepening"
	LabelPlateau       Label = "plateau"
	LabelRepair        Label = "repair"
	LabelConsolidation Label = "consolidation"
	LabelRelease       Label = "release"
	LabelHolding       Label = "holding"
)

// Crisis labels.
const (
	LabelOverwhelm      Label = "overwhelm"
	LabelShutdown       Label = "shutdown"
	LabelFragmentation  Label = "fragmentation"
	LabelHypervigilance Label = "hypervigilance"
	LabelCollapse       Label = "collapse"
	LabelDissociation   Label = "dissociation"
)

var crisisLabels = map[Label]bool{
	LabelOverwhelm:      true,
	LabelShutdown:       true,
	LabelFragmentation:  true,
	LabelHypervigilance: true,
	LabelCollapse:       true,
	LabelDissociation:   true,
}

// IsCrisis reports whether a label belongs to the crisis vocabulary.
func IsCrisis(l Label) bool {
	return crisisLabels[l]
}

// Pathway groups trajectory mechanisms by effect.
type Pathway string

const (
	PathwayHealing    Pathway = "healing"
	PathwayCrisis     Pathway = "crisis"
	PathwayProtective Pathway = "protective"
	PathwayMaintain   Pathway = "maintain"
)

// TrajectoryState is one entry in a turn's trajectory. Immutable once
// appended.
type TrajectoryState struct {
	Current            Label   `json:"current"`
	Next               Label   `json:"next"`
	Mechanism          string  `json:"mechanism"`
	Pathway            Pathway `json:"pathway"`
	MutualSatisfaction float64 `json:"mutual_satisfaction"`
	RhythmCoherence    float64 `json:"rhythm_coherence"`
}

// mechanism is one named transition rule. Trigger predicates read
// signature sub-fields; the first matching mechanism in table order wins.
type mechanism struct {
	name    string
	pathway Pathway
	trigger func(current Label, sig FeltSignature) bool
	target  Label
}

// Detector slots referenced by trigger predicates.
const (
	slotPresence   = 0
	slotAttunement = 1
	slotBoundary   = 2
	slotRupture    = 3
	slotRepair     = 4
	slotGrief      = 7
	slotVitality   = 8
	slotThreat     = 9
)

// mechanismTable is the prioritized transition table, version
// MechanismTableVersion. Crisis detection outranks protective gating,
// which outranks healing movements; within a group, more specific
// predicates come first.
var mechanismTable = []mechanism{
	{
		name:    "shutdown-drop",
		pathway: PathwayCrisis,
		target:  LabelShutdown,
		trigger: func(_ Label, sig FeltSignature) bool {
			return sig.Autonomic() == AutonomicDorsal && sig.FieldCoherence() < 0.3
		},
	},
	{
		name:    "overwhelm-spiral",
		pathway: PathwayCrisis,
		target:  LabelOverwhelm,
		trigger: func(_ Label, sig FeltSignature) bool {
			_, intensity, _, _ := sig.DetectorBlock(slotThreat)
			return sig.Autonomic() == AutonomicSympathetic && intensity > 0.7
		},
	},
	{
		name:    "rupture-cascade",
		pathway: PathwayCrisis,
		target:  LabelFragmentation,
		trigger: func(_ Label, sig FeltSignature) bool {
			coherence, _, _, _ := sig.DetectorBlock(slotRupture)
			return sig.Zone() == ZoneRupture && coherence > 0.6
		},
	},
	{
		name:    "dissociative-drift",
		pathway: PathwayCrisis,
		target:  LabelDissociation,
		trigger: func(_ Label, sig FeltSignature) bool {
			presence, _, _, _ := sig.DetectorBlock(slotPresence)
			return presence < 0.2 && sig.Autonomic() == AutonomicDorsal
		},
	},
	{
		name:    "collapse-fold",
		pathway: PathwayCrisis,
		target:  LabelCollapse,
		trigger: func(_ Label, sig FeltSignature) bool {
			vitality, _, _, _ := sig.DetectorBlock(slotVitality)
			return sig.ResidualEnergy() > 0.8 && vitality < 0.2
		},
	},
	{
		name:    "hypervigilance-lock",
		pathway: PathwayCrisis,
		target:  LabelHypervigilance,
		trigger: func(_ Label, sig FeltSignature) bool {
			threat, _, _, _ := sig.DetectorBlock(slotThreat)
			attunement, _, _, _ := sig.DetectorBlock(slotAttunement)
			return threat > 0.5 && attunement < 0.3
		},
	},
	{
		name:    "boundary-assertion",
		pathway: PathwayProtective,
		target:  LabelHolding,
		trigger: func(_ Label, sig FeltSignature) bool {
			boundary, _, _, _ := sig.DetectorBlock(slotBoundary)
			return boundary > 0.6 && sig.Zone() == ZoneGuarded
		},
	},
	{
		name:    "withdrawal-guard",
		pathway: PathwayProtective,
		target:  LabelHolding,
		trigger: func(current Label, sig FeltSignature) bool {
			boundary, _, _, _ := sig.DetectorBlock(slotBoundary)
			return IsCrisis(current) && boundary > 0.4
		},
	},
	{
		name:    "titration-hold",
		pathway: PathwayProtective,
		target:  LabelPlateau,
		trigger: func(_ Label, sig FeltSignature) bool {
			threat, _, _, _ := sig.DetectorBlock(slotThreat)
			attunement, _, _, _ := sig.DetectorBlock(slotAttunement)
			return threat > 0.4 && attunement > 0.4
		},
	},
	{
		name:    "repair-initiation",
		pathway: PathwayHealing,
		target:  LabelRepair,
		trigger: func(current Label, sig FeltSignature) bool {
			repair, _, _, _ := sig.DetectorBlock(slotRepair)
			return repair > 0.5 && (IsCrisis(current) || sig.Zone() == ZoneRupture)
		},
	},
	{
		name:    "kairos-opening",
		pathway: PathwayHealing,
		target:  LabelDeepening,
		trigger: func(_ Label, sig FeltSignature) bool {
			return sig.Kairos() && sig.FieldCoherence() > 0.6
		},
	},
	{
		name:    "co-regulation",
		pathway: PathwayHealing,
		target:  LabelAttunement,
		trigger: func(_ Label, sig FeltSignature) bool {
			attunement, _, _, _ := sig.DetectorBlock(slotAttunement)
			return attunement > 0.6 && sig.Autonomic() == AutonomicVentral
		},
	},
	{
		name:    "consolidation-wave",
		pathway: PathwayHealing,
		target:  LabelConsolidation,
		trigger: func(current Label, sig FeltSignature) bool {
			vitality, _, _, _ := sig.DetectorBlock(slotVitality)
			zone := sig.Zone()
			return current == LabelDeepening && vitality > 0.6 &&
				(zone == ZoneIntimate || zone == ZoneEngaged)
		},
	},
	{
		name:    "release-exhale",
		pathway: PathwayHealing,
		target:  LabelRelease,
		trigger: func(_ Label, sig FeltSignature) bool {
			grief, _, _, _ := sig.DetectorBlock(slotGrief)
			repair, _, _, _ := sig.DetectorBlock(slotRepair)
			return grief > 0.5 && repair > 0.3
		},
	},
}

// TrajectoryClassifier is a finite-state machine over the relational-state
// vocabulary. Stateless between turns; the caller owns the trajectory.
type TrajectoryClassifier struct{}

// NewTrajectoryClassifier creates a classifier using the versioned
// mechanism table.
func NewTrajectoryClassifier() *TrajectoryClassifier {
	return &TrajectoryClassifier{}
}

// InitialLabel computes the trajectory's starting label from the first
// cycle's signature. Crisis conditions take precedence over zone defaults.
func (c *TrajectoryClassifier) InitialLabel(sig FeltSignature) Label {
	for _, m := range mechanismTable {
		if m.pathway == PathwayCrisis && m.trigger("", sig) {
			return m.target
		}
	}
	switch sig.Zone() {
	case ZoneIntimate:
		return LabelDeepening
	case ZoneEngaged:
		return LabelAttunement
	case ZoneGuarded:
		return LabelHolding
	case ZoneRupture:
		return LabelFragmentation
	default:
		return LabelEmergence
	}
}

// Step evaluates the mechanism table against the current label and
// signature. The first matching mechanism determines the next label; when
// none match, the mechanism is maintain and the label is unchanged.
func (c *TrajectoryClassifier) Step(ctx context.Context, current Label, sig FeltSignature, conv ConvergenceState) TrajectoryState {
	attunement, _, _, _ := sig.DetectorBlock(slotAttunement)
	state := TrajectoryState{
		Current:            current,
		Next:               current,
		Mechanism:          "maintain",
		Pathway:            PathwayMaintain,
		MutualSatisfaction: conv.Satisfaction,
		RhythmCoherence:    clamp01(0.5*sig.FieldCoherence() + 0.5*attunement),
	}

	for _, m := range mechanismTable {
		if !m.trigger(current, sig) {
			continue
		}
		state.Next = m.target
		state.Mechanism = m.name
		state.Pathway = m.pathway

		capitan.Emit(ctx, MechanismFired,
			FieldMechanism.Field(m.name),
			FieldPathway.Field(string(m.pathway)),
			FieldFromLabel.Field(string(current)),
			FieldToLabel.Field(string(m.target)),
		)
		break
	}

	return state
}

// PathwayRatios returns the healing/crisis/protective mechanism ratios of
// a trajectory, excluding maintain entries. With no non-maintain firings
// all three ratios are 0; otherwise they sum to 1.
func PathwayRatios(trajectory []TrajectoryState) (healing, crisis, protective float64) {
	var h, c, p int
	for _, s := range trajectory {
		switch s.Pathway {
		case PathwayHealing:
			h++
		case PathwayCrisis:
			c++
		case PathwayProtective:
			p++
		}
	}
	total := h + c + p
	if total == 0 {
		return 0, 0, 0
	}
	return float64(h) / float64(total), float64(c) / float64(total), float64(p) / float64(total)
}

// DominantPathway returns the most frequent non-maintain pathway of a
// trajectory, or PathwayMaintain when no mechanism ever fired. Ties break
// toward crisis, then protective, then healing, so callers never
// understate risk.
func DominantPathway(trajectory []TrajectoryState) Pathway {
	healing, crisis, protective := PathwayRatios(trajectory)
	if healing == 0 && crisis == 0 && protective == 0 {
		return PathwayMaintain
	}
	if crisis >= protective && crisis >= healing {
		return PathwayCrisis
	}
	if protective >= healing {
		return PathwayProtective
	}
	return PathwayHealing
}
