package felt

import "github.com/zoobzio/capitan"

// Signal definitions for felt pipeline events.
// Signals follow the pattern: felt.<entity>.<event>.
var (
	// Turn lifecycle signals.
	TurnStarted = capitan.NewSignal(
		"felt.turn.started",
		"New conversational turn entered the pipeline",
	)
	TurnCompleted = capitan.NewSignal(
		"felt.turn.completed",
		"Turn finished with a selected emission",
	)
	TurnFailed = capitan.NewSignal(
		"felt.turn.failed",
		"Turn could not produce an emission",
	)

	// Signature fusion signals.
	SignatureFused = capitan.NewSignal(
		"felt.signature.fused",
		"Detector results fused into a felt signature",
	)
	DetectorClamped = capitan.NewSignal(
		"felt.detector.clamped",
		"Out-of-range detector field clamped during fusion",
	)
	DetectorPadded = capitan.NewSignal(
		"felt.detector.padded",
		"Missing detector padded with a zero block",
	)

	// Convergence signals.
	ConvergenceCycle = capitan.NewSignal(
		"felt.convergence.cycle",
		"Residual energy updated for one convergence cycle",
	)
	ConvergenceSettled = capitan.NewSignal(
		"felt.convergence.settled",
		"Residual energy dropped below epsilon",
	)
	ConvergenceTimeout = capitan.NewSignal(
		"felt.convergence.timeout",
		"Cycle cap reached before satisfaction",
	)
	KairosDetected = capitan.NewSignal(
		"felt.convergence.kairos",
		"Coherence spike coincided with low residual energy",
	)

	// Trajectory signals.
	MechanismFired = capitan.NewSignal(
		"felt.trajectory.mechanism",
		"Trajectory mechanism triggered a label transition",
	)

	// Coupling signals.
	CouplingUpdated = capitan.NewSignal(
		"felt.coupling.updated",
		"Coupling matrix reinforced and decayed for one turn",
	)
	CouplingReseeded = capitan.NewSignal(
		"felt.coupling.reseeded",
		"Coupling matrix re-seeded after discrimination collapse",
	)

	// Family signals.
	FamilyCreated = capitan.NewSignal(
		"felt.family.created",
		"Unmatched signature seeded a new family",
	)
	FamilyMatched = capitan.NewSignal(
		"felt.family.matched",
		"Signature joined an existing family",
	)
	FamilyCollapse = capitan.NewSignal(
		"felt.family.collapse",
		"Centroid variance fell below the discrimination floor",
	)

	// Emission signals.
	CandidatesCollected = capitan.NewSignal(
		"felt.emission.collected",
		"Candidate pool gathered from all sources",
	)
	CandidateExcluded = capitan.NewSignal(
		"felt.emission.excluded",
		"Candidate excluded by safety gating",
	)
	EmissionSelected = capitan.NewSignal(
		"felt.emission.selected",
		"Winning candidate chosen with full provenance",
	)
	EmissionRecorded = capitan.NewSignal(
		"felt.emission.recorded",
		"High-satisfaction emission cached for retrieval",
	)
	EmissionEvicted = capitan.NewSignal(
		"felt.emission.evicted",
		"Oldest cached emission evicted at capacity",
	)

	// Persistence signals.
	StateSaved = capitan.NewSignal(
		"felt.state.saved",
		"Shared state snapshot written atomically",
	)
	StateCorrupt = capitan.NewSignal(
		"felt.state.corrupt",
		"Persisted state failed to parse and was reset",
	)

	// Feedback signals.
	FeedbackApplied = capitan.NewSignal(
		"felt.feedback.applied",
		"Delayed satisfaction score applied to a past turn",
	)
)

// Field keys for felt event data.
var (
	// Turn metadata.
	FieldTurnID  = capitan.NewStringKey("turn_id")
	FieldTraceID = capitan.NewStringKey("trace_id")

	// Detector metadata.
	FieldDetectorID = capitan.NewStringKey("detector_id")
	FieldFieldName  = capitan.NewStringKey("field_name")
	FieldRawValue   = capitan.NewFloat32Key("raw_value")

	// Convergence metrics.
	FieldCycle          = capitan.NewIntKey("cycle")
	FieldResidualEnergy = capitan.NewFloat32Key("residual_energy")
	FieldSatisfaction   = capitan.NewFloat32Key("satisfaction")
	FieldMeanCoherence  = capitan.NewFloat32Key("mean_coherence")

	// Trajectory metadata.
	FieldMechanism = capitan.NewStringKey("mechanism")
	FieldPathway   = capitan.NewStringKey("pathway")
	FieldFromLabel = capitan.NewStringKey("from_label")
	FieldToLabel   = capitan.NewStringKey("to_label")

	// Coupling metrics.
	FieldCouplingMean   = capitan.NewFloat32Key("coupling_mean")
	FieldCouplingStdDev = capitan.NewFloat32Key("coupling_stddev")
	FieldUpdateCount    = capitan.NewIntKey("update_count")

	// Family metadata.
	FieldFamilyID    = capitan.NewStringKey("family_id")
	FieldSimilarity  = capitan.NewFloat32Key("similarity")
	FieldThreshold   = capitan.NewFloat32Key("threshold")
	FieldMemberCount = capitan.NewIntKey("member_count")

	// Emission metadata.
	FieldSource         = capitan.NewStringKey("source")
	FieldScore          = capitan.NewFloat32Key("score")
	FieldCandidateCount = capitan.NewIntKey("candidate_count")
	FieldReason         = capitan.NewStringKey("reason")

	// Persistence metadata.
	FieldPath          = capitan.NewStringKey("path")
	FieldSchemaVersion = capitan.NewIntKey("schema_version")

	// Timing.
	FieldTurnDuration = capitan.NewDurationKey("turn_duration")

	// Error information.
	FieldError = capitan.NewErrorKey("error")
)
