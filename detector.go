package felt

import "context"

// DetectorResult is one detector's reading of a single conversational turn.
// Immutable once produced. Fields outside their declared ranges are a
// data-quality problem handled by clamping at fusion time, never a failure.
type DetectorResult struct {
	DetectorID string `json:"detector_id" db:"detector_id" type:"text"`

	// Coherence, Intensity and Confidence are in [0,1]; Polarity in [-1,1].
	Coherence  float64 `json:"coherence" db:"coherence" type:"double precision"`
	Intensity  float64 `json:"intensity" db:"intensity" type:"double precision"`
	Polarity   float64 `json:"polarity" db:"polarity" type:"double precision"`
	Confidence float64 `json:"confidence" db:"confidence" type:"double precision"`

	// AtomActivations maps named sub-pattern atoms to weights in [0,1].
	AtomActivations map[string]float64 `json:"atom_activations,omitempty"`
}

// Detector produces a DetectorResult for one turn of input text. The core
// pipeline never calls detectors itself; they are external collaborators
// (keyword scorers, learned classifiers, LLM-backed scorers) invoked by the
// caller, which hands the core a complete result set.
type Detector interface {
	// ID returns the stable detector identifier used for coupling and
	// signature block placement.
	ID() string

	// Detect scores a single turn.
	Detect(ctx context.Context, text string) (DetectorResult, error)
}

// DetectorOrder is the canonical block order of the reference detectors.
// The fuser places each detector's block at its index here; unknown
// detector IDs are ignored and missing ones padded with zeros.
var DetectorOrder = [DetectorCount]string{
	"presence",
	"attunement",
	"boundary",
	"rupture",
	"repair",
	"longing",
	"play",
	"grief",
	"vitality",
	"threat",
	"coherence-field",
}

// detectorIndex maps detector IDs to their block position.
var detectorIndex = func() map[string]int {
	m := make(map[string]int, DetectorCount)
	for i, id := range DetectorOrder {
		m[id] = i
	}
	return m
}()

// DetectorSlot returns the block index for a detector ID, or -1 if the ID
// is not part of the versioned layout.
func DetectorSlot(id string) int {
	if i, ok := detectorIndex[id]; ok {
		return i
	}
	return -1
}
