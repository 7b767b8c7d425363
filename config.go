package felt

// Layout constants for the felt signature. Versioned: any change to the
// layout must bump SignatureVersion so persisted signatures are never
// reinterpreted under a different layout.
const (
	// SignatureVersion identifies the signature layout.
	SignatureVersion = 1

	// DetectorCount is the number of detectors fused per turn.
	DetectorCount = 11

	// DetectorBlockSize is the number of fields per detector block
	// (coherence, intensity, polarity, confidence).
	DetectorBlockSize = 4

	// ZoneCount is the width of the relational-zone one-hot block.
	ZoneCount = 5

	// AutonomicCount is the width of the autonomic-state one-hot block.
	AutonomicCount = 3

	// SignatureLength is the total fixed signature length:
	// detector blocks + residual energy + satisfaction + zone one-hot +
	// autonomic one-hot + active-transition count + field coherence +
	// kairos flag.
	SignatureLength = DetectorCount*DetectorBlockSize + 2 + ZoneCount + AutonomicCount + 3
)

// MechanismTableVersion identifies the trajectory mechanism priority order
// and trigger coefficients. Bump on any reordering or threshold change.
const MechanismTableVersion = 1

// ConvergenceConfig bounds the per-turn convergence loop.
type ConvergenceConfig struct {
	// MaxCycles is the hard cycle cap and the only mid-turn timeout.
	MaxCycles int

	// Epsilon is the residual-energy threshold for settlement.
	Epsilon float64

	// Relaxation scales how strongly mean coherence drains residual energy.
	Relaxation float64

	// KairosCoherence is the mean-coherence spike threshold for an
	// opportune moment.
	KairosCoherence float64

	// KairosEnergy is the residual-energy ceiling for an opportune moment.
	KairosEnergy float64
}

// CouplingConfig tunes the Hebbian coupling learner.
type CouplingConfig struct {
	LearningRate float64
	DecayRate    float64
	Baseline     float64

	// CoActivation is the minimum activation for a pair to reinforce.
	CoActivation float64

	// MinBound and MaxBound are the off-diagonal clamp, strictly inside (0,1).
	MinBound float64
	MaxBound float64

	// Health band for the off-diagonal mean, and the stddev floor below
	// which the matrix no longer discriminates between detector pairs.
	TargetMeanLow  float64
	TargetMeanHigh float64
	StdDevFloor    float64

	// HealthInterval is how many updates pass between health checks.
	HealthInterval int
}

// ClusterConfig tunes the family clusterer.
type ClusterConfig struct {
	// BaseThreshold is the cosine similarity floor for joining a family.
	BaseThreshold float64

	// MaxThreshold caps the adaptive rise of the threshold.
	MaxThreshold float64

	// VarianceWindow is how many recent signatures inform the adaptive
	// threshold.
	VarianceWindow int

	// VarianceFloor is the recent-signature stddev below which the
	// threshold tightens toward MaxThreshold.
	VarianceFloor float64

	// CentroidStdDevFloor flags a near-uniform centroid that would absorb
	// every input.
	CentroidStdDevFloor float64

	// MatureSize is the member count at which a family is mature.
	MatureSize int

	// StaleAfterTurns marks families inactive for this many assignments.
	StaleAfterTurns int
}

// SelectionConfig tunes candidate scoring and the emit budget.
type SelectionConfig struct {
	ReadinessWeight float64
	PathwayWeight   float64
	SafetyWeight    float64

	// SafetyFloor excludes candidates outright, not merely down-ranks.
	SafetyFloor float64

	// TimeoutConfidencePenalty scales readiness when convergence was
	// forced to terminate rather than settling.
	TimeoutConfidencePenalty float64

	// Budget is how many ranked survivors the emit phase may consider.
	// 1 means strict top-1.
	Budget int
}

// MemoryConfig bounds the emission cache.
type MemoryConfig struct {
	Capacity            int
	MinSatisfaction     float64
	SimilarityThreshold float64
	PathwayBoost        float64
	AutonomicBoost      float64
}

// Config aggregates all component configuration. Zero value is not usable;
// start from DefaultConfig and override fields.
type Config struct {
	Convergence ConvergenceConfig
	Coupling    CouplingConfig
	Cluster     ClusterConfig
	Selection   SelectionConfig
	Memory      MemoryConfig

	// TurnLedgerSize bounds how many past turns remain addressable by
	// delayed feedback.
	TurnLedgerSize int
}

// DefaultConfig returns the reference configuration. Coefficients are
// tuned against the package tests, not against any external source.
func DefaultConfig() Config {
	return Config{
		Convergence: ConvergenceConfig{
			MaxCycles:       12,
			Epsilon:         0.05,
			Relaxation:      0.35,
			KairosCoherence: 0.75,
			KairosEnergy:    0.25,
		},
		Coupling: CouplingConfig{
			LearningRate:   0.02,
			DecayRate:      0.005,
			Baseline:       0.6,
			CoActivation:   0.3,
			MinBound:       0.15,
			MaxBound:       0.9,
			TargetMeanLow:  0.5,
			TargetMeanHigh: 0.7,
			StdDevFloor:    0.02,
			HealthInterval: 25,
		},
		Cluster: ClusterConfig{
			BaseThreshold:       0.85,
			MaxThreshold:        0.97,
			VarianceWindow:      20,
			VarianceFloor:       0.08,
			CentroidStdDevFloor: 0.01,
			MatureSize:          10,
			StaleAfterTurns:     200,
		},
		Selection: SelectionConfig{
			ReadinessWeight:          0.5,
			PathwayWeight:            0.3,
			SafetyWeight:             0.6,
			SafetyFloor:              0.35,
			TimeoutConfidencePenalty: 0.8,
			Budget:                   1,
		},
		Memory: MemoryConfig{
			Capacity:            256,
			MinSatisfaction:     0.7,
			SimilarityThreshold: 0.6,
			PathwayBoost:        1.2,
			AutonomicBoost:      1.1,
		},
		TurnLedgerSize: 128,
	}
}
