// Package felt turns detector readings from a conversational exchange into
// a single, safety-gated response.
//
// felt implements a Signature-Trajectory-Emission architecture: each turn
// fuses detector output into a fixed-layout vector, relaxes it through a
// bounded convergence loop, classifies the relational trajectory, and
// selects one response from competing candidate sources.
//
// # Core Types
//
// The package is built around four core concepts:
//
//   - [Turn] - The rolling per-turn state flowing through the pipeline
//   - [FeltSignature] - The fixed 57-dimension fused detector vector
//   - [Organism] - The shared long-lived state plus the turn pipeline
//   - [EmissionCandidate] - One possible response with readiness and safety
//
// # Processing Turns
//
// Use [NewOrganism] and [Organism.ProcessTurn]:
//
//	organism := felt.NewOrganism(felt.DefaultConfig())
//	turn, err := organism.ProcessTurn(ctx, input, detectorResults, global)
//	fmt.Println(turn.Selection.Winner.Text)
//
// # Pipeline Stages
//
// Every turn passes through five stages, in order:
//
//   - [Fuse] - Detector results into a [FeltSignature]
//   - [ConvergenceEngine.Run] - Residual energy relaxation with per-cycle
//     trajectory classification and coupling learning
//   - [FamilyClusterer.Assign] - Online clustering into signature families
//   - [EmissionSelector.Select] - Collect, rank, emit one candidate
//   - Record - Cache the emission and remember the turn for feedback
//
// # Candidate Sources
//
// Selection draws from any number of [CandidateSource] implementations:
//
//   - [MemorySource] - Cached high-satisfaction emissions by similarity
//   - [ReconstructionSource] - Phrasing built from dominant detector output
//   - [PersonaSource] - Templates keyed by trajectory label
//   - [TransductionSource] - LLM generation via zyn when a provider resolves
//   - [FallbackSource] - Pure, never-empty acknowledgments
//
// The fallback is mandatory: when safety gating excludes every candidate,
// it alone guarantees the pipeline still emits.
//
// # Learning
//
// Two structures learn across turns and persist through [StateStore]:
//
//   - [CouplingMatrix] - Hebbian detector co-activation with decay, bounds,
//     and health-triggered re-seeding
//   - [FamilyClusterer] - Online centroid clustering with an adaptive
//     threshold against centroid collapse
//
// Delayed feedback flows through [Organism.ApplyFeedback], which reinforces
// coupling and re-weights the cached emission without re-running the turn.
//
// # Persistence
//
// [StateStore] snapshots coupling, families, and the emission cache as
// versioned JSON with atomic writes. [Archive] optionally keeps full
// emission history in Postgres with pgvector similarity search.
//
// # Pipeline Helpers
//
// felt wraps pipz connectors for Turn processing:
//
//   - [Sequence] - Sequential execution
//   - [Filter] - Conditional execution
//   - [Fallback] - Alternatives on failure
//   - [Retry], [Timeout] - Reliability wrappers
//   - [Concurrent], [Race] - Parallel execution on cloned turns
//
// # Observability
//
// All pipeline events emit through capitan signals (felt.turn.*,
// felt.convergence.*, felt.emission.*, ...) carrying typed fields. Attach
// hooks to any signal for logging or metrics.
package felt
