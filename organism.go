package felt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// Organism owns the shared long-lived state and runs the per-turn
// pipeline: fuse → converge (with trajectory and coupling stepping per
// cycle) → cluster → select → record.
//
// Per-turn processing is synchronous and single-threaded. Turns from
// different conversations may run concurrently; the coupling matrix,
// family set, and emission memory serialize their own updates.
type Organism struct {
	cfg        Config
	engine     *ConvergenceEngine
	classifier *TrajectoryClassifier
	coupling   *CouplingMatrix
	families   *FamilyClusterer
	memory     *EmissionMemory
	selector   *EmissionSelector
	pipeline   *pipz.Sequence[*Turn]

	store   *StateStore
	archive *Archive

	ledger *turnLedger
}

// OrganismOption configures an Organism.
type OrganismOption func(*Organism)

// WithStateStore attaches a JSON snapshot store for Load and Save.
func WithStateStore(store *StateStore) OrganismOption {
	return func(o *Organism) { o.store = store }
}

// WithArchive attaches the optional Postgres emission archive. Archive
// failures are reported, never fatal to a turn.
func WithArchive(archive *Archive) OrganismOption {
	return func(o *Organism) { o.archive = archive }
}

// WithSelector replaces the default selector, for callers wiring their
// own candidate sources.
func WithSelector(selector *EmissionSelector) OrganismOption {
	return func(o *Organism) { o.selector = selector }
}

// NewOrganism creates an organism with the default source set: memory
// retrieval, reconstruction, persona templates, LLM transduction (active
// only when a provider resolves), and the mandatory pure fallback.
func NewOrganism(cfg Config, opts ...OrganismOption) *Organism {
	o := &Organism{
		cfg:        cfg,
		engine:     NewConvergenceEngine(cfg.Convergence),
		classifier: NewTrajectoryClassifier(),
		coupling:   NewCouplingMatrix(cfg.Coupling),
		families:   NewFamilyClusterer(cfg.Cluster),
		memory:     NewEmissionMemory(cfg.Memory),
		ledger:     newTurnLedger(cfg.TurnLedgerSize),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.selector == nil {
		o.selector = NewEmissionSelector(cfg.Selection,
			NewFallbackSource(),
			NewMemorySource(o.memory, 3),
			NewReconstructionSource(),
			NewPersonaSource(),
			NewTransductionSource(),
		)
	}

	o.pipeline = Sequence("felt-turn",
		Do("fuse", o.fuseStage),
		Do("converge", o.convergeStage),
		Do("cluster", o.clusterStage),
		Do("select", o.selectStage),
		Do("record", o.recordStage),
	)

	return o
}

// Coupling exposes the shared coupling matrix.
func (o *Organism) Coupling() *CouplingMatrix { return o.coupling }

// Families exposes the shared family clusterer.
func (o *Organism) Families() *FamilyClusterer { return o.families }

// Memory exposes the shared emission cache.
func (o *Organism) Memory() *EmissionMemory { return o.memory }

// ProcessTurn runs one turn through the full pipeline and returns it with
// signature, convergence state, trajectory, family, and selection
// populated.
func (o *Organism) ProcessTurn(ctx context.Context, input string, results map[string]DetectorResult, global GlobalContext) (*Turn, error) {
	start := time.Now()
	t := NewTurn(input, results, global)

	capitan.Emit(ctx, TurnStarted,
		FieldTurnID.Field(t.ID),
		FieldTraceID.Field(t.TraceID),
	)

	t, err := o.pipeline.Process(ctx, t)
	if err != nil {
		capitan.Error(ctx, TurnFailed,
			FieldTurnID.Field(t.ID),
			FieldTurnDuration.Field(time.Since(start)),
			FieldError.Field(err),
		)
		return t, fmt.Errorf("turn %s failed: %w", t.ID, err)
	}

	capitan.Emit(ctx, TurnCompleted,
		FieldTurnID.Field(t.ID),
		FieldSource.Field(t.Selection.Winner.Source),
		FieldTurnDuration.Field(time.Since(start)),
	)
	return t, nil
}

// fuseStage fuses detector results into the turn's signature.
func (o *Organism) fuseStage(ctx context.Context, t *Turn) (*Turn, error) {
	t.Signature = Fuse(ctx, t.Results, t.Global)
	return t, nil
}

// convergeStage runs the convergence loop, stepping the trajectory
// classifier and the coupling learner once per cycle.
func (o *Organism) convergeStage(ctx context.Context, t *Turn) (*Turn, error) {
	label := o.classifier.InitialLabel(t.Signature)
	activations := t.Activations()

	conv := o.engine.Run(ctx, t.Signature, func(ctx context.Context, _ int, state ConvergenceState) {
		step := o.classifier.Step(ctx, label, t.Signature, state)
		t.Trajectory = append(t.Trajectory, step)
		label = step.Next

		o.coupling.Update(ctx, activations)
	})

	t.Convergence = &conv
	return t, nil
}

// clusterStage assigns the turn's signature to a family.
func (o *Organism) clusterStage(ctx context.Context, t *Turn) (*Turn, error) {
	t.FamilyID = o.families.Assign(ctx, t.Signature)
	return t, nil
}

// selectStage collects, ranks, and emits one candidate.
func (o *Organism) selectStage(ctx context.Context, t *Turn) (*Turn, error) {
	sel := SelectionContext{
		TurnID:      t.ID,
		Signature:   t.Signature,
		Convergence: *t.Convergence,
		Label:       t.CurrentLabel(),
		Pathway:     t.Pathway(),
		Zone:        t.Signature.Zone(),
		Autonomic:   t.Signature.Autonomic(),
		FamilyID:    t.FamilyID,
	}

	result, err := o.selector.Select(ctx, sel)
	if err != nil {
		return t, err
	}
	t.Selection = &result
	return t, nil
}

// recordStage caches the emission when satisfaction allows, remembers the
// turn for delayed feedback, and archives best-effort.
func (o *Organism) recordStage(ctx context.Context, t *Turn) (*Turn, error) {
	emission := CachedEmission{
		TurnID:       t.ID,
		Text:         t.Selection.Winner.Text,
		Satisfaction: t.Convergence.Satisfaction,
		Signature:    FeltSignature(Vector(t.Signature).Clone()),
		Zone:         t.Signature.Zone(),
		Pathway:      t.Pathway(),
		Autonomic:    t.Signature.Autonomic(),
		FamilyID:     t.FamilyID,
		Timestamp:    time.Now(),
	}

	o.memory.Record(ctx, emission)
	o.ledger.remember(t.ID, ledgerEntry{
		activations: t.Activations(),
		emission:    emission,
	})

	if o.archive != nil {
		if err := o.archive.Record(ctx, emission); err != nil {
			capitan.Error(ctx, TurnFailed,
				FieldTurnID.Field(t.ID),
				FieldError.Field(fmt.Errorf("archive record failed: %w", err)),
			)
		}
	}
	return t, nil
}

// ApplyFeedback applies a delayed satisfaction score for a past turn. It
// re-reinforces the turn's recorded co-activations in the coupling matrix
// (scaled around neutral 0.5) and updates, inserts, or evicts the cached
// emission against the satisfaction floor. Convergence and trajectory are
// never re-run retroactively.
func (o *Organism) ApplyFeedback(ctx context.Context, turnID string, satisfaction float64) error {
	entry, ok := o.ledger.lookup(turnID)
	if !ok {
		return fmt.Errorf("unknown turn: %s", turnID)
	}

	satisfaction = clamp01(satisfaction)
	scale := 2 * (satisfaction - 0.5)
	o.coupling.Reinforce(ctx, entry.activations, scale)

	if !o.memory.Reinforce(turnID, satisfaction) {
		e := entry.emission
		e.Satisfaction = satisfaction
		o.memory.Record(ctx, e)
	}

	capitan.Emit(ctx, FeedbackApplied,
		FieldTurnID.Field(turnID),
		FieldSatisfaction.Field(float32(satisfaction)),
	)
	return nil
}

// Load restores shared state from the attached StateStore. Missing or
// corrupt snapshots leave the defaults in place.
func (o *Organism) Load(ctx context.Context) error {
	if o.store == nil {
		return nil
	}

	if snap, ok, err := o.store.LoadCoupling(ctx); err != nil {
		return err
	} else if ok {
		o.coupling.Restore(snap)
	}

	if snap, ok, err := o.store.LoadFamilies(ctx); err != nil {
		return err
	} else if ok {
		o.families.Restore(snap)
	}

	if snap, ok, err := o.store.LoadMemory(ctx); err != nil {
		return err
	} else if ok {
		o.memory.Restore(snap)
	}
	return nil
}

// Save writes all shared state through the attached StateStore.
func (o *Organism) Save(ctx context.Context) error {
	if o.store == nil {
		return nil
	}

	if err := o.store.SaveCoupling(ctx, o.coupling.Snapshot()); err != nil {
		return err
	}
	if err := o.store.SaveFamilies(ctx, o.families.Snapshot()); err != nil {
		return err
	}
	return o.store.SaveMemory(ctx, o.memory.Snapshot())
}

// turnLedger keeps recent turns addressable by delayed feedback.
type turnLedger struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]ledgerEntry
	order    []string
}

type ledgerEntry struct {
	activations map[string]float64
	emission    CachedEmission
}

func newTurnLedger(capacity int) *turnLedger {
	if capacity <= 0 {
		capacity = DefaultConfig().TurnLedgerSize
	}
	return &turnLedger{
		capacity: capacity,
		entries:  make(map[string]ledgerEntry),
	}
}

func (l *turnLedger) remember(turnID string, e ledgerEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[turnID]; !exists {
		l.order = append(l.order, turnID)
	}
	l.entries[turnID] = e

	for len(l.order) > l.capacity {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.entries, oldest)
	}
}

func (l *turnLedger) lookup(turnID string) (ledgerEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[turnID]
	return e, ok
}
