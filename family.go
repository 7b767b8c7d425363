package felt

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
)

// FamilyStatus tracks a family's lifecycle. Families are never deleted;
// low-activity families go stale but remain matchable.
type FamilyStatus string

const (
	FamilyNew     FamilyStatus = "new"
	FamilyGrowing FamilyStatus = "growing"
	FamilyMature  FamilyStatus = "mature"
	FamilyStale   FamilyStatus = "stale"
)

// Family is an emergent cluster of felt signatures sharing a centroid.
type Family struct {
	ID          string       `json:"id"`
	Centroid    Vector       `json:"centroid"`
	RunningSum  Vector       `json:"running_sum"`
	MemberCount int          `json:"member_count"`
	Status      FamilyStatus `json:"status"`
	LastUpdated time.Time    `json:"last_updated"`

	// lastAssign is the clusterer's assignment counter at the family's
	// most recent match, used for staleness.
	lastAssign int
}

// FamilyClusterer assigns signatures to families by cosine similarity
// against centroids, creating a new family when nothing matches. Shared
// long-lived state; safe for concurrent use.
type FamilyClusterer struct {
	mu          sync.RWMutex
	cfg         ClusterConfig
	families    map[string]*Family
	order       []string // creation order, for deterministic iteration
	assignCount int

	// recent holds normalized signatures for the adaptive threshold's
	// variance window.
	recent []Vector
}

// NewFamilyClusterer creates an empty clusterer.
func NewFamilyClusterer(cfg ClusterConfig) *FamilyClusterer {
	return &FamilyClusterer{
		cfg:      cfg,
		families: make(map[string]*Family),
	}
}

// Assign matches the signature against every family centroid and returns
// the matched or newly created family ID. A match requires cosine
// similarity at or above the adaptive threshold; the winning family's
// centroid is updated by incremental mean and renormalized to unit
// length. Unmatched signatures seed a new single-member family.
func (c *FamilyClusterer) Assign(ctx context.Context, sig FeltSignature) string {
	normalized := Vector(sig).Normalized()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.assignCount++
	c.pushRecent(normalized)
	threshold := c.adaptiveThresholdLocked()

	bestID := ""
	bestSim := -1.0
	for _, id := range c.order {
		f := c.families[id]
		effective := threshold
		if f.Centroid.StdDev() < c.cfg.CentroidStdDevFloor {
			// A near-uniform centroid would absorb everything; require
			// near-identity to match it until it regains contrast.
			effective = c.cfg.MaxThreshold
			capitan.Emit(ctx, FamilyCollapse,
				FieldFamilyID.Field(f.ID),
				FieldRawValue.Field(float32(f.Centroid.StdDev())),
			)
		}
		if sim := normalized.Cosine(f.Centroid); sim >= effective && sim > bestSim {
			bestSim = sim
			bestID = id
		}
	}

	if bestID != "" {
		f := c.families[bestID]
		c.absorbLocked(f, normalized)
		c.refreshStatusLocked()

		capitan.Emit(ctx, FamilyMatched,
			FieldFamilyID.Field(f.ID),
			FieldSimilarity.Field(float32(bestSim)),
			FieldThreshold.Field(float32(threshold)),
			FieldMemberCount.Field(f.MemberCount),
		)
		return bestID
	}

	f := &Family{
		ID:          uuid.New().String(),
		Centroid:    normalized.Clone(),
		RunningSum:  normalized.Clone(),
		MemberCount: 1,
		Status:      FamilyNew,
		LastUpdated: time.Now(),
		lastAssign:  c.assignCount,
	}
	c.families[f.ID] = f
	c.order = append(c.order, f.ID)
	c.refreshStatusLocked()

	capitan.Emit(ctx, FamilyCreated,
		FieldFamilyID.Field(f.ID),
		FieldThreshold.Field(float32(threshold)),
	)
	return f.ID
}

// absorbLocked folds a normalized signature into the family's running sum
// and recomputes the unit-length centroid.
func (c *FamilyClusterer) absorbLocked(f *Family, normalized Vector) {
	if len(f.RunningSum) != len(normalized) {
		f.RunningSum = make(Vector, len(normalized))
	}
	for i, v := range normalized {
		f.RunningSum[i] += v
	}
	f.MemberCount++
	f.Centroid = f.RunningSum.Normalized()
	f.LastUpdated = time.Now()
	f.lastAssign = c.assignCount

	switch {
	case f.MemberCount >= c.cfg.MatureSize:
		f.Status = FamilyMature
	default:
		f.Status = FamilyGrowing
	}
}

// refreshStatusLocked marks families that have not matched recently as
// stale. Stale families stay matchable and revive on their next match.
func (c *FamilyClusterer) refreshStatusLocked() {
	if c.cfg.StaleAfterTurns <= 0 {
		return
	}
	for _, f := range c.families {
		if c.assignCount-f.lastAssign > c.cfg.StaleAfterTurns {
			f.Status = FamilyStale
		}
	}
}

// pushRecent appends to the variance window, evicting the oldest entry.
func (c *FamilyClusterer) pushRecent(normalized Vector) {
	window := c.cfg.VarianceWindow
	if window <= 0 {
		return
	}
	c.recent = append(c.recent, normalized)
	if len(c.recent) > window {
		c.recent = c.recent[1:]
	}
}

// adaptiveThresholdLocked raises the base threshold as the discriminative
// variance of recent signatures falls, guarding against a near-uniform
// stream collapsing every input into one family.
func (c *FamilyClusterer) adaptiveThresholdLocked() float64 {
	if len(c.recent) < 2 {
		return c.cfg.BaseThreshold
	}

	variance := recentDimensionSpread(c.recent)
	if variance >= c.cfg.VarianceFloor {
		return c.cfg.BaseThreshold
	}

	// Linear rise toward MaxThreshold as variance approaches zero.
	frac := 1 - variance/c.cfg.VarianceFloor
	return c.cfg.BaseThreshold + frac*(c.cfg.MaxThreshold-c.cfg.BaseThreshold)
}

// recentDimensionSpread is the mean per-dimension standard deviation
// across a window of equal-length vectors.
func recentDimensionSpread(window []Vector) float64 {
	dims := len(window[0])
	if dims == 0 {
		return 0
	}
	n := float64(len(window))
	var total float64
	for d := 0; d < dims; d++ {
		var sum, sumSq float64
		for _, v := range window {
			if d >= len(v) {
				continue
			}
			f := float64(v[d])
			sum += f
			sumSq += f * f
		}
		mean := sum / n
		variance := sumSq/n - mean*mean
		if variance > 0 {
			total += variance
		}
	}
	// Mean per-dimension stddev, via mean variance.
	return sqrtSafe(total / float64(dims))
}

func sqrtSafe(f float64) float64 {
	if f <= 0 {
		return 0
	}
	return math.Sqrt(f)
}

// Get returns a copy of a family by ID.
func (c *FamilyClusterer) Get(id string) (Family, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.families[id]
	if !ok {
		return Family{}, false
	}
	out := *f
	out.Centroid = f.Centroid.Clone()
	out.RunningSum = f.RunningSum.Clone()
	return out, true
}

// Len returns the number of families.
func (c *FamilyClusterer) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.families)
}

// Snapshot returns a serializable copy of all families in creation order.
func (c *FamilyClusterer) Snapshot() FamiliesSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := FamiliesSnapshot{
		Version:     SignatureVersion,
		AssignCount: c.assignCount,
	}
	for _, id := range c.order {
		f := c.families[id]
		snap.Families = append(snap.Families, Family{
			ID:          f.ID,
			Centroid:    f.Centroid.Clone(),
			RunningSum:  f.RunningSum.Clone(),
			MemberCount: f.MemberCount,
			Status:      f.Status,
			LastUpdated: f.LastUpdated,
		})
	}
	return snap
}

// Restore replaces the clusterer state from a snapshot. A version
// mismatch leaves the empty state in place and returns false.
func (c *FamilyClusterer) Restore(snap FamiliesSnapshot) bool {
	if snap.Version != SignatureVersion {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.families = make(map[string]*Family, len(snap.Families))
	c.order = c.order[:0]
	c.assignCount = snap.AssignCount
	for i := range snap.Families {
		f := snap.Families[i]
		f.lastAssign = snap.AssignCount
		c.families[f.ID] = &f
		c.order = append(c.order, f.ID)
	}
	return true
}

// FamiliesSnapshot is the persisted form of the family set.
type FamiliesSnapshot struct {
	Version     int      `json:"version"`
	Families    []Family `json:"families"`
	AssignCount int      `json:"assign_count"`
}
