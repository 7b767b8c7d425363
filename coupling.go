package felt

import (
	"context"
	"math"
	"sync"

	"github.com/zoobzio/capitan"
)

// CouplingMatrix is the shared, long-lived pairwise coupling state between
// detectors: symmetric, diagonal pinned at 1.0, off-diagonal bounded
// strictly inside (0,1) to prevent saturation.
//
// All read-modify-write cycles happen under the write lock; concurrent
// turns never lose updates.
type CouplingMatrix struct {
	mu          sync.RWMutex
	values      [DetectorCount][DetectorCount]float64
	updateCount int
	cfg         CouplingConfig
}

// NewCouplingMatrix creates a matrix seeded at the configured baseline
// with a small deterministic spread so the health check's discrimination
// floor holds from the first update.
func NewCouplingMatrix(cfg CouplingConfig) *CouplingMatrix {
	m := &CouplingMatrix{cfg: cfg}
	m.seed()
	return m
}

// seed initializes diagonal to 1.0 and off-diagonal entries near the
// baseline with a pair-dependent deterministic jitter.
func (m *CouplingMatrix) seed() {
	for i := 0; i < DetectorCount; i++ {
		for j := 0; j < DetectorCount; j++ {
			if i == j {
				m.values[i][j] = 1.0
				continue
			}
			m.values[i][j] = clampRange(m.cfg.Baseline+seedJitter(i, j), m.cfg.MinBound, m.cfg.MaxBound)
		}
	}
}

// seedJitter is a symmetric, deterministic perturbation in about ±0.06.
func seedJitter(i, j int) float64 {
	if j < i {
		i, j = j, i
	}
	return float64((i*31+j*17)%13-6) * 0.01
}

// Update applies one Hebbian learning step: for every detector pair whose
// activations both exceed the co-activation threshold, reinforce by
// η·a_i·a_j; then decay all off-diagonal entries toward the baseline by δ,
// clamp into [MinBound, MaxBound], and re-symmetrize by mean. The diagonal
// is never touched. Every HealthInterval updates the health check runs
// and, on violation, re-seeds rather than drifting silently.
func (m *CouplingMatrix) Update(ctx context.Context, activations map[string]float64) {
	m.mu.Lock()

	var acts [DetectorCount]float64
	for id, a := range activations {
		if slot := DetectorSlot(id); slot >= 0 {
			acts[slot] = clamp01(a)
		}
	}

	m.apply(acts, 1.0)
	m.updateCount++
	count := m.updateCount
	m.mu.Unlock()

	mean, stddev := m.OffDiagonalStats()
	capitan.Emit(ctx, CouplingUpdated,
		FieldCouplingMean.Field(float32(mean)),
		FieldCouplingStdDev.Field(float32(stddev)),
		FieldUpdateCount.Field(count),
	)

	if m.cfg.HealthInterval > 0 && count%m.cfg.HealthInterval == 0 {
		m.CheckHealth(ctx)
	}
}

// Reinforce applies a scaled reinforcement pass without decay. Used by the
// delayed-feedback path, where satisfaction arrives after the turn.
func (m *CouplingMatrix) Reinforce(ctx context.Context, activations map[string]float64, scale float64) {
	m.mu.Lock()

	var acts [DetectorCount]float64
	for id, a := range activations {
		if slot := DetectorSlot(id); slot >= 0 {
			acts[slot] = clamp01(a)
		}
	}

	for i := 0; i < DetectorCount; i++ {
		for j := i + 1; j < DetectorCount; j++ {
			if acts[i] < m.cfg.CoActivation || acts[j] < m.cfg.CoActivation {
				continue
			}
			v := m.values[i][j] + m.cfg.LearningRate*scale*acts[i]*acts[j]
			v = clampRange(v, m.cfg.MinBound, m.cfg.MaxBound)
			m.values[i][j] = v
			m.values[j][i] = v
		}
	}
	m.mu.Unlock()

	mean, stddev := m.OffDiagonalStats()
	capitan.Emit(ctx, CouplingUpdated,
		FieldCouplingMean.Field(float32(mean)),
		FieldCouplingStdDev.Field(float32(stddev)),
	)
}

// apply runs reinforcement and decay under the already-held write lock.
func (m *CouplingMatrix) apply(acts [DetectorCount]float64, scale float64) {
	for i := 0; i < DetectorCount; i++ {
		for j := i + 1; j < DetectorCount; j++ {
			v := m.values[i][j]

			if acts[i] >= m.cfg.CoActivation && acts[j] >= m.cfg.CoActivation {
				v += m.cfg.LearningRate * scale * acts[i] * acts[j]
			}

			// Decay toward baseline.
			v += m.cfg.DecayRate * (m.cfg.Baseline - v)

			// Clamp, then mirror: symmetric by construction.
			v = clampRange(v, m.cfg.MinBound, m.cfg.MaxBound)
			m.values[i][j] = v
			m.values[j][i] = v
		}
	}
}

// Get returns the coupling between two detector slots.
func (m *CouplingMatrix) Get(i, j int) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || j < 0 || i >= DetectorCount || j >= DetectorCount {
		return 0
	}
	return m.values[i][j]
}

// UpdateCount returns how many learning steps have been applied.
func (m *CouplingMatrix) UpdateCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updateCount
}

// OffDiagonalStats returns the mean and population standard deviation of
// the off-diagonal entries.
func (m *CouplingMatrix) OffDiagonalStats() (mean, stddev float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.offDiagonalStatsLocked()
}

func (m *CouplingMatrix) offDiagonalStatsLocked() (mean, stddev float64) {
	n := DetectorCount * (DetectorCount - 1)
	var sum float64
	for i := 0; i < DetectorCount; i++ {
		for j := 0; j < DetectorCount; j++ {
			if i != j {
				sum += m.values[i][j]
			}
		}
	}
	mean = sum / float64(n)

	var varSum float64
	for i := 0; i < DetectorCount; i++ {
		for j := 0; j < DetectorCount; j++ {
			if i != j {
				d := m.values[i][j] - mean
				varSum += d * d
			}
		}
	}
	return mean, math.Sqrt(varSum / float64(n))
}

// CheckHealth verifies the discrimination invariant: off-diagonal mean
// inside the target band with stddev above the floor. On violation the
// matrix is corrected by contracting deviations toward the baseline and
// restoring the seed spread, and the correction is reported. Returns true
// when the matrix was healthy.
func (m *CouplingMatrix) CheckHealth(ctx context.Context) bool {
	m.mu.Lock()
	mean, stddev := m.offDiagonalStatsLocked()

	healthy := mean >= m.cfg.TargetMeanLow && mean <= m.cfg.TargetMeanHigh && stddev >= m.cfg.StdDevFloor
	if healthy {
		m.mu.Unlock()
		return true
	}

	// Bounded corrective re-initialization: keep half of each entry's
	// learned deviation, re-center on the baseline, restore the seed
	// spread so entries stay distinguishable.
	for i := 0; i < DetectorCount; i++ {
		for j := i + 1; j < DetectorCount; j++ {
			v := m.cfg.Baseline + 0.5*(m.values[i][j]-mean) + seedJitter(i, j)
			v = clampRange(v, m.cfg.MinBound, m.cfg.MaxBound)
			m.values[i][j] = v
			m.values[j][i] = v
		}
	}
	newMean, newStdDev := m.offDiagonalStatsLocked()
	m.mu.Unlock()

	capitan.Error(ctx, CouplingReseeded,
		FieldCouplingMean.Field(float32(newMean)),
		FieldCouplingStdDev.Field(float32(newStdDev)),
		FieldRawValue.Field(float32(mean)),
	)
	return false
}

// Snapshot returns a serializable copy of the matrix state.
func (m *CouplingMatrix) Snapshot() CouplingSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	values := make([][]float64, DetectorCount)
	for i := range values {
		values[i] = make([]float64, DetectorCount)
		copy(values[i], m.values[i][:])
	}
	return CouplingSnapshot{
		Version:     SignatureVersion,
		Values:      values,
		UpdateCount: m.updateCount,
	}
}

// Restore replaces the matrix state from a snapshot. Dimension or version
// mismatches leave the seeded state in place and return false.
func (m *CouplingMatrix) Restore(snap CouplingSnapshot) bool {
	if snap.Version != SignatureVersion || len(snap.Values) != DetectorCount {
		return false
	}
	for _, row := range snap.Values {
		if len(row) != DetectorCount {
			return false
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < DetectorCount; i++ {
		for j := 0; j < DetectorCount; j++ {
			if i == j {
				m.values[i][j] = 1.0
				continue
			}
			m.values[i][j] = clampRange(snap.Values[i][j], m.cfg.MinBound, m.cfg.MaxBound)
		}
	}
	m.updateCount = snap.UpdateCount
	return true
}

// CouplingSnapshot is the persisted form of the coupling matrix.
type CouplingSnapshot struct {
	Version     int         `json:"version"`
	Values      [][]float64 `json:"values"`
	UpdateCount int         `json:"update_count"`
}
