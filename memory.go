package felt

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
)

// CachedEmission is one highly-successful past selection, kept for
// similarity retrieval to seed future candidate pools.
type CachedEmission struct {
	TurnID       string         `json:"turn_id" db:"turn_id" type:"uuid" constraints:"primarykey"`
	Text         string         `json:"text" db:"text" type:"text" constraints:"notnull"`
	Satisfaction float64        `json:"satisfaction" db:"satisfaction" type:"double precision"`
	Signature    FeltSignature  `json:"signature" db:"signature" type:"vector(57)"`
	Zone         Zone           `json:"zone" db:"zone" type:"text"`
	Pathway      Pathway        `json:"pathway" db:"pathway" type:"text"`
	Autonomic    AutonomicState `json:"autonomic" db:"autonomic" type:"text"`
	FamilyID     string         `json:"family_id" db:"family_id" type:"text"`
	Timestamp    time.Time      `json:"timestamp" db:"timestamp" type:"timestamp" constraints:"notnull"`
}

// EmissionMemory is a bounded FIFO cache of high-satisfaction emissions
// with secondary indices by zone, pathway, autonomic state, and family.
// Shared long-lived state; safe for concurrent use. Low-quality emissions
// are never stored.
type EmissionMemory struct {
	mu      sync.RWMutex
	cfg     MemoryConfig
	entries map[uint64]CachedEmission
	queue   []uint64
	indices map[string][]uint64
	nextSeq uint64
}

// NewEmissionMemory creates an empty cache.
func NewEmissionMemory(cfg MemoryConfig) *EmissionMemory {
	return &EmissionMemory{
		cfg:     cfg,
		entries: make(map[uint64]CachedEmission),
		indices: make(map[string][]uint64),
	}
}

func indexKeys(e CachedEmission) []string {
	return []string{
		"zone:" + string(e.Zone),
		"pathway:" + string(e.Pathway),
		"autonomic:" + string(e.Autonomic),
		"family:" + e.FamilyID,
	}
}

// Record caches an emission if its satisfaction meets the floor, evicting
// the oldest entry at capacity. Returns true when the emission was stored.
func (m *EmissionMemory) Record(ctx context.Context, e CachedEmission) bool {
	if e.Satisfaction < m.cfg.MinSatisfaction {
		return false
	}

	m.mu.Lock()
	seq := m.nextSeq
	m.nextSeq++
	m.entries[seq] = e
	m.queue = append(m.queue, seq)
	for _, key := range indexKeys(e) {
		m.indices[key] = append(m.indices[key], seq)
	}

	var evicted *CachedEmission
	if m.cfg.Capacity > 0 && len(m.queue) > m.cfg.Capacity {
		oldest := m.queue[0]
		m.queue = m.queue[1:]
		if old, ok := m.entries[oldest]; ok {
			evicted = &old
			delete(m.entries, oldest)
			m.removeIndexLocked(old, oldest)
		}
	}
	m.mu.Unlock()

	capitan.Emit(ctx, EmissionRecorded,
		FieldTurnID.Field(e.TurnID),
		FieldSatisfaction.Field(float32(e.Satisfaction)),
		FieldFamilyID.Field(e.FamilyID),
	)
	if evicted != nil {
		capitan.Emit(ctx, EmissionEvicted, FieldTurnID.Field(evicted.TurnID))
	}
	return true
}

// scored pairs a cached emission with its boosted similarity.
type scored struct {
	entry CachedEmission
	seq   uint64
	sim   float64
}

// RetrieveSimilar returns up to k cached emissions whose boosted cosine
// similarity against the query signature meets the threshold. Matching
// pathway and autonomic state multiply similarity by the configured
// boosts; the result is clamped to [0,1]. The zone index narrows the scan
// when it has entries.
func (m *EmissionMemory) RetrieveSimilar(query FeltSignature, zone Zone, pathway Pathway, autonomic AutonomicState, k int) []CachedEmission {
	if k <= 0 {
		return nil
	}

	m.mu.RLock()
	candidates := m.subsetLocked("zone:" + string(zone))
	if len(candidates) == 0 {
		candidates = m.allLocked()
	}

	matches := make([]scored, 0, len(candidates))
	for _, sc := range candidates {
		sim := query.Cosine(sc.entry.Signature)
		if sc.entry.Pathway == pathway {
			sim *= m.cfg.PathwayBoost
		}
		if sc.entry.Autonomic == autonomic {
			sim *= m.cfg.AutonomicBoost
		}
		sim = clamp01(sim)
		if sim >= m.cfg.SimilarityThreshold {
			sc.sim = sim
			matches = append(matches, sc)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].sim != matches[j].sim {
			return matches[i].sim > matches[j].sim
		}
		// Newer entries first on ties.
		return matches[i].seq > matches[j].seq
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	out := make([]CachedEmission, len(matches))
	for i, sc := range matches {
		out[i] = sc.entry
	}
	return out
}

// subsetLocked resolves one index key to its entries. Read-only: indices
// are pruned at eviction under the write lock, so retrieval never mutates
// shared state while holding only the read lock.
func (m *EmissionMemory) subsetLocked(key string) []scored {
	seqs := m.indices[key]
	out := make([]scored, 0, len(seqs))
	for _, seq := range seqs {
		if e, ok := m.entries[seq]; ok {
			out = append(out, scored{entry: e, seq: seq})
		}
	}
	return out
}

// removeIndexLocked drops one sequence number from every index the entry
// participates in. Caller holds the write lock.
func (m *EmissionMemory) removeIndexLocked(e CachedEmission, seq uint64) {
	for _, key := range indexKeys(e) {
		seqs := m.indices[key]
		for i, s := range seqs {
			if s == seq {
				m.indices[key] = append(seqs[:i:i], seqs[i+1:]...)
				break
			}
		}
		if len(m.indices[key]) == 0 {
			delete(m.indices, key)
		}
	}
}

func (m *EmissionMemory) removeQueueLocked(seq uint64) {
	for i, s := range m.queue {
		if s == seq {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

func (m *EmissionMemory) allLocked() []scored {
	out := make([]scored, 0, len(m.queue))
	for _, seq := range m.queue {
		if e, ok := m.entries[seq]; ok {
			out = append(out, scored{entry: e, seq: seq})
		}
	}
	return out
}

// Reinforce updates the satisfaction of a cached emission by turn ID.
// Used by the delayed-feedback path. A new satisfaction below the storage
// floor evicts the entry: the cache only ever holds emissions worth
// repeating. Returns false when the turn is not cached.
func (m *EmissionMemory) Reinforce(turnID string, satisfaction float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for seq, e := range m.entries {
		if e.TurnID == turnID {
			e.Satisfaction = clamp01(satisfaction)
			if e.Satisfaction < m.cfg.MinSatisfaction {
				delete(m.entries, seq)
				m.removeQueueLocked(seq)
				m.removeIndexLocked(e, seq)
				return true
			}
			m.entries[seq] = e
			return true
		}
	}
	return false
}

// Len returns the number of cached emissions.
func (m *EmissionMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Snapshot returns a serializable copy of the cache in FIFO order.
func (m *EmissionMemory) Snapshot() MemorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MemorySnapshot{Version: SignatureVersion}
	for _, seq := range m.queue {
		if e, ok := m.entries[seq]; ok {
			snap.Entries = append(snap.Entries, e)
		}
	}
	return snap
}

// Restore replaces the cache from a snapshot, rebuilding all indices. A
// version mismatch leaves the empty state in place and returns false.
func (m *EmissionMemory) Restore(snap MemorySnapshot) bool {
	if snap.Version != SignatureVersion {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[uint64]CachedEmission, len(snap.Entries))
	m.queue = m.queue[:0]
	m.indices = make(map[string][]uint64)
	m.nextSeq = 0
	for _, e := range snap.Entries {
		seq := m.nextSeq
		m.nextSeq++
		m.entries[seq] = e
		m.queue = append(m.queue, seq)
		for _, key := range indexKeys(e) {
			m.indices[key] = append(m.indices[key], seq)
		}
	}
	return true
}

// MemorySnapshot is the persisted form of the emission cache.
type MemorySnapshot struct {
	Version int              `json:"version"`
	Entries []CachedEmission `json:"entries"`
}
