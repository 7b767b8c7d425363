package felt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zoobzio/capitan"
)

// ErrStateVersion is returned when a persisted snapshot carries an
// unsupported schema version.
var ErrStateVersion = errors.New("state snapshot has unsupported schema version")

// State file names inside the store directory.
const (
	couplingFile = "coupling.json"
	familiesFile = "families.json"
	memoryFile   = "memory.json"
)

// StateStore persists the three pieces of shared long-lived state as
// versioned JSON snapshots. Writes are atomic (temp file then rename) so
// a crash mid-write never leaves an unparseable file; corrupt files are
// preserved as backups and replaced by defaults, never silently dropped.
type StateStore struct {
	dir string
}

// NewStateStore creates a store rooted at dir, creating it if needed.
func NewStateStore(dir string) (*StateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	return &StateStore{dir: dir}, nil
}

// writeAtomic marshals v and renames it into place.
func (s *StateStore) writeAtomic(ctx context.Context, name string, v any) error {
	path := filepath.Join(s.dir, name)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename %s into place: %w", tmp, err)
	}

	capitan.Emit(ctx, StateSaved,
		FieldPath.Field(path),
		FieldSchemaVersion.Field(SignatureVersion),
	)
	return nil
}

// readSnapshot loads one snapshot file into v. Returns false when the
// file is absent. A file that exists but cannot be parsed is moved to a
// .corrupt backup and reported; the caller proceeds with defaults.
func (s *StateStore) readSnapshot(ctx context.Context, name string, v any) (bool, error) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		s.quarantine(ctx, path, err)
		return false, nil
	}
	return true, nil
}

// quarantine preserves a corrupt state file and reports the reset.
func (s *StateStore) quarantine(ctx context.Context, path string, cause error) {
	backup := path + ".corrupt"
	if err := os.Rename(path, backup); err != nil {
		capitan.Error(ctx, StateCorrupt,
			FieldPath.Field(path),
			FieldError.Field(fmt.Errorf("parse failed and backup failed: %v: %w", cause, err)),
		)
		return
	}
	capitan.Error(ctx, StateCorrupt,
		FieldPath.Field(backup),
		FieldError.Field(cause),
	)
}

// SaveCoupling persists the coupling matrix snapshot.
func (s *StateStore) SaveCoupling(ctx context.Context, snap CouplingSnapshot) error {
	return s.writeAtomic(ctx, couplingFile, snap)
}

// LoadCoupling loads the coupling snapshot. ok is false when the file is
// missing, corrupt, or carries an unsupported version; the caller keeps
// the seeded default state in each case.
func (s *StateStore) LoadCoupling(ctx context.Context) (snap CouplingSnapshot, ok bool, err error) {
	found, err := s.readSnapshot(ctx, couplingFile, &snap)
	if err != nil || !found {
		return CouplingSnapshot{}, false, err
	}
	if snap.Version != SignatureVersion {
		s.quarantine(ctx, filepath.Join(s.dir, couplingFile), fmt.Errorf("%w: %d", ErrStateVersion, snap.Version))
		return CouplingSnapshot{}, false, nil
	}
	return snap, true, nil
}

// SaveFamilies persists the family set snapshot.
func (s *StateStore) SaveFamilies(ctx context.Context, snap FamiliesSnapshot) error {
	return s.writeAtomic(ctx, familiesFile, snap)
}

// LoadFamilies loads the family snapshot; semantics match LoadCoupling.
func (s *StateStore) LoadFamilies(ctx context.Context) (snap FamiliesSnapshot, ok bool, err error) {
	found, err := s.readSnapshot(ctx, familiesFile, &snap)
	if err != nil || !found {
		return FamiliesSnapshot{}, false, err
	}
	if snap.Version != SignatureVersion {
		s.quarantine(ctx, filepath.Join(s.dir, familiesFile), fmt.Errorf("%w: %d", ErrStateVersion, snap.Version))
		return FamiliesSnapshot{}, false, nil
	}
	return snap, true, nil
}

// SaveMemory persists the emission cache snapshot.
func (s *StateStore) SaveMemory(ctx context.Context, snap MemorySnapshot) error {
	return s.writeAtomic(ctx, memoryFile, snap)
}

// LoadMemory loads the emission cache snapshot; semantics match
// LoadCoupling.
func (s *StateStore) LoadMemory(ctx context.Context) (snap MemorySnapshot, ok bool, err error) {
	found, err := s.readSnapshot(ctx, memoryFile, &snap)
	if err != nil || !found {
		return MemorySnapshot{}, false, err
	}
	if snap.Version != SignatureVersion {
		s.quarantine(ctx, filepath.Join(s.dir, memoryFile), fmt.Errorf("%w: %d", ErrStateVersion, snap.Version))
		return MemorySnapshot{}, false, nil
	}
	return snap, true, nil
}
