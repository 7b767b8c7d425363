package felt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStateStoreRoundtrip(t *testing.T) {
	store, err := NewStateStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	coupling := NewCouplingMatrix(DefaultConfig().Coupling)
	coupling.Update(ctx, map[string]float64{"presence": 0.9, "attunement": 0.9})

	families := NewFamilyClusterer(DefaultConfig().Cluster)
	familyID := families.Assign(ctx, hotSignature(slotPresence))

	memory := NewEmissionMemory(DefaultConfig().Memory)
	memory.Record(ctx, cachedEmission("turn", "text", 0.9, hotSignature(slotPresence), ZoneNeutral, PathwayMaintain, AutonomicVentral))

	if err := store.SaveCoupling(ctx, coupling.Snapshot()); err != nil {
		t.Fatalf("save coupling: %v", err)
	}
	if err := store.SaveFamilies(ctx, families.Snapshot()); err != nil {
		t.Fatalf("save families: %v", err)
	}
	if err := store.SaveMemory(ctx, memory.Snapshot()); err != nil {
		t.Fatalf("save memory: %v", err)
	}

	couplingSnap, ok, err := store.LoadCoupling(ctx)
	if err != nil || !ok {
		t.Fatalf("load coupling: ok=%v err=%v", ok, err)
	}
	if couplingSnap.UpdateCount != 1 {
		t.Errorf("expected update count 1, got %d", couplingSnap.UpdateCount)
	}

	familiesSnap, ok, err := store.LoadFamilies(ctx)
	if err != nil || !ok {
		t.Fatalf("load families: ok=%v err=%v", ok, err)
	}
	if len(familiesSnap.Families) != 1 || familiesSnap.Families[0].ID != familyID {
		t.Errorf("families snapshot mismatch: %+v", familiesSnap.Families)
	}

	memorySnap, ok, err := store.LoadMemory(ctx)
	if err != nil || !ok {
		t.Fatalf("load memory: ok=%v err=%v", ok, err)
	}
	if len(memorySnap.Entries) != 1 || memorySnap.Entries[0].TurnID != "turn" {
		t.Errorf("memory snapshot mismatch: %+v", memorySnap.Entries)
	}
}

func TestStateStoreMissingFiles(t *testing.T) {
	store, err := NewStateStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if _, ok, err := store.LoadCoupling(ctx); ok || err != nil {
		t.Errorf("missing coupling: expected ok=false err=nil, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.LoadFamilies(ctx); ok || err != nil {
		t.Errorf("missing families: expected ok=false err=nil, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.LoadMemory(ctx); ok || err != nil {
		t.Errorf("missing memory: expected ok=false err=nil, got ok=%v err=%v", ok, err)
	}
}

func TestStateStoreCorruptQuarantine(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStateStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	path := filepath.Join(dir, "coupling.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	_, ok, err := store.LoadCoupling(ctx)
	if err != nil {
		t.Fatalf("corrupt file must not be fatal: %v", err)
	}
	if ok {
		t.Error("corrupt file reported as loaded")
	}

	// The corrupt file is preserved as a backup, not silently deleted.
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Errorf("expected quarantine backup: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("corrupt original should have been moved, stat err: %v", err)
	}
}

func TestStateStoreVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStateStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	path := filepath.Join(dir, "memory.json")
	if err := os.WriteFile(path, []byte(`{"version": 99, "entries": []}`), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, ok, err := store.LoadMemory(ctx)
	if err != nil {
		t.Fatalf("version mismatch must not be fatal: %v", err)
	}
	if ok {
		t.Error("unsupported version reported as loaded")
	}
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Errorf("expected mismatched snapshot quarantined: %v", err)
	}
}

func TestStateStoreAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStateStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if err := store.SaveMemory(ctx, MemorySnapshot{Version: SignatureVersion}); err != nil {
		t.Fatalf("save: %v", err)
	}

	// The temp file never survives a completed write.
	if _, err := os.Stat(filepath.Join(dir, "memory.json.tmp")); !os.IsNotExist(err) {
		t.Errorf("temp file left behind, stat err: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "memory.json")); err != nil {
		t.Errorf("expected snapshot written: %v", err)
	}
}
