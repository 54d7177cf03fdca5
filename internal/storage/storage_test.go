package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
)

// newTestStorage opens a Storage backed by a temp directory's BadgerDB
// rather than the platform data directory, so tests don't touch the real
// user profile.
func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	dir := t.TempDir()
	opts := badger.DefaultOptions(filepath.Join(dir, "db"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("badger.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Storage{db: db}
}

func TestDefaultEngineOptions(t *testing.T) {
	opts := DefaultEngineOptions()
	if opts.HashMB != 64 {
		t.Errorf("expected default HashMB 64, got %d", opts.HashMB)
	}
	if opts.MultiPV != 1 {
		t.Errorf("expected default MultiPV 1, got %d", opts.MultiPV)
	}
	if opts.Threads != 1 {
		t.Errorf("expected default Threads 1, got %d", opts.Threads)
	}
}

func TestSaveLoadEngineOptions(t *testing.T) {
	s := newTestStorage(t)

	opts := DefaultEngineOptions()
	opts.HashMB = 128
	opts.BitbasePath = "/tmp/bitbases"
	if err := s.SaveEngineOptions(opts); err != nil {
		t.Fatalf("SaveEngineOptions: %v", err)
	}

	loaded, err := s.LoadEngineOptions()
	if err != nil {
		t.Fatalf("LoadEngineOptions: %v", err)
	}
	if loaded.HashMB != 128 {
		t.Errorf("expected HashMB 128, got %d", loaded.HashMB)
	}
	if loaded.BitbasePath != "/tmp/bitbases" {
		t.Errorf("expected BitbasePath round-trip, got %q", loaded.BitbasePath)
	}
}

func TestLoadEngineOptionsDefaultsWhenUnset(t *testing.T) {
	s := newTestStorage(t)
	opts, err := s.LoadEngineOptions()
	if err != nil {
		t.Fatalf("LoadEngineOptions: %v", err)
	}
	if opts.HashMB != 64 {
		t.Errorf("expected fallback to defaults, got HashMB %d", opts.HashMB)
	}
}

func TestRecordGenerated(t *testing.T) {
	s := newTestStorage(t)

	entry := BitbaseManifestEntry{
		Signature:    "KPK",
		Path:         "/tmp/bitbases/KPK.gbb",
		ClusterBytes: 4096,
		Workers:      4,
	}
	if err := s.RecordGenerated(entry); err != nil {
		t.Fatalf("RecordGenerated: %v", err)
	}

	manifest, err := s.LoadBitbaseManifest()
	if err != nil {
		t.Fatalf("LoadBitbaseManifest: %v", err)
	}
	got, ok := manifest.Entries["KPK"]
	if !ok {
		t.Fatal("expected KPK entry in manifest")
	}
	if got.Path != entry.Path || got.Workers != entry.Workers {
		t.Errorf("manifest entry mismatch: %+v", got)
	}
	if got.GeneratedAt.IsZero() {
		t.Error("expected GeneratedAt to be stamped")
	}
}

func TestLoadBitbaseManifestEmpty(t *testing.T) {
	s := newTestStorage(t)
	manifest, err := s.LoadBitbaseManifest()
	if err != nil {
		t.Fatalf("LoadBitbaseManifest: %v", err)
	}
	if len(manifest.Entries) != 0 {
		t.Errorf("expected empty manifest, got %d entries", len(manifest.Entries))
	}
}

func TestDataPaths(t *testing.T) {
	dataDir, err := GetDataDir()
	if err != nil {
		t.Fatalf("GetDataDir failed: %v", err)
	}
	if dataDir == "" {
		t.Error("GetDataDir returned empty path")
	}
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		t.Errorf("data directory was not created: %s", dataDir)
	}

	bbDir, err := GetBitbaseDir()
	if err != nil {
		t.Fatalf("GetBitbaseDir failed: %v", err)
	}
	if filepath.Dir(bbDir) != dataDir {
		t.Errorf("expected bitbase dir under data dir, got %s", bbDir)
	}
}
