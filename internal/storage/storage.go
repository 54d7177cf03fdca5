package storage

import (
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Storage keys.
const (
	keyEngineOptions  = "engine_options"
	keyBitbaseManifest = "bitbase_manifest"
)

// EngineOptions is the subset of UCI "setoption" values worth remembering
// across a restart: the knobs that are expensive or annoying to re-type
// every session.
type EngineOptions struct {
	HashMB          int       `json:"hash_mb"`
	MultiPV         int       `json:"multi_pv"`
	BitbasePath     string    `json:"bitbase_path"`
	BitbaseCacheMB  int       `json:"bitbase_cache_mb"`
	Threads         int       `json:"threads"`
	LastUpdated     time.Time `json:"last_updated"`
}

// DefaultEngineOptions returns the engine's built-in defaults, used when no
// saved options exist yet.
func DefaultEngineOptions() *EngineOptions {
	return &EngineOptions{
		HashMB:         64,
		MultiPV:        1,
		BitbaseCacheMB: 16,
		Threads:        1,
		LastUpdated:    time.Now(),
	}
}

// BitbaseManifestEntry records one generated signature's file path and
// generation parameters, so the generator can skip work it already did and
// the reader can report provenance via "info string" without re-deriving
// it from the file itself.
type BitbaseManifestEntry struct {
	Signature    string    `json:"signature"`
	Path         string    `json:"path"`
	ClusterBytes int       `json:"cluster_bytes"`
	GeneratedAt  time.Time `json:"generated_at"`
	Workers      int       `json:"workers"`
}

// BitbaseManifest is the full set of signatures this installation has
// generated, keyed by signature string for quick existence checks before
// kicking off a (potentially long) generation run.
type BitbaseManifest struct {
	Entries map[string]BitbaseManifestEntry `json:"entries"`
}

// NewBitbaseManifest returns an empty manifest.
func NewBitbaseManifest() *BitbaseManifest {
	return &BitbaseManifest{Entries: make(map[string]BitbaseManifestEntry)}
}

// Storage wraps BadgerDB for the engine's small amount of persisted
// configuration: engine options and the bitbase generation manifest. It
// deliberately does not store game state — UCI is stateless between
// "ucinewgame" commands, and persisting positions/results is out of scope.
type Storage struct {
	db *badger.DB
}

// NewStorage opens (creating if absent) the engine's BadgerDB config store
// at the platform data directory.
func NewStorage() (*Storage, error) {
	dbDir, err := GetDatabaseDir()
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Storage{db: db}, nil
}

// Close closes the database.
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveEngineOptions persists opts, stamping LastUpdated.
func (s *Storage) SaveEngineOptions(opts *EngineOptions) error {
	opts.LastUpdated = time.Now()

	data, err := json.Marshal(opts)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyEngineOptions), data)
	})
}

// LoadEngineOptions loads previously saved options, or the engine's
// defaults if none have been saved yet.
func (s *Storage) LoadEngineOptions() (*EngineOptions, error) {
	opts := DefaultEngineOptions()

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyEngineOptions))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, opts)
		})
	})

	return opts, err
}

// SaveBitbaseManifest persists manifest.
func (s *Storage) SaveBitbaseManifest(manifest *BitbaseManifest) error {
	data, err := json.Marshal(manifest)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyBitbaseManifest), data)
	})
}

// LoadBitbaseManifest loads the manifest, or an empty one if none has been
// saved yet.
func (s *Storage) LoadBitbaseManifest() (*BitbaseManifest, error) {
	manifest := NewBitbaseManifest()

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyBitbaseManifest))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, manifest)
		})
	})

	return manifest, err
}

// RecordGenerated adds or replaces entry in the manifest and persists it.
func (s *Storage) RecordGenerated(entry BitbaseManifestEntry) error {
	manifest, err := s.LoadBitbaseManifest()
	if err != nil {
		return err
	}
	entry.GeneratedAt = time.Now()
	manifest.Entries[entry.Signature] = entry
	return s.SaveBitbaseManifest(manifest)
}
