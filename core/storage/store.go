// Package storage implements atomic per-band metadata persistence, the
// collection index, per-band advisory locking, schema migration, and a
// read-through cache (spec §4.6). JSON files under the music root are the
// sole source of truth; nothing here may be the only copy of anything.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/djherbis/times"
	"github.com/jellydator/ttlcache/v3"

	"github.com/navidrome/crateindex/log"
	"github.com/navidrome/crateindex/model"
)

const (
	bandMetadataFilename = ".band_metadata.json"
	indexFilename        = ".collection_index.json"
)

// Store is the process-scoped handle to a music root's persisted metadata.
// One Store is shared by every concurrent scan/query operation.
type Store struct {
	root        string
	lockTimeout time.Duration

	locks   lockRegistry
	cache   *ttlcache.Cache[string, cachedBand]
	indexMu sync.Mutex // serializes collection index writes
}

type cachedBand struct {
	band  model.Band
	mtime time.Time
}

// New builds a Store rooted at root. cacheTTL of 0 disables expiry-based
// invalidation (mtime checks still apply); lockTimeout bounds how long a
// caller waits to acquire a per-band lock before returning a LockError.
func New(root string, cacheTTL, lockTimeout time.Duration) *Store {
	cache := ttlcache.New[string, cachedBand](
		ttlcache.WithTTL[string, cachedBand](cacheTTL),
	)
	go cache.Start()
	return &Store{
		root:        root,
		lockTimeout: lockTimeout,
		locks:       newLockRegistry(),
		cache:       cache,
	}
}

// Close stops the background cache eviction goroutine. Call once at
// shutdown (§9 "Global state" teardown).
func (s *Store) Close() {
	s.cache.Stop()
}

// BandMetadataPath returns the absolute path to a band folder's metadata
// file.
func (s *Store) BandMetadataPath(bandPath string) string {
	return filepath.Join(bandPath, bandMetadataFilename)
}

// IndexPath returns the absolute path to the collection index file.
func (s *Store) IndexPath() string {
	return filepath.Join(s.root, indexFilename)
}

// LoadBand reads one band's metadata, preferring the in-memory cache when
// the file's mtime hasn't advanced since the entry was cached. A missing
// file returns a zero Band and no error (an unscanned band has no metadata
// yet); a present-but-unreadable file (and its backup) returns a
// CorruptError.
func (s *Store) LoadBand(bandPath string) (model.Band, bool, error) {
	path := s.BandMetadataPath(bandPath)
	info, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		return model.Band{}, false, nil
	}
	if statErr != nil {
		return model.Band{}, false, model.NewScanError("stat band metadata", statErr)
	}
	mtime := info.ModTime()

	if entry := s.cache.Get(bandPath); entry != nil {
		if entry.Value().mtime.Equal(mtime) {
			return entry.Value().band, true, nil
		}
	}

	band, err := readBandFile(path)
	if err != nil {
		band, err = readBandFile(path + ".bak")
		if err != nil {
			return model.Band{}, false, model.NewCorruptError(path, err)
		}
		log.Warn(context.Background(), "recovered band metadata from backup", "path", path)
	}

	band = migrate(band)
	s.cache.Set(bandPath, cachedBand{band: band, mtime: mtime}, ttlcache.DefaultTTL)
	return band, true, nil
}

func readBandFile(path string) (model.Band, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Band{}, err
	}
	var band model.Band
	if err := json.Unmarshal(data, &band); err != nil {
		return model.Band{}, err
	}
	return band, nil
}

// SaveOptions controls SaveBand's merge behavior.
type SaveOptions struct {
	// PreserveAnalyze retains the existing stored `analyze` block when the
	// incoming band omits one (§4.6 step 4).
	PreserveAnalyze bool
	// Validate, if non-nil, is run against the merged band before it is
	// written; a non-empty return aborts the write with a ValidationError.
	// Kept as an injected function (rather than importing core/validator
	// directly) to avoid a storage<->validator import cycle.
	Validate func(model.Band) []string
}

// SaveBand performs the full read-modify-write protocol from §4.6: acquire
// the per-band lock, read and migrate any existing file, merge in band per
// opts, validate, then atomically write with a `.bak` backup.
func (s *Store) SaveBand(ctx context.Context, bandPath string, band model.Band, opts SaveOptions) error {
	unlock, err := s.locks.acquire(ctx, bandPath, s.lockTimeout)
	if err != nil {
		return model.NewLockError(bandPath, err)
	}
	defer unlock()

	existing, _, err := s.loadBandNoCache(bandPath)
	if err != nil {
		return err
	}

	merged := band
	if opts.PreserveAnalyze && merged.Analyze == nil {
		merged.Analyze = existing.Analyze
	}
	merged.SchemaVersion = model.CurrentSchemaVersion
	merged.LastUpdated = now()

	if opts.Validate != nil {
		if issues := opts.Validate(merged); len(issues) > 0 {
			return model.NewValidationError("band metadata failed validation", issues)
		}
	}

	path := s.BandMetadataPath(bandPath)
	if err := atomicWriteJSON(path, merged); err != nil {
		return model.NewWriteError(path, err)
	}

	info, statErr := os.Stat(path)
	if statErr == nil {
		s.cache.Set(bandPath, cachedBand{band: merged, mtime: info.ModTime()}, ttlcache.DefaultTTL)
	}
	log.Info(ctx, "band metadata written", "band_path", bandPath, "schema_version", merged.SchemaVersion)
	return nil
}

// loadBandNoCache reads straight from disk, bypassing the cache; used
// internally by SaveBand, which always holds the per-band lock and so must
// see the true current state regardless of cache freshness.
func (s *Store) loadBandNoCache(bandPath string) (model.Band, bool, error) {
	path := s.BandMetadataPath(bandPath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return model.Band{}, false, nil
	}
	band, err := readBandFile(path)
	if err != nil {
		band, err = readBandFile(path + ".bak")
		if err != nil {
			return model.Band{}, false, model.NewCorruptError(path, err)
		}
	}
	return migrate(band), true, nil
}

// Rollback restores a band's `.bak` file over its current metadata file,
// atomically.
func (s *Store) Rollback(ctx context.Context, bandPath string) error {
	unlock, err := s.locks.acquire(ctx, bandPath, s.lockTimeout)
	if err != nil {
		return model.NewLockError(bandPath, err)
	}
	defer unlock()

	path := s.BandMetadataPath(bandPath)
	bak := path + ".bak"
	if _, err := os.Stat(bak); err != nil {
		return model.NewNotFoundError("backup", bak)
	}
	if err := os.Rename(bak, path); err != nil {
		return model.NewWriteError(path, err)
	}
	s.cache.Delete(bandPath)
	return nil
}

// LoadIndex reads the collection index file, returning a zero-value index
// (not an error) if it doesn't exist yet.
func (s *Store) LoadIndex() (model.CollectionIndex, error) {
	data, err := os.ReadFile(s.IndexPath())
	if os.IsNotExist(err) {
		return model.CollectionIndex{}, nil
	}
	if err != nil {
		return model.CollectionIndex{}, model.NewScanError("reading collection index", err)
	}
	var idx model.CollectionIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return model.CollectionIndex{}, model.NewCorruptError(s.IndexPath(), err)
	}
	return idx, nil
}

// SaveIndex atomically writes the collection index, with the same
// tmp-then-backup-then-rename protocol as band metadata.
func (s *Store) SaveIndex(idx model.CollectionIndex) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	path := s.IndexPath()
	if err := atomicWriteJSON(path, idx); err != nil {
		return model.NewWriteError(path, err)
	}
	return nil
}

// atomicWriteJSON implements §4.6 step 6: write to `<file>.tmp`, fsync,
// back up the current file to `.bak`, then rename tmp into place.
func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".bak"); err != nil {
			return err
		}
	}
	return os.Rename(tmp, path)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// FileModTime reports a path's modification time using djherbis/times,
// which also exposes birth/access time on platforms that support it —
// used for the incremental-scan mtime comparisons in core/scanner.
func FileModTime(path string) (time.Time, error) {
	t, err := times.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return t.ModTime(), nil
}

var nowFunc = time.Now

func now() time.Time { return nowFunc() }

// lockRegistry hands out per-band advisory locks keyed by absolute band
// path, each acquired with a bounded wait (§4.6 step 1, §9 "Scoped
// acquisitions").
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newLockRegistry() lockRegistry {
	return lockRegistry{locks: make(map[string]chan struct{})}
}

func (r *lockRegistry) chanFor(key string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		r.locks[key] = ch
	}
	return ch
}

func (r *lockRegistry) acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	ch := r.chanFor(key)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("timed out after %s", timeout)
	}
}

// migrate upgrades a pre-2 single-array record (§9 "Separated-schema
// migration") in memory. Bands already at CurrentSchemaVersion pass through
// unchanged; bands whose Albums already distinguishes missing=true/false
// (because they were decoded straight into the current struct shape) simply
// get resplit defensively, which is a no-op when nothing is marked missing.
func migrate(band model.Band) model.Band {
	if band.SchemaVersion >= model.CurrentSchemaVersion {
		return band
	}

	var local, missing model.Albums
	for _, a := range band.Albums {
		if a.Missing {
			a.FolderPath = ""
			a.Compliance = nil
			missing = append(missing, a)
		} else {
			local = append(local, a)
		}
	}
	band.Albums = local
	band.AlbumsMissing = append(missing, band.AlbumsMissing...)
	band.SchemaVersion = model.CurrentSchemaVersion
	return band
}
