// Package scanner discovers band folders under a music root and drives
// them through the Folder Parser, Structure Analyzer, Compliance Scorer,
// and Reconciler to produce persisted band metadata (spec §4.4).
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gohugoio/hashstructure"
	"github.com/hashicorp/go-multierror"
	"github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/navidrome/crateindex/core/compliance"
	"github.com/navidrome/crateindex/core/folder"
	"github.com/navidrome/crateindex/core/reconcile"
	"github.com/navidrome/crateindex/core/storage"
	"github.com/navidrome/crateindex/core/structure"
	"github.com/navidrome/crateindex/core/validator"
	"github.com/navidrome/crateindex/log"
	"github.com/navidrome/crateindex/model"
	"github.com/navidrome/crateindex/model/id"
)

// MusicExtensions is the recognized, case-insensitive set of music file
// extensions (§4.4).
var MusicExtensions = map[string]bool{
	"mp3": true, "flac": true, "wav": true, "aac": true, "m4a": true,
	"ogg": true, "wma": true, "mp4": true, "m4p": true,
}

// excludedFolders is the fixed set of directory names never treated as band
// folders, regardless of EXCLUDE_FILE contents.
var excludedFolders = map[string]bool{
	"lost+found": true, "$RECYCLE.BIN": true, "System Volume Information": true,
	"@eaDir": true, "__MACOSX": true, "@Recycle": true,
}

// progressBandThreshold is the band count above which full/incremental
// scans emit periodic ScanProgressEvents (§4.4 "Progress reporting").
const progressBandThreshold = 50

// Scanner coordinates filesystem discovery and per-band scanning against a
// Store. One Scanner is created per process and shared across scan
// invocations.
type Scanner struct {
	Root           string
	Store          *storage.Store
	MaxWorkers     int
	ExcludeMatcher *ignore.GitIgnore // optional, from EXCLUDE_FILE (JSONC globs)
	OnProgress     func(model.ScanProgressEvent)
}

// DiscoverBands lists root's immediate subdirectories that qualify as band
// folders: names not starting with '.', not in the fixed excluded set or
// the optional EXCLUDE_FILE patterns, and containing at least one album
// folder.
func (s *Scanner) DiscoverBands() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, model.NewScanError("reading music root", err)
	}

	var bands []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || excludedFolders[e.Name()] {
			continue
		}
		if s.ExcludeMatcher != nil && s.ExcludeMatcher.MatchesPath(e.Name()) {
			continue
		}
		full := filepath.Join(s.Root, e.Name())
		if hasAlbumFolder(full) {
			bands = append(bands, full)
		}
	}
	sort.Strings(bands)
	return bands, nil
}

func hasAlbumFolder(bandPath string) bool {
	entries, err := os.ReadDir(bandPath)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		full := filepath.Join(bandPath, e.Name())
		if hasMusicFile(full) {
			return true
		}
		nested, err := os.ReadDir(full)
		if err != nil {
			continue
		}
		for _, ne := range nested {
			if ne.IsDir() && hasMusicFile(filepath.Join(full, ne.Name())) {
				return true
			}
		}
	}
	return false
}

func hasMusicFile(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(e.Name())), ".")
		if MusicExtensions[ext] {
			return true
		}
	}
	return false
}

// shouldScanIncremental implements §4.4's incremental decision for one band.
func shouldScanIncremental(bandPath string, entry model.BandIndexEntry, known bool, lastScanTime time.Time) bool {
	if !known {
		return true
	}
	if info, err := os.Stat(bandPath); err == nil && info.ModTime().After(lastScanTime) {
		return true
	}
	if mtime, err := storage.FileModTime(filepath.Join(bandPath, ".band_metadata.json")); err == nil && mtime.After(lastScanTime) {
		return true
	}
	return false
}

// FullScan walks every band under Root, rescanning each (force-writing
// regardless of whether content changed when forceRescan is set).
func (s *Scanner) FullScan(ctx context.Context, forceRescan bool) (model.CollectionScanResult, error) {
	bands, err := s.DiscoverBands()
	if err != nil {
		return model.CollectionScanResult{}, err
	}
	return s.runScan(ctx, bands, forceRescan)
}

// IncrementalScan rescans only bands that changed since lastScanTime,
// per §4.4's incremental decision rule, carrying forward unchanged bands'
// existing index entries.
func (s *Scanner) IncrementalScan(ctx context.Context, lastScanTime time.Time) (model.CollectionScanResult, error) {
	allBands, err := s.DiscoverBands()
	if err != nil {
		return model.CollectionScanResult{}, err
	}

	existingIndex, err := s.Store.LoadIndex()
	if err != nil {
		return model.CollectionScanResult{}, err
	}
	byPath := make(map[string]model.BandIndexEntry, len(existingIndex.Bands))
	for _, e := range existingIndex.Bands {
		byPath[filepath.Join(s.Root, e.FolderPath)] = e
	}

	var toScan []string
	carryForward := map[string]model.BandIndexEntry{}
	for _, b := range allBands {
		entry, known := byPath[b]
		if shouldScanIncremental(b, entry, known, lastScanTime) {
			toScan = append(toScan, b)
		} else {
			carryForward[b] = entry
		}
	}

	result, err := s.runScan(ctx, toScan, false)
	if err != nil {
		return result, err
	}

	for _, entry := range carryForward {
		result.Index.Bands = append(result.Index.Bands, entry)
		result.BandsSkipped++
	}
	result.Index.Rebuild()
	if err := s.Store.SaveIndex(result.Index); err != nil {
		return result, err
	}
	return result, nil
}

// runScan drives bandPaths through ScanBand with bounded concurrency
// (MaxWorkers), collects a BandScanResult per band, rebuilds and persists
// the collection index, and reports progress for large scans.
func (s *Scanner) runScan(ctx context.Context, bandPaths []string, forceRescan bool) (model.CollectionScanResult, error) {
	scanID := id.NewRandom()
	started := time.Now()
	log.Info(ctx, "scan started", "scan_id", scanID, "root", s.Root, "bands", len(bandPaths))

	maxWorkers := s.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	sem := semaphore.NewWeighted(int64(maxWorkers))
	group, gctx := errgroup.WithContext(ctx)

	results := make([]model.BandScanResult, len(bandPaths))
	var mu sync.Mutex
	var completed int

	for i, bandPath := range bandPaths {
		i, bandPath := i, bandPath
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		group.Go(func() error {
			defer sem.Release(1)
			r := s.ScanBand(gctx, bandPath, forceRescan)
			results[i] = r

			mu.Lock()
			completed++
			n := completed
			mu.Unlock()

			if s.OnProgress != nil && len(bandPaths) > progressBandThreshold && n%10 == 0 {
				elapsed := time.Since(started)
				perBand := elapsed / time.Duration(n)
				remaining := perBand * time.Duration(len(bandPaths)-n)
				s.OnProgress(model.ScanProgressEvent{
					ScanID: scanID, Count: n, Total: len(bandPaths),
					ETA: remaining, BandName: r.BandName,
				})
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return model.CollectionScanResult{}, err
	}

	out := model.CollectionScanResult{
		ScanID: scanID, Root: s.Root, StartedAt: started, FinishedAt: time.Now(),
		Results: results,
	}
	var entries []model.BandIndexEntry
	for _, r := range results {
		out.BandsScanned++
		if r.Error != "" {
			out.BandsFailed++
		}
		if r.Changed {
			out.BandsChanged++
		}
		entries = append(entries, bandIndexEntry(r))
	}
	out.Index = model.CollectionIndex{Bands: entries, GeneratedAt: time.Now()}
	out.Index.Rebuild()

	if err := s.Store.SaveIndex(out.Index); err != nil {
		return out, err
	}
	log.Info(ctx, "scan finished", "scan_id", scanID, "changed", out.BandsChanged, "failed", out.BandsFailed)
	return out, nil
}

func bandIndexEntry(r model.BandScanResult) model.BandIndexEntry {
	return model.BandIndexEntry{
		BandName:      r.Band.BandName,
		FolderPath:    filepath.Base(r.FolderPath),
		AlbumsCount:   r.Band.AlbumsCount(),
		LocalAlbums:   r.Band.LocalAlbumsCount(),
		MissingAlbums: r.Band.MissingAlbumsCount(),
		HasMetadata:   r.Error == "",
		HasAnalysis:   r.Band.HasAnalysis(),
		LastUpdated:   r.Band.LastUpdated,
		LastScanned:   time.Now(),
	}
}

// ScanBand runs the full per-band pipeline (§4.4 steps 1-6): structure
// analysis, album enumeration/parse/score, existing-metadata load,
// reconciliation, and a conditional atomic write.
func (s *Scanner) ScanBand(ctx context.Context, bandPath string, forceRescan bool) model.BandScanResult {
	start := time.Now()
	bandName := filepath.Base(bandPath)
	result := model.BandScanResult{BandName: bandName, FolderPath: bandPath}

	fs, err := structure.Analyze(bandPath, MusicExtensions)
	if err != nil {
		result.Error = err.Error()
		log.Warn(ctx, "band scan failed", "band", bandName, "error", err)
		return result
	}

	physical, warnings := s.scanAlbums(bandPath, fs.StructureType)
	result.Warnings = warnings

	existing, _, err := s.Store.LoadBand(bandPath)
	if err != nil {
		result.Error = err.Error()
		log.Warn(ctx, "band scan failed loading existing metadata", "band", bandName, "error", err)
		return result
	}

	stored := append(append(model.Albums{}, existing.Albums...), existing.AlbumsMissing...)
	reconciled := reconcile.Reconcile(stored, physical, fs.StructureType)

	band := existing
	band.BandName = bandName
	band.Albums = reconciled.Albums
	band.AlbumsMissing = reconciled.AlbumsMissing
	band.FolderStructure = &fs

	changed := hasChanged(existing, band)
	result.Changed = changed
	result.Band = band
	result.Duration = time.Since(start)

	if !changed && !forceRescan {
		return result
	}

	saveErr := s.Store.SaveBand(ctx, bandPath, band, storage.SaveOptions{
		PreserveAnalyze: true,
		Validate:        func(b model.Band) []string { return validator.Validate(b).Messages() },
	})
	if saveErr != nil {
		result.Error = saveErr.Error()
		log.Warn(ctx, "band metadata write failed", "band", bandName, "error", saveErr)
	}
	return result
}

// hasChanged compares the reconciled band against what was loaded from disk
// using a structural hash, avoiding a rewrite (and backup churn) when a
// scan produces byte-identical content (§4.4 step 5, §8's repeat-scan
// idempotence scenario).
func hasChanged(existing, next model.Band) bool {
	existingHash, err1 := hashstructure.Hash(stripVolatile(existing), nil)
	nextHash, err2 := hashstructure.Hash(stripVolatile(next), nil)
	if err1 != nil || err2 != nil {
		return true
	}
	return existingHash != nextHash
}

// stripVolatile zeroes fields that legitimately differ across runs even
// when nothing meaningful changed (timestamps, schema version bump).
func stripVolatile(b model.Band) model.Band {
	b.LastUpdated = time.Time{}
	b.SchemaVersion = 0
	return b
}

// scanAlbums enumerates album folders directly under bandPath and, one
// level down, under type folders, parsing and scoring each.
func (s *Scanner) scanAlbums(bandPath string, structureType model.StructureType) ([]reconcile.Physical, []string) {
	entries, err := os.ReadDir(bandPath)
	if err != nil {
		return nil, []string{err.Error()}
	}

	var physical []reconcile.Physical
	var warnErr *multierror.Error

	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		full := filepath.Join(bandPath, e.Name())
		if hasMusicFile(full) {
			p, w := s.scanOneAlbum(e.Name(), "", full, structureType)
			physical = append(physical, p)
			if w != nil {
				warnErr = multierror.Append(warnErr, w)
			}
			continue
		}
		nested, nerr := os.ReadDir(full)
		if nerr != nil {
			// An unreadable folder still gets a placeholder album and a warning.
			p, w := s.scanOneAlbum(e.Name(), "", full, structureType)
			physical = append(physical, p)
			if w != nil {
				warnErr = multierror.Append(warnErr, w)
			}
			continue
		}
		for _, ne := range nested {
			if !ne.IsDir() {
				continue
			}
			nfull := filepath.Join(full, ne.Name())
			if hasMusicFile(nfull) {
				p, w := s.scanOneAlbum(ne.Name(), e.Name(), nfull, structureType)
				physical = append(physical, p)
				if w != nil {
					warnErr = multierror.Append(warnErr, w)
				}
			}
		}
	}

	var warnings []string
	if warnErr != nil {
		for _, e := range warnErr.Errors {
			warnings = append(warnings, e.Error())
		}
	}
	return physical, warnings
}

func (s *Scanner) scanOneAlbum(name, parentFolder, fullPath string, structureType model.StructureType) (reconcile.Physical, error) {
	count, err := countTracks(fullPath)
	if err != nil {
		placeholder := model.Album{
			AlbumName:     name,
			Type:          model.TypeAlbum,
			Missing:       false,
			FolderPath:    relPathOf(name, parentFolder),
			PrimaryFormat: "UNKNOWN",
			Compliance:    &model.AlbumCompliance{Level: model.ComplianceCritical},
		}
		return reconcile.Physical{Album: placeholder, RawName: name}, model.NewScanError("reading album folder "+fullPath, err)
	}

	parsed, _ := folder.Parse(name, parentFolder, count)
	tc := count
	album := model.Album{
		AlbumName:   parsed.AlbumName,
		Year:        parsed.Year,
		Type:        parsed.Type,
		Edition:     parsed.Edition,
		TracksCount: &tc,
		Missing:     false,
		FolderPath:  relPathOf(name, parentFolder),
	}
	c := compliance.Score(compliance.Input{
		AlbumFolderName: name, ParentFolder: parentFolder, AlbumPath: fullPath,
		StructureType: structureType, Parsed: parsed, MusicExts: MusicExtensions,
	})
	album.Compliance = &c

	return reconcile.Physical{Album: album, RawName: name}, nil
}

func relPathOf(name, parentFolder string) string {
	if parentFolder == "" {
		return name
	}
	return filepath.Join(parentFolder, name)
}

func countTracks(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(e.Name())), ".")
		if MusicExtensions[ext] {
			n++
		}
	}
	return n, nil
}
