// Package container wires the process-scoped singleton graph described in
// §9 "Global state": validated config, store, scanner, query cache, and the
// operations each named transport request (§6.2) dispatches to. Exactly one
// Container exists per process, constructed at startup after config
// validation and torn down on shutdown.
package container

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/navidrome/crateindex/conf"
	"github.com/navidrome/crateindex/core/analytics"
	"github.com/navidrome/crateindex/core/query"
	"github.com/navidrome/crateindex/core/reconcile"
	"github.com/navidrome/crateindex/core/scanner"
	"github.com/navidrome/crateindex/core/storage"
	"github.com/navidrome/crateindex/core/validator"
	"github.com/navidrome/crateindex/log"
	"github.com/navidrome/crateindex/model"
)

// Container holds every long-lived collaborator and exposes the operations
// of §6.2, each translating between wire-shaped arguments and the core
// packages beneath it. scan_music_folders' full/incremental variants are
// one method here (ScanMusicFolders) distinguished by forceFullScan.
type Container struct {
	Config  *conf.Config
	Store   *storage.Store
	Scanner *scanner.Scanner
	Cache   *query.Cache

	lastScan time.Time
}

// New constructs the singleton graph. Callers must call Close on shutdown.
func New(cfg *conf.Config) (*Container, error) {
	log.SetLevel(cfg.LogLevel)

	store := storage.New(cfg.MusicRootPath, time.Duration(cfg.CacheDurationDays)*24*time.Hour, time.Duration(cfg.LockTimeoutSeconds)*time.Second)
	cache, err := query.Open()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening query cache: %w", err)
	}

	s := &scanner.Scanner{
		Root:       cfg.MusicRootPath,
		Store:      store,
		MaxWorkers: cfg.MaxScanWorkers,
	}
	if cfg.ExcludeFile != "" {
		matcher, err := scanner.LoadExcludePatterns(cfg.ExcludeFile)
		if err != nil {
			store.Close()
			_ = cache.Close()
			return nil, err
		}
		s.ExcludeMatcher = matcher
	}

	c := &Container{Config: cfg, Store: store, Scanner: s, Cache: cache}
	return c, nil
}

// Close flushes and releases every held resource (§9 teardown): the
// collection index is already durable by construction (every scan writes it
// atomically), so teardown only needs to stop the cache eviction loop and
// close the query cache's SQLite handle.
func (c *Container) Close() {
	c.Store.Close()
	_ = c.Cache.Close()
}

// ScanMusicFolders implements §6.2's scan_music_folders. forceFullScan
// selects FullScan over IncrementalScan; forceRescan is passed through to
// FullScan to force a write even on unchanged bands.
func (c *Container) ScanMusicFolders(ctx context.Context, forceRescan, forceFullScan bool) (model.CollectionScanResult, error) {
	var result model.CollectionScanResult
	var err error
	if forceFullScan || c.lastScan.IsZero() {
		result, err = c.Scanner.FullScan(ctx, forceRescan)
	} else {
		result, err = c.Scanner.IncrementalScan(ctx, c.lastScan)
	}
	if err != nil {
		return result, err
	}
	c.lastScan = result.StartedAt
	if err := c.refreshCache(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// refreshCache reloads every band named in the collection index from disk
// and rebuilds the derived query-cache projection (§4.9 implementation
// notes): the JSON files remain canonical, this cache is always disposable.
func (c *Container) refreshCache(ctx context.Context) error {
	index, err := c.Store.LoadIndex()
	if err != nil {
		return err
	}
	bands := make([]model.Band, 0, len(index.Bands))
	for _, entry := range index.Bands {
		bandPath := filepath.Join(c.Config.MusicRootPath, entry.FolderPath)
		band, found, err := c.Store.LoadBand(bandPath)
		if err != nil {
			log.Warn(ctx, "skipping band in cache refresh", "band", entry.BandName, "error", err)
			continue
		}
		if found {
			bands = append(bands, band)
		}
	}
	return c.Cache.Rebuild(ctx, c.Config.MusicRootPath, index, bands)
}

// GetBandList implements §6.2's get_band_list.
func (c *Container) GetBandList(ctx context.Context, opts query.BandListOptions) (query.BandListResult, error) {
	return c.Cache.GetBandList(ctx, opts)
}

// AdvancedSearchAlbums implements §6.2's advanced_search_albums.
func (c *Container) AdvancedSearchAlbums(ctx context.Context, opts query.AlbumSearchOptions) (query.AlbumSearchResult, error) {
	return c.Cache.SearchAlbums(ctx, opts)
}

// AnalyzeCollectionInsights implements §6.2's analyze_collection_insights.
func (c *Container) AnalyzeCollectionInsights(ctx context.Context) (model.CollectionAnalytics, error) {
	index, err := c.Store.LoadIndex()
	if err != nil {
		return model.CollectionAnalytics{}, err
	}
	bands, err := c.loadAllBands(index)
	if err != nil {
		return model.CollectionAnalytics{}, err
	}
	return analytics.Analyze(index, bands), nil
}

func (c *Container) loadAllBands(index model.CollectionIndex) ([]model.Band, error) {
	bands := make([]model.Band, 0, len(index.Bands))
	for _, entry := range index.Bands {
		bandPath := filepath.Join(c.Config.MusicRootPath, entry.FolderPath)
		band, found, err := c.Store.LoadBand(bandPath)
		if err != nil {
			return nil, err
		}
		if found {
			bands = append(bands, band)
		}
	}
	return bands, nil
}

// resolveBandPath maps a band_name argument to its absolute folder path,
// preferring the collection index when the band has already been scanned.
// Per §3 Lifecycle, a band's metadata file is "created on first scan or
// first save", so a band absent from the index (not yet scanned, possibly
// brand-new) falls back to root/bandName — the same layout FolderPath
// always records (core/scanner.bandIndexEntry uses filepath.Base(bandPath)).
func (c *Container) resolveBandPath(bandName string) (string, error) {
	index, err := c.Store.LoadIndex()
	if err != nil {
		return "", err
	}
	for _, entry := range index.Bands {
		if entry.BandName == bandName {
			return filepath.Join(c.Config.MusicRootPath, entry.FolderPath), nil
		}
	}
	if bandName == "" || bandName != filepath.Base(bandName) {
		return "", model.NewValidationError("band_name must not contain path separators", []string{bandName})
	}
	return filepath.Join(c.Config.MusicRootPath, bandName), nil
}

// SaveBandMetadata implements §6.2's save_band_metadata.
func (c *Container) SaveBandMetadata(ctx context.Context, bandName string, metadata model.Band, preserveAnalyze bool) (model.SaveResult, error) {
	bandPath, err := c.resolveBandPath(bandName)
	if err != nil {
		return model.SaveResult{}, err
	}
	if err := os.MkdirAll(bandPath, 0o755); err != nil {
		return model.SaveResult{}, model.NewWriteError(bandPath, err)
	}
	metadata.BandName = bandName
	if metadata.Analyze != nil {
		metadata.Analyze.Review = validator.SanitizeText(metadata.Analyze.Review)
	}
	metadata.Description = validator.SanitizeText(metadata.Description)

	err = c.Store.SaveBand(ctx, bandPath, metadata, storage.SaveOptions{
		PreserveAnalyze: preserveAnalyze,
		Validate:        func(b model.Band) []string { return validator.Validate(b).Messages() },
	})
	if err != nil {
		return model.SaveResult{}, err
	}
	if err := c.refreshCache(ctx); err != nil {
		return model.SaveResult{}, err
	}
	return model.SaveResult{BandName: bandName, Saved: true}, nil
}

// SaveBandAnalyze implements §6.2's save_band_analyze. When
// analyzeMissingAlbums is false, AlbumAnalysis entries referencing an
// AlbumsMissing album are dropped rather than rejected, since editorial
// content about an absent album is rarely what the caller intended.
func (c *Container) SaveBandAnalyze(ctx context.Context, bandName string, analysis model.BandAnalysis, analyzeMissingAlbums bool) (model.SaveResult, error) {
	bandPath, err := c.resolveBandPath(bandName)
	if err != nil {
		return model.SaveResult{}, err
	}
	existing, found, err := c.Store.LoadBand(bandPath)
	if err != nil {
		return model.SaveResult{}, err
	}
	if !found {
		return model.SaveResult{}, model.NewNotFoundError("band", bandName)
	}

	analysis.Review = validator.SanitizeText(analysis.Review)
	var warnings []string
	if !analyzeMissingAlbums {
		missing := map[string]bool{}
		for _, a := range existing.AlbumsMissing {
			missing[reconcile.Normalize(a.AlbumName)] = true
		}
		kept := analysis.Albums[:0]
		for _, aa := range analysis.Albums {
			if missing[reconcile.Normalize(aa.AlbumName)] {
				warnings = append(warnings, fmt.Sprintf("dropped analysis for missing album %q", aa.AlbumName))
				continue
			}
			aa.Review = validator.SanitizeText(aa.Review)
			kept = append(kept, aa)
		}
		analysis.Albums = kept
	}
	for i := range analysis.Albums {
		analysis.Albums[i].Rate = model.NormalizeRate(analysis.Albums[i].Rate)
	}
	analysis.Rate = model.NormalizeRate(analysis.Rate)

	existing.Analyze = &analysis
	err = c.Store.SaveBand(ctx, bandPath, existing, storage.SaveOptions{
		Validate: func(b model.Band) []string { return validator.Validate(b).Messages() },
	})
	if err != nil {
		return model.SaveResult{}, err
	}
	if err := c.refreshCache(ctx); err != nil {
		return model.SaveResult{}, err
	}
	return model.SaveResult{BandName: bandName, Saved: true, Warnings: warnings}, nil
}

// SaveCollectionInsight implements §6.2's save_collection_insight: a
// free-form enrichment payload from the external web-search collaborator
// (out of scope, §1), stored verbatim at the root alongside the collection
// index rather than inside any single band's metadata.
func (c *Container) SaveCollectionInsight(ctx context.Context, insight model.CollectionInsight) (model.SaveResult, error) {
	insight.Summary = validator.SanitizeText(insight.Summary)
	path := filepath.Join(c.Config.MusicRootPath, ".collection_insight.json")
	data, err := json.MarshalIndent(insight, "", "  ")
	if err != nil {
		return model.SaveResult{}, fmt.Errorf("marshaling collection insight: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return model.SaveResult{}, model.NewWriteError(path, err)
	}
	log.Info(ctx, "collection insight written", "path", path)
	return model.SaveResult{Saved: true}, nil
}

// ValidateBandMetadata implements §6.2's validate_band_metadata. This is
// always a dry run: nothing is written regardless of the outcome.
func (c *Container) ValidateBandMetadata(_ context.Context, bandName string, metadata model.Band) (model.ValidationReport, error) {
	metadata.BandName = bandName
	result := validator.Validate(metadata)

	report := model.ValidationReport{BandName: bandName, Valid: result.Valid()}
	for _, issue := range result.Issues {
		switch issue.Severity {
		case validator.SeverityError:
			report.Errors = append(report.Errors, issue.String())
		default:
			report.Warnings = append(report.Warnings, issue.String())
		}
	}
	return report, nil
}
