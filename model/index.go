package model

import "time"

// BandIndexEntry is one row of the collection-wide index (§3).
type BandIndexEntry struct {
	BandName      string    `json:"band_name"`
	FolderPath    string    `json:"folder_path"`
	AlbumsCount   int       `json:"albums_count"`
	LocalAlbums   int       `json:"local_albums"`
	MissingAlbums int       `json:"missing_albums"`
	HasMetadata   bool      `json:"has_metadata"`
	HasAnalysis   bool      `json:"has_analysis"`
	LastUpdated   time.Time `json:"last_updated"`
	LastScanned   time.Time `json:"last_scanned"`
}

// CollectionStats aggregates CollectionIndex-wide numbers (§3/§4.7).
type CollectionStats struct {
	TotalBands            int     `json:"total_bands"`
	TotalAlbums           int     `json:"total_albums"`
	TotalMissingAlbums    int     `json:"total_missing_albums"`
	CompletionPercentage  float64 `json:"completion_percentage"`
	CompletionUndefined   bool    `json:"completion_undefined,omitempty"`
	BandsWithMetadata     int     `json:"bands_with_metadata"`
	BandsWithAnalysis     int     `json:"bands_with_analysis"`
	AvgAlbumsPerBand      float64 `json:"avg_albums_per_band"`
	MedianAlbumsPerBand   float64 `json:"median_albums_per_band"`
	MinAlbumsPerBand      int     `json:"min_albums_per_band"`
	MaxAlbumsPerBand      int     `json:"max_albums_per_band"`
}

// CollectionIndex is the full collection-wide index, persisted at
// <root>/.collection_index.json and always re-derivable from the per-band
// metadata files (§4.7).
type CollectionIndex struct {
	Bands       []BandIndexEntry `json:"bands"`
	Stats       CollectionStats  `json:"stats"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Rebuild recomputes Stats from Bands. Callers own replacing Bands first.
func (c *CollectionIndex) Rebuild() {
	c.Stats = computeStats(c.Bands)
}

func computeStats(entries []BandIndexEntry) CollectionStats {
	stats := CollectionStats{TotalBands: len(entries)}
	if len(entries) == 0 {
		stats.CompletionPercentage = 100
		stats.CompletionUndefined = true
		return stats
	}

	counts := make([]int, 0, len(entries))
	minCount, maxCount := -1, -1
	for _, e := range entries {
		stats.TotalAlbums += e.AlbumsCount
		stats.TotalMissingAlbums += e.MissingAlbums
		if e.HasMetadata {
			stats.BandsWithMetadata++
		}
		if e.HasAnalysis {
			stats.BandsWithAnalysis++
		}
		counts = append(counts, e.AlbumsCount)
		if minCount == -1 || e.AlbumsCount < minCount {
			minCount = e.AlbumsCount
		}
		if maxCount == -1 || e.AlbumsCount > maxCount {
			maxCount = e.AlbumsCount
		}
	}
	stats.MinAlbumsPerBand = minCount
	stats.MaxAlbumsPerBand = maxCount
	stats.AvgAlbumsPerBand = float64(stats.TotalAlbums) / float64(len(entries))
	stats.MedianAlbumsPerBand = median(counts)

	if stats.TotalAlbums == 0 {
		stats.CompletionPercentage = 100
		stats.CompletionUndefined = true
	} else {
		local := stats.TotalAlbums - stats.TotalMissingAlbums
		stats.CompletionPercentage = float64(local) / float64(stats.TotalAlbums) * 100
	}
	return stats
}

func median(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int(nil), values...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}
