package model

import "time"

// BandScanResult is what one band's scan pass produces (§4.4 step 6).
type BandScanResult struct {
	BandName   string        `json:"band_name"`
	FolderPath string        `json:"folder_path"`
	Changed    bool          `json:"changed"`
	Band       Band          `json:"band"`
	Warnings   []string      `json:"warnings,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ms"`
}

// CollectionScanResult is the aggregate return value of full_scan/
// incremental_scan.
type CollectionScanResult struct {
	ScanID        string           `json:"scan_id"`
	Root          string           `json:"root"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
	BandsScanned  int              `json:"bands_scanned"`
	BandsSkipped  int              `json:"bands_skipped"`
	BandsChanged  int              `json:"bands_changed"`
	BandsFailed   int              `json:"bands_failed"`
	Results       []BandScanResult `json:"results"`
	Index         CollectionIndex  `json:"index"`
}

// ScanProgressEvent is emitted periodically during scans spanning more than
// 50 bands (§4.4 "Progress reporting").
type ScanProgressEvent struct {
	ScanID    string        `json:"scan_id"`
	Count     int           `json:"count"`
	Total     int           `json:"total"`
	ETA       time.Duration `json:"eta_ms"`
	BandName  string        `json:"band_name,omitempty"`
}
