// Package validator checks Band records against the field and cross-field
// rules of spec §4.8, and sanitizes free-text fields before they're
// persisted.
package validator

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/navidrome/crateindex/core/reconcile"
	"github.com/navidrome/crateindex/model"
)

var (
	yearPattern     = regexp.MustCompile(`^\d{4}$`)
	durationPattern = regexp.MustCompile(`^\d+min$`)

	textPolicy = bluemonday.StrictPolicy()
)

// Issue is one validation failure or warning.
type Issue struct {
	Field    string
	Message  string
	Severity Severity
}

// Severity distinguishes a rejecting failure from an advisory warning
// (§4.8's rating-consistency check is a warning, never a rejection).
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Field, i.Message)
}

// Result is the outcome of validating one Band.
type Result struct {
	Issues []Issue
}

// Errors returns only the rejecting issues.
func (r Result) Errors() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// Valid reports whether the band has no rejecting issues. Warnings never
// affect this.
func (r Result) Valid() bool { return len(r.Errors()) == 0 }

// Messages renders Errors() as plain strings, the shape core/storage's
// SaveOptions.Validate expects.
func (r Result) Messages() []string {
	var out []string
	for _, i := range r.Errors() {
		out = append(out, i.String())
	}
	return out
}

// Validate runs every field and cross-field rule against band and returns
// the full diagnostic list (errors and warnings). Dry-run callers run this
// alone and never proceed to a write; normal callers pass Result.Messages()
// to core/storage.SaveOptions.Validate.
func Validate(band model.Band) Result {
	var issues []Issue
	add := func(field, msg string, sev Severity) {
		issues = append(issues, Issue{Field: field, Message: msg, Severity: sev})
	}

	if strings.TrimSpace(band.BandName) == "" {
		add("band_name", "must be non-empty after trim", SeverityError)
	} else if len(band.BandName) > 200 {
		add("band_name", "must be at most 200 characters", SeverityError)
	}

	if band.Formed != "" && !yearPattern.MatchString(band.Formed) {
		add("formed", "must match ^\\d{4}$", SeverityError)
	}

	seen := map[string]string{} // normalized name -> which array it was first seen in
	checkOverlap := func(arrayName string, albums model.Albums) {
		for i, a := range albums {
			validateAlbum(arrayName, i, a, add)
			key := reconcile.Normalize(a.AlbumName)
			if other, ok := seen[key]; ok && other != arrayName {
				add(arrayName, fmt.Sprintf("album %q overlaps with an entry already in %s", a.AlbumName, other), SeverityError)
			} else if !ok {
				seen[key] = arrayName
			}
		}
	}
	checkOverlap("albums", band.Albums)
	checkOverlap("albums_missing", band.AlbumsMissing)

	if band.FolderStructure != nil {
		validateStructure(*band.FolderStructure, add)
	}

	if band.Analyze != nil {
		validateAnalysis(*band.Analyze, band, add)
	}

	return Result{Issues: issues}
}

func validateAlbum(arrayName string, i int, a model.Album, add func(field, msg string, sev Severity)) {
	field := fmt.Sprintf("%s[%d]", arrayName, i)
	if strings.TrimSpace(a.AlbumName) == "" {
		add(field+".album_name", "must be non-empty after trim", SeverityError)
	} else if len(a.AlbumName) > 200 {
		add(field+".album_name", "must be at most 200 characters", SeverityError)
	}
	if a.Year != "" && !yearPattern.MatchString(a.Year) {
		add(field+".year", "must match ^\\d{4}$", SeverityError)
	}
	if len(a.Edition) > 100 {
		add(field+".edition", "must be at most 100 characters", SeverityError)
	}
	if !a.Type.IsValid() {
		add(field+".type", "must be one of the eight recognized album types", SeverityError)
	}
	if a.TracksCount != nil && (*a.TracksCount < 0 || *a.TracksCount > 999) {
		add(field+".tracks_count", "must be between 0 and 999", SeverityError)
	}
	if a.Duration != "" && !durationPattern.MatchString(a.Duration) {
		add(field+".duration", "must match ^\\d+min$", SeverityError)
	}
	if a.Compliance != nil {
		if a.Compliance.Score < 0 || a.Compliance.Score > 100 {
			add(field+".compliance.score", "must be between 0 and 100", SeverityError)
		}
		if !a.Compliance.Level.IsValid() {
			add(field+".compliance.level", "must be one of the five recognized compliance levels", SeverityError)
		}
	}
}

func validateStructure(fs model.FolderStructure, add func(field, msg string, sev Severity)) {
	if fs.StructureScore < 0 || fs.StructureScore > 100 {
		add("folder_structure.structure_score", "must be between 0 and 100", SeverityError)
	}
	if fs.ConsistencyScore < 0 || fs.ConsistencyScore > 100 {
		add("folder_structure.consistency_score", "must be between 0 and 100", SeverityError)
	}
}

func validateAnalysis(analysis model.BandAnalysis, band model.Band, add func(field, msg string, sev Severity)) {
	if len(analysis.Review) > 5000 {
		add("analyze.review", "must be at most 5000 characters", SeverityError)
	}
	if r := analysis.Rate; r != nil && (*r < 1 || *r > 10) {
		add("analyze.rate", "must be between 1 and 10 (0 is normalized to absent)", SeverityError)
	}

	knownAlbums := map[string]bool{}
	for _, a := range band.Albums {
		knownAlbums[reconcile.Normalize(a.AlbumName)] = true
	}
	for _, a := range band.AlbumsMissing {
		knownAlbums[reconcile.Normalize(a.AlbumName)] = true
	}

	var albumRates []int
	for i, aa := range analysis.Albums {
		field := fmt.Sprintf("analyze.albums[%d]", i)
		if len(aa.Review) > 5000 {
			add(field+".review", "must be at most 5000 characters", SeverityError)
		}
		if aa.Rate != nil {
			if *aa.Rate < 1 || *aa.Rate > 10 {
				add(field+".rate", "must be between 1 and 10", SeverityError)
			} else {
				albumRates = append(albumRates, *aa.Rate)
			}
		}
		if !knownAlbums[reconcile.Normalize(aa.AlbumName)] {
			add(field+".album_name", fmt.Sprintf("%q does not resolve to an existing album", aa.AlbumName), SeverityError)
		}
	}

	checkRatingConsistency(analysis.Rate, albumRates, add)
}

// checkRatingConsistency implements the §4.8 cross-field warning (never a
// rejection): flag when the band rating diverges noticeably from its
// albums' ratings.
func checkRatingConsistency(bandRate *int, albumRates []int, add func(field, msg string, sev Severity)) {
	if bandRate == nil || len(albumRates) == 0 {
		return
	}
	mean := meanOf(albumRates)
	if math.Abs(float64(*bandRate)-mean) > 2 {
		add("analyze.rate", fmt.Sprintf("diverges from mean album rating %.1f by more than 2", mean), SeverityWarning)
		return
	}
	min, max := albumRates[0], albumRates[0]
	for _, r := range albumRates {
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
	}
	if *bandRate > max+1 {
		add("analyze.rate", fmt.Sprintf("exceeds max album rating %d by more than 1", max), SeverityWarning)
	} else if *bandRate < min-1 {
		add("analyze.rate", fmt.Sprintf("is below min album rating %d by more than 1", min), SeverityWarning)
	}
}

func meanOf(values []int) float64 {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// SanitizeText strips any markup from free-text fields (review, description)
// before they're stored, using a strict policy that allows plain text only.
func SanitizeText(s string) string {
	return textPolicy.Sanitize(s)
}
