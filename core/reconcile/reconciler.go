// Package reconcile merges physically-discovered albums against stored
// metadata albums for one band, producing the local (albums) and missing
// (albums_missing) sets (spec §4.5).
package reconcile

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/xrash/smetrics"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/navidrome/crateindex/core/compliance"
	"github.com/navidrome/crateindex/core/folder"
	"github.com/navidrome/crateindex/model"
)

// Physical is one album folder discovered on disk this scan, already parsed
// and scored.
type Physical struct {
	Album  model.Album
	RawName string // unnormalized folder/album name, for edit-distance tie-breaks
}

// Result is the outcome of reconciling one band's stored metadata against
// what was physically discovered.
type Result struct {
	Albums        model.Albums
	AlbumsMissing model.Albums
}

var nonWordSpace = regexp.MustCompile(`[^\w\s]`)
var multiSpace = regexp.MustCompile(`\s+`)

var typeSuffixPattern = regexp.MustCompile(`\s+(live|demo|ep|single|compilation|instrumental)$`)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize reduces a name to a form suitable for fuzzy matching: lowercase,
// NFD-decomposed with combining marks stripped, non-word characters removed,
// whitespace collapsed, common abbreviation/conjunction variants unified, and
// any trailing type-indicator word dropped.
func Normalize(name string) string {
	lower := strings.ToLower(name)
	stripped, _, err := transform.String(stripMarks, lower)
	if err != nil {
		stripped = lower
	}
	stripped = strings.ReplaceAll(stripped, " & ", " and ")
	stripped = nonWordSpace.ReplaceAllString(stripped, " ")
	stripped = multiSpace.ReplaceAllString(stripped, " ")
	stripped = strings.TrimSpace(stripped)

	stripped = strings.ReplaceAll(stripped, " pt ", " part ")

	stripped = typeSuffixPattern.ReplaceAllString(stripped, "")
	return strings.TrimSpace(stripped)
}

// Reconcile merges storedAlbums (from the band's existing metadata file, may
// be nil on a first scan) against physical (this scan's discovered albums).
// structureType is the band's current FolderStructure.StructureType, used to
// compute a recommended_path for albums that turn out missing.
func Reconcile(storedAlbums model.Albums, physical []Physical, structureType model.StructureType) Result {
	matched := make(map[int]bool, len(physical))
	var result Result

	for _, stored := range storedAlbums {
		idx := findMatch(stored, physical, matched)
		if idx < 0 {
			missing := stored
			missing.Missing = true
			missing.FolderPath = ""
			missing.Compliance = &model.AlbumCompliance{
				RecommendedPath: compliance.RecommendedPath(parsedFrom(stored), structureType),
			}
			result.AlbumsMissing = append(result.AlbumsMissing, missing)
			continue
		}
		matched[idx] = true
		result.Albums = append(result.Albums, mergeAlbum(stored, physical[idx].Album))
	}

	for i, p := range physical {
		if !matched[i] {
			album := p.Album
			album.Missing = false
			result.Albums = append(result.Albums, album)
		}
	}

	return result
}

// findMatch returns the index into physical of the best unmatched match for
// stored, or -1 if none normalizes to the same name. Ties are broken by
// Levenshtein edit distance between the raw (unnormalized) names.
func findMatch(stored model.Album, physical []Physical, matched map[int]bool) int {
	target := Normalize(stored.AlbumName)
	best := -1
	bestDist := -1
	for i, p := range physical {
		if matched[i] {
			continue
		}
		if Normalize(p.Album.AlbumName) != target {
			continue
		}
		dist := smetrics.WagnerFischer(stored.AlbumName, p.RawName, 1, 1, 1)
		if best < 0 || dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}

// mergeAlbum combines a stored album with its matched physical counterpart,
// following §4.5's per-field precedence.
func mergeAlbum(stored, physical model.Album) model.Album {
	out := model.Album{
		AlbumName:   stored.AlbumName,
		Year:        firstNonEmpty(stored.Year, physical.Year),
		Type:        physical.Type,
		Edition:     firstNonEmpty(physical.Edition, stored.Edition),
		Genres:      firstNonEmptySlice(stored.Genres, physical.Genres),
		TracksCount: firstNonNilInt(physical.TracksCount, stored.TracksCount),
		Duration:    stored.Duration,
		Missing:     false,
		FolderPath:  physical.FolderPath,
		Compliance:  physical.Compliance,
		Gallery:     firstNonEmptySlice(stored.Gallery, physical.Gallery),
	}
	return out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonEmptySlice(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}

func firstNonNilInt(a, b *int) *int {
	if a != nil {
		return a
	}
	return b
}

// parsedFrom builds a folder.Parsed from stored album fields, for
// recommended-path generation on a missing album where there is no physical
// folder left to parse.
func parsedFrom(a model.Album) folder.Parsed {
	return folder.Parsed{Year: a.Year, AlbumName: a.AlbumName, Edition: a.Edition, Type: a.Type}
}
