// Package folder parses album-folder names into structured fields and
// detects album type from name/keyword/track-count signals (spec §4.1).
package folder

import (
	"regexp"
	"strings"

	"github.com/navidrome/crateindex/model"
)

// Parsed is the result of parsing one album folder name.
type Parsed struct {
	AlbumName string
	Year      string
	Edition   string
	Type      model.AlbumType
}

// yearEditionPattern extracts "YYYY - Album Name (Edition)" with the
// edition group optional.
var yearEditionPattern = regexp.MustCompile(`^(\d{4})\s*-\s*(.+?)(?:\s*\(([^)]+)\))?$`)

// UnknownTrackCount tells Parse to skip the track-count heuristic (§4.1) —
// used when the caller hasn't counted tracks yet.
const UnknownTrackCount = -1

// Parse parses a folder name (optionally accompanied by its immediate
// parent folder name, for enhanced-structure type-folder overrides, and a
// track count, for the Album/EP/Single heuristic) into Parsed fields.
//
// Parse only fails on input that is empty after trimming; any other input
// produces at least {AlbumName: <trimmed input>}.
func Parse(name string, parentFolder string, trackCount int) (Parsed, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Parsed{}, model.NewParseError("folder name is empty", nil)
	}

	p := Parsed{AlbumName: trimmed, Type: model.TypeAlbum}
	if m := yearEditionPattern.FindStringSubmatch(trimmed); m != nil {
		p.Year = m[1]
		p.AlbumName = strings.TrimSpace(m[2])
		if m[3] != "" {
			p.Edition, p.Type = classifyParenthetical(m[3])
		}
	}

	if t, ok := DetectType(p.AlbumName, trimmed); ok {
		p.Type = t
	}
	if t, ok := typeFromParentFolder(parentFolder); ok {
		p.Type = t
	}
	if p.Type == model.TypeAlbum && trackCount != UnknownTrackCount {
		p.Type = typeFromTrackCount(trackCount)
	}
	return p, nil
}

// classifyParenthetical decides whether parenthetical content found after
// the year/name is a recognized edition, a type-keyword hint, or an
// unrecognized string to preserve verbatim as the edition (§4.1: "except
// content equal to any album-type keyword" — an exact match, not the
// substring/boundary matching DetectType uses against a full album name).
func classifyParenthetical(content string) (edition string, typ model.AlbumType) {
	if t, ok := exactTypeKeyword(content); ok {
		return "", t
	}
	if canon := model.CanonicalEdition(content); canon != "" {
		return canon, model.TypeAlbum
	}
	return content, model.TypeAlbum
}

// exactTypeKeyword reports whether content, case-folded and trimmed, equals
// one of §4.1's type keywords outright (as opposed to DetectType's substring
// match over a whole album/folder name).
func exactTypeKeyword(content string) (model.AlbumType, bool) {
	folded := strings.ToLower(strings.TrimSpace(content))
	for _, group := range typeKeywords {
		for _, kw := range group.keywords {
			if folded == kw {
				return group.typ, true
			}
		}
	}
	return "", false
}

// typeKeywords lists, in the precedence order specified by §4.1, the
// substrings (case-insensitive) that identify each album type.
var typeKeywords = []struct {
	typ      model.AlbumType
	keywords []string
}{
	{model.TypeLive, []string{"live at", "live in", "live from", "live", "concert", "unplugged", "acoustic", "in concert"}},
	{model.TypeCompilation, []string{"greatest hits", "best of", "collection", "anthology", "compilation", "hits", "complete", "essential"}},
	{model.TypeEP, []string{"e.p.", "ep"}},
	{model.TypeSingle, []string{"single"}},
	{model.TypeDemo, []string{"demo", "demos", "early recordings", "unreleased", "rough mixes", "rehearsal", "pre-production"}},
	{model.TypeInstrumental, []string{"instrumental", "instrumentals"}},
	{model.TypeSplit, []string{"split", "vs.", "vs", "versus", "with"}},
}

// DetectType checks albumName and folderName (both matched case-insensitively
// as substrings) against the type keyword table, returning the first match
// in precedence order.
func DetectType(albumName, folderName string) (model.AlbumType, bool) {
	haystack := strings.ToLower(albumName + " " + folderName)
	for _, group := range typeKeywords {
		for _, kw := range group.keywords {
			if matchesKeyword(haystack, kw) {
				return group.typ, true
			}
		}
	}
	return "", false
}

// matchesKeyword does a substring match, except for short ambiguous tokens
// ("ep", "vs", "with") where it requires a word boundary to avoid firing on
// ordinary words that happen to contain the letters.
var boundaryKeywords = map[string]*regexp.Regexp{
	"ep":   regexp.MustCompile(`\bep\b`),
	"vs":   regexp.MustCompile(`\bvs\b`),
	"with": regexp.MustCompile(`\bwith\b`),
}

func matchesKeyword(haystack, kw string) bool {
	if re, ok := boundaryKeywords[kw]; ok {
		return re.MatchString(haystack)
	}
	return strings.Contains(haystack, kw)
}

// typeFromParentFolder implements the parent-folder override: if the
// immediate parent folder name equals (case-insensitively) one of the eight
// type values, that type wins outright.
func typeFromParentFolder(parentFolder string) (model.AlbumType, bool) {
	if parentFolder == "" {
		return "", false
	}
	for _, t := range model.AllAlbumTypes {
		if strings.EqualFold(parentFolder, string(t)) {
			return t, true
		}
	}
	return "", false
}

// typeFromTrackCount implements the §4.1 fallback heuristic: 1 track is a
// Single, 2..7 is an EP, anything else stays Album.
func typeFromTrackCount(trackCount int) model.AlbumType {
	switch {
	case trackCount == 1:
		return model.TypeSingle
	case trackCount >= 2 && trackCount <= 7:
		return model.TypeEP
	default:
		return model.TypeAlbum
	}
}

// Format renders Parsed back into a folder name of the canonical
// "YYYY - Album Name (Edition)" shape (or just the name, absent a year),
// the inverse of Parse, used by Round-trip tests and recommended-path
// generation.
func Format(p Parsed) string {
	var b strings.Builder
	if p.Year != "" {
		b.WriteString(p.Year)
		b.WriteString(" - ")
	}
	b.WriteString(p.AlbumName)
	if p.Edition != "" {
		b.WriteString(" (")
		b.WriteString(p.Edition)
		b.WriteString(")")
	}
	return b.String()
}
