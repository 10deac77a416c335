// Package compliance scores a single album folder against its band's
// detected folder structure (spec §4.3).
package compliance

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/navidrome/crateindex/core/folder"
	"github.com/navidrome/crateindex/model"
)

var forbiddenChars = []rune{':', '/', '\\', '?', '*', '|', '"', '<', '>'}

// Input bundles what Score needs about one album folder and its context.
type Input struct {
	AlbumFolderName string
	ParentFolder    string // type folder name, or "" if directly under the band
	AlbumPath       string // absolute path, for the empty-folder check
	StructureType   model.StructureType
	Parsed          folder.Parsed
	MusicExts       map[string]bool
}

// Score evaluates one album folder and returns its AlbumCompliance.
func Score(in Input) model.AlbumCompliance {
	score := 100
	var issues []string

	if in.Parsed.Year == "" {
		score -= 25
		issues = append(issues, "missing year prefix")
	}

	if in.StructureType == model.StructureEnhanced {
		if t, ok := folder.DetectType(in.Parsed.AlbumName, in.AlbumFolderName); ok {
			if !strings.EqualFold(in.ParentFolder, string(t)) {
				score -= 15
				issues = append(issues, "type keyword in name but not under matching type folder")
			}
		}
	}

	if in.Parsed.Edition != "" && !strings.Contains(in.AlbumFolderName, "("+in.Parsed.Edition+")") {
		score -= 10
		issues = append(issues, "edition not enclosed in parentheses")
	}

	if n := countForbidden(in.AlbumFolderName); n > 0 {
		deduction := n * 10
		if deduction > 30 {
			deduction = 30
		}
		score -= deduction
		issues = append(issues, fmt.Sprintf("%d forbidden character(s) in folder name", n))
	}

	if !hasMusicFile(in.AlbumPath, in.MusicExts) {
		score -= 40
		issues = append(issues, "album folder contains no recognized music files")
	}

	if score < 0 {
		score = 0
	}

	return model.AlbumCompliance{
		Score:           score,
		Level:           model.LevelForScore(score),
		Issues:          issues,
		RecommendedPath: RecommendedPath(in.Parsed, in.StructureType),
	}
}

// RecommendedPath computes "[TypeFolder/]YYYY - Album Name (Edition)"
// relative to the band folder, following the band's structure_type.
// Each path segment has the forbidden characters removed and is otherwise
// kept as formatted (case and spacing unchanged), independent of the
// name-normalization the Reconciler uses for matching.
func RecommendedPath(p folder.Parsed, st model.StructureType) string {
	clean := func(s string) string {
		return strings.Map(func(r rune) rune {
			for _, f := range forbiddenChars {
				if r == f {
					return -1
				}
			}
			return r
		}, s)
	}
	name := clean(folder.Format(p))
	if st == model.StructureEnhanced {
		return filepath.Join(clean(string(p.Type)), name)
	}
	return name
}

func hasMusicFile(dir string, musicExts map[string]bool) bool {
	if dir == "" {
		return true // unknown path: don't penalize what we can't check
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(e.Name())), ".")
		if musicExts[ext] {
			return true
		}
	}
	return false
}

func countForbidden(name string) int {
	n := 0
	for _, r := range name {
		for _, f := range forbiddenChars {
			if r == f {
				n++
			}
		}
	}
	return n
}
