// Package structure walks one band folder and classifies its organization
// pattern into a model.FolderStructure (spec §4.2).
package structure

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/navidrome/crateindex/core/folder"
	"github.com/navidrome/crateindex/model"
)

// AlbumFolder is one candidate album directory discovered under a band,
// already classified as being directly under the band root or under a
// type folder.
type AlbumFolder struct {
	Name         string // raw directory name
	ParentFolder string // "" unless nested one level under a type folder
}

var forbiddenChars = []rune{':', '/', '\\', '?', '*', '|', '"', '<', '>'}

// Analyze walks bandPath's immediate children (and one level of nested type
// folders) to produce a model.FolderStructure. musicExts is the recognized
// set of lower-case, dot-less music file extensions used to decide whether a
// directory is an album folder at all (§4.4's album-folder definition is
// reused here so the two components agree on what counts as an album).
func Analyze(bandPath string, musicExts map[string]bool) (model.FolderStructure, error) {
	albums, err := discoverAlbumFolders(bandPath, musicExts)
	if err != nil {
		return model.FolderStructure{}, model.NewScanError("structure analysis failed", err)
	}

	fs := model.FolderStructure{
		StructureType: model.StructureUnknown,
		Consistency:   model.ConsistencyUnknown,
	}
	fs.AlbumsAnalyzed = len(albums)
	if len(albums) == 0 {
		return fs, nil
	}

	editionStyles := map[string]bool{}
	forbiddenCount := 0
	typeFoldersSeen := map[string]bool{}

	for _, af := range albums {
		p, _ := folder.Parse(af.Name, af.ParentFolder, folder.UnknownTrackCount)
		if p.Year != "" {
			fs.AlbumsWithYearPrefix++
		} else {
			fs.AlbumsWithoutYearPrefix++
		}
		if af.ParentFolder != "" {
			fs.AlbumsWithTypeFolders++
			typeFoldersSeen[af.ParentFolder] = true
		}
		if p.Edition != "" {
			editionStyles[editionStyleOf(af.Name)] = true
		}
		forbiddenCount += countForbidden(af.Name)
	}

	for tf := range typeFoldersSeen {
		fs.TypeFoldersFound = append(fs.TypeFoldersFound, tf)
	}
	sort.Strings(fs.TypeFoldersFound)

	n := float64(len(albums))
	typeFolderRatio := float64(fs.AlbumsWithTypeFolders) / n
	yearPrefixRatio := float64(fs.AlbumsWithYearPrefix) / n

	fs.StructureType = classifyStructureType(typeFolderRatio, yearPrefixRatio)

	dominantMatches := dominantPatternMatches(albums, fs.StructureType)
	validYearFrac := float64(fs.AlbumsWithYearPrefix) / n
	cleanFrac := 1 - float64(forbiddenCount)/n

	fs.ConsistencyScore = clamp0to100(int(
		0.70*100*float64(dominantMatches)/n +
			0.15*100*validYearFrac +
			0.15*100*cleanFrac,
	))
	fs.Consistency = classifyConsistency(fs.ConsistencyScore)
	fs.StructureScore = clamp0to100(fs.ConsistencyScore + structureAdjustment(fs.StructureType))

	fs.Recommendations = buildRecommendations(fs, typeFolderRatio, editionStyles)
	fs.Issues = buildIssues(fs)

	return fs, nil
}

func discoverAlbumFolders(bandPath string, musicExts map[string]bool) ([]AlbumFolder, error) {
	entries, err := os.ReadDir(bandPath)
	if err != nil {
		return nil, err
	}

	var albums []AlbumFolder
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		full := filepath.Join(bandPath, e.Name())
		if hasMusicFile(full, musicExts) {
			albums = append(albums, AlbumFolder{Name: e.Name()})
			continue
		}
		nested, err := os.ReadDir(full)
		if err != nil {
			continue
		}
		for _, ne := range nested {
			if !ne.IsDir() {
				continue
			}
			nfull := filepath.Join(full, ne.Name())
			if hasMusicFile(nfull, musicExts) {
				albums = append(albums, AlbumFolder{Name: ne.Name(), ParentFolder: e.Name()})
			}
		}
	}
	return albums, nil
}

func hasMusicFile(dir string, musicExts map[string]bool) bool {
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

func classifyStructureType(typeFolderRatio, yearPrefixRatio float64) model.StructureType {
	switch {
	case typeFolderRatio >= 0.8:
		return model.StructureEnhanced
	case yearPrefixRatio >= 0.8:
		return model.StructureDefault
	case typeFolderRatio > 0.2 && yearPrefixRatio > 0.2:
		return model.StructureMixed
	case yearPrefixRatio < 0.3:
		return model.StructureLegacy
	default:
		return model.StructureUnknown
	}
}

// dominantPatternMatches counts albums matching the band's detected
// structure_type: type-foldered for enhanced, year-prefixed otherwise.
func dominantPatternMatches(albums []AlbumFolder, st model.StructureType) int {
	count := 0
	for _, af := range albums {
		p, _ := folder.Parse(af.Name, af.ParentFolder, folder.UnknownTrackCount)
		switch st {
		case model.StructureEnhanced:
			if af.ParentFolder != "" {
				count++
			}
		default:
			if p.Year != "" {
				count++
			}
		}
	}
	return count
}

func classifyConsistency(score int) model.ConsistencyLevel {
	switch {
	case score >= 90:
		return model.ConsistencyConsistent
	case score >= 70:
		return model.ConsistencyMostlyConsistent
	case score >= 50:
		return model.ConsistencyInconsistent
	case score >= 30:
		return model.ConsistencyPoor
	default:
		return model.ConsistencyUnknown
	}
}

func structureAdjustment(st model.StructureType) int {
	switch st {
	case model.StructureEnhanced:
		return 5
	case model.StructureLegacy, model.StructureUnknown:
		return -10
	default:
		return 0
	}
}

func buildRecommendations(fs model.FolderStructure, typeFolderRatio float64, editionStyles map[string]bool) []string {
	var recs []string
	if typeFolderRatio > 0 && typeFolderRatio < 0.8 {
		n := fs.AlbumsAnalyzed - fs.AlbumsWithTypeFolders
		recs = append(recs, fmt.Sprintf("Move %d albums into type folders", n))
	}
	if fs.AlbumsWithoutYearPrefix > 0 && fs.AlbumsWithYearPrefix > 0 {
		recs = append(recs, fmt.Sprintf("Add year prefix to %d album folders", fs.AlbumsWithoutYearPrefix))
	}
	if len(editionStyles) > 1 {
		recs = append(recs, "Standardize edition suffix style")
	}
	return recs
}

func buildIssues(fs model.FolderStructure) []string {
	var issues []string
	if fs.AlbumsWithoutYearPrefix > 0 {
		issues = append(issues, fmt.Sprintf("%d albums have no year prefix", fs.AlbumsWithoutYearPrefix))
	}
	outsideTypeFolders := fs.AlbumsAnalyzed - fs.AlbumsWithTypeFolders
	if outsideTypeFolders > 0 && fs.AlbumsWithTypeFolders > 0 {
		issues = append(issues, fmt.Sprintf("%d albums outside type folders", outsideTypeFolders))
	}
	return issues
}

// editionStyleOf reports a coarse "style" fingerprint for how an edition
// suffix is formatted, used only to detect inconsistency across albums, not
// to extract the edition text itself.
func editionStyleOf(name string) string {
	switch {
	case strings.Contains(name, "["):
		return "brackets"
	case strings.Contains(name, "("):
		return "parens"
	case strings.Contains(name, " - "):
		return "dash"
	default:
		return "none"
	}
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

func clamp0to100(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
