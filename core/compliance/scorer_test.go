package compliance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/crateindex/core/folder"
	"github.com/navidrome/crateindex/model"
)

var musicExts = map[string]bool{"mp3": true, "flac": true}

func TestScore_PerfectAlbum(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01.mp3"), []byte("x"), 0o644))

	p, err := folder.Parse("1977 - Rumours", "", folder.UnknownTrackCount)
	require.NoError(t, err)

	c := Score(Input{
		AlbumFolderName: "1977 - Rumours",
		AlbumPath:       dir,
		StructureType:   model.StructureDefault,
		Parsed:          p,
		MusicExts:       musicExts,
	})
	assert.Equal(t, 100, c.Score)
	assert.Equal(t, model.ComplianceExcellent, c.Level)
	assert.Empty(t, c.Issues)
}

func TestScore_MissingYearPrefix(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01.mp3"), []byte("x"), 0o644))

	p, err := folder.Parse("Rumours", "", folder.UnknownTrackCount)
	require.NoError(t, err)

	c := Score(Input{AlbumFolderName: "Rumours", AlbumPath: dir, StructureType: model.StructureDefault, Parsed: p, MusicExts: musicExts})
	assert.Equal(t, 75, c.Score)
	assert.Contains(t, c.Issues, "missing year prefix")
}

func TestScore_EmptyFolder(t *testing.T) {
	dir := t.TempDir()
	p, err := folder.Parse("1977 - Rumours", "", folder.UnknownTrackCount)
	require.NoError(t, err)

	c := Score(Input{AlbumFolderName: "1977 - Rumours", AlbumPath: dir, StructureType: model.StructureDefault, Parsed: p, MusicExts: musicExts})
	assert.Equal(t, 60, c.Score)
	assert.Equal(t, model.ComplianceFair, c.Level)
}

func TestScore_ForbiddenCharacters(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01.mp3"), []byte("x"), 0o644))

	name := `1977 - Rumours: Live?`
	p, err := folder.Parse(name, "", folder.UnknownTrackCount)
	require.NoError(t, err)

	c := Score(Input{AlbumFolderName: name, AlbumPath: dir, StructureType: model.StructureDefault, Parsed: p, MusicExts: musicExts})
	assert.Less(t, c.Score, 100)
}

func TestRecommendedPath_Enhanced(t *testing.T) {
	p := folder.Parsed{Year: "1980", AlbumName: "At Wembley", Type: model.TypeLive}
	got := RecommendedPath(p, model.StructureEnhanced)
	assert.Equal(t, filepath.Join("Live", "1980 - At Wembley"), got)
}

func TestRecommendedPath_Default(t *testing.T) {
	p := folder.Parsed{Year: "1977", AlbumName: "Rumours", Type: model.TypeAlbum}
	assert.Equal(t, "1977 - Rumours", RecommendedPath(p, model.StructureDefault))
}
