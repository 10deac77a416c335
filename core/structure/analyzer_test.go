package structure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/crateindex/model"
)

var musicExts = map[string]bool{"mp3": true, "flac": true}

func mkAlbum(t *testing.T, dir string, hasMusic bool) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if hasMusic {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "01.mp3"), []byte("x"), 0o644))
	}
}

func TestAnalyze_DefaultStructure(t *testing.T) {
	root := t.TempDir()
	mkAlbum(t, filepath.Join(root, "1977 - Rumours"), true)
	mkAlbum(t, filepath.Join(root, "1979 - Tusk"), true)

	fs, err := Analyze(root, musicExts)
	require.NoError(t, err)
	assert.Equal(t, model.StructureDefault, fs.StructureType)
	assert.Equal(t, 2, fs.AlbumsAnalyzed)
	assert.Equal(t, 2, fs.AlbumsWithYearPrefix)
}

func TestAnalyze_EnhancedStructure(t *testing.T) {
	root := t.TempDir()
	mkAlbum(t, filepath.Join(root, "Album", "1977 - Rumours"), true)
	mkAlbum(t, filepath.Join(root, "Live", "1980 - At Wembley"), true)

	fs, err := Analyze(root, musicExts)
	require.NoError(t, err)
	assert.Equal(t, model.StructureEnhanced, fs.StructureType)
	assert.Equal(t, 2, fs.AlbumsWithTypeFolders)
	assert.ElementsMatch(t, []string{"Album", "Live"}, fs.TypeFoldersFound)
}

func TestAnalyze_LegacyStructure(t *testing.T) {
	root := t.TempDir()
	mkAlbum(t, filepath.Join(root, "Rumours"), true)
	mkAlbum(t, filepath.Join(root, "Tusk"), true)
	mkAlbum(t, filepath.Join(root, "Mirage"), true)

	fs, err := Analyze(root, musicExts)
	require.NoError(t, err)
	assert.Equal(t, model.StructureLegacy, fs.StructureType)
}

func TestAnalyze_EmptyBand(t *testing.T) {
	root := t.TempDir()
	fs, err := Analyze(root, musicExts)
	require.NoError(t, err)
	assert.Equal(t, 0, fs.AlbumsAnalyzed)
	assert.Equal(t, model.StructureUnknown, fs.StructureType)
}

func TestAnalyze_IgnoresNonAlbumDirs(t *testing.T) {
	root := t.TempDir()
	mkAlbum(t, filepath.Join(root, "1977 - Rumours"), true)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".band_metadata_backup"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Artwork"), 0o755))

	fs, err := Analyze(root, musicExts)
	require.NoError(t, err)
	assert.Equal(t, 1, fs.AlbumsAnalyzed)
}
