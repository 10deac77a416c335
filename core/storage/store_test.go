package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/navidrome/crateindex/model"
)

// TestMain checks that every Store's background cache-eviction goroutine
// (started by New, stopped by Close) is actually gone once the package's
// tests finish, since every test below is expected to defer Close.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSaveAndLoadBand_RoundTrip(t *testing.T) {
	root := t.TempDir()
	bandPath := filepath.Join(root, "Fleetwood Mac")
	require.NoError(t, os.MkdirAll(bandPath, 0o755))

	s := New(root, time.Hour, 2*time.Second)
	defer s.Close()

	band := model.Band{
		BandName: "Fleetwood Mac",
		Albums:   model.Albums{{AlbumName: "Rumours", Year: "1977", Type: model.TypeAlbum}},
	}

	require.NoError(t, s.SaveBand(context.Background(), bandPath, band, SaveOptions{}))

	loaded, found, err := s.LoadBand(bandPath)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Fleetwood Mac", loaded.BandName)
	assert.Equal(t, model.CurrentSchemaVersion, loaded.SchemaVersion)
	require.Len(t, loaded.Albums, 1)
	assert.Equal(t, "Rumours", loaded.Albums[0].AlbumName)

	assert.FileExists(t, s.BandMetadataPath(bandPath))
}

func TestSaveBand_PreservesAnalyzeWhenRequested(t *testing.T) {
	root := t.TempDir()
	bandPath := filepath.Join(root, "Band")
	require.NoError(t, os.MkdirAll(bandPath, 0o755))
	s := New(root, time.Hour, 2*time.Second)
	defer s.Close()

	first := model.Band{
		BandName: "Band",
		Analyze:  &model.BandAnalysis{Review: "great band"},
	}
	require.NoError(t, s.SaveBand(context.Background(), bandPath, first, SaveOptions{}))

	second := model.Band{BandName: "Band"}
	require.NoError(t, s.SaveBand(context.Background(), bandPath, second, SaveOptions{PreserveAnalyze: true}))

	loaded, _, err := s.LoadBand(bandPath)
	require.NoError(t, err)
	require.NotNil(t, loaded.Analyze)
	assert.Equal(t, "great band", loaded.Analyze.Review)
}

func TestSaveBand_ValidationRejectsWrite(t *testing.T) {
	root := t.TempDir()
	bandPath := filepath.Join(root, "Band")
	require.NoError(t, os.MkdirAll(bandPath, 0o755))
	s := New(root, time.Hour, 2*time.Second)
	defer s.Close()

	err := s.SaveBand(context.Background(), bandPath, model.Band{BandName: "Band"}, SaveOptions{
		Validate: func(model.Band) []string { return []string{"bad band"} },
	})
	require.Error(t, err)
	var coreErr *model.CoreError
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, model.CodeValidationError, coreErr.Code)
	assert.NoFileExists(t, s.BandMetadataPath(bandPath))
}

func TestSaveBand_WritesBackupOnSecondWrite(t *testing.T) {
	root := t.TempDir()
	bandPath := filepath.Join(root, "Band")
	require.NoError(t, os.MkdirAll(bandPath, 0o755))
	s := New(root, time.Hour, 2*time.Second)
	defer s.Close()

	require.NoError(t, s.SaveBand(context.Background(), bandPath, model.Band{BandName: "Band", Formed: "1990"}, SaveOptions{}))
	require.NoError(t, s.SaveBand(context.Background(), bandPath, model.Band{BandName: "Band", Formed: "1991"}, SaveOptions{}))

	assert.FileExists(t, s.BandMetadataPath(bandPath)+".bak")
}

func TestRollback_RestoresBackup(t *testing.T) {
	root := t.TempDir()
	bandPath := filepath.Join(root, "Band")
	require.NoError(t, os.MkdirAll(bandPath, 0o755))
	s := New(root, time.Hour, 2*time.Second)
	defer s.Close()

	require.NoError(t, s.SaveBand(context.Background(), bandPath, model.Band{BandName: "Band", Formed: "1990"}, SaveOptions{}))
	require.NoError(t, s.SaveBand(context.Background(), bandPath, model.Band{BandName: "Band", Formed: "1999"}, SaveOptions{}))

	require.NoError(t, s.Rollback(context.Background(), bandPath))

	loaded, _, err := s.LoadBand(bandPath)
	require.NoError(t, err)
	assert.Equal(t, "1990", loaded.Formed)
}

func TestMigrate_SplitsLegacySingleArray(t *testing.T) {
	legacy := model.Band{
		BandName:      "Band",
		SchemaVersion: 1,
		Albums: model.Albums{
			{AlbumName: "Present", Missing: false},
			{AlbumName: "Absent", Missing: true, FolderPath: "stale"},
		},
	}
	migrated := migrate(legacy)
	assert.Equal(t, model.CurrentSchemaVersion, migrated.SchemaVersion)
	require.Len(t, migrated.Albums, 1)
	assert.Equal(t, "Present", migrated.Albums[0].AlbumName)
	require.Len(t, migrated.AlbumsMissing, 1)
	assert.Equal(t, "Absent", migrated.AlbumsMissing[0].AlbumName)
	assert.Empty(t, migrated.AlbumsMissing[0].FolderPath)
}

func TestLoadBand_MissingFileReturnsZeroValue(t *testing.T) {
	root := t.TempDir()
	bandPath := filepath.Join(root, "Nobody")
	s := New(root, time.Hour, 2*time.Second)
	defer s.Close()

	band, found, err := s.LoadBand(bandPath)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, model.Band{}, band)
}

func TestSaveAndLoadIndex(t *testing.T) {
	root := t.TempDir()
	s := New(root, time.Hour, 2*time.Second)
	defer s.Close()

	idx := model.CollectionIndex{Bands: []model.BandIndexEntry{{BandName: "Band", AlbumsCount: 3}}}
	idx.Rebuild()
	require.NoError(t, s.SaveIndex(idx))

	loaded, err := s.LoadIndex()
	require.NoError(t, err)
	require.Len(t, loaded.Bands, 1)
	assert.Equal(t, 3, loaded.Stats.TotalAlbums)
}
