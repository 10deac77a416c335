package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/crateindex/conf"
	"github.com/navidrome/crateindex/core/container"
)

func newTestContainer(t *testing.T) *container.Container {
	t.Helper()
	root := t.TempDir()
	bandDir := filepath.Join(root, "Boards of Canada", "Music Has the Right to Children")
	require.NoError(t, os.MkdirAll(bandDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bandDir, "01 Wildlife Analysis.flac"), []byte("x"), 0o644))

	cfg := &conf.Config{
		MusicRootPath:      root,
		CacheDurationDays:  1,
		LogLevel:           "ERROR",
		MaxScanWorkers:     2,
		BatchSize:          10,
		LockTimeoutSeconds: 2,
	}
	ct, err := container.New(cfg)
	require.NoError(t, err)
	t.Cleanup(ct.Close)
	return ct
}

func TestDispatch_ScanThenListBands(t *testing.T) {
	ct := newTestContainer(t)
	ctx := context.Background()

	_, err := dispatch(ctx, ct, "scan_music_folders", json.RawMessage(`{"force_full_scan": true}`))
	require.NoError(t, err)

	result, err := dispatch(ctx, ct, "get_band_list", json.RawMessage(`{"search": "boards"}`))
	require.NoError(t, err)

	// Round-trip through JSON, the same encoding the stdio transport uses,
	// rather than type-asserting the concrete query.BandListResult.
	data, err := json.Marshal(result)
	require.NoError(t, err)
	var decoded struct {
		Bands []struct {
			BandName string `json:"band_name"`
		} `json:"bands"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, 1, decoded.Total)
	assert.Equal(t, "Boards of Canada", decoded.Bands[0].BandName)
}

func TestDispatch_SaveBandMetadata_PreservesAnalyzeWhenOmitted(t *testing.T) {
	ct := newTestContainer(t)
	ctx := context.Background()
	bandName := "Boards of Canada"

	_, err := dispatch(ctx, ct, "scan_music_folders", json.RawMessage(`{"force_full_scan": true}`))
	require.NoError(t, err)

	_, err = dispatch(ctx, ct, "save_band_analyze", json.RawMessage(`{
		"band_name": "Boards of Canada",
		"analyze": {"rate": 8, "review": "influential"}
	}`))
	require.NoError(t, err)

	// §6.2: preserve_analyze defaults to true when the caller omits it.
	// Re-saving metadata without an analyze block, and without the flag,
	// must not discard the analysis just written.
	_, err = dispatch(ctx, ct, "save_band_metadata", json.RawMessage(`{
		"band_name": "Boards of Canada",
		"metadata": {"band_name": "Boards of Canada", "genres": ["IDM"]}
	}`))
	require.NoError(t, err)

	bandPath := filepath.Join(ct.Config.MusicRootPath, bandName)
	band, found, err := ct.Store.LoadBand(bandPath)
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, band.Analyze)
	assert.Equal(t, 8, *band.Analyze.Rate)
}

func TestDispatch_SaveBandMetadata_DiscardsAnalyzeWhenExplicitlyFalse(t *testing.T) {
	ct := newTestContainer(t)
	ctx := context.Background()
	bandName := "Boards of Canada"

	_, err := dispatch(ctx, ct, "scan_music_folders", json.RawMessage(`{"force_full_scan": true}`))
	require.NoError(t, err)

	_, err = dispatch(ctx, ct, "save_band_analyze", json.RawMessage(`{
		"band_name": "Boards of Canada",
		"analyze": {"rate": 8}
	}`))
	require.NoError(t, err)

	_, err = dispatch(ctx, ct, "save_band_metadata", json.RawMessage(`{
		"band_name": "Boards of Canada",
		"metadata": {"band_name": "Boards of Canada"},
		"preserve_analyze": false
	}`))
	require.NoError(t, err)

	bandPath := filepath.Join(ct.Config.MusicRootPath, bandName)
	band, found, err := ct.Store.LoadBand(bandPath)
	require.NoError(t, err)
	require.True(t, found)
	assert.Nil(t, band.Analyze)
}

func TestDispatch_SaveBandMetadata_FirstSaveBeforeScan(t *testing.T) {
	ct := newTestContainer(t)
	ctx := context.Background()

	// §3 Lifecycle: a band's metadata file may be created on first save, not
	// only on first scan. "Brand New Band" was never discovered by a scan.
	result, err := dispatch(ctx, ct, "save_band_metadata", json.RawMessage(`{
		"band_name": "Brand New Band",
		"metadata": {"band_name": "Brand New Band", "genres": ["Ambient"]}
	}`))
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	var decoded struct {
		Saved bool `json:"saved"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Saved)

	bandPath := filepath.Join(ct.Config.MusicRootPath, "Brand New Band")
	band, found, err := ct.Store.LoadBand(bandPath)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"Ambient"}, band.Genres)
}

func TestDispatch_UnknownOperation(t *testing.T) {
	ct := newTestContainer(t)
	_, err := dispatch(context.Background(), ct, "not_a_real_op", nil)
	require.Error(t, err)
}

func TestHandleLine_EchoesRequestID(t *testing.T) {
	ct := newTestContainer(t)
	line := []byte(`{"id":"req-1","op":"analyze_collection_insights"}`)
	resp := handleLine(context.Background(), ct, line)
	assert.Equal(t, "req-1", resp.ID)
	assert.Nil(t, resp.Error)
}

func TestHandleLine_MalformedJSON(t *testing.T) {
	ct := newTestContainer(t)
	resp := handleLine(context.Background(), ct, []byte(`{not json`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PARSE_ERROR", resp.Error.Code)
}
