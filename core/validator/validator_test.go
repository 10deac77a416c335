package validator

import (
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/crateindex/model"
)

func intp(v int) *int { return &v }

func TestValidate_ValidBand(t *testing.T) {
	band := model.Band{
		BandName: "Fleetwood Mac",
		Formed:   "1967",
		Albums:   model.Albums{{AlbumName: "Rumours", Year: "1977", Type: model.TypeAlbum, TracksCount: intp(11)}},
	}
	result := Validate(band)
	assert.True(t, result.Valid())
}

func TestValidate_EmptyBandName(t *testing.T) {
	result := Validate(model.Band{BandName: "   "})
	require.False(t, result.Valid())
	assert.Contains(t, result.Messages()[0], "band_name")
}

func TestValidate_BadYearFormat(t *testing.T) {
	band := model.Band{BandName: "Band", Formed: "67"}
	result := Validate(band)
	require.False(t, result.Valid())
}

func TestValidate_OverlappingAlbumsAcrossArrays(t *testing.T) {
	band := model.Band{
		BandName:      "Band",
		Albums:        model.Albums{{AlbumName: "Rumours", Type: model.TypeAlbum}},
		AlbumsMissing: model.Albums{{AlbumName: "Rumours", Type: model.TypeAlbum, Missing: true}},
	}
	result := Validate(band)
	require.False(t, result.Valid())
}

func TestValidate_InvalidTracksCount(t *testing.T) {
	band := model.Band{
		BandName: "Band",
		Albums:   model.Albums{{AlbumName: "A", Type: model.TypeAlbum, TracksCount: intp(-1)}},
	}
	result := Validate(band)
	require.False(t, result.Valid())
}

func TestValidate_InvalidAlbumType(t *testing.T) {
	band := model.Band{
		BandName: "Band",
		Albums:   model.Albums{{AlbumName: "A", Type: "Bootleg"}},
	}
	result := Validate(band)
	require.False(t, result.Valid())
}

func TestValidate_AnalysisReferencesUnknownAlbum(t *testing.T) {
	band := model.Band{
		BandName: "Band",
		Albums:   model.Albums{{AlbumName: "A", Type: model.TypeAlbum}},
		Analyze: &model.BandAnalysis{
			Albums: []model.AlbumAnalysis{{AlbumName: "Nonexistent"}},
		},
	}
	result := Validate(band)
	require.False(t, result.Valid())
}

func TestValidate_AnalysisResolvesNormalizedName(t *testing.T) {
	band := model.Band{
		BandName: "Band",
		Albums:   model.Albums{{AlbumName: "Déjà Vu", Type: model.TypeAlbum}},
		Analyze: &model.BandAnalysis{
			Albums: []model.AlbumAnalysis{{AlbumName: "Deja Vu"}},
		},
	}
	result := Validate(band)
	assert.True(t, result.Valid())
}

func TestValidate_RatingConsistencyWarnsNotRejects(t *testing.T) {
	band := model.Band{
		BandName: "Band",
		Albums:   model.Albums{{AlbumName: "A", Type: model.TypeAlbum}},
		Analyze: &model.BandAnalysis{
			Rate:   intp(9),
			Albums: []model.AlbumAnalysis{{AlbumName: "A", Rate: intp(2)}},
		},
	}
	result := Validate(band)
	assert.True(t, result.Valid())
	var warnings []Issue
	for _, i := range result.Issues {
		if i.Severity == SeverityWarning {
			warnings = append(warnings, i)
		}
	}
	assert.NotEmpty(t, warnings)
}

func TestSanitizeText_StripsMarkup(t *testing.T) {
	out := SanitizeText("<script>alert(1)</script>hello")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "hello")
}

func TestValidate_ReportsEveryFieldIssue(t *testing.T) {
	band := model.Band{BandName: "", Formed: "67"}
	result := Validate(band)
	if !assert.GreaterOrEqual(t, len(result.Errors()), 2) {
		t.Logf("issues:\n%# v", pretty.Formatter(result.Issues))
	}
}
