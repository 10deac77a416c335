package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/navidrome/crateindex/model"
)

func TestNormalize_StripsAccentsAndPunctuation(t *testing.T) {
	assert.Equal(t, Normalize("Déjà Vu!"), Normalize("Deja Vu"))
}

func TestNormalize_ConjunctionSubstitution(t *testing.T) {
	assert.Equal(t, Normalize("Rock & Roll"), Normalize("Rock and Roll"))
}

func TestNormalize_AbbreviationSubstitution(t *testing.T) {
	assert.Equal(t, Normalize("Part pt 2"), Normalize("Part part 2"))
}

func TestNormalize_StripsTypeSuffix(t *testing.T) {
	assert.Equal(t, Normalize("Rumours Live"), Normalize("Rumours"))
}

func TestReconcile_MatchesAndMerges(t *testing.T) {
	stored := model.Albums{
		{AlbumName: "Rumours", Year: "1977", Genres: []string{"Rock"}},
	}
	tc := 12
	physical := []Physical{
		{Album: model.Album{AlbumName: "Rumours", Type: model.TypeAlbum, FolderPath: "1977 - Rumours", TracksCount: &tc}, RawName: "1977 - Rumours"},
	}

	result := Reconcile(stored, physical, model.StructureDefault)
	assert.Len(t, result.Albums, 1)
	assert.Empty(t, result.AlbumsMissing)
	assert.Equal(t, "1977", result.Albums[0].Year)
	assert.Equal(t, []string{"Rock"}, result.Albums[0].Genres)
	assert.Equal(t, &tc, result.Albums[0].TracksCount)
	assert.False(t, result.Albums[0].Missing)
}

func TestReconcile_StoredWithoutPhysicalIsMissing(t *testing.T) {
	stored := model.Albums{{AlbumName: "Ghost Album", Year: "1990"}}
	result := Reconcile(stored, nil, model.StructureDefault)
	assert.Empty(t, result.Albums)
	assert.Len(t, result.AlbumsMissing, 1)
	assert.True(t, result.AlbumsMissing[0].Missing)
	assert.NotEmpty(t, result.AlbumsMissing[0].Compliance.RecommendedPath)
}

func TestReconcile_PhysicalWithoutStoredIsNew(t *testing.T) {
	physical := []Physical{
		{Album: model.Album{AlbumName: "New Album", Type: model.TypeAlbum, FolderPath: "2020 - New Album"}, RawName: "2020 - New Album"},
	}
	result := Reconcile(nil, physical, model.StructureDefault)
	assert.Len(t, result.Albums, 1)
	assert.False(t, result.Albums[0].Missing)
}

func TestReconcile_TieBreakByEditDistance(t *testing.T) {
	stored := model.Albums{{AlbumName: "Rumours"}}
	physical := []Physical{
		{Album: model.Album{AlbumName: "Rumours", FolderPath: "a"}, RawName: "Rumourz"},
		{Album: model.Album{AlbumName: "Rumours", FolderPath: "b"}, RawName: "Rumours"},
	}
	result := Reconcile(stored, physical, model.StructureDefault)
	if assert.Len(t, result.Albums, 1) {
		assert.Equal(t, "b", result.Albums[0].FolderPath)
	}
}
