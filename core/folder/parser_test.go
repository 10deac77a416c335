package folder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/crateindex/model"
)

func TestParse_YearAndName(t *testing.T) {
	p, err := Parse("1977 - Rumours", "", UnknownTrackCount)
	require.NoError(t, err)
	assert.Equal(t, "1977", p.Year)
	assert.Equal(t, "Rumours", p.AlbumName)
	assert.Equal(t, model.TypeAlbum, p.Type)
}

func TestParse_YearNameEdition(t *testing.T) {
	p, err := Parse("1979 - Tusk (Deluxe Edition)", "", UnknownTrackCount)
	require.NoError(t, err)
	assert.Equal(t, "1979", p.Year)
	assert.Equal(t, "Tusk", p.AlbumName)
	assert.Equal(t, "Deluxe Edition", p.Edition)
	assert.Equal(t, model.TypeAlbum, p.Type)
}

func TestParse_NoYear(t *testing.T) {
	p, err := Parse("Rumours", "", UnknownTrackCount)
	require.NoError(t, err)
	assert.Empty(t, p.Year)
	assert.Equal(t, "Rumours", p.AlbumName)
}

func TestParse_EmptyName(t *testing.T) {
	_, err := Parse("   ", "", UnknownTrackCount)
	require.Error(t, err)
	var coreErr *model.CoreError
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, model.CodeParseError, coreErr.Code)
}

func TestParse_KeywordDetection(t *testing.T) {
	cases := []struct {
		name string
		want model.AlbumType
	}{
		{"1980 - Live at Wembley", model.TypeLive},
		{"2001 - Greatest Hits", model.TypeCompilation},
		{"1999 - Summer EP", model.TypeEP},
		{"2005 - Radio Single", model.TypeSingle},
		{"1995 - Rehearsal Demos", model.TypeDemo},
		{"2010 - Instrumental Versions", model.TypeInstrumental},
		{"2012 - Band A vs Band B Split", model.TypeSplit},
	}
	for _, c := range cases {
		p, err := Parse(c.name, "", UnknownTrackCount)
		require.NoError(t, err)
		assert.Equalf(t, c.want, p.Type, "folder %q", c.name)
	}
}

func TestParse_ParentFolderOverride(t *testing.T) {
	p, err := Parse("1988 - Some Session", "Demo", UnknownTrackCount)
	require.NoError(t, err)
	assert.Equal(t, model.TypeDemo, p.Type)
}

func TestParse_TrackCountHeuristic(t *testing.T) {
	single, err := Parse("2003 - One Off", "", 1)
	require.NoError(t, err)
	assert.Equal(t, model.TypeSingle, single.Type)

	ep, err := Parse("2003 - Short Release", "", 5)
	require.NoError(t, err)
	assert.Equal(t, model.TypeEP, ep.Type)

	album, err := Parse("2003 - Full Length", "", 12)
	require.NoError(t, err)
	assert.Equal(t, model.TypeAlbum, album.Type)
}

func TestParse_EditionKeywordFallsBackToVerbatim(t *testing.T) {
	p, err := Parse("1990 - Odds and Ends (Bonus Tracks)", "", UnknownTrackCount)
	require.NoError(t, err)
	assert.Equal(t, "Bonus Tracks", p.Edition)
}

func TestFormat_RoundTrip(t *testing.T) {
	p := Parsed{Year: "1979", AlbumName: "Tusk", Edition: "Deluxe Edition", Type: model.TypeAlbum}
	assert.Equal(t, "1979 - Tusk (Deluxe Edition)", Format(p))

	reparsed, err := Parse(Format(p), "", UnknownTrackCount)
	require.NoError(t, err)
	assert.Equal(t, p.Year, reparsed.Year)
	assert.Equal(t, p.AlbumName, reparsed.AlbumName)
	assert.Equal(t, p.Edition, reparsed.Edition)
}

func TestDetectType_NoMatch(t *testing.T) {
	_, ok := DetectType("Rumours", "1977 - Rumours")
	assert.False(t, ok)
}
