package query

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// AlbumSearchOptions is advanced_search_albums's 13-parameter filter set
// (§4.9). Every set field is AND-composed.
type AlbumSearchOptions struct {
	BandNameContains    string
	AlbumNameContains   string
	TypeIn              []string
	EditionContains     string
	YearMin             string
	YearMax             string
	TracksMin           *int
	TracksMax           *int
	RatingMin           *int
	RatingMax           *int
	ComplianceLevelIn   []string
	MissingOnly         bool
	PresentOnly         bool
}

// AlbumSearchRow is one matched album, with its owning band for context.
type AlbumSearchRow struct {
	BandName         string `json:"band_name"`
	AlbumName        string `json:"album_name"`
	Year             string `json:"year,omitempty"`
	Type             string `json:"type"`
	Edition          string `json:"edition,omitempty"`
	TracksCount      *int   `json:"tracks_count,omitempty"`
	Rating           *int   `json:"rating,omitempty"`
	ComplianceLevel  string `json:"compliance_level,omitempty"`
	Missing          bool   `json:"missing"`
}

// AlbumSearchResult is advanced_search_albums's response envelope.
type AlbumSearchResult struct {
	Albums []AlbumSearchRow `json:"albums"`
	Total  int              `json:"total"`
}

// SearchAlbums runs the 13-parameter advanced album search, sorted stably by
// band_name, then album_name, then year (§4.9 "Sort stability is required").
func (c *Cache) SearchAlbums(ctx context.Context, opts AlbumSearchOptions) (AlbumSearchResult, error) {
	base := sq.Select().From("album_index")
	base = applyAlbumSearchFilters(base, opts)

	countSQL, countArgs, err := base.Columns("COUNT(*) AS n").ToSql()
	if err != nil {
		return AlbumSearchResult{}, fmt.Errorf("building album search count query: %w", err)
	}
	countSQL, countParams := toDbxQuery(countSQL, countArgs)
	var total int
	if err := c.db.WithContext(ctx).NewQuery(countSQL).Bind(countParams).Row(&total); err != nil {
		return AlbumSearchResult{}, fmt.Errorf("counting album search matches: %w", err)
	}

	sel := base.Columns(
		"band_name", "album_name", "year", "type", "edition",
		"tracks_count", "rating", "compliance_level", "missing",
	).OrderBy("band_name ASC", "album_name ASC", "year ASC")

	listSQL, listArgs, err := sel.ToSql()
	if err != nil {
		return AlbumSearchResult{}, fmt.Errorf("building album search query: %w", err)
	}
	listSQL, listParams := toDbxQuery(listSQL, listArgs)

	var raw []struct {
		BandName        string `db:"band_name"`
		AlbumName       string `db:"album_name"`
		Year            string `db:"year"`
		Type            string `db:"type"`
		Edition         string `db:"edition"`
		TracksCount     *int   `db:"tracks_count"`
		Rating          *int   `db:"rating"`
		ComplianceLevel string `db:"compliance_level"`
		Missing         bool   `db:"missing"`
	}
	if err := c.db.WithContext(ctx).NewQuery(listSQL).Bind(listParams).All(&raw); err != nil {
		return AlbumSearchResult{}, fmt.Errorf("searching albums: %w", err)
	}

	rows := make([]AlbumSearchRow, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, AlbumSearchRow{
			BandName: r.BandName, AlbumName: r.AlbumName, Year: r.Year, Type: r.Type,
			Edition: r.Edition, TracksCount: r.TracksCount, Rating: r.Rating,
			ComplianceLevel: r.ComplianceLevel, Missing: r.Missing,
		})
	}
	return AlbumSearchResult{Albums: rows, Total: total}, nil
}

func applyAlbumSearchFilters(b sq.SelectBuilder, opts AlbumSearchOptions) sq.SelectBuilder {
	if opts.BandNameContains != "" {
		b = b.Where(sq.Like{"band_name": "%" + opts.BandNameContains + "%"})
	}
	if opts.AlbumNameContains != "" {
		b = b.Where(sq.Like{"album_name": "%" + opts.AlbumNameContains + "%"})
	}
	if len(opts.TypeIn) > 0 {
		b = b.Where(sq.Eq{"type": opts.TypeIn})
	}
	if opts.EditionContains != "" {
		b = b.Where(sq.Like{"edition": "%" + opts.EditionContains + "%"})
	}
	if opts.YearMin != "" {
		b = b.Where(sq.GtOrEq{"year": opts.YearMin})
	}
	if opts.YearMax != "" {
		b = b.Where(sq.LtOrEq{"year": opts.YearMax})
	}
	if opts.TracksMin != nil {
		b = b.Where(sq.GtOrEq{"tracks_count": *opts.TracksMin})
	}
	if opts.TracksMax != nil {
		b = b.Where(sq.LtOrEq{"tracks_count": *opts.TracksMax})
	}
	if opts.RatingMin != nil {
		b = b.Where(sq.GtOrEq{"rating": *opts.RatingMin})
	}
	if opts.RatingMax != nil {
		b = b.Where(sq.LtOrEq{"rating": *opts.RatingMax})
	}
	if len(opts.ComplianceLevelIn) > 0 {
		b = b.Where(sq.Eq{"compliance_level": opts.ComplianceLevelIn})
	}
	if opts.MissingOnly {
		b = b.Where(sq.Eq{"missing": true})
	}
	if opts.PresentOnly {
		b = b.Where(sq.Eq{"missing": false})
	}
	return b
}
