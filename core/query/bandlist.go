package query

import (
	"context"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/maruel/natural"
)

// BandListSort is one of the four sort keys get_band_list accepts.
type BandListSort string

const (
	SortByName       BandListSort = "name"
	SortByAlbums     BandListSort = "albums_count"
	SortByCompletion BandListSort = "completion"
	SortByUpdated    BandListSort = "last_updated"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// BandListOptions is get_band_list's parameter set (§4.9).
type BandListOptions struct {
	Page                int
	PageSize            int
	SortBy              BandListSort
	Order               SortOrder
	Search              string
	HasMetadata         *bool
	HasAnalysis         *bool
	FilterAlbumType     string
	FilterComplianceLvl string
	FilterStructureType string
	MinRating           *int
	MinAlbums           *int
	HasMissing          *bool
}

// BandListRow is one row of a get_band_list response.
type BandListRow struct {
	BandName      string  `json:"band_name"`
	FolderPath    string  `json:"folder_path"`
	AlbumsCount   int     `json:"albums_count"`
	LocalAlbums   int     `json:"local_albums"`
	MissingAlbums int     `json:"missing_albums"`
	HasMetadata   bool    `json:"has_metadata"`
	HasAnalysis   bool    `json:"has_analysis"`
	StructureType string  `json:"structure_type,omitempty"`
	Rating        *int    `json:"rating,omitempty"`
	Completion    float64 `json:"completion"`
}

// BandListResult is get_band_list's paginated response envelope.
type BandListResult struct {
	Bands      []BandListRow `json:"bands"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
}

const defaultPageSize = 25

// GetBandList runs the paginated, sorted and filtered band listing query.
func (c *Cache) GetBandList(ctx context.Context, opts BandListOptions) (BandListResult, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	base := sq.Select().From("band_index")
	base = applyBandFilters(base, opts)

	countSQL, countArgs, err := base.Columns("COUNT(*) AS n").ToSql()
	if err != nil {
		return BandListResult{}, fmt.Errorf("building band count query: %w", err)
	}
	countSQL, countParams := toDbxQuery(countSQL, countArgs)
	var total int
	if err := c.db.WithContext(ctx).NewQuery(countSQL).Bind(countParams).Row(&total); err != nil {
		return BandListResult{}, fmt.Errorf("counting bands: %w", err)
	}

	// Name sorting is done in Go with maruel/natural rather than in SQL:
	// ASCII ordering puts "Band 10" before "Band 2", which natural.Less
	// corrects for. Every matching row is fetched unpaginated so the
	// natural order can be computed over the full result set before slicing
	// out the requested page.
	naturalSort := opts.SortBy == "" || opts.SortBy == SortByName

	sel := base.Columns(
		"band_name", "folder_path", "albums_count", "local_albums", "missing_albums",
		"has_metadata", "has_analysis", "structure_type", "rating",
	)
	if naturalSort {
		sel = sel.OrderBy("band_name ASC")
	} else {
		sel = applyBandSort(sel, opts.SortBy, opts.Order)
		sel = sel.Limit(uint64(pageSize)).Offset(uint64((page - 1) * pageSize))
	}

	listSQL, listArgs, err := sel.ToSql()
	if err != nil {
		return BandListResult{}, fmt.Errorf("building band list query: %w", err)
	}
	listSQL, listParams := toDbxQuery(listSQL, listArgs)

	var raw []struct {
		BandName      string  `db:"band_name"`
		FolderPath    string  `db:"folder_path"`
		AlbumsCount   int     `db:"albums_count"`
		LocalAlbums   int     `db:"local_albums"`
		MissingAlbums int     `db:"missing_albums"`
		HasMetadata   bool    `db:"has_metadata"`
		HasAnalysis   bool    `db:"has_analysis"`
		StructureType string  `db:"structure_type"`
		Rating        *int    `db:"rating"`
	}
	if err := c.db.WithContext(ctx).NewQuery(listSQL).Bind(listParams).All(&raw); err != nil {
		return BandListResult{}, fmt.Errorf("listing bands: %w", err)
	}

	rows := make([]BandListRow, 0, len(raw))
	for _, r := range raw {
		row := BandListRow{
			BandName: r.BandName, FolderPath: r.FolderPath, AlbumsCount: r.AlbumsCount,
			LocalAlbums: r.LocalAlbums, MissingAlbums: r.MissingAlbums,
			HasMetadata: r.HasMetadata, HasAnalysis: r.HasAnalysis,
			StructureType: r.StructureType, Rating: r.Rating,
		}
		if r.AlbumsCount > 0 {
			row.Completion = float64(r.LocalAlbums) / float64(r.AlbumsCount) * 100
		} else {
			row.Completion = 100
		}
		rows = append(rows, row)
	}

	if naturalSort {
		desc := opts.Order == OrderDesc
		sort.SliceStable(rows, func(i, j int) bool {
			if desc {
				return natural.Less(rows[j].BandName, rows[i].BandName)
			}
			return natural.Less(rows[i].BandName, rows[j].BandName)
		})
		start := (page - 1) * pageSize
		if start > len(rows) {
			start = len(rows)
		}
		end := start + pageSize
		if end > len(rows) {
			end = len(rows)
		}
		rows = rows[start:end]
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	return BandListResult{Bands: rows, Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages}, nil
}

func applyBandFilters(b sq.SelectBuilder, opts BandListOptions) sq.SelectBuilder {
	if opts.Search != "" {
		b = b.Where(sq.Like{"band_name": "%" + opts.Search + "%"})
	}
	if opts.HasMetadata != nil {
		b = b.Where(sq.Eq{"has_metadata": *opts.HasMetadata})
	}
	if opts.HasAnalysis != nil {
		b = b.Where(sq.Eq{"has_analysis": *opts.HasAnalysis})
	}
	if opts.FilterStructureType != "" {
		b = b.Where(sq.Eq{"structure_type": opts.FilterStructureType})
	}
	if opts.MinRating != nil {
		b = b.Where(sq.GtOrEq{"rating": *opts.MinRating})
	}
	if opts.MinAlbums != nil {
		b = b.Where(sq.GtOrEq{"albums_count": *opts.MinAlbums})
	}
	if opts.HasMissing != nil {
		if *opts.HasMissing {
			b = b.Where(sq.Gt{"missing_albums": 0})
		} else {
			b = b.Where(sq.Eq{"missing_albums": 0})
		}
	}
	if opts.FilterAlbumType != "" || opts.FilterComplianceLvl != "" {
		sub := sq.Select("1").From("album_index a").
			Where("a.band_id = band_index.band_id")
		if opts.FilterAlbumType != "" {
			sub = sub.Where(sq.Eq{"a.type": opts.FilterAlbumType})
		}
		if opts.FilterComplianceLvl != "" {
			sub = sub.Where(sq.Eq{"a.compliance_level": opts.FilterComplianceLvl})
		}
		subSQL, subArgs, _ := sub.ToSql()
		b = b.Where(fmt.Sprintf("EXISTS (%s)", subSQL), subArgs...)
	}
	return b
}

func applyBandSort(b sq.SelectBuilder, sortBy BandListSort, order SortOrder) sq.SelectBuilder {
	dir := "ASC"
	if order == OrderDesc {
		dir = "DESC"
	}
	col := "band_name"
	switch sortBy {
	case SortByAlbums:
		col = "albums_count"
	case SortByCompletion:
		col = "(CAST(local_albums AS REAL) / NULLIF(albums_count, 0))"
	case SortByUpdated:
		col = "last_updated"
	}
	return b.OrderBy(fmt.Sprintf("%s %s, band_name ASC", col, dir))
}
