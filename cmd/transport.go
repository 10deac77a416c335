package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/navidrome/crateindex/core/container"
	"github.com/navidrome/crateindex/core/query"
	"github.com/navidrome/crateindex/model"
)

// dispatch decodes one RequestEnvelope's Args against the op-specific wire
// shape and calls the matching Container method (§6.2). Returning an error
// here is rendered onto the response envelope's Error field by the caller;
// dispatch itself never writes to the transport.
func dispatch(ctx context.Context, ct *container.Container, op string, rawArgs json.RawMessage) (any, error) {
	switch op {
	case "scan_music_folders":
		var a scanArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return ct.ScanMusicFolders(ctx, a.ForceRescan, a.ForceFullScan)

	case "get_band_list":
		var a bandListArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return ct.GetBandList(ctx, a.toOptions())

	case "save_band_metadata":
		var a saveBandMetadataArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return ct.SaveBandMetadata(ctx, a.BandName, a.Metadata, a.preserveAnalyze())

	case "save_band_analyze":
		var a saveBandAnalyzeArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return ct.SaveBandAnalyze(ctx, a.BandName, a.Analyze, a.AnalyzeMissingAlbums)

	case "save_collection_insight":
		var a model.CollectionInsight
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return ct.SaveCollectionInsight(ctx, a)

	case "validate_band_metadata":
		var a validateArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return ct.ValidateBandMetadata(ctx, a.BandName, a.Metadata)

	case "advanced_search_albums":
		var a advancedSearchArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return ct.AdvancedSearchAlbums(ctx, a.toOptions())

	case "analyze_collection_insights":
		return ct.AnalyzeCollectionInsights(ctx)

	default:
		return nil, model.NewParseError(fmt.Sprintf("unknown operation %q", op), nil)
	}
}

func decodeArgs(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return model.NewParseError("decoding operation arguments", err)
	}
	return nil
}

type scanArgs struct {
	ForceRescan   bool `json:"force_rescan"`
	ForceFullScan bool `json:"force_full_scan"`
}

type bandListArgs struct {
	Page                int     `json:"page"`
	PageSize            int     `json:"page_size"`
	SortBy              string  `json:"sort_by"`
	Order               string  `json:"order"`
	Search              string  `json:"search"`
	HasMetadata         *bool   `json:"has_metadata"`
	HasAnalysis         *bool   `json:"has_analysis"`
	FilterAlbumType     string  `json:"filter_album_type"`
	FilterComplianceLvl string  `json:"filter_compliance_level"`
	FilterStructureType string  `json:"filter_structure_type"`
	MinRating           *int    `json:"min_rating"`
	MinAlbums           *int    `json:"min_albums"`
	HasMissing          *bool   `json:"has_missing"`
}

func (a bandListArgs) toOptions() query.BandListOptions {
	return query.BandListOptions{
		Page: a.Page, PageSize: a.PageSize,
		SortBy: query.BandListSort(a.SortBy), Order: query.SortOrder(a.Order),
		Search: a.Search, HasMetadata: a.HasMetadata, HasAnalysis: a.HasAnalysis,
		FilterAlbumType: a.FilterAlbumType, FilterComplianceLvl: a.FilterComplianceLvl,
		FilterStructureType: a.FilterStructureType, MinRating: a.MinRating,
		MinAlbums: a.MinAlbums, HasMissing: a.HasMissing,
	}
}

type saveBandMetadataArgs struct {
	BandName string     `json:"band_name"`
	Metadata model.Band `json:"metadata"`
	// PreserveAnalyze is a *bool, not bool: §6.2 defaults preserve_analyze to
	// true, and a plain bool can't distinguish "omitted" from "false".
	PreserveAnalyze *bool `json:"preserve_analyze"`
}

// preserveAnalyze applies §6.2's documented default: true unless the caller
// explicitly sets preserve_analyze=false.
func (a saveBandMetadataArgs) preserveAnalyze() bool {
	if a.PreserveAnalyze == nil {
		return true
	}
	return *a.PreserveAnalyze
}

type saveBandAnalyzeArgs struct {
	BandName             string             `json:"band_name"`
	Analyze              model.BandAnalysis `json:"analyze"`
	AnalyzeMissingAlbums bool               `json:"analyze_missing_albums"`
}

type validateArgs struct {
	BandName string     `json:"band_name"`
	Metadata model.Band `json:"metadata"`
}

type advancedSearchArgs struct {
	BandNameContains  string   `json:"band_name_contains"`
	AlbumNameContains string   `json:"album_name_contains"`
	TypeIn            []string `json:"type_in"`
	EditionContains   string   `json:"edition_contains"`
	YearMin           string   `json:"year_min"`
	YearMax           string   `json:"year_max"`
	TracksMin         *int     `json:"tracks_min"`
	TracksMax         *int     `json:"tracks_max"`
	RatingMin         *int     `json:"rating_min"`
	RatingMax         *int     `json:"rating_max"`
	ComplianceLevelIn []string `json:"compliance_level_in"`
	MissingOnly       bool     `json:"missing_only"`
	PresentOnly       bool     `json:"present_only"`
}

func (a advancedSearchArgs) toOptions() query.AlbumSearchOptions {
	return query.AlbumSearchOptions{
		BandNameContains: a.BandNameContains, AlbumNameContains: a.AlbumNameContains,
		TypeIn: a.TypeIn, EditionContains: a.EditionContains,
		YearMin: a.YearMin, YearMax: a.YearMax,
		TracksMin: a.TracksMin, TracksMax: a.TracksMax,
		RatingMin: a.RatingMin, RatingMax: a.RatingMax,
		ComplianceLevelIn: a.ComplianceLevelIn,
		MissingOnly:       a.MissingOnly, PresentOnly: a.PresentOnly,
	}
}
