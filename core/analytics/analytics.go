// Package analytics computes collection-wide statistics over scanned bands:
// type distribution, type diversity, compliance distribution, a maturity
// score, and a health score (spec §4.10). Grounded on the weighted,
// normalized-component scoring idiom of
// other_examples/6507f772_standardbeagle-lci__internal-git-frequency_types.go.go's
// CalculateVolatilityScore (math.Min-clamped per-factor normalization summed
// with fixed weights), retargeted from commit-volatility factors onto
// collection-maturity factors.
package analytics

import (
	"math"
	"sort"

	"github.com/navidrome/crateindex/model"
)

// Analyze computes the full CollectionAnalytics over every scanned band and
// the current collection index (for has_metadata/has_analysis/last_scanned
// bookkeeping that isn't carried on Band itself).
func Analyze(index model.CollectionIndex, bands []model.Band) model.CollectionAnalytics {
	c := model.CollectionAnalytics{
		TypeDistribution:       typeDistribution(bands),
		Diversity:              diversity(bands),
		ComplianceDistribution: complianceDistribution(bands),
	}

	comp := maturityComponents(index, bands, c.Diversity)
	c.MaturityComponents = comp
	c.MaturityScore = 0.30*comp.Size + 0.25*comp.Diversity + 0.20*comp.Structure + 0.15*comp.Metadata + 0.10*comp.Completeness
	c.MaturityLevel = model.LevelForMaturity(c.MaturityScore)
	c.Health = healthScore(comp)
	return c
}

// typeDistribution implements §4.10 "Type distribution": per-type total
// count, per-band presence count, percentage of all local albums, and a
// decade-bucketed matrix. Missing albums are not counted.
func typeDistribution(bands []model.Band) model.TypeDistribution {
	totals := map[model.AlbumType]int{}
	bandsWith := map[model.AlbumType]map[string]bool{}
	byDecade := map[model.AlbumType]map[string]int{}
	totalAlbums := 0

	for _, b := range bands {
		seenInBand := map[model.AlbumType]bool{}
		for _, a := range b.Albums {
			totalAlbums++
			totals[a.Type]++
			seenInBand[a.Type] = true
			if d := decadeOf(a.Year); d != "" {
				if byDecade[a.Type] == nil {
					byDecade[a.Type] = map[string]int{}
				}
				byDecade[a.Type][d]++
			}
		}
		for t := range seenInBand {
			if bandsWith[t] == nil {
				bandsWith[t] = map[string]bool{}
			}
			bandsWith[t][b.BandName] = true
		}
	}

	var types []model.TypeCount
	for _, t := range model.AllAlbumTypes {
		pct := 0.0
		if totalAlbums > 0 {
			pct = float64(totals[t]) / float64(totalAlbums) * 100
		}
		types = append(types, model.TypeCount{
			Type: t, TotalAlbums: totals[t], BandsWithType: len(bandsWith[t]),
			Percentage: pct, ByDecade: byDecade[t],
		})
	}
	return model.TypeDistribution{Types: types, TotalAlbums: totalAlbums}
}

// decadeOf reduces a 4-digit year string to its decade bucket, e.g. "1973"
// -> "1970s" (§4.10 "decade = first three digits of year + '0s'").
func decadeOf(year string) string {
	if len(year) != 4 {
		return ""
	}
	return year[:3] + "0s"
}

func allAlbums(b model.Band) model.Albums {
	out := make(model.Albums, 0, len(b.Albums)+len(b.AlbumsMissing))
	out = append(out, b.Albums...)
	out = append(out, b.AlbumsMissing...)
	return out
}

// diversity implements §4.10 "Diversity": mean distinct types per band, the
// count of bands carrying 4+ distinct types, and a per-type list of bands
// that don't have that type at all (a "missing-opportunity" list).
func diversity(bands []model.Band) model.DiversityStats {
	if len(bands) == 0 {
		return model.DiversityStats{}
	}

	totalTypes := 0
	fourPlus := 0
	hasType := map[model.AlbumType]map[string]bool{}
	for _, t := range model.AllAlbumTypes {
		hasType[t] = map[string]bool{}
	}

	for _, b := range bands {
		distinct := map[model.AlbumType]bool{}
		for _, a := range allAlbums(b) {
			distinct[a.Type] = true
		}
		totalTypes += len(distinct)
		if len(distinct) >= 4 {
			fourPlus++
		}
		for t := range distinct {
			hasType[t][b.BandName] = true
		}
	}

	missing := map[model.AlbumType][]string{}
	for _, t := range model.AllAlbumTypes {
		var without []string
		for _, b := range bands {
			if !hasType[t][b.BandName] {
				without = append(without, b.BandName)
			}
		}
		if len(without) > 0 {
			sort.Strings(without)
			missing[t] = without
		}
	}

	return model.DiversityStats{
		MeanTypesPerBand:     float64(totalTypes) / float64(len(bands)),
		BandsWithFourPlus:    fourPlus,
		MissingOpportunities: missing,
	}
}

// complianceDistribution implements §4.10 "Compliance distribution": a count
// per AlbumCompliance.Level across every local album, plus mean/median/
// stdev of each band's FolderStructure.ConsistencyScore.
func complianceDistribution(bands []model.Band) model.ComplianceDistribution {
	counts := map[model.ComplianceLevel]int{}
	var scores []float64
	for _, b := range bands {
		for _, a := range b.Albums {
			if a.Compliance != nil {
				counts[a.Compliance.Level]++
			}
		}
		if b.FolderStructure != nil {
			scores = append(scores, float64(b.FolderStructure.ConsistencyScore))
		}
	}

	mean, median, stdev := 0.0, 0.0, 0.0
	if len(scores) > 0 {
		mean = meanOf(scores)
		median = medianOf(scores)
		stdev = stdevOf(scores, mean)
	}
	return model.ComplianceDistribution{
		CountByLevel: counts, MeanConsistencyScore: mean,
		MedianConsistencyScore: median, StdevConsistencyScore: stdev,
	}
}

// maturityComponents computes the five normalized 0..100 inputs to
// MaturityScore (§4.10), each via its documented piecewise-linear function.
func maturityComponents(index model.CollectionIndex, bands []model.Band, div model.DiversityStats) model.MaturityComponents {
	nBands := len(bands)

	size := 0.0
	if nBands > 0 {
		size = math.Min(math.Log10(float64(nBands))/math.Log10(500)*100, 100)
	}

	diversityScore := math.Min(div.MeanTypesPerBand*12.5, 100)

	structureScore := 0.0
	if n := countWithStructure(bands); n > 0 {
		sum := 0.0
		for _, b := range bands {
			if b.FolderStructure != nil {
				sum += float64(b.FolderStructure.StructureScore)
			}
		}
		structureScore = sum / float64(n)
	}

	metadataScore := 0.0
	if len(index.Bands) > 0 {
		withMeta, withAnalysis := 0, 0
		for _, e := range index.Bands {
			if e.HasMetadata {
				withMeta++
			}
			if e.HasAnalysis {
				withAnalysis++
			}
		}
		metaFrac := float64(withMeta) / float64(len(index.Bands))
		analysisFrac := float64(withAnalysis) / float64(len(index.Bands))
		metadataScore = (metaFrac + analysisFrac) / 2 * 100
	}

	completenessScore := 100.0
	if index.Stats.TotalAlbums > 0 {
		local := index.Stats.TotalAlbums - index.Stats.TotalMissingAlbums
		completenessScore = float64(local) / float64(index.Stats.TotalAlbums) * 100
	}

	return model.MaturityComponents{
		Size: size, Diversity: diversityScore, Structure: structureScore,
		Metadata: metadataScore, Completeness: completenessScore,
	}
}

func countWithStructure(bands []model.Band) int {
	n := 0
	for _, b := range bands {
		if b.FolderStructure != nil {
			n++
		}
	}
	return n
}

// healthScore implements §4.10 "Health score": the arithmetic mean of
// structure, completeness, diversity, and metadata-quality sub-scores
// (the same four components MaturityScore uses, minus size).
func healthScore(comp model.MaturityComponents) model.HealthScore {
	score := (comp.Structure + comp.Completeness + comp.Diversity + comp.Metadata) / 4
	return model.HealthScore{
		Score: score, Structure: comp.Structure, Completeness: comp.Completeness,
		Diversity: comp.Diversity, Metadata: comp.Metadata,
	}
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func stdevOf(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
