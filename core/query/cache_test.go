package query

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/navidrome/crateindex/model"
)

func seedCache() (*Cache, func()) {
	c, err := Open()
	Expect(err).ToNot(HaveOccurred())

	rate := 8
	pinkFloyd := model.Band{
		BandName: "Pink Floyd",
		Analyze:  &model.BandAnalysis{Albums: []model.AlbumAnalysis{{AlbumName: "Delicate Sound of Thunder", Rate: &rate}}},
		Albums: model.Albums{
			{AlbumName: "The Dark Side of the Moon", Year: "1973", Type: model.TypeAlbum, Compliance: &model.AlbumCompliance{Level: model.ComplianceExcellent}},
			{AlbumName: "Delicate Sound of Thunder", Year: "1988", Type: model.TypeLive, Compliance: &model.AlbumCompliance{Level: model.ComplianceGood}},
		},
	}
	tracks := 3
	ledZeppelin := model.Band{
		BandName:      "Led Zeppelin",
		AlbumsMissing: model.Albums{{AlbumName: "Coda", Year: "1982", Type: model.TypeAlbum}},
		Albums: model.Albums{
			{AlbumName: "IV", Year: "1971", Type: model.TypeAlbum, TracksCount: &tracks, Compliance: &model.AlbumCompliance{Level: model.ComplianceFair}},
		},
	}

	index := model.CollectionIndex{Bands: []model.BandIndexEntry{
		{BandName: "Pink Floyd", FolderPath: "Pink Floyd", AlbumsCount: 2, LocalAlbums: 2, HasAnalysis: true},
		{BandName: "Led Zeppelin", FolderPath: "Led Zeppelin", AlbumsCount: 2, LocalAlbums: 1, MissingAlbums: 1},
	}}
	Expect(c.Rebuild(context.Background(), "/music", index, []model.Band{pinkFloyd, ledZeppelin})).To(Succeed())
	return c, func() { _ = c.Close() }
}

var _ = Describe("Cache", func() {
	var c *Cache
	var cleanup func()

	BeforeEach(func() {
		c, cleanup = seedCache()
	})
	AfterEach(func() { cleanup() })

	Describe("GetBandList", func() {
		It("sorts by name ascending", func() {
			res, err := c.GetBandList(context.Background(), BandListOptions{SortBy: SortByName, Order: OrderAsc})
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Bands).To(HaveLen(2))
			Expect(res.Bands[0].BandName).To(Equal("Led Zeppelin"))
			Expect(res.Bands[1].BandName).To(Equal("Pink Floyd"))
		})

		It("filters by has_missing", func() {
			hasMissing := true
			res, err := c.GetBandList(context.Background(), BandListOptions{HasMissing: &hasMissing})
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Bands).To(HaveLen(1))
			Expect(res.Bands[0].BandName).To(Equal("Led Zeppelin"))
		})

		It("filters by search substring and reports completion", func() {
			res, err := c.GetBandList(context.Background(), BandListOptions{Search: "floyd"})
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Bands).To(HaveLen(1))
			Expect(res.Bands[0].Completion).To(Equal(100.0))
		})
	})

	Describe("SearchAlbums", func() {
		// Scenario 6 (§8): Live albums from the 1980s rated 7+ should return
		// exactly "Delicate Sound of Thunder".
		It("matches the scenario-six advanced search", func() {
			ratingMin := 7
			res, err := c.SearchAlbums(context.Background(), AlbumSearchOptions{
				TypeIn: []string{"Live"}, YearMin: "1980", YearMax: "1989", RatingMin: &ratingMin,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Albums).To(HaveLen(1))
			Expect(res.Albums[0].AlbumName).To(Equal("Delicate Sound of Thunder"))
			Expect(res.Albums[0].BandName).To(Equal("Pink Floyd"))
		})

		It("filters missing-only albums", func() {
			res, err := c.SearchAlbums(context.Background(), AlbumSearchOptions{MissingOnly: true})
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Albums).To(HaveLen(1))
			Expect(res.Albums[0].AlbumName).To(Equal("Coda"))
			Expect(res.Albums[0].Missing).To(BeTrue())
		})
	})
})

func TestQuery(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Query Cache Suite")
}
