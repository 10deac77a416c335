// Package query implements the Query Engine (spec §4.9) against a derived,
// in-memory SQLite projection of the Collection Index and per-band albums.
// The JSON files under the music root remain the sole source of truth; this
// cache is rebuilt from scratch after every scan and is safe to discard at
// any time.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pocketbase/dbx"

	"github.com/navidrome/crateindex/model"
	"github.com/navidrome/crateindex/model/id"
)

const schema = `
CREATE TABLE band_index (
	band_id TEXT PRIMARY KEY,
	band_name TEXT NOT NULL,
	folder_path TEXT NOT NULL,
	albums_count INTEGER NOT NULL,
	local_albums INTEGER NOT NULL,
	missing_albums INTEGER NOT NULL,
	has_metadata INTEGER NOT NULL,
	has_analysis INTEGER NOT NULL,
	structure_type TEXT,
	rating INTEGER,
	last_updated TEXT,
	last_scanned TEXT
);
CREATE TABLE album_index (
	band_id TEXT NOT NULL,
	band_name TEXT NOT NULL,
	folder_path TEXT NOT NULL,
	album_name TEXT NOT NULL,
	year TEXT,
	type TEXT NOT NULL,
	edition TEXT,
	tracks_count INTEGER,
	rating INTEGER,
	compliance_level TEXT,
	missing INTEGER NOT NULL
);
CREATE INDEX idx_band_index_name ON band_index(band_name);
CREATE INDEX idx_album_index_band ON album_index(band_id);
`

// Cache is the rebuildable SQLite projection backing Query Engine reads.
type Cache struct {
	sqlDB *sql.DB
	db    *dbx.DB
}

// dbxParams is dbx's named-bind parameter map.
type dbxParams = dbx.Params

// toDbxQuery rewrites a squirrel-built SQL string's positional `?`
// placeholders into dbx's `{:pN}` named-bind form, since dbx has no
// positional bind mode of its own. Returns the rewritten SQL plus a Params
// map keyed "p1".."pN" in occurrence order.
func toDbxQuery(sqlStr string, args []interface{}) (string, dbxParams) {
	var b strings.Builder
	params := make(dbxParams, len(args))
	n := 0
	for i := 0; i < len(sqlStr); i++ {
		if sqlStr[i] == '?' {
			n++
			fmt.Fprintf(&b, "{:p%d}", n)
			if n-1 < len(args) {
				params[fmt.Sprintf("p%d", n)] = args[n-1]
			}
			continue
		}
		b.WriteByte(sqlStr[i])
	}
	return b.String(), params
}

// Open creates a fresh in-memory SQLite database and applies the schema.
func Open() (*Cache, error) {
	sqlDB, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("opening query cache: %w", err)
	}
	sqlDB.SetMaxOpenConns(1) // single in-memory connection; avoid losing the DB to a second handle

	db := dbx.NewFromDB(sqlDB, "sqlite3")
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("applying query cache schema: %w", err)
	}
	return &Cache{sqlDB: sqlDB, db: db}, nil
}

// Close releases the underlying SQLite connection.
func (c *Cache) Close() error {
	return c.sqlDB.Close()
}

// Rebuild truncates and repopulates both tables from the current collection
// index entries and their full band records. Called once after every scan.
// root is the music root path, used to derive each band's stable band_id
// (model/id.NewBandID) the same way core/scanner discovers band paths.
func (c *Cache) Rebuild(ctx context.Context, root string, index model.CollectionIndex, bands []model.Band) error {
	tx, err := c.db.WithContext(ctx).Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.NewQuery("DELETE FROM band_index").Execute(); err != nil {
		return err
	}
	if _, err := tx.NewQuery("DELETE FROM album_index").Execute(); err != nil {
		return err
	}

	byName := make(map[string]model.Band, len(bands))
	for _, b := range bands {
		byName[b.BandName] = b
	}

	for _, entry := range index.Bands {
		b, ok := byName[entry.BandName]
		bandID := id.NewBandID(filepath.Join(root, entry.FolderPath))

		var rating *int
		var structureType string
		if ok && b.FolderStructure != nil {
			structureType = string(b.FolderStructure.StructureType)
		}
		if ok && b.Analyze != nil {
			rating = b.Analyze.Rate
		}

		_, err := tx.NewQuery(`INSERT INTO band_index
			(band_id, band_name, folder_path, albums_count, local_albums, missing_albums, has_metadata, has_analysis, structure_type, rating, last_updated, last_scanned)
			VALUES ({:band_id}, {:band_name}, {:folder_path}, {:albums_count}, {:local_albums}, {:missing_albums}, {:has_metadata}, {:has_analysis}, {:structure_type}, {:rating}, {:last_updated}, {:last_scanned})`).
			Bind(dbx.Params{
				"band_id": bandID, "band_name": entry.BandName, "folder_path": entry.FolderPath,
				"albums_count": entry.AlbumsCount, "local_albums": entry.LocalAlbums,
				"missing_albums": entry.MissingAlbums, "has_metadata": entry.HasMetadata,
				"has_analysis": entry.HasAnalysis, "structure_type": structureType,
				"rating": rating, "last_updated": entry.LastUpdated, "last_scanned": entry.LastScanned,
			}).Execute()
		if err != nil {
			return fmt.Errorf("inserting band_index row: %w", err)
		}

		if !ok {
			continue
		}
		if err := insertAlbums(tx, bandID, b, b.Albums, false, entry.FolderPath); err != nil {
			return err
		}
		if err := insertAlbums(tx, bandID, b, b.AlbumsMissing, true, entry.FolderPath); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertAlbums(tx *dbx.Tx, bandID string, b model.Band, albums model.Albums, missing bool, bandFolder string) error {
	for _, a := range albums {
		var rating *int
		if b.Analyze != nil {
			for _, aa := range b.Analyze.Albums {
				if aa.AlbumName == a.AlbumName {
					rating = aa.Rate
					break
				}
			}
		}
		var level string
		if a.Compliance != nil {
			level = string(a.Compliance.Level)
		}
		_, err := tx.NewQuery(`INSERT INTO album_index
			(band_id, band_name, folder_path, album_name, year, type, edition, tracks_count, rating, compliance_level, missing)
			VALUES ({:band_id}, {:band_name}, {:folder_path}, {:album_name}, {:year}, {:type}, {:edition}, {:tracks_count}, {:rating}, {:compliance_level}, {:missing})`).
			Bind(dbx.Params{
				"band_id": bandID, "band_name": b.BandName, "folder_path": bandFolder,
				"album_name": a.AlbumName, "year": a.Year, "type": string(a.Type),
				"edition": a.Edition, "tracks_count": a.TracksCount, "rating": rating,
				"compliance_level": level, "missing": missing,
			}).Execute()
		if err != nil {
			return fmt.Errorf("inserting album_index row: %w", err)
		}
	}
	return nil
}
