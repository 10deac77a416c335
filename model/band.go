package model

import "time"

// CurrentSchemaVersion is the schema_version written by this build. See §9
// for the migration contract from the pre-2 single-array layout.
const CurrentSchemaVersion = 2

// Band is one artist's discography rooted at a single band folder.
type Band struct {
	BandName        string          `json:"band_name"`
	Formed          string          `json:"formed,omitempty"`
	Genres          []string        `json:"genres,omitempty"`
	Origin          string          `json:"origin,omitempty"`
	Members         []string        `json:"members,omitempty"`
	Description     string          `json:"description,omitempty"`
	Albums          Albums          `json:"albums"`
	AlbumsMissing   Albums          `json:"albums_missing"`
	Analyze         *BandAnalysis   `json:"analyze,omitempty"`
	FolderStructure *FolderStructure `json:"folder_structure,omitempty"`
	LastUpdated     time.Time       `json:"last_updated"`
	SchemaVersion   int             `json:"schema_version"`
	Gallery         []string        `json:"gallery,omitempty"`
}

// AlbumsCount is the derived total local+missing album count (§3 invariant).
func (b Band) AlbumsCount() int { return len(b.Albums) + len(b.AlbumsMissing) }

// LocalAlbumsCount is the derived count of local (on-disk) albums.
func (b Band) LocalAlbumsCount() int { return len(b.Albums) }

// MissingAlbumsCount is the derived count of known-but-absent albums.
func (b Band) MissingAlbumsCount() int { return len(b.AlbumsMissing) }

// HasAnalysis reports whether an analyze block is present.
func (b Band) HasAnalysis() bool { return b.Analyze != nil }

// HasFolderStructure reports whether a structure analysis has been recorded.
func (b Band) HasFolderStructure() bool { return b.FolderStructure != nil }
