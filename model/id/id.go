// Package id generates identifiers for scan runs and transport requests.
// Adapted from the teacher's model/id package: nanoid for random IDs,
// SHA3-256 for deterministic ones, retargeted at band paths instead of tags.
package id

import (
	"fmt"
	"math/big"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/crypto/sha3"

	"github.com/navidrome/crateindex/log"
)

// NewRandom returns a random 22-character base62 identifier, suitable for
// scan-run IDs and transport request/progress-event IDs.
func NewRandom() string {
	v, err := gonanoid.Generate("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz", 22)
	if err != nil {
		log.Error("could not generate random id", err)
	}
	return v
}

// NewHash generates a deterministic ID from input data using SHA3-256,
// truncated to 128 bits and base62-encoded to match NewRandom's format.
func NewHash(data ...string) string {
	hash := sha3.New256()
	for _, d := range data {
		hash.Write([]byte(d))
		hash.Write([]byte(string('\u200b')))
	}
	h := hash.Sum(nil)[:16]
	bi := big.NewInt(0)
	bi.SetBytes(h)
	return fmt.Sprintf("%022s", bi.Text(62))
}

// NewBandID derives a stable identifier for a band from its folder path,
// used as the SQLite query-cache primary key (never persisted to JSON; the
// JSON files are keyed by band name/path, not by this surrogate ID).
func NewBandID(absoluteBandPath string) string {
	return NewHash(strings.ToLower(absoluteBandPath))
}
