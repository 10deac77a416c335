package scanner

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/RaveNoX/go-jsoncommentstrip"
	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// LoadExcludePatterns reads EXCLUDE_FILE (§6.5): a JSONC document (comments
// allowed, stripped before parsing) holding a plain array of gitignore-style
// glob patterns, e.g. ["*.bak", "_Incoming/**", "# nothing under here"].
// Each pattern is validated with doublestar before being compiled into the
// gitignore matcher DiscoverBands consults, so a malformed glob fails fast
// at load time rather than silently matching nothing at scan time.
func LoadExcludePatterns(path string) (*ignore.GitIgnore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening exclude file %q: %w", path, err)
	}
	defer f.Close()

	stripped, err := io.ReadAll(jsoncommentstrip.Strip(f))
	if err != nil {
		return nil, fmt.Errorf("stripping comments from exclude file %q: %w", path, err)
	}

	var patterns []string
	if err := json.Unmarshal(stripped, &patterns); err != nil {
		return nil, fmt.Errorf("parsing exclude file %q: %w", path, err)
	}

	for _, p := range patterns {
		if _, err := doublestar.Match(p, "probe"); err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q in exclude file %q: %w", p, path, err)
		}
	}

	return ignore.CompileIgnoreLines(patterns...), nil
}
