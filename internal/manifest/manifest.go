// Package manifest loads and validates the compile-command manifest
// (compile_commands.json-style) described in spec.md §6, and builds the
// canonical-path -> entry map the on-save reindex path needs.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/jsonschema-go/jsonschema"

	goclangderrors "github.com/lc168/goclangd/internal/errors"
	"github.com/lc168/goclangd/internal/types"
)

// entrySchema constrains a decoded manifest entry to the shape spec.md §6
// promises: a directory, a file, and either an arguments vector or a
// command string. This catches a malformed manifest file as a
// ManifestError at load time instead of a nil-slice surprise deep in the
// Worker.
var entrySchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"directory", "file"},
	Properties: map[string]*jsonschema.Schema{
		"directory": {Type: "string"},
		"file":      {Type: "string"},
		"arguments": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		"command":   {Type: "string"},
	},
	AnyOf: []*jsonschema.Schema{
		{Required: []string{"arguments"}},
		{Required: []string{"command"}},
	},
}

var resolvedEntrySchema = mustResolve(entrySchema)

func mustResolve(s *jsonschema.Schema) *jsonschema.Resolved {
	r, err := s.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("manifest: invalid built-in schema: %v", err))
	}
	return r
}

// Manifest is the parsed compile-command list plus a lookup map keyed by
// canonical source path, mirroring the prototype's load_commands_map.
type Manifest struct {
	Entries []types.ManifestEntry
	byPath  map[string]types.ManifestEntry
}

// Load reads and validates path (typically <root>/compile_commands.json).
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goclangderrors.NewManifestError("read", err)
	}

	var generic []map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, goclangderrors.NewManifestError("parse", err)
	}
	for i, entry := range generic {
		if err := resolvedEntrySchema.Validate(entry); err != nil {
			return nil, goclangderrors.NewManifestError(fmt.Sprintf("validate[%d]", i), err)
		}
	}

	var entries []types.ManifestEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, goclangderrors.NewManifestError("decode", err)
	}

	m := &Manifest{Entries: entries, byPath: make(map[string]types.ManifestEntry, len(entries))}
	for _, e := range entries {
		canon, err := canonicalPath(e.Directory, e.File)
		if err != nil {
			continue
		}
		m.byPath[canon] = e
	}
	return m, nil
}

// Lookup returns the manifest entry for a canonical source path, used by
// the on-save reindex path to recover compile flags for a saved file.
func (m *Manifest) Lookup(canonicalPath string) (types.ManifestEntry, bool) {
	e, ok := m.byPath[canonicalPath]
	return e, ok
}

// CanonicalFiles returns every canonical source path the manifest knows
// about, used to seed the fsnotify fallback watcher's watch set.
func (m *Manifest) CanonicalFiles() []string {
	files := make([]string, 0, len(m.byPath))
	for path := range m.byPath {
		files = append(files, path)
	}
	return files
}

// canonicalPath resolves a manifest entry's (directory, file) pair to an
// absolute, symlink-resolved path, matching spec.md §3's "canonical
// absolute path, symlinks resolved" for Ref.FilePath.
func canonicalPath(directory, file string) (string, error) {
	joined := file
	if !filepath.IsAbs(file) {
		joined = filepath.Join(directory, file)
	}
	return filepath.EvalSymlinks(joined)
}

// RawArgs resolves a manifest entry's raw argument vector from whichever
// of Arguments/Command was populated, per spec.md §4.3 step 2.
func RawArgs(e types.ManifestEntry) []string {
	if len(e.Arguments) > 0 {
		return e.Arguments
	}
	if e.Command != "" {
		return shlexSplit(e.Command)
	}
	return nil
}

// shlexSplit tokenizes a shell-quoted compile command the way Python's
// shlex.split does for the common case: whitespace-separated tokens with
// single/double-quote grouping and backslash escapes. No pack repo carries
// a shell-tokenizing dependency (see DESIGN.md), so this narrow, ungrounded
// piece of syntax stays on the standard library rather than pulling in an
// unrelated third-party package for one function.
func shlexSplit(s string) []string {
	var toks []string
	var cur []rune
	var quote rune
	inToken := false

	flush := func() {
		if inToken {
			toks = append(toks, string(cur))
			cur = cur[:0]
			inToken = false
		}
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else if r == '\\' && quote == '"' && i+1 < len(runes) {
				i++
				cur = append(cur, runes[i])
			} else {
				cur = append(cur, r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == '\\' && i+1 < len(runes):
			i++
			cur = append(cur, runes[i])
			inToken = true
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			cur = append(cur, r)
			inToken = true
		}
	}
	flush()
	return toks
}

// FilterExcluded removes entries whose canonical path matches any of the
// configured exclusion globs (e.g. generated or vendored translation
// units), independent of what the manifest itself contains.
func FilterExcluded(entries []types.ManifestEntry, root string, excludeGlobs []string) []types.ManifestEntry {
	if len(excludeGlobs) == 0 {
		return entries
	}
	out := make([]types.ManifestEntry, 0, len(entries))
	for _, e := range entries {
		canon, err := canonicalPath(e.Directory, e.File)
		if err != nil {
			out = append(out, e)
			continue
		}
		rel, err := filepath.Rel(root, canon)
		if err != nil {
			rel = canon
		}
		rel = filepath.ToSlash(rel)
		excluded := false
		for _, pattern := range excludeGlobs {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, e)
		}
	}
	return out
}
