// Package worker implements the stateless, side-effect-free per-file
// pipeline: canonicalize, sanitize compile args, parse, traverse, and
// return the symbols/refs a single translation unit yields. A Worker
// never touches the store; Process is safe to call concurrently from
// multiple goroutines as long as each call uses its own astlib.Index.
package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lc168/goclangd/internal/argsanitize"
	"github.com/lc168/goclangd/internal/astlib"
	"github.com/lc168/goclangd/internal/debug"
	"github.com/lc168/goclangd/internal/types"
	"github.com/lc168/goclangd/internal/usrindex"
)

// Status is the outcome of processing one file.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailed
	StatusSkip
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusSkip:
		return "SKIP"
	default:
		return "FAILED"
	}
}

// Result is the tuple a Worker call produces, matching spec.md §4.3's
// (status, source_file, mtime, symbols[], refs[]).
type Result struct {
	Status  Status
	File    string
	MTime   float64
	Symbols []types.Symbol
	Refs    []types.Ref
}

var asmExt = map[string]bool{".s": true, ".S": true}

// identRe extracts the identifier under a cursor for the name-fallback
// definition/reference lookup strategy (used by queryengine, not here,
// but defined once in this package since it's a compile-command-free,
// worker-adjacent piece of text scanning).
var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// Process runs the full per-file pipeline for one manifest entry.
// builtinIncludeDir is the AST library's own header search path (spec.md
// §4.2's trailing -isystem injection).
func Process(idx *astlib.Index, entry types.ManifestEntry, rawArgs []string, builtinIncludeDir string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			debug.LogWorker("panic processing %s: %v", entry.File, r)
			res = Result{Status: StatusFailed, File: entry.File}
		}
	}()

	sourceFile := entry.File
	if !filepath.IsAbs(sourceFile) {
		sourceFile = filepath.Join(entry.Directory, entry.File)
	}
	canonical, err := filepath.EvalSymlinks(sourceFile)
	if err != nil {
		return Result{Status: StatusFailed, File: sourceFile}
	}

	if asmExt[filepath.Ext(canonical)] {
		return Result{Status: StatusSkip, File: canonical}
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return Result{Status: StatusFailed, File: canonical}
	}
	mtime := float64(info.ModTime().UnixNano()) / 1e9

	compilerPath := ""
	if len(rawArgs) > 0 {
		compilerPath = rawArgs[0]
	}
	sanitized := argsanitize.Sanitize(compilerPath, rawArgs, filepath.Base(canonical), entry.Directory, builtinIncludeDir)

	tu, err := idx.Parse(canonical, sanitized)
	if err != nil {
		debug.LogWorker("parse failed for %s: %v", canonical, err)
		return Result{Status: StatusFailed, File: canonical}
	}
	defer tu.Dispose()

	for _, d := range tu.Diagnostics() {
		debug.LogWorker("%s: %s", canonical, d.Text)
	}

	cache := usrindex.NewCache()
	pathCache := make(map[astlib.FileHandle]string, 64)
	realpathOf := func(fh astlib.FileHandle) string {
		if p, ok := pathCache[fh]; ok {
			return p
		}
		p, err := filepath.EvalSymlinks(fh.String())
		if err != nil {
			p = fh.String()
		}
		pathCache[fh] = p
		return p
	}

	var symbols []types.Symbol
	var refs []types.Ref

	tu.Visit(func(cursor astlib.Cursor) bool {
		kind, ok := cursor.Kind()
		if !ok {
			return true
		}

		nodeFile := realpathOf(cursor.File())
		if nodeFile == "" || nodeFile == "." {
			return true
		}

		switch {
		case types.DefinitionKinds[kind]:
			isDef := cursor.IsDefinition() || kind == types.KindMacro
			if !isDef {
				return true
			}
			usr := cursor.USR()
			if usr == "" {
				return true
			}
			spelling := cursor.Spelling()
			if !cache.SeenOrMark(usr) {
				symbols = append(symbols, types.Symbol{USR: usr, Name: spelling, Kind: kind})
			}
			ext := cursor.Extent()
			refs = append(refs, types.Ref{
				USR:       usr,
				FilePath:  nodeFile,
				StartLine: ext.StartLine,
				StartCol:  ext.StartCol,
				EndLine:   ext.StartLine,
				EndCol:    ext.StartCol + len(spelling),
				Role:      types.RoleDef,
			})

		case types.ReferenceKinds[kind]:
			target := cursor.Referenced()
			if target.IsNull() {
				return true
			}
			targetUSR := target.USR()
			if targetUSR == "" {
				return true
			}
			targetSpelling := target.Spelling()
			targetKind, ok := target.Kind()
			if !ok {
				targetKind = types.KindVariable
			}
			if !cache.SeenOrMark(targetUSR) {
				symbols = append(symbols, types.Symbol{USR: targetUSR, Name: targetSpelling, Kind: targetKind})
			}

			role := types.RoleRef
			if kind == types.KindCallExpr {
				role = types.RoleCall
			}

			var callerUSR string
			parent := cursor.SemanticParent()
			if !parent.IsNull() && parent.IsDeclaration() {
				callerUSR = parent.USR()
			}

			ext := cursor.Extent()
			name := cursor.Spelling()
			refs = append(refs, types.Ref{
				USR:       targetUSR,
				CallerUSR: callerUSR,
				FilePath:  nodeFile,
				StartLine: ext.StartLine,
				StartCol:  ext.StartCol,
				EndLine:   ext.StartLine,
				EndCol:    ext.StartCol + len(name),
				Role:      role,
			})
		}

		return true
	})

	return Result{
		Status:  StatusSuccess,
		File:    canonical,
		MTime:   mtime,
		Symbols: symbols,
		Refs:    refs,
	}
}

// IdentifierAt extracts the identifier token containing the 1-indexed
// column col on a single line of text, for the name-fallback
// definition/reference lookup strategy.
func IdentifierAt(line string, col int) (string, bool) {
	for _, loc := range identRe.FindAllStringIndex(line, -1) {
		if col-1 >= loc[0] && col-1 < loc[1] {
			return line[loc[0]:loc[1]], true
		}
	}
	return "", false
}

// ReadLine returns the 1-indexed lineNum'th line of file, used by the
// name-fallback strategy to run IdentifierAt against real source text.
func ReadLine(file string, lineNum int) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", file, err)
	}
	lines := strings.Split(string(data), "\n")
	if lineNum < 1 || lineNum > len(lines) {
		return "", fmt.Errorf("line %d out of range in %s", lineNum, file)
	}
	return lines[lineNum-1], nil
}
