// Package queryengine implements the LSP-facing read API: go-to-definition,
// find-references, document symbols, workspace symbol search, and
// on-save incremental reindex dispatch. Every query method reads from
// Store only; nothing here ever parses a translation unit on the
// request path.
package queryengine

import (
	"context"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"

	"github.com/lc168/goclangd/internal/astlib"
	"github.com/lc168/goclangd/internal/debug"
	"github.com/lc168/goclangd/internal/manifest"
	"github.com/lc168/goclangd/internal/store"
	"github.com/lc168/goclangd/internal/types"
	"github.com/lc168/goclangd/internal/worker"
)

// Engine is the read-only query layer. It holds two Store handles,
// matching spec.md §9's "the LSP owns a separate read connection (with
// a background task owning a write connection for on-save)": readSt
// backs every query method below, writeSt backs only OnSave's apply
// step. Callers may pass the same *store.Store for both when a second
// connection isn't warranted (e.g. in tests).
type Engine struct {
	readSt            *store.Store
	writeSt           *store.Store
	manifest          *manifest.Manifest
	builtinIncludeDir string
}

// New creates an Engine over already-open read/write Store handles and
// the loaded manifest map.
func New(readSt, writeSt *store.Store, m *manifest.Manifest, builtinIncludeDir string) *Engine {
	return &Engine{readSt: readSt, writeSt: writeSt, manifest: m, builtinIncludeDir: builtinIncludeDir}
}

// DocumentSymbols implements textDocument/documentSymbol: every
// definition in file, in ascending start-line order.
func (e *Engine) DocumentSymbols(file string) ([]types.Symbol, []types.Ref, error) {
	return e.readSt.GetSymbolsByFile(file)
}

// WorkspaceSymbols implements workspace/symbol: a LIKE-based fuzzy
// fetch from Store, then re-ranked by Jaro-Winkler similarity and
// Porter2-stemmed exact matches so near-miss spellings and
// morphological variants of query still surface near the top.
func (e *Engine) WorkspaceSymbols(query string) ([]types.Symbol, []types.Ref, error) {
	symbols, refs, err := e.readSt.SearchSymbols(query)
	if err != nil {
		return nil, nil, err
	}
	if len(symbols) <= 1 {
		return symbols, refs, nil
	}

	type scored struct {
		sym   types.Symbol
		ref   types.Ref
		score float64
	}
	stemmedQuery := porter2.Stem(strings.ToLower(query))

	ranked := make([]scored, len(symbols))
	for i, sym := range symbols {
		sim, simErr := edlib.StringsSimilarity(strings.ToLower(sym.Name), strings.ToLower(query), edlib.JaroWinkler)
		score := 0.0
		if simErr == nil {
			score = float64(sim)
		}
		if porter2.Stem(strings.ToLower(sym.Name)) == stemmedQuery {
			score += 0.5
		}
		ranked[i] = scored{sym: sym, ref: refs[i], score: score}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	outSyms := make([]types.Symbol, len(ranked))
	outRefs := make([]types.Ref, len(ranked))
	for i, r := range ranked {
		outSyms[i] = r.sym
		outRefs[i] = r.ref
	}
	return outSyms, outRefs, nil
}

// Definition implements textDocument/definition's two-strategy lookup:
// USR-precise first, falling back to a name match extracted from the
// source text under the cursor.
func (e *Engine) Definition(file string, line, col int) ([]types.Symbol, []types.Ref, error) {
	usr, ok, err := e.readSt.GetUsrAtLocation(file, line, col)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		return e.readSt.GetDefinitionsByUsr(usr)
	}

	name, ok := e.identifierUnderCursor(file, line, col)
	if !ok {
		return nil, nil, nil
	}
	return e.readSt.GetDefinitionsByName(name)
}

// References implements textDocument/references' two-strategy lookup,
// the same shape as Definition but matching role IN (def, ref, call).
func (e *Engine) References(file string, line, col int) ([]types.Symbol, []types.Ref, error) {
	usr, ok, err := e.readSt.GetUsrAtLocation(file, line, col)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		syms, refs, err := e.readSt.GetReferencesByUsr(usr)
		if err != nil {
			return nil, nil, err
		}
		return syms, refs, nil
	}

	name, ok := e.identifierUnderCursor(file, line, col)
	if !ok {
		return []types.Symbol{}, []types.Ref{}, nil
	}
	syms, refs, err := e.readSt.GetReferencesByName(name)
	if err != nil {
		return nil, nil, err
	}
	if syms == nil {
		syms = []types.Symbol{}
	}
	if refs == nil {
		refs = []types.Ref{}
	}
	return syms, refs, nil
}

func (e *Engine) identifierUnderCursor(file string, line, col int) (string, bool) {
	text, err := worker.ReadLine(file, line)
	if err != nil {
		return "", false
	}
	return worker.IdentifierAt(text, col)
}

// OnSave implements the on-save reindex dispatch: fire-and-forget, so
// the LSP event loop is never blocked on a single-file reparse. Any
// error is logged, never returned to the caller.
func (e *Engine) OnSave(ctx context.Context, savedFile string) {
	if e.manifest == nil {
		return
	}
	entry, ok := e.manifest.Lookup(savedFile)
	if !ok {
		debug.LogQuery("on-save: %s not present in manifest, skipping reindex", savedFile)
		return
	}

	go func() {
		idx := astlib.NewIndex()
		defer idx.Dispose()

		rawArgs := manifest.RawArgs(entry)
		res := worker.Process(idx, entry, rawArgs, e.builtinIncludeDir)

		switch res.Status {
		case worker.StatusSuccess:
			if err := e.writeSt.SaveIndexResult(res.File, res.MTime, res.Symbols, res.Refs); err != nil {
				debug.LogQuery("on-save reindex apply failed for %s: %v", res.File, err)
			}
		case worker.StatusFailed:
			if err := e.writeSt.UpdateFileStatus(res.File, res.MTime, types.StatusFailed); err != nil {
				debug.LogQuery("on-save failure record failed for %s: %v", res.File, err)
			}
		case worker.StatusSkip:
		}
	}()
}
