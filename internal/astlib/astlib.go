// Package astlib adapts the go-clang cgo bindings into the narrow surface
// the Worker pipeline needs: parse a translation unit from a sanitized
// argument vector, walk its cursors, and read the handful of Cursor
// accessors spec.md §4.3 dispatches on. Nothing here retains state across
// files; every call takes the index/TU it operates on explicitly.
package astlib

import (
	"fmt"
	"os"

	"github.com/go-clang/v3.9/clang"

	goclangderrors "github.com/lc168/goclangd/internal/errors"
	"github.com/lc168/goclangd/internal/types"
)

// parseOptions mirrors the flags a one-shot syntax-only parse needs:
// preprocessing records so macro expansions surface as cursors, and
// KeepGoing so a single broken declaration doesn't abort the whole walk.
// Function bodies are NOT skipped: the Worker's reference/call emission
// (spec.md §4.3 step 5) depends on walking CALL_EXPR/DECL_REF_EXPR/
// MEMBER_REF_EXPR nodes that live inside bodies.
const parseOptions = uint32(clang.TranslationUnit_DetailedPreprocessingRecord) |
	uint32(clang.TranslationUnit_KeepGoing)

// Index owns a single clang.Index. One Index is safe to reuse across many
// sequential ParseFile calls on the same goroutine; it must not be shared
// across goroutines without external synchronization (cgo/libclang calls
// are not guaranteed reentrant per-index).
type Index struct {
	idx clang.Index
}

// NewIndex creates an Index with declarations-from-PCH excluded and
// diagnostic display disabled (the Worker reports diagnostics itself via
// debug.LogWorker rather than letting libclang print to stderr).
func NewIndex() *Index {
	return &Index{idx: clang.NewIndex(1, 0)}
}

// ValidateLibPath checks that the AST library directory (the builtin
// -isystem include path injected by argsanitize.Sanitize, resolved from
// -l/--libpath or PYCLANGD_LIB_PATH per spec.md §6) actually exists
// before any indexing starts. Unlike the Python prototype, which loads
// libclang.so at a caller-given path via ctypes at runtime, go-clang
// links libclang at build time, so there is no dynamic load step to
// fail; this is the Go-native equivalent startup check spec.md §6/§7
// require ("missing AST library" is a fatal initialization error,
// ASTLibraryError is fatal-at-startup), guarding the one thing that can
// still be wrong about it: the configured builtin-include directory
// doesn't exist, which would otherwise silently degrade into per-file
// ParseErrors instead of failing fast.
func ValidateLibPath(path string) error {
	if path == "" {
		return goclangderrors.NewASTLibraryError("validate", fmt.Errorf("no AST library path configured (-l/--libpath or %s)", "PYCLANGD_LIB_PATH"))
	}
	info, err := os.Stat(path)
	if err != nil {
		return goclangderrors.NewASTLibraryError("validate", fmt.Errorf("AST library path %q: %w", path, err))
	}
	if !info.IsDir() {
		return goclangderrors.NewASTLibraryError("validate", fmt.Errorf("AST library path %q is not a directory", path))
	}
	return nil
}

// Dispose releases the underlying libclang index. Call once the owning
// goroutine is done parsing.
func (i *Index) Dispose() {
	i.idx.Dispose()
}

// TranslationUnit wraps a parsed clang.TranslationUnit together with the
// file it was parsed from, so callers don't have to thread the filename
// through every cursor visit.
type TranslationUnit struct {
	tu   clang.TranslationUnit
	file string
}

// Parse parses file with the given sanitized argument vector (already run
// through argsanitize.Sanitize). Returns a ParseError wrapping the
// libclang error code on failure.
func (i *Index) Parse(file string, args []string) (*TranslationUnit, error) {
	var tu clang.TranslationUnit
	errCode := i.idx.ParseTranslationUnit2(file, args, nil, parseOptions, &tu)
	if clang.ErrorCode(errCode) != clang.Error_Success {
		return nil, goclangderrors.NewParseError(
			file,
			fmt.Errorf("libclang: %s", clang.ErrorCode(errCode).Spelling()),
		)
	}
	return &TranslationUnit{tu: tu, file: file}, nil
}

// Dispose releases the translation unit's resources.
func (t *TranslationUnit) Dispose() {
	t.tu.Dispose()
}

// Diagnostic is the narrow projection of a clang diagnostic the Worker
// logs: severity and a human-readable spelling.
type Diagnostic struct {
	Severity clang.DiagnosticSeverity
	Text     string
}

// Diagnostics returns every diagnostic at or above clang.Diagnostic_Error,
// matching spec.md §4.3's "errors are logged but do not abort the file".
func (t *TranslationUnit) Diagnostics() []Diagnostic {
	diags := t.tu.Diagnostics()
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		sev := d.Severity()
		if sev >= clang.Diagnostic_Error {
			out = append(out, Diagnostic{Severity: sev, Text: d.Spelling()})
		}
		d.Dispose()
	}
	return out
}

// VisitFunc is called for every cursor in a preorder traversal. Returning
// false stops recursion into that cursor's children; it never stops the
// traversal outright, matching clang's ChildVisit_Continue/Recurse pair
// (there is no libclang verb for "abort the whole walk" short of a
// non-local exit, which this package deliberately avoids).
type VisitFunc func(cursor Cursor) (recurse bool)

// Visit performs a preorder traversal of the translation unit's cursor
// tree below the root, invoking fn on every descendant node; the
// translation-unit cursor itself is not passed to fn.
func (t *TranslationUnit) Visit(fn VisitFunc) {
	root := t.tu.TranslationUnitCursor()
	root.Visit(func(cursor, parent clang.Cursor) clang.ChildVisitResult {
		if cursor.IsNull() {
			return clang.ChildVisit_Continue
		}
		if fn(Cursor{c: cursor}) {
			return clang.ChildVisit_Recurse
		}
		return clang.ChildVisit_Continue
	})
}

// Cursor is the thin wrapper over clang.Cursor exposing exactly the
// accessors the Worker's dispatch-by-kind logic needs.
type Cursor struct {
	c clang.Cursor
}

// Kind maps the cgo CursorKind onto this module's own closed SymbolKind
// set (types.DefinitionKinds / types.ReferenceKinds), returning ("", false)
// for every cursor kind the pipeline doesn't care about.
func (c Cursor) Kind() (types.SymbolKind, bool) {
	switch c.c.Kind() {
	case clang.Cursor_FunctionDecl:
		return types.KindFunction, true
	case clang.Cursor_CXXMethod:
		return types.KindMethod, true
	case clang.Cursor_StructDecl:
		return types.KindStruct, true
	case clang.Cursor_ClassDecl:
		return types.KindClass, true
	case clang.Cursor_VarDecl, clang.Cursor_ParmDecl:
		return types.KindVariable, true
	case clang.Cursor_FieldDecl:
		return types.KindField, true
	case clang.Cursor_TypedefDecl:
		return types.KindTypedef, true
	case clang.Cursor_EnumDecl:
		return types.KindEnum, true
	case clang.Cursor_EnumConstantDecl:
		return types.KindEnumConstant, true
	case clang.Cursor_MacroDefinition:
		return types.KindMacro, true
	case clang.Cursor_CallExpr:
		return types.KindCallExpr, true
	case clang.Cursor_MemberRefExpr:
		return types.KindMemberRefExpr, true
	case clang.Cursor_DeclRefExpr, clang.Cursor_MacroExpansion:
		return types.KindDeclRefExpr, true
	case clang.Cursor_TypeRef:
		return types.KindTypeRef, true
	case clang.Cursor_OverloadedDeclRef:
		return types.KindOverloadedDeclRef, true
	default:
		return "", false
	}
}

// USR returns the cursor's Unique Stable Identifier, the primary key
// symbols and refs are persisted under.
func (c Cursor) USR() string {
	return c.c.USR()
}

// Spelling returns the cursor's display name.
func (c Cursor) Spelling() string {
	return c.c.Spelling()
}

// IsDefinition reports whether this cursor is itself the defining
// occurrence, per spec.md §4.3's is_definition() check.
func (c Cursor) IsDefinition() bool {
	return c.c.IsCursorDefinition()
}

// Referenced returns the cursor this one refers to (the resolved
// declaration behind a DeclRefExpr/CallExpr/etc.), or the zero Cursor if
// unresolved.
func (c Cursor) Referenced() Cursor {
	return Cursor{c: c.c.Referenced()}
}

// IsNull reports whether this cursor resolved to nothing (e.g. an
// unresolved Referenced()).
func (c Cursor) IsNull() bool {
	return c.c.IsNull()
}

// SemanticParent returns the cursor's semantic parent, used to resolve
// Ref.CallerUSR per spec.md §4.3.
func (c Cursor) SemanticParent() Cursor {
	return Cursor{c: c.c.SemanticParent()}
}

// IsDeclaration reports whether this cursor is a declaration, the
// condition under which SemanticParent().USR() is trusted as a caller.
func (c Cursor) IsDeclaration() bool {
	return c.c.IsDeclaration()
}

// Extent returns the cursor's source range as 1-indexed line/column
// pairs, matching types.Location's convention.
func (c Cursor) Extent() types.Location {
	extent := c.c.Extent()
	start := extent.Start()
	end := extent.End()

	file, startLine, startCol, _ := start.ExpansionLocation()
	_, endLine, endCol, _ := end.ExpansionLocation()

	return types.Location{
		FilePath:  file.Name(),
		StartLine: int(startLine),
		StartCol:  int(startCol),
		EndLine:   int(endLine),
		EndCol:    int(endCol),
	}
}

// FileHandle identifies the physical file a cursor's location belongs to,
// used as the path-cache memoization key during traversal (comparing
// Clang's CXFile handle is cheaper and more reliable than comparing
// decoded path strings on every cursor).
type FileHandle struct {
	f clang.File
}

func (f FileHandle) String() string { return f.f.Name() }

// File returns the cursor's containing file handle, or a zero FileHandle
// for cursors with no associated file (e.g. built-in/implicit cursors).
func (c Cursor) File() FileHandle {
	loc := c.c.Location()
	file, _, _, _ := loc.ExpansionLocation()
	return FileHandle{f: file}
}
