// Package types defines the data model shared by every layer of goclangd:
// the Symbol dictionary, Ref occurrences, and per-file indexing status.
package types

import "fmt"

// SymbolKind categorizes the program entity a Symbol names. Values are the
// AST library's node-kind spelling (e.g. "FUNCTION_DECL"), not a closed Go
// enum, so a future AST library version can introduce new kinds without a
// schema change.
type SymbolKind string

// Definition-eligible AST node kinds. A node in this set emits a Symbol +
// Ref(role=def) when it is_definition() (macros are definitions by
// construction and skip that check).
const (
	KindFunction     SymbolKind = "FUNCTION_DECL"
	KindMethod       SymbolKind = "CXX_METHOD"
	KindStruct       SymbolKind = "STRUCT_DECL"
	KindClass        SymbolKind = "CLASS_DECL"
	KindVariable     SymbolKind = "VAR_DECL"
	KindField        SymbolKind = "FIELD_DECL"
	KindTypedef      SymbolKind = "TYPEDEF_DECL"
	KindEnum         SymbolKind = "ENUM_DECL"
	KindEnumConstant SymbolKind = "ENUM_CONSTANT_DECL"
	KindMacro        SymbolKind = "MACRO_DEFINITION"
)

// Reference-eligible AST node kinds. A node in this set emits a Symbol +
// Ref(role=call|ref) when node.Referenced() resolves.
const (
	KindCallExpr            SymbolKind = "CALL_EXPR"
	KindMemberRefExpr        SymbolKind = "MEMBER_REF_EXPR"
	KindDeclRefExpr          SymbolKind = "DECL_REF_EXPR"
	KindTypeRef              SymbolKind = "TYPE_REF"
	KindOverloadedDeclRef    SymbolKind = "OVERLOADED_DECL_REF"
)

// DefinitionKinds is the closed set dispatched on for definition emission.
var DefinitionKinds = map[SymbolKind]bool{
	KindFunction:     true,
	KindMethod:       true,
	KindStruct:       true,
	KindClass:        true,
	KindVariable:     true,
	KindField:        true,
	KindTypedef:      true,
	KindEnum:         true,
	KindEnumConstant: true,
	KindMacro:        true,
}

// ReferenceKinds is the closed set dispatched on for reference/call emission.
var ReferenceKinds = map[SymbolKind]bool{
	KindCallExpr:         true,
	KindMemberRefExpr:    true,
	KindDeclRefExpr:      true,
	KindTypeRef:          true,
	KindOverloadedDeclRef: true,
}

// RefRole is the semantic kind of an occurrence recorded in Ref.
type RefRole string

const (
	RoleDef  RefRole = "def"
	RoleCall RefRole = "call"
	RoleRef  RefRole = "ref"
)

// Symbol is the canonical identity of a program entity, keyed by its
// stable USR. name/kind are treated as immutable once recorded: the first
// writer wins (INSERT OR IGNORE semantics at the Store).
type Symbol struct {
	USR  string
	Name string
	Kind SymbolKind
}

// Ref is an occurrence of a symbol at a source location. Positions are
// 1-indexed (line, col) pairs at rest; LSP-facing code converts to
// 0-indexed at the boundary (internal/lspserver).
type Ref struct {
	ID         int64 // auto-increment row id; zero until persisted
	USR        string
	CallerUSR  string // empty when there is no enclosing declaration
	FilePath   string // canonical absolute path, symlinks resolved
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int
	Role       RefRole
}

// HasCaller reports whether this Ref has a recorded enclosing declaration.
func (r Ref) HasCaller() bool { return r.CallerUSR != "" }

// FileStatus tracks indexing lifecycle per source file.
type FileStatus struct {
	FilePath string
	MTime    float64
	Status   IndexStatus
}

// IndexStatus is the state of a file in the indexing lifecycle state
// machine: absent -> indexing -> (completed | failed) -> indexing on change.
type IndexStatus string

const (
	StatusIndexing  IndexStatus = "indexing"
	StatusCompleted IndexStatus = "completed"
	StatusFailed    IndexStatus = "failed"
)

// ManifestEntry is one element of a compile_commands.json-style manifest:
// a per-file compile command described either as a token vector
// (Arguments, preferred) or a shell-quoted string (Command).
type ManifestEntry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments,omitempty"`
	Command   string   `json:"command,omitempty"`
}

// Location is a source range in 1-indexed (line, col) pairs, the
// convention the Store and AST library use. Convert with ToLSP and
// FromLSPPosition at the LSP boundary.
type Location struct {
	FilePath   string
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int
}

// String renders a Location for logging.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d-%d:%d", l.FilePath, l.StartLine, l.StartCol, l.EndLine, l.EndCol)
}

// ToLSP converts a 1-indexed stored Location to a 0-indexed LSP Location.
func (l Location) ToLSP() Location {
	return Location{
		FilePath:  l.FilePath,
		StartLine: l.StartLine - 1,
		StartCol:  l.StartCol - 1,
		EndLine:   l.EndLine - 1,
		EndCol:    l.EndCol - 1,
	}
}

// FromLSPPosition converts a 0-indexed LSP (line, character) to the
// 1-indexed (line, col) pair the Store and AST library use.
func FromLSPPosition(line, character int) (int, int) {
	return line + 1, character + 1
}
