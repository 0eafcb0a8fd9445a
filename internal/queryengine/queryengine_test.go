package queryengine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lc168/goclangd/internal/store"
	"github.com/lc168/goclangd/internal/types"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path, true)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedFooBar(t *testing.T, s *store.Store) {
	t.Helper()
	symbols := []types.Symbol{
		{USR: "c:@F@foo", Name: "foo", Kind: types.KindFunction},
		{USR: "c:@F@bar", Name: "bar", Kind: types.KindFunction},
	}
	refs := []types.Ref{
		{USR: "c:@F@foo", FilePath: "/a.c", StartLine: 1, StartCol: 6, EndLine: 1, EndCol: 9, Role: types.RoleDef},
		{USR: "c:@F@bar", FilePath: "/a.c", StartLine: 3, StartCol: 6, EndLine: 3, EndCol: 9, Role: types.RoleDef},
		{USR: "c:@F@foo", CallerUSR: "c:@F@bar", FilePath: "/a.c", StartLine: 4, StartCol: 4, EndLine: 4, EndCol: 7, Role: types.RoleCall},
	}
	require.NoError(t, s.SaveIndexResult("/a.c", 100.0, symbols, refs))
}

func TestDefinitionUsrPreciseStrategy(t *testing.T) {
	s := openTestStore(t)
	seedFooBar(t, s)
	e := New(s, s, nil, "")

	syms, _, err := e.Definition("/a.c", 4, 5)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	require.Equal(t, "foo", syms[0].Name)
}

func TestReferencesUsrPreciseStrategyIncludesDefAndCall(t *testing.T) {
	s := openTestStore(t)
	seedFooBar(t, s)
	e := New(s, s, nil, "")

	_, refs, err := e.References("/a.c", 1, 7)
	require.NoError(t, err)
	require.Len(t, refs, 2)
}

func TestReferencesMissNeverReturnsNilSlices(t *testing.T) {
	s := openTestStore(t)
	e := New(s, s, nil, "")

	syms, refs, err := e.References("/missing.c", 1, 1)
	require.NoError(t, err)
	require.NotNil(t, syms)
	require.NotNil(t, refs)
	require.Empty(t, syms)
	require.Empty(t, refs)
}

func TestDocumentSymbolsReturnsFileDefs(t *testing.T) {
	s := openTestStore(t)
	seedFooBar(t, s)
	e := New(s, s, nil, "")

	syms, _, err := e.DocumentSymbols("/a.c")
	require.NoError(t, err)
	require.Len(t, syms, 2)
}

func TestWorkspaceSymbolsRanksExactMatchFirst(t *testing.T) {
	s := openTestStore(t)
	seedFooBar(t, s)
	e := New(s, s, nil, "")

	syms, _, err := e.WorkspaceSymbols("foo")
	require.NoError(t, err)
	require.NotEmpty(t, syms)
	require.Equal(t, "foo", syms[0].Name)
}
