package lspserver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lc168/goclangd/internal/types"
)

func TestURIPathRoundTrip(t *testing.T) {
	require.Equal(t, "/home/user/a.c", uriToPath("file:///home/user/a.c"))
	require.Equal(t, "file:///home/user/a.c", pathToURI("/home/user/a.c"))
	require.Equal(t, "file:///home/user/a.c", pathToURI(uriToPath("file:///home/user/a.c")))
}

func TestRefToRangeConvertsToZeroIndexed(t *testing.T) {
	r := types.Ref{FilePath: "/a.c", StartLine: 1, StartCol: 6, EndLine: 1, EndCol: 9, Role: types.RoleDef}
	rng := refToRange(r)
	require.EqualValues(t, 0, rng.Start.Line)
	require.EqualValues(t, 5, rng.Start.Character)
	require.EqualValues(t, 0, rng.End.Line)
	require.EqualValues(t, 8, rng.End.Character)
}

func TestSymbolKindToLSPMapsFunctionAndStruct(t *testing.T) {
	require.NotZero(t, symbolKindToLSP(types.KindFunction))
	require.NotZero(t, symbolKindToLSP(types.KindStruct))
}
