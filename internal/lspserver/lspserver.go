// Package lspserver adapts queryengine.Engine to the Language Server
// Protocol over stdio, using glsp's handler-registration model. Every
// boundary conversion between the Store's 1-indexed positions and the
// LSP's 0-indexed ones happens here and nowhere else.
package lspserver

import (
	"context"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserv "github.com/tliron/glsp/server"

	"github.com/lc168/goclangd/internal/debug"
	"github.com/lc168/goclangd/internal/queryengine"
	"github.com/lc168/goclangd/internal/types"
)

const serverName = "goclangd"

// Server wires an Engine to a glsp protocol handler and runs it over
// stdio.
type Server struct {
	engine  *queryengine.Engine
	version string
	handler protocol.Handler
}

// New builds a Server around engine. version is reported in the
// initialize response's serverInfo.
func New(engine *queryengine.Engine, version string) *Server {
	s := &Server{engine: engine, version: version}
	s.handler = protocol.Handler{
		Initialize:             s.initialize,
		TextDocumentDefinition: s.definition,
		TextDocumentReferences: s.references,
		TextDocumentDocumentSymbol: s.documentSymbol,
		WorkspaceSymbol:        s.workspaceSymbol,
		TextDocumentDidSave:    s.didSave,
	}
	return s
}

// RunStdio blocks, serving LSP requests over stdin/stdout until the
// client disconnects or the connection is closed.
func (s *Server) RunStdio() error {
	srv := glspserv.NewServer(&s.handler, serverName, false)
	return srv.RunStdio()
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (interface{}, error) {
	capDef := true
	capRefs := true
	capDocSym := true
	capWsSym := true
	save := protocol.SaveOptions{IncludeText: boolPtr(false)}

	return protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: boolPtr(true),
				Change:    syncKindPtr(protocol.TextDocumentSyncKindNone),
				Save:      &save,
			},
			DefinitionProvider:     &capDef,
			ReferencesProvider:     &capRefs,
			DocumentSymbolProvider: &capDocSym,
			WorkspaceSymbolProvider: &capWsSym,
		},
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) definition(ctx *glsp.Context, params *protocol.DefinitionParams) (interface{}, error) {
	file := uriToPath(params.TextDocument.URI)
	line, col := types.FromLSPPosition(int(params.Position.Line), int(params.Position.Character))

	_, refs, err := s.engine.Definition(file, line, col)
	if err != nil {
		debug.LogQuery("definition error for %s:%d:%d: %v", file, line, col, err)
		return nil, nil
	}
	return toLocationsFromRefs(refs), nil
}

func (s *Server) references(ctx *glsp.Context, params *protocol.ReferenceParams) (interface{}, error) {
	file := uriToPath(params.TextDocument.URI)
	line, col := types.FromLSPPosition(int(params.Position.Line), int(params.Position.Character))

	_, refs, err := s.engine.References(file, line, col)
	if err != nil {
		debug.LogQuery("references error for %s:%d:%d: %v", file, line, col, err)
		return nil, nil
	}
	return toLocationsFromRefs(refs), nil
}

func (s *Server) documentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (interface{}, error) {
	file := uriToPath(params.TextDocument.URI)

	symbols, refs, err := s.engine.DocumentSymbols(file)
	if err != nil {
		debug.LogQuery("documentSymbol error for %s: %v", file, err)
		return nil, nil
	}

	out := make([]interface{}, 0, len(symbols))
	for i, sym := range symbols {
		if i >= len(refs) {
			break
		}
		loc := refToRange(refs[i])
		kind := symbolKindToLSP(sym.Kind)
		out = append(out, protocol.SymbolInformation{
			Name: sym.Name,
			Kind: kind,
			Location: protocol.Location{
				URI:   pathToURI(refs[i].FilePath),
				Range: loc,
			},
		})
	}
	return out, nil
}

func (s *Server) workspaceSymbol(ctx *glsp.Context, params *protocol.WorkspaceSymbolParams) (interface{}, error) {
	symbols, refs, err := s.engine.WorkspaceSymbols(params.Query)
	if err != nil {
		debug.LogQuery("workspaceSymbol error for %q: %v", params.Query, err)
		return nil, nil
	}

	out := make([]interface{}, 0, len(symbols))
	for i, sym := range symbols {
		if i >= len(refs) {
			break
		}
		out = append(out, protocol.SymbolInformation{
			Name: sym.Name,
			Kind: symbolKindToLSP(sym.Kind),
			Location: protocol.Location{
				URI:   pathToURI(refs[i].FilePath),
				Range: refToRange(refs[i]),
			},
		})
	}
	return out, nil
}

func (s *Server) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	file := uriToPath(params.TextDocument.URI)
	s.engine.OnSave(context.Background(), file)
	return nil
}

func toLocationsFromRefs(refs []types.Ref) []protocol.Location {
	out := make([]protocol.Location, 0, len(refs))
	for _, r := range refs {
		out = append(out, protocol.Location{
			URI:   pathToURI(r.FilePath),
			Range: refToRange(r),
		})
	}
	return out
}

func refToRange(r types.Ref) protocol.Range {
	loc := types.Location{
		FilePath:  r.FilePath,
		StartLine: r.StartLine,
		StartCol:  r.StartCol,
		EndLine:   r.EndLine,
		EndCol:    r.EndCol,
	}.ToLSP()
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(loc.StartLine), Character: protocol.UInteger(loc.StartCol)},
		End:   protocol.Position{Line: protocol.UInteger(loc.EndLine), Character: protocol.UInteger(loc.EndCol)},
	}
}

func symbolKindToLSP(k types.SymbolKind) protocol.SymbolKind {
	switch k {
	case types.KindFunction, types.KindMethod:
		return protocol.SymbolKindFunction
	case types.KindStruct:
		return protocol.SymbolKindStruct
	case types.KindClass:
		return protocol.SymbolKindClass
	case types.KindVariable:
		return protocol.SymbolKindVariable
	case types.KindField:
		return protocol.SymbolKindField
	case types.KindTypedef:
		return protocol.SymbolKindTypeParameter
	case types.KindEnum:
		return protocol.SymbolKindEnum
	case types.KindEnumConstant:
		return protocol.SymbolKindEnumMember
	case types.KindMacro:
		return protocol.SymbolKindConstant
	default:
		return protocol.SymbolKindVariable
	}
}

func uriToPath(uri string) string {
	const prefix = "file://"
	if strings.HasPrefix(uri, prefix) {
		return strings.TrimPrefix(uri, prefix)
	}
	return uri
}

func pathToURI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}

func boolPtr(b bool) *bool { return &b }

func syncKindPtr(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind { return &k }
