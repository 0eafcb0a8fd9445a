package store

import (
	"database/sql"

	"github.com/lc168/goclangd/internal/types"
)

// scanRefRow scans one refs JOIN symbols row shared by most query methods.
func scanRefRow(rows *sql.Rows) (types.Symbol, types.Ref, error) {
	var sym types.Symbol
	var ref types.Ref
	var kind string
	var role string
	var callerUSR sql.NullString

	err := rows.Scan(&ref.USR, &sym.Name, &kind, &callerUSR, &ref.FilePath, &ref.StartLine, &ref.StartCol, &ref.EndLine, &ref.EndCol, &role)
	sym.USR = ref.USR
	sym.Kind = types.SymbolKind(kind)
	ref.Role = types.RefRole(role)
	ref.CallerUSR = callerUSR.String
	return sym, ref, err
}

// GetSymbolsByFile returns document-symbol rows for a file in ascending
// start-line order, per spec.md §4.5's Document Symbols query.
func (s *Store) GetSymbolsByFile(file string) ([]types.Symbol, []types.Ref, error) {
	rows, err := s.db.Query(`
		SELECT r.usr, s.name, s.kind, r.caller_usr, r.file_path, r.s_line, r.s_col, r.e_line, r.e_col, r.role
		FROM refs r JOIN symbols s ON r.usr = s.usr
		WHERE r.file_path = ? AND r.role = 'def'
		ORDER BY r.s_line ASC`, file)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

// SearchSymbols fuzzy-matches symbol names for workspace/symbol, per
// spec.md §4.5's `WHERE s.name LIKE '%'||?||'%' AND r.role='def' LIMIT
// 100`.
func (s *Store) SearchSymbols(query string) ([]types.Symbol, []types.Ref, error) {
	rows, err := s.db.Query(`
		SELECT r.usr, s.name, s.kind, r.caller_usr, r.file_path, r.s_line, r.s_col, r.e_line, r.e_col, r.role
		FROM refs r JOIN symbols s ON r.usr = s.usr
		WHERE s.name LIKE '%' || ? || '%' AND r.role = 'def'
		LIMIT 100`, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

// GetDefinitionsByUsr returns every def-role ref for usr (the
// USR-precise branch of two-strategy Definition), DISTINCT on physical
// coordinates per spec.md §4.5 -- a concurrent on-save reparse racing
// the delete/insert can otherwise surface duplicate def rows.
func (s *Store) GetDefinitionsByUsr(usr string) ([]types.Symbol, []types.Ref, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT r.usr, s.name, s.kind, r.caller_usr, r.file_path, r.s_line, r.s_col, r.e_line, r.e_col, r.role
		FROM refs r JOIN symbols s ON r.usr = s.usr
		WHERE r.usr = ? AND r.role = 'def'`, usr)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

// GetDefinitionsByName returns every def-role ref for name (the
// name-fallback branch of two-strategy Definition).
func (s *Store) GetDefinitionsByName(name string) ([]types.Symbol, []types.Ref, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT r.usr, s.name, s.kind, r.caller_usr, r.file_path, r.s_line, r.s_col, r.e_line, r.e_col, r.role
		FROM refs r JOIN symbols s ON r.usr = s.usr
		WHERE s.name = ? AND r.role = 'def'`, name)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

// GetReferencesByUsr returns every def/ref/call row for usr (the
// USR-precise branch of two-strategy References).
func (s *Store) GetReferencesByUsr(usr string) ([]types.Symbol, []types.Ref, error) {
	rows, err := s.db.Query(`
		SELECT r.usr, s.name, s.kind, r.caller_usr, r.file_path, r.s_line, r.s_col, r.e_line, r.e_col, r.role
		FROM refs r JOIN symbols s ON r.usr = s.usr
		WHERE r.usr = ? AND r.role IN ('def', 'ref', 'call')`, usr)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

// GetReferencesByName returns every def/ref/call row for name (the
// name-fallback branch of two-strategy References).
func (s *Store) GetReferencesByName(name string) ([]types.Symbol, []types.Ref, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT r.usr, s.name, s.kind, r.caller_usr, r.file_path, r.s_line, r.s_col, r.e_line, r.e_col, r.role
		FROM refs r JOIN symbols s ON r.usr = s.usr
		WHERE s.name = ? AND r.role IN ('def', 'ref', 'call')`, name)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

// GetUsrAtLocation resolves the USR at (file, line, col) for the
// USR-precise lookup strategy: refs where s_line=line and s_col<=col<=e_col,
// ties broken by preferring non-def rows first, then narrowest extent
// (spec.md §4.5 and the tie-break called out in §9's Open Questions).
func (s *Store) GetUsrAtLocation(file string, line, col int) (string, bool, error) {
	row := s.db.QueryRow(`
		SELECT usr FROM refs
		WHERE file_path = ? AND s_line = ? AND s_col <= ? AND ? <= e_col
		ORDER BY (role != 'def') DESC, (e_col - s_col) ASC
		LIMIT 1`, file, line, col, col)

	var usr string
	if err := row.Scan(&usr); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return usr, true, nil
}

func collectRows(rows *sql.Rows) ([]types.Symbol, []types.Ref, error) {
	var symbols []types.Symbol
	var refs []types.Ref
	for rows.Next() {
		sym, ref, err := scanRefRow(rows)
		if err != nil {
			return nil, nil, err
		}
		symbols = append(symbols, sym)
		refs = append(refs, ref)
	}
	return symbols, refs, rows.Err()
}
