package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// SaveSymbols inserts a batch of symbol definitions in one transaction.
func (s *Store) SaveSymbols(symbols []SymbolDefinition, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx("save_symbols", func(tx *sql.Tx) error {
		for i := range symbols {
			sym := &symbols[i]
			sym.ProjectID = projectID
			if sym.ID == "" {
				sym.ID = uuid.NewString()
			}
			_, err := tx.Exec(`
				INSERT INTO symbol_definitions (id, project_id, name, file_path, line, kind, scope, signature, language)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sym.ID, sym.ProjectID, sym.Name, sym.FilePath, sym.Line, sym.Kind,
				nullString(sym.Scope), nullString(sym.Signature), sym.Language,
			)
			if err != nil {
				return fmt.Errorf("insert symbol %s: %w", sym.Name, err)
			}
		}
		return nil
	})
}

const symbolColumns = `id, project_id, name, file_path, line, kind, scope, signature, language`

func scanSymbol(row interface{ Scan(...any) error }) (SymbolDefinition, error) {
	var sym SymbolDefinition
	var scope, signature sql.NullString
	err := row.Scan(&sym.ID, &sym.ProjectID, &sym.Name, &sym.FilePath, &sym.Line,
		&sym.Kind, &scope, &signature, &sym.Language)
	if err != nil {
		return sym, err
	}
	sym.Scope = fromNullString(scope)
	sym.Signature = fromNullString(signature)
	return sym, nil
}

// FindSymbolsByName returns symbol definitions matching the exact name.
func (s *Store) FindSymbolsByName(projectID, name string, limit int) ([]SymbolDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT `+symbolColumns+` FROM symbol_definitions
		 WHERE project_id = ? AND name = ? ORDER BY file_path, line LIMIT ?`,
		projectID, name, limit,
	)
	if err != nil {
		return nil, storeErr("find_symbols_by_name", err)
	}
	defer rows.Close()

	var symbols []SymbolDefinition
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, storeErr("find_symbols_by_name", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// AllSymbols returns every symbol definition of a project.
func (s *Store) AllSymbols(projectID string) ([]SymbolDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT `+symbolColumns+` FROM symbol_definitions WHERE project_id = ? ORDER BY file_path, line`,
		projectID,
	)
	if err != nil {
		return nil, storeErr("all_symbols", err)
	}
	defer rows.Close()

	var symbols []SymbolDefinition
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, storeErr("all_symbols", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}
