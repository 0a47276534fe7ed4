package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"realestate/internal/model"
	"realestate/internal/store"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps an in-memory database alive and shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ReplaceRegions swaps the whole table in one transaction.
func (s *Store) ReplaceRegions(ctx context.Context, regions []model.RegionAddressInfo) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM regions`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO regions (
			code, name, full_name, parent_code, level,
			norm_name, norm_full, components, depth
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			full_name = excluded.full_name,
			parent_code = excluded.parent_code,
			level = excluded.level,
			norm_name = excluded.norm_name,
			norm_full = excluded.norm_full,
			components = excluded.components,
			depth = excluded.depth
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, region := range regions {
		components := store.NameComponents(region.FullName)
		_, err = stmt.ExecContext(
			ctx,
			region.Code,
			region.Name,
			region.FullName,
			region.ParentCode,
			string(region.Level),
			store.NormalizeName(region.Name),
			store.NormalizeName(region.FullName),
			strings.Join(components, " "),
			len(components),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) RegionByCode(ctx context.Context, code string) (model.RegionCode, error) {
	regions, err := s.queryRegions(ctx, `WHERE code = ?`, code)
	if err != nil {
		return model.RegionCode{}, err
	}
	if len(regions) == 0 {
		return model.RegionCode{}, store.ErrNotFound
	}
	return regions[0], nil
}

func (s *Store) RegionsByName(ctx context.Context, name string) ([]model.RegionCode, error) {
	return s.queryRegions(ctx, `WHERE norm_name = ? OR norm_full = ? ORDER BY code`, name, name)
}

func (s *Store) RegionsByPrefix(ctx context.Context, prefix string, limit int) ([]model.RegionCode, error) {
	if prefix == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}
	upper := prefixUpperBound(prefix)
	return s.queryRegions(ctx, `
		WHERE (norm_name >= ? AND norm_name < ?) OR (norm_full >= ? AND norm_full < ?)
		ORDER BY code LIMIT ?`,
		prefix, upper, prefix, upper, limit)
}

// RegionsByComponents matches regions with exactly len(tokens) name
// components where every token equals or prefixes its component.
func (s *Store) RegionsByComponents(ctx context.Context, tokens []string) ([]model.RegionCode, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, full_name, parent_code, level, components
		FROM regions
		WHERE depth = ? AND components >= ? AND components < ?
		ORDER BY code`,
		len(tokens), tokens[0], prefixUpperBound(tokens[0]))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RegionCode
	for rows.Next() {
		var region model.RegionCode
		var level, components string
		if err := rows.Scan(&region.Code, &region.Name, &region.FullName, &region.ParentCode, &level, &components); err != nil {
			return nil, err
		}
		if !componentsMatch(strings.Split(components, " "), tokens) {
			continue
		}
		region.Level = model.RegionLevel(level)
		out = append(out, region)
	}
	return out, rows.Err()
}

func (s *Store) CountRegions(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM regions`).Scan(&count)
	return count, err
}

func (s *Store) queryRegions(ctx context.Context, where string, args ...any) ([]model.RegionCode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, name, full_name, parent_code, level FROM regions `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RegionCode
	for rows.Next() {
		var region model.RegionCode
		var level string
		if err := rows.Scan(&region.Code, &region.Name, &region.FullName, &region.ParentCode, &level); err != nil {
			return nil, err
		}
		region.Level = model.RegionLevel(level)
		out = append(out, region)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}

func componentsMatch(components, tokens []string) bool {
	if len(components) != len(tokens) {
		return false
	}
	for i, token := range tokens {
		if !strings.HasPrefix(components[i], token) {
			return false
		}
	}
	return true
}

// prefixUpperBound returns the smallest string greater than every string
// starting with prefix under binary collation.
func prefixUpperBound(prefix string) string {
	return prefix + string(utf8.MaxRune)
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS regions (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			full_name TEXT NOT NULL,
			parent_code TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL,
			norm_name TEXT NOT NULL,
			norm_full TEXT NOT NULL,
			components TEXT NOT NULL,
			depth INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_regions_norm_name ON regions (norm_name);`,
		`CREATE INDEX IF NOT EXISTS idx_regions_norm_full ON regions (norm_full);`,
		`CREATE INDEX IF NOT EXISTS idx_regions_components ON regions (depth, components);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}

var _ store.RegionIndex = (*Store)(nil)
