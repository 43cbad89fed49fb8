package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLite persists records in a single-file database.
type SQLite struct {
	sqlDB *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id     INTEGER PRIMARY KEY,
	record BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS revealed (
	game_id INTEGER NOT NULL,
	owner   TEXT    NOT NULL,
	cell    INTEGER NOT NULL,
	PRIMARY KEY (game_id, owner, cell)
);
`

// Open opens a SQLite store and ensures the schema exists.
func Open(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{sqlDB: sqlDB}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLite) SaveGame(id uint64, record []byte) error {
	_, err := s.sqlDB.Exec(
		`INSERT INTO games (id, record) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET record = excluded.record`,
		int64(id), record,
	)
	if err != nil {
		return fmt.Errorf("save game %d: %w", id, err)
	}
	return nil
}

func (s *SQLite) MarkRevealed(gameID uint64, owner string, cell uint8) error {
	_, err := s.sqlDB.Exec(
		`INSERT OR IGNORE INTO revealed (game_id, owner, cell) VALUES (?, ?, ?)`,
		int64(gameID), owner, int64(cell),
	)
	if err != nil {
		return fmt.Errorf("mark revealed: %w", err)
	}
	return nil
}

func (s *SQLite) LoadGames() ([]GameRecord, error) {
	rows, err := s.sqlDB.Query(`SELECT id, record FROM games ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}
	defer rows.Close()

	var out []GameRecord
	for rows.Next() {
		var id int64
		var rec []byte
		if err := rows.Scan(&id, &rec); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		out = append(out, GameRecord{ID: uint64(id), Data: rec})
	}
	return out, rows.Err()
}

func (s *SQLite) LoadRevealed() ([]RevealedMark, error) {
	rows, err := s.sqlDB.Query(`SELECT game_id, owner, cell FROM revealed`)
	if err != nil {
		return nil, fmt.Errorf("load revealed: %w", err)
	}
	defer rows.Close()

	var out []RevealedMark
	for rows.Next() {
		var gameID, cell int64
		var owner string
		if err := rows.Scan(&gameID, &owner, &cell); err != nil {
			return nil, fmt.Errorf("scan revealed: %w", err)
		}
		out = append(out, RevealedMark{GameID: uint64(gameID), Owner: owner, Cell: uint8(cell)})
	}
	return out, rows.Err()
}
