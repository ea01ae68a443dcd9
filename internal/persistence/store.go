package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cityforge/server/internal/compression"
	"github.com/cityforge/server/internal/world"
)

// SlotInfo describes one named save slot.
type SlotInfo struct {
	Name    string    `json:"name"`
	SavedAt time.Time `json:"saved_at"`
	Roads   int       `json:"roads"`
	Zones   int       `json:"zones"`
	Bytes   int       `json:"bytes"`
}

// Store keeps named save slots in an embedded sqlite database. Each slot
// holds one zstd-compressed JSON document.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the slot database at path.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS save_slots (
			name     TEXT PRIMARY KEY,
			saved_at TEXT NOT NULL,
			roads    INTEGER NOT NULL,
			zones    INTEGER NOT NULL,
			data     BLOB NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (st *Store) Close() error {
	return st.db.Close()
}

// SaveSlot stores the world under a slot name, replacing any previous
// contents of that slot.
func (st *Store) SaveSlot(ctx context.Context, name string, s *world.State) error {
	if name == "" {
		return fmt.Errorf("slot name must not be empty")
	}
	data, err := Marshal(Snapshot(s))
	if err != nil {
		return err
	}
	blob, err := compression.Compress(data)
	if err != nil {
		return fmt.Errorf("compressing slot %s: %w", name, err)
	}
	_, err = st.db.ExecContext(ctx,
		`INSERT INTO save_slots (name, saved_at, roads, zones, data)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   saved_at = excluded.saved_at,
		   roads    = excluded.roads,
		   zones    = excluded.zones,
		   data     = excluded.data`,
		name, time.Now().UTC().Format(time.RFC3339), len(s.Roads), len(s.Zones), blob)
	if err != nil {
		return fmt.Errorf("writing slot %s: %w", name, err)
	}
	return nil
}

// LoadSlot restores the world stored under a slot name.
func (st *Store) LoadSlot(ctx context.Context, name string) (*world.State, error) {
	var blob []byte
	err := st.db.QueryRowContext(ctx,
		"SELECT data FROM save_slots WHERE name = ?", name).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("slot %s not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading slot %s: %w", name, err)
	}
	data, err := compression.Decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("decompressing slot %s: %w", name, err)
	}
	doc, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("parsing slot %s: %w", name, err)
	}
	return Restore(doc)
}

// DeleteSlot removes a slot; deleting a missing slot is not an error.
func (st *Store) DeleteSlot(ctx context.Context, name string) error {
	if _, err := st.db.ExecContext(ctx,
		"DELETE FROM save_slots WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting slot %s: %w", name, err)
	}
	return nil
}

// ListSlots enumerates slots newest first.
func (st *Store) ListSlots(ctx context.Context) ([]SlotInfo, error) {
	rows, err := st.db.QueryContext(ctx,
		`SELECT name, saved_at, roads, zones, length(data)
		 FROM save_slots ORDER BY saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing slots: %w", err)
	}
	defer rows.Close()

	var out []SlotInfo
	for rows.Next() {
		var info SlotInfo
		var savedAt string
		if err := rows.Scan(&info.Name, &savedAt, &info.Roads, &info.Zones, &info.Bytes); err != nil {
			return nil, fmt.Errorf("scanning slot row: %w", err)
		}
		if ts, perr := time.Parse(time.RFC3339, savedAt); perr == nil {
			info.SavedAt = ts
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating slots: %w", err)
	}
	return out, nil
}
