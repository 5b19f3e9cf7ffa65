// Package store persists fleet command state as compressed, hash-chained
// snapshots in SQLite.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"

	"github.com/nstehr/armada/armada-core/model"
)

// GenesisHash seeds the hash chain of an empty store.
const GenesisHash = "armada-genesis"

var (
	ErrNoSnapshot  = errors.New("no snapshot saved")
	ErrChainBroken = errors.New("snapshot hash chain broken")
)

const schema = `
CREATE TABLE IF NOT EXISTS command_snapshots (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_at   REAL    NOT NULL,
	fleets     INTEGER NOT NULL,
	state_blob BLOB    NOT NULL,
	prev_hash  TEXT    NOT NULL,
	final_hash TEXT    NOT NULL
);`

// Snapshot describes one saved row without its payload.
type Snapshot struct {
	ID       int64
	TakenAt  float64
	Fleets   int
	Size     int
	PrevHash string
	Hash     string
}

// Store wraps the snapshot database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the snapshot database at path. Use
// ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		slog.Warn("could not enable WAL", "path", path, "error", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save writes the given command states as a new snapshot chained to the
// previous one.
func (s *Store) Save(ctx context.Context, states []*model.FleetCommandState, now float64) (Snapshot, error) {
	raw, err := json.Marshal(states)
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal states: %w", err)
	}
	compressed, err := compress(raw)
	if err != nil {
		return Snapshot{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	prev := GenesisHash
	err = tx.QueryRowContext(ctx, "SELECT final_hash FROM command_snapshots ORDER BY id DESC LIMIT 1").Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("read previous hash: %w", err)
	}

	snap := Snapshot{
		TakenAt:  now,
		Fleets:   len(states),
		Size:     len(compressed),
		PrevHash: prev,
		Hash:     chainHash(compressed, prev),
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO command_snapshots (taken_at, fleets, state_blob, prev_hash, final_hash) VALUES (?, ?, ?, ?, ?)",
		snap.TakenAt, snap.Fleets, compressed, snap.PrevHash, snap.Hash)
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	if snap.ID, err = res.LastInsertId(); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("commit: %w", err)
	}

	slog.Info("command snapshot saved", "id", snap.ID, "fleets", snap.Fleets, "bytes", snap.Size, "hash", snap.Hash)
	return snap, nil
}

// Latest loads the most recent snapshot.
func (s *Store) Latest(ctx context.Context) ([]*model.FleetCommandState, Snapshot, error) {
	var (
		snap Snapshot
		blob []byte
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, taken_at, fleets, state_blob, prev_hash, final_hash FROM command_snapshots ORDER BY id DESC LIMIT 1").
		Scan(&snap.ID, &snap.TakenAt, &snap.Fleets, &blob, &snap.PrevHash, &snap.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	snap.Size = len(blob)
	if got := chainHash(blob, snap.PrevHash); got != snap.Hash {
		return nil, snap, fmt.Errorf("snapshot %d: %w", snap.ID, ErrChainBroken)
	}

	raw, err := decompress(blob)
	if err != nil {
		return nil, snap, err
	}
	var states []*model.FleetCommandState
	if err := json.Unmarshal(raw, &states); err != nil {
		return nil, snap, fmt.Errorf("unmarshal states: %w", err)
	}
	return states, snap, nil
}

// Verify walks the whole chain and reports the first row whose hash or
// link does not match.
func (s *Store) Verify(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, state_blob, prev_hash, final_hash FROM command_snapshots ORDER BY id ASC")
	if err != nil {
		return fmt.Errorf("read snapshots: %w", err)
	}
	defer rows.Close()

	expect := ""
	for rows.Next() {
		var (
			id         int64
			blob       []byte
			prev, hash string
		)
		if err := rows.Scan(&id, &blob, &prev, &hash); err != nil {
			return fmt.Errorf("scan snapshot: %w", err)
		}
		if expect != "" && prev != expect {
			return fmt.Errorf("snapshot %d links to %s, want %s: %w", id, prev, expect, ErrChainBroken)
		}
		if chainHash(blob, prev) != hash {
			return fmt.Errorf("snapshot %d: %w", id, ErrChainBroken)
		}
		expect = hash
	}
	return rows.Err()
}

// Prune deletes all but the newest keep snapshots. The oldest kept row
// still records its predecessor's hash, so Verify keeps working.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM command_snapshots WHERE id NOT IN (SELECT id FROM command_snapshots ORDER BY id DESC LIMIT ?)", keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

func compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(src []byte) ([]byte, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(src)))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return out, nil
}

func chainHash(blob []byte, prev string) string {
	h := blake3.New(32, nil)
	h.Write(blob)
	h.Write([]byte(prev))
	return hex.EncodeToString(h.Sum(nil))
}
