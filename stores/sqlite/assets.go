package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/PhuocnhQn/photo-frame-editor/core"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type assetStore struct {
	db *sql.DB
}

// NewAssetStore opens (or creates) the SQLite database at dataSourceName.
func NewAssetStore(dataSourceName string) core.AssetStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}
	// A single connection keeps ":memory:" databases consistent across calls.
	db.SetMaxOpenConns(1)

	assetsTable := `
	CREATE TABLE IF NOT EXISTS assets (
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (kind, name)
	);`
	if _, err = db.Exec(assetsTable); err != nil {
		log.Fatalf("failed to create assets table: %v", err)
	}

	return &assetStore{db}
}

func (s *assetStore) Put(ctx context.Context, kind core.AssetKind, name string, data []byte) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown asset kind %q", kind)
	}
	log := logrus.WithFields(logrus.Fields{
		"kind":        string(kind),
		"name":        name,
		"data_length": len(data),
	})

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (kind, name, data, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(kind, name) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		string(kind), name, data, time.Now().UnixMilli())
	if err != nil {
		log.WithError(err).Error("Failed to store asset")
		return err
	}
	log.Debug("Asset stored")
	return nil
}

func (s *assetStore) Get(ctx context.Context, kind core.AssetKind, name string) (*core.Asset, error) {
	log := logrus.WithFields(logrus.Fields{"kind": string(kind), "name": name})

	var (
		data      []byte
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, "SELECT data, created_at FROM assets WHERE kind = ? AND name = ?", string(kind), name).Scan(&data, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Asset not found")
			return nil, fmt.Errorf("%s/%s: %w", kind, name, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve asset")
		return nil, err
	}
	return &core.Asset{Kind: kind, Name: name, Data: data, CreatedAt: time.UnixMilli(createdAt)}, nil
}

func (s *assetStore) List(ctx context.Context, kind core.AssetKind) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM assets WHERE kind = ? ORDER BY name", string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *assetStore) Delete(ctx context.Context, kind core.AssetKind, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM assets WHERE kind = ? AND name = ?", string(kind), name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", kind, name, core.ErrNotFound)
	}
	return nil
}
