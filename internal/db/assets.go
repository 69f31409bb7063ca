package db

import (
	"encoding/json"
	"fmt"
	"time"
)

// Asset represents a scanned filesystem or service asset.
type Asset struct {
	ID       int64           `json:"id"`
	Path     string          `json:"path"`
	Type     string          `json:"type"`
	Source   string          `json:"source"`
	Meta     json.RawMessage `json:"meta"`
	LastSeen time.Time       `json:"last_seen"`
}

// Asset types
const (
	AssetRepo     = "repo"
	AssetDatabase = "database"
	AssetConfig   = "config"
	AssetService  = "service"
)

// UpsertAsset inserts an asset or refreshes an existing one keyed on path.
func (db *DB) UpsertAsset(a *Asset) error {
	meta := a.Meta
	if len(meta) == 0 {
		meta = json.RawMessage("{}")
	}

	_, err := db.Exec(`
		INSERT INTO assets (path, type, source, meta, last_seen)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			type = excluded.type,
			source = excluded.source,
			meta = excluded.meta,
			last_seen = CURRENT_TIMESTAMP
	`, a.Path, a.Type, a.Source, string(meta))
	if err != nil {
		return fmt.Errorf("upsert asset: %w", err)
	}
	return nil
}

// ListAssets returns assets, optionally filtered by type, most recently seen
// first.
func (db *DB) ListAssets(assetType string) ([]*Asset, error) {
	query := `SELECT id, path, type, source, meta, last_seen FROM assets ORDER BY last_seen DESC, id DESC`
	args := []any{}
	if assetType != "" {
		query = `SELECT id, path, type, source, meta, last_seen FROM assets WHERE type = ? ORDER BY last_seen DESC, id DESC`
		args = append(args, assetType)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		a := &Asset{}
		var meta string
		if err := rows.Scan(&a.ID, &a.Path, &a.Type, &a.Source, &meta, &a.LastSeen); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		a.Meta = json.RawMessage(meta)
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
