package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/seantiz/keeper/internal/model"
)

const assetColumns = "key, type, name, hostname, os, paused, archived, created_at"

func scanAsset(row scanner) (*model.Asset, error) {
	a := &model.Asset{}
	err := row.Scan(&a.Key, &a.Type, &a.Name, &a.Hostname, &a.OS, &a.Paused, &a.Archived, &a.CreatedAt)
	return a, err
}

// CreateAsset inserts a new asset. Returns ErrAlreadyExists if the key is taken.
func (s *SQLiteStore) CreateAsset(ctx context.Context, a *model.Asset) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (`+assetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO NOTHING`,
		a.Key, a.Type, a.Name, a.Hostname, a.OS, a.Paused, a.Archived, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return expectOneRow(result, ErrAlreadyExists)
}

// GetAsset retrieves an asset by key.
func (s *SQLiteStore) GetAsset(ctx context.Context, key string) (*model.Asset, error) {
	a, err := scanAsset(s.db.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE key = ?`, key,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

// ListAssets returns assets ordered by key. Archived assets are included only
// when includeArchived is set.
func (s *SQLiteStore) ListAssets(ctx context.Context, includeArchived bool) ([]*model.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	query += ` ORDER BY key`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	assets := []*model.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return assets, nil
}

// UpdateAssetFlags sets the paused and archived flags of an asset.
func (s *SQLiteStore) UpdateAssetFlags(ctx context.Context, key string, paused, archived bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE assets SET paused = ?, archived = ? WHERE key = ?", paused, archived, key,
	)
	if err != nil {
		return fmt.Errorf("update asset flags: %w", err)
	}
	return expectOneRow(result, ErrNotFound)
}

// DeleteAsset removes an asset together with its points and screenshots.
func (s *SQLiteStore) DeleteAsset(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM assets WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if err := expectOneRow(result, ErrNotFound); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM recovery_points WHERE asset_key = ?", key); err != nil {
		return fmt.Errorf("delete asset points: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM screenshots WHERE asset_key = ?", key); err != nil {
		return fmt.Errorf("delete asset screenshots: %w", err)
	}

	return tx.Commit()
}

const pointColumns = "asset_key, epoch, size_bytes, offsite, locked, created_at"

func scanPoint(row scanner) (model.RecoveryPoint, error) {
	var p model.RecoveryPoint
	err := row.Scan(&p.AssetKey, &p.Epoch, &p.SizeBytes, &p.Offsite, &p.Locked, &p.CreatedAt)
	return p, err
}

// UpsertPoint inserts a recovery point or refreshes the size of an existing
// one. The offsite and locked flags of an existing point can be set but never
// cleared here.
func (s *SQLiteStore) UpsertPoint(ctx context.Context, p *model.RecoveryPoint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recovery_points (`+pointColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (asset_key, epoch) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			offsite = MAX(offsite, excluded.offsite),
			locked = MAX(locked, excluded.locked)`,
		p.AssetKey, p.Epoch, p.SizeBytes, p.Offsite, p.Locked, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert point: %w", err)
	}
	return nil
}

// GetPoint retrieves one recovery point.
func (s *SQLiteStore) GetPoint(ctx context.Context, assetKey string, epoch int64) (*model.RecoveryPoint, error) {
	p, err := scanPoint(s.db.QueryRowContext(ctx,
		`SELECT `+pointColumns+` FROM recovery_points WHERE asset_key = ? AND epoch = ?`,
		assetKey, epoch,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get point: %w", err)
	}
	return &p, nil
}

// ListPoints returns an asset's recovery points by ascending epoch.
func (s *SQLiteStore) ListPoints(ctx context.Context, assetKey string) ([]model.RecoveryPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pointColumns+` FROM recovery_points WHERE asset_key = ? ORDER BY epoch`,
		assetKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}
	defer rows.Close()

	points := []model.RecoveryPoint{}
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate points: %w", err)
	}
	return points, nil
}

// MarkPointOffsite flags one existing recovery point as replicated and leaves
// its other columns alone. Returns ErrNotFound if the point is gone.
func (s *SQLiteStore) MarkPointOffsite(ctx context.Context, assetKey string, epoch int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE recovery_points SET offsite = 1 WHERE asset_key = ? AND epoch = ?", assetKey, epoch,
	)
	if err != nil {
		return fmt.Errorf("mark point offsite: %w", err)
	}
	return expectOneRow(result, ErrNotFound)
}

// DeletePoint removes one recovery point.
func (s *SQLiteStore) DeletePoint(ctx context.Context, assetKey string, epoch int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM recovery_points WHERE asset_key = ? AND epoch = ?", assetKey, epoch,
	)
	if err != nil {
		return fmt.Errorf("delete point: %w", err)
	}
	return expectOneRow(result, ErrNotFound)
}

const screenshotColumns = "asset_key, snapshot_epoch, status, image_path, error_text, taken_at"

// UpsertScreenshot stores the verification result of a point, replacing an
// earlier result for the same point.
func (s *SQLiteStore) UpsertScreenshot(ctx context.Context, sc *model.Screenshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO screenshots (`+screenshotColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (asset_key, snapshot_epoch) DO UPDATE SET
			status = excluded.status,
			image_path = excluded.image_path,
			error_text = excluded.error_text,
			taken_at = excluded.taken_at`,
		sc.AssetKey, sc.SnapshotEpoch, sc.Status, sc.ImagePath, sc.ErrorText, sc.TakenAt,
	)
	if err != nil {
		return fmt.Errorf("upsert screenshot: %w", err)
	}
	return nil
}

// ListScreenshots returns an asset's screenshots by ascending snapshot epoch.
func (s *SQLiteStore) ListScreenshots(ctx context.Context, assetKey string) ([]model.Screenshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+screenshotColumns+` FROM screenshots WHERE asset_key = ? ORDER BY snapshot_epoch`,
		assetKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list screenshots: %w", err)
	}
	defer rows.Close()

	shots := []model.Screenshot{}
	for rows.Next() {
		var sc model.Screenshot
		if err := rows.Scan(&sc.AssetKey, &sc.SnapshotEpoch, &sc.Status, &sc.ImagePath, &sc.ErrorText, &sc.TakenAt); err != nil {
			return nil, fmt.Errorf("scan screenshot: %w", err)
		}
		shots = append(shots, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate screenshots: %w", err)
	}
	return shots, nil
}

// DeleteScreenshot removes the screenshot of one point.
func (s *SQLiteStore) DeleteScreenshot(ctx context.Context, assetKey string, epoch int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM screenshots WHERE asset_key = ? AND snapshot_epoch = ?", assetKey, epoch,
	)
	if err != nil {
		return fmt.Errorf("delete screenshot: %w", err)
	}
	return expectOneRow(result, ErrNotFound)
}

func expectOneRow(result sql.Result, otherwise error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return otherwise
	}
	return nil
}
