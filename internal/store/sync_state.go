package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetSyncState returns the last recorded cloud sync state, or the zero state
// if the device never synced.
func (s *SQLiteStore) GetSyncState(ctx context.Context) (SyncState, error) {
	var st SyncState
	err := s.db.QueryRowContext(ctx,
		"SELECT version, checksum, pulled_at, pushed_at FROM cloud_sync_state WHERE id = 1",
	).Scan(&st.Version, &st.Checksum, &st.PulledAt, &st.PushedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncState{}, nil
	}
	if err != nil {
		return SyncState{}, fmt.Errorf("get sync state: %w", err)
	}
	return st, nil
}

// PutSyncState replaces the recorded cloud sync state.
func (s *SQLiteStore) PutSyncState(ctx context.Context, st SyncState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cloud_sync_state (id, version, checksum, pulled_at, pushed_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			version = excluded.version,
			checksum = excluded.checksum,
			pulled_at = excluded.pulled_at,
			pushed_at = excluded.pushed_at`,
		st.Version, st.Checksum, st.PulledAt, st.PushedAt,
	)
	if err != nil {
		return fmt.Errorf("put sync state: %w", err)
	}
	return nil
}
