package store

import (
	"context"
	"database/sql"
	"errors"

	"clawos/internal/kerneldomain"
)

func (s *Store) GetKernelState(ctx context.Context, key string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM kernel_state WHERE key = ?`, key)
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sql.ErrNoRows
		}
		return "", err
	}
	return v, nil
}

// SetKernelStateIfAbsent inserts a key/value row only if the key is not
// already present, returning the value that actually ended up stored
// (the caller's value on first boot, the pre-existing one otherwise).
// This makes master-key and recovery-hash bootstrap idempotent across
// restarts without a read-then-write race: a second process racing the
// same INSERT OR IGNORE loses and falls through to the read.
func (s *Store) SetKernelStateIfAbsent(ctx context.Context, key, value string) (string, error) {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO kernel_state (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return "", err
	}
	return s.GetKernelState(ctx, key)
}

func (s *Store) ConnectionsKey(ctx context.Context, generated string) (string, error) {
	return s.SetKernelStateIfAbsent(ctx, kerneldomain.KernelStateConnectionsKey, generated)
}

func (s *Store) RecoveryHash(ctx context.Context) (string, error) {
	return s.GetKernelState(ctx, kerneldomain.KernelStateRecoveryHash)
}

func (s *Store) SetRecoveryHash(ctx context.Context, hash string) (string, error) {
	return s.SetKernelStateIfAbsent(ctx, kerneldomain.KernelStateRecoveryHash, hash)
}
