package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clawos/internal/kerneldomain"
)

func (s *Store) UpsertConnection(ctx context.Context, c kerneldomain.Connection) error {
	var lastTested any
	if c.LastTestedAt != nil {
		lastTested = c.LastTestedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (provider, encrypted_secret, status, last_tested_at, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider) DO UPDATE SET
			encrypted_secret = excluded.encrypted_secret,
			status = excluded.status,
			last_tested_at = excluded.last_tested_at,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
	`, c.Provider, c.EncryptedSecret, c.Status, lastTested, c.LastError, nowRFC3339())
	return err
}

func (s *Store) GetConnection(ctx context.Context, provider string) (kerneldomain.Connection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT provider, encrypted_secret, status, last_tested_at, last_error, updated_at
		FROM connections WHERE provider = ?
	`, provider)
	var c kerneldomain.Connection
	var status, updated string
	var lastTested sql.NullString
	if err := row.Scan(&c.Provider, &c.EncryptedSecret, &status, &lastTested, &c.LastError, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Connection{}, sql.ErrNoRows
		}
		return kerneldomain.Connection{}, err
	}
	c.Status = status
	c.UpdatedAt = parseTimeOrZero(updated)
	if lastTested.Valid {
		t := parseTimeOrZero(lastTested.String)
		c.LastTestedAt = &t
	}
	return c, nil
}

// DeleteConnection removes a provider's stored credential entirely.
func (s *Store) DeleteConnection(ctx context.Context, provider string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE provider = ?`, provider)
	return err
}

func (s *Store) ListConnections(ctx context.Context) ([]kerneldomain.Connection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, encrypted_secret, status, last_tested_at, last_error, updated_at FROM connections
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kerneldomain.Connection
	for rows.Next() {
		var c kerneldomain.Connection
		var status, updated string
		var lastTested sql.NullString
		if err := rows.Scan(&c.Provider, &c.EncryptedSecret, &status, &lastTested, &c.LastError, &updated); err != nil {
			return nil, err
		}
		c.Status = status
		c.UpdatedAt = parseTimeOrZero(updated)
		if lastTested.Valid {
			t := parseTimeOrZero(lastTested.String)
			c.LastTestedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
