package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GetCachedPlaylist returns a cached playlist body if it has not expired.
// A miss returns an empty body and no error.
func (s *Store) GetCachedPlaylist(ctx context.Context, url string) (string, error) {
	if s == nil || s.DB == nil {
		return "", errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key := strings.TrimSpace(url)
	if key == "" {
		return "", errors.New("cache url is required")
	}

	var body string
	row := s.DB.QueryRowContext(ctx, `
		SELECT body
		FROM playlist_cache
		WHERE url = ? AND expires_at > ?
	`, key, time.Now().UTC().Unix())

	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("fetch cached playlist: %w", err)
	}

	return body, nil
}

// SetCachedPlaylist stores a playlist body with a TTL.
func (s *Store) SetCachedPlaylist(ctx context.Context, url, body string, ttl time.Duration) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if ttl <= 0 || body == "" {
		return nil
	}

	key := strings.TrimSpace(url)
	if key == "" {
		return errors.New("cache url is required")
	}

	now := time.Now().UTC()

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO playlist_cache (url, body, fetched_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			body = excluded.body,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at
	`, key, body, now.Unix(), now.Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("store cached playlist: %w", err)
	}

	return nil
}

// PruneExpired removes cache rows whose TTL has elapsed.
func (s *Store) PruneExpired(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM playlist_cache WHERE expires_at <= ?`, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("prune playlist cache: %w", err)
	}
	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return pruned, nil
}
