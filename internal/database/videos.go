package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"video-vault/internal/metrics"
)

// CreateVideo commits a new video record and returns it with ID and
// CreatedAt filled in. The record becomes visible to readers only after
// the insert succeeds; callers persist the artifact first so storedName
// never points at a missing file.
func (d *Database) CreateVideo(ctx context.Context, v *Video) (*Video, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_video", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now()
	result, err := d.db.ExecContext(ctx,
		`INSERT INTO videos (owner_id, stored_name, original_name, title, description, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.OwnerID, v.StoredName, v.OriginalName, v.Title, v.Description, v.Size, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create video record: %w", err)
	}

	id, _ := result.LastInsertId()

	committed := *v
	committed.ID = id
	committed.CreatedAt = now
	return &committed, nil
}

// GetVideo retrieves a single video by id. Returns ErrNotFound when the
// record does not exist.
func (d *Database) GetVideo(ctx context.Context, id int64) (*Video, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_video", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	v, err := scanVideo(d.db.QueryRowContext(ctx,
		`SELECT id, owner_id, stored_name, original_name, title, COALESCE(description, ''), size, created_at
		 FROM videos WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load video: %w", err)
	}
	return v, nil
}

// ListVideos returns the owner's videos, newest first. A non-empty query
// filters case-insensitively on title and original name.
func (d *Database) ListVideos(ctx context.Context, ownerID int64, query string) ([]*Video, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_videos", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	sqlQuery := `SELECT id, owner_id, stored_name, original_name, title, COALESCE(description, ''), size, created_at
		 FROM videos WHERE owner_id = ?`
	args := []interface{}{ownerID}

	if q := strings.TrimSpace(query); q != "" {
		like := "%" + escapeLike(q) + "%"
		sqlQuery += ` AND (title LIKE ? ESCAPE '\' OR original_name LIKE ? ESCAPE '\')`
		args = append(args, like, like)
	}

	sqlQuery += " ORDER BY created_at DESC, id DESC"

	rows, err := d.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	videos := []*Video{}
	for rows.Next() {
		v, scanErr := scanVideo(rows)
		if scanErr != nil {
			err = scanErr
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, v)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return videos, nil
}

// UpdateVideo updates the editable fields (title, description) of a
// video. All other fields are write-once. Returns ErrNotFound if the
// record no longer exists.
func (d *Database) UpdateVideo(ctx context.Context, id int64, title, description string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_video", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx,
		"UPDATE videos SET title = ?, description = ? WHERE id = ?",
		title, description, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

// DeleteVideo removes a video record. Returns ErrNotFound when the
// record is already gone, which makes delete idempotent for callers.
func (d *Database) DeleteVideo(ctx context.Context, id int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_video", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM videos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

// DeleteUser removes an account. The videos and sessions rows go with it
// via foreign-key cascade; the ids and stored names of the deleted
// videos are returned so the caller can unlink the on-disk artifacts.
func (d *Database) DeleteUser(ctx context.Context, userID int64) ([]*Video, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_user", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT id, stored_name FROM videos WHERE owner_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned videos: %w", err)
	}

	var orphaned []*Video
	for rows.Next() {
		var v Video
		if scanErr := rows.Scan(&v.ID, &v.StoredName); scanErr != nil {
			rows.Close()
			err = scanErr
			return nil, err
		}
		orphaned = append(orphaned, &v)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	result, err := d.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		err = ErrNotFound
		return nil, err
	}

	// Sessions went with the user via cascade
	d.updateSessionGauge(ctx)

	return orphaned, nil
}

// CountVideos returns the total number of stored video records and
// refreshes the corresponding gauge.
func (d *Database) CountVideos(ctx context.Context) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var count int64
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM videos").Scan(&count)
	if err == nil {
		metrics.VideosStored.Set(float64(count))
	}
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVideo(row rowScanner) (*Video, error) {
	var v Video
	var createdAt int64
	err := row.Scan(&v.ID, &v.OwnerID, &v.StoredName, &v.OriginalName,
		&v.Title, &v.Description, &v.Size, &createdAt)
	if err != nil {
		return nil, err
	}
	v.CreatedAt = time.Unix(createdAt, 0)
	return &v, nil
}

// escapeLike escapes LIKE wildcards so user queries match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
