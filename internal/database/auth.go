package database

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"video-vault/internal/logging"
	"video-vault/internal/metrics"
)

// DefaultSessionDuration is the length of time a session remains valid
// unless overridden via SetSessionDuration.
const DefaultSessionDuration = 7 * 24 * time.Hour

var sessionDuration = DefaultSessionDuration

// Auth errors distinguishable by callers.
var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidSession     = errors.New("invalid session")
)

// SetSessionDuration overrides the session lifetime. Durations below one
// minute are clamped to one minute.
func SetSessionDuration(d time.Duration) {
	if d < time.Minute {
		d = time.Minute
	}
	sessionDuration = d
}

// GetSessionDuration returns the configured session lifetime.
func GetSessionDuration() time.Duration {
	return sessionDuration
}

// CreateUser registers a new account with a bcrypt-hashed password.
func (d *Database) CreateUser(ctx context.Context, username, password string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_user", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	username = strings.TrimSpace(username)
	if username == "" {
		err = errors.New("username must not be empty")
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	result, err := d.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
		username, string(hash),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			err = ErrUsernameTaken
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, _ := result.LastInsertId()
	now := time.Now()
	return &User{
		ID:        id,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidatePassword checks username/password and returns the user if valid.
// Unknown usernames and wrong passwords are indistinguishable to callers.
func (d *Database) ValidatePassword(ctx context.Context, username, password string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("validate_password", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var user User
	var createdAt, updatedAt int64

	err = d.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at, updated_at FROM users WHERE username = ?",
		strings.TrimSpace(username),
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &createdAt, &updatedAt)

	if err != nil {
		err = ErrInvalidCredentials
		return nil, err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		err = ErrInvalidCredentials
		return nil, err
	}

	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpdatePassword replaces a user's password hash and invalidates all of
// that user's sessions.
func (d *Database) UpdatePassword(ctx context.Context, userID int64, newPassword string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_password", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	result, err := d.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = strftime('%s', 'now') WHERE id = ?",
		string(hash), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		err = ErrNotFound
		return err
	}

	if _, delErr := d.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID); delErr != nil {
		logging.Warn("failed to invalidate sessions for user %d: %v", userID, delErr)
	}

	return nil
}

// UpdatePasswordByName is UpdatePassword keyed by username (admin CLI).
func (d *Database) UpdatePasswordByName(ctx context.Context, username, newPassword string) error {
	user, err := d.GetUserByName(ctx, username)
	if err != nil {
		return err
	}
	return d.UpdatePassword(ctx, user.ID, newPassword)
}

// GetUserByName looks up a user by handle.
func (d *Database) GetUserByName(ctx context.Context, username string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_user", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var user User
	var createdAt, updatedAt int64

	err = d.db.QueryRowContext(ctx,
		"SELECT id, username, created_at, updated_at FROM users WHERE username = ?",
		strings.TrimSpace(username),
	).Scan(&user.ID, &user.Username, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// CountUsers returns the number of registered accounts.
func (d *Database) CountUsers(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// CreateSession creates a new session for a user. The raw token is
// returned to the client; only a SHA-256 hash is stored.
func (d *Database) CreateSession(ctx context.Context, userID int64) (*Session, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_session", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tokenBytes := make([]byte, 32)
	if _, err = rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	hash := sha256.Sum256(tokenBytes)
	tokenHash := hex.EncodeToString(hash[:])
	token := hex.EncodeToString(tokenBytes)

	expiresAt := time.Now().Add(sessionDuration)

	result, err := d.db.ExecContext(ctx,
		"INSERT INTO sessions (user_id, token, expires_at) VALUES (?, ?, ?)",
		userID, tokenHash, expiresAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	id, _ := result.LastInsertId()
	d.updateSessionGauge(ctx)

	return &Session{
		ID:        id,
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// ValidateSession checks a session token and returns its user.
func (d *Database) ValidateSession(ctx context.Context, token string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("validate_session", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tokenHash, err := hashToken(token)
	if err != nil {
		err = ErrInvalidSession
		return nil, err
	}

	var userID, expiresAt int64
	err = d.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM sessions WHERE token = ?",
		tokenHash,
	).Scan(&userID, &expiresAt)

	if err != nil {
		err = ErrInvalidSession
		return nil, err
	}

	if time.Now().Unix() > expiresAt {
		// Clean up in the background, validation must not block on it
		go func() {
			if delErr := d.deleteSessionByHash(context.Background(), tokenHash); delErr != nil {
				logging.Error("failed to delete expired session: %v", delErr)
			}
		}()
		err = ErrInvalidSession
		return nil, err
	}

	var user User
	var createdAt, updatedAt int64
	err = d.db.QueryRowContext(ctx,
		"SELECT id, username, created_at, updated_at FROM users WHERE id = ?",
		userID,
	).Scan(&user.ID, &user.Username, &createdAt, &updatedAt)

	if err != nil {
		err = ErrInvalidSession
		return nil, err
	}

	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// ExtendSession pushes a session's expiry out by the configured duration
// (sliding expiration).
func (d *Database) ExtendSession(ctx context.Context, token string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("extend_session", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tokenHash, err := hashToken(token)
	if err != nil {
		return ErrInvalidSession
	}

	_, err = d.db.ExecContext(ctx,
		"UPDATE sessions SET expires_at = ? WHERE token = ?",
		time.Now().Add(sessionDuration).Unix(), tokenHash,
	)
	return err
}

// DeleteSession removes a session by raw token.
func (d *Database) DeleteSession(ctx context.Context, token string) error {
	tokenHash, err := hashToken(token)
	if err != nil {
		return fmt.Errorf("invalid token format: %w", err)
	}
	return d.deleteSessionByHash(ctx, tokenHash)
}

func (d *Database) deleteSessionByHash(ctx context.Context, tokenHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", tokenHash)
	if err == nil {
		d.updateSessionGauge(ctx)
	}
	return err
}

// CleanExpiredSessions removes all expired sessions.
func (d *Database) CleanExpiredSessions() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("clean_expired_sessions", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", time.Now().Unix())
	if err == nil {
		d.updateSessionGauge(ctx)
	}
	return err
}

// updateSessionGauge refreshes the active-session gauge. Callers hold
// the write lock already.
func (d *Database) updateSessionGauge(ctx context.Context) {
	var count int64
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE expires_at > ?", time.Now().Unix(),
	).Scan(&count)
	if err != nil {
		logging.Debug("failed to count active sessions: %v", err)
		return
	}
	metrics.SessionsActive.Set(float64(count))
}

func hashToken(token string) (string, error) {
	tokenBytes, err := hex.DecodeString(token)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(tokenBytes)
	return hex.EncodeToString(hash[:]), nil
}
