package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"video-vault/internal/logging"
)

// ErrInvalidName is returned for stored names that are empty, contain
// path separators or traversal sequences, or would otherwise resolve
// outside the upload root.
var ErrInvalidName = errors.New("invalid stored name")

// Store manages video artifacts inside a single upload root.
type Store struct {
	root string
}

// New creates a Store rooted at dir. The directory must already exist;
// startup creates it and treats failure as fatal.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload root: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("upload root unavailable: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("upload root is not a directory: %s", abs)
	}

	return &Store{root: abs}, nil
}

// Root returns the absolute upload root.
func (s *Store) Root() string {
	return s.root
}

// Resolve maps a stored name to an absolute path inside the upload root.
// Stored names are single path components; anything containing a
// separator, a traversal sequence or absolute-path syntax is rejected
// before the join so a corrupted record can never reach outside the root.
func (s *Store) Resolve(storedName string) (string, error) {
	if storedName == "" {
		return "", ErrInvalidName
	}
	if strings.ContainsAny(storedName, `/\`) || storedName != filepath.Base(storedName) {
		return "", ErrInvalidName
	}
	if storedName == "." || storedName == ".." {
		return "", ErrInvalidName
	}

	path := filepath.Join(s.root, storedName)

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, s.root+string(os.PathSeparator)) {
		return "", ErrInvalidName
	}

	return abs, nil
}

// Sanitize reduces an uploaded filename to a safe single path component:
// path prefixes are stripped and runes unsafe for the filesystem are
// replaced. The result is display-safe but still not used verbatim as a
// stored name (see UniqueName).
func Sanitize(name string) string {
	// Strip any directory part, regardless of client OS separator
	if idx := strings.LastIndexAny(name, `/\`); idx != -1 {
		name = name[idx+1:]
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	sanitized := strings.Trim(b.String(), ".")
	return sanitized
}

// UniqueName generates a collision-resistant stored name carrying the
// given extension (without dot). Random tokens instead of the sanitized
// original name rule out the overwrite-on-collision failure mode.
func UniqueName(ext string) string {
	return uuid.NewString() + "." + strings.ToLower(ext)
}

// Save writes the artifact under the given stored name and returns the
// number of bytes written. O_EXCL makes an unexpected name collision an
// error instead of a silent truncation.
func (s *Store) Save(storedName string, r io.Reader) (int64, error) {
	path, err := s.Resolve(storedName)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create artifact: %w", err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		if rmErr := os.Remove(path); rmErr != nil {
			logging.Warn("failed to remove partial artifact %s: %v", path, rmErr)
		}
		return 0, fmt.Errorf("failed to write artifact: %w", err)
	}

	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to close artifact: %w", err)
	}

	return n, nil
}

// Remove deletes an artifact. A missing file is not an error: delete is
// idempotent and metadata cleanup must proceed regardless.
func (s *Store) Remove(storedName string) error {
	path, err := s.Resolve(storedName)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact: %w", err)
	}
	return nil
}

// Exists reports whether an artifact is present under the root.
func (s *Store) Exists(storedName string) bool {
	path, err := s.Resolve(storedName)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
