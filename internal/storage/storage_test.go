package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return s
}

func TestNewRequiresDirectory(t *testing.T) {
	t.Run("Missing directory", func(t *testing.T) {
		if _, err := New(filepath.Join(t.TempDir(), "missing")); err == nil {
			t.Error("Expected error for missing directory")
		}
	})

	t.Run("Regular file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
		if _, err := New(path); err == nil {
			t.Error("Expected error for non-directory root")
		}
	})
}

func TestResolveContainment(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name       string
		storedName string
		wantErr    bool
	}{
		{"Simple name", "abc123.mp4", false},
		{"Name with dots", "a.b.c.mp4", false},
		{"Empty", "", true},
		{"Dot", ".", true},
		{"Dot dot", "..", true},
		{"Traversal", "../escape.mp4", true},
		{"Deep traversal", "../../etc/passwd", true},
		{"Embedded traversal", "a/../../b.mp4", true},
		{"Forward slash", "sub/file.mp4", true},
		{"Backslash", `sub\file.mp4`, true},
		{"Absolute path", "/etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := store.Resolve(tt.storedName)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Resolve(%q) = %q, expected error", tt.storedName, path)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.storedName, err)
			}
			if !strings.HasPrefix(path, store.Root()+string(os.PathSeparator)) {
				t.Errorf("Resolve(%q) = %q, escapes root %q", tt.storedName, path, store.Root())
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Plain", "video.mp4", "video.mp4"},
		{"Spaces replaced", "my video.mp4", "my_video.mp4"},
		{"Unix path stripped", "/tmp/evil/clip.mov", "clip.mov"},
		{"Windows path stripped", `C:\Users\evil\clip.mov`, "clip.mov"},
		{"Traversal collapses", "../../etc/passwd", "passwd"},
		{"Leading dots trimmed", "..hidden.mp4", "hidden.mp4"},
		{"Special chars replaced", "a$b%c.mp4", "a_b_c.mp4"},
		{"Unicode replaced", "café.mp4", "caf_.mp4"},
		{"Only dots", "...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUniqueName(t *testing.T) {
	a := UniqueName("mp4")
	b := UniqueName("mp4")

	if a == b {
		t.Errorf("UniqueName produced duplicate names: %q", a)
	}
	if !strings.HasSuffix(a, ".mp4") {
		t.Errorf("UniqueName(\"mp4\") = %q, missing extension", a)
	}
	if !strings.HasSuffix(UniqueName("MOV"), ".mov") {
		t.Error("UniqueName should lowercase the extension")
	}
}

func TestSaveAndExists(t *testing.T) {
	store := newTestStore(t)

	n, err := store.Save("clip.mp4", strings.NewReader("fake video bytes"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if n != int64(len("fake video bytes")) {
		t.Errorf("Save returned %d bytes, want %d", n, len("fake video bytes"))
	}
	if !store.Exists("clip.mp4") {
		t.Error("Exists = false after Save")
	}
}

func TestSaveRefusesOverwrite(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Save("clip.mp4", strings.NewReader("first")); err != nil {
		t.Fatalf("First Save failed: %v", err)
	}
	if _, err := store.Save("clip.mp4", strings.NewReader("second")); err == nil {
		t.Fatal("Second Save with the same name should fail")
	}

	// The original content must be untouched
	data, err := os.ReadFile(filepath.Join(store.Root(), "clip.mp4"))
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("Artifact content = %q, want %q", data, "first")
	}
}

func TestSaveRejectsInvalidName(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Save("../escape.mp4", strings.NewReader("x")); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Save with traversal name: got %v, want ErrInvalidName", err)
	}
}

func TestRemoveIdempotent(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Save("clip.mp4", strings.NewReader("bytes")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Remove("clip.mp4"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if store.Exists("clip.mp4") {
		t.Error("Artifact still exists after Remove")
	}

	// Second remove of the same name is not an error
	if err := store.Remove("clip.mp4"); err != nil {
		t.Errorf("Second Remove returned error: %v", err)
	}
}
