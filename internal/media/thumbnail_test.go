package media

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

// writePoster encodes a real JPEG so the resize path runs end to end.
func writePoster(t *testing.T, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "poster.jpg")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create poster: %v", err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatalf("Failed to encode poster: %v", err)
	}
	return path
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	g := NewThumbnailGenerator(dir, true)

	poster := writePoster(t, 1920, 1080)
	if err := g.Generate(poster, 42); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	f, err := os.Open(g.Path(42))
	if err != nil {
		t.Fatalf("Thumbnail missing: %v", err)
	}
	defer f.Close()

	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		t.Fatalf("Thumbnail is not a valid JPEG: %v", err)
	}
	if cfg.Width > 320 || cfg.Height > 180 {
		t.Errorf("Thumbnail is %dx%d, want at most 320x180", cfg.Width, cfg.Height)
	}
}

func TestGeneratePreservesAspectRatio(t *testing.T) {
	g := NewThumbnailGenerator(t.TempDir(), true)

	// Portrait poster must be bounded by height, not stretched
	poster := writePoster(t, 1080, 1920)
	if err := g.Generate(poster, 7); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	f, err := os.Open(g.Path(7))
	if err != nil {
		t.Fatalf("Thumbnail missing: %v", err)
	}
	defer f.Close()

	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		t.Fatalf("Thumbnail is not a valid JPEG: %v", err)
	}
	if cfg.Height != 180 {
		t.Errorf("Portrait thumbnail height = %d, want 180", cfg.Height)
	}
	if cfg.Width >= cfg.Height {
		t.Errorf("Portrait thumbnail is %dx%d, aspect ratio lost", cfg.Width, cfg.Height)
	}
}

func TestGenerateBadPoster(t *testing.T) {
	g := NewThumbnailGenerator(t.TempDir(), true)

	path := filepath.Join(t.TempDir(), "not-a-jpeg.jpg")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := g.Generate(path, 1); err == nil {
		t.Error("Generate should fail on a corrupt poster frame")
	}
}

func TestDisabledGeneratorIsNoOp(t *testing.T) {
	dir := t.TempDir()
	g := NewThumbnailGenerator(dir, false)

	if g.Enabled() {
		t.Error("Enabled() = true for disabled generator")
	}

	poster := writePoster(t, 320, 180)
	if err := g.Generate(poster, 1); err != nil {
		t.Errorf("Disabled Generate returned error: %v", err)
	}
	if _, err := os.Stat(g.Path(1)); !os.IsNotExist(err) {
		t.Error("Disabled generator wrote a thumbnail")
	}
}

func TestRemove(t *testing.T) {
	g := NewThumbnailGenerator(t.TempDir(), true)

	poster := writePoster(t, 320, 180)
	if err := g.Generate(poster, 5); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	g.Remove(5)
	if _, err := os.Stat(g.Path(5)); !os.IsNotExist(err) {
		t.Error("Thumbnail still present after Remove")
	}

	// Removing a missing thumbnail must not panic or log errors
	g.Remove(5)
	g.Remove(9999)
}
