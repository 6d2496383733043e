package media

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"video-vault/internal/logging"
)

// Thumbnail dimensions match the dashboard grid cells.
const (
	thumbWidth  = 320
	thumbHeight = 180
)

// ThumbnailGenerator turns poster frames into fixed-size JPEG thumbnails
// under a cache directory, keyed by video id.
type ThumbnailGenerator struct {
	dir     string
	enabled bool
}

// NewThumbnailGenerator creates a generator writing into dir. When
// disabled (cache dir unusable at startup) all operations are no-ops.
func NewThumbnailGenerator(dir string, enabled bool) *ThumbnailGenerator {
	return &ThumbnailGenerator{dir: dir, enabled: enabled}
}

// Enabled reports whether thumbnail generation is available.
func (g *ThumbnailGenerator) Enabled() bool {
	return g.enabled
}

// Path returns the thumbnail location for a video id.
func (g *ThumbnailGenerator) Path(videoID int64) string {
	return filepath.Join(g.dir, fmt.Sprintf("%d.jpg", videoID))
}

// Generate resizes a poster frame into the cached thumbnail for videoID.
func (g *ThumbnailGenerator) Generate(posterPath string, videoID int64) error {
	if !g.enabled {
		return nil
	}

	img, err := imaging.Open(posterPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to open poster frame: %w", err)
	}

	thumb := imaging.Fit(img, thumbWidth, thumbHeight, imaging.Lanczos)

	if err := imaging.Save(thumb, g.Path(videoID), imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("failed to save thumbnail: %w", err)
	}

	logging.Debug("Thumbnail generated for video %d", videoID)
	return nil
}

// Remove deletes the cached thumbnail for a video id. Missing files are
// fine; thumbnails are cache, not state.
func (g *ThumbnailGenerator) Remove(videoID int64) {
	if !g.enabled {
		return
	}
	if err := os.Remove(g.Path(videoID)); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove thumbnail for video %d: %v", videoID, err)
	}
}
