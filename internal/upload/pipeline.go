package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"video-vault/internal/database"
	"video-vault/internal/logging"
	"video-vault/internal/media"
	"video-vault/internal/metrics"
	"video-vault/internal/storage"
)

// User-correctable rejections, surfaced before any bytes touch storage.
var (
	ErrNoFile          = errors.New("no file supplied")
	ErrUnsupportedType = errors.New("file type not allowed")
)

// Invoker is the external transcoder the pipeline drives. It is an
// interface so tests can exercise failure paths without ffmpeg.
type Invoker interface {
	Transcode(ctx context.Context, src, dst string) error
	ExtractPoster(ctx context.Context, src, dst string) error
}

// Pipeline ingests uploaded videos: validate, store, normalize, commit.
type Pipeline struct {
	store    *storage.Store
	db       *database.Database
	invoker  Invoker
	thumbGen *media.ThumbnailGenerator
}

// New creates an ingestion pipeline. thumbGen may be disabled but must
// not be nil.
func New(store *storage.Store, db *database.Database, invoker Invoker, thumbGen *media.ThumbnailGenerator) *Pipeline {
	return &Pipeline{
		store:    store,
		db:       db,
		invoker:  invoker,
		thumbGen: thumbGen,
	}
}

// Ingest runs the upload pipeline for one file and returns the committed
// video record.
//
// On any failure after the raw bytes were persisted, the on-disk
// artifacts are removed before the error is returned: a transcode
// failure aborts the ingestion rather than committing a record that
// points at a missing canonical file.
func (p *Pipeline) Ingest(ctx context.Context, ownerID int64, filename string, r io.Reader) (*database.Video, error) {
	if filename == "" || r == nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrNoFile
	}

	if !IsAllowed(filename) {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrUnsupportedType
	}

	sanitized := storage.Sanitize(filename)
	if sanitized == "" || !IsAllowed(sanitized) {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrUnsupportedType
	}

	ext := Ext(sanitized)
	storedName := storage.UniqueName(ext)

	size, err := p.store.Save(storedName, r)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	// Normalize to the canonical container. The raw upload is deleted in
	// both outcomes: on success it is replaced by the canonical file, on
	// failure the ingestion is aborted and nothing is committed.
	if ext != CanonicalExt {
		canonicalName := strings.TrimSuffix(storedName, "."+ext) + "." + CanonicalExt

		err = p.transcode(ctx, storedName, canonicalName)
		p.removeArtifact(storedName)
		if err != nil {
			metrics.UploadsTotal.WithLabelValues("transcode_failed").Inc()
			return nil, err
		}

		storedName = canonicalName
		if info, statErr := os.Stat(p.mustResolve(canonicalName)); statErr == nil {
			size = info.Size()
		}
	}

	video := &database.Video{
		OwnerID:      ownerID,
		StoredName:   storedName,
		OriginalName: filename,
		Title:        TitleFor(filename),
		Size:         size,
	}

	committed, err := p.db.CreateVideo(ctx, video)
	if err != nil {
		// No dangling artifact without a record
		p.removeArtifact(storedName)
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to commit video record: %w", err)
	}

	metrics.UploadsTotal.WithLabelValues("success").Inc()
	metrics.UploadBytesTotal.Add(float64(size))

	p.generateThumbnail(ctx, committed)

	logging.Info("Ingested video %d (%s) for user %d", committed.ID, committed.OriginalName, ownerID)
	return committed, nil
}

func (p *Pipeline) transcode(ctx context.Context, rawName, canonicalName string) error {
	src, err := p.store.Resolve(rawName)
	if err != nil {
		return err
	}
	dst, err := p.store.Resolve(canonicalName)
	if err != nil {
		return err
	}
	return p.invoker.Transcode(ctx, src, dst)
}

// generateThumbnail extracts a poster frame and resizes it. Best-effort:
// the upload already succeeded, so failures only cost the preview image.
func (p *Pipeline) generateThumbnail(ctx context.Context, v *database.Video) {
	if !p.thumbGen.Enabled() {
		return
	}

	src, err := p.store.Resolve(v.StoredName)
	if err != nil {
		return
	}

	poster, err := os.CreateTemp("", "poster-*.jpg")
	if err != nil {
		logging.Warn("failed to create poster temp file: %v", err)
		return
	}
	posterPath := poster.Name()
	poster.Close()
	os.Remove(posterPath) // ffmpeg recreates it; CreateTemp only reserved the name
	defer os.Remove(posterPath)

	if err := p.invoker.ExtractPoster(ctx, src, posterPath); err != nil {
		logging.Debug("poster extraction failed for video %d: %v", v.ID, err)
		return
	}

	if err := p.thumbGen.Generate(posterPath, v.ID); err != nil {
		logging.Warn("thumbnail generation failed for video %d: %v", v.ID, err)
	}
}

func (p *Pipeline) removeArtifact(storedName string) {
	if err := p.store.Remove(storedName); err != nil {
		logging.Warn("failed to remove artifact %s: %v", storedName, err)
	}
}

// mustResolve is used only for names the pipeline itself generated.
func (p *Pipeline) mustResolve(storedName string) string {
	path, err := p.store.Resolve(storedName)
	if err != nil {
		return ""
	}
	return path
}
