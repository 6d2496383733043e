package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"video-vault/internal/database"
	"video-vault/internal/logging"
	"video-vault/internal/transcoder"
	"video-vault/internal/upload"

	"github.com/gorilla/mux"
)

// EditVideoRequest carries the editable fields of a video.
type EditVideoRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ListVideos returns the requester's videos, newest first, optionally
// filtered by ?q= on title and original filename.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(r)

	query := r.URL.Query().Get("q")

	videos, err := h.db.ListVideos(ctx, user.ID, query)
	if err != nil {
		logging.Error("Failed to list videos for user %d: %v", user.ID, err)
		http.Error(w, "Failed to list videos", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, videos)
}

// Upload runs the ingestion pipeline for a multipart upload (field
// "video"). The request blocks for the duration of any transcode.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("video")
	if err != nil {
		http.Error(w, "No file part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	video, err := h.pipeline.Ingest(ctx, user.ID, header.Filename, file)
	if err != nil {
		h.writeIngestError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, video)
}

func (h *Handlers) writeIngestError(w http.ResponseWriter, err error) {
	var transcodeErr *transcoder.Error

	switch {
	case errors.Is(err, upload.ErrNoFile):
		http.Error(w, "No selected file", http.StatusBadRequest)
	case errors.Is(err, upload.ErrUnsupportedType):
		http.Error(w, "File type not allowed (mp4, mov, avi, mkv)", http.StatusBadRequest)
	case errors.As(err, &transcodeErr):
		logging.Error("Transcode failed (exit %d): %s", transcodeErr.ExitCode, transcodeErr.Stderr)
		http.Error(w, "Video conversion failed, please try a different file", http.StatusUnprocessableEntity)
	default:
		logging.Error("Upload failed: %v", err)
		http.Error(w, "Upload failed", http.StatusInternalServerError)
	}
}

// GetVideo returns the metadata for one owned video (the stream page).
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, video)
}

// StreamVideo serves the canonical artifact inline. http.ServeContent
// semantics via ServeFile give us range requests for seeking.
func (h *Handlers) StreamVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	path, err := h.store.Resolve(video.StoredName)
	if err != nil {
		logging.Error("Stored name for video %d failed resolution: %v", video.ID, err)
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

// DownloadVideo serves the artifact as an attachment named after the
// original upload.
func (h *Handlers) DownloadVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	path, err := h.store.Resolve(video.StoredName)
	if err != nil {
		logging.Error("Stored name for video %d failed resolution: %v", video.ID, err)
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	downloadName := video.OriginalName
	if downloadName == "" {
		downloadName = video.StoredName
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sanitizeHeaderValue(downloadName)))
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, path)
}

// GetThumbnail serves the cached poster thumbnail for an owned video.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	if !h.thumbGen.Enabled() {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeFile(w, r, h.thumbGen.Path(video.ID))
}

// EditVideo updates title and/or description of an owned video. Titles
// are trimmed; an empty or whitespace-only title is rejected and the
// prior value retained.
func (h *Handlers) EditVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(r)

	id, err := videoID(r)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	video, err := h.db.GetVideo(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to load video %d: %v", id, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// API-style edit gets an explicit denial rather than a masked 404
	if !video.OwnedBy(user.ID) {
		writeJSONError(w, "Access denied", http.StatusForbidden)
		return
	}

	var req EditVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	title := video.Title
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
		if title == "" {
			writeJSONError(w, "Invalid title", http.StatusBadRequest)
			return
		}
	}

	description := video.Description
	if req.Description != nil {
		description = strings.TrimSpace(*req.Description)
	}

	if err := h.db.UpdateVideo(ctx, id, title, description); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to update video %d: %v", id, err)
		http.Error(w, "Failed to update video", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]bool{"success": true})
}

// DeleteVideo removes an owned video: the metadata row first, then the
// artifact and thumbnail. A missing file is not an error; a second
// delete of the same id reports not-found and touches nothing.
func (h *Handlers) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	if err := h.db.DeleteVideo(ctx, video.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Raced with another delete of the same record
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to delete video %d: %v", video.ID, err)
		http.Error(w, "Failed to delete video", http.StatusInternalServerError)
		return
	}

	if err := h.store.Remove(video.StoredName); err != nil {
		logging.Warn("failed to remove artifact for video %d: %v", video.ID, err)
	}
	h.thumbGen.Remove(video.ID)

	logging.Info("Deleted video %d", video.ID)
	writeJSONStatus(w, "deleted")
}

// ownedVideo loads the requested video and enforces ownership. Denials
// fail closed: a video owned by someone else is indistinguishable from
// one that does not exist, and no filesystem access happens on deny.
func (h *Handlers) ownedVideo(w http.ResponseWriter, r *http.Request) (*database.Video, bool) {
	ctx := r.Context()
	user := userFrom(r)

	id, err := videoID(r)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return nil, false
	}

	video, err := h.db.GetVideo(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, "Not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		logging.Error("Failed to load video %d: %v", id, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return nil, false
	}

	if !video.OwnedBy(user.ID) {
		http.Error(w, "Not found", http.StatusNotFound)
		return nil, false
	}

	return video, true
}

func videoID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// sanitizeHeaderValue strips characters that would break a quoted
// Content-Disposition filename.
func sanitizeHeaderValue(s string) string {
	s = strings.ReplaceAll(s, "\"", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}
