package handlers

import (
	"context"
	"net/http"

	"video-vault/internal/database"
	"video-vault/internal/media"
	"video-vault/internal/startup"
	"video-vault/internal/storage"
	"video-vault/internal/upload"
)

// Handlers bundles the dependencies of the HTTP surface. Everything is
// injected; nothing here is process-global.
type Handlers struct {
	db             *database.Database
	store          *storage.Store
	pipeline       *upload.Pipeline
	thumbGen       *media.ThumbnailGenerator
	maxUploadBytes int64
}

// New creates the handler set.
func New(db *database.Database, store *storage.Store, pipeline *upload.Pipeline, thumbGen *media.ThumbnailGenerator, config *startup.Config) *Handlers {
	return &Handlers{
		db:             db,
		store:          store,
		pipeline:       pipeline,
		thumbGen:       thumbGen,
		maxUploadBytes: config.MaxUploadBytes,
	}
}

type contextKey int

const userContextKey contextKey = iota

// withUser stores the authenticated user on the request context.
func withUser(ctx context.Context, user *database.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// userFrom returns the authenticated user for the request, or nil for
// unauthenticated requests (only reachable on public routes).
func userFrom(r *http.Request) *database.User {
	user, _ := r.Context().Value(userContextKey).(*database.User)
	return user
}
