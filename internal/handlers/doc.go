// Package handlers provides HTTP request handlers for the video vault
// API.
//
// It includes handlers for:
//   - Registration, login and session management
//   - Video upload (ingestion pipeline), listing and search
//   - Streaming, inline serving and downloads
//   - Title/description editing and deletion
//   - Health checks and version info
//
// Every per-video operation is gated on ownership: a requester that is
// not the owner gets the same response as for a record that does not
// exist.
package handlers
