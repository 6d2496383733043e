// Package database provides SQLite database operations for the video
// vault application.
//
// It handles storage and retrieval of:
//   - User accounts and authentication sessions
//   - Video metadata (stored/original names, titles, ownership)
//
// The database uses WAL mode for improved concurrent read performance,
// enforces foreign keys so deleting a user cascades to their videos and
// sessions, and includes automatic schema initialization.
package database
