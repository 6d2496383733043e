package database

import "time"

// User represents a registered account. A user owns zero or more videos;
// deleting a user cascades to its videos and sessions.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Session represents an authenticated user session. Token is the raw
// token handed to the client; only its hash is stored.
type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Video represents one uploaded media asset. StoredName is the artifact
// currently on disk under the upload root (post-transcode if transcoding
// occurred); OriginalName is the name supplied by the uploader, kept for
// display and downloads. OwnerID, StoredName, OriginalName and CreatedAt
// are write-once; only Title and Description are editable.
type Video struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"ownerId"`
	StoredName   string    `json:"storedName"`
	OriginalName string    `json:"originalName"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
}

// OwnedBy reports whether userID is the owner of the video. Every
// stream/download/edit/delete entry point checks this before touching
// the filesystem or mutating metadata.
func (v *Video) OwnedBy(userID int64) bool {
	return v != nil && v.OwnerID == userID
}
