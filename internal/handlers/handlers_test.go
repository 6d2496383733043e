package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"video-vault/internal/database"
	"video-vault/internal/media"
	"video-vault/internal/startup"
	"video-vault/internal/storage"
	"video-vault/internal/upload"

	"github.com/gorilla/mux"
)

// fakeInvoker copies bytes instead of invoking ffmpeg.
type fakeInvoker struct {
	transcodeErr error
}

func (f *fakeInvoker) Transcode(_ context.Context, src, dst string) error {
	if f.transcodeErr != nil {
		return f.transcodeErr
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func (f *fakeInvoker) ExtractPoster(_ context.Context, _, _ string) error {
	return errors.New("no poster in tests")
}

type testServer struct {
	handler http.Handler
	db      *database.Database
	store   *storage.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	thumbGen := media.NewThumbnailGenerator(t.TempDir(), false)
	pipeline := upload.New(store, db, &fakeInvoker{}, thumbGen)
	h := New(db, store, pipeline, thumbGen, &startup.Config{MaxUploadBytes: 1 << 20})

	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/api/auth/register", h.Register).Methods("POST")
	r.HandleFunc("/api/auth/login", h.Login).Methods("POST")
	r.HandleFunc("/api/auth/logout", h.Logout).Methods("POST")
	r.HandleFunc("/api/auth/check", h.CheckAuth).Methods("GET")
	r.HandleFunc("/api/videos", h.ListVideos).Methods("GET")
	r.HandleFunc("/api/videos", h.Upload).Methods("POST")
	r.HandleFunc("/api/videos/{id}", h.GetVideo).Methods("GET")
	r.HandleFunc("/api/videos/{id}", h.EditVideo).Methods("PATCH")
	r.HandleFunc("/api/videos/{id}", h.DeleteVideo).Methods("DELETE")
	r.HandleFunc("/api/videos/{id}/stream", h.StreamVideo).Methods("GET")
	r.HandleFunc("/api/videos/{id}/download", h.DownloadVideo).Methods("GET")
	r.HandleFunc("/api/videos/{id}/thumbnail", h.GetThumbnail).Methods("GET")
	r.HandleFunc("/api/account", h.DeleteAccount).Methods("DELETE")
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "static page")
	})

	return &testServer{
		handler: h.AuthMiddleware(r),
		db:      db,
		store:   store,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) register(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	return ts.do(t, "POST", "/api/auth/register", strings.NewReader(body), nil)
}

// login registers the account if needed and returns the session cookie.
func (ts *testServer) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	ts.register(t, username, password)

	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	rec := ts.do(t, "POST", "/api/auth/login", strings.NewReader(body), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Login failed with status %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("Login response carried no session cookie")
	return nil
}

// uploadVideo posts a multipart upload under the "video" field and
// returns the committed record.
func (ts *testServer) uploadVideo(t *testing.T, cookie *http.Cookie, filename, content string) *database.Video {
	t.Helper()
	rec := ts.uploadRaw(t, cookie, "video", filename, content)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Upload failed with status %d: %s", rec.Code, rec.Body.String())
	}

	var video database.Video
	if err := json.NewDecoder(rec.Body).Decode(&video); err != nil {
		t.Fatalf("Failed to decode upload response: %v", err)
	}
	return &video
}

func (ts *testServer) uploadRaw(t *testing.T, cookie *http.Cookie, field, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/api/videos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestRegisterLoginFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.register(t, "alice", "password123")
	if rec.Code != http.StatusCreated {
		t.Fatalf("Register status = %d, want 201", rec.Code)
	}

	if rec := ts.register(t, "alice", "password123"); rec.Code != http.StatusConflict {
		t.Errorf("Duplicate register status = %d, want 409", rec.Code)
	}

	rec = ts.do(t, "POST", "/api/auth/login",
		strings.NewReader(`{"username":"alice","password":"wrong"}`), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Login with wrong password status = %d, want 401", rec.Code)
	}

	cookie := ts.login(t, "alice", "password123")

	rec = ts.do(t, "GET", "/api/auth/check", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Errorf("CheckAuth status = %d, want 200", rec.Code)
	}
	var resp AuthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode check response: %v", err)
	}
	if resp.Username != "alice" {
		t.Errorf("CheckAuth username = %q, want %q", resp.Username, "alice")
	}
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"Blank username", `{"username":"  ","password":"password123"}`},
		{"Short password", `{"username":"alice","password":"12345"}`},
		{"Overlong password", fmt.Sprintf(`{"username":"alice","password":%q}`, strings.Repeat("x", 73))},
		{"Malformed JSON", `{"username":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, "POST", "/api/auth/register", strings.NewReader(tt.body), nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t, "alice", "password123")

	if rec := ts.do(t, "POST", "/api/auth/logout", nil, cookie); rec.Code != http.StatusOK {
		t.Fatalf("Logout status = %d, want 200", rec.Code)
	}
	if rec := ts.do(t, "GET", "/api/auth/check", nil, cookie); rec.Code != http.StatusUnauthorized {
		t.Errorf("CheckAuth after logout status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)

	t.Run("API without session gets 401", func(t *testing.T) {
		rec := ts.do(t, "GET", "/api/videos", nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want 401", rec.Code)
		}
	})

	t.Run("Page without session redirects to login", func(t *testing.T) {
		rec := ts.do(t, "GET", "/index.html", nil, nil)
		if rec.Code != http.StatusFound {
			t.Fatalf("Status = %d, want 302", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/login.html" {
			t.Errorf("Location = %q, want /login.html", loc)
		}
	})

	t.Run("Health endpoint is public", func(t *testing.T) {
		rec := ts.do(t, "GET", "/health", nil, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("Status = %d, want 200", rec.Code)
		}
	})

	t.Run("Garbage session cookie is rejected and cleared", func(t *testing.T) {
		rec := ts.do(t, "GET", "/api/videos", nil, &http.Cookie{Name: SessionCookieName, Value: "bogus"})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want 401", rec.Code)
		}
	})
}

func TestUploadAndList(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t, "alice", "password123")

	video := ts.uploadVideo(t, cookie, "holiday.mp4", "fake mp4 bytes")
	if video.Title != "holiday" {
		t.Errorf("Title = %q, want %q", video.Title, "holiday")
	}
	if video.OriginalName != "holiday.mp4" {
		t.Errorf("OriginalName = %q, want %q", video.OriginalName, "holiday.mp4")
	}

	ts.uploadVideo(t, cookie, "trip.mov", "fake mov bytes")

	rec := ts.do(t, "GET", "/api/videos", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("List status = %d, want 200", rec.Code)
	}
	var videos []*database.Video
	if err := json.NewDecoder(rec.Body).Decode(&videos); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("List returned %d videos, want 2", len(videos))
	}

	rec = ts.do(t, "GET", "/api/videos?q=holiday", nil, cookie)
	if err := json.NewDecoder(rec.Body).Decode(&videos); err != nil {
		t.Fatalf("Failed to decode filtered list: %v", err)
	}
	if len(videos) != 1 || videos[0].Title != "holiday" {
		t.Errorf("Filtered list = %d videos, want just %q", len(videos), "holiday")
	}
}

func TestUploadRejections(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t, "alice", "password123")

	t.Run("Wrong field name", func(t *testing.T) {
		rec := ts.uploadRaw(t, cookie, "file", "clip.mp4", "bytes")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", rec.Code)
		}
	})

	t.Run("Disallowed extension", func(t *testing.T) {
		rec := ts.uploadRaw(t, cookie, "video", "notes.txt", "bytes")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", rec.Code)
		}
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		rec := ts.uploadRaw(t, nil, "video", "clip.mp4", "bytes")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want 401", rec.Code)
		}
	})
}

func TestOwnershipFailsClosed(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.login(t, "alice", "password123")
	bob := ts.login(t, "bob", "password456")

	video := ts.uploadVideo(t, alice, "secret.mp4", "alice private bytes")
	base := fmt.Sprintf("/api/videos/%d", video.ID)

	// Reads and delete by a non-owner are indistinguishable from missing
	for _, path := range []string{base, base + "/stream", base + "/download", base + "/thumbnail"} {
		rec := ts.do(t, "GET", path, nil, bob)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s as non-owner: status = %d, want 404", path, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "private bytes") {
			t.Errorf("GET %s as non-owner leaked content", path)
		}
	}

	if rec := ts.do(t, "DELETE", base, nil, bob); rec.Code != http.StatusNotFound {
		t.Errorf("DELETE as non-owner: status = %d, want 404", rec.Code)
	}
	if rec := ts.do(t, "GET", base, nil, alice); rec.Code != http.StatusOK {
		t.Errorf("Video gone after non-owner delete attempt: status = %d", rec.Code)
	}

	// Edits get an explicit denial
	rec := ts.do(t, "PATCH", base, strings.NewReader(`{"title":"stolen"}`), bob)
	if rec.Code != http.StatusForbidden {
		t.Errorf("PATCH as non-owner: status = %d, want 403", rec.Code)
	}
}

func TestGetVideoInvalidID(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t, "alice", "password123")

	for _, path := range []string{"/api/videos/999", "/api/videos/abc", "/api/videos/-1"} {
		if rec := ts.do(t, "GET", path, nil, cookie); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s: status = %d, want 404", path, rec.Code)
		}
	}
}

func TestEditVideo(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t, "alice", "password123")
	video := ts.uploadVideo(t, cookie, "clip.mp4", "bytes")
	path := fmt.Sprintf("/api/videos/%d", video.ID)

	t.Run("Title is trimmed", func(t *testing.T) {
		rec := ts.do(t, "PATCH", path, strings.NewReader(`{"title":"  My Clip  "}`), cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("Edit status = %d: %s", rec.Code, rec.Body.String())
		}

		got := ts.getVideo(t, cookie, video.ID)
		if got.Title != "My Clip" {
			t.Errorf("Title = %q, want %q", got.Title, "My Clip")
		}
	})

	t.Run("Empty title rejected, prior retained", func(t *testing.T) {
		rec := ts.do(t, "PATCH", path, strings.NewReader(`{"title":"   "}`), cookie)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Edit with blank title status = %d, want 400", rec.Code)
		}

		got := ts.getVideo(t, cookie, video.ID)
		if got.Title != "My Clip" {
			t.Errorf("Title after rejected edit = %q, want %q", got.Title, "My Clip")
		}
	})

	t.Run("Description only", func(t *testing.T) {
		rec := ts.do(t, "PATCH", path, strings.NewReader(`{"description":" the beach "}`), cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("Edit status = %d", rec.Code)
		}

		got := ts.getVideo(t, cookie, video.ID)
		if got.Description != "the beach" {
			t.Errorf("Description = %q, want %q", got.Description, "the beach")
		}
		if got.Title != "My Clip" {
			t.Errorf("Title changed by description edit: %q", got.Title)
		}
	})

	t.Run("Malformed body", func(t *testing.T) {
		rec := ts.do(t, "PATCH", path, strings.NewReader(`{"title":`), cookie)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Edit with bad JSON status = %d, want 400", rec.Code)
		}
	})
}

func (ts *testServer) getVideo(t *testing.T, cookie *http.Cookie, id int64) *database.Video {
	t.Helper()
	rec := ts.do(t, "GET", fmt.Sprintf("/api/videos/%d", id), nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("GetVideo status = %d", rec.Code)
	}
	var v database.Video
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode video: %v", err)
	}
	return &v
}

func TestStreamAndDownload(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t, "alice", "password123")
	video := ts.uploadVideo(t, cookie, "My Trip.mp4", "0123456789")

	t.Run("Stream", func(t *testing.T) {
		rec := ts.do(t, "GET", fmt.Sprintf("/api/videos/%d/stream", video.ID), nil, cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("Stream status = %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
			t.Errorf("Content-Type = %q, want video/mp4", ct)
		}
		if rec.Body.String() != "0123456789" {
			t.Errorf("Stream body = %q", rec.Body.String())
		}
	})

	t.Run("Range request", func(t *testing.T) {
		req := httptest.NewRequest("GET", fmt.Sprintf("/api/videos/%d/stream", video.ID), nil)
		req.Header.Set("Range", "bytes=2-5")
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusPartialContent {
			t.Fatalf("Range request status = %d, want 206", rec.Code)
		}
		if rec.Body.String() != "2345" {
			t.Errorf("Range body = %q, want %q", rec.Body.String(), "2345")
		}
	})

	t.Run("Download", func(t *testing.T) {
		rec := ts.do(t, "GET", fmt.Sprintf("/api/videos/%d/download", video.ID), nil, cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("Download status = %d", rec.Code)
		}
		cd := rec.Header().Get("Content-Disposition")
		if !strings.Contains(cd, "attachment") || !strings.Contains(cd, "My Trip.mp4") {
			t.Errorf("Content-Disposition = %q, want attachment with original name", cd)
		}
	})
}

func TestDeleteVideoIdempotent(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t, "alice", "password123")
	video := ts.uploadVideo(t, cookie, "doomed.mp4", "bytes")
	path := fmt.Sprintf("/api/videos/%d", video.ID)

	if rec := ts.do(t, "DELETE", path, nil, cookie); rec.Code != http.StatusOK {
		t.Fatalf("Delete status = %d", rec.Code)
	}
	if ts.store.Exists(video.StoredName) {
		t.Error("Artifact still on disk after delete")
	}

	if rec := ts.do(t, "DELETE", path, nil, cookie); rec.Code != http.StatusNotFound {
		t.Errorf("Second delete status = %d, want 404", rec.Code)
	}
}

func TestDeleteAccount(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t, "alice", "password123")

	v1 := ts.uploadVideo(t, cookie, "one.mp4", "bytes one")
	v2 := ts.uploadVideo(t, cookie, "two.mp4", "bytes two")

	if rec := ts.do(t, "DELETE", "/api/account", nil, cookie); rec.Code != http.StatusOK {
		t.Fatalf("DeleteAccount status = %d", rec.Code)
	}

	for _, v := range []*database.Video{v1, v2} {
		if ts.store.Exists(v.StoredName) {
			t.Errorf("Artifact %s survived account deletion", v.StoredName)
		}
	}

	// Session and credentials are gone
	if rec := ts.do(t, "GET", "/api/videos", nil, cookie); rec.Code != http.StatusUnauthorized {
		t.Errorf("Old session still valid after account deletion: status = %d", rec.Code)
	}
	rec := ts.do(t, "POST", "/api/auth/login",
		strings.NewReader(`{"username":"alice","password":"password123"}`), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Login after account deletion status = %d, want 401", rec.Code)
	}
}

func TestThumbnailDisabled(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t, "alice", "password123")
	video := ts.uploadVideo(t, cookie, "clip.mp4", "bytes")

	rec := ts.do(t, "GET", fmt.Sprintf("/api/videos/%d/thumbnail", video.ID), nil, cookie)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Thumbnail with generation disabled: status = %d, want 404", rec.Code)
	}
}
