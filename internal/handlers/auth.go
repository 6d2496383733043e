package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"video-vault/internal/database"
	"video-vault/internal/logging"
	"video-vault/internal/metrics"
)

// SessionCookieName is the name of the session cookie
const SessionCookieName = "video_vault_session"

// RegisterRequest represents a new-account request
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse represents the response from authentication endpoints
type AuthResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Username  string `json:"username,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"` // Seconds until session expires
}

// Register creates a new account.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		http.Error(w, "Username is required", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 6 {
		http.Error(w, "Password must be at least 6 characters", http.StatusBadRequest)
		return
	}
	if len(req.Password) > 72 {
		// bcrypt input limit
		http.Error(w, "Password must not exceed 72 characters", http.StatusBadRequest)
		return
	}

	user, err := h.db.CreateUser(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, database.ErrUsernameTaken) {
			http.Error(w, "Username already exists", http.StatusConflict)
			return
		}
		logging.Error("Failed to create user: %v", err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	logging.Info("Registered user %q (id %d)", user.Username, user.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, AuthResponse{
		Success:  true,
		Message:  "Registration successful. Please log in.",
		Username: user.Username,
	})
}

// Login authenticates with username and password.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.db.ValidatePassword(ctx, req.Username, req.Password)
	if err != nil {
		logging.Warn("Failed login attempt for %q", strings.TrimSpace(req.Username))
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()

	session, err := h.db.CreateSession(ctx, user.ID)
	if err != nil {
		logging.Error("Failed to create session: %v", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	logging.Info("User %q logged in, session expires in %v", user.Username, database.GetSessionDuration())

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{
		Success:   true,
		Username:  user.Username,
		ExpiresIn: int(database.GetSessionDuration().Seconds()),
	})
}

// Logout ends the current session.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(SessionCookieName)
	if err == nil && cookie.Value != "" {
		// Best-effort session cleanup, logout must not fail on it
		if err := h.db.DeleteSession(ctx, cookie.Value); err != nil {
			logging.Error("failed to delete session during logout: %v", err)
		}
	}

	clearSessionCookie(w)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{
		Success: true,
		Message: "Logged out successfully",
	})
}

// CheckAuth verifies the current session.
func (h *Handlers) CheckAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.db.ValidateSession(ctx, cookie.Value)
	if err != nil {
		clearSessionCookie(w)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{
		Success:   true,
		Username:  user.Username,
		ExpiresIn: int(database.GetSessionDuration().Seconds()),
	})
}

// DeleteAccount removes the requesting user, all owned videos and their
// on-disk artifacts (metadata rows go via foreign-key cascade).
func (h *Handlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(r)
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	orphaned, err := h.db.DeleteUser(ctx, user.ID)
	if err != nil {
		logging.Error("Failed to delete user %d: %v", user.ID, err)
		http.Error(w, "Failed to delete account", http.StatusInternalServerError)
		return
	}

	for _, v := range orphaned {
		if err := h.store.Remove(v.StoredName); err != nil {
			logging.Warn("failed to remove artifact %s for deleted user %d: %v", v.StoredName, user.ID, err)
		}
		h.thumbGen.Remove(v.ID)
	}

	clearSessionCookie(w)
	logging.Info("Deleted user %d and %d videos", user.ID, len(orphaned))

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{
		Success: true,
		Message: "Account deleted",
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// AuthMiddleware protects routes that require authentication and puts
// the session's user on the request context.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			denyUnauthenticated(w, r)
			return
		}

		user, err := h.db.ValidateSession(ctx, cookie.Value)
		if err != nil {
			clearSessionCookie(w)
			denyUnauthenticated(w, r)
			return
		}

		// Sliding expiration
		if err := h.db.ExtendSession(ctx, cookie.Value); err != nil {
			logging.Debug("Failed to extend session: %v", err)
		} else {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    cookie.Value,
				Path:     "/",
				Expires:  time.Now().Add(database.GetSessionDuration()),
				HttpOnly: true,
				SameSite: http.SameSiteStrictMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(withUser(ctx, user)))
	})
}

func isPublicPath(path string) bool {
	return strings.HasPrefix(path, "/api/auth/") ||
		path == "/login.html" ||
		path == "/register.html" ||
		path == "/css/login.css" ||
		path == "/js/login.js" ||
		path == "/health" ||
		path == "/healthz" ||
		path == "/livez" ||
		path == "/readyz" ||
		path == "/version" ||
		path == "/favicon.ico"
}

func denyUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	} else {
		http.Redirect(w, r, "/login.html", http.StatusFound)
	}
}
