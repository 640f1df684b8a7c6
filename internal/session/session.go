// Package session keeps each browser's view state and pending flash notice
// between requests.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MoonJiyun2/IdeaShelf/internal/view"
	"github.com/MoonJiyun2/IdeaShelf/pkg/logger"
)

// CookieName is the cookie carrying the session ID.
const CookieName = "ideashelf_sid"

// Flash levels.
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Flash is a notice shown once on the next page render.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Data is everything stored per session.
type Data struct {
	State view.State `json:"state"`
	Flash *Flash     `json:"flash,omitempty"`
}

// New returns the data of a session that has never been saved.
func New() Data {
	return Data{State: view.Initial()}
}

// Store persists session data by ID. Load returns New() for an unknown or
// expired ID.
type Store interface {
	Load(ctx context.Context, id string) (Data, error)
	Save(ctx context.Context, id string, data Data) error
}

// Manager ties a Store to the session cookie.
type Manager struct {
	store  Store
	ttl    time.Duration
	secure bool
	logger *slog.Logger
}

// NewManager creates a session manager. secure marks the cookie Secure.
func NewManager(store Store, ttl time.Duration, secure bool, logger *slog.Logger) *Manager {
	return &Manager{store: store, ttl: ttl, secure: secure, logger: logger}
}

// Middleware makes sure every request has a session ID, issuing a cookie
// when the browser sent none or an invalid one. The ID is stored in the
// request context where middleware.RequestLogger picks it up.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(CookieName); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(m.ttl.Seconds()),
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(logger.WithSessionID(r.Context(), id)))
	})
}

// ID returns the session ID of the request context.
func ID(ctx context.Context) string {
	return logger.SessionIDFromContext(ctx)
}

// Load returns the session data of the request. Store failures fall back
// to a fresh session so pages still render.
func (m *Manager) Load(ctx context.Context) Data {
	id := ID(ctx)
	if id == "" {
		return New()
	}
	data, err := m.store.Load(ctx, id)
	if err != nil {
		m.log(ctx).ErrorContext(ctx, "failed to load session",
			slog.String("error", err.Error()),
		)
		return New()
	}
	data.State = data.State.Normalized()
	return data
}

// Update loads the session, applies fn and saves the result.
func (m *Manager) Update(ctx context.Context, fn func(Data) Data) error {
	id := ID(ctx)
	if id == "" {
		return fmt.Errorf("no session in context")
	}
	data := fn(m.Load(ctx))
	if err := m.store.Save(ctx, id, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Render returns the session for a page render and clears its flash so it
// shows only once.
func (m *Manager) Render(ctx context.Context) Data {
	data := m.Load(ctx)
	if data.Flash == nil {
		return data
	}

	cleared := data
	cleared.Flash = nil
	if err := m.store.Save(ctx, ID(ctx), cleared); err != nil {
		m.log(ctx).ErrorContext(ctx, "failed to clear flash",
			slog.String("error", err.Error()),
		)
	}
	return data
}

func (m *Manager) log(ctx context.Context) *slog.Logger {
	if l := logger.FromContext(ctx); l != slog.Default() {
		return l
	}
	return m.logger
}
