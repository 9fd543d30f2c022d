package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Niranjjith/Department-portal/internal/entity"
	"github.com/Niranjjith/Department-portal/internal/repository"
	"github.com/Niranjjith/Department-portal/internal/session"
)

// UserLookup resolves the account behind a session principal.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (entity.User, error)
}

type userKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user entity.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// CurrentUser returns the user resolved by RequireRole.
func CurrentUser(ctx context.Context) (entity.User, bool) {
	user, ok := ctx.Value(userKey{}).(entity.User)
	return user, ok
}

// Guard builds role guards over one session manager and user store.
type Guard struct {
	sessions *session.Manager
	users    UserLookup
	log      *slog.Logger
}

func NewGuard(sessions *session.Manager, users UserLookup, logger *slog.Logger) *Guard {
	return &Guard{sessions: sessions, users: users, log: logger}
}

// RequireRole lets a request through only when its session belongs to an
// existing user whose current role is role. The fresh user is stored in the
// request context. Anything else is sent to /login; a session whose user
// was deleted or changed role is cleared first.
func (g *Guard) RequireRole(role entity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := g.sessions.Principal(r)
			if !ok {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			user, err := g.users.GetByID(r.Context(), p.UserID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				g.log.Error("resolve session user", "error", err, "path", r.URL.Path)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if err != nil || user.Role != p.Role {
				if err := g.sessions.Destroy(w, r); err != nil {
					g.log.Warn("clear stale session", "error", err)
				}
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			if user.Role != role {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
