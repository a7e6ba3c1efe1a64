package auth

import (
	"context"
	"net/http"

	apperrors "cuworking/pkg/errors"
	httputil "cuworking/pkg/http"
	"cuworking/pkg/logger"
	"cuworking/pkg/middleware"
	"cuworking/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const realm = `Basic realm="cuworking", charset="UTF-8"`

type contextKey string

const userKey contextKey = "auth_user"

// Authenticator resolves basic-auth credentials to a user. It returns an
// Unauthorized AppError for unknown users and wrong passwords alike.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
}

// Guard wraps httprouter handles with identity and role checks.
type Guard struct {
	authenticator Authenticator
	log           *logger.Logger
}

func NewGuard(authenticator Authenticator, log *logger.Logger) *Guard {
	return &Guard{
		authenticator: authenticator,
		log:           log,
	}
}

// RequireUser rejects requests without valid credentials with 401 and puts
// the resolved user in the request context.
func (g *Guard) RequireUser(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		username, password, ok := r.BasicAuth()
		if !ok || username == "" {
			g.reject(w, r, apperrors.Unauthorized("Authentication required"))
			return
		}

		user, err := g.authenticator.Authenticate(r.Context(), username, password)
		if err != nil {
			if !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
				g.log.Error("Authentication lookup failed",
					"request_id", middleware.RequestIDFromContext(r.Context()),
					"username", username,
					"error", err,
				)
			}
			g.reject(w, r, err)
			return
		}

		next(w, r.WithContext(WithUser(r.Context(), user)), ps)
	}
}

// RequireAdmin is RequireUser plus a 403 for non-admin users.
func (g *Guard) RequireAdmin(next httprouter.Handle) httprouter.Handle {
	return g.RequireUser(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		user, _ := UserFromContext(r.Context())
		if !user.IsAdmin {
			g.log.Warn("Admin route denied",
				"request_id", middleware.RequestIDFromContext(r.Context()),
				"user_id", user.ID,
				"path", r.URL.Path,
			)
			if err := httputil.WriteError(w, apperrors.Forbidden("Admin privileges required")); err != nil {
				g.log.Error("failed to write error response", "handler", "RequireAdmin", "operation", "WriteError", "error", err)
			}
			return
		}
		next(w, r, ps)
	})
}

func (g *Guard) reject(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		w.Header().Set("WWW-Authenticate", realm)
	}
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		g.log.Error("failed to write error response", "handler", "RequireUser", "operation", "WriteError", "error", writeErr)
	}
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}
