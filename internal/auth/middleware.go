package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"drivehub/internal/db"
)

type contextKey string

const actorKey contextKey = "actor"

// Middleware validates the bearer token and stores the resulting Actor in
// the request context. Handlers read it with ActorFrom and pass it
// explicitly into the services.
type Middleware struct {
	jwtSecret string
}

func NewMiddleware(jwtSecret string) *Middleware {
	return &Middleware{jwtSecret: jwtSecret}
}

func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := m.actorFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

// RequireAdmin wraps Authenticate and additionally rejects non-admin actors.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		if !ok || actor.Role != db.RoleAdmin {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (m *Middleware) actorFromHeader(header string) (db.Actor, error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return db.Actor{}, fmt.Errorf("missing bearer token")
	}
	tokenStr := strings.TrimPrefix(header, "Bearer ")

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(m.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return db.Actor{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return db.Actor{}, fmt.Errorf("unexpected claims type")
	}
	userID, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	if userID == "" || role == "" {
		return db.Actor{}, fmt.Errorf("token missing user_id or role")
	}
	return db.Actor{ID: userID, Role: db.Role(role)}, nil
}

// ActorFrom extracts the authenticated Actor placed by Authenticate.
func ActorFrom(ctx context.Context) (db.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(db.Actor)
	return actor, ok
}
