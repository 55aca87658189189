package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type ctxKey int

const (
	identityKey ctxKey = 1
	roleKey     ctxKey = 2
)

// Headers aceitos no lugar do token apenas quando não há segredo configurado (ambiente local)
const (
	HeaderUserID = "X-User-Id"
	HeaderRole   = "X-Role"
)

// Papéis reconhecidos pelos serviços internos
const (
	RoleService  = "service"  // escrow-service falando com o wallet
	RoleOperator = "operator" // crédito manual de carteiras
)

func IdentityFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityKey).(string)
	return id, ok && id != ""
}

func WithIdentity(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

// HasRole diz se o chamador autenticado tem algum dos papéis
func HasRole(ctx context.Context, roles ...string) bool {
	if _, ok := IdentityFromContext(ctx); !ok {
		return false
	}
	role := RoleFromContext(ctx)
	for _, want := range roles {
		if role == want {
			return true
		}
	}
	return false
}

// Middleware resolve a identidade e o papel do chamador.
// Com j == nil usa os headers X-User-Id e X-Role (modo dev); caso contrário exige bearer token válido.
// Requisições sem identidade seguem adiante; cada handler decide se ela é obrigatória.
func Middleware(j *JWT) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if j == nil {
				if id := strings.TrimSpace(r.Header.Get(HeaderUserID)); id != "" {
					ctx := WithIdentity(r.Context(), id)
					r = r.WithContext(WithRole(ctx, strings.TrimSpace(r.Header.Get(HeaderRole))))
				}
				next.ServeHTTP(w, r)
				return
			}

			raw := r.Header.Get("Authorization")
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			tok := bearerToken(raw)
			if tok == "" {
				writeUnauthorized(w, "malformed authorization header")
				return
			}
			claims, err := j.Verify(tok)
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}
			ctx := WithIdentity(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(WithRole(ctx, claims.Role)))
		})
	}
}

// RequireRole barra quem não está autenticado (401) ou não tem um dos papéis (403).
// Deve vir depois de Middleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); !ok {
				writeUnauthorized(w, "authentication required")
				return
			}
			if !HasRole(r.Context(), roles...) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "role not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(v string) string {
	v = strings.TrimSpace(v)
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", msg)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": msg})
}
