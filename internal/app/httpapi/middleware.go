package httpapi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app/auth"
	"github.com/Razlynski/calculator-mvc-isaac/internal/middleware"
)

// openPaths are served without credentials.
func openPath(path string) bool {
	switch path {
	case "/healthz", "/metrics", "/auth/login":
		return true
	}
	return false
}

// wrapWithAuth guards every endpoint with bearer tokens, API keys or
// JWTs. Static tokens act as service credentials with the admin role;
// JWTs carry the identity issued by /auth/login. Browser WebSocket
// clients cannot set headers, so upgrade requests may carry the bearer
// value in the access_token query parameter instead.
func wrapWithAuth(next http.Handler, tokens []string, apiKeyHashes []string, mgr *auth.Manager) http.Handler {
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t != "" {
			tokenSet[t] = struct{}{}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if openPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		p, ok := authenticate(r, tokenSet, apiKeyHashes, mgr)
		if !ok {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			return
		}

		ctx := auth.WithPrincipal(r.Context(), p)
		stampAuditIdentity(ctx, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authenticate(r *http.Request, tokens map[string]struct{}, apiKeyHashes []string, mgr *auth.Manager) (auth.Principal, bool) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if p, ok := checkBearer(raw, tokens, mgr); ok {
			return p, true
		}
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		for _, hash := range apiKeyHashes {
			if hash == "" {
				continue
			}
			if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil {
				return auth.Principal{Name: "api-key", Role: "service", Method: "api_key"}, true
			}
		}
	}

	if raw := r.URL.Query().Get("access_token"); raw != "" {
		if p, ok := checkBearer(raw, tokens, mgr); ok {
			return p, true
		}
	}

	return auth.Principal{}, false
}

func checkBearer(raw string, tokens map[string]struct{}, mgr *auth.Manager) (auth.Principal, bool) {
	if _, ok := tokens[raw]; ok {
		return auth.Principal{Name: "service", Role: "admin", Method: "token"}, true
	}
	if mgr != nil {
		if claims, err := mgr.Validate(raw); err == nil {
			return auth.Principal{Name: claims.Username, Role: claims.Role, Method: "jwt"}, true
		}
	}
	return auth.Principal{}, false
}

// auditIdentity is a mutable carrier the audit layer plants in the
// request context. The auth layer, which runs inside it, fills in the
// caller identity once known; this is how rejected requests still get
// audited while accepted ones carry a user.
type auditIdentity struct {
	mu   sync.Mutex
	user string
	role string
}

type auditIdentityKey struct{}

func stampAuditIdentity(ctx context.Context, p auth.Principal) {
	carrier, ok := ctx.Value(auditIdentityKey{}).(*auditIdentity)
	if !ok {
		return
	}
	carrier.mu.Lock()
	carrier.user = p.Name
	carrier.role = p.Role
	carrier.mu.Unlock()
}

// wrapWithAudit records one entry per request, including rejected ones.
// Compose it outside wrapWithAuth.
func wrapWithAudit(next http.Handler, log *auditLog) http.Handler {
	if log == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		carrier := &auditIdentity{}
		ctx := context.WithValue(r.Context(), auditIdentityKey{}, carrier)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		carrier.mu.Lock()
		user, role := carrier.user, carrier.role
		carrier.mu.Unlock()

		log.add(auditEntry{
			Time:       time.Now().UTC(),
			User:       user,
			Role:       role,
			WindowID:   windowIDFromPath(r.URL.Path),
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     sw.status,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
	})
}

// wrapWithCORS applies the CORS policy. Without explicit origins every
// origin is allowed, matching local development defaults.
func wrapWithCORS(next http.Handler, origins ...string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return middleware.NewCORSMiddleware(origins).Handler(next)
}

func windowIDFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "windows" {
		return parts[1]
	}
	return ""
}

// statusWriter captures the response status for audit entries.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.written {
		sw.status = code
		sw.written = true
		sw.ResponseWriter.WriteHeader(code)
	}
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.written {
		sw.WriteHeader(http.StatusOK)
	}
	return sw.ResponseWriter.Write(b)
}

// Hijack keeps WebSocket upgrades working through the audit layer.
func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}
