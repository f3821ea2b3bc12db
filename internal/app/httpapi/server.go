package httpapi

import (
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/auth"
	"github.com/Razlynski/calculator-mvc-isaac/internal/middleware"
)

// DefaultAuditBuffer bounds the in-memory audit ring when Options does
// not say otherwise.
const DefaultAuditBuffer = 200

// Options configure the assembled HTTP surface.
type Options struct {
	// Tokens are static bearer tokens accepted as service credentials.
	Tokens []string
	// APIKeyHashes are bcrypt hashes matched against the X-API-Key header.
	APIKeyHashes []string
	// AuthManager signs and validates JWT session tokens. Required.
	AuthManager *auth.Manager

	// AuditMax bounds the in-memory audit ring buffer.
	AuditMax int
	// AuditFile, when set, appends audit entries to a JSON lines file.
	AuditFile string
	// AuditDB, when set, persists audit entries to Postgres and takes
	// precedence over AuditFile.
	AuditDB *sqlx.DB

	// AllowedOrigins restricts CORS. Empty means allow all.
	AllowedOrigins []string

	// RateLimiter, when set, throttles authenticated clients.
	RateLimiter *middleware.RateLimiter
	// Tracing, when set, assigns trace IDs and logs request summaries.
	Tracing *middleware.TracingMiddleware
}

// New assembles the calculator routes inside the full middleware chain.
// Outermost first the onion is CORS, tracing, audit, auth, rate limiting,
// then the instrumented router. Audit sits outside auth so rejected
// requests are still recorded; the rate limiter sits inside auth so its
// buckets key on the authenticated principal.
func New(application *app.Application, opts Options) (http.Handler, error) {
	if application == nil {
		return nil, fmt.Errorf("httpapi: application is required")
	}
	if opts.AuthManager == nil {
		return nil, fmt.Errorf("httpapi: auth manager is required")
	}

	if opts.AuditMax <= 0 {
		opts.AuditMax = DefaultAuditBuffer
	}
	sink, err := buildAuditSink(opts)
	if err != nil {
		return nil, err
	}
	audit := newAuditLog(opts.AuditMax, sink)

	var h http.Handler = NewHandler(application, opts.AuthManager, audit)
	if opts.RateLimiter != nil {
		h = opts.RateLimiter.Middleware(h)
	}
	h = wrapWithAuth(h, opts.Tokens, opts.APIKeyHashes, opts.AuthManager)
	h = wrapWithAudit(h, audit)
	if opts.Tracing != nil {
		h = opts.Tracing.Middleware(h)
	}
	h = wrapWithCORS(h, opts.AllowedOrigins...)
	return h, nil
}

func buildAuditSink(opts Options) (auditSink, error) {
	if opts.AuditDB != nil {
		return newPostgresAuditSink(opts.AuditDB), nil
	}
	if opts.AuditFile != "" {
		sink, err := newFileAuditSink(opts.AuditFile)
		if err != nil {
			return nil, fmt.Errorf("open audit file: %w", err)
		}
		return sink, nil
	}
	return nil, nil
}
