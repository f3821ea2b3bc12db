// Package httpapi exposes the calculator application over REST and
// WebSocket endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/Razlynski/calculator-mvc-isaac/internal/app"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/auth"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/calc"
	domain "github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/history"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/metrics"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage"
	"github.com/Razlynski/calculator-mvc-isaac/internal/middleware"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app     *app.Application
	authMgr *auth.Manager
	audit   *auditLog
}

// pressResponse carries the window state after an event, plus the
// history record when the event completed a calculation.
type pressResponse struct {
	WindowID string         `json:"window_id"`
	State    calc.State     `json:"state"`
	Record   *domain.Record `json:"record,omitempty"`
}

// errorState is the conflict body for recoverable calculator errors: the
// error plus the untouched display state.
type errorState struct {
	Error    string     `json:"error"`
	WindowID string     `json:"window_id"`
	State    calc.State `json:"state"`
}

// NewHandler returns a router exposing the REST and WebSocket API.
// Route-template metrics are collected inside the router; auth, audit
// and CORS wrap outside via wrapWithAuth, wrapWithAudit and
// wrapWithCORS.
func NewHandler(application *app.Application, authMgr *auth.Manager, audit *auditLog) http.Handler {
	h := &handler{app: application, authMgr: authMgr, audit: audit}

	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware())

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)

	r.HandleFunc("/windows", h.openWindow).Methods(http.MethodPost)
	r.HandleFunc("/windows/{id}", h.getWindow).Methods(http.MethodGet)
	r.HandleFunc("/windows/{id}", h.closeWindow).Methods(http.MethodDelete)
	r.HandleFunc("/windows/{id}/events", h.pressEvent).Methods(http.MethodPost)
	r.HandleFunc("/windows/{id}/history", h.listHistory).Methods(http.MethodGet)
	r.HandleFunc("/windows/{id}/history", h.purgeHistory).Methods(http.MethodDelete)
	r.HandleFunc("/windows/{id}/ws", h.serveWindowSocket).Methods(http.MethodGet)

	r.HandleFunc("/audit", h.listAudit).Methods(http.MethodGet)

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Health.Check(r.Context()))
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if h.authMgr == nil {
		writeError(w, http.StatusNotImplemented, fmt.Errorf("login not configured"))
		return
	}

	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	token, claims, err := h.authMgr.Login(payload.Username, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"role":       claims.Role,
		"expires_at": claims.ExpiresAt.Time,
	})
}

func (h *handler) openWindow(w http.ResponseWriter, r *http.Request) {
	win, err := h.app.Calculator.Open(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, win)
}

func (h *handler) getWindow(w http.ResponseWriter, r *http.Request) {
	win, err := h.app.Calculator.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, storage.ErrWindowNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, win)
}

func (h *handler) closeWindow(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Calculator.Close(r.Context(), mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, storage.ErrWindowNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) pressEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var ev calc.Event
	if err := decodeJSON(r.Body, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	win, rec, err := h.app.Calculator.Press(r.Context(), id, ev)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrWindowNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, calc.ErrDivisionByZero):
			// Recoverable: the window keeps its prior state, returned so
			// clients can keep rendering the display.
			writeJSON(w, http.StatusConflict, errorState{
				Error:    err.Error(),
				WindowID: win.ID,
				State:    win.State,
			})
		case errors.Is(err, calc.ErrInvalidDigit), errors.Is(err, calc.ErrUnknownEvent):
			writeError(w, http.StatusBadRequest, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, pressResponse{WindowID: win.ID, State: win.State, Record: rec})
}

// listHistory serves records newest first. Records outlive their window,
// so a closed window's history still lists.
func (h *handler) listHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	records, err := h.app.History.Recent(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) purgeHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.app.History.Purge(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok || (p.Role != "admin" && p.Method != "token") {
		writeError(w, http.StatusForbidden, fmt.Errorf("admin role required"))
		return
	}
	if h.audit == nil {
		writeJSON(w, http.StatusOK, []auditEntry{})
		return
	}

	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer")
	}
	return limit, nil
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
