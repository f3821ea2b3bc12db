package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	app "github.com/Razlynski/calculator-mvc-isaac/internal/app"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/auth"
)

const testAuthToken = "test-token"

func newTestApplication(t *testing.T) *app.Application {
	t.Helper()
	application, err := app.New(app.Stores{}, app.Options{}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	return application
}

func newTestHandler(application *app.Application, audit *auditLog) http.Handler {
	mgr := auth.NewManager("test-secret", []auth.User{{Username: "admin", Password: "pass", Role: "admin"}})
	handler := NewHandler(application, mgr, audit)
	handler = wrapWithAuth(handler, []string{testAuthToken}, nil, mgr)
	handler = wrapWithAudit(handler, audit)
	handler = wrapWithCORS(handler)
	return handler
}

func authedRequest(method, url string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testAuthToken)
	return req
}

func marshal(v any) []byte {
	buf, _ := json.Marshal(v)
	return buf
}

func openTestWindow(t *testing.T, handler http.Handler) string {
	t.Helper()
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/windows", nil))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 open window, got %d: %s", resp.Code, resp.Body.String())
	}
	var win map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &win); err != nil {
		t.Fatalf("unmarshal window: %v", err)
	}
	id, _ := win["id"].(string)
	if id == "" {
		t.Fatalf("expected window id in response: %s", resp.Body.String())
	}
	return id
}

func press(t *testing.T, handler http.Handler, windowID string, event map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/windows/"+windowID+"/events", marshal(event)))
	return resp
}

func TestHandlerLifecycle(t *testing.T) {
	application := newTestApplication(t)
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start application: %v", err)
	}
	defer application.Stop(context.Background())

	audit := newAuditLog(100, nil)
	handler := newTestHandler(application, audit)

	id := openTestWindow(t, handler)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/windows/"+id, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 get window, got %d", resp.Code)
	}

	for _, event := range []map[string]any{
		{"kind": "digit", "digit": 7},
		{"kind": "operator", "operator": "*"},
		{"kind": "digit", "digit": 8},
	} {
		if resp := press(t, handler, id, event); resp.Code != http.StatusOK {
			t.Fatalf("expected 200 press %v, got %d: %s", event, resp.Code, resp.Body.String())
		}
	}

	resp = press(t, handler, id, map[string]any{"kind": "equals"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 equals, got %d: %s", resp.Code, resp.Body.String())
	}
	var result struct {
		State struct {
			Current float64 `json:"current"`
		} `json:"state"`
		Record *struct {
			Expression string  `json:"expression"`
			Result     float64 `json:"result"`
		} `json:"record"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal press response: %v", err)
	}
	if result.State.Current != 56 {
		t.Fatalf("expected current 56, got %v", result.State.Current)
	}
	if result.Record == nil || result.Record.Expression != "7 * 8" || result.Record.Result != 56 {
		t.Fatalf("unexpected record: %+v", result.Record)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/windows/"+id+"/history", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 history, got %d", resp.Code)
	}
	var records []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &records); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one history record, got %d", len(records))
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 health, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 metrics, got %d", resp.Code)
	}
	if resp.Body.Len() == 0 {
		t.Fatalf("expected metrics output to be non-empty")
	}

	loginBody := marshal(map[string]any{"username": "admin", "password": "pass"})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(loginBody)))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 login, got %d: %s", resp.Code, resp.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	if login.Token == "" {
		t.Fatalf("expected JWT in login response")
	}

	jwtReq := httptest.NewRequest(http.MethodGet, "/windows/"+id, nil)
	jwtReq.Header.Set("Authorization", "Bearer "+login.Token)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, jwtReq)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with JWT, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/audit?limit=10", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 audit, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodDelete, "/windows/"+id, nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 close window, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/windows/"+id, nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", resp.Code)
	}

	// History survives the window.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/windows/"+id+"/history", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 history after close, got %d", resp.Code)
	}
	records = nil
	if err := json.Unmarshal(resp.Body.Bytes(), &records); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected history retained after close, got %d records", len(records))
	}

	entries := audit.list()
	if len(entries) == 0 {
		t.Fatalf("expected audit entries recorded")
	}
	sawUser := false
	for _, e := range entries {
		if e.User == "service" {
			sawUser = true
			break
		}
	}
	if !sawUser {
		t.Fatalf("expected audited requests to carry the token principal")
	}
}

func TestHandlerDivisionByZeroConflict(t *testing.T) {
	application := newTestApplication(t)
	handler := newTestHandler(application, nil)
	id := openTestWindow(t, handler)

	for _, event := range []map[string]any{
		{"kind": "digit", "digit": 5},
		{"kind": "operator", "operator": "/"},
		{"kind": "digit", "digit": 0},
	} {
		if resp := press(t, handler, id, event); resp.Code != http.StatusOK {
			t.Fatalf("expected 200 press %v, got %d", event, resp.Code)
		}
	}

	resp := press(t, handler, id, map[string]any{"kind": "equals"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 division by zero, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Error string `json:"error"`
		State struct {
			Stored     float64 `json:"stored"`
			Pending    string  `json:"pending"`
			Expression string  `json:"expression"`
		} `json:"state"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal conflict body: %v", err)
	}
	if body.Error == "" {
		t.Fatalf("expected error message in conflict body")
	}
	if body.State.Stored != 5 || body.State.Pending != "/" || body.State.Expression != "5 / 0" {
		t.Fatalf("expected untouched state in conflict body, got %+v", body.State)
	}

	// The window stays usable.
	if resp := press(t, handler, id, map[string]any{"kind": "clear"}); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 clear after conflict, got %d", resp.Code)
	}
}

func TestHandlerRejectsMalformedEvents(t *testing.T) {
	application := newTestApplication(t)
	handler := newTestHandler(application, nil)
	id := openTestWindow(t, handler)

	if resp := press(t, handler, id, map[string]any{"kind": "bogus"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 unknown kind, got %d", resp.Code)
	}
	if resp := press(t, handler, id, map[string]any{"kind": "digit", "digit": 12}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 out-of-range digit, got %d", resp.Code)
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/windows/"+id+"/events", []byte(`{"kind": "digit", "unknown_field": true}`)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 unknown field, got %d", resp.Code)
	}
}

func TestHandlerUnknownWindow(t *testing.T) {
	application := newTestApplication(t)
	handler := newTestHandler(application, nil)

	for _, tc := range []struct {
		method string
		path   string
		body   []byte
	}{
		{http.MethodGet, "/windows/no-such-window", nil},
		{http.MethodPost, "/windows/no-such-window/events", marshal(map[string]any{"kind": "digit", "digit": 1})},
		{http.MethodDelete, "/windows/no-such-window", nil},
	} {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, authedRequest(tc.method, tc.path, tc.body))
		if resp.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, resp.Code)
		}
	}
}

func TestHandlerAuthRequired(t *testing.T) {
	application := newTestApplication(t)
	handler := newTestHandler(application, nil)

	req := httptest.NewRequest(http.MethodPost, "/windows", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/windows", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.Code)
	}
}

func TestHandlerWebSocket(t *testing.T) {
	application := newTestApplication(t)
	handler := newTestHandler(application, nil)
	id := openTestWindow(t, handler)

	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/windows/" + id + "/ws?access_token=" + testAuthToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	var frame wsFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read opening frame: %v", err)
	}
	if frame.Type != "state" || frame.WindowID != id {
		t.Fatalf("unexpected opening frame: %+v", frame)
	}

	for _, event := range []map[string]any{
		{"kind": "digit", "digit": 6},
		{"kind": "operator", "operator": "+"},
		{"kind": "digit", "digit": 4},
	} {
		if err := conn.WriteJSON(event); err != nil {
			t.Fatalf("write %v: %v", event, err)
		}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame for %v: %v", event, err)
		}
		if frame.Type != "state" {
			t.Fatalf("expected state frame, got %+v", frame)
		}
	}

	if err := conn.WriteJSON(map[string]any{"kind": "equals"}); err != nil {
		t.Fatalf("write equals: %v", err)
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read equals frame: %v", err)
	}
	if frame.State.Current != 10 {
		t.Fatalf("expected current 10, got %v", frame.State.Current)
	}
	if frame.Record == nil || frame.Record.Expression != "6 + 4" {
		t.Fatalf("expected history record in frame, got %+v", frame.Record)
	}

	// Division by zero is answered in-band and the connection stays open.
	for _, event := range []map[string]any{
		{"kind": "operator", "operator": "/"},
		{"kind": "digit", "digit": 0},
	} {
		if err := conn.WriteJSON(event); err != nil {
			t.Fatalf("write %v: %v", event, err)
		}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame for %v: %v", event, err)
		}
	}
	if err := conn.WriteJSON(map[string]any{"kind": "equals"}); err != nil {
		t.Fatalf("write equals: %v", err)
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if frame.Type != "error" || frame.Error == "" {
		t.Fatalf("expected error frame, got %+v", frame)
	}

	if err := conn.WriteJSON(map[string]any{"kind": "clear"}); err != nil {
		t.Fatalf("write clear after error: %v", err)
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read clear frame: %v", err)
	}
	if frame.Type != "state" || frame.State.Current != 0 {
		t.Fatalf("expected cleared state frame, got %+v", frame)
	}
}

func TestHandlerWebSocketUnknownWindow(t *testing.T) {
	application := newTestApplication(t)
	handler := newTestHandler(application, nil)

	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/windows/nope/ws?access_token=" + testAuthToken
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatalf("expected dial to fail for unknown window")
	} else if resp == nil || resp.StatusCode != http.StatusNotFound {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("expected 404 on upgrade, got %d", status)
	}
}
