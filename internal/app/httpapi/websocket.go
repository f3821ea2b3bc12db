package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/calc"
	domain "github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/history"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/metrics"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage"
)

// wsUpgrader accepts cross-origin upgrades; the token check in
// wrapWithAuth already ran by the time a socket is established.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsFrame is one server-to-client message: either the state after an
// event ("state") or a recoverable failure ("error"). Error frames keep
// the last known display state so clients never blank out.
type wsFrame struct {
	Type     string         `json:"type"`
	WindowID string         `json:"window_id"`
	State    calc.State     `json:"state"`
	Record   *domain.Record `json:"record,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// serveWindowSocket streams events in and state frames out over one
// connection. Division by zero and malformed frames are answered
// in-band; the connection stays open.
func (h *handler) serveWindowSocket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	win, err := h.app.Calculator.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrWindowNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		return
	}
	defer conn.Close()

	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()

	// Opening frame carries the current display state.
	if err := conn.WriteJSON(wsFrame{Type: "state", WindowID: id, State: win.State}); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if !gjson.ValidBytes(data) || !gjson.GetBytes(data, "kind").Exists() {
			if err := conn.WriteJSON(wsFrame{Type: "error", WindowID: id, State: win.State, Error: "frame must be a JSON event with a kind"}); err != nil {
				return
			}
			continue
		}

		var ev calc.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			if err := conn.WriteJSON(wsFrame{Type: "error", WindowID: id, State: win.State, Error: "malformed event: " + err.Error()}); err != nil {
				return
			}
			continue
		}

		next, rec, err := h.app.Calculator.Press(r.Context(), id, ev)
		if err != nil {
			if errors.Is(err, storage.ErrWindowNotFound) {
				// Window expired mid-session; nothing further to serve.
				_ = conn.WriteJSON(wsFrame{Type: "error", WindowID: id, Error: err.Error()})
				return
			}
			// Recoverable: report in-band with the untouched state.
			win = next
			if err := conn.WriteJSON(wsFrame{Type: "error", WindowID: id, State: win.State, Error: err.Error()}); err != nil {
				return
			}
			continue
		}

		win = next
		if err := conn.WriteJSON(wsFrame{Type: "state", WindowID: id, State: win.State, Record: rec}); err != nil {
			return
		}
	}
}
