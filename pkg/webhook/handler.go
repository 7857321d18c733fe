package webhook

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sentrynode/sentrynode/internal/httpserver"
)

// Event is the body of an inbound control-plane webhook: a typed
// event name, its opaque payload, and the emit timestamp.
type Event struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Handler serves the inbound webhook endpoint: signature verification plus
// JSON decoding, handing verified events to a callback.
// An empty secret skips verification (dev mode), matching VerifyMiddleware.
// The administrator chat front-end and the broader event fan-out live
// elsewhere; here the callback is the sync worker's event-driven entry
// point.
type Handler struct {
	secret  string
	logger  *slog.Logger
	onEvent func(event Event)
}

// New creates a webhook Handler. onEvent is invoked for every signature-
// verified event; it should not block the request for long since delivery
// is best-effort.
func New(secret string, onEvent func(event Event), logger *slog.Logger) *Handler {
	return &Handler{secret: secret, onEvent: onEvent, logger: logger}
}

// ServeHTTP implements http.Handler for POST /webhook.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, ok := readAndRestoreBody(r)
	if !ok {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "failed to read body")
		return
	}

	if h.secret != "" {
		sig := r.Header.Get(signatureHeader)
		if !VerifySignature(body, sig, h.secret) {
			httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "invalid signature")
			return
		}
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		httpserver.RespondError(w, http.StatusUnprocessableEntity, "schema_error", "invalid event body")
		return
	}

	if h.onEvent != nil {
		h.onEvent(event)
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readAndRestoreBody(r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, false
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, true
}
