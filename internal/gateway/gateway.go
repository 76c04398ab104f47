// Package gateway implements the HTTP ingress for roundhouse.
//
// The gateway is a thin bridge: requests are validated, converted into bus
// events, and published. Dispatch outcomes flow back over the bus, not over
// HTTP — callers that need results subscribe like any other observer. It is
// best suited for CLIs, web clients, and services that prefer HTTP over a
// broker connection.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nadzzz/roundhouse/internal/bus"
	"github.com/nadzzz/roundhouse/internal/message"
)

// Server is the HTTP ingress server.
type Server struct {
	port      int
	publisher bus.Publisher
	server    *http.Server
}

// New creates a gateway on the given port publishing to the given bus.
func New(port int, publisher bus.Publisher) *Server {
	return &Server{port: port, publisher: publisher}
}

// utteranceRequest is the POST /utterance body.
type utteranceRequest struct {
	// Utterances are candidate transcriptions, best first.
	Utterances []string `json:"utterances"`

	// Lang optionally overrides the default language for this event.
	Lang string `json:"lang,omitempty"`

	// SessionID addresses an explicit conversation; empty means default.
	SessionID string `json:"session_id,omitempty"`
}

// contextRequest is the POST /context body.
type contextRequest struct {
	// Action is "add", "remove" or "clear".
	Action string `json:"action"`

	Context   string `json:"context,omitempty"`
	Word      string `json:"word,omitempty"`
	Origin    string `json:"origin,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type ackResponse struct {
	MessageID string `json:"message_id"`
}

// ListenAndServe starts the gateway and blocks until the context is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /utterance", s.handleUtterance)
	mux.HandleFunc("POST /context", s.handleContext)

	// Swagger UI — serves the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("gateway listening", "port", s.port)

	go func() {
		<-ctx.Done()
		slog.Info("gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway listen: %w", err)
	}
	return nil
}

// handleUtterance publishes an utterance event built from the request body.
//
// @Summary     Submit an utterance for dispatch
// @Description Publishes an utterance event on the message bus. The dispatch
// @Description outcome is emitted on the bus (intent reply or failure events),
// @Description not returned in this response.
// @Tags        dispatch
// @Accept      json
// @Produce     json
// @Param       request  body      utteranceRequest  true  "Candidate transcriptions plus optional language and session id"
// @Success     202  {object}  ackResponse  "Event accepted; message_id correlates bus events"
// @Failure     400  {string}  string  "Invalid request body"
// @Failure     502  {string}  string  "Bus publish failed"
// @Router      /utterance [post]
func (s *Server) handleUtterance(w http.ResponseWriter, r *http.Request) {
	var req utteranceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Utterances) == 0 {
		http.Error(w, "utterances must be non-empty", http.StatusBadRequest)
		return
	}

	data := map[string]any{"utterances": req.Utterances}
	if req.Lang != "" {
		data[message.KeyLang] = req.Lang
	}
	msg := message.New(message.TypeUtterance, data, sessionContext(req.SessionID))

	if err := s.publisher.Publish(r.Context(), msg); err != nil {
		slog.Error("gateway publish failed", "error", err)
		http.Error(w, "publish failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeAck(w, msg.ID())
}

// handleContext publishes a context management event.
//
// @Summary     Manage session context
// @Description Publishes a context.add, context.remove or context.clear event
// @Description mutating the addressed session's context stack.
// @Tags        context
// @Accept      json
// @Produce     json
// @Param       request  body      contextRequest  true  "Context mutation"
// @Success     202  {object}  ackResponse  "Event accepted"
// @Failure     400  {string}  string  "Invalid request body or action"
// @Failure     502  {string}  string  "Bus publish failed"
// @Router      /context [post]
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	var msgType string
	data := map[string]any{}
	switch req.Action {
	case "add":
		if req.Context == "" {
			http.Error(w, "add requires a context tag", http.StatusBadRequest)
			return
		}
		msgType = message.TypeContextAdd
		data["context"] = req.Context
		data["word"] = req.Word
		data["origin"] = req.Origin
	case "remove":
		if req.Context == "" {
			http.Error(w, "remove requires a context tag", http.StatusBadRequest)
			return
		}
		msgType = message.TypeContextRemove
		data["context"] = req.Context
	case "clear":
		msgType = message.TypeContextClear
	default:
		http.Error(w, fmt.Sprintf("unknown action %q", req.Action), http.StatusBadRequest)
		return
	}

	msg := message.New(msgType, data, sessionContext(req.SessionID))
	if err := s.publisher.Publish(r.Context(), msg); err != nil {
		slog.Error("gateway publish failed", "error", err)
		http.Error(w, "publish failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeAck(w, msg.ID())
}

func sessionContext(sessionID string) map[string]any {
	ctx := map[string]any{message.KeySource: "gateway"}
	if sessionID != "" {
		ctx[message.KeySessionID] = sessionID
	}
	return ctx
}

func writeAck(w http.ResponseWriter, messageID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(ackResponse{MessageID: messageID})
}

// Close gracefully shuts down the gateway.
func (s *Server) Close() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}
