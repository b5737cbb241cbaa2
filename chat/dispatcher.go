// Package chat sends user messages to the external workflow endpoint and
// resolves replies back into the session collection.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/synapse/server/logger"
	"github.com/synapse/server/session"
)

const (
	// Reply used when the endpoint answers without an output field.
	NoOutputReply = "Sorry, a connection could not be established."
	// Reply used on any transport failure or non-2xx status. Never retried.
	ConnectionErrorReply = "A connection error occurred. Please try again."

	promptLogMaxLen = 50
)

// request is the wire format expected by the workflow webhook.
type request struct {
	SessionID string `json:"sessionId"`
	ChatInput string `json:"chatInput"`
	Role      string `json:"role"`
}

// response is the wire format returned by the workflow webhook.
type response struct {
	Output string `json:"output"`
}

// Dispatcher turns a submitted message into a persisted exchange. Exactly one
// dispatch is permitted at a time per session, enforced by the manager's
// in-flight flag.
type Dispatcher struct {
	endpoint string
	token    string
	client   *http.Client
	manager  *session.Manager

	sendCounter metric.Int64Counter
}

// NewDispatcher creates a dispatcher posting to endpoint, authorizing with
// the bearer token when one is given. The timeout bounds the whole request; a
// timed-out dispatch resolves through the same path as a network failure.
func NewDispatcher(endpoint, token string, manager *session.Manager, timeout time.Duration) *Dispatcher {
	counter, err := otel.Meter("synapse").Int64Counter("chat.dispatches")
	if err != nil {
		slog.Error("failed to create dispatch counter", "error", err)
	}
	return &Dispatcher{
		endpoint:    endpoint,
		token:       token,
		client:      &http.Client{Timeout: timeout},
		manager:     manager,
		sendCounter: counter,
	}
}

// Send submits text for the active session. Phase one appends the user
// message optimistically; phase two appends the assistant reply or a fixed
// error message and always clears the in-flight flag. Guard failures
// (ErrEmptyMessage, ErrNoActiveSession, ErrDispatchInFlight) short-circuit
// with no state change.
func (d *Dispatcher) Send(ctx context.Context, text string) (session.ChatSession, error) {
	sess, err := d.manager.BeginDispatch(text)
	if err != nil {
		return session.ChatSession{}, err
	}

	ctx, span := otel.Tracer("synapse").Start(ctx, "chat.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sess.SessionID),
		attribute.String("session.role", string(sess.Role)),
	)

	slog.Info("dispatching message",
		"sessionId", sess.SessionID,
		"role", sess.Role,
		"prompt", logger.Truncate(text, promptLogMaxLen))

	// The planning request is answered from a local lookup table of one
	// entry, keyed on exact text equality. No network call is made.
	if strings.TrimSpace(text) == PlanningTrigger {
		d.count(ctx, "canned")
		return d.manager.CompleteDispatch(sess.SessionID, PlanningReply)
	}

	reply := d.call(ctx, sess, text)
	return d.manager.CompleteDispatch(sess.SessionID, reply)
}

// call performs the single HTTP POST and maps every failure to the fixed
// connection-error reply. Failures are logged, never retried.
func (d *Dispatcher) call(ctx context.Context, sess session.ChatSession, text string) string {
	body, err := json.Marshal(request{
		SessionID: sess.SessionID,
		ChatInput: text,
		Role:      string(sess.Role),
	})
	if err != nil {
		slog.Error("failed to encode chat request", "error", err)
		d.count(ctx, "error")
		return ConnectionErrorReply
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		slog.Error("failed to build chat request", "error", err)
		d.count(ctx, "error")
		return ConnectionErrorReply
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	res, err := d.client.Do(req)
	if err != nil {
		slog.Error("chat endpoint unreachable", "endpoint", d.endpoint, "error", err)
		d.count(ctx, "error")
		return ConnectionErrorReply
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		slog.Error("chat endpoint returned failure", "status", res.StatusCode)
		d.count(ctx, "error")
		return ConnectionErrorReply
	}

	var parsed response
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		slog.Error("failed to decode chat response", "error", err)
		d.count(ctx, "error")
		return ConnectionErrorReply
	}

	if parsed.Output == "" {
		d.count(ctx, "empty")
		return NoOutputReply
	}

	d.count(ctx, "ok")
	return parsed.Output
}

func (d *Dispatcher) count(ctx context.Context, outcome string) {
	if d.sendCounter == nil {
		return
	}
	d.sendCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// IsGuardError reports whether err is one of the pre-dispatch guard errors
// that leave all state untouched.
func IsGuardError(err error) bool {
	return errors.Is(err, session.ErrEmptyMessage) ||
		errors.Is(err, session.ErrNoActiveSession) ||
		errors.Is(err, session.ErrDispatchInFlight)
}
