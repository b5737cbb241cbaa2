package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/synapse/server/session"
)

func newTestManager(t *testing.T) *session.Manager {
	t.Helper()
	store, err := session.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return session.NewManager(store)
}

func lastMessage(t *testing.T, sess session.ChatSession) session.Message {
	t.Helper()
	if len(sess.Messages) == 0 {
		t.Fatal("expected session to have messages")
	}
	return sess.Messages[len(sess.Messages)-1]
}

func TestDispatcher_SendSuccess(t *testing.T) {
	var captured request
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("expected JSON content type, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("expected bearer token, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(response{Output: "Stock level is 120 units."})
	}))
	defer upstream.Close()

	manager := newTestManager(t)
	active, _ := manager.StartNewChat(session.RoleSales)
	d := NewDispatcher(upstream.URL, "secret", manager, 5*time.Second)

	sess, err := d.Send(context.Background(), "How much stock do we have?")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if captured.SessionID != active.SessionID {
		t.Errorf("expected session ID %q on the wire, got %q", active.SessionID, captured.SessionID)
	}
	if captured.ChatInput != "How much stock do we have?" {
		t.Errorf("unexpected chatInput %q", captured.ChatInput)
	}
	if captured.Role != string(session.RoleSales) {
		t.Errorf("unexpected role %q", captured.Role)
	}

	// Greeting + user message + assistant reply.
	if len(sess.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(sess.Messages))
	}
	if got := lastMessage(t, sess); got.Role != session.MessageRoleAssistant || got.Content != "Stock level is 120 units." {
		t.Errorf("unexpected reply %+v", got)
	}
	if manager.InFlight(sess.SessionID) {
		t.Error("expected in-flight flag to be cleared")
	}
}

func TestDispatcher_SendUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	manager := newTestManager(t)
	manager.StartNewChat(session.RoleSales)
	d := NewDispatcher(upstream.URL, "", manager, 5*time.Second)

	sess, err := d.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send should resolve failures into a reply, got %v", err)
	}
	if got := lastMessage(t, sess); got.Content != ConnectionErrorReply {
		t.Errorf("expected connection error reply, got %q", got.Content)
	}
	if manager.InFlight(sess.SessionID) {
		t.Error("expected in-flight flag to be cleared after failure")
	}
}

func TestDispatcher_SendUnreachableEndpoint(t *testing.T) {
	manager := newTestManager(t)
	manager.StartNewChat(session.RoleSales)
	d := NewDispatcher("http://127.0.0.1:1", "", manager, time.Second)

	sess, err := d.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send should resolve failures into a reply, got %v", err)
	}
	if got := lastMessage(t, sess); got.Content != ConnectionErrorReply {
		t.Errorf("expected connection error reply, got %q", got.Content)
	}
}

func TestDispatcher_SendEmptyOutput(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	manager := newTestManager(t)
	manager.StartNewChat(session.RoleSales)
	d := NewDispatcher(upstream.URL, "", manager, 5*time.Second)

	sess, err := d.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := lastMessage(t, sess); got.Content != NoOutputReply {
		t.Errorf("expected no-output reply, got %q", got.Content)
	}
}

func TestDispatcher_PlanningTriggerAnsweredLocally(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("planning trigger must not reach the endpoint")
	}))
	defer upstream.Close()

	manager := newTestManager(t)
	manager.StartNewChat(session.RoleInventoryPlanner)
	d := NewDispatcher(upstream.URL, "", manager, 5*time.Second)

	sess, err := d.Send(context.Background(), "  "+PlanningTrigger+"  ")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := lastMessage(t, sess); got.Content != PlanningReply {
		t.Errorf("expected canned planning reply, got %q", got.Content)
	}
}

func TestDispatcher_GuardErrorsShortCircuit(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("guard failures must not reach the endpoint")
	}))
	defer upstream.Close()

	manager := newTestManager(t)
	d := NewDispatcher(upstream.URL, "", manager, 5*time.Second)

	if _, err := d.Send(context.Background(), "   "); !errors.Is(err, session.ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := d.Send(context.Background(), "hi"); !errors.Is(err, session.ErrNoActiveSession) {
		t.Errorf("expected ErrNoActiveSession, got %v", err)
	}
	if !IsGuardError(session.ErrDispatchInFlight) {
		t.Error("expected ErrDispatchInFlight to be a guard error")
	}
	if IsGuardError(errors.New("other")) {
		t.Error("expected unrelated error not to be a guard error")
	}
}

func TestDispatcher_ReplyDroppedWhenSessionDeletedMidFlight(t *testing.T) {
	manager := newTestManager(t)
	active, _ := manager.StartNewChat(session.RoleSales)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Delete the session while the dispatch is outstanding.
		if err := manager.DeleteChat(active.SessionID); err != nil {
			t.Errorf("DeleteChat failed: %v", err)
		}
		json.NewEncoder(w).Encode(response{Output: "too late"})
	}))
	defer upstream.Close()

	d := NewDispatcher(upstream.URL, "", manager, 5*time.Second)
	if _, err := d.Send(context.Background(), "hello"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if manager.InFlight(active.SessionID) {
		t.Error("expected in-flight flag to be cleared")
	}
}
