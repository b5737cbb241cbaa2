// Package notify is the push-notification service: a hub of role-scoped
// channels that delivers alert events to subscribed WebSocket connections and
// to in-process listeners. Delivery is at-most-once with no replay.
package notify

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/synapse/server/session"
)

// EventNewAlert is the event name published on every alert.
const EventNewAlert = "new-alert"

const channelPrefix = "chat-notifications-"

// ChannelForRole returns the deterministic channel name for a role.
func ChannelForRole(role session.Role) string {
	return channelPrefix + string(role)
}

// RoleForChannel resolves a channel name back to its role.
func RoleForChannel(channel string) (session.Role, bool) {
	name, ok := strings.CutPrefix(channel, channelPrefix)
	if !ok {
		return "", false
	}
	role := session.Role(name)
	return role, role.Valid()
}

// AlertPayload is the wire payload of a new-alert event.
type AlertPayload struct {
	Content string `json:"content"`
}

// Notifier is the server-push side of a connection. *jsonrpc2.Conn
// satisfies it.
type Notifier interface {
	Notify(ctx context.Context, method string, params any, opts ...jsonrpc2.CallOption) error
}

var ErrUnknownChannel = errors.New("unknown channel")

// Subscription binds one subscriber to one channel. Exactly one of Conn and
// Handler is set.
type Subscription struct {
	ID      string
	Channel string
	ConnID  string
	Conn    Notifier
	Handler func(role session.Role, payload AlertPayload)
}

// Hub owns channel subscriptions and fans alert events out to them. It is
// explicitly constructed and injected; Stop tears down every subscription.
type Hub struct {
	mu            sync.RWMutex
	closed        bool
	subscriptions map[string]*Subscription
	connToIDs     map[string][]string
}

// NewHub creates an empty hub with one implicit channel per role.
func NewHub() *Hub {
	return &Hub{
		subscriptions: make(map[string]*Subscription),
		connToIDs:     make(map[string][]string),
	}
}

func generateSubscriptionID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return "sub_" + strings.ToLower(base32.StdEncoding.EncodeToString(b)[:10])
}

// Subscribe registers a remote connection on a channel and returns the
// subscription ID.
func (h *Hub) Subscribe(channel string, conn Notifier, connID string) (string, error) {
	if _, ok := RoleForChannel(channel); !ok {
		return "", ErrUnknownChannel
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "", errors.New("hub is stopped")
	}

	id := generateSubscriptionID()
	h.subscriptions[id] = &Subscription{ID: id, Channel: channel, ConnID: connID, Conn: conn}
	h.connToIDs[connID] = append(h.connToIDs[connID], id)
	return id, nil
}

// SubscribeLocal registers an in-process handler on a channel.
func (h *Hub) SubscribeLocal(channel string, handler func(role session.Role, payload AlertPayload)) (string, error) {
	if _, ok := RoleForChannel(channel); !ok {
		return "", ErrUnknownChannel
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "", errors.New("hub is stopped")
	}

	id := generateSubscriptionID()
	h.subscriptions[id] = &Subscription{ID: id, Channel: channel, Handler: handler}
	return id, nil
}

// Unsubscribe removes a subscription. Unknown IDs are a no-op.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subscriptions[id]
	if !ok {
		return
	}
	delete(h.subscriptions, id)

	if sub.ConnID == "" {
		return
	}
	ids := h.connToIDs[sub.ConnID]
	for i, v := range ids {
		if v == id {
			h.connToIDs[sub.ConnID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(h.connToIDs[sub.ConnID]) == 0 {
		delete(h.connToIDs, sub.ConnID)
	}
}

// CleanupConnection drops every subscription held by a closed connection.
func (h *Hub) CleanupConnection(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids, ok := h.connToIDs[connID]
	if !ok {
		return
	}
	for _, id := range ids {
		delete(h.subscriptions, id)
	}
	delete(h.connToIDs, connID)

	slog.Debug("cleaned up notification subscriptions", "connId", connID, "count", len(ids))
}

// Trigger publishes a new-alert event on the role's channel and returns the
// number of subscribers reached. Subscribers that fail to receive are logged
// and skipped; events are never buffered or replayed.
func (h *Hub) Trigger(role session.Role, message string) int {
	channel := ChannelForRole(role)
	payload := AlertPayload{Content: message}

	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subscriptions))
	for _, sub := range h.subscriptions {
		if sub.Channel == channel {
			subs = append(subs, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if sub.Handler != nil {
			sub.Handler(role, payload)
			continue
		}
		if err := sub.Conn.Notify(context.Background(), EventNewAlert, payload); err != nil {
			slog.Debug("failed to notify subscriber", "id", sub.ID, "error", err)
		}
	}

	slog.Info("alert published", "channel", channel, "subscribers", len(subs))
	return len(subs)
}

// Stop unsubscribes everything and rejects further subscriptions.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	h.subscriptions = make(map[string]*Subscription)
	h.connToIDs = make(map[string][]string)
}
