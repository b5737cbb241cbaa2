package notify

import (
	"log/slog"

	"github.com/synapse/server/session"
)

// Listener routes published alerts into the session collection. On Start it
// subscribes to the channel of every known role; alerts append an assistant
// message to the matching session, or synthesize a new session when the role
// has none.
type Listener struct {
	hub     *Hub
	manager *session.Manager
	subIDs  []string
}

// NewListener creates a listener; it is inert until Start.
func NewListener(hub *Hub, manager *session.Manager) *Listener {
	return &Listener{hub: hub, manager: manager}
}

// Start subscribes to one channel per role.
func (l *Listener) Start() error {
	for _, role := range session.Roles() {
		id, err := l.hub.SubscribeLocal(ChannelForRole(role), l.onAlert)
		if err != nil {
			l.Stop()
			return err
		}
		l.subIDs = append(l.subIDs, id)
	}
	slog.Info("notification listener started", "channels", len(l.subIDs))
	return nil
}

// Stop unsubscribes all channels. Events arriving afterwards are dropped.
func (l *Listener) Stop() {
	for _, id := range l.subIDs {
		l.hub.Unsubscribe(id)
	}
	l.subIDs = nil
	slog.Info("notification listener stopped")
}

func (l *Listener) onAlert(role session.Role, payload AlertPayload) {
	if _, err := l.manager.ApplyAlert(role, payload.Content); err != nil {
		slog.Error("failed to apply alert", "role", role, "error", err)
	}
}
