package watch

import (
	"log/slog"

	"github.com/synapse/server/rpc"
	"github.com/synapse/server/session"
)

// SessionListWatcher notifies subscribers when the session collection
// changes. Uses a channel-based async notification pattern to avoid blocking
// the session store's mutex during network I/O.
type SessionListWatcher struct {
	*BaseWatcher
	store   session.Store
	eventCh chan session.ChangeEvent
}

func NewSessionListWatcher(store session.Store) *SessionListWatcher {
	w := &SessionListWatcher{
		BaseWatcher: NewBaseWatcher("sl"),
		store:       store,
		eventCh:     make(chan session.ChangeEvent, 64), // Buffer to avoid blocking
	}
	store.SetOnChangeListener(w)
	return w
}

// OnSessionChange implements session.OnChangeListener. Events are handed off
// to the async loop; a full buffer drops the event (subscribers can always
// re-list).
func (w *SessionListWatcher) OnSessionChange(event session.ChangeEvent) {
	select {
	case w.eventCh <- event:
	default:
		slog.Warn("session change event dropped, buffer full")
	}
}

func (w *SessionListWatcher) Start() error {
	go w.eventLoop()
	slog.Info("SessionListWatcher started")
	return nil
}

func (w *SessionListWatcher) Stop() {
	w.Cancel()
	slog.Info("SessionListWatcher stopped")
}

func (w *SessionListWatcher) eventLoop() {
	for {
		select {
		case <-w.Context().Done():
			return
		case event := <-w.eventCh:
			w.notifyChange(event)
		}
	}
}

func (w *SessionListWatcher) notifyChange(event session.ChangeEvent) {
	if !w.HasSubscriptions() {
		return
	}

	w.NotifyAll("session.list.changed", func(sub *Subscription) any {
		params := rpc.SessionListChangedParams{
			SubscriptionID: sub.ID,
			Operation:      string(event.Op),
		}
		switch event.Op {
		case session.OperationDelete:
			params.SessionID = event.Session.SessionID
		case session.OperationReset:
			// No session payload; subscribers re-list.
		default:
			sess := event.Session
			params.Session = &sess
		}
		return params
	})

	slog.Debug("notified session list change", "operation", event.Op)
}

// Subscribe registers a subscriber and returns the subscription ID along with
// the current session list.
func (w *SessionListWatcher) Subscribe(conn Notifier, connID string) (string, []session.ChatSession, error) {
	id := w.GenerateID()
	w.AddSubscription(&Subscription{ID: id, ConnID: connID, Conn: conn})
	return id, w.store.List(), nil
}

// Unsubscribe removes a subscription by ID.
func (w *SessionListWatcher) Unsubscribe(id string) {
	w.RemoveSubscription(id)
}
