// Package ws serves the realtime API: JSON-RPC 2.0 over WebSocket, carrying
// chat commands, session management and push notifications.
package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/synapse/server/chat"
	"github.com/synapse/server/notify"
	"github.com/synapse/server/rpc"
	"github.com/synapse/server/session"
	"github.com/synapse/server/watch"
)

// RPCHandler handles JSON-RPC 2.0 over WebSocket.
type RPCHandler struct {
	token       string
	devMode     bool
	manager     *session.Manager
	dispatcher  *chat.Dispatcher
	hub         *notify.Hub
	listWatcher *watch.SessionListWatcher
}

// NewRPCHandler creates a new JSON-RPC handler.
func NewRPCHandler(token string, devMode bool, manager *session.Manager, dispatcher *chat.Dispatcher, hub *notify.Hub, listWatcher *watch.SessionListWatcher) *RPCHandler {
	return &RPCHandler{
		token:       token,
		devMode:     devMode,
		manager:     manager,
		dispatcher:  dispatcher,
		hub:         hub,
		listWatcher: listWatcher,
	}
}

func (h *RPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: h.devMode,
	})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err)
		return
	}

	h.handleConnection(r.Context(), conn)
}

func (h *RPCHandler) handleConnection(ctx context.Context, wsConn *websocket.Conn) {
	connID := uuid.Must(uuid.NewV7()).String()
	log := slog.With("connId", connID)
	log.Info("new websocket connection")

	stream := newWebSocketStream(wsConn)

	handler := &rpcMethodHandler{
		RPCHandler:    h,
		connID:        connID,
		log:           log,
		authenticated: h.token == "", // no token configured means open access
	}

	rpcConn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.AsyncHandler(handler))

	<-rpcConn.DisconnectNotify()

	// Cleanup: drop every subscription this connection held.
	h.hub.CleanupConnection(connID)
	h.listWatcher.CleanupConnection(connID)
	log.Info("connection closed")
}

// rpcMethodHandler handles JSON-RPC method calls for one connection.
type rpcMethodHandler struct {
	*RPCHandler
	connID        string
	log           *slog.Logger
	authenticated bool
	authMu        sync.Mutex
}

func (h *rpcMethodHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	h.log.Debug("received request", "method", req.Method, "id", req.ID)

	// Auth must be the first request
	if !h.isAuthenticated() {
		if req.Method != "auth" {
			h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidRequest, "first request must be auth")
			conn.Close()
			return
		}
		h.handleAuth(ctx, conn, req)
		return
	}

	switch req.Method {
	case "auth":
		h.reply(ctx, conn, req.ID, struct{}{})
	case "chat.send":
		h.handleChatSend(ctx, conn, req)
	case "notify.subscribe":
		h.handleNotifySubscribe(ctx, conn, req)
	case "notify.unsubscribe":
		h.handleNotifyUnsubscribe(ctx, conn, req)
	case "session.list":
		h.handleSessionList(ctx, conn, req)
	case "session.start":
		h.handleSessionStart(ctx, conn, req)
	case "session.select":
		h.handleSessionSelect(ctx, conn, req)
	case "session.delete":
		h.handleSessionDelete(ctx, conn, req)
	case "session.clear":
		h.handleSessionClear(ctx, conn, req)
	case "session.home":
		h.handleSessionHome(ctx, conn, req)
	case "session.watch":
		h.handleSessionWatch(ctx, conn, req)
	case "session.unwatch":
		h.handleSessionUnwatch(ctx, conn, req)
	default:
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeMethodNotFound, "method not found: "+req.Method)
	}
}

func (h *rpcMethodHandler) isAuthenticated() bool {
	h.authMu.Lock()
	defer h.authMu.Unlock()
	return h.authenticated
}

func (h *rpcMethodHandler) setAuthenticated() {
	h.authMu.Lock()
	h.authenticated = true
	h.authMu.Unlock()
}

func (h *rpcMethodHandler) handleAuth(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.AuthParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		conn.Close()
		return
	}

	if subtle.ConstantTimeCompare([]byte(params.Token), []byte(h.token)) != 1 {
		h.log.Warn("invalid auth token")
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidRequest, "invalid token")
		conn.Close()
		return
	}

	h.setAuthenticated()
	h.log.Info("authenticated")
	h.reply(ctx, conn, req.ID, struct{}{})
}

func (h *rpcMethodHandler) handleChatSend(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.SendParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	sess, err := h.dispatcher.Send(ctx, params.Text)
	if err != nil {
		if chat.IsGuardError(err) {
			h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidRequest, err.Error())
			return
		}
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, err.Error())
		return
	}

	h.reply(ctx, conn, req.ID, rpc.SendResult{Session: sess})
}

func (h *rpcMethodHandler) handleNotifySubscribe(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.SubscribeParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	id, err := h.hub.Subscribe(params.Channel, conn, h.connID)
	if err != nil {
		if errors.Is(err, notify.ErrUnknownChannel) {
			h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "unknown channel: "+params.Channel)
			return
		}
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, err.Error())
		return
	}

	h.log.Info("subscribed to channel", "channel", params.Channel, "subscriptionId", id)
	h.reply(ctx, conn, req.ID, rpc.SubscribeResult{SubscriptionID: id})
}

func (h *rpcMethodHandler) handleNotifyUnsubscribe(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.UnsubscribeParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	h.hub.Unsubscribe(params.SubscriptionID)
	h.reply(ctx, conn, req.ID, struct{}{})
}

func (h *rpcMethodHandler) handleSessionList(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	h.reply(ctx, conn, req.ID, rpc.SessionListResult{Sessions: h.manager.Sessions()})
}

func (h *rpcMethodHandler) handleSessionStart(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.StartParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	sess, err := h.manager.StartNewChat(session.Role(params.Role))
	if err != nil {
		if errors.Is(err, session.ErrUnknownRole) {
			h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "unknown role: "+params.Role)
			return
		}
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "failed to start session")
		return
	}

	h.log.Info("session started", "sessionId", sess.SessionID, "role", sess.Role)
	h.reply(ctx, conn, req.ID, sess)
}

func (h *rpcMethodHandler) handleSessionSelect(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.SelectParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	// Stale IDs are a silent no-op by contract.
	h.manager.LoadChat(params.SessionID)
	h.reply(ctx, conn, req.ID, struct{}{})
}

func (h *rpcMethodHandler) handleSessionDelete(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.DeleteParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	if err := h.manager.DeleteChat(params.SessionID); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "failed to delete session")
		return
	}

	h.log.Info("session deleted", "sessionId", params.SessionID)
	h.reply(ctx, conn, req.ID, struct{}{})
}

func (h *rpcMethodHandler) handleSessionClear(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if err := h.manager.ClearAllHistory(); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "failed to clear history")
		return
	}

	h.log.Info("history cleared")
	h.reply(ctx, conn, req.ID, struct{}{})
}

func (h *rpcMethodHandler) handleSessionHome(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	h.manager.GoHome()
	h.reply(ctx, conn, req.ID, struct{}{})
}

func (h *rpcMethodHandler) handleSessionWatch(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	id, sessions, err := h.listWatcher.Subscribe(conn, h.connID)
	if err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "failed to watch sessions")
		return
	}

	result := struct {
		SubscriptionID string                `json:"subscription_id"`
		Sessions       []session.ChatSession `json:"sessions"`
	}{SubscriptionID: id, Sessions: sessions}

	h.reply(ctx, conn, req.ID, result)
}

func (h *rpcMethodHandler) handleSessionUnwatch(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.UnsubscribeParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	h.listWatcher.Unsubscribe(params.SubscriptionID)
	h.reply(ctx, conn, req.ID, struct{}{})
}

func (h *rpcMethodHandler) reply(ctx context.Context, conn *jsonrpc2.Conn, id jsonrpc2.ID, result any) {
	if err := conn.Reply(ctx, id, result); err != nil {
		h.log.Error("failed to send response", "error", err)
	}
}

func (h *rpcMethodHandler) replyError(ctx context.Context, conn *jsonrpc2.Conn, id jsonrpc2.ID, code int64, message string) {
	err := &jsonrpc2.Error{
		Code:    code,
		Message: message,
	}
	if replyErr := conn.ReplyWithError(ctx, id, err); replyErr != nil {
		h.log.Error("failed to send error response", "error", replyErr)
	}
}

// webSocketStream adapts coder/websocket to jsonrpc2.ObjectStream.
type webSocketStream struct {
	conn *websocket.Conn
	mu   sync.Mutex // protects writes
}

func newWebSocketStream(conn *websocket.Conn) *webSocketStream {
	return &webSocketStream{conn: conn}
}

func (s *webSocketStream) ReadObject(v interface{}) error {
	_, data, err := s.conn.Read(context.Background())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *webSocketStream) WriteObject(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Write(context.Background(), websocket.MessageText, data)
}

func (s *webSocketStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

// Ensure webSocketStream implements ObjectStream
var _ jsonrpc2.ObjectStream = (*webSocketStream)(nil)
