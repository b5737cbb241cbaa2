// Package rpc defines JSON-RPC 2.0 wire format types for WebSocket
// communication.
package rpc

import "github.com/synapse/server/session"

// Client → Server

type AuthParams struct {
	Token string `json:"token"`
}

type SubscribeParams struct {
	Channel string `json:"channel"`
}

type SubscribeResult struct {
	SubscriptionID string `json:"subscription_id"`
}

type UnsubscribeParams struct {
	SubscriptionID string `json:"subscription_id"`
}

type SendParams struct {
	Text string `json:"text"`
}

type SendResult struct {
	Session session.ChatSession `json:"session"`
}

type StartParams struct {
	Role string `json:"role"`
}

type SelectParams struct {
	SessionID string `json:"session_id"`
}

type DeleteParams struct {
	SessionID string `json:"session_id"`
}

type SessionListResult struct {
	Sessions []session.ChatSession `json:"sessions"`
}

// Server → Client

// AlertParams is the payload of the new-alert notification.
type AlertParams struct {
	Content string `json:"content"`
}

// SessionListChangedParams describes one collection mutation pushed to
// session-list subscribers.
type SessionListChangedParams struct {
	SubscriptionID string               `json:"subscription_id"`
	Operation      string               `json:"operation"`
	Session        *session.ChatSession `json:"session,omitempty"`
	SessionID      string               `json:"session_id,omitempty"`
}
