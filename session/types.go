package session

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the job function a user chats as. The set is fixed and known at
// startup; each role maps to one notification channel.
type Role string

const (
	RoleInventoryPlanner  Role = "Inventory Planner"
	RoleReplenisher       Role = "Replenisher"
	RoleSales             Role = "Sales"
	RoleWarehouseOperator Role = "Warehouse Operator"
)

// Roles returns all known roles in a stable order.
func Roles() []Role {
	return []Role{RoleInventoryPlanner, RoleReplenisher, RoleSales, RoleWarehouseOperator}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleInventoryPlanner, RoleReplenisher, RoleSales, RoleWarehouseOperator:
		return true
	}
	return false
}

// Slug returns a lowercase, dash-separated form of the role name, used in
// session IDs.
func (r Role) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(r)), " ", "-")
}

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Message is a single chat message. Messages are immutable once appended.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatSession is one conversation thread tied to a single role. Messages are
// append-only; Timestamp is the last-modified instant and drives ordering.
type ChatSession struct {
	SessionID string    `json:"sessionId"`
	Role      Role      `json:"role"`
	Messages  []Message `json:"messages"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSessionID generates a fresh session ID for a role. IDs are never reused.
func NewSessionID(role Role) string {
	return role.Slug() + "-" + uuid.Must(uuid.NewV7()).String()
}

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrUnknownRole      = errors.New("unknown role")
	ErrEmptyMessage     = errors.New("empty message")
	ErrNoActiveSession  = errors.New("no active session")
	ErrDispatchInFlight = errors.New("dispatch already in flight")
)

// ChangeOp identifies the kind of collection mutation in a ChangeEvent.
type ChangeOp string

const (
	OperationCreate ChangeOp = "create"
	OperationUpdate ChangeOp = "update"
	OperationDelete ChangeOp = "delete"
	OperationReset  ChangeOp = "reset" // clear-all or external reload
)

// ChangeEvent describes a single mutation of the session collection.
type ChangeEvent struct {
	Op      ChangeOp
	Session ChatSession // zero value for reset events
}

// OnChangeListener receives collection change events.
type OnChangeListener interface {
	OnSessionChange(event ChangeEvent)
}
