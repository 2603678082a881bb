package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Context types notifications attach to.
const (
	ContextCase              = "case"
	ContextAssignmentRequest = "assignment_request"
	ContextEscalation        = "escalation"
)

// RecipientUnassigned is used when a workflow event has no provider to
// address, such as triage completing against an empty roster.
const RecipientUnassigned = "unassigned"

// Notification is a record of a workflow event addressed to one
// recipient. Rows are append-only; the only mutation is the recipient
// marking one read.
type Notification struct {
	ID          uuid.UUID `json:"id"`
	RecipientID string    `json:"recipientId"`
	Type        string    `json:"type"`
	ContextType string    `json:"contextType"`
	ContextID   string    `json:"contextId"`
	Message     string    `json:"message"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// New builds an unread notification. The caller persists it through
// Service.Push.
func New(recipientID, typ, contextType, contextID, message string) *Notification {
	return &Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		Type:        typ,
		ContextType: contextType,
		ContextID:   contextID,
		Message:     message,
	}
}
