package cases

import (
	"time"

	"github.com/google/uuid"

	"github.com/careportal/careportal/internal/platform/auth"
)

// Case statuses. The string values are the wire contract; dashboards
// and stored rows both carry them verbatim.
const (
	StatusNew              = "new"
	StatusTriage           = "triage"
	StatusAssigned         = "assigned"
	StatusInProgress       = "in_progress"
	StatusAwaitingProvider = "awaiting_provider"
	StatusEscalated        = "escalated"
	StatusClosed           = "closed"
)

var validStatuses = map[string]bool{
	StatusNew:              true,
	StatusTriage:           true,
	StatusAssigned:         true,
	StatusInProgress:       true,
	StatusAwaitingProvider: true,
	StatusEscalated:        true,
	StatusClosed:           true,
}

// Assignment request statuses.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
	RequestCanceled = "canceled"
)

// Assignment request priorities.
const (
	PriorityRoutine = "routine"
	PriorityUrgent  = "urgent"
)

var validPriorities = map[string]bool{
	PriorityRoutine: true,
	PriorityUrgent:  true,
}

// Escalation statuses.
const (
	EscalationSent         = "sent"
	EscalationAcknowledged = "acknowledged"
	EscalationResolved     = "resolved"
)

// Escalation urgencies.
const (
	UrgencyUrgent    = "urgent"
	UrgencyEmergency = "emergency"
)

var validUrgencies = map[string]bool{
	UrgencyUrgent:    true,
	UrgencyEmergency: true,
}

// AssignedProvider is one slot in a case's care team. A case holds at
// most one entry per role; accepting a request for an occupied role
// replaces the holder.
type AssignedProvider struct {
	Role       string `json:"role"`
	ProviderID string `json:"providerId"`
	Status     string `json:"status"`
}

const AssignedProviderActive = "assigned"

// AssignmentRequest asks a role or a specific provider to take a case.
type AssignmentRequest struct {
	ID                  uuid.UUID  `json:"id"`
	RequestedRole       string     `json:"requestedRole"`
	RequestedProviderID *string    `json:"requestedProviderId,omitempty"`
	Priority            string     `json:"priority"`
	Reason              string     `json:"reason"`
	Status              string     `json:"status"`
	CreatedByUserID     string     `json:"createdByUserId"`
	CreatedAt           time.Time  `json:"createdAt"`
	ResolvedAt          *time.Time `json:"resolvedAt,omitempty"`
	ResolvedByUserID    *string    `json:"resolvedByUserId,omitempty"`
}

// Escalation flags a case for immediate attention from a role or a
// specific provider.
type Escalation struct {
	ID              uuid.UUID  `json:"id"`
	ToRole          string     `json:"toRole"`
	ToProviderID    *string    `json:"toProviderId,omitempty"`
	Urgency         string     `json:"urgency"`
	Message         string     `json:"message"`
	Status          string     `json:"status"`
	CreatedByUserID string     `json:"createdByUserId"`
	CreatedAt       time.Time  `json:"createdAt"`
	AcknowledgedAt  *time.Time `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy  *string    `json:"acknowledgedBy,omitempty"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy      *string    `json:"resolvedBy,omitempty"`
}

// Case is the coordination record for one patient's episode of care.
// Version backs optimistic concurrency: every persisted mutation bumps
// it, and a write against a stale version is rejected.
type Case struct {
	ID                  uuid.UUID           `json:"id"`
	PatientID           uuid.UUID           `json:"patientId"`
	PatientName         string              `json:"patientName"`
	Status              string              `json:"status"`
	SpecialistRequested bool                `json:"specialistRequested"`
	SpecialistRole      string              `json:"specialistRole,omitempty"`
	AssignedProviders   []AssignedProvider  `json:"assignedProviders"`
	AssignmentRequests  []AssignmentRequest `json:"assignmentRequests"`
	Escalations         []Escalation        `json:"escalations"`
	CreatedByUserID     string              `json:"createdByUserId"`
	TriageCompletedAt   *time.Time          `json:"triageCompletedAt,omitempty"`
	TriageCompletedBy   *string             `json:"triageCompletedBy,omitempty"`
	Version             int                 `json:"version"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// Normalize repairs a case loaded from storage or built from partial
// input: unknown status falls back to new, nil collections become
// empty, and roles are lowercased. It is total and idempotent, so
// every read path can run it unconditionally.
func (c *Case) Normalize() {
	if !validStatuses[c.Status] {
		c.Status = StatusNew
	}
	if c.AssignedProviders == nil {
		c.AssignedProviders = []AssignedProvider{}
	}
	if c.AssignmentRequests == nil {
		c.AssignmentRequests = []AssignmentRequest{}
	}
	if c.Escalations == nil {
		c.Escalations = []Escalation{}
	}
	c.SpecialistRole = auth.NormalizeRole(c.SpecialistRole)
	for i := range c.AssignedProviders {
		c.AssignedProviders[i].Role = auth.NormalizeRole(c.AssignedProviders[i].Role)
		if c.AssignedProviders[i].Status == "" {
			c.AssignedProviders[i].Status = AssignedProviderActive
		}
	}
	for i := range c.AssignmentRequests {
		c.AssignmentRequests[i].RequestedRole = auth.NormalizeRole(c.AssignmentRequests[i].RequestedRole)
	}
	for i := range c.Escalations {
		c.Escalations[i].ToRole = auth.NormalizeRole(c.Escalations[i].ToRole)
	}
}

// SetAssignedProvider records a provider on the care team, replacing
// any existing holder of the same role and preserving slot order.
func (c *Case) SetAssignedProvider(role, providerID string) {
	role = auth.NormalizeRole(role)
	for i := range c.AssignedProviders {
		if c.AssignedProviders[i].Role == role {
			c.AssignedProviders[i].ProviderID = providerID
			c.AssignedProviders[i].Status = AssignedProviderActive
			return
		}
	}
	c.AssignedProviders = append(c.AssignedProviders, AssignedProvider{
		Role: role, ProviderID: providerID, Status: AssignedProviderActive,
	})
}

// HasActiveAssignmentForRole reports whether the role slot is occupied.
func (c *Case) HasActiveAssignmentForRole(role string) bool {
	role = auth.NormalizeRole(role)
	for _, ap := range c.AssignedProviders {
		if ap.Role == role && ap.ProviderID != "" {
			return true
		}
	}
	return false
}

// HasActiveAssignment reports whether any provider holds the case.
func (c *Case) HasActiveAssignment() bool {
	for _, ap := range c.AssignedProviders {
		if ap.ProviderID != "" {
			return true
		}
	}
	return false
}

// HasOpenEscalations reports whether any escalation is not yet
// resolved. Acknowledged escalations still count as open.
func (c *Case) HasOpenEscalations() bool {
	for _, e := range c.Escalations {
		if e.Status != EscalationResolved {
			return true
		}
	}
	return false
}

// HasUnfulfilledRequests reports whether someone is still waiting on
// coverage: a pending request, or a declined one nobody has retracted,
// for a role whose slot is empty. Only cancellation or an accept
// withdraws the ask, and filling the role another way satisfies it.
func (c *Case) HasUnfulfilledRequests() bool {
	for _, r := range c.AssignmentRequests {
		if r.Status != RequestPending && r.Status != RequestDeclined {
			continue
		}
		if !c.HasActiveAssignmentForRole(r.RequestedRole) {
			return true
		}
	}
	return false
}

// FindRequest returns the assignment request with the given id, or nil.
func (c *Case) FindRequest(id uuid.UUID) *AssignmentRequest {
	for i := range c.AssignmentRequests {
		if c.AssignmentRequests[i].ID == id {
			return &c.AssignmentRequests[i]
		}
	}
	return nil
}

// FindEscalation returns the escalation with the given id, or nil.
func (c *Case) FindEscalation(id uuid.UUID) *Escalation {
	for i := range c.Escalations {
		if c.Escalations[i].ID == id {
			return &c.Escalations[i]
		}
	}
	return nil
}

// DeriveStatus recomputes the aggregate case status from the case's own
// records plus the active-visit signal. It is the single place status
// precedence lives; every mutation calls it instead of setting status
// inline.
//
// Precedence, highest first:
//  1. any unresolved escalation wins, whatever else is true
//  2. a closed case with no open escalations stays closed
//  3. an unfulfilled request for an unfilled role reads
//     awaiting_provider, even when another role is covered
//  4. an occupied care team reads in_progress during an active visit,
//     assigned otherwise
//  5. completed triage with nobody assigned reads awaiting_provider
//  6. an untouched case stays new; anything else falls back to triage
func DeriveStatus(c *Case, hasActiveVisit bool) string {
	if c.HasOpenEscalations() {
		return StatusEscalated
	}
	if c.Status == StatusClosed {
		return StatusClosed
	}
	if c.HasUnfulfilledRequests() {
		return StatusAwaitingProvider
	}
	if c.HasActiveAssignment() {
		if hasActiveVisit {
			return StatusInProgress
		}
		return StatusAssigned
	}
	if c.TriageCompletedAt != nil {
		return StatusAwaitingProvider
	}
	if c.Status == StatusNew {
		return StatusNew
	}
	return StatusTriage
}
