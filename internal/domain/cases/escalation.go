package cases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careportal/careportal/internal/domain/notifications"
	"github.com/careportal/careportal/internal/platform/auth"
)

// EscalationInput flags a case for immediate attention.
type EscalationInput struct {
	CaseID       uuid.UUID
	ToRole       string
	ToProviderID *string
	Urgency      string
	Message      string
	ActorID      string
}

// CreateEscalation appends a sent escalation and forces the case to
// escalated, whatever state it was in. A closed case reopens.
func (s *Service) CreateEscalation(ctx context.Context, in EscalationInput) (*Case, Outcome, error) {
	return s.mutate(ctx, in.CaseID, "create_escalation", func(c *Case) (Outcome, []*notifications.Notification) {
		role := auth.NormalizeRole(in.ToRole)
		if role == "" {
			return Ignored(ReasonMissingRole), nil
		}
		message := strings.TrimSpace(in.Message)
		if message == "" {
			return Ignored(ReasonMissingMessage), nil
		}
		urgency := in.Urgency
		if urgency == "" {
			urgency = UrgencyUrgent
		}
		if !validUrgencies[urgency] {
			return Ignored(ReasonInvalidUrgency), nil
		}

		esc := Escalation{
			ID:              uuid.New(),
			ToRole:          role,
			ToProviderID:    in.ToProviderID,
			Urgency:         urgency,
			Message:         message,
			Status:          EscalationSent,
			CreatedByUserID: in.ActorID,
			CreatedAt:       time.Now(),
		}
		c.Escalations = append(c.Escalations, esc)
		s.deriveStatus(ctx, c)

		batch := s.fanout(ctx, role, in.ToProviderID,
			"case_escalated", notifications.ContextEscalation, esc.ID.String(),
			fmt.Sprintf("%s escalation for %s: %s", urgency, c.PatientName, message))
		return Applied(), batch
	})
}

// AcknowledgeEscalation moves a sent escalation to acknowledged. Only
// the eligible responder may acknowledge, and only from sent; anything
// else is a silent no-op. The case stays escalated.
func (s *Service) AcknowledgeEscalation(ctx context.Context, caseID, escalationID uuid.UUID, actorID, actorRole string) (*Case, Outcome, error) {
	return s.mutate(ctx, caseID, "acknowledge_escalation", func(c *Case) (Outcome, []*notifications.Notification) {
		esc := c.FindEscalation(escalationID)
		if esc == nil {
			return Ignored(ReasonNotFound), nil
		}
		if esc.Status != EscalationSent {
			return Ignored(ReasonNotSent), nil
		}
		if !eligibleResponder(esc.ToRole, esc.ToProviderID, actorID, actorRole) {
			return Ignored(ReasonNotEligible), nil
		}
		now := time.Now()
		esc.Status = EscalationAcknowledged
		esc.AcknowledgedAt = &now
		esc.AcknowledgedBy = &actorID
		s.deriveStatus(ctx, c)

		batch := []*notifications.Notification{
			notifications.New(esc.CreatedByUserID, "escalation_acknowledged", notifications.ContextEscalation, esc.ID.String(),
				fmt.Sprintf("Escalation for %s was acknowledged", c.PatientName)),
		}
		return Applied(), batch
	})
}

// ResolveEscalation closes out one escalation and recomputes the case
// status. The case leaves escalated only when no other escalation
// remains open; with an occupied care team it lands on in_progress or
// assigned, otherwise it reverts to triage-era states.
func (s *Service) ResolveEscalation(ctx context.Context, caseID, escalationID uuid.UUID, actorID, actorRole string) (*Case, Outcome, error) {
	return s.mutate(ctx, caseID, "resolve_escalation", func(c *Case) (Outcome, []*notifications.Notification) {
		esc := c.FindEscalation(escalationID)
		if esc == nil {
			return Ignored(ReasonNotFound), nil
		}
		if esc.Status == EscalationResolved {
			return Ignored(ReasonAlreadyResolved), nil
		}
		if !eligibleResponder(esc.ToRole, esc.ToProviderID, actorID, actorRole) {
			return Ignored(ReasonNotEligible), nil
		}
		now := time.Now()
		esc.Status = EscalationResolved
		esc.ResolvedAt = &now
		esc.ResolvedBy = &actorID
		s.deriveStatus(ctx, c)

		batch := []*notifications.Notification{
			notifications.New(esc.CreatedByUserID, "escalation_resolved", notifications.ContextEscalation, esc.ID.String(),
				fmt.Sprintf("Escalation for %s was resolved", c.PatientName)),
		}
		return Applied(), batch
	})
}
