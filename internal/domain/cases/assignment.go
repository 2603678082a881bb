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

// Respond actions.
const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
)

// eligibleResponder decides who may act on a request or escalation
// addressed to a role or a specific provider. Provider targeting wins:
// when a provider id is present only that provider qualifies, role
// match notwithstanding. With no target at all nobody qualifies.
func eligibleResponder(targetRole string, targetProviderID *string, actorID, actorRole string) bool {
	if targetProviderID != nil && *targetProviderID != "" {
		return actorID == *targetProviderID
	}
	if targetRole == "" {
		return false
	}
	return auth.NormalizeRole(actorRole) == targetRole
}

// fanout builds one notification per resolved target: the requested
// provider when one is named, otherwise every provider holding the
// requested role.
func (s *Service) fanout(ctx context.Context, role string, providerID *string, typ, contextType, contextID, message string) []*notifications.Notification {
	if providerID != nil && *providerID != "" {
		return []*notifications.Notification{
			notifications.New(*providerID, typ, contextType, contextID, message),
		}
	}
	pool, err := s.providers.ProvidersByRole(ctx, role)
	if err != nil {
		s.log.Debug().Err(err).Str("role", role).Msg("provider fanout lookup failed")
		return nil
	}
	batch := make([]*notifications.Notification, 0, len(pool))
	for _, p := range pool {
		batch = append(batch, notifications.New(p.ID.String(), typ, contextType, contextID, message))
	}
	return batch
}

// AssignmentRequestInput carries a new ask for coverage.
type AssignmentRequestInput struct {
	CaseID              uuid.UUID
	RequestedRole       string
	RequestedProviderID *string
	Priority            string
	Reason              string
	ActorID             string
}

// RequestAssignment records a pending ask against the case. Missing
// role or reason, or an unknown priority, is silently ignored. A case
// whose role slot is already held still takes the request; the status
// just does not regress to awaiting_provider.
func (s *Service) RequestAssignment(ctx context.Context, in AssignmentRequestInput) (*Case, Outcome, error) {
	return s.mutate(ctx, in.CaseID, "request_assignment", func(c *Case) (Outcome, []*notifications.Notification) {
		role := auth.NormalizeRole(in.RequestedRole)
		if role == "" {
			return Ignored(ReasonMissingRole), nil
		}
		reason := strings.TrimSpace(in.Reason)
		if reason == "" {
			return Ignored(ReasonMissingReason), nil
		}
		priority := in.Priority
		if priority == "" {
			priority = PriorityRoutine
		}
		if !validPriorities[priority] {
			return Ignored(ReasonInvalidPriority), nil
		}

		req := AssignmentRequest{
			ID:                  uuid.New(),
			RequestedRole:       role,
			RequestedProviderID: in.RequestedProviderID,
			Priority:            priority,
			Reason:              reason,
			Status:              RequestPending,
			CreatedByUserID:     in.ActorID,
			CreatedAt:           time.Now(),
		}
		c.AssignmentRequests = append(c.AssignmentRequests, req)
		s.deriveStatus(ctx, c)

		batch := s.fanout(ctx, role, in.RequestedProviderID,
			"assignment_requested", notifications.ContextAssignmentRequest, req.ID.String(),
			fmt.Sprintf("%s assignment requested for %s: %s", priority, c.PatientName, reason))
		return Applied(), batch
	})
}

// CancelAssignmentRequest retracts a pending request. Only the creator
// may cancel, and only while the request is still pending.
func (s *Service) CancelAssignmentRequest(ctx context.Context, caseID, requestID uuid.UUID, actorID string) (*Case, Outcome, error) {
	return s.mutate(ctx, caseID, "cancel_assignment_request", func(c *Case) (Outcome, []*notifications.Notification) {
		req := c.FindRequest(requestID)
		if req == nil {
			return Ignored(ReasonNotFound), nil
		}
		if req.Status != RequestPending {
			return Ignored(ReasonNotPending), nil
		}
		if req.CreatedByUserID != actorID {
			return Ignored(ReasonNotCreator), nil
		}
		now := time.Now()
		req.Status = RequestCanceled
		req.ResolvedAt = &now
		req.ResolvedByUserID = &actorID
		s.deriveStatus(ctx, c)
		return Applied(), nil
	})
}

// RespondToAssignmentRequest accepts or declines a pending request.
// Eligibility is fail-closed: an actor the request is not addressed to
// gets a silent no-op, and no notification betrays the attempt. An
// accept installs the responder into the role slot, replacing any
// current holder.
func (s *Service) RespondToAssignmentRequest(ctx context.Context, caseID, requestID uuid.UUID, actorID, actorRole, action string) (*Case, Outcome, error) {
	return s.mutate(ctx, caseID, "respond_assignment_request", func(c *Case) (Outcome, []*notifications.Notification) {
		if action != ActionAccept && action != ActionDecline {
			return Ignored(ReasonInvalidAction), nil
		}
		req := c.FindRequest(requestID)
		if req == nil {
			return Ignored(ReasonNotFound), nil
		}
		if req.Status != RequestPending {
			return Ignored(ReasonNotPending), nil
		}
		if !eligibleResponder(req.RequestedRole, req.RequestedProviderID, actorID, actorRole) {
			return Ignored(ReasonNotEligible), nil
		}

		now := time.Now()
		req.ResolvedAt = &now
		req.ResolvedByUserID = &actorID

		var verb string
		if action == ActionAccept {
			req.Status = RequestAccepted
			c.SetAssignedProvider(req.RequestedRole, actorID)
			verb = "accepted"
		} else {
			req.Status = RequestDeclined
			verb = "declined"
		}
		s.deriveStatus(ctx, c)

		msg := fmt.Sprintf("Assignment request for %s was %s", c.PatientName, verb)
		batch := []*notifications.Notification{
			notifications.New(req.CreatedByUserID, "assignment_"+verb, notifications.ContextAssignmentRequest, req.ID.String(), msg),
		}
		batch = append(batch, s.fanout(ctx, req.RequestedRole, req.RequestedProviderID,
			"assignment_"+verb, notifications.ContextAssignmentRequest, req.ID.String(), msg)...)
		return Applied(), batch
	})
}
