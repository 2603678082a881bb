package cases

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func (env *testEnv) requestDoctor(t *testing.T, caseID uuid.UUID) *AssignmentRequest {
	t.Helper()
	got, out, err := env.svc.RequestAssignment(context.Background(), AssignmentRequestInput{
		CaseID:        caseID,
		RequestedRole: "doctor",
		Reason:        "chest pain",
		ActorID:       "nurse-1",
	})
	if err != nil || !out.Applied {
		t.Fatalf("request assignment: out=%+v err=%v", out, err)
	}
	env.notifier.sent = nil
	return &got.AssignmentRequests[len(got.AssignmentRequests)-1]
}

func TestRequestAssignment_SetsAwaitingProvider(t *testing.T) {
	env := newTestEnv()
	c := env.mustCreateCase(t)

	got, out, err := env.svc.RequestAssignment(context.Background(), AssignmentRequestInput{
		CaseID:        c.ID,
		RequestedRole: "doctor",
		Reason:        "chest pain",
		ActorID:       "nurse-1",
	})
	if err != nil || !out.Applied {
		t.Fatalf("unexpected result: out=%+v err=%v", out, err)
	}
	if got.Status != StatusAwaitingProvider {
		t.Errorf("expected %q, got %q", StatusAwaitingProvider, got.Status)
	}
	if len(got.AssignmentRequests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(got.AssignmentRequests))
	}
	req := got.AssignmentRequests[0]
	if req.Status != RequestPending || req.Priority != PriorityRoutine {
		t.Errorf("expected pending routine request, got %+v", req)
	}
	// Fanout hits every doctor on the roster.
	if len(env.notifier.forRecipient(env.doctor.ID.String())) != 1 ||
		len(env.notifier.forRecipient(env.doctor2.ID.String())) != 1 {
		t.Error("expected notification to each doctor")
	}
	if len(env.notifier.forRecipient(env.nurse.ID.String())) != 0 {
		t.Error("expected no notification outside the requested role")
	}
}

func TestRequestAssignment_SpecificProvider(t *testing.T) {
	env := newTestEnv()
	c := env.mustCreateCase(t)
	target := env.doctor2.ID.String()

	_, out, err := env.svc.RequestAssignment(context.Background(), AssignmentRequestInput{
		CaseID:              c.ID,
		RequestedRole:       "doctor",
		RequestedProviderID: &target,
		Priority:            PriorityUrgent,
		Reason:              "second opinion",
		ActorID:             "nurse-1",
	})
	if err != nil || !out.Applied {
		t.Fatalf("unexpected result: out=%+v err=%v", out, err)
	}
	if len(env.notifier.sent) != 1 || env.notifier.sent[0].RecipientID != target {
		t.Errorf("expected a single notification to the named provider, got %+v", env.notifier.sent)
	}
}

func TestRequestAssignment_ValidationNoOps(t *testing.T) {
	env := newTestEnv()
	c := env.mustCreateCase(t)

	tests := []struct {
		name   string
		in     AssignmentRequestInput
		reason string
	}{
		{"missing role", AssignmentRequestInput{CaseID: c.ID, Reason: "x", ActorID: "a"}, ReasonMissingRole},
		{"blank reason", AssignmentRequestInput{CaseID: c.ID, RequestedRole: "doctor", Reason: "   ", ActorID: "a"}, ReasonMissingReason},
		{"bad priority", AssignmentRequestInput{CaseID: c.ID, RequestedRole: "doctor", Reason: "x", Priority: "stat", ActorID: "a"}, ReasonInvalidPriority},
	}
	for _, tt := range tests {
		_, out, err := env.svc.RequestAssignment(context.Background(), tt.in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if out.Applied || out.Reason != tt.reason {
			t.Errorf("%s: expected ignored with %q, got %+v", tt.name, tt.reason, out)
		}
	}
	if got := env.reload(t, c.ID); len(got.AssignmentRequests) != 0 {
		t.Errorf("expected no requests recorded, got %d", len(got.AssignmentRequests))
	}
	if len(env.notifier.sent) != 0 {
		t.Errorf("expected no notifications, got %d", len(env.notifier.sent))
	}
}

func TestRequestAssignment_MissingCase(t *testing.T) {
	env := newTestEnv()
	_, out, err := env.svc.RequestAssignment(context.Background(), AssignmentRequestInput{
		CaseID: uuid.New(), RequestedRole: "doctor", Reason: "x", ActorID: "a",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Applied || out.Reason != ReasonCaseNotFound {
		t.Errorf("expected ignored with %q, got %+v", ReasonCaseNotFound, out)
	}
}

func TestRequestAssignment_CoveredRoleKeepsStatus(t *testing.T) {
	env := newTestEnv()
	c := env.mustCreateCase(t)
	req := env.requestDoctor(t, c.ID)
	if _, out, err := env.svc.RespondToAssignmentRequest(context.Background(), c.ID, req.ID,
		env.doctor.ID.String(), "doctor", ActionAccept); err != nil || !out.Applied {
		t.Fatalf("accept: out=%+v err=%v", out, err)
	}

	got, out, err := env.svc.RequestAssignment(context.Background(), AssignmentRequestInput{
		CaseID: c.ID, RequestedRole: "doctor", Reason: "handover", ActorID: "nurse-1",
	})
	if err != nil || !out.Applied {
		t.Fatalf("unexpected result: out=%+v err=%v", out, err)
	}
	if got.Status != StatusAssigned {
		t.Errorf("expected covered role to keep %q, got %q", StatusAssigned, got.Status)
	}
}

func TestRespond_AcceptAssignsResponder(t *testing.T) {
	env := newTestEnv()
	c := env.mustCreateCase(t)
	req := env.requestDoctor(t, c.ID)
	actor := env.doctor.ID.String()

	got, out, err := env.svc.RespondToAssignmentRequest(context.Background(), c.ID, req.ID, actor, "doctor", ActionAccept)
	if err != nil || !out.Applied {
		t.Fatalf("unexpected result: out=%+v err=%v", out, err)
	}
	if got.Status != StatusAssigned {
		t.Errorf("expected %q, got %q", StatusAssigned, got.Status)
	}
	if len(got.AssignedProviders) != 1 {
		t.Fatalf("expected exactly one slot, got %d", len(got.AssignedProviders))
	}
	slot := got.AssignedProviders[0]
	if slot.Role != "doctor" || slot.ProviderID != actor || slot.Status != AssignedProviderActive {
		t.Errorf("unexpected slot %+v", slot)
	}
	gotReq := got.FindRequest(req.ID)
	if gotReq.Status != RequestAccepted || gotReq.ResolvedByUserID == nil || *gotReq.ResolvedByUserID != actor {
		t.Errorf("unexpected request state %+v", gotReq)
	}
	if len(env.notifier.forRecipient("nurse-1")) != 1 {
		t.Error("expected notification to the requester")
	}
}

func TestRespond_AcceptDuringActiveVisit(t *testing.T) {
	env := newTestEnv()
	c := env.mustCreateCase(t)
	req := env.requestDoctor(t, c.ID)
	env.visits.active[env.patient.ID] = true

	got, out, err := env.svc.RespondToAssignmentRequest(context.Background(), c.ID, req.ID,
		env.doctor.ID.String(), "doctor", ActionAccept)
	if err != nil || !out.Applied {
		t.Fatalf("unexpected result: out=%+v err=%v", out, err)
	}
	if got.Status != StatusInProgress {
		t.Errorf("expected %q during visit, got %q", StatusInProgress, got.Status)
	}
}

func TestRespond_AcceptReplacesPriorHolder(t *testing.T) {
	env := newTestEnv()
	c := env.mustCreateCase(t)
	first := env.requestDoctor(t, c.ID)
	if _, out, _ := env.svc.RespondToAssignmentRequest(context.Background(), c.ID, first.ID,
		env.doctor.ID.String(), "doctor", ActionAccept); !out.Applied {
		t.Fatalf("first accept ignored: %+v", out)
	}

	second := env.requestDoctor(t, c.ID)
	got, out, err := env.svc.RespondToAssignmentRequest(context.Background(), c.ID, second.ID,
		env.doctor2.ID.String(), "doctor", ActionAccept)
	if err != nil || !out.Applied {
		t.Fatalf("unexpected result: out=%+v err=%v", out, err)
	}
	if len(got.AssignedProviders) != 1 {
		t.Fatalf("expected the doctor slot replaced, got %+v", got.AssignedProviders)
	}
	if got.AssignedProviders[0].ProviderID != env.doctor2.ID.String() {
		t.Errorf("expected new holder, got %+v", got.AssignedProviders[0])
	}
}

func TestRespond_DeclineLeavesStatusAndSlots(t *testing.T) {
	env := newTestEnv()
	c := env.mustCreateCase(t)
	req := env.requestDoctor(t, c.ID)

	got, out, err := env.svc.RespondToAssignmentRequest(context.Background(), c.ID, req.ID,
		env.doctor.ID.String(), "doctor", ActionDecline)
	if err != nil || !out.Applied {
		t.Fatalf("unexpected result: out=%+v err=%v", out, err)
	}
	if got.Status != StatusAwaitingProvider {
		t.Errorf("expected status unchanged at %q, got %q", StatusAwaitingProvider, got.Status)
	}
	if len(got.AssignedProviders) != 0 {
		t.Errorf("expected decline to leave slots untouched, got %+v", got.AssignedProviders)
	}
	if got.FindRequest(req.ID).Status != RequestDeclined {
		t.Error("expected request declined")
	}
	if len(env.notifier.forRecipient("nurse-1")) != 1 {
		t.Error("expected notification to the requester")
	}
}

func TestRespond_IneligibleActorFailsClosed(t *testing.T) {
	env := newTestEnv()
	c := env.mustCreateCase(t)
	req := env.requestDoctor(t, c.ID)

	got, out, err := env.svc.RespondToAssignmentRequest(context.Background(), c.ID, req.ID,
		env.nurse.ID.String(), "nurse", ActionAccept)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Applied || out.Reason != ReasonNotEligible {
		t.Errorf("expected ignored with %q, got %+v", ReasonNotEligible, out)
	}
	if got.FindRequest(req.ID).Status != RequestPending {
		t.Error("expected request to stay pending")
	}
	if len(env.notifier.sent) != 0 {
		t.Errorf("expected no notifications for an ineligible attempt, got %d", len(env.notifier.sent))
	}
}

func TestRespond_NamedProviderBeatsRoleMatch(t *testing.T) {
	env := newTestEnv()
	c := env.mustCreateCase(t)
	target := env.doctor2.ID.String()

	got, out, err := env.svc.RequestAssignment(context.Background(), AssignmentRequestInput{
		CaseID: c.ID, RequestedRole: "doctor", RequestedProviderID: &target,
		Reason: "continuity of care", ActorID: "nurse-1",
	})
	if err != nil || !out.Applied {
		t.Fatalf("request: out=%+v err=%v", out, err)
	}
	req := got.AssignmentRequests[0]

	// A doctor who is not the named provider is ineligible despite the
	// role match.
	_, out, err = env.svc.RespondToAssignmentRequest(context.Background(), c.ID, req.ID,
		env.doctor.ID.String(), "doctor", ActionAccept)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Applied || out.Reason != ReasonNotEligible {
		t.Errorf("expected ignored with %q, got %+v", ReasonNotEligible, out)
	}

	_, out, err = env.svc.RespondToAssignmentRequest(context.Background(), c.ID, req.ID,
		target, "doctor", ActionAccept)
	if err != nil || !out.Applied {
		t.Fatalf("expected named provider to accept: out=%+v err=%v", out, err)
	}
}

func TestRespond_NonPendingIgnored(t *testing.T) {
	env := newTestEnv()
	c := env.mustCreateCase(t)
	req := env.requestDoctor(t, c.ID)
	actor := env.doctor.ID.String()

	if _, out, _ := env.svc.RespondToAssignmentRequest(context.Background(), c.ID, req.ID, actor, "doctor", ActionAccept); !out.Applied {
		t.Fatalf("first respond ignored: %+v", out)
	}
	_, out, err := env.svc.RespondToAssignmentRequest(context.Background(), c.ID, req.ID, actor, "doctor", ActionDecline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Applied || out.Reason != ReasonNotPending {
		t.Errorf("expected ignored with %q, got %+v", ReasonNotPending, out)
	}
}

func TestRespond_InvalidAction(t *testing.T) {
	env := newTestEnv()
	c := env.mustCreateCase(t)
	req := env.requestDoctor(t, c.ID)

	_, out, err := env.svc.RespondToAssignmentRequest(context.Background(), c.ID, req.ID,
		env.doctor.ID.String(), "doctor", "maybe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Applied || out.Reason != ReasonInvalidAction {
		t.Errorf("expected ignored with %q, got %+v", ReasonInvalidAction, out)
	}
}

func TestCancel_CreatorOnly(t *testing.T) {
	env := newTestEnv()
	c := env.mustCreateCase(t)
	req := env.requestDoctor(t, c.ID)

	_, out, err := env.svc.CancelAssignmentRequest(context.Background(), c.ID, req.ID, "someone-else")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Applied || out.Reason != ReasonNotCreator {
		t.Errorf("expected ignored with %q, got %+v", ReasonNotCreator, out)
	}

	got, out, err := env.svc.CancelAssignmentRequest(context.Background(), c.ID, req.ID, "nurse-1")
	if err != nil || !out.Applied {
		t.Fatalf("unexpected result: out=%+v err=%v", out, err)
	}
	if got.FindRequest(req.ID).Status != RequestCanceled {
		t.Error("expected request canceled")
	}
	// With the only ask withdrawn the case no longer waits on anyone.
	if got.Status != StatusTriage {
		t.Errorf("expected %q after cancel, got %q", StatusTriage, got.Status)
	}
}

func TestCancel_NonPendingIgnored(t *testing.T) {
	env := newTestEnv()
	c := env.mustCreateCase(t)
	req := env.requestDoctor(t, c.ID)

	if _, out, _ := env.svc.CancelAssignmentRequest(context.Background(), c.ID, req.ID, "nurse-1"); !out.Applied {
		t.Fatalf("cancel ignored: %+v", out)
	}
	_, out, err := env.svc.CancelAssignmentRequest(context.Background(), c.ID, req.ID, "nurse-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Applied || out.Reason != ReasonNotPending {
		t.Errorf("expected ignored with %q, got %+v", ReasonNotPending, out)
	}
}

func TestCancel_NeverTouchesSlots(t *testing.T) {
	env := newTestEnv()
	c := env.mustCreateCase(t)
	first := env.requestDoctor(t, c.ID)
	if _, out, _ := env.svc.RespondToAssignmentRequest(context.Background(), c.ID, first.ID,
		env.doctor.ID.String(), "doctor", ActionAccept); !out.Applied {
		t.Fatalf("accept ignored: %+v", out)
	}

	second := env.requestDoctor(t, c.ID)
	got, out, err := env.svc.CancelAssignmentRequest(context.Background(), c.ID, second.ID, "nurse-1")
	if err != nil || !out.Applied {
		t.Fatalf("unexpected result: out=%+v err=%v", out, err)
	}
	if len(got.AssignedProviders) != 1 || got.AssignedProviders[0].ProviderID != env.doctor.ID.String() {
		t.Errorf("expected cancel to leave slots untouched, got %+v", got.AssignedProviders)
	}
}
