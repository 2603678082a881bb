package cases

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalize_Total(t *testing.T) {
	var c Case
	c.Normalize()
	if c.Status != StatusNew {
		t.Errorf("expected empty status to default to %q, got %q", StatusNew, c.Status)
	}
	if c.AssignedProviders == nil || c.AssignmentRequests == nil || c.Escalations == nil {
		t.Error("expected collections to be initialized")
	}
}

func TestNormalize_UnknownStatus(t *testing.T) {
	c := Case{Status: "bogus"}
	c.Normalize()
	if c.Status != StatusNew {
		t.Errorf("expected unknown status to default to %q, got %q", StatusNew, c.Status)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	c := Case{
		Status: "ESCALETED", // deliberately malformed
		AssignedProviders: []AssignedProvider{
			{Role: " Doctor ", ProviderID: "prov-1"},
		},
		AssignmentRequests: []AssignmentRequest{
			{ID: uuid.New(), RequestedRole: "CARDIOLOGIST", Status: RequestPending},
		},
		Escalations: []Escalation{
			{ID: uuid.New(), ToRole: "Nurse", Status: EscalationSent},
		},
	}
	c.Normalize()
	once := *cloneCase(&c)
	c.Normalize()
	if !reflect.DeepEqual(once, *cloneCase(&c)) {
		t.Error("expected Normalize to be idempotent")
	}
	if c.AssignedProviders[0].Role != "doctor" {
		t.Errorf("expected lowercased role, got %q", c.AssignedProviders[0].Role)
	}
	if c.AssignedProviders[0].Status != AssignedProviderActive {
		t.Errorf("expected default slot status, got %q", c.AssignedProviders[0].Status)
	}
	if c.AssignmentRequests[0].RequestedRole != "cardiologist" {
		t.Errorf("expected lowercased requested role, got %q", c.AssignmentRequests[0].RequestedRole)
	}
	if c.Escalations[0].ToRole != "nurse" {
		t.Errorf("expected lowercased escalation role, got %q", c.Escalations[0].ToRole)
	}
}

func TestSetAssignedProvider_OneEntryPerRole(t *testing.T) {
	var c Case
	c.Normalize()
	c.SetAssignedProvider("doctor", "prov-1")
	c.SetAssignedProvider("nurse", "prov-2")
	c.SetAssignedProvider("Doctor", "prov-3")

	if len(c.AssignedProviders) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(c.AssignedProviders))
	}
	if c.AssignedProviders[0].Role != "doctor" || c.AssignedProviders[0].ProviderID != "prov-3" {
		t.Errorf("expected doctor slot replaced in place, got %+v", c.AssignedProviders[0])
	}
	if c.AssignedProviders[1].Role != "nurse" || c.AssignedProviders[1].ProviderID != "prov-2" {
		t.Errorf("expected nurse slot preserved, got %+v", c.AssignedProviders[1])
	}
}

func TestDeriveStatus_Precedence(t *testing.T) {
	now := time.Now()
	doctorSlot := []AssignedProvider{{Role: "doctor", ProviderID: "prov-1", Status: AssignedProviderActive}}
	pendingDoctor := []AssignmentRequest{{ID: uuid.New(), RequestedRole: "doctor", Status: RequestPending}}
	pendingCardio := []AssignmentRequest{{ID: uuid.New(), RequestedRole: "cardiologist", Status: RequestPending}}
	openEsc := []Escalation{{ID: uuid.New(), ToRole: "doctor", Status: EscalationSent}}
	ackEsc := []Escalation{{ID: uuid.New(), ToRole: "doctor", Status: EscalationAcknowledged}}
	resolvedEsc := []Escalation{{ID: uuid.New(), ToRole: "doctor", Status: EscalationResolved}}

	tests := []struct {
		name   string
		c      Case
		visit  bool
		expect string
	}{
		{"untouched case stays new", Case{Status: StatusNew}, false, StatusNew},
		{"open escalation wins", Case{Status: StatusAssigned, AssignedProviders: doctorSlot, Escalations: openEsc}, false, StatusEscalated},
		{"acknowledged still escalated", Case{Status: StatusEscalated, AssignedProviders: doctorSlot, Escalations: ackEsc}, false, StatusEscalated},
		{"escalation reopens closed", Case{Status: StatusClosed, Escalations: openEsc}, false, StatusEscalated},
		{"closed stays closed", Case{Status: StatusClosed, AssignedProviders: doctorSlot, Escalations: resolvedEsc}, false, StatusClosed},
		{"pending request awaits provider", Case{Status: StatusTriage, AssignmentRequests: pendingDoctor}, false, StatusAwaitingProvider},
		{"uncovered role asks over covered one", Case{Status: StatusAssigned, AssignedProviders: doctorSlot, AssignmentRequests: pendingCardio}, false, StatusAwaitingProvider},
		{"covered role quiets its request", Case{Status: StatusAwaitingProvider, AssignedProviders: doctorSlot, AssignmentRequests: pendingDoctor}, false, StatusAssigned},
		{"assignment without visit", Case{Status: StatusTriage, AssignedProviders: doctorSlot}, false, StatusAssigned},
		{"assignment with visit", Case{Status: StatusTriage, AssignedProviders: doctorSlot}, true, StatusInProgress},
		{"triage done nobody assigned", Case{Status: StatusTriage, TriageCompletedAt: &now}, false, StatusAwaitingProvider},
		{"resolved escalation reverts to triage", Case{Status: StatusEscalated, Escalations: resolvedEsc}, false, StatusTriage},
	}
	for _, tt := range tests {
		c := tt.c
		c.Normalize()
		if got := DeriveStatus(&c, tt.visit); got != tt.expect {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.expect, got)
		}
	}
}

func TestHasUnfulfilledRequests_DeclinedStillWaiting(t *testing.T) {
	c := Case{
		AssignmentRequests: []AssignmentRequest{
			{ID: uuid.New(), RequestedRole: "doctor", Status: RequestDeclined},
		},
	}
	c.Normalize()
	if !c.HasUnfulfilledRequests() {
		t.Error("expected a declined request to still count as waiting")
	}

	c.AssignmentRequests[0].Status = RequestCanceled
	if c.HasUnfulfilledRequests() {
		t.Error("expected a canceled request to withdraw the ask")
	}
}
