package visits

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockVisitRepo struct {
	store map[uuid.UUID]*Visit
}

func newMockVisitRepo() *mockVisitRepo {
	return &mockVisitRepo{store: make(map[uuid.UUID]*Visit)}
}

func (m *mockVisitRepo) Create(_ context.Context, v *Visit) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.StartedAt = time.Now()
	m.store[v.ID] = v
	return nil
}

func (m *mockVisitRepo) GetByID(_ context.Context, id uuid.UUID) (*Visit, error) {
	v, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *mockVisitRepo) ActiveByPatient(_ context.Context, patientID uuid.UUID) (*Visit, error) {
	for _, v := range m.store {
		if v.PatientID == patientID && v.Status == StatusActive {
			return v, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockVisitRepo) End(_ context.Context, id uuid.UUID) error {
	v, ok := m.store[id]
	if !ok || v.Status != StatusActive {
		return ErrNotFound
	}
	now := time.Now()
	v.Status = StatusEnded
	v.EndedAt = &now
	return nil
}

func (m *mockVisitRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	var r []*Visit
	for _, v := range m.store {
		if v.PatientID == patientID {
			r = append(r, v)
		}
	}
	return r, len(r), nil
}

func TestOpenVisit_Success(t *testing.T) {
	svc := NewService(newMockVisitRepo())
	v, err := svc.OpenVisit(context.Background(), uuid.New(), "prov-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Status != StatusActive {
		t.Errorf("expected status %q, got %q", StatusActive, v.Status)
	}
}

func TestOpenVisit_SecondActiveRejected(t *testing.T) {
	svc := NewService(newMockVisitRepo())
	patientID := uuid.New()
	if _, err := svc.OpenVisit(context.Background(), patientID, "prov-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.OpenVisit(context.Background(), patientID, "prov-2"); err == nil {
		t.Fatal("expected error for second active visit")
	}
}

func TestCloseVisit_ClearsActiveSignal(t *testing.T) {
	svc := NewService(newMockVisitRepo())
	patientID := uuid.New()
	v, err := svc.OpenVisit(context.Background(), patientID, "prov-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active, err := svc.HasActiveVisit(context.Background(), patientID)
	if err != nil || !active {
		t.Fatalf("expected active visit, active=%v err=%v", active, err)
	}

	closed, err := svc.CloseVisit(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed.Status != StatusEnded || closed.EndedAt == nil {
		t.Errorf("expected ended visit, got %q endedAt=%v", closed.Status, closed.EndedAt)
	}

	active, err = svc.HasActiveVisit(context.Background(), patientID)
	if err != nil || active {
		t.Fatalf("expected no active visit, active=%v err=%v", active, err)
	}
}

func TestCloseVisit_AlreadyEnded(t *testing.T) {
	svc := NewService(newMockVisitRepo())
	v, _ := svc.OpenVisit(context.Background(), uuid.New(), "prov-1")
	if _, err := svc.CloseVisit(context.Background(), v.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.CloseVisit(context.Background(), v.ID); err == nil {
		t.Fatal("expected error closing an ended visit")
	}
}

func TestHasActiveVisit_NoVisits(t *testing.T) {
	svc := NewService(newMockVisitRepo())
	active, err := svc.HasActiveVisit(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active {
		t.Error("expected no active visit")
	}
}
