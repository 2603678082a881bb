package visits

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	visits VisitRepository
}

func NewService(visits VisitRepository) *Service {
	return &Service{visits: visits}
}

// OpenVisit starts an encounter. A patient has at most one active visit
// at a time; opening a second one fails.
func (s *Service) OpenVisit(ctx context.Context, patientID uuid.UUID, providerID string) (*Visit, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient id is required")
	}
	if providerID == "" {
		return nil, fmt.Errorf("provider id is required")
	}
	if _, err := s.visits.ActiveByPatient(ctx, patientID); err == nil {
		return nil, fmt.Errorf("patient %s already has an active visit", patientID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	v := &Visit{PatientID: patientID, ProviderID: providerID, Status: StatusActive}
	if err := s.visits.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) CloseVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	if err := s.visits.End(ctx, id); err != nil {
		return nil, err
	}
	return s.visits.GetByID(ctx, id)
}

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.visits.GetByID(ctx, id)
}

func (s *Service) ListVisitsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	return s.visits.ListByPatient(ctx, patientID, limit, offset)
}

// HasActiveVisit reports whether the patient is currently being seen.
// Case status derivation consumes this to distinguish in_progress from
// assigned.
func (s *Service) HasActiveVisit(ctx context.Context, patientID uuid.UUID) (bool, error) {
	_, err := s.visits.ActiveByPatient(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
