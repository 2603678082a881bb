package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/careportal/careportal/internal/platform/auth"
)

const RoleDoctor = "doctor"

type Service struct {
	patients  PatientRepository
	providers ProviderRepository
}

func NewService(patients PatientRepository, providers ProviderRepository) *Service {
	return &Service{patients: patients, providers: providers}
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("patient name is required")
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetPatientByName(ctx context.Context, name string) (*Patient, error) {
	return s.patients.GetByName(ctx, strings.TrimSpace(name))
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) CreateProvider(ctx context.Context, p *Provider) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("provider name is required")
	}
	p.Role = auth.NormalizeRole(p.Role)
	if p.Role == "" {
		return fmt.Errorf("provider role is required")
	}
	p.Active = true
	return s.providers.Create(ctx, p)
}

func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.providers.GetByID(ctx, id)
}

func (s *Service) ListProviders(ctx context.Context, limit, offset int) ([]*Provider, int, error) {
	return s.providers.List(ctx, limit, offset)
}

// ProvidersByRole returns the active providers holding the given role.
// The role is normalized before matching, so "Doctor" and "doctor" hit
// the same pool.
func (s *Service) ProvidersByRole(ctx context.Context, role string) ([]*Provider, error) {
	role = auth.NormalizeRole(role)
	if role == "" {
		return nil, nil
	}
	return s.providers.ListByRole(ctx, role)
}

// DefaultAssignee picks the provider a freshly triaged case lands on:
// the first provider holding the target role, falling back to any
// doctor, then to the first provider in the roster. Returns ErrNotFound
// when the roster is empty.
func (s *Service) DefaultAssignee(ctx context.Context, role string) (*Provider, error) {
	role = auth.NormalizeRole(role)
	if role != "" {
		pool, err := s.providers.ListByRole(ctx, role)
		if err != nil {
			return nil, err
		}
		if len(pool) > 0 {
			return pool[0], nil
		}
	}
	if role != RoleDoctor {
		pool, err := s.providers.ListByRole(ctx, RoleDoctor)
		if err != nil {
			return nil, err
		}
		if len(pool) > 0 {
			return pool[0], nil
		}
	}
	all, _, err := s.providers.List(ctx, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return all[0], nil
}

// HasPatient reports whether the patient exists, distinguishing a
// missing row from a storage failure.
func (s *Service) HasPatient(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.patients.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
