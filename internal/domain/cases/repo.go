package cases

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
)

// CaseFilter narrows List. Zero values mean no constraint.
type CaseFilter struct {
	PatientID  *uuid.UUID
	Status     string
	ProviderID string // matches any assigned_providers entry
}

type CaseRepository interface {
	Create(ctx context.Context, c *Case) error
	GetByID(ctx context.Context, id uuid.UUID) (*Case, error)
	// GetOpenByPatient returns the most recent non-closed case for the
	// patient, matched by id or by the stored patient name for rows
	// created before patients had ids.
	GetOpenByPatient(ctx context.Context, patientID uuid.UUID, patientName string) (*Case, error)
	// Update persists the case iff the stored version still matches
	// c.Version, bumping it on success. A lost race returns
	// ErrVersionConflict and writes nothing.
	Update(ctx context.Context, c *Case) error
	List(ctx context.Context, filter CaseFilter, limit, offset int) ([]*Case, int, error)
}
