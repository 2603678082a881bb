package visits

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Visit is an encounter between a provider and a patient. A case whose
// patient has an active visit reads as in_progress instead of assigned.
type Visit struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  uuid.UUID  `json:"patientId"`
	ProviderID string     `json:"providerId"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
}
