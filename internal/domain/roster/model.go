package roster

import (
	"time"

	"github.com/google/uuid"
)

// Patient is a person cases are opened for.
type Patient struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Provider is a clinician who can be assigned to cases. Role is stored
// lowercased; callers go through auth.NormalizeRole before persisting.
type Provider struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
