package cases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careportal/careportal/internal/domain/notifications"
	"github.com/careportal/careportal/internal/domain/roster"
	"github.com/careportal/careportal/internal/platform/auth"
)

// maxMutateRetries bounds the optimistic-concurrency retry loop. The
// per-case lock already serializes writers in this process, so retries
// only fire when another instance touched the row.
const maxMutateRetries = 5

// ProviderDirectory resolves notification fanout targets and the
// default assignee at triage.
type ProviderDirectory interface {
	ProvidersByRole(ctx context.Context, role string) ([]*roster.Provider, error)
	DefaultAssignee(ctx context.Context, role string) (*roster.Provider, error)
}

// PatientDirectory resolves the patient a case is opened for.
type PatientDirectory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*roster.Patient, error)
	GetPatientByName(ctx context.Context, name string) (*roster.Patient, error)
}

// VisitChecker supplies the active-visit signal status derivation
// depends on.
type VisitChecker interface {
	HasActiveVisit(ctx context.Context, patientID uuid.UUID) (bool, error)
}

// Notifier receives workflow notifications. Pushes happen after the
// case write commits and are at-most-once: a failed push is logged and
// dropped, never retried against a case that already changed.
type Notifier interface {
	Push(ctx context.Context, batch []*notifications.Notification) error
}

type Service struct {
	cases     CaseRepository
	patients  PatientDirectory
	providers ProviderDirectory
	visits    VisitChecker
	notifier  Notifier
	locks     *keyedMutex
	log       zerolog.Logger
}

func NewService(cases CaseRepository, patients PatientDirectory, providers ProviderDirectory, visits VisitChecker, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		cases:     cases,
		patients:  patients,
		providers: providers,
		visits:    visits,
		notifier:  notifier,
		locks:     newKeyedMutex(),
		log:       log,
	}
}

// mutate runs fn against the current state of the case under the
// per-case lock, persisting iff fn applied a change. The versioned
// Update catches cross-process races; on conflict the case is reloaded
// and fn re-run against fresh state. The batch fn returns is pushed to
// the notifier only after the write lands.
func (s *Service) mutate(ctx context.Context, caseID uuid.UUID, op string, fn func(*Case) (Outcome, []*notifications.Notification)) (*Case, Outcome, error) {
	if caseID == uuid.Nil {
		return nil, s.ignored(op, caseID, ReasonCaseNotFound), nil
	}
	unlock := s.locks.Lock(caseID)
	defer unlock()

	for attempt := 0; attempt < maxMutateRetries; attempt++ {
		c, err := s.cases.GetByID(ctx, caseID)
		if errors.Is(err, ErrNotFound) {
			return nil, s.ignored(op, caseID, ReasonCaseNotFound), nil
		}
		if err != nil {
			return nil, Outcome{}, err
		}
		c.Normalize()

		out, batch := fn(c)
		if !out.Applied {
			return c, s.ignored(op, caseID, out.Reason), nil
		}

		err = s.cases.Update(ctx, c)
		if errors.Is(err, ErrVersionConflict) {
			s.log.Debug().Str("op", op).Str("case_id", caseID.String()).Int("attempt", attempt+1).Msg("case version conflict, retrying")
			continue
		}
		if err != nil {
			return nil, Outcome{}, err
		}
		s.push(ctx, batch)
		return c, out, nil
	}
	return nil, Outcome{}, fmt.Errorf("case %s: gave up after %d conflicting updates", caseID, maxMutateRetries)
}

func (s *Service) ignored(op string, caseID uuid.UUID, reason string) Outcome {
	s.log.Debug().Str("op", op).Str("case_id", caseID.String()).Str("reason", reason).Msg("case operation ignored")
	return Ignored(reason)
}

func (s *Service) push(ctx context.Context, batch []*notifications.Notification) {
	if len(batch) == 0 {
		return
	}
	if err := s.notifier.Push(ctx, batch); err != nil {
		s.log.Debug().Err(err).Int("count", len(batch)).Msg("dropping undeliverable notifications")
	}
}

// deriveStatus applies the central precedence, resolving the
// active-visit signal for the case's patient. A failing visit lookup
// degrades to "no active visit" rather than blocking the mutation.
func (s *Service) deriveStatus(ctx context.Context, c *Case) {
	active, err := s.visits.HasActiveVisit(ctx, c.PatientID)
	if err != nil {
		s.log.Debug().Err(err).Str("case_id", c.ID.String()).Msg("visit lookup failed, deriving without visit signal")
		active = false
	}
	c.Status = DeriveStatus(c, active)
}

// -- Lifecycle --

// CreateCase opens a new case for a patient. Unlike the workflow
// mutations this is a hard-failing operation: an unknown patient is an
// error, not a silent no-op.
func (s *Service) CreateCase(ctx context.Context, patientID uuid.UUID, actorID string) (*Case, error) {
	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", patientID, err)
	}
	c := &Case{
		PatientID:       p.ID,
		PatientName:     p.Name,
		Status:          StatusNew,
		CreatedByUserID: actorID,
	}
	c.Normalize()
	if err := s.cases.Create(ctx, c); err != nil {
		return nil, err
	}
	s.push(ctx, []*notifications.Notification{
		notifications.New(p.ID.String(), "case_created", notifications.ContextCase, c.ID.String(),
			fmt.Sprintf("A case has been opened for %s", p.Name)),
	})
	return c, nil
}

func (s *Service) GetCase(ctx context.Context, id uuid.UUID) (*Case, error) {
	c, err := s.cases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Normalize()
	return c, nil
}

func (s *Service) ListCases(ctx context.Context, filter CaseFilter, limit, offset int) ([]*Case, int, error) {
	items, total, err := s.cases.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, c := range items {
		c.Normalize()
	}
	return items, total, nil
}

// TriageInput carries what the triage form recorded.
type TriageInput struct {
	PatientID           uuid.UUID
	PatientName         string // legacy rows matched by name when the id misses
	SpecialistRequested bool
	SpecialistRole      string
	ActorID             string
}

// MarkTriageComplete closes out triage on the patient's open case,
// assigning a default provider. The target role is the requested
// specialist role when one was asked for, otherwise doctor; the roster
// decides who actually lands the case.
func (s *Service) MarkTriageComplete(ctx context.Context, in TriageInput) (*Case, Outcome, error) {
	const op = "mark_triage_complete"
	c, err := s.cases.GetOpenByPatient(ctx, in.PatientID, strings.TrimSpace(in.PatientName))
	if errors.Is(err, ErrNotFound) {
		s.log.Debug().Str("op", op).Str("patient_id", in.PatientID.String()).Msg("no open case for patient")
		return nil, Ignored(ReasonCaseNotFound), nil
	}
	if err != nil {
		return nil, Outcome{}, err
	}

	return s.mutate(ctx, c.ID, op, func(c *Case) (Outcome, []*notifications.Notification) {
		c.SpecialistRequested = in.SpecialistRequested
		c.SpecialistRole = auth.NormalizeRole(in.SpecialistRole)

		targetRole := roster.RoleDoctor
		if c.SpecialistRequested {
			targetRole = c.SpecialistRole
			if targetRole == "" {
				targetRole = "specialist"
			}
		}

		assigneeID := notifications.RecipientUnassigned
		assignee, err := s.providers.DefaultAssignee(ctx, targetRole)
		if err != nil && !errors.Is(err, roster.ErrNotFound) {
			s.log.Debug().Err(err).Str("case_id", c.ID.String()).Msg("default assignee lookup failed")
		}
		if assignee != nil {
			c.SetAssignedProvider(assignee.Role, assignee.ID.String())
			assigneeID = assignee.ID.String()
		}

		now := time.Now()
		c.TriageCompletedAt = &now
		c.TriageCompletedBy = &in.ActorID
		s.deriveStatus(ctx, c)

		batch := []*notifications.Notification{
			notifications.New(assigneeID, "triage_completed", notifications.ContextCase, c.ID.String(),
				fmt.Sprintf("Triage complete for %s", c.PatientName)),
			notifications.New(c.PatientID.String(), "triage_completed", notifications.ContextCase, c.ID.String(),
				"Your triage is complete"),
		}
		return Applied(), batch
	})
}

// CloseCase ends the episode. Escalations and assignments are left in
// place; a later escalation can still reopen the case into escalated.
func (s *Service) CloseCase(ctx context.Context, caseID uuid.UUID, actorID string) (*Case, Outcome, error) {
	return s.mutate(ctx, caseID, "close_case", func(c *Case) (Outcome, []*notifications.Notification) {
		if c.Status == StatusClosed {
			return Ignored(ReasonAlreadyClosed), nil
		}
		c.Status = StatusClosed
		batch := []*notifications.Notification{
			notifications.New(c.PatientID.String(), "case_closed", notifications.ContextCase, c.ID.String(),
				"Your case has been closed"),
		}
		return Applied(), batch
	})
}
