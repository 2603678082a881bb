package cases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careportal/careportal/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type caseRepoPG struct{ pool *pgxpool.Pool }

func NewCaseRepoPG(pool *pgxpool.Pool) CaseRepository {
	return &caseRepoPG{pool: pool}
}

func (r *caseRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// The care team, requests and escalations live as jsonb on the case row
// so every workflow mutation is one versioned UPDATE of one row.
const caseCols = `id, patient_id, patient_name, status,
	specialist_requested, specialist_role,
	assigned_providers, assignment_requests, escalations,
	created_by, triage_completed_at, triage_completed_by,
	version, created_at, updated_at`

func scanCase(row pgx.Row) (*Case, error) {
	var c Case
	var providers, requests, escalations []byte
	err := row.Scan(&c.ID, &c.PatientID, &c.PatientName, &c.Status,
		&c.SpecialistRequested, &c.SpecialistRole,
		&providers, &requests, &escalations,
		&c.CreatedByUserID, &c.TriageCompletedAt, &c.TriageCompletedBy,
		&c.Version, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(providers, &c.AssignedProviders); err != nil {
		return nil, fmt.Errorf("case %s: decode assigned_providers: %w", c.ID, err)
	}
	if err := json.Unmarshal(requests, &c.AssignmentRequests); err != nil {
		return nil, fmt.Errorf("case %s: decode assignment_requests: %w", c.ID, err)
	}
	if err := json.Unmarshal(escalations, &c.Escalations); err != nil {
		return nil, fmt.Errorf("case %s: decode escalations: %w", c.ID, err)
	}
	return &c, nil
}

func encodeRecords(c *Case) (providers, requests, escalations []byte, err error) {
	if providers, err = json.Marshal(c.AssignedProviders); err != nil {
		return nil, nil, nil, err
	}
	if requests, err = json.Marshal(c.AssignmentRequests); err != nil {
		return nil, nil, nil, err
	}
	if escalations, err = json.Marshal(c.Escalations); err != nil {
		return nil, nil, nil, err
	}
	return providers, requests, escalations, nil
}

func (r *caseRepoPG) Create(ctx context.Context, c *Case) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Version = 1
	providers, requests, escalations, err := encodeRecords(c)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO cases (id, patient_id, patient_name, status,
			specialist_requested, specialist_role,
			assigned_providers, assignment_requests, escalations,
			created_by, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		c.ID, c.PatientID, c.PatientName, c.Status,
		c.SpecialistRequested, c.SpecialistRole,
		providers, requests, escalations,
		c.CreatedByUserID, c.Version).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *caseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Case, error) {
	return scanCase(r.conn(ctx).QueryRow(ctx, `SELECT `+caseCols+` FROM cases WHERE id = $1`, id))
}

func (r *caseRepoPG) GetOpenByPatient(ctx context.Context, patientID uuid.UUID, patientName string) (*Case, error) {
	return scanCase(r.conn(ctx).QueryRow(ctx, `
		SELECT `+caseCols+` FROM cases
		WHERE (patient_id = $1 OR ($2 <> '' AND patient_name = $2)) AND status <> $3
		ORDER BY created_at DESC LIMIT 1`,
		patientID, patientName, StatusClosed))
}

func (r *caseRepoPG) Update(ctx context.Context, c *Case) error {
	providers, requests, escalations, err := encodeRecords(c)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE cases SET status=$3, specialist_requested=$4, specialist_role=$5,
			assigned_providers=$6, assignment_requests=$7, escalations=$8,
			triage_completed_at=$9, triage_completed_by=$10,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`,
		c.ID, c.Version, c.Status, c.SpecialistRequested, c.SpecialistRole,
		providers, requests, escalations,
		c.TriageCompletedAt, c.TriageCompletedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	c.Version++
	return nil
}

func (r *caseRepoPG) List(ctx context.Context, filter CaseFilter, limit, offset int) ([]*Case, int, error) {
	where := `WHERE TRUE`
	args := []interface{}{}
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		where += fmt.Sprintf(` AND patient_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.ProviderID != "" {
		args = append(args, filter.ProviderID)
		where += fmt.Sprintf(` AND assigned_providers @> jsonb_build_array(jsonb_build_object('providerId', $%d::text))`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM cases `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+caseCols+` FROM cases `+where+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}
