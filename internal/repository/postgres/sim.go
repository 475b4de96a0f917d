package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"vtu/internal/domain"
	vtuerrors "vtu/pkg/errors"
)

// SimRepository owns sim_resources rows; capacity accounting is the
// serialization point for concurrent dispatches.
type SimRepository struct {
	db *sqlx.DB
}

func NewSimRepository(db *sqlx.DB) *SimRepository {
	return &SimRepository{db: db}
}

func (r *SimRepository) Create(ctx context.Context, res *domain.SimResource) error {
	query := `
		INSERT INTO sim_resources (
			id, label, network, phone, status, balance, assigned_count,
			consecutive_failures, created_at, updated_at
		) VALUES (
			:id, :label, :network, :phone, :status, :balance, :assigned_count,
			:consecutive_failures, :created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, res)
	return vtuerrors.Wrap(err, "failed to create sim resource")
}

func (r *SimRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.SimResource, error) {
	res := &domain.SimResource{}
	err := r.db.GetContext(ctx, res, `SELECT * FROM sim_resources WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrResourceNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find sim resource")
	}
	return res, nil
}

func (r *SimRepository) List(ctx context.Context) ([]*domain.SimResource, error) {
	var resources []*domain.SimResource
	err := r.db.SelectContext(ctx, &resources, `SELECT * FROM sim_resources ORDER BY created_at DESC`)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to list sim resources")
	}
	return resources, nil
}

// Acquire atomically picks and charges the best eligible resource: active,
// matching network, enough balance; lowest failure count first, then least
// recently used so idle lines are not starved. SKIP LOCKED lets concurrent
// dispatches fall through to the next candidate instead of queueing.
func (r *SimRepository) Acquire(ctx context.Context, network domain.Network, amount decimal.Decimal, exclude *uuid.UUID) (*domain.SimResource, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to begin acquire tx")
	}
	defer tx.Rollback()

	res := &domain.SimResource{}
	// An empty network matches any channel; bills and SMS batches are not
	// tied to one operator.
	query := `
		SELECT * FROM sim_resources
		WHERE status = 'active' AND ($1::text = '' OR network = $1::text)
		  AND balance >= $2 AND ($3::uuid IS NULL OR id <> $3)
		ORDER BY consecutive_failures ASC, last_used_at ASC NULLS FIRST
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`
	err = tx.GetContext(ctx, res, query, network, amount, exclude)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrNoCapacity
		}
		return nil, vtuerrors.Wrap(err, "failed to select sim resource")
	}

	err = tx.GetContext(ctx, res, `
		UPDATE sim_resources SET
			balance = balance - $1,
			assigned_count = assigned_count + 1,
			last_used_at = NOW(),
			updated_at = NOW()
		WHERE id = $2
		RETURNING *
	`, amount, res.ID)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to charge sim resource")
	}

	if err := tx.Commit(); err != nil {
		return nil, vtuerrors.Wrap(err, "failed to commit acquire")
	}
	return res, nil
}

// Refund returns capacity to a resource whose upstream call did not spend it.
func (r *SimRepository) Refund(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sim_resources SET balance = balance + $1, updated_at = NOW() WHERE id = $2
	`, amount, id)
	return vtuerrors.Wrap(err, "failed to refund sim resource")
}

// IncrementFailure bumps the rolling failure counter and auto-pauses the
// resource at the threshold. Returns the new counter and whether it paused.
func (r *SimRepository) IncrementFailure(ctx context.Context, id uuid.UUID, pauseThreshold int) (int, bool, error) {
	var failures int
	var status domain.ResourceStatus
	err := r.db.QueryRowxContext(ctx, `
		UPDATE sim_resources SET
			consecutive_failures = consecutive_failures + 1,
			status = CASE WHEN consecutive_failures + 1 >= $1 AND status = 'active' THEN 'paused' ELSE status END,
			updated_at = NOW()
		WHERE id = $2
		RETURNING consecutive_failures, status
	`, pauseThreshold, id).Scan(&failures, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, vtuerrors.ErrResourceNotFound
		}
		return 0, false, vtuerrors.Wrap(err, "failed to increment failures")
	}
	return failures, status == domain.ResourceStatusPaused, nil
}

// ResetFailures clears the counter after a successful delivery.
func (r *SimRepository) ResetFailures(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sim_resources SET consecutive_failures = 0, updated_at = NOW() WHERE id = $1
	`, id)
	return vtuerrors.Wrap(err, "failed to reset failures")
}

// UpdateStatus is the admin path; resuming a paused resource also clears its
// failure counter.
func (r *SimRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ResourceStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sim_resources SET
			status = $1,
			consecutive_failures = CASE WHEN $1 = 'active' THEN 0 ELSE consecutive_failures END,
			updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to update sim status")
	}
	return checkFound(result, vtuerrors.ErrResourceNotFound)
}

func (r *SimRepository) TopUp(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sim_resources SET balance = balance + $1, updated_at = NOW() WHERE id = $2
	`, amount, id)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to top up sim resource")
	}
	return checkFound(result, vtuerrors.ErrResourceNotFound)
}

func (r *SimRepository) CreateAlert(ctx context.Context, alert *domain.ResourceAlert) error {
	query := `
		INSERT INTO resource_alerts (id, resource_id, message, acknowledged, created_at)
		VALUES (:id, :resource_id, :message, :acknowledged, :created_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, alert)
	return vtuerrors.Wrap(err, "failed to create resource alert")
}

func (r *SimRepository) ListAlerts(ctx context.Context, unackedOnly bool) ([]*domain.ResourceAlert, error) {
	var alerts []*domain.ResourceAlert
	query := `SELECT * FROM resource_alerts`
	if unackedOnly {
		query += ` WHERE acknowledged = FALSE`
	}
	query += ` ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &alerts, query)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to list resource alerts")
	}
	return alerts, nil
}

func (r *SimRepository) AcknowledgeAlert(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE resource_alerts SET acknowledged = TRUE, acked_at = $1 WHERE id = $2
	`, time.Now(), id)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to acknowledge alert")
	}
	return checkFound(result, vtuerrors.ErrNotFound)
}
