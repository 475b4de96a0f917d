package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"vtu/internal/domain"
	vtuerrors "vtu/pkg/errors"
)

type PlanRepository struct {
	db *sqlx.DB
}

func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) Create(ctx context.Context, plan *domain.DataPlan) error {
	query := `
		INSERT INTO data_plans (
			id, network, category, name, price, size_mb, validity_days,
			external_plan_id, is_active, created_at, updated_at
		) VALUES (
			:id, :network, :category, :name, :price, :size_mb, :validity_days,
			:external_plan_id, :is_active, :created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, plan)
	return vtuerrors.Wrap(err, "failed to create plan")
}

func (r *PlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.DataPlan, error) {
	plan := &domain.DataPlan{}
	err := r.db.GetContext(ctx, plan, `SELECT * FROM data_plans WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrPlanNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find plan")
	}
	return plan, nil
}

// ListActive returns the public catalog, optionally filtered by network.
func (r *PlanRepository) ListActive(ctx context.Context, network *domain.Network) ([]*domain.DataPlan, error) {
	var plans []*domain.DataPlan
	query := `SELECT * FROM data_plans WHERE is_active = TRUE`
	args := []interface{}{}
	if network != nil {
		query += ` AND network = $1`
		args = append(args, *network)
	}
	query += ` ORDER BY network, price ASC`
	err := r.db.SelectContext(ctx, &plans, query, args...)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to list active plans")
	}
	return plans, nil
}

func (r *PlanRepository) ListAll(ctx context.Context) ([]*domain.DataPlan, error) {
	var plans []*domain.DataPlan
	err := r.db.SelectContext(ctx, &plans, `SELECT * FROM data_plans ORDER BY network, price ASC`)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to list plans")
	}
	return plans, nil
}

func (r *PlanRepository) Update(ctx context.Context, plan *domain.DataPlan) error {
	plan.UpdatedAt = time.Now()
	query := `
		UPDATE data_plans SET
			category = :category,
			name = :name,
			price = :price,
			size_mb = :size_mb,
			validity_days = :validity_days,
			external_plan_id = :external_plan_id,
			is_active = :is_active,
			updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, plan)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to update plan")
	}
	return checkFound(result, vtuerrors.ErrPlanNotFound)
}
