package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.SubscriptionPlanRepository = (*PostgresPlanRepo)(nil)

type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

const planColumns = `id, name, duration_type, duration_value, price, active, created_at, updated_at`

func (r *PostgresPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.SubscriptionPlan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	if plan.UpdatedAt.IsZero() {
		plan.UpdatedAt = now
	}
	const q = `
INSERT INTO subscription_plans (` + planColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE
  SET name           = EXCLUDED.name,
      duration_type  = EXCLUDED.duration_type,
      duration_value = EXCLUDED.duration_value,
      price          = EXCLUDED.price,
      active         = EXCLUDED.active,
      updated_at     = EXCLUDED.updated_at;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		plan.ID, plan.Name, string(plan.DurationType), plan.DurationValue, plan.Price, plan.Active, plan.CreatedAt, plan.UpdatedAt,
	)
	return dbErr("plan.save", err)
}

func (r *PostgresPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	const q = `SELECT ` + planColumns + ` FROM subscription_plans WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, dbErr("plan.find", err)
	}
	p, err := scanPlan(row)
	if err != nil {
		return nil, dbErr("plan.find", err)
	}
	return p, nil
}

func (r *PostgresPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	const q = `SELECT ` + planColumns + ` FROM subscription_plans ORDER BY price, name;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, dbErr("plan.list", err)
	}
	defer rows.Close()
	var out []*model.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, dbErr("plan.list", err)
		}
		out = append(out, p)
	}
	return out, dbErr("plan.list", rows.Err())
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlan(row rowScanner) (*model.SubscriptionPlan, error) {
	var p model.SubscriptionPlan
	var dt string
	if err := row.Scan(&p.ID, &p.Name, &dt, &p.DurationValue, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.DurationType = model.DurationType(dt)
	return &p, nil
}
