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

// Ensure implementation satisfies the interface.
var _ repository.GiftCardRepository = (*giftCardRepo)(nil)

type giftCardRepo struct {
	pool *pgxpool.Pool
}

func NewGiftCardRepo(pool *pgxpool.Pool) repository.GiftCardRepository {
	return &giftCardRepo{pool: pool}
}

const giftCardColumns = `id, code, plan_id, email, created_by, expires_at, used, used_at, created_at`

// Insert stores a new card. A clash on the unique code is reported as
// inserted=false so the caller can regenerate.
func (r *giftCardRepo) Insert(ctx context.Context, tx repository.Tx, g *model.GiftCard) (bool, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	const q = `
INSERT INTO gift_cards (` + giftCardColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (code) DO NOTHING;
`
	ct, err := execSQL(ctx, r.pool, tx, q,
		g.ID, g.Code, g.PlanID, g.Email, g.CreatedBy, g.ExpiresAt, g.Used, g.UsedAt, g.CreatedAt,
	)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return false, domain.ErrInvalidPlan
		}
		return false, dbErr("gift_card.insert", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *giftCardRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GiftCard, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	const q = `SELECT ` + giftCardColumns + ` FROM gift_cards WHERE id = $1;`
	return r.findOne(ctx, tx, "gift_card.find", q, id)
}

// FindByCode expects the normalized (stored) form of the code.
func (r *giftCardRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.GiftCard, error) {
	const q = `SELECT ` + giftCardColumns + ` FROM gift_cards WHERE code = $1;`
	return r.findOne(ctx, tx, "gift_card.find_code", q, code)
}

func (r *giftCardRepo) findOne(ctx context.Context, tx repository.Tx, op, q string, arg interface{}) (*model.GiftCard, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, dbErr(op, err)
	}
	var g model.GiftCard
	if err := row.Scan(&g.ID, &g.Code, &g.PlanID, &g.Email, &g.CreatedBy, &g.ExpiresAt, &g.Used, &g.UsedAt, &g.CreatedAt); err != nil {
		return nil, dbErr(op, err)
	}
	return &g, nil
}

// MarkUsed is the single conditional write behind redemption: it succeeds for
// exactly one caller while the card is unused and unexpired at `at`.
func (r *giftCardRepo) MarkUsed(ctx context.Context, tx repository.Tx, id string, at time.Time) (bool, error) {
	const q = `
UPDATE gift_cards
   SET used = TRUE, used_at = $2
 WHERE id = $1 AND used = FALSE AND expires_at > $2;
`
	ct, err := execSQL(ctx, r.pool, tx, q, id, at)
	if err != nil {
		return false, dbErr("gift_card.mark_used", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *giftCardRepo) CountByState(ctx context.Context, tx repository.Tx, at time.Time) (map[string]int, error) {
	const q = `
SELECT CASE
         WHEN used THEN 'used'
         WHEN expires_at <= $1 THEN 'expired'
         ELSE 'unused'
       END AS state,
       COUNT(*)
  FROM gift_cards
 GROUP BY 1;
`
	rows, err := queryRows(ctx, r.pool, tx, q, at)
	if err != nil {
		return nil, dbErr("gift_card.count", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, dbErr("gift_card.count", err)
		}
		out[state] = n
	}
	return out, dbErr("gift_card.count", rows.Err())
}
