package repository

import (
	"context"
	"time"

	"giftcard-service/internal/domain/model"
)

type GiftCardRepository interface {
	// Insert stores g. inserted is false, with a nil error, when the code is
	// already taken; the surrounding transaction stays usable.
	Insert(ctx context.Context, tx Tx, g *model.GiftCard) (inserted bool, err error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.GiftCard, error)
	FindByCode(ctx context.Context, tx Tx, code string) (*model.GiftCard, error)
	// MarkUsed flips used to true only if the card is unused and unexpired at
	// the given instant. ok reports whether a row changed.
	MarkUsed(ctx context.Context, tx Tx, id string, at time.Time) (ok bool, err error)
	CountByState(ctx context.Context, tx Tx, at time.Time) (map[string]int, error)
}
