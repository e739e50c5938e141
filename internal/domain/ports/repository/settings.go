package repository

import (
	"context"

	"giftcard-service/internal/domain/model"
)

type SettingsRepository interface {
	Get(ctx context.Context, tx Tx, key string) (*model.Setting, error)
	Upsert(ctx context.Context, tx Tx, key string, value *string) error
}
