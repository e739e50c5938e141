package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/domain/ports/repository"
)

// Cipher encrypts secret setting values at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SettingsUseCase is the key/value store holding gateway credentials and
// deployment URLs. The payment flow only reads it; writes come from the
// admin API.
type SettingsUseCase interface {
	// Get returns the value for key. ok is false when neither the store nor
	// the configured fallbacks hold a non-empty value.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value *string) error
}

var _ SettingsUseCase = (*settingsUC)(nil)

type settingsUC struct {
	repo      repository.SettingsRepository
	cipher    Cipher
	fallbacks map[string]string
	log       *zerolog.Logger
}

// NewSettingsUseCase builds the store. cipher may be nil, in which case secret
// values are kept as-is. fallbacks are consulted when a key is absent or empty.
func NewSettingsUseCase(repo repository.SettingsRepository, cipher Cipher, fallbacks map[string]string, logger *zerolog.Logger) SettingsUseCase {
	l := logger.With().Str("component", "SettingsUseCase").Logger()
	if fallbacks == nil {
		fallbacks = map[string]string{}
	}
	return &settingsUC{repo: repo, cipher: cipher, fallbacks: fallbacks, log: &l}
}

func (u *settingsUC) Get(ctx context.Context, key string) (string, bool, error) {
	s, err := u.repo.Get(ctx, repository.NoTX, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return "", false, err
	case s.Value != nil && *s.Value != "":
		v := *s.Value
		if model.SecretSettings[key] && u.cipher != nil {
			pt, derr := u.cipher.Decrypt(v)
			if derr != nil {
				u.log.Error().Err(derr).Str("key", key).Msg("cannot decrypt setting")
				return "", false, domain.ErrPersistence
			}
			v = pt
		}
		return v, true, nil
	}
	if fb := strings.TrimSpace(u.fallbacks[key]); fb != "" {
		return fb, true, nil
	}
	return "", false, nil
}

func (u *settingsUC) Set(ctx context.Context, key string, value *string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.Validationf("setting key is required")
	}
	stored := value
	if value != nil && model.SecretSettings[key] && u.cipher != nil {
		ct, err := u.cipher.Encrypt(*value)
		if err != nil {
			return err
		}
		stored = &ct
	}
	if err := u.repo.Upsert(ctx, repository.NoTX, key, stored); err != nil {
		return err
	}
	u.log.Info().Str("key", key).Bool("cleared", value == nil).Msg("setting updated")
	return nil
}
