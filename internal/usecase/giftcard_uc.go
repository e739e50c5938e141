package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/domain/ports/adapter"
	"giftcard-service/internal/domain/ports/repository"
	"giftcard-service/internal/infra/logging"
	"giftcard-service/internal/infra/metrics"
	"giftcard-service/internal/infra/worker"
)

// MaxMintAttempts bounds regeneration on code collision.
const MaxMintAttempts = 5

// CodeGenerator produces candidate gift card codes in stored (ungrouped) form.
type CodeGenerator interface {
	Generate() (string, error)
}

// TaskSubmitter queues work for asynchronous execution.
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

type MintRequest struct {
	PlanID string
	Email  string
	// TTL overrides the default one-year validity. Must be positive if set.
	TTL       *time.Duration
	CreatedBy *string
}

// GiftCardUseCase mints single-use codes bound to a plan and recipient.
type GiftCardUseCase interface {
	// Mint stores a new unused card inside tx. It is the only way cards are
	// created, both for purchases and manual issuance.
	Mint(ctx context.Context, tx repository.Tx, req MintRequest) (*model.GiftCard, error)
	// IssueManual mints in its own transaction on behalf of an administrator
	// and queues delivery to the recipient.
	IssueManual(ctx context.Context, req MintRequest) (*model.GiftCard, error)
	// QueueDelivery hands a committed card to the notifier off the request path.
	QueueDelivery(card *model.GiftCard, transactionID string)
}

var _ GiftCardUseCase = (*giftCardUC)(nil)

type giftCardUC struct {
	plans    repository.SubscriptionPlanRepository
	cards    repository.GiftCardRepository
	tm       repository.TransactionManager
	gen      CodeGenerator
	notifier adapter.GiftCardNotifier
	pool     TaskSubmitter
	now      func() time.Time
	dev      bool
	log      *zerolog.Logger
}

type GiftCardOption func(*giftCardUC)

func WithCodeGenerator(g CodeGenerator) GiftCardOption { return func(u *giftCardUC) { u.gen = g } }

func WithGiftCardClock(now func() time.Time) GiftCardOption {
	return func(u *giftCardUC) { u.now = now }
}

// WithDevMode disables redaction of codes and emails in logs.
func WithDevMode(dev bool) GiftCardOption { return func(u *giftCardUC) { u.dev = dev } }

func NewGiftCardUseCase(
	plans repository.SubscriptionPlanRepository,
	cards repository.GiftCardRepository,
	tm repository.TransactionManager,
	notifier adapter.GiftCardNotifier,
	pool TaskSubmitter,
	logger *zerolog.Logger,
	opts ...GiftCardOption,
) GiftCardUseCase {
	l := logger.With().Str("component", "GiftCardUseCase").Logger()
	u := &giftCardUC{
		plans:    plans,
		cards:    cards,
		tm:       tm,
		gen:      NewRandomCodeGenerator(),
		notifier: notifier,
		pool:     pool,
		now:      func() time.Time { return time.Now().UTC() },
		log:      &l,
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

func (u *giftCardUC) Mint(ctx context.Context, tx repository.Tx, req MintRequest) (*model.GiftCard, error) {
	defer logging.TraceDuration(u.log, "GiftCardUC.Mint")()

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if req.TTL != nil && *req.TTL <= 0 {
		return nil, domain.Validationf("ttl must be positive")
	}
	plan, err := loadPurchasablePlan(ctx, u.plans, tx, req.PlanID)
	if err != nil {
		return nil, err
	}

	now := u.now()
	expires := now.AddDate(1, 0, 0)
	if req.TTL != nil {
		expires = now.Add(*req.TTL)
	}

	for attempt := 1; attempt <= MaxMintAttempts; attempt++ {
		code, err := u.gen.Generate()
		if err != nil {
			return nil, fmt.Errorf("%w: generate code: %v", domain.ErrPersistence, err)
		}
		card := &model.GiftCard{
			ID:        uuid.NewString(),
			Code:      code,
			PlanID:    plan.ID,
			Email:     email,
			CreatedBy: req.CreatedBy,
			ExpiresAt: expires,
			CreatedAt: now,
		}
		inserted, err := u.cards.Insert(ctx, tx, card)
		if err != nil {
			return nil, err
		}
		if !inserted {
			metrics.IncGiftCardCollision()
			u.log.Warn().Int("attempt", attempt).Msg("gift card code collision, regenerating")
			continue
		}
		metrics.IncGiftCardMinted(mintSource(req))
		u.log.Info().
			Str("gift_card_id", card.ID).
			Str("plan_id", plan.ID).
			Str("email", logging.Redact(email, u.dev)).
			Time("expires_at", expires).
			Msg("gift card minted")
		return card, nil
	}
	return nil, fmt.Errorf("%w: %w after %d attempts", domain.ErrPersistence, domain.ErrCodeCollision, MaxMintAttempts)
}

func (u *giftCardUC) IssueManual(ctx context.Context, req MintRequest) (*model.GiftCard, error) {
	if req.CreatedBy == nil || strings.TrimSpace(*req.CreatedBy) == "" {
		return nil, domain.Validationf("issuer is required for manual issuance")
	}
	var card *model.GiftCard
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		c, err := u.Mint(ctx, tx, req)
		if err != nil {
			return err
		}
		card = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.QueueDelivery(card, "")
	return card, nil
}

func (u *giftCardUC) QueueDelivery(card *model.GiftCard, transactionID string) {
	if u.notifier == nil || u.pool == nil || card == nil {
		return
	}
	c := *card
	task := func(ctx context.Context) error {
		d := adapter.GiftCardDelivery{
			Email:       c.Email,
			Code:        model.FormatCode(c.Code),
			ExpiresAt:   c.ExpiresAt,
			Manual:      c.CreatedBy != nil,
			Transaction: transactionID,
		}
		if p, err := u.plans.FindByID(ctx, repository.NoTX, c.PlanID); err == nil {
			d.PlanName = p.Name
		}
		if err := u.notifier.Deliver(ctx, d); err != nil {
			metrics.IncGiftCardDelivery("error")
			u.log.Error().Err(err).Str("gift_card_id", c.ID).Msg("gift card delivery failed")
			return nil
		}
		metrics.IncGiftCardDelivery("sent")
		return nil
	}
	if err := u.pool.Submit(task); err != nil {
		metrics.IncGiftCardDelivery("dropped")
		u.log.Warn().Err(err).Str("gift_card_id", c.ID).Msg("failed to queue gift card delivery")
	}
}

func mintSource(req MintRequest) string {
	if req.CreatedBy != nil {
		return "manual"
	}
	return "purchase"
}

func normalizeEmail(in string) (string, error) {
	s := strings.TrimSpace(in)
	if s == "" {
		return "", domain.Validationf("email is required")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || !strings.Contains(s[strings.LastIndex(s, "@")+1:], ".") {
		return "", domain.Validationf("invalid email %q", s)
	}
	return strings.ToLower(s), nil
}

type randomCodeGenerator struct {
	r io.Reader
}

// NewRandomCodeGenerator draws codes from crypto/rand.
func NewRandomCodeGenerator() CodeGenerator { return &randomCodeGenerator{r: rand.Reader} }

// Generate maps random bytes onto the 36-symbol alphabet, discarding bytes
// at or above the largest multiple of 36 so every symbol is equally likely.
func (g *randomCodeGenerator) Generate() (string, error) {
	const n = len(model.CodeAlphabet)
	const limit = 256 - (256 % n)
	out := make([]byte, 0, model.CodeLength)
	buf := make([]byte, model.CodeLength*2)
	for len(out) < model.CodeLength {
		if _, err := io.ReadFull(g.r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, model.CodeAlphabet[int(b)%n])
			if len(out) == model.CodeLength {
				break
			}
		}
	}
	return string(out), nil
}
