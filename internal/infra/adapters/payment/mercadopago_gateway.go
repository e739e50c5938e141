package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"giftcard-service/internal/config"
	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/ports/adapter"
	"giftcard-service/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*MercadoPagoGateway)(nil)

// MercadoPagoGateway implements adapter.PaymentGateway over the Checkout Pro
// REST API: /checkout/preferences to create an intent, /v1/payments to read
// the outcome.
type MercadoPagoGateway struct {
	baseURL    string
	client     *http.Client
	maxRetries uint
	logger     *zerolog.Logger
}

func NewMercadoPagoGateway(cfg config.GatewayConfig, logger *zerolog.Logger) (*MercadoPagoGateway, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 3
	}
	l := logger.With().Str("component", "MercadoPagoGateway").Logger()
	return &MercadoPagoGateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		client:     &http.Client{Timeout: timeout},
		maxRetries: retries,
		logger:     &l,
	}, nil
}

func (g *MercadoPagoGateway) Name() string { return "mercadopago" }

type mpItem struct {
	Title      string      `json:"title"`
	Quantity   int         `json:"quantity"`
	UnitPrice  json.Number `json:"unit_price"`
	CurrencyID string      `json:"currency_id"`
}

type mpPreferenceRequest struct {
	Items []mpItem `json:"items"`
	Payer struct {
		Email string `json:"email,omitempty"`
	} `json:"payer"`
	BackURLs struct {
		Success string `json:"success,omitempty"`
		Failure string `json:"failure,omitempty"`
		Pending string `json:"pending,omitempty"`
	} `json:"back_urls"`
	AutoReturn        string `json:"auto_return,omitempty"`
	ExternalReference string `json:"external_reference"`
	NotificationURL   string `json:"notification_url,omitempty"`
}

type mpPayment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	ExternalReference string      `json:"external_reference"`
}

func (p mpPayment) info() adapter.PaymentInfo {
	return adapter.PaymentInfo{
		ID:                p.ID.String(),
		Status:            p.Status,
		StatusDetail:      p.StatusDetail,
		ExternalReference: p.ExternalReference,
	}
}

// CreatePreference calls POST /checkout/preferences.
func (g *MercadoPagoGateway) CreatePreference(ctx context.Context, accessToken string, req adapter.CheckoutRequest) (*adapter.CheckoutPreference, error) {
	if req.ExternalReference == "" || len(req.Items) == 0 {
		return nil, domain.Validationf("checkout request needs an external reference and items")
	}
	var body mpPreferenceRequest
	for _, it := range req.Items {
		body.Items = append(body.Items, mpItem{
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  json.Number(it.UnitPrice.StringFixed(2)),
			CurrencyID: it.CurrencyID,
		})
	}
	body.Payer.Email = req.PayerEmail
	body.BackURLs.Success = req.BackURLs.Success
	body.BackURLs.Failure = req.BackURLs.Failure
	body.BackURLs.Pending = req.BackURLs.Pending
	body.AutoReturn = req.AutoReturn
	body.ExternalReference = req.ExternalReference
	body.NotificationURL = req.NotificationURL

	var out struct {
		ID               string `json:"id"`
		InitPoint        string `json:"init_point"`
		SandboxInitPoint string `json:"sandbox_init_point"`
	}
	if err := g.call(ctx, "create_preference", http.MethodPost, "/checkout/preferences", accessToken, idempotencyKey(req.ExternalReference), body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || (out.InitPoint == "" && out.SandboxInitPoint == "") {
		return nil, fmt.Errorf("%w: preference response without id or init point", domain.ErrGateway)
	}
	return &adapter.CheckoutPreference{
		ID:               out.ID,
		InitPoint:        out.InitPoint,
		SandboxInitPoint: out.SandboxInitPoint,
	}, nil
}

// LookupPayment calls GET /v1/payments/{id}. An unknown payment is ErrNotFound.
func (g *MercadoPagoGateway) LookupPayment(ctx context.Context, accessToken, paymentID string) (*adapter.PaymentInfo, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, domain.Validationf("payment id is required")
	}
	var out mpPayment
	if err := g.call(ctx, "lookup_payment", http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), accessToken, "", nil, &out); err != nil {
		return nil, err
	}
	info := out.info()
	return &info, nil
}

// SearchByExternalRef calls GET /v1/payments/search?external_reference=ref,
// newest first.
func (g *MercadoPagoGateway) SearchByExternalRef(ctx context.Context, accessToken, externalRef string) ([]adapter.PaymentInfo, error) {
	q := url.Values{}
	q.Set("external_reference", externalRef)
	q.Set("sort", "date_created")
	q.Set("criteria", "desc")
	var out struct {
		Results []mpPayment `json:"results"`
	}
	if err := g.call(ctx, "search_payments", http.MethodGet, "/v1/payments/search?"+q.Encode(), accessToken, "", nil, &out); err != nil {
		return nil, err
	}
	res := make([]adapter.PaymentInfo, 0, len(out.Results))
	for _, p := range out.Results {
		res = append(res, p.info())
	}
	return res, nil
}

// call performs one API request with bounded retries on transport errors,
// 429 and 5xx. Everything it returns wraps domain.ErrGateway except a 404,
// which maps to domain.ErrNotFound. A non-empty idemKey is sent on every
// attempt so a retried POST cannot create a second resource.
func (g *MercadoPagoGateway) call(ctx context.Context, op, method, path, token, idemKey string, in, out interface{}) (err error) {
	if token == "" {
		return fmt.Errorf("%w: access token is not configured", domain.ErrGateway)
	}
	var payload []byte
	if in != nil {
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("%w: encode %s: %v", domain.ErrGateway, op, err)
		}
	}

	start := time.Now()
	defer func() { metrics.ObserveGatewayCall(g.Name(), op, err, time.Since(start)) }()

	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		return g.do(ctx, method, path, token, idemKey, payload)
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(g.maxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			g.logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("retry_in", next).Msg("gateway call failed, retrying")
		}),
	)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, op)
		}
		if errors.Is(err, domain.ErrGateway) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrGateway, op, err)
	}
	if out != nil {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("%w: decode %s: %v", domain.ErrGateway, op, err)
		}
	}
	return nil
}

// idempotencyKey derives the preference key from our transaction ID, so one
// transaction maps to at most one preference.
func idempotencyKey(externalRef string) string {
	return "giftcard-pref-" + externalRef
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway http %d: %s", e.code, e.body)
}

func (g *MercadoPagoGateway) do(ctx context.Context, method, path, token, idemKey string, payload []byte) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rd)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set("X-Idempotency-Key", idemKey)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	se := &statusError{code: resp.StatusCode, body: truncate(string(body), 256)}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return nil, backoff.RetryAfter(secs)
		}
		return nil, se
	case resp.StatusCode >= 500:
		return nil, se
	default:
		return nil, backoff.Permanent(se)
	}
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
