package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/infra/logging"
)

type planResponse struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	DurationType  model.DurationType `json:"duration_type"`
	DurationValue int                `json:"duration_value"`
	Price         decimal.Decimal    `json:"price"`
	Active        bool               `json:"active"`
}

func toPlanResponse(p *model.SubscriptionPlan) planResponse {
	return planResponse{
		ID:            p.ID,
		Name:          p.Name,
		DurationType:  p.DurationType,
		DurationValue: p.DurationValue,
		Price:         p.Price,
		Active:        p.Active,
	}
}

func toPlanList(plans []*model.SubscriptionPlan) []planResponse {
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanResponse(p))
	}
	return out
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.deps.Plans.ListActive(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toPlanList(plans)})
}

type createTransactionRequest struct {
	PlanID string `json:"plan_id"`
	Email  string `json:"email"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	checkout, err := s.deps.Payments.StartPurchase(r.Context(), req.PlanID, req.Email, requestOrigin(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkout)
}

// requestOrigin derives the storefront origin used for the gateway back URLs.
func requestOrigin(r *http.Request) string {
	if o := r.Header.Get("Origin"); o != "" && o != "null" {
		return strings.TrimRight(o, "/")
	}
	if ref := r.Header.Get("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
			return u.Scheme + "://" + u.Host
		}
	}
	return ""
}

type transactionStatusResponse struct {
	ID        string                  `json:"id"`
	PlanID    string                  `json:"plan_id"`
	Amount    decimal.Decimal         `json:"amount"`
	Status    model.TransactionStatus `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionStatusResponse{
		ID:        t.ID,
		PlanID:    t.PlanID,
		Amount:    t.Amount,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	})
}

type redeemRequest struct {
	Code string `json:"code"`
}

type redeemResponse struct {
	PlanID      string    `json:"plan_id"`
	Email       string    `json:"email"`
	RedeemedAt  time.Time `json:"redeemed_at"`
	AccessUntil time.Time `json:"access_until"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	grant, err := s.deps.Redemption.Redeem(r.Context(), req.Code)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	logging.With(r.Context(), s.log).Info().Str("gift_card_id", grant.GiftCardID).Msg("gift card redeemed")
	writeJSON(w, http.StatusOK, redeemResponse{
		PlanID:      grant.PlanID,
		Email:       grant.Email,
		RedeemedAt:  grant.RedeemedAt,
		AccessUntil: grant.AccessUntil,
	})
}
