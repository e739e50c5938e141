package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/infra/logging"
	"giftcard-service/internal/infra/metrics"
	"giftcard-service/internal/usecase"
)

// adminResult records the outcome of an admin action for metrics.
func adminResult(action string, err error) {
	status := "ok"
	if err != nil {
		status = domain.KindOf(err).String()
	}
	metrics.IncAdminRequest(action, status)
}

// maxTTLDays bounds manual card lifetimes to about a century.
const maxTTLDays = 36500

type issueGiftCardRequest struct {
	PlanID  string `json:"plan_id"`
	Email   string `json:"email"`
	TTLDays *int   `json:"ttl_days,omitempty"`
}

type giftCardResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	PlanID    string    `json:"plan_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedBy string    `json:"created_by"`
}

func (s *Server) handleIssueGiftCard(w http.ResponseWriter, r *http.Request) {
	var req issueGiftCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	admin := logging.AdminID(r.Context())
	mint := usecase.MintRequest{PlanID: req.PlanID, Email: req.Email, CreatedBy: &admin}
	if req.TTLDays != nil {
		if *req.TTLDays <= 0 || *req.TTLDays > maxTTLDays {
			adminResult("issue_gift_card", domain.ErrValidation)
			writeError(w, r, s.log, domain.Validationf("ttl_days must be between 1 and %d", maxTTLDays))
			return
		}
		ttl := time.Duration(*req.TTLDays) * 24 * time.Hour
		mint.TTL = &ttl
	}
	card, err := s.deps.GiftCards.IssueManual(r.Context(), mint)
	adminResult("issue_gift_card", err)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, giftCardResponse{
		ID:        card.ID,
		Code:      model.FormatCode(card.Code),
		PlanID:    card.PlanID,
		Email:     card.Email,
		ExpiresAt: card.ExpiresAt,
		CreatedBy: admin,
	})
}

func (s *Server) handleAdminListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.deps.Plans.ListAll(r.Context())
	adminResult("list_plans", err)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toPlanList(plans)})
}

type planCreateRequest struct {
	Name          string          `json:"name"`
	DurationType  string          `json:"duration_type"`
	DurationValue int             `json:"duration_value"`
	Price         decimal.Decimal `json:"price"`
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	dt, err := model.ParseDurationType(req.DurationType)
	if err != nil {
		adminResult("create_plan", err)
		writeError(w, r, s.log, err)
		return
	}
	plan, err := s.deps.Plans.Create(r.Context(), req.Name, dt, req.DurationValue, req.Price)
	adminResult("create_plan", err)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanResponse(plan))
}

type planUpdateRequest struct {
	Name          *string          `json:"name,omitempty"`
	DurationType  *string          `json:"duration_type,omitempty"`
	DurationValue *int             `json:"duration_value,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Active        *bool            `json:"active,omitempty"`
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req planUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	upd := usecase.PlanUpdate{
		Name:          req.Name,
		DurationValue: req.DurationValue,
		Price:         req.Price,
		Active:        req.Active,
	}
	if req.DurationType != nil {
		dt, err := model.ParseDurationType(*req.DurationType)
		if err != nil {
			adminResult("update_plan", err)
			writeError(w, r, s.log, err)
			return
		}
		upd.DurationType = &dt
	}
	plan, err := s.deps.Plans.Update(r.Context(), chi.URLParam(r, "id"), upd)
	adminResult("update_plan", err)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(plan))
}

type settingRequest struct {
	Value *string `json:"value"`
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	key := chi.URLParam(r, "key")
	err := s.deps.Settings.Set(r.Context(), key, req.Value)
	adminResult("set_setting", err)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	logging.With(r.Context(), s.log).Info().Str("key", key).Bool("cleared", req.Value == nil).Msg("setting updated")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Stats.Totals(r.Context())
	adminResult("stats", err)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
