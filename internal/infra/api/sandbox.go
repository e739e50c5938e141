package api

import (
	"net/http"
	"strings"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/infra/logging"
	"giftcard-service/internal/infra/metrics"
)

// SandboxSettler completes checkouts on the in-memory gateway.
type SandboxSettler interface {
	Settle(preferenceID, status string) (paymentID string, err error)
}

type sandboxSettleRequest struct {
	ExternalRef string `json:"external_ref"`
	Status      string `json:"status"`
}

// handleSandboxSettle records a payment for a sandbox checkout and feeds it
// through reconciliation the way a gateway notification would.
func (s *Server) handleSandboxSettle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.With(ctx, s.log)

	var req sandboxSettleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	req.ExternalRef = strings.TrimSpace(req.ExternalRef)
	if req.ExternalRef == "" {
		writeError(w, r, s.log, domain.Validationf("external_ref is required"))
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = "approved"
	}

	paymentID, err := s.deps.Sandbox.Settle(req.ExternalRef, status)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.deps.Payments.Reconcile(ctx, model.Notification{PaymentID: paymentID})
	if err != nil {
		metrics.IncWebhook("error")
		writeError(w, r, s.log, err)
		return
	}
	metrics.IncWebhook(res.Outcome)
	log.Info().Str("payment_id", paymentID).Str("status", status).Str("result", res.Outcome).Msg("sandbox payment settled")
	writeJSON(w, http.StatusOK, map[string]string{
		"payment_id":     paymentID,
		"result":         res.Outcome,
		"transaction_id": res.TransactionID,
	})
}
