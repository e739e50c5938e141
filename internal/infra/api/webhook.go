package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/infra/logging"
	"giftcard-service/internal/infra/metrics"
	"giftcard-service/internal/usecase"
)

// gatewayNotification accepts both Mercado Pago webhooks
// ({"type":"payment","data":{"id":"123"}}) and direct status reports
// ({"external_reference":..,"status":..}).
type gatewayNotification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
	ExternalReference string `json:"external_reference"`
	TransactionID     string `json:"transaction_id"`
	Status            string `json:"status"`
}

func (s *Server) handleGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.With(ctx, s.log)

	var body gatewayNotification
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		metrics.IncWebhook("bad_payload")
		writeError(w, r, s.log, errMalformed)
		return
	}

	q := r.URL.Query()
	kind := firstNonEmpty(body.Type, q.Get("type"), q.Get("topic"))
	paymentID := firstNonEmpty(q.Get("data.id"), body.Data.ID.String(), q.Get("id"))

	secret, signed, err := s.deps.Settings.Get(ctx, model.SettingWebhookSecret)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if signed {
		if err := s.signature.Verify(secret, r.Header.Get("x-signature"), strings.ToLower(paymentID), r.Header.Get("x-request-id")); err != nil {
			metrics.IncWebhook("bad_signature")
			log.Warn().Err(err).Str("payment_id", paymentID).Msg("webhook signature rejected")
			writeError(w, r, s.log, domain.ErrUnauthorized)
			return
		}
	}

	if kind != "" && kind != "payment" {
		metrics.IncWebhook(usecase.OutcomeIgnored)
		log.Debug().Str("type", kind).Msg("non-payment notification ignored")
		writeJSON(w, http.StatusOK, map[string]string{"result": usecase.OutcomeIgnored})
		return
	}

	n := model.Notification{
		ExternalRef:   body.ExternalReference,
		TransactionID: body.TransactionID,
		PaymentID:     paymentID,
		Status:        body.Status,
	}
	switch {
	case n.PaymentID != "":
		// the gateway's own record is authoritative
		n = model.Notification{PaymentID: n.PaymentID}
	case n.Status != "" && !signed:
		metrics.IncWebhook("bad_signature")
		log.Warn().Str("transaction_id", n.TransactionID).Msg("unsigned status report rejected")
		writeError(w, r, s.log, domain.ErrUnauthorized)
		return
	}
	if n.ExternalRef == "" && n.TransactionID == "" && n.PaymentID == "" {
		metrics.IncWebhook("bad_payload")
		writeError(w, r, s.log, errMalformed)
		return
	}

	res, err := s.deps.Payments.Reconcile(ctx, n)
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindNotFound, domain.KindInvalidPlan:
			// acknowledged; redelivery cannot change the outcome
			metrics.IncWebhook(usecase.OutcomeNotFound)
			log.Warn().Err(err).Str("payment_id", paymentID).Msg("webhook acknowledged without changes")
			writeJSON(w, http.StatusOK, map[string]string{"result": usecase.OutcomeNotFound})
		case domain.KindValidation:
			metrics.IncWebhook("bad_payload")
			writeError(w, r, s.log, err)
		default:
			metrics.IncWebhook("error")
			writeError(w, r, s.log, err)
		}
		return
	}
	metrics.IncWebhook(res.Outcome)
	writeJSON(w, http.StatusOK, map[string]string{
		"result":         res.Outcome,
		"transaction_id": res.TransactionID,
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
