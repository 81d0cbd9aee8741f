package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/contesthub/contesthub-gobackend/internal/apperr"
	"github.com/contesthub/contesthub-gobackend/internal/gateway"
	"github.com/contesthub/contesthub-gobackend/internal/httputil"
	"github.com/contesthub/contesthub-gobackend/internal/logging"
	"github.com/contesthub/contesthub-gobackend/internal/models"
	"github.com/contesthub/contesthub-gobackend/internal/services"
)

const maxWebhookBytes = 64 << 10

type PaymentHandler struct {
	service       *services.RegistrationService
	webhookSecret string
	now           func() time.Time
}

func NewPaymentHandler(service *services.RegistrationService, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{service: service, webhookSecret: webhookSecret, now: time.Now}
}

func (h *PaymentHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	email, err := principalEmail(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	var req models.CheckoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	resp, err := h.service.CreateCheckoutSession(r.Context(), email, req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, resp)
}

// PaymentSuccess confirms the session the client was redirected back with.
func (h *PaymentHandler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ConfirmPayment(r.Context(), queryParam(r, "session_id"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, res)
}

// Webhook handles signed Stripe events. checkout.session.completed runs the
// same confirmation as PaymentSuccess, so whichever arrives second is a
// replay. Other event types are acknowledged and ignored.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		httputil.WriteError(w, r, apperr.Wrap(err, apperr.CodeValidation, "failed to read webhook body"))
		return
	}

	event, err := gateway.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret, h.now())
	switch {
	case errors.Is(err, gateway.ErrNoWebhookSecret):
		logger.ErrorContext(r.Context(), "webhook received but STRIPE_WEBHOOK_SECRET is not set")
		httputil.WriteError(w, r, apperr.Wrap(err, apperr.CodeInternal, "webhook not configured"))
		return
	case errors.Is(err, gateway.ErrInvalidSignature):
		logger.WarnContext(r.Context(), "webhook rejected", "error", err)
		httputil.WriteError(w, r, apperr.Wrap(err, apperr.CodeUnauthorized, "invalid webhook signature"))
		return
	case err != nil:
		logger.WarnContext(r.Context(), "webhook rejected", "error", err)
		httputil.WriteError(w, r, apperr.Wrap(err, apperr.CodeValidation, "invalid webhook payload"))
		return
	}

	if event.Type != gateway.EventCheckoutCompleted || event.Session == nil {
		logger.InfoContext(r.Context(), "webhook event ignored", "event_id", event.ID, "type", event.Type)
		httputil.WriteJSON(w, r, http.StatusOK, map[string]bool{"received": true})
		return
	}

	_, err = h.service.ConfirmPayment(r.Context(), event.Session.ID)
	if err != nil && !finalOutcome(err) {
		// Any non-2xx makes Stripe redeliver.
		httputil.WriteError(w, r, err)
		return
	}
	logger.InfoContext(r.Context(), "webhook processed", "event_id", event.ID, "session_id", event.Session.ID)
	httputil.WriteJSON(w, r, http.StatusOK, map[string]bool{"received": true})
}

// finalOutcome reports whether redelivering the event could change err.
func finalOutcome(err error) bool {
	switch apperr.CodeOf(err) {
	case apperr.CodeDuplicateRegistration, apperr.CodePaymentIncomplete, apperr.CodeNotFound:
		return true
	}
	return false
}

// StubHandler completes checkout sessions of the in-process gateway. It is
// only routed when the stub provider is configured.
type StubHandler struct {
	stub *gateway.Stub
}

func NewStubHandler(stub *gateway.Stub) *StubHandler {
	return &StubHandler{stub: stub}
}

func (h *StubHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id := queryParam(r, "session_id")
	if id == "" {
		httputil.WriteError(w, r, apperr.New(apperr.CodeValidation, "session_id is required"))
		return
	}
	if err := h.stub.MarkPaid(id); err != nil {
		httputil.WriteError(w, r, apperr.Wrap(err, apperr.CodeNotFound, "checkout session not found"))
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, map[string]string{
		"sessionId":     id,
		"paymentStatus": gateway.StatusPaid,
	})
}
