package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"coinpay/internal/core/domain"
	"coinpay/internal/core/reconcile"
)

// WebhookQueue is the bit of storage the handler needs to hand a credited
// event to the background worker.
type WebhookQueue interface {
	EnqueueWebhook(ctx context.Context, url string, payload []byte) error
}

// CallbackHandler is the thin controller in front of the reconciler. Two
// routes share it: the browser redirect leg and the server-to-server notify
// leg. Both feed the same pipeline; only the logging differs.
type CallbackHandler struct {
	Reconciler *reconcile.Reconciler

	// Queue and WebhookURL are optional; when either is unset the
	// credited-event feed is disabled.
	Queue      WebhookQueue
	WebhookURL string
}

// HandleReturn serves the gateway's browser redirect.
func (h *CallbackHandler) HandleReturn(c *fiber.Ctx) error {
	return h.handle(c, "return")
}

// HandleNotify serves the gateway's server-to-server notification. The
// gateway retries this leg until it gets a final answer, so anything the
// gateway itself reported maps to 200 even when the payment failed.
func (h *CallbackHandler) HandleNotify(c *fiber.Ctx) error {
	return h.handle(c, "notify")
}

func (h *CallbackHandler) handle(c *fiber.Ctx, leg string) error {
	fields := domain.CallbackFields(c.Queries())

	result := h.Reconciler.Reconcile(c.Context(), fields)
	slog.Info("Gateway callback handled", "leg", leg, "outcome", result.Outcome, "order_ref", result.OrderReference)

	if result.Outcome == domain.OutcomeApproved {
		h.queueCreditedEvent(c.Context(), result)
	}

	return c.Status(statusFor(result.Outcome)).JSON(result)
}

// queueCreditedEvent hands a coin.credited job to the worker. The credit has
// already committed; a queue failure is logged and swallowed.
func (h *CallbackHandler) queueCreditedEvent(ctx context.Context, result domain.Result) {
	if h.Queue == nil || h.WebhookURL == "" {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"event": "coin.credited",
		"data": map[string]interface{}{
			"order_reference": result.OrderReference,
			"amount":          result.CreditedAmount,
			"new_balance":     result.NewBalance,
			"timestamp":       time.Now(),
		},
	})
	if err != nil {
		slog.Error("❌ Failed to marshal credited event", "error", err)
		return
	}

	if err := h.Queue.EnqueueWebhook(ctx, h.WebhookURL, payload); err != nil {
		slog.Error("❌ Failed to queue credited event", "error", err, "order_ref", result.OrderReference)
	} else {
		slog.Info("✅ Credited event queued for worker", "order_ref", result.OrderReference)
	}
}

// statusFor maps outcomes to HTTP classes. Final gateway verdicts are 200 so
// the notify retry loop stops; only our own failures say otherwise.
func statusFor(outcome domain.Outcome) int {
	switch outcome {
	case domain.OutcomeRejected:
		return http.StatusBadRequest
	case domain.OutcomeBeneficiaryNotFound:
		return http.StatusNotFound
	case domain.OutcomePersistenceFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}
