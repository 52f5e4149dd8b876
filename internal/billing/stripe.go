package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
)

// Provider event types this service subscribes to. Anything else is
// acknowledged and dropped.
const (
	stripeCheckoutCompleted   = "checkout.session.completed"
	stripeSubscriptionUpdated = "customer.subscription.updated"
	stripePaymentFailed       = "invoice.payment_failed"
)

const webhookBodyLimit = 1 << 20 // 1 MiB

// checkoutSession is the minimal slice of a checkout.session payload this
// service reads. Decoding into our own struct keeps us insulated from
// provider API version churn.
type checkoutSession struct {
	ID              string `json:"id"`
	Customer        string `json:"customer"`
	Subscription    string `json:"subscription"`
	CustomerEmail   string `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

type subscriptionPayload struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Items    struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

type invoicePayload struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
}

// DecodeStripeEvent maps a verified provider event onto this package's
// event types. The second return is false for event types this service
// does not subscribe to.
func DecodeStripeEvent(ev *stripe.Event) (Event, bool, error) {
	switch string(ev.Type) {
	case stripeCheckoutCompleted:
		var s checkoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, true, fmt.Errorf("%w: checkout.session: %v", ErrInvalidEvent, err)
		}
		email := s.CustomerDetails.Email
		if email == "" {
			email = s.CustomerEmail
		}
		return CheckoutCompleted{
			SubscriptionID: s.Subscription,
			CustomerID:     s.Customer,
			PlanKey:        planKeyFromMetadata(s.Metadata),
			PayerEmail:     email,
			DisplayName:    s.CustomerDetails.Name,
		}, true, nil

	case stripeSubscriptionUpdated:
		var s subscriptionPayload
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, true, fmt.Errorf("%w: subscription: %v", ErrInvalidEvent, err)
		}
		items := make([]PriceItem, 0, len(s.Items.Data))
		for _, item := range s.Items.Data {
			if id := strings.TrimSpace(item.Price.ID); id != "" {
				items = append(items, PriceItem{PriceID: id})
			}
		}
		return SubscriptionUpdated{
			SubscriptionID: s.ID,
			Metadata:       s.Metadata,
			PriceItems:     items,
		}, true, nil

	case stripePaymentFailed:
		var inv invoicePayload
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return nil, true, fmt.Errorf("%w: invoice: %v", ErrInvalidEvent, err)
		}
		return InvoicePaymentFailed{SubscriptionID: inv.Subscription}, true, nil
	}
	return nil, false, nil
}

// planKeyFromMetadata reads the plan key the checkout flow stamped on the
// session. Older sessions used the planId key.
func planKeyFromMetadata(md map[string]string) string {
	if key := md[MetaPlanKey]; key != "" {
		return key
	}
	return md["planId"]
}

// WebhookHandler terminates the provider's webhook endpoint: it verifies
// the delivery signature, decodes the event, and hands it to the
// reconciler.
type WebhookHandler struct {
	secret     string
	reconciler *Reconciler
	logger     *slog.Logger
}

func NewWebhookHandler(secret string, reconciler *Reconciler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{secret: secret, reconciler: reconciler, logger: logger}
}

// RegisterRoutes registers the webhook endpoint on the given router group.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/stripe", h.handleWebhook)
}

func (h *WebhookHandler) handleWebhook(c *gin.Context) {
	if h.secret == "" {
		webhookRejects.WithLabelValues("unconfigured").Inc()
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "not_configured",
			"message": "Webhook secret not configured",
		})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, webhookBodyLimit)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		webhookRejects.WithLabelValues("body").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Failed to read request body",
		})
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload,
		c.GetHeader("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		webhookRejects.WithLabelValues("signature").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_signature",
			"message": "Webhook signature verification failed",
		})
		return
	}

	ev, known, err := DecodeStripeEvent(&event)
	if err != nil {
		h.logger.Warn("malformed webhook payload",
			"event_id", event.ID, "type", string(event.Type), "error", err)
		webhookRejects.WithLabelValues("payload").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_event",
			"message": "Malformed event payload",
		})
		return
	}
	if !known {
		c.JSON(http.StatusOK, gin.H{"received": true, "ignored": true})
		return
	}

	if err := h.reconciler.Apply(c.Request.Context(), ev); err != nil {
		h.logger.Error("webhook reconcile failed",
			"event_id", event.ID, "type", string(event.Type), "error", err)
		// Non-2xx makes the provider redeliver; reconciliation is
		// idempotent so the retry is safe.
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Event processing failed",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// StripeMetadataWriter pushes metadata onto live subscription objects
// through the provider API.
type StripeMetadataWriter struct {
	api *client.API
}

var _ MetadataWriter = (*StripeMetadataWriter)(nil)

func NewStripeMetadataWriter(api *client.API) *StripeMetadataWriter {
	return &StripeMetadataWriter{api: api}
}

func (w *StripeMetadataWriter) WriteSubscriptionMetadata(ctx context.Context, subscriptionID string, metadata map[string]string) error {
	params := &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	if _, err := w.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("billing: update subscription %s metadata: %w", subscriptionID, err)
	}
	return nil
}
