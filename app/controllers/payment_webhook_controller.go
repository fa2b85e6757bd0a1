package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/DataFrontierLabs/STLPrime/internal/pkg/database"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/payments"
)

// PaymentWebhookController reconciles provider webhook deliveries into the
// store. Its contract: after a valid signature the provider always gets a 200
// so it stops redelivering; store failures are logged on the event row
// instead of surfacing as HTTP errors.
type PaymentWebhookController struct {
	service *payments.Service
	client  *payments.Client
}

// NewPaymentWebhookController wires the controller from the live database and
// environment configuration.
func NewPaymentWebhookController() *PaymentWebhookController {
	var svc *payments.Service
	if db := database.GetDB(); db != nil {
		svc = payments.NewServiceFromDB(db)
	}
	return &PaymentWebhookController{
		service: svc,
		client:  payments.NewClientFromEnv(),
	}
}

// NewPaymentWebhookControllerWith builds a controller with injected
// dependencies.
func NewPaymentWebhookControllerWith(service *payments.Service, client *payments.Client) *PaymentWebhookController {
	return &PaymentWebhookController{service: service, client: client}
}

// HandleStripeWebhook is the reconciliation entry point for Stripe events.
func (pc *PaymentWebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	if pc.service == nil {
		log.Error("[Webhook] Rejecting delivery: database unavailable")
		return jsonError(c, fiber.StatusInternalServerError, "server_misconfigured", "Webhook processing unavailable")
	}
	if missing := pc.client.MissingConfig(); len(missing) > 0 {
		log.Errorf("[Webhook] Rejecting delivery, missing configuration: %v", missing)
		return jsonError(c, fiber.StatusInternalServerError, "server_misconfigured", "Webhook processing unavailable")
	}

	body := c.Body()
	signature := c.Get("Stripe-Signature")

	if !payments.VerifyStripeWebhookSignature(body, signature, pc.client.WebhookSecret) {
		log.Warnf("[Webhook] Invalid signature from %s", GetClientIP(c))
		return jsonError(c, fiber.StatusBadRequest, "invalid_signature", "Signature verification failed")
	}

	event, err := payments.ParseWebhookEvent(body)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Malformed event payload")
	}

	ctx := c.Context()

	created, stored, err := pc.service.RecordEvent(ctx, payments.EventInput{
		Provider:        payments.ProviderStripe,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		PayloadJSON:     string(body),
		SignatureValid:  true,
	})
	if err != nil {
		// The event log is an audit trail, not a gate: failing to write it
		// must not trigger endless redelivery of an otherwise valid event.
		log.Errorf("[Webhook] Failed to record event %s: %v", event.ID, err)
	}
	if !created && stored != nil {
		log.Infof("[Webhook] Duplicate delivery of event %s acknowledged", event.ID)
		return c.JSON(fiber.Map{"received": true, "duplicate": true})
	}

	procErr := pc.processEvent(ctx, event)
	if procErr != nil {
		log.Errorf("[Webhook] Event %s processed with errors: %v", event.ID, procErr)
	}

	if stored != nil {
		if err := pc.service.MarkEventProcessed(ctx, stored.ID, procErr); err != nil {
			log.Errorf("[Webhook] Failed to mark event %s processed: %v", event.ID, err)
		}
	}

	return c.JSON(fiber.Map{"received": true})
}

// processEvent dispatches one verified, deduplicated event. Returned errors
// are recorded on the event row; they never affect the HTTP response.
func (pc *PaymentWebhookController) processEvent(ctx context.Context, event *payments.WebhookEvent) error {
	switch payments.Classify(event) {
	case payments.EventCheckoutPayment:
		session, err := event.CheckoutSession()
		if err != nil {
			return err
		}
		muts, err := payments.PlanPaymentCheckout(session)
		if err != nil {
			return err
		}
		return pc.service.Apply(ctx, muts)

	case payments.EventCheckoutSubscription:
		session, err := event.CheckoutSession()
		if err != nil {
			return err
		}
		// Checkout payloads carry only the subscription id; period dates and
		// status come from a re-fetch. A failed re-fetch still activates the
		// tier, the log row is recovered later by resync.
		var sub *payments.Subscription
		if session.Subscription != "" {
			fetched, err := pc.client.RetrieveSubscription(ctx, session.Subscription)
			if err != nil {
				log.Errorf("[Webhook] Failed to re-fetch subscription %s: %v", session.Subscription, err)
			} else {
				sub = fetched
			}
		}
		muts, err := payments.PlanSubscriptionCheckout(session, sub)
		if err != nil {
			return err
		}
		return pc.service.Apply(ctx, muts)

	case payments.EventSubscriptionUpdated, payments.EventSubscriptionDeleted:
		sub, err := event.Subscription()
		if err != nil {
			return err
		}
		if payments.Classify(event) == payments.EventSubscriptionDeleted && sub.Status == "" {
			// Deleted events from some API versions omit the status field.
			sub.Status = "canceled"
		}
		return pc.service.Apply(ctx, payments.PlanSubscriptionLifecycle(sub))

	case payments.EventIgnored:
		return nil
	}

	return errors.New("unreachable event kind")
}
