package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DataFrontierLabs/STLPrime/app/models"
)

// EventKind is the closed set of webhook event shapes the reconciliation
// handler acts on. Everything else maps to EventIgnored.
type EventKind string

const (
	EventCheckoutPayment      EventKind = "checkout_payment"
	EventCheckoutSubscription EventKind = "checkout_subscription"
	EventSubscriptionUpdated  EventKind = "subscription_updated"
	EventSubscriptionDeleted  EventKind = "subscription_deleted"
	EventIgnored              EventKind = "ignored"
)

// WebhookEvent is the decoded envelope of a verified webhook payload.
type WebhookEvent struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Object json.RawMessage `json:"-"`
}

type webhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseWebhookEvent decodes a verified payload into its envelope.
func ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var raw webhookEnvelope
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.Type) == "" {
		return nil, errors.New("webhook payload missing event type")
	}
	return &WebhookEvent{ID: strings.TrimSpace(raw.ID), Type: raw.Type, Object: raw.Data.Object}, nil
}

// CheckoutSession decodes the embedded object as a checkout session.
func (e *WebhookEvent) CheckoutSession() (*CheckoutSession, error) {
	var session CheckoutSession
	if err := json.Unmarshal(e.Object, &session); err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, errors.New("checkout session payload missing id")
	}
	return &session, nil
}

// Subscription decodes the embedded object as a subscription.
func (e *WebhookEvent) Subscription() (*Subscription, error) {
	var sub Subscription
	if err := json.Unmarshal(e.Object, &sub); err != nil {
		return nil, err
	}
	if sub.ID == "" {
		return nil, errors.New("subscription payload missing id")
	}
	return &sub, nil
}

// Classify maps the provider's event type (plus checkout mode) to one of the
// handled kinds.
func Classify(ev *WebhookEvent) EventKind {
	switch ev.Type {
	case "checkout.session.completed":
		session, err := ev.CheckoutSession()
		if err != nil {
			return EventIgnored
		}
		switch session.Mode {
		case "payment":
			return EventCheckoutPayment
		case "subscription":
			return EventCheckoutSubscription
		}
		return EventIgnored
	case "customer.subscription.updated":
		return EventSubscriptionUpdated
	case "customer.subscription.deleted":
		return EventSubscriptionDeleted
	default:
		return EventIgnored
	}
}

// Mutation is one intended store write produced by planning an event. Planners
// are pure so dispatch can be tested without a live store; the Service applies
// mutations through its Repository.
type Mutation interface {
	mutation()
}

// InsertPurchases bulk-inserts purchase rows for a one-time payment.
type InsertPurchases struct {
	Rows []models.Purchase
}

// ActivateSubscription updates the buyer's user row after a subscription
// checkout: tier, subscription id and processor customer reference.
type ActivateSubscription struct {
	UserID         uint
	PlanType       string
	SubscriptionID string
	CustomerID     string
}

// InsertSubscriptionLog creates the first lifecycle log row for a new
// subscription.
type InsertSubscriptionLog struct {
	Row models.UserSubscription
}

// SyncSubscriptionLifecycle applies a subscription updated/deleted event,
// matched by processor subscription id rather than user id. DowngradeTier is
// set when the new status no longer entitles the user.
type SyncSubscriptionLifecycle struct {
	SubscriptionID    string
	Status            string
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	DowngradeTier     bool
}

func (InsertPurchases) mutation()           {}
func (ActivateSubscription) mutation()      {}
func (InsertSubscriptionLog) mutation()     {}
func (SyncSubscriptionLifecycle) mutation() {}

// PlanPaymentCheckout builds purchase rows from a completed payment-mode
// checkout. The item list comes from CSV metadata; each row carries the full
// session total converted from minor units, matching the historical writer's
// semantics (the amount is not divided across items).
func PlanPaymentCheckout(session *CheckoutSession) ([]Mutation, error) {
	userID, err := metadataUserID(session.Metadata)
	if err != nil {
		return nil, err
	}

	amount := float64(session.AmountTotal) / 100

	var rows []models.Purchase
	for _, raw := range strings.Split(session.Metadata["item_ids"], ",") {
		field := strings.TrimSpace(raw)
		if field == "" {
			continue
		}
		modelID, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid item id %q in checkout metadata: %w", field, err)
		}
		rows = append(rows, models.Purchase{
			UserID:          userID,
			ModelID:         uint(modelID),
			StripePaymentID: session.PaymentIntent,
			AmountPaid:      amount,
		})
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return []Mutation{InsertPurchases{Rows: rows}}, nil
}

// PlanSubscriptionCheckout builds the user update and the initial log row for
// a completed subscription-mode checkout. sub is the full subscription
// re-fetched from the processor; it may be nil when that fetch failed, in
// which case only the user update is planned.
func PlanSubscriptionCheckout(session *CheckoutSession, sub *Subscription) ([]Mutation, error) {
	userID, err := metadataUserID(session.Metadata)
	if err != nil {
		return nil, err
	}

	planType := normalizeTier(session.Metadata["plan_type"])
	muts := []Mutation{ActivateSubscription{
		UserID:         userID,
		PlanType:       planType,
		SubscriptionID: session.Subscription,
		CustomerID:     session.Customer,
	}}

	if sub != nil {
		muts = append(muts, InsertSubscriptionLog{Row: models.UserSubscription{
			UserID:               userID,
			StripeSubscriptionID: session.Subscription,
			PlanType:             planType,
			Status:               sub.Status,
			CurrentPeriodStart:   sub.PeriodStartTime(),
			CurrentPeriodEnd:     sub.PeriodEndTime(),
			CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		}})
	}
	return muts, nil
}

// PlanSubscriptionLifecycle maps an updated/deleted subscription event to a
// single lifecycle sync. The user's tier is only touched when the new status
// stops entitling; an active subscription leaves the stored tier as-is.
func PlanSubscriptionLifecycle(sub *Subscription) []Mutation {
	return []Mutation{SyncSubscriptionLifecycle{
		SubscriptionID:    sub.ID,
		Status:            sub.Status,
		CurrentPeriodEnd:  sub.PeriodEndTime(),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		DowngradeTier:     sub.Status != models.SUB_STATUS_ACTIVE,
	}}
}

func metadataUserID(metadata map[string]string) (uint, error) {
	raw := strings.TrimSpace(metadata["user_id"])
	if raw == "" {
		return 0, errors.New("checkout metadata missing user_id")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid user_id %q in checkout metadata: %w", raw, err)
	}
	return uint(id), nil
}
