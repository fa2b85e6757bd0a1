package payments

import "time"

const ProviderStripe = "stripe"

// CheckoutSession is the subset of a Stripe Checkout Session this service
// reads, both from API responses and from webhook payloads.
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Mode          string            `json:"mode"`
	PaymentIntent string            `json:"payment_intent"`
	Subscription  string            `json:"subscription"`
	Customer      string            `json:"customer"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// Subscription is the subset of a Stripe Subscription object this service reads.
type Subscription struct {
	ID                 string            `json:"id"`
	Status             string            `json:"status"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	Metadata           map[string]string `json:"metadata"`
}

// PeriodStartTime converts the processor's epoch seconds to a timestamp,
// or nil when the field is absent.
func (s *Subscription) PeriodStartTime() *time.Time {
	return epochToTime(s.CurrentPeriodStart)
}

// PeriodEndTime converts the processor's epoch seconds to a timestamp,
// or nil when the field is absent.
func (s *Subscription) PeriodEndTime() *time.Time {
	return epochToTime(s.CurrentPeriodEnd)
}

func epochToTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// EventInput is the normalized input for webhook event persistence.
type EventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
