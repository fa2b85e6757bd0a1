package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DataFrontierLabs/STLPrime/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

// PlanOption is one subscription plan offered at checkout.
type PlanOption struct {
	Name        string
	PriceID     string
	AmountCents int64 // fallback when no price id is configured
	Interval    string
}

// Client talks to the Stripe HTTP API with form-encoded requests.
type Client struct {
	SecretKey     string
	WebhookSecret string
	APIBaseURL    string
	PublicDomain  string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a client from STRIPE_* environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		SecretKey:     strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		WebhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		APIBaseURL:    strings.TrimRight(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL), "/"),
		PublicDomain:  strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000"), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// PlanFromEnv resolves a plan selector to a configured plan option.
func PlanFromEnv(plan string) (*PlanOption, error) {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case "pro":
		return &PlanOption{
			Name:        "STL Prime Pro",
			PriceID:     strings.TrimSpace(env.GetEnv("STRIPE_PRO_PRICE_ID", "")),
			AmountCents: 2990,
			Interval:    "month",
		}, nil
	case "premium":
		return &PlanOption{
			Name:        "STL Prime Premium",
			PriceID:     strings.TrimSpace(env.GetEnv("STRIPE_PREMIUM_PRICE_ID", "")),
			AmountCents: 4990,
			Interval:    "month",
		}, nil
	default:
		return nil, fmt.Errorf("unknown plan %q", plan)
	}
}

// MissingConfig lists the required configuration values that are absent. The
// webhook handler refuses to process anything while this is non-empty.
func (c *Client) MissingConfig() []string {
	var missing []string
	if c.SecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.APIBaseURL == "" {
		missing = append(missing, "STRIPE_API_BASE_URL")
	}
	if c.PublicDomain == "" {
		missing = append(missing, "PUBLIC_DOMAIN")
	}
	return missing
}

// SubscriptionCheckoutItem describes the single line item of a subscription
// checkout.
type SubscriptionCheckoutItem struct {
	Plan *PlanOption
}

// PaymentCheckoutItem describes one purchasable model in a payment checkout.
type PaymentCheckoutItem struct {
	Name        string
	AmountCents int64
}

// CreateSubscriptionCheckout creates a hosted checkout session in subscription
// mode. Plan and user id travel as metadata and are read back by the webhook.
func (c *Client) CreateSubscriptionCheckout(ctx context.Context, userID uint, planKey string, plan *PlanOption) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", c.PublicDomain+"/dashboard?payment=success&plan="+url.QueryEscape(planKey))
	form.Set("cancel_url", c.PublicDomain+"/dashboard?payment=cancelled")
	form.Set("metadata[user_id]", strconv.FormatUint(uint64(userID), 10))
	form.Set("metadata[plan_type]", planKey)

	if plan.PriceID != "" {
		form.Set("line_items[0][price]", plan.PriceID)
		form.Set("line_items[0][quantity]", "1")
	} else {
		form.Set("line_items[0][quantity]", "1")
		form.Set("line_items[0][price_data][currency]", env.GetEnv("STRIPE_CURRENCY", "brl"))
		form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(plan.AmountCents, 10))
		form.Set("line_items[0][price_data][recurring][interval]", plan.Interval)
		form.Set("line_items[0][price_data][product_data][name]", plan.Name)
	}

	return c.createCheckoutSession(ctx, form)
}

// CreatePaymentCheckout creates a hosted checkout session in one-time payment
// mode for a cart of models. Item ids travel as CSV metadata.
func (c *Client) CreatePaymentCheckout(ctx context.Context, userID uint, itemIDs []uint, items []PaymentCheckoutItem) (*CheckoutSession, error) {
	if len(items) == 0 {
		return nil, errors.New("payment checkout requires at least one item")
	}

	ids := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		ids = append(ids, strconv.FormatUint(uint64(id), 10))
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", c.PublicDomain+"/my-models?payment=success")
	form.Set("cancel_url", c.PublicDomain+"/catalog/paid?payment=cancelled")
	form.Set("metadata[user_id]", strconv.FormatUint(uint64(userID), 10))
	form.Set("metadata[item_ids]", strings.Join(ids, ","))

	currency := env.GetEnv("STRIPE_CURRENCY", "brl")
	for i, item := range items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", "1")
		form.Set(prefix+"[price_data][currency]", currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.AmountCents, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
	}

	return c.createCheckoutSession(ctx, form)
}

func (c *Client) createCheckoutSession(ctx context.Context, form url.Values) (*CheckoutSession, error) {
	if c.SecretKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe checkout session create failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, err
	}
	if strings.TrimSpace(session.URL) == "" {
		return nil, errors.New("stripe checkout session response missing url")
	}
	return &session, nil
}

// RetrieveSubscription fetches the full subscription object by id.
func (c *Client) RetrieveSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return nil, errors.New("subscription id is required")
	}
	if c.SecretKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBaseURL+"/subscriptions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe subscription retrieve failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var sub Subscription
	if err := json.Unmarshal(body, &sub); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, errors.New("stripe subscription response missing id")
	}
	return &sub, nil
}
