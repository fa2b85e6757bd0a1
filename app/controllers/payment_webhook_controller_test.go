package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/payments"
)

const testWebhookSecret = "whsec_test_secret"

// fakePaymentRepository records every write so tests can assert on the exact
// mutations a webhook delivery produced.
type fakePaymentRepository struct {
	purchases        []models.Purchase
	activations      []string
	subscriptionLogs []models.UserSubscription
	lifecycleSyncs   []string
	tierWrites       []string
	events           map[string]*models.PaymentEvent
	processed        map[uint]string

	insertPurchasesErr error
	nextEventID        uint
}

func newFakePaymentRepository() *fakePaymentRepository {
	return &fakePaymentRepository{
		events:    make(map[string]*models.PaymentEvent),
		processed: make(map[uint]string),
	}
}

func (r *fakePaymentRepository) InsertPurchases(rows []models.Purchase) error {
	if r.insertPurchasesErr != nil {
		return r.insertPurchasesErr
	}
	r.purchases = append(r.purchases, rows...)
	return nil
}

func (r *fakePaymentRepository) ActivateUserSubscription(userID uint, tier, subscriptionID, customerID string) error {
	r.activations = append(r.activations, fmt.Sprintf("%d:%s:%s:%s", userID, tier, subscriptionID, customerID))
	return nil
}

func (r *fakePaymentRepository) SetUserTierBySubscriptionID(subscriptionID, tier string) error {
	r.tierWrites = append(r.tierWrites, subscriptionID+":"+tier)
	return nil
}

func (r *fakePaymentRepository) GetUserTier(userID uint) (string, error) {
	return models.TIER_FREE, nil
}

func (r *fakePaymentRepository) SetUserTier(userID uint, tier string) error {
	r.tierWrites = append(r.tierWrites, fmt.Sprintf("user:%d:%s", userID, tier))
	return nil
}

func (r *fakePaymentRepository) InsertSubscriptionLog(sub *models.UserSubscription) error {
	r.subscriptionLogs = append(r.subscriptionLogs, *sub)
	return nil
}

func (r *fakePaymentRepository) UpdateSubscriptionLifecycle(subscriptionID, status string, periodEnd *time.Time, cancelAtPeriodEnd bool) error {
	r.lifecycleSyncs = append(r.lifecycleSyncs, fmt.Sprintf("%s:%s:%t", subscriptionID, status, cancelAtPeriodEnd))
	return nil
}

func (r *fakePaymentRepository) ListSubscriptionsByUser(userID uint) ([]models.UserSubscription, error) {
	return nil, nil
}

func (r *fakePaymentRepository) CreatePaymentEventIfNotExists(event *models.PaymentEvent) (bool, *models.PaymentEvent, error) {
	key := event.Provider + ":" + event.ProviderEventID
	if existing, ok := r.events[key]; ok {
		return false, existing, nil
	}
	r.nextEventID++
	event.ID = r.nextEventID
	r.events[key] = event
	return true, event, nil
}

func (r *fakePaymentRepository) MarkEventProcessed(id uint, processingError string) error {
	r.processed[id] = processingError
	return nil
}

func signWebhookPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newWebhookTestApp(repo payments.Repository, stripeBaseURL string) *fiber.App {
	client := &payments.Client{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		APIBaseURL:    stripeBaseURL,
		PublicDomain:  "http://localhost:4000",
		HTTPClient:    &http.Client{Timeout: 5 * time.Second},
	}
	pc := NewPaymentWebhookControllerWith(payments.NewService(repo), client)

	app := fiber.New()
	app.Post("/api/v1/webhooks/stripe", pc.HandleStripeWebhook)
	return app
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, signature string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func paymentCheckoutPayload(eventID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_1",
			"mode": "payment",
			"payment_intent": "pi_123",
			"amount_total": 1998,
			"currency": "usd",
			"metadata": {"user_id": "7", "item_ids": "3,9"}
		}}
	}`, eventID))
}

func TestHandleStripeWebhook_MisconfiguredServer(t *testing.T) {
	pc := NewPaymentWebhookControllerWith(nil, &payments.Client{})
	app := fiber.New()
	app.Post("/api/v1/webhooks/stripe", pc.HandleStripeWebhook)

	resp, body := postWebhook(t, app, []byte(`{}`), "t=1,v1=00")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "server_misconfigured", body["error"])
}

func TestHandleStripeWebhook_MissingConfig(t *testing.T) {
	pc := NewPaymentWebhookControllerWith(payments.NewService(newFakePaymentRepository()), &payments.Client{})
	app := fiber.New()
	app.Post("/api/v1/webhooks/stripe", pc.HandleStripeWebhook)

	resp, body := postWebhook(t, app, []byte(`{}`), "t=1,v1=00")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "server_misconfigured", body["error"])
}

func TestHandleStripeWebhook_InvalidSignature(t *testing.T) {
	repo := newFakePaymentRepository()
	app := newWebhookTestApp(repo, "http://stripe.invalid")

	payload := paymentCheckoutPayload("evt_sig")

	resp, body := postWebhook(t, app, payload, "t=123,v1=deadbeef")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_signature", body["error"])
	assert.Empty(t, repo.events)

	resp, _ = postWebhook(t, app, payload, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleStripeWebhook_MalformedPayload(t *testing.T) {
	repo := newFakePaymentRepository()
	app := newWebhookTestApp(repo, "http://stripe.invalid")

	payload := []byte(`{"id": "evt_x"`)
	resp, body := postWebhook(t, app, payload, signWebhookPayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_payload", body["error"])
}

func TestHandleStripeWebhook_PaymentCheckoutCreatesPurchases(t *testing.T) {
	repo := newFakePaymentRepository()
	app := newWebhookTestApp(repo, "http://stripe.invalid")

	payload := paymentCheckoutPayload("evt_pay_1")
	resp, body := postWebhook(t, app, payload, signWebhookPayload(payload, testWebhookSecret))

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["received"])

	require.Len(t, repo.purchases, 2)
	assert.Equal(t, uint(7), repo.purchases[0].UserID)
	assert.Equal(t, uint(3), repo.purchases[0].ModelID)
	assert.Equal(t, uint(9), repo.purchases[1].ModelID)
	assert.Equal(t, "pi_123", repo.purchases[0].StripePaymentID)
	assert.InDelta(t, 19.98, repo.purchases[0].AmountPaid, 0.001)

	stored := repo.events["stripe:evt_pay_1"]
	require.NotNil(t, stored)
	assert.True(t, stored.SignatureValid)
	assert.Equal(t, "", repo.processed[stored.ID])
}

func TestHandleStripeWebhook_DuplicateDeliveryIsAcked(t *testing.T) {
	repo := newFakePaymentRepository()
	app := newWebhookTestApp(repo, "http://stripe.invalid")

	payload := paymentCheckoutPayload("evt_dup")
	sig := signWebhookPayload(payload, testWebhookSecret)

	resp, _ := postWebhook(t, app, payload, sig)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, repo.purchases, 2)

	resp, body := postWebhook(t, app, payload, sig)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["duplicate"])
	assert.Len(t, repo.purchases, 2, "redelivery must not apply mutations again")
}

func TestHandleStripeWebhook_SubscriptionCheckout(t *testing.T) {
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()
	stripe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/subscriptions/sub_42") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"id": "sub_42", "status": "active", "current_period_end": %d, "cancel_at_period_end": false}`, periodEnd)
	}))
	defer stripe.Close()

	repo := newFakePaymentRepository()
	app := newWebhookTestApp(repo, stripe.URL)

	payload := []byte(`{
		"id": "evt_sub_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_2",
			"mode": "subscription",
			"subscription": "sub_42",
			"customer": "cus_9",
			"metadata": {"user_id": "11", "plan_type": "pro"}
		}}
	}`)

	resp, body := postWebhook(t, app, payload, signWebhookPayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["received"])

	require.Len(t, repo.activations, 1)
	assert.Equal(t, "11:pro:sub_42:cus_9", repo.activations[0])

	require.Len(t, repo.subscriptionLogs, 1)
	logRow := repo.subscriptionLogs[0]
	assert.Equal(t, uint(11), logRow.UserID)
	assert.Equal(t, "sub_42", logRow.StripeSubscriptionID)
	assert.Equal(t, models.SUB_STATUS_ACTIVE, logRow.Status)
	require.NotNil(t, logRow.CurrentPeriodEnd)
	assert.Equal(t, periodEnd, logRow.CurrentPeriodEnd.Unix())
}

func TestHandleStripeWebhook_SubscriptionCheckoutSurvivesRefetchFailure(t *testing.T) {
	stripe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer stripe.Close()

	repo := newFakePaymentRepository()
	app := newWebhookTestApp(repo, stripe.URL)

	payload := []byte(`{
		"id": "evt_sub_2",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_3",
			"mode": "subscription",
			"subscription": "sub_77",
			"customer": "cus_1",
			"metadata": {"user_id": "5", "plan_type": "premium"}
		}}
	}`)

	resp, _ := postWebhook(t, app, payload, signWebhookPayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// The tier activation must land even without the re-fetched period dates.
	require.Len(t, repo.activations, 1)
	assert.Equal(t, "5:premium:sub_77:cus_1", repo.activations[0])
	assert.Empty(t, repo.subscriptionLogs)
}

func TestHandleStripeWebhook_SubscriptionDeletedDowngrades(t *testing.T) {
	repo := newFakePaymentRepository()
	app := newWebhookTestApp(repo, "http://stripe.invalid")

	payload := []byte(`{
		"id": "evt_del_1",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_42"}}
	}`)

	resp, _ := postWebhook(t, app, payload, signWebhookPayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Len(t, repo.lifecycleSyncs, 1)
	assert.Equal(t, "sub_42:canceled:false", repo.lifecycleSyncs[0])
	require.Len(t, repo.tierWrites, 1)
	assert.Equal(t, "sub_42:"+models.TIER_FREE, repo.tierWrites[0])
}

func TestHandleStripeWebhook_SubscriptionUpdatedActiveKeepsTier(t *testing.T) {
	repo := newFakePaymentRepository()
	app := newWebhookTestApp(repo, "http://stripe.invalid")

	payload := []byte(`{
		"id": "evt_upd_1",
		"type": "customer.subscription.updated",
		"data": {"object": {"id": "sub_42", "status": "active", "cancel_at_period_end": true}}
	}`)

	resp, _ := postWebhook(t, app, payload, signWebhookPayload(payload, testWebhookSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Len(t, repo.lifecycleSyncs, 1)
	assert.Equal(t, "sub_42:active:true", repo.lifecycleSyncs[0])
	assert.Empty(t, repo.tierWrites, "an active subscription must not touch the stored tier")
}

func TestHandleStripeWebhook_StoreFailureStillAcks(t *testing.T) {
	repo := newFakePaymentRepository()
	repo.insertPurchasesErr = fmt.Errorf("users table is on fire")
	app := newWebhookTestApp(repo, "http://stripe.invalid")

	payload := paymentCheckoutPayload("evt_fail_1")
	resp, body := postWebhook(t, app, payload, signWebhookPayload(payload, testWebhookSecret))

	assert.Equal(t, fiber.StatusOK, resp.StatusCode, "a store failure must not trigger provider redelivery")
	assert.Equal(t, true, body["received"])

	stored := repo.events["stripe:evt_fail_1"]
	require.NotNil(t, stored)
	assert.Contains(t, repo.processed[stored.ID], "users table is on fire")
}

func TestHandleStripeWebhook_IgnoredEventType(t *testing.T) {
	repo := newFakePaymentRepository()
	app := newWebhookTestApp(repo, "http://stripe.invalid")

	payload := []byte(`{"id": "evt_ping", "type": "invoice.paid", "data": {"object": {"id": "in_1"}}}`)
	resp, body := postWebhook(t, app, payload, signWebhookPayload(payload, testWebhookSecret))

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["received"])
	assert.Empty(t, repo.purchases)
	assert.Empty(t, repo.lifecycleSyncs)

	stored := repo.events["stripe:evt_ping"]
	require.NotNil(t, stored)
	assert.Equal(t, "", repo.processed[stored.ID])
}
