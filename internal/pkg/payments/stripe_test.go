package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(server *httptest.Server) *Client {
	return &Client{
		SecretKey:     "sk_test",
		WebhookSecret: "whsec_test",
		APIBaseURL:    server.URL,
		PublicDomain:  "https://stlprime.test",
		HTTPClient:    &http.Client{Timeout: 5 * time.Second},
	}
}

func TestMissingConfig(t *testing.T) {
	c := &Client{}
	missing := c.MissingConfig()
	if len(missing) != 4 {
		t.Fatalf("expected 4 missing values, got %v", missing)
	}

	c = &Client{SecretKey: "sk", WebhookSecret: "whsec", APIBaseURL: "https://api", PublicDomain: "https://app"}
	if missing := c.MissingConfig(); len(missing) != 0 {
		t.Fatalf("expected complete config, got missing %v", missing)
	}
}

func TestPlanFromEnv(t *testing.T) {
	pro, err := PlanFromEnv("pro")
	if err != nil {
		t.Fatalf("PlanFromEnv(pro): %v", err)
	}
	if pro.AmountCents != 2990 || pro.Interval != "month" {
		t.Fatalf("unexpected pro plan %+v", pro)
	}

	premium, err := PlanFromEnv(" Premium ")
	if err != nil {
		t.Fatalf("PlanFromEnv(premium): %v", err)
	}
	if premium.AmountCents != 4990 {
		t.Fatalf("unexpected premium plan %+v", premium)
	}

	if _, err := PlanFromEnv("platinum"); err == nil {
		t.Fatalf("expected error for unknown plan")
	}
}

func TestCreateSubscriptionCheckout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("mode") != "subscription" {
			t.Errorf("mode = %q", r.PostForm.Get("mode"))
		}
		if r.PostForm.Get("metadata[user_id]") != "42" {
			t.Errorf("user_id metadata = %q", r.PostForm.Get("metadata[user_id]"))
		}
		if r.PostForm.Get("metadata[plan_type]") != "pro" {
			t.Errorf("plan_type metadata = %q", r.PostForm.Get("metadata[plan_type]"))
		}
		if r.PostForm.Get("line_items[0][price]") != "price_123" {
			t.Errorf("price = %q", r.PostForm.Get("line_items[0][price]"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_1","url":"https://checkout.stripe.test/cs_1","mode":"subscription"}`))
	}))
	defer server.Close()

	session, err := testClient(server).CreateSubscriptionCheckout(context.Background(), 42, "pro", &PlanOption{
		Name:    "STL Prime Pro",
		PriceID: "price_123",
	})
	if err != nil {
		t.Fatalf("CreateSubscriptionCheckout: %v", err)
	}
	if session.ID != "cs_1" || session.URL == "" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestCreatePaymentCheckout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("mode") != "payment" {
			t.Errorf("mode = %q", r.PostForm.Get("mode"))
		}
		if r.PostForm.Get("metadata[item_ids]") != "7,9" {
			t.Errorf("item_ids metadata = %q", r.PostForm.Get("metadata[item_ids]"))
		}
		if r.PostForm.Get("line_items[1][price_data][unit_amount]") != "1990" {
			t.Errorf("second item amount = %q", r.PostForm.Get("line_items[1][price_data][unit_amount]"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_2","url":"https://checkout.stripe.test/cs_2","mode":"payment"}`))
	}))
	defer server.Close()

	session, err := testClient(server).CreatePaymentCheckout(context.Background(), 42, []uint{7, 9}, []PaymentCheckoutItem{
		{Name: "Articulated Dragon", AmountCents: 990},
		{Name: "Benchy Stand", AmountCents: 1990},
	})
	if err != nil {
		t.Fatalf("CreatePaymentCheckout: %v", err)
	}
	if session.ID != "cs_2" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestCreatePaymentCheckout_NoItems(t *testing.T) {
	c := &Client{SecretKey: "sk_test", HTTPClient: http.DefaultClient}
	if _, err := c.CreatePaymentCheckout(context.Background(), 42, nil, nil); err == nil {
		t.Fatalf("expected error for empty cart")
	}
}

func TestRetrieveSubscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subscriptions/sub_1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"sub_1","status":"active","current_period_end":1767225600,"cancel_at_period_end":false}`))
	}))
	defer server.Close()

	sub, err := testClient(server).RetrieveSubscription(context.Background(), "sub_1")
	if err != nil {
		t.Fatalf("RetrieveSubscription: %v", err)
	}
	if sub.Status != "active" {
		t.Fatalf("status = %q", sub.Status)
	}
	if end := sub.PeriodEndTime(); end == nil || end.Unix() != 1767225600 {
		t.Fatalf("period end = %v", end)
	}
}

func TestRetrieveSubscription_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"No such subscription"}}`, http.StatusNotFound)
	}))
	defer server.Close()

	c := testClient(server)
	if _, err := c.RetrieveSubscription(context.Background(), "sub_missing"); err == nil {
		t.Fatalf("expected error for 404 response")
	}
	if _, err := c.RetrieveSubscription(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
