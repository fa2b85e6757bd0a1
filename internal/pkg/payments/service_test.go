package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DataFrontierLabs/STLPrime/app/models"
)

// fakeRepository is an in-memory Repository for service tests.
type fakeRepository struct {
	purchases []models.Purchase
	users     map[uint]*models.User
	subs      map[string]*models.UserSubscription
	events    map[string]*models.PaymentEvent
	nextID    uint

	failInsertPurchases bool
	failLifecycle       bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:  make(map[uint]*models.User),
		subs:   make(map[string]*models.UserSubscription),
		events: make(map[string]*models.PaymentEvent),
	}
}

func (f *fakeRepository) InsertPurchases(rows []models.Purchase) error {
	if f.failInsertPurchases {
		return errors.New("store unavailable")
	}
	for _, row := range rows {
		dup := false
		for _, existing := range f.purchases {
			if existing.StripePaymentID == row.StripePaymentID && existing.ModelID == row.ModelID {
				dup = true
				break
			}
		}
		if !dup {
			f.purchases = append(f.purchases, row)
		}
	}
	return nil
}

func (f *fakeRepository) ActivateUserSubscription(userID uint, tier, subscriptionID, customerID string) error {
	user, ok := f.users[userID]
	if !ok {
		user = &models.User{}
		user.ID = userID
		f.users[userID] = user
	}
	user.SubscriptionStatus = tier
	user.SubscriptionID = subscriptionID
	user.StripeCustomerID = customerID
	return nil
}

func (f *fakeRepository) SetUserTierBySubscriptionID(subscriptionID, tier string) error {
	for _, user := range f.users {
		if user.SubscriptionID == subscriptionID {
			user.SubscriptionStatus = tier
		}
	}
	return nil
}

func (f *fakeRepository) GetUserTier(userID uint) (string, error) {
	user, ok := f.users[userID]
	if !ok {
		return "", errors.New("user not found")
	}
	return user.SubscriptionStatus, nil
}

func (f *fakeRepository) SetUserTier(userID uint, tier string) error {
	user, ok := f.users[userID]
	if !ok {
		return errors.New("user not found")
	}
	user.SubscriptionStatus = tier
	return nil
}

func (f *fakeRepository) InsertSubscriptionLog(sub *models.UserSubscription) error {
	if existing, ok := f.subs[sub.StripeSubscriptionID]; ok {
		sub.ID = existing.ID
	} else {
		f.nextID++
		sub.ID = f.nextID
	}
	clone := *sub
	f.subs[sub.StripeSubscriptionID] = &clone
	return nil
}

func (f *fakeRepository) UpdateSubscriptionLifecycle(subscriptionID, status string, periodEnd *time.Time, cancelAtPeriodEnd bool) error {
	if f.failLifecycle {
		return errors.New("store unavailable")
	}
	sub, ok := f.subs[subscriptionID]
	if !ok {
		return nil
	}
	sub.Status = status
	sub.CurrentPeriodEnd = periodEnd
	sub.CancelAtPeriodEnd = cancelAtPeriodEnd
	return nil
}

func (f *fakeRepository) ListSubscriptionsByUser(userID uint) ([]models.UserSubscription, error) {
	var out []models.UserSubscription
	for _, sub := range f.subs {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (f *fakeRepository) CreatePaymentEventIfNotExists(event *models.PaymentEvent) (bool, *models.PaymentEvent, error) {
	key := event.Provider + "|" + event.ProviderEventID
	if existing, ok := f.events[key]; ok {
		return false, existing, nil
	}
	f.nextID++
	event.ID = f.nextID
	clone := *event
	f.events[key] = &clone
	return true, &clone, nil
}

func (f *fakeRepository) MarkEventProcessed(id uint, processingError string) error {
	for _, event := range f.events {
		if event.ID == id {
			now := time.Now()
			event.ProcessedAt = &now
			event.ProcessingError = processingError
			return nil
		}
	}
	return errors.New("event not found")
}

func TestServiceApply_PaymentCheckout(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	muts, err := PlanPaymentCheckout(&CheckoutSession{
		ID:            "cs_1",
		Mode:          "payment",
		PaymentIntent: "pi_1",
		AmountTotal:   2990,
		Metadata:      map[string]string{"user_id": "7", "item_ids": "1,2"},
	})
	if err != nil {
		t.Fatalf("PlanPaymentCheckout: %v", err)
	}
	if err := svc.Apply(context.Background(), muts); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(repo.purchases) != 2 {
		t.Fatalf("expected 2 purchases, got %d", len(repo.purchases))
	}

	// Redelivery of the same event inserts nothing new.
	if err := svc.Apply(context.Background(), muts); err != nil {
		t.Fatalf("Apply redelivery: %v", err)
	}
	if len(repo.purchases) != 2 {
		t.Fatalf("redelivery duplicated purchases: %d", len(repo.purchases))
	}
}

func TestServiceApply_SubscriptionCheckout(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	end := time.Now().Add(30 * 24 * time.Hour)
	muts := []Mutation{
		ActivateSubscription{UserID: 7, PlanType: "pro", SubscriptionID: "sub_1", CustomerID: "cus_1"},
		InsertSubscriptionLog{Row: models.UserSubscription{
			UserID:               7,
			StripeSubscriptionID: "sub_1",
			PlanType:             "pro",
			Status:               models.SUB_STATUS_ACTIVE,
			CurrentPeriodEnd:     &end,
		}},
	}
	if err := svc.Apply(context.Background(), muts); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	user := repo.users[7]
	if user == nil || user.SubscriptionStatus != "pro" || user.SubscriptionID != "sub_1" || user.StripeCustomerID != "cus_1" {
		t.Fatalf("unexpected user state %+v", user)
	}
	if repo.subs["sub_1"] == nil || repo.subs["sub_1"].Status != models.SUB_STATUS_ACTIVE {
		t.Fatalf("subscription log row missing or wrong: %+v", repo.subs["sub_1"])
	}
}

func TestServiceApply_LifecycleDowngrade(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	if err := repo.ActivateUserSubscription(7, "premium", "sub_1", "cus_1"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := repo.InsertSubscriptionLog(&models.UserSubscription{
		UserID:               7,
		StripeSubscriptionID: "sub_1",
		PlanType:             "premium",
		Status:               models.SUB_STATUS_ACTIVE,
	}); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	// An update that keeps the subscription active leaves the tier alone.
	muts := PlanSubscriptionLifecycle(&Subscription{ID: "sub_1", Status: models.SUB_STATUS_ACTIVE, CancelAtPeriodEnd: true})
	if err := svc.Apply(context.Background(), muts); err != nil {
		t.Fatalf("Apply active update: %v", err)
	}
	if repo.users[7].SubscriptionStatus != "premium" {
		t.Fatalf("active update must not touch tier, got %q", repo.users[7].SubscriptionStatus)
	}
	if !repo.subs["sub_1"].CancelAtPeriodEnd {
		t.Fatalf("cancel flag not synced")
	}

	// Deletion downgrades the user and records the terminal status.
	muts = PlanSubscriptionLifecycle(&Subscription{ID: "sub_1", Status: models.SUB_STATUS_CANCELED})
	if err := svc.Apply(context.Background(), muts); err != nil {
		t.Fatalf("Apply deletion: %v", err)
	}
	if repo.users[7].SubscriptionStatus != "free" {
		t.Fatalf("expected downgrade to free, got %q", repo.users[7].SubscriptionStatus)
	}
	if repo.subs["sub_1"].Status != models.SUB_STATUS_CANCELED {
		t.Fatalf("lifecycle status not synced: %q", repo.subs["sub_1"].Status)
	}
}

func TestServiceApply_ContinuesPastFailures(t *testing.T) {
	repo := newFakeRepository()
	repo.failInsertPurchases = true
	svc := NewService(repo)

	muts := []Mutation{
		InsertPurchases{Rows: []models.Purchase{{UserID: 7, ModelID: 1, StripePaymentID: "pi_1"}}},
		ActivateSubscription{UserID: 7, PlanType: "pro", SubscriptionID: "sub_1"},
	}
	err := svc.Apply(context.Background(), muts)
	if err == nil {
		t.Fatalf("expected the failed insert to surface")
	}
	if repo.users[7] == nil || repo.users[7].SubscriptionStatus != "pro" {
		t.Fatalf("later mutations must still run after a failure")
	}
}

func TestServiceRecordEvent_Dedup(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	in := EventInput{
		Provider:        "Stripe",
		ProviderEventID: "evt_1",
		EventType:       "checkout.session.completed",
		PayloadJSON:     `{"id":"evt_1"}`,
		SignatureValid:  true,
	}

	created, stored, err := svc.RecordEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if !created || stored == nil || stored.ID == 0 {
		t.Fatalf("first delivery should create an event row: created=%v stored=%+v", created, stored)
	}
	if stored.Provider != "stripe" {
		t.Fatalf("provider should be normalized, got %q", stored.Provider)
	}

	created, again, err := svc.RecordEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("RecordEvent redelivery: %v", err)
	}
	if created {
		t.Fatalf("redelivery must not create a second row")
	}
	if again.ID != stored.ID {
		t.Fatalf("redelivery returned a different row: %d vs %d", again.ID, stored.ID)
	}
}

func TestServiceRecordEvent_FallbackID(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	created, stored, err := svc.RecordEvent(context.Background(), EventInput{
		Provider:    "stripe",
		PayloadJSON: `{"type":"x"}`,
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if !created {
		t.Fatalf("expected creation")
	}
	if len(stored.ProviderEventID) == 0 || stored.ProviderEventID[:5] != "hash:" {
		t.Fatalf("expected payload-hash fallback id, got %q", stored.ProviderEventID)
	}
}

func TestServiceMarkEventProcessed(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	_, stored, err := svc.RecordEvent(context.Background(), EventInput{Provider: "stripe", ProviderEventID: "evt_1"})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if err := svc.MarkEventProcessed(context.Background(), stored.ID, errors.New("store unavailable")); err != nil {
		t.Fatalf("MarkEventProcessed: %v", err)
	}

	event := repo.events["stripe|evt_1"]
	if event.ProcessedAt == nil {
		t.Fatalf("processed timestamp not set")
	}
	if event.ProcessingError != "store unavailable" {
		t.Fatalf("processing error = %q", event.ProcessingError)
	}
}

func TestServiceReconcileUserTier(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	if err := repo.ActivateUserSubscription(7, "premium", "sub_2", "cus_1"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	for _, sub := range []models.UserSubscription{
		{UserID: 7, StripeSubscriptionID: "sub_1", PlanType: "premium", Status: models.SUB_STATUS_CANCELED},
		{UserID: 7, StripeSubscriptionID: "sub_2", PlanType: "pro", Status: models.SUB_STATUS_ACTIVE},
	} {
		row := sub
		if err := repo.InsertSubscriptionLog(&row); err != nil {
			t.Fatalf("seed subscription: %v", err)
		}
	}

	tier, err := svc.ReconcileUserTier(context.Background(), 7)
	if err != nil {
		t.Fatalf("ReconcileUserTier: %v", err)
	}
	if tier != "pro" {
		t.Fatalf("expected pro (canceled premium must not count), got %q", tier)
	}
	if repo.users[7].SubscriptionStatus != "pro" {
		t.Fatalf("drifted tier not written back: %q", repo.users[7].SubscriptionStatus)
	}
}
