package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// Service applies planned payment mutations to the store and keeps the
// webhook event log. It is stateless; every call stands alone.
type Service struct {
	repo Repository
}

// NewService creates a payments service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a payments service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Apply executes each mutation in order. Store failures are logged and
// collected but never abort the remaining mutations: the webhook contract
// acknowledges delivery regardless of downstream write outcomes, so partial
// failure must not poison the rest of the event.
func (s *Service) Apply(ctx context.Context, muts []Mutation) error {
	_ = ctx
	var errs []error
	for _, mut := range muts {
		if err := s.applyOne(mut); err != nil {
			log.Errorf("[Payments] mutation %T failed: %v", mut, err)
			errs = append(errs, fmt.Errorf("%T: %w", mut, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) applyOne(mut Mutation) error {
	switch m := mut.(type) {
	case InsertPurchases:
		return s.repo.InsertPurchases(m.Rows)
	case ActivateSubscription:
		return s.repo.ActivateUserSubscription(m.UserID, m.PlanType, m.SubscriptionID, m.CustomerID)
	case InsertSubscriptionLog:
		row := m.Row
		return s.repo.InsertSubscriptionLog(&row)
	case SyncSubscriptionLifecycle:
		var errs []error
		if m.DowngradeTier {
			if err := s.repo.SetUserTierBySubscriptionID(m.SubscriptionID, string(entitlements.PlanFree)); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.repo.UpdateSubscriptionLifecycle(m.SubscriptionID, m.Status, m.CurrentPeriodEnd, m.CancelAtPeriodEnd); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	default:
		return fmt.Errorf("unhandled mutation type %T", mut)
	}
}

// RecordEvent persists a webhook delivery idempotently. The returned bool is
// false for a redelivered event id, in which case processing must stop.
func (s *Service) RecordEvent(ctx context.Context, in EventInput) (bool, *models.PaymentEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.PaymentEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreatePaymentEventIfNotExists(event)
}

// MarkEventProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkEventProcessed(ctx context.Context, eventID uint, processingErr error) error {
	_ = ctx
	if eventID == 0 {
		return errors.New("event id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkEventProcessed(eventID, errMsg)
}

// ReconcileUserTier recomputes the best entitling tier from the subscription
// log and writes it to the user row when it drifted. Returns the effective
// tier.
func (s *Service) ReconcileUserTier(ctx context.Context, userID uint) (string, error) {
	_ = ctx
	if userID == 0 {
		return "", errors.New("user id is required")
	}

	subs, err := s.repo.ListSubscriptionsByUser(userID)
	if err != nil {
		return "", err
	}

	best := string(entitlements.PlanFree)
	for _, sub := range subs {
		if !isEntitlingStatus(sub.Status) {
			continue
		}
		candidate := normalizeTier(sub.PlanType)
		if tierRank(candidate) > tierRank(best) {
			best = candidate
		}
	}

	current, err := s.repo.GetUserTier(userID)
	if err != nil {
		return "", err
	}
	if normalizeTier(current) == best {
		return best, nil
	}
	if err := s.repo.SetUserTier(userID, best); err != nil {
		return "", err
	}
	return best, nil
}
