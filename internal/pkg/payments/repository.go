package payments

import (
	"time"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the store operations used by the reconciliation service.
type Repository interface {
	InsertPurchases(rows []models.Purchase) error
	ActivateUserSubscription(userID uint, tier, subscriptionID, customerID string) error
	SetUserTierBySubscriptionID(subscriptionID, tier string) error
	GetUserTier(userID uint) (string, error)
	SetUserTier(userID uint, tier string) error
	InsertSubscriptionLog(sub *models.UserSubscription) error
	UpdateSubscriptionLifecycle(subscriptionID, status string, periodEnd *time.Time, cancelAtPeriodEnd bool) error
	ListSubscriptionsByUser(userID uint) ([]models.UserSubscription, error)
	CreatePaymentEventIfNotExists(event *models.PaymentEvent) (bool, *models.PaymentEvent, error)
	MarkEventProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payments repository backed by GORM. Writes run with
// the service's own DB handle, not a request-scoped user: the handler acts on
// behalf of the platform.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) InsertPurchases(rows []models.Purchase) error {
	if len(rows) == 0 {
		return nil
	}
	// Redelivered checkout events hit the unique (payment, model) index and
	// insert nothing instead of duplicating rows.
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "stripe_payment_id"},
			{Name: "model_id"},
		},
		DoNothing: true,
	}).Create(&rows).Error
}

func (r *gormRepository) ActivateUserSubscription(userID uint, tier, subscriptionID, customerID string) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"subscription_status": tier,
		"subscription_id":     subscriptionID,
		"stripe_customer_id":  customerID,
	}).Error
}

func (r *gormRepository) SetUserTierBySubscriptionID(subscriptionID, tier string) error {
	return r.db.Model(&models.User{}).Where("subscription_id = ?", subscriptionID).
		Update("subscription_status", tier).Error
}

func (r *gormRepository) GetUserTier(userID uint) (string, error) {
	var user models.User
	if err := r.db.Select("subscription_status").First(&user, userID).Error; err != nil {
		return "", err
	}
	return user.SubscriptionStatus, nil
}

func (r *gormRepository) SetUserTier(userID uint, tier string) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).
		Update("subscription_status", tier).Error
}

func (r *gormRepository) InsertSubscriptionLog(sub *models.UserSubscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "stripe_subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"plan_type",
			"status",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("stripe_subscription_id = ?", sub.StripeSubscriptionID).
		First(sub).Error
}

func (r *gormRepository) UpdateSubscriptionLifecycle(subscriptionID, status string, periodEnd *time.Time, cancelAtPeriodEnd bool) error {
	return r.db.Model(&models.UserSubscription{}).
		Where("stripe_subscription_id = ?", subscriptionID).
		Updates(map[string]interface{}{
			"status":               status,
			"current_period_end":   periodEnd,
			"cancel_at_period_end": cancelAtPeriodEnd,
		}).Error
}

func (r *gormRepository) ListSubscriptionsByUser(userID uint) ([]models.UserSubscription, error) {
	var subs []models.UserSubscription
	err := r.db.Where("user_id = ?", userID).Find(&subs).Error
	return subs, err
}

func (r *gormRepository) CreatePaymentEventIfNotExists(event *models.PaymentEvent) (bool, *models.PaymentEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkEventProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.PaymentEvent{}).Where("id = ?", id).Updates(updates).Error
}
