package models

import "time"

const (
	SUB_STATUS_ACTIVE     = "active"
	SUB_STATUS_TRIALING   = "trialing"
	SUB_STATUS_PAST_DUE   = "past_due"
	SUB_STATUS_CANCELED   = "canceled"
	SUB_STATUS_INCOMPLETE = "incomplete"
	SUB_STATUS_UNPAID     = "unpaid"
)

// UserSubscription is the durable log of a subscription's lifecycle, keyed by
// the processor's subscription id. The denormalized SubscriptionStatus on the
// user row is derived from this; the log row is the record of truth.
type UserSubscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               uint       `gorm:"not null;index" json:"user_id"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"stripe_subscription_id"`
	PlanType             string     `gorm:"type:varchar(50);not null;default:'free'" json:"plan_type"`
	Status               string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	CurrentPeriodStart   *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsEntitling reports whether this subscription grants its plan's benefits.
func (s *UserSubscription) IsEntitling() bool {
	switch s.Status {
	case SUB_STATUS_ACTIVE, SUB_STATUS_TRIALING, SUB_STATUS_PAST_DUE:
		return true
	default:
		return false
	}
}
