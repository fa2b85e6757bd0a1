package models

import "time"

// Purchase is one completed one-time payment for a model. Rows are append-only:
// the reconciliation handler creates them and nothing ever updates or deletes
// them. The unique index on (stripe_payment_id, model_id) makes redelivered
// checkout events a no-op instead of a duplicate row.
type Purchase struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	User            User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ModelID         uint      `gorm:"not null;index:ux_purchases_payment_model,unique,priority:2" json:"model_id"`
	Model           Model     `gorm:"foreignKey:ModelID" json:"model,omitempty"`
	StripePaymentID string    `gorm:"type:varchar(191);not null;index:ux_purchases_payment_model,unique,priority:1" json:"stripe_payment_id"`
	AmountPaid      float64   `gorm:"type:decimal(10,2);not null" json:"amount_paid"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
