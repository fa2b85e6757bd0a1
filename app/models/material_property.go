package models

import "time"

// MaterialProperty holds print recommendations for one filament type of a model.
type MaterialProperty struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	ModelID                uint      `gorm:"not null;index" json:"model_id"`
	FilamentType           string    `gorm:"type:varchar(100)" json:"filament_type"` // PLA, PETG, ABS, ...
	EstimatedWeight        float64   `gorm:"default:0" json:"estimated_weight"`      // grams
	PrintTime              int       `gorm:"default:0" json:"print_time"`            // minutes
	RecommendedTemperature int       `gorm:"default:0" json:"recommended_temperature"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
