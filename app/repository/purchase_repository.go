package repository

import (
	"fmt"
	"time"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"gorm.io/gorm"
)

// purchaseRepository implements the PurchaseRepository interface
type purchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository creates a new purchase repository instance
func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

// GetByID retrieves a purchase by its ID
func (r *purchaseRepository) GetByID(id uint) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.Preload("Model").First(&purchase, id).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// GetByUserID retrieves a user's purchases, newest first
func (r *purchaseRepository) GetByUserID(userID uint, offset, limit int) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.Preload("Model").Preload("Model.Author").
		Where("user_id = ?", userID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&purchases).Error
	return purchases, err
}

// HasPurchased reports whether the user owns a paid copy of the model
func (r *purchaseRepository) HasPurchased(userID, modelID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Purchase{}).
		Where("user_id = ? AND model_id = ?", userID, modelID).Count(&count).Error
	return count > 0, err
}

// PurchasedModelIDs returns the ids of all models the user has bought
func (r *purchaseRepository) PurchasedModelIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Purchase{}).
		Where("user_id = ?", userID).Pluck("model_id", &ids).Error
	return ids, err
}

// Count returns the total number of purchases
func (r *purchaseRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Purchase{}).Count(&count).Error
	return count, err
}

// CountByUserID returns the number of purchases for a specific user
func (r *purchaseRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Purchase{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// GrossRevenue returns the sum of all recorded purchase amounts
func (r *purchaseRepository) GrossRevenue() (float64, error) {
	var revenue float64
	err := r.db.Model(&models.Purchase{}).
		Select("COALESCE(SUM(amount_paid), 0)").Row().Scan(&revenue)
	if err != nil {
		return 0, fmt.Errorf("failed to sum purchase revenue: %w", err)
	}
	return revenue, nil
}

// GetDailyRevenue returns summed purchase revenue per day for a date range
func (r *purchaseRepository) GetDailyRevenue(startDate, endDate time.Time) ([]models.DailyRevenue, error) {
	var results []struct {
		Date    string  `json:"date"`
		Revenue float64 `json:"revenue"`
	}

	err := r.db.Model(&models.Purchase{}).
		Select("DATE_FORMAT(created_at, '%Y-%m-%d') as date, COALESCE(SUM(amount_paid), 0) as revenue").
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE_FORMAT(created_at, '%Y-%m-%d')").
		Order("date").
		Find(&results).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get daily revenue: %w", err)
	}

	daily := make([]models.DailyRevenue, len(results))
	for i, result := range results {
		daily[i] = models.DailyRevenue{
			Date:    result.Date,
			Revenue: result.Revenue,
		}
	}

	return daily, nil
}
