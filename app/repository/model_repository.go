package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"gorm.io/gorm"
)

// modelRepository implements the ModelRepository interface
type modelRepository struct {
	db *gorm.DB
}

// NewModelRepository creates a new model repository instance
func NewModelRepository(db *gorm.DB) ModelRepository {
	return &modelRepository{db: db}
}

// Create creates a new model in the database
func (r *modelRepository) Create(model *models.Model) error {
	return r.db.Create(model).Error
}

// GetByID retrieves a model by its ID
func (r *modelRepository) GetByID(id uint) (*models.Model, error) {
	var model models.Model
	err := r.db.Preload("Author").Preload("MaterialProperties").First(&model, id).Error
	if err != nil {
		return nil, err
	}
	return &model, nil
}

// GetByUUID retrieves a model by its UUID
func (r *modelRepository) GetByUUID(uuid string) (*models.Model, error) {
	var model models.Model
	err := r.db.Preload("Author").Preload("MaterialProperties").
		Where("uuid = ?", uuid).First(&model).Error
	if err != nil {
		return nil, err
	}
	return &model, nil
}

// GetBySlug retrieves a model by its slug
func (r *modelRepository) GetBySlug(slug string) (*models.Model, error) {
	var model models.Model
	err := r.db.Preload("Author").Preload("MaterialProperties").
		Where("slug = ?", slug).First(&model).Error
	if err != nil {
		return nil, err
	}
	return &model, nil
}

// GetByAuthorID retrieves models uploaded by a specific user
func (r *modelRepository) GetByAuthorID(authorID uint, offset, limit int) ([]models.Model, error) {
	var list []models.Model
	err := r.db.Where("author_id = ?", authorID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, err
}

// Update updates an existing model in the database
func (r *modelRepository) Update(model *models.Model) error {
	return r.db.Save(model).Error
}

// Delete soft deletes a model by its ID
func (r *modelRepository) Delete(id uint) error {
	return r.db.Delete(&models.Model{}, id).Error
}

// List retrieves a paginated list of models regardless of status
func (r *modelRepository) List(offset, limit int) ([]models.Model, error) {
	var list []models.Model
	err := r.db.Preload("Author").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&list).Error
	return list, err
}

// Count returns the total number of models
func (r *modelRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Model{}).Count(&count).Error
	return count, err
}

// CountByStatus returns the number of models in a moderation status
func (r *modelRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Model{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// CountByAuthorID returns the number of models uploaded by a user
func (r *modelRepository) CountByAuthorID(authorID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Model{}).Where("author_id = ?", authorID).Count(&count).Error
	return count, err
}

// Search searches approved models by title or description
func (r *modelRepository) Search(query string) ([]models.Model, error) {
	var list []models.Model
	searchPattern := "%" + strings.TrimSpace(query) + "%"
	err := r.db.Preload("Author").
		Where("status = ? AND (title LIKE ? OR description LIKE ?)",
			models.MODEL_STATUS_APPROVED, searchPattern, searchPattern).
		Order("created_at DESC").Find(&list).Error
	return list, err
}

// GetApproved retrieves the public catalog, split into free and paid listings
func (r *modelRepository) GetApproved(freeOnly bool, offset, limit int) ([]models.Model, error) {
	var list []models.Model
	err := r.db.Preload("Author").
		Where("status = ? AND is_free = ?", models.MODEL_STATUS_APPROVED, freeOnly).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, err
}

// GetPending retrieves the moderation queue, oldest first
func (r *modelRepository) GetPending(offset, limit int) ([]models.Model, error) {
	var list []models.Model
	err := r.db.Preload("Author").
		Where("status = ?", models.MODEL_STATUS_PENDING).
		Order("created_at ASC").Offset(offset).Limit(limit).Find(&list).Error
	return list, err
}

// GetRecent retrieves the most recently approved models
func (r *modelRepository) GetRecent(limit int) ([]models.Model, error) {
	var list []models.Model
	err := r.db.Preload("Author").
		Where("status = ?", models.MODEL_STATUS_APPROVED).
		Order("created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}

// UpdateViewCount increments the view counter for a model
func (r *modelRepository) UpdateViewCount(id uint) error {
	return r.db.Model(&models.Model{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

// UpdateDownloadCount increments the download counter for a model
func (r *modelRepository) UpdateDownloadCount(id uint) error {
	return r.db.Model(&models.Model{}).Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error
}

// SlugExists checks if a slug already exists
func (r *modelRepository) SlugExists(slug string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Model{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// GetDailyStats returns daily upload counts for a date range
func (r *modelRepository) GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error) {
	var results []struct {
		Date  string `json:"date"`
		Count int64  `json:"count"`
	}

	err := r.db.Model(&models.Model{}).
		Select("DATE_FORMAT(created_at, '%Y-%m-%d') as date, COUNT(*) as count").
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE_FORMAT(created_at, '%Y-%m-%d')").
		Order("date").
		Find(&results).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get daily model stats: %w", err)
	}

	dailyStats := make([]models.DailyStats, len(results))
	for i, result := range results {
		dailyStats[i] = models.DailyStats{
			Date:  result.Date,
			Count: int(result.Count),
		}
	}

	return dailyStats, nil
}
