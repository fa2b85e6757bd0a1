package repository

import (
	"github.com/DataFrontierLabs/STLPrime/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// collectionRepository implements the CollectionRepository interface
type collectionRepository struct {
	db *gorm.DB
}

// NewCollectionRepository creates a new collection repository instance
func NewCollectionRepository(db *gorm.DB) CollectionRepository {
	return &collectionRepository{db: db}
}

// Create creates a new collection in the database
func (r *collectionRepository) Create(collection *models.Collection) error {
	return r.db.Create(collection).Error
}

// GetByID retrieves a collection by its ID
func (r *collectionRepository) GetByID(id uint) (*models.Collection, error) {
	var collection models.Collection
	err := r.db.Preload("User").Preload("Items").Preload("Items.Model").
		First(&collection, id).Error
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

// GetByUserID retrieves all collections belonging to a specific user
func (r *collectionRepository) GetByUserID(userID uint) ([]models.Collection, error) {
	var collections []models.Collection
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Find(&collections).Error
	return collections, err
}

// Update updates an existing collection in the database
func (r *collectionRepository) Update(collection *models.Collection) error {
	return r.db.Save(collection).Error
}

// Delete removes a collection and its item links
func (r *collectionRepository) Delete(id uint) error {
	if err := r.db.Where("collection_id = ?", id).
		Delete(&models.CollectionItem{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.Collection{}, id).Error
}

// AddModel links a model into a collection; duplicates are a no-op
func (r *collectionRepository) AddModel(collectionID, modelID uint) error {
	item := models.CollectionItem{
		CollectionID: collectionID,
		ModelID:      modelID,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "collection_id"},
			{Name: "model_id"},
		},
		DoNothing: true,
	}).Create(&item).Error
}

// RemoveModel unlinks a model from a collection
func (r *collectionRepository) RemoveModel(collectionID, modelID uint) error {
	return r.db.Where("collection_id = ? AND model_id = ?", collectionID, modelID).
		Delete(&models.CollectionItem{}).Error
}

// GetModels retrieves all models in a collection, newest link first
func (r *collectionRepository) GetModels(collectionID uint) ([]models.Model, error) {
	var list []models.Model
	err := r.db.Table("models").
		Joins("JOIN collection_items ON models.id = collection_items.model_id").
		Where("collection_items.collection_id = ?", collectionID).
		Order("collection_items.created_at DESC").
		Find(&list).Error
	return list, err
}

// Count returns the total number of collections
func (r *collectionRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Collection{}).Count(&count).Error
	return count, err
}

// CountByUserID returns the number of collections for a specific user
func (r *collectionRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Collection{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
