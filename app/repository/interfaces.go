package repository

import (
	"time"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	GetByActivationToken(token string) (*models.User, error)
	GetBySubscriptionID(subscriptionID string) (*models.User, error)
	GetStatsByUserID(userID uint) (*UserStats, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	CountSubscribers() (int64, error)
	Search(query string) ([]models.User, error)
	GetWithStats(offset, limit int) ([]UserWithStats, error)
	SearchWithStats(query string) ([]UserWithStats, error)
	GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error)
}

// ModelRepository defines the interface for catalog model operations
type ModelRepository interface {
	Create(model *models.Model) error
	GetByID(id uint) (*models.Model, error)
	GetByUUID(uuid string) (*models.Model, error)
	GetBySlug(slug string) (*models.Model, error)
	GetByAuthorID(authorID uint, offset, limit int) ([]models.Model, error)
	Update(model *models.Model) error
	Delete(id uint) error
	List(offset, limit int) ([]models.Model, error)
	Count() (int64, error)
	CountByStatus(status string) (int64, error)
	CountByAuthorID(authorID uint) (int64, error)
	Search(query string) ([]models.Model, error)
	GetApproved(freeOnly bool, offset, limit int) ([]models.Model, error)
	GetPending(offset, limit int) ([]models.Model, error)
	GetRecent(limit int) ([]models.Model, error)
	UpdateViewCount(id uint) error
	UpdateDownloadCount(id uint) error
	SlugExists(slug string) (bool, error)
	GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error)
}

// PurchaseRepository defines the interface for purchase queries. Purchase rows
// are written by the payment reconciliation service, never from here.
type PurchaseRepository interface {
	GetByID(id uint) (*models.Purchase, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Purchase, error)
	HasPurchased(userID, modelID uint) (bool, error)
	PurchasedModelIDs(userID uint) ([]uint, error)
	Count() (int64, error)
	CountByUserID(userID uint) (int64, error)
	GrossRevenue() (float64, error)
	GetDailyRevenue(startDate, endDate time.Time) ([]models.DailyRevenue, error)
}

// PostRepository defines the interface for forum post operations
type PostRepository interface {
	Create(post *models.Post) error
	GetByID(id uint) (*models.Post, error)
	GetBySlug(slug string) (*models.Post, error)
	GetByCategory(categoryID uint, offset, limit int) ([]models.Post, error)
	List(offset, limit int) ([]models.Post, error)
	GetByAuthorID(authorID uint, offset, limit int) ([]models.Post, error)
	Update(post *models.Post) error
	Delete(id uint) error
	Count() (int64, error)
	SlugExists(slug string) (bool, error)
	SlugExistsExceptID(slug string, id uint) (bool, error)
	AddComment(comment *models.PostComment) error
	GetComments(postID uint, offset, limit int) ([]models.PostComment, error)
	DeleteComment(commentID uint) error
	GetCategories() ([]models.PostCategory, error)
	GetCategoryBySlug(slug string) (*models.PostCategory, error)
}

// CollectionRepository defines the interface for user collection operations
type CollectionRepository interface {
	Create(collection *models.Collection) error
	GetByID(id uint) (*models.Collection, error)
	GetByUserID(userID uint) ([]models.Collection, error)
	Update(collection *models.Collection) error
	Delete(id uint) error
	AddModel(collectionID, modelID uint) error
	RemoveModel(collectionID, modelID uint) error
	GetModels(collectionID uint) ([]models.Model, error)
	Count() (int64, error)
	CountByUserID(userID uint) (int64, error)
}

// QueueRepository defines the interface for cache/queue operations
type QueueRepository interface {
	GetAllKeys() ([]string, error)
	GetValue(key string) (string, error)
	GetTTL(key string) (time.Duration, error)
	DeleteKey(key string) (int64, error)
	GetListLength(key string) (int64, error)
	FindKeysByPatterns(patterns []string) ([]string, error)
	DeleteKeys(keys []string) (int64, error)
}

// UserWithStats represents a user with additional statistics
type UserWithStats struct {
	User          models.User
	ModelCount    int64
	PurchaseCount int64
	StorageUsage  int64
}

// UserStats provides aggregated counts for a single user (models, purchases, storage usage).
type UserStats struct {
	ModelCount    int64
	PurchaseCount int64
	StorageUsage  int64
}

// Repositories struct holds all repository instances
type Repositories struct {
	User       UserRepository
	Model      ModelRepository
	Purchase   PurchaseRepository
	Post       PostRepository
	Collection CollectionRepository
	Queue      QueueRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:       NewUserRepository(db),
		Model:      NewModelRepository(db),
		Purchase:   NewPurchaseRepository(db),
		Post:       NewPostRepository(db),
		Collection: NewCollectionRepository(db),
		Queue:      NewQueueRepository(),
	}
}
