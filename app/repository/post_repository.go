package repository

import (
	"github.com/DataFrontierLabs/STLPrime/app/models"
	"gorm.io/gorm"
)

// postRepository implements the PostRepository interface
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository instance
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create creates a new forum post in the database
func (r *postRepository) Create(post *models.Post) error {
	return r.db.Create(post).Error
}

// GetByID retrieves a post by its ID
func (r *postRepository) GetByID(id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.Preload("Author").Preload("Category").First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetBySlug retrieves a post by its slug
func (r *postRepository) GetBySlug(slug string) (*models.Post, error) {
	var post models.Post
	err := r.db.Preload("Author").Preload("Category").
		Where("slug = ?", slug).First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetByCategory retrieves posts in a category with pagination
func (r *postRepository) GetByCategory(categoryID uint, offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.Preload("Author").Preload("Category").
		Where("category_id = ?", categoryID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&posts).Error
	return posts, err
}

// List retrieves all posts with pagination, newest first
func (r *postRepository) List(offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.Preload("Author").Preload("Category").
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&posts).Error
	return posts, err
}

// GetByAuthorID retrieves posts written by a specific user
func (r *postRepository) GetByAuthorID(authorID uint, offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.Preload("Category").Where("author_id = ?", authorID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&posts).Error
	return posts, err
}

// Update updates an existing post in the database
func (r *postRepository) Update(post *models.Post) error {
	return r.db.Save(post).Error
}

// Delete soft deletes a post and its comments
func (r *postRepository) Delete(id uint) error {
	if err := r.db.Where("post_id = ?", id).Delete(&models.PostComment{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.Post{}, id).Error
}

// Count returns the total number of posts
func (r *postRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Post{}).Count(&count).Error
	return count, err
}

// SlugExists checks if a slug already exists
func (r *postRepository) SlugExists(slug string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Post{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// SlugExistsExceptID checks if a slug exists excluding a specific ID
func (r *postRepository) SlugExistsExceptID(slug string, id uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Post{}).Where("slug = ? AND id != ?", slug, id).Count(&count).Error
	return count > 0, err
}

// AddComment creates a comment and bumps the post's denormalized counter
func (r *postRepository) AddComment(comment *models.PostComment) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			UpdateColumn("comments_count", gorm.Expr("comments_count + 1")).Error
	})
}

// GetComments retrieves a post's comments, oldest first
func (r *postRepository) GetComments(postID uint, offset, limit int) ([]models.PostComment, error) {
	var comments []models.PostComment
	err := r.db.Preload("Author").Where("post_id = ?", postID).
		Order("created_at ASC").Offset(offset).Limit(limit).Find(&comments).Error
	return comments, err
}

// DeleteComment removes a comment and decrements the post's counter
func (r *postRepository) DeleteComment(commentID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var comment models.PostComment
		if err := tx.First(&comment, commentID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).
			Where("id = ? AND comments_count > 0", comment.PostID).
			UpdateColumn("comments_count", gorm.Expr("comments_count - 1")).Error
	})
}

// GetCategories retrieves all forum categories
func (r *postRepository) GetCategories() ([]models.PostCategory, error) {
	var categories []models.PostCategory
	err := r.db.Order("name ASC").Find(&categories).Error
	return categories, err
}

// GetCategoryBySlug retrieves a forum category by its slug
func (r *postRepository) GetCategoryBySlug(slug string) (*models.PostCategory, error) {
	var category models.PostCategory
	err := r.db.Where("slug = ?", slug).First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}
