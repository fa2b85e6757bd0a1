package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Post is a community forum entry. Reaction counts are denormalized for list
// rendering and adjusted together with PostReaction rows.
type Post struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	AuthorID      uint           `gorm:"not null;index" json:"author_id"`
	Author        User           `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	CategoryID    uint           `gorm:"index" json:"category_id"`
	Category      PostCategory   `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Title         string         `gorm:"type:varchar(255)" json:"title" validate:"required,min=3,max=255"`
	Slug          string         `gorm:"type:varchar(255);uniqueIndex" json:"slug" validate:"required"`
	Content       string         `gorm:"type:longtext" json:"content" validate:"required,min=1"`
	ImagesJSON    string         `gorm:"type:text" json:"-"`
	LikesCount    int64          `gorm:"default:0" json:"likes_count"`
	UsefulCount   int64          `gorm:"default:0" json:"useful_count"`
	FireCount     int64          `gorm:"default:0" json:"fire_count"`
	CommentsCount int64          `gorm:"default:0" json:"comments_count"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Post) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// PostCategory groups forum posts into browsable tabs.
type PostCategory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex" json:"name"`
	Slug      string    `gorm:"type:varchar(100);uniqueIndex" json:"slug"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
