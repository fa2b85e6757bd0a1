package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Collection is a user-curated set of models ("my collections").
type Collection struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	User        User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Name        string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=1,max=150"`
	Description string         `gorm:"type:text" json:"description" validate:"max=1000"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Items []CollectionItem `gorm:"foreignKey:CollectionID" json:"items,omitempty"`
}

func (c *Collection) Validate() error {
	v := validator.New()

	return v.Struct(c)
}

// CollectionItem links one model into one collection exactly once.
type CollectionItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CollectionID uint      `gorm:"not null;index:ux_collection_items_collection_model,unique,priority:1" json:"collection_id"`
	ModelID      uint      `gorm:"not null;index:ux_collection_items_collection_model,unique,priority:2" json:"model_id"`
	Model        Model     `gorm:"foreignKey:ModelID" json:"model,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
