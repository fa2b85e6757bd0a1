package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	MODEL_STATUS_PENDING  = "pending"
	MODEL_STATUS_APPROVED = "approved"
	MODEL_STATUS_REJECTED = "rejected"
)

const (
	MODEL_FORMAT_STL = "stl"
	MODEL_FORMAT_3MF = "3mf"
	MODEL_FORMAT_OBJ = "obj"
)

// Model is a 3D-printable model listed in the catalog. Uploaded files and
// preview images live in object storage; only keys are stored here.
type Model struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UUID          string         `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	AuthorID      uint           `gorm:"not null;index" json:"author_id"`
	Author        User           `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Title         string         `gorm:"type:varchar(255);index" json:"title" validate:"required,min=3,max=255"`
	Slug          string         `gorm:"type:varchar(255);uniqueIndex" json:"slug" validate:"required"`
	Description   string         `gorm:"type:text" json:"description"`
	Format        string         `gorm:"type:varchar(10);not null;default:'stl'" json:"format" validate:"oneof=stl 3mf obj"`
	Price         float64        `gorm:"type:decimal(10,2);default:0" json:"price" validate:"gte=0"`
	IsFree        bool           `gorm:"default:false;index" json:"is_free"`
	Status        string         `gorm:"type:varchar(20);not null;default:'pending';index" json:"status" validate:"oneof=pending approved rejected"`
	FileKey       string         `gorm:"type:varchar(500)" json:"-"`
	FileSize      int64          `gorm:"default:0" json:"file_size"`
	ThumbnailKey  string         `gorm:"type:varchar(500)" json:"-"`
	ThumbnailURL  string         `gorm:"type:varchar(500)" json:"thumbnail_url"`
	PreviewKey    string         `gorm:"type:varchar(500)" json:"-"`
	PreviewURL    string         `gorm:"type:varchar(500)" json:"preview_url"`
	ViewCount     int64          `gorm:"default:0" json:"view_count"`
	DownloadCount int64          `gorm:"default:0" json:"download_count"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	MaterialProperties []MaterialProperty `gorm:"foreignKey:ModelID" json:"material_properties,omitempty"`
}

func (m *Model) Validate() error {
	v := validator.New()

	return v.Struct(m)
}

// IsPurchasable reports whether the model can appear in a paid checkout.
func (m *Model) IsPurchasable() bool {
	return m.Status == MODEL_STATUS_APPROVED && !m.IsFree && m.Price > 0
}

// IsApproved reports whether the model is publicly listed.
func (m *Model) IsApproved() bool {
	return m.Status == MODEL_STATUS_APPROVED
}
