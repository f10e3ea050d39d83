package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
	Subject   string         `gorm:"size:255;not null;uniqueIndex"` // identity provider user id
	Name      string         `gorm:"size:255;not null"`
	Email     string         `gorm:"size:255;not null;unique"`
	AvatarURL string
}

// SavedImage is one generation a signed-in user chose to keep. Rows are
// append-only: this service never updates or deletes them.
type SavedImage struct {
	ID         uint              `gorm:"primarykey" json:"-"`
	UUID       string            `gorm:"type:uuid;uniqueIndex" json:"id"`
	CreatedAt  time.Time         `json:"createdAt"`
	UserID     string            `gorm:"size:255;not null;index" json:"userId"` // owning principal id, no FK to users
	Prompt     string            `gorm:"not null" json:"prompt"`
	Model      string            `gorm:"size:255;not null" json:"model"` // external model identifier
	Parameters datatypes.JSONMap `json:"parameters,omitempty"`
	ImageURL   string            `gorm:"not null" json:"imageUrl"` // provider-hosted result
	ArchiveURL string            `json:"archiveUrl,omitempty"`     // durable copy in our bucket, empty if archival was skipped or failed
	ThumbURL   string            `json:"thumbUrl,omitempty"`
}
