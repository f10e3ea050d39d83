// Package store is a thin append/list wrapper over the document database.
// It assigns ids and passes records through as-is; filtering and ordering
// are the caller's job.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mounthank/go-imagegen/models"
)

// ImagesCollection is where generation history records live.
const ImagesCollection = "saved_images"

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Append writes a new record to the named collection and returns the id the
// store assigned. No schema validation happens here.
func (s *Store) Append(ctx context.Context, collection string, rec *models.SavedImage) (string, error) {
	if rec.UUID == "" {
		rec.UUID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Table(collection).Create(rec).Error; err != nil {
		return "", fmt.Errorf("append to %s: %w", collection, err)
	}
	return rec.UUID, nil
}

// ListAll returns every record in the collection visible to this adapter's
// credentials. Callers filter by owner and order the result themselves.
func (s *Store) ListAll(ctx context.Context, collection string) ([]models.SavedImage, error) {
	var recs []models.SavedImage
	if err := s.db.WithContext(ctx).Table(collection).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return recs, nil
}
