package store

import (
	"context"
	"log"

	"github.com/mounthank/go-imagegen/models"
)

// Archiver copies an image to durable storage. Satisfied by
// archive.Archiver; nil means archival is disabled.
type Archiver interface {
	Archive(ctx context.Context, userID, srcURL string) (archiveURL, thumbURL string, err error)
}

// History writes generation records, archiving the image first when an
// archiver is configured. Archival failure degrades to URL-only records.
type History struct {
	store    *Store
	archiver Archiver
}

func NewHistory(s *Store, a Archiver) *History {
	return &History{store: s, archiver: a}
}

func (h *History) Save(ctx context.Context, rec *models.SavedImage) error {
	if h.archiver != nil {
		archiveURL, thumbURL, err := h.archiver.Archive(ctx, rec.UserID, rec.ImageURL)
		if err != nil {
			log.Printf("archive of %s failed, keeping provider URL only: %v", rec.ImageURL, err)
		} else {
			rec.ArchiveURL = archiveURL
			rec.ThumbURL = thumbURL
		}
	}
	_, err := h.store.Append(ctx, ImagesCollection, rec)
	return err
}
