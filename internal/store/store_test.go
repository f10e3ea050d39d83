package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mounthank/go-imagegen/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(models.SavedImage{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return New(db)
}

func TestAppendAssignsID(t *testing.T) {
	st := testStore(t)

	rec := &models.SavedImage{
		CreatedAt:  time.Now(),
		UserID:     "u1",
		Prompt:     "a red fox in snow",
		Model:      "black-forest-labs/flux-dev",
		Parameters: datatypes.JSONMap{"guidance": 3.5},
		ImageURL:   "https://cdn.example/img1.png",
	}
	id, err := st.Append(context.Background(), ImagesCollection, rec)
	if err != nil {
		t.Fatalf("append returned error: %v", err)
	}
	if id == "" {
		t.Fatal("append must return the assigned id")
	}
	if rec.UUID != id {
		t.Fatalf("record id mismatch: %q vs %q", rec.UUID, id)
	}
}

func TestListAllReturnsEveryRecord(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	for _, userID := range []string{"u1", "u2", "u1"} {
		_, err := st.Append(ctx, ImagesCollection, &models.SavedImage{
			CreatedAt: time.Now(),
			UserID:    userID,
			Prompt:    "prompt for " + userID,
			Model:     "black-forest-labs/flux-dev",
			ImageURL:  "https://cdn.example/" + userID + ".png",
		})
		if err != nil {
			t.Fatalf("append returned error: %v", err)
		}
	}

	recs, err := st.ListAll(ctx, ImagesCollection)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	// Ownership filtering is the caller's job, the adapter returns everything.
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
}

func TestHistorySaveWithoutArchiver(t *testing.T) {
	st := testStore(t)
	h := NewHistory(st, nil)

	rec := &models.SavedImage{
		CreatedAt: time.Now(),
		UserID:    "u1",
		Prompt:    "a red fox in snow",
		Model:     "black-forest-labs/flux-dev",
		ImageURL:  "https://cdn.example/img1.png",
	}
	if err := h.Save(context.Background(), rec); err != nil {
		t.Fatalf("save returned error: %v", err)
	}

	recs, err := st.ListAll(context.Background(), ImagesCollection)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if len(recs) != 1 || recs[0].ArchiveURL != "" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

type archiverStub struct {
	archiveURL string
	thumbURL   string
	err        error
}

func (a *archiverStub) Archive(_ context.Context, _, _ string) (string, string, error) {
	return a.archiveURL, a.thumbURL, a.err
}

func TestHistorySaveRecordsArchiveURLs(t *testing.T) {
	st := testStore(t)
	h := NewHistory(st, &archiverStub{
		archiveURL: "https://img.mounthank.dev/images/u1/originals/abc",
		thumbURL:   "https://img.mounthank.dev/images/u1/thumbs/abc.webp",
	})

	rec := &models.SavedImage{
		CreatedAt: time.Now(),
		UserID:    "u1",
		Prompt:    "a red fox in snow",
		Model:     "black-forest-labs/flux-dev",
		ImageURL:  "https://cdn.example/img1.png",
	}
	if err := h.Save(context.Background(), rec); err != nil {
		t.Fatalf("save returned error: %v", err)
	}
	if rec.ArchiveURL == "" || rec.ThumbURL == "" {
		t.Fatalf("archive urls not recorded: %+v", rec)
	}
}

func TestHistorySaveDegradesWhenArchiveFails(t *testing.T) {
	st := testStore(t)
	h := NewHistory(st, &archiverStub{err: errors.New("bucket unavailable")})

	rec := &models.SavedImage{
		CreatedAt: time.Now(),
		UserID:    "u1",
		Prompt:    "a red fox in snow",
		Model:     "black-forest-labs/flux-dev",
		ImageURL:  "https://cdn.example/img1.png",
	}
	if err := h.Save(context.Background(), rec); err != nil {
		t.Fatalf("archive failure must not fail the save: %v", err)
	}
	if rec.ArchiveURL != "" {
		t.Fatalf("failed archive must leave the provider URL only: %+v", rec)
	}
}
