package media

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"feedmix/internal/database"
	"feedmix/internal/model"
)

type fakeMediaStore struct {
	database.Store

	orphans    []model.Media
	deletedIDs []int64
}

func (f *fakeMediaStore) FindOrphanedMedia() ([]model.Media, error) {
	return f.orphans, nil
}

func (f *fakeMediaStore) DeleteMedia(ids []int64) error {
	f.deletedIDs = ids
	return nil
}

type recordingStorage struct {
	deleted []string
	err     error
}

func (r *recordingStorage) DeleteByURL(ctx context.Context, fileURL string) error {
	r.deleted = append(r.deleted, fileURL)
	return r.err
}

func TestReclaimerSweep(t *testing.T) {
	store := &fakeMediaStore{orphans: []model.Media{
		{ID: 1, URL: "https://cdn.example.com/a.jpg"},
		{ID: 2, URL: "not a url"},
		{ID: 3, URL: "/relative/b.jpg"},
		{ID: 4, URL: "https://cdn.example.com/c.jpg"},
	}}
	storage := &recordingStorage{}

	r := NewReclaimer(store, storage, "@hourly", zerolog.Nop())
	r.Run(context.Background())

	// Storage deletes only for well-formed absolute URLs.
	assert.Equal(t, []string{
		"https://cdn.example.com/a.jpg",
		"https://cdn.example.com/c.jpg",
	}, storage.deleted)

	// Every orphan row goes, including the ones with unusable URLs.
	assert.Equal(t, []int64{1, 2, 3, 4}, store.deletedIDs)
}

func TestReclaimerStorageFailureDoesNotAbort(t *testing.T) {
	store := &fakeMediaStore{orphans: []model.Media{
		{ID: 1, URL: "https://cdn.example.com/a.jpg"},
		{ID: 2, URL: "https://cdn.example.com/b.jpg"},
	}}
	storage := &recordingStorage{err: errors.New("bucket unavailable")}

	r := NewReclaimer(store, storage, "@hourly", zerolog.Nop())
	r.Run(context.Background())

	assert.Len(t, storage.deleted, 2, "a failed delete must not stop the batch")
	assert.Equal(t, []int64{1, 2}, store.deletedIDs, "rows are removed even when object deletion fails")
}

func TestReclaimerNoOrphans(t *testing.T) {
	store := &fakeMediaStore{}
	storage := &recordingStorage{}

	r := NewReclaimer(store, storage, "@hourly", zerolog.Nop())
	r.Run(context.Background())

	assert.Empty(t, storage.deleted)
	assert.Nil(t, store.deletedIDs, "no bulk delete is issued for an empty sweep")
}
