// Package database provides storage backends for the content store.
package database

import (
	"time"

	"feedmix/internal/model"
)

// PostListOptions filters and paginates the public post listing.
type PostListOptions struct {
	// Query matches title, body or description (substring).
	Query string
	// Tag restricts results to posts carrying the tag.
	Tag string
	// Page is 1-based; values < 1 mean the first page.
	Page     int
	PageSize int
}

// MixinFilter narrows the mixin candidate query. Drafts are always excluded.
type MixinFilter struct {
	ExcludeDisplayOn []model.DisplayOn
	ExcludePageTypes []model.PageType
	// ExcludePostIDs drops mixins whose linked post is already on the page.
	ExcludePostIDs []int64
}

// MixinCandidate is the narrow projection used for selection; the full
// record is fetched only for sampled ids.
type MixinCandidate struct {
	ID    int64
	Regex string
}

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// Feed source operations
	GetFeedSources() ([]model.FeedSource, error)
	GetFeedSourceByID(id int64) (*model.FeedSource, error)
	CreateFeedSource(src *model.FeedSource) (int64, error)
	UpdateFeedSourceFetched(id int64, t time.Time) error

	// Post operations
	CreatePost(post *model.Post) (int64, error)
	GetPostByID(id int64) (*model.Post, error)
	CountPostsByTitleAndDate(title string, createdAt time.Time) (int, error)
	ListPosts(opts PostListOptions) ([]model.Post, int, error)

	// Tag operations
	GetOrCreateTag(name string) (int64, error)

	// Mixin operations
	CreateMixin(m *model.Mixin) (int64, error)
	FindMixinCandidates(f MixinFilter) ([]MixinCandidate, error)
	GetMixinsByIDs(ids []int64) ([]model.Mixin, error)
	GetMixinSettings() (model.MixinSettings, error)
	SetMixinSettings(s model.MixinSettings) error

	// Media operations
	CreateMedia(name, url string) (int64, error)
	FindOrphanedMedia() ([]model.Media, error)
	DeleteMedia(ids []int64) error
}
