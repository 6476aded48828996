// Package model defines shared data structures.
package model

import "time"

// Interval is a feed polling interval class.
type Interval string

// Supported polling intervals.
const (
	IntervalEveryMinute   Interval = "everyMinute"
	IntervalEvery5Minute  Interval = "every5Minute"
	IntervalEvery15Minute Interval = "every15Minute"
	IntervalEvery30Minute Interval = "every30Minute"
	IntervalEveryHour     Interval = "everyHour"
	IntervalEvery4Hour    Interval = "every4Hour"
	IntervalEveryDay      Interval = "everyDay"
)

// Minutes resolves the interval class to a minute count.
// Unknown values resolve to 0; a source with a zero interval is never due.
func (i Interval) Minutes() int {
	switch i {
	case IntervalEveryMinute:
		return 1
	case IntervalEvery5Minute:
		return 5
	case IntervalEvery15Minute:
		return 15
	case IntervalEvery30Minute:
		return 30
	case IntervalEveryHour:
		return 60
	case IntervalEvery4Hour:
		return 60 * 4
	case IntervalEveryDay:
		return 60 * 24
	default:
		return 0
	}
}

// FeedSource is a configured external RSS/Atom feed.
type FeedSource struct {
	ID           int64
	Name         string
	Source       string
	Interval     Interval
	FieldMapping map[string]string // internal field -> source field
	StopTags     []string
	LastFetched  time.Time
	Paused       bool
}

// FeedItem is one parsed feed entry. It only exists during an ingestion
// pass and is never persisted as-is. Fields holds every string-valued
// item key (standard and source-specific) so the field mapping can
// address arbitrary keys by name.
type FeedItem struct {
	Title    string
	PubDate  *time.Time
	ImageURL string
	Tags     []string
	Fields   map[string]string
}

// PostCandidate is the mapped, cleaned output of one feed item,
// ready for validation and dedup.
type PostCandidate struct {
	Title       string
	Body        string
	Description string
	ImageURL    string
	Tags        []string
	PublishedAt time.Time // zero if the item carried no pubDate
}

// PostStatus is the visibility state of a post.
type PostStatus string

// Post statuses.
const (
	StatusDefault PostStatus = "DEFAULT"
	StatusHidden  PostStatus = "HIDDEN"
	StatusDrafted PostStatus = "DRAFTED"
)

// Post is a persisted content item, created by ingestion or by admin action.
type Post struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Description string     `json:"description"`
	ImageID     *int64     `json:"image_id,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	Tags        []string   `json:"tags"`
	CreatedAt   time.Time  `json:"created_at"`
	Status      PostStatus `json:"status"`
	IsDeleted   bool       `json:"-"`
}

// MixinType is the content kind of a mixin.
type MixinType string

// Mixin types.
const (
	MixinText  MixinType = "text"
	MixinImage MixinType = "image"
	MixinPost  MixinType = "post"
)

// DisplayOn gates which rendering surface a mixin may appear on.
type DisplayOn string

// Display contexts.
const (
	DisplayList   DisplayOn = "list"
	DisplaySearch DisplayOn = "search"
	DisplayAll    DisplayOn = "all"
)

// PageType gates which page kind a mixin may appear on.
type PageType string

// Page contexts.
const (
	PageMain PageType = "main"
	PageTag  PageType = "tag"
	PageAll  PageType = "all"
)

// Mixin is an editorial content block injected into post listings.
type Mixin struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Type        MixinType `json:"type"`
	Text        string    `json:"text,omitempty"`
	Link        string    `json:"link,omitempty"`
	TextForLink string    `json:"text_for_link,omitempty"`
	DisplayOn   DisplayOn `json:"display_on"`
	PageType    PageType  `json:"page_type"`
	Priority    int       `json:"priority"`
	Regex       string    `json:"-"`
	Draft       bool      `json:"-"`
	PostID      *int64    `json:"post_id,omitempty"`
	ImageID     *int64    `json:"image_id,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
}

// DefaultMixinCount is used when MixinSettings is unset for a context.
const DefaultMixinCount = 3

// MixinSettings is the singleton record capping mixins per render context.
type MixinSettings struct {
	MixinPerList   int
	MixinPerSearch int
}

// Media is an uploaded object referenced by posts and mixins.
type Media struct {
	ID   int64
	Name string
	URL  string
}

// Tag is a content label, looked up by name before creation.
type Tag struct {
	ID   int64
	Name string
}
