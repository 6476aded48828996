package feed

import (
	"fmt"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"feedmix/internal/model"
)

// reservedFields are the fixed item keys excluded from mappable-key
// discovery; everything else a feed carries is fair game for the
// per-source field mapping.
var reservedFields = map[string]struct{}{
	"pubDate":    {},
	"categories": {},
	"title":      {},
	"isoDate":    {},
	"link":       {},
	"author":     {},
	"guid":       {},
	"creator":    {},
	"dc:creator": {},
}

// Parser turns fetched feed text into generic feed items.
type Parser struct {
	parser *gofeed.Parser
}

// NewParser creates a feed parser.
func NewParser() *Parser {
	return &Parser{parser: gofeed.NewParser()}
}

// Parse parses RSS/Atom text into generic items. Each item carries the
// fixed known fields plus an open map addressing every string-valued key,
// including the non-standard "description" and source-specific extras.
func (p *Parser) Parse(content string) ([]model.FeedItem, error) {
	parsed, err := p.parser.ParseString(content)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	items := make([]model.FeedItem, 0, len(parsed.Items))
	for _, raw := range parsed.Items {
		if raw == nil {
			continue
		}
		items = append(items, flattenItem(raw))
	}
	return items, nil
}

func flattenItem(it *gofeed.Item) model.FeedItem {
	fields := make(map[string]string)
	set := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}

	set("title", it.Title)
	set("link", it.Link)
	set("description", it.Description)
	set("content", it.Content)
	set("guid", it.GUID)
	set("pubDate", it.Published)
	if it.PublishedParsed != nil {
		set("isoDate", it.PublishedParsed.Format(time.RFC3339))
	}
	if it.Author != nil {
		set("author", it.Author.Name)
	}
	if it.DublinCoreExt != nil && len(it.DublinCoreExt.Creator) > 0 {
		set("creator", it.DublinCoreExt.Creator[0])
		set("dc:creator", it.DublinCoreExt.Creator[0])
	}
	// Source-specific elements the standard translators do not recognize.
	for key, value := range it.Custom {
		set(key, value)
	}

	// Enclosure URL takes precedence over the item image.
	imageURL := ""
	for _, enc := range it.Enclosures {
		if enc != nil && enc.URL != "" {
			imageURL = enc.URL
			break
		}
	}
	if imageURL == "" && it.Image != nil {
		imageURL = it.Image.URL
	}

	return model.FeedItem{
		Title:    it.Title,
		PubDate:  it.PublishedParsed,
		ImageURL: imageURL,
		Tags:     it.Categories,
		Fields:   fields,
	}
}

// DiscoverKeys returns the mappable item keys across items: everything
// that is not one of the fixed reserved fields. Used by the admin UI to
// offer field-mapping choices; the ingestion path never calls this.
func DiscoverKeys(items []model.FeedItem) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, item := range items {
		for key := range item.Fields {
			if _, reserved := reservedFields[key]; reserved {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// MapItem remaps one feed item into a post candidate using the source's
// field mapping. It returns ok=false when the item's categories intersect
// the stop-tag set and the item must be discarded entirely.
func MapItem(item model.FeedItem, mapping map[string]string, stopTags []string) (model.PostCandidate, bool) {
	for _, tag := range item.Tags {
		for _, stop := range stopTags {
			if tag == stop {
				return model.PostCandidate{}, false
			}
		}
	}

	var c model.PostCandidate
	for dbKey, srcKey := range mapping {
		value := Clean(item.Fields[srcKey])
		switch dbKey {
		case "title":
			c.Title = value
		case "body":
			c.Body = value
		case "description":
			c.Description = value
		case "image":
			c.ImageURL = value
		}
	}

	// Default matching always wins over mapped values.
	if item.PubDate != nil {
		c.PublishedAt = *item.PubDate
	}
	if title, ok := item.Fields["title"]; ok {
		c.Title = title
	}
	if item.ImageURL != "" {
		c.ImageURL = item.ImageURL
	}
	c.Tags = item.Tags
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c, true
}
