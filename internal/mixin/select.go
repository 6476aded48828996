// Package mixin selects editorial content blocks for a rendering context
// and interleaves them into post listings.
package mixin

import (
	"math/rand"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"feedmix/internal/database"
	"feedmix/internal/model"
)

// Page is the rendering surface requesting mixins.
type Page string

// Rendering surfaces.
const (
	PageList   Page = "list"
	PageSearch Page = "search"
	PageTag    Page = "tag"
)

// Selector picks at most N eligible mixins for a rendering context, where
// N is the per-context cap from MixinSettings.
type Selector struct {
	store  database.Store
	logger zerolog.Logger
	rnd    *rand.Rand
}

// NewSelector creates a selector with its own randomness source.
func NewSelector(store database.Store, logger zerolog.Logger) *Selector {
	return &Selector{
		store:  store,
		logger: logger.With().Str("component", "mixin-selector").Logger(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Select returns up to the configured number of mixins for the page.
// searchQuery only matters for PageSearch, where it is matched against
// each candidate's regex gate. excludePostIDs drops mixins whose linked
// post is already visible on the page.
//
// Sampling is uniform and unweighted; priority affects only the ordering
// of the returned records, not selection probability.
func (s *Selector) Select(page Page, searchQuery string, excludePostIDs []int64) ([]model.Mixin, error) {
	filter := database.MixinFilter{ExcludePostIDs: excludePostIDs}
	switch page {
	case PageList:
		filter.ExcludeDisplayOn = []model.DisplayOn{model.DisplaySearch}
	case PageSearch:
		filter.ExcludeDisplayOn = []model.DisplayOn{model.DisplayList}
	case PageTag:
		filter.ExcludeDisplayOn = []model.DisplayOn{model.DisplaySearch}
		filter.ExcludePageTypes = []model.PageType{model.PageMain}
	}

	candidates, err := s.store.FindMixinCandidates(filter)
	if err != nil {
		return nil, err
	}

	if page == PageSearch {
		candidates = s.gateByRegex(candidates, searchQuery)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	maxCount := s.maxCount(page)
	ids := make([]int64, 0, maxCount)
	if len(candidates) <= maxCount {
		for _, c := range candidates {
			ids = append(ids, c.ID)
		}
	} else {
		for _, idx := range s.rnd.Perm(len(candidates))[:maxCount] {
			ids = append(ids, candidates[idx].ID)
		}
	}

	return s.store.GetMixinsByIDs(ids)
}

// gateByRegex keeps candidates whose regex is empty or matches the query.
// An uncompilable regex drops its candidate rather than failing the page.
func (s *Selector) gateByRegex(candidates []database.MixinCandidate, searchQuery string) []database.MixinCandidate {
	kept := candidates[:0]
	for _, c := range candidates {
		if c.Regex == "" {
			kept = append(kept, c)
			continue
		}
		re, err := regexp.Compile(c.Regex)
		if err != nil {
			s.logger.Warn().Err(err).Int64("mixin_id", c.ID).Msg("invalid mixin regex")
			continue
		}
		if re.MatchString(searchQuery) {
			kept = append(kept, c)
		}
	}
	return kept
}

func (s *Selector) maxCount(page Page) int {
	settings, err := s.store.GetMixinSettings()
	if err != nil {
		s.logger.Warn().Err(err).Msg("load mixin settings")
		return model.DefaultMixinCount
	}
	count := settings.MixinPerList
	if page == PageSearch {
		count = settings.MixinPerSearch
	}
	if count <= 0 {
		return model.DefaultMixinCount
	}
	return count
}
