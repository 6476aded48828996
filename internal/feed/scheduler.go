package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"feedmix/internal/database"
	"feedmix/internal/model"
)

// Scheduler drives due feed sources through the ingestion pipeline once
// per minute. Sources are processed strictly sequentially within a tick:
// one hanging fetch delays the rest of the tick rather than fanning out,
// which keeps the per-source lastFetched update ordering trivial.
type Scheduler struct {
	store   database.Store
	fetcher *Fetcher
	parser  *Parser
	cron    *cron.Cron
	logger  zerolog.Logger

	// tickMu serializes ticks: a tick outlasting its minute must not run
	// concurrently with the next one, or the check-then-insert dedup guard
	// races and ingests the same item twice.
	tickMu sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

// NewScheduler creates a scheduler with injected dependencies.
func NewScheduler(store database.Store, fetcher *Fetcher, parser *Parser, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		fetcher: fetcher,
		parser:  parser,
		logger:  logger.With().Str("component", "feed-scheduler").Logger(),
		now:     time.Now,
	}
}

// Start begins the per-minute tick. There is no cross-instance
// coordination: two processes running this job can fetch the same source
// twice. That is an accepted limitation of the single-process design.
func (s *Scheduler) Start() error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc("* * * * *", func() {
		s.RunTick(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule feed tick: %w", err)
	}
	c.Start()
	s.cron = c
	s.logger.Info().Msg("feed scheduler started")
	return nil
}

// Stop halts the tick and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("feed scheduler stopped")
}

// RunTick selects due sources and processes each one. Per-source failures
// are logged and do not abort the remaining sources. If a previous tick is
// still running the call returns immediately: ticks never overlap.
func (s *Scheduler) RunTick(ctx context.Context) {
	if !s.tickMu.TryLock() {
		s.logger.Warn().Msg("previous tick still running, skipping")
		return
	}
	defer s.tickMu.Unlock()

	now := s.now()

	sources, err := s.store.GetFeedSources()
	if err != nil {
		s.logger.Error().Err(err).Msg("load feed sources")
		return
	}

	var due []model.FeedSource
	for _, src := range sources {
		if isDue(src, now) {
			due = append(due, src)
		}
	}
	if len(due) == 0 {
		return
	}
	s.logger.Info().Int("due", len(due)).Int("total", len(sources)).Msg("tick starting")

	for _, src := range due {
		created, err := s.processSource(ctx, src, now)
		if err != nil {
			s.logger.Warn().Err(err).Int64("source_id", src.ID).Str("source", src.Source).Msg("source failed")
			continue
		}
		s.logger.Info().Int64("source_id", src.ID).Int("new_posts", created).Msg("source processed")
	}
}

// isDue reports whether a source should be fetched at now. A paused
// source is never due, and neither is one whose interval resolves to a
// non-positive minute count.
func isDue(src model.FeedSource, now time.Time) bool {
	if src.Paused {
		return false
	}
	minutes := src.Interval.Minutes()
	if minutes <= 0 {
		return false
	}
	return now.Sub(src.LastFetched) >= time.Duration(minutes)*time.Minute
}

// processSource runs fetch, parse, map, filter, dedup and persist for one
// source. lastFetched is advanced only after a successful fetch+parse, so
// a persistently failing source retries every tick instead of waiting out
// its interval with a stale timestamp.
func (s *Scheduler) processSource(ctx context.Context, src model.FeedSource, now time.Time) (int, error) {
	text, err := s.fetcher.Fetch(ctx, src.Source)
	if err != nil {
		return 0, err
	}
	items, err := s.parser.Parse(text)
	if err != nil {
		return 0, err
	}

	if err := s.store.UpdateFeedSourceFetched(src.ID, now); err != nil {
		s.logger.Error().Err(err).Int64("source_id", src.ID).Msg("update last fetched")
	}

	created := 0
	for _, item := range items {
		candidate, ok := MapItem(item, src.FieldMapping, src.StopTags)
		if !ok {
			continue // stop tag hit
		}
		if candidate.Title == "" || candidate.Body == "" {
			continue
		}

		createdAt := candidate.PublishedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		count, err := s.store.CountPostsByTitleAndDate(candidate.Title, createdAt)
		if err != nil {
			return created, fmt.Errorf("dedup check: %w", err)
		}
		if count > 0 {
			continue
		}

		post := model.Post{
			Title:       candidate.Title,
			Body:        candidate.Body,
			Description: candidate.Description,
			ImageURL:    candidate.ImageURL,
			Tags:        candidate.Tags,
			CreatedAt:   createdAt,
			Status:      model.StatusDefault,
		}
		// A store write failure aborts this source's remaining items for
		// the tick; the next sources still run.
		if _, err := s.store.CreatePost(&post); err != nil {
			return created, fmt.Errorf("create post: %w", err)
		}
		created++
	}
	return created, nil
}
