package media

import (
	"context"
	"fmt"
	"net/url"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"feedmix/internal/database"
)

// Reclaimer periodically deletes media rows with zero post and zero mixin
// references, together with their backing storage objects. Object and row
// deletion are not transactional with each other: a crash in between can
// leave a row pointing at an already-deleted object.
type Reclaimer struct {
	store    database.Store
	storage  ObjectStorage
	schedule string
	cron     *cron.Cron
	logger   zerolog.Logger
}

// NewReclaimer creates a reclaimer running on the given cron schedule.
func NewReclaimer(store database.Store, storage ObjectStorage, schedule string, logger zerolog.Logger) *Reclaimer {
	return &Reclaimer{
		store:    store,
		storage:  storage,
		schedule: schedule,
		logger:   logger.With().Str("component", "media-reclaimer").Logger(),
	}
}

// Start begins the periodic sweep on its own timer, independent of the
// feed scheduler.
func (r *Reclaimer) Start() error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.schedule, func() {
		r.Run(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule media reclaim: %w", err)
	}
	c.Start()
	r.cron = c
	r.logger.Info().Str("schedule", r.schedule).Msg("media reclaimer started")
	return nil
}

// Stop halts the timer and waits for a running sweep to finish.
func (r *Reclaimer) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	r.logger.Info().Msg("media reclaimer stopped")
}

// Run performs one sweep: storage objects are deleted for every orphan
// with a well-formed absolute URL (failures are logged per item and do
// not abort the batch), then the matched rows are bulk-deleted.
func (r *Reclaimer) Run(ctx context.Context) {
	orphans, err := r.store.FindOrphanedMedia()
	if err != nil {
		r.logger.Error().Err(err).Msg("find orphaned media")
		return
	}
	if len(orphans) == 0 {
		return
	}

	ids := make([]int64, 0, len(orphans))
	for _, m := range orphans {
		ids = append(ids, m.ID)
		if !isAbsoluteURL(m.URL) {
			continue
		}
		if err := r.storage.DeleteByURL(ctx, m.URL); err != nil {
			r.logger.Warn().Err(err).Int64("media_id", m.ID).Str("url", m.URL).Msg("delete storage object")
		}
	}

	if err := r.store.DeleteMedia(ids); err != nil {
		r.logger.Error().Err(err).Msg("delete media rows")
		return
	}
	r.logger.Info().Int("reclaimed", len(ids)).Msg("sweep complete")
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs() && u.Host != ""
}
