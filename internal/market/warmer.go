package market

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/stupiduntilnot/cryptodesk/internal/cache"
)

// EntryFetcher is the subset of Fetcher used by the warmer.
type EntryFetcher interface {
	Fetch(ctx context.Context, ids []string) ([]cache.Entry, error)
}

// Warmer periodically fetches the top coins so that specific lookups for
// them hit the cache.
type Warmer struct {
	cron    *cron.Cron
	fetcher EntryFetcher
	timeout time.Duration
	log     zerolog.Logger
}

// NewWarmer creates an idle warmer.
func NewWarmer(fetcher EntryFetcher, timeout time.Duration, log zerolog.Logger) *Warmer {
	return &Warmer{
		cron:    cron.New(),
		fetcher: fetcher,
		timeout: timeout,
		log:     log.With().Str("component", "warmer").Logger(),
	}
}

// Schedule registers the top-N refresh under a cron spec such as
// "@every 30m" or "*/15 * * * *".
func (w *Warmer) Schedule(spec string) error {
	_, err := w.cron.AddFunc(spec, func() {
		if err := w.RunOnce(context.Background()); err != nil {
			w.log.Warn().Err(err).Msg("cache warm-up failed")
		}
	})
	if err != nil {
		return err
	}
	w.log.Info().Str("schedule", spec).Msg("cache warm-up registered")
	return nil
}

// RunOnce fetches the top coins immediately.
func (w *Warmer) RunOnce(ctx context.Context) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	entries, err := w.fetcher.Fetch(ctx, nil)
	if err != nil {
		return err
	}
	w.log.Debug().Int("entries", len(entries)).Msg("cache warmed")
	return nil
}

// Start starts the scheduler.
func (w *Warmer) Start() {
	w.cron.Start()
}

// Stop stops the scheduler and waits for a running job to finish.
func (w *Warmer) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
}
