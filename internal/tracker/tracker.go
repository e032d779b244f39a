package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/batman-nair/TimeTrak/internal/metrics"
	"github.com/batman-nair/TimeTrak/internal/presence"
	"github.com/batman-nair/TimeTrak/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultPollInterval is used when no interval is configured.
const DefaultPollInterval = 60 * time.Second

// Tracker drives sample ingestion: once per interval it asks the presence
// source for every scope's currently present identities, filters out
// blacklisted ones, and feeds each eligible identity's activity snapshot into
// the session store.
type Tracker struct {
	store    storage.Store
	source   presence.Source
	interval time.Duration
	clock    Clock
	logger   zerolog.Logger

	// lastTick is only touched from the run goroutine.
	lastTick time.Time

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// Config holds tracker configuration
type Config struct {
	PollInterval time.Duration
	Clock        Clock
}

// New creates a tracker. It does not start ticking until Start is called.
func New(store storage.Store, source presence.Source, cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}

	return &Tracker{
		store:    store,
		source:   source,
		interval: cfg.PollInterval,
		clock:    cfg.Clock,
		logger:   logger.With().Str("component", "tracker").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start arms the first tick and begins the scheduler loop.
func (t *Tracker) Start() {
	t.wg.Add(1)
	go t.run()
	t.logger.Info().Dur("interval", t.interval).Msg("Tracker started")
}

// Stop prevents further ticks from being armed and waits for any in-flight
// tick to finish.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
	t.wg.Wait()
	t.logger.Info().Msg("Tracker stopped")
}

func (t *Tracker) run() {
	defer t.wg.Done()

	timer := time.NewTimer(t.interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			// Re-arm before doing the tick's work so a slow tick never
			// delays the next tick's scheduling.
			timer.Reset(t.interval)
			t.Tick(context.Background())
		case <-t.stopChan:
			return
		}
	}
}

// Tick runs one polling cycle across every known scope. The sample window is
// [previous tick time, now]; the first tick uses a zero-length window, which
// the merge treats as a legal zero-duration sample.
func (t *Tracker) Tick(ctx context.Context) {
	now := t.clock.Now()
	start := t.lastTick
	if start.IsZero() {
		start = now
	}

	began := time.Now()
	metrics.TicksTotal.Inc()

	scopes, err := t.source.Scopes(ctx)
	if err != nil {
		t.logger.Error().Err(err).Msg("Failed to list scopes from presence source")
		return
	}

	for _, scopeID := range scopes {
		t.tickScope(ctx, scopeID, start, now)
	}

	t.lastTick = now
	metrics.TickDuration.Observe(time.Since(began).Seconds())
}

func (t *Tracker) tickScope(ctx context.Context, scopeID string, start, end time.Time) {
	logger := t.logger.With().Str("scope", scopeID).Logger()

	// The eligible set is rebuilt from the presence source and blacklist
	// every tick; no long-lived membership state is carried between ticks.
	blacklisted, err := t.store.Blacklist().Get(ctx, scopeID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read blacklist, skipping scope this tick")
		return
	}

	identityIDs, err := t.source.Identities(ctx, scopeID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list identities from presence source")
		return
	}

	eligible := 0
	for _, identityID := range identityIDs {
		if _, excluded := blacklisted[identityID]; excluded {
			continue
		}
		eligible++
		t.tickIdentity(ctx, logger, scopeID, identityID, start, end)
	}
	metrics.TrackedIdentities.WithLabelValues(scopeID).Set(float64(eligible))
}

// tickIdentity samples one identity. Failures here are isolated: a bad
// record or a storage hiccup for one identity never aborts the rest of the
// tick, and storage errors are simply retried on the next scheduled tick.
func (t *Tracker) tickIdentity(ctx context.Context, logger zerolog.Logger, scopeID, identityID string, start, end time.Time) {
	names, err := t.source.Activities(ctx, scopeID, identityID)
	if err != nil {
		if errors.Is(err, presence.ErrIdentityNotFound) {
			logger.Debug().Str("identity", identityID).Msg("Identity absent from presence source, skipping")
			metrics.PresenceMisses.WithLabelValues(scopeID).Inc()
			return
		}
		logger.Warn().Err(err).Str("identity", identityID).Msg("Failed to fetch activity snapshot")
		return
	}

	if err := t.store.Sessions().AddActivitySample(ctx, scopeID, identityID, names, start, end); err != nil {
		logger.Error().Err(err).Str("identity", identityID).Msg("Failed to persist activity sample")
		metrics.StoreErrors.WithLabelValues(scopeID).Inc()
		return
	}
	metrics.SamplesRecorded.WithLabelValues(scopeID).Inc()
}
