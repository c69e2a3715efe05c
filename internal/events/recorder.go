package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doorlink/intercom-core/internal/helios"
	"github.com/doorlink/intercom-core/internal/infrastructure/logging"
)

// pruneInterval is how often the recorder trims the archive to the
// configured retention.
const pruneInterval = time.Hour

// RecorderConfig contains recorder dependencies and timing.
type RecorderConfig struct {
	// Logs is the device log gateway the recorder polls.
	Logs *helios.Logs

	// Store archives pulled events.
	Store *Store

	// Logger for operational logging. Required.
	Logger *logging.Logger

	// WindowDays caps the trailing window requested when (re)subscribing.
	// When the archive already holds recent events the window shrinks to
	// just cover the gap; the archive's unique constraint absorbs the
	// remaining overlap.
	WindowDays int

	// PollInterval is the delay between pulls.
	PollInterval time.Duration

	// Retention is how long archived events are kept. Zero disables
	// pruning.
	Retention time.Duration

	// OnEvent, if set, is invoked for each newly archived event, in pull
	// order. Re-pulled duplicates do not trigger it.
	OnEvent func(ArchivedEvent)
}

// Recorder continuously mirrors the device's access log into the archive.
//
// It holds one device-side subscription at a time. A pull the device
// rejects (typically because it expired the subscription while the daemon
// was unreachable) triggers a re-subscribe on the next cycle; transport
// errors leave the subscription alone and retry.
type Recorder struct {
	cfg RecorderConfig
	log *logging.Logger

	subscriptionID int64
	subscribed     bool
}

// NewRecorder creates a recorder. Call Run to start it.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.Logs == nil {
		return nil, fmt.Errorf("events: log gateway is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("events: store is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("events: logger is required")
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = helios.DefaultLogWindow
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}

	return &Recorder{
		cfg: cfg,
		log: cfg.Logger.With("component", "events.recorder"),
	}, nil
}

// Run polls the device until ctx is cancelled. It blocks; run it in its
// own goroutine. The device-side subscription is closed on the way out.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	pruneTicker := time.NewTicker(pruneInterval)
	defer pruneTicker.Stop()

	// First cycle immediately rather than waiting a full interval.
	r.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			r.unsubscribe()
			return
		case <-ticker.C:
			r.cycle(ctx)
		case <-pruneTicker.C:
			r.prune(ctx)
		}
	}
}

// cycle runs one subscribe-if-needed + pull round.
func (r *Recorder) cycle(ctx context.Context) {
	if !r.subscribed {
		window := r.subscriptionWindow(ctx)
		id, err := r.cfg.Logs.Subscribe(ctx, window)
		if err != nil {
			r.log.Warn("log subscription failed", "error", err)
			return
		}
		r.subscriptionID = id
		r.subscribed = true
		r.log.Info("subscribed to device log", "subscription_id", id, "window_days", window)
	}

	pulled, err := r.cfg.Logs.Pull(ctx, r.subscriptionID)
	if err != nil {
		var devErr *helios.DeviceError
		if errors.As(err, &devErr) {
			// The device no longer recognizes the subscription.
			// Resubscribe next cycle; the archive dedupes the replay.
			r.log.Warn("device rejected pull, will resubscribe",
				"subscription_id", r.subscriptionID,
				"code", devErr.Code,
			)
			r.subscribed = false
			return
		}
		r.log.Warn("log pull failed", "error", err)
		return
	}

	for _, ev := range pulled {
		fresh, err := r.cfg.Store.Insert(ctx, ev)
		if err != nil {
			r.log.Error("archiving event failed", "device_event_id", ev.ID, "error", err)
			continue
		}
		if !fresh {
			continue
		}

		r.log.Info("access event archived",
			"device_event_id", ev.ID,
			"type", ev.Type,
			"user", ev.Params.Name,
		)

		if r.cfg.OnEvent != nil {
			r.cfg.OnEvent(ArchivedEvent{
				DeviceEventID: ev.ID,
				Type:          ev.Type,
				UserName:      ev.Params.Name,
				Time:          time.Unix(ev.UTCTime, 0).UTC(),
			})
		}
	}
}

// subscriptionWindow sizes the trailing window for the next subscription.
// When the archive already covers part of the window the request is
// shrunk to overlap the newest archived event plus one day, so a restart
// replays a day of dedupable events instead of the full configured
// window. An empty archive, or a latest event older than the window,
// falls back to WindowDays.
func (r *Recorder) subscriptionWindow(ctx context.Context) int {
	latest, err := r.cfg.Store.LatestDeviceTime(ctx)
	if err != nil {
		r.log.Warn("sizing subscription window failed", "error", err)
		return r.cfg.WindowDays
	}
	if latest.IsZero() {
		return r.cfg.WindowDays
	}

	days := int(time.Since(latest).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	if days > r.cfg.WindowDays {
		days = r.cfg.WindowDays
	}
	return days
}

// prune trims the archive to the configured retention.
func (r *Recorder) prune(ctx context.Context) {
	if r.cfg.Retention <= 0 {
		return
	}

	deleted, err := r.cfg.Store.Prune(ctx, r.cfg.Retention)
	if err != nil {
		r.log.Error("pruning archive failed", "error", err)
		return
	}
	if deleted > 0 {
		r.log.Info("pruned archived events", "deleted", deleted)
	}
}

// unsubscribe closes the device-side subscription, best effort.
func (r *Recorder) unsubscribe() {
	if !r.subscribed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.cfg.Logs.Unsubscribe(ctx, r.subscriptionID); err != nil {
		r.log.Warn("closing log subscription failed", "subscription_id", r.subscriptionID, "error", err)
		return
	}
	r.subscribed = false
}
