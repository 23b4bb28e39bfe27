package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/connect4-backend/internal/entity"
	"github.com/rocketscienceinc/connect4-backend/internal/repository"
)

const (
	DefaultDrainInterval = time.Second
	DefaultDrainLease    = 30 * time.Second
	DefaultDrainBatch    = 1000

	leaseReleaseTimeout = 5 * time.Second
)

var ErrSubscriptionClosed = errors.New("run marker subscription closed")

type eventSource interface {
	Pending(ctx context.Context, limit int64) ([]entity.ListingEvent, error)
	Delete(ctx context.Context, ids ...string) error
}

type listingWriter interface {
	Merge(ctx context.Context, update entity.ListingUpdate) error
}

type runMarkerReader interface {
	Get(ctx context.Context) (*entity.RunMarker, error)
}

type leaser interface {
	Acquire(ctx context.Context, ttl time.Duration) (*repository.Lease, bool, error)
}

type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (<-chan string, error)
}

type AggregatorConfig struct {
	Logger     *slog.Logger
	Events     eventSource
	Listing    listingWriter
	Marker     runMarkerReader
	Leases     leaser
	Subscriber subscriber
	Clock      func() time.Time
	Interval   time.Duration
	LeaseTTL   time.Duration
	BatchSize  int64
}

// DrainStats - what one drain cycle did.
type DrainStats struct {
	Events  int
	Set     int
	Removed int
	Written bool
}

// Aggregator - drains listing events into the public listing while the run marker is open.
// One drain loop runs per process, and the drain lease keeps it to one per cluster.
type Aggregator struct {
	logger *slog.Logger

	events     eventSource
	listing    listingWriter
	marker     runMarkerReader
	leases     leaser
	subscriber subscriber
	clock      func() time.Time
	interval   time.Duration
	leaseTTL   time.Duration
	batchSize  int64

	mu        sync.Mutex
	running   bool
	pending   bool
	lastDrain time.Time
	wg        sync.WaitGroup
}

func NewAggregator(conf AggregatorConfig) *Aggregator {
	agg := &Aggregator{
		logger:     conf.Logger.With("component", "aggregator"),
		events:     conf.Events,
		listing:    conf.Listing,
		marker:     conf.Marker,
		leases:     conf.Leases,
		subscriber: conf.Subscriber,
		clock:      conf.Clock,
		interval:   conf.Interval,
		leaseTTL:   conf.LeaseTTL,
		batchSize:  conf.BatchSize,
	}

	if agg.clock == nil {
		agg.clock = time.Now
	}
	if agg.interval <= 0 {
		agg.interval = DefaultDrainInterval
	}
	if agg.leaseTTL <= 0 {
		agg.leaseTTL = DefaultDrainLease
	}
	if agg.batchSize <= 0 {
		agg.batchSize = DefaultDrainBatch
	}

	return agg
}

// Run - wakes the drain loop on every run marker change until ctx is done.
func (that *Aggregator) Run(ctx context.Context) error {
	log := that.logger.With("method", "Run")

	triggers, err := that.subscriber.Subscribe(ctx, repository.RunMarkerChannel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to run marker: %w", err)
	}

	defer that.wg.Wait()

	log.Info("aggregator started")

	// the marker may already be open from before this process started
	that.Trigger(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("aggregator stopped")
			return nil
		case _, ok := <-triggers:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrSubscriptionClosed
			}

			that.Trigger(ctx)
		}
	}
}

// Trigger - starts the drain loop, or flags the running one to look at the marker again.
func (that *Aggregator) Trigger(ctx context.Context) {
	that.mu.Lock()
	if that.running {
		that.pending = true
		that.mu.Unlock()
		return
	}

	that.running = true
	that.pending = false
	that.mu.Unlock()

	that.wg.Add(1)
	go func() {
		defer that.wg.Done()
		that.drainLoop(ctx)
	}()
}

// Wait - blocks until the current drain loop, if any, has exited.
func (that *Aggregator) Wait() {
	that.wg.Wait()
}

func (that *Aggregator) drainLoop(ctx context.Context) {
	for {
		held := that.drainWindow(ctx)

		// a trigger may have landed after the last marker read but before the lease was released
		again := held && ctx.Err() == nil && that.windowOpen(ctx)

		that.mu.Lock()
		if ctx.Err() != nil || (!again && !that.pending) {
			that.running = false
			that.mu.Unlock()
			return
		}
		that.pending = false
		that.mu.Unlock()
	}
}

// drainWindow - drains once per interval until a drain has started at or after runUntil.
// Reports whether this process held the lease.
func (that *Aggregator) drainWindow(ctx context.Context) bool {
	log := that.logger.With("method", "drainWindow")

	marker, err := that.marker.Get(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrRunMarkerNotFound) {
			log.Error("failed to read run marker", "error", err)
		}
		return false
	}

	if !that.clock().Before(marker.RunUntil) {
		return false
	}

	lease, ok, err := that.leases.Acquire(ctx, that.leaseTTL)
	if err != nil {
		log.Error("failed to acquire drain lease", "error", err)
		return false
	}

	if !ok {
		log.Debug("drain lease is held by another process")
		return false
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), leaseReleaseTimeout)
		defer cancel()

		if err := lease.Release(releaseCtx); err != nil {
			log.Error("failed to release drain lease", "error", err)
		}
	}()

	log.Info("drain window opened", "runUntil", marker.RunUntil)

	// a window resumed right after the previous one still keeps one drain per interval
	if wait := that.untilNextDrain(); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return true
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(that.interval)
	defer ticker.Stop()

	runUntil := marker.RunUntil
	for {
		started := that.clock()
		that.markDrain(started)

		if _, err = that.DrainOnce(ctx); err != nil {
			log.Error("drain cycle failed, retrying next tick", "error", err)
		}

		if current, err := that.marker.Get(ctx); err == nil {
			runUntil = current.RunUntil
		} else if ctx.Err() == nil {
			log.Error("failed to reread run marker", "error", err)
		}

		if !started.Before(runUntil) {
			log.Info("drain window closed", "runUntil", runUntil)
			return true
		}

		select {
		case <-ctx.Done():
			return true
		case <-ticker.C:
		}

		renewed, err := lease.Renew(ctx)
		if err != nil || !renewed {
			log.Error("lost drain lease", "error", err)
			return true
		}
	}
}

func (that *Aggregator) markDrain(at time.Time) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.lastDrain = at
}

func (that *Aggregator) untilNextDrain() time.Duration {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.lastDrain.IsZero() {
		return 0
	}

	return that.interval - that.clock().Sub(that.lastDrain)
}

func (that *Aggregator) windowOpen(ctx context.Context) bool {
	marker, err := that.marker.Get(ctx)
	if err != nil {
		return false
	}

	return that.clock().Before(marker.RunUntil)
}

// DrainOnce - folds every pending event into one listing write and deletes the drained
// events. Nothing is written when there is nothing to apply.
func (that *Aggregator) DrainOnce(ctx context.Context) (DrainStats, error) {
	log := that.logger.With("method", "DrainOnce")

	events, err := that.events.Pending(ctx, that.batchSize)
	if err != nil {
		return DrainStats{}, fmt.Errorf("failed to read pending events: %w", err)
	}

	if len(events) == 0 {
		return DrainStats{}, nil
	}

	ids := make([]string, 0, len(events))
	valid := make([]entity.ListingEvent, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.ID)

		if event.GameID == "" {
			log.Warn("dropping malformed listing event", "eventID", event.ID)
			continue
		}

		valid = append(valid, event)
	}

	update := entity.FoldListingEvents(valid)

	stats := DrainStats{
		Events:  len(events),
		Set:     len(update.Set),
		Removed: len(update.Remove),
	}

	if !update.IsEmpty() {
		if err = that.listing.Merge(ctx, update); err != nil {
			return stats, fmt.Errorf("failed to merge listing: %w", err)
		}

		stats.Written = true
	}

	if err = that.events.Delete(ctx, ids...); err != nil {
		return stats, fmt.Errorf("failed to delete drained events: %w", err)
	}

	log.Debug("drained listing events", "events", stats.Events, "set", stats.Set, "removed", stats.Removed)

	return stats, nil
}
