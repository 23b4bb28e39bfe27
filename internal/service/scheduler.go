package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/connect4-backend/internal/entity"
	"github.com/rocketscienceinc/connect4-backend/internal/repository"
)

const DefaultRatchetGranularity = 10 * time.Second

type RunResult int

const (
	RunCovered RunResult = iota
	RunCreated
	RunExtended
)

func (that RunResult) String() string {
	switch that {
	case RunCreated:
		return "created"
	case RunExtended:
		return "extended"
	default:
		return "covered"
	}
}

type runMarkerRepo interface {
	Get(ctx context.Context) (*entity.RunMarker, error)
	CreateIfAbsent(ctx context.Context, runUntil time.Time) (bool, error)
	Extend(ctx context.Context, runUntil time.Time) (bool, error)
}

// Scheduler - keeps the aggregator's run window open long enough to cover every listing event.
type Scheduler struct {
	logger *slog.Logger

	marker      runMarkerRepo
	granularity time.Duration
}

func NewScheduler(logger *slog.Logger, marker runMarkerRepo, granularity time.Duration) *Scheduler {
	if granularity <= 0 {
		granularity = DefaultRatchetGranularity
	}

	return &Scheduler{
		logger:      logger.With("component", "scheduler"),
		marker:      marker,
		granularity: granularity,
	}
}

// Ceil - the next granularity boundary strictly after t.
func Ceil(t time.Time, granularity time.Duration) time.Time {
	return t.Truncate(granularity).Add(granularity)
}

// EnsureRun - ratchets the run marker forward to cover now. At most one write happens per
// granularity window no matter how many callers arrive inside it.
func (that *Scheduler) EnsureRun(ctx context.Context, now time.Time) (RunResult, error) {
	log := that.logger.With("method", "EnsureRun")

	candidate := Ceil(now, that.granularity)

	current, err := that.marker.Get(ctx)
	switch {
	case errors.Is(err, repository.ErrRunMarkerNotFound):
		created, err := that.marker.CreateIfAbsent(ctx, candidate)
		if err != nil {
			log.Warn("failed to create run marker", "error", err)
		}
		if created {
			log.Debug("run marker created", "runUntil", candidate)
			return RunCreated, nil
		}
	case err != nil:
		return RunCovered, fmt.Errorf("failed to read run marker: %w", err)
	case !candidate.After(current.RunUntil):
		return RunCovered, nil
	}

	// a concurrent creator may have written an earlier deadline, so the lost race goes
	// through the compare-and-swap as well
	extended, err := that.marker.Extend(ctx, candidate)
	if err != nil {
		return RunCovered, fmt.Errorf("failed to extend run marker: %w", err)
	}

	if !extended {
		return RunCovered, nil
	}

	log.Debug("run marker extended", "runUntil", candidate)

	return RunExtended, nil
}
