package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// StatCollector produces the statistic record of a single camp.
type StatCollector struct {
	rooms   RoomReader
	workers WorkerReader
	timeout time.Duration
	metrics *Metrics
	logger  *slog.Logger
}

// NewStatCollector constructs a collector bounding each camp to timeout.
func NewStatCollector(rooms RoomReader, workers WorkerReader, timeout time.Duration, metrics *Metrics, logger *slog.Logger) *StatCollector {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StatCollector{
		rooms:   rooms,
		workers: workers,
		timeout: timeout,
		metrics: metrics,
		logger:  defaultLogger(logger),
	}
}

// Collect fetches the camp's rooms and workers concurrently and computes its
// statistics. Any failure, including the per-camp timeout, is returned as a
// *CollectionError.
func (c *StatCollector) Collect(ctx context.Context, camp Camp) (CampStat, error) {
	collectCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		rooms   []Room
		workers []Worker
	)
	g, gctx := errgroup.WithContext(collectCtx)
	g.Go(func() error {
		var err error
		rooms, err = c.rooms.ListRooms(gctx, camp.ID)
		return err
	})
	g.Go(func() error {
		var err error
		workers, err = c.workers.ListWorkers(gctx, camp.ID)
		return err
	})
	err := g.Wait()
	if err == nil {
		// A store that ignores cancellation may still return after the deadline.
		err = collectCtx.Err()
	}
	if err != nil {
		cErr := &CollectionError{
			CampID:  camp.ID,
			Timeout: errors.Is(err, context.DeadlineExceeded) || errors.Is(collectCtx.Err(), context.DeadlineExceeded),
			Err:     err,
		}
		outcome := "error"
		if cErr.Timeout {
			outcome = "timeout"
		}
		c.metrics.collected(outcome)
		serviceLogger(ctx, c.logger, "StatCollector", "Collect", "camp_id", camp.ID).
			WarnContext(ctx, "camp collection failed", "error", err, "error_kind", ErrorKind(cErr), "timeout", cErr.Timeout)
		return CampStat{}, cErr
	}

	c.metrics.collected("ok")
	return computeCampStat(camp, rooms, workers), nil
}
