package application

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// campCollector is satisfied by *StatCollector.
type campCollector interface {
	Collect(ctx context.Context, camp Camp) (CampStat, error)
}

// Aggregator combines per-camp statistics into role-specific aggregates.
type Aggregator struct {
	collector   campCollector
	concurrency int
	now         func() time.Time
	metrics     *Metrics
	logger      *slog.Logger
}

// NewAggregator constructs an aggregator running at most concurrency collections at once.
func NewAggregator(collector campCollector, concurrency int, now func() time.Time, metrics *Metrics, logger *slog.Logger) *Aggregator {
	if concurrency <= 0 {
		concurrency = 8
	}
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		collector:   collector,
		concurrency: concurrency,
		now:         now,
		metrics:     metrics,
		logger:      defaultLogger(logger),
	}
}

// ModeFor selects the aggregation mode for a role.
func ModeFor(role Role) AggregationMode {
	switch role.(type) {
	case FounderRole, CentralRole:
		return ModeGlobal
	}
	return ModeScoped
}

type collectResult struct {
	stat CampStat
	err  error
}

// Aggregate restricts camps to the principal's visible set, collects every
// camp concurrently and combines the results. Collection failures never abort
// the aggregate; they are counted and flag it partial.
func (a *Aggregator) Aggregate(ctx context.Context, principal Principal, camps []Camp) AggregateStats {
	started := a.now()
	mode := ModeFor(principal.Role)
	logger := serviceLogger(ctx, a.logger, "Aggregator", "Aggregate", principalAttrs(principal)...)

	visible, scopeErr := resolveVisibleCamps(principal, camps)
	if scopeErr != nil {
		logger.WarnContext(ctx, "scope resolution failed closed", "error", scopeErr, "error_kind", ErrorKind(scopeErr))
	}

	results := make([]collectResult, len(visible))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, camp := range visible {
		g.Go(func() error {
			stat, err := a.collector.Collect(ctx, camp)
			results[i] = collectResult{stat: stat, err: err}
			return nil
		})
	}
	_ = g.Wait()

	stats := combine(mode, visible, results)
	stats.ComputedAt = a.now()
	a.metrics.aggregated(mode, stats.ComputedAt.Sub(started))

	logger.DebugContext(ctx, "aggregate computed",
		"mode", mode,
		"camps", stats.TotalCamps,
		"failed_camps", stats.FailedCamps,
		"total_workers", stats.TotalWorkers,
	)
	return stats
}

// combine folds collected camp statistics into an aggregate. Sums use
// unrounded integer counts; rates are rounded once, from the sums.
func combine(mode AggregationMode, camps []Camp, results []collectResult) AggregateStats {
	stats := AggregateStats{
		Mode:                mode,
		SiteAttributionAxis: AxisCampSite,
		TotalCamps:          len(camps),
		PerSite:             make(map[string]SiteStat),
		PerCamp:             make(map[string]CampStat, len(camps)),
	}
	if mode == ModeGlobal {
		stats.SiteAttributionAxis = AxisWorkerProject
	}

	for i, camp := range camps {
		site := stats.PerSite[camp.Site]
		site.Camps++
		stats.PerSite[camp.Site] = site

		result := results[i]
		if result.err != nil {
			stats.FailedCamps++
			stats.FailedCampIDs = append(stats.FailedCampIDs, camp.ID)
			continue
		}
		stat := result.stat
		stats.PerCamp[camp.ID] = stat
		stats.TotalWorkers += stat.TotalWorkers
		stats.TotalBeds += stat.TotalCapacity
		stats.OccupiedBeds += stat.OccupiedBeds
		stats.Violations = append(stats.Violations, stat.Violations...)

		if mode == ModeGlobal {
			for name, share := range stat.PerSite {
				entry := stats.PerSite[name]
				entry.Workers += share.Workers
				entry.Capacity += share.Capacity
				stats.PerSite[name] = entry
			}
			continue
		}
		site = stats.PerSite[camp.Site]
		site.Workers += stat.TotalWorkers
		site.Capacity += stat.TotalCapacity
		stats.PerSite[camp.Site] = site
	}

	for name, site := range stats.PerSite {
		site.OccupancyRate = displayRate(site.Workers, site.Capacity)
		stats.PerSite[name] = site
	}
	stats.AvailableBeds = stats.TotalBeds - stats.OccupiedBeds
	stats.OccupancyRate = displayRate(stats.TotalWorkers, stats.TotalBeds)
	stats.TotalSites = len(stats.PerSite)
	stats.Partial = stats.FailedCamps > 0
	sort.Strings(stats.FailedCampIDs)
	sort.Slice(stats.Violations, func(i, j int) bool {
		if stats.Violations[i].CampID == stats.Violations[j].CampID {
			return stats.Violations[i].RoomID < stats.Violations[j].RoomID
		}
		return stats.Violations[i].CampID < stats.Violations[j].CampID
	})
	return stats
}
