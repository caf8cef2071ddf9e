package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TTLPolicy assigns cache lifetimes by role.
type TTLPolicy struct {
	Privileged time.Duration
	User       time.Duration
}

// DefaultTTLPolicy keeps admin aggregates for half an hour and user views for five minutes.
var DefaultTTLPolicy = TTLPolicy{Privileged: 30 * time.Minute, User: 5 * time.Minute}

// For returns the TTL applied to entries computed for role.
func (p TTLPolicy) For(role Role) time.Duration {
	switch role.(type) {
	case FounderRole, CentralRole, SiteAdminRole:
		return p.Privileged
	}
	return p.User
}

// StatsResult is the statistics view returned to callers.
type StatsResult struct {
	Data        AggregateStats
	Stale       bool
	Partial     bool
	FailedCamps int
}

// StatsTarget selects what InvalidateStatsFor drops. Exactly one field is set.
type StatsTarget struct {
	CampID string
	Site   string
}

// StatsService serves cached aggregates and visible camp lists. Stale entries
// are returned immediately while a detached refresh recomputes them.
type StatsService struct {
	camps          CampReader
	aggregator     *Aggregator
	cache          *StatsCache
	ttl            TTLPolicy
	refreshTimeout time.Duration
	metrics        *Metrics
	logger         *slog.Logger

	group     singleflight.Group
	refreshes sync.WaitGroup
}

// StatsServiceConfig carries the optional settings of a StatsService.
type StatsServiceConfig struct {
	TTL            TTLPolicy
	RefreshTimeout time.Duration
	Metrics        *Metrics
	Logger         *slog.Logger
}

// NewStatsService constructs a stats service over the given collaborators.
func NewStatsService(camps CampReader, aggregator *Aggregator, cache *StatsCache, cfg StatsServiceConfig) *StatsService {
	ttl := cfg.TTL
	if ttl.Privileged <= 0 {
		ttl.Privileged = DefaultTTLPolicy.Privileged
	}
	if ttl.User <= 0 {
		ttl.User = DefaultTTLPolicy.User
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = time.Minute
	}
	return &StatsService{
		camps:          camps,
		aggregator:     aggregator,
		cache:          cache,
		ttl:            ttl,
		refreshTimeout: cfg.RefreshTimeout,
		metrics:        cfg.Metrics,
		logger:         defaultLogger(cfg.Logger),
	}
}

func (s *StatsService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "StatsService", operation, attrs...)
}

// computeFunc produces a payload for the principal. cacheable is false when
// the payload must not be stored, such as a degraded result.
type computeFunc func(ctx context.Context, principal Principal) (payload CachePayload, cacheable bool, err error)

type computed struct {
	payload   CachePayload
	cacheable bool
}

// GetAggregateStats returns the principal's aggregate. It never fails on
// record store errors: the result is zero or stale data flagged accordingly.
// Only a principal whose identity or role cannot be resolved is rejected.
func (s *StatsService) GetAggregateStats(ctx context.Context, principal Principal) (result StatsResult, err error) {
	if s == nil {
		err = fmt.Errorf("StatsService is nil")
		return
	}
	logger := s.loggerWith(ctx, "GetAggregateStats", principalAttrs(principal)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to get aggregate stats", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"stale", result.Stale,
			"partial", result.Partial,
			"failed_camps", result.FailedCamps,
		).InfoContext(ctx, "aggregate stats served")
	}()

	if err = requireIdentity(principal); err != nil {
		return
	}

	var (
		payload CachePayload
		stale   bool
	)
	payload, stale, err = s.lookup(ctx, logger, KindAggregate, principal, s.computeAggregate)
	if err != nil {
		return
	}
	stats, _ := payload.(AggregateStats)
	result = StatsResult{
		Data:        stats,
		Stale:       stale,
		Partial:     stats.Partial,
		FailedCamps: stats.FailedCamps,
	}
	return
}

// ListVisibleCamps returns the camps the principal may see, served through the cache.
func (s *StatsService) ListVisibleCamps(ctx context.Context, principal Principal) (camps []Camp, stale bool, err error) {
	if s == nil {
		err = fmt.Errorf("StatsService is nil")
		return
	}
	logger := s.loggerWith(ctx, "ListVisibleCamps", principalAttrs(principal)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list visible camps", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(camps), "stale", stale).InfoContext(ctx, "visible camps listed")
	}()

	if err = requireIdentity(principal); err != nil {
		return
	}

	var payload CachePayload
	payload, stale, err = s.lookup(ctx, logger, KindCamps, principal, s.computeCampList)
	if err != nil {
		return
	}
	list, _ := payload.(CampList)
	camps = []Camp(list)
	return
}

// InvalidateStatsFor drops every cached view covering a camp or a site. It is
// the manual hook used after bulk operations such as spreadsheet imports. A
// camp target requires write access to the camp.
func (s *StatsService) InvalidateStatsFor(ctx context.Context, principal Principal, target StatsTarget) (removed int, err error) {
	if s == nil {
		err = fmt.Errorf("StatsService is nil")
		return
	}
	target.CampID = strings.TrimSpace(target.CampID)
	target.Site = strings.TrimSpace(target.Site)

	logger := s.loggerWith(ctx, "InvalidateStatsFor", append(principalAttrs(principal),
		"camp_id", target.CampID,
		"site", target.Site,
	)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to invalidate stats", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("entries", removed).InfoContext(ctx, "stats invalidated")
	}()

	if err = requireIdentity(principal); err != nil {
		return
	}
	if (target.CampID == "") == (target.Site == "") {
		vErr := &ValidationError{}
		vErr.add("target", "exactly one of camp_id or site is required")
		err = vErr
		return
	}

	global := ModeFor(principal.Role) == ModeGlobal
	if target.Site != "" {
		var invalidation InvalidationTarget
		invalidation, err = s.siteTarget(ctx, logger, principal, global, target.Site)
		if err != nil {
			return
		}
		removed = s.cache.InvalidateMatching(TriggerManual, invalidation)
		return
	}

	camp := Camp{ID: target.CampID}
	if s.camps != nil {
		loaded, lookupErr := s.camps.GetCamp(ctx, target.CampID)
		switch {
		case lookupErr == nil:
			camp = loaded
		case !global:
			err = mapRepoError(lookupErr, "", "")
			return
		default:
			iErr := &InvalidationError{Trigger: TriggerManual, CampID: target.CampID, Err: lookupErr}
			logger.ErrorContext(ctx, "cache invalidation incomplete", "error", iErr, "error_kind", ErrorKind(iErr))
		}
	}
	if !global && !CanWrite(principal, camp) {
		err = ErrUnauthorized
		return
	}
	removed = s.cache.InvalidateMatching(TriggerManual, TargetForCamps(camp))
	return
}

// siteTarget covers the site scope plus every view of the camps located at
// site. Global roles and the site's admin may drop it; anyone else needs
// write access to one of its camps.
func (s *StatsService) siteTarget(ctx context.Context, logger *slog.Logger, principal Principal, global bool, site string) (InvalidationTarget, error) {
	admin := false
	if role, ok := principal.Role.(SiteAdminRole); ok {
		admin = role.Site == site
	}
	trusted := global || admin

	var (
		camps   []Camp
		listErr error
	)
	if s.camps != nil {
		camps, listErr = s.camps.ListCamps(ctx, CampFilter{Site: site})
	}
	if listErr != nil {
		iErr := &InvalidationError{Trigger: TriggerManual, Site: site, Err: listErr}
		if !trusted {
			return InvalidationTarget{}, iErr
		}
		logger.ErrorContext(ctx, "cache invalidation incomplete", "error", iErr, "error_kind", ErrorKind(iErr))
		camps = nil
	}
	if !trusted && !canWriteAny(principal, camps) {
		return InvalidationTarget{}, ErrUnauthorized
	}

	target := TargetForCamps(camps...)
	target.Sites = appendUnique(target.Sites, site)
	return target, nil
}

func canWriteAny(principal Principal, camps []Camp) bool {
	for _, camp := range camps {
		if CanWrite(principal, camp) {
			return true
		}
	}
	return false
}

// EndSession tears down every cached view of a user at logout.
func (s *StatsService) EndSession(ctx context.Context, userID string) int {
	if s == nil {
		return 0
	}
	removed := s.cache.InvalidateUser(userID)
	s.loggerWith(ctx, "EndSession", "principal_id", userID).
		InfoContext(ctx, "session cache cleared", "entries", removed)
	return removed
}

// Wait blocks until every background refresh has finished.
func (s *StatsService) Wait() {
	if s == nil {
		return
	}
	s.refreshes.Wait()
}

func (s *StatsService) lookup(ctx context.Context, logger *slog.Logger, kind CacheKind, principal Principal, compute computeFunc) (CachePayload, bool, error) {
	key := CacheKeyFor(kind, principal)
	entry, status := s.cache.Get(key, FingerprintOf(principal))
	switch status {
	case CacheFresh:
		return entry.Payload, false, nil
	case CacheStale:
		s.refreshInBackground(ctx, key, principal, compute)
		return entry.Payload, true, nil
	}

	generation := s.cache.Generation()
	value, err, _ := s.group.Do(flightKey(key, generation), func() (any, error) {
		return s.computeAndStore(ctx, key, generation, principal, compute)
	})
	if err != nil {
		return nil, false, err
	}
	result := value.(computed)
	if !result.cacheable {
		logger.WarnContext(ctx, "serving degraded result without caching", "kind", kind)
	}
	return result.payload.clonePayload(), false, nil
}

// flightKey coalesces computations of key started within one cache
// generation. A request arriving after an invalidation never joins a
// computation that began before it.
func flightKey(key string, generation uint64) string {
	return key + "#" + strconv.FormatUint(generation, 10)
}

func (s *StatsService) computeAndStore(ctx context.Context, key string, generation uint64, principal Principal, compute computeFunc) (computed, error) {
	payload, cacheable, err := compute(ctx, principal)
	if err != nil {
		return computed{}, err
	}
	if cacheable {
		s.cache.Set(key, payload, s.ttl.For(principal.Role), FingerprintOf(principal), ScopeOf(principal), generation)
	}
	return computed{payload: payload, cacheable: cacheable}, nil
}

// refreshInBackground recomputes a stale entry detached from the caller's
// cancellation. Concurrent refreshes of one key are coalesced.
func (s *StatsService) refreshInBackground(ctx context.Context, key string, principal Principal, compute computeFunc) {
	logger := s.loggerWith(ctx, "refresh", append(principalAttrs(principal), "key", key)...)
	refreshCtx := context.WithoutCancel(ctx)

	s.refreshes.Add(1)
	go func() {
		defer s.refreshes.Done()
		ctx, cancel := context.WithTimeout(refreshCtx, s.refreshTimeout)
		defer cancel()

		generation := s.cache.Generation()
		value, err, _ := s.group.Do(flightKey(key, generation), func() (any, error) {
			return s.computeAndStore(ctx, key, generation, principal, compute)
		})
		switch {
		case err != nil:
			s.metrics.refreshed("error")
			logger.WarnContext(ctx, "background refresh failed", "error", err, "error_kind", ErrorKind(err))
		case !value.(computed).cacheable:
			s.metrics.refreshed("degraded")
			logger.WarnContext(ctx, "background refresh degraded, keeping stale entry")
		default:
			s.metrics.refreshed("ok")
			logger.DebugContext(ctx, "background refresh completed")
		}
	}()
}

func (s *StatsService) computeAggregate(ctx context.Context, principal Principal) (CachePayload, bool, error) {
	camps, err := s.listCamps(ctx)
	if err != nil {
		s.loggerWith(ctx, "computeAggregate", principalAttrs(principal)...).
			WarnContext(ctx, "camp listing failed, returning empty partial aggregate", "error", err, "error_kind", ErrorKind(err))
		return AggregateStats{
			Mode:                ModeFor(principal.Role),
			SiteAttributionAxis: axisFor(principal.Role),
			Partial:             true,
			PerSite:             map[string]SiteStat{},
			PerCamp:             map[string]CampStat{},
			ComputedAt:          s.aggregator.now(),
		}, false, nil
	}
	stats := s.aggregator.Aggregate(ctx, principal, camps)
	return stats, !stats.Partial, nil
}

func (s *StatsService) computeCampList(ctx context.Context, principal Principal) (CachePayload, bool, error) {
	camps, err := s.listCamps(ctx)
	if err != nil {
		return nil, false, err
	}
	return CampList(ResolveVisibleCamps(principal, camps)), true, nil
}

// listCamps loads every camp; visibility is applied by the resolver.
func (s *StatsService) listCamps(ctx context.Context) ([]Camp, error) {
	if s.camps == nil {
		return nil, nil
	}
	return s.camps.ListCamps(ctx, CampFilter{})
}

func axisFor(role Role) AttributionAxis {
	if ModeFor(role) == ModeGlobal {
		return AxisWorkerProject
	}
	return AxisCampSite
}

// requireIdentity rejects principals whose identity or role cannot be resolved.
func requireIdentity(principal Principal) error {
	if principal.Role == nil || strings.TrimSpace(principal.UserID) == "" {
		return ErrAccessUndetermined
	}
	return nil
}
