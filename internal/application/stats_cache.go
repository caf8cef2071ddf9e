package application

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheKind separates the payload families stored in the statistics cache.
type CacheKind string

const (
	// KindAggregate entries hold an AggregateStats payload.
	KindAggregate CacheKind = "aggregate"
	// KindCamps entries hold the visible camp list.
	KindCamps CacheKind = "camps"
)

// CacheStatus is the outcome of a cache lookup.
type CacheStatus int

const (
	// CacheMiss means no servable entry exists and the caller must compute.
	CacheMiss CacheStatus = iota
	// CacheFresh means the entry is within its TTL.
	CacheFresh
	// CacheStale means the entry is past its TTL and a refresh is recommended.
	CacheStale
)

// Fingerprint captures the principal attributes whose change invalidates an entry regardless of TTL.
type Fingerprint string

// CachePayload is a value stored in the statistics cache.
type CachePayload interface {
	campIDs() []string
	clonePayload() CachePayload
}

// CampList is the visible camp list cache payload.
type CampList []Camp

func (l CampList) campIDs() []string {
	ids := make([]string, 0, len(l))
	for _, camp := range l {
		ids = append(ids, camp.ID)
	}
	return ids
}

func (l CampList) clonePayload() CachePayload {
	out := make(CampList, len(l))
	for i, camp := range l {
		camp.SharedWithSites = append([]string(nil), camp.SharedWithSites...)
		camp.SharedWith = append([]CampShare(nil), camp.SharedWith...)
		out[i] = camp
	}
	return out
}

func (s AggregateStats) campIDs() []string {
	ids := make([]string, 0, len(s.PerCamp)+len(s.FailedCampIDs))
	for id := range s.PerCamp {
		ids = append(ids, id)
	}
	return append(ids, s.FailedCampIDs...)
}

func (s AggregateStats) clonePayload() CachePayload {
	return cloneAggregate(s)
}

// EntryScope records whose view an entry holds so invalidation can target it.
type EntryScope struct {
	UserID string
	Email  string
	Site   string
	Global bool
}

// ScopeOf derives the entry scope for a principal's view.
func ScopeOf(principal Principal) EntryScope {
	scope := EntryScope{UserID: principal.UserID, Email: normalizeEmail(principal.Email)}
	switch role := principal.Role.(type) {
	case FounderRole, CentralRole:
		scope.Global = true
	case SiteAdminRole:
		scope.Site = role.Site
	}
	return scope
}

// CacheKeyFor namespaces an entry by kind, user identity and, for site
// admins, the active site.
func CacheKeyFor(kind CacheKind, principal Principal) string {
	key := string(kind) + "|" + principal.UserID
	if role, ok := principal.Role.(SiteAdminRole); ok {
		key += "|" + role.Site
	}
	return key
}

// FingerprintOf returns the scope fingerprint of a principal.
func FingerprintOf(principal Principal) Fingerprint {
	role := ""
	if principal.Role != nil {
		role = principal.Role.Name()
	}
	perms := RolePermissions(principal.Role)
	parts := []string{
		role,
		RoleSite(principal.Role),
		principal.UserID,
		normalizeEmail(principal.Email),
		boolFlag(perms.SiteAccessApproved),
		boolFlag(perms.CanViewCamps),
	}
	return Fingerprint(strings.Join(parts, "|"))
}

func boolFlag(value bool) string {
	if value {
		return "1"
	}
	return "0"
}

// CacheEntry is a snapshot of a cached payload.
type CacheEntry struct {
	Key         string
	Payload     CachePayload
	WrittenAt   time.Time
	TTL         time.Duration
	Fingerprint Fingerprint
}

// InvalidationTarget describes what a mutation touched. An entry matches when
// it is global, belongs to one of Emails, is scoped to one of Sites, or its
// payload covers one of CampIDs.
type InvalidationTarget struct {
	CampIDs []string
	Emails  []string
	Sites   []string
}

// TargetForCamps builds the invalidation target covering every view of the given camp snapshots.
func TargetForCamps(camps ...Camp) InvalidationTarget {
	var target InvalidationTarget
	for _, camp := range camps {
		target.CampIDs = appendUnique(target.CampIDs, camp.ID)
		target.Emails = appendUnique(target.Emails, normalizeEmail(camp.OwnerEmail))
		for _, share := range camp.SharedWith {
			target.Emails = appendUnique(target.Emails, normalizeEmail(share.Email))
		}
		target.Sites = appendUnique(target.Sites, camp.Site)
		for _, site := range camp.SharedWithSites {
			target.Sites = appendUnique(target.Sites, site)
		}
	}
	return target
}

func appendUnique(values []string, value string) []string {
	if value == "" {
		return values
	}
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}

type statsCacheEntry struct {
	payload     CachePayload
	writtenAt   time.Time
	ttl         time.Duration
	fingerprint Fingerprint
	scope       EntryScope
	campIDs     map[string]struct{}
}

// maxInvalidationHistory bounds the invalidations remembered for Set. A Set
// older than the remembered window is discarded.
const maxInvalidationHistory = 256

// invalidationRecord remembers what one invalidation dropped.
type invalidationRecord struct {
	generation uint64
	all        bool
	key        string
	userID     string
	campIDs    []string
	emails     map[string]struct{}
	sites      map[string]struct{}
}

func (r invalidationRecord) covers(key string, entry statsCacheEntry) bool {
	switch {
	case r.all:
		return true
	case r.key != "":
		return r.key == key
	case r.userID != "":
		return r.userID == entry.scope.UserID
	}
	return entry.matches(r.campIDs, r.emails, r.sites)
}

// StatsCache stores computed aggregates and camp lists per principal view.
// Entries past their TTL are still served as stale until invalidated or
// replaced. Every invalidation advances the generation; a Set carrying an
// older generation is discarded only when a later invalidation covers the
// entry it would write.
type StatsCache struct {
	mu         sync.Mutex
	now        func() time.Time
	entries    *lru.Cache[string, statsCacheEntry]
	generation uint64
	history    []invalidationRecord
	metrics    *Metrics
}

// NewStatsCache constructs a cache bounded to maxEntries.
func NewStatsCache(maxEntries int, now func() time.Time, metrics *Metrics) *StatsCache {
	if maxEntries <= 0 {
		maxEntries = 512
	}
	if now == nil {
		now = time.Now
	}
	entries, err := lru.New[string, statsCacheEntry](maxEntries)
	if err != nil {
		panic(err)
	}
	return &StatsCache{now: now, entries: entries, metrics: metrics}
}

// Generation returns the current invalidation generation. Computations read it
// before starting and pass it to Set.
func (c *StatsCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Get returns the entry for key. A fingerprint mismatch removes the entry and
// reports a miss.
func (c *StatsCache) Get(key string, fingerprint Fingerprint) (CacheEntry, CacheStatus) {
	if c == nil {
		return CacheEntry{}, CacheMiss
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Get(key)
	if !ok {
		c.metrics.lookup(lookupMiss)
		return CacheEntry{}, CacheMiss
	}
	if entry.fingerprint != fingerprint {
		c.entries.Remove(key)
		c.metrics.lookup(lookupFingerprintMismatch)
		return CacheEntry{}, CacheMiss
	}

	snapshot := CacheEntry{
		Key:         key,
		Payload:     entry.payload.clonePayload(),
		WrittenAt:   entry.writtenAt,
		TTL:         entry.ttl,
		Fingerprint: entry.fingerprint,
	}
	if c.now().Sub(entry.writtenAt) < entry.ttl {
		c.metrics.lookup(lookupFresh)
		return snapshot, CacheFresh
	}
	c.metrics.lookup(lookupStale)
	return snapshot, CacheStale
}

// Set stores payload under key unless an invalidation covering the entry
// happened after generation was read. It reports whether the entry was written.
func (c *StatsCache) Set(key string, payload CachePayload, ttl time.Duration, fingerprint Fingerprint, scope EntryScope, generation uint64) bool {
	if c == nil || payload == nil {
		return false
	}
	ids := payload.campIDs()
	covered := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		covered[id] = struct{}{}
	}
	entry := statsCacheEntry{
		payload:     payload.clonePayload(),
		ttl:         ttl,
		fingerprint: fingerprint,
		scope:       scope,
		campIDs:     covered,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invalidatedSince(generation, key, entry) {
		return false
	}
	entry.writtenAt = c.now()
	c.entries.Add(key, entry)
	return true
}

// Invalidate removes a single key.
func (c *StatsCache) Invalidate(key string) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(invalidationRecord{key: key})
	return c.entries.Remove(key)
}

// InvalidateMatching removes every entry matching target and returns how many were removed.
func (c *StatsCache) InvalidateMatching(trigger string, target InvalidationTarget) int {
	if c == nil {
		return 0
	}
	emails := toSet(target.Emails, normalizeEmail)
	sites := toSet(target.Sites, strings.TrimSpace)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(invalidationRecord{
		campIDs: append([]string(nil), target.CampIDs...),
		emails:  emails,
		sites:   sites,
	})
	removed := 0
	for _, key := range c.entries.Keys() {
		entry, ok := c.entries.Peek(key)
		if !ok || !entry.matches(target.CampIDs, emails, sites) {
			continue
		}
		c.entries.Remove(key)
		removed++
	}
	c.metrics.invalidated(trigger, removed)
	return removed
}

// InvalidateUser removes every entry held for userID.
func (c *StatsCache) InvalidateUser(userID string) int {
	if c == nil || userID == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(invalidationRecord{userID: userID})
	removed := 0
	for _, key := range c.entries.Keys() {
		entry, ok := c.entries.Peek(key)
		if ok && entry.scope.UserID == userID {
			c.entries.Remove(key)
			removed++
		}
	}
	c.metrics.invalidated(TriggerSessionEnd, removed)
	return removed
}

// Purge removes every entry.
func (c *StatsCache) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(invalidationRecord{all: true})
	c.entries.Purge()
}

// record advances the generation and remembers rec. Callers hold c.mu.
func (c *StatsCache) record(rec invalidationRecord) {
	c.generation++
	rec.generation = c.generation
	if len(c.history) == maxInvalidationHistory {
		copy(c.history, c.history[1:])
		c.history = c.history[:len(c.history)-1]
	}
	c.history = append(c.history, rec)
}

// invalidatedSince reports whether an invalidation after generation covers
// the entry about to be written under key. Callers hold c.mu.
func (c *StatsCache) invalidatedSince(generation uint64, key string, entry statsCacheEntry) bool {
	if generation >= c.generation {
		return false
	}
	if len(c.history) == 0 || c.history[0].generation > generation+1 {
		return true
	}
	for i := len(c.history) - 1; i >= 0 && c.history[i].generation > generation; i-- {
		if c.history[i].covers(key, entry) {
			return true
		}
	}
	return false
}

// Len reports the number of stored entries.
func (c *StatsCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func (e statsCacheEntry) matches(campIDs []string, emails, sites map[string]struct{}) bool {
	if e.scope.Global {
		return true
	}
	if _, ok := emails[e.scope.Email]; ok && e.scope.Email != "" {
		return true
	}
	if _, ok := sites[e.scope.Site]; ok && e.scope.Site != "" {
		return true
	}
	for _, id := range campIDs {
		if _, ok := e.campIDs[id]; ok {
			return true
		}
	}
	return false
}

func toSet(values []string, normalize func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		if value = normalize(value); value != "" {
			set[value] = struct{}{}
		}
	}
	return set
}
