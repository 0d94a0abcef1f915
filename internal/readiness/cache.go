package readiness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zenlearn/helix/internal/logger"
	"github.com/zenlearn/helix/internal/tubes"
)

// Cache holds per (user, tube) ready-stitch state. The in-memory map is
// authoritative; an optional Mirror write-through lets a restarted
// process serve previously prepared bundles.
//
// Each tube entry carries a generation counter. Invalidation bumps it,
// so an in-flight preparation that started before the invalidation is
// detected and discarded at completion instead of resurrecting stale
// content.
type Cache struct {
	mu    sync.RWMutex
	users map[string]map[tubes.ID]*tubeState

	baseTTL     time.Duration
	levelFactor float64
	mirror      Mirror
	log         *logger.Logger
	now         func() time.Time
}

type tubeState struct {
	ready         *ReadyStitch
	progress      float64
	prepStartedAt time.Time
	lastCacheTime time.Time
	validUntil    time.Time
	generation    uint64
}

// NewCache creates a readiness cache. mirror may be nil.
func NewCache(baseTTL time.Duration, levelFactor float64, mirror Mirror, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.Nop()
	}
	return &Cache{
		users:       make(map[string]map[tubes.ID]*tubeState),
		baseTTL:     baseTTL,
		levelFactor: levelFactor,
		mirror:      mirror,
		log:         log.With("component", "readiness"),
		now:         time.Now,
	}
}

// SetClock overrides the cache clock. Tests only.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// TTLFor returns the validity window for a boundary level:
// baseTTL * (1 + level*levelFactor). Content changes less often at high
// mastery, so it caches longer.
func (c *Cache) TTLFor(boundaryLevel int) time.Duration {
	if boundaryLevel < 0 {
		boundaryLevel = 0
	}
	return time.Duration(float64(c.baseTTL) * (1 + float64(boundaryLevel)*c.levelFactor))
}

// Get returns the cached bundle for (user, tube). It fails with
// ErrCacheMiss when nothing is cached, ErrCacheExpired when past
// validity, and ErrStitchNotReady when the bundle is incomplete.
func (c *Cache) Get(ctx context.Context, userID string, tube tubes.ID) (*ReadyStitch, error) {
	c.mu.RLock()
	ts := c.lookup(userID, tube)
	var (
		ready      *ReadyStitch
		validUntil time.Time
	)
	if ts != nil {
		ready = ts.ready
		validUntil = ts.validUntil
	}
	c.mu.RUnlock()

	if ready == nil {
		var err error
		ready, validUntil, err = c.hydrateFromMirror(ctx, userID, tube)
		if err != nil {
			return nil, err
		}
	}

	now := c.now()
	if !validUntil.After(now) {
		return nil, fmt.Errorf("%w: %s/%s expired at %s", ErrCacheExpired, userID, tube, validUntil.Format(time.RFC3339))
	}
	if !ready.Complete() {
		return nil, fmt.Errorf("%w: %s/%s", ErrStitchNotReady, userID, tube)
	}
	return ready, nil
}

// hydrateFromMirror consults the mirror after a memory miss and, on a
// hit, installs the bundle into memory.
func (c *Cache) hydrateFromMirror(ctx context.Context, userID string, tube tubes.ID) (*ReadyStitch, time.Time, error) {
	if c.mirror == nil {
		return nil, time.Time{}, fmt.Errorf("%w: %s/%s", ErrCacheMiss, userID, tube)
	}

	ready, validUntil, err := c.mirror.Load(ctx, userID, tube)
	if err != nil {
		c.log.Warn("mirror load failed", "user", userID, "tube", tube, "err", err)
		return nil, time.Time{}, fmt.Errorf("%w: %s/%s", ErrCacheMiss, userID, tube)
	}
	if ready == nil {
		return nil, time.Time{}, fmt.Errorf("%w: %s/%s", ErrCacheMiss, userID, tube)
	}

	c.mu.Lock()
	ts := c.ensure(userID, tube)
	ts.ready = ready
	ts.progress = 1
	ts.lastCacheTime = c.now()
	ts.validUntil = validUntil
	c.mu.Unlock()

	return ready, validUntil, nil
}

// Put caches a bundle and stamps its validity window from the bundle's
// boundary level. An incomplete bundle is stored (Get will refuse it)
// but logged, since it usually means the assembler was handed partial
// content.
func (c *Cache) Put(ctx context.Context, rs *ReadyStitch, tube tubes.ID) (Receipt, error) {
	if rs == nil || rs.UserID == "" {
		return Receipt{}, fmt.Errorf("readiness: put requires a bundle with a user id")
	}
	if !rs.Complete() {
		c.log.Warn("caching incomplete bundle", "user", rs.UserID, "tube", tube, "stitch", rs.StitchID)
	}

	now := c.now()
	validUntil := now.Add(c.TTLFor(rs.BoundaryLevel))

	c.mu.Lock()
	ts := c.ensure(rs.UserID, tube)
	ts.ready = rs
	ts.progress = 1
	ts.lastCacheTime = now
	ts.validUntil = validUntil
	c.mu.Unlock()

	c.writeMirror(ctx, rs, tube, validUntil)

	c.log.Debug("bundle cached",
		"user", rs.UserID, "tube", tube, "stitch", rs.StitchID,
		"valid_until", validUntil.Format(time.RFC3339))
	return Receipt{Cached: true, CacheTimestamp: now, ValidUntil: validUntil}, nil
}

// PutPrepared caches a bundle produced by background preparation,
// provided the tube's generation still matches the one observed when
// preparation began. A stale generation returns ErrStalePreparation and
// leaves the cache untouched.
func (c *Cache) PutPrepared(ctx context.Context, rs *ReadyStitch, tube tubes.ID, generation uint64) (Receipt, error) {
	if rs == nil || rs.UserID == "" {
		return Receipt{}, fmt.Errorf("readiness: put requires a bundle with a user id")
	}

	now := c.now()
	validUntil := now.Add(c.TTLFor(rs.BoundaryLevel))

	c.mu.Lock()
	ts := c.ensure(rs.UserID, tube)
	if ts.generation != generation {
		c.mu.Unlock()
		return Receipt{}, fmt.Errorf("%w: %s/%s", ErrStalePreparation, rs.UserID, tube)
	}
	ts.ready = rs
	ts.progress = 1
	ts.lastCacheTime = now
	ts.validUntil = validUntil
	c.mu.Unlock()

	c.writeMirror(ctx, rs, tube, validUntil)
	return Receipt{Cached: true, CacheTimestamp: now, ValidUntil: validUntil}, nil
}

func (c *Cache) writeMirror(ctx context.Context, rs *ReadyStitch, tube tubes.ID, validUntil time.Time) {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.Save(ctx, rs, tube, validUntil); err != nil {
		c.log.Warn("mirror save failed", "user", rs.UserID, "tube", tube, "err", err)
	}
}

// Generation returns the current generation for (user, tube). Callers
// record it before starting preparation and pass it to PutPrepared.
func (c *Cache) Generation(userID string, tube tubes.ID) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ts := c.lookup(userID, tube); ts != nil {
		return ts.generation
	}
	return 0
}

// BeginPreparation marks a tube as preparing and returns the generation
// to hand back to PutPrepared.
func (c *Cache) BeginPreparation(userID string, tube tubes.ID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.ensure(userID, tube)
	ts.prepStartedAt = c.now()
	if ts.ready == nil {
		ts.progress = 0
	}
	return ts.generation
}

// SetProgress updates a tube's preparation progress, clamped to [0, 1].
func (c *Cache) SetProgress(userID string, tube tubes.ID, p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensure(userID, tube).progress = p
}

// Invalidate clears tubes per the criteria and returns which tubes were
// cleared. Clearing bumps each tube's generation so in-flight
// preparations cannot resurrect the old content.
func (c *Cache) Invalidate(ctx context.Context, userID string, crit Criteria) (InvalidationResult, error) {
	now := c.now()
	var targets []tubes.ID

	c.mu.Lock()
	switch crit.Reason {
	case ReasonBoundaryChange, ReasonForced:
		targets = append(targets, tubes.Tube1, tubes.Tube2, tubes.Tube3)
	case ReasonMilestone:
		if crit.ActiveTube == "" {
			c.mu.Unlock()
			return InvalidationResult{}, fmt.Errorf("readiness: milestone invalidation requires the active tube")
		}
		targets = append(targets, crit.ActiveTube)
	case ReasonAge:
		for _, id := range tubes.All() {
			if ts := c.lookup(userID, id); ts != nil && ts.ready != nil && !ts.validUntil.After(now) {
				targets = append(targets, id)
			}
		}
	default:
		c.mu.Unlock()
		return InvalidationResult{}, fmt.Errorf("readiness: unknown invalidation reason %q", crit.Reason)
	}

	for _, id := range targets {
		ts := c.ensure(userID, id)
		ts.ready = nil
		ts.progress = 0
		ts.lastCacheTime = time.Time{}
		ts.validUntil = time.Time{}
		ts.generation++
	}
	c.mu.Unlock()

	if c.mirror != nil {
		for _, id := range targets {
			if err := c.mirror.Delete(ctx, userID, id); err != nil {
				c.log.Warn("mirror delete failed", "user", userID, "tube", id, "err", err)
			}
		}
	}

	c.log.Info("cache invalidated",
		"user", userID, "reason", crit.Reason, "tubes", len(targets))
	return InvalidationResult{InvalidatedTubes: targets, Reason: crit.Reason, Timestamp: now}, nil
}

// CheckAvailability reports, without error, whether (user, tube) can be
// served instantly and how far along preparation is otherwise.
func (c *Cache) CheckAvailability(userID string, tube tubes.ID) Availability {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ts := c.lookup(userID, tube)
	if ts == nil {
		return Availability{}
	}

	now := c.now()
	if ts.ready != nil && ts.validUntil.After(now) && ts.ready.Complete() {
		return Availability{IsReady: true, PreparationProgress: 1}
	}

	av := Availability{PreparationProgress: ts.progress}
	if ts.progress > 0 && ts.progress < 1 && !ts.prepStartedAt.IsZero() {
		elapsed := now.Sub(ts.prepStartedAt)
		remaining := time.Duration(float64(elapsed) * (1 - ts.progress) / ts.progress)
		eta := now.Add(remaining)
		av.EstimatedReadyTime = &eta
	}
	return av
}

// lookup returns the tube state or nil. Callers hold c.mu.
func (c *Cache) lookup(userID string, tube tubes.ID) *tubeState {
	if m := c.users[userID]; m != nil {
		return m[tube]
	}
	return nil
}

// ensure returns the tube state, creating it lazily. Callers hold c.mu
// for writing.
func (c *Cache) ensure(userID string, tube tubes.ID) *tubeState {
	m := c.users[userID]
	if m == nil {
		m = make(map[tubes.ID]*tubeState, 3)
		c.users[userID] = m
	}
	ts := m[tube]
	if ts == nil {
		ts = &tubeState{}
		m[tube] = ts
	}
	return ts
}
