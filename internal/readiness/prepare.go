package readiness

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/zenlearn/helix/internal/logger"
	"github.com/zenlearn/helix/internal/tubes"
)

// AssembleFunc builds a ready stitch for (user, tube). It is supplied
// by the content collaborator and may report incremental progress via
// Cache.SetProgress.
type AssembleFunc func(ctx context.Context, userID string, tube tubes.ID) (*ReadyStitch, error)

// Preparer runs bundle assembly out-of-band from the learning session.
// Concurrent requests for the same (user, tube) collapse into one
// assembly via singleflight, and a preparation that outlives an
// invalidation is discarded rather than cached.
type Preparer struct {
	cache    *Cache
	manager  *tubes.Manager
	assemble AssembleFunc
	group    singleflight.Group
	log      *logger.Logger
}

// NewPreparer creates a preparer. manager may be nil when tube state
// promotion is handled elsewhere.
func NewPreparer(cache *Cache, manager *tubes.Manager, assemble AssembleFunc, log *logger.Logger) *Preparer {
	if log == nil {
		log = logger.Nop()
	}
	return &Preparer{
		cache:    cache,
		manager:  manager,
		assemble: assemble,
		log:      log.With("component", "preparer"),
	}
}

// Prepare assembles and caches a bundle for (user, tube). On success
// the tube is promoted from preparing to ready. ErrStalePreparation is
// returned when an invalidation raced the assembly; the caller may
// simply retry.
func (p *Preparer) Prepare(ctx context.Context, userID string, tube tubes.ID) (*ReadyStitch, error) {
	key := userID + "|" + string(tube)
	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		return p.prepareOnce(ctx, userID, tube)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ReadyStitch), nil
}

func (p *Preparer) prepareOnce(ctx context.Context, userID string, tube tubes.ID) (*ReadyStitch, error) {
	gen := p.cache.BeginPreparation(userID, tube)

	rs, err := p.assemble(ctx, userID, tube)
	if err != nil {
		return nil, fmt.Errorf("assemble %s/%s: %w", userID, tube, err)
	}
	if rs == nil {
		return nil, fmt.Errorf("assemble %s/%s: no bundle produced", userID, tube)
	}
	rs.UserID = userID
	rs.TubeID = tube

	if _, err := p.cache.PutPrepared(ctx, rs, tube, gen); err != nil {
		if errors.Is(err, ErrStalePreparation) {
			p.log.Debug("discarded stale preparation", "user", userID, "tube", tube)
		}
		return nil, err
	}

	if p.manager != nil {
		if err := p.manager.MarkReady(userID, tube); err != nil {
			p.log.Warn("mark ready failed", "user", userID, "tube", tube, "err", err)
		}
	}

	p.log.Debug("tube prepared", "user", userID, "tube", tube, "questions", len(rs.Questions))
	return rs, nil
}

// WarmUp prepares all three tubes concurrently. Tubes whose
// preparation is superseded by an invalidation are skipped, not failed.
func (p *Preparer) WarmUp(ctx context.Context, userID string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range tubes.All() {
		id := id
		g.Go(func() error {
			_, err := p.Prepare(ctx, userID, id)
			if errors.Is(err, ErrStalePreparation) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
