// Package engine is the call surface of the stitch scheduling core. It
// wires the repetition queues, tube rotation, and readiness cache
// together and serializes all mutating operations per user, so a
// reposition and a rotation for the same learner never interleave.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/zenlearn/helix/internal/config"
	"github.com/zenlearn/helix/internal/logger"
	"github.com/zenlearn/helix/internal/perf"
	"github.com/zenlearn/helix/internal/queue"
	"github.com/zenlearn/helix/internal/readiness"
	"github.com/zenlearn/helix/internal/skip"
	"github.com/zenlearn/helix/internal/store"
	"github.com/zenlearn/helix/internal/tubes"
)

// Engine exposes the scheduler to its collaborators: the presentation
// layer consumes NextStitch/ReadyStitch, the session collaborator feeds
// performance data into RepositionStitch or CompleteStitch.
type Engine struct {
	queues   *tubesAndQueues
	cache    *readiness.Cache
	preparer *readiness.Preparer

	events    store.EventRepo
	snapshots store.SnapshotRepo
	log       *logger.Logger

	mu       sync.Mutex
	userMu   map[string]*sync.Mutex
	boundary map[string]int
}

// tubesAndQueues bundles the two queue-owning components so Engine
// methods read naturally.
type tubesAndQueues struct {
	svc     *queue.Service
	manager *tubes.Manager
}

// Options configures optional engine collaborators.
type Options struct {
	// Events receives the reposition audit trail. Optional.
	Events store.EventRepo

	// Snapshots persists per-user state across restarts. Optional.
	Snapshots store.SnapshotRepo

	// Mirror backs the readiness cache across restarts. Optional.
	Mirror readiness.Mirror

	// Assemble builds ready stitches for background preparation.
	// Optional; without it PrepareTube and WarmUp are unavailable.
	Assemble readiness.AssembleFunc

	Log *logger.Logger
}

// New creates an engine from configuration.
func New(cfg config.Config, opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	calc := skip.NewCalculator(cfg.Skip.ExpectedResponseTime)
	svc := queue.NewService(calc, opts.Events, log)
	manager := tubes.NewManager(svc, log)
	cache := readiness.NewCache(cfg.Cache.BaseTTL, cfg.Cache.LevelFactor, opts.Mirror, log)

	e := &Engine{
		queues:    &tubesAndQueues{svc: svc, manager: manager},
		cache:     cache,
		events:    opts.Events,
		snapshots: opts.Snapshots,
		log:       log.With("component", "engine"),
		userMu:    make(map[string]*sync.Mutex),
		boundary:  make(map[string]int),
	}
	if opts.Assemble != nil {
		e.preparer = readiness.NewPreparer(cache, manager, opts.Assemble, log)
	}
	return e
}

// Queues exposes the queue service for tests and the CLI.
func (e *Engine) Queues() *queue.Service { return e.queues.svc }

// Tubes exposes the rotation manager for tests and the CLI.
func (e *Engine) Tubes() *tubes.Manager { return e.queues.manager }

// Cache exposes the readiness cache for tests and the CLI.
func (e *Engine) Cache() *readiness.Cache { return e.cache }

// userLock returns the mutex serializing one user's mutations.
func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	mu := e.userMu[userID]
	if mu == nil {
		mu = &sync.Mutex{}
		e.userMu[userID] = mu
	}
	return mu
}

// InitializeLearningPath builds (or resets) one queue with sequential
// positions 1..N in input order.
func (e *Engine) InitializeLearningPath(ctx context.Context, userID, pathID string, unitIDs []string) error {
	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	if err := e.queues.svc.Initialize(userID, pathID, unitIDs); err != nil {
		return err
	}
	e.persist(ctx, userID)
	return nil
}

// InitializeTubes sets up the user's three tubes, each backed by its
// own queue, with tube1 live.
func (e *Engine) InitializeTubes(ctx context.Context, userID string, seed map[tubes.ID][]string) error {
	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	if err := e.queues.manager.Initialize(userID, seed); err != nil {
		return err
	}
	e.persist(ctx, userID)
	return nil
}

// NextStitch returns the unit at position 1 of the user's path queue.
func (e *Engine) NextStitch(userID, pathID string) (queue.Unit, error) {
	return e.queues.svc.Next(userID, pathID)
}

// ActiveTube returns the user's live tube.
func (e *Engine) ActiveTube(userID string) (tubes.ID, error) {
	return e.queues.manager.Active(userID)
}

// ActiveStitch returns the head of the live tube's queue.
func (e *Engine) ActiveStitch(userID string) (queue.Unit, error) {
	return e.queues.manager.ActiveHead(userID)
}

// RepositionStitch runs the repositioning algorithm for one completed
// stitch.
func (e *Engine) RepositionStitch(ctx context.Context, userID, stitchID string, d perf.Data) (*queue.RepositionResult, error) {
	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	res, err := e.queues.svc.Reposition(ctx, userID, stitchID, d)
	if err != nil {
		return nil, err
	}
	e.persist(ctx, userID)
	return res, nil
}

// StitchQueue returns a queue snapshot, ascending by position.
func (e *Engine) StitchQueue(userID, pathID string) ([]queue.Unit, error) {
	return e.queues.svc.Snapshot(userID, pathID)
}

// RepositioningHistory returns a stitch's reposition records, most
// recent first.
func (e *Engine) RepositioningHistory(userID, stitchID string, limit int) ([]queue.RepositionResult, error) {
	return e.queues.svc.History(userID, stitchID, limit)
}

// RotateTubes advances the three-tube round-robin and returns the newly
// live tube.
func (e *Engine) RotateTubes(ctx context.Context, userID string) (tubes.ID, error) {
	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	id, err := e.queues.manager.Rotate(userID)
	if err != nil {
		return "", err
	}
	e.persist(ctx, userID)
	return id, nil
}

// CompletionResult reports everything one completion cycle did.
type CompletionResult struct {
	Reposition    *queue.RepositionResult
	PreviousTube  tubes.ID
	NewActiveTube tubes.ID
	Invalidated   readiness.InvalidationResult
}

// CompleteStitch runs the full completion flow for the live tube's head
// stitch as one serialized operation: reposition by performance, rotate
// to the next tube, and invalidate the completed tube's cache (its
// queue just changed, so its prepared bundle is stale).
func (e *Engine) CompleteStitch(ctx context.Context, userID string, d perf.Data) (*CompletionResult, error) {
	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	active, err := e.queues.manager.Active(userID)
	if err != nil {
		return nil, err
	}
	head, err := e.queues.svc.Next(userID, string(active))
	if err != nil {
		return nil, err
	}

	res, err := e.queues.svc.Reposition(ctx, userID, head.ID, d)
	if err != nil {
		return nil, err
	}

	next, err := e.queues.manager.Rotate(userID)
	if err != nil {
		return nil, err
	}

	inv, err := e.cache.Invalidate(ctx, userID, readiness.Criteria{
		Reason:     readiness.ReasonMilestone,
		ActiveTube: active,
	})
	if err != nil {
		return nil, err
	}

	e.persist(ctx, userID)
	return &CompletionResult{
		Reposition:    res,
		PreviousTube:  active,
		NewActiveTube: next,
		Invalidated:   inv,
	}, nil
}

// ReadyStitch returns the cached bundle for (user, tube).
func (e *Engine) ReadyStitch(ctx context.Context, userID string, tube tubes.ID) (*readiness.ReadyStitch, error) {
	return e.cache.Get(ctx, userID, tube)
}

// CacheReadyStitch stores an assembled bundle and promotes the tube to
// ready.
func (e *Engine) CacheReadyStitch(ctx context.Context, rs *readiness.ReadyStitch, tube tubes.ID) (readiness.Receipt, error) {
	receipt, err := e.cache.Put(ctx, rs, tube)
	if err != nil {
		return readiness.Receipt{}, err
	}
	if err := e.queues.manager.MarkReady(rs.UserID, tube); err != nil {
		e.log.Debug("mark ready skipped", "user", rs.UserID, "tube", tube, "err", err)
	}
	return receipt, nil
}

// InvalidateCache clears cached bundles per the criteria. A milestone
// criterion without an explicit tube scopes to the live tube.
func (e *Engine) InvalidateCache(ctx context.Context, userID string, crit readiness.Criteria) (readiness.InvalidationResult, error) {
	if crit.Reason == readiness.ReasonMilestone && crit.ActiveTube == "" {
		active, err := e.queues.manager.Active(userID)
		if err != nil {
			return readiness.InvalidationResult{}, err
		}
		crit.ActiveTube = active
	}
	return e.cache.Invalidate(ctx, userID, crit)
}

// CheckAvailability reports cache readiness without error.
func (e *Engine) CheckAvailability(userID string, tube tubes.ID) readiness.Availability {
	return e.cache.CheckAvailability(userID, tube)
}

// PrepareTube assembles and caches a tube's bundle out-of-band.
func (e *Engine) PrepareTube(ctx context.Context, userID string, tube tubes.ID) (*readiness.ReadyStitch, error) {
	if e.preparer == nil {
		return nil, fmt.Errorf("engine: no assembler configured")
	}
	return e.preparer.Prepare(ctx, userID, tube)
}

// WarmUp prepares all three tubes concurrently.
func (e *Engine) WarmUp(ctx context.Context, userID string) error {
	if e.preparer == nil {
		return fmt.Errorf("engine: no assembler configured")
	}
	return e.preparer.WarmUp(ctx, userID)
}

// BoundaryLevel returns the user's current boundary (mastery) level.
func (e *Engine) BoundaryLevel(userID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.boundary[userID]
}

// SetBoundaryLevel records a mastery-level change. A change invalidates
// all three tubes: a global skill shift voids every cached difficulty
// assumption.
func (e *Engine) SetBoundaryLevel(ctx context.Context, userID string, level int) (readiness.InvalidationResult, error) {
	e.mu.Lock()
	prev, had := e.boundary[userID]
	e.boundary[userID] = level
	e.mu.Unlock()

	if had && prev == level {
		return readiness.InvalidationResult{Reason: readiness.ReasonBoundaryChange}, nil
	}

	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	inv, err := e.cache.Invalidate(ctx, userID, readiness.Criteria{Reason: readiness.ReasonBoundaryChange})
	if err != nil {
		return readiness.InvalidationResult{}, err
	}
	e.persist(ctx, userID)
	return inv, nil
}
