// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/matchday/internal/adapters/mq/notify"
	"github.com/okian/matchday/internal/adapters/mq/queue"
	workerpool "github.com/okian/matchday/internal/adapters/mq/worker"
	"github.com/okian/matchday/internal/adapters/repository"
	"github.com/okian/matchday/internal/domain/dedupe"
	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/scoring"
	"github.com/okian/matchday/internal/domain/types"
	"github.com/okian/matchday/pkg/logger"
	"github.com/okian/matchday/pkg/metrics"
)

const defaultQueueSize = 10_000

// Service implements the API dependencies for the scoring system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	standings *repository.Standings
	inFlight  dedupe.Tracker
	queue     queue.Queue
	pool      *workerpool.Pool
	publisher notify.Publisher

	// Configuration
	workerCount int
	queueSize   int

	// State
	started bool

	managerLocks keyedMutex
	progressMu   sync.Mutex
	progress     map[string]*gameProgress

	logger logger.Logger
	now    func() time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of finalization workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the finalization queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore replaces the default in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPublisher sets where finalized results are announced.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock overrides the time source used to stamp results.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   defaultQueueSize,
		store:       repository.NewMemoryStore(),
		standings:   repository.NewStandings(),
		inFlight:    dedupe.NewInFlight(),
		publisher:   notify.Noop{},
		progress:    make(map[string]*gameProgress),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start rebuilds the standings from persisted results and starts the
// finalization workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting scoring service...")

	totals, err := s.store.SeasonTotals(ctx)
	if err != nil {
		return fmt.Errorf("load season totals: %w", err)
	}
	s.standings.Load(ctx, totals)
	metrics.UpdateManagersTotal(s.standings.Count(ctx))

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s)
	// Workers outlive the start context; Stop drains them.
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.Int("managers", len(totals)),
	)
	return nil
}

// Stop drains pending finalizations and releases the store and publisher.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping scoring service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "scoring service stopped")
	return errors.Join(errs...)
}

// PutPlayers upserts catalog entries.
func (s *Service) PutPlayers(ctx context.Context, players []model.Player) error {
	for _, p := range players {
		if p.ID <= 0 {
			return fmt.Errorf("%w: player id %d", model.ErrInvalidInput, p.ID)
		}
		if !p.Position.Valid() {
			return fmt.Errorf("%w: player %d: %w", model.ErrInvalidInput, p.ID, model.ErrUnknownPosition)
		}
	}
	return s.store.PutPlayers(ctx, players)
}

// PutSquad stores a manager's selection after validating its shape.
func (s *Service) PutSquad(ctx context.Context, managerID string, squad model.Squad) error {
	if managerID == "" {
		return fmt.Errorf("%w: manager id is required", model.ErrInvalidInput)
	}
	if err := squad.Validate(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	return s.store.PutSquad(ctx, managerID, squad)
}

// Squad returns a manager's selection.
func (s *Service) Squad(ctx context.Context, managerID string) (model.Squad, error) {
	return s.store.Squad(ctx, managerID)
}

// PutGameEvents replaces a game's event set. Events are normalized before
// they are stored.
func (s *Service) PutGameEvents(ctx context.Context, gameID string, events model.Events, status model.GameStatus) error {
	if gameID == "" {
		return fmt.Errorf("%w: game id is required", model.ErrInvalidInput)
	}
	if status == "" {
		status = model.GameOpen
	}
	if _, err := model.ParseGameStatus(string(status)); err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	normalized := make(model.Events, len(events))
	for id, ev := range events {
		if id <= 0 {
			return fmt.Errorf("%w: player id %d", model.ErrInvalidInput, id)
		}
		normalized[id] = ev.Normalize()
	}
	return s.store.PutGameEvents(ctx, gameID, normalized, status)
}

// Preview scores squad without storing anything. When positions is nil the
// catalog is consulted.
func (s *Service) Preview(ctx context.Context, squad model.Squad, positions map[int]model.Position, events model.Events) (scoring.Result, error) {
	if positions == nil {
		var err error
		positions, err = s.store.Positions(ctx, squadIDs(squad))
		if err != nil {
			return scoring.Result{}, err
		}
	}
	normalized := make(model.Events, len(events))
	for id, ev := range events {
		normalized[id] = ev.Normalize()
	}
	return scoring.ScoreSquad(squad, positions, normalized), nil
}

// ScoreManager computes a manager's score for a game from stored data.
// Nothing is persisted.
func (s *Service) ScoreManager(ctx context.Context, managerID, gameID string) (scoring.Result, error) {
	squad, events, positions, err := s.load(ctx, managerID, gameID)
	if err != nil {
		return scoring.Result{}, err
	}
	return scoring.ScoreSquad(squad, positions, events), nil
}

func (s *Service) load(ctx context.Context, managerID, gameID string) (model.Squad, model.Events, map[int]model.Position, error) {
	squad, err := s.store.Squad(ctx, managerID)
	if err != nil {
		return model.Squad{}, nil, nil, err
	}
	events, err := s.store.GameEvents(ctx, gameID)
	if err != nil {
		return model.Squad{}, nil, nil, err
	}
	positions, err := s.store.Positions(ctx, squadIDs(squad))
	if err != nil {
		return model.Squad{}, nil, nil, err
	}
	return squad, events, positions, nil
}

// FinalizeGame queues a finalization job for every manager. A manager whose
// job for this game is still queued or running counts as a duplicate. The
// game is closed while its jobs run and marked finalized once all of them
// succeed; after a rejection or a failed job it stays closed for the sweep.
func (s *Service) FinalizeGame(ctx context.Context, gameID string) (types.FinalizeSummary, error) {
	sum := types.FinalizeSummary{GameID: gameID}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return sum, fmt.Errorf("%w: %w", ErrNotStarted, queue.ErrClosed)
	}

	game, err := s.store.Game(ctx, gameID)
	if err != nil {
		return sum, err
	}
	managers, err := s.store.Managers(ctx)
	if err != nil {
		return sum, err
	}
	if len(managers) == 0 {
		return sum, s.store.SetGameStatus(ctx, gameID, model.GameFinalized)
	}
	if game.Status != model.GameClosed {
		if err := s.store.SetGameStatus(ctx, gameID, model.GameClosed); err != nil {
			return sum, err
		}
	}

	for _, managerID := range managers {
		key := dedupe.Key(gameID, managerID)
		if !s.inFlight.Acquire(ctx, key) {
			sum.Duplicate++
			metrics.RecordFinalizeDuplicate()
			continue
		}
		s.beginJob(gameID)
		if !s.queue.Enqueue(ctx, queue.NewJob(gameID, managerID)) {
			s.inFlight.Release(ctx, key)
			s.endJob(ctx, gameID, false)
			sum.Rejected++
			continue
		}
		sum.Accepted++
	}

	s.logger.Info(ctx, "game finalization queued",
		logger.String("game_id", gameID),
		logger.Int("accepted", sum.Accepted),
		logger.Int("duplicate", sum.Duplicate),
		logger.Int("rejected", sum.Rejected),
	)

	if sum.Rejected > 0 {
		cause := queue.ErrFull
		if s.queue.IsClosed() {
			cause = queue.ErrClosed
		}
		return sum, fmt.Errorf("finalize %s: %d of %d jobs rejected: %w", gameID, sum.Rejected, len(managers), cause)
	}
	return sum, nil
}

// FinalizePending finalizes every closed game and returns how many were
// fully queued. Games whose earlier round was rejected, failed or cut short
// by a shutdown are still closed and get queued again.
func (s *Service) FinalizePending(ctx context.Context) (int, error) {
	games, err := s.store.Games(ctx, model.GameClosed)
	if err != nil {
		return 0, err
	}
	var (
		done int
		errs []error
	)
	for _, g := range games {
		if _, err := s.FinalizeGame(ctx, g.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// FinalizeJob scores one manager for one game, persists the result, moves
// the manager in the standings and publishes the result. The in-flight key
// is released whatever the outcome.
func (s *Service) FinalizeJob(ctx context.Context, job queue.Job) (err error) {
	defer func() { s.endJob(ctx, job.GameID, err == nil) }()
	defer s.inFlight.Release(ctx, dedupe.Key(job.GameID, job.ManagerID))
	start := time.Now()

	squad, events, positions, err := s.load(ctx, job.ManagerID, job.GameID)
	if err != nil {
		return fmt.Errorf("finalize %s/%s: %w", job.GameID, job.ManagerID, err)
	}

	res := scoring.ScoreSquad(squad, positions, events)
	for _, sub := range res.Substitutions {
		metrics.RecordSubstitution(string(sub.Position))
	}
	for _, rej := range res.Rejected {
		metrics.RecordSubstitutionRejection(string(rej.Reason))
	}

	result := model.GameResult{
		ManagerID:     job.ManagerID,
		GameID:        job.GameID,
		Total:         res.Total,
		SubstitutedIn: res.SubstitutedIn,
		Substitutions: res.Substitutions,
		FinalizedAt:   s.now().UTC(),
	}
	total, err := s.commit(ctx, result)
	if err != nil {
		return err
	}
	metrics.UpdateManagersTotal(s.standings.Count(ctx))
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)

	if err := s.publisher.Publish(ctx, result); err != nil {
		s.logger.Warn(ctx, "result not published",
			logger.String("game_id", job.GameID),
			logger.String("manager_id", job.ManagerID),
			logger.Error(err),
		)
	}

	s.logger.Debug(ctx, "manager finalized",
		logger.String("job_id", job.ID),
		logger.String("game_id", job.GameID),
		logger.String("manager_id", job.ManagerID),
		logger.Int("points", res.Total),
		logger.Int("season_total", total),
		logger.Int("substitutions", len(res.Substitutions)),
	)
	return nil
}

// commit saves result and moves its manager to the new season total. Jobs
// for the same manager run one at a time here, so the standings always end
// on the latest total.
func (s *Service) commit(ctx context.Context, result model.GameResult) (int, error) {
	unlock := s.managerLocks.Lock(result.ManagerID)
	defer unlock()

	if err := s.store.SaveResult(ctx, result); err != nil {
		return 0, fmt.Errorf("save result %s/%s: %w", result.GameID, result.ManagerID, err)
	}
	total, err := s.store.SeasonTotal(ctx, result.ManagerID)
	if err != nil {
		return 0, fmt.Errorf("season total %s: %w", result.ManagerID, err)
	}
	s.standings.Set(ctx, result.ManagerID, total)
	return total, nil
}

// Result returns a persisted game result.
func (s *Service) Result(ctx context.Context, managerID, gameID string) (model.GameResult, error) {
	return s.store.Result(ctx, managerID, gameID)
}

// TopN returns the top n managers by season total.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	return s.standings.TopN(ctx, n)
}

// Rank returns a manager's standing.
func (s *Service) Rank(ctx context.Context, managerID string) (types.Entry, error) {
	return s.standings.Rank(ctx, managerID)
}

// GetStats returns a snapshot of the finalization pipeline.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{
		InFlight: s.inFlight.Size(),
		Managers: s.standings.Count(ctx),
	}
	if s.started {
		stats.QueueLength = s.queue.Len(ctx)
		stats.QueueCapacity = s.queue.Cap()
		stats.Workers = s.pool.Size()
		stats.Finalized = s.pool.Processed()
		stats.Failed = s.pool.Failed()
		metrics.UpdateQueueSize(stats.QueueLength)
	}
	return stats
}

// IsStarted reports whether the workers are running.
func (s *Service) IsStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func squadIDs(squad model.Squad) []int {
	ids := make([]int, 0, len(squad.StartingXI)+len(squad.Bench))
	ids = append(ids, squad.StartingXI...)
	return append(ids, squad.Bench...)
}
