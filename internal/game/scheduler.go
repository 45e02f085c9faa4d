package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/user/legion-bot/internal/interfaces"
	"github.com/user/legion-bot/internal/types"
	"go.uber.org/zap"
)

// Spawner creates one wild spawn and announces it
type Spawner interface {
	SpawnWild(ctx context.Context) (*types.SpawnResult, error)
}

// spawnTickTimeout bounds a single tick's I/O
const spawnTickTimeout = 30 * time.Second

// SpawnScheduler fires wild spawns on a fixed period. A failed tick is
// logged and the schedule keeps running.
type SpawnScheduler struct {
	spawner  Spawner
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	failures int
}

// NewSpawnScheduler creates a scheduler for spawner
func NewSpawnScheduler(spawner Spawner, interval time.Duration) *SpawnScheduler {
	return &SpawnScheduler{
		spawner:  spawner,
		interval: interval,
		logger:   zap.NewNop(),
		stopChan: make(chan struct{}),
	}
}

// SetLogger sets the logger for the scheduler
func (s *SpawnScheduler) SetLogger(logger *zap.Logger) {
	s.logger = logger
}

// Start begins the spawn schedule
func (s *SpawnScheduler) Start() {
	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Tick()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()
	s.logger.Info("Wild spawn scheduler started", zap.Duration("interval", s.interval))
}

// Stop halts the spawn schedule
func (s *SpawnScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// Tick runs one spawn attempt. It never panics.
func (s *SpawnScheduler) Tick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Wild spawn tick panicked", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), spawnTickTimeout)
	defer cancel()

	result, err := s.spawner.SpawnWild(ctx)
	if err != nil {
		s.recordFailure(err)
		return
	}

	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()

	s.logger.Info("Wild spawn announced",
		zap.String("spawn_id", result.Spawn.ID),
		zap.String("species", result.Spawn.Species.Name),
		zap.String("channel", result.Destination.Name))
}

// Failures returns the number of consecutive failed ticks
func (s *SpawnScheduler) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func (s *SpawnScheduler) recordFailure(err error) {
	s.mu.Lock()
	s.failures++
	n := s.failures
	s.mu.Unlock()

	if !errors.Is(err, interfaces.ErrDestinationUnavailable) {
		s.logger.Error("Wild spawn tick failed", zap.Int("consecutive_failures", n), zap.Error(err))
		return
	}
	// Only the first few and every tenth miss are logged
	if n <= 3 || n%10 == 0 {
		s.logger.Warn("Wild spawn destination not found",
			zap.Int("consecutive_failures", n),
			zap.Error(err))
	}
}
