package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cinerec/cinerec/internal/config"
)

const housekeepingLockKey = "housekeeping:purge:lock"

// HousekeepingService purges cache rows past the retention window on a
// ticker. A redis lease keeps the purge single-instance when several servers
// share the database; readers are unaffected because deletion by cached_at
// only removes rows every instance already considers expired.
type HousekeepingService struct {
	movies *MovieCacheService
	redis  *redis.Client
	config *config.HousekeepingConfig
	logger *logrus.Logger

	instanceID string
	stop       chan struct{}
	done       chan struct{}
}

func NewHousekeepingService(
	movies *MovieCacheService,
	redisClient *redis.Client,
	cfg *config.HousekeepingConfig,
	logger *logrus.Logger,
) *HousekeepingService {
	return &HousekeepingService{
		movies:     movies,
		redis:      redisClient,
		config:     cfg,
		logger:     logger,
		instanceID: uuid.New().String(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the ticker loop. No-op when disabled by config.
func (s *HousekeepingService) Start() {
	if !s.config.Enabled {
		s.logger.Info("Housekeeping disabled")
		close(s.done)
		return
	}

	go s.run()
	s.logger.WithField("interval", s.config.Interval).Info("Housekeeping started")
}

// Stop terminates the loop and waits for an in-flight purge to finish.
func (s *HousekeepingService) Stop() {
	close(s.stop)
	<-s.done
}

func (s *HousekeepingService) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.purge()
		case <-s.stop:
			return
		}
	}
}

func (s *HousekeepingService) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if !s.acquireLock(ctx) {
		s.logger.Debug("Housekeeping lock held elsewhere, skipping run")
		return
	}
	defer s.releaseLock(ctx)

	cutoff := time.Now().Add(-s.config.Retention)
	removed, err := s.movies.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.WithError(err).Error("Cache purge failed")
		return
	}

	if removed > 0 {
		s.logger.WithFields(logrus.Fields{
			"removed": removed,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Purged expired cache entries")
	}
}

// acquireLock takes the purge lease via SetNX. Without redis the purge runs
// unguarded, which is safe for a single instance.
func (s *HousekeepingService) acquireLock(ctx context.Context) bool {
	if s.redis == nil {
		return true
	}
	ok, err := s.redis.SetNX(ctx, housekeepingLockKey, s.instanceID, s.config.LockTTL).Result()
	if err != nil {
		s.logger.WithError(err).Warn("Housekeeping lock acquisition failed")
		return false
	}
	return ok
}

func (s *HousekeepingService) releaseLock(ctx context.Context) {
	if s.redis == nil {
		return
	}
	// Only release our own lease.
	holder, err := s.redis.Get(ctx, housekeepingLockKey).Result()
	if err != nil || holder != s.instanceID {
		return
	}
	s.redis.Del(ctx, housekeepingLockKey)
}
