package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SubmissionLocker serialises mutating requests against one submission.
type SubmissionLocker interface {
	// Lock returns ErrSubmissionBusy when the submission is already locked.
	Lock(ctx context.Context, submissionID uint) (unlock func(), err error)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type redisSubmissionLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewSubmissionLocker returns a Redis backed locker, or a no-op locker when client is nil.
func NewSubmissionLocker(client *redis.Client, ttl time.Duration, logger zerolog.Logger) SubmissionLocker {
	if client == nil {
		return noopLocker{}
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisSubmissionLocker{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "submission_lock").Logger(),
	}
}

func lockKey(submissionID uint) string {
	return fmt.Sprintf("mooj:submission:%d:lock", submissionID)
}

func (l *redisSubmissionLocker) Lock(ctx context.Context, submissionID uint) (func(), error) {
	key := lockKey(submissionID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire submission lock: %w", err)
	}
	if !ok {
		return nil, ErrSubmissionBusy
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go l.keepAlive(key, token, submissionID, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped

			// Released on a fresh context so a cancelled request still frees the key.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
				l.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to release submission lock")
			}
		})
	}, nil
}

// keepAlive extends the lock TTL while the holder is still working, until stop is closed or
// the key no longer carries token.
func (l *redisSubmissionLocker) keepAlive(key, token string, submissionID uint, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			extended, err := refreshScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				l.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to extend submission lock")
				continue
			}
			if extended == 0 {
				l.logger.Warn().Uint("submission_id", submissionID).Msg("submission lock lost before release")
				return
			}
		}
	}
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, uint) (func(), error) {
	return func() {}, nil
}
