package auth

import (
	"context"
	"sync"
	"time"
)

// AttemptLimiter はログイン失敗回数を数え、上限到達後は一定時間ロックします。
type AttemptLimiter interface {
	// Check はロック中であれば残り時間を返します。ロックされていなければ 0 です。
	Check(ctx context.Context, key string) (time.Duration, error)
	// RecordFailure は失敗を記録し、ロックまでの残り試行回数を返します。
	// ロック判定と記録は一度に行い、既にロック中であれば記録せずに残りのロック時間を返します。
	RecordFailure(ctx context.Context, key string) (remaining int, retryAfter time.Duration, err error)
	// Reset は key の失敗記録を消去します。
	Reset(ctx context.Context, key string) error
}

// LimiterPolicy は試行制限のパラメータです。
type LimiterPolicy struct {
	MaxAttempts  int
	Window       time.Duration
	LockDuration time.Duration
}

// DefaultLimiterPolicy は 15 分間に 5 回失敗すると 10 分ロックするポリシーです。
var DefaultLimiterPolicy = LimiterPolicy{
	MaxAttempts:  5,
	Window:       15 * time.Minute,
	LockDuration: 10 * time.Minute,
}

const pruneThreshold = 1024

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// MemoryLimiter はプロセス内で試行回数を管理する AttemptLimiter です。
type MemoryLimiter struct {
	policy LimiterPolicy
	now    func() time.Time

	lock     sync.Mutex
	attempts map[string]*attemptState
}

// NewMemoryLimiter は MemoryLimiter を作成します。
func NewMemoryLimiter(policy LimiterPolicy) *MemoryLimiter {
	return &MemoryLimiter{
		policy:   policy,
		now:      time.Now,
		attempts: make(map[string]*attemptState),
	}
}

func (l *MemoryLimiter) Check(_ context.Context, key string) (time.Duration, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	state, ok := l.attempts[key]
	if !ok {
		return 0, nil
	}
	now := l.now()
	if !now.Before(state.lockedUntil) {
		return 0, nil
	}
	return state.lockedUntil.Sub(now), nil
}

func (l *MemoryLimiter) RecordFailure(_ context.Context, key string) (int, time.Duration, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	now := l.now()
	if len(l.attempts) >= pruneThreshold {
		l.prune(now)
	}

	state, ok := l.attempts[key]
	if ok && now.Before(state.lockedUntil) {
		return 0, state.lockedUntil.Sub(now), nil
	}
	if !ok {
		state = &attemptState{firstAttempt: now}
		l.attempts[key] = state
	}
	if now.Sub(state.firstAttempt) > l.policy.Window {
		state.count = 0
		state.firstAttempt = now
	}

	state.count++
	if state.count >= l.policy.MaxAttempts {
		// ロック後は新しい期間として数え直す
		state.lockedUntil = now.Add(l.policy.LockDuration)
		state.count = 0
		state.firstAttempt = now
		return 0, 0, nil
	}
	return l.policy.MaxAttempts - state.count, 0, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	delete(l.attempts, key)
	return nil
}

func (l *MemoryLimiter) prune(now time.Time) {
	for key, state := range l.attempts {
		if now.Sub(state.firstAttempt) > l.policy.Window && !now.Before(state.lockedUntil) {
			delete(l.attempts, key)
		}
	}
}
