package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdle    = 10 * time.Minute
	limiterMaxKeys = 1024
)

type userLimit struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// userLimiter keeps one token bucket per user. A zero rate disables it.
type userLimiter struct {
	mu    sync.Mutex
	every rate.Limit
	burst int
	users map[string]*userLimit
	now   func() time.Time
}

func newUserLimiter(perSecond float64, burst int) *userLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &userLimiter{
		every: rate.Limit(perSecond),
		burst: burst,
		users: map[string]*userLimit{},
		now:   time.Now,
	}
}

func (l *userLimiter) Allow(userID string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	u, found := l.users[userID]
	if !found {
		if len(l.users) >= limiterMaxKeys {
			l.pruneLocked(now)
		}
		u = &userLimit{limiter: rate.NewLimiter(l.every, l.burst)}
		l.users[userID] = u
	}
	u.lastSeen = now
	return u.limiter.AllowN(now, 1)
}

func (l *userLimiter) pruneLocked(now time.Time) {
	for id, u := range l.users {
		if now.Sub(u.lastSeen) > limiterIdle {
			delete(l.users, id)
		}
	}
}
