package reconciler

import "sync"

// sessionLocks serializes pipeline runs per checkout session. Stripe
// redelivers events with no ordering guarantee, and two deliveries of
// the same session must not both reach fulfillment submission.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: map[string]*sessionLock{}}
}

// acquire blocks until the session is free and returns the release
// func. Entries are dropped once the last holder releases.
func (l *sessionLocks) acquire(sessionID string) func() {
	l.mu.Lock()
	lock := l.locks[sessionID]
	if lock == nil {
		lock = &sessionLock{}
		l.locks[sessionID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()
	}
}
