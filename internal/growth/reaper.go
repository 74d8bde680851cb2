package growth

import (
	"context"
	"time"

	"github.com/banshee-data/growth.report/internal/monitoring"
	"github.com/banshee-data/growth.report/internal/timeutil"
)

// SessionReaper periodically removes sessions that have not been touched
// for TTL. Abandoned conversations otherwise keep their history forever.
type SessionReaper struct {
	Store    SessionStore
	TTL      time.Duration
	Interval time.Duration
	Clock    timeutil.Clock
	StopChan chan struct{}
}

// NewSessionReaper returns a reaper running every hour.
func NewSessionReaper(store SessionStore, ttl time.Duration, clock timeutil.Clock) *SessionReaper {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SessionReaper{
		Store:    store,
		TTL:      ttl,
		Interval: time.Hour,
		Clock:    clock,
		StopChan: make(chan struct{}),
	}
}

// Start runs the periodic loop in a goroutine.
func (r *SessionReaper) Start() {
	go func() {
		ticker := r.Clock.NewTicker(r.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				if _, err := r.RunOnce(context.Background()); err != nil {
					monitoring.Logf("session reaper run error: %v", err)
				}
			case <-r.StopChan:
				return
			}
		}
	}()
}

// Stop requests the loop to stop.
func (r *SessionReaper) Stop() {
	close(r.StopChan)
}

// RunOnce purges stale sessions and returns how many were removed.
func (r *SessionReaper) RunOnce(ctx context.Context) (int, error) {
	if r.TTL <= 0 {
		return 0, nil
	}
	n, err := r.Store.PurgeStale(ctx, r.Clock.Now().Add(-r.TTL))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		monitoring.Logf("session reaper: purged %d sessions idle for more than %s", n, r.TTL)
	}
	return n, nil
}
