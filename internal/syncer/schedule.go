package syncer

import (
	"sync"
	"time"
)

// scheduledTask runs one function after a delay. Scheduling again replaces
// the pending run; Cancel drops it.
type scheduledTask struct {
	mu    sync.Mutex
	timer *time.Timer
	due   time.Time
	gen   uint64
}

func (s *scheduledTask) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	if d < 0 {
		d = 0
	}
	s.gen++
	gen := s.gen
	s.due = time.Now().Add(d)
	s.timer = time.AfterFunc(d, func() {
		// A run that was replaced meanwhile leaves the newer schedule alone.
		s.mu.Lock()
		if s.gen == gen {
			s.timer = nil
			s.due = time.Time{}
		}
		s.mu.Unlock()
		fn()
	})
}

func (s *scheduledTask) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.due = time.Time{}
}

// Due returns when the pending run fires, or the zero time if none is pending.
func (s *scheduledTask) Due() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.due
}
