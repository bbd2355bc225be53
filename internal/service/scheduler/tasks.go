package scheduler

import (
	"sort"
	"time"

	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
)

// Scheduled task names.
const (
	taskGreeting = "greeting"
	taskDebounce = "debounce"
	taskTick     = "tick"
)

type task struct {
	timer clock.Timer
	seq   uint64
}

func (s *Scheduler) taskID(name string) string {
	return s.id + ":" + name
}

// scheduleLocked (re)arms the named task. A callback that lost the race with
// a reschedule or a new epoch does nothing.
func (s *Scheduler) scheduleLocked(name string, d time.Duration, fn func()) {
	id := s.taskID(name)
	if old, ok := s.tasks[id]; ok {
		old.timer.Stop()
	}
	s.seq++
	seq, epoch := s.seq, s.epoch
	t := &task{seq: seq}
	s.tasks[id] = t
	t.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		current, ok := s.tasks[id]
		if !ok || current.seq != seq || s.epoch != epoch {
			s.mu.Unlock()
			return
		}
		delete(s.tasks, id)
		s.mu.Unlock()
		fn()
	})
}

func (s *Scheduler) cancelLocked(name string) {
	id := s.taskID(name)
	if t, ok := s.tasks[id]; ok {
		t.timer.Stop()
		delete(s.tasks, id)
	}
}

func (s *Scheduler) cancelAllLocked() {
	for id, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, id)
	}
}

// PendingTasks lists the ids of scheduled tasks, sorted.
func (s *Scheduler) PendingTasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
