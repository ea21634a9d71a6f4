// Package worker pulls tasks off the backend queue, dispatches them under
// timeout/cancellation supervision, and delivers results back.
package worker

import (
	"sort"
	"sync"
	"time"
)

// Worker states published to the health tracker.
const (
	StateIdle    = "idle"
	StateRunning = "running"
	StateError   = "error"
)

// WorkerStatus is one worker's last published heartbeat.
type WorkerStatus struct {
	ID          string    `json:"id"`
	State       string    `json:"state"`
	CurrentTask string    `json:"current_task,omitempty"`
	LastBeat    time.Time `json:"last_beat"`
	Healthy     bool      `json:"healthy"`
}

// HealthReport is a snapshot over all workers.
type HealthReport struct {
	Total   int            `json:"total"`
	Healthy int            `json:"healthy"`
	Details []WorkerStatus `json:"details"`
}

// Tracker records worker heartbeats. Workers beat on every state
// transition; a worker whose last beat is older than the staleness window
// counts as unhealthy. Safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	workers map[string]WorkerStatus
	stale   time.Duration
	now     func() time.Time
}

// NewTracker builds a tracker with the given staleness window.
func NewTracker(stale time.Duration) *Tracker {
	if stale <= 0 {
		stale = 30 * time.Second
	}
	return &Tracker{
		workers: make(map[string]WorkerStatus),
		stale:   stale,
		now:     time.Now,
	}
}

// Beat publishes a worker's current state.
func (t *Tracker) Beat(workerID, state, currentTask string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.workers[workerID] = WorkerStatus{
		ID:          workerID,
		State:       state,
		CurrentTask: currentTask,
		LastBeat:    t.now(),
	}
}

// Remove drops a stopped worker from the report.
func (t *Tracker) Remove(workerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.workers, workerID)
}

// Snapshot reports every tracked worker, healthy meaning a fresh beat.
func (t *Tracker) Snapshot() HealthReport {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := t.now().Add(-t.stale)
	report := HealthReport{Details: make([]WorkerStatus, 0, len(t.workers))}
	for _, w := range t.workers {
		w.Healthy = w.LastBeat.After(cutoff)
		report.Total++
		if w.Healthy {
			report.Healthy++
		}
		report.Details = append(report.Details, w)
	}
	sort.Slice(report.Details, func(i, j int) bool {
		return report.Details[i].ID < report.Details[j].ID
	})
	return report
}

// AllHealthy reports whether every tracked worker is fresh. An empty
// tracker is healthy; workers may not have started yet.
func (t *Tracker) AllHealthy() bool {
	report := t.Snapshot()
	return report.Healthy == report.Total
}
