// Package jobs issues and tracks long-running jobs and multiplexes their
// progress events to WebSocket subscribers.
package jobs

import (
	"encoding/json"
	"sync"

	"github.com/netval-app/netval/pkg/util"
)

// Event is one streamed progress message. The terminal complete/failed
// event always carries the full result payload.
type Event struct {
	Event    string          `json:"event"`
	CheckID  string          `json:"check_id,omitempty"`
	DeviceID string          `json:"device_id,omitempty"`
	Line     string          `json:"line,omitempty"`
	Status   string          `json:"status,omitempty"`
	Error    string          `json:"error,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
}

// Event kinds.
const (
	EventCheckStart         = "check_start"
	EventCheckComplete      = "check_complete"
	EventPushLine           = "push_line"
	EventPushDeviceComplete = "push_device_complete"
	EventComplete           = "complete"
	EventFailed             = "failed"
)

const subscriberBuffer = 256

// Hub is the process-wide subscription table. Events for one job are
// fanned out to its subscribers in submission order; a subscriber that
// cannot keep up has events dropped rather than stalling the job.
type Hub struct {
	mu   sync.Mutex
	subs map[string][]chan Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string][]chan Event)}
}

// Subscribe registers interest in a job's events. The returned cancel
// function must be called when the subscriber goes away.
func (h *Hub) Subscribe(jobID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[jobID] = append(h.subs[jobID], ch)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		chans := h.subs[jobID]
		for i, c := range chans {
			if c == ch {
				h.subs[jobID] = append(chans[:i], chans[i+1:]...)
				close(c)
				break
			}
		}
		if len(h.subs[jobID]) == 0 {
			delete(h.subs, jobID)
		}
	}
	return ch, cancel
}

// Publish fans an event out to every subscriber of the job.
func (h *Hub) Publish(jobID string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[jobID] {
		select {
		case ch <- ev:
		default:
			util.WithJob(jobID).Warnf("dropping %s event for slow subscriber", ev.Event)
		}
	}
}

// CloseJob closes every subscription of a terminated job.
func (h *Hub) CloseJob(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[jobID] {
		close(ch)
	}
	delete(h.subs, jobID)
}
