package jobs

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/store"
	"github.com/netval-app/netval/pkg/util"
)

// RunFunc performs the actual work of a job, emitting progress events as
// it goes, and returns the terminal result payload.
type RunFunc func(ctx context.Context, emit func(Event)) (json.RawMessage, error)

// Manager couples job persistence with event streaming. Work runs on its
// own goroutine; the request handler returns immediately with the job id.
type Manager struct {
	store *store.Store
	hub   *Hub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager over the store and hub.
func NewManager(st *store.Store, hub *Hub) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{store: st, hub: hub, ctx: ctx, cancel: cancel}
}

// Hub exposes the subscription table for the WebSocket layer.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Enqueue persists a queued job and launches fn on a background goroutine.
// The terminal event always carries the full result payload so subscribers
// never need a second read.
func (m *Manager) Enqueue(ctx context.Context, projectID string, kind model.JobKind, fn RunFunc) (*model.Job, error) {
	job, err := m.store.CreateJob(ctx, projectID, kind)
	if err != nil {
		return nil, err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(job, fn)
	}()
	return job, nil
}

func (m *Manager) run(job *model.Job, fn RunFunc) {
	log := util.WithJob(job.ID).WithField("kind", job.Kind)
	defer m.hub.CloseJob(job.ID)

	if err := m.store.StartJob(m.ctx, job.ID); err != nil {
		log.Errorf("starting job: %v", err)
		return
	}

	emit := func(ev Event) { m.hub.Publish(job.ID, ev) }
	result, err := fn(m.ctx, emit)
	if err != nil {
		log.Errorf("job failed: %v", err)
		if serr := m.store.FailJob(m.ctx, job.ID, err.Error()); serr != nil {
			log.Errorf("recording job failure: %v", serr)
		}
		m.hub.Publish(job.ID, Event{Event: EventFailed, Error: err.Error(), Result: result})
		return
	}

	if serr := m.store.CompleteJob(m.ctx, job.ID, result); serr != nil {
		log.Errorf("recording job result: %v", serr)
		return
	}
	m.hub.Publish(job.ID, Event{Event: EventComplete, Result: result})
	log.Infof("job complete")
}

// Shutdown cancels in-flight jobs, waits for their goroutines, and marks
// anything still queued or running as failed.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return m.store.FailRunningJobs(context.Background(), "server shutdown")
}
