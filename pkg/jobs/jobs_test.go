package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/netval-app/netval/internal/testutil"
	"github.com/netval-app/netval/pkg/model"
)

func TestHubFanOutPreservesOrder(t *testing.T) {
	h := NewHub()
	ch1, cancel1 := h.Subscribe("job-1")
	ch2, cancel2 := h.Subscribe("job-1")
	defer cancel1()
	defer cancel2()

	for i := 0; i < 5; i++ {
		h.Publish("job-1", Event{Event: EventCheckStart, CheckID: string(rune('a' + i))})
	}
	for _, ch := range []<-chan Event{ch1, ch2} {
		for i := 0; i < 5; i++ {
			ev := <-ch
			if ev.CheckID != string(rune('a'+i)) {
				t.Fatalf("event %d = %+v, order lost", i, ev)
			}
		}
	}
}

func TestHubIsolatesJobs(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("job-1")
	defer cancel()

	h.Publish("job-2", Event{Event: EventPushLine, Line: "not for you"})
	select {
	case ev := <-ch:
		t.Fatalf("received another job's event: %+v", ev)
	default:
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("job-1")
	cancel()

	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}
	// Publishing after the last unsubscribe is a no-op.
	h.Publish("job-1", Event{Event: EventComplete})
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("job-1")
	defer cancel()

	// Never read: overflow past the buffer must not block Publish.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			h.Publish("job-1", Event{Event: EventPushLine})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	if len(ch) != subscriberBuffer {
		t.Errorf("buffered = %d, want full buffer", len(ch))
	}
}

func TestHubCloseJob(t *testing.T) {
	h := NewHub()
	ch, _ := h.Subscribe("job-1")
	h.CloseJob("job-1")
	if _, open := <-ch; open {
		t.Error("channel still open after CloseJob")
	}
}

func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, open := <-ch:
			if !open {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("channel never closed")
		}
	}
}

func TestManagerCompletesJob(t *testing.T) {
	st := testutil.OpenStore(t)
	ctx := testutil.Context(t)
	c := testutil.SeedCampus(t, st)
	m := NewManager(st, NewHub())

	subscribed := make(chan struct{})
	job, err := m.Enqueue(ctx, c.ProjectID, model.JobSimulation, func(_ context.Context, emit func(Event)) (json.RawMessage, error) {
		<-subscribed
		emit(Event{Event: EventCheckStart, CheckID: "VLAN_CONTINUITY"})
		emit(Event{Event: EventCheckComplete, CheckID: "VLAN_CONTINUITY"})
		return json.RawMessage(`{"overall":"pass"}`), nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.Status != model.JobQueued {
		t.Errorf("enqueued status = %q", job.Status)
	}

	ch, cancel := m.Hub().Subscribe(job.ID)
	defer cancel()
	close(subscribed)

	events := drain(t, ch)
	if len(events) != 3 {
		t.Fatalf("events = %+v, want start, complete, terminal", events)
	}
	if events[0].Event != EventCheckStart || events[1].Event != EventCheckComplete {
		t.Errorf("progress events = %+v", events[:2])
	}
	last := events[2]
	if last.Event != EventComplete || string(last.Result) != `{"overall":"pass"}` {
		t.Errorf("terminal event = %+v", last)
	}

	got, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.JobComplete || string(got.Result) != `{"overall":"pass"}` {
		t.Errorf("job = %+v", got)
	}
}

func TestManagerRecordsFailure(t *testing.T) {
	st := testutil.OpenStore(t)
	ctx := testutil.Context(t)
	c := testutil.SeedCampus(t, st)
	m := NewManager(st, NewHub())

	started := make(chan string, 1)
	job, err := m.Enqueue(ctx, c.ProjectID, model.JobIngestion, func(context.Context, func(Event)) (json.RawMessage, error) {
		<-started
		return nil, errors.New("device unreachable")
	})
	if err != nil {
		t.Fatal(err)
	}
	ch, cancel := m.Hub().Subscribe(job.ID)
	defer cancel()
	started <- "go"

	events := drain(t, ch)
	if len(events) != 1 || events[0].Event != EventFailed || events[0].Error != "device unreachable" {
		t.Errorf("events = %+v", events)
	}

	got, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.JobFailed || got.Error != "device unreachable" {
		t.Errorf("job = %+v", got)
	}
}

func TestManagerShutdownFailsInFlightJobs(t *testing.T) {
	st := testutil.OpenStore(t)
	ctx := testutil.Context(t)
	c := testutil.SeedCampus(t, st)
	m := NewManager(st, NewHub())

	running := make(chan struct{})
	job, err := m.Enqueue(ctx, c.ProjectID, model.JobRemediation, func(jctx context.Context, _ func(Event)) (json.RawMessage, error) {
		close(running)
		<-jctx.Done()
		return nil, jctx.Err()
	})
	if err != nil {
		t.Fatal(err)
	}
	<-running

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Shutdown(sctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	got, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.JobFailed {
		t.Errorf("status = %q, want failed after shutdown", got.Status)
	}
}
