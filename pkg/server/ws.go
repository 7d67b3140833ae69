package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/netval-app/netval/pkg/jobs"
	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || originAllowed(origin)
	},
}

// handleWS streams a job's events. A subscriber arriving after the job
// finished gets a single terminal event replayed from the persisted row.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["job_id"]
	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}

	// Subscribe before re-reading terminal state so no event can fall
	// between the check and the subscription.
	ch, cancel := s.jobs.Hub().Subscribe(jobID)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	log := util.WithJob(jobID)

	job, err = s.store.GetJob(r.Context(), jobID)
	if err == nil && job.Status.Terminal() {
		ev := jobs.Event{Event: jobs.EventComplete, Result: job.Result}
		if job.Status == model.JobFailed {
			ev = jobs.Event{Event: jobs.EventFailed, Error: job.Error, Result: job.Result}
		}
		if err := conn.WriteJSON(ev); err != nil {
			log.Debugf("replaying terminal event: %v", err)
		}
		return
	}

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			log.Debugf("websocket write: %v", err)
			return
		}
		if ev.Event == jobs.EventComplete || ev.Event == jobs.EventFailed {
			return
		}
	}
}
