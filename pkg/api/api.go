package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pedro-r-marques/taskflow/pkg/engine"
	"github.com/pedro-r-marques/taskflow/pkg/scheduler"
)

type ApiServer struct {
	scheduler scheduler.Scheduler
}

func NewApiServer(s scheduler.Scheduler) *ApiServer {
	return &ApiServer{scheduler: s}
}

func setHttpError(w http.ResponseWriter, statusCode int, errMessage string) {
	w.WriteHeader(statusCode)
	w.Write([]byte(errMessage))
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, scheduler.ErrJobRunning):
		return http.StatusConflict
	case errors.Is(err, engine.ErrConfiguration):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		setHttpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-type", "application/json")
	w.Write(body)
}

func jobName(req *http.Request) string {
	return strings.Trim(strings.TrimPrefix(req.URL.Path, "/api/job"), "/")
}

// GET /api/jobs
func (s *ApiServer) listJobs(w http.ResponseWriter, req *http.Request) {
	var response struct {
		Jobs []scheduler.JobInfo `json:"jobs"`
	}
	response.Jobs = s.scheduler.ListJobs()
	writeJSON(w, response)
}

func (s *ApiServer) jobInfo(name string) *scheduler.JobInfo {
	for _, j := range s.scheduler.ListJobs() {
		if j.Name == name {
			return &j
		}
	}
	return nil
}

// GET /api/job/<name>
func (s *ApiServer) getJob(w http.ResponseWriter, req *http.Request) {
	name := jobName(req)
	run, err := s.scheduler.LastRun(name)
	if err != nil {
		setHttpError(w, errorStatus(err), err.Error())
		return
	}
	info := s.jobInfo(name)
	if info == nil {
		setHttpError(w, http.StatusNotFound, "unknown job "+name)
		return
	}

	response := struct {
		Job     *scheduler.JobInfo `json:"job"`
		LastRun *engine.Run        `json:"lastRun,omitempty"`
	}{info, run}
	writeJSON(w, response)
}

// POST /api/job/<name>
// A sync job runs to completion before the response, which carries the run
// trace. An async job is only dispatched.
func (s *ApiServer) runJob(w http.ResponseWriter, req *http.Request) {
	name := jobName(req)
	info := s.jobInfo(name)
	if info == nil {
		setHttpError(w, http.StatusNotFound, "unknown job "+name)
		return
	}
	if err := s.scheduler.RunNow(name); err != nil {
		setHttpError(w, errorStatus(err), err.Error())
		return
	}
	log.Info().Str("job", name).Str("mode", info.Mode.String()).Msg("api: run now")
	if info.Mode == scheduler.Async {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	run, err := s.scheduler.LastRun(name)
	if err != nil {
		setHttpError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, run)
}

// DELETE /api/job/<name>
func (s *ApiServer) deleteJob(w http.ResponseWriter, req *http.Request) {
	name := jobName(req)
	if err := s.scheduler.RemoveJob(name); err != nil {
		setHttpError(w, errorStatus(err), err.Error())
		return
	}
	log.Info().Str("job", name).Msg("api: job removed")
	w.WriteHeader(http.StatusNoContent)
}

func (s *ApiServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !strings.HasPrefix(req.URL.Path, "/api/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	command := req.URL.Path[len("/api/"):]
	loc := strings.Index(command, "/")
	if loc != -1 {
		command = command[:loc]
	}
	switch command {
	case "jobs":
		if req.Method == http.MethodGet {
			s.listJobs(w, req)
		} else {
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "job":
		if jobName(req) == "" {
			setHttpError(w, http.StatusBadRequest, "job name required")
			return
		}
		switch req.Method {
		case http.MethodGet:
			s.getJob(w, req)
		case http.MethodPost:
			s.runJob(w, req)
		case http.MethodDelete:
			s.deleteJob(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
