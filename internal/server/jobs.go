package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/joseph-ayodele/jobtracker/internal/entity"
)

// handleSubmitJob validates the raw body against the submission schema and creates the
// job card with its sub-jobs and process fan-out.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	res, err := s.intake.SubmitJSON(r.Context(), body)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListProcesses(w http.ResponseWriter, r *http.Request) {
	processes, err := s.repos.Processes.List(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if processes == nil {
		processes = []*entity.Process{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"processes": processes})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["job_id"]
	ctx := r.Context()
	job, err := s.repos.Jobs.Get(ctx, jobID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	subJobs, err := s.repos.Jobs.ListSubJobs(ctx, []string{jobID})
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if subJobs == nil {
		subJobs = []*entity.SubJob{}
	}
	writeJSON(w, http.StatusOK, entity.JobDetail{Job: job, SubJobs: subJobs})
}
