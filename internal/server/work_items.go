package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/joseph-ayodele/jobtracker/constants"
	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
	"github.com/joseph-ayodele/jobtracker/internal/repository"
	"github.com/joseph-ayodele/jobtracker/internal/tracker"
)

type completeRequest struct {
	JobID     string `json:"job_id"`
	SubJobID  string `json:"sub_job_id"`
	ProcessID int    `json:"process_id"`
}

func parseStatus(r *http.Request) (constants.StatusFilter, error) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	if raw == "" {
		return constants.FilterAll, nil
	}
	v := common.NewValidator().Field("status", raw, common.OneOf(constants.StatusFilterValues()...))
	if err := common.ValidateAndReturnError(v); err != nil {
		return "", err
	}
	return constants.StatusFilter(raw), nil
}

// pathID returns the {id} route variable, which must be a UUID.
func pathID(r *http.Request) (string, error) {
	id := mux.Vars(r)["id"]
	v := common.NewValidator().Field("id", id, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Server) handleListWorkItems(w http.ResponseWriter, r *http.Request) {
	q := tracker.Query{Search: r.URL.Query().Get("q")}
	if raw := strings.TrimSpace(r.URL.Query().Get("process_id")); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			writeError(w, r, s.logger, common.ValidationErrorf(common.CodeValidation, "process_id must be a positive integer"))
			return
		}
		q.ProcessID = &id
	}
	status, err := parseStatus(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	q.Status = status

	items, err := s.tracker.List(r.Context(), q)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if items == nil {
		items = []*entity.WorkItemView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"work_items": items})
}

// handleCompleteWorkItem completes by composite key on behalf of the signed-in employee.
func (s *Server) handleCompleteWorkItem(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	actor := principalFrom(r.Context()).Account.EmployeeCode
	key := repository.WorkItemKey{JobID: req.JobID, SubJobID: req.SubJobID, ProcessID: req.ProcessID}
	if err := s.tracker.Complete(r.Context(), key, actor); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Process marked as completed"})
}

func (s *Server) handleCompleteWorkItemByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	actor := principalFrom(r.Context()).Account.EmployeeCode
	if err := s.tracker.CompleteByID(r.Context(), id, actor); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Process marked as completed"})
}

func (s *Server) handleRevertWorkItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if err := s.tracker.Revert(r.Context(), id); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Process reverted to pending"})
}
