package server

import (
	"net/http"

	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/directory"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
)

type updateWorkerRequest struct {
	ID string `json:"id"`
	directory.UpdateWorkerRequest
}

type deleteWorkerRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := s.workers.ListWorkers(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workers": workers})
}

func (s *Server) handleCreateWorker(w http.ResponseWriter, r *http.Request) {
	var req directory.CreateWorkerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	worker, err := s.workers.CreateWorker(r.Context(), req)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Worker created successfully", "worker": worker})
}

func (s *Server) handleUpdateWorker(w http.ResponseWriter, r *http.Request) {
	var req updateWorkerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	worker, err := s.workers.UpdateWorker(r.Context(), req.ID, req.UpdateWorkerRequest)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Worker updated successfully", "worker": worker})
}

func (s *Server) handleDeleteWorker(w http.ResponseWriter, r *http.Request) {
	var req deleteWorkerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if req.ID == principalFrom(r.Context()).Account.ID {
		writeError(w, r, s.logger, common.ValidationErrorf(common.CodeValidation, "you cannot delete your own account"))
		return
	}
	if err := s.workers.DeleteWorker(r.Context(), req.ID); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Worker deleted successfully"})
}

func (s *Server) handleListMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := s.machines.ListMachines(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if machines == nil {
		machines = []*entity.Machine{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"machines": machines})
}

func (s *Server) handleGetMachine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	m, err := s.machines.GetMachine(r.Context(), id)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCreateMachine(w http.ResponseWriter, r *http.Request) {
	var req directory.MachineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	m, err := s.machines.CreateMachine(r.Context(), req)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateMachine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	var req directory.MachineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	m, err := s.machines.UpdateMachine(r.Context(), id, req)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMachine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if err := s.machines.DeleteMachine(r.Context(), id); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
