package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/joseph-ayodele/jobtracker/internal/reports"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) reportQuery(r *http.Request) (reports.Query, error) {
	status, err := parseStatus(r)
	if err != nil {
		return reports.Query{}, err
	}
	return reports.Query{Status: status, Search: r.URL.Query().Get("q")}, nil
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	q, err := s.reportQuery(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	jobs, err := s.reports.List(r.Context(), q)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.reports.Summary(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleReportExport streams the filtered work items as an XLSX attachment.
func (s *Server) handleReportExport(w http.ResponseWriter, r *http.Request) {
	q, err := s.reportQuery(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	xlsx, err := s.reports.ExportXLSX(r.Context(), q)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "status", q.Status, "err", err)
		writeError(w, r, s.logger, err)
		return
	}
	name := fmt.Sprintf("work-items-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(xlsx)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}
