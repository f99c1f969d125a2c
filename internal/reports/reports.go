// Package reports aggregates work items into the admin's job overview, per-process
// progress and spreadsheet exports.
package reports

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/joseph-ayodele/jobtracker/constants"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
	"github.com/joseph-ayodele/jobtracker/internal/repository"
	"github.com/joseph-ayodele/jobtracker/internal/tracker"
)

type Query struct {
	Status constants.StatusFilter
	Search string
}

type JobReport struct {
	JobID        string          `json:"job_id"`
	JobCode      string          `json:"job_code"`
	CustomerName string          `json:"customer_name"`
	StartDate    *time.Time      `json:"start_date"`
	RequiredDate *time.Time      `json:"required_date"`
	SubJobs      []*SubJobReport `json:"sub_jobs"`
}

type SubJobReport struct {
	SubJobID     string                 `json:"sub_job_id"`
	Description  string                 `json:"description"`
	Color        string                 `json:"color"`
	CardSize     string                 `json:"card_size"`
	CardQuantity *int                   `json:"card_quantity"`
	ItemQuantity *int                   `json:"item_quantity"`
	Processes    []*entity.WorkItemView `json:"processes"`
}

type ProcessSummary struct {
	ProcessID int    `json:"process_id"`
	Name      string `json:"name"`
	Pending   int    `json:"pending"`
	Completed int    `json:"completed"`
}

type JobProgress struct {
	JobID        string `json:"job_id"`
	CustomerName string `json:"customer_name"`
	Total        int    `json:"total"`
	Completed    int    `json:"completed"`
}

type Summary struct {
	Processes []*ProcessSummary `json:"processes"`
	Jobs      []*JobProgress    `json:"jobs"`
}

// Service builds reports from the pool-bound repositories.
type Service struct {
	repos  *repository.Repos
	logger *slog.Logger
}

func NewService(repos *repository.Repos, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repos: repos, logger: logger}
}

// items returns every matching work item, newest first and enriched.
func (s *Service) items(ctx context.Context, q Query) ([]*entity.WorkItemView, error) {
	status := q.Status
	if status == "" {
		status = constants.FilterAll
	}
	raw, err := s.repos.WorkItems.List(ctx, repository.WorkItemFilter{Status: status})
	if err != nil {
		return nil, err
	}
	views, err := tracker.Enrich(ctx, s.repos, raw)
	if err != nil {
		return nil, err
	}
	return tracker.Filter(views, q.Search), nil
}

// List groups matching work items by job and then sub-job. Jobs keep the order of their
// newest item; sub-jobs are ordered by id.
func (s *Service) List(ctx context.Context, q Query) ([]*JobReport, error) {
	views, err := s.items(ctx, q)
	if err != nil {
		return nil, err
	}
	var jobIDs []string
	byJob := make(map[string][]*entity.WorkItemView)
	for _, v := range views {
		if _, ok := byJob[v.JobID]; !ok {
			jobIDs = append(jobIDs, v.JobID)
		}
		byJob[v.JobID] = append(byJob[v.JobID], v)
	}
	if len(jobIDs) == 0 {
		return []*JobReport{}, nil
	}

	jobs, err := s.repos.Jobs.ListByIDs(ctx, jobIDs)
	if err != nil {
		return nil, err
	}
	subJobs, err := s.repos.Jobs.ListSubJobs(ctx, jobIDs)
	if err != nil {
		return nil, err
	}
	subByKey := make(map[[2]string]*entity.SubJob, len(subJobs))
	for _, sj := range subJobs {
		subByKey[[2]string{sj.JobID, sj.SubJobID}] = sj
	}

	out := make([]*JobReport, 0, len(jobIDs))
	for _, id := range jobIDs {
		rep := &JobReport{JobID: id}
		if j, ok := jobs[id]; ok {
			rep.JobCode = j.JobCode
			rep.CustomerName = j.CustomerName
			rep.StartDate = j.StartDate
			rep.RequiredDate = j.RequiredDate
		}
		bySub := make(map[string]*SubJobReport)
		for _, v := range byJob[id] {
			sr, ok := bySub[v.SubJobID]
			if !ok {
				sr = &SubJobReport{SubJobID: v.SubJobID}
				if sj, ok := subByKey[[2]string{id, v.SubJobID}]; ok {
					sr.Description = sj.Description
					sr.Color = sj.Color
					sr.CardSize = sj.CardSize
					sr.CardQuantity = sj.CardQuantity
					sr.ItemQuantity = sj.ItemQuantity
				}
				bySub[v.SubJobID] = sr
				rep.SubJobs = append(rep.SubJobs, sr)
			}
			sr.Processes = append(sr.Processes, v)
		}
		sort.Slice(rep.SubJobs, func(i, j int) bool { return rep.SubJobs[i].SubJobID < rep.SubJobs[j].SubJobID })
		for _, sr := range rep.SubJobs {
			sort.SliceStable(sr.Processes, func(i, j int) bool { return sr.Processes[i].ProcessID < sr.Processes[j].ProcessID })
		}
		out = append(out, rep)
	}
	return out, nil
}

// Summary counts pending and completed items per process and progress per job. Every
// reference process appears, including those with no items.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	views, err := s.items(ctx, Query{Status: constants.FilterAll})
	if err != nil {
		return nil, err
	}
	processes, err := s.repos.Processes.List(ctx)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Processes: make([]*ProcessSummary, 0, len(processes)), Jobs: []*JobProgress{}}
	byProcess := make(map[int]*ProcessSummary, len(processes))
	for _, p := range processes {
		ps := &ProcessSummary{ProcessID: p.ID, Name: p.Name}
		byProcess[p.ID] = ps
		sum.Processes = append(sum.Processes, ps)
	}
	byJob := make(map[string]*JobProgress)
	for _, v := range views {
		done := v.Status == constants.WorkStatusCompleted
		if ps, ok := byProcess[v.ProcessID]; ok {
			if done {
				ps.Completed++
			} else {
				ps.Pending++
			}
		}
		jp, ok := byJob[v.JobID]
		if !ok {
			jp = &JobProgress{JobID: v.JobID, CustomerName: v.CustomerName}
			byJob[v.JobID] = jp
			sum.Jobs = append(sum.Jobs, jp)
		}
		jp.Total++
		if done {
			jp.Completed++
		}
	}
	return sum, nil
}
