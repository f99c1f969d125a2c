// Package tracker lists work items for a department and moves them between pending and
// completed. Transitions are last-writer-wins and keep no history.
package tracker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/jobtracker/constants"
	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
	"github.com/joseph-ayodele/jobtracker/internal/notify"
	"github.com/joseph-ayodele/jobtracker/internal/repository"
)

// Query selects work items. A nil ProcessID lists every process.
type Query struct {
	ProcessID *int
	Status    constants.StatusFilter
	Search    string
}

type Service struct {
	repos     *repository.Repos
	publisher notify.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repos *repository.Repos, publisher notify.Publisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{repos: repos, publisher: publisher, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns matching work items newest first, enriched with customer, process and
// sub-job details. Search matches job id or customer name, ignoring case.
func (s *Service) List(ctx context.Context, q Query) ([]*entity.WorkItemView, error) {
	status := q.Status
	if status == "" {
		status = constants.FilterAll
	}
	items, err := s.repos.WorkItems.List(ctx, repository.WorkItemFilter{ProcessID: q.ProcessID, Status: status})
	if err != nil {
		return nil, err
	}
	views, err := Enrich(ctx, s.repos, items)
	if err != nil {
		return nil, err
	}
	return Filter(views, q.Search), nil
}

// Enrich joins items with their job, process and sub-job rows. Missing rows leave the
// display fields empty.
func Enrich(ctx context.Context, repos *repository.Repos, items []*entity.WorkItem) ([]*entity.WorkItemView, error) {
	views := make([]*entity.WorkItemView, 0, len(items))
	if len(items) == 0 {
		return views, nil
	}

	var jobIDs []string
	seen := make(map[string]struct{})
	for _, it := range items {
		if _, ok := seen[it.JobID]; !ok {
			seen[it.JobID] = struct{}{}
			jobIDs = append(jobIDs, it.JobID)
		}
	}
	jobs, err := repos.Jobs.ListByIDs(ctx, jobIDs)
	if err != nil {
		return nil, err
	}
	subJobs, err := repos.Jobs.ListSubJobs(ctx, jobIDs)
	if err != nil {
		return nil, err
	}
	descriptions := make(map[[2]string]string, len(subJobs))
	for _, sj := range subJobs {
		descriptions[[2]string{sj.JobID, sj.SubJobID}] = sj.Description
	}
	processes, err := repos.Processes.List(ctx)
	if err != nil {
		return nil, err
	}
	processNames := make(map[int]string, len(processes))
	for _, p := range processes {
		processNames[p.ID] = p.Name
	}

	for _, it := range items {
		v := &entity.WorkItemView{
			WorkItem:          *it,
			ProcessName:       processNames[it.ProcessID],
			SubJobDescription: descriptions[[2]string{it.JobID, it.SubJobID}],
		}
		if j, ok := jobs[it.JobID]; ok {
			v.CustomerName = j.CustomerName
		}
		views = append(views, v)
	}
	return views, nil
}

// Filter keeps views whose job id or customer name contains search, ignoring case.
func Filter(views []*entity.WorkItemView, search string) []*entity.WorkItemView {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return views
	}
	out := make([]*entity.WorkItemView, 0, len(views))
	for _, v := range views {
		if strings.Contains(strings.ToLower(v.JobID), needle) ||
			strings.Contains(strings.ToLower(v.CustomerName), needle) {
			out = append(out, v)
		}
	}
	return out
}

// Complete marks the item identified by its composite key completed by actor. Completing
// an already completed item overwrites the actor and timestamp.
func (s *Service) Complete(ctx context.Context, key repository.WorkItemKey, actor string) error {
	v := common.NewValidator().
		Field("job_id", key.JobID, common.Required).
		Field("sub_job_id", key.SubJobID, common.Required).
		Check(key.ProcessID > 0, "process_id", key.ProcessID, "must be a positive integer").
		Field("employee_code", actor, common.Required)
	if err := common.ValidateAndReturnError(v); err != nil {
		return err
	}
	if err := s.repos.WorkItems.CompleteByKey(ctx, key, strings.TrimSpace(actor), s.now()); err != nil {
		return err
	}
	s.logger.Info("tracker.item.completed", "job_id", key.JobID, "sub_job_id", key.SubJobID, "process_id", key.ProcessID, "actor", actor)
	notify.PublishQuietly(ctx, s.publisher, s.logger, notify.Event{Topic: notify.TopicWorkItems, Op: notify.OpUpdate, Key: key.JobID})
	return nil
}

// CompleteByID is Complete addressed by record id.
func (s *Service) CompleteByID(ctx context.Context, id, actor string) error {
	v := common.NewValidator().
		Field("id", id, common.Required).
		Field("employee_code", actor, common.Required)
	if err := common.ValidateAndReturnError(v); err != nil {
		return err
	}
	if err := s.repos.WorkItems.CompleteByID(ctx, id, strings.TrimSpace(actor), s.now()); err != nil {
		return err
	}
	s.logger.Info("tracker.item.completed", "work_item_id", id, "actor", actor)
	notify.PublishQuietly(ctx, s.publisher, s.logger, notify.Event{Topic: notify.TopicWorkItems, Op: notify.OpUpdate, Key: id})
	return nil
}

// Revert returns an item to pending and clears its actor.
func (s *Service) Revert(ctx context.Context, id string) error {
	if err := common.ValidateAndReturnError(common.NewValidator().Field("id", id, common.Required)); err != nil {
		return err
	}
	if err := s.repos.WorkItems.Revert(ctx, id, s.now()); err != nil {
		return err
	}
	s.logger.Info("tracker.item.reverted", "work_item_id", id)
	notify.PublishQuietly(ctx, s.publisher, s.logger, notify.Event{Topic: notify.TopicWorkItems, Op: notify.OpUpdate, Key: id})
	return nil
}
