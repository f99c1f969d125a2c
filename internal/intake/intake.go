// Package intake turns a job card submission into a job, its sub-jobs and one pending
// work item per selected process.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/jobtracker/constants"
	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
	"github.com/joseph-ayodele/jobtracker/internal/notify"
	"github.com/joseph-ayodele/jobtracker/internal/repository"
)

const (
	dateLayout = "2006-01-02"

	msgCreated          = "Job card created successfully"
	msgCreatedNoSubJobs = "Job card created successfully (no sub jobs)"
)

// TxRunner runs fn inside one database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, repos *repository.Repos) error) error
}

type Result struct {
	Message        string `json:"message"`
	JobID          string `json:"job_id"`
	JobCode        string `json:"job_code"`
	SubJobsCount   int    `json:"sub_jobs_count"`
	ProcessesCount int    `json:"processes_count"`
}

type Service struct {
	db        TxRunner
	publisher notify.Publisher
	logger    *slog.Logger
	schema    *jsonschema.Schema
	now       func() time.Time
	newID     func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(db TxRunner, publisher notify.Publisher, logger *slog.Logger, opts ...Option) (*Service, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile submit-job schema: %w", err)
	}
	s := &Service{
		db:        db,
		publisher: publisher,
		logger:    logger,
		schema:    schema,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SubmitJSON validates a raw request body against the submission schema and submits it.
func (s *Service) SubmitJSON(ctx context.Context, body []byte) (*Result, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, common.ValidationErrorf(common.CodeValidation, "request body is not valid JSON: %v", err)
	}
	if err := s.schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, common.ValidationErrorf(common.CodeValidation, "invalid request: %s", schemaMessage(ve))
		}
		return nil, common.ValidationErrorf(common.CodeValidation, "invalid request: %v", err)
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, common.ValidationErrorf(common.CodeValidation, "invalid request: %v", err)
	}
	return s.Submit(ctx, req)
}

// Submit validates req and writes the job, its sub-jobs and their work items in one
// transaction. Nothing is persisted when any step fails.
func (s *Service) Submit(ctx context.Context, req Request) (*Result, error) {
	start, required, err := validate(req)
	if err != nil {
		s.logger.Warn("intake.validation.failed", "job_id", req.JobID, "error", err)
		return nil, err
	}

	now := s.now().UTC()
	jobID := strings.TrimSpace(req.JobID)
	job := &entity.Job{
		JobID:        jobID,
		JobCode:      s.newID(),
		CustomerName: strings.TrimSpace(req.CustomerName),
		StartDate:    start,
		RequiredDate: required,
		CreatedAt:    now,
	}
	res := &Result{Message: msgCreatedNoSubJobs, JobID: job.JobID, JobCode: job.JobCode}

	err = s.db.InTx(ctx, func(ctx context.Context, repos *repository.Repos) error {
		if err := repos.Jobs.Create(ctx, job); err != nil {
			return err
		}
		if len(req.SubJobs) == 0 {
			return nil
		}

		subJobs := make([]*entity.SubJob, 0, len(req.SubJobs))
		for _, in := range req.SubJobs {
			subJobs = append(subJobs, &entity.SubJob{
				SubJobCode:   s.newID(),
				SubJobID:     strings.TrimSpace(in.SubJobID),
				JobID:        job.JobID,
				JobCode:      job.JobCode,
				Color:        in.Color,
				CardSize:     in.CardSize,
				CardQuantity: in.CardQuantity.Value,
				ItemQuantity: in.ItemQuantity.Value,
				Description:  in.Description,
				CreatedAt:    now,
			})
		}
		if err := repos.Jobs.CreateSubJobs(ctx, subJobs); err != nil {
			return err
		}

		byName, err := s.lookupProcesses(ctx, repos.Processes, req.SubJobs)
		if err != nil {
			return err
		}

		var items []*entity.WorkItem
		for i, in := range req.SubJobs {
			names := in.SelectedProcesses()
			sort.Strings(names)
			for _, name := range names {
				p, ok := byName[name]
				if !ok {
					s.logger.Warn("intake.process.unknown", "job_id", job.JobID, "sub_job_id", subJobs[i].SubJobID, "process", name)
					continue
				}
				items = append(items, &entity.WorkItem{
					ID:        s.newID(),
					JobID:     job.JobID,
					SubJobID:  subJobs[i].SubJobID,
					ProcessID: p.ID,
					Status:    constants.WorkStatusPending,
					CreatedAt: now,
					UpdatedAt: now,
				})
			}
		}
		if err := repos.WorkItems.CreateBatch(ctx, items); err != nil {
			s.logger.Error("intake.fanout.failed", "job_id", job.JobID, "count", len(items), "error", err)
			return common.DependencyError(common.CodeProcessFanoutFailed,
				fmt.Sprintf("failed to create processes for job %s", job.JobID), err)
		}

		res.Message = msgCreated
		res.SubJobsCount = len(subJobs)
		res.ProcessesCount = len(items)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("intake.job.created", "job_id", res.JobID, "job_code", res.JobCode,
		"sub_jobs", res.SubJobsCount, "processes", res.ProcessesCount)
	notify.PublishQuietly(ctx, s.publisher, s.logger, notify.Event{Topic: notify.TopicJobs, Op: notify.OpInsert, Key: res.JobID})
	if res.ProcessesCount > 0 {
		notify.PublishQuietly(ctx, s.publisher, s.logger, notify.Event{Topic: notify.TopicWorkItems, Op: notify.OpInsert, Key: res.JobID})
	}
	return res, nil
}

// lookupProcesses resolves every selected process name across the submission in one query.
func (s *Service) lookupProcesses(ctx context.Context, processes repository.ProcessRepository, in []SubJobInput) (map[string]*entity.Process, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, sj := range in {
		for _, name := range sj.SelectedProcesses() {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
	}
	byName := make(map[string]*entity.Process, len(names))
	if len(names) == 0 {
		return byName, nil
	}
	sort.Strings(names)
	found, err := processes.FindByNames(ctx, names)
	if err != nil {
		return nil, err
	}
	for _, p := range found {
		byName[p.Name] = p
	}
	return byName, nil
}

// validate runs every semantic check before anything is written and returns the
// parsed dates.
func validate(req Request) (start, required *time.Time, err error) {
	v := common.NewValidator()
	v.Field("job_id", req.JobID, common.Required, common.MaxLength(100))

	start, ok := parseDate(req.StartDate)
	v.Check(ok, "start_date", req.StartDate, "must be a date in YYYY-MM-DD format")
	required, ok = parseDate(req.RequiredDate)
	v.Check(ok, "required_date", req.RequiredDate, "must be a date in YYYY-MM-DD format")

	seen := make(map[string]int, len(req.SubJobs))
	for i, sj := range req.SubJobs {
		prefix := fmt.Sprintf("sub_jobs[%d].", i)
		id := strings.TrimSpace(sj.SubJobID)
		v.Field(prefix+"sub_job_id", id, common.Required)
		if id != "" {
			if first, dup := seen[id]; dup {
				v.Check(false, prefix+"sub_job_id", id, fmt.Sprintf("duplicates sub_jobs[%d]", first))
			} else {
				seen[id] = i
			}
		}
		v.Field(prefix+"card_quantity", sj.CardQuantity.Value, common.NonNegative)
		v.Field(prefix+"item_quantity", sj.ItemQuantity.Value, common.NonNegative)
	}

	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, nil, err
	}
	return start, required, nil
}

// parseDate accepts an empty value as unset.
func parseDate(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
