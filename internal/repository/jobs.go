package repository

import (
	"context"
	"database/sql"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	CreateSubJobs(ctx context.Context, subJobs []*entity.SubJob) error
	Get(ctx context.Context, jobID string) (*entity.Job, error)
	// ListByIDs returns the jobs with the given ids keyed by job_id.
	ListByIDs(ctx context.Context, jobIDs []string) (map[string]*entity.Job, error)
	// ListSubJobs returns the sub-jobs of the given jobs, ordered by job then sub-job id.
	ListSubJobs(ctx context.Context, jobIDs []string) ([]*entity.SubJob, error)
}

type jobRepository struct {
	store
}

var (
	jobColumns    = []string{"job_id", "job_code", "customer_name", "start_date", "required_date", "created_at"}
	subJobColumns = []string{"sub_job_code", "sub_job_id", "job_id", "job_code", "color", "card_size",
		"card_quantity", "item_quantity", "description", "created_at"}
)

func (r *jobRepository) Create(ctx context.Context, job *entity.Job) error {
	q := r.b.Insert(tableJobs).
		Columns(jobColumns...).
		Values(job.JobID, job.JobCode, job.CustomerName, nullTime(job.StartDate), nullTime(job.RequiredDate), job.CreatedAt.UTC())
	if _, err := r.run(ctx, q); err != nil {
		if isUniqueViolation(err) {
			return common.ConflictErrorf(common.CodeDuplicateJobID, "job id %s already exists", job.JobID)
		}
		r.logger.Error("failed to create job", "job_id", job.JobID, "error", err)
		return dbFailure("create job", err)
	}
	return nil
}

func (r *jobRepository) CreateSubJobs(ctx context.Context, subJobs []*entity.SubJob) error {
	if len(subJobs) == 0 {
		return nil
	}
	q := r.b.Insert(tableSubJobs).Columns(subJobColumns...)
	for _, s := range subJobs {
		q.Values(s.SubJobCode, s.SubJobID, s.JobID, s.JobCode, s.Color, s.CardSize,
			nullInt(s.CardQuantity), nullInt(s.ItemQuantity), s.Description, s.CreatedAt.UTC())
	}
	if _, err := r.run(ctx, q); err != nil {
		r.logger.Error("failed to create sub-jobs", "job_id", subJobs[0].JobID, "count", len(subJobs), "error", err)
		return dbFailure("create sub-jobs", err)
	}
	return nil
}

func scanJob(rows *entsql.Rows) (*entity.Job, error) {
	var (
		j              entity.Job
		start, require sql.NullTime
	)
	if err := rows.Scan(&j.JobID, &j.JobCode, &j.CustomerName, &start, &require, &j.CreatedAt); err != nil {
		return nil, err
	}
	j.StartDate = timePtr(start)
	j.RequiredDate = timePtr(require)
	return &j, nil
}

func (r *jobRepository) Get(ctx context.Context, jobID string) (*entity.Job, error) {
	jobs, err := r.ListByIDs(ctx, []string{jobID})
	if err != nil {
		return nil, err
	}
	j, ok := jobs[jobID]
	if !ok {
		return nil, common.NotFoundErrorf("job %s not found", jobID)
	}
	return j, nil
}

func (r *jobRepository) ListByIDs(ctx context.Context, jobIDs []string) (map[string]*entity.Job, error) {
	out := make(map[string]*entity.Job, len(jobIDs))
	if len(jobIDs) == 0 {
		return out, nil
	}
	q := r.b.Select(jobColumns...).From(r.b.Table(tableJobs)).Where(entsql.In("job_id", anySlice(jobIDs)...))
	err := r.query(ctx, q, func(rows *entsql.Rows) error {
		j, err := scanJob(rows)
		if err != nil {
			return err
		}
		out[j.JobID] = j
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list jobs", "count", len(jobIDs), "error", err)
		return nil, dbFailure("list jobs", err)
	}
	return out, nil
}

func (r *jobRepository) ListSubJobs(ctx context.Context, jobIDs []string) ([]*entity.SubJob, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}
	q := r.b.Select(subJobColumns...).
		From(r.b.Table(tableSubJobs)).
		Where(entsql.In("job_id", anySlice(jobIDs)...)).
		OrderBy(entsql.Asc("job_id"), entsql.Asc("sub_job_id"))
	var out []*entity.SubJob
	err := r.query(ctx, q, func(rows *entsql.Rows) error {
		var (
			s          entity.SubJob
			card, item sql.NullInt64
		)
		if err := rows.Scan(&s.SubJobCode, &s.SubJobID, &s.JobID, &s.JobCode, &s.Color, &s.CardSize,
			&card, &item, &s.Description, &s.CreatedAt); err != nil {
			return err
		}
		s.CardQuantity = intPtr(card)
		s.ItemQuantity = intPtr(item)
		out = append(out, &s)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list sub-jobs", "count", len(jobIDs), "error", err)
		return nil, dbFailure("list sub-jobs", err)
	}
	return out, nil
}

func anySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
