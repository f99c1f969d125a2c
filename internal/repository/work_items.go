package repository

import (
	"context"
	"database/sql"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/jobtracker/constants"
	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
)

// WorkItemFilter narrows List. A nil ProcessID matches every process.
type WorkItemFilter struct {
	ProcessID *int
	Status    constants.StatusFilter
}

// WorkItemKey identifies a work item by its natural composite key.
type WorkItemKey struct {
	JobID     string
	SubJobID  string
	ProcessID int
}

type WorkItemRepository interface {
	CreateBatch(ctx context.Context, items []*entity.WorkItem) error
	GetByID(ctx context.Context, id string) (*entity.WorkItem, error)
	// List returns matching work items, newest first.
	List(ctx context.Context, filter WorkItemFilter) ([]*entity.WorkItem, error)
	CompleteByKey(ctx context.Context, key WorkItemKey, actor string, at time.Time) error
	CompleteByID(ctx context.Context, id, actor string, at time.Time) error
	Revert(ctx context.Context, id string, at time.Time) error
}

type workItemRepository struct {
	store
}

var workItemColumns = []string{"id", "job_id", "sub_job_id", "process_id", "status", "employee_code", "created_at", "updated_at"}

func (r *workItemRepository) CreateBatch(ctx context.Context, items []*entity.WorkItem) error {
	if len(items) == 0 {
		return nil
	}
	q := r.b.Insert(tableWorkItems).Columns(workItemColumns...)
	for _, it := range items {
		q.Values(it.ID, it.JobID, it.SubJobID, it.ProcessID, string(it.Status), nullString(it.EmployeeCode),
			it.CreatedAt.UTC(), it.UpdatedAt.UTC())
	}
	if _, err := r.run(ctx, q); err != nil {
		r.logger.Error("failed to create work items", "job_id", items[0].JobID, "count", len(items), "error", err)
		return dbFailure("create work items", err)
	}
	return nil
}

func scanWorkItem(rows *entsql.Rows) (*entity.WorkItem, error) {
	var (
		w      entity.WorkItem
		status string
		actor  sql.NullString
	)
	if err := rows.Scan(&w.ID, &w.JobID, &w.SubJobID, &w.ProcessID, &status, &actor, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Status = constants.WorkStatus(status)
	w.EmployeeCode = stringPtr(actor)
	return &w, nil
}

func (r *workItemRepository) list(ctx context.Context, where *entsql.Predicate) ([]*entity.WorkItem, error) {
	q := r.b.Select(workItemColumns...).
		From(r.b.Table(tableWorkItems)).
		OrderBy(entsql.Desc("created_at"), entsql.Asc("id"))
	if where != nil {
		q.Where(where)
	}
	var out []*entity.WorkItem
	err := r.query(ctx, q, func(rows *entsql.Rows) error {
		w, err := scanWorkItem(rows)
		if err != nil {
			return err
		}
		out = append(out, w)
		return nil
	})
	return out, err
}

func (r *workItemRepository) GetByID(ctx context.Context, id string) (*entity.WorkItem, error) {
	out, err := r.list(ctx, entsql.EQ("id", id))
	if err != nil {
		r.logger.Error("failed to get work item", "work_item_id", id, "error", err)
		return nil, dbFailure("get work item", err)
	}
	if len(out) == 0 {
		return nil, common.NotFoundErrorf("work item %s not found", id)
	}
	return out[0], nil
}

func (r *workItemRepository) List(ctx context.Context, filter WorkItemFilter) ([]*entity.WorkItem, error) {
	var preds []*entsql.Predicate
	if filter.ProcessID != nil {
		preds = append(preds, entsql.EQ("process_id", *filter.ProcessID))
	}
	if filter.Status != "" && filter.Status != constants.FilterAll {
		preds = append(preds, entsql.EQ("status", string(filter.Status)))
	}
	var where *entsql.Predicate
	switch len(preds) {
	case 0:
	case 1:
		where = preds[0]
	default:
		where = entsql.And(preds...)
	}
	out, err := r.list(ctx, where)
	if err != nil {
		r.logger.Error("failed to list work items", "status", filter.Status, "error", err)
		return nil, dbFailure("list work items", err)
	}
	return out, nil
}

func (r *workItemRepository) CompleteByKey(ctx context.Context, key WorkItemKey, actor string, at time.Time) error {
	q := r.b.Update(tableWorkItems).
		Set("status", string(constants.WorkStatusCompleted)).
		Set("employee_code", actor).
		Set("updated_at", at.UTC()).
		Where(entsql.And(
			entsql.EQ("job_id", key.JobID),
			entsql.EQ("sub_job_id", key.SubJobID),
			entsql.EQ("process_id", key.ProcessID),
		))
	n, err := r.run(ctx, q)
	if err != nil {
		r.logger.Error("failed to complete work item", "job_id", key.JobID, "sub_job_id", key.SubJobID, "process_id", key.ProcessID, "error", err)
		return dbFailure("complete work item", err)
	}
	if n == 0 {
		return common.NotFoundErrorf("work item %s/%s/%d not found", key.JobID, key.SubJobID, key.ProcessID)
	}
	return nil
}

func (r *workItemRepository) CompleteByID(ctx context.Context, id, actor string, at time.Time) error {
	q := r.b.Update(tableWorkItems).
		Set("status", string(constants.WorkStatusCompleted)).
		Set("employee_code", actor).
		Set("updated_at", at.UTC()).
		Where(entsql.EQ("id", id))
	n, err := r.run(ctx, q)
	if err != nil {
		r.logger.Error("failed to complete work item", "work_item_id", id, "error", err)
		return dbFailure("complete work item", err)
	}
	if n == 0 {
		return common.NotFoundErrorf("work item %s not found", id)
	}
	return nil
}

func (r *workItemRepository) Revert(ctx context.Context, id string, at time.Time) error {
	q := r.b.Update(tableWorkItems).
		Set("status", string(constants.WorkStatusPending)).
		SetNull("employee_code").
		Set("updated_at", at.UTC()).
		Where(entsql.EQ("id", id))
	n, err := r.run(ctx, q)
	if err != nil {
		r.logger.Error("failed to revert work item", "work_item_id", id, "error", err)
		return dbFailure("revert work item", err)
	}
	if n == 0 {
		return common.NotFoundErrorf("work item %s not found", id)
	}
	return nil
}
