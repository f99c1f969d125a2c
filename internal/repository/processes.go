package repository

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
)

type ProcessRepository interface {
	List(ctx context.Context) ([]*entity.Process, error)
	GetByID(ctx context.Context, id int) (*entity.Process, error)
	// FindByNames returns the processes whose names are in names. Unknown names are
	// simply absent from the result.
	FindByNames(ctx context.Context, names []string) ([]*entity.Process, error)
	// Seed inserts names with ids 1..n, skipping rows that already exist.
	Seed(ctx context.Context, names []string) (int64, error)
}

type processRepository struct {
	store
}

func (r *processRepository) list(ctx context.Context, where *entsql.Predicate) ([]*entity.Process, error) {
	q := r.b.Select("id", "name").From(r.b.Table(tableProcesses)).OrderBy(entsql.Asc("id"))
	if where != nil {
		q.Where(where)
	}
	var out []*entity.Process
	err := r.query(ctx, q, func(rows *entsql.Rows) error {
		var p entity.Process
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return err
		}
		out = append(out, &p)
		return nil
	})
	return out, err
}

func (r *processRepository) List(ctx context.Context) ([]*entity.Process, error) {
	out, err := r.list(ctx, nil)
	if err != nil {
		r.logger.Error("failed to list processes", "error", err)
		return nil, dbFailure("list processes", err)
	}
	return out, nil
}

func (r *processRepository) GetByID(ctx context.Context, id int) (*entity.Process, error) {
	out, err := r.list(ctx, entsql.EQ("id", id))
	if err != nil {
		r.logger.Error("failed to get process", "process_id", id, "error", err)
		return nil, dbFailure("get process", err)
	}
	if len(out) == 0 {
		return nil, common.NotFoundErrorf("process %d not found", id)
	}
	return out[0], nil
}

func (r *processRepository) FindByNames(ctx context.Context, names []string) ([]*entity.Process, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out, err := r.list(ctx, entsql.In("name", anySlice(names)...))
	if err != nil {
		r.logger.Error("failed to look up processes", "names", names, "error", err)
		return nil, dbFailure("look up processes", err)
	}
	return out, nil
}

func (r *processRepository) Seed(ctx context.Context, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}
	q := r.b.Insert(tableProcesses).Columns("id", "name")
	for i, n := range names {
		q.Values(i+1, n)
	}
	q.OnConflict(entsql.DoNothing())
	n, err := r.run(ctx, q)
	if err != nil {
		r.logger.Error("failed to seed processes", "error", err)
		return 0, dbFailure("seed processes", err)
	}
	return n, nil
}
