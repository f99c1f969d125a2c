package repository

import (
	"context"
	"database/sql"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
)

type MachineRepository interface {
	// List returns every machine ordered by name.
	List(ctx context.Context) ([]*entity.Machine, error)
	GetByID(ctx context.Context, id string) (*entity.Machine, error)
	Create(ctx context.Context, m *entity.Machine) error
	// Update replaces every editable field of the machine with m's values.
	Update(ctx context.Context, m *entity.Machine) error
	Delete(ctx context.Context, id string) error
}

type machineRepository struct {
	store
}

var machineColumns = []string{"id", "name", "size", "capacity", "description", "available_days", "created_at", "updated_at"}

func (r *machineRepository) list(ctx context.Context, where *entsql.Predicate) ([]*entity.Machine, error) {
	q := r.b.Select(machineColumns...).From(r.b.Table(tableMachines)).OrderBy(entsql.Asc("name"), entsql.Asc("id"))
	if where != nil {
		q.Where(where)
	}
	var out []*entity.Machine
	err := r.query(ctx, q, func(rows *entsql.Rows) error {
		var (
			m              entity.Machine
			capacity, days sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.Size, &capacity, &m.Description, &days, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return err
		}
		m.Capacity = intPtr(capacity)
		m.AvailableDays = intPtr(days)
		out = append(out, &m)
		return nil
	})
	return out, err
}

func (r *machineRepository) List(ctx context.Context) ([]*entity.Machine, error) {
	out, err := r.list(ctx, nil)
	if err != nil {
		r.logger.Error("failed to list machines", "error", err)
		return nil, dbFailure("list machines", err)
	}
	return out, nil
}

func (r *machineRepository) GetByID(ctx context.Context, id string) (*entity.Machine, error) {
	out, err := r.list(ctx, entsql.EQ("id", id))
	if err != nil {
		r.logger.Error("failed to get machine", "machine_id", id, "error", err)
		return nil, dbFailure("get machine", err)
	}
	if len(out) == 0 {
		return nil, common.NotFoundErrorf("machine %s not found", id)
	}
	return out[0], nil
}

func (r *machineRepository) Create(ctx context.Context, m *entity.Machine) error {
	q := r.b.Insert(tableMachines).
		Columns(machineColumns...).
		Values(m.ID, m.Name, m.Size, nullInt(m.Capacity), m.Description, nullInt(m.AvailableDays),
			m.CreatedAt.UTC(), m.UpdatedAt.UTC())
	if _, err := r.run(ctx, q); err != nil {
		r.logger.Error("failed to create machine", "name", m.Name, "error", err)
		return dbFailure("create machine", err)
	}
	return nil
}

func (r *machineRepository) Update(ctx context.Context, m *entity.Machine) error {
	q := r.b.Update(tableMachines).
		Set("name", m.Name).
		Set("size", m.Size).
		Set("capacity", nullInt(m.Capacity)).
		Set("description", m.Description).
		Set("available_days", nullInt(m.AvailableDays)).
		Set("updated_at", m.UpdatedAt.UTC()).
		Where(entsql.EQ("id", m.ID))
	n, err := r.run(ctx, q)
	if err != nil {
		r.logger.Error("failed to update machine", "machine_id", m.ID, "error", err)
		return dbFailure("update machine", err)
	}
	if n == 0 {
		return common.NotFoundErrorf("machine %s not found", m.ID)
	}
	return nil
}

func (r *machineRepository) Delete(ctx context.Context, id string) error {
	n, err := r.run(ctx, r.b.Delete(tableMachines).Where(entsql.EQ("id", id)))
	if err != nil {
		r.logger.Error("failed to delete machine", "machine_id", id, "error", err)
		return dbFailure("delete machine", err)
	}
	if n == 0 {
		return common.NotFoundErrorf("machine %s not found", id)
	}
	return nil
}
