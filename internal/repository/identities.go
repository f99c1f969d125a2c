package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
)

// IdentityUpdate carries optional changes to an identity. Nil fields are left untouched.
type IdentityUpdate struct {
	Login        *string
	PasswordHash *string
}

type IdentityRepository interface {
	Create(ctx context.Context, identity *entity.Identity) error
	GetByID(ctx context.Context, id string) (*entity.Identity, error)
	GetByLogin(ctx context.Context, login string) (*entity.Identity, error)
	Update(ctx context.Context, id string, upd IdentityUpdate, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type identityRepository struct {
	store
}

var identityColumns = []string{"id", "login", "password_hash", "metadata", "created_at", "updated_at"}

func (r *identityRepository) Create(ctx context.Context, identity *entity.Identity) error {
	var meta any
	if len(identity.Metadata) > 0 {
		b, err := json.Marshal(identity.Metadata)
		if err != nil {
			return err
		}
		meta = string(b)
	}
	q := r.b.Insert(tableIdentities).
		Columns(identityColumns...).
		Values(identity.ID, identity.Login, identity.PasswordHash, meta, identity.CreatedAt.UTC(), identity.UpdatedAt.UTC())
	if _, err := r.run(ctx, q); err != nil {
		if isUniqueViolation(err) {
			return common.ConflictErrorf(common.CodeDuplicateEmployeeCode, "login %s already exists", identity.Login)
		}
		r.logger.Error("failed to create identity", "login", identity.Login, "error", err)
		return dbFailure("create identity", err)
	}
	return nil
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*entity.Identity, error) {
	return r.getOne(ctx, entsql.EQ("id", id), "identity %s not found", id)
}

func (r *identityRepository) GetByLogin(ctx context.Context, login string) (*entity.Identity, error) {
	return r.getOne(ctx, entsql.EQ("login", login), "identity %s not found", login)
}

func (r *identityRepository) getOne(ctx context.Context, where *entsql.Predicate, format string, key string) (*entity.Identity, error) {
	q := r.b.Select(identityColumns...).From(r.b.Table(tableIdentities)).Where(where).Limit(1)
	var out *entity.Identity
	err := r.query(ctx, q, func(rows *entsql.Rows) error {
		var (
			it   entity.Identity
			meta sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.Login, &it.PasswordHash, &meta, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return err
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &it.Metadata); err != nil {
				return err
			}
		}
		out = &it
		return nil
	})
	if err != nil {
		r.logger.Error("failed to get identity", "key", key, "error", err)
		return nil, dbFailure("get identity", err)
	}
	if out == nil {
		return nil, common.NotFoundErrorf(format, key)
	}
	return out, nil
}

func (r *identityRepository) Update(ctx context.Context, id string, upd IdentityUpdate, at time.Time) error {
	q := r.b.Update(tableIdentities).Set("updated_at", at.UTC()).Where(entsql.EQ("id", id))
	if upd.Login != nil {
		q.Set("login", *upd.Login)
	}
	if upd.PasswordHash != nil {
		q.Set("password_hash", *upd.PasswordHash)
	}
	n, err := r.run(ctx, q)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ConflictErrorf(common.CodeDuplicateEmployeeCode, "login already exists")
		}
		r.logger.Error("failed to update identity", "identity_id", id, "error", err)
		return dbFailure("update identity", err)
	}
	if n == 0 {
		return common.NotFoundErrorf("identity %s not found", id)
	}
	return nil
}

func (r *identityRepository) Delete(ctx context.Context, id string) error {
	n, err := r.run(ctx, r.b.Delete(tableIdentities).Where(entsql.EQ("id", id)))
	if err != nil {
		r.logger.Error("failed to delete identity", "identity_id", id, "error", err)
		return dbFailure("delete identity", err)
	}
	if n == 0 {
		return common.NotFoundErrorf("identity %s not found", id)
	}
	return nil
}
