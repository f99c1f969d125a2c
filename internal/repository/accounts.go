package repository

import (
	"context"
	"database/sql"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
)

// AccountUpdate carries optional changes to an account. A nil Roles leaves roles untouched.
type AccountUpdate struct {
	FullName     *string
	EmployeeCode *string
	Roles        []string
}

type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Account, error)
	GetByEmployeeCode(ctx context.Context, code string) (*entity.Account, error)
	EmployeeCodeTaken(ctx context.Context, code, exceptID string) (bool, error)
	Create(ctx context.Context, account *entity.Account) error
	// EnsureExists inserts the account unless a row with the same id exists, then
	// returns whichever row is stored.
	EnsureExists(ctx context.Context, account *entity.Account) (*entity.Account, error)
	Update(ctx context.Context, id string, upd AccountUpdate, at time.Time) error
	Delete(ctx context.Context, id string) error
	// List returns every account, newest first.
	List(ctx context.Context) ([]*entity.Account, error)
}

type accountRepository struct {
	store
}

var accountColumns = []string{"id", "full_name", "employee_code", "role", "roles", "created_at", "updated_at"}

func scanAccount(rows *entsql.Rows) (*entity.Account, error) {
	var (
		a     entity.Account
		role  sql.NullString
		roles sql.NullString
	)
	if err := rows.Scan(&a.ID, &a.FullName, &a.EmployeeCode, &role, &roles, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Role = role.String
	decoded, err := decodeRoles(roles)
	if err != nil {
		return nil, err
	}
	a.Roles = decoded
	return &a, nil
}

// storedRole derives the legacy role column from the ordered role set.
func storedRole(a *entity.Account) any {
	if len(a.Roles) > 0 {
		return a.Roles[0]
	}
	if a.Role != "" {
		return a.Role
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	return r.getOne(ctx, entsql.EQ("id", id), "account %s not found", id)
}

func (r *accountRepository) GetByEmployeeCode(ctx context.Context, code string) (*entity.Account, error) {
	return r.getOne(ctx, entsql.EQ("employee_code", code), "account with employee code %s not found", code)
}

func (r *accountRepository) getOne(ctx context.Context, where *entsql.Predicate, format, key string) (*entity.Account, error) {
	q := r.b.Select(accountColumns...).From(r.b.Table(tableProfiles)).Where(where).Limit(1)
	var out *entity.Account
	err := r.query(ctx, q, func(rows *entsql.Rows) error {
		a, err := scanAccount(rows)
		out = a
		return err
	})
	if err != nil {
		r.logger.Error("failed to get account", "key", key, "error", err)
		return nil, dbFailure("get account", err)
	}
	if out == nil {
		return nil, common.NotFoundErrorf(format, key)
	}
	return out, nil
}

func (r *accountRepository) EmployeeCodeTaken(ctx context.Context, code, exceptID string) (bool, error) {
	where := entsql.EQ("employee_code", code)
	if exceptID != "" {
		where = entsql.And(where, entsql.NEQ("id", exceptID))
	}
	q := r.b.Select("id").From(r.b.Table(tableProfiles)).Where(where).Limit(1)
	taken := false
	err := r.query(ctx, q, func(rows *entsql.Rows) error {
		taken = true
		return nil
	})
	if err != nil {
		r.logger.Error("failed to check employee code", "employee_code", code, "error", err)
		return false, dbFailure("check employee code", err)
	}
	return taken, nil
}

func (r *accountRepository) insert(account *entity.Account) (*entsql.InsertBuilder, error) {
	roles, err := encodeRoles(account.Roles)
	if err != nil {
		return nil, err
	}
	return r.b.Insert(tableProfiles).
		Columns(accountColumns...).
		Values(account.ID, account.FullName, account.EmployeeCode, storedRole(account), roles,
			account.CreatedAt.UTC(), account.UpdatedAt.UTC()), nil
}

func (r *accountRepository) Create(ctx context.Context, account *entity.Account) error {
	q, err := r.insert(account)
	if err != nil {
		return err
	}
	if _, err := r.run(ctx, q); err != nil {
		if isUniqueViolation(err) {
			return common.ConflictErrorf(common.CodeDuplicateEmployeeCode, "employee code %s already exists", account.EmployeeCode)
		}
		r.logger.Error("failed to create account", "account_id", account.ID, "employee_code", account.EmployeeCode, "error", err)
		return dbFailure("create account", err)
	}
	return nil
}

func (r *accountRepository) EnsureExists(ctx context.Context, account *entity.Account) (*entity.Account, error) {
	q, err := r.insert(account)
	if err != nil {
		return nil, err
	}
	q.OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing())
	if _, err := r.run(ctx, q); err != nil {
		if isUniqueViolation(err) {
			return nil, common.ConflictErrorf(common.CodeDuplicateEmployeeCode, "employee code %s already exists", account.EmployeeCode)
		}
		r.logger.Error("failed to provision account", "account_id", account.ID, "error", err)
		return nil, dbFailure("provision account", err)
	}
	return r.GetByID(ctx, account.ID)
}

func (r *accountRepository) Update(ctx context.Context, id string, upd AccountUpdate, at time.Time) error {
	q := r.b.Update(tableProfiles).Set("updated_at", at.UTC()).Where(entsql.EQ("id", id))
	if upd.FullName != nil {
		q.Set("full_name", *upd.FullName)
	}
	if upd.EmployeeCode != nil {
		q.Set("employee_code", *upd.EmployeeCode)
	}
	if upd.Roles != nil {
		roles, err := encodeRoles(upd.Roles)
		if err != nil {
			return err
		}
		q.Set("roles", roles)
		if len(upd.Roles) > 0 {
			q.Set("role", upd.Roles[0])
		} else {
			q.SetNull("role")
		}
	}
	n, err := r.run(ctx, q)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ConflictErrorf(common.CodeDuplicateEmployeeCode, "employee code already exists")
		}
		r.logger.Error("failed to update account", "account_id", id, "error", err)
		return dbFailure("update account", err)
	}
	if n == 0 {
		return common.NotFoundErrorf("account %s not found", id)
	}
	return nil
}

func (r *accountRepository) Delete(ctx context.Context, id string) error {
	n, err := r.run(ctx, r.b.Delete(tableProfiles).Where(entsql.EQ("id", id)))
	if err != nil {
		r.logger.Error("failed to delete account", "account_id", id, "error", err)
		return dbFailure("delete account", err)
	}
	if n == 0 {
		return common.NotFoundErrorf("account %s not found", id)
	}
	return nil
}

func (r *accountRepository) List(ctx context.Context) ([]*entity.Account, error) {
	q := r.b.Select(accountColumns...).From(r.b.Table(tableProfiles)).OrderBy(entsql.Desc("created_at"))
	var out []*entity.Account
	err := r.query(ctx, q, func(rows *entsql.Rows) error {
		a, err := scanAccount(rows)
		if err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list accounts", "error", err)
		return nil, dbFailure("list accounts", err)
	}
	return out, nil
}
