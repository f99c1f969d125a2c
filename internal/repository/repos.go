package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"

	"github.com/joseph-ayodele/jobtracker/internal/common"
)

// Table names.
const (
	tableIdentities = "auth_identities"
	tableProfiles   = "profiles"
	tableProcesses  = "processes"
	tableJobs       = "job_cards"
	tableSubJobs    = "sub_job_cards"
	tableWorkItems  = "job_processes"
	tableMachines   = "machines"
)

// Repos groups every repository over one executor, either the pool or a transaction.
type Repos struct {
	Identities IdentityRepository
	Accounts   AccountRepository
	Processes  ProcessRepository
	Jobs       JobRepository
	WorkItems  WorkItemRepository
	Machines   MachineRepository
}

func NewRepos(exec dialect.ExecQuerier, dialectName string, logger *slog.Logger) *Repos {
	s := store{exec: exec, b: entsql.Dialect(dialectName), logger: logger}
	return &Repos{
		Identities: &identityRepository{s},
		Accounts:   &accountRepository{s},
		Processes:  &processRepository{s},
		Jobs:       &jobRepository{s},
		WorkItems:  &workItemRepository{s},
		Machines:   &machineRepository{s},
	}
}

// store carries what every repository needs to build and run statements.
type store struct {
	exec   dialect.ExecQuerier
	b      *entsql.DialectBuilder
	logger *slog.Logger
}

func (s store) query(ctx context.Context, q entsql.Querier, scan func(rows *entsql.Rows) error) error {
	query, args := q.Query()
	var rows entsql.Rows
	if err := s.exec.Query(ctx, query, args, &rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(&rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s store) run(ctx context.Context, q entsql.Querier) (int64, error) {
	query, args := q.Query()
	var res entsql.Result
	if err := s.exec.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func isUniqueViolation(err error) bool {
	return sqlgraph.IsUniqueConstraintError(err)
}

func dbFailure(op string, err error) error {
	return common.DependencyError(common.CodeDependency, op, err)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return int64(*n)
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// encodeRoles stores nil as NULL so legacy rows stay distinguishable from an empty set.
func encodeRoles(roles []string) (any, error) {
	if roles == nil {
		return nil, nil
	}
	b, err := json.Marshal(roles)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeRoles(ns sql.NullString) ([]string, error) {
	if !ns.Valid {
		return nil, nil
	}
	roles := []string{}
	if ns.String == "" {
		return roles, nil
	}
	if err := json.Unmarshal([]byte(ns.String), &roles); err != nil {
		return nil, err
	}
	return roles, nil
}
