// Package roles turns an account's stored role data into the roles it acts under and
// the page it lands on.
package roles

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/jobtracker/constants"
	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
	"github.com/joseph-ayodele/jobtracker/internal/repository"
)

type Resolution struct {
	// Roles is the ordered, de-duplicated role set without "admin".
	Roles        []constants.Role `json:"roles"`
	IsAdmin      bool             `json:"is_admin"`
	LandingRoute string           `json:"landing_route"`
}

// Has reports whether role is among the resolved roles.
func (r *Resolution) Has(role constants.Role) bool {
	for _, have := range r.Roles {
		if have == role {
			return true
		}
	}
	return false
}

// Allows reports whether the resolution may open a page that requires role. An empty
// required role means admin only.
func (r *Resolution) Allows(required constants.Role) bool {
	if r.IsAdmin {
		return true
	}
	return required != "" && r.Has(required)
}

// Resolver applies the role policy. Accounts whose roles column is absent fall back to
// their legacy role and then to the configured fallback role. Accounts whose roles are
// present but empty never fall back.
type Resolver struct {
	fallback constants.Role
}

// NewResolver returns a resolver with the given fallback role. An empty fallback turns
// the fallback off.
func NewResolver(fallback string) *Resolver {
	r, _ := constants.CanonicalizeRole(fallback)
	return &Resolver{fallback: r}
}

// EffectiveRoles returns the role tags the policy assigns to a, admin included.
func (r *Resolver) EffectiveRoles(a *entity.Account) []string {
	if a == nil {
		return nil
	}
	switch {
	case a.Roles != nil:
		return a.Roles
	case a.Role != "":
		return []string{a.Role}
	case r.fallback != "":
		return []string{string(r.fallback)}
	default:
		return []string{}
	}
}

func (r *Resolver) Resolve(a *entity.Account) (*Resolution, error) {
	if a == nil {
		return nil, common.UnauthorizedError("no account for session")
	}

	res := &Resolution{Roles: []constants.Role{}}
	if role, _ := constants.CanonicalizeRole(a.Role); role == constants.RoleAdmin {
		res.IsAdmin = true
	}
	seen := make(map[constants.Role]bool)
	for _, tag := range r.EffectiveRoles(a) {
		role, _ := constants.CanonicalizeRole(tag)
		switch {
		case role == "":
			continue
		case role == constants.RoleAdmin:
			res.IsAdmin = true
		case !seen[role]:
			seen[role] = true
			res.Roles = append(res.Roles, role)
		}
	}

	switch {
	case res.IsAdmin:
		res.LandingRoute = constants.AdminLandingRoute
	case len(res.Roles) == 0:
		return nil, common.ForbiddenError(common.CodeNoRoleAssigned, "no role assigned to this account")
	default:
		res.LandingRoute = constants.LandingRoute(res.Roles[0])
	}
	return res, nil
}

// Provisioner creates the account of an identity that signs in for the first time.
type Provisioner struct {
	accounts repository.AccountRepository
	now      func() time.Time
	logger   *slog.Logger
}

func NewProvisioner(accounts repository.AccountRepository, now func() time.Time, logger *slog.Logger) *Provisioner {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Provisioner{accounts: accounts, now: now, logger: logger}
}

// Ensure returns the account for identityID, creating it with the default department
// role when missing. Concurrent first sign-ins converge on a single row.
func (p *Provisioner) Ensure(ctx context.Context, identityID, employeeCode string) (*entity.Account, error) {
	now := p.now().UTC()
	a, err := p.accounts.EnsureExists(ctx, &entity.Account{
		ID:           identityID,
		EmployeeCode: employeeCode,
		Roles:        []string{string(constants.DefaultFallbackRole)},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		p.logger.Error("account provisioning failed", "identity_id", identityID, "employee_code", employeeCode, "error", err)
		return nil, err
	}
	return a, nil
}
