// Package directory administers worker accounts and the machine register.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/jobtracker/constants"
	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
	"github.com/joseph-ayodele/jobtracker/internal/identity"
	"github.com/joseph-ayodele/jobtracker/internal/notify"
	"github.com/joseph-ayodele/jobtracker/internal/repository"
	"github.com/joseph-ayodele/jobtracker/internal/roles"
)

const minCredentialLength = 6

// Worker is the listing shape of a non-admin account.
type Worker struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	EmployeeCode string    `json:"employee_code"`
	Role         string    `json:"role"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateWorkerRequest represents worker creation parameters.
type CreateWorkerRequest struct {
	FullName     string   `json:"full_name"`
	EmployeeCode string   `json:"employee_code"`
	Roles        []string `json:"roles"`
	Password     string   `json:"password"`
}

// UpdateWorkerRequest carries optional changes. Nil fields are left as they are.
type UpdateWorkerRequest struct {
	FullName     *string  `json:"full_name"`
	EmployeeCode *string  `json:"employee_code"`
	Roles        []string `json:"roles"`
	Password     *string  `json:"password"`
}

// WorkerService handles worker account administration. Every credential change goes
// through the privileged identity tier.
type WorkerService struct {
	accounts   repository.AccountRepository
	identities identity.Admin
	resolver   *roles.Resolver
	publisher  notify.Publisher
	logger     *slog.Logger
	domain     string
	now        func() time.Time
}

type WorkerOption func(*WorkerService)

func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(s *WorkerService) { s.now = now }
}

func WithWorkerPublisher(p notify.Publisher) WorkerOption {
	return func(s *WorkerService) { s.publisher = p }
}

func NewWorkerService(accounts repository.AccountRepository, identities identity.Admin, resolver *roles.Resolver,
	loginDomain string, logger *slog.Logger, opts ...WorkerOption) *WorkerService {
	if loginDomain == "" {
		loginDomain = constants.DefaultLoginDomain
	}
	s := &WorkerService{
		accounts:   accounts,
		identities: identities,
		resolver:   resolver,
		logger:     logger,
		domain:     loginDomain,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateWorker creates the identity and then the account. When the account cannot be
// stored the identity is deleted again.
func (s *WorkerService) CreateWorker(ctx context.Context, req CreateWorkerRequest) (*Worker, error) {
	return s.create(ctx, req, false)
}

// CreateAdmin is CreateWorker for the admin role, which the worker form never offers.
func (s *WorkerService) CreateAdmin(ctx context.Context, fullName, employeeCode, password string) (*Worker, error) {
	return s.create(ctx, CreateWorkerRequest{
		FullName:     fullName,
		EmployeeCode: employeeCode,
		Roles:        []string{string(constants.RoleAdmin)},
		Password:     password,
	}, true)
}

func (s *WorkerService) create(ctx context.Context, req CreateWorkerRequest, allowAdmin bool) (*Worker, error) {
	name := strings.TrimSpace(req.FullName)
	code := strings.TrimSpace(req.EmployeeCode)

	v := common.NewValidator().
		Field("full_name", name, common.Required, common.MaxLength(200)).
		Field("employee_code", code, common.Required, common.MaxLength(50)).
		Field("password", req.Password, common.Required)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	if err := checkCredential(req.Password); err != nil {
		return nil, err
	}
	roleTags, err := normalizeRoles(req.Roles, allowAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCodeFree(ctx, code, ""); err != nil {
		return nil, err
	}

	login := identity.LoginFor(code, s.domain)
	it, err := s.identities.CreateIdentity(ctx, login, req.Password, map[string]string{
		"full_name":     name,
		"employee_code": code,
	})
	if err != nil {
		s.logger.Error("directory.identity.create.failed", "employee_code", code, "error", err)
		return nil, err
	}

	now := s.now().UTC()
	account := &entity.Account{
		ID:           it.ID,
		FullName:     name,
		EmployeeCode: code,
		Roles:        roleTags,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		s.logger.Error("directory.account.create.failed", "identity_id", it.ID, "employee_code", code, "error", err)
		if derr := s.identities.DeleteIdentity(ctx, it.ID); derr != nil {
			s.logger.Error("directory.identity.cleanup.failed", "identity_id", it.ID, "error", derr)
		}
		return nil, err
	}

	s.logger.Info("worker created", "account_id", account.ID, "employee_code", code, "roles", roleTags)
	notify.PublishQuietly(ctx, s.publisher, s.logger, notify.Event{Topic: notify.TopicProfiles, Op: notify.OpInsert, Key: account.ID})
	return s.worker(account), nil
}

// UpdateWorker applies req to the account and keeps the identity login in step with the
// employee code.
func (s *WorkerService) UpdateWorker(ctx context.Context, id string, req UpdateWorkerRequest) (*Worker, error) {
	if err := common.ValidateAndReturnError(common.NewValidator().Field("id", id, common.Required)); err != nil {
		return nil, err
	}
	var upd repository.AccountUpdate
	v := common.NewValidator()
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		v.Field("full_name", name, common.Required, common.MaxLength(200))
		upd.FullName = &name
	}
	if req.EmployeeCode != nil {
		code := strings.TrimSpace(*req.EmployeeCode)
		v.Field("employee_code", code, common.Required, common.MaxLength(50))
		upd.EmployeeCode = &code
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	if req.Password != nil {
		if err := checkCredential(*req.Password); err != nil {
			return nil, err
		}
	}
	if req.Roles != nil {
		tags, err := normalizeRoles(req.Roles, false)
		if err != nil {
			return nil, err
		}
		upd.Roles = tags
	}

	current, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	codeChanged := upd.EmployeeCode != nil && *upd.EmployeeCode != current.EmployeeCode
	if codeChanged {
		if err := s.ensureCodeFree(ctx, *upd.EmployeeCode, id); err != nil {
			return nil, err
		}
	}

	var idUpd identity.Update
	if codeChanged {
		login := identity.LoginFor(*upd.EmployeeCode, s.domain)
		idUpd.Login = &login
	}
	idUpd.Password = req.Password
	identityChanged := idUpd.Login != nil || idUpd.Password != nil
	if identityChanged {
		if err := s.identities.UpdateIdentity(ctx, id, idUpd); err != nil {
			s.logger.Error("directory.identity.update.failed", "account_id", id, "error", err)
			return nil, err
		}
	}

	if err := s.accounts.Update(ctx, id, upd, s.now().UTC()); err != nil {
		if identityChanged {
			s.restoreLogin(ctx, current, idUpd)
		}
		return nil, err
	}

	updated, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("worker updated", "account_id", id, "employee_code", updated.EmployeeCode)
	notify.PublishQuietly(ctx, s.publisher, s.logger, notify.Event{Topic: notify.TopicProfiles, Op: notify.OpUpdate, Key: id})
	if upd.Roles != nil {
		notify.PublishQuietly(ctx, s.publisher, s.logger, notify.Event{Topic: notify.TopicProfiles, Op: notify.OpRolesChanged, Key: id})
	}
	return s.worker(updated), nil
}

// restoreLogin puts the identity login back after the account write failed. A new
// password cannot be rolled back, so that case is only logged.
func (s *WorkerService) restoreLogin(ctx context.Context, current *entity.Account, applied identity.Update) {
	if applied.Password != nil {
		s.logger.Warn("directory.identity.password.diverged", "account_id", current.ID)
	}
	if applied.Login == nil {
		return
	}
	login := identity.LoginFor(current.EmployeeCode, s.domain)
	if err := s.identities.UpdateIdentity(ctx, current.ID, identity.Update{Login: &login}); err != nil {
		s.logger.Error("directory.identity.restore.failed", "account_id", current.ID, "error", err)
	}
}

// DeleteWorker removes the account and then the identity. Admin accounts are refused.
// An identity failure is returned but the account stays deleted.
func (s *WorkerService) DeleteWorker(ctx context.Context, id string) error {
	if err := common.ValidateAndReturnError(common.NewValidator().Field("id", id, common.Required)); err != nil {
		return err
	}
	target, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if isAdmin(s.worker(target)) {
		return common.ForbiddenError(common.CodeForbidden, "admin accounts cannot be deleted")
	}
	if err := s.accounts.Delete(ctx, id); err != nil {
		return err
	}
	notify.PublishQuietly(ctx, s.publisher, s.logger, notify.Event{Topic: notify.TopicProfiles, Op: notify.OpDelete, Key: id})
	if err := s.identities.DeleteIdentity(ctx, id); err != nil && !errors.Is(err, common.ErrNotFound) {
		s.logger.Error("directory.identity.delete.failed", "account_id", id, "error", err)
		return err
	}
	s.logger.Info("worker deleted", "account_id", id)
	return nil
}

// ListWorkers returns every non-admin account, newest first, with roles resolved
// through the fallback policy.
func (s *WorkerService) ListWorkers(ctx context.Context) ([]*Worker, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Worker, 0, len(accounts))
	for _, a := range accounts {
		w := s.worker(a)
		if isAdmin(w) {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *WorkerService) worker(a *entity.Account) *Worker {
	tags := s.resolver.EffectiveRoles(a)
	if tags == nil {
		tags = []string{}
	}
	role := a.Role
	if role == "" && len(tags) > 0 {
		role = tags[0]
	}
	return &Worker{
		ID:           a.ID,
		FullName:     a.FullName,
		EmployeeCode: a.EmployeeCode,
		Role:         role,
		Roles:        tags,
		CreatedAt:    a.CreatedAt,
	}
}

func (s *WorkerService) ensureCodeFree(ctx context.Context, code, exceptID string) error {
	taken, err := s.accounts.EmployeeCodeTaken(ctx, code, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return common.ConflictErrorf(common.CodeDuplicateEmployeeCode, "employee code %s already exists", code)
	}
	return nil
}

func isAdmin(w *Worker) bool {
	if r, _ := constants.CanonicalizeRole(w.Role); r == constants.RoleAdmin {
		return true
	}
	for _, tag := range w.Roles {
		if r, _ := constants.CanonicalizeRole(tag); r == constants.RoleAdmin {
			return true
		}
	}
	return false
}

func checkCredential(password string) error {
	v := common.NewValidator().Field("password", password, common.MinLength(minCredentialLength))
	if v.HasErrors() {
		return common.NewAppError(common.CodeWeakCredential, v.ErrorMessage(), common.ErrValidation)
	}
	return nil
}

// normalizeRoles canonicalizes tags, drops duplicates and keeps the first-seen order.
func normalizeRoles(tags []string, allowAdmin bool) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[constants.Role]struct{}, len(tags))
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		r, ok := constants.CanonicalizeRole(tag)
		if !ok {
			return nil, common.ValidationErrorf(common.CodeValidation, "unknown role %q, want one of %s",
				tag, strings.Join(constants.RolesAsStringSlice(), ", "))
		}
		if r == constants.RoleAdmin && !allowAdmin {
			return nil, common.ValidationErrorf(common.CodeValidation, "role admin cannot be assigned here")
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, string(r))
	}
	if len(out) == 0 {
		return nil, common.ValidationErrorf(common.CodeNoRoleSelected, "at least one role must be selected")
	}
	return out, nil
}
