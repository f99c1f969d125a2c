// Package session guards protected pages and API calls. Every check reads the account
// afresh; nothing about an authorization decision is cached.
package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/jobtracker/constants"
	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
	"github.com/joseph-ayodele/jobtracker/internal/identity"
	"github.com/joseph-ayodele/jobtracker/internal/repository"
	"github.com/joseph-ayodele/jobtracker/internal/roles"
)

// Principal is an authenticated caller with its resolved roles.
type Principal struct {
	Claims     *identity.Claims
	Account    *entity.Account
	Resolution *roles.Resolution
}

// Decision is the outcome of a page check. When Allowed is false, Redirect is set.
type Decision struct {
	Allowed   bool
	Redirect  string
	SignOut   bool
	Principal *Principal
	Reason    string
}

type Gate struct {
	auth     identity.Authenticator
	accounts repository.AccountRepository
	resolver *roles.Resolver
	holder   *Holder
	logger   *slog.Logger
}

func NewGate(auth identity.Authenticator, accounts repository.AccountRepository, resolver *roles.Resolver, holder *Holder, logger *slog.Logger) *Gate {
	return &Gate{auth: auth, accounts: accounts, resolver: resolver, holder: holder, logger: logger}
}

// Authenticate verifies token, rejects revoked sessions, loads the account and
// resolves its roles.
func (g *Gate) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := g.auth.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if g.holder.Revoked(claims) {
		return nil, common.UnauthorizedError("session has been revoked")
	}
	account, err := g.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	res, err := g.resolver.Resolve(account)
	if err != nil {
		return nil, err
	}
	return &Principal{Claims: claims, Account: account, Resolution: res}, nil
}

// Check decides whether the holder of token may open path. It fails closed.
func (g *Gate) Check(ctx context.Context, token, path string) Decision {
	required, protected := constants.RequiredRole(path)
	if !protected {
		return Decision{Allowed: true}
	}
	if token == "" {
		return Decision{Redirect: constants.LoginRoute, Reason: "unauthenticated"}
	}

	p, err := g.Authenticate(ctx, token)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrUnauthorized):
		g.logger.Info("gate.denied", "path", path, "reason", "invalid session", "error", err)
		return Decision{Redirect: constants.LoginRoute, SignOut: true, Reason: "invalid session"}
	case errors.Is(err, common.ErrNotFound):
		g.logger.Warn("gate.denied", "path", path, "reason", "account missing", "error", err)
		return Decision{Redirect: constants.LoginRoute, SignOut: true, Reason: "account missing"}
	case common.CodeOf(err) == common.CodeNoRoleAssigned:
		g.logger.Warn("gate.denied", "path", path, "reason", "no role assigned")
		return Decision{Redirect: constants.LoginRoute, SignOut: true, Reason: "no role assigned"}
	default:
		g.logger.Error("gate.lookup.failed", "path", path, "error", err)
		return Decision{Redirect: constants.LoginRoute, Reason: "lookup failed"}
	}

	if !p.Resolution.Allows(required) {
		g.logger.Info("gate.redirected", "path", path, "account_id", p.Account.ID, "landing", p.Resolution.LandingRoute)
		return Decision{Redirect: p.Resolution.LandingRoute, Principal: p, Reason: "role mismatch"}
	}
	return Decision{Allowed: true, Principal: p}
}
