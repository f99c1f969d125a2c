// Package identity is the authentication backend: it stores authenticatable identities,
// hashes credentials, and issues and verifies signed session tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
	"github.com/joseph-ayodele/jobtracker/internal/notify"
	"github.com/joseph-ayodele/jobtracker/internal/repository"
)

const issuer = "jobtracker"

// Admin is the privileged tier. Only a Provider built with the service key implements it.
type Admin interface {
	CreateIdentity(ctx context.Context, login, password string, metadata map[string]string) (*entity.Identity, error)
	UpdateIdentity(ctx context.Context, id string, upd Update) error
	DeleteIdentity(ctx context.Context, id string) error
}

// Authenticator signs identities in and verifies their session tokens.
type Authenticator interface {
	SignIn(ctx context.Context, login, password string) (*Session, error)
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Update carries optional identity changes.
type Update struct {
	Login    *string
	Password *string
}

// Claims are the JWT claims of a session token. Subject is the identity id.
// IssuedNanos carries the issue time at full precision since iat is whole seconds.
type Claims struct {
	Login       string `json:"login"`
	IssuedNanos int64  `json:"iat_ns,omitempty"`
	jwt.RegisteredClaims
}

type Session struct {
	Token      string    `json:"token"`
	IdentityID string    `json:"identity_id"`
	Login      string    `json:"login"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type Config struct {
	ServiceKey string
	TokenTTL   time.Duration
	BcryptCost int
}

// Provider implements both Admin and Authenticator over the identity repository.
type Provider struct {
	repo      repository.IdentityRepository
	key       []byte
	ttl       time.Duration
	cost      int
	now       func() time.Time
	publisher notify.Publisher
	logger    *slog.Logger
}

type Option func(*Provider)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithPublisher makes the provider announce credential changes and deletions.
func WithPublisher(pub notify.Publisher) Option {
	return func(p *Provider) { p.publisher = pub }
}

func NewProvider(repo repository.IdentityRepository, cfg Config, logger *slog.Logger, opts ...Option) (*Provider, error) {
	if cfg.ServiceKey == "" {
		return nil, errors.New("identity: service key is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("identity: bcrypt cost %d out of range", cfg.BcryptCost)
	}
	p := &Provider{
		repo:   repo,
		key:    []byte(cfg.ServiceKey),
		ttl:    cfg.TokenTTL,
		cost:   cfg.BcryptCost,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// LoginFor maps an employee code onto its login identifier.
func LoginFor(employeeCode, domain string) string {
	return strings.ToLower(strings.TrimSpace(employeeCode)) + "@" + domain
}

// EmployeeCodeFromLogin returns the part of login before its first '@'.
func EmployeeCodeFromLogin(login string) string {
	if i := strings.IndexByte(login, '@'); i >= 0 {
		return login[:i]
	}
	return login
}

func (p *Provider) CreateIdentity(ctx context.Context, login, password string, metadata map[string]string) (*entity.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, common.NewAppError(common.CodeWeakCredential, "credential cannot be hashed", fmt.Errorf("%w: %w", common.ErrValidation, err))
	}
	now := p.now().UTC()
	it := &entity.Identity{
		ID:           uuid.NewString(),
		Login:        login,
		PasswordHash: string(hash),
		Metadata:     metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.repo.Create(ctx, it); err != nil {
		return nil, err
	}
	p.logger.Info("identity created", "identity_id", it.ID, "login", login)
	notify.PublishQuietly(ctx, p.publisher, p.logger, notify.Event{Topic: notify.TopicIdentities, Op: notify.OpInsert, Key: it.ID, At: now})
	return it, nil
}

func (p *Provider) UpdateIdentity(ctx context.Context, id string, upd Update) error {
	repoUpd := repository.IdentityUpdate{Login: upd.Login}
	if upd.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*upd.Password), p.cost)
		if err != nil {
			return common.NewAppError(common.CodeWeakCredential, "credential cannot be hashed", fmt.Errorf("%w: %w", common.ErrValidation, err))
		}
		h := string(hash)
		repoUpd.PasswordHash = &h
	}
	if repoUpd.Login == nil && repoUpd.PasswordHash == nil {
		return nil
	}
	now := p.now().UTC()
	if err := p.repo.Update(ctx, id, repoUpd, now); err != nil {
		return err
	}
	p.logger.Info("identity updated", "identity_id", id, "login_changed", upd.Login != nil, "password_changed", upd.Password != nil)
	op := notify.OpUpdate
	if upd.Password != nil {
		op = notify.OpPasswordChanged
	}
	notify.PublishQuietly(ctx, p.publisher, p.logger, notify.Event{Topic: notify.TopicIdentities, Op: op, Key: id, At: now})
	return nil
}

func (p *Provider) DeleteIdentity(ctx context.Context, id string) error {
	if err := p.repo.Delete(ctx, id); err != nil {
		return err
	}
	now := p.now().UTC()
	p.logger.Info("identity deleted", "identity_id", id)
	notify.PublishQuietly(ctx, p.publisher, p.logger, notify.Event{Topic: notify.TopicIdentities, Op: notify.OpDelete, Key: id, At: now})
	return nil
}

var errBadCredentials = common.UnauthorizedError("invalid login credentials")

func (p *Provider) SignIn(ctx context.Context, login, password string) (*Session, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	it, err := p.repo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			p.logger.Info("sign-in rejected", "login", login, "reason", "unknown login")
			return nil, errBadCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(it.PasswordHash), []byte(password)); err != nil {
		p.logger.Info("sign-in rejected", "login", login, "reason", "bad password")
		return nil, errBadCredentials
	}

	now := p.now()
	exp := now.Add(p.ttl)
	claims := Claims{
		Login:       it.Login,
		IssuedNanos: now.UnixNano(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   it.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		p.logger.Error("failed to sign session token", "identity_id", it.ID, "error", err)
		return nil, common.DependencyError(common.CodeDependency, "sign session token", err)
	}
	p.logger.Info("signed in", "identity_id", it.ID, "login", it.Login)
	return &Session{Token: token, IdentityID: it.ID, Login: it.Login, ExpiresAt: exp}, nil
}

func (p *Provider) Verify(_ context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, common.UnauthorizedError("missing session token")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return p.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, common.NewAppError(common.CodeUnauthenticated, "invalid session token", fmt.Errorf("%w: %w", common.ErrUnauthorized, err))
	}
	if claims.Subject == "" {
		return nil, common.UnauthorizedError("session token has no subject")
	}
	return claims, nil
}

// IssuedTime returns the token issue time, or the zero time when absent.
func (c *Claims) IssuedTime() time.Time {
	if c.IssuedNanos != 0 {
		return time.Unix(0, c.IssuedNanos).UTC()
	}
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}
