package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"github.com/joseph-ayodele/jobtracker/constants"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
	"github.com/joseph-ayodele/jobtracker/internal/identity"
	"github.com/joseph-ayodele/jobtracker/internal/notify"
	"github.com/joseph-ayodele/jobtracker/internal/repository"
	"github.com/joseph-ayodele/jobtracker/internal/roles"
	"github.com/joseph-ayodele/jobtracker/internal/session"
	"github.com/joseph-ayodele/jobtracker/internal/testutil"
)

type fixture struct {
	repos    *repository.Repos
	provider *identity.Provider
	holder   *session.Holder
	gate     *session.Gate
	clock    *testutil.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	clock := testutil.NewClock()
	repos := db.Repos()
	provider, err := identity.NewProvider(repos.Identities, identity.Config{
		ServiceKey: "gate-test-service-key-xyz",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, testutil.Logger(), identity.WithClock(clock.Now))
	require.NoError(t, err)
	holder := session.NewHolder(testutil.Logger())
	gate := session.NewGate(provider, repos.Accounts, roles.NewResolver("printing"), holder, testutil.Logger())
	return &fixture{repos: repos, provider: provider, holder: holder, gate: gate, clock: clock}
}

// signIn creates an identity, optionally its account, and returns the identity id and a
// session token.
func (f *fixture) signIn(t *testing.T, code string, roles []string, withAccount bool) (string, string) {
	t.Helper()
	ctx := context.Background()
	login := identity.LoginFor(code, "example.com")
	it, err := f.provider.CreateIdentity(ctx, login, "secret1", nil)
	require.NoError(t, err)
	if withAccount {
		now := f.clock.Now()
		require.NoError(t, f.repos.Accounts.Create(ctx, &entity.Account{
			ID: it.ID, FullName: code, EmployeeCode: code, Roles: roles, CreatedAt: now, UpdatedAt: now,
		}))
	}
	sess, err := f.provider.SignIn(ctx, login, "secret1")
	require.NoError(t, err)
	return it.ID, sess.Token
}

func TestGateUnprotectedPath(t *testing.T) {
	f := newFixture(t)
	d := f.gate.Check(context.Background(), "", "/login")
	assert.True(t, d.Allowed)
}

func TestGateNoToken(t *testing.T) {
	f := newFixture(t)
	d := f.gate.Check(context.Background(), "", "/printing")
	assert.False(t, d.Allowed)
	assert.Equal(t, constants.LoginRoute, d.Redirect)
	assert.False(t, d.SignOut)
}

func TestGateInvalidToken(t *testing.T) {
	f := newFixture(t)
	d := f.gate.Check(context.Background(), "garbage", "/printing")
	assert.False(t, d.Allowed)
	assert.Equal(t, constants.LoginRoute, d.Redirect)
	assert.True(t, d.SignOut)
}

func TestGateMissingAccountSignsOut(t *testing.T) {
	f := newFixture(t)
	_, token := f.signIn(t, "w01", nil, false)
	d := f.gate.Check(context.Background(), token, "/printing")
	assert.False(t, d.Allowed)
	assert.True(t, d.SignOut)
	assert.Equal(t, constants.LoginRoute, d.Redirect)
}

func TestGateRoleChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, worker := f.signIn(t, "w01", []string{"cutting", "pasting"}, true)
	_, admin := f.signIn(t, "boss", []string{"admin"}, true)
	_, empty := f.signIn(t, "w02", []string{}, true)

	d := f.gate.Check(ctx, worker, "/pasting")
	assert.True(t, d.Allowed)
	require.NotNil(t, d.Principal)
	assert.Equal(t, []constants.Role{constants.RoleCutting, constants.RolePasting}, d.Principal.Resolution.Roles)

	d = f.gate.Check(ctx, worker, "/printing")
	assert.False(t, d.Allowed)
	assert.Equal(t, "/cutting", d.Redirect, "mismatch redirects to own landing")

	d = f.gate.Check(ctx, worker, "/reports")
	assert.False(t, d.Allowed)
	assert.Equal(t, "/cutting", d.Redirect)

	for _, path := range []string{"/admin/dashboard", "/lamination", "/machineinfo", "/pre_press/queue"} {
		assert.True(t, f.gate.Check(ctx, admin, path).Allowed, path)
	}

	d = f.gate.Check(ctx, empty, "/printing")
	assert.False(t, d.Allowed)
	assert.True(t, d.SignOut)
	assert.Equal(t, constants.LoginRoute, d.Redirect)
}

func TestGateRechecksEveryRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id, token := f.signIn(t, "w01", []string{"printing"}, true)
	require.True(t, f.gate.Check(ctx, token, "/printing").Allowed)

	require.NoError(t, f.repos.Accounts.Update(ctx, id, repository.AccountUpdate{Roles: []string{"sorting"}}, f.clock.Now()))
	d := f.gate.Check(ctx, token, "/printing")
	assert.False(t, d.Allowed)
	assert.Equal(t, "/sorting", d.Redirect)
}

func TestHolderRevokesOnPasswordChange(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	ctx := context.Background()
	f := newFixture(t)
	broker := notify.NewMemory(testutil.Logger())
	defer broker.Close()
	holderCtx, cancel := context.WithCancel(ctx)
	require.NoError(t, f.holder.Start(holderCtx, broker))

	id, token := f.signIn(t, "w01", []string{"printing"}, true)
	require.True(t, f.gate.Check(ctx, token, "/printing").Allowed)

	at := f.clock.Advance(time.Minute)
	require.NoError(t, broker.Publish(ctx, notify.Event{Topic: notify.TopicIdentities, Op: notify.OpPasswordChanged, Key: id, At: at}))

	assert.Eventually(t, func() bool {
		d := f.gate.Check(ctx, token, "/printing")
		return !d.Allowed && d.SignOut
	}, 2*time.Second, 10*time.Millisecond)

	sess, err := f.provider.SignIn(ctx, identity.LoginFor("w01", "example.com"), "secret1")
	require.NoError(t, err)
	assert.True(t, f.gate.Check(ctx, sess.Token, "/printing").Allowed, "fresh sessions are unaffected")

	cancel()
	select {
	case <-f.holder.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("holder did not stop")
	}
}

func TestHolderRevokesWithinSameSecond(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id, token := f.signIn(t, "w01", []string{"printing"}, true)
	claims, err := f.provider.Verify(ctx, token)
	require.NoError(t, err)

	at := f.clock.Advance(500 * time.Millisecond)
	require.True(t, claims.IssuedAt.Time.Equal(at.Truncate(time.Second)), "revocation lands in the issuing second")
	f.holder.Revoke(id, at)

	assert.True(t, f.holder.Revoked(claims))
	d := f.gate.Check(ctx, token, "/printing")
	assert.False(t, d.Allowed)
	assert.True(t, d.SignOut)

	sess, err := f.provider.SignIn(ctx, identity.LoginFor("w01", "example.com"), "secret1")
	require.NoError(t, err)
	assert.True(t, f.gate.Check(ctx, sess.Token, "/printing").Allowed)

	legacy := &identity.Claims{}
	legacy.Subject = id
	legacy.IssuedAt = claims.IssuedAt
	assert.False(t, f.holder.Revoked(legacy), "second-precision tokens compare at whole seconds")
}

func TestHolderIgnoresUnrelatedEvents(t *testing.T) {
	h := session.NewHolder(testutil.Logger())
	claims := &identity.Claims{}
	claims.Subject = "id-1"

	h.Apply(notify.Event{Topic: notify.TopicWorkItems, Op: notify.OpDelete, Key: "id-1", At: time.Now()})
	h.Apply(notify.Event{Topic: notify.TopicIdentities, Op: notify.OpInsert, Key: "id-1", At: time.Now()})
	assert.False(t, h.Revoked(claims))

	var nilHolder *session.Holder
	assert.False(t, nilHolder.Revoked(claims))
}
