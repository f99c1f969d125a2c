package identity_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/identity"
	"github.com/joseph-ayodele/jobtracker/internal/notify"
	"github.com/joseph-ayodele/jobtracker/internal/testutil"
)

const serviceKey = "test-service-key-0123456789"

func newProvider(t *testing.T, clock *testutil.Clock, opts ...identity.Option) *identity.Provider {
	t.Helper()
	db := testutil.NewDB(t)
	opts = append([]identity.Option{identity.WithClock(clock.Now)}, opts...)
	p, err := identity.NewProvider(db.Repos().Identities, identity.Config{
		ServiceKey: serviceKey,
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, testutil.Logger(), opts...)
	require.NoError(t, err)
	return p
}

func TestNewProviderRequiresServiceKey(t *testing.T) {
	_, err := identity.NewProvider(nil, identity.Config{}, testutil.Logger())
	require.Error(t, err)
}

func TestLoginHelpers(t *testing.T) {
	assert.Equal(t, "w01@operativex.com", identity.LoginFor(" W01 ", "operativex.com"))
	assert.Equal(t, "w01", identity.EmployeeCodeFromLogin("w01@operativex.com"))
	assert.Equal(t, "plain", identity.EmployeeCodeFromLogin("plain"))
}

func TestSignInAndVerify(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock()
	p := newProvider(t, clock)

	it, err := p.CreateIdentity(ctx, "w01@operativex.com", "secret1", nil)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", it.PasswordHash)

	sess, err := p.SignIn(ctx, "W01@operativex.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, it.ID, sess.IdentityID)
	assert.True(t, sess.ExpiresAt.Equal(clock.Now().Add(time.Hour)))

	claims, err := p.Verify(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, it.ID, claims.Subject)
	assert.Equal(t, "w01@operativex.com", claims.Login)
	assert.True(t, claims.IssuedTime().Equal(clock.Now()))

	_, err = p.SignIn(ctx, "w01@operativex.com", "wrong")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	_, err = p.SignIn(ctx, "nobody@operativex.com", "secret1")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock()
	p := newProvider(t, clock)
	_, err := p.CreateIdentity(ctx, "a@x", "secret1", nil)
	require.NoError(t, err)
	sess, err := p.SignIn(ctx, "a@x", "secret1")
	require.NoError(t, err)

	_, err = p.Verify(ctx, "")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = p.Verify(ctx, sess.Token[:len(sess.Token)-2]+"xx")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "someone",
		Issuer:    "jobtracker",
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}).SignedString([]byte("another-key-entirely"))
	require.NoError(t, err)
	_, err = p.Verify(ctx, forged)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	clock.Advance(2 * time.Hour)
	_, err = p.Verify(ctx, sess.Token)
	assert.ErrorIs(t, err, common.ErrUnauthorized, "expired token")
}

func TestUpdateAndDeletePublish(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock()
	broker := notify.NewMemory(testutil.Logger())
	defer broker.Close()
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events, err := broker.Subscribe(subCtx)
	require.NoError(t, err)

	p := newProvider(t, clock, identity.WithPublisher(broker))
	it, err := p.CreateIdentity(ctx, "a@x", "secret1", map[string]string{"full_name": "A"})
	require.NoError(t, err)
	assert.Equal(t, notify.OpInsert, (<-events).Op)

	newPass := "secret2"
	require.NoError(t, p.UpdateIdentity(ctx, it.ID, identity.Update{Password: &newPass}))
	ev := <-events
	assert.Equal(t, notify.TopicIdentities, ev.Topic)
	assert.Equal(t, notify.OpPasswordChanged, ev.Op)
	assert.Equal(t, it.ID, ev.Key)

	_, err = p.SignIn(ctx, "a@x", "secret1")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	_, err = p.SignIn(ctx, "a@x", "secret2")
	require.NoError(t, err)

	newLogin := "b@x"
	require.NoError(t, p.UpdateIdentity(ctx, it.ID, identity.Update{Login: &newLogin}))
	assert.Equal(t, notify.OpUpdate, (<-events).Op)

	require.NoError(t, p.UpdateIdentity(ctx, it.ID, identity.Update{}), "empty update is a no-op")

	require.NoError(t, p.DeleteIdentity(ctx, it.ID))
	assert.Equal(t, notify.OpDelete, (<-events).Op)
	assert.ErrorIs(t, p.DeleteIdentity(ctx, it.ID), common.ErrNotFound)
}

func TestOverlongCredentialIsWeak(t *testing.T) {
	p := newProvider(t, testutil.NewClock())
	_, err := p.CreateIdentity(context.Background(), "a@x", strings.Repeat("x", 100), nil)
	require.Error(t, err)
	assert.Equal(t, common.CodeWeakCredential, common.CodeOf(err))
}
