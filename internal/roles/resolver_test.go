package roles_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/jobtracker/constants"
	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
	"github.com/joseph-ayodele/jobtracker/internal/roles"
	"github.com/joseph-ayodele/jobtracker/internal/testutil"
)

func TestResolveAdminAlwaysLandsOnDashboard(t *testing.T) {
	r := roles.NewResolver("printing")
	cases := map[string]*entity.Account{
		"roles admin only":        {Roles: []string{"admin"}},
		"admin among others":      {Roles: []string{"printing", "admin", "cutting"}},
		"legacy role admin":       {Role: "admin"},
		"legacy admin, roles set": {Role: "admin", Roles: []string{"pasting"}},
		"legacy admin, empty":     {Role: "admin", Roles: []string{}},
	}
	for name, acct := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := r.Resolve(acct)
			require.NoError(t, err)
			assert.True(t, res.IsAdmin)
			assert.Equal(t, constants.AdminLandingRoute, res.LandingRoute)
			assert.False(t, res.Has(constants.RoleAdmin), "admin is never listed among roles")
		})
	}
}

func TestResolveFallbackPolicy(t *testing.T) {
	r := roles.NewResolver("printing")

	// roles absent, no legacy role: fallback applies.
	res, err := r.Resolve(&entity.Account{})
	require.NoError(t, err)
	assert.Equal(t, []constants.Role{constants.RolePrinting}, res.Roles)
	assert.Equal(t, "/printing", res.LandingRoute)

	// roles present but empty: no fallback.
	_, err = r.Resolve(&entity.Account{Roles: []string{}})
	require.Error(t, err)
	assert.Equal(t, common.CodeNoRoleAssigned, common.CodeOf(err))
	assert.ErrorIs(t, err, common.ErrForbidden)

	// fallback disabled.
	_, err = roles.NewResolver("").Resolve(&entity.Account{})
	assert.Equal(t, common.CodeNoRoleAssigned, common.CodeOf(err))
}

func TestResolveLegacyAndOrdering(t *testing.T) {
	r := roles.NewResolver("printing")

	res, err := r.Resolve(&entity.Account{Role: "pre-press"})
	require.NoError(t, err)
	assert.Equal(t, "/pre_press", res.LandingRoute)

	res, err = r.Resolve(&entity.Account{Roles: []string{"Card-Cutting", "lamination", "card_cutting", "varnish"}})
	require.NoError(t, err)
	want := []constants.Role{constants.RoleCardCutting, constants.RoleLamination, "varnish"}
	if diff := cmp.Diff(want, res.Roles); diff != "" {
		t.Errorf("roles mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "/card_cutting", res.LandingRoute)
	assert.False(t, res.IsAdmin)

	res, err = r.Resolve(&entity.Account{Roles: []string{"varnish"}})
	require.NoError(t, err)
	assert.Equal(t, "/varnish", res.LandingRoute, "unknown tags land on /<tag>")
}

func TestResolveNilAccount(t *testing.T) {
	_, err := roles.NewResolver("printing").Resolve(nil)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestAllows(t *testing.T) {
	admin := &roles.Resolution{IsAdmin: true}
	assert.True(t, admin.Allows(""))
	assert.True(t, admin.Allows(constants.RoleCutting))

	worker := &roles.Resolution{Roles: []constants.Role{constants.RoleCutting}}
	assert.True(t, worker.Allows(constants.RoleCutting))
	assert.False(t, worker.Allows(constants.RolePrinting))
	assert.False(t, worker.Allows(""), "admin-only pages reject workers")
}

func TestEffectiveRoles(t *testing.T) {
	r := roles.NewResolver("printing")
	assert.Equal(t, []string{"printing"}, r.EffectiveRoles(&entity.Account{}))
	assert.Equal(t, []string{"cutting"}, r.EffectiveRoles(&entity.Account{Role: "cutting"}))
	assert.Equal(t, []string{}, r.EffectiveRoles(&entity.Account{Roles: []string{}}))
	assert.Nil(t, r.EffectiveRoles(nil))
}

func TestProvisionerConcurrentFirstLogin(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	clock := testutil.NewClock()
	p := roles.NewProvisioner(db.Repos().Accounts, clock.Now, testutil.Logger())

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Ensure(ctx, "identity-1", "w01")
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	all, err := db.Repos().Accounts.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "w01", all[0].EmployeeCode)
	assert.Equal(t, []string{"printing"}, all[0].Roles)
	assert.Equal(t, "printing", all[0].Role)
}
