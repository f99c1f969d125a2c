package constants

import (
	"strings"
)

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleManager     Role = "manager"
	RolePrinting    Role = "printing"
	RoleCutting     Role = "cutting"
	RolePasting     Role = "pasting"
	RoleLamination  Role = "lamination"
	RolePrepress    Role = "prepress"
	RolePlates      Role = "plates"
	RoleCardCutting Role = "card_cutting"
	RoleSorting     Role = "sorting"
)

// DefaultFallbackRole is assigned when an account carries no role information at all.
const DefaultFallbackRole = RolePrinting

// AdminLandingRoute is where every admin lands after sign-in.
const AdminLandingRoute = "/admin/dashboard"

// LoginRoute is the target of every failed gate check.
const LoginRoute = "/login"

var allRoles = []Role{
	RoleAdmin,
	RoleManager,
	RolePrinting,
	RoleCutting,
	RolePasting,
	RoleLamination,
	RolePrepress,
	RolePlates,
	RoleCardCutting,
	RoleSorting,
}

// roleRoutes is the fixed role -> landing page table.
var roleRoutes = map[Role]string{
	RolePrinting:    "/printing",
	RoleCutting:     "/cutting",
	RolePasting:     "/pasting",
	RoleLamination:  "/lamination",
	RolePrepress:    "/pre_press",
	RolePlates:      "/plates",
	RoleCardCutting: "/card_cutting",
	RoleSorting:     "/sorting",
}

// ProtectedPrefixes lists page paths that require a session with a resolved role.
// An empty required role means admin only.
var ProtectedPrefixes = []struct {
	Prefix string
	Role   Role
}{
	{"/admin", ""},
	{"/main", ""},
	{"/reports", ""},
	{"/machineinfo", ""},
	{"/pre_press", RolePrepress},
	{"/plates", RolePlates},
	{"/card_cutting", RoleCardCutting},
	{"/printing", RolePrinting},
	{"/pasting", RolePasting},
	{"/sorting", RoleSorting},
	{"/cutting", RoleCutting},
	{"/lamination", RoleLamination},
}

// RolesAsStringSlice lists every known role tag.
func RolesAsStringSlice() []string {
	result := make([]string, len(allRoles))
	for i, r := range allRoles {
		result[i] = string(r)
	}
	return result
}

// CanonicalizeRole normalizes a role tag and reports whether it is known.
func CanonicalizeRole(input string) (Role, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]Role{
		"pre_press":    RolePrepress,
		"pre-press":    RolePrepress,
		"card-cutting": RoleCardCutting,
		"cardcutting":  RoleCardCutting,
	}
	if r, ok := synonyms[normalized]; ok {
		return r, true
	}

	for _, r := range allRoles {
		if normalized == string(r) {
			return r, true
		}
	}
	return Role(normalized), false
}

// LandingRoute returns the page for a non-admin role. Unknown tags map to "/<tag>".
func LandingRoute(r Role) string {
	if path, ok := roleRoutes[r]; ok {
		return path
	}
	return "/" + string(r)
}

// RequiredRole returns the role gating a page path and whether the path is protected at all.
func RequiredRole(path string) (Role, bool) {
	for _, p := range ProtectedPrefixes {
		if path == p.Prefix || strings.HasPrefix(path, p.Prefix+"/") {
			return p.Role, true
		}
	}
	return "", false
}
