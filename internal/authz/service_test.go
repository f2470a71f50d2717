package authz

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestEnforceAdminWithRolePolicy(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("ops", "/admin/carts/:user_id", "GET"); err != nil {
		t.Fatalf("grant role policy failed: %v", err)
	}
	if err := svc.SetAdminRoles("a1", []string{"ops"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	allow, err := svc.EnforceAdmin("a1", "/api/v1/admin/carts/u42", "get")
	if err != nil {
		t.Fatalf("enforce allow failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected allow=true")
	}

	allow, err = svc.EnforceAdmin("a1", "/api/v1/admin/carts/u42", "DELETE")
	if err != nil {
		t.Fatalf("enforce deny failed: %v", err)
	}
	if allow {
		t.Fatalf("expected allow=false")
	}
}

func TestSetAdminRolesOverride(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("viewer", "/admin/carts", "GET"); err != nil {
		t.Fatalf("grant viewer policy failed: %v", err)
	}
	if err := svc.GrantRolePolicy("janitor", "/admin/carts/purge-expired", "POST"); err != nil {
		t.Fatalf("grant janitor policy failed: %v", err)
	}

	if err := svc.SetAdminRoles("a2", []string{"viewer"}); err != nil {
		t.Fatalf("set first role failed: %v", err)
	}
	roles, err := svc.GetAdminRoles("a2")
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:viewer" {
		t.Fatalf("roles want [role:viewer], got=%v", roles)
	}

	if err := svc.SetAdminRoles("a2", []string{"janitor"}); err != nil {
		t.Fatalf("set second role failed: %v", err)
	}
	roles, err = svc.GetAdminRoles("a2")
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:janitor" {
		t.Fatalf("roles want [role:janitor], got=%v", roles)
	}

	allow, err := svc.EnforceAdmin("a2", "/admin/carts", "GET")
	if err != nil {
		t.Fatalf("enforce old role failed: %v", err)
	}
	if allow {
		t.Fatalf("expected old role permission removed")
	}

	allow, err = svc.EnforceAdmin("a2", "/admin/carts/purge-expired", "POST")
	if err != nil {
		t.Fatalf("enforce new role failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected new role permission granted")
	}
}

func TestEnforceAdminWithTokenRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}

	allow, err := svc.EnforceAdminWithRoles("a3", []string{RoleCartViewer}, "/api/v1/admin/carts/u1", "GET")
	if err != nil {
		t.Fatalf("enforce viewer failed: %v", err)
	}
	if !allow {
		t.Fatalf("viewer should read carts")
	}

	allow, err = svc.EnforceAdminWithRoles("a3", []string{RoleCartViewer, " "}, "/api/v1/admin/carts/u1/items", "DELETE")
	if err != nil {
		t.Fatalf("enforce viewer write failed: %v", err)
	}
	if allow {
		t.Fatalf("viewer must not clear carts")
	}

	allow, err = svc.EnforceAdminWithRoles("a3", nil, "/api/v1/admin/carts", "GET")
	if err != nil {
		t.Fatalf("enforce without roles failed: %v", err)
	}
	if allow {
		t.Fatalf("admin without roles must be denied")
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/admin/carts/:user_id", want: "/admin/carts/:user_id"},
		{in: "/admin/carts/:user_id", want: "/admin/carts/:user_id"},
		{in: "admin/carts", want: "/admin/carts"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	wantRoles := map[string]bool{
		"role:cart_viewer":   true,
		"role:cart_operator": true,
		"role:cart_admin":    true,
	}
	for _, role := range roles {
		delete(wantRoles, role)
	}
	if len(wantRoles) != 0 {
		t.Fatalf("builtin roles missing: %v", wantRoles)
	}

	if err := svc.SetAdminRoles("a4", []string{RoleCartOperator}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	allow, err := svc.EnforceAdmin("a4", "/admin/cart-audit-logs", "GET")
	if err != nil {
		t.Fatalf("enforce inherited viewer failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected inherited viewer permission")
	}

	allow, err = svc.EnforceAdmin("a4", "/admin/authz/roles", "GET")
	if err != nil {
		t.Fatalf("enforce authz access failed: %v", err)
	}
	if allow {
		t.Fatalf("operator must not manage roles")
	}
}

func TestEffectivePoliciesIncludesInheritedRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	if err := svc.SetAdminRoles("a5", []string{RoleCartOperator}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	policies, err := svc.EffectivePolicies("a5", nil)
	if err != nil {
		t.Fatalf("effective policies failed: %v", err)
	}
	got := make(map[string]bool, len(policies))
	for _, policy := range policies {
		got[policy.Action+":"+policy.Object] = true
	}
	for _, want := range []string{
		"GET:/admin/carts",
		"GET:/admin/cart-audit-logs",
		"DELETE:/admin/carts/:user_id/items",
		"POST:/admin/carts/purge-expired",
	} {
		if !got[want] {
			t.Fatalf("expected policy %s in %+v", want, policies)
		}
	}
	if got["*:/admin/authz/*"] {
		t.Fatalf("operator must not inherit authz management")
	}

	tokenOnly, err := svc.EffectivePolicies("", []string{RoleCartViewer})
	if err != nil {
		t.Fatalf("effective policies by token role failed: %v", err)
	}
	if len(tokenOnly) != 3 {
		t.Fatalf("viewer should hold 3 policies, got %+v", tokenOnly)
	}
}

func TestGrantRolePolicyRejectsBuiltinRole(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	if err := svc.GrantRolePolicy(RoleCartViewer, "/admin/carts/:user_id/items", "DELETE"); !errors.Is(err, ErrImmutableRole) {
		t.Fatalf("expected ErrImmutableRole, got %v", err)
	}
	if err := svc.GrantRolePolicy("ops", "/admin/carts", ""); !errors.Is(err, ErrActionRequired) {
		t.Fatalf("expected ErrActionRequired, got %v", err)
	}
	if _, err := svc.EnsureRole("__anchor__"); !errors.Is(err, ErrReservedRole) {
		t.Fatalf("expected ErrReservedRole, got %v", err)
	}
	if err := svc.SetAdminRoles(" ", nil); !errors.Is(err, ErrAdminIDRequired) {
		t.Fatalf("expected ErrAdminIDRequired, got %v", err)
	}
}

func TestNilServiceUnavailable(t *testing.T) {
	var svc *Service
	if _, err := svc.Enforce("admin:1", "/admin/carts", "GET"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from bootstrap, got %v", err)
	}
}
