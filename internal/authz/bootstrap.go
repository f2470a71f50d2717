package authz

import "fmt"

// RoleSeed 预置角色定义，Immutable 的角色不接受运行时授权变更
type RoleSeed struct {
	Role      string
	Inherits  []string
	Policies  []Policy
	Immutable bool
}

// 预置角色
const (
	RoleCartViewer   = "cart_viewer"
	RoleCartOperator = "cart_operator"
	RoleCartAdmin    = "cart_admin"
)

// BuiltinRoleSeeds 系统预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: RoleCartViewer,
			Policies: []Policy{
				{Object: "/admin/carts", Action: "GET"},
				{Object: "/admin/carts/:user_id", Action: "GET"},
				{Object: "/admin/cart-audit-logs", Action: "GET"},
			},
			Immutable: true,
		},
		{
			Role:     RoleCartOperator,
			Inherits: []string{RoleCartViewer},
			Policies: []Policy{
				{Object: "/admin/carts/:user_id/validate", Action: "POST"},
				{Object: "/admin/carts/:user_id/items", Action: "DELETE"},
				{Object: "/admin/carts/purge-expired", Action: "POST"},
			},
			Immutable: true,
		},
		{
			Role:     RoleCartAdmin,
			Inherits: []string{RoleCartOperator},
			Policies: []Policy{
				{Object: "/admin/authz/*", Action: "*"},
			},
			Immutable: true,
		},
	}
}

// IsImmutableRole 判断角色是否为不可修改的预置角色
func IsImmutableRole(role string) bool {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return false
	}
	for _, seed := range BuiltinRoleSeeds() {
		if seed.Immutable && rolePrefix+seed.Role == normalized {
			return true
		}
	}
	return false
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略，可重复执行
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		if err := s.seedRole(seed); err != nil {
			return fmt.Errorf("seed role %s failed: %w", seed.Role, err)
		}
	}
	return nil
}

func (s *Service) seedRole(seed RoleSeed) error {
	role, err := s.EnsureRole(seed.Role)
	if err != nil {
		return err
	}
	for _, parent := range seed.Inherits {
		parentRole, err := s.EnsureRole(parent)
		if err != nil {
			return err
		}
		if _, err := s.enforcer.AddNamedGroupingPolicy(groupingPType, role, parentRole); err != nil {
			return fmt.Errorf("link role inheritance failed: %w", err)
		}
	}
	for _, policy := range seed.Policies {
		action := NormalizeAction(policy.Action)
		if action == "" {
			return ErrActionRequired
		}
		if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
			return fmt.Errorf("add builtin policy failed: %w", err)
		}
	}
	return nil
}
