package admin

import (
	"errors"
	"net/url"
	"strings"

	"github.com/lumen-shop/cart-service/internal/authz"
	"github.com/lumen-shop/cart-service/internal/http/response"
	"github.com/lumen-shop/cart-service/internal/logger"
	"github.com/lumen-shop/cart-service/internal/models"
	"github.com/lumen-shop/cart-service/internal/service"

	"github.com/gin-gonic/gin"
)

// 权限变更的审计动作
const (
	authzAuditActionRoleCreate       = "role_create"
	authzAuditActionPolicyGrant      = "policy_grant"
	authzAuditActionAdminRolesUpdate = "admin_roles_update"
)

type authzRolePayload struct {
	Role string `json:"role" binding:"required"`
}

type authzPolicyPayload struct {
	Role   string `json:"role" binding:"required"`
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

type authzSetAdminRolesPayload struct {
	Roles []string `json:"roles"`
}

// GetAuthzMe 获取当前管理员的角色与生效策略
func (h *Handler) GetAuthzMe(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(adminID)
	if err != nil {
		respondAuthzError(c, err)
		return
	}
	tokenRoles := currentTokenRoles(c)
	permissions, err := h.AuthzService.EffectivePolicies(adminID, tokenRoles)
	if err != nil {
		respondAuthzError(c, err)
		return
	}

	isSuper := false
	if value, exists := c.Get("admin_is_super"); exists {
		isSuper, _ = value.(bool)
	}

	response.Success(c, gin.H{
		"admin_id":    adminID,
		"is_super":    isSuper,
		"roles":       roles,
		"token_roles": tokenRoles,
		"permissions": permissions,
	})
}

// ListAuthzRoles 获取角色列表
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondAuthzError(c, err)
		return
	}
	response.Success(c, roles)
}

// CreateAuthzRole 创建角色
func (h *Handler) CreateAuthzRole(c *gin.Context) {
	var req authzRolePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	role, err := h.AuthzService.EnsureRole(req.Role)
	if err != nil {
		respondAuthzError(c, err)
		return
	}

	h.recordCartAudit(c, service.CartAuditRecordInput{
		OperatorID: currentAdminID(c),
		Action:     authzAuditActionRoleCreate,
		RequestID:  currentRequestID(c),
		Detail:     models.JSON{"role": role},
	})
	logger.Infow("admin_authz_role_created",
		"operator_admin_id", currentAdminID(c),
		"role", role,
	)
	response.Success(c, gin.H{"role": role})
}

// GetAuthzRolePolicies 获取角色策略
func (h *Handler) GetAuthzRolePolicies(c *gin.Context) {
	role := decodeRoleParam(c.Param("role"))
	if role == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	policies, err := h.AuthzService.GetRolePolicies(role)
	if err != nil {
		respondAuthzError(c, err)
		return
	}
	response.Success(c, policies)
}

// GrantAuthzPolicy 授予角色策略
func (h *Handler) GrantAuthzPolicy(c *gin.Context) {
	var req authzPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	if err := h.AuthzService.GrantRolePolicy(req.Role, req.Object, req.Action); err != nil {
		respondAuthzError(c, err)
		return
	}

	h.recordCartAudit(c, service.CartAuditRecordInput{
		OperatorID: currentAdminID(c),
		Action:     authzAuditActionPolicyGrant,
		RequestID:  currentRequestID(c),
		Detail: models.JSON{
			"role":   req.Role,
			"object": req.Object,
			"method": strings.ToUpper(strings.TrimSpace(req.Action)),
		},
	})
	logger.Infow("admin_authz_policy_granted",
		"operator_admin_id", currentAdminID(c),
		"role", req.Role,
		"object", req.Object,
		"action", req.Action,
	)
	response.Success(c, nil)
}

// GetAuthzAdminRoles 获取管理员角色
func (h *Handler) GetAuthzAdminRoles(c *gin.Context) {
	adminID, ok := parseAdminIDParam(c)
	if !ok {
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(adminID)
	if err != nil {
		respondAuthzError(c, err)
		return
	}
	response.Success(c, roles)
}

// SetAuthzAdminRoles 设置管理员角色
func (h *Handler) SetAuthzAdminRoles(c *gin.Context) {
	adminID, ok := parseAdminIDParam(c)
	if !ok {
		return
	}
	var req authzSetAdminRolesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	if err := h.AuthzService.SetAdminRoles(adminID, req.Roles); err != nil {
		respondAuthzError(c, err)
		return
	}

	h.recordCartAudit(c, service.CartAuditRecordInput{
		OperatorID: currentAdminID(c),
		Action:     authzAuditActionAdminRolesUpdate,
		RequestID:  currentRequestID(c),
		Detail: models.JSON{
			"target_admin_id": adminID,
			"roles":           req.Roles,
		},
	})
	logger.Infow("admin_authz_admin_roles_updated",
		"operator_admin_id", currentAdminID(c),
		"target_admin_id", adminID,
		"roles", req.Roles,
	)
	response.Success(c, nil)
}

func respondAuthzError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authz.ErrImmutableRole):
		respondError(c, response.CodeForbidden, "error.role_immutable", err)
	case errors.Is(err, authz.ErrAdminIDRequired):
		respondError(c, response.CodeBadRequest, "error.admin_id_invalid", err)
	case errors.Is(err, authz.ErrRoleRequired),
		errors.Is(err, authz.ErrReservedRole),
		errors.Is(err, authz.ErrActionRequired):
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
	default:
		respondError(c, response.CodeInternal, "error.internal", err)
	}
}

func parseAdminIDParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, response.CodeBadRequest, "error.admin_id_invalid", nil)
		return "", false
	}
	return id, true
}

func decodeRoleParam(value string) string {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(decoded)
}
