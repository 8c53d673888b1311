package auth

import (
	"context"
	"strings"

	"payoutledger/internal/apperr"
)

// Role 调用方角色，在接入层解析一次后随 AuthContext 传入业务层
type Role int

const (
	RoleUnknown Role = iota
	RoleEmployee
	RoleAdmin
	RoleSystem
)

func (r Role) String() string {
	switch r {
	case RoleEmployee:
		return "EMPLOYEE"
	case RoleAdmin:
		return "ADMIN"
	case RoleSystem:
		return "SYSTEM"
	default:
		return "UNKNOWN"
	}
}

// ParseRole 解析持久化或令牌中的角色字符串
func ParseRole(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EMPLOYEE":
		return RoleEmployee
	case "ADMIN":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

// AuthContext 当前操作的身份
type AuthContext struct {
	EmployeeID string
	Role       Role
}

// System 后台任务使用的身份（如截止时间扫描）
func System() AuthContext {
	return AuthContext{Role: RoleSystem}
}

func Admin(employeeID string) AuthContext {
	return AuthContext{EmployeeID: employeeID, Role: RoleAdmin}
}

func Employee(employeeID string) AuthContext {
	return AuthContext{EmployeeID: employeeID, Role: RoleEmployee}
}

func (a AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a AuthContext) IsSystem() bool {
	return a.Role == RoleSystem
}

// RequireAdmin 管理员或系统任务才能通过
func (a AuthContext) RequireAdmin() error {
	if a.Role == RoleAdmin || a.Role == RoleSystem {
		return nil
	}
	return apperr.ErrUnauthorized.WithMessage("需要管理员权限")
}

// RequireSelf 只能操作自己的数据，管理员除外
func (a AuthContext) RequireSelf(employeeID string) error {
	if a.Role == RoleAdmin || a.Role == RoleSystem {
		return nil
	}
	if a.Role == RoleEmployee && a.EmployeeID != "" && a.EmployeeID == employeeID {
		return nil
	}
	return apperr.ErrUnauthorized
}

type ctxKey struct{}

// WithContext 把身份放入 context，供 HTTP 中间件传递
func WithContext(ctx context.Context, a AuthContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext 取出身份
func FromContext(ctx context.Context) (AuthContext, bool) {
	a, ok := ctx.Value(ctxKey{}).(AuthContext)
	return a, ok
}
