package handler

import (
	"payoutledger/internal/service"
	"payoutledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 管理后台：员工
// ============================================================

// CreateEmployee 创建员工并分配工号
// POST /api/v1/admin/employees
func (h *Handler) CreateEmployee(c *gin.Context) {
	var req service.CreateEmployeeRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.employees.CreateEmployee(c.Request.Context(), actor(c), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, resp)
}

// ListEmployees 员工列表
// GET /api/v1/admin/employees
func (h *Handler) ListEmployees(c *gin.Context) {
	list, err := h.employees.ListEmployees(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

type EmployeeStatusRequest struct {
	EmployeeID string `json:"employee_id" binding:"required"`
	Status     string `json:"status" binding:"required"`
}

// SetEmployeeStatus 封禁或解封
// POST /api/v1/admin/employees/status
func (h *Handler) SetEmployeeStatus(c *gin.Context) {
	var req EmployeeStatusRequest
	if !bind(c, &req) {
		return
	}
	if err := h.employees.SetEmployeeStatus(c.Request.Context(), actor(c), req.EmployeeID, req.Status); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"employee_id": req.EmployeeID, "status": req.Status})
}

// ============================================================
// 管理后台：项目
// ============================================================

type CreateProjectRequest struct {
	ItemRefs []string `json:"item_refs" binding:"required"`
}

// CreateProject 创建批次
// POST /api/v1/admin/projects
func (h *Handler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.projects.CreateProject(c.Request.Context(), actor(c), req.ItemRefs)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, p)
}

// ListProjects 项目列表，可按状态过滤
// GET /api/v1/admin/projects?status=IN_PROGRESS&limit=50
func (h *Handler) ListProjects(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	list, err := h.projects.ListProjects(c.Request.Context(), actor(c), c.Query("status"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// AssignProject 分配项目
// POST /api/v1/admin/projects/assign
func (h *Handler) AssignProject(c *gin.Context) {
	var req service.AssignProjectRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.projects.AssignProject(c.Request.Context(), actor(c), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, p)
}

// ApproveProject 审核通过并结算，重复调用不会重复打款
// POST /api/v1/admin/projects/approve
func (h *Handler) ApproveProject(c *gin.Context) {
	var req ProjectIDRequest
	if !bind(c, &req) {
		return
	}
	result, err := h.projects.ApproveProject(c.Request.Context(), actor(c), req.ProjectID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

type RejectProjectRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	Reason    string `json:"reason"`
}

// RejectProject 驳回返工
// POST /api/v1/admin/projects/reject
func (h *Handler) RejectProject(c *gin.Context) {
	var req RejectProjectRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.projects.RejectProject(c.Request.Context(), actor(c), req.ProjectID, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, p)
}

// ListPendingReview 待审核项目
// GET /api/v1/admin/projects/review
func (h *Handler) ListPendingReview(c *gin.Context) {
	list, err := h.projects.ListPendingReview(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// ListSubmissions 项目的全部条目和提交内容
// GET /api/v1/admin/projects/submissions?project_id=xxx
func (h *Handler) ListSubmissions(c *gin.Context) {
	projectID := c.Query("project_id")
	if projectID == "" {
		response.ParamError(c, "project_id 参数不能为空")
		return
	}
	list, err := h.projects.ListSubmissions(c.Request.Context(), actor(c), projectID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// ============================================================
// 管理后台：提现
// ============================================================

// ListPendingWithdrawals 待审核提现
// GET /api/v1/admin/withdrawals/pending
func (h *Handler) ListPendingWithdrawals(c *gin.Context) {
	list, err := h.withdrawals.ListPendingWithdrawals(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

type WithdrawalActionRequest struct {
	WithdrawalID string `json:"withdrawal_id" binding:"required"`
	Reason       string `json:"reason"`
}

// ApproveWithdrawal 批准提现
// POST /api/v1/admin/withdrawals/approve
func (h *Handler) ApproveWithdrawal(c *gin.Context) {
	var req WithdrawalActionRequest
	if !bind(c, &req) {
		return
	}
	w, err := h.withdrawals.ApproveWithdrawal(c.Request.Context(), actor(c), req.WithdrawalID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, w)
}

// DeclineWithdrawal 驳回提现并退款
// POST /api/v1/admin/withdrawals/decline
func (h *Handler) DeclineWithdrawal(c *gin.Context) {
	var req WithdrawalActionRequest
	if !bind(c, &req) {
		return
	}
	w, err := h.withdrawals.DeclineWithdrawal(c.Request.Context(), actor(c), req.WithdrawalID, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, w)
}

// ============================================================
// 管理后台：统计与审计
// ============================================================

// AdminStats 运营统计
// GET /api/v1/admin/stats
func (h *Handler) AdminStats(c *gin.Context) {
	stats, err := h.queries.AdminStats(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, stats)
}

// ListAuditLog 审计日志，最新的在前
// GET /api/v1/admin/audit?limit=100
func (h *Handler) ListAuditLog(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	list, err := h.queries.ListAuditLog(c.Request.Context(), actor(c), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// VerifyAuditChain 重算审计哈希链
// GET /api/v1/admin/audit/verify
func (h *Handler) VerifyAuditChain(c *gin.Context) {
	v, err := h.queries.VerifyAuditChain(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, v)
}
