package handler

import (
	"strconv"

	"payoutledger/internal/apperr"
	"payoutledger/internal/auth"
	"payoutledger/internal/service"
	"payoutledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	employees   *service.EmployeeService
	projects    *service.ProjectService
	withdrawals *service.WithdrawalService
	queries     *service.QueryService
	log         zerolog.Logger
}

// Services 处理器依赖的业务服务
type Services struct {
	Employees   *service.EmployeeService
	Projects    *service.ProjectService
	Withdrawals *service.WithdrawalService
	Queries     *service.QueryService
}

func NewHandler(s Services, log zerolog.Logger) *Handler {
	return &Handler{
		employees:   s.Employees,
		projects:    s.Projects,
		withdrawals: s.Withdrawals,
		queries:     s.Queries,
		log:         log.With().Str("component", "http").Logger(),
	}
}

// actor 认证中间件写入的身份
func actor(c *gin.Context) auth.AuthContext {
	a, _ := auth.FromContext(c.Request.Context())
	return a
}

// targetEmployee 员工只能查看自己，管理员可以通过 employee_id 指定
func targetEmployee(c *gin.Context) string {
	a := actor(c)
	if id := c.Query("employee_id"); id != "" && a.IsAdmin() {
		return id
	}
	return a.EmployeeID
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		response.ParamError(c, key+" 参数错误")
		return 0, false
	}
	return v, true
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return false
	}
	return true
}

// fail 业务错误按分类返回，未分类错误记录日志
func (h *Handler) fail(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("请求处理失败")
	}
	response.Error(c, err)
}

// ============================================================
// 认证相关接口
// ============================================================

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录并发放每日登录奖励
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}

	resp, err := h.employees.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, resp)
}

// ============================================================
// 钱包相关接口
// ============================================================

// GetBalance 查询余额
// GET /api/v1/wallet/balance
func (h *Handler) GetBalance(c *gin.Context) {
	b, err := h.queries.GetBalance(c.Request.Context(), actor(c), targetEmployee(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, b)
}

// GetLedgerHistory 流水记录，最新的在前
// GET /api/v1/wallet/history?limit=50
func (h *Handler) GetLedgerHistory(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	list, err := h.queries.GetLedgerHistory(c.Request.Context(), actor(c), targetEmployee(c), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// VerifyLedger 对账
// GET /api/v1/wallet/verify
func (h *Handler) VerifyLedger(c *gin.Context) {
	v, err := h.queries.VerifyLedger(c.Request.Context(), actor(c), targetEmployee(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, v)
}

// UpdateBankDetails 绑定银行账户
// PUT /api/v1/profile/bank
func (h *Handler) UpdateBankDetails(c *gin.Context) {
	var req service.BankDetailsRequest
	if !bind(c, &req) {
		return
	}
	a := actor(c)
	if err := h.employees.UpdateBankDetails(c.Request.Context(), a, a.EmployeeID, &req); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "银行账户已更新"})
}

// GetReferralCode 邀请码
// GET /api/v1/profile/referral
func (h *Handler) GetReferralCode(c *gin.Context) {
	a := actor(c)
	code, err := h.employees.GetReferralCode(c.Request.Context(), a, a.EmployeeID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"referral_code": code})
}

// PersonalAnalytics 近 30 天收入、近 7 天每日收入和通过率
// GET /api/v1/profile/analytics
func (h *Handler) PersonalAnalytics(c *gin.Context) {
	a, err := h.queries.PersonalAnalytics(c.Request.Context(), actor(c), targetEmployee(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, a)
}

// Leaderboard 累计收入排行
// GET /api/v1/leaderboard?limit=10
func (h *Handler) Leaderboard(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	board, err := h.queries.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, board)
}

// ============================================================
// 提现相关接口
// ============================================================

// RequestWithdrawal 申请提现，申请时即扣款
// POST /api/v1/withdrawals
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var req service.WithdrawalRequestInput
	if !bind(c, &req) {
		return
	}
	a := actor(c)
	result, err := h.withdrawals.RequestWithdrawal(c.Request.Context(), a, a.EmployeeID, &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// ListWithdrawals 本人的提现记录
// GET /api/v1/withdrawals
func (h *Handler) ListWithdrawals(c *gin.Context) {
	list, err := h.withdrawals.ListEmployeeWithdrawals(c.Request.Context(), actor(c), targetEmployee(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}

// TaxReport 预扣税汇总
// GET /api/v1/withdrawals/tax-report
func (h *Handler) TaxReport(c *gin.Context) {
	report, err := h.withdrawals.TaxReport(c.Request.Context(), actor(c), targetEmployee(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, report)
}

// ============================================================
// 项目相关接口
// ============================================================

type NextItemRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	Sequence  int    `json:"sequence"`
}

// NextItem 领取下一个条目，sequence 大于 0 时查看指定条目
// POST /api/v1/projects/next
func (h *Handler) NextItem(c *gin.Context) {
	var req NextItemRequest
	if !bind(c, &req) {
		return
	}
	alloc, err := h.projects.AllocateNextItem(c.Request.Context(), actor(c), req.ProjectID, req.Sequence)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, alloc)
}

// SubmitItem 提交条目
// POST /api/v1/projects/submit
func (h *Handler) SubmitItem(c *gin.Context) {
	var req service.RecordCompletionRequest
	if !bind(c, &req) {
		return
	}
	completion, err := h.projects.RecordCompletion(c.Request.Context(), actor(c), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, completion)
}

type ProjectIDRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
}

// FinalizeProject 提交审核，之后不能再修改
// POST /api/v1/projects/finalize
func (h *Handler) FinalizeProject(c *gin.Context) {
	var req ProjectIDRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.projects.FinalizeProject(c.Request.Context(), actor(c), req.ProjectID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, p)
}

// GetProjectStatus 项目进度
// GET /api/v1/projects/status?project_id=xxx
func (h *Handler) GetProjectStatus(c *gin.Context) {
	projectID := c.Query("project_id")
	if projectID == "" {
		response.ParamError(c, "project_id 参数不能为空")
		return
	}
	st, err := h.projects.GetProjectStatus(c.Request.Context(), actor(c), projectID, targetEmployee(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, st)
}

// ListProjectHistory 分配给本人的项目
// GET /api/v1/projects/history
func (h *Handler) ListProjectHistory(c *gin.Context) {
	list, err := h.projects.ListProjectHistory(c.Request.Context(), actor(c), targetEmployee(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, list)
}
