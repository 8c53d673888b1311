package handler

import (
	"payoutledger/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, tokens *auth.TokenManager, log zerolog.Logger) *gin.Engine {
	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))

	api := r.Group("/api/v1")
	api.POST("/auth/login", h.Login)

	authed := api.Group("", AuthMiddleware(tokens))
	{
		wallet := authed.Group("/wallet")
		{
			wallet.GET("/balance", h.GetBalance)
			wallet.GET("/history", h.GetLedgerHistory)
			wallet.GET("/verify", h.VerifyLedger)
		}

		profile := authed.Group("/profile")
		{
			profile.PUT("/bank", h.UpdateBankDetails)
			profile.GET("/referral", h.GetReferralCode)
			profile.GET("/analytics", h.PersonalAnalytics)
		}

		withdrawals := authed.Group("/withdrawals")
		{
			withdrawals.POST("", h.RequestWithdrawal)
			withdrawals.GET("", h.ListWithdrawals)
			withdrawals.GET("/tax-report", h.TaxReport)
		}

		projects := authed.Group("/projects")
		{
			projects.POST("/next", h.NextItem)
			projects.POST("/submit", h.SubmitItem)
			projects.POST("/finalize", h.FinalizeProject)
			projects.GET("/status", h.GetProjectStatus)
			projects.GET("/history", h.ListProjectHistory)
		}

		authed.GET("/leaderboard", h.Leaderboard)

		admin := authed.Group("/admin", AdminOnly())
		{
			admin.POST("/employees", h.CreateEmployee)
			admin.GET("/employees", h.ListEmployees)
			admin.POST("/employees/status", h.SetEmployeeStatus)

			admin.POST("/projects", h.CreateProject)
			admin.GET("/projects", h.ListProjects)
			admin.POST("/projects/assign", h.AssignProject)
			admin.POST("/projects/approve", h.ApproveProject)
			admin.POST("/projects/reject", h.RejectProject)
			admin.GET("/projects/review", h.ListPendingReview)
			admin.GET("/projects/submissions", h.ListSubmissions)

			admin.GET("/withdrawals/pending", h.ListPendingWithdrawals)
			admin.POST("/withdrawals/approve", h.ApproveWithdrawal)
			admin.POST("/withdrawals/decline", h.DeclineWithdrawal)

			admin.GET("/stats", h.AdminStats)
			admin.GET("/audit", h.ListAuditLog)
			admin.GET("/audit/verify", h.VerifyAuditChain)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
