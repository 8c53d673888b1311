package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payoutledger/internal/auth"
	"payoutledger/internal/config"
	"payoutledger/internal/repository/memory"
	"payoutledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"error"`
	Retryable bool            `json:"retryable"`
	Data      json.RawMessage `json:"data"`
}

type server struct {
	t          *testing.T
	engine     *gin.Engine
	tokens     *auth.TokenManager
	adminToken string
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Kafka: config.KafkaConfig{Topic: config.KafkaTopicConfig{Ledger: "ledger", Project: "project", Withdrawal: "withdrawal"}},
		Business: config.BusinessConfig{
			WithdrawalMin:         decimal.NewFromInt(100),
			WithdrawalMax:         decimal.NewFromInt(50000),
			TDSRate:               decimal.RequireFromString("0.10"),
			MaxPendingWithdrawals: 3,
			DeadlineSweepBatch:    100,
			DefaultProjectHours:   48,
			EmployeeCodeStart:     8851,
			LedgerHistoryLimit:    100,
		},
	}
	log := zerolog.Nop()
	store := memory.New()
	tokens := auth.NewTokenManager("handler-secret", time.Hour)
	ledger := service.NewWalletLedger(cfg, log)

	employees := service.NewEmployeeService(store, cfg, ledger, tokens, log)
	created, err := employees.EnsureAdmin(context.Background(), config.BootstrapAdminConfig{Username: "root", Password: "root-pass"})
	require.NoError(t, err)
	require.True(t, created)

	h := NewHandler(Services{
		Employees:   employees,
		Projects:    service.NewProjectService(store, cfg, ledger, log),
		Withdrawals: service.NewWithdrawalService(store, cfg, ledger, nil, log),
		Queries:     service.NewQueryService(store, cfg, log),
	}, log)

	s := &server{t: t, engine: SetupRouter(h, tokens, log), tokens: tokens}
	var login service.LoginResponse
	s.ok(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "root", "password": "root-pass"}, &login)
	s.adminToken = login.Token
	return s
}

func (s *server) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (s *server) ok(method, path, token string, body, out interface{}) {
	s.t.Helper()
	status, env := s.do(method, path, token, body)
	require.Equal(s.t, http.StatusOK, status, "%s %s: %s %s", method, path, env.ErrorCode, env.Message)
	if out != nil {
		require.NoError(s.t, json.Unmarshal(env.Data, out))
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t)

	status, env := s.do(http.MethodGet, "/api/v1/wallet/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", env.ErrorCode)

	status, _ = s.do(http.MethodGet, "/api/v1/wallet/balance", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	employeeToken, err := s.tokens.Issue("e1", "e1", auth.RoleEmployee)
	require.NoError(t, err)
	status, env = s.do(http.MethodGet, "/api/v1/admin/stats", employeeToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "UNAUTHORIZED", env.ErrorCode)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newServer(t)

	status, env := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "ghost", "password": "x"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "INVALID_CREDENTIALS", env.ErrorCode)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "ghost"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPayoutAndWithdrawalFlow(t *testing.T) {
	s := newServer(t)

	var created service.CreateEmployeeResponse
	s.ok(http.MethodPost, "/api/v1/admin/employees", s.adminToken, map[string]string{
		"full_name": "Asha Rao",
		"gender":    "F",
		"password":  "s3cret-pass",
	}, &created)
	assert.Equal(t, "PPX-CF-0008853", created.EmployeeCode)
	assert.Equal(t, "asha.rao", created.Username)

	var login service.LoginResponse
	s.ok(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "asha.rao", "password": "s3cret-pass"}, &login)
	require.NotEmpty(t, login.Token)
	assert.True(t, login.BonusAmount.Equal(decimal.NewFromInt(10)))
	token := login.Token

	var project struct {
		ID string `json:"id"`
	}
	s.ok(http.MethodPost, "/api/v1/admin/projects", s.adminToken, map[string]interface{}{
		"item_refs": []string{"img-1.png", "img-2.png"},
	}, &project)
	s.ok(http.MethodPost, "/api/v1/admin/projects/assign", s.adminToken, map[string]interface{}{
		"project_id":            project.ID,
		"employee_id":           created.EmployeeID,
		"salary_per_completion": "50",
		"security_amount":       "50",
	}, nil)

	for i := 0; i < 2; i++ {
		var alloc service.Allocation
		s.ok(http.MethodPost, "/api/v1/projects/next", token, map[string]interface{}{"project_id": project.ID}, &alloc)
		require.NotNil(t, alloc.Item)
		s.ok(http.MethodPost, "/api/v1/projects/submit", token, map[string]string{
			"project_id": project.ID,
			"image_id":   alloc.Item.ID,
			"payload":    `{"label":"cat"}`,
		}, nil)
	}
	s.ok(http.MethodPost, "/api/v1/projects/finalize", token, map[string]string{"project_id": project.ID}, nil)

	status, env := s.do(http.MethodPost, "/api/v1/projects/submit", token, map[string]string{"project_id": project.ID, "image_id": "x"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "BATCH_LOCKED", env.ErrorCode)

	var approved service.ApproveProjectResult
	s.ok(http.MethodPost, "/api/v1/admin/projects/approve", s.adminToken, map[string]string{"project_id": project.ID}, &approved)
	assert.True(t, approved.PayoutAmount.Equal(decimal.NewFromInt(150)))

	var balance service.Balance
	s.ok(http.MethodGet, "/api/v1/wallet/balance", token, nil, &balance)
	assert.True(t, balance.WalletBalance.Equal(decimal.NewFromInt(160)))
	assert.True(t, balance.TotalEarned.Equal(decimal.NewFromInt(150)))

	status, env = s.do(http.MethodPost, "/api/v1/withdrawals", token, map[string]string{"amount": "100"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "NO_BANK_DETAILS", env.ErrorCode)

	s.ok(http.MethodPut, "/api/v1/profile/bank", token, map[string]string{
		"holder_name":    "Asha Rao",
		"account_number": "000111222333",
		"ifsc_code":      "hdfc0001234",
		"bank_name":      "HDFC",
	}, nil)

	status, env = s.do(http.MethodPost, "/api/v1/withdrawals", token, map[string]string{"amount": "50"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BELOW_MINIMUM", env.ErrorCode)

	var result service.WithdrawalResult
	s.ok(http.MethodPost, "/api/v1/withdrawals", token, map[string]string{"amount": "100"}, &result)
	assert.True(t, result.NewBalance.Equal(decimal.NewFromInt(60)))
	assert.True(t, result.Withdrawal.NetAmount.Equal(decimal.NewFromInt(90)))

	status, env = s.do(http.MethodPost, "/api/v1/withdrawals", token, map[string]string{"amount": "100"})
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "INSUFFICIENT_FUNDS", env.ErrorCode)

	s.ok(http.MethodPost, "/api/v1/admin/withdrawals/decline", s.adminToken, map[string]string{
		"withdrawal_id": result.Withdrawal.ID,
		"reason":        "account mismatch",
	}, nil)
	s.ok(http.MethodGet, "/api/v1/wallet/balance", token, nil, &balance)
	assert.True(t, balance.WalletBalance.Equal(decimal.NewFromInt(160)))

	var verify service.LedgerVerification
	s.ok(http.MethodGet, "/api/v1/wallet/verify", token, nil, &verify)
	assert.True(t, verify.Consistent)

	var history []json.RawMessage
	s.ok(http.MethodGet, "/api/v1/wallet/history?limit=2", token, nil, &history)
	assert.Len(t, history, 2)

	status, _ = s.do(http.MethodGet, "/api/v1/wallet/history?limit=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestBootstrappedAdminCanOnboard(t *testing.T) {
	s := newServer(t)

	var created service.CreateEmployeeResponse
	s.ok(http.MethodPost, "/api/v1/admin/employees", s.adminToken, map[string]string{
		"full_name": "Ravi Kumar",
		"gender":    "M",
		"password":  "ravi-pass",
	}, &created)

	var employees []service.EmployeeSummary
	s.ok(http.MethodGet, "/api/v1/admin/employees", s.adminToken, nil, &employees)
	require.Len(t, employees, 1)
	assert.Equal(t, created.EmployeeID, employees[0].EmployeeID)
	assert.Equal(t, "ravi.kumar", employees[0].Username)
	assert.False(t, employees[0].HasBankDetails)

	var project struct {
		ID string `json:"id"`
	}
	s.ok(http.MethodPost, "/api/v1/admin/projects", s.adminToken, map[string]interface{}{
		"item_refs": []string{"a.png", "b.png", "c.png"},
	}, &project)
	s.ok(http.MethodPost, "/api/v1/admin/projects/assign", s.adminToken, map[string]interface{}{
		"project_id":            project.ID,
		"employee_id":           created.EmployeeID,
		"salary_per_completion": "5",
	}, nil)

	var projects []service.ProjectSummary
	s.ok(http.MethodGet, "/api/v1/admin/projects?status=IN_PROGRESS", s.adminToken, nil, &projects)
	require.Len(t, projects, 1)
	assert.Equal(t, project.ID, projects[0].ProjectID)
	assert.Equal(t, int64(3), projects[0].ItemCount)
	assert.Equal(t, "ravi.kumar", projects[0].AssigneeUsername)

	status, env := s.do(http.MethodGet, "/api/v1/admin/projects?status=BOGUS", s.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ARGUMENT", env.ErrorCode)

	var chain service.AuditChainVerification
	s.ok(http.MethodGet, "/api/v1/admin/audit/verify", s.adminToken, nil, &chain)
	assert.True(t, chain.Valid)
	assert.Equal(t, 3, chain.Entries)

	var login service.LoginResponse
	s.ok(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "ravi.kumar", "password": "ravi-pass"}, &login)

	var analytics service.PersonalAnalytics
	s.ok(http.MethodGet, "/api/v1/profile/analytics", login.Token, nil, &analytics)
	assert.Equal(t, created.EmployeeID, analytics.EmployeeID)
	assert.Len(t, analytics.DailyEarnings, 7)
	assert.True(t, analytics.Earnings30d.Equal(decimal.NewFromInt(10)), analytics.Earnings30d.String())

	status, _ = s.do(http.MethodGet, "/api/v1/admin/employees", login.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
}
