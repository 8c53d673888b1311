package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"payoutledger/internal/apperr"
	"payoutledger/internal/auth"
	"payoutledger/internal/config"
	"payoutledger/internal/model"
	"payoutledger/internal/repository"
	"payoutledger/pkg/idgen"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const referralPrefix = "REF-"

type EmployeeService struct {
	store  repository.Store
	cfg    *config.Config
	ledger *WalletLedger
	seq    *SequenceGenerator
	tokens *auth.TokenManager
	log    zerolog.Logger
	now    func() time.Time
}

func NewEmployeeService(store repository.Store, cfg *config.Config, ledger *WalletLedger, tokens *auth.TokenManager, log zerolog.Logger) *EmployeeService {
	return &EmployeeService{
		store:  store,
		cfg:    cfg,
		ledger: ledger,
		seq:    NewSequenceGenerator(cfg.Business.EmployeeCodeStart),
		tokens: tokens,
		log:    log.With().Str("component", "employee").Logger(),
		now:    time.Now,
	}
}

type CreateEmployeeRequest struct {
	FullName     string `json:"full_name" binding:"required"`
	Gender       string `json:"gender" binding:"required"`
	Password     string `json:"password" binding:"required"`
	Username     string `json:"username"`
	ReferralCode string `json:"referral_code"`
}

type CreateEmployeeResponse struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeCode string `json:"employee_code"`
	Username     string `json:"username"`
}

func validGender(g string) bool {
	return g == "M" || g == "F" || g == "O"
}

// CreateEmployee 工号发放、员工写入、审计在同一个事务内，任何一步失败整体回滚
func (s *EmployeeService) CreateEmployee(ctx context.Context, actor auth.AuthContext, req *CreateEmployeeRequest) (*CreateEmployeeResponse, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	emp, err := s.newEmployee(req, model.RoleEmployee)
	if err != nil {
		return nil, err
	}

	err = runTx(ctx, s.store, func(uow repository.UnitOfWork) error {
		username, err := s.resolveUsername(ctx, uow, req)
		if err != nil {
			return err
		}
		emp.Username = username
		if referrer := s.findReferrer(ctx, uow, req.ReferralCode); referrer != nil {
			emp.ReferredByID = &referrer.ID
		}
		return s.insertEmployee(ctx, uow, actor.EmployeeID, model.AuditActionEmployeeCreated, emp)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("employee_id", emp.ID).Str("code", emp.EmployeeCode).Str("username", emp.Username).Msg("员工创建成功")
	return &CreateEmployeeResponse{EmployeeID: emp.ID, EmployeeCode: emp.EmployeeCode, Username: emp.Username}, nil
}

// EnsureAdmin 用户名不存在时创建管理员，已存在时不做任何修改，返回是否新建
//
// 多个实例同时启动时，用户名唯一约束保证只有一个实例创建成功。
func (s *EmployeeService) EnsureAdmin(ctx context.Context, cfg config.BootstrapAdminConfig) (bool, error) {
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		return false, nil
	}
	req := &CreateEmployeeRequest{
		FullName: cfg.FullName,
		Gender:   cfg.Gender,
		Password: cfg.Password,
		Username: username,
	}
	if strings.TrimSpace(req.FullName) == "" {
		req.FullName = username
	}
	if strings.TrimSpace(req.Gender) == "" {
		req.Gender = "O"
	}
	emp, err := s.newEmployee(req, model.RoleAdmin)
	if err != nil {
		return false, err
	}
	emp.Username = username

	created := false
	err = runTx(ctx, s.store, func(uow repository.UnitOfWork) error {
		exists, err := uow.Employees().UsernameExists(ctx, username)
		if err != nil {
			return translate(err)
		}
		if exists {
			return nil
		}
		if err := s.insertEmployee(ctx, uow, systemActorID, model.AuditActionAdminBootstrapped, emp); err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, apperr.ErrUsernameTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if created {
		s.log.Info().Str("employee_id", emp.ID).Str("code", emp.EmployeeCode).Str("username", username).Msg("管理员账号已创建")
	}
	return created, nil
}

const systemActorID = "system"

// newEmployee 校验输入并生成待写入的员工，用户名和工号在事务内确定
func (s *EmployeeService) newEmployee(req *CreateEmployeeRequest, role string) (*model.Employee, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Gender = strings.ToUpper(strings.TrimSpace(req.Gender))
	if req.FullName == "" {
		return nil, apperr.ErrInvalidArgument.WithMessage("姓名不能为空")
	}
	if !validGender(req.Gender) {
		return nil, apperr.ErrInvalidArgument.WithMessage("性别只能是 M/F/O: %s", req.Gender)
	}
	if req.Password == "" {
		return nil, apperr.ErrInvalidArgument.WithMessage("密码不能为空")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	return &model.Employee{
		ID:            idgen.NewUUID(),
		FullName:      req.FullName,
		Gender:        req.Gender,
		PasswordHash:  hash,
		Role:          role,
		Status:        model.EmployeeStatusActive,
		WalletBalance: decimal.Zero,
		TotalEarned:   decimal.Zero,
	}, nil
}

// insertEmployee 发放工号并写入员工和审计记录，必须在事务内调用
func (s *EmployeeService) insertEmployee(ctx context.Context, uow repository.UnitOfWork, actorID, action string, emp *model.Employee) error {
	n, err := s.seq.Next(ctx, uow, SequenceEmployee)
	if err != nil {
		return err
	}
	emp.EmployeeCode = FormatEmployeeCode(emp.Gender, n)

	if err := uow.Employees().Create(ctx, emp); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apperr.ErrUsernameTaken.Wrap(err)
		}
		return fmt.Errorf("创建员工失败: %w", err)
	}
	return writeAudit(ctx, uow, actorID, action,
		fmt.Sprintf("employee=%s code=%s role=%s", emp.ID, emp.EmployeeCode, emp.Role))
}

func (s *EmployeeService) resolveUsername(ctx context.Context, uow repository.UnitOfWork, req *CreateEmployeeRequest) (string, error) {
	if req.Username != "" {
		exists, err := uow.Employees().UsernameExists(ctx, req.Username)
		if err != nil {
			return "", translate(err)
		}
		if exists {
			return "", apperr.ErrUsernameTaken.WithMessage("用户名已存在: %s", req.Username)
		}
		return req.Username, nil
	}

	base := UsernameFromFullName(req.FullName)
	candidate := base
	for i := 1; ; i++ {
		exists, err := uow.Employees().UsernameExists(ctx, candidate)
		if err != nil {
			return "", translate(err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}

// UsernameFromFullName 小写，空格转为点，只保留字母数字和点
func UsernameFromFullName(fullName string) string {
	lower := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(fullName)), " ", ".")
	var b strings.Builder
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "employee"
	}
	return b.String()
}

// findReferrer 推荐码无效时忽略
func (s *EmployeeService) findReferrer(ctx context.Context, uow repository.UnitOfWork, code string) *model.Employee {
	prefix := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(code), referralPrefix))
	if prefix == "" {
		return nil
	}
	referrer, err := uow.Employees().FindByIDPrefix(ctx, prefix)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn().Err(err).Str("referral_code", code).Msg("查询推荐人失败")
		}
		return nil
	}
	return referrer
}

// ReferralCode 员工的推荐码，取 ID 前 8 位
func ReferralCode(employeeID string) string {
	if len(employeeID) > 8 {
		employeeID = employeeID[:8]
	}
	return referralPrefix + strings.ToUpper(employeeID)
}

type LoginResponse struct {
	Token       string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	EmployeeID  string          `json:"user_id"`
	Username    string          `json:"username"`
	Role        string          `json:"role"`
	BonusAmount decimal.Decimal `json:"bonus"`
	Streak      int             `json:"streak"`
}

func (s *EmployeeService) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	emp, err := s.store.Employees().GetByUsername(ctx, username)
	if err != nil {
		return nil, notFoundAs(err, apperr.ErrInvalidCredentials)
	}
	if emp.IsBanned() {
		return nil, apperr.ErrEmployeeBanned
	}
	if !auth.CheckPassword(emp.PasswordHash, password) {
		return nil, apperr.ErrInvalidCredentials
	}

	result, err := s.ApplyLoginBonus(ctx, emp.ID, s.now())
	if err != nil {
		return nil, err
	}

	role := auth.ParseRole(emp.Role)
	token, err := s.tokens.Issue(emp.ID, emp.Username, role)
	if err != nil {
		return nil, fmt.Errorf("签发令牌失败: %w", err)
	}

	return &LoginResponse{
		Token:       token,
		TokenType:   "bearer",
		EmployeeID:  emp.ID,
		Username:    emp.Username,
		Role:        role.String(),
		BonusAmount: result.Amount,
		Streak:      result.Streak,
	}, nil
}

type LoginBonus struct {
	Streak  int
	Amount  decimal.Decimal
	Message string
}

func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ComputeLoginBonus 连续登录奖励
//
// 首次登录 10；同一天 0；隔天连续 streak+1，第 7 天 100，第 30 天 1000，其余 10；中断后 streak 重置为 1，奖励 10。
func ComputeLoginBonus(lastLogin *time.Time, streak int, today time.Time) LoginBonus {
	ten := decimal.NewFromInt(10)
	if lastLogin == nil {
		return LoginBonus{Streak: 1, Amount: ten, Message: "首次登录 +10"}
	}

	loc := today.Location()
	days := int(calendarDay(today, loc).Sub(calendarDay(*lastLogin, loc)).Hours() / 24)
	switch {
	case days <= 0:
		return LoginBonus{Streak: streak, Amount: decimal.Zero}
	case days == 1:
		streak++
		switch streak {
		case 7:
			return LoginBonus{Streak: streak, Amount: decimal.NewFromInt(100), Message: "连续登录 7 天 +100"}
		case 30:
			return LoginBonus{Streak: streak, Amount: decimal.NewFromInt(1000), Message: "连续登录 30 天 +1000"}
		default:
			return LoginBonus{Streak: streak, Amount: ten, Message: fmt.Sprintf("连续登录 %d 天 +10", streak)}
		}
	default:
		return LoginBonus{Streak: 1, Amount: ten, Message: "连续登录中断 +10"}
	}
}

// ApplyLoginBonus 在员工行锁内计算并发放登录奖励，同一天重复调用不会重复发放
func (s *EmployeeService) ApplyLoginBonus(ctx context.Context, employeeID string, today time.Time) (LoginBonus, error) {
	var result LoginBonus
	err := runTx(ctx, s.store, func(uow repository.UnitOfWork) error {
		emp, err := uow.Employees().GetByIDForUpdate(ctx, employeeID)
		if err != nil {
			return notFoundAs(err, apperr.ErrEmployeeNotFound)
		}

		result = ComputeLoginBonus(emp.LastLogin, emp.LoginStreak, today)
		if err := uow.Employees().UpdateLogin(ctx, emp.ID, result.Streak, today); err != nil {
			return fmt.Errorf("更新登录信息失败: %w", err)
		}
		if !result.Amount.IsPositive() {
			return nil
		}
		_, err = s.ledger.Credit(ctx, uow, Entry{
			EmployeeID:  emp.ID,
			Amount:      result.Amount,
			Type:        model.TransactionTypeLoginBonus,
			Description: result.Message,
		})
		return err
	})
	if err != nil {
		return LoginBonus{}, err
	}

	if result.Amount.IsPositive() {
		s.log.Info().Str("employee_id", employeeID).Int("streak", result.Streak).Str("bonus", result.Amount.String()).Msg("发放登录奖励")
	}
	return result, nil
}

type BankDetailsRequest struct {
	HolderName    string `json:"holder_name" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
	IFSCCode      string `json:"ifsc_code" binding:"required"`
	BankName      string `json:"bank_name" binding:"required"`
}

func (s *EmployeeService) UpdateBankDetails(ctx context.Context, actor auth.AuthContext, employeeID string, req *BankDetailsRequest) error {
	if err := actor.RequireSelf(employeeID); err != nil {
		return err
	}
	if strings.TrimSpace(req.AccountNumber) == "" || strings.TrimSpace(req.HolderName) == "" {
		return apperr.ErrInvalidArgument.WithMessage("银行账户信息不完整")
	}
	err := s.store.Employees().UpdateBankDetails(ctx, employeeID, repository.BankDetails{
		HolderName:    strings.TrimSpace(req.HolderName),
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		IFSCCode:      strings.ToUpper(strings.TrimSpace(req.IFSCCode)),
		BankName:      strings.TrimSpace(req.BankName),
	})
	if err != nil {
		return notFoundAs(err, apperr.ErrEmployeeNotFound)
	}
	return nil
}

func (s *EmployeeService) SetEmployeeStatus(ctx context.Context, actor auth.AuthContext, employeeID, status string) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	if status != model.EmployeeStatusActive && status != model.EmployeeStatusBanned {
		return apperr.ErrInvalidArgument.WithMessage("不支持的员工状态: %s", status)
	}

	err := runTx(ctx, s.store, func(uow repository.UnitOfWork) error {
		if _, err := uow.Employees().GetByIDForUpdate(ctx, employeeID); err != nil {
			return notFoundAs(err, apperr.ErrEmployeeNotFound)
		}
		if err := uow.Employees().UpdateStatus(ctx, employeeID, status); err != nil {
			return fmt.Errorf("更新员工状态失败: %w", err)
		}
		return writeAudit(ctx, uow, actor.EmployeeID, model.AuditActionEmployeeStatus,
			fmt.Sprintf("employee=%s status=%s", employeeID, status))
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("employee_id", employeeID).Str("status", status).Msg("员工状态已更新")
	return nil
}

// GetReferralCode 员工本人或管理员可查
func (s *EmployeeService) GetReferralCode(ctx context.Context, actor auth.AuthContext, employeeID string) (string, error) {
	if err := actor.RequireSelf(employeeID); err != nil {
		return "", err
	}
	if _, err := s.store.Employees().GetByID(ctx, employeeID); err != nil {
		return "", notFoundAs(err, apperr.ErrEmployeeNotFound)
	}
	return ReferralCode(employeeID), nil
}

type EmployeeSummary struct {
	EmployeeID     string          `json:"employee_id"`
	EmployeeCode   string          `json:"employee_code"`
	Username       string          `json:"username"`
	FullName       string          `json:"full_name"`
	Status         string          `json:"status"`
	WalletBalance  decimal.Decimal `json:"wallet_balance"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	LoginStreak    int             `json:"login_streak"`
	HasBankDetails bool            `json:"has_bank_details"`
	LastLogin      *time.Time      `json:"last_login"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ListEmployees 管理员查看全部员工（不含管理员账号），按注册顺序
func (s *EmployeeService) ListEmployees(ctx context.Context, actor auth.AuthContext) ([]*EmployeeSummary, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	list, err := s.store.Employees().ListByRole(ctx, model.RoleEmployee)
	if err != nil {
		return nil, translate(err)
	}
	out := make([]*EmployeeSummary, 0, len(list))
	for _, e := range list {
		out = append(out, &EmployeeSummary{
			EmployeeID:     e.ID,
			EmployeeCode:   e.EmployeeCode,
			Username:       e.Username,
			FullName:       e.FullName,
			Status:         e.Status,
			WalletBalance:  e.WalletBalance,
			TotalEarned:    e.TotalEarned,
			LoginStreak:    e.LoginStreak,
			HasBankDetails: e.HasBankDetails(),
			LastLogin:      e.LastLogin,
			CreatedAt:      e.CreatedAt,
		})
	}
	return out, nil
}
