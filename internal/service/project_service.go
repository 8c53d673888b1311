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

type ProjectService struct {
	store  repository.Store
	cfg    *config.Config
	ledger *WalletLedger
	log    zerolog.Logger
	now    func() time.Time
}

func NewProjectService(store repository.Store, cfg *config.Config, ledger *WalletLedger, log zerolog.Logger) *ProjectService {
	return &ProjectService{
		store:  store,
		cfg:    cfg,
		ledger: ledger,
		log:    log.With().Str("component", "project").Logger(),
		now:    time.Now,
	}
}

func (s *ProjectService) defaultDuration() time.Duration {
	return time.Duration(s.cfg.Business.DefaultProjectHours) * time.Hour
}

func (s *ProjectService) projectEvent(ctx context.Context, uow repository.UnitOfWork, p *model.Project, eventType string) error {
	return writeEvent(ctx, uow, s.cfg.Kafka.Topic.Project, model.NewProjectEvent(eventType, p, s.now()))
}

// lockProject 事务内锁定项目行
func lockProject(ctx context.Context, uow repository.UnitOfWork, projectID string) (*model.Project, error) {
	p, err := uow.Projects().GetByIDForUpdate(ctx, projectID)
	if err != nil {
		return nil, notFoundAs(err, apperr.ErrProjectNotFound)
	}
	return p, nil
}

// CreateProject 创建批次，条目按传入顺序编号 1..n
func (s *ProjectService) CreateProject(ctx context.Context, actor auth.AuthContext, itemRefs []string) (*model.Project, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if len(itemRefs) == 0 {
		return nil, apperr.ErrInvalidArgument.WithMessage("项目至少需要一个条目")
	}

	p := &model.Project{
		ID:                  idgen.GenerateBatchID(),
		SalaryPerCompletion: decimal.Zero,
		SecurityAmount:      decimal.Zero,
		PayoutAmount:        decimal.Zero,
		Status:              model.ProjectStatusUnassigned,
	}
	items := make([]*model.WorkItem, 0, len(itemRefs))
	for i, ref := range itemRefs {
		items = append(items, &model.WorkItem{
			ID:            idgen.NewUUID(),
			ProjectID:     p.ID,
			SequenceIndex: i + 1,
			StorageRef:    strings.TrimSpace(ref),
		})
	}

	if err := s.store.Projects().Create(ctx, p, items); err != nil {
		return nil, translate(fmt.Errorf("创建项目失败: %w", err))
	}

	s.log.Info().Str("project_id", p.ID).Int("items", len(items)).Msg("项目创建成功")
	return p, nil
}

type AssignProjectRequest struct {
	ProjectID           string          `json:"project_id" binding:"required"`
	EmployeeID          string          `json:"employee_id" binding:"required"`
	SalaryPerCompletion decimal.Decimal `json:"salary_per_completion"`
	SecurityAmount      decimal.Decimal `json:"security_amount"`
	DurationHours       int             `json:"duration_hours"`
}

// AssignProject 项目同一时间只能分配给一个员工
func (s *ProjectService) AssignProject(ctx context.Context, actor auth.AuthContext, req *AssignProjectRequest) (*model.Project, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if req.SalaryPerCompletion.IsNegative() || req.SecurityAmount.IsNegative() {
		return nil, apperr.ErrInvalidArgument.WithMessage("单价和保证金不能为负数")
	}
	if req.DurationHours < 0 {
		return nil, apperr.ErrInvalidArgument.WithMessage("项目时长不能为负数")
	}
	duration := time.Duration(req.DurationHours) * time.Hour
	if duration == 0 {
		duration = s.defaultDuration()
	}

	var p *model.Project
	err := runTx(ctx, s.store, func(uow repository.UnitOfWork) error {
		var err error
		p, err = lockProject(ctx, uow, req.ProjectID)
		if err != nil {
			return err
		}
		if p.AssignedTo != nil {
			return apperr.ErrAlreadyAssigned.WithMessage("项目 %s 已分配给 %s", p.ID, *p.AssignedTo)
		}
		if !model.CanProjectTransitionTo(p.Status, model.ProjectStatusInProgress) {
			return apperr.ErrInvalidTransition.WithMessage("项目状态 %s 不能分配", p.Status)
		}

		emp, err := uow.Employees().GetByID(ctx, req.EmployeeID)
		if err != nil {
			return notFoundAs(err, apperr.ErrEmployeeNotFound)
		}
		if emp.IsBanned() {
			return apperr.ErrEmployeeBanned
		}

		now := s.now()
		deadline := now.Add(duration)
		p.AssignedTo = &emp.ID
		p.SalaryPerCompletion = req.SalaryPerCompletion
		p.SecurityAmount = req.SecurityAmount
		p.Deadline = &deadline
		p.AssignedAt = &now
		p.Status = model.ProjectStatusInProgress
		if err := uow.Projects().Save(ctx, p); err != nil {
			return fmt.Errorf("保存项目失败: %w", err)
		}

		if err := writeAudit(ctx, uow, actor.EmployeeID, model.AuditActionProjectAssigned,
			fmt.Sprintf("project=%s employee=%s rate=%s security=%s", p.ID, emp.ID, p.SalaryPerCompletion, p.SecurityAmount)); err != nil {
			return err
		}
		return s.projectEvent(ctx, uow, p, model.EventProjectAssigned)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("project_id", p.ID).Str("employee_id", req.EmployeeID).Time("deadline", *p.Deadline).Msg("项目已分配")
	return p, nil
}

type RecordCompletionRequest struct {
	ProjectID  string `json:"project_id" binding:"required"`
	WorkItemID string `json:"image_id" binding:"required"`
	Payload    string `json:"payload"`
}

// RecordCompletion 提交条目，同一员工同一条目重复提交覆盖内容
//
// 在项目行锁内检查 is_finalized，与并发的 Finalize 和截止扫描互斥。
func (s *ProjectService) RecordCompletion(ctx context.Context, actor auth.AuthContext, req *RecordCompletionRequest) (*model.Completion, error) {
	var c *model.Completion
	err := runTx(ctx, s.store, func(uow repository.UnitOfWork) error {
		p, err := lockProject(ctx, uow, req.ProjectID)
		if err != nil {
			return err
		}
		if !p.IsAssignedTo(actor.EmployeeID) {
			return apperr.ErrUnauthorized.WithMessage("项目未分配给当前员工")
		}
		if p.IsFinalized {
			return apperr.ErrBatchLocked
		}

		item, err := uow.Projects().GetItem(ctx, req.WorkItemID)
		if err != nil {
			return notFoundAs(err, apperr.ErrWorkItemNotFound)
		}
		if item.ProjectID != p.ID {
			return apperr.ErrWorkItemNotFound.WithMessage("条目 %s 不属于项目 %s", item.ID, p.ID)
		}

		err = uow.Projects().UpsertCompletion(ctx, &model.Completion{
			ID:          idgen.NewUUID(),
			EmployeeID:  actor.EmployeeID,
			WorkItemID:  item.ID,
			ProjectID:   p.ID,
			Payload:     req.Payload,
			Status:      model.CompletionStatusSubmitted,
			SubmittedAt: s.now(),
		})
		if err != nil {
			return fmt.Errorf("保存提交失败: %w", err)
		}
		// 重复提交保留原记录的 ID，以库中的记录为准
		if c, err = uow.Projects().GetCompletion(ctx, actor.EmployeeID, item.ID); err != nil {
			return fmt.Errorf("读取提交失败: %w", err)
		}

		// 被驳回的项目收到新提交后回到进行中
		if p.Status == model.ProjectStatusRejected {
			p.Status = model.ProjectStatusInProgress
			if err := uow.Projects().Save(ctx, p); err != nil {
				return fmt.Errorf("保存项目失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Allocation 下一个待处理条目
type Allocation struct {
	ProjectID      string          `json:"project_id"`
	Item           *model.WorkItem `json:"item,omitempty"`
	IsReview       bool            `json:"is_review"`
	Completed      bool            `json:"completed"`
	IsFinalized    bool            `json:"is_finalized"`
	TotalItems     int64           `json:"total_items"`
	CompletedCount int64           `json:"completed_count"`
	Payload        string          `json:"payload,omitempty"`
}

// AllocateNextItem 按序号返回该员工未提交的第一个条目，不加锁
//
// sequence 大于 0 时直接查看指定条目，已提交审核的项目也允许只读查看。
// 全部提交后返回第一个条目并标记 IsReview；项目没有任何条目时返回 Completed。
func (s *ProjectService) AllocateNextItem(ctx context.Context, actor auth.AuthContext, projectID string, sequence int) (*Allocation, error) {
	p, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, notFoundAs(err, apperr.ErrProjectNotFound)
	}
	employeeID := actor.EmployeeID
	if actor.IsAdmin() && p.AssignedTo != nil {
		employeeID = *p.AssignedTo
	}
	if !p.IsAssignedTo(employeeID) {
		return nil, apperr.ErrUnauthorized.WithMessage("项目未分配给当前员工")
	}

	total, err := s.store.Projects().CountItems(ctx, p.ID)
	if err != nil {
		return nil, translate(err)
	}
	done, err := s.store.Projects().CountCompletions(ctx, p.ID, employeeID)
	if err != nil {
		return nil, translate(err)
	}
	alloc := &Allocation{ProjectID: p.ID, IsFinalized: p.IsFinalized, TotalItems: total, CompletedCount: done}

	if sequence > 0 {
		item, err := s.store.Projects().GetItemBySequence(ctx, p.ID, sequence)
		if err != nil {
			return nil, notFoundAs(err, apperr.ErrWorkItemNotFound)
		}
		alloc.Item = item
		alloc.Payload = s.payloadOf(ctx, p.ID, employeeID, item.ID)
		return alloc, nil
	}

	if p.IsFinalized {
		return nil, apperr.ErrBatchLocked
	}

	item, err := s.store.Projects().NextUncompletedItem(ctx, p.ID, employeeID)
	if err == nil {
		alloc.Item = item
		return alloc, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, translate(err)
	}

	if done == 0 {
		alloc.Completed = true
		return alloc, nil
	}
	first, err := s.store.Projects().GetItemBySequence(ctx, p.ID, 1)
	if err != nil {
		items, listErr := s.store.Projects().ListItems(ctx, p.ID)
		if listErr != nil || len(items) == 0 {
			alloc.Completed = true
			return alloc, nil
		}
		first = items[0]
	}
	alloc.Item = first
	alloc.IsReview = true
	alloc.Payload = s.payloadOf(ctx, p.ID, employeeID, first.ID)
	return alloc, nil
}

func (s *ProjectService) payloadOf(ctx context.Context, projectID, employeeID, itemID string) string {
	completions, err := s.store.Projects().ListCompletions(ctx, projectID)
	if err != nil {
		return ""
	}
	for _, c := range completions {
		if c.EmployeeID == employeeID && c.WorkItemID == itemID {
			return c.Payload
		}
	}
	return ""
}

// FinalizeProject 员工提交审核，已提交时直接返回
func (s *ProjectService) FinalizeProject(ctx context.Context, actor auth.AuthContext, projectID string) (*model.Project, error) {
	var p *model.Project
	changed := false
	err := runTx(ctx, s.store, func(uow repository.UnitOfWork) error {
		var err error
		p, err = lockProject(ctx, uow, projectID)
		if err != nil {
			return err
		}
		if !p.IsAssignedTo(actor.EmployeeID) {
			return apperr.ErrUnauthorized.WithMessage("只有项目负责人可以提交审核")
		}
		if p.IsFinalized {
			return nil
		}
		if !model.CanProjectTransitionTo(p.Status, model.ProjectStatusFinalizedPendingReview) {
			return apperr.ErrInvalidTransition.WithMessage("项目状态 %s 不能提交审核", p.Status)
		}

		now := s.now()
		p.IsFinalized = true
		p.Status = model.ProjectStatusFinalizedPendingReview
		p.FinalizedAt = &now
		if err := uow.Projects().Save(ctx, p); err != nil {
			return fmt.Errorf("保存项目失败: %w", err)
		}
		changed = true
		return s.projectEvent(ctx, uow, p, model.EventProjectFinalized)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.log.Info().Str("project_id", p.ID).Str("employee_id", actor.EmployeeID).Msg("项目已提交审核")
	}
	return p, nil
}

type ApproveProjectResult struct {
	Project         *model.Project  `json:"project"`
	CompletedCount  int64           `json:"completed_count"`
	PayoutAmount    decimal.Decimal `json:"payout_amount"`
	AlreadyApproved bool            `json:"already_approved"`
}

// ApproveProject 审核通过并结算，重复调用不会重复打款
//
// 结算金额按审核时的提交数重新计算。
func (s *ProjectService) ApproveProject(ctx context.Context, actor auth.AuthContext, projectID string) (*ApproveProjectResult, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}

	result := &ApproveProjectResult{}
	err := runTx(ctx, s.store, func(uow repository.UnitOfWork) error {
		p, err := lockProject(ctx, uow, projectID)
		if err != nil {
			return err
		}
		result.Project = p
		if p.IsApproved {
			result.AlreadyApproved = true
			result.PayoutAmount = p.PayoutAmount
			return nil
		}
		if p.AssignedTo == nil {
			return apperr.ErrNotAssigned
		}
		if !model.CanProjectTransitionTo(p.Status, model.ProjectStatusCompleted) {
			return apperr.ErrInvalidTransition.WithMessage("项目状态 %s 不能审核通过", p.Status)
		}

		count, err := uow.Projects().CountCompletions(ctx, p.ID, *p.AssignedTo)
		if err != nil {
			return fmt.Errorf("统计提交数失败: %w", err)
		}
		payout := p.Payout(count)

		now := s.now()
		p.IsApproved = true
		p.Status = model.ProjectStatusCompleted
		p.CompletedAt = &now
		p.PayoutAmount = payout
		if err := uow.Projects().Save(ctx, p); err != nil {
			return fmt.Errorf("保存项目失败: %w", err)
		}

		if payout.IsPositive() {
			_, err = s.ledger.Credit(ctx, uow, Entry{
				EmployeeID:  *p.AssignedTo,
				Amount:      payout,
				Type:        model.TransactionTypeProjectPayout,
				Description: fmt.Sprintf("项目结算 %s: %d x %s + %s", p.ID, count, p.SalaryPerCompletion.StringFixed(2), p.SecurityAmount.StringFixed(2)),
				ProjectID:   &p.ID,
			})
			if err != nil {
				return err
			}
		}

		result.CompletedCount = count
		result.PayoutAmount = payout
		if err := writeAudit(ctx, uow, actor.EmployeeID, model.AuditActionProjectApproved,
			fmt.Sprintf("project=%s payout=%s", p.ID, payout.StringFixed(2))); err != nil {
			return err
		}
		return s.projectEvent(ctx, uow, p, model.EventProjectApproved)
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyApproved {
		s.log.Info().Str("project_id", projectID).Int64("completed", result.CompletedCount).Str("payout", result.PayoutAmount.StringFixed(2)).Msg("项目审核通过")
	}
	return result, nil
}

// RejectProject 驳回返工，保留已有提交，不产生流水
func (s *ProjectService) RejectProject(ctx context.Context, actor auth.AuthContext, projectID, reason string) (*model.Project, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}

	var p *model.Project
	err := runTx(ctx, s.store, func(uow repository.UnitOfWork) error {
		var err error
		p, err = lockProject(ctx, uow, projectID)
		if err != nil {
			return err
		}
		if p.Status != model.ProjectStatusFinalizedPendingReview || p.IsApproved {
			return apperr.ErrInvalidTransition.WithMessage("项目状态 %s 不能驳回", p.Status)
		}

		now := s.now()
		p.Status = model.ProjectStatusRejected
		p.IsFinalized = false
		p.IsApproved = false
		p.AdminFeedback = reason
		p.FinalizedAt = nil
		// 截止时间已过时顺延，否则下一次扫描会立即重新锁定
		if p.Deadline != nil && !p.Deadline.After(now) {
			deadline := now.Add(s.defaultDuration())
			p.Deadline = &deadline
		}
		if err := uow.Projects().Save(ctx, p); err != nil {
			return fmt.Errorf("保存项目失败: %w", err)
		}

		if err := writeAudit(ctx, uow, actor.EmployeeID, model.AuditActionProjectRejected,
			fmt.Sprintf("project=%s reason=%s", p.ID, reason)); err != nil {
			return err
		}
		return s.projectEvent(ctx, uow, p, model.EventProjectRejected)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("project_id", p.ID).Str("reason", reason).Msg("项目已驳回")
	return p, nil
}

// ForceFinalizeExpired 截止扫描：锁定所有已过截止时间且未提交的项目
//
// 单个项目失败只记录日志并继续，返回本次实际锁定的数量。
func (s *ProjectService) ForceFinalizeExpired(ctx context.Context, actor auth.AuthContext, now time.Time) (int, error) {
	if !actor.IsSystem() && !actor.IsAdmin() {
		return 0, apperr.ErrUnauthorized
	}

	projects, err := s.store.Projects().ListExpired(ctx, now, s.cfg.Business.DeadlineSweepBatch)
	if err != nil {
		return 0, translate(fmt.Errorf("查询超时项目失败: %w", err))
	}

	finalized := 0
	for _, expired := range projects {
		updated := false
		err := runTx(ctx, s.store, func(uow repository.UnitOfWork) error {
			ok, err := uow.Projects().FinalizeIfOpen(ctx, expired.ID, now)
			if err != nil || !ok {
				return err
			}
			p, err := uow.Projects().GetByID(ctx, expired.ID)
			if err != nil {
				return err
			}
			updated = true
			return s.projectEvent(ctx, uow, p, model.EventProjectFinalized)
		})
		if err != nil {
			s.log.Error().Err(err).Str("project_id", expired.ID).Msg("截止时间强制提交失败")
			continue
		}
		if updated {
			finalized++
		}
	}

	if finalized > 0 {
		s.log.Info().Int("count", finalized).Msg("截止时间已到，项目已强制提交审核")
	}
	return finalized, nil
}

type ReviewItem struct {
	Project        *model.Project  `json:"project"`
	CompletedCount int64           `json:"completed_count"`
	TotalDue       decimal.Decimal `json:"total_due"`
}

func (s *ProjectService) ListPendingReview(ctx context.Context, actor auth.AuthContext) ([]*ReviewItem, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	projects, err := s.store.Projects().ListPendingReview(ctx)
	if err != nil {
		return nil, translate(err)
	}

	out := make([]*ReviewItem, 0, len(projects))
	for _, p := range projects {
		var count int64
		if p.AssignedTo != nil {
			count, err = s.store.Projects().CountCompletions(ctx, p.ID, *p.AssignedTo)
			if err != nil {
				return nil, translate(err)
			}
		}
		out = append(out, &ReviewItem{Project: p, CompletedCount: count, TotalDue: p.Payout(count)})
	}
	return out, nil
}

type Submission struct {
	Item       *model.WorkItem   `json:"item"`
	Completion *model.Completion `json:"completion,omitempty"`
}

// ListSubmissions 按序号列出条目及负责人的提交
func (s *ProjectService) ListSubmissions(ctx context.Context, actor auth.AuthContext, projectID string) ([]*Submission, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	p, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, notFoundAs(err, apperr.ErrProjectNotFound)
	}
	items, err := s.store.Projects().ListItems(ctx, p.ID)
	if err != nil {
		return nil, translate(err)
	}
	completions, err := s.store.Projects().ListCompletions(ctx, p.ID)
	if err != nil {
		return nil, translate(err)
	}

	byItem := make(map[string]*model.Completion, len(completions))
	for _, c := range completions {
		if p.IsAssignedTo(c.EmployeeID) {
			byItem[c.WorkItemID] = c
		}
	}
	out := make([]*Submission, 0, len(items))
	for _, item := range items {
		out = append(out, &Submission{Item: item, Completion: byItem[item.ID]})
	}
	return out, nil
}

type ProjectStatus struct {
	ProjectID      string          `json:"project_id"`
	Status         string          `json:"status"`
	IsFinalized    bool            `json:"is_finalized"`
	IsApproved     bool            `json:"is_approved"`
	Deadline       *time.Time      `json:"deadline"`
	AdminFeedback  string          `json:"admin_feedback,omitempty"`
	TotalItems     int64           `json:"total_items"`
	CompletedCount int64           `json:"completed_count"`
	PayoutAmount   decimal.Decimal `json:"payout_amount"`
	ExpectedPayout decimal.Decimal `json:"expected_payout"`
}

func (s *ProjectService) status(ctx context.Context, p *model.Project, employeeID string) (*ProjectStatus, error) {
	total, err := s.store.Projects().CountItems(ctx, p.ID)
	if err != nil {
		return nil, translate(err)
	}
	done, err := s.store.Projects().CountCompletions(ctx, p.ID, employeeID)
	if err != nil {
		return nil, translate(err)
	}
	return &ProjectStatus{
		ProjectID:      p.ID,
		Status:         p.Status,
		IsFinalized:    p.IsFinalized,
		IsApproved:     p.IsApproved,
		Deadline:       p.Deadline,
		AdminFeedback:  p.AdminFeedback,
		TotalItems:     total,
		CompletedCount: done,
		PayoutAmount:   p.PayoutAmount,
		ExpectedPayout: p.Payout(done),
	}, nil
}

// GetProjectStatus 只读查询
func (s *ProjectService) GetProjectStatus(ctx context.Context, actor auth.AuthContext, projectID, employeeID string) (*ProjectStatus, error) {
	if err := actor.RequireSelf(employeeID); err != nil {
		return nil, err
	}
	p, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, notFoundAs(err, apperr.ErrProjectNotFound)
	}
	return s.status(ctx, p, employeeID)
}

// ListProjectHistory 分配给员工的项目，最近分配的在前
func (s *ProjectService) ListProjectHistory(ctx context.Context, actor auth.AuthContext, employeeID string) ([]*ProjectStatus, error) {
	if err := actor.RequireSelf(employeeID); err != nil {
		return nil, err
	}
	projects, err := s.store.Projects().ListByAssignee(ctx, employeeID)
	if err != nil {
		return nil, translate(err)
	}
	out := make([]*ProjectStatus, 0, len(projects))
	for _, p := range projects {
		st, err := s.status(ctx, p, employeeID)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

const maxProjectListLimit = 200

type ProjectSummary struct {
	ProjectID           string          `json:"project_id"`
	Status              string          `json:"status"`
	IsFinalized         bool            `json:"is_finalized"`
	IsApproved          bool            `json:"is_approved"`
	AssignedTo          *string         `json:"assigned_to"`
	AssigneeUsername    string          `json:"assignee_username,omitempty"`
	ItemCount           int64           `json:"item_count"`
	CompletedCount      int64           `json:"completed_count"`
	SalaryPerCompletion decimal.Decimal `json:"salary_per_completion"`
	PayoutAmount        decimal.Decimal `json:"payout_amount"`
	Deadline            *time.Time      `json:"deadline"`
	CreatedAt           time.Time       `json:"created_at"`
}

// ListProjects 管理员项目列表，status 为空时列出全部，最新创建的在前
//
// 条目数和提交数各用一次分组查询取回，不逐个项目计数。
func (s *ProjectService) ListProjects(ctx context.Context, actor auth.AuthContext, status string, limit int) ([]*ProjectSummary, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if status != "" {
		if _, ok := model.ValidProjectTransitions[status]; !ok && status != model.ProjectStatusCompleted {
			return nil, apperr.ErrInvalidArgument.WithMessage("未知的项目状态 %s", status)
		}
	}
	if limit <= 0 || limit > maxProjectListLimit {
		limit = maxProjectListLimit
	}

	projects, err := s.store.Projects().List(ctx, status, limit)
	if err != nil {
		return nil, translate(err)
	}
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	items, err := s.store.Projects().CountItemsByProject(ctx, ids)
	if err != nil {
		return nil, translate(err)
	}
	done, err := s.store.Projects().CountCompletionsByProject(ctx, ids)
	if err != nil {
		return nil, translate(err)
	}

	usernames := make(map[string]string)
	out := make([]*ProjectSummary, 0, len(projects))
	for _, p := range projects {
		summary := &ProjectSummary{
			ProjectID:           p.ID,
			Status:              p.Status,
			IsFinalized:         p.IsFinalized,
			IsApproved:          p.IsApproved,
			AssignedTo:          p.AssignedTo,
			ItemCount:           items[p.ID],
			CompletedCount:      done[p.ID],
			SalaryPerCompletion: p.SalaryPerCompletion,
			PayoutAmount:        p.PayoutAmount,
			Deadline:            p.Deadline,
			CreatedAt:           p.CreatedAt,
		}
		if p.AssignedTo != nil {
			name, ok := usernames[*p.AssignedTo]
			if !ok {
				emp, err := s.store.Employees().GetByID(ctx, *p.AssignedTo)
				if err != nil && !errors.Is(err, repository.ErrNotFound) {
					return nil, translate(err)
				}
				if emp != nil {
					name = emp.Username
				}
				usernames[*p.AssignedTo] = name
			}
			summary.AssigneeUsername = name
		}
		out = append(out, summary)
	}
	return out, nil
}
