package repository

import (
	"context"
	"time"

	"payoutledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProjectRepo struct {
	db *gorm.DB
}

func NewProjectRepo(db *gorm.DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

func (r *ProjectRepo) Create(ctx context.Context, p *model.Project, items []*model.WorkItem) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(p).Error; err != nil {
		return wrap("project.Create", err)
	}
	if len(items) == 0 {
		return nil
	}
	return wrap("project.CreateItems", db.CreateInBatches(items, 200).Error)
}

func (r *ProjectRepo) GetByID(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, wrap("project.GetByID", err)
	}
	return &p, nil
}

func (r *ProjectRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, wrap("project.GetByIDForUpdate", err)
	}
	return &p, nil
}

func (r *ProjectRepo) Save(ctx context.Context, p *model.Project) error {
	return wrap("project.Save", r.db.WithContext(ctx).Save(p).Error)
}

func (r *ProjectRepo) FinalizeIfOpen(ctx context.Context, id string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("id = ? AND is_finalized = ?", id, false).
		Updates(map[string]interface{}{
			"is_finalized": true,
			"status":       model.ProjectStatusFinalizedPendingReview,
			"finalized_at": at,
		})
	if result.Error != nil {
		return false, wrap("project.FinalizeIfOpen", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *ProjectRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Project, error) {
	var projects []*model.Project
	err := r.db.WithContext(ctx).
		Where("is_finalized = ? AND deadline IS NOT NULL AND deadline < ?", false, now).
		Order("deadline ASC").
		Limit(limit).
		Find(&projects).Error
	return projects, wrap("project.ListExpired", err)
}

func (r *ProjectRepo) ListPendingReview(ctx context.Context) ([]*model.Project, error) {
	var projects []*model.Project
	err := r.db.WithContext(ctx).
		Where("is_finalized = ? AND is_approved = ? AND status <> ?", true, false, model.ProjectStatusRejected).
		Order("finalized_at ASC").
		Find(&projects).Error
	return projects, wrap("project.ListPendingReview", err)
}

func (r *ProjectRepo) ListByAssignee(ctx context.Context, employeeID string) ([]*model.Project, error) {
	var projects []*model.Project
	err := r.db.WithContext(ctx).
		Where("assigned_to = ?", employeeID).
		Order("assigned_at DESC").
		Find(&projects).Error
	return projects, wrap("project.ListByAssignee", err)
}

func (r *ProjectRepo) List(ctx context.Context, status string, limit int) ([]*model.Project, error) {
	var projects []*model.Project
	db := r.db.WithContext(ctx)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Order("created_at DESC").Find(&projects).Error
	return projects, wrap("project.List", err)
}

type projectCount struct {
	ProjectID string
	Total     int64
}

// countByProject 按 project_id 分组计数，没有记录的项目不出现在结果中
func (r *ProjectRepo) countByProject(ctx context.Context, op string, m interface{}, projectIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(projectIDs))
	if len(projectIDs) == 0 {
		return counts, nil
	}
	var rows []projectCount
	err := r.db.WithContext(ctx).
		Model(m).
		Select("project_id, COUNT(*) AS total").
		Where("project_id IN ?", projectIDs).
		Group("project_id").
		Scan(&rows).Error
	if err != nil {
		return nil, wrap(op, err)
	}
	for _, row := range rows {
		counts[row.ProjectID] = row.Total
	}
	return counts, nil
}

func (r *ProjectRepo) CountItemsByProject(ctx context.Context, projectIDs []string) (map[string]int64, error) {
	return r.countByProject(ctx, "project.CountItemsByProject", &model.WorkItem{}, projectIDs)
}

func (r *ProjectRepo) CountCompletionsByProject(ctx context.Context, projectIDs []string) (map[string]int64, error) {
	return r.countByProject(ctx, "project.CountCompletionsByProject", &model.Completion{}, projectIDs)
}

func (r *ProjectRepo) ListItems(ctx context.Context, projectID string) ([]*model.WorkItem, error) {
	var items []*model.WorkItem
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("sequence_index ASC").
		Find(&items).Error
	return items, wrap("project.ListItems", err)
}

func (r *ProjectRepo) GetItem(ctx context.Context, itemID string) (*model.WorkItem, error) {
	var item model.WorkItem
	if err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error; err != nil {
		return nil, wrap("project.GetItem", err)
	}
	return &item, nil
}

func (r *ProjectRepo) GetItemBySequence(ctx context.Context, projectID string, sequence int) (*model.WorkItem, error) {
	var item model.WorkItem
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND sequence_index = ?", projectID, sequence).
		First(&item).Error
	if err != nil {
		return nil, wrap("project.GetItemBySequence", err)
	}
	return &item, nil
}

func (r *ProjectRepo) NextUncompletedItem(ctx context.Context, projectID, employeeID string) (*model.WorkItem, error) {
	var item model.WorkItem
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Where("NOT EXISTS (SELECT 1 FROM completion c WHERE c.work_item_id = work_item.id AND c.employee_id = ?)", employeeID).
		Order("sequence_index ASC").
		First(&item).Error
	if err != nil {
		return nil, wrap("project.NextUncompletedItem", err)
	}
	return &item, nil
}

func (r *ProjectRepo) CountItems(ctx context.Context, projectID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.WorkItem{}).Where("project_id = ?", projectID).Count(&count).Error
	return count, wrap("project.CountItems", err)
}

// UpsertCompletion (employee_id, work_item_id) 冲突时覆盖提交内容
func (r *ProjectRepo) UpsertCompletion(ctx context.Context, c *model.Completion) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "employee_id"}, {Name: "work_item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "status", "submitted_at"}),
		}).
		Create(c).Error
	return wrap("project.UpsertCompletion", err)
}

func (r *ProjectRepo) GetCompletion(ctx context.Context, employeeID, workItemID string) (*model.Completion, error) {
	var c model.Completion
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND work_item_id = ?", employeeID, workItemID).
		First(&c).Error
	if err != nil {
		return nil, wrap("project.GetCompletion", err)
	}
	return &c, nil
}

func (r *ProjectRepo) CountCompletions(ctx context.Context, projectID, employeeID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Completion{}).
		Where("project_id = ? AND employee_id = ?", projectID, employeeID).
		Count(&count).Error
	return count, wrap("project.CountCompletions", err)
}

func (r *ProjectRepo) ListCompletions(ctx context.Context, projectID string) ([]*model.Completion, error) {
	var completions []*model.Completion
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("submitted_at ASC").
		Find(&completions).Error
	return completions, wrap("project.ListCompletions", err)
}
