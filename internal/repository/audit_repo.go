package repository

import (
	"context"
	"errors"
	"time"

	"payoutledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AuditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Append(ctx context.Context, entry *model.AuditLog) error {
	db := r.db.WithContext(ctx)

	var last model.AuditLog
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Order("id DESC").First(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return wrap("audit.Append", err)
	}

	SealAudit(last.BlockHash, entry, time.Now())
	return wrap("audit.Append", db.Create(entry).Error)
}

func (r *AuditRepo) ListAfter(ctx context.Context, afterID int64, limit int) ([]*model.AuditLog, error) {
	var logs []*model.AuditLog
	db := r.db.WithContext(ctx).Where("id > ?", afterID)
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Order("id ASC").Find(&logs).Error
	return logs, wrap("audit.ListAfter", err)
}

func (r *AuditRepo) List(ctx context.Context, limit int) ([]*model.AuditLog, error) {
	var logs []*model.AuditLog
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, wrap("audit.List", err)
}
