package repository

import (
	"context"

	"payoutledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SequenceRepo struct {
	db *gorm.DB
}

func NewSequenceRepo(db *gorm.DB) *SequenceRepo {
	return &SequenceRepo{db: db}
}

func (r *SequenceRepo) GetForUpdate(ctx context.Context, category string) (*model.SequenceCounter, error) {
	var c model.SequenceCounter
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("category = ?", category).
		First(&c).Error
	if err != nil {
		return nil, wrap("sequence.GetForUpdate", err)
	}
	return &c, nil
}

func (r *SequenceRepo) Create(ctx context.Context, c *model.SequenceCounter) error {
	return wrap("sequence.Create", r.db.WithContext(ctx).Create(c).Error)
}

func (r *SequenceRepo) Update(ctx context.Context, category string, lastValue int64) error {
	err := r.db.WithContext(ctx).
		Model(&model.SequenceCounter{}).
		Where("category = ?", category).
		Update("last_value", lastValue).Error
	return wrap("sequence.Update", err)
}
