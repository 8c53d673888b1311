package model

// SequenceCounter 发号计数器，每个 category 一行，只在行锁内修改
type SequenceCounter struct {
	Category  string `gorm:"type:varchar(32);primaryKey" json:"category"`
	LastValue int64  `gorm:"not null" json:"last_value"`
}

func (SequenceCounter) TableName() string {
	return "sequence_counter"
}
