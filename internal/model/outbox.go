package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

const maxOutboxErrorLen = 512

// OutboxMessage 领域事件的待投递副本，与产生事件的余额、项目或提现变更同事务提交
type OutboxMessage struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string     `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string     `gorm:"type:varchar(64);not null" json:"topic"`
	EventType  string     `gorm:"type:varchar(64);index;not null" json:"event_type"`
	Payload    string     `gorm:"type:text;not null" json:"payload"`
	Status     string     `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int        `gorm:"not null;default:0" json:"retry_count"`
	LastError  string     `gorm:"type:varchar(512)" json:"last_error,omitempty"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// NewOutboxMessage 序列化事件，分区键取 EventKey
func NewOutboxMessage(topic string, ev Event) (*OutboxMessage, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("序列化事件 %s 失败: %w", ev.EventType(), err)
	}
	return &OutboxMessage{
		MessageKey: ev.EventKey(),
		Topic:      topic,
		EventType:  ev.EventType(),
		Payload:    string(body),
		Status:     OutboxStatusPending,
	}, nil
}

// Exhausted 再失败一次是否达到重试上限
func (m *OutboxMessage) Exhausted(maxRetry int) bool {
	return m.RetryCount+1 >= maxRetry
}

// TruncateError 截断到 last_error 列宽
func TruncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxOutboxErrorLen {
		msg = strings.ToValidUTF8(msg[:maxOutboxErrorLen], "")
	}
	return msg
}
