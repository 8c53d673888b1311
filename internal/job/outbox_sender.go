package job

import (
	"context"
	"time"

	"payoutledger/internal/config"
	"payoutledger/internal/model"
	"payoutledger/internal/repository"

	"github.com/rs/zerolog"
)

// Publisher 消息投递方，由 mq.Producer 实现
type Publisher interface {
	Publish(topic, key, eventType, value string) error
}

// OutboxSender 轮询 outbox 表并投递到 Kafka，至少一次语义
type OutboxSender struct {
	outbox    repository.OutboxRepository
	publisher Publisher
	log       zerolog.Logger
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
	maxRetry  int
	now       func() time.Time
}

func NewOutboxSender(store repository.Store, publisher Publisher, cfg *config.Config, log zerolog.Logger) *OutboxSender {
	interval := cfg.Business.OutboxInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	maxRetry := cfg.Business.OutboxMaxRetry
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &OutboxSender{
		outbox:    store.Outbox(),
		publisher: publisher,
		log:       log.With().Str("component", "outbox_sender").Logger(),
		stopCh:    make(chan struct{}),
		interval:  interval,
		batchSize: 100,
		maxRetry:  maxRetry,
		now:       time.Now,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.log.Info().Msg("任务停止")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPending 投递一批待发送消息，返回成功条数
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outbox.ListPending(ctx, s.batchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("查询消息失败")
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(msg.Topic, msg.MessageKey, msg.EventType, msg.Payload)
	if err == nil {
		if updateErr := s.outbox.MarkSent(ctx, msg.ID, s.now()); updateErr != nil {
			s.log.Error().Err(updateErr).Int64("id", msg.ID).Msg("更新消息状态失败")
			return false
		}
		s.log.Debug().Int64("id", msg.ID).Str("topic", msg.Topic).Str("key", msg.MessageKey).Msg("消息发送成功")
		return true
	}

	exhausted := msg.Exhausted(s.maxRetry)
	s.log.Warn().Err(err).Int64("id", msg.ID).Int("retry", msg.RetryCount).Msg("消息发送失败")

	if updateErr := s.outbox.RecordFailure(ctx, msg.ID, model.TruncateError(err), exhausted); updateErr != nil {
		s.log.Error().Err(updateErr).Int64("id", msg.ID).Msg("记录发送失败状态失败")
		return false
	}
	if exhausted {
		s.log.Error().Int64("id", msg.ID).Str("event_type", msg.EventType).Msg("消息超过最大重试次数，标记为失败")
	}
	return false
}
