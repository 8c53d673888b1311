package job

import (
	"context"
	"time"

	"payoutledger/internal/auth"
	"payoutledger/internal/config"

	"github.com/rs/zerolog"
)

// ExpiredFinalizer 截止扫描的执行方，由 ProjectService 实现
type ExpiredFinalizer interface {
	ForceFinalizeExpired(ctx context.Context, actor auth.AuthContext, now time.Time) (int, error)
}

// DeadlineMonitor 定期把超过截止时间的项目强制提交审核
type DeadlineMonitor struct {
	finalizer ExpiredFinalizer
	log       zerolog.Logger
	stopCh    chan struct{}
	interval  time.Duration
	now       func() time.Time
}

func NewDeadlineMonitor(finalizer ExpiredFinalizer, cfg *config.Config, log zerolog.Logger) *DeadlineMonitor {
	interval := cfg.Business.DeadlineSweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &DeadlineMonitor{
		finalizer: finalizer,
		log:       log.With().Str("component", "deadline_monitor").Logger(),
		stopCh:    make(chan struct{}),
		interval:  interval,
		now:       time.Now,
	}
}

// Start 阻塞运行，ctx 取消或 Stop 后返回
func (m *DeadlineMonitor) Start(ctx context.Context) {
	m.log.Info().Dur("interval", m.interval).Msg("截止时间扫描任务启动")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("收到停止信号，任务退出")
			return
		case <-m.stopCh:
			m.log.Info().Msg("任务停止")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

func (m *DeadlineMonitor) Stop() {
	close(m.stopCh)
}

// Sweep 执行一次扫描，返回锁定的项目数
func (m *DeadlineMonitor) Sweep(ctx context.Context) int {
	n, err := m.finalizer.ForceFinalizeExpired(ctx, auth.System(), m.now())
	if err != nil {
		m.log.Error().Err(err).Msg("截止时间扫描失败")
		return 0
	}
	return n
}
