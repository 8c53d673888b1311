package idgen

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 雪花 ID：41 位毫秒时间戳 | 10 位节点号 | 12 位序列号
const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	nodeBits       = 10
	sequenceBits   = 12
	MaxNodeID      = -1 ^ (-1 << nodeBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	nodeShift      = sequenceBits
	timestampShift = sequenceBits + nodeBits
)

// Snowflake 单节点内并发安全
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	nodeID    int64
	sequence  int64
	now       func() time.Time
}

func NewSnowflake(nodeID int64) (*Snowflake, error) {
	if nodeID < 0 || nodeID > MaxNodeID {
		return nil, fmt.Errorf("nodeID 必须在 0-%d 之间: %d", MaxNodeID, nodeID)
	}
	return &Snowflake{nodeID: nodeID, now: time.Now}, nil
}

var (
	mu               sync.Mutex
	defaultGenerator = &Snowflake{nodeID: 1, now: time.Now}
)

// Init 设置默认生成器的节点号，多实例部署时每个实例必须不同
func Init(nodeID int64) error {
	s, err := NewSnowflake(nodeID)
	if err != nil {
		return err
	}
	mu.Lock()
	defaultGenerator = s
	mu.Unlock()
	return nil
}

func NextID() int64 {
	mu.Lock()
	g := defaultGenerator
	mu.Unlock()
	return g.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixMilli()
	if now < s.timestamp {
		// 时钟回拨时沿用上次的时间戳，靠序列号保证递增
		now = s.timestamp
	}

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// 序列号用完，等待下一毫秒
			for now <= s.timestamp {
				now = s.now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}
	s.timestamp = now

	return ((now - epoch) << timestampShift) | (s.nodeID << nodeShift) | s.sequence
}

func numbered(prefix string) string {
	id := NextID()
	return fmt.Sprintf("%s%s%08d", prefix, time.Now().Format("20060102150405"), id%100000000)
}

// GenerateTransactionNo 流水号，例如 TXN2024011514305212345678
func GenerateTransactionNo() string {
	return numbered("TXN")
}

// GenerateWithdrawalNo 提现单号
func GenerateWithdrawalNo() string {
	return numbered("WDR")
}

// GenerateBatchID 项目批次号，格式 BATCH-XXXXXXXX
func GenerateBatchID() string {
	return "BATCH-" + strings.ToUpper(uuid.NewString()[:8])
}

// NewUUID 员工、条目等实体主键
func NewUUID() string {
	return uuid.NewString()
}
