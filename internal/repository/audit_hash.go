package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"payoutledger/internal/model"
)

// ChainAuditHash sha256(prev|actor|action|details|unix_seconds)
//
// 时间取到秒，datetime 列的精度不影响重新计算。
func ChainAuditHash(prevHash string, entry *model.AuditLog) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s|%d",
		prevHash, entry.ActorID, entry.Action, entry.Details, entry.CreatedAt.Unix())))
	return hex.EncodeToString(sum[:])
}

// SealAudit 填充时间、上一条哈希和本条哈希
func SealAudit(prevHash string, entry *model.AuditLog, now time.Time) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.CreatedAt = entry.CreatedAt.Truncate(time.Second)
	entry.PrevHash = prevHash
	entry.BlockHash = ChainAuditHash(prevHash, entry)
}

// AuditChainBreak 第一条校验失败的记录
type AuditChainBreak struct {
	ID       int64
	Expected string
	Actual   string
}

// VerifyAuditChain 从 prevHash 开始按 id 升序校验一段记录，返回最后一条的哈希
func VerifyAuditChain(prevHash string, entries []*model.AuditLog) (string, *AuditChainBreak) {
	for _, entry := range entries {
		if entry.PrevHash != prevHash {
			return prevHash, &AuditChainBreak{ID: entry.ID, Expected: prevHash, Actual: entry.PrevHash}
		}
		if expected := ChainAuditHash(prevHash, entry); entry.BlockHash != expected {
			return prevHash, &AuditChainBreak{ID: entry.ID, Expected: expected, Actual: entry.BlockHash}
		}
		prevHash = entry.BlockHash
	}
	return prevHash, nil
}
