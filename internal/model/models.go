package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 操作流水状态机: PENDING -> CONFIRMED / FAILED
const (
	OpStatusPending   = "PENDING"
	OpStatusConfirmed = "CONFIRMED"
	OpStatusFailed    = "FAILED"
)

// StakingOperation 质押操作流水表
// 每次 stake/unstake 请求落一条记录，链上确认后回填 TxID 和区块信息。
// Fingerprint 是子句序列的 BLAKE3 摘要，用于幂等比对和审计回溯。
type StakingOperation struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Owner        string          `gorm:"type:varchar(42);not null;index" json:"owner"`
	SmartAccount string          `gorm:"type:varchar(42);not null;index" json:"smart_account"`
	Operation    string          `gorm:"type:varchar(10);not null" json:"operation"` // stake, unstake
	Amount       decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"amount"` // 显示单位
	Token        string          `gorm:"type:varchar(10);not null" json:"token"`     // b3tr, vot3
	ClauseCount  int             `gorm:"not null;default:0" json:"clause_count"`
	Fingerprint  string          `gorm:"type:varchar(64);not null;index" json:"fingerprint"`
	TxID         string          `gorm:"type:varchar(66);index" json:"txid"`
	BlockNumber  uint64          `gorm:"default:0" json:"block_number"`
	Status       string          `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	ErrorCode    string          `gorm:"type:varchar(50)" json:"error_code,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (StakingOperation) TableName() string {
	return "staking_operations"
}

// BalanceSnapshot 余额快照表
// 操作确认后落库，用于离线对账和历史曲线。
type BalanceSnapshot struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Address       string          `gorm:"type:varchar(42);not null;index:idx_addr_time" json:"address"`
	B3TR          decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"b3tr"`
	VOT3          decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"vot3"`
	ConvertedB3TR decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"converted_b3tr"`
	CreatedAt     time.Time       `gorm:"index:idx_addr_time" json:"created_at"`
}

func (BalanceSnapshot) TableName() string {
	return "balance_snapshots"
}

// AllModels 返回所有需要迁移的模型
func AllModels() []interface{} {
	return []interface{}{
		&StakingOperation{},
		&BalanceSnapshot{},
	}
}
