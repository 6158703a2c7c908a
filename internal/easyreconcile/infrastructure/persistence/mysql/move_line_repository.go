package mysql

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
	"github.com/wyfcoding/easyreconcile/pkg/db"
	"gorm.io/gorm"
)

// MoveLineModel 账务系统分录表中对账相关的列
type MoveLineModel struct {
	ID                 uint64          `gorm:"primaryKey"`
	AccountID          uint64          `gorm:"column:account_id;not null;index"`
	Name               string          `gorm:"column:name;type:varchar(64)"`
	Ref                string          `gorm:"column:ref;type:varchar(64)"`
	PartnerID          *uint64         `gorm:"column:partner_id"`
	Debit              decimal.Decimal `gorm:"column:debit;type:decimal(20,8);not null"`
	Credit             decimal.Decimal `gorm:"column:credit;type:decimal(20,8);not null"`
	Date               time.Time       `gorm:"column:date"`
	ReconcileID        *uint64         `gorm:"column:reconcile_id;index"`
	ReconcilePartialID *uint64         `gorm:"column:reconcile_partial_id;index"`
}

func (MoveLineModel) TableName() string { return "account_move_line" }

type moveLineRepository struct {
	db *gorm.DB
}

// NewMoveLineRepository 创建分录查询仓储
func NewMoveLineRepository(gdb *gorm.DB) domain.MoveLineRepository {
	return &moveLineRepository{db: gdb}
}

func (r *moveLineRepository) CountUnreconciled(ctx context.Context, accountID uint64) (int64, error) {
	var n int64
	err := db.Conn(ctx, r.db).Model(&MoveLineModel{}).
		Where("account_id = ?", accountID).
		Where("reconcile_id IS NULL AND reconcile_partial_id IS NULL").
		Count(&n).Error
	return n, err
}

func (r *moveLineRepository) CountPartial(ctx context.Context, accountID uint64) (int64, error) {
	var n int64
	err := db.Conn(ctx, r.db).Model(&MoveLineModel{}).
		Where("account_id = ?", accountID).
		Where("reconcile_id IS NULL AND reconcile_partial_id IS NOT NULL").
		Count(&n).Error
	return n, err
}

// FindReconcileIDs 空输入直接返回，不查询数据库
func (r *moveLineRepository) FindReconcileIDs(ctx context.Context, kind domain.GroupKind, lineIDs []uint64) ([]uint64, error) {
	if len(lineIDs) == 0 {
		return []uint64{}, nil
	}

	col := kind.Column()
	var ids []uint64
	err := db.Conn(ctx, r.db).Model(&MoveLineModel{}).
		Distinct(col).
		Where("id IN ?", lineIDs).
		Where(col+" IS NOT NULL").
		Pluck(col, &ids).Error
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *moveLineRepository) ListLineIDs(ctx context.Context, kind domain.GroupKind, groupIDs []uint64) ([]uint64, error) {
	if len(groupIDs) == 0 {
		return []uint64{}, nil
	}

	var ids []uint64
	err := db.Conn(ctx, r.db).Model(&MoveLineModel{}).
		Where(kind.Column()+" IN ?", groupIDs).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}
