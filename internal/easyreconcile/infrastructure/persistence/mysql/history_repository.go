package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
	"github.com/wyfcoding/easyreconcile/pkg/db"
	"gorm.io/gorm"
)

type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository 创建历史仓储
func NewHistoryRepository(gdb *gorm.DB) domain.HistoryRepository {
	return &historyRepository{db: gdb}
}

// Create 写入历史及其关联的对账组
func (r *historyRepository) Create(ctx context.Context, h *domain.History) error {
	return db.Conn(ctx, r.db).Create(h).Error
}

func (r *historyRepository) Latest(ctx context.Context, taskID uint64) (*domain.History, error) {
	var h domain.History
	err := db.Conn(ctx, r.db).
		Preload("Groups").
		Where("easy_reconcile_id = ?", taskID).
		Order("date DESC, id DESC").
		First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: task %d", domain.ErrNoHistory, taskID)
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *historyRepository) ListByTask(ctx context.Context, taskID uint64, limit int) ([]*domain.History, error) {
	q := db.Conn(ctx, r.db).
		Preload("Groups").
		Where("easy_reconcile_id = ?", taskID).
		Order("date DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var list []*domain.History
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
