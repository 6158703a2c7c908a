package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
	"github.com/wyfcoding/easyreconcile/pkg/db"
	"gorm.io/gorm"
)

// taskRepository 对账任务仓储实现
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓储
func NewTaskRepository(gdb *gorm.DB) domain.TaskRepository {
	return &taskRepository{db: gdb}
}

func (r *taskRepository) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

// Save 保存任务头；新任务连同方法一并创建
func (r *taskRepository) Save(ctx context.Context, task *domain.ReconcileTask) error {
	if task.ID == 0 {
		return r.conn(ctx).Create(task).Error
	}
	return r.conn(ctx).Omit("Methods").Save(task).Error
}

func (r *taskRepository) Get(ctx context.Context, id uint64) (*domain.ReconcileTask, error) {
	var task domain.ReconcileTask
	err := r.conn(ctx).
		Preload("Methods", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("sequence ASC, id ASC")
		}).
		First(&task, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", domain.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) List(ctx context.Context) ([]*domain.ReconcileTask, error) {
	var tasks []*domain.ReconcileTask
	err := r.conn(ctx).
		Preload("Methods", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("sequence ASC, id ASC")
		}).
		Order("id ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *taskRepository) ListIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := r.conn(ctx).Model(&domain.ReconcileTask{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

// Delete 级联删除方法、历史及历史关联的对账组
func (r *taskRepository) Delete(ctx context.Context, id uint64) error {
	conn := r.conn(ctx)

	historyIDs := conn.Model(&domain.History{}).Select("id").Where("easy_reconcile_id = ?", id)
	if err := conn.Where("history_id IN (?)", historyIDs).Delete(&domain.HistoryGroup{}).Error; err != nil {
		return err
	}
	if err := conn.Where("easy_reconcile_id = ?", id).Delete(&domain.History{}).Error; err != nil {
		return err
	}
	if err := conn.Where("task_id = ?", id).Delete(&domain.ReconcileMethod{}).Error; err != nil {
		return err
	}

	res := conn.Delete(&domain.ReconcileTask{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", domain.ErrTaskNotFound, id)
	}
	return nil
}

func (r *taskRepository) SaveMethod(ctx context.Context, method *domain.ReconcileMethod) error {
	return r.conn(ctx).Save(method).Error
}

func (r *taskRepository) GetMethod(ctx context.Context, id uint64) (*domain.ReconcileMethod, error) {
	var m domain.ReconcileMethod
	err := r.conn(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", domain.ErrMethodNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *taskRepository) DeleteMethod(ctx context.Context, id uint64) error {
	res := r.conn(ctx).Delete(&domain.ReconcileMethod{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", domain.ErrMethodNotFound, id)
	}
	return nil
}
