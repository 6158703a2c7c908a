package domain

import "context"

// TaskRepository 对账任务与方法的仓储
type TaskRepository interface {
	Save(ctx context.Context, task *ReconcileTask) error
	// Get 返回任务及按 sequence 排序的方法
	Get(ctx context.Context, id uint64) (*ReconcileTask, error)
	List(ctx context.Context) ([]*ReconcileTask, error)
	ListIDs(ctx context.Context) ([]uint64, error)
	// Delete 删除任务及其方法与历史
	Delete(ctx context.Context, id uint64) error

	SaveMethod(ctx context.Context, method *ReconcileMethod) error
	GetMethod(ctx context.Context, id uint64) (*ReconcileMethod, error)
	DeleteMethod(ctx context.Context, id uint64) error
}

// HistoryRepository 对账历史仓储
type HistoryRepository interface {
	Create(ctx context.Context, h *History) error
	// Latest 返回任务最近一次历史（按日期、ID 倒序）
	Latest(ctx context.Context, taskID uint64) (*History, error)
	ListByTask(ctx context.Context, taskID uint64, limit int) ([]*History, error)
}

// MoveLineRepository 分录查询，分录表由账务系统维护
type MoveLineRepository interface {
	// CountUnreconciled 科目下既无完全对账也无部分对账的分录数
	CountUnreconciled(ctx context.Context, accountID uint64) (int64, error)
	// CountPartial 科目下仅部分对账的分录数
	CountPartial(ctx context.Context, accountID uint64) (int64, error)
	// FindReconcileIDs 返回分录所属的去重对账组 ID
	FindReconcileIDs(ctx context.Context, kind GroupKind, lineIDs []uint64) ([]uint64, error)
	// ListLineIDs 返回属于这些对账组的分录 ID
	ListLineIDs(ctx context.Context, kind GroupKind, groupIDs []uint64) ([]uint64, error)
}

// Transactor 在同一数据库事务中执行
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RunLock 防止同一任务并发运行
type RunLock interface {
	TryLock(ctx context.Context, name string) (release func(context.Context), ok bool, err error)
}

// EventPublisher 领域事件发布
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, event RunCompletedEvent) error
}
