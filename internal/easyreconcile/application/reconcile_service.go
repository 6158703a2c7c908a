package application

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
	"github.com/wyfcoding/easyreconcile/pkg/logger"
	"github.com/wyfcoding/easyreconcile/pkg/metrics"
)

// ReconcileService 执行对账任务并提供最近一次结果的导航
type ReconcileService struct {
	tasks     domain.TaskRepository
	history   domain.HistoryRepository
	lines     domain.MoveLineRepository
	tx        domain.Transactor
	registry  *Registry
	publisher domain.EventPublisher
	lock      domain.RunLock
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option 可选依赖
type Option func(*ReconcileService)

// WithPublisher 运行完成后发布事件
func WithPublisher(p domain.EventPublisher) Option {
	return func(s *ReconcileService) { s.publisher = p }
}

// WithRunLock 防止同一任务重叠运行
func WithRunLock(l domain.RunLock) Option {
	return func(s *ReconcileService) { s.lock = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ReconcileService) { s.metrics = m }
}

// WithClock 替换历史日期的时间来源
func WithClock(now func() time.Time) Option {
	return func(s *ReconcileService) { s.now = now }
}

func NewReconcileService(
	tasks domain.TaskRepository,
	history domain.HistoryRepository,
	lines domain.MoveLineRepository,
	tx domain.Transactor,
	registry *Registry,
	opts ...Option,
) *ReconcileService {
	s := &ReconcileService{
		tasks:    tasks,
		history:  history,
		lines:    lines,
		tx:       tx,
		registry: registry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type runResult struct {
	task       *domain.ReconcileTask
	reconciled []uint64
	partial    []uint64
	history    *domain.History
}

// RunReconcile 依次运行每个任务的全部方法，每个任务写入一条历史。
// 插件在事务外执行并自行提交对账结果；全部方法成功后才在同一事务内
// 解析对账组并写入所有历史，任一方法失败则不写入任何历史。
func (s *ReconcileService) RunReconcile(ctx context.Context, taskIDs ...uint64) (histories []*HistoryDTO, err error) {
	if len(taskIDs) == 0 {
		return []*HistoryDTO{}, nil
	}

	release, err := s.acquire(ctx, taskIDs)
	if err != nil {
		return nil, err
	}
	// 请求取消后仍需释放锁
	defer release(context.WithoutCancel(ctx))

	start := time.Now()
	defer func() { s.metrics.ObserveRun(time.Since(start), err) }()
	defer logger.LogDuration(ctx, "reconcile run finished", "task_ids", taskIDs)()

	results, err := s.run(ctx, taskIDs)
	if err != nil {
		logger.Error(ctx, "reconcile run failed", "task_ids", taskIDs, "error", err)
		return nil, err
	}

	histories = make([]*HistoryDTO, 0, len(results))
	for _, r := range results {
		s.metrics.ObserveHistory(len(r.history.ReconcileIDs()), len(r.history.PartialIDs()))
		s.publish(ctx, r)
		histories = append(histories, toHistoryDTO(r.history))
	}
	return histories, nil
}

func (s *ReconcileService) run(ctx context.Context, taskIDs []uint64) ([]*runResult, error) {
	results := make([]*runResult, 0, len(taskIDs))
	for _, id := range taskIDs {
		task, err := s.tasks.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		results = append(results, &runResult{task: task})
	}

	for _, r := range results {
		if err := s.runMethods(ctx, r); err != nil {
			return nil, fmt.Errorf("task %d: %w", r.task.ID, err)
		}
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		for _, r := range results {
			if err := s.record(ctx, r); err != nil {
				return fmt.Errorf("task %d: %w", r.task.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// RunAll 运行全部任务
func (s *ReconcileService) RunAll(ctx context.Context) ([]*HistoryDTO, error) {
	ids, err := s.tasks.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	return s.RunReconcile(ctx, ids...)
}

func (s *ReconcileService) runMethods(ctx context.Context, r *runResult) error {
	task := r.task
	for _, method := range task.OrderedMethods() {
		factory, ok := s.registry.Lookup(method.Name)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnknownMethod, method.Name)
		}

		rec, err := factory(ctx, domain.NewRunParams(task, method))
		if err != nil {
			s.metrics.ObserveMethodCall(string(method.Name), err)
			return fmt.Errorf("instantiate %s: %w", method.Name, err)
		}
		reconciled, partial, err := rec.AutomaticReconcile(ctx)
		s.metrics.ObserveMethodCall(string(method.Name), err)
		if err != nil {
			return fmt.Errorf("%s: %w", method.Name, err)
		}

		logger.Debug(ctx, "reconcile method done",
			"task_id", task.ID,
			"method", method.Name,
			"sequence", method.Sequence,
			"reconciled_lines", len(reconciled),
			"partial_lines", len(partial),
		)
		r.reconciled = append(r.reconciled, reconciled...)
		r.partial = append(r.partial, partial...)
	}
	return nil
}

// record 将分录解析为对账组并写入历史，需在事务内调用
func (s *ReconcileService) record(ctx context.Context, r *runResult) error {
	reconcileIDs, err := s.lines.FindReconcileIDs(ctx, domain.GroupFull, r.reconciled)
	if err != nil {
		return fmt.Errorf("resolve reconcile ids: %w", err)
	}
	partialIDs, err := s.lines.FindReconcileIDs(ctx, domain.GroupPartial, r.partial)
	if err != nil {
		return fmt.Errorf("resolve partial reconcile ids: %w", err)
	}

	h := domain.NewHistory(r.task.ID, s.now(), reconcileIDs, partialIDs)
	if err := s.history.Create(ctx, h); err != nil {
		return fmt.Errorf("create history: %w", err)
	}
	r.history = h

	logger.Info(ctx, "reconcile task done",
		"task_id", r.task.ID,
		"history_id", h.ID,
		"reconciled", len(reconcileIDs),
		"partial", len(partialIDs),
	)
	return nil
}

// acquire 按 ID 顺序为每个任务加锁，任一失败则释放已获得的锁
func (s *ReconcileService) acquire(ctx context.Context, taskIDs []uint64) (func(context.Context), error) {
	noop := func(context.Context) {}
	if s.lock == nil {
		return noop, nil
	}

	ids := append([]uint64(nil), taskIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var releases []func(context.Context)
	releaseAll := func(ctx context.Context) {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i](ctx)
		}
	}

	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		release, ok, err := s.lock.TryLock(ctx, strconv.FormatUint(id, 10))
		if err != nil {
			releaseAll(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("acquire run lock for task %d: %w", id, err)
		}
		if !ok {
			releaseAll(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("%w: task %d", domain.ErrRunInProgress, id)
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// publish 事务已提交，发布失败只记录日志
func (s *ReconcileService) publish(ctx context.Context, r *runResult) {
	if s.publisher == nil {
		return
	}

	methods := make([]string, 0, len(r.task.Methods))
	for _, m := range r.task.OrderedMethods() {
		methods = append(methods, string(m.Name))
	}
	event := domain.RunCompletedEvent{
		TaskID:       r.task.ID,
		TaskName:     r.task.Name,
		HistoryID:    r.history.ID,
		Methods:      methods,
		ReconcileIDs: r.history.ReconcileIDs(),
		PartialIDs:   r.history.PartialIDs(),
		OccurredAt:   r.history.Date,
	}
	if err := s.publisher.PublishRunCompleted(ctx, event); err != nil {
		logger.Warn(ctx, "failed to publish reconcile run event", "task_id", r.task.ID, "error", err)
	}
}

// LastHistoryReconcile 打开任务最近一次运行完全对账的分录
func (s *ReconcileService) LastHistoryReconcile(ctx context.Context, taskIDs ...uint64) (*ActionDTO, error) {
	return s.openLastHistory(ctx, domain.GroupFull, taskIDs)
}

// LastHistoryPartial 打开任务最近一次运行部分对账的分录
func (s *ReconcileService) LastHistoryPartial(ctx context.Context, taskIDs ...uint64) (*ActionDTO, error) {
	return s.openLastHistory(ctx, domain.GroupPartial, taskIDs)
}

func (s *ReconcileService) openLastHistory(ctx context.Context, kind domain.GroupKind, taskIDs []uint64) (*ActionDTO, error) {
	if len(taskIDs) != 1 {
		return nil, domain.ErrSingleIDExpected
	}
	id := taskIDs[0]

	if _, err := s.tasks.Get(ctx, id); err != nil {
		return nil, err
	}
	h, err := s.history.Latest(ctx, id)
	if err != nil {
		return nil, err
	}

	action := h.OpenReconcile()
	if kind == domain.GroupPartial {
		action = h.OpenPartial()
	}
	action.LineIDs, err = s.lines.ListLineIDs(ctx, action.Kind, action.GroupIDs)
	if err != nil {
		return nil, err
	}
	return toActionDTO(action), nil
}
