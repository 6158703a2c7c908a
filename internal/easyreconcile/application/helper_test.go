package application

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/infrastructure/persistence/mysql"
	"github.com/wyfcoding/easyreconcile/pkg/db"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	db       *gorm.DB
	registry *Registry
	tasks    domain.TaskRepository
	history  domain.HistoryRepository
	lines    domain.MoveLineRepository
	tx       *db.Transactor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return newHarnessDSN(t, fmt.Sprintf("file:app_%s?mode=memory&cache=shared", name))
}

// newFileHarness 使用 WAL 模式的文件库，可被多个连接池同时打开
func newFileHarness(t *testing.T) (*harness, string) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "reconcile.db") + "?_journal_mode=WAL&_busy_timeout=2000"
	return newHarnessDSN(t, dsn), dsn
}

func newHarnessDSN(t *testing.T, dsn string) *harness {
	t.Helper()
	gdb, err := db.Open(context.Background(), db.Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	require.NoError(t, mysql.Migrate(context.Background(), gdb))
	require.NoError(t, mysql.MigrateLedger(context.Background(), gdb))

	return &harness{
		db:       gdb,
		registry: NewRegistry(),
		tasks:    mysql.NewTaskRepository(gdb),
		history:  mysql.NewHistoryRepository(gdb),
		lines:    mysql.NewMoveLineRepository(gdb),
		tx:       db.NewTransactor(gdb),
	}
}

func (h *harness) reconcileService(opts ...Option) *ReconcileService {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewReconcileService(h.tasks, h.history, h.lines, h.tx, h.registry, opts...)
}

func (h *harness) taskService() *TaskService {
	return NewTaskService(h.tasks, h.history, h.lines, h.tx, h.registry)
}

func (h *harness) seedLine(t *testing.T, id, account uint64) {
	t.Helper()
	require.NoError(t, h.db.Create(&mysql.MoveLineModel{
		ID:        id,
		AccountID: account,
		Debit:     decimal.NewFromInt(10),
		Credit:    decimal.Zero,
	}).Error)
}

// matchLines 模拟插件：把分录写入对账组并返回分录 ID
func (h *harness) matchLines(kind domain.GroupKind, group uint64, lineIDs ...uint64) domain.ReconcilerFactory {
	return func(ctx context.Context, _ domain.RunParams) (domain.Reconciler, error) {
		return domain.ReconcilerFunc(func(ctx context.Context) ([]uint64, []uint64, error) {
			err := db.Conn(ctx, h.db).Model(&mysql.MoveLineModel{}).
				Where("id IN ?", lineIDs).
				Update(kind.Column(), group).Error
			if err != nil {
				return nil, nil, err
			}
			if kind == domain.GroupPartial {
				return nil, lineIDs, nil
			}
			return lineIDs, nil, nil
		}), nil
	}
}

func (h *harness) createTask(t *testing.T, name string, account uint64, methods ...domain.MethodName) *domain.ReconcileTask {
	t.Helper()
	task, err := domain.NewTask(name, account)
	require.NoError(t, err)
	for i, m := range methods {
		method := domain.NewMethod(0, m)
		method.Sequence = i + 1
		task.Methods = append(task.Methods, *method)
	}
	require.NoError(t, h.tasks.Save(context.Background(), task))
	return task
}

type memoryLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemoryLock() *memoryLock { return &memoryLock{held: make(map[string]bool)} }

func (l *memoryLock) TryLock(_ context.Context, name string) (func(context.Context), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return nil, false, nil
	}
	l.held[name] = true
	return func(ctx context.Context) {
		// 与 Redis 锁一致：已取消的 context 无法完成释放
		if ctx.Err() != nil {
			return
		}
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
	}, true, nil
}

type recordingPublisher struct {
	events []domain.RunCompletedEvent
	err    error
}

func (p *recordingPublisher) PublishRunCompleted(_ context.Context, e domain.RunCompletedEvent) error {
	p.events = append(p.events, e)
	return p.err
}
