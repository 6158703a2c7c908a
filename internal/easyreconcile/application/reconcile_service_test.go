package application

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/infrastructure/persistence/mysql"
	"github.com/wyfcoding/easyreconcile/pkg/db"
	"github.com/wyfcoding/easyreconcile/pkg/metrics"
)

func TestRunReconcileRecordsOneHistoryPerTask(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for id := uint64(1); id <= 5; id++ {
		h.seedLine(t, id, 100)
	}

	require.NoError(t, h.registry.Register(domain.MethodSimpleName, "name", h.matchLines(domain.GroupFull, 11, 1, 2)))
	require.NoError(t, h.registry.Register(domain.MethodSimplePartner, "partner", h.matchLines(domain.GroupFull, 11, 1, 2)))
	require.NoError(t, h.registry.Register(domain.MethodSimpleReference, "ref", h.matchLines(domain.GroupPartial, 12, 3)))
	task := h.createTask(t, "bank", 100, domain.MethodSimpleName, domain.MethodSimplePartner, domain.MethodSimpleReference)

	out, err := h.reconcileService().RunReconcile(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, task.ID, out[0].TaskID)
	assert.Equal(t, []uint64{11}, out[0].ReconcileIDs, "duplicated groups across methods recorded once")
	assert.Equal(t, []uint64{12}, out[0].PartialIDs)
	assert.True(t, out[0].Date.Equal(fixedNow))

	list, err := h.history.ListByTask(ctx, task.ID, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRunReconcileHonoursSequence(t *testing.T) {
	h := newHarness(t)
	var calls []domain.MethodName
	record := func(name domain.MethodName) domain.ReconcilerFactory {
		return func(context.Context, domain.RunParams) (domain.Reconciler, error) {
			return domain.ReconcilerFunc(func(context.Context) ([]uint64, []uint64, error) {
				calls = append(calls, name)
				return nil, nil, nil
			}), nil
		}
	}
	require.NoError(t, h.registry.Register(domain.MethodSimpleName, "name", record(domain.MethodSimpleName)))
	require.NoError(t, h.registry.Register(domain.MethodSimplePartner, "partner", record(domain.MethodSimplePartner)))

	task, err := domain.NewTask("seq", 7)
	require.NoError(t, err)
	first := domain.NewMethod(0, domain.MethodSimplePartner)
	first.Sequence = 5
	second := domain.NewMethod(0, domain.MethodSimpleName)
	second.Sequence = 2
	task.Methods = []domain.ReconcileMethod{*first, *second}
	require.NoError(t, h.tasks.Save(context.Background(), task))

	out, err := h.reconcileService().RunReconcile(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.MethodName{domain.MethodSimpleName, domain.MethodSimplePartner}, calls)
	assert.Empty(t, out[0].ReconcileIDs)
	assert.Empty(t, out[0].PartialIDs)
}

func TestRunReconcilePassesTaskAccountAndOptions(t *testing.T) {
	h := newHarness(t)
	var got domain.RunParams
	require.NoError(t, h.registry.Register(domain.MethodSimpleName, "name",
		func(_ context.Context, p domain.RunParams) (domain.Reconciler, error) {
			got = p
			return domain.ReconcilerFunc(func(context.Context) ([]uint64, []uint64, error) { return nil, nil, nil }), nil
		}))

	task, err := domain.NewTask("opts", 42)
	require.NoError(t, err)
	m := domain.NewMethod(0, domain.MethodSimpleName)
	m.Filter = "[('partner_id','!=',False)]"
	m.DateBaseOn = domain.DateBaseNewest
	task.Methods = []domain.ReconcileMethod{*m}
	require.NoError(t, h.tasks.Save(context.Background(), task))

	_, err = h.reconcileService().RunReconcile(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got.AccountID)
	assert.Equal(t, domain.DateBaseNewest, got.DateBaseOn)
	assert.Equal(t, m.Filter, got.Filter)
	assert.True(t, got.WriteOff.IsZero())
}

func TestRunReconcileWritesNoHistoryOnPluginError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedLine(t, 1, 100)
	h.seedLine(t, 2, 200)

	boom := errors.New("matcher down")
	require.NoError(t, h.registry.Register(domain.MethodSimpleName, "name", h.matchLines(domain.GroupFull, 21, 1)))
	require.NoError(t, h.registry.Register(domain.MethodSimplePartner, "partner",
		func(context.Context, domain.RunParams) (domain.Reconciler, error) {
			return domain.ReconcilerFunc(func(context.Context) ([]uint64, []uint64, error) {
				return nil, nil, boom
			}), nil
		}))
	ok := h.createTask(t, "ok", 100, domain.MethodSimpleName)
	bad := h.createTask(t, "bad", 200, domain.MethodSimplePartner)

	_, err := h.reconcileService().RunReconcile(ctx, ok.ID, bad.ID)
	require.ErrorIs(t, err, boom)

	_, err = h.history.Latest(ctx, ok.ID)
	assert.ErrorIs(t, err, domain.ErrNoHistory, "no history for the first task either")

	var line mysql.MoveLineModel
	require.NoError(t, h.db.First(&line, 1).Error)
	require.NotNil(t, line.ReconcileID, "plugin commits its own matches")
	assert.EqualValues(t, 21, *line.ReconcileID)
}

func TestRunReconcileSeesMatchesCommittedOnAnotherConnection(t *testing.T) {
	h, dsn := newFileHarness(t)
	ctx := context.Background()
	h.seedLine(t, 1, 100)
	h.seedLine(t, 2, 100)
	h.seedLine(t, 3, 200)

	matcherDB, err := db.Open(ctx, db.Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(matcherDB) })

	// 外部匹配服务在自己的连接上提交
	external := func(group uint64, lineIDs ...uint64) domain.ReconcilerFactory {
		return func(context.Context, domain.RunParams) (domain.Reconciler, error) {
			return domain.ReconcilerFunc(func(ctx context.Context) ([]uint64, []uint64, error) {
				err := matcherDB.WithContext(ctx).Model(&mysql.MoveLineModel{}).
					Where("id IN ?", lineIDs).
					Update("reconcile_id", group).Error
				return lineIDs, nil, err
			}), nil
		}
	}
	require.NoError(t, h.registry.Register(domain.MethodSimpleName, "name", external(11, 1, 2)))
	require.NoError(t, h.registry.Register(domain.MethodSimplePartner, "partner", external(12, 3)))
	a := h.createTask(t, "a", 100, domain.MethodSimpleName)
	b := h.createTask(t, "b", 200, domain.MethodSimplePartner)

	out, err := h.reconcileService().RunReconcile(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []uint64{11}, out[0].ReconcileIDs)
	assert.Equal(t, []uint64{12}, out[1].ReconcileIDs)

	latest, err := h.history.Latest(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{12}, latest.ReconcileIDs())
}

func TestRunReconcileReleasesLocksAfterCancel(t *testing.T) {
	h := newHarness(t)
	lock := newMemoryLock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, h.registry.Register(domain.MethodSimpleName, "name",
		func(context.Context, domain.RunParams) (domain.Reconciler, error) {
			return domain.ReconcilerFunc(func(context.Context) ([]uint64, []uint64, error) {
				cancel()
				return nil, nil, nil
			}), nil
		}))
	task := h.createTask(t, "cancelled", 1, domain.MethodSimpleName)

	_, _ = h.reconcileService(WithRunLock(lock)).RunReconcile(ctx, task.ID)
	assert.Empty(t, lock.held)
}

func TestRunReconcileUnknownMethod(t *testing.T) {
	h := newHarness(t)
	task := h.createTask(t, "orphan", 1, domain.MethodName("legacy.plugin"))

	_, err := h.reconcileService().RunReconcile(context.Background(), task.ID)
	require.ErrorIs(t, err, domain.ErrUnknownMethod)
}

func TestRunReconcileMissingTask(t *testing.T) {
	h := newHarness(t)
	_, err := h.reconcileService().RunReconcile(context.Background(), 404)
	require.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestRunReconcileEmptyIDs(t *testing.T) {
	h := newHarness(t)
	out, err := h.reconcileService().RunReconcile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRunAll(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.registry.Register(domain.MethodSimpleName, "name", h.matchLines(domain.GroupFull, 1)))
	a := h.createTask(t, "a", 1, domain.MethodSimpleName)
	b := h.createTask(t, "b", 2, domain.MethodSimpleName)

	out, err := h.reconcileService().RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, a.ID, out[0].TaskID)
	assert.Equal(t, b.ID, out[1].TaskID)
}

func TestRunReconcileRejectsConcurrentRun(t *testing.T) {
	h := newHarness(t)
	lock := newMemoryLock()
	require.NoError(t, h.registry.Register(domain.MethodSimpleName, "name", h.matchLines(domain.GroupFull, 1)))
	task := h.createTask(t, "locked", 1, domain.MethodSimpleName)

	release, ok, err := lock.TryLock(context.Background(), strconv.FormatUint(task.ID, 10))
	require.NoError(t, err)
	require.True(t, ok)

	svc := h.reconcileService(WithRunLock(lock))
	_, err = svc.RunReconcile(context.Background(), task.ID)
	require.ErrorIs(t, err, domain.ErrRunInProgress)

	release(context.Background())
	_, err = svc.RunReconcile(context.Background(), task.ID, task.ID)
	require.NoError(t, err)
	assert.Empty(t, lock.held, "locks released after the run")
}

func TestRunReconcilePublishesAfterCommit(t *testing.T) {
	h := newHarness(t)
	h.seedLine(t, 1, 9)
	pub := &recordingPublisher{err: errors.New("broker unavailable")}
	m := metrics.New("easyreconcile-test")
	require.NoError(t, h.registry.Register(domain.MethodSimpleName, "name", h.matchLines(domain.GroupFull, 77, 1)))
	task := h.createTask(t, "events", 9, domain.MethodSimpleName)

	out, err := h.reconcileService(WithPublisher(pub), WithMetrics(m)).RunReconcile(context.Background(), task.ID)
	require.NoError(t, err, "publish failure does not fail the run")
	require.Len(t, pub.events, 1)

	e := pub.events[0]
	assert.Equal(t, task.ID, e.TaskID)
	assert.Equal(t, "events", e.TaskName)
	assert.Equal(t, out[0].ID, e.HistoryID)
	assert.Equal(t, []string{string(domain.MethodSimpleName)}, e.Methods)
	assert.Equal(t, []uint64{77}, e.ReconcileIDs)
}

func TestLastHistoryRequiresSingleID(t *testing.T) {
	h := newHarness(t)
	svc := h.reconcileService()

	_, err := svc.LastHistoryReconcile(context.Background(), 1, 2)
	assert.ErrorIs(t, err, domain.ErrSingleIDExpected)
	assert.EqualError(t, err, "only 1 id expected")

	_, err = svc.LastHistoryPartial(context.Background())
	assert.ErrorIs(t, err, domain.ErrSingleIDExpected)
}

func TestLastHistoryWithoutRuns(t *testing.T) {
	h := newHarness(t)
	task := h.createTask(t, "fresh", 1)

	_, err := h.reconcileService().LastHistoryReconcile(context.Background(), task.ID)
	assert.ErrorIs(t, err, domain.ErrNoHistory)
}

func TestLastHistoryOpensLatestRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for id := uint64(1); id <= 4; id++ {
		h.seedLine(t, id, 5)
	}
	require.NoError(t, h.registry.Register(domain.MethodSimpleName, "name", h.matchLines(domain.GroupFull, 31, 1, 2)))
	require.NoError(t, h.registry.Register(domain.MethodSimplePartner, "partner", h.matchLines(domain.GroupPartial, 32, 3)))
	task := h.createTask(t, "nav", 5, domain.MethodSimpleName, domain.MethodSimplePartner)

	svc := h.reconcileService()
	_, err := svc.RunReconcile(ctx, task.ID)
	require.NoError(t, err)

	full, err := svc.LastHistoryReconcile(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Reconciliations", full.Name)
	assert.Equal(t, domain.MoveLineResModel, full.ResModel)
	assert.Equal(t, []uint64{31}, full.GroupIDs)
	assert.Equal(t, []uint64{1, 2}, full.LineIDs)
	assert.Equal(t, [][]any{{"id", "in", []uint64{1, 2}}}, full.Domain)

	partial, err := svc.LastHistoryPartial(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Partial Reconciliations", partial.Name)
	assert.Equal(t, []uint64{32}, partial.GroupIDs)
	assert.Equal(t, []uint64{3}, partial.LineIDs)
}
