package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
)

func TestMoveLineCounts(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	repo := NewMoveLineRepository(gdb)

	seedLine(t, gdb, 1, 512, nil, nil)
	seedLine(t, gdb, 2, 512, nil, nil)
	seedLine(t, gdb, 3, 512, ptr(10), nil)
	seedLine(t, gdb, 4, 512, nil, ptr(20))
	seedLine(t, gdb, 5, 512, ptr(11), ptr(21))
	seedLine(t, gdb, 6, 411, nil, nil)

	unrec, err := repo.CountUnreconciled(ctx, 512)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unrec)

	partial, err := repo.CountPartial(ctx, 512)
	require.NoError(t, err)
	assert.EqualValues(t, 1, partial)
}

func TestFindReconcileIDs(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	repo := NewMoveLineRepository(gdb)

	seedLine(t, gdb, 1, 512, ptr(30), nil)
	seedLine(t, gdb, 2, 512, ptr(30), nil)
	seedLine(t, gdb, 3, 512, ptr(10), nil)
	seedLine(t, gdb, 4, 512, nil, ptr(40))
	seedLine(t, gdb, 5, 512, nil, ptr(40))
	seedLine(t, gdb, 6, 512, nil, nil)

	full, err := repo.FindReconcileIDs(ctx, domain.GroupFull, []uint64{1, 2, 3, 4, 6})
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 30}, full)

	partial, err := repo.FindReconcileIDs(ctx, domain.GroupPartial, []uint64{4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, []uint64{40}, partial)

	empty, err := repo.FindReconcileIDs(ctx, domain.GroupFull, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	lines, err := repo.ListLineIDs(ctx, domain.GroupFull, []uint64{30})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, lines)

	lines, err = repo.ListLineIDs(ctx, domain.GroupPartial, nil)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestHistoryLatestAndList(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	repo := NewHistoryRepository(gdb)

	_, err := repo.Latest(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNoHistory)

	base := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	older := domain.NewHistory(1, base, []uint64{1}, nil)
	newer := domain.NewHistory(1, base.Add(time.Hour), []uint64{2, 3}, []uint64{9})
	other := domain.NewHistory(2, base.Add(2*time.Hour), []uint64{4}, nil)
	for _, h := range []*domain.History{older, newer, other} {
		require.NoError(t, repo.Create(ctx, h))
	}

	latest, err := repo.Latest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)
	assert.Equal(t, []uint64{2, 3}, latest.ReconcileIDs())
	assert.Equal(t, []uint64{9}, latest.PartialIDs())

	list, err := repo.ListByTask(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	limited, err := repo.ListByTask(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
