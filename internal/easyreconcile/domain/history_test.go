package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewHistoryDeduplicates(t *testing.T) {
	now := time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC)
	h := NewHistory(3, now, []uint64{9, 4, 9, 1}, []uint64{7, 7})

	assert.Equal(t, uint64(3), h.TaskID)
	assert.Equal(t, now, h.Date)
	assert.Equal(t, []uint64{1, 4, 9}, h.ReconcileIDs())
	assert.Equal(t, []uint64{7}, h.PartialIDs())
	assert.Len(t, h.Groups, 4)
}

func TestHistoryEmptyRun(t *testing.T) {
	h := NewHistory(3, time.Now(), nil, nil)

	assert.Empty(t, h.Groups)
	assert.Empty(t, h.ReconcileIDs())
	assert.Empty(t, h.PartialIDs())
}

func TestHistoryActions(t *testing.T) {
	h := NewHistory(1, time.Now(), []uint64{10, 11}, []uint64{20})

	full := h.OpenReconcile()
	assert.Equal(t, "Reconciliations", full.Name)
	assert.Equal(t, MoveLineResModel, full.ResModel)
	assert.Equal(t, GroupFull, full.Kind)
	assert.Equal(t, []uint64{10, 11}, full.GroupIDs)

	partial := h.OpenPartial()
	assert.Equal(t, "Partial Reconciliations", partial.Name)
	assert.Equal(t, GroupPartial, partial.Kind)
	assert.Equal(t, []uint64{20}, partial.GroupIDs)

	assert.Equal(t, [][]any{{"id", "in", []uint64{}}}, partial.Domain())
	partial.LineIDs = []uint64{100, 101}
	assert.Equal(t, [][]any{{"id", "in", []uint64{100, 101}}}, partial.Domain())
}

func TestGroupKindColumn(t *testing.T) {
	assert.Equal(t, "reconcile_id", GroupFull.Column())
	assert.Equal(t, "reconcile_partial_id", GroupPartial.Column())
}
