package domain

import (
	"sort"
	"time"
)

// GroupKind 对账组类型
type GroupKind string

const (
	GroupFull    GroupKind = "full"
	GroupPartial GroupKind = "partial"
)

// Column 分录表上指向该类型对账组的列
func (k GroupKind) Column() string {
	if k == GroupPartial {
		return "reconcile_partial_id"
	}
	return "reconcile_id"
}

// History 一次对账运行的结果
type History struct {
	ID     uint64         `gorm:"primaryKey"`
	TaskID uint64         `gorm:"column:easy_reconcile_id;not null;index"`
	Date   time.Time      `gorm:"column:date;not null;index"`
	Groups []HistoryGroup `gorm:"foreignKey:HistoryID"`
}

func (History) TableName() string { return "easy_reconcile_history" }

// HistoryGroup 历史关联的对账组
type HistoryGroup struct {
	ID          uint64    `gorm:"primaryKey"`
	HistoryID   uint64    `gorm:"column:history_id;not null;uniqueIndex:idx_history_group"`
	Kind        GroupKind `gorm:"column:kind;type:varchar(16);not null;uniqueIndex:idx_history_group"`
	ReconcileID uint64    `gorm:"column:reconcile_id;not null;uniqueIndex:idx_history_group"`
}

func (HistoryGroup) TableName() string { return "easy_reconcile_history_group" }

// NewHistory 创建历史，重复的组 ID 只记录一次
func NewHistory(taskID uint64, date time.Time, reconcileIDs, partialIDs []uint64) *History {
	h := &History{TaskID: taskID, Date: date}
	h.addGroups(GroupFull, reconcileIDs)
	h.addGroups(GroupPartial, partialIDs)
	return h
}

func (h *History) addGroups(kind GroupKind, ids []uint64) {
	for _, id := range uniqueSorted(ids) {
		h.Groups = append(h.Groups, HistoryGroup{Kind: kind, ReconcileID: id})
	}
}

// ReconcileIDs 完全对账组 ID（升序）
func (h *History) ReconcileIDs() []uint64 { return h.groupIDs(GroupFull) }

// PartialIDs 部分对账组 ID（升序）
func (h *History) PartialIDs() []uint64 { return h.groupIDs(GroupPartial) }

func (h *History) groupIDs(kind GroupKind) []uint64 {
	ids := make([]uint64, 0, len(h.Groups))
	for _, g := range h.Groups {
		if g.Kind == kind {
			ids = append(ids, g.ReconcileID)
		}
	}
	return uniqueSorted(ids)
}

// OpenReconcile 打开本次运行完全对账的分录
func (h *History) OpenReconcile() *Action {
	return newMoveLineAction("Reconciliations", GroupFull, h.ReconcileIDs())
}

// OpenPartial 打开本次运行部分对账的分录
func (h *History) OpenPartial() *Action {
	return newMoveLineAction("Partial Reconciliations", GroupPartial, h.PartialIDs())
}

func uniqueSorted(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
