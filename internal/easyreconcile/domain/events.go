package domain

import "time"

// RunCompletedEvent 任务完成一次对账运行
type RunCompletedEvent struct {
	TaskID       uint64    `json:"task_id"`
	TaskName     string    `json:"task_name"`
	HistoryID    uint64    `json:"history_id"`
	Methods      []string  `json:"methods"`
	ReconcileIDs []uint64  `json:"reconcile_ids"`
	PartialIDs   []uint64  `json:"partial_ids"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func (RunCompletedEvent) EventType() string { return "ReconcileRunCompleted" }
