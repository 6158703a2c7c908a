package application

import (
	"time"

	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
)

// CreateTaskCommand 创建对账任务
type CreateTaskCommand struct {
	Name      string          `json:"name" binding:"required"`
	AccountID uint64          `json:"account_id" binding:"required"`
	Methods   []MethodCommand `json:"methods"`
}

// UpdateTaskCommand 修改任务头
type UpdateTaskCommand struct {
	Name      string `json:"name" binding:"required"`
	AccountID uint64 `json:"account_id" binding:"required"`
}

// MethodCommand 新增或修改对账方法；未给出的选项取默认值
type MethodCommand struct {
	Name            string  `json:"name" binding:"required"`
	Sequence        *int    `json:"sequence"`
	WriteOff        string  `json:"write_off"`
	AccountLostID   *uint64 `json:"account_lost_id"`
	AccountProfitID *uint64 `json:"account_profit_id"`
	JournalID       *uint64 `json:"journal_id"`
	DateBaseOn      string  `json:"date_base_on"`
	Filter          string  `json:"filter"`
}

// ChoiceDTO 可选项
type ChoiceDTO struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// MethodDTO 对账方法
type MethodDTO struct {
	ID              uint64  `json:"id"`
	TaskID          uint64  `json:"task_id"`
	Name            string  `json:"name"`
	Sequence        int     `json:"sequence"`
	WriteOff        string  `json:"write_off"`
	AccountLostID   *uint64 `json:"account_lost_id,omitempty"`
	AccountProfitID *uint64 `json:"account_profit_id,omitempty"`
	JournalID       *uint64 `json:"journal_id,omitempty"`
	DateBaseOn      string  `json:"date_base_on"`
	Filter          string  `json:"filter,omitempty"`
}

// HistoryDTO 对账历史
type HistoryDTO struct {
	ID           uint64    `json:"id"`
	TaskID       uint64    `json:"task_id"`
	Date         time.Time `json:"date"`
	ReconcileIDs []uint64  `json:"reconcile_ids"`
	PartialIDs   []uint64  `json:"reconcile_partial_ids"`
}

// TaskDTO 对账任务及计算字段
type TaskDTO struct {
	ID                     uint64      `json:"id"`
	Name                   string      `json:"name"`
	AccountID              uint64      `json:"account_id"`
	Methods                []MethodDTO `json:"reconcile_methods"`
	UnreconciledCount      int64       `json:"unreconciled_count"`
	ReconciledPartialCount int64       `json:"reconciled_partial_count"`
	LastHistory            *HistoryDTO `json:"last_history,omitempty"`
}

// ActionDTO 打开分录的窗口动作
type ActionDTO struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	ResModel string   `json:"res_model"`
	ViewMode string   `json:"view_mode"`
	Target   string   `json:"target"`
	Domain   [][]any  `json:"domain"`
	GroupIDs []uint64 `json:"reconcile_ids"`
	LineIDs  []uint64 `json:"move_line_ids"`
}

func toChoiceDTOs(choices []domain.Choice) []ChoiceDTO {
	out := make([]ChoiceDTO, 0, len(choices))
	for _, c := range choices {
		out = append(out, ChoiceDTO{Value: c.Value, Label: c.Label})
	}
	return out
}

func toMethodDTO(m domain.ReconcileMethod) MethodDTO {
	return MethodDTO{
		ID:              m.ID,
		TaskID:          m.TaskID,
		Name:            string(m.Name),
		Sequence:        m.Sequence,
		WriteOff:        m.WriteOff.String(),
		AccountLostID:   m.AccountLostID,
		AccountProfitID: m.AccountProfitID,
		JournalID:       m.JournalID,
		DateBaseOn:      string(m.DateBaseOn),
		Filter:          m.Filter,
	}
}

func toHistoryDTO(h *domain.History) *HistoryDTO {
	if h == nil {
		return nil
	}
	return &HistoryDTO{
		ID:           h.ID,
		TaskID:       h.TaskID,
		Date:         h.Date,
		ReconcileIDs: h.ReconcileIDs(),
		PartialIDs:   h.PartialIDs(),
	}
}

func toTaskDTO(t *domain.ReconcileTask) *TaskDTO {
	dto := &TaskDTO{
		ID:        t.ID,
		Name:      t.Name,
		AccountID: t.AccountID,
		Methods:   make([]MethodDTO, 0, len(t.Methods)),
	}
	for _, m := range t.OrderedMethods() {
		dto.Methods = append(dto.Methods, toMethodDTO(m))
	}
	return dto
}

func toActionDTO(a *domain.Action) *ActionDTO {
	return &ActionDTO{
		Name:     a.Name,
		Type:     a.Type,
		ResModel: a.ResModel,
		ViewMode: a.ViewMode,
		Target:   a.Target,
		Domain:   a.Domain(),
		GroupIDs: a.GroupIDs,
		LineIDs:  a.LineIDs,
	}
}
