package domain

// MoveLineResModel 分录模型名
const MoveLineResModel = "account.move.line"

// Action 界面窗口动作，描述要打开的分录集合
type Action struct {
	Name     string
	Type     string
	ResModel string
	ViewMode string
	Target   string
	// 来源对账组
	Kind     GroupKind
	GroupIDs []uint64
	// 属于这些对账组的分录，由应用层填充
	LineIDs []uint64
}

func newMoveLineAction(name string, kind GroupKind, groupIDs []uint64) *Action {
	return &Action{
		Name:     name,
		Type:     "ir.actions.act_window",
		ResModel: MoveLineResModel,
		ViewMode: "tree,form",
		Target:   "current",
		Kind:     kind,
		GroupIDs: groupIDs,
	}
}

// Domain 返回按分录 ID 过滤的搜索条件
func (a *Action) Domain() [][]any {
	ids := a.LineIDs
	if ids == nil {
		ids = []uint64{}
	}
	return [][]any{{"id", "in", ids}}
}
