package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// TaskNameMaxLen 任务名最大长度
const TaskNameMaxLen = 64

// ReconcileTask 对账任务：一个科目与一组有序的对账方法
type ReconcileTask struct {
	ID        uint64            `gorm:"primaryKey"`
	Name      string            `gorm:"column:name;type:varchar(64);not null"`
	AccountID uint64            `gorm:"column:account;not null;index"`
	Methods   []ReconcileMethod `gorm:"foreignKey:TaskID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ReconcileTask) TableName() string { return "account_easy_reconcile" }

// NewTask 创建任务
func NewTask(name string, accountID uint64) (*ReconcileTask, error) {
	t := &ReconcileTask{Name: strings.TrimSpace(name), AccountID: accountID}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate 校验任务头
func (t *ReconcileTask) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(t.Name) > TaskNameMaxLen {
		return fmt.Errorf("%w: name longer than %d characters", ErrInvalidArgument, TaskNameMaxLen)
	}
	if t.AccountID == 0 {
		return fmt.Errorf("%w: account is required", ErrInvalidArgument)
	}
	return nil
}

// OrderedMethods 按 sequence 升序返回方法，sequence 相同时按 ID
func (t *ReconcileTask) OrderedMethods() []ReconcileMethod {
	out := make([]ReconcileMethod, len(t.Methods))
	copy(out, t.Methods)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].ID < out[j].ID
	})
	return out
}
