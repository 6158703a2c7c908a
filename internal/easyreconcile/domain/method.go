package domain

import (
	"fmt"
	"time"
)

// MethodName 对账方法名，即注册表中匹配插件的名称
type MethodName string

const (
	MethodSimpleName      MethodName = "easy.reconcile.simple.name"
	MethodSimplePartner   MethodName = "easy.reconcile.simple.partner"
	MethodSimpleReference MethodName = "easy.reconcile.simple.reference"
)

// SimpleMethods 内置的简单匹配方法
var SimpleMethods = []Choice{
	{Value: string(MethodSimpleName), Label: "Simple. Amount and Name"},
	{Value: string(MethodSimplePartner), Label: "Simple. Amount and Partner"},
	{Value: string(MethodSimpleReference), Label: "Simple. Amount and Reference"},
}

// LegacyMethodNames 旧版本以动作名保存的方法名到插件名的映射
var LegacyMethodNames = map[string]MethodName{
	"action_rec_auto_partner": MethodSimplePartner,
	"action_rec_auto_name":    MethodSimpleName,
}

// DefaultSequence 新方法的默认顺序
const DefaultSequence = 1

// ReconcileMethod 任务下按 sequence 排序执行的对账方法
type ReconcileMethod struct {
	ID       uint64     `gorm:"primaryKey"`
	TaskID   uint64     `gorm:"column:task_id;not null;index"`
	Name     MethodName `gorm:"column:name;type:varchar(128);not null"`
	Sequence int        `gorm:"column:sequence;not null"`
	ReconcileOptions
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ReconcileMethod) TableName() string { return "account_easy_reconcile_method" }

// NewMethod 创建带默认选项的方法
func NewMethod(taskID uint64, name MethodName) *ReconcileMethod {
	return &ReconcileMethod{
		TaskID:           taskID,
		Name:             name,
		Sequence:         DefaultSequence,
		ReconcileOptions: DefaultOptions(),
	}
}

// Validate 校验方法；方法名是否已注册由应用层检查
func (m *ReconcileMethod) Validate() error {
	if m.TaskID == 0 {
		return fmt.Errorf("%w: task is required", ErrInvalidArgument)
	}
	if m.Name == "" {
		return fmt.Errorf("%w: method name is required", ErrInvalidArgument)
	}
	return m.ReconcileOptions.Validate()
}

// RunParams 执行一个对账方法时传给插件的参数
type RunParams struct {
	AccountID uint64
	ReconcileOptions
}

// NewRunParams 由任务科目与方法选项组装参数
func NewRunParams(task *ReconcileTask, method ReconcileMethod) RunParams {
	return RunParams{
		AccountID:        task.AccountID,
		ReconcileOptions: method.ReconcileOptions,
	}
}
