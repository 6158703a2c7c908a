package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
	"github.com/wyfcoding/easyreconcile/pkg/logger"
)

// TaskService 对账任务与方法的配置管理
type TaskService struct {
	tasks    domain.TaskRepository
	history  domain.HistoryRepository
	lines    domain.MoveLineRepository
	tx       domain.Transactor
	registry *Registry
}

func NewTaskService(
	tasks domain.TaskRepository,
	history domain.HistoryRepository,
	lines domain.MoveLineRepository,
	tx domain.Transactor,
	registry *Registry,
) *TaskService {
	return &TaskService{
		tasks:    tasks,
		history:  history,
		lines:    lines,
		tx:       tx,
		registry: registry,
	}
}

// AvailableMethods 可选的对账方法
func (s *TaskService) AvailableMethods() []ChoiceDTO {
	return toChoiceDTOs(s.registry.Methods())
}

// DateBases 可选的日期依据
func (s *TaskService) DateBases() []ChoiceDTO {
	return toChoiceDTOs(domain.DateBaseChoices())
}

// CreateTask 创建任务及其方法
func (s *TaskService) CreateTask(ctx context.Context, cmd CreateTaskCommand) (*TaskDTO, error) {
	task, err := domain.NewTask(cmd.Name, cmd.AccountID)
	if err != nil {
		return nil, err
	}
	for _, mc := range cmd.Methods {
		m := domain.NewMethod(0, "")
		if err := s.applyMethodCommand(m, mc); err != nil {
			return nil, err
		}
		task.Methods = append(task.Methods, *m)
	}

	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	logger.Info(ctx, "reconcile task created", "task_id", task.ID, "account_id", task.AccountID, "methods", len(task.Methods))
	return s.GetTask(ctx, task.ID)
}

// UpdateTask 修改任务名与科目
func (s *TaskService) UpdateTask(ctx context.Context, id uint64, cmd UpdateTaskCommand) (*TaskDTO, error) {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	task.Name = strings.TrimSpace(cmd.Name)
	task.AccountID = cmd.AccountID
	if err := task.Validate(); err != nil {
		return nil, err
	}
	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	return s.GetTask(ctx, id)
}

// GetTask 返回任务、未对账与部分对账分录数及最近一次历史
func (s *TaskService) GetTask(ctx context.Context, id uint64) (*TaskDTO, error) {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, task)
}

// ListTasks 返回全部任务
func (s *TaskService) ListTasks(ctx context.Context) ([]*TaskDTO, error) {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		dto, err := s.describe(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, dto)
	}
	return out, nil
}

func (s *TaskService) describe(ctx context.Context, task *domain.ReconcileTask) (*TaskDTO, error) {
	dto := toTaskDTO(task)

	var err error
	if dto.UnreconciledCount, err = s.lines.CountUnreconciled(ctx, task.AccountID); err != nil {
		return nil, err
	}
	if dto.ReconciledPartialCount, err = s.lines.CountPartial(ctx, task.AccountID); err != nil {
		return nil, err
	}

	last, err := s.history.Latest(ctx, task.ID)
	switch {
	case errors.Is(err, domain.ErrNoHistory):
	case err != nil:
		return nil, err
	default:
		dto.LastHistory = toHistoryDTO(last)
	}
	return dto, nil
}

// DeleteTask 删除任务，方法与历史一并删除
func (s *TaskService) DeleteTask(ctx context.Context, id uint64) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.tasks.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "reconcile task deleted", "task_id", id)
	return nil
}

// AddMethod 为任务新增方法
func (s *TaskService) AddMethod(ctx context.Context, taskID uint64, cmd MethodCommand) (*MethodDTO, error) {
	if _, err := s.tasks.Get(ctx, taskID); err != nil {
		return nil, err
	}
	m := domain.NewMethod(taskID, "")
	if err := s.applyMethodCommand(m, cmd); err != nil {
		return nil, err
	}
	if err := s.tasks.SaveMethod(ctx, m); err != nil {
		return nil, fmt.Errorf("save method: %w", err)
	}
	dto := toMethodDTO(*m)
	return &dto, nil
}

// UpdateMethod 修改方法，未给出的选项恢复默认值
func (s *TaskService) UpdateMethod(ctx context.Context, methodID uint64, cmd MethodCommand) (*MethodDTO, error) {
	m, err := s.tasks.GetMethod(ctx, methodID)
	if err != nil {
		return nil, err
	}
	m.Sequence = domain.DefaultSequence
	m.ReconcileOptions = domain.DefaultOptions()
	if err := s.applyMethodCommand(m, cmd); err != nil {
		return nil, err
	}
	if err := s.tasks.SaveMethod(ctx, m); err != nil {
		return nil, fmt.Errorf("save method: %w", err)
	}
	dto := toMethodDTO(*m)
	return &dto, nil
}

// DeleteMethod 删除方法
func (s *TaskService) DeleteMethod(ctx context.Context, methodID uint64) error {
	return s.tasks.DeleteMethod(ctx, methodID)
}

// ListHistory 任务历史，最新在前
func (s *TaskService) ListHistory(ctx context.Context, taskID uint64, limit int) ([]*HistoryDTO, error) {
	if _, err := s.tasks.Get(ctx, taskID); err != nil {
		return nil, err
	}
	list, err := s.history.ListByTask(ctx, taskID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*HistoryDTO, 0, len(list))
	for _, h := range list {
		out = append(out, toHistoryDTO(h))
	}
	return out, nil
}

func (s *TaskService) applyMethodCommand(m *domain.ReconcileMethod, cmd MethodCommand) error {
	name := domain.MethodName(strings.TrimSpace(cmd.Name))
	if _, ok := s.registry.Lookup(name); !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownMethod, cmd.Name)
	}
	m.Name = name

	if cmd.Sequence != nil {
		m.Sequence = *cmd.Sequence
	}
	if cmd.WriteOff != "" {
		w, err := decimal.NewFromString(cmd.WriteOff)
		if err != nil {
			return fmt.Errorf("%w: invalid write_off %q", domain.ErrInvalidArgument, cmd.WriteOff)
		}
		m.WriteOff = w
	}
	if cmd.DateBaseOn != "" {
		m.DateBaseOn = domain.DateBase(cmd.DateBaseOn)
	}
	m.AccountLostID = cmd.AccountLostID
	m.AccountProfitID = cmd.AccountProfitID
	m.JournalID = cmd.JournalID
	m.Filter = cmd.Filter

	if m.TaskID == 0 {
		// 新任务的方法在保存时才获得 TaskID
		return m.ReconcileOptions.Validate()
	}
	return m.Validate()
}
