package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/application"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
	"github.com/wyfcoding/easyreconcile/pkg/logger"
	"github.com/wyfcoding/easyreconcile/pkg/mq"
)

// RunCommand 触发对账运行的消息，All 为真时忽略 TaskIDs
type RunCommand struct {
	TaskIDs []uint64 `json:"task_ids"`
	All     bool     `json:"all"`
	TraceID string   `json:"trace_id,omitempty"`
}

// Runner 由 application.ReconcileService 实现
type Runner interface {
	RunReconcile(ctx context.Context, taskIDs ...uint64) ([]*application.HistoryDTO, error)
	RunAll(ctx context.Context) ([]*application.HistoryDTO, error)
}

// RunCommandHandler 消费运行指令（如定时调度器发出的消息）
type RunCommandHandler struct {
	runner Runner
}

func NewRunCommandHandler(runner Runner) *RunCommandHandler {
	return &RunCommandHandler{runner: runner}
}

// Handle 返回错误的消息会进入死信队列；任务正在运行时直接跳过
func (h *RunCommandHandler) Handle(ctx context.Context, msg *mq.Message) error {
	var cmd RunCommand
	if err := msg.UnmarshalPayload(&cmd); err != nil {
		return fmt.Errorf("%w: decode run command: %v", domain.ErrInvalidArgument, err)
	}
	if cmd.TraceID != "" {
		ctx = logger.ContextWithTrace(ctx, cmd.TraceID, "")
	}
	if !cmd.All && len(cmd.TaskIDs) == 0 {
		logger.Warn(ctx, "empty run command ignored", "offset", msg.Offset)
		return nil
	}

	var (
		out []*application.HistoryDTO
		err error
	)
	if cmd.All {
		out, err = h.runner.RunAll(ctx)
	} else {
		out, err = h.runner.RunReconcile(ctx, cmd.TaskIDs...)
	}
	if errors.Is(err, domain.ErrRunInProgress) {
		logger.Warn(ctx, "run command skipped", "task_ids", cmd.TaskIDs, "reason", err)
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info(ctx, "run command handled", "task_ids", cmd.TaskIDs, "all", cmd.All, "histories", len(out))
	return nil
}
