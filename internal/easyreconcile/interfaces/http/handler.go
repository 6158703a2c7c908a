package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/application"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
	"github.com/wyfcoding/easyreconcile/pkg/logger"
	"github.com/wyfcoding/easyreconcile/pkg/response"
)

// Handler 对账任务 HTTP 接口
type Handler struct {
	tasks     *application.TaskService
	reconcile *application.ReconcileService
	// 运行接口上附加的中间件，如限流
	runGuards []gin.HandlerFunc
}

func NewHandler(tasks *application.TaskService, reconcile *application.ReconcileService, runGuards ...gin.HandlerFunc) *Handler {
	return &Handler{tasks: tasks, reconcile: reconcile, runGuards: runGuards}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/v1/easy-reconcile")
	{
		api.GET("/methods", h.ListMethods)
		api.GET("/date-bases", h.ListDateBases)

		api.POST("/tasks", h.CreateTask)
		api.GET("/tasks", h.ListTasks)
		api.GET("/tasks/:id", h.GetTask)
		api.PUT("/tasks/:id", h.UpdateTask)
		api.DELETE("/tasks/:id", h.DeleteTask)

		api.POST("/tasks/:id/methods", h.AddMethod)
		api.PUT("/methods/:method_id", h.UpdateMethod)
		api.DELETE("/methods/:method_id", h.DeleteMethod)

		api.POST("/tasks/:id/run", h.guarded(h.RunTask)...)
		api.POST("/runs", h.guarded(h.Run)...)

		api.GET("/tasks/:id/history", h.ListHistory)
		api.GET("/tasks/:id/last-history/reconcile", h.LastHistoryReconcile)
		api.GET("/tasks/:id/last-history/partial", h.LastHistoryPartial)
		api.POST("/last-history/reconcile", h.LastHistoryReconcileBatch)
		api.POST("/last-history/partial", h.LastHistoryPartialBatch)
	}
}

func (h *Handler) guarded(fn gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(h.runGuards)+1)
	chain = append(chain, h.runGuards...)
	return append(chain, fn)
}

// RunRequest 批量运行
type RunRequest struct {
	TaskIDs []uint64 `json:"task_ids"`
	All     bool     `json:"all"`
}

// IDsRequest 按任务 ID 列表调用的动作
type IDsRequest struct {
	TaskIDs []uint64 `json:"task_ids"`
}

func (h *Handler) ListMethods(c *gin.Context) {
	response.Success(c, h.tasks.AvailableMethods())
}

func (h *Handler) ListDateBases(c *gin.Context) {
	response.Success(c, h.tasks.DateBases())
}

// CreateTask 创建任务
func (h *Handler) CreateTask(c *gin.Context) {
	var cmd application.CreateTaskCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	dto, err := h.tasks.CreateTask(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, "failed to create task", err)
		return
	}
	response.Created(c, dto)
}

func (h *Handler) ListTasks(c *gin.Context) {
	list, err := h.tasks.ListTasks(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to list tasks", err)
		return
	}
	response.Success(c, list)
}

func (h *Handler) GetTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	dto, err := h.tasks.GetTask(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "failed to get task", err)
		return
	}
	response.Success(c, dto)
}

func (h *Handler) UpdateTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var cmd application.UpdateTaskCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	dto, err := h.tasks.UpdateTask(c.Request.Context(), id, cmd)
	if err != nil {
		h.fail(c, "failed to update task", err)
		return
	}
	response.Success(c, dto)
}

func (h *Handler) DeleteTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.tasks.DeleteTask(c.Request.Context(), id); err != nil {
		h.fail(c, "failed to delete task", err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) AddMethod(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var cmd application.MethodCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	dto, err := h.tasks.AddMethod(c.Request.Context(), id, cmd)
	if err != nil {
		h.fail(c, "failed to add method", err)
		return
	}
	response.Created(c, dto)
}

func (h *Handler) UpdateMethod(c *gin.Context) {
	id, ok := pathID(c, "method_id")
	if !ok {
		return
	}
	var cmd application.MethodCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	dto, err := h.tasks.UpdateMethod(c.Request.Context(), id, cmd)
	if err != nil {
		h.fail(c, "failed to update method", err)
		return
	}
	response.Success(c, dto)
}

func (h *Handler) DeleteMethod(c *gin.Context) {
	id, ok := pathID(c, "method_id")
	if !ok {
		return
	}
	if err := h.tasks.DeleteMethod(c.Request.Context(), id); err != nil {
		h.fail(c, "failed to delete method", err)
		return
	}
	response.NoContent(c)
}

// RunTask 运行单个任务
func (h *Handler) RunTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	out, err := h.reconcile.RunReconcile(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "failed to run reconcile", err)
		return
	}
	response.Success(c, out)
}

// Run 批量运行，all 为真时运行全部任务
func (h *Handler) Run(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	var (
		out []*application.HistoryDTO
		err error
	)
	if req.All {
		out, err = h.reconcile.RunAll(c.Request.Context())
	} else {
		out, err = h.reconcile.RunReconcile(c.Request.Context(), req.TaskIDs...)
	}
	if err != nil {
		h.fail(c, "failed to run reconcile", err)
		return
	}
	response.Success(c, out)
}

func (h *Handler) ListHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid limit", "")
		return
	}
	list, err := h.tasks.ListHistory(c.Request.Context(), id, limit)
	if err != nil {
		h.fail(c, "failed to list history", err)
		return
	}
	response.Success(c, list)
}

func (h *Handler) LastHistoryReconcile(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.respondAction(c, func() (*application.ActionDTO, error) {
		return h.reconcile.LastHistoryReconcile(c.Request.Context(), id)
	})
}

func (h *Handler) LastHistoryPartial(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.respondAction(c, func() (*application.ActionDTO, error) {
		return h.reconcile.LastHistoryPartial(c.Request.Context(), id)
	})
}

// LastHistoryReconcileBatch 与界面按钮一致：选中记录必须恰好一条
func (h *Handler) LastHistoryReconcileBatch(c *gin.Context) {
	var req IDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	h.respondAction(c, func() (*application.ActionDTO, error) {
		return h.reconcile.LastHistoryReconcile(c.Request.Context(), req.TaskIDs...)
	})
}

func (h *Handler) LastHistoryPartialBatch(c *gin.Context) {
	var req IDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	h.respondAction(c, func() (*application.ActionDTO, error) {
		return h.reconcile.LastHistoryPartial(c.Request.Context(), req.TaskIDs...)
	})
}

func (h *Handler) respondAction(c *gin.Context, open func() (*application.ActionDTO, error)) {
	action, err := open()
	if err != nil {
		h.fail(c, "failed to open last history", err)
		return
	}
	response.Success(c, action)
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), msg, "path", c.FullPath(), "error", err)
	}
	response.ErrorWithStatus(c, status, msg, err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound), errors.Is(err, domain.ErrMethodNotFound), errors.Is(err, domain.ErrNoHistory):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrSingleIDExpected), errors.Is(err, domain.ErrUnknownMethod):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRunInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid "+name, c.Param(name))
		return 0, false
	}
	return id, true
}
