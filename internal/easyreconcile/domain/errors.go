package domain

import "errors"

var (
	ErrTaskNotFound     = errors.New("reconcile task not found")
	ErrMethodNotFound   = errors.New("reconcile method not found")
	ErrNoHistory        = errors.New("reconcile task has no history")
	ErrUnknownMethod    = errors.New("unknown reconcile method")
	ErrSingleIDExpected = errors.New("only 1 id expected")
	ErrRunInProgress    = errors.New("reconcile run already in progress")

	// ErrInvalidArgument 校验失败，具体原因包装在错误信息中
	ErrInvalidArgument = errors.New("invalid argument")
)
