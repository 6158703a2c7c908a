package domain

import "context"

// Reconciler 匹配插件，对一组参数执行自动对账
type Reconciler interface {
	// AutomaticReconcile 返回完全对账与部分对账的分录 ID
	AutomaticReconcile(ctx context.Context) (reconciledLineIDs, partialLineIDs []uint64, err error)
}

// ReconcilerFactory 以运行参数实例化匹配插件
type ReconcilerFactory func(ctx context.Context, params RunParams) (Reconciler, error)

// ReconcilerFunc 将函数适配为 Reconciler
type ReconcilerFunc func(ctx context.Context) ([]uint64, []uint64, error)

func (f ReconcilerFunc) AutomaticReconcile(ctx context.Context) ([]uint64, []uint64, error) {
	return f(ctx)
}
