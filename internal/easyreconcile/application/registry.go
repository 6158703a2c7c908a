package application

import (
	"fmt"
	"sync"

	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
)

// Registry 按名称登记可用的对账方法
type Registry struct {
	mu        sync.RWMutex
	order     []domain.MethodName
	labels    map[domain.MethodName]string
	factories map[domain.MethodName]domain.ReconcilerFactory
}

func NewRegistry() *Registry {
	return &Registry{
		labels:    make(map[domain.MethodName]string),
		factories: make(map[domain.MethodName]domain.ReconcilerFactory),
	}
}

// Register 登记方法；重复登记同名方法返回错误
func (r *Registry) Register(name domain.MethodName, label string, factory domain.ReconcilerFactory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("%w: method name and factory are required", domain.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: method %s already registered", domain.ErrInvalidArgument, name)
	}
	r.order = append(r.order, name)
	r.labels[name] = label
	r.factories[name] = factory
	return nil
}

// Lookup 按名称查找插件工厂
func (r *Registry) Lookup(name domain.MethodName) (domain.ReconcilerFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Methods 按登记顺序返回可选方法
func (r *Registry) Methods() []domain.Choice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Choice, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, domain.Choice{Value: string(name), Label: r.labels[name]})
	}
	return out
}
