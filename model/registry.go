package model

import (
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hatlonely/tql/errs"
	"github.com/pkg/errors"
)

type RegistryOptions struct {
	// Naming 默认表名/列名推导策略：identity, snake, plural
	Naming string `cfg:"naming" def:"identity" validate:"omitempty,oneof=identity snake plural"`
}

type snapshot struct {
	byType map[reflect.Type]*ModelDefinition
	byName map[string]*ModelDefinition
}

// Registry 模型元数据注册表
// 读操作无锁，写操作复制当前快照后整体替换
type Registry struct {
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
	builder *Builder
}

func NewRegistry() *Registry {
	r, _ := NewRegistryWithOptions(&RegistryOptions{Naming: string(NamingIdentity)})
	return r
}

func NewRegistryWithOptions(options *RegistryOptions) (*Registry, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	namer, err := NewNamer(Naming(options.Naming))
	if err != nil {
		return nil, errors.WithMessage(err, "NewNamer failed")
	}

	r := &Registry{builder: NewBuilder(namer)}
	r.current.Store(&snapshot{
		byType: map[reflect.Type]*ModelDefinition{},
		byName: map[string]*ModelDefinition{},
	})
	return r, nil
}

var defaultRegistry = NewRegistry()

// Default 进程级默认注册表
func Default() *Registry {
	return defaultRegistry
}

// Register 扫描结构体并注册，已注册的类型直接返回已有定义
func (r *Registry) Register(v any) (*ModelDefinition, error) {
	rt, ok := v.(reflect.Type)
	if !ok {
		rt = reflect.TypeOf(v)
	}
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil {
		return nil, errors.New("cannot register nil")
	}

	if def, ok := r.current.Load().byType[rt]; ok {
		return def, nil
	}

	def, err := r.builder.FromType(rt)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to build model %v", rt)
	}
	return r.publish(def, false), nil
}

func RegisterT[T any](r *Registry) (*ModelDefinition, error) {
	return r.Register(reflect.TypeOf((*T)(nil)).Elem())
}

func (r *Registry) MustRegister(vs ...any) {
	for _, v := range vs {
		if _, err := r.Register(v); err != nil {
			panic(err)
		}
	}
}

// RegisterDefinition 注册手工构建的模型定义，会覆盖同类型的已有定义
func (r *Registry) RegisterDefinition(def *ModelDefinition) error {
	if def == nil || def.Type == nil {
		return errors.New("definition must carry a type")
	}
	if def.Name == "" {
		def.Name = def.Type.Name()
	}
	if def.Table == "" {
		def.Table = def.Name
	}
	def.buildIndex()
	r.publish(def, true)
	return nil
}

func (r *Registry) publish(def *ModelDefinition, replace bool) *ModelDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current.Load()
	if existing, ok := old.byType[def.Type]; ok && !replace {
		return existing
	}

	next := &snapshot{
		byType: make(map[reflect.Type]*ModelDefinition, len(old.byType)+1),
		byName: make(map[string]*ModelDefinition, len(old.byName)+1),
	}
	for k, v := range old.byType {
		next.byType[k] = v
	}
	for k, v := range old.byName {
		next.byName[k] = v
	}
	next.byType[def.Type] = def
	if existing, ok := next.byName[def.Name]; !ok || existing.Type == def.Type {
		next.byName[def.Name] = def
	}

	r.current.Store(next)
	return def
}

// Resolve 按类型查找模型定义，指针类型会被解引用
func (r *Registry) Resolve(rt reflect.Type) (*ModelDefinition, error) {
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil {
		return nil, errors.WithStack(&errs.UnknownModelError{Type: "<nil>"})
	}
	if def, ok := r.current.Load().byType[rt]; ok {
		return def, nil
	}
	return nil, errors.WithStack(&errs.UnknownModelError{Type: rt.String()})
}

func ResolveT[T any](r *Registry) (*ModelDefinition, error) {
	return r.Resolve(reflect.TypeOf((*T)(nil)).Elem())
}

// ResolveName 按类型名查找模型定义，用于解析外键引用
func (r *Registry) ResolveName(name string) (*ModelDefinition, error) {
	if def, ok := r.current.Load().byName[name]; ok {
		return def, nil
	}
	return nil, errors.WithStack(&errs.UnknownModelError{Type: name})
}

// Models 返回按名称排序的全部模型
func (r *Registry) Models() []*ModelDefinition {
	s := r.current.Load()
	models := make([]*ModelDefinition, 0, len(s.byType))
	for _, def := range s.byType {
		models = append(models, def)
	}
	sort.Slice(models, func(i, j int) bool {
		if models[i].Name == models[j].Name {
			return models[i].Type.String() < models[j].Type.String()
		}
		return models[i].Name < models[j].Name
	})
	return models
}
