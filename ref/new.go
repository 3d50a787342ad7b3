package ref

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type constructor struct {
	originalFunc any
	newFunc      reflect.Value
	hasOptions   bool
	returnsError bool
}

// newConstructor 校验构造函数签名：0 或 1 个参数，返回对象或 (对象, error)
func newConstructor(newFunc any) (*constructor, error) {
	funcValue := reflect.ValueOf(newFunc)
	if funcValue.Kind() != reflect.Func {
		return nil, errors.New("newFunc must be a function")
	}

	funcType := funcValue.Type()
	if funcType.NumIn() > 1 {
		return nil, errors.Errorf("newFunc must have 0 or 1 input parameters, got %d", funcType.NumIn())
	}
	if funcType.NumOut() != 1 && funcType.NumOut() != 2 {
		return nil, errors.Errorf("newFunc must have 1 or 2 return values, got %d", funcType.NumOut())
	}
	if funcType.NumOut() == 2 && !funcType.Out(1).Implements(errorType) {
		return nil, errors.New("second return value must be error type")
	}

	return &constructor{
		originalFunc: newFunc,
		newFunc:      funcValue,
		hasOptions:   funcType.NumIn() == 1,
		returnsError: funcType.NumOut() == 2,
	}, nil
}

func (c *constructor) new(options any) (any, error) {
	var args []reflect.Value
	if c.hasOptions {
		if options == nil {
			return nil, errors.New("constructor requires options but got nil")
		}
		converted, err := c.convertOptions(options)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to convert options")
		}
		args = []reflect.Value{converted}
	}

	results := c.newFunc.Call(args)
	if c.returnsError && !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	return results[0].Interface(), nil
}

// Convertable 可以把自身转换为构造函数参数类型的配置数据
type Convertable interface {
	// ConvertTo 将配置数据转换为指定的对象类型，object 为目标对象的指针
	ConvertTo(object interface{}) error
}

// convertOptions Convertable 类型的 options 转换为构造函数期望的参数类型，其他类型原样传入
func (c *constructor) convertOptions(options any) (reflect.Value, error) {
	paramType := c.newFunc.Type().In(0)

	convertable, ok := options.(Convertable)
	if !ok {
		value := reflect.ValueOf(options)
		if !value.Type().AssignableTo(paramType) {
			return reflect.Value{}, errors.Errorf("options type %v is not assignable to %v", value.Type(), paramType)
		}
		return value, nil
	}

	if paramType.Kind() == reflect.Ptr {
		target := reflect.New(paramType.Elem())
		if err := convertable.ConvertTo(target.Interface()); err != nil {
			return reflect.Value{}, errors.WithMessagef(err, "failed to convert to %v", paramType)
		}
		return target, nil
	}

	target := reflect.New(paramType)
	if err := convertable.ConvertTo(target.Interface()); err != nil {
		return reflect.Value{}, errors.WithMessagef(err, "failed to convert to %v", paramType)
	}
	return target.Elem(), nil
}

var nameConstructorMap sync.Map

func key(namespace string, type_ string) string {
	return namespace + ":" + type_
}

func Register(namespace string, type_ string, newFunc any) error {
	if existing, ok := nameConstructorMap.Load(key(namespace, type_)); ok {
		// 同一个函数重复注册直接忽略
		if reflect.ValueOf(existing.(*constructor).originalFunc).Pointer() == reflect.ValueOf(newFunc).Pointer() {
			return nil
		}
		return errors.Errorf("constructor for %s:%s already registered with different function", namespace, type_)
	}

	c, err := newConstructor(newFunc)
	if err != nil {
		return errors.WithMessage(err, "newConstructor failed")
	}

	nameConstructorMap.Store(key(namespace, type_), c)
	return nil
}

// typeKey 使用包路径和类型名作为默认的 namespace 和 type
func typeKey[T any]() (string, string, error) {
	tType := reflect.TypeOf((*T)(nil)).Elem()
	for tType.Kind() == reflect.Ptr {
		tType = tType.Elem()
	}
	if tType.PkgPath() == "" || tType.Name() == "" {
		return "", "", errors.Errorf("cannot determine package path or type name for type %v", tType)
	}
	return tType.PkgPath(), tType.Name(), nil
}

func RegisterT[T any](newFunc any) error {
	namespace, type_, err := typeKey[T]()
	if err != nil {
		return err
	}
	return Register(namespace, type_, newFunc)
}

func MustRegister(namespace string, type_ string, newFunc any) {
	if err := Register(namespace, type_, newFunc); err != nil {
		panic(err)
	}
}

func MustRegisterT[T any](newFunc any) {
	if err := RegisterT[T](newFunc); err != nil {
		panic(err)
	}
}

// Registered 判断构造函数是否已注册
func Registered(namespace string, type_ string) bool {
	_, ok := nameConstructorMap.Load(key(namespace, type_))
	return ok
}

type TypeOptions struct {
	Namespace string `cfg:"namespace"`
	Type      string `cfg:"type"`
	Options   any    `cfg:"options"`
}

func New(namespace string, type_ string, options any) (any, error) {
	value, ok := nameConstructorMap.Load(key(namespace, type_))
	if !ok {
		return nil, errors.Errorf("constructor not found for %s:%s", namespace, type_)
	}
	return value.(*constructor).new(options)
}

func NewT[T any](options any) (T, error) {
	var t T
	namespace, type_, err := typeKey[T]()
	if err != nil {
		return t, err
	}

	obj, err := New(namespace, type_, options)
	if err != nil {
		return t, err
	}

	result, ok := obj.(T)
	if !ok {
		return t, errors.Errorf("created object is not of type %T", t)
	}
	return result, nil
}
