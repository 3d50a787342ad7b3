package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// UnknownModelError 类型未在元数据注册表中注册
type UnknownModelError struct {
	Type string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %s", e.Type)
}

// UnknownColumnError 模型中找不到对应的成员
type UnknownColumnError struct {
	Model  string
	Member string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %s.%s", e.Model, e.Member)
}

// UnsupportedExpressionError 表达式节点或形态不在支持的语法范围内
type UnsupportedExpressionError struct {
	Node   string
	Reason string
}

func (e *UnsupportedExpressionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unsupported expression %s", e.Node)
	}
	return fmt.Sprintf("unsupported expression %s: %s", e.Node, e.Reason)
}

// UnassociatedTableError 引用的表还没有通过 join 关联到基础表
type UnassociatedTableError struct {
	Model string
	Base  string
}

func (e *UnassociatedTableError) Error() string {
	return fmt.Sprintf("table %s is not associated with %s, add a join first", e.Model, e.Base)
}

// AggregateConflictError 聚合列与普通列混用
type AggregateConflictError struct {
	Column string
}

func (e *AggregateConflictError) Error() string {
	return fmt.Sprintf("cannot mix aggregate and raw select columns at %s", e.Column)
}

// DialectNotRegisteredError 当前后端没有注册方言
type DialectNotRegisteredError struct {
	Namespace string
	Dialect   string
}

func (e *DialectNotRegisteredError) Error() string {
	return fmt.Sprintf("dialect %s:%s is not registered", e.Namespace, e.Dialect)
}

func Unsupported(node fmt.Stringer, format string, args ...any) error {
	return errors.WithStack(&UnsupportedExpressionError{Node: node.String(), Reason: fmt.Sprintf(format, args...)})
}

func IsUnknownModel(err error) bool {
	var e *UnknownModelError
	return errors.As(err, &e)
}

func IsUnknownColumn(err error) bool {
	var e *UnknownColumnError
	return errors.As(err, &e)
}

func IsUnsupportedExpression(err error) bool {
	var e *UnsupportedExpressionError
	return errors.As(err, &e)
}

func IsUnassociatedTable(err error) bool {
	var e *UnassociatedTableError
	return errors.As(err, &e)
}

func IsAggregateConflict(err error) bool {
	var e *AggregateConflictError
	return errors.As(err, &e)
}

func IsDialectNotRegistered(err error) bool {
	var e *DialectNotRegisteredError
	return errors.As(err, &e)
}
