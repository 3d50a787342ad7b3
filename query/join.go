package query

import (
	"github.com/hatlonely/tql/expr"
)

// JoinKind 连接类型
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
	// JoinSelf 表与自身连接，被连接的一侧使用别名
	JoinSelf
)

func (k JoinKind) String() string {
	switch k {
	case JoinInner, JoinSelf:
		return "INNER JOIN"
	case JoinLeft:
		return "LEFT OUTER JOIN"
	case JoinRight:
		return "RIGHT OUTER JOIN"
	case JoinFull:
		return "FULL OUTER JOIN"
	case JoinCross:
		return "CROSS JOIN"
	}
	return "JOIN"
}

type joinOptions struct {
	alias         string
	sourceColumns *expr.Lambda
	destColumns   *expr.Lambda
	sourceWhere   *expr.Lambda
	destWhere     *expr.Lambda
}

type JoinOption func(*joinOptions)

// WithAlias 被连接的表使用别名，自连接默认使用 表名+2
func WithAlias(alias string) JoinOption {
	return func(o *joinOptions) {
		o.alias = alias
	}
}

// WithSourceColumns 同时选择源表的列
func WithSourceColumns(l expr.Lambda) JoinOption {
	return func(o *joinOptions) {
		o.sourceColumns = &l
	}
}

func WithDestColumns(l expr.Lambda) JoinOption {
	return func(o *joinOptions) {
		o.destColumns = &l
	}
}

// WithSourceWhere 源表上的附加条件，以 AND 追加在 WHERE 末尾
func WithSourceWhere(l expr.Lambda) JoinOption {
	return func(o *joinOptions) {
		o.sourceWhere = &l
	}
}

func WithDestWhere(l expr.Lambda) JoinOption {
	return func(o *joinOptions) {
		o.destWhere = &l
	}
}
