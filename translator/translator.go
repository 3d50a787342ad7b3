package translator

import (
	"reflect"

	"github.com/hatlonely/tql/dialect"
	"github.com/hatlonely/tql/errs"
	"github.com/hatlonely/tql/expr"
	"github.com/hatlonely/tql/model"
	"github.com/pkg/errors"
)

// 运算符优先级，数值越大结合越紧
const (
	precOr = iota + 1
	precXor
	precAnd
	precNot
	precCompare
	precAdditive
	precMultiplicative
	precUnary
	precPrimary
)

type Options struct {
	// Prefix 列名带表名前缀
	Prefix bool
	// Alias 自连接时替代表名的别名
	Alias string
}

// Translator 把绑定到表类型的表达式翻译成 SQL 片段
type Translator struct {
	registry *model.Registry
	dialect  dialect.Dialect
}

func New(registry *model.Registry, d dialect.Dialect) *Translator {
	return &Translator{registry: registry, dialect: d}
}

func (t *Translator) Dialect() dialect.Dialect {
	return t.dialect
}

func (t *Translator) Registry() *model.Registry {
	return t.registry
}

// Column 投影中的一列
type Column struct {
	Fragment *Fragment
	// Alias 输出列名，为空表示不需要别名
	Alias string
	// Field 直接引用的字段，计算列为 nil
	Field *model.FieldDefinition
}

// Condition 翻译后的谓词
type Condition struct {
	Fragment *Fragment
	// Compound 顶层是 OR，和其他条件用 AND 连接时需要加括号
	Compound bool
}

// Translate 翻译谓词
func (t *Translator) Translate(l expr.Lambda, opts Options) (*Fragment, error) {
	cond, err := t.TranslateCondition(l, opts)
	if err != nil {
		return nil, err
	}
	return cond.Fragment, nil
}

func (t *Translator) TranslateCondition(l expr.Lambda, opts Options) (Condition, error) {
	c, err := t.scope(l, opts)
	if err != nil {
		return Condition{}, err
	}
	res, err := c.visit(l.Body)
	if err != nil {
		return Condition{}, err
	}
	cond, err := c.condition(res, l.Body)
	if err != nil {
		return Condition{}, err
	}
	return Condition{Fragment: cond.frag, Compound: cond.prec < precAnd}, nil
}

// TranslateValue 翻译单个值表达式，例如排序列或聚合参数
func (t *Translator) TranslateValue(l expr.Lambda, opts Options) (*Fragment, error) {
	c, err := t.scope(l, opts)
	if err != nil {
		return nil, err
	}
	if _, ok := l.Body.(*expr.New); ok {
		return nil, errs.Unsupported(l.Body, "expected a single value")
	}
	res, err := c.visit(l.Body)
	if err != nil {
		return nil, err
	}
	return res.frag, nil
}

// TranslateValues 翻译成员或对象构造，对象构造的每个参数各成一项
func (t *Translator) TranslateValues(l expr.Lambda, opts Options) ([]*Fragment, error) {
	columns, err := t.TranslateProjection(l, opts)
	if err != nil {
		return nil, err
	}
	frags := make([]*Fragment, 0, len(columns))
	for _, col := range columns {
		frags = append(frags, col.Fragment)
	}
	return frags, nil
}

// TranslateProjection 翻译投影，对象构造只能出现在最外层
func (t *Translator) TranslateProjection(l expr.Lambda, opts Options) ([]Column, error) {
	c, err := t.scope(l, opts)
	if err != nil {
		return nil, err
	}

	n, ok := l.Body.(*expr.New)
	if !ok {
		col, err := c.column(l.Body, "")
		if err != nil {
			return nil, err
		}
		return []Column{col}, nil
	}

	if len(n.Args) == 0 {
		return nil, errs.Unsupported(n, "empty projection")
	}
	columns := make([]Column, 0, len(n.Args))
	for i, arg := range n.Args {
		alias := ""
		if i < len(n.Members) {
			alias = n.Members[i]
		}
		col, err := c.column(arg, alias)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// ColumnRef 渲染列引用
func (t *Translator) ColumnRef(def *model.ModelDefinition, field *model.FieldDefinition, opts Options) string {
	column := t.dialect.QuoteIdentifier(field.Column)
	switch {
	case opts.Alias != "":
		return t.dialect.QuoteIdentifier(opts.Alias) + "." + column
	case opts.Prefix:
		return t.dialect.QuoteTable(def) + "." + column
	}
	return column
}

// Render 渲染投影列，别名与列名相同时省略
func (col Column) Render(d dialect.Dialect) *Fragment {
	if col.Alias == "" || (col.Field != nil && col.Field.Column == col.Alias) {
		return col.Fragment
	}
	return Concat(col.Fragment, Text(" AS "+d.QuoteIdentifier(col.Alias)))
}

type scope struct {
	t     *Translator
	param *expr.Parameter
	def   *model.ModelDefinition
	opts  Options
}

func (t *Translator) scope(l expr.Lambda, opts Options) (*scope, error) {
	if l.Param == nil || l.Body == nil {
		return nil, errors.New("lambda must have a parameter and a body")
	}
	def, err := t.registry.Resolve(l.Param.Type)
	if err != nil {
		return nil, err
	}
	return &scope{t: t, param: l.Param, def: def, opts: opts}, nil
}

func (c *scope) column(e expr.Expr, alias string) (Column, error) {
	if expr.ContainsNew(e) {
		return Column{}, errs.Unsupported(e, "nested object construction in projection")
	}
	res, err := c.visit(e)
	if err != nil {
		return Column{}, err
	}
	return Column{Fragment: res.frag, Alias: alias, Field: res.field}, nil
}

// reflectKind 解引用后的类型种类
func reflectKind(v any) reflect.Kind {
	v = expr.Indirect(v)
	if v == nil {
		return reflect.Invalid
	}
	return reflect.TypeOf(v).Kind()
}
