package query

import (
	"reflect"

	"github.com/hatlonely/tql/dialect"
	"github.com/hatlonely/tql/errs"
	"github.com/hatlonely/tql/expr"
	"github.com/hatlonely/tql/model"
	"github.com/hatlonely/tql/translator"
	"github.com/pkg/errors"
)

const (
	combineAnd = " AND "
	combineOr  = " OR "
)

type joinClause struct {
	kind  JoinKind
	def   *model.ModelDefinition
	alias string
	on    *translator.Fragment
	where []translator.Condition
}

type whereEntry struct {
	combinator string
	cond       translator.Condition
}

type orderByEntry struct {
	frag *translator.Fragment
	desc bool
}

type selectColumn struct {
	frag      *translator.Fragment
	aggregate bool
}

// Builder 以一个基础表为起点累积连接、条件、排序和投影，最后一次性渲染成 SELECT 语句
//
// Builder 不是并发安全的，每个查询使用自己的 Builder
type Builder struct {
	tr   *translator.Translator
	base *model.ModelDefinition

	// associated 已经关联到基础表的类型，值为该表的别名
	associated map[reflect.Type]string
	joins      []*joinClause
	wheres     []whereEntry
	orderBy    []orderByEntry
	columns    []selectColumn
	distinct   bool
	offset     int
	limit      *int
}

func New(tr *translator.Translator, baseType reflect.Type) (*Builder, error) {
	if tr == nil {
		return nil, errors.New("translator is nil")
	}
	base, err := tr.Registry().Resolve(baseType)
	if err != nil {
		return nil, errors.WithMessage(err, "resolve base type failed")
	}
	return &Builder{
		tr:         tr,
		base:       base,
		associated: map[reflect.Type]string{base.Type: ""},
	}, nil
}

func NewT[T any](tr *translator.Translator) (*Builder, error) {
	return New(tr, reflect.TypeOf((*T)(nil)).Elem())
}

func (b *Builder) Base() *model.ModelDefinition {
	return b.base
}

func (b *Builder) Dialect() dialect.Dialect {
	return b.tr.Dialect()
}

func (b *Builder) resolve(rt reflect.Type) (*model.ModelDefinition, error) {
	if rt == nil {
		return nil, errors.New("type is nil")
	}
	return b.tr.Registry().Resolve(rt)
}

// options 已关联类型的翻译选项，未关联时返回 UnassociatedTableError
func (b *Builder) options(def *model.ModelDefinition) (translator.Options, error) {
	alias, ok := b.associated[def.Type]
	if !ok {
		return translator.Options{}, errors.WithStack(&errs.UnassociatedTableError{Model: def.Name, Base: b.base.Name})
	}
	return translator.Options{Prefix: true, Alias: alias}, nil
}

func (b *Builder) lambdaOptions(l expr.Lambda) (translator.Options, error) {
	if l.Param == nil {
		return translator.Options{}, errors.New("lambda has no parameter")
	}
	def, err := b.resolve(l.Param.Type)
	if err != nil {
		return translator.Options{}, err
	}
	return b.options(def)
}

// Join 以 source 和 dest 两个成员相等为条件连接两个表，至少一侧必须已经关联
//
// 两侧都已关联时再次连接 dest，必须用 WithAlias 指定别名
func (b *Builder) Join(kind JoinKind, source expr.Lambda, dest expr.Lambda, opts ...JoinOption) error {
	if kind == JoinCross {
		return errors.New("use CrossJoin for cross joins")
	}
	if source.Param == nil || dest.Param == nil {
		return errors.New("join lambda has no parameter")
	}
	return b.join(kind, source.Param.Type, dest.Param.Type, func(src, dst translator.Options) (*translator.Fragment, error) {
		left, err := b.tr.TranslateValue(source, src)
		if err != nil {
			return nil, errors.WithMessage(err, "translate join source failed")
		}
		right, err := b.tr.TranslateValue(dest, dst)
		if err != nil {
			return nil, errors.WithMessage(err, "translate join dest failed")
		}
		return translator.Concat(left, translator.Text(" = "), right), nil
	}, opts)
}

// JoinOn 根据外键引用推断连接列
func (b *Builder) JoinOn(kind JoinKind, sourceType, destType reflect.Type, opts ...JoinOption) error {
	if kind == JoinCross {
		return errors.New("use CrossJoin for cross joins")
	}
	srcDef, err := b.resolve(sourceType)
	if err != nil {
		return err
	}
	dstDef, err := b.resolve(destType)
	if err != nil {
		return err
	}

	var srcField, dstField *model.FieldDefinition
	if fk := srcDef.ForeignKeyTo(dstDef); fk != nil && dstDef.PrimaryKey() != nil {
		srcField, dstField = fk, dstDef.PrimaryKey()
	} else if fk := dstDef.ForeignKeyTo(srcDef); fk != nil && srcDef.PrimaryKey() != nil {
		srcField, dstField = srcDef.PrimaryKey(), fk
	} else {
		return errors.Errorf("no reference between %s and %s", srcDef.Name, dstDef.Name)
	}

	return b.join(kind, sourceType, destType, func(src, dst translator.Options) (*translator.Fragment, error) {
		return translator.Text(b.tr.ColumnRef(srcDef, srcField, src) + " = " + b.tr.ColumnRef(dstDef, dstField, dst)), nil
	}, opts)
}

func (b *Builder) CrossJoin(sourceType, destType reflect.Type, opts ...JoinOption) error {
	return b.join(JoinCross, sourceType, destType, nil, opts)
}

type onFunc func(src, dst translator.Options) (*translator.Fragment, error)

func (b *Builder) join(kind JoinKind, sourceType, destType reflect.Type, on onFunc, opts []JoinOption) error {
	o := &joinOptions{}
	for _, opt := range opts {
		opt(o)
	}

	srcDef, err := b.resolve(sourceType)
	if err != nil {
		return err
	}
	dstDef, err := b.resolve(destType)
	if err != nil {
		return err
	}
	srcAlias, srcOK := b.associated[srcDef.Type]
	dstAlias, dstOK := b.associated[dstDef.Type]
	if !srcOK && !dstOK {
		return errors.WithStack(&errs.UnassociatedTableError{Model: srcDef.Name, Base: b.base.Name})
	}

	// 出现在 JOIN 行的表：未关联的一侧，都已关联时为 dest
	joined, reverse := dstDef, false
	if !srcOK {
		joined, reverse = srcDef, true
	}

	self := srcDef == dstDef
	if kind == JoinSelf && !self {
		return errors.Errorf("self join requires the same type on both sides, got %s and %s", srcDef.Name, dstDef.Name)
	}
	if srcOK && dstOK && !self && o.alias == "" {
		return errors.Errorf("%s is already joined, use WithAlias to join it again", dstDef.Name)
	}
	alias := o.alias
	if alias == "" && self {
		alias = joined.Table + "2"
	}

	src := translator.Options{Prefix: true, Alias: srcAlias}
	dst := translator.Options{Prefix: true, Alias: dstAlias}
	if alias != "" && reverse {
		src.Alias = alias
	} else if alias != "" {
		dst.Alias = alias
	}

	clause := &joinClause{kind: kind, def: joined, alias: alias}
	if on != nil {
		if clause.on, err = on(src, dst); err != nil {
			return err
		}
	}

	var columns []selectColumn
	for _, side := range []struct {
		l    *expr.Lambda
		def  *model.ModelDefinition
		opts translator.Options
	}{{o.sourceColumns, srcDef, src}, {o.destColumns, dstDef, dst}} {
		if side.l == nil {
			continue
		}
		if err := b.sameType(*side.l, side.def); err != nil {
			return err
		}
		cols, err := b.project(*side.l, side.opts)
		if err != nil {
			return err
		}
		columns = append(columns, cols...)
	}
	if err := b.checkAggregate(columns, false); err != nil {
		return err
	}

	for _, side := range []struct {
		l    *expr.Lambda
		def  *model.ModelDefinition
		opts translator.Options
	}{{o.sourceWhere, srcDef, src}, {o.destWhere, dstDef, dst}} {
		if side.l == nil {
			continue
		}
		if err := b.sameType(*side.l, side.def); err != nil {
			return err
		}
		cond, err := b.tr.TranslateCondition(*side.l, side.opts)
		if err != nil {
			return errors.WithMessage(err, "translate join where failed")
		}
		clause.where = append(clause.where, cond)
	}

	b.joins = append(b.joins, clause)
	b.columns = append(b.columns, columns...)
	// 自连接后基础表仍用原名，其他情况之后的引用都指向最近一次连接的别名
	if !self {
		b.associated[joined.Type] = alias
	}
	return nil
}

func (b *Builder) sameType(l expr.Lambda, def *model.ModelDefinition) error {
	if l.Param == nil {
		return errors.New("lambda has no parameter")
	}
	got, err := b.resolve(l.Param.Type)
	if err != nil {
		return err
	}
	if got != def {
		return errors.Errorf("lambda on %s used for %s", got.Name, def.Name)
	}
	return nil
}

// Where 同 And
func (b *Builder) Where(l expr.Lambda) error {
	return b.And(l)
}

func (b *Builder) And(l expr.Lambda) error {
	return b.where(combineAnd, l)
}

func (b *Builder) Or(l expr.Lambda) error {
	return b.where(combineOr, l)
}

func (b *Builder) where(combinator string, l expr.Lambda) error {
	opts, err := b.lambdaOptions(l)
	if err != nil {
		return err
	}
	cond, err := b.tr.TranslateCondition(l, opts)
	if err != nil {
		return errors.WithMessage(err, "translate where failed")
	}
	b.wheres = append(b.wheres, whereEntry{combinator: combinator, cond: cond})
	return nil
}

func (b *Builder) OrderBy(l expr.Lambda) error {
	return b.order(l, false)
}

func (b *Builder) OrderByDescending(l expr.Lambda) error {
	return b.order(l, true)
}

func (b *Builder) order(l expr.Lambda, desc bool) error {
	opts, err := b.lambdaOptions(l)
	if err != nil {
		return err
	}
	frags, err := b.tr.TranslateValues(l, opts)
	if err != nil {
		return errors.WithMessage(err, "translate order by failed")
	}
	for _, frag := range frags {
		b.orderBy = append(b.orderBy, orderByEntry{frag: frag, desc: desc})
	}
	return nil
}

// Select 选择成员或对象构造中的各个参数，对象构造的成员名作为列别名
func (b *Builder) Select(l expr.Lambda) error {
	opts, err := b.lambdaOptions(l)
	if err != nil {
		return err
	}
	columns, err := b.project(l, opts)
	if err != nil {
		return err
	}
	if err := b.checkAggregate(columns, false); err != nil {
		return err
	}
	b.columns = append(b.columns, columns...)
	return nil
}

// SelectAll 选择一个已关联表的全部列
func (b *Builder) SelectAll(rt reflect.Type) error {
	def, err := b.resolve(rt)
	if err != nil {
		return err
	}
	opts, err := b.options(def)
	if err != nil {
		return err
	}
	columns := make([]selectColumn, 0, len(def.Fields))
	for _, f := range def.Fields {
		columns = append(columns, selectColumn{frag: translator.Text(b.tr.ColumnRef(def, f, opts))})
	}
	if err := b.checkAggregate(columns, false); err != nil {
		return err
	}
	b.columns = append(b.columns, columns...)
	return nil
}

func (b *Builder) project(l expr.Lambda, opts translator.Options) ([]selectColumn, error) {
	cols, err := b.tr.TranslateProjection(l, opts)
	if err != nil {
		return nil, errors.WithMessage(err, "translate projection failed")
	}
	columns := make([]selectColumn, 0, len(cols))
	for _, col := range cols {
		columns = append(columns, selectColumn{frag: col.Render(b.tr.Dialect())})
	}
	return columns, nil
}

func (b *Builder) SelectMax(l expr.Lambda, alias string) error {
	return b.selectAggregate(dialect.FuncMax, l, alias)
}

func (b *Builder) SelectMin(l expr.Lambda, alias string) error {
	return b.selectAggregate(dialect.FuncMin, l, alias)
}

func (b *Builder) SelectCount(l expr.Lambda, alias string) error {
	return b.selectAggregate(dialect.FuncCount, l, alias)
}

func (b *Builder) SelectAvg(l expr.Lambda, alias string) error {
	return b.selectAggregate(dialect.FuncAvg, l, alias)
}

func (b *Builder) SelectSum(l expr.Lambda, alias string) error {
	return b.selectAggregate(dialect.FuncSum, l, alias)
}

// SelectCountAll COUNT(*)
func (b *Builder) SelectCountAll(alias string) error {
	return b.addAggregate(translator.Text(b.tr.Dialect().Function(dialect.FuncCount, "*")), alias)
}

func (b *Builder) selectAggregate(fn dialect.Func, l expr.Lambda, alias string) error {
	opts, err := b.lambdaOptions(l)
	if err != nil {
		return err
	}
	frag, err := b.tr.TranslateValue(l, opts)
	if err != nil {
		return errors.WithMessagef(err, "translate %s failed", fn)
	}
	return b.addAggregate(translator.Function(b.tr.Dialect(), fn, frag), alias)
}

func (b *Builder) addAggregate(frag *translator.Fragment, alias string) error {
	if alias != "" {
		frag = translator.Concat(frag, translator.Text(" AS "+b.tr.Dialect().QuoteIdentifier(alias)))
	}
	column := selectColumn{frag: frag, aggregate: true}
	if err := b.checkAggregate([]selectColumn{column}, true); err != nil {
		return err
	}
	b.columns = append(b.columns, column)
	return nil
}

// checkAggregate 聚合列和普通列不能同时出现
func (b *Builder) checkAggregate(columns []selectColumn, aggregate bool) error {
	if len(columns) == 0 {
		return nil
	}
	for _, c := range b.columns {
		if c.aggregate != aggregate {
			return errors.WithStack(&errs.AggregateConflictError{Column: columns[0].frag.String()})
		}
	}
	return nil
}

func (b *Builder) SelectDistinct() {
	b.distinct = true
}

// Limit 跳过 offset 行后最多返回 rows 行
func (b *Builder) Limit(offset, rows int) error {
	if offset < 0 || rows < 0 {
		return errors.Errorf("invalid limit offset [%d] rows [%d]", offset, rows)
	}
	b.offset = offset
	b.limit = &rows
	return nil
}

func (b *Builder) Skip(n int) error {
	if n < 0 {
		return errors.Errorf("invalid skip [%d]", n)
	}
	b.offset = n
	return nil
}

func (b *Builder) Take(n int) error {
	if n < 0 {
		return errors.Errorf("invalid take [%d]", n)
	}
	b.limit = &n
	return nil
}

// Clear 清空已累积的状态，保留基础表
func (b *Builder) Clear() {
	b.associated = map[reflect.Type]string{b.base.Type: ""}
	b.joins = nil
	b.wheres = nil
	b.orderBy = nil
	b.columns = nil
	b.distinct = false
	b.offset = 0
	b.limit = nil
}

func (b *Builder) Clone() *Builder {
	c := *b
	c.associated = make(map[reflect.Type]string, len(b.associated))
	for k, v := range b.associated {
		c.associated[k] = v
	}
	c.joins = append([]*joinClause(nil), b.joins...)
	c.wheres = append([]whereEntry(nil), b.wheres...)
	c.orderBy = append([]orderByEntry(nil), b.orderBy...)
	c.columns = append([]selectColumn(nil), b.columns...)
	if b.limit != nil {
		limit := *b.limit
		c.limit = &limit
	}
	return &c
}
