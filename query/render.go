package query

import (
	"github.com/hatlonely/tql/dialect"
	"github.com/hatlonely/tql/errs"
	"github.com/hatlonely/tql/translator"
	"github.com/pkg/errors"
)

// renderer 按文本顺序渲染片段，参数序号在各部分之间连续
type renderer struct {
	d    dialect.Dialect
	args []any
}

func (r *renderer) render(frag *translator.Fragment) string {
	sql, args := frag.Render(r.d, len(r.args))
	r.args = append(r.args, args...)
	return sql
}

// ToSQL 渲染 SELECT 语句，参数顺序依次为投影、连接、条件、排序
func (b *Builder) ToSQL() (string, []any, error) {
	if err := b.validate(); err != nil {
		return "", nil, err
	}

	r := &renderer{d: b.tr.Dialect()}
	stmt := &dialect.SelectStatement{
		Distinct: b.distinct,
		Columns:  b.renderColumns(r),
		From:     r.d.QuoteTable(b.base),
		Offset:   b.offset,
		Limit:    b.limit,
	}
	b.renderFrom(r, stmt)
	for _, entry := range b.orderBy {
		column := r.render(entry.frag)
		if entry.desc {
			column += " DESC"
		}
		stmt.OrderBy = append(stmt.OrderBy, column)
	}

	return r.d.RenderSelect(stmt), r.args, nil
}

// Count 在相同的连接和条件上计数，忽略排序和分页
//
// 去重时对去重后的投影计数，其余情况忽略投影
func (b *Builder) Count() (string, []any, error) {
	r := &renderer{d: b.tr.Dialect()}
	count := r.d.Function(dialect.FuncCount, "*")
	if !b.distinct {
		stmt := &dialect.SelectStatement{
			Columns: []string{count},
			From:    r.d.QuoteTable(b.base),
		}
		b.renderFrom(r, stmt)
		return r.d.RenderSelect(stmt), r.args, nil
	}

	if err := b.validate(); err != nil {
		return "", nil, err
	}
	inner := &dialect.SelectStatement{
		Distinct: true,
		Columns:  b.renderColumns(r),
		From:     r.d.QuoteTable(b.base),
	}
	b.renderFrom(r, inner)
	stmt := &dialect.SelectStatement{
		Columns: []string{count},
		From:    "(" + r.d.RenderSelect(inner) + ") " + r.d.QuoteIdentifier("t"),
	}
	return r.d.RenderSelect(stmt), r.args, nil
}

func (b *Builder) validate() error {
	aggregate, raw := false, false
	for _, c := range b.columns {
		if c.aggregate {
			aggregate = true
		} else {
			raw = true
		}
		if aggregate && raw {
			return errors.WithStack(&errs.AggregateConflictError{Column: c.frag.String()})
		}
	}
	return nil
}

func (b *Builder) renderColumns(r *renderer) []string {
	if len(b.columns) != 0 {
		columns := make([]string, 0, len(b.columns))
		for _, c := range b.columns {
			columns = append(columns, r.render(c.frag))
		}
		return columns
	}

	opts := translator.Options{Prefix: true}
	if len(b.base.Fields) == 0 {
		return []string{r.d.QuoteTable(b.base) + ".*"}
	}
	columns := make([]string, 0, len(b.base.Fields))
	for _, f := range b.base.Fields {
		columns = append(columns, b.tr.ColumnRef(b.base, f, opts))
	}
	return columns
}

// renderFrom 渲染连接和条件
func (b *Builder) renderFrom(r *renderer, stmt *dialect.SelectStatement) {
	for _, j := range b.joins {
		line := j.kind.String() + " " + r.d.QuoteTable(j.def)
		if j.alias != "" {
			line += " " + r.d.QuoteIdentifier(j.alias)
		}
		if j.on != nil {
			line += " ON " + r.render(j.on)
		}
		stmt.Joins = append(stmt.Joins, line)
	}

	entries := append([]whereEntry(nil), b.wheres...)
	for _, j := range b.joins {
		for _, cond := range j.where {
			entries = append(entries, whereEntry{combinator: combineAnd, cond: cond})
		}
	}
	if where := foldWhere(entries); where != nil {
		stmt.Where = r.render(where)
	}
}

// foldWhere 从左到右合并条件，连接符变化时给已合并的部分加括号，第一项的连接符被忽略
func foldWhere(entries []whereEntry) *translator.Fragment {
	if len(entries) == 0 {
		return nil
	}
	term := func(e whereEntry) *translator.Fragment {
		if len(entries) > 1 && e.cond.Compound {
			return e.cond.Fragment.Paren()
		}
		return e.cond.Fragment
	}

	acc := term(entries[0])
	prev := ""
	for _, e := range entries[1:] {
		if prev != "" && e.combinator != prev {
			acc = acc.Paren()
		}
		acc = translator.Concat(acc, translator.Text(e.combinator), term(e))
		prev = e.combinator
	}
	return acc
}
