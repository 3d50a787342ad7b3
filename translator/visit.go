package translator

import (
	"reflect"

	"github.com/hatlonely/tql/dialect"
	"github.com/hatlonely/tql/errs"
	"github.com/hatlonely/tql/expr"
	"github.com/hatlonely/tql/model"
	"github.com/pkg/errors"
)

type result struct {
	frag *Fragment
	prec int

	cond     bool // SQL 布尔条件
	isString bool
	isNull   bool
	isConst  bool
	value    any
	field    *model.FieldDefinition // 直接引用的列
	concat   []*Fragment            // 字符串拼接的各部分，用于展开嵌套拼接
}

var comparisonText = map[expr.BinaryOp]string{
	expr.OpEq: " = ",
	expr.OpNe: " <> ",
	expr.OpLt: " < ",
	expr.OpLe: " <= ",
	expr.OpGt: " > ",
	expr.OpGe: " >= ",
}

var arithmeticText = map[expr.BinaryOp]string{
	expr.OpAdd: " + ",
	expr.OpSub: " - ",
	expr.OpMul: " * ",
	expr.OpDiv: " / ",
	expr.OpMod: " % ",
}

func wrap(res result, min int) *Fragment {
	if res.prec < min {
		return res.frag.Paren()
	}
	return res.frag
}

func (c *scope) visit(e expr.Expr) (result, error) {
	// 不引用当前参数的子树在宿主侧求值
	if e != nil && !expr.References(e, c.param) && !expr.ContainsNew(e) {
		return c.fold(e)
	}

	switch n := e.(type) {
	case *expr.Parameter:
		return result{}, errs.Unsupported(n, "a parameter can only be used as the base of a member access")
	case *expr.Constant:
		return c.constant(n.Value, n.Literal)
	case *expr.Member:
		return c.member(n)
	case *expr.Unary:
		return c.unary(n)
	case *expr.Binary:
		return c.binary(n)
	case *expr.Call:
		return c.call(n)
	case *expr.New:
		return result{}, errs.Unsupported(n, "object construction is only allowed at the top of a projection")
	case nil:
		return result{}, errors.New("nil expression")
	}
	return result{}, errors.Errorf("unknown expression node %T", e)
}

func (c *scope) fold(e expr.Expr) (result, error) {
	if k, ok := e.(*expr.Constant); ok {
		return c.constant(k.Value, k.Literal)
	}
	if expr.HasParameter(e) {
		return result{}, errs.Unsupported(e, "references a parameter other than %s", c.param.Name)
	}
	v, err := expr.Eval(e)
	if err != nil {
		return result{}, err
	}
	return c.constant(v, false)
}

func (c *scope) constant(v any, literal bool) (result, error) {
	v = expr.Indirect(v)
	res := result{
		prec:     precPrimary,
		isConst:  true,
		value:    v,
		isString: reflectKind(v) == reflect.String,
	}
	switch {
	case v == nil:
		res.isNull = true
		res.frag = Text("NULL")
	case literal:
		text, err := c.t.dialect.FormatLiteral(v)
		if err != nil {
			return result{}, err
		}
		res.frag = Text(text)
	default:
		res.frag = Arg(v)
	}
	return res, nil
}

func (c *scope) member(n *expr.Member) (result, error) {
	if p, ok := n.Base.(*expr.Parameter); ok {
		if p != c.param {
			return result{}, errs.Unsupported(n, "parameter %s is not bound to %s", p.Name, c.def.Name)
		}
		field, err := c.def.Field(n.Name)
		if err != nil {
			return result{}, err
		}
		return result{
			frag:     Text(c.t.ColumnRef(c.def, field, c.opts)),
			prec:     precPrimary,
			isString: field.Kind == model.FieldTypeString,
			field:    field,
		}, nil
	}

	// 列上的属性，例如 s.CompanyName.Length
	if n.Name == "Length" || n.Name == "Len" {
		base, err := c.visit(n.Base)
		if err != nil {
			return result{}, err
		}
		return result{frag: Function(c.t.dialect, dialect.FuncLength, base.frag), prec: precPrimary}, nil
	}
	return result{}, errs.Unsupported(n, "member %s on a column", n.Name)
}

// condition 把值转换为 SQL 布尔条件
func (c *scope) condition(res result, e expr.Expr) (result, error) {
	if res.cond {
		return res, nil
	}
	if res.isConst {
		b, ok := res.value.(bool)
		if !ok {
			return result{}, errs.Unsupported(e, "expression is not a boolean condition")
		}
		if b {
			return result{frag: Text("1=1"), prec: precCompare, cond: true}, nil
		}
		return result{frag: Text("1=0"), prec: precCompare, cond: true}, nil
	}
	if res.field != nil && res.field.Kind == model.FieldTypeBool {
		return result{frag: Concat(res.frag, Text(" = "), Arg(true)), prec: precCompare, cond: true}, nil
	}
	return result{}, errs.Unsupported(e, "expression is not a boolean condition")
}

func (c *scope) unary(n *expr.Unary) (result, error) {
	switch n.Op {
	case expr.OpConvert:
		return c.visit(n.Operand)
	case expr.OpNot:
		operand, err := c.visit(n.Operand)
		if err != nil {
			return result{}, err
		}
		cond, err := c.condition(operand, n.Operand)
		if err != nil {
			return result{}, err
		}
		return result{frag: Concat(Text("NOT "), wrap(cond, precPrimary)), prec: precNot, cond: true}, nil
	case expr.OpNegate:
		operand, err := c.visit(n.Operand)
		if err != nil {
			return result{}, err
		}
		return result{frag: Concat(Text("-"), wrap(operand, precUnary)), prec: precUnary}, nil
	}
	return result{}, errs.Unsupported(n, "unknown unary operator")
}

func (c *scope) binary(n *expr.Binary) (result, error) {
	if n.Op == expr.OpAndAlso || n.Op == expr.OpOrElse {
		return c.logical(n)
	}

	left, err := c.visit(n.Left)
	if err != nil {
		return result{}, err
	}
	right, err := c.visit(n.Right)
	if err != nil {
		return result{}, err
	}

	switch n.Op {
	case expr.OpXor:
		return c.xor(n, left, right)
	case expr.OpCoalesce:
		return result{
			frag:     Concat(Text("COALESCE("), left.frag, Text(", "), right.frag, Text(")")),
			prec:     precPrimary,
			isString: left.isString || right.isString,
		}, nil
	}

	if n.Op.IsComparison() {
		return c.compare(n, comparisonText[n.Op], left, right)
	}

	if n.Op == expr.OpAdd && (left.isString || right.isString) {
		parts := append(append([]*Fragment{}, concatParts(left)...), concatParts(right)...)
		return result{
			frag:     ConcatStrings(c.t.dialect, parts...),
			prec:     precAdditive,
			isString: true,
			concat:   parts,
		}, nil
	}

	if text, ok := arithmeticText[n.Op]; ok {
		prec := precAdditive
		if n.Op == expr.OpMul || n.Op == expr.OpDiv || n.Op == expr.OpMod {
			prec = precMultiplicative
		}
		return result{
			frag: Concat(wrap(left, prec), Text(text), wrap(right, prec+1)),
			prec: prec,
		}, nil
	}

	return result{}, errs.Unsupported(n, "unknown binary operator")
}

// concatParts 嵌套拼接展开为同一层，其他非基本项加括号
func concatParts(res result) []*Fragment {
	if res.concat != nil {
		return res.concat
	}
	return []*Fragment{wrap(res, precPrimary)}
}

// logical 宿主侧已确定的一边决定短路，左边短路时右边不再翻译
func (c *scope) logical(n *expr.Binary) (result, error) {
	and := n.Op == expr.OpAndAlso

	left, err := c.visit(n.Left)
	if err != nil {
		return result{}, err
	}
	if b, ok := left.value.(bool); ok && left.isConst && b != and {
		return c.condition(left, n.Left)
	}
	right, err := c.visit(n.Right)
	if err != nil {
		return result{}, err
	}
	if _, ok := left.value.(bool); ok && left.isConst {
		return c.condition(right, n.Right)
	}
	if b, ok := right.value.(bool); ok && right.isConst {
		if b != and {
			return c.condition(right, n.Right)
		}
		return c.condition(left, n.Left)
	}

	l, err := c.condition(left, n.Left)
	if err != nil {
		return result{}, err
	}
	r, err := c.condition(right, n.Right)
	if err != nil {
		return result{}, err
	}

	prec, text := precAnd, " AND "
	if !and {
		prec, text = precOr, " OR "
	}
	return result{frag: Concat(wrap(l, prec), Text(text), wrap(r, prec)), prec: prec, cond: true}, nil
}

// xor 展开为 (l OR r) AND NOT (l AND r)
func (c *scope) xor(n *expr.Binary, left, right result) (result, error) {
	l, err := c.condition(left, n.Left)
	if err != nil {
		return result{}, err
	}
	r, err := c.condition(right, n.Right)
	if err != nil {
		return result{}, err
	}
	return result{
		frag: Concat(
			Text("("), wrap(l, precOr), Text(" OR "), wrap(r, precOr),
			Text(") AND NOT ("), wrap(l, precAnd), Text(" AND "), wrap(r, precAnd), Text(")"),
		),
		prec: precAnd,
		cond: true,
	}, nil
}

func (c *scope) compare(n *expr.Binary, text string, left, right result) (result, error) {
	if n.Op == expr.OpEq || n.Op == expr.OpNe {
		suffix := " IS NULL"
		if n.Op == expr.OpNe {
			suffix = " IS NOT NULL"
		}
		switch {
		case right.isNull:
			return result{frag: Concat(wrap(left, precCompare+1), Text(suffix)), prec: precCompare, cond: true}, nil
		case left.isNull:
			return result{frag: Concat(wrap(right, precCompare+1), Text(suffix)), prec: precCompare, cond: true}, nil
		}
	} else if left.isNull || right.isNull {
		return result{}, errs.Unsupported(n, "ordering comparison against null")
	}

	return result{
		frag: Concat(wrap(left, precCompare+1), Text(text), wrap(right, precCompare+1)),
		prec: precCompare,
		cond: true,
	}, nil
}

func (c *scope) call(n *expr.Call) (result, error) {
	if n.Target == nil {
		return result{}, errs.Unsupported(n, "static method call")
	}

	// 宿主侧集合的 Contains 翻译为 IN
	if n.Method == "Contains" && len(n.Args) == 1 && !expr.References(n.Target, c.param) {
		values, err := expr.Eval(n.Target)
		if err != nil {
			return result{}, err
		}
		if k := reflectKind(values); k == reflect.Slice || k == reflect.Array {
			return c.in(n, values)
		}
	}

	target, err := c.visit(n.Target)
	if err != nil {
		return result{}, err
	}
	args := make([]result, 0, len(n.Args))
	for _, a := range n.Args {
		res, err := c.visit(a)
		if err != nil {
			return result{}, err
		}
		args = append(args, res)
	}

	d := c.t.dialect
	switch {
	case len(args) == 0:
		switch n.Method {
		case "Length", "Len":
			return result{frag: Function(d, dialect.FuncLength, target.frag), prec: precPrimary}, nil
		case "ToUpper":
			return result{frag: Function(d, dialect.FuncUpper, target.frag), prec: precPrimary, isString: true}, nil
		case "ToLower":
			return result{frag: Function(d, dialect.FuncLower, target.frag), prec: precPrimary, isString: true}, nil
		case "Trim":
			return result{frag: Function(d, dialect.FuncTrim, target.frag), prec: precPrimary, isString: true}, nil
		}
	case len(args) == 1:
		percent, err := d.FormatLiteral("%")
		if err != nil {
			return result{}, err
		}
		var pattern *Fragment
		switch n.Method {
		case "StartsWith":
			pattern = ConcatStrings(d, wrap(args[0], precPrimary), Text(percent))
		case "EndsWith":
			pattern = ConcatStrings(d, Text(percent), wrap(args[0], precPrimary))
		case "Contains":
			pattern = ConcatStrings(d, Text(percent), wrap(args[0], precPrimary), Text(percent))
		case "Equals":
			return c.compare(&expr.Binary{Op: expr.OpEq, Left: n.Target, Right: n.Args[0]}, " = ", target, args[0])
		}
		if pattern != nil {
			return result{
				frag: Concat(wrap(target, precCompare+1), Text(" LIKE "), pattern),
				prec: precCompare,
				cond: true,
			}, nil
		}
	}
	return result{}, errs.Unsupported(n, "method %s has no SQL translation", n.Method)
}

func (c *scope) in(n *expr.Call, values any) (result, error) {
	column, err := c.visit(n.Args[0])
	if err != nil {
		return result{}, err
	}

	rv := reflect.ValueOf(expr.Indirect(values))
	if rv.Len() == 0 {
		return result{frag: Text("1=0"), prec: precCompare, cond: true}, nil
	}
	items := make([]*Fragment, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		items = append(items, Arg(expr.Indirect(rv.Index(i).Interface())))
	}
	return result{
		frag: Concat(wrap(column, precCompare+1), Text(" IN ("), Join(", ", items), Text(")")),
		prec: precCompare,
		cond: true,
	}, nil
}
