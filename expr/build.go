package expr

import (
	"reflect"
	"strings"
)

// Param 为类型 T 创建 lambda 参数，参数名取类型名首字母小写
func Param[T any]() *Parameter {
	return ParamOf(reflect.TypeOf((*T)(nil)).Elem())
}

func ParamOf(rt reflect.Type) *Parameter {
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	name := rt.Name()
	if name == "" {
		name = "x"
	} else {
		name = strings.ToLower(name[:1])
	}
	return &Parameter{Type: rt, Name: name}
}

// For 以类型 T 的参数构建 lambda
//
//	expr.For[Shipper](func(s *expr.Parameter) expr.Expr {
//		return expr.Eq(s.Col("ShipperTypeId"), expr.Val(7))
//	})
func For[T any](body func(p *Parameter) Expr) Lambda {
	p := Param[T]()
	return Lambda{Param: p, Body: body(p)}
}

// Columns 以类型 T 的若干成员构建投影
func Columns[T any](members ...string) Lambda {
	return For[T](func(p *Parameter) Expr {
		return p.Cols(members...)
	})
}

// Column 以类型 T 的单个成员构建 lambda
func Column[T any](member string) Lambda {
	return For[T](func(p *Parameter) Expr {
		return p.Col(member)
	})
}

func (p *Parameter) Col(name string) *Member {
	return &Member{Base: p, Name: name}
}

// Cols 构建输出列名与成员名相同的投影
func (p *Parameter) Cols(names ...string) *New {
	args := make([]Expr, 0, len(names))
	for _, name := range names {
		args = append(args, p.Col(name))
	}
	return &New{Args: args, Members: names}
}

func Field(base Expr, name string) *Member {
	return &Member{Base: base, Name: name}
}

func Val(v any) *Constant {
	return &Constant{Value: v}
}

func Lit(v any) *Constant {
	return &Constant{Value: v, Literal: true}
}

func Null() *Constant {
	return &Constant{}
}

func Eq(l, r Expr) *Binary       { return &Binary{Op: OpEq, Left: l, Right: r} }
func Ne(l, r Expr) *Binary       { return &Binary{Op: OpNe, Left: l, Right: r} }
func Lt(l, r Expr) *Binary       { return &Binary{Op: OpLt, Left: l, Right: r} }
func Le(l, r Expr) *Binary       { return &Binary{Op: OpLe, Left: l, Right: r} }
func Gt(l, r Expr) *Binary       { return &Binary{Op: OpGt, Left: l, Right: r} }
func Ge(l, r Expr) *Binary       { return &Binary{Op: OpGe, Left: l, Right: r} }
func Xor(l, r Expr) *Binary      { return &Binary{Op: OpXor, Left: l, Right: r} }
func Add(l, r Expr) *Binary      { return &Binary{Op: OpAdd, Left: l, Right: r} }
func Sub(l, r Expr) *Binary      { return &Binary{Op: OpSub, Left: l, Right: r} }
func Mul(l, r Expr) *Binary      { return &Binary{Op: OpMul, Left: l, Right: r} }
func Div(l, r Expr) *Binary      { return &Binary{Op: OpDiv, Left: l, Right: r} }
func Mod(l, r Expr) *Binary      { return &Binary{Op: OpMod, Left: l, Right: r} }
func Coalesce(l, r Expr) *Binary { return &Binary{Op: OpCoalesce, Left: l, Right: r} }

// And 左结合地连接多个条件
func And(first Expr, rest ...Expr) Expr {
	return fold(OpAndAlso, first, rest)
}

func Or(first Expr, rest ...Expr) Expr {
	return fold(OpOrElse, first, rest)
}

func fold(op BinaryOp, first Expr, rest []Expr) Expr {
	result := first
	for _, e := range rest {
		result = &Binary{Op: op, Left: result, Right: e}
	}
	return result
}

func Not(e Expr) *Unary {
	return &Unary{Op: OpNot, Operand: e}
}

func Neg(e Expr) *Unary {
	return &Unary{Op: OpNegate, Operand: e}
}

func Convert(e Expr, t reflect.Type) *Unary {
	return &Unary{Op: OpConvert, Operand: e, Type: t}
}

func Method(target Expr, method string, args ...Expr) *Call {
	return &Call{Target: target, Method: method, Args: args}
}

func StartsWith(target Expr, s Expr) *Call { return Method(target, "StartsWith", s) }
func EndsWith(target Expr, s Expr) *Call   { return Method(target, "EndsWith", s) }
func Contains(target Expr, v Expr) *Call   { return Method(target, "Contains", v) }
func Length(target Expr) *Call             { return Method(target, "Length") }

// In 集合包含，values 为宿主侧的切片
func In(column Expr, values any) *Call {
	return Method(Val(values), "Contains", column)
}

// Construct 构建投影，members 与 args 一一对应
func Construct(t reflect.Type, members []string, args ...Expr) *New {
	return &New{Type: t, Args: args, Members: members}
}
