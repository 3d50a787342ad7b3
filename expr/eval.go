package expr

import (
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/hatlonely/tql/errs"
	"github.com/pkg/errors"
)

// Eval 在宿主侧求值不引用参数的子树
// 成员读取和方法调用通过反射完成，只在翻译时执行一次
func Eval(e Expr) (any, error) {
	switch n := e.(type) {
	case *Constant:
		return n.Value, nil
	case *Parameter:
		return nil, errs.Unsupported(n, "parameter cannot be evaluated on the host")
	case *Member:
		return evalMember(n)
	case *Unary:
		return evalUnary(n)
	case *Binary:
		return evalBinary(n)
	case *Call:
		return evalCall(n)
	case *New:
		return nil, errs.Unsupported(n, "object construction cannot be evaluated on the host")
	case nil:
		return nil, errors.New("nil expression")
	}
	return nil, errors.Errorf("unknown expression node %T", e)
}

// Indirect 解引用指针，nil 指针返回 nil
func Indirect(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func evalMember(n *Member) (any, error) {
	if n.Base == nil {
		return nil, errs.Unsupported(n, "static member access")
	}
	base, err := Eval(n.Base)
	if err != nil {
		return nil, err
	}

	original := reflect.ValueOf(base)
	rv := reflect.ValueOf(Indirect(base))
	if !rv.IsValid() {
		return nil, errs.Unsupported(n, "member access on nil")
	}

	switch rv.Kind() {
	case reflect.Struct:
		if f := rv.FieldByName(n.Name); f.IsValid() {
			if !f.CanInterface() {
				return nil, errs.Unsupported(n, "unexported field %s", n.Name)
			}
			return f.Interface(), nil
		}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			mv := rv.MapIndex(reflect.ValueOf(n.Name).Convert(rv.Type().Key()))
			if mv.IsValid() {
				return mv.Interface(), nil
			}
			return reflect.Zero(rv.Type().Elem()).Interface(), nil
		}
	case reflect.String, reflect.Slice, reflect.Array:
		if n.Name == "Length" || n.Name == "Len" || n.Name == "Count" {
			return rv.Len(), nil
		}
	}

	if m := methodByName(original, n.Name); m.IsValid() && m.Type().NumIn() == 0 {
		return callMethod(n, m, nil)
	}
	return nil, errs.Unsupported(n, "unknown member %s on %s", n.Name, rv.Type())
}

func methodByName(rv reflect.Value, name string) reflect.Value {
	if !rv.IsValid() {
		return reflect.Value{}
	}
	if m := rv.MethodByName(name); m.IsValid() {
		return m
	}
	if rv.Kind() != reflect.Ptr {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		return ptr.MethodByName(name)
	}
	return reflect.Value{}
}

func callMethod(n Expr, m reflect.Value, args []any) (any, error) {
	mt := m.Type()
	if mt.IsVariadic() || mt.NumIn() != len(args) {
		return nil, errs.Unsupported(n, "method expects %d arguments, got %d", mt.NumIn(), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		pt := mt.In(i)
		if a == nil {
			in[i] = reflect.Zero(pt)
			continue
		}
		av := reflect.ValueOf(a)
		if !av.Type().ConvertibleTo(pt) {
			return nil, errs.Unsupported(n, "argument %d of type %s does not match %s", i, av.Type(), pt)
		}
		in[i] = av.Convert(pt)
	}

	out := m.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	case 2:
		if err, ok := out[1].Interface().(error); ok && err != nil {
			return nil, errors.WithMessagef(err, "call %s failed", n)
		}
		return out[0].Interface(), nil
	}
	return nil, errs.Unsupported(n, "method returns %d values", len(out))
}

func evalUnary(n *Unary) (any, error) {
	v, err := Eval(n.Operand)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case OpNot:
		b, ok := Indirect(v).(bool)
		if !ok {
			return nil, errs.Unsupported(n, "operand is not bool")
		}
		return !b, nil
	case OpNegate:
		rv := reflect.ValueOf(Indirect(v))
		switch {
		case isInt(rv):
			return reflect.ValueOf(-rv.Int()).Convert(rv.Type()).Interface(), nil
		case isFloat(rv):
			return reflect.ValueOf(-rv.Float()).Convert(rv.Type()).Interface(), nil
		}
		return nil, errs.Unsupported(n, "operand is not a signed number")
	case OpConvert:
		if n.Type == nil || v == nil {
			return v, nil
		}
		rv := reflect.ValueOf(v)
		if !rv.Type().ConvertibleTo(n.Type) {
			return nil, errs.Unsupported(n, "cannot convert %s to %s", rv.Type(), n.Type)
		}
		return rv.Convert(n.Type).Interface(), nil
	}
	return nil, errs.Unsupported(n, "unknown unary operator")
}

func evalBinary(n *Binary) (any, error) {
	l, err := Eval(n.Left)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case OpAndAlso, OpOrElse:
		lb, ok := Indirect(l).(bool)
		if !ok {
			return nil, errs.Unsupported(n, "left operand is not bool")
		}
		if (n.Op == OpAndAlso && !lb) || (n.Op == OpOrElse && lb) {
			return lb, nil
		}
		r, err := Eval(n.Right)
		if err != nil {
			return nil, err
		}
		rb, ok := Indirect(r).(bool)
		if !ok {
			return nil, errs.Unsupported(n, "right operand is not bool")
		}
		return rb, nil
	case OpCoalesce:
		if Indirect(l) != nil {
			return Indirect(l), nil
		}
		return Eval(n.Right)
	}

	r, err := Eval(n.Right)
	if err != nil {
		return nil, err
	}
	l, r = Indirect(l), Indirect(r)

	switch n.Op {
	case OpXor:
		lb, lok := l.(bool)
		rb, rok := r.(bool)
		if !lok || !rok {
			return nil, errs.Unsupported(n, "xor operands must be bool")
		}
		return lb != rb, nil
	case OpEq:
		return Equal(l, r), nil
	case OpNe:
		return !Equal(l, r), nil
	case OpLt, OpLe, OpGt, OpGe:
		c, ok := compare(l, r)
		if !ok {
			return nil, errs.Unsupported(n, "operands are not ordered")
		}
		switch n.Op {
		case OpLt:
			return c < 0, nil
		case OpLe:
			return c <= 0, nil
		case OpGt:
			return c > 0, nil
		}
		return c >= 0, nil
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return arithmetic(n, l, r)
	}
	return nil, errs.Unsupported(n, "unknown binary operator")
}

func evalCall(n *Call) (any, error) {
	if n.Target == nil {
		return nil, errs.Unsupported(n, "static method call")
	}
	target, err := Eval(n.Target)
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, len(n.Args))
	for _, a := range n.Args {
		v, err := Eval(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	if s, ok := Indirect(target).(string); ok {
		if v, ok := stringMethod(s, n.Method, args); ok {
			return v, nil
		}
	}

	rv := reflect.ValueOf(Indirect(target))
	if n.Method == "Contains" && len(args) == 1 && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		for i := 0; i < rv.Len(); i++ {
			if Equal(rv.Index(i).Interface(), Indirect(args[0])) {
				return true, nil
			}
		}
		return false, nil
	}

	m := methodByName(reflect.ValueOf(target), n.Method)
	if !m.IsValid() {
		return nil, errs.Unsupported(n, "unknown method %s", n.Method)
	}
	return callMethod(n, m, args)
}

func stringMethod(s string, method string, args []any) (any, bool) {
	if len(args) == 0 {
		switch method {
		case "Length", "Len":
			return len(s), true
		case "ToUpper":
			return strings.ToUpper(s), true
		case "ToLower":
			return strings.ToLower(s), true
		case "Trim":
			return strings.TrimSpace(s), true
		}
		return nil, false
	}
	arg, ok := Indirect(args[0]).(string)
	if len(args) != 1 || !ok {
		return nil, false
	}
	switch method {
	case "StartsWith":
		return strings.HasPrefix(s, arg), true
	case "EndsWith":
		return strings.HasSuffix(s, arg), true
	case "Contains":
		return strings.Contains(s, arg), true
	case "Equals":
		return s == arg, true
	}
	return nil, false
}

func isInt(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isFloat(rv reflect.Value) bool {
	return rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64
}

// number 宿主侧数值，整数按有无符号分别保存，避免 uint64 超出 int64 时回绕
type number struct {
	float    bool
	unsigned bool
	i        int64
	u        uint64
	f        float64
}

func toNumber(v any) (number, bool) {
	rv := reflect.ValueOf(v)
	switch {
	case isInt(rv):
		return number{i: rv.Int(), f: float64(rv.Int())}, true
	case isUint(rv):
		return number{unsigned: true, u: rv.Uint(), f: float64(rv.Uint())}, true
	case isFloat(rv):
		return number{float: true, f: rv.Float()}, true
	}
	return number{}, false
}

// toInt64 整数转成 int64，超出范围时 ok 为 false
func (n number) toInt64() (int64, bool) {
	if !n.unsigned {
		return n.i, true
	}
	return int64(n.u), n.u <= math.MaxInt64
}

// compareNumbers 有符号和无符号混合时先比较符号再比较大小
func compareNumbers(l, r number) int {
	switch {
	case l.float || r.float:
		return cmp(l.f, r.f)
	case l.unsigned && r.unsigned:
		return cmp(l.u, r.u)
	case l.unsigned:
		if r.i < 0 {
			return 1
		}
		return cmp(l.u, uint64(r.i))
	case r.unsigned:
		if l.i < 0 {
			return -1
		}
		return cmp(uint64(l.i), r.u)
	}
	return cmp(l.i, r.i)
}

// Equal 宿主侧相等比较，数值按值比较而不区分具体类型
func Equal(l, r any) bool {
	l, r = Indirect(l), Indirect(r)
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	if ln, ok := toNumber(l); ok {
		if rn, ok := toNumber(r); ok {
			return compareNumbers(ln, rn) == 0
		}
	}
	if lt, ok := l.(time.Time); ok {
		if rt, ok := r.(time.Time); ok {
			return lt.Equal(rt)
		}
	}
	return reflect.DeepEqual(l, r)
}

func compare(l, r any) (int, bool) {
	if ln, ok := toNumber(l); ok {
		rn, ok := toNumber(r)
		if !ok {
			return 0, false
		}
		return compareNumbers(ln, rn), true
	}
	if ls, ok := l.(string); ok {
		rs, ok := r.(string)
		return strings.Compare(ls, rs), ok
	}
	if lt, ok := l.(time.Time); ok {
		rt, ok := r.(time.Time)
		return lt.Compare(rt), ok
	}
	return 0, false
}

func cmp[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func arithmetic(n *Binary, l, r any) (any, error) {
	if n.Op == OpAdd {
		if ls, ok := l.(string); ok {
			if rs, ok := r.(string); ok {
				return ls + rs, nil
			}
		}
	}

	ln, lok := toNumber(l)
	rn, rok := toNumber(r)
	if !lok || !rok {
		return nil, errs.Unsupported(n, "arithmetic on non-numeric operands")
	}

	// 两侧类型相同时保持原类型
	sameType := reflect.TypeOf(l) == reflect.TypeOf(r)
	if ln.float || rn.float {
		var f float64
		switch n.Op {
		case OpAdd:
			f = ln.f + rn.f
		case OpSub:
			f = ln.f - rn.f
		case OpMul:
			f = ln.f * rn.f
		case OpDiv:
			f = ln.f / rn.f
		default:
			return nil, errs.Unsupported(n, "modulo on floating point operands")
		}
		if sameType {
			return reflect.ValueOf(f).Convert(reflect.TypeOf(l)).Interface(), nil
		}
		return f, nil
	}

	// 同一无符号类型按 Go 的无符号运算
	if ln.unsigned && rn.unsigned && sameType {
		u, err := integerArithmetic(n, ln.u, rn.u)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(u).Convert(reflect.TypeOf(l)).Interface(), nil
	}

	li, lok := ln.toInt64()
	ri, rok := rn.toInt64()
	if !lok || !rok {
		return nil, errs.Unsupported(n, "unsigned operand overflows int64")
	}
	i, err := integerArithmetic(n, li, ri)
	if err != nil {
		return nil, err
	}
	if sameType {
		return reflect.ValueOf(i).Convert(reflect.TypeOf(l)).Interface(), nil
	}
	return i, nil
}

func integerArithmetic[T int64 | uint64](n *Binary, l, r T) (T, error) {
	switch n.Op {
	case OpAdd:
		return l + r, nil
	case OpSub:
		return l - r, nil
	case OpMul:
		return l * r, nil
	}
	if r == 0 {
		return 0, errs.Unsupported(n, "division by zero")
	}
	if n.Op == OpDiv {
		return l / r, nil
	}
	return l % r, nil
}
