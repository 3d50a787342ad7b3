package expr

import (
	"fmt"
	"reflect"
	"strings"
)

// Expr 表达式树节点，只有本包定义的节点类型
type Expr interface {
	fmt.Stringer
	expr()
}

// Parameter lambda 参数，代表某个表的一行
type Parameter struct {
	Type reflect.Type
	Name string
}

// Member 成员访问
// Base 为 Parameter 时是列引用，其他情况是对宿主值的读取
type Member struct {
	Base Expr
	Name string
}

// Constant 常量，Literal 为 true 时直接写入 SQL 而不是作为参数
type Constant struct {
	Value   any
	Literal bool
}

type UnaryOp int

const (
	OpNot UnaryOp = iota + 1
	OpNegate
	OpConvert
)

type Unary struct {
	Op      UnaryOp
	Operand Expr
	Type    reflect.Type // Convert 的目标类型
}

type BinaryOp int

const (
	OpEq BinaryOp = iota + 1
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAndAlso
	OpOrElse
	OpXor
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpCoalesce
)

type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// Call 方法调用，Target 为 nil 表示静态调用
type Call struct {
	Target Expr
	Method string
	Args   []Expr
}

// New 对象构造，只用于投影，每个参数对应 Members 中同位置的输出列名
type New struct {
	Type    reflect.Type
	Args    []Expr
	Members []string
}

// Lambda 绑定到某个表类型的表达式
type Lambda struct {
	Param *Parameter
	Body  Expr
}

func (*Parameter) expr() {}
func (*Member) expr()    {}
func (*Constant) expr()  {}
func (*Unary) expr()     {}
func (*Binary) expr()    {}
func (*Call) expr()      {}
func (*New) expr()       {}

var binaryOpText = map[BinaryOp]string{
	OpEq:       "==",
	OpNe:       "!=",
	OpLt:       "<",
	OpLe:       "<=",
	OpGt:       ">",
	OpGe:       ">=",
	OpAndAlso:  "&&",
	OpOrElse:   "||",
	OpXor:      "^",
	OpAdd:      "+",
	OpSub:      "-",
	OpMul:      "*",
	OpDiv:      "/",
	OpMod:      "%",
	OpCoalesce: "??",
}

func (op BinaryOp) String() string {
	if s, ok := binaryOpText[op]; ok {
		return s
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

func (op UnaryOp) String() string {
	switch op {
	case OpNot:
		return "!"
	case OpNegate:
		return "-"
	case OpConvert:
		return "Convert"
	}
	return fmt.Sprintf("UnaryOp(%d)", int(op))
}

// IsComparison 相等或大小比较
func (op BinaryOp) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

func (p *Parameter) String() string {
	return p.Name
}

func (m *Member) String() string {
	if m.Base == nil {
		return m.Name
	}
	return m.Base.String() + "." + m.Name
}

func (c *Constant) String() string {
	switch v := c.Value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	}
	return fmt.Sprintf("%v", c.Value)
}

func (u *Unary) String() string {
	if u.Op == OpConvert {
		if u.Type == nil {
			return "Convert(" + u.Operand.String() + ")"
		}
		return "Convert(" + u.Operand.String() + ", " + u.Type.String() + ")"
	}
	return u.Op.String() + u.Operand.String()
}

func (b *Binary) String() string {
	return "(" + b.Left.String() + " " + b.Op.String() + " " + b.Right.String() + ")"
}

func (c *Call) String() string {
	args := make([]string, 0, len(c.Args))
	for _, a := range c.Args {
		args = append(args, a.String())
	}
	target := ""
	if c.Target != nil {
		target = c.Target.String() + "."
	}
	return target + c.Method + "(" + strings.Join(args, ", ") + ")"
}

func (n *New) String() string {
	parts := make([]string, 0, len(n.Args))
	for i, a := range n.Args {
		if i < len(n.Members) {
			parts = append(parts, n.Members[i]+" = "+a.String())
		} else {
			parts = append(parts, a.String())
		}
	}
	name := ""
	if n.Type != nil {
		name = n.Type.String() + " "
	}
	return "new " + name + "{" + strings.Join(parts, ", ") + "}"
}

func (l Lambda) String() string {
	if l.Param == nil || l.Body == nil {
		return "<invalid lambda>"
	}
	return l.Param.Name + " => " + l.Body.String()
}
