package dialect

import (
	"sort"

	"github.com/hatlonely/tql/errs"
	"github.com/hatlonely/tql/model"
	"github.com/hatlonely/tql/ref"
	"github.com/pkg/errors"
)

// Namespace 内置方言在 ref 中的命名空间
const Namespace = "github.com/hatlonely/tql/dialect"

var builtin = map[string]any{
	"sqlite":     NewSQLite,
	"sqlite3":    NewSQLite,
	"postgres":   NewPostgres,
	"postgresql": NewPostgres,
	"mysql":      NewMySQL,
	"sqlserver":  NewSQLServer,
	"mssql":      NewSQLServer,
}

func init() {
	for name, newFunc := range builtin {
		ref.MustRegister(Namespace, name, newFunc)
	}
}

// Builtin 内置方言的名称，包括别名，按字母序
func Builtin() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Func 需要方言翻译的 SQL 函数
type Func string

const (
	FuncLength Func = "length"
	FuncUpper  Func = "upper"
	FuncLower  Func = "lower"
	FuncTrim   Func = "trim"
	FuncMax    Func = "max"
	FuncMin    Func = "min"
	FuncCount  Func = "count"
	FuncAvg    Func = "avg"
	FuncSum    Func = "sum"
)

// SelectStatement 交给方言组装的 SELECT 各部分，均为已渲染的 SQL 片段
type SelectStatement struct {
	Distinct bool
	Columns  []string
	From     string
	Joins    []string
	Where    string
	OrderBy  []string
	Offset   int
	Limit    *int // nil 表示不限制
}

// Dialect 后端 SQL 方言
type Dialect interface {
	Name() string

	// QuoteIdentifier 按后端规则转义标识符
	QuoteIdentifier(name string) string
	// QuoteTable 带 schema 前缀的表名
	QuoteTable(def *model.ModelDefinition) string
	// Placeholder 第 index 个参数的占位符，index 从 0 开始
	Placeholder(index int) string
	// FormatLiteral 将值直接写入 SQL，只用于调用方显式标记的字面量
	FormatLiteral(v any) (string, error)

	Concat(parts ...string) string
	Function(fn Func, arg string) string

	// RenderSelect 组装最终语句，分页语法由方言决定
	RenderSelect(stmt *SelectStatement) string
}

// Register 注册自定义方言构造函数
func Register(name string, newFunc any) error {
	return ref.Register(Namespace, name, newFunc)
}

func New(name string) (Dialect, error) {
	return NewDialectWithOptions(&ref.TypeOptions{Namespace: Namespace, Type: name})
}

func MustNew(name string) Dialect {
	d, err := New(name)
	if err != nil {
		panic(err)
	}
	return d
}

func NewDialectWithOptions(options *ref.TypeOptions) (Dialect, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	namespace := options.Namespace
	if namespace == "" {
		namespace = Namespace
	}
	if !ref.Registered(namespace, options.Type) {
		return nil, errors.WithStack(&errs.DialectNotRegisteredError{Namespace: namespace, Dialect: options.Type})
	}

	obj, err := ref.New(namespace, options.Type, options.Options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.New failed")
	}
	d, ok := obj.(Dialect)
	if !ok {
		return nil, errors.Errorf("%s:%s is not a Dialect", namespace, options.Type)
	}
	return d, nil
}
