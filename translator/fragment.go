package translator

import (
	"strings"

	"github.com/hatlonely/tql/dialect"
)

// Fragment 未编号的 SQL 片段
// chunks 和 args 交替排列，len(chunks) == len(args)+1，占位符在 Render 时才编号
type Fragment struct {
	chunks []string
	args   []any
}

func Text(s string) *Fragment {
	return &Fragment{chunks: []string{s}}
}

func Arg(v any) *Fragment {
	return &Fragment{chunks: []string{"", ""}, args: []any{v}}
}

// Concat 依次拼接片段，nil 被忽略
func Concat(parts ...*Fragment) *Fragment {
	out := &Fragment{chunks: []string{""}}
	for _, p := range parts {
		if p == nil {
			continue
		}
		out.chunks[len(out.chunks)-1] += p.chunks[0]
		out.chunks = append(out.chunks, p.chunks[1:]...)
		out.args = append(out.args, p.args...)
	}
	return out
}

func Join(sep string, parts []*Fragment) *Fragment {
	items := make([]*Fragment, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			items = append(items, Text(sep))
		}
		items = append(items, p)
	}
	return Concat(items...)
}

// Paren 用括号包裹
func (f *Fragment) Paren() *Fragment {
	return Concat(Text("("), f, Text(")"))
}

func (f *Fragment) Args() []any {
	return append([]any(nil), f.args...)
}

// Render 用方言占位符渲染，start 为第一个参数在整条语句中的序号
func (f *Fragment) Render(d dialect.Dialect, start int) (string, []any) {
	var sb strings.Builder
	for i, chunk := range f.chunks {
		sb.WriteString(chunk)
		if i < len(f.args) {
			sb.WriteString(d.Placeholder(start + i))
		}
	}
	return sb.String(), f.Args()
}

// String 以 ? 作为占位符，用于日志和调试
func (f *Fragment) String() string {
	return strings.Join(f.chunks, "?")
}

const hole = "\x00"

// template 用片段填充方言生成的模板，模板中的空位由 hole 标记
func template(text string, parts ...*Fragment) *Fragment {
	pieces := strings.Split(text, hole)
	items := make([]*Fragment, 0, len(pieces)*2)
	for i, piece := range pieces {
		items = append(items, Text(piece))
		if i < len(parts) && i < len(pieces)-1 {
			items = append(items, parts[i])
		}
	}
	return Concat(items...)
}

// Function 渲染方言函数，参数是未编号的片段
func Function(d dialect.Dialect, fn dialect.Func, arg *Fragment) *Fragment {
	return template(d.Function(fn, hole), arg)
}

// ConcatStrings 渲染方言字符串拼接
func ConcatStrings(d dialect.Dialect, parts ...*Fragment) *Fragment {
	holes := make([]string, len(parts))
	for i := range holes {
		holes[i] = hole
	}
	return template(d.Concat(holes...), parts...)
}
