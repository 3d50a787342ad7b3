package translator

import (
	"testing"

	"github.com/hatlonely/tql/dialect"
	"github.com/stretchr/testify/assert"
)

func TestFragment(t *testing.T) {
	f := Concat(Text("a = "), Arg(1), Text(" AND b IN ("), Join(", ", []*Fragment{Arg(2), Arg(3)}), Text(")"))
	assert.Equal(t, "a = ? AND b IN (?, ?)", f.String())
	assert.Len(t, f.Args(), 3)
	assert.False(t, f.Empty())
	assert.True(t, Text("").Empty())

	sql, args := f.Render(dialect.NewPostgres(), 2)
	assert.Equal(t, "a = $3 AND b IN ($4, $5)", sql)
	assert.Equal(t, []any{1, 2, 3}, args)

	// 同一个片段多次渲染结果一致
	again, _ := f.Render(dialect.NewPostgres(), 2)
	assert.Equal(t, sql, again)

	sql, _ = f.Paren().Render(dialect.NewSQLServer(), 0)
	assert.Equal(t, "(a = @p1 AND b IN (@p2, @p3))", sql)
}

func TestTemplate(t *testing.T) {
	d := dialect.NewMySQL()
	f := ConcatStrings(d, Arg("a"), Text("'%'"))
	assert.Equal(t, "CONCAT(?, '%')", f.String())

	f = Function(dialect.NewSQLServer(), dialect.FuncTrim, Arg(" x "))
	sql, args := f.Render(dialect.NewSQLServer(), 0)
	assert.Equal(t, "LTRIM(RTRIM(@p1))", sql)
	assert.Equal(t, []any{" x "}, args)

	f = Function(dialect.NewSQLite(), dialect.FuncCount, Text("*"))
	assert.Equal(t, "COUNT(*)", f.String())
}
