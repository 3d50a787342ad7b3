package dialect

import (
	"strconv"
	"strings"

	"github.com/hatlonely/tql/model"
)

type SQLite struct{}

func NewSQLite() *SQLite {
	return &SQLite{}
}

func (d *SQLite) Name() string {
	return "sqlite"
}

func (d *SQLite) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *SQLite) QuoteTable(def *model.ModelDefinition) string {
	return quoteTable(d, def)
}

func (d *SQLite) Placeholder(index int) string {
	return "?"
}

func (d *SQLite) FormatLiteral(v any) (string, error) {
	return formatLiteral(v, literalStyle{quote: quoteString, trueText: "1", falseText: "0"})
}

func (d *SQLite) Concat(parts ...string) string {
	return concatOperator("||", parts)
}

func (d *SQLite) Function(fn Func, arg string) string {
	return renderFunction(map[Func]string{FuncLength: "LENGTH"}, fn, arg)
}

// RenderSelect 只有 offset 时用 LIMIT -1 表示不限制行数
func (d *SQLite) RenderSelect(stmt *SelectStatement) string {
	var sb strings.Builder
	writeSelect(&sb, stmt, "")
	switch {
	case stmt.Limit != nil && stmt.Offset > 0:
		sb.WriteString("\nLIMIT " + strconv.Itoa(*stmt.Limit) + " OFFSET " + strconv.Itoa(stmt.Offset))
	case stmt.Limit != nil:
		sb.WriteString("\nLIMIT " + strconv.Itoa(*stmt.Limit))
	case stmt.Offset > 0:
		sb.WriteString("\nLIMIT -1 OFFSET " + strconv.Itoa(stmt.Offset))
	}
	return sb.String()
}
