package dialect

import (
	"strconv"
	"strings"

	"github.com/hatlonely/tql/model"
)

type SQLServer struct{}

func NewSQLServer() *SQLServer {
	return &SQLServer{}
}

func (d *SQLServer) Name() string {
	return "sqlserver"
}

func (d *SQLServer) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *SQLServer) QuoteTable(def *model.ModelDefinition) string {
	return quoteTable(d, def)
}

func (d *SQLServer) Placeholder(index int) string {
	return "@p" + strconv.Itoa(index+1)
}

func (d *SQLServer) FormatLiteral(v any) (string, error) {
	return formatLiteral(v, literalStyle{
		quote:     func(s string) string { return "N" + quoteString(s) },
		trueText:  "1",
		falseText: "0",
	})
}

func (d *SQLServer) Concat(parts ...string) string {
	return concatOperator("+", parts)
}

func (d *SQLServer) Function(fn Func, arg string) string {
	if fn == FuncTrim {
		return "LTRIM(RTRIM(" + arg + "))"
	}
	return renderFunction(map[Func]string{FuncLength: "LEN"}, fn, arg)
}

// RenderSelect 有 offset 时使用 OFFSET/FETCH，此时必须有 ORDER BY；只有行数限制时使用 TOP
func (d *SQLServer) RenderSelect(stmt *SelectStatement) string {
	var sb strings.Builder
	if stmt.Offset <= 0 {
		top := ""
		if stmt.Limit != nil {
			top = "TOP " + strconv.Itoa(*stmt.Limit)
		}
		writeSelect(&sb, stmt, top)
		return sb.String()
	}

	paged := *stmt
	if len(paged.OrderBy) == 0 {
		paged.OrderBy = []string{"(SELECT NULL)"}
	}
	writeSelect(&sb, &paged, "")
	sb.WriteString("\nOFFSET " + strconv.Itoa(stmt.Offset) + " ROWS")
	if stmt.Limit != nil {
		sb.WriteString(" FETCH NEXT " + strconv.Itoa(*stmt.Limit) + " ROWS ONLY")
	}
	return sb.String()
}
