package dialect

import (
	"strconv"
	"strings"

	"github.com/hatlonely/tql/model"
	"github.com/lib/pq"
)

type Postgres struct{}

func NewPostgres() *Postgres {
	return &Postgres{}
}

func (d *Postgres) Name() string {
	return "postgres"
}

func (d *Postgres) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d *Postgres) QuoteTable(def *model.ModelDefinition) string {
	return quoteTable(d, def)
}

func (d *Postgres) Placeholder(index int) string {
	return "$" + strconv.Itoa(index+1)
}

// FormatLiteral 含反斜杠的字符串由 pq 渲染为 E'...' 形式
func (d *Postgres) FormatLiteral(v any) (string, error) {
	return formatLiteral(v, literalStyle{
		quote:     func(s string) string { return strings.TrimSpace(pq.QuoteLiteral(s)) },
		trueText:  "TRUE",
		falseText: "FALSE",
	})
}

func (d *Postgres) Concat(parts ...string) string {
	return concatOperator("||", parts)
}

func (d *Postgres) Function(fn Func, arg string) string {
	return renderFunction(nil, fn, arg)
}

func (d *Postgres) RenderSelect(stmt *SelectStatement) string {
	var sb strings.Builder
	writeSelect(&sb, stmt, "")
	switch {
	case stmt.Limit != nil && stmt.Offset > 0:
		sb.WriteString("\nLIMIT " + strconv.Itoa(*stmt.Limit) + " OFFSET " + strconv.Itoa(stmt.Offset))
	case stmt.Limit != nil:
		sb.WriteString("\nLIMIT " + strconv.Itoa(*stmt.Limit))
	case stmt.Offset > 0:
		sb.WriteString("\nOFFSET " + strconv.Itoa(stmt.Offset))
	}
	return sb.String()
}
