package dialect

import (
	"strconv"
	"strings"

	"github.com/hatlonely/tql/model"
	"gorm.io/driver/mysql"
)

// mysqlMaxRows MySQL 只有 offset 没有 limit 时的官方写法
const mysqlMaxRows = "18446744073709551615"

type MySQL struct {
	quoter mysql.Dialector
}

func NewMySQL() *MySQL {
	return &MySQL{}
}

func (d *MySQL) Name() string {
	return "mysql"
}

func (d *MySQL) QuoteIdentifier(name string) string {
	var sb strings.Builder
	d.quoter.QuoteTo(&sb, name)
	return sb.String()
}

func (d *MySQL) QuoteTable(def *model.ModelDefinition) string {
	return quoteTable(d, def)
}

func (d *MySQL) Placeholder(index int) string {
	return "?"
}

func (d *MySQL) FormatLiteral(v any) (string, error) {
	return formatLiteral(v, literalStyle{
		quote: func(s string) string {
			return quoteString(strings.ReplaceAll(s, `\`, `\\`))
		},
		trueText:  "TRUE",
		falseText: "FALSE",
	})
}

func (d *MySQL) Concat(parts ...string) string {
	return "CONCAT(" + strings.Join(parts, ", ") + ")"
}

func (d *MySQL) Function(fn Func, arg string) string {
	return renderFunction(nil, fn, arg)
}

func (d *MySQL) RenderSelect(stmt *SelectStatement) string {
	var sb strings.Builder
	writeSelect(&sb, stmt, "")
	switch {
	case stmt.Limit != nil && stmt.Offset > 0:
		sb.WriteString("\nLIMIT " + strconv.Itoa(stmt.Offset) + ", " + strconv.Itoa(*stmt.Limit))
	case stmt.Limit != nil:
		sb.WriteString("\nLIMIT " + strconv.Itoa(*stmt.Limit))
	case stmt.Offset > 0:
		sb.WriteString("\nLIMIT " + strconv.Itoa(stmt.Offset) + ", " + mysqlMaxRows)
	}
	return sb.String()
}
