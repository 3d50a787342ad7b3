package dialect

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hatlonely/tql/errs"
	"github.com/hatlonely/tql/model"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02 15:04:05"

var functionNames = map[Func]string{
	FuncLength: "CHAR_LENGTH",
	FuncUpper:  "UPPER",
	FuncLower:  "LOWER",
	FuncTrim:   "TRIM",
	FuncMax:    "MAX",
	FuncMin:    "MIN",
	FuncCount:  "COUNT",
	FuncAvg:    "AVG",
	FuncSum:    "SUM",
}

func renderFunction(overrides map[Func]string, fn Func, arg string) string {
	name, ok := overrides[fn]
	if !ok {
		name = functionNames[fn]
	}
	return name + "(" + arg + ")"
}

func quoteTable(d Dialect, def *model.ModelDefinition) string {
	if def.Schema != "" {
		return d.QuoteIdentifier(def.Schema) + "." + d.QuoteIdentifier(def.Table)
	}
	return d.QuoteIdentifier(def.Table)
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func concatOperator(op string, parts []string) string {
	return strings.Join(parts, " "+op+" ")
}

type literalStyle struct {
	quote     func(string) string
	trueText  string
	falseText string
}

// formatLiteral 按方言风格渲染字面量
func formatLiteral(v any, style literalStyle) (string, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return "NULL", nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return "NULL", nil
	}

	switch x := rv.Interface().(type) {
	case time.Time:
		return style.quote(x.Format(timeLayout)), nil
	case uuid.UUID:
		return style.quote(x.String()), nil
	case decimal.Decimal:
		return x.String(), nil
	}

	switch rv.Kind() {
	case reflect.String:
		return style.quote(rv.String()), nil
	case reflect.Bool:
		if rv.Bool() {
			return style.trueText, nil
		}
		return style.falseText, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), nil
	}
	return "", errors.WithStack(&errs.UnsupportedExpressionError{
		Node:   rv.Type().String(),
		Reason: "value cannot be rendered as a literal",
	})
}

// writeSelect 渲染除分页以外的部分，top 非空时写在列之前
func writeSelect(sb *strings.Builder, stmt *SelectStatement, top string) {
	sb.WriteString("SELECT ")
	if stmt.Distinct {
		sb.WriteString("DISTINCT ")
	}
	if top != "" {
		sb.WriteString(top)
		sb.WriteString(" ")
	}
	sb.WriteString(strings.Join(stmt.Columns, ", "))
	sb.WriteString("\nFROM ")
	sb.WriteString(stmt.From)
	for _, join := range stmt.Joins {
		sb.WriteString("\n")
		sb.WriteString(join)
	}
	if stmt.Where != "" {
		sb.WriteString("\nWHERE ")
		sb.WriteString(stmt.Where)
	}
	writeOrderBy(sb, stmt.OrderBy)
}

func writeOrderBy(sb *strings.Builder, orderBy []string) {
	if len(orderBy) != 0 {
		sb.WriteString("\nORDER BY ")
		sb.WriteString(strings.Join(orderBy, ", "))
	}
}
