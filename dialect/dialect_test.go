package dialect

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hatlonely/tql/errs"
	"github.com/hatlonely/tql/model"
	"github.com/hatlonely/tql/ref"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Status int

func intPtr(i int) *int { return &i }

func newNotDialect() int { return 1 }

func TestNewDialect(t *testing.T) {
	Convey("按名称创建方言", t, func() {
		for name, want := range map[string]string{
			"sqlite":     "sqlite",
			"sqlite3":    "sqlite",
			"postgres":   "postgres",
			"postgresql": "postgres",
			"mysql":      "mysql",
			"sqlserver":  "sqlserver",
			"mssql":      "sqlserver",
		} {
			d, err := New(name)
			So(err, ShouldBeNil)
			So(d.Name(), ShouldEqual, want)
		}
		So(Builtin(), ShouldResemble, []string{"mssql", "mysql", "postgres", "postgresql", "sqlite", "sqlite3", "sqlserver"})

		Convey("未注册的方言立即报错", func() {
			_, err := New("oracle")
			So(errs.IsDialectNotRegistered(err), ShouldBeTrue)
			So(func() { MustNew("oracle") }, ShouldPanic)

			_, err = NewDialectWithOptions(&ref.TypeOptions{Namespace: "elsewhere", Type: "sqlite"})
			So(errs.IsDialectNotRegistered(err), ShouldBeTrue)

			_, err = NewDialectWithOptions(nil)
			So(err, ShouldNotBeNil)
		})

		Convey("注册自定义方言", func() {
			So(Register("sqlite-custom", NewSQLite), ShouldBeNil)
			d, err := NewDialectWithOptions(&ref.TypeOptions{Type: "sqlite-custom"})
			So(err, ShouldBeNil)
			So(d.Name(), ShouldEqual, "sqlite")

			So(Register("not-a-dialect", newNotDialect), ShouldBeNil)
			_, err = New("not-a-dialect")
			So(err, ShouldNotBeNil)
			So(errs.IsDialectNotRegistered(err), ShouldBeFalse)
		})
	})
}

func TestQuote(t *testing.T) {
	def := &model.ModelDefinition{Name: "Order", Table: "Order", Schema: "sales"}
	tests := []struct {
		dialect     Dialect
		ident       string
		table       string
		placeholder string
	}{
		{NewSQLite(), `"we""ird"`, `"sales"."Order"`, "?"},
		{NewPostgres(), `"we""ird"`, `"sales"."Order"`, "$3"},
		{NewMySQL(), "`we\"ird`", "`sales`.`Order`", "?"},
		{NewSQLServer(), `[we"ird]`, `[sales].[Order]`, "@p3"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			assert.Equal(t, tt.ident, tt.dialect.QuoteIdentifier(`we"ird`))
			assert.Equal(t, tt.table, tt.dialect.QuoteTable(def))
			assert.Equal(t, tt.placeholder, tt.dialect.Placeholder(2))
		})
	}

	assert.Equal(t, "[a]]b]", NewSQLServer().QuoteIdentifier("a]b"))
	assert.Equal(t, "`a``b`", NewMySQL().QuoteIdentifier("a`b"))
	assert.Equal(t, `"Order"`, NewSQLite().QuoteTable(&model.ModelDefinition{Table: "Order"}))
}

func TestFormatLiteral(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := "x"
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	tests := []struct {
		name    string
		dialect Dialect
		value   any
		want    string
	}{
		{"sqlite string", NewSQLite(), "O'Neil", "'O''Neil'"},
		{"sqlite bool", NewSQLite(), true, "1"},
		{"sqlite nil", NewSQLite(), nil, "NULL"},
		{"sqlite nil pointer", NewSQLite(), (*int)(nil), "NULL"},
		{"sqlite pointer", NewSQLite(), &s, "'x'"},
		{"sqlite named int", NewSQLite(), Status(3), "3"},
		{"sqlite float", NewSQLite(), 1.25, "1.25"},
		{"sqlite uint", NewSQLite(), uint8(7), "7"},
		{"sqlite time", NewSQLite(), at, "'2024-01-02 03:04:05'"},
		{"postgres bool", NewPostgres(), false, "FALSE"},
		{"postgres backslash", NewPostgres(), `a\b`, `E'a\\b'`},
		{"mysql backslash", NewMySQL(), `a\b'`, `'a\\b'''`},
		{"mysql bool", NewMySQL(), true, "TRUE"},
		{"sqlserver string", NewSQLServer(), "abc", "N'abc'"},
		{"sqlserver bool", NewSQLServer(), false, "0"},
		{"sqlserver time pointer", NewSQLServer(), &at, "N'2024-01-02 03:04:05'"},
		{"postgres uuid", NewPostgres(), id, "'6ba7b810-9dad-11d1-80b4-00c04fd430c8'"},
		{"sqlserver uuid", NewSQLServer(), &id, "N'6ba7b810-9dad-11d1-80b4-00c04fd430c8'"},
		{"mysql decimal", NewMySQL(), decimal.RequireFromString("12.50"), "12.5"},
		{"sqlite decimal", NewSQLite(), decimal.New(-3, -2), "-0.03"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.dialect.FormatLiteral(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NewSQLite().FormatLiteral([]int{1})
	assert.True(t, errs.IsUnsupportedExpression(err))
	_, err = NewPostgres().FormatLiteral(struct{}{})
	assert.True(t, errs.IsUnsupportedExpression(err))
}

func TestFunctions(t *testing.T) {
	assert.Equal(t, "LENGTH(x)", NewSQLite().Function(FuncLength, "x"))
	assert.Equal(t, "CHAR_LENGTH(x)", NewPostgres().Function(FuncLength, "x"))
	assert.Equal(t, "CHAR_LENGTH(x)", NewMySQL().Function(FuncLength, "x"))
	assert.Equal(t, "LEN(x)", NewSQLServer().Function(FuncLength, "x"))
	assert.Equal(t, "LTRIM(RTRIM(x))", NewSQLServer().Function(FuncTrim, "x"))
	assert.Equal(t, "TRIM(x)", NewPostgres().Function(FuncTrim, "x"))
	assert.Equal(t, "MAX(x)", NewSQLite().Function(FuncMax, "x"))
	assert.Equal(t, "COUNT(*)", NewSQLServer().Function(FuncCount, "*"))
	assert.Equal(t, "AVG(x)", NewMySQL().Function(FuncAvg, "x"))

	assert.Equal(t, "a || b || c", NewSQLite().Concat("a", "b", "c"))
	assert.Equal(t, "a || b", NewPostgres().Concat("a", "b"))
	assert.Equal(t, "CONCAT(a, b)", NewMySQL().Concat("a", "b"))
	assert.Equal(t, "a + b", NewSQLServer().Concat("a", "b"))
}

func TestRenderSelect(t *testing.T) {
	base := func() *SelectStatement {
		return &SelectStatement{
			Columns: []string{"a", "b"},
			From:    "t",
			Joins:   []string{"INNER JOIN u ON t.id = u.id"},
			Where:   "a = 1",
			OrderBy: []string{"a", "b DESC"},
		}
	}
	const head = "SELECT a, b\nFROM t\nINNER JOIN u ON t.id = u.id\nWHERE a = 1\nORDER BY a, b DESC"

	Convey("分页由方言渲染", t, func() {
		Convey("offset 和 limit", func() {
			stmt := base()
			stmt.Offset, stmt.Limit = 5, intPtr(10)
			So(NewSQLite().RenderSelect(stmt), ShouldEqual, head+"\nLIMIT 10 OFFSET 5")
			So(NewPostgres().RenderSelect(stmt), ShouldEqual, head+"\nLIMIT 10 OFFSET 5")
			So(NewMySQL().RenderSelect(stmt), ShouldEqual, head+"\nLIMIT 5, 10")
			So(NewSQLServer().RenderSelect(stmt), ShouldEqual, head+"\nOFFSET 5 ROWS FETCH NEXT 10 ROWS ONLY")
		})

		Convey("只有 limit", func() {
			stmt := base()
			stmt.Limit = intPtr(10)
			So(NewSQLite().RenderSelect(stmt), ShouldEqual, head+"\nLIMIT 10")
			So(NewMySQL().RenderSelect(stmt), ShouldEqual, head+"\nLIMIT 10")
			So(NewSQLServer().RenderSelect(stmt), ShouldEqual,
				"SELECT TOP 10 a, b\nFROM t\nINNER JOIN u ON t.id = u.id\nWHERE a = 1\nORDER BY a, b DESC")
		})

		Convey("只有 offset", func() {
			stmt := base()
			stmt.Offset = 5
			So(NewSQLite().RenderSelect(stmt), ShouldEqual, head+"\nLIMIT -1 OFFSET 5")
			So(NewPostgres().RenderSelect(stmt), ShouldEqual, head+"\nOFFSET 5")
			So(NewMySQL().RenderSelect(stmt), ShouldEqual, head+"\nLIMIT 5, 18446744073709551615")
			So(NewSQLServer().RenderSelect(stmt), ShouldEqual, head+"\nOFFSET 5 ROWS")
		})

		Convey("SQL Server 无排序时补充 ORDER BY", func() {
			stmt := &SelectStatement{Distinct: true, Columns: []string{"a"}, From: "t", Offset: 2, Limit: intPtr(3)}
			So(NewSQLServer().RenderSelect(stmt), ShouldEqual,
				"SELECT DISTINCT a\nFROM t\nORDER BY (SELECT NULL)\nOFFSET 2 ROWS FETCH NEXT 3 ROWS ONLY")
			So(stmt.OrderBy, ShouldBeEmpty)

			stmt = &SelectStatement{Distinct: true, Columns: []string{"a"}, From: "t", Limit: intPtr(3)}
			So(NewSQLServer().RenderSelect(stmt), ShouldEqual, "SELECT DISTINCT TOP 3 a\nFROM t")
		})

		Convey("无分页", func() {
			So(NewPostgres().RenderSelect(base()), ShouldEqual, head)
		})
	})
}

// TestSQLiteExecutesRenderedSelect 渲染结果能被 SQLite 执行
func TestSQLiteExecutesRenderedSelect(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE "Item" ("Id" INTEGER PRIMARY KEY, "Name" TEXT)`)
	require.NoError(t, err)
	for i := 1; i <= 20; i++ {
		_, err = db.Exec(`INSERT INTO "Item" ("Id", "Name") VALUES (?, ?)`, i, "item")
		require.NoError(t, err)
	}

	d := NewSQLite()
	def := &model.ModelDefinition{Type: reflect.TypeOf(struct{}{}), Table: "Item"}
	tests := []struct {
		offset int
		limit  *int
		want   []int
	}{
		{5, intPtr(3), []int{6, 7, 8}},
		{0, intPtr(2), []int{1, 2}},
		{18, nil, []int{19, 20}},
	}
	for _, tt := range tests {
		query := d.RenderSelect(&SelectStatement{
			Columns: []string{d.QuoteTable(def) + "." + d.QuoteIdentifier("Id")},
			From:    d.QuoteTable(def),
			Where:   d.QuoteIdentifier("Name") + " = " + d.Placeholder(0),
			OrderBy: []string{d.QuoteIdentifier("Id")},
			Offset:  tt.offset,
			Limit:   tt.limit,
		})
		rows, err := db.Query(query, "item")
		require.NoError(t, err, query)
		var ids []int
		for rows.Next() {
			var id int
			require.NoError(t, rows.Scan(&id))
			ids = append(ids, id)
		}
		require.NoError(t, rows.Close())
		assert.Equal(t, tt.want, ids, query)
	}
}
