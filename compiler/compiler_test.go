package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hatlonely/tql/errs"
	"github.com/hatlonely/tql/expr"
	"github.com/hatlonely/tql/log/logger"
	"github.com/hatlonely/tql/model"
	"github.com/hatlonely/tql/query"
	"github.com/hatlonely/tql/ref"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ShipperType struct {
	Id   int `tql:",pk,auto"`
	Name string
}

type Shipper struct {
	Id            int `tql:",pk,auto"`
	CompanyName   string
	Phone         *string
	ShipperTypeId int `tql:",ref=ShipperType"`
}

type Unregistered struct {
	Id int
}

func newCompiler(t *testing.T, options *Options, opts ...Option) *Compiler {
	c, err := NewCompilerWithOptions(options, opts...)
	require.NoError(t, err)
	c.Registry().MustRegister(ShipperType{}, Shipper{})
	return c
}

func typeIs(v int) expr.Lambda {
	return expr.For[Shipper](func(s *expr.Parameter) expr.Expr {
		return expr.Eq(s.Col("ShipperTypeId"), expr.Val(v))
	})
}

func TestNewCompilerWithOptions(t *testing.T) {
	Convey("NewCompilerWithOptions", t, func() {
		Convey("默认值", func() {
			c, err := NewCompilerWithOptions(&Options{Dialect: ref.TypeOptions{Type: "sqlite"}})
			So(err, ShouldBeNil)
			So(c.Options().Naming, ShouldEqual, "identity")
			So(c.Options().Name, ShouldEqual, "tql")
			So(c.Dialect().Name(), ShouldEqual, "sqlite")
			So(c.Registry(), ShouldNotBeNil)
		})

		Convey("不修改调用方的 options", func() {
			options := &Options{Dialect: ref.TypeOptions{Type: "sqlite"}}
			_, err := NewCompilerWithOptions(options)
			So(err, ShouldBeNil)
			So(options.Naming, ShouldBeEmpty)
		})

		Convey("方言未注册", func() {
			_, err := NewCompilerWithOptions(&Options{Dialect: ref.TypeOptions{Type: "oracle"}})
			So(errs.IsDialectNotRegistered(err), ShouldBeTrue)

			_, err = NewCompilerWithOptions(&Options{})
			So(errs.IsDialectNotRegistered(err), ShouldBeTrue)
		})

		Convey("命名策略非法", func() {
			_, err := NewCompilerWithOptions(&Options{Dialect: ref.TypeOptions{Type: "sqlite"}, Naming: "camel"})
			So(err, ShouldNotBeNil)
		})

		Convey("nil options", func() {
			_, err := NewCompilerWithOptions(nil)
			So(err, ShouldNotBeNil)
		})

		Convey("共享注册表", func() {
			registry := model.NewRegistry()
			c, err := NewCompilerWithOptions(&Options{Dialect: ref.TypeOptions{Type: "mysql"}, Naming: "snake"}, WithRegistry(registry))
			So(err, ShouldBeNil)
			So(c.Registry(), ShouldEqual, registry)
		})
	})
}

func TestCompilePredicate(t *testing.T) {
	ctx := context.Background()

	Convey("CompilePredicate", t, func() {
		Convey("postgres 参数从 $1 开始", func() {
			c := newCompiler(t, &Options{Dialect: ref.TypeOptions{Type: "postgres"}})
			sql, args, err := c.CompilePredicate(ctx, expr.For[Shipper](func(s *expr.Parameter) expr.Expr {
				return expr.And(
					expr.StartsWith(s.Col("CompanyName"), expr.Val("Fed")),
					expr.Eq(s.Col("ShipperTypeId"), expr.Val(7)),
				)
			}))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `"CompanyName" LIKE $1 || '%' AND "ShipperTypeId" = $2`)
			So(args, ShouldResemble, []any{"Fed", 7})
		})

		Convey("列名带表名前缀", func() {
			c := newCompiler(t, &Options{Dialect: ref.TypeOptions{Type: "sqlite"}, PrefixColumns: true})
			sql, args, err := c.CompilePredicate(ctx, typeIs(7))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `"Shipper"."ShipperTypeId" = ?`)
			So(args, ShouldResemble, []any{7})
		})

		Convey("与 null 比较改写为 IS NULL", func() {
			c := newCompiler(t, &Options{Dialect: ref.TypeOptions{Type: "sqlserver"}})
			sql, args, err := c.CompilePredicate(ctx, expr.For[Shipper](func(s *expr.Parameter) expr.Expr {
				return expr.Eq(s.Col("Phone"), expr.Null())
			}))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `[Phone] IS NULL`)
			So(args, ShouldBeEmpty)
		})

		Convey("snake 命名", func() {
			c := newCompiler(t, &Options{Dialect: ref.TypeOptions{Type: "mysql"}, Naming: "snake"})
			sql, _, err := c.CompilePredicate(ctx, typeIs(7))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "`shipper_type_id` = ?")
		})

		Convey("未注册的类型", func() {
			c := newCompiler(t, &Options{Dialect: ref.TypeOptions{Type: "sqlite"}})
			sql, args, err := c.CompilePredicate(ctx, expr.For[Unregistered](func(u *expr.Parameter) expr.Expr {
				return expr.Eq(u.Col("Id"), expr.Val(1))
			}))
			So(errs.IsUnknownModel(err), ShouldBeTrue)
			So(sql, ShouldBeEmpty)
			So(args, ShouldBeNil)
		})

		Convey("不支持的方法", func() {
			c := newCompiler(t, &Options{Dialect: ref.TypeOptions{Type: "sqlite"}})
			_, _, err := c.CompilePredicate(ctx, expr.For[Shipper](func(s *expr.Parameter) expr.Expr {
				return expr.Method(s.Col("CompanyName"), "Soundex")
			}))
			So(errs.IsUnsupportedExpression(err), ShouldBeTrue)
		})
	})
}

func TestCompileStatements(t *testing.T) {
	ctx := context.Background()

	Convey("CompileSelect", t, func() {
		c := newCompiler(t, &Options{Dialect: ref.TypeOptions{Type: "sqlite"}})
		sql, args, err := c.CompileSelect(ctx, typeIs(7))
		So(err, ShouldBeNil)
		So(sql, ShouldEqual, strings.Join([]string{
			`SELECT "Shipper"."Id", "Shipper"."CompanyName", "Shipper"."Phone", "Shipper"."ShipperTypeId"`,
			`FROM "Shipper"`,
			`WHERE "Shipper"."ShipperTypeId" = ?`,
		}, "\n"))
		So(args, ShouldResemble, []any{7})

		_, _, err = c.CompileSelect(ctx, expr.Lambda{})
		So(err, ShouldNotBeNil)
	})

	Convey("CompileDelete", t, func() {
		c := newCompiler(t, &Options{Dialect: ref.TypeOptions{Type: "sqlserver"}})
		sql, args, err := c.CompileDelete(ctx, typeIs(3))
		So(err, ShouldBeNil)
		So(sql, ShouldEqual, "DELETE FROM [Shipper]\nWHERE [ShipperTypeId] = @p1")
		So(args, ShouldResemble, []any{3})

		_, _, err = c.CompileDelete(ctx, expr.For[Unregistered](func(u *expr.Parameter) expr.Expr {
			return expr.Eq(u.Col("Id"), expr.Val(1))
		}))
		So(errs.IsUnknownModel(err), ShouldBeTrue)
	})
}

func TestNewQueryAndRender(t *testing.T) {
	Convey("NewQuery 与 Render", t, func() {
		c := newCompiler(t, &Options{Dialect: ref.TypeOptions{Type: "postgres"}})

		b, err := NewQueryT[Shipper](c)
		So(err, ShouldBeNil)
		So(b.Join(query.JoinInner, expr.Column[Shipper]("ShipperTypeId"), expr.Column[ShipperType]("Id")), ShouldBeNil)
		So(b.Where(typeIs(7)), ShouldBeNil)
		So(b.Select(expr.Columns[Shipper]("CompanyName")), ShouldBeNil)
		So(b.Take(10), ShouldBeNil)

		sql, args, err := c.Render(context.Background(), b)
		So(err, ShouldBeNil)
		So(sql, ShouldEqual, strings.Join([]string{
			`SELECT "Shipper"."CompanyName"`,
			`FROM "Shipper"`,
			`INNER JOIN "ShipperType" ON "Shipper"."ShipperTypeId" = "ShipperType"."Id"`,
			`WHERE "Shipper"."ShipperTypeId" = $1`,
			`LIMIT 10`,
		}, "\n"))
		So(args, ShouldResemble, []any{7})

		_, _, err = c.Render(context.Background(), nil)
		So(err, ShouldNotBeNil)

		_, err = c.NewQuery(nil)
		So(err, ShouldNotBeNil)
	})
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	options := &Options{Dialect: ref.TypeOptions{Type: "sqlite"}, EnableMetrics: true, Name: "tql_test"}

	c := newCompiler(t, options, WithRegisterer(registry))
	for i := 0; i < 2; i++ {
		_, _, err := c.CompilePredicate(ctx, typeIs(i))
		require.NoError(t, err)
	}
	_, _, err := c.CompilePredicate(ctx, expr.For[Unregistered](func(u *expr.Parameter) expr.Expr {
		return expr.Eq(u.Col("Id"), expr.Val(1))
	}))
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.total.WithLabelValues("CompilePredicate", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.total.WithLabelValues("CompilePredicate", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.metrics.total))
	assert.Equal(t, 1, testutil.CollectAndCount(c.metrics.duration))

	// 同名 Compiler 复用已注册的指标
	other := newCompiler(t, options, WithRegisterer(registry))
	_, _, err = other.CompileSelect(ctx, typeIs(1))
	require.NoError(t, err)
	assert.Same(t, c.metrics.total, other.metrics.total)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.total.WithLabelValues("CompileSelect", "success")))

	disabled := newCompiler(t, &Options{Dialect: ref.TypeOptions{Type: "sqlite"}})
	assert.Nil(t, disabled.metrics)
}

type bufferWriter struct {
	bytes.Buffer
}

func (b *bufferWriter) Close() error {
	return nil
}

func TestLogging(t *testing.T) {
	ctx := context.Background()
	buf := &bufferWriter{}
	l := logger.NewSLog(buf, &logger.SLogOptions{Level: "debug", Format: "json"})

	c := newCompiler(t, &Options{Dialect: ref.TypeOptions{Type: "sqlite"}, EnableTracing: true}, WithLogger(l))
	_, _, err := c.CompilePredicate(ctx, typeIs(1))
	require.NoError(t, err)
	_, _, err = c.CompilePredicate(ctx, expr.For[Shipper](func(s *expr.Parameter) expr.Expr {
		return expr.Eq(s.Col("Missing"), expr.Val(1))
	}))
	require.Error(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var ok, failed struct {
		Level    string         `json:"level"`
		Msg      string         `json:"msg"`
		Compiler map[string]any `json:"compiler"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ok))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &failed))

	assert.Equal(t, "DEBUG", ok.Level)
	assert.Equal(t, "CompilePredicate", ok.Compiler["operation"])
	assert.Equal(t, "sqlite", ok.Compiler["dialect"])
	assert.Equal(t, "tql", ok.Compiler["component"])
	assert.Equal(t, "WARN", failed.Level)
	assert.Contains(t, failed.Compiler["error"], "Missing")
}

func TestNewCompilerFromFile(t *testing.T) {
	Convey("从配置文件创建", t, func() {
		dir := t.TempDir()
		files := map[string]string{
			"tql.json": `{"dialect": {"type": "postgres"}, "naming": "snake", "prefixColumns": true}`,
			"tql.yaml": "dialect:\n  type: postgres\nnaming: snake\nprefixColumns: true\n",
			"tql.toml": "naming = \"snake\"\nprefixColumns = true\n[dialect]\ntype = \"postgres\"\n",
			"tql.ini":  "naming = snake\nprefixColumns = true\n[dialect]\ntype = postgres\n",
		}
		for name, content := range files {
			path := filepath.Join(dir, name)
			So(os.WriteFile(path, []byte(content), 0644), ShouldBeNil)

			c, err := NewCompilerFromFile(path)
			So(err, ShouldBeNil)
			c.Registry().MustRegister(Shipper{})

			sql, _, err := c.CompilePredicate(context.Background(), typeIs(1))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `"shipper"."shipper_type_id" = $1`)
		}

		_, err := NewCompilerFromFile(filepath.Join(dir, "missing.yaml"))
		So(err, ShouldNotBeNil)
	})
}
