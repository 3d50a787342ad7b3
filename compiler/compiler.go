package compiler

import (
	"context"
	"reflect"
	"time"

	"github.com/hatlonely/tql/cfg"
	"github.com/hatlonely/tql/cfg/validator"
	"github.com/hatlonely/tql/dialect"
	"github.com/hatlonely/tql/expr"
	"github.com/hatlonely/tql/log"
	"github.com/hatlonely/tql/log/logger"
	"github.com/hatlonely/tql/model"
	"github.com/hatlonely/tql/query"
	"github.com/hatlonely/tql/ref"
	"github.com/hatlonely/tql/translator"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	// Dialect 后端方言，namespace 为空时使用内置方言
	Dialect ref.TypeOptions `cfg:"dialect"`

	// Naming 未指定 WithRegistry 时新建注册表使用的命名策略
	Naming string `cfg:"naming" def:"identity" validate:"oneof=identity snake plural"`

	// PrefixColumns CompilePredicate 输出的列名带表名前缀
	PrefixColumns bool `cfg:"prefixColumns"`

	Logger *ref.TypeOptions `cfg:"logger"`

	EnableMetrics bool `cfg:"enableMetrics"`
	EnableTracing bool `cfg:"enableTracing"`
	EnableLogging bool `cfg:"enableLogging"`

	// Name 指标名前缀，日志和 span 的 component
	Name string `cfg:"name" def:"tql" validate:"required"`
}

type Option func(*Compiler)

// WithRegistry 使用已有的模型注册表，Options.Naming 不再生效
func WithRegistry(registry *model.Registry) Option {
	return func(c *Compiler) {
		c.registry = registry
	}
}

// WithRegisterer 指标注册位置，默认 prometheus.DefaultRegisterer
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(c *Compiler) {
		c.registerer = registerer
	}
}

// WithLogger 优先于 Options.Logger，传入时即开启日志
func WithLogger(l logger.Logger) Option {
	return func(c *Compiler) {
		c.logger = l
	}
}

// Compiler 绑定方言和模型注册表，可以并发使用
type Compiler struct {
	options    Options
	registry   *model.Registry
	registerer prometheus.Registerer
	dialect    dialect.Dialect
	translator *translator.Translator

	logger  logger.Logger
	metrics *compileMetrics
	tracer  trace.Tracer
}

func NewCompilerWithOptions(options *Options, opts ...Option) (*Compiler, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	copied := *options
	options = &copied
	if err := cfg.SetDefaults(options); err != nil {
		return nil, errors.WithMessage(err, "cfg.SetDefaults failed")
	}
	if err := validator.ValidateStruct(options); err != nil {
		return nil, errors.WithMessage(err, "validator.ValidateStruct failed")
	}

	c := &Compiler{options: *options}
	for _, opt := range opts {
		opt(c)
	}

	d, err := dialect.NewDialectWithOptions(&options.Dialect)
	if err != nil {
		return nil, errors.WithMessage(err, "create dialect failed")
	}
	c.dialect = d

	if c.registry == nil {
		registry, err := model.NewRegistryWithOptions(&model.RegistryOptions{Naming: options.Naming})
		if err != nil {
			return nil, errors.WithMessage(err, "create registry failed")
		}
		c.registry = registry
	}
	c.translator = translator.New(c.registry, d)

	if options.EnableLogging || c.logger != nil {
		if c.logger == nil {
			l, err := log.NewLoggerWithOptions(options.Logger)
			if err != nil {
				return nil, errors.WithMessage(err, "create logger failed")
			}
			c.logger = l
		}
		c.logger = c.logger.WithGroup("compiler")
	}

	if options.EnableMetrics {
		if c.registerer == nil {
			c.registerer = prometheus.DefaultRegisterer
		}
		metrics, err := newCompileMetrics(options.Name, c.registerer)
		if err != nil {
			return nil, errors.WithMessage(err, "create metrics failed")
		}
		c.metrics = metrics
	}

	if options.EnableTracing {
		c.tracer = otel.Tracer("tql." + options.Name)
	}

	return c, nil
}

// NewCompilerFromFile 按文件后缀选择 json/yaml/toml/ini 解码
func NewCompilerFromFile(filename string, opts ...Option) (*Compiler, error) {
	options, err := loadOptions(filename)
	if err != nil {
		return nil, err
	}
	return NewCompilerWithOptions(options, opts...)
}

func loadOptions(filename string) (*Options, error) {
	config, err := cfg.NewConfig(filename)
	if err != nil {
		return nil, errors.WithMessage(err, "cfg.NewConfig failed")
	}
	defer config.Close()

	var options Options
	if err := config.ConvertTo("", &options); err != nil {
		return nil, errors.WithMessagef(err, "convert config failed, file [%s]", filename)
	}
	return &options, nil
}

func (c *Compiler) Dialect() dialect.Dialect {
	return c.dialect
}

func (c *Compiler) Registry() *model.Registry {
	return c.registry
}

func (c *Compiler) Options() Options {
	return c.options
}

// CompilePredicate 把谓词翻译成 WHERE 片段，占位符从第一个参数开始编号
func (c *Compiler) CompilePredicate(ctx context.Context, l expr.Lambda) (string, []any, error) {
	var sql string
	var args []any
	err := c.observe(ctx, "CompilePredicate", func(ctx context.Context) error {
		frag, err := c.translator.Translate(l, translator.Options{Prefix: c.options.PrefixColumns})
		if err != nil {
			return err
		}
		sql, args = frag.Render(c.dialect, 0)
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return sql, args, nil
}

// CompileSelect 查询谓词所在表的全部列
func (c *Compiler) CompileSelect(ctx context.Context, l expr.Lambda) (string, []any, error) {
	var sql string
	var args []any
	err := c.observe(ctx, "CompileSelect", func(ctx context.Context) error {
		if l.Param == nil {
			return errors.New("lambda has no parameter")
		}
		b, err := query.New(c.translator, l.Param.Type)
		if err != nil {
			return err
		}
		if err := b.Where(l); err != nil {
			return err
		}
		sql, args, err = b.ToSQL()
		return err
	})
	if err != nil {
		return "", nil, err
	}
	return sql, args, nil
}

// CompileDelete 删除满足谓词的行
func (c *Compiler) CompileDelete(ctx context.Context, l expr.Lambda) (string, []any, error) {
	var sql string
	var args []any
	err := c.observe(ctx, "CompileDelete", func(ctx context.Context) error {
		if l.Param == nil {
			return errors.New("lambda has no parameter")
		}
		def, err := c.registry.Resolve(l.Param.Type)
		if err != nil {
			return err
		}
		frag, err := c.translator.Translate(l, translator.Options{Prefix: c.options.PrefixColumns})
		if err != nil {
			return err
		}
		where, whereArgs := frag.Render(c.dialect, 0)
		sql, args = "DELETE FROM "+c.dialect.QuoteTable(def)+"\nWHERE "+where, whereArgs
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return sql, args, nil
}

// NewQuery 创建绑定到 baseType 的查询，baseType 必须已经注册
func (c *Compiler) NewQuery(baseType reflect.Type) (*query.Builder, error) {
	return query.New(c.translator, baseType)
}

func NewQueryT[T any](c *Compiler) (*query.Builder, error) {
	return query.NewT[T](c.translator)
}

// Render 渲染查询，与 Builder.ToSQL 相同，附带指标、日志和追踪
func (c *Compiler) Render(ctx context.Context, b *query.Builder) (string, []any, error) {
	var sql string
	var args []any
	err := c.observe(ctx, "Render", func(ctx context.Context) error {
		if b == nil {
			return errors.New("builder is nil")
		}
		var err error
		sql, args, err = b.ToSQL()
		return err
	})
	if err != nil {
		return "", nil, err
	}
	return sql, args, nil
}

func (c *Compiler) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := time.Now()

	var span trace.Span
	if c.tracer != nil {
		ctx, span = c.tracer.Start(ctx, "tql."+operation,
			trace.WithAttributes(
				attribute.String("component", c.options.Name),
				attribute.String("operation", operation),
				attribute.String("dialect", c.dialect.Name()),
			),
		)
		defer span.End()
	}

	err := fn(ctx)
	duration := time.Since(start)

	if span != nil {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if c.metrics != nil {
		c.metrics.observe(operation, duration.Seconds(), err)
	}

	if c.logger != nil {
		if err != nil {
			c.logger.WarnContext(ctx, "compile failed",
				"component", c.options.Name,
				"operation", operation,
				"dialect", c.dialect.Name(),
				"duration", duration,
				"error", err.Error(),
			)
		} else {
			c.logger.DebugContext(ctx, "compile completed",
				"component", c.options.Name,
				"operation", operation,
				"dialect", c.dialect.Name(),
				"duration", duration,
			)
		}
	}

	return err
}
