package logger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hatlonely/tql/cfg"
	"github.com/hatlonely/tql/cfg/validator"
	"github.com/hatlonely/tql/log/writer"
	"github.com/hatlonely/tql/ref"
	"github.com/pkg/errors"
)

func init() {
	ref.MustRegisterT[*SLog](NewSLogWithOptions)
}

type SLogOptions struct {
	Level  string `cfg:"level" def:"info" validate:"oneof=debug info warn warning error"`
	Format string `cfg:"format" def:"text" validate:"oneof=text json"`
	// Output 为空时输出到 stdout
	Output     *ref.TypeOptions `cfg:"output"`
	TimeFormat string           `cfg:"timeFormat" def:"2006-01-02T15:04:05Z07:00"`
	AddSource  bool             `cfg:"addSource"`
	Fields     map[string]any   `cfg:"fields"`
}

// SLog 基于 log/slog 的 Logger
type SLog struct {
	slogger *slog.Logger
	w       writer.Writer
}

func NewSLogWithOptions(options *SLogOptions) (*SLog, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if err := cfg.SetDefaults(options); err != nil {
		return nil, errors.WithMessage(err, "cfg.SetDefaults failed")
	}
	if err := validator.ValidateStruct(options); err != nil {
		return nil, errors.WithMessage(err, "validator.ValidateStruct failed")
	}

	var w writer.Writer
	var err error
	if options.Output != nil && options.Output.Type != "" {
		w, err = writer.NewWriterWithOptions(options.Output)
	} else {
		w, err = writer.NewConsoleWriterWithOptions(nil)
	}
	if err != nil {
		return nil, errors.WithMessage(err, "create writer failed")
	}
	return NewSLog(w, options), nil
}

// NewSLog 使用已有的输出器，options 需已填充默认值
func NewSLog(w writer.Writer, options *SLogOptions) *SLog {
	handlerOptions := &slog.HandlerOptions{
		Level:     parseLevel(options.Level),
		AddSource: options.AddSource,
	}
	if options.TimeFormat != "" && options.TimeFormat != time.RFC3339 {
		timeFormat := options.TimeFormat
		handlerOptions.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(a.Key, a.Value.Time().Format(timeFormat))
			}
			return a
		}
	}

	var handler slog.Handler
	if strings.EqualFold(options.Format, "json") {
		handler = slog.NewJSONHandler(w, handlerOptions)
	} else {
		handler = slog.NewTextHandler(w, handlerOptions)
	}

	slogger := slog.New(handler)
	if len(options.Fields) > 0 {
		args := make([]any, 0, len(options.Fields)*2)
		for k, v := range options.Fields {
			args = append(args, k, v)
		}
		slogger = slogger.With(args...)
	}
	return &SLog{slogger: slogger, w: w}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (l *SLog) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

func (l *SLog) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

func (l *SLog) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

func (l *SLog) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

func (l *SLog) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, args...)
}

func (l *SLog) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, args...)
}

func (l *SLog) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, args...)
}

func (l *SLog) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, args...)
}

func (l *SLog) With(args ...any) Logger {
	return &SLog{slogger: l.slogger.With(args...), w: l.w}
}

func (l *SLog) WithGroup(name string) Logger {
	return &SLog{slogger: l.slogger.WithGroup(name), w: l.w}
}

// Close 关闭底层输出器，With 派生的 Logger 共享同一个输出器
func (l *SLog) Close() error {
	return l.w.Close()
}
