package log

import (
	"github.com/hatlonely/tql/log/logger"
	"github.com/hatlonely/tql/ref"
	"github.com/pkg/errors"
)

var defaultLogger logger.Logger

func init() {
	l, err := logger.NewSLogWithOptions(&logger.SLogOptions{})
	if err != nil {
		panic("init default logger failed: " + err.Error())
	}
	defaultLogger = l
}

// Default 输出到 stdout 的 info 级别 text 日志
func Default() logger.Logger {
	return defaultLogger
}

// NewLoggerWithOptions options 为空时返回 Default
func NewLoggerWithOptions(options *ref.TypeOptions) (logger.Logger, error) {
	if options == nil || options.Type == "" {
		return Default(), nil
	}
	obj, err := ref.New(options.Namespace, options.Type, options.Options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.New failed")
	}
	l, ok := obj.(logger.Logger)
	if !ok {
		return nil, errors.Errorf("%s:%s is not a Logger", options.Namespace, options.Type)
	}
	return l, nil
}
