package writer

import (
	"io"

	"github.com/hatlonely/tql/ref"
	"github.com/pkg/errors"
)

func init() {
	ref.MustRegisterT[*ConsoleWriter](NewConsoleWriterWithOptions)
	ref.MustRegisterT[*FileWriter](NewFileWriterWithOptions)
	ref.MustRegisterT[*MultiWriter](NewMultiWriterWithOptions)
}

// Namespace 内置输出器在 ref 中的命名空间
const Namespace = "github.com/hatlonely/tql/log/writer"

// Writer 日志输出器
type Writer interface {
	io.Writer
	io.Closer
}

func NewWriterWithOptions(options *ref.TypeOptions) (Writer, error) {
	obj, err := ref.New(options.Namespace, options.Type, options.Options)
	if err != nil {
		return nil, err
	}
	w, ok := obj.(Writer)
	if !ok {
		return nil, errors.Errorf("%s:%s is not a Writer", options.Namespace, options.Type)
	}
	return w, nil
}
