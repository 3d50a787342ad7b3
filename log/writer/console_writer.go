package writer

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

type ConsoleWriterOptions struct {
	// stdout 或 stderr
	Target string `cfg:"target"`
}

type ConsoleWriter struct {
	w io.Writer
}

func NewConsoleWriterWithOptions(options *ConsoleWriterOptions) (*ConsoleWriter, error) {
	if options == nil {
		options = &ConsoleWriterOptions{}
	}
	switch options.Target {
	case "", "stdout":
		return &ConsoleWriter{w: os.Stdout}, nil
	case "stderr":
		return &ConsoleWriter{w: os.Stderr}, nil
	}
	return nil, errors.Errorf("unsupported console target [%s]", options.Target)
}

func (c *ConsoleWriter) Write(p []byte) (int, error) {
	return c.w.Write(p)
}

// Close 标准输出不关闭
func (c *ConsoleWriter) Close() error {
	return nil
}
