package cfg

import (
	"sync"
	"sync/atomic"

	"github.com/hatlonely/tql/cfg/decoder"
	"github.com/hatlonely/tql/cfg/provider"
	"github.com/hatlonely/tql/cfg/storage"
	"github.com/hatlonely/tql/ref"
	"github.com/pkg/errors"
)

type Options struct {
	Provider ref.TypeOptions `cfg:"provider"`
	Decoder  ref.TypeOptions `cfg:"decoder"`
}

// Config 由 Provider 读取、Decoder 解码的配置，变更后整体替换
type Config struct {
	provider provider.Provider
	decoder  decoder.Decoder
	storage  atomic.Pointer[storageHolder]

	mu       sync.Mutex
	handlers []func(*Config) error
	onError  func(error)
	closed   bool
}

type storageHolder struct {
	storage.Storage
}

func NewConfigWithOptions(options *Options) (*Config, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	obj, err := ref.New(options.Provider.Namespace, options.Provider.Type, options.Provider.Options)
	if err != nil {
		return nil, errors.WithMessage(err, "create provider failed")
	}
	p, ok := obj.(provider.Provider)
	if !ok {
		return nil, errors.Errorf("%s:%s is not a Provider", options.Provider.Namespace, options.Provider.Type)
	}
	d, err := decoder.NewDecoderWithOptions(&options.Decoder)
	if err != nil {
		return nil, errors.WithMessage(err, "create decoder failed")
	}
	return newConfig(p, d)
}

// NewConfig 从文件加载配置，根据后缀选择解码器
func NewConfig(filename string) (*Config, error) {
	decoderOptions, err := decoder.TypeOptionsForFile(filename)
	if err != nil {
		return nil, err
	}
	d, err := decoder.NewDecoderWithOptions(decoderOptions)
	if err != nil {
		return nil, err
	}
	p, err := provider.NewFileProviderWithOptions(&provider.FileProviderOptions{FilePath: filename})
	if err != nil {
		return nil, err
	}
	return newConfig(p, d)
}

func newConfig(p provider.Provider, d decoder.Decoder) (*Config, error) {
	data, err := p.Load()
	if err != nil {
		return nil, errors.WithMessage(err, "provider.Load failed")
	}
	s, err := d.Decode(data)
	if err != nil {
		return nil, errors.WithMessage(err, "decoder.Decode failed")
	}

	c := &Config{provider: p, decoder: d}
	c.storage.Store(&storageHolder{s})
	p.OnChange(c.reload)
	return c, nil
}

func (c *Config) Sub(key string) storage.Storage {
	return c.storage.Load().Sub(key)
}

// ConvertTo 将 key 对应的配置转换到 object，key 为空表示整个配置
func (c *Config) ConvertTo(key string, object any) error {
	return c.Sub(key).ConvertTo(object)
}

// OnChange 注册变更回调，解码失败的变更不会触发回调
func (c *Config) OnChange(fn func(*Config) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, fn)
}

// OnError 设置变更过程中的错误处理函数
func (c *Config) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

func (c *Config) Watch() error {
	return c.provider.Watch()
}

func (c *Config) reload(data []byte) {
	c.mu.Lock()
	handlers := append([]func(*Config) error{}, c.handlers...)
	onError := c.onError
	c.mu.Unlock()

	s, err := c.decoder.Decode(data)
	if err != nil {
		if onError != nil {
			onError(errors.WithMessage(err, "decoder.Decode failed"))
		}
		return
	}
	c.storage.Store(&storageHolder{s})

	for _, fn := range handlers {
		if err := fn(c); err != nil && onError != nil {
			onError(err)
		}
	}
}

// Close 多次调用只关闭一次
func (c *Config) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.provider.Close()
}
