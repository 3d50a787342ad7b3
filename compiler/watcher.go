package compiler

import (
	"sync/atomic"

	"github.com/hatlonely/tql/cfg"
	"github.com/hatlonely/tql/log"
	"github.com/hatlonely/tql/log/logger"
	"github.com/hatlonely/tql/model"
	"github.com/pkg/errors"
)

// Watcher 配置文件变更时重建 Compiler，重建失败时保留原来的 Compiler
type Watcher struct {
	config   *cfg.Config
	opts     []Option
	compiler atomic.Pointer[Compiler]
	onChange func(*Compiler)
}

// WatchFile 从 filename 创建 Compiler 并监听文件变更，fn 在每次重建成功后调用，可以为 nil
func WatchFile(filename string, fn func(*Compiler), opts ...Option) (*Watcher, error) {
	config, err := cfg.NewConfig(filename)
	if err != nil {
		return nil, errors.WithMessage(err, "cfg.NewConfig failed")
	}

	w := &Watcher{config: config, opts: opts, onChange: fn}
	c, err := w.build(nil)
	if err != nil {
		_ = config.Close()
		return nil, err
	}
	w.compiler.Store(c)

	config.OnChange(w.reload)
	config.OnError(func(err error) {
		w.logger().Warn("reload compiler config failed", "error", err.Error())
	})
	if err := config.Watch(); err != nil {
		_ = config.Close()
		return nil, errors.WithMessage(err, "config.Watch failed")
	}
	return w, nil
}

// Compiler 当前生效的 Compiler
func (w *Watcher) Compiler() *Compiler {
	return w.compiler.Load()
}

func (w *Watcher) Close() error {
	return w.config.Close()
}

func (w *Watcher) reload(config *cfg.Config) error {
	c, err := w.build(w.compiler.Load())
	if err != nil {
		return errors.WithMessage(err, "rebuild compiler failed")
	}
	w.compiler.Store(c)
	w.logger().Info("compiler reloaded", "dialect", c.Dialect().Name())
	if w.onChange != nil {
		w.onChange(c)
	}
	return nil
}

// build 沿用上一个 Compiler 的注册表，命名策略变化时按新策略重新注册已有的类型
func (w *Watcher) build(prev *Compiler) (*Compiler, error) {
	var options Options
	if err := w.config.ConvertTo("", &options); err != nil {
		return nil, errors.WithMessage(err, "convert options failed")
	}

	var opts []Option
	if prev != nil {
		naming := options.Naming
		if naming == "" {
			naming = string(model.NamingIdentity)
		}
		registry := prev.Registry()
		if naming != prev.Options().Naming {
			next, err := model.NewRegistryWithOptions(&model.RegistryOptions{Naming: naming})
			if err != nil {
				return nil, errors.WithMessage(err, "create registry failed")
			}
			for _, def := range registry.Models() {
				if _, err := next.Register(def.Type); err != nil {
					return nil, errors.WithMessagef(err, "register %s failed", def.Name)
				}
			}
			registry = next
		}
		opts = append(opts, WithRegistry(registry))
	}
	opts = append(opts, w.opts...)

	return NewCompilerWithOptions(&options, opts...)
}

func (w *Watcher) logger() logger.Logger {
	if c := w.compiler.Load(); c != nil && c.logger != nil {
		return c.logger
	}
	return log.Default()
}
