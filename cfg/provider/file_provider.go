package provider

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

type FileProviderOptions struct {
	FilePath string `cfg:"filePath" validate:"required"`
}

// FileProvider 从本地文件读取配置
//
// 监听的是文件所在目录，编辑器以重命名方式保存文件时同样能收到变更
type FileProvider struct {
	filePath string

	mu       sync.RWMutex
	handlers []func(data []byte)
	watcher  *fsnotify.Watcher
	once     sync.Once
	done     chan struct{}
}

func NewFileProviderWithOptions(options *FileProviderOptions) (*FileProvider, error) {
	if options == nil || options.FilePath == "" {
		return nil, errors.New("file path is required")
	}
	path, err := filepath.Abs(options.FilePath)
	if err != nil {
		return nil, errors.Wrapf(err, "filepath.Abs failed, path [%s]", options.FilePath)
	}
	return &FileProvider{filePath: path, done: make(chan struct{})}, nil
}

func (p *FileProvider) FilePath() string {
	return p.filePath
}

func (p *FileProvider) Load() ([]byte, error) {
	data, err := os.ReadFile(p.filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "os.ReadFile failed, path [%s]", p.filePath)
	}
	return data, nil
}

func (p *FileProvider) OnChange(fn func(data []byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, fn)
}

func (p *FileProvider) Watch() error {
	var err error
	p.once.Do(func() {
		var watcher *fsnotify.Watcher
		if watcher, err = fsnotify.NewWatcher(); err != nil {
			err = errors.Wrap(err, "fsnotify.NewWatcher failed")
			return
		}
		if err = watcher.Add(filepath.Dir(p.filePath)); err != nil {
			_ = watcher.Close()
			err = errors.Wrap(err, "watcher.Add failed")
			return
		}

		p.mu.Lock()
		p.watcher = watcher
		p.mu.Unlock()
		go p.loop(watcher)
	})
	return err
}

func (p *FileProvider) loop(watcher *fsnotify.Watcher) {
	for {
		select {
		case <-p.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.filePath || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(p.filePath)
			if err != nil {
				continue
			}
			p.mu.RLock()
			handlers := append([]func([]byte){}, p.handlers...)
			p.mu.RUnlock()
			for _, fn := range handlers {
				fn(data)
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	default:
		close(p.done)
	}
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}
