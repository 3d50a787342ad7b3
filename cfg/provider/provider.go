package provider

import "github.com/hatlonely/tql/ref"

func init() {
	ref.MustRegisterT[*FileProvider](NewFileProviderWithOptions)
}

// Provider 读取原始配置并通知变更
type Provider interface {
	Load() ([]byte, error)
	// OnChange 注册变更回调，Watch 之后才会触发
	OnChange(fn func(data []byte))
	Watch() error
	Close() error
}
