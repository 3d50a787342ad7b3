package storage

// Storage 层级化的配置数据
type Storage interface {
	// Sub 获取子配置，key 用 . 分隔层级，[i] 表示数组下标，例如 "dialect.options.writers[0]"
	Sub(key string) Storage

	// ConvertTo 将配置数据转换到 object 指向的结构体、map 或 slice
	ConvertTo(object any) error
}
