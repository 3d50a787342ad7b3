package storage

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hatlonely/tql/ref"
	"github.com/pkg/errors"
)

// MapStorage 基于解码后的 map/slice 的存储
type MapStorage struct {
	data any
}

func NewMapStorage(data any) *MapStorage {
	return &MapStorage{data: data}
}

func (s *MapStorage) Data() any {
	return s.data
}

func (s *MapStorage) Sub(key string) Storage {
	if key == "" {
		return s
	}
	current := s.data
	for _, k := range splitKey(key) {
		if current = child(current, k); current == nil {
			break
		}
	}
	return NewMapStorage(current)
}

// splitKey "a.b[1].c" => [a b 1 c]
func splitKey(key string) []string {
	return strings.FieldsFunc(key, func(r rune) bool {
		return r == '.' || r == '[' || r == ']'
	})
}

func child(data any, key string) any {
	rv := reflect.ValueOf(data)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		// 键名不区分大小写，与结构体转换保持一致
		iter := rv.MapRange()
		for iter.Next() {
			if strings.EqualFold(iter.Key().String(), key) {
				return iter.Value().Interface()
			}
		}
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil
		}
		return rv.Index(i).Interface()
	}
	return nil
}

// ConvertTo 使用 cfg tag 匹配字段，支持弱类型转换和 "1s" 形式的时长
func (s *MapStorage) ConvertTo(object any) error {
	if s.data == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "cfg",
		WeaklyTypedInput: true,
		Result:           object,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			typeOptionsHook,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return errors.Wrap(err, "mapstructure.NewDecoder failed")
	}
	if err := decoder.Decode(s.data); err != nil {
		return errors.Wrap(err, "decode failed")
	}
	return nil
}

var typeOptionsType = reflect.TypeOf(ref.TypeOptions{})

// typeOptionsHook ref.TypeOptions 的 options 保留为 Storage，由 ref.New 按构造函数的参数类型再转换
func typeOptionsHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != typeOptionsType || from.Kind() != reflect.Map {
		return data, nil
	}

	m := NewMapStorage(data)
	options := ref.TypeOptions{}
	if v, ok := m.Sub("namespace").(*MapStorage).Data().(string); ok {
		options.Namespace = v
	}
	if v, ok := m.Sub("type").(*MapStorage).Data().(string); ok {
		options.Type = v
	}
	if v := m.Sub("options").(*MapStorage).Data(); v != nil {
		options.Options = NewMapStorage(v)
	}
	return options, nil
}
