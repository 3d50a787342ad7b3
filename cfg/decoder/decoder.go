package decoder

import (
	"path/filepath"
	"strings"

	"github.com/hatlonely/tql/cfg/storage"
	"github.com/hatlonely/tql/ref"
	"github.com/pkg/errors"
)

func init() {
	ref.MustRegisterT[*JsonDecoder](NewJsonDecoder)
	ref.MustRegisterT[*YamlDecoder](NewYamlDecoder)
	ref.MustRegisterT[*TomlDecoder](NewTomlDecoder)
	ref.MustRegisterT[*IniDecoder](NewIniDecoderWithOptions)
}

// Namespace 内置解码器在 ref 中的命名空间
const Namespace = "github.com/hatlonely/tql/cfg/decoder"

// Decoder 将原始配置解码为 Storage
type Decoder interface {
	Decode(data []byte) (storage.Storage, error)
}

func NewDecoderWithOptions(options *ref.TypeOptions) (Decoder, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	obj, err := ref.New(options.Namespace, options.Type, options.Options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.New failed")
	}
	d, ok := obj.(Decoder)
	if !ok {
		return nil, errors.Errorf("%s:%s is not a Decoder", options.Namespace, options.Type)
	}
	return d, nil
}

// TypeOptionsForFile 根据文件后缀选择解码器
//
//	.json -> JsonDecoder
//	.yaml/.yml -> YamlDecoder
//	.toml -> TomlDecoder
//	.ini -> IniDecoder
func TypeOptionsForFile(filename string) (*ref.TypeOptions, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		return &ref.TypeOptions{Namespace: Namespace, Type: "JsonDecoder"}, nil
	case ".yaml", ".yml":
		return &ref.TypeOptions{Namespace: Namespace, Type: "YamlDecoder"}, nil
	case ".toml":
		return &ref.TypeOptions{Namespace: Namespace, Type: "TomlDecoder"}, nil
	case ".ini":
		return &ref.TypeOptions{Namespace: Namespace, Type: "IniDecoder", Options: &IniDecoderOptions{}}, nil
	default:
		return nil, errors.Errorf("unsupported file extension [%s]", ext)
	}
}
