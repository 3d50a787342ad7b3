package decoder

import (
	"strings"

	"github.com/hatlonely/tql/cfg/storage"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

type IniDecoderOptions struct {
	// AllowBooleanKeys 只有键名没有值的行视为 true
	AllowBooleanKeys bool `cfg:"allowBooleanKeys"`
}

// IniDecoder section 名中的 . 表示嵌套，例如 [dialect.options]
type IniDecoder struct {
	options ini.LoadOptions
}

func NewIniDecoderWithOptions(options *IniDecoderOptions) *IniDecoder {
	if options == nil {
		options = &IniDecoderOptions{}
	}
	return &IniDecoder{options: ini.LoadOptions{
		AllowBooleanKeys:         options.AllowBooleanKeys,
		SpaceBeforeInlineComment: true,
	}}
}

func (d *IniDecoder) Decode(data []byte) (storage.Storage, error) {
	file, err := ini.LoadSources(d.options, data)
	if err != nil {
		return nil, errors.Wrap(err, "ini.LoadSources failed")
	}

	root := map[string]any{}
	for _, section := range file.Sections() {
		m := root
		if name := section.Name(); name != ini.DefaultSection {
			for _, part := range strings.Split(name, ".") {
				next, ok := m[part].(map[string]any)
				if !ok {
					next = map[string]any{}
					m[part] = next
				}
				m = next
			}
		}
		for _, key := range section.Keys() {
			m[key.Name()] = key.Value()
		}
	}
	return storage.NewMapStorage(root), nil
}
