package model

import (
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm/schema"
)

// Schemer 自定义 schema 名
type Schemer interface {
	SchemaName() string
}

// Builder 从结构体构建 ModelDefinition
type Builder struct {
	namer Namer
}

func NewBuilder(namer Namer) *Builder {
	if namer == nil {
		namer = identityNamer{}
	}
	return &Builder{namer: namer}
}

// FromType 从结构体类型构建 ModelDefinition
// 支持的 tag 格式：
// - `tql:"column_name,pk,auto,null,ref=TypeName"`
// - `tql:"-"` 忽略该字段
// - `table:"table_name"` 和 `schema:"schema_name"` 可写在任意字段上
// 实现了 schema.Tabler 或 Schemer 的类型优先使用方法返回值
func (b *Builder) FromType(rt reflect.Type) (*ModelDefinition, error) {
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil, errors.Errorf("expected struct, got %v", rt)
	}

	def := &ModelDefinition{
		Type: rt,
		Name: rt.Name(),
	}

	table, schemaName := lookupTableTags(rt)
	if table == "" {
		table = b.namer.TableName(rt.Name())
	}

	instance := reflect.New(rt).Interface()
	if t, ok := instance.(schema.Tabler); ok {
		table = t.TableName()
	}
	if s, ok := instance.(Schemer); ok {
		schemaName = s.SchemaName()
	}
	def.Table = table
	def.Schema = schemaName

	if err := b.collectFields(def, rt); err != nil {
		return nil, err
	}

	// 没有显式主键时，Id 字段作为主键
	if def.PrimaryKey() == nil {
		for _, f := range def.Fields {
			if f.Name == "Id" || f.Name == "ID" {
				f.PrimaryKey = true
				break
			}
		}
	}

	def.buildIndex()
	return def, nil
}

func (b *Builder) collectFields(def *ModelDefinition, rt reflect.Type) error {
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)

		tag := field.Tag.Get("tql")
		if tag == "-" {
			continue
		}

		// 匿名嵌入结构体展开
		ft := field.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if field.Anonymous && ft.Kind() == reflect.Struct && ft != reflect.TypeOf(time.Time{}) && tag == "" {
			if err := b.collectFields(def, ft); err != nil {
				return err
			}
			continue
		}

		if !field.IsExported() {
			continue
		}

		f, err := b.parseFieldTag(def.Table, field, tag)
		if err != nil {
			return errors.WithMessagef(err, "failed to parse field %s", field.Name)
		}
		for _, existing := range def.Fields {
			if existing.Name == f.Name {
				return errors.Errorf("duplicate member %s in %s", f.Name, def.Name)
			}
		}
		def.Fields = append(def.Fields, f)
	}
	return nil
}

func lookupTableTags(rt reflect.Type) (table string, schemaName string) {
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if v := field.Tag.Get("table"); v != "" && table == "" {
			table = v
		}
		if v := field.Tag.Get("schema"); v != "" && schemaName == "" {
			schemaName = v
		}
	}
	return table, schemaName
}

func (b *Builder) parseFieldTag(table string, field reflect.StructField, tag string) (*FieldDefinition, error) {
	f := &FieldDefinition{
		Name:     field.Name,
		Column:   b.namer.ColumnName(table, field.Name),
		Type:     field.Type,
		Kind:     inferFieldType(field.Type),
		Nullable: field.Type.Kind() == reflect.Ptr,
	}

	if tag == "" {
		return f, nil
	}

	// 第一段是列名（如果指定），只有选项时写作 `tql:",pk"`
	parts := strings.Split(tag, ",")
	if first := strings.TrimSpace(parts[0]); !strings.Contains(first, "=") {
		if first != "" {
			f.Column = first
		}
		parts = parts[1:]
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "=") {
			kv := strings.SplitN(part, "=", 2)
			key := strings.TrimSpace(kv[0])
			value := strings.TrimSpace(kv[1])
			switch key {
			case "ref", "references":
				f.References = value
			case "type":
				f.Kind = FieldType(value)
			default:
				return nil, errors.Errorf("unknown tag option %q", key)
			}
			continue
		}

		switch part {
		case "pk", "primary":
			f.PrimaryKey = true
		case "auto", "autoincrement":
			f.AutoIncrement = true
		case "null", "nullable":
			f.Nullable = true
		default:
			return nil, errors.Errorf("unknown tag option %q", part)
		}
	}

	return f, nil
}

// inferFieldType 从 Go 类型推断字段类型
func inferFieldType(t reflect.Type) FieldType {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return FieldTypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return FieldTypeInt
	case reflect.Float32, reflect.Float64:
		return FieldTypeFloat
	case reflect.Bool:
		return FieldTypeBool
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return FieldTypeBytes
		}
	}
	if t == reflect.TypeOf(time.Time{}) {
		return FieldTypeDate
	}
	return FieldTypeJSON
}
