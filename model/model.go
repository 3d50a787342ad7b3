package model

import (
	"reflect"

	"github.com/hatlonely/tql/errs"
	"github.com/pkg/errors"
)

// FieldType 字段类型
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeInt    FieldType = "int"
	FieldTypeFloat  FieldType = "float"
	FieldTypeBool   FieldType = "bool"
	FieldTypeDate   FieldType = "date"
	FieldTypeBytes  FieldType = "bytes"
	FieldTypeJSON   FieldType = "json"
)

// FieldDefinition 字段到列的映射，注册后不再修改
type FieldDefinition struct {
	Name          string       // 结构体成员名
	Column        string       // 列名
	Type          reflect.Type // 成员的 Go 类型
	Kind          FieldType
	PrimaryKey    bool
	AutoIncrement bool
	Nullable      bool
	References    string // 外键指向的模型名
}

// ModelDefinition 一个结构体到表的映射
type ModelDefinition struct {
	Type   reflect.Type
	Name   string
	Table  string
	Schema string
	Fields []*FieldDefinition

	index map[string]*FieldDefinition
}

func (m *ModelDefinition) buildIndex() {
	m.index = make(map[string]*FieldDefinition, len(m.Fields))
	for _, f := range m.Fields {
		m.index[f.Name] = f
	}
}

// Field 按成员名查找字段
func (m *ModelDefinition) Field(member string) (*FieldDefinition, error) {
	if m.index != nil {
		if f, ok := m.index[member]; ok {
			return f, nil
		}
	} else {
		for _, f := range m.Fields {
			if f.Name == member {
				return f, nil
			}
		}
	}
	return nil, errors.WithStack(&errs.UnknownColumnError{Model: m.Name, Member: member})
}

// PrimaryKey 返回第一个主键字段，没有则返回 nil
func (m *ModelDefinition) PrimaryKey() *FieldDefinition {
	for _, f := range m.Fields {
		if f.PrimaryKey {
			return f
		}
	}
	return nil
}

// ForeignKeyTo 返回本模型中引用 target 的字段
func (m *ModelDefinition) ForeignKeyTo(target *ModelDefinition) *FieldDefinition {
	for _, f := range m.Fields {
		if f.References != "" && f.References == target.Name {
			return f
		}
	}
	return nil
}

func (m *ModelDefinition) Columns() []string {
	columns := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		columns = append(columns, f.Column)
	}
	return columns
}

func (m *ModelDefinition) String() string {
	return m.Name
}
