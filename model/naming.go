package model

import (
	"github.com/pkg/errors"
	"gorm.io/gorm/schema"
)

type Naming string

const (
	// NamingIdentity 表名和列名直接使用 Go 的类型名和成员名
	NamingIdentity Naming = "identity"
	// NamingSnake 单数蛇形表名，蛇形列名
	NamingSnake Naming = "snake"
	// NamingPlural 复数蛇形表名，蛇形列名
	NamingPlural Naming = "plural"
)

// Namer 根据类型名和成员名推导默认的表名和列名
// gorm 的 schema.NamingStrategy 满足此接口
type Namer interface {
	TableName(name string) string
	ColumnName(table, field string) string
}

type identityNamer struct{}

func (identityNamer) TableName(name string) string          { return name }
func (identityNamer) ColumnName(table, field string) string { return field }

func NewNamer(naming Naming) (Namer, error) {
	switch naming {
	case "", NamingIdentity:
		return identityNamer{}, nil
	case NamingSnake:
		return schema.NamingStrategy{SingularTable: true}, nil
	case NamingPlural:
		return schema.NamingStrategy{}, nil
	}
	return nil, errors.Errorf("unknown naming strategy %q", naming)
}
