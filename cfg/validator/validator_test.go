package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateStruct(t *testing.T) {
	type Options struct {
		Name string `validate:"required,oneof=sqlite postgres"`
		Port int    `validate:"gte=0,lte=65535"`
	}

	assert.NoError(t, ValidateStruct(&Options{Name: "sqlite"}))
	assert.NoError(t, ValidateStruct(Options{Name: "postgres", Port: 5432}))
	assert.Error(t, ValidateStruct(&Options{}))
	assert.Error(t, ValidateStruct(&Options{Name: "oracle"}))
	assert.Error(t, ValidateStruct(&Options{Name: "sqlite", Port: 70000}))

	assert.NoError(t, ValidateStruct((*Options)(nil)))
	assert.NoError(t, ValidateStruct("not a struct"))
}
