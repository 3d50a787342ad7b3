package cfg

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var durationType = reflect.TypeOf(time.Duration(0))

// SetDefaults 为零值字段填充 def tag 中的默认值，object 必须是结构体指针
//
// 非空的结构体指针字段会递归处理，空指针保持为空
func SetDefaults(object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errors.Errorf("object must be a non-nil pointer to struct, got %T", object)
	}
	return setDefaults(rv.Elem())
}

func setDefaults(rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field, value := rt.Field(i), rv.Field(i)
		if !value.CanSet() {
			continue
		}

		switch {
		case value.Kind() == reflect.Struct:
			if err := setDefaults(value); err != nil {
				return errors.WithMessagef(err, "field [%s]", field.Name)
			}
		case value.Kind() == reflect.Ptr && !value.IsNil() && value.Elem().Kind() == reflect.Struct:
			if err := setDefaults(value.Elem()); err != nil {
				return errors.WithMessagef(err, "field [%s]", field.Name)
			}
		}

		def, ok := field.Tag.Lookup("def")
		if !ok || !value.IsZero() {
			continue
		}
		if err := setValue(value, def); err != nil {
			return errors.WithMessagef(err, "field [%s]", field.Name)
		}
	}
	return nil
}

func setValue(rv reflect.Value, s string) error {
	if rv.Type() == durationType {
		d, err := time.ParseDuration(s)
		if err != nil {
			return errors.Wrapf(err, "invalid duration [%s]", s)
		}
		rv.SetInt(int64(d))
		return nil
	}

	switch rv.Kind() {
	case reflect.String:
		rv.SetString(s)
	case reflect.Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return errors.Wrapf(err, "invalid bool [%s]", s)
		}
		rv.SetBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(s, 0, rv.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "invalid int [%s]", s)
		}
		rv.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(s, 0, rv.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "invalid uint [%s]", s)
		}
		rv.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(s, rv.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "invalid float [%s]", s)
		}
		rv.SetFloat(v)
	case reflect.Slice:
		parts := strings.Split(s, ",")
		slice := reflect.MakeSlice(rv.Type(), len(parts), len(parts))
		for i, part := range parts {
			if err := setValue(slice.Index(i), strings.TrimSpace(part)); err != nil {
				return err
			}
		}
		rv.Set(slice)
	case reflect.Ptr:
		elem := reflect.New(rv.Type().Elem())
		if err := setValue(elem.Elem(), s); err != nil {
			return err
		}
		rv.Set(elem)
	default:
		return errors.Errorf("unsupported default for type %v", rv.Type())
	}
	return nil
}
