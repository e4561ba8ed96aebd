// Package snapshot holds the save-state types of every emulated system and
// their JSON encoding.
//
// Snapshots are plain structs. Marshal and Unmarshal walk them by reflection:
// exported fields are encoded by name, byte slices as base64 strings and
// fixed-size arrays as JSON arrays. Unknown fields are skipped on decode so
// that older snapshots still load.
package snapshot

import (
	"reflect"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// ErrUnsupportedType is returned when a snapshot contains a field of a kind
// that can't be encoded (maps, channels, funcs, interfaces).
var ErrUnsupportedType = errors.New("unsupported type")

// Marshal encodes a snapshot (a pointer to, or a value of, a struct) to JSON.
func Marshal(v any) ([]byte, error) {
	var e jx.Encoder
	if err := encodeValue(&e, reflect.ValueOf(v)); err != nil {
		return nil, errors.Wrap(err, "snapshot encode")
	}
	return e.Bytes(), nil
}

// Unmarshal decodes a JSON snapshot into v, which must be a non-nil pointer.
func Unmarshal(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.Errorf("snapshot decode: non-pointer or nil %T", v)
	}
	if err := decodeValue(jx.DecodeBytes(data), rv.Elem()); err != nil {
		return errors.Wrap(err, "snapshot decode")
	}
	return nil
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func encodeValue(e *jx.Encoder, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Bool:
		e.Bool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.Int64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		e.UInt64(v.Uint())
	case reflect.Float32, reflect.Float64:
		e.Float64(v.Float())
	case reflect.String:
		e.Str(v.String())
	case reflect.Pointer:
		if v.IsNil() {
			e.Null()
			return nil
		}
		return encodeValue(e, v.Elem())
	case reflect.Slice:
		if v.Len() == 0 {
			e.Null()
			return nil
		}
		if isBytes(v.Type()) {
			e.Base64(v.Bytes())
			return nil
		}
		return encodeArray(e, v)
	case reflect.Array:
		return encodeArray(e, v)
	case reflect.Struct:
		e.ObjStart()
		t := v.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			e.FieldStart(f.Name)
			if err := encodeValue(e, v.Field(i)); err != nil {
				return errors.Wrap(err, f.Name)
			}
		}
		e.ObjEnd()
	default:
		return errors.Wrap(ErrUnsupportedType, v.Type().String())
	}
	return nil
}

func encodeArray(e *jx.Encoder, v reflect.Value) error {
	e.ArrStart()
	for i := range v.Len() {
		if err := encodeValue(e, v.Index(i)); err != nil {
			return err
		}
	}
	e.ArrEnd()
	return nil
}

func decodeValue(d *jx.Decoder, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Bool:
		b, err := d.Bool()
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := d.Int64()
		if err != nil {
			return err
		}
		if v.OverflowInt(n) {
			return errors.Errorf("%d overflows %s", n, v.Type())
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := d.UInt64()
		if err != nil {
			return err
		}
		if v.OverflowUint(n) {
			return errors.Errorf("%d overflows %s", n, v.Type())
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := d.Float64()
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		v.SetString(s)
	case reflect.Pointer:
		if d.Next() == jx.Null {
			v.SetZero()
			return d.Null()
		}
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return decodeValue(d, v.Elem())
	case reflect.Slice:
		if d.Next() == jx.Null {
			v.SetZero()
			return d.Null()
		}
		if isBytes(v.Type()) {
			b, err := d.Base64()
			if err != nil {
				return err
			}
			v.SetBytes(b)
			return nil
		}
		v.SetLen(0)
		return d.Arr(func(d *jx.Decoder) error {
			elem := reflect.New(v.Type().Elem()).Elem()
			if err := decodeValue(d, elem); err != nil {
				return err
			}
			v.Set(reflect.Append(v, elem))
			return nil
		})
	case reflect.Array:
		i := 0
		err := d.Arr(func(d *jx.Decoder) error {
			if i >= v.Len() {
				return errors.Errorf("too many elements for %s", v.Type())
			}
			i++
			return decodeValue(d, v.Index(i-1))
		})
		if err != nil {
			return err
		}
		if i != v.Len() {
			return errors.Errorf("got %d elements for %s", i, v.Type())
		}
	case reflect.Struct:
		return d.Obj(func(d *jx.Decoder, key string) error {
			f := v.FieldByName(key)
			if !f.IsValid() || !f.CanSet() {
				return d.Skip()
			}
			return errors.Wrap(decodeValue(d, f), key)
		})
	default:
		return errors.Wrap(ErrUnsupportedType, v.Type().String())
	}
	return nil
}
