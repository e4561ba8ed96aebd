package log

import (
	"fmt"
	"strconv"
	"strings"
)

type FieldType int

const (
	FieldTypeUnknown FieldType = iota
	FieldTypeBool
	FieldTypeString
	FieldTypeHex8
	FieldTypeHex16
	FieldTypeHex32
	FieldTypeInt
	FieldTypeUint
	FieldTypeError
	FieldTypeStringer
)

type ZField struct {
	Type FieldType
	Key  string

	// Only the field matching Type is set.
	String    string
	Integer   uint64
	Error     error
	Interface any
	Boolean   bool
}

func (f *ZField) Value() string {
	switch f.Type {
	case FieldTypeBool:
		if f.Boolean {
			return "true"
		}
		return "false"
	case FieldTypeString:
		return f.String
	case FieldTypeUint:
		return strconv.FormatUint(f.Integer, 10)
	case FieldTypeInt:
		return strconv.FormatInt(int64(f.Integer), 10)
	case FieldTypeHex8:
		return hexString(f.Integer, 2)
	case FieldTypeHex16:
		return hexString(f.Integer, 4)
	case FieldTypeHex32:
		return hexString(f.Integer, 6)
	case FieldTypeError:
		if f.Error == nil {
			return "<nil>"
		}
		return f.Error.Error()
	case FieldTypeStringer:
		return f.Interface.(fmt.Stringer).String()
	}
	return ""
}

// hexString formats v as uppercase hex with at least n digits. 32-bit values
// are addresses of 24-bit buses, hence 6 digits.
func hexString(v uint64, n int) string {
	s := strings.ToUpper(strconv.FormatUint(v, 16))
	if len(s) < n {
		s = strings.Repeat("0", n-len(s)) + s
	}
	return s
}
