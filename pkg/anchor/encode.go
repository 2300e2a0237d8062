package anchor

import (
	"crypto/ed25519"
	"encoding/binary"
	"math"
	"reflect"

	"github.com/near/borsh-go"
	"github.com/pkg/errors"
)

// ErrUnsupportedType is returned for IDL types arguments cannot be encoded as.
var ErrUnsupportedType = errors.New("unsupported idl type")

// EncodeArg borsh-encodes v as the IDL type t. Go integers of any width are
// accepted when they fit the target type; public keys may be given as
// ed25519.PublicKey, []byte or [32]byte. Options take nil or a value.
func EncodeArg(t IDLType, v interface{}) ([]byte, error) {
	switch t.Kind {
	case kindOption:
		if isNil(v) {
			return []byte{0}, nil
		}
		inner, err := EncodeArg(*t.Elem, deref(v))
		if err != nil {
			return nil, err
		}
		return append([]byte{1}, inner...), nil
	case kindVec, kindArray:
		return encodeSequence(t, v)
	case kindDefined:
		return nil, errors.Wrapf(ErrUnsupportedType, "defined type %s", t.Defined)
	}

	value, err := coerce(t.Kind, v)
	if err != nil {
		return nil, err
	}

	return borsh.Serialize(value)
}

func encodeSequence(t IDLType, v interface{}) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errors.Errorf("expected sequence for %s, got %T", t, v)
	}

	var b []byte
	switch t.Kind {
	case kindVec:
		b = make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(rv.Len()))
	case kindArray:
		if rv.Len() != t.Len {
			return nil, errors.Errorf("expected %d elements for %s, got %d", t.Len, t, rv.Len())
		}
	}

	for i := 0; i < rv.Len(); i++ {
		elem, err := EncodeArg(*t.Elem, rv.Index(i).Interface())
		if err != nil {
			return nil, errors.Wrapf(err, "element %d", i)
		}
		b = append(b, elem...)
	}

	return b, nil
}

func coerce(kind string, v interface{}) (interface{}, error) {
	switch kind {
	case "bool":
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case "string":
		if s, ok := v.(string); ok {
			return s, nil
		}
	case "pubkey":
		var key [ed25519.PublicKeySize]byte
		switch k := v.(type) {
		case [ed25519.PublicKeySize]byte:
			return k, nil
		case ed25519.PublicKey:
			if len(k) == ed25519.PublicKeySize {
				copy(key[:], k)
				return key, nil
			}
		case []byte:
			if len(k) == ed25519.PublicKeySize {
				copy(key[:], k)
				return key, nil
			}
		}
	case "bytes":
		if b, ok := v.([]byte); ok {
			return b, nil
		}
	case "u8", "u16", "u32", "u64":
		n, ok := toUint(v)
		if !ok {
			break
		}
		switch kind {
		case "u8":
			if n <= math.MaxUint8 {
				return uint8(n), nil
			}
		case "u16":
			if n <= math.MaxUint16 {
				return uint16(n), nil
			}
		case "u32":
			if n <= math.MaxUint32 {
				return uint32(n), nil
			}
		default:
			return n, nil
		}
		return nil, errors.Errorf("value %d overflows %s", n, kind)
	case "i8", "i16", "i32", "i64":
		n, ok := toInt(v)
		if !ok {
			break
		}
		switch kind {
		case "i8":
			if n >= math.MinInt8 && n <= math.MaxInt8 {
				return int8(n), nil
			}
		case "i16":
			if n >= math.MinInt16 && n <= math.MaxInt16 {
				return int16(n), nil
			}
		case "i32":
			if n >= math.MinInt32 && n <= math.MaxInt32 {
				return int32(n), nil
			}
		default:
			return n, nil
		}
		return nil, errors.Errorf("value %d overflows %s", n, kind)
	default:
		return nil, errors.Wrap(ErrUnsupportedType, kind)
	}

	return nil, errors.Errorf("cannot encode %T as %s", v, kind)
}

func toUint(v interface{}) (uint64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Int() < 0 {
			return 0, false
		}
		return uint64(rv.Int()), true
	}
	return 0, false
}

func toInt(v interface{}) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return 0, false
		}
		return int64(rv.Uint()), true
	}
	return 0, false
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

func deref(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		return rv.Elem().Interface()
	}
	return v
}
