package mapstore

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"

	"github.com/gozephyr/aerospike-mapstore/errors"
	"github.com/gozephyr/aerospike-mapstore/remote"
)

// Marshaller converts map keys and values to and from the values stored in a
// container bin. Implementations must be pure: encoding the same input always
// yields the same output, and decoding an encoded value yields the original.
type Marshaller[K comparable, V any] interface {
	EncodeKey(key K) (any, error)
	EncodeValue(value V) (any, error)
	DecodeValue(raw any) (V, error)
}

// KeyDecoder is implemented by marshallers that can turn a stored container key
// back into a map key. AggregatedStore.LoadAllKeys uses it when available and
// otherwise accepts keys of type K, plus integer keys that fit an integer K.
type KeyDecoder[K comparable] interface {
	DecodeKey(raw any) (K, error)
}

// Scalar lists the key and value kinds the built-in marshallers handle.
type Scalar interface {
	~string | ~bool |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 |
		~float32 | ~float64
}

// StringMarshaller stores string keys and values as-is.
type StringMarshaller struct{}

// EncodeKey implements Marshaller
func (StringMarshaller) EncodeKey(key string) (any, error) {
	return key, nil
}

// EncodeValue implements Marshaller
func (StringMarshaller) EncodeValue(value string) (any, error) {
	return value, nil
}

// DecodeValue implements Marshaller
func (StringMarshaller) DecodeValue(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: want string, got %T", errors.ErrDecode, raw)
	}
	return s, nil
}

// DecodeKey implements KeyDecoder
func (m StringMarshaller) DecodeKey(raw any) (string, error) {
	return m.DecodeValue(raw)
}

// ScalarMarshaller stores scalar keys and values as their primitive form:
// integers as int64, floats as float64, strings and bools unchanged.
type ScalarMarshaller[K, V Scalar] struct{}

// EncodeKey implements Marshaller
func (ScalarMarshaller[K, V]) EncodeKey(key K) (any, error) {
	return primitive(key), nil
}

// EncodeValue implements Marshaller
func (ScalarMarshaller[K, V]) EncodeValue(value V) (any, error) {
	return primitive(value), nil
}

// DecodeValue implements Marshaller
func (ScalarMarshaller[K, V]) DecodeValue(raw any) (V, error) {
	return decodeScalar[V](raw)
}

// DecodeKey implements KeyDecoder
func (ScalarMarshaller[K, V]) DecodeKey(raw any) (K, error) {
	return decodeScalar[K](raw)
}

// primitive unwraps named scalar types into the wire types the client encodes.
func primitive(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	default:
		return remote.NormalizeKey(v)
	}
}

func decodeScalar[T Scalar](raw any) (T, error) {
	var out T
	if raw == nil {
		return out, fmt.Errorf("%w: nil value for %T", errors.ErrDecode, out)
	}
	if err := mapstructure.Decode(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %w", errors.ErrDecode, err)
	}
	return out, nil
}

// assertKey converts a stored container key to K. The client returns integer
// keys as int64 whatever integer type wrote them, so they convert to any
// integer K that can hold the value.
func assertKey[K comparable](raw any) (K, error) {
	var zero K
	if k, ok := raw.(K); ok {
		return k, nil
	}
	rv := reflect.ValueOf(raw)
	kt := reflect.TypeFor[K]()
	if rv.IsValid() && rv.CanInt() && (kt.Kind() >= reflect.Int && kt.Kind() <= reflect.Uintptr) {
		if rv.Int() >= 0 || kt.Kind() <= reflect.Int64 {
			out := rv.Convert(kt)
			if out.Convert(rv.Type()).Equal(rv) {
				return out.Interface().(K), nil
			}
		}
	}
	return zero, fmt.Errorf("container key %T is not a %T", raw, zero)
}
