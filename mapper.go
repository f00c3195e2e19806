package mapstore

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"

	"github.com/gozephyr/aerospike-mapstore/config"
	"github.com/gozephyr/aerospike-mapstore/errors"
	"github.com/gozephyr/aerospike-mapstore/remote"
)

// RecordMapper converts map entries to and from per-entry records.
// EncodeKey yields the record's user key (string or integer); DecodeKey reverses
// it for key enumeration. ToBins and FromBins convert a value to a bin set.
// FromBins returns errors.ErrNoValue for a record that carries no value of the
// map, such as one written by another application into the same set.
type RecordMapper[K comparable, V any] interface {
	EncodeKey(key K) (any, error)
	DecodeKey(raw any) (K, error)
	ToBins(value V) (remote.Bins, error)
	FromBins(bins remote.Bins) (V, error)
}

// StringRecordMapper stores string values in a single bin keyed by the string map key.
type StringRecordMapper struct {
	ValueBin string
}

// NewStringRecordMapper returns a mapper writing values to valueBin
// (config.DefaultValueBin when empty).
func NewStringRecordMapper(valueBin string) StringRecordMapper {
	if valueBin == "" {
		valueBin = config.DefaultValueBin
	}
	return StringRecordMapper{ValueBin: valueBin}
}

// EncodeKey implements RecordMapper
func (m StringRecordMapper) EncodeKey(key string) (any, error) {
	return key, nil
}

// DecodeKey implements RecordMapper
func (m StringRecordMapper) DecodeKey(raw any) (string, error) {
	return StringMarshaller{}.DecodeKey(raw)
}

// ToBins implements RecordMapper
func (m StringRecordMapper) ToBins(value string) (remote.Bins, error) {
	return remote.Bins{m.ValueBin: value}, nil
}

// FromBins implements RecordMapper. A record without the value bin yields
// errors.ErrNoValue.
func (m StringRecordMapper) FromBins(bins remote.Bins) (string, error) {
	raw, ok := bins[m.ValueBin]
	if !ok || raw == nil {
		return "", fmt.Errorf("%w: missing bin %q", errors.ErrNoValue, m.ValueBin)
	}
	return StringMarshaller{}.DecodeValue(raw)
}

// StructRecordMapper stores each exported field of a struct value in its own bin.
// Bin names come from the `bin` struct tag, or the field name when untagged.
// Nested structs are stored as maps.
type StructRecordMapper[K Scalar, V any] struct{}

// NewStructRecordMapper returns a struct mapper for scalar keys
func NewStructRecordMapper[K Scalar, V any]() StructRecordMapper[K, V] {
	return StructRecordMapper[K, V]{}
}

// EncodeKey implements RecordMapper
func (StructRecordMapper[K, V]) EncodeKey(key K) (any, error) {
	return primitive(key), nil
}

// DecodeKey implements RecordMapper
func (StructRecordMapper[K, V]) DecodeKey(raw any) (K, error) {
	return decodeScalar[K](raw)
}

// ToBins implements RecordMapper
func (StructRecordMapper[K, V]) ToBins(value V) (remote.Bins, error) {
	var bins map[string]any
	if err := decodeBins(value, &bins); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrEncode, err)
	}
	if len(bins) == 0 {
		return nil, fmt.Errorf("%w: %T has no bins", errors.ErrEncode, value)
	}
	return bins, nil
}

// FromBins implements RecordMapper. A record with no bins yields errors.ErrNoValue.
func (StructRecordMapper[K, V]) FromBins(bins remote.Bins) (V, error) {
	var value V
	if len(bins) == 0 {
		return value, errors.ErrNoValue
	}
	if err := decodeBins(map[string]any(bins), &value); err != nil {
		return value, fmt.Errorf("%w: %w", errors.ErrDecode, err)
	}
	return value, nil
}

func decodeBins(input, result any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "bin",
		Result:     result,
		DecodeHook: stringKeysHook,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// stringKeysHook turns map[any]any values, as returned for nested maps, into
// map[string]any so they can populate structs.
func stringKeysHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	m, ok := data.(map[any]any)
	if !ok || to.Kind() != reflect.Struct {
		return data, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[fmt.Sprint(k)] = v
	}
	return out, nil
}
