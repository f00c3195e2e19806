package mapstore

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/gozephyr/aerospike-mapstore/errors"
	"github.com/gozephyr/aerospike-mapstore/remote"
)

type sku string

type address struct {
	City string `bin:"city"`
	Zip  int    `bin:"zip"`
}

type order struct {
	ID      string   `bin:"id"`
	Qty     int      `bin:"qty"`
	Price   float64  `bin:"price"`
	Tags    []string `bin:"tags"`
	Address address  `bin:"addr"`
}

func TestStringMarshaller(t *testing.T) {
	m := StringMarshaller{}
	for _, s := range []string{"", "k1", "ünïcode"} {
		raw, err := m.EncodeValue(s)
		require.NoError(t, err)
		got, err := m.DecodeValue(raw)
		require.NoError(t, err)
		require.Equal(t, s, got)

		rawKey, err := m.EncodeKey(s)
		require.NoError(t, err)
		key, err := m.DecodeKey(rawKey)
		require.NoError(t, err)
		require.Equal(t, s, key)
	}

	_, err := m.DecodeValue(42)
	require.ErrorIs(t, err, errors.ErrDecode)
}

func TestScalarMarshaller(t *testing.T) {
	t.Run("Integers", func(t *testing.T) {
		m := ScalarMarshaller[int, int32]{}
		raw, err := m.EncodeKey(7)
		require.NoError(t, err)
		require.Equal(t, int64(7), raw)

		key, err := m.DecodeKey(raw)
		require.NoError(t, err)
		require.Equal(t, 7, key)

		// The client hands integers back as int
		value, err := m.DecodeValue(int(-3))
		require.NoError(t, err)
		require.Equal(t, int32(-3), value)
	})

	t.Run("Named Types", func(t *testing.T) {
		m := ScalarMarshaller[sku, float64]{}
		raw, err := m.EncodeKey(sku("A-1"))
		require.NoError(t, err)
		require.Equal(t, "A-1", raw)

		key, err := m.DecodeKey(raw)
		require.NoError(t, err)
		require.Equal(t, sku("A-1"), key)

		rawValue, err := m.EncodeValue(2.5)
		require.NoError(t, err)
		value, err := m.DecodeValue(rawValue)
		require.NoError(t, err)
		require.Equal(t, 2.5, value)
	})

	t.Run("Bool", func(t *testing.T) {
		m := ScalarMarshaller[string, bool]{}
		raw, err := m.EncodeValue(true)
		require.NoError(t, err)
		value, err := m.DecodeValue(raw)
		require.NoError(t, err)
		require.True(t, value)
	})

	t.Run("Decode Errors", func(t *testing.T) {
		m := ScalarMarshaller[int, int]{}
		_, err := m.DecodeValue("seven")
		require.ErrorIs(t, err, errors.ErrDecode)
		_, err = m.DecodeValue(nil)
		require.ErrorIs(t, err, errors.ErrDecode)
	})
}

func TestStringRecordMapper(t *testing.T) {
	m := NewStringRecordMapper("")
	require.Equal(t, "value", m.ValueBin)

	bins, err := m.ToBins("v1")
	require.NoError(t, err)
	require.Equal(t, remote.Bins{"value": "v1"}, bins)

	value, err := m.FromBins(bins)
	require.NoError(t, err)
	require.Equal(t, "v1", value)

	_, err = m.FromBins(remote.Bins{"other": "v1"})
	require.ErrorIs(t, err, errors.ErrNoValue)

	_, err = m.FromBins(remote.Bins{"value": 7})
	require.ErrorIs(t, err, errors.ErrDecode)

	key, err := m.DecodeKey("k1")
	require.NoError(t, err)
	require.Equal(t, "k1", key)
}

func TestStructRecordMapper(t *testing.T) {
	m := NewStructRecordMapper[int64, order]()
	in := order{
		ID:      "o-1",
		Qty:     3,
		Price:   9.5,
		Tags:    []string{"gift"},
		Address: address{City: "Oslo", Zip: 150},
	}

	t.Run("Round Trip", func(t *testing.T) {
		bins, err := m.ToBins(in)
		require.NoError(t, err)
		require.Equal(t, "o-1", bins["id"])
		require.Equal(t, 3, bins["qty"])
		require.Contains(t, bins, "addr")

		out, err := m.FromBins(bins)
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(in, out))
	})

	t.Run("Decodes Client Shapes", func(t *testing.T) {
		// Lists come back as []any and nested maps as map[any]any
		bins := remote.Bins{
			"id":    "o-1",
			"qty":   3,
			"price": 9.5,
			"tags":  []any{"gift"},
			"addr":  map[any]any{"city": "Oslo", "zip": 150},
		}
		out, err := m.FromBins(bins)
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(in, out))
	})

	t.Run("Keys", func(t *testing.T) {
		raw, err := m.EncodeKey(99)
		require.NoError(t, err)
		require.Equal(t, int64(99), raw)
		key, err := m.DecodeKey(int(99))
		require.NoError(t, err)
		require.Equal(t, int64(99), key)
	})

	t.Run("Decode Error", func(t *testing.T) {
		_, err := m.FromBins(remote.Bins{"qty": "many"})
		require.ErrorIs(t, err, errors.ErrDecode)

		_, err = m.FromBins(remote.Bins{})
		require.ErrorIs(t, err, errors.ErrNoValue)
	})

	t.Run("Pointer Values", func(t *testing.T) {
		pm := NewStructRecordMapper[string, *order]()
		bins, err := pm.ToBins(&in)
		require.NoError(t, err)
		out, err := pm.FromBins(bins)
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(&in, out))
	})
}

func TestAssertKey(t *testing.T) {
	k, err := assertKey[string]("k1")
	require.NoError(t, err)
	require.Equal(t, "k1", k)

	i, err := assertKey[int](int64(42))
	require.NoError(t, err)
	require.Equal(t, 42, i)

	u, err := assertKey[uint16](int64(7))
	require.NoError(t, err)
	require.Equal(t, uint16(7), u)

	type shard int32
	named, err := assertKey[shard](int64(3))
	require.NoError(t, err)
	require.Equal(t, shard(3), named)

	_, err = assertKey[int8](int64(300))
	require.Error(t, err)
	_, err = assertKey[uint](int64(-1))
	require.Error(t, err)
	_, err = assertKey[string](int64(65))
	require.Error(t, err)
	_, err = assertKey[int](nil)
	require.Error(t, err)
}
