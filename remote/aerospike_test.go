package remote

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	as "github.com/aerospike/aerospike-client-go/v7"
	"github.com/stretchr/testify/require"
)

// operationReturnType reads the return type a CDT read or remove operation was built with
func operationReturnType(t *testing.T, op *as.Operation) int64 {
	t.Helper()
	bv := reflect.ValueOf(op).Elem().FieldByName("binValue")
	require.True(t, bv.IsValid())
	args := bv.Elem()
	require.Equal(t, reflect.Slice, args.Kind())
	require.Positive(t, args.Len())
	return args.Index(0).Elem().Int()
}

func operationBin(op *as.Operation) string {
	return reflect.ValueOf(op).Elem().FieldByName("binName").String()
}

func TestNormalizeValue(t *testing.T) {
	t.Run("Key Ordered Pairs", func(t *testing.T) {
		pairs := []as.MapPair{{Key: "a", Value: "1"}, {Key: 2, Value: "2"}, {Key: int64(3), Value: nil}}
		require.Equal(t, map[any]any{"a": "1", int64(2): "2", int64(3): nil}, normalizeValue(pairs))
	})

	t.Run("Pair List", func(t *testing.T) {
		list := []any{as.MapPair{Key: "b", Value: 1}, as.MapPair{Key: "a", Value: 2}}
		require.Equal(t, map[any]any{"a": 2, "b": 1}, normalizeValue(list))
	})

	t.Run("Plain Lists Are Kept", func(t *testing.T) {
		list := []any{"a", "b"}
		require.Equal(t, list, normalizeValue(list))

		mixed := []any{as.MapPair{Key: "a", Value: 1}, "b"}
		require.Equal(t, mixed, normalizeValue(mixed))

		require.Equal(t, []any{}, normalizeValue([]any{}))
	})

	t.Run("Other Values", func(t *testing.T) {
		m := map[any]any{"a": 1}
		require.Equal(t, m, normalizeValue(m))
		require.Equal(t, "v", normalizeValue("v"))
		require.Nil(t, normalizeValue(nil))
		require.Equal(t, map[any]any{}, normalizeValue([]as.MapPair{}))
	})
}

func TestOperateResult(t *testing.T) {
	keyValue := []as.MapPair{{Key: "k1", Value: "v1"}, {Key: "k3", Value: "v3"}}

	tests := []struct {
		name string
		op   MapOp
		raw  any
		want any
	}{
		{"get by key list ordered", GetByKeyList("bin", []any{"k1", "k2", "k3"}), keyValue, map[any]any{"k1": "v1", "k3": "v3"}},
		{"get by key list unordered", GetByKeyList("bin", []any{"k1"}), map[any]any{"k1": "v1"}, map[any]any{"k1": "v1"}},
		{"get by key list no match", GetByKeyList("bin", []any{"k9"}), []any{}, map[any]any{}},
		{"get by key list no bin", GetByKeyList("bin", []any{"k9"}), nil, nil},
		{"get by key value", GetByKey("bin", "k1"), "v1", "v1"},
		{"get by key list value", GetByKey("bin", "k1"), []any{"x", "y"}, []any{"x", "y"}},
		{"get by key map value", GetByKey("bin", "k1"), []as.MapPair{{Key: "f", Value: 1}}, map[any]any{"f": 1}},
		{"put", Put(DefaultMapPolicy(), "bin", "k1", "v1"), int64(4), nil},
		{"remove", RemoveByKeyList("bin", []any{"k1"}), int64(1), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, operateResult(tt.op, tt.raw))
		})
	}
}

func TestAsOperation(t *testing.T) {
	t.Run("Return Types", func(t *testing.T) {
		tests := []struct {
			op   MapOp
			want int64
		}{
			{GetByKey("bin", "k1"), int64(as.MapReturnType.VALUE)},
			{GetByKeyList("bin", []any{"k1", "k2"}), int64(as.MapReturnType.KEY_VALUE)},
			{RemoveByKey("bin", "k1"), int64(as.MapReturnType.NONE)},
			{RemoveByKeyList("bin", []any{"k1"}), int64(as.MapReturnType.NONE)},
		}
		for _, tt := range tests {
			t.Run(tt.op.Kind.String(), func(t *testing.T) {
				op, err := asOperation(tt.op)
				require.NoError(t, err)
				require.Equal(t, tt.want, operationReturnType(t, op))
				require.Equal(t, "bin", operationBin(op))
			})
		}
	})

	t.Run("Writes", func(t *testing.T) {
		op, err := asOperation(Put(DefaultMapPolicy(), "bin", "k1", "v1"))
		require.NoError(t, err)
		require.Equal(t, "bin", operationBin(op))

		op, err = asOperation(PutItems(MapPolicy{Order: MapUnordered, Flags: MapWriteCreateOnly}, "bin", map[any]any{"a": 1}))
		require.NoError(t, err)
		require.Equal(t, "bin", operationBin(op))
	})

	t.Run("Single Key Operations Need One Key", func(t *testing.T) {
		for _, kind := range []MapOpKind{MapGetByKey, MapPut, MapRemoveByKey} {
			_, err := asOperation(MapOp{Kind: kind, Bin: "bin"})
			require.ErrorContains(t, err, "exactly one key")

			_, err = asOperation(MapOp{Kind: kind, Bin: "bin", Keys: []any{"a", "b"}})
			require.ErrorContains(t, err, "got 2")
		}
	})

	t.Run("Unsupported Kind", func(t *testing.T) {
		_, err := asOperation(MapOp{Kind: MapOpKind(42), Bin: "bin"})
		require.ErrorContains(t, err, "map_op(42)")
	})
}

func TestMapPolicyTranslation(t *testing.T) {
	tests := []struct {
		in   MapPolicy
		want *as.MapPolicy
	}{
		{DefaultMapPolicy(), as.NewMapPolicyWithFlags(as.MapOrder.KEY_ORDERED, as.MapWriteFlagsDefault)},
		{MapPolicy{Order: MapUnordered}, as.NewMapPolicyWithFlags(as.MapOrder.UNORDERED, as.MapWriteFlagsDefault)},
		{MapPolicy{Order: MapKeyValueOrdered, Flags: MapWriteUpdateOnly}, as.NewMapPolicyWithFlags(as.MapOrder.KEY_VALUE_ORDERED, as.MapWriteFlagsUpdateOnly)},
		{MapPolicy{Order: MapKeyOrdered, Flags: MapWriteCreateOnly | MapWriteNoFail}, as.NewMapPolicyWithFlags(as.MapOrder.KEY_ORDERED, as.MapWriteFlagsCreateOnly|as.MapWriteFlagsNoFail)},
		{MapPolicy{Order: MapKeyOrdered, Flags: MapWritePartial}, as.NewMapPolicyWithFlags(as.MapOrder.KEY_ORDERED, as.MapWriteFlagsPartial)},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			require.Equal(t, tt.want, mapPolicy(tt.in))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	require.True(t, isNotFound(as.ErrKeyNotFound))
	require.True(t, isNotFound(fmt.Errorf("get: %w", as.ErrKeyNotFound)))
	require.False(t, isNotFound(as.ErrTimeout))
	require.False(t, isNotFound(fmt.Errorf("plain failure")))
	require.False(t, isNotFound(nil))
}

func TestFromRecord(t *testing.T) {
	require.Nil(t, fromRecord(nil))

	key, err := as.NewKey("test", "orders", "k1")
	require.NoError(t, err)
	rec := fromRecord(&as.Record{
		Key:        key,
		Bins:       as.BinMap{"mapbin": []as.MapPair{{Key: 1, Value: "a"}}, "value": "v"},
		Generation: 3,
		Expiration: 60,
	})
	require.Equal(t, Key{Namespace: "test", Set: "orders", Value: "k1"}, rec.Key)
	require.Equal(t, Bins{"mapbin": map[any]any{int64(1): "a"}, "value": "v"}, rec.Bins)
	require.Equal(t, uint32(3), rec.Generation)
	require.Equal(t, uint32(60), rec.Expiration)

	digestOnly, err := as.NewKeyWithDigest("test", "orders", nil, make([]byte, 20))
	require.NoError(t, err)
	rec = fromRecord(&as.Record{Key: digestOnly, Bins: as.BinMap{}})
	require.Nil(t, rec.Key.Value)
}

func TestPolicyTranslation(t *testing.T) {
	p := Policy{TotalTimeout: 2 * time.Second, SocketTimeout: time.Second, MaxRetries: 3, SendKey: true}

	bp := basePolicy(p)
	require.Equal(t, 2*time.Second, bp.TotalTimeout)
	require.Equal(t, time.Second, bp.SocketTimeout)
	require.Equal(t, 3, bp.MaxRetries)
	require.True(t, bp.SendKey)

	defaults := basePolicy(Policy{})
	require.Equal(t, as.NewPolicy().TotalTimeout, defaults.TotalTimeout)
	require.False(t, defaults.SendKey)
}
