// Package remote is the connection and policy layer between the map stores and
// the Aerospike cluster.
//
// Stores talk to the cluster only through the Client interface. Dial returns the
// production implementation backed by the Aerospike Go client; the remotetest
// package provides an in-memory implementation for tests.
//
// Absent records are never errors at this layer: Get returns a nil record,
// BatchGet returns nil slots, Operate returns a nil result and Delete reports
// false. Every other failure is returned as-is for the caller to classify.
package remote

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// ErrBinType is returned by Operate when the target bin does not hold a map.
var ErrBinType = errors.New("bin does not hold a map")

// Key is the primary key of one remote record.
type Key struct {
	Namespace string
	Set       string
	// Value is the user key: string, int or int64
	Value any
}

// String returns a printable form of the key
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%v", k.Namespace, k.Set, k.Value)
}

// Bins maps bin names to values.
type Bins map[string]any

// Record is one remote record.
type Record struct {
	// Key.Value is nil when the server did not return the user key
	Key        Key
	Bins       Bins
	Generation uint32
	Expiration uint32
}

// Entry is one record to write in a batch.
type Entry struct {
	Key  Key
	Bins Bins
}

// Client is the set of remote operations the map stores need.
// Implementations must be safe for concurrent use.
type Client interface {
	// Get reads one record, optionally restricted to the given bins
	Get(ctx context.Context, policy Policy, key Key, bins ...string) (*Record, error)

	// BatchGet reads many records in one call; the result is aligned with keys
	BatchGet(ctx context.Context, policy BatchPolicy, keys []Key, bins ...string) ([]*Record, error)

	// Put writes bins to one record
	Put(ctx context.Context, policy WritePolicy, key Key, bins Bins) error

	// BatchPut writes many records in one call
	BatchPut(ctx context.Context, policy BatchPolicy, write WritePolicy, entries []Entry) error

	// Delete removes one record and reports whether it existed
	Delete(ctx context.Context, policy WritePolicy, key Key) (bool, error)

	// BatchDelete removes many records in one call
	BatchDelete(ctx context.Context, policy BatchPolicy, write WritePolicy, keys []Key) error

	// Operate applies one map sub-operation atomically to one record and
	// returns the bin result
	Operate(ctx context.Context, policy WritePolicy, key Key, op MapOp) (any, error)

	// Scan walks every record of a set. The scan starts when the sequence is
	// ranged over and is released when the loop ends.
	Scan(ctx context.Context, policy ScanPolicy, namespace, set string) iter.Seq2[*Record, error]

	// IsConnected reports whether the client can reach the cluster
	IsConnected() bool

	// Close releases the connection; calling it again is a no-op
	Close() error
}

// MapOpKind identifies a map sub-operation.
type MapOpKind int

const (
	// MapGetByKey returns the value stored under one map key
	MapGetByKey MapOpKind = iota
	// MapGetByKeyList returns the found key/value pairs for a list of map keys
	MapGetByKeyList
	// MapPut writes one map entry
	MapPut
	// MapPutItems writes many map entries at once
	MapPutItems
	// MapRemoveByKey removes one map entry
	MapRemoveByKey
	// MapRemoveByKeyList removes many map entries at once
	MapRemoveByKeyList
)

var mapOpNames = map[MapOpKind]string{
	MapGetByKey:        "map_get_by_key",
	MapGetByKeyList:    "map_get_by_key_list",
	MapPut:             "map_put",
	MapPutItems:        "map_put_items",
	MapRemoveByKey:     "map_remove_by_key",
	MapRemoveByKeyList: "map_remove_by_key_list",
}

// String returns the operation name
func (k MapOpKind) String() string {
	if name, ok := mapOpNames[k]; ok {
		return name
	}
	return fmt.Sprintf("map_op(%d)", int(k))
}

// IsWrite reports whether the sub-operation modifies the record
func (k MapOpKind) IsWrite() bool {
	return k != MapGetByKey && k != MapGetByKeyList
}

// MapOp is one sub-operation on the map held in a bin.
//
// Result shapes returned by Client.Operate:
//   - MapGetByKey: the stored value, or nil
//   - MapGetByKeyList: map[any]any with the found pairs, or nil
//   - writes and removes: nil
type MapOp struct {
	Kind   MapOpKind
	Bin    string
	Keys   []any
	Value  any
	Items  map[any]any
	Policy MapPolicy
}

// GetByKey builds a MapGetByKey operation
func GetByKey(bin string, key any) MapOp {
	return MapOp{Kind: MapGetByKey, Bin: bin, Keys: []any{key}}
}

// GetByKeyList builds a MapGetByKeyList operation
func GetByKeyList(bin string, keys []any) MapOp {
	return MapOp{Kind: MapGetByKeyList, Bin: bin, Keys: keys}
}

// Put builds a MapPut operation
func Put(policy MapPolicy, bin string, key, value any) MapOp {
	return MapOp{Kind: MapPut, Bin: bin, Keys: []any{key}, Value: value, Policy: policy}
}

// PutItems builds a MapPutItems operation
func PutItems(policy MapPolicy, bin string, items map[any]any) MapOp {
	return MapOp{Kind: MapPutItems, Bin: bin, Items: items, Policy: policy}
}

// RemoveByKey builds a MapRemoveByKey operation
func RemoveByKey(bin string, key any) MapOp {
	return MapOp{Kind: MapRemoveByKey, Bin: bin, Keys: []any{key}}
}

// RemoveByKeyList builds a MapRemoveByKeyList operation
func RemoveByKeyList(bin string, keys []any) MapOp {
	return MapOp{Kind: MapRemoveByKeyList, Bin: bin, Keys: keys}
}
