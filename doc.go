// Package mapstore persists the entries of an in-memory map in Aerospike.
//
// A host map delegates durability to a MapStore, which implements load, store and
// delete operations in one of two layouts:
//
//   - AggregatedStore keeps the whole map in a single record whose container bin
//     holds a key-ordered map. Every operation is one atomic map sub-operation, so
//     StoreAll and DeleteAll apply atomically, and all writes serialize on the record.
//   - RecordStore keeps one record per entry, addressed by the encoded map key.
//     Writes to different keys proceed independently; key enumeration scans the set.
//
// Every operation returns (result, error). Failures are *errors.StoreError values
// whose kind is retryable (the remote call failed), inconsistency (stored data does
// not have the expected shape) or validation (bad configuration or a closed store):
//
//	v, ok, err := store.Load(ctx, "k1")
//	switch errors.KindOf(err) {
//	case errors.ErrorTypeRetryable:
//		// retry later
//	case errors.ErrorTypeInconsistency:
//		// fix the data or the marshaller
//	}
//
// An absent record or entry is never an error.
//
// Large string or byte values can be compressed by wrapping any Marshaller in a
// CompressedMarshaller.
package mapstore
