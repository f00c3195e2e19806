package remote

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	as "github.com/aerospike/aerospike-client-go/v7"
	"github.com/aerospike/aerospike-client-go/v7/types"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/gozephyr/aerospike-mapstore/config"
)

// AerospikeClient implements Client on top of the Aerospike Go client.
type AerospikeClient struct {
	client    *as.Client
	logger    hclog.Logger
	closeOnce sync.Once
}

var _ Client = (*AerospikeClient)(nil)

// Dial connects to the cluster seeded by cfg.Host and cfg.Port.
func Dial(ctx context.Context, cfg config.Config, logger hclog.Logger) (*AerospikeClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	policy := as.NewClientPolicy()
	if cfg.ConnectTimeout > 0 {
		policy.Timeout = cfg.ConnectTimeout
	}
	policy.User = cfg.User
	policy.Password = cfg.Password

	client, err := as.NewClientWithPolicy(policy, cfg.Host, cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Address(), err)
	}

	logger.Info("connected to aerospike", "address", cfg.Address(), "nodes", len(client.GetNodes()))
	return &AerospikeClient{client: client, logger: logger}, nil
}

// NewAerospikeClient wraps an already connected Aerospike client.
func NewAerospikeClient(client *as.Client, logger hclog.Logger) *AerospikeClient {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &AerospikeClient{client: client, logger: logger}
}

// Get implements Client
func (c *AerospikeClient) Get(ctx context.Context, policy Policy, key Key, bins ...string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, err := asKey(key)
	if err != nil {
		return nil, err
	}
	rec, aerr := c.client.Get(basePolicy(policy.WithContext(ctx)), k, bins...)
	if aerr != nil {
		if isNotFound(aerr) {
			return nil, nil
		}
		return nil, aerr
	}
	return fromRecord(rec), nil
}

// BatchGet implements Client
func (c *AerospikeClient) BatchGet(ctx context.Context, policy BatchPolicy, keys []Key, bins ...string) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	asKeys := make([]*as.Key, len(keys))
	for i, key := range keys {
		k, err := asKey(key)
		if err != nil {
			return nil, err
		}
		asKeys[i] = k
	}

	recs, aerr := c.client.BatchGet(batchPolicy(ctx, policy), asKeys, bins...)
	if aerr != nil && !isNotFound(aerr) {
		return nil, aerr
	}

	out := make([]*Record, len(keys))
	for i := range out {
		if i < len(recs) && recs[i] != nil {
			out[i] = fromRecord(recs[i])
		}
	}
	return out, nil
}

// Put implements Client
func (c *AerospikeClient) Put(ctx context.Context, policy WritePolicy, key Key, bins Bins) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := asKey(key)
	if err != nil {
		return err
	}
	if aerr := c.client.Put(writePolicy(ctx, policy), k, as.BinMap(bins)); aerr != nil {
		return aerr
	}
	return nil
}

// BatchPut implements Client. Failures of individual records are aggregated.
func (c *AerospikeClient) BatchPut(ctx context.Context, policy BatchPolicy, write WritePolicy, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wp := as.NewBatchWritePolicy()
	wp.SendKey = write.SendKey
	wp.Expiration = write.Expiration
	wp.DurableDelete = write.DurableDelete

	records := make([]as.BatchRecordIfc, 0, len(entries))
	for _, entry := range entries {
		k, err := asKey(entry.Key)
		if err != nil {
			return err
		}
		ops := make([]*as.Operation, 0, len(entry.Bins))
		for name, value := range entry.Bins {
			ops = append(ops, as.PutOp(as.NewBin(name, value)))
		}
		records = append(records, as.NewBatchWrite(wp, k, ops...))
	}

	return c.batchOperate(ctx, policy, records, false)
}

// Delete implements Client
func (c *AerospikeClient) Delete(ctx context.Context, policy WritePolicy, key Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	k, err := asKey(key)
	if err != nil {
		return false, err
	}
	existed, aerr := c.client.Delete(writePolicy(ctx, policy), k)
	if aerr != nil {
		if isNotFound(aerr) {
			return false, nil
		}
		return false, aerr
	}
	return existed, nil
}

// BatchDelete implements Client. Records that do not exist are not failures.
func (c *AerospikeClient) BatchDelete(ctx context.Context, policy BatchPolicy, write WritePolicy, keys []Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dp := as.NewBatchDeletePolicy()
	dp.SendKey = write.SendKey
	dp.DurableDelete = write.DurableDelete

	records := make([]as.BatchRecordIfc, 0, len(keys))
	for _, key := range keys {
		k, err := asKey(key)
		if err != nil {
			return err
		}
		records = append(records, as.NewBatchDelete(dp, k))
	}

	return c.batchOperate(ctx, policy, records, true)
}

func (c *AerospikeClient) batchOperate(ctx context.Context, policy BatchPolicy, records []as.BatchRecordIfc, missingOK bool) error {
	var result *multierror.Error
	if aerr := c.client.BatchOperate(batchPolicy(ctx, policy), records); aerr != nil {
		result = multierror.Append(result, aerr)
	}
	for _, r := range records {
		rec := r.BatchRec()
		switch {
		case rec.ResultCode == types.OK:
		case missingOK && rec.ResultCode == types.KEY_NOT_FOUND_ERROR:
		case rec.Err != nil:
			result = multierror.Append(result, fmt.Errorf("%v: %w", rec.Key, rec.Err))
		default:
			result = multierror.Append(result, fmt.Errorf("%v: result code %d", rec.Key, rec.ResultCode))
		}
	}
	return result.ErrorOrNil()
}

// Operate implements Client
func (c *AerospikeClient) Operate(ctx context.Context, policy WritePolicy, key Key, op MapOp) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, err := asKey(key)
	if err != nil {
		return nil, err
	}
	operation, err := asOperation(op)
	if err != nil {
		return nil, err
	}

	rec, aerr := c.client.Operate(writePolicy(ctx, policy), k, operation)
	if aerr != nil {
		if isNotFound(aerr) {
			return nil, nil
		}
		if aerr.Matches(types.BIN_TYPE_ERROR) {
			return nil, fmt.Errorf("%w: %s: %w", ErrBinType, op.Bin, aerr)
		}
		return nil, aerr
	}
	if rec == nil {
		return nil, nil
	}
	return operateResult(op, rec.Bins[op.Bin]), nil
}

// operateResult shapes a bin result as documented on MapOp.
func operateResult(op MapOp, raw any) any {
	if op.Kind.IsWrite() || raw == nil {
		return nil
	}
	// An empty pair list is an empty result, not a list value
	if list, ok := raw.([]any); ok && len(list) == 0 && op.Kind == MapGetByKeyList {
		return map[any]any{}
	}
	return normalizeValue(raw)
}

// Scan implements Client
func (c *AerospikeClient) Scan(ctx context.Context, policy ScanPolicy, namespace, set string) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}

		sp := as.NewScanPolicy()
		applyBase(&sp.BasePolicy, policy.Policy.WithContext(ctx))
		sp.IncludeBinData = policy.IncludeBinData
		if policy.MaxRecords > 0 {
			sp.MaxRecords = policy.MaxRecords
		}
		if policy.RecordsPerSecond > 0 {
			sp.RecordsPerSecond = policy.RecordsPerSecond
		}

		rs, aerr := c.client.ScanAll(sp, namespace, set)
		if aerr != nil {
			yield(nil, aerr)
			return
		}
		defer func() {
			if cerr := rs.Close(); cerr != nil {
				c.logger.Debug("closing scan recordset", "set", set, "error", cerr)
			}
		}()

		results := rs.Results()
		for {
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			case res, ok := <-results:
				if !ok {
					return
				}
				if res.Err != nil {
					yield(nil, res.Err)
					return
				}
				if !yield(fromRecord(res.Record), nil) {
					return
				}
			}
		}
	}
}

// IsConnected implements Client
func (c *AerospikeClient) IsConnected() bool {
	return c.client.IsConnected()
}

// Close implements Client
func (c *AerospikeClient) Close() error {
	c.closeOnce.Do(func() {
		c.client.Close()
		c.logger.Info("aerospike connection closed")
	})
	return nil
}

func isNotFound(err error) bool {
	var aerr as.Error
	if errors.As(err, &aerr) {
		return aerr.Matches(types.KEY_NOT_FOUND_ERROR)
	}
	return false
}

func asKey(key Key) (*as.Key, error) {
	k, err := as.NewKey(key.Namespace, key.Set, key.Value)
	if err != nil {
		return nil, fmt.Errorf("key %v: %w", key, err)
	}
	return k, nil
}

func asOperation(op MapOp) (*as.Operation, error) {
	needsKey := op.Kind == MapGetByKey || op.Kind == MapPut || op.Kind == MapRemoveByKey
	if needsKey && len(op.Keys) != 1 {
		return nil, fmt.Errorf("%s needs exactly one key, got %d", op.Kind, len(op.Keys))
	}

	switch op.Kind {
	case MapGetByKey:
		return as.MapGetByKeyOp(op.Bin, op.Keys[0], as.MapReturnType.VALUE), nil
	case MapGetByKeyList:
		return as.MapGetByKeyListOp(op.Bin, op.Keys, as.MapReturnType.KEY_VALUE), nil
	case MapPut:
		return as.MapPutOp(mapPolicy(op.Policy), op.Bin, op.Keys[0], op.Value), nil
	case MapPutItems:
		return as.MapPutItemsOp(mapPolicy(op.Policy), op.Bin, op.Items), nil
	case MapRemoveByKey:
		return as.MapRemoveByKeyOp(op.Bin, op.Keys[0], as.MapReturnType.NONE), nil
	case MapRemoveByKeyList:
		return as.MapRemoveByKeyListOp(op.Bin, op.Keys, as.MapReturnType.NONE), nil
	default:
		return nil, fmt.Errorf("unsupported map operation %s", op.Kind)
	}
}

func mapPolicy(p MapPolicy) *as.MapPolicy {
	order := as.MapOrder.KEY_ORDERED
	switch p.Order {
	case MapUnordered:
		order = as.MapOrder.UNORDERED
	case MapKeyValueOrdered:
		order = as.MapOrder.KEY_VALUE_ORDERED
	}
	return as.NewMapPolicyWithFlags(order, int(p.Flags))
}

func applyBase(dst *as.BasePolicy, p Policy) {
	if p.TotalTimeout > 0 {
		dst.TotalTimeout = p.TotalTimeout
	}
	if p.SocketTimeout > 0 {
		dst.SocketTimeout = p.SocketTimeout
	}
	if p.MaxRetries > 0 {
		dst.MaxRetries = p.MaxRetries
	}
	dst.SendKey = p.SendKey
}

func basePolicy(p Policy) *as.BasePolicy {
	bp := as.NewPolicy()
	applyBase(bp, p)
	return bp
}

func writePolicy(ctx context.Context, p WritePolicy) *as.WritePolicy {
	wp := as.NewWritePolicy(0, p.Expiration)
	applyBase(&wp.BasePolicy, p.Policy.WithContext(ctx))
	wp.DurableDelete = p.DurableDelete
	return wp
}

func batchPolicy(ctx context.Context, p BatchPolicy) *as.BatchPolicy {
	bp := as.NewBatchPolicy()
	applyBase(&bp.BasePolicy, p.Policy.WithContext(ctx))
	if p.ConcurrentNodes > 0 {
		bp.ConcurrentNodes = p.ConcurrentNodes
	}
	return bp
}

func fromRecord(rec *as.Record) *Record {
	if rec == nil {
		return nil
	}
	out := &Record{
		Bins:       make(Bins, len(rec.Bins)),
		Generation: rec.Generation,
		Expiration: rec.Expiration,
	}
	if rec.Key != nil {
		out.Key = Key{Namespace: rec.Key.Namespace(), Set: rec.Key.SetName()}
		if v := rec.Key.Value(); v != nil {
			out.Key.Value = v.GetObject()
		}
	}
	for name, value := range rec.Bins {
		out.Bins[name] = normalizeValue(value)
	}
	return out
}

// normalizeValue turns ordered map results, which the client decodes as pair
// lists, into plain maps.
func normalizeValue(v any) any {
	switch pairs := v.(type) {
	case []as.MapPair:
		m := make(map[any]any, len(pairs))
		for _, p := range pairs {
			m[NormalizeKey(p.Key)] = p.Value
		}
		return m
	case []any:
		m := make(map[any]any, len(pairs))
		for _, item := range pairs {
			p, ok := item.(as.MapPair)
			if !ok {
				return v
			}
			m[NormalizeKey(p.Key)] = p.Value
		}
		if len(m) == 0 {
			return v
		}
		return m
	default:
		return v
	}
}
