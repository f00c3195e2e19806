package remote

import (
	"context"
	"time"

	"github.com/gozephyr/aerospike-mapstore/config"
	"github.com/gozephyr/aerospike-mapstore/ttl"
)

// Policy holds the tuning knobs shared by every remote call.
// A zero duration or retry count keeps the client default.
type Policy struct {
	TotalTimeout  time.Duration
	SocketTimeout time.Duration
	MaxRetries    int
	// SendKey stores the user key with written records
	SendKey bool
}

// WritePolicy tunes record writes, deletes and map operations.
type WritePolicy struct {
	Policy
	// Expiration is the record TTL in seconds, see the ttl package
	Expiration    uint32
	DurableDelete bool
}

// BatchPolicy tunes batch reads and writes.
type BatchPolicy struct {
	Policy
	// ConcurrentNodes is the number of nodes queried in parallel, 0 means all
	ConcurrentNodes int
}

// ScanPolicy tunes full set scans.
type ScanPolicy struct {
	Policy
	IncludeBinData   bool
	MaxRecords       int64
	RecordsPerSecond int
}

// MapOrder is the ordering of a map bin.
type MapOrder int

const (
	MapUnordered MapOrder = iota
	MapKeyOrdered
	MapKeyValueOrdered
)

// MapWriteFlags control map put semantics; the zero value is upsert.
type MapWriteFlags int

const (
	MapWriteDefault    MapWriteFlags = 0
	MapWriteCreateOnly MapWriteFlags = 1
	MapWriteUpdateOnly MapWriteFlags = 2
	MapWriteNoFail     MapWriteFlags = 4
	MapWritePartial    MapWriteFlags = 8
)

// MapPolicy holds the map bin ordering and write flags.
type MapPolicy struct {
	Order MapOrder
	Flags MapWriteFlags
}

// DefaultMapPolicy returns a key-ordered upsert policy
func DefaultMapPolicy() MapPolicy {
	return MapPolicy{Order: MapKeyOrdered, Flags: MapWriteDefault}
}

// Policies bundles the per-operation policies of a store. Every field is a
// plain value; stores copy them per call and never mutate them.
type Policies struct {
	Read    Policy
	Operate WritePolicy
	Write   WritePolicy
	Delete  WritePolicy
	Batch   BatchPolicy
	Scan    ScanPolicy
	Map     MapPolicy
}

// DefaultPolicies returns policies with client defaults everywhere
func DefaultPolicies() Policies {
	return Policies{
		Write:  WritePolicy{Policy: Policy{SendKey: true}},
		Delete: WritePolicy{Policy: Policy{SendKey: true}},
		Scan:   ScanPolicy{Policy: Policy{SendKey: true}},
		Map:    DefaultMapPolicy(),
	}
}

// PoliciesFromConfig derives the per-operation policies from a configuration
func PoliciesFromConfig(cfg config.Config) Policies {
	base := Policy{
		TotalTimeout:  cfg.TotalTimeout,
		SocketTimeout: cfg.SocketTimeout,
		MaxRetries:    cfg.MaxRetries,
	}
	write := WritePolicy{
		Policy:     base,
		Expiration: ttl.Expiration(cfg.RecordTTL, cfg.TTLConfig),
	}
	write.SendKey = cfg.SendKey

	scan := ScanPolicy{Policy: base}
	// Scans echo user keys only when they were stored with the record
	scan.SendKey = true
	scan.TotalTimeout = 0

	return Policies{
		Read:    base,
		Operate: write,
		Write:   write,
		Delete:  write,
		Batch:   BatchPolicy{Policy: base},
		Scan:    scan,
		Map:     DefaultMapPolicy(),
	}
}

// WithContext shortens the total timeout to the context deadline, if any
func (p Policy) WithContext(ctx context.Context) Policy {
	deadline, ok := ctx.Deadline()
	if !ok {
		return p
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	if p.TotalTimeout == 0 || remaining < p.TotalTimeout {
		p.TotalTimeout = remaining
	}
	return p
}
