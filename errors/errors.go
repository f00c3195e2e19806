// Package errors classifies map-store failures into retryable remote failures,
// local inconsistencies and validation errors.
package errors

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeRetryable represents remote store failures the caller may retry
	ErrorTypeRetryable ErrorType = "retryable"
	// ErrorTypeInconsistency represents decoded data that does not have the expected shape
	ErrorTypeInconsistency ErrorType = "inconsistency"
	// ErrorTypeValidation represents invalid configuration or misuse
	ErrorTypeValidation ErrorType = "validation"
)

// Common error types
var (
	// Remote errors
	ErrRemote = errors.New("remote store operation failed")

	// Local data errors
	ErrInconsistent = errors.New("unexpected remote data shape")
	ErrEncode       = errors.New("encode error")
	ErrDecode       = errors.New("decode error")

	// ErrNoValue is returned by record mappers for a record that holds no
	// value of this map; stores treat it as an absent entry
	ErrNoValue = errors.New("record holds no value")

	// Configuration errors
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidKeyType   = errors.New("unsupported record key type")
	ErrInvalidPort      = errors.New("invalid port")
	ErrInvalidRecordKey = errors.New("invalid record key")
	ErrInvalidTTL       = errors.New("invalid TTL value")

	// Lifecycle errors
	ErrStoreClosed = errors.New("store is closed")
)

// StoreError represents a failed map-store operation
type StoreError struct {
	Op string
	// Key is the logical key for single-key operations, nil otherwise
	Key any
	// Count is the number of keys or entries for batch operations
	Count   int
	Err     error
	ErrType ErrorType
}

// Error implements the error interface
func (e *StoreError) Error() string {
	switch {
	case e.Key != nil:
		return fmt.Sprintf("%s: %s: key=%v: %v", e.ErrType, e.Op, e.Key, e.Err)
	case e.Count > 0:
		return fmt.Sprintf("%s: %s: keys=%d: %v", e.ErrType, e.Op, e.Count, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.ErrType, e.Op, e.Err)
	}
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error is of the same type as the receiver
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.ErrType == t.ErrType && e.Op == t.Op && errors.Is(e.Err, t.Err)
}

// NewStoreError creates a new StoreError and updates the error metrics
func NewStoreError(errType ErrorType, op string, key any, count int, err error) error {
	updateErrorMetrics(errType)
	return &StoreError{
		ErrType: errType,
		Op:      op,
		Key:     key,
		Count:   count,
		Err:     err,
	}
}

// Retryable classifies a remote failure of a single-key operation.
func Retryable(op string, key any, err error) error {
	if err == nil {
		return nil
	}
	return NewStoreError(ErrorTypeRetryable, op, key, 0, remoteCause(err))
}

// RetryableBatch classifies a remote failure of an operation over count keys.
func RetryableBatch(op string, count int, err error) error {
	if err == nil {
		return nil
	}
	return NewStoreError(ErrorTypeRetryable, op, nil, count, remoteCause(err))
}

// Inconsistent classifies a local data-shape or marshalling defect.
func Inconsistent(op string, key any, err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrInconsistent) && !errors.Is(err, ErrEncode) && !errors.Is(err, ErrDecode) {
		err = fmt.Errorf("%w: %w", ErrInconsistent, err)
	}
	return NewStoreError(ErrorTypeInconsistency, op, key, 0, err)
}

// Encoding classifies a marshaller failure while encoding a key or value.
func Encoding(op string, key any, err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrEncode) {
		err = fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return NewStoreError(ErrorTypeInconsistency, op, key, 0, err)
}

// Decoding classifies a marshaller failure while decoding a stored key or value.
func Decoding(op string, key any, err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrDecode) {
		err = fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return NewStoreError(ErrorTypeInconsistency, op, key, 0, err)
}

// Invalid classifies a configuration or usage error.
func Invalid(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewStoreError(ErrorTypeValidation, op, nil, 0, err)
}

// remoteCause makes sure the cause chain reaches ErrRemote while keeping the original error.
func remoteCause(err error) error {
	if errors.Is(err, ErrRemote) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRemote, err)
}

// ErrorMetrics tracks error statistics
type ErrorMetrics struct {
	RetryableErrors     atomic.Int64
	InconsistencyErrors atomic.Int64
	ValidationErrors    atomic.Int64

	LastRetryableError     atomic.Value // time.Time
	LastInconsistencyError atomic.Value // time.Time
	LastValidationError    atomic.Value // time.Time
}

var metrics = &ErrorMetrics{}

// GetErrorMetrics returns the current error metrics
func GetErrorMetrics() *ErrorMetrics {
	return metrics
}

// ResetErrorMetrics resets all error metrics
func ResetErrorMetrics() {
	metrics.RetryableErrors.Store(0)
	metrics.InconsistencyErrors.Store(0)
	metrics.ValidationErrors.Store(0)
	metrics.LastRetryableError.Store(time.Time{})
	metrics.LastInconsistencyError.Store(time.Time{})
	metrics.LastValidationError.Store(time.Time{})
}

func updateErrorMetrics(errType ErrorType) {
	now := time.Now()
	switch errType {
	case ErrorTypeRetryable:
		metrics.RetryableErrors.Add(1)
		metrics.LastRetryableError.Store(now)
	case ErrorTypeInconsistency:
		metrics.InconsistencyErrors.Add(1)
		metrics.LastInconsistencyError.Store(now)
	case ErrorTypeValidation:
		metrics.ValidationErrors.Add(1)
		metrics.LastValidationError.Store(now)
	}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetStoreError returns the StoreError in err's chain, if any
func GetStoreError(err error) *StoreError {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr
	}
	return nil
}

// IsStoreError checks if an error is a StoreError
func IsStoreError(err error) bool {
	return GetStoreError(err) != nil
}

// KindOf returns the classification of err, or "" when err is not a StoreError
func KindOf(err error) ErrorType {
	if storeErr := GetStoreError(err); storeErr != nil {
		return storeErr.ErrType
	}
	return ""
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	return KindOf(err) == errType
}

// IsRetryable checks if the caller may retry the failed operation
func IsRetryable(err error) bool {
	return IsErrorType(err, ErrorTypeRetryable)
}

// IsInconsistent checks if the error is a local inconsistency
func IsInconsistent(err error) bool {
	return IsErrorType(err, ErrorTypeInconsistency)
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	return IsErrorType(err, ErrorTypeValidation)
}

// IsStoreClosed checks if the error is a store closed error
func IsStoreClosed(err error) bool {
	return errors.Is(err, ErrStoreClosed)
}
