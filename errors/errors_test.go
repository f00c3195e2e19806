package errors

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreErrorBasics(t *testing.T) {
	err := errors.New("base error")
	se := &StoreError{
		Op:      "Load",
		Key:     "foo",
		Err:     err,
		ErrType: ErrorTypeRetryable,
	}
	require.Contains(t, se.Error(), "Load")
	require.Contains(t, se.Error(), "foo")
	require.Contains(t, se.Error(), "base error")
	require.Equal(t, err, se.Unwrap())

	se2 := &StoreError{
		Op:      "Load",
		Key:     "foo",
		Err:     err,
		ErrType: ErrorTypeRetryable,
	}
	require.True(t, se.Is(se2))

	batch := &StoreError{Op: "LoadAll", Count: 3, Err: err, ErrType: ErrorTypeRetryable}
	require.Contains(t, batch.Error(), "keys=3")
}

func TestRetryableClassification(t *testing.T) {
	ResetErrorMetrics()

	wrapped := Retryable("Load", "k1", io.ErrUnexpectedEOF)
	require.Error(t, wrapped)
	se := GetStoreError(wrapped)
	require.NotNil(t, se)
	require.Equal(t, ErrorTypeRetryable, se.ErrType)
	require.Equal(t, "Load", se.Op)
	require.Equal(t, "k1", se.Key)
	require.True(t, errors.Is(wrapped, io.ErrUnexpectedEOF))
	require.True(t, errors.Is(wrapped, ErrRemote))
	require.True(t, IsRetryable(wrapped))
	require.False(t, IsInconsistent(wrapped))

	batch := RetryableBatch("StoreAll", 4, io.ErrClosedPipe)
	require.Equal(t, 4, GetStoreError(batch).Count)
	require.Nil(t, GetStoreError(batch).Key)
	require.True(t, IsRetryable(batch))

	require.NoError(t, Retryable("Load", "k1", nil))
	require.NoError(t, RetryableBatch("LoadAll", 1, nil))
	require.Equal(t, int64(2), GetErrorMetrics().RetryableErrors.Load())
}

func TestInconsistentAndInvalid(t *testing.T) {
	ResetErrorMetrics()

	err := Inconsistent("LoadAllKeys", nil, errors.New("bin is a list"))
	require.True(t, IsInconsistent(err))
	require.True(t, errors.Is(err, ErrInconsistent))
	require.False(t, IsRetryable(err))

	decodeErr := Inconsistent("Load", "k", ErrDecode)
	require.True(t, errors.Is(decodeErr, ErrDecode))
	require.Equal(t, ErrorTypeInconsistency, KindOf(decodeErr))

	invalid := Invalid("config", ErrInvalidKeyType)
	require.True(t, IsValidation(invalid))
	require.True(t, errors.Is(invalid, ErrInvalidKeyType))

	closed := Invalid("Store", ErrStoreClosed)
	require.True(t, IsStoreClosed(closed))

	require.Equal(t, ErrorType(""), KindOf(errors.New("plain")))
	require.False(t, IsStoreError(errors.New("plain")))

	metrics := GetErrorMetrics()
	require.Equal(t, int64(2), metrics.InconsistencyErrors.Load())
	require.Equal(t, int64(2), metrics.ValidationErrors.Load())
	require.IsType(t, time.Time{}, metrics.LastValidationError.Load())

	ResetErrorMetrics()
	require.Equal(t, int64(0), metrics.InconsistencyErrors.Load())
	require.Equal(t, int64(0), metrics.ValidationErrors.Load())
}

func TestEncodingAndDecoding(t *testing.T) {
	enc := Encoding("Store", "k", errors.New("bad value"))
	require.True(t, IsInconsistent(enc))
	require.True(t, Is(enc, ErrEncode))
	require.False(t, Is(enc, ErrInconsistent))

	dec := Decoding("Load", "k", ErrDecode)
	require.True(t, Is(dec, ErrDecode))
	require.Equal(t, "k", GetStoreError(dec).Key)

	var se *StoreError
	require.True(t, As(dec, &se))
	require.Equal(t, "Load", se.Op)

	require.NoError(t, Encoding("Store", "k", nil))
	require.NoError(t, Decoding("Load", "k", nil))
}
