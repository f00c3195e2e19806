package mapstore

import (
	"bytes"
	"compress/gzip"
	"compress/lzw"
	"compress/zlib"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/gozephyr/aerospike-mapstore/errors"
	"github.com/gozephyr/aerospike-mapstore/internal"
)

var bufferPool = internal.NewObjectPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

// CompressionAlgorithm represents the compression algorithm to use
type CompressionAlgorithm byte

const (
	// GzipCompression uses gzip compression
	GzipCompression CompressionAlgorithm = iota + 1
	// ZlibCompression uses zlib compression
	ZlibCompression
	// LZWCompression uses LZW compression
	LZWCompression
)

func (a CompressionAlgorithm) String() string {
	switch a {
	case GzipCompression:
		return "gzip"
	case ZlibCompression:
		return "zlib"
	case LZWCompression:
		return "lzw"
	default:
		return fmt.Sprintf("CompressionAlgorithm(%d)", byte(a))
	}
}

// CompressionConfig represents configuration for compression
type CompressionConfig struct {
	Algorithm CompressionAlgorithm
	// Level is passed to gzip and zlib; LZW ignores it
	Level int
	// MinSize is the smallest encoded value, in bytes, worth compressing
	MinSize int
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Algorithm: GzipCompression,
		Level:     gzip.DefaultCompression,
		MinSize:   1024, // 1KB
	}
}

// CompressionStats represents statistics for compression
type CompressionStats struct {
	Compressed   int64
	Decompressed int64
	BytesIn      int64
	BytesOut     int64
}

// Ratio returns compressed size over original size for everything compressed so far
func (s CompressionStats) Ratio() float64 {
	if s.BytesIn == 0 {
		return 0
	}
	return float64(s.BytesOut) / float64(s.BytesIn)
}

// Compressed blobs start with this marker, then the algorithm, then the kind of
// the original value. Uncompressed byte values that begin with the marker are
// stored behind the same header with algorithm storedRaw.
const compressionMagic byte = 0xA5

const storedRaw CompressionAlgorithm = 0

const (
	kindBytes byte = iota
	kindString
)

// CompressedMarshaller wraps a Marshaller and compresses encoded values that
// are strings or byte slices of at least MinSize bytes. Compressed values are
// stored as blobs; smaller values and other kinds pass through unchanged, so a
// container may mix both and stays readable after the threshold changes.
type CompressedMarshaller[K comparable, V any] struct {
	inner  Marshaller[K, V]
	config CompressionConfig

	compressed   atomic.Int64
	decompressed atomic.Int64
	bytesIn      atomic.Int64
	bytesOut     atomic.Int64
}

// NewCompressedMarshaller wraps inner with the given compression settings
func NewCompressedMarshaller[K comparable, V any](inner Marshaller[K, V], config CompressionConfig) (*CompressedMarshaller[K, V], error) {
	if inner == nil {
		return nil, errors.Invalid("mapstore.NewCompressedMarshaller", fmt.Errorf("%w: nil marshaller", errors.ErrInvalidConfig))
	}
	switch config.Algorithm {
	case GzipCompression, ZlibCompression:
		if config.Level < gzip.HuffmanOnly || config.Level > gzip.BestCompression {
			return nil, errors.Invalid("mapstore.NewCompressedMarshaller", fmt.Errorf("%w: compression level %d", errors.ErrInvalidConfig, config.Level))
		}
	case LZWCompression:
	default:
		return nil, errors.Invalid("mapstore.NewCompressedMarshaller", fmt.Errorf("%w: unknown algorithm %s", errors.ErrInvalidConfig, config.Algorithm))
	}
	if config.MinSize < 0 {
		config.MinSize = 0
	}
	return &CompressedMarshaller[K, V]{inner: inner, config: config}, nil
}

// EncodeKey implements Marshaller; keys are never compressed
func (m *CompressedMarshaller[K, V]) EncodeKey(key K) (any, error) {
	return m.inner.EncodeKey(key)
}

// DecodeKey implements KeyDecoder, delegating to the wrapped marshaller when it can
func (m *CompressedMarshaller[K, V]) DecodeKey(raw any) (K, error) {
	if kd, ok := m.inner.(KeyDecoder[K]); ok {
		return kd.DecodeKey(raw)
	}
	return assertKey[K](raw)
}

// EncodeValue implements Marshaller
func (m *CompressedMarshaller[K, V]) EncodeValue(value V) (any, error) {
	encoded, err := m.inner.EncodeValue(value)
	if err != nil {
		return nil, err
	}

	var (
		data []byte
		kind byte
	)
	switch v := encoded.(type) {
	case string:
		data, kind = []byte(v), kindString
	case []byte:
		data, kind = v, kindBytes
	default:
		return encoded, nil
	}
	if len(data) < m.config.MinSize {
		if kind == kindBytes && len(data) > 0 && data[0] == compressionMagic {
			return append([]byte{compressionMagic, byte(storedRaw), kindBytes}, data...), nil
		}
		return encoded, nil
	}

	buf := bufferPool.Get()
	defer bufferPool.Put(buf)
	buf.Write([]byte{compressionMagic, byte(m.config.Algorithm), kind})
	w, err := m.writer(buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errors.ErrEncode, m.config.Algorithm, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errors.ErrEncode, m.config.Algorithm, err)
	}

	m.compressed.Add(1)
	m.bytesIn.Add(int64(len(data)))
	m.bytesOut.Add(int64(buf.Len()))
	return bytes.Clone(buf.Bytes()), nil
}

// DecodeValue implements Marshaller
func (m *CompressedMarshaller[K, V]) DecodeValue(raw any) (V, error) {
	blob, ok := raw.([]byte)
	if !ok || len(blob) < 3 || blob[0] != compressionMagic {
		return m.inner.DecodeValue(raw)
	}

	var zero V
	algo, kind := CompressionAlgorithm(blob[1]), blob[2]
	if algo == storedRaw {
		return m.inner.DecodeValue(bytes.Clone(blob[3:]))
	}
	r, err := reader(algo, bytes.NewReader(blob[3:]))
	if err != nil {
		return zero, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return zero, fmt.Errorf("%w: %s: %w", errors.ErrDecode, algo, err)
	}
	m.decompressed.Add(1)

	if kind == kindString {
		return m.inner.DecodeValue(string(data))
	}
	return m.inner.DecodeValue(data)
}

// Stats returns the current compression statistics
func (m *CompressedMarshaller[K, V]) Stats() CompressionStats {
	return CompressionStats{
		Compressed:   m.compressed.Load(),
		Decompressed: m.decompressed.Load(),
		BytesIn:      m.bytesIn.Load(),
		BytesOut:     m.bytesOut.Load(),
	}
}

// ResetStats resets the compression statistics
func (m *CompressedMarshaller[K, V]) ResetStats() {
	m.compressed.Store(0)
	m.decompressed.Store(0)
	m.bytesIn.Store(0)
	m.bytesOut.Store(0)
}

func (m *CompressedMarshaller[K, V]) writer(w io.Writer) (io.WriteCloser, error) {
	switch m.config.Algorithm {
	case GzipCompression:
		return gzip.NewWriterLevel(w, m.config.Level)
	case ZlibCompression:
		return zlib.NewWriterLevel(w, m.config.Level)
	default:
		return lzw.NewWriter(w, lzw.LSB, 8), nil
	}
}

func reader(algo CompressionAlgorithm, r io.Reader) (io.ReadCloser, error) {
	switch algo {
	case GzipCompression:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errors.ErrDecode, algo, err)
		}
		return zr, nil
	case ZlibCompression:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errors.ErrDecode, algo, err)
		}
		return zr, nil
	case LZWCompression:
		return lzw.NewReader(r, lzw.LSB, 8), nil
	default:
		return nil, fmt.Errorf("%w: unknown compression algorithm %d", errors.ErrDecode, byte(algo))
	}
}
