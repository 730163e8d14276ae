package store

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/fieldwire/pkg/codec"
)

// DefaultMaxRecordSize caps the size of a single record written to or read
// from a log. Readers treat larger declared lengths as corruption.
const DefaultMaxRecordSize = 64 << 20

// LogWriterConfig holds configuration for the log writer
type LogWriterConfig struct {
	FilePath      string        // Path to the log file
	FsyncInterval time.Duration // How often to fsync (0 = every write)
	BufferSize    int           // Write buffer size
	MaxRecordSize int           // 0 uses DefaultMaxRecordSize
}

// LogReaderConfig holds configuration for the log reader
type LogReaderConfig struct {
	FilePath      string         // Path to the log file
	StartOffset   int64          // Offset to start reading from
	Decoder       *codec.Decoder // nil uses codec.NewDecoder()
	MaxRecordSize int            // 0 uses DefaultMaxRecordSize
}

// FieldIterator provides streaming access to the fields of a log
type FieldIterator interface {
	Next() bool
	Field() codec.Field
	// Offset is the position of the current field's record in the file.
	Offset() int64
	// Err returns the error that stopped iteration, or nil at a clean end.
	Err() error
	Close() error
}

// RecoveryResult describes a log validation pass
type RecoveryResult struct {
	RecordsValidated int64
	RecordsTruncated int64
	FileSizeBefore   int64
	FileSizeAfter    int64
	RecoveryTime     time.Duration
}

var (
	ErrCorruption = errors.New("store: data corruption detected")
	ErrClosed     = errors.New("store: log closed")

	// ErrRecordTooLarge is returned by the writer for records a reader
	// with the same MaxRecordSize would refuse.
	ErrRecordTooLarge = errors.New("store: record too large")
)
