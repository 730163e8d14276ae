package store

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/fieldwire/pkg/codec"
)

// LogReader provides sequential access to the fields in a log file
type LogReader struct {
	file    *os.File
	reader  *bufio.Reader
	decoder *codec.Decoder
	offset  int64
	config  LogReaderConfig
}

// NewLogReader creates a new log reader for the specified file
func NewLogReader(config LogReaderConfig) (*LogReader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, err
	}

	if config.StartOffset > 0 {
		if _, err := file.Seek(config.StartOffset, io.SeekStart); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	if config.Decoder == nil {
		config.Decoder = codec.NewDecoder()
	}
	if config.MaxRecordSize <= 0 {
		config.MaxRecordSize = DefaultMaxRecordSize
	}

	return &LogReader{
		file:    file,
		reader:  bufio.NewReader(file),
		decoder: config.Decoder,
		offset:  config.StartOffset,
		config:  config,
	}, nil
}

// ReadNext reads the field at the current offset. It returns io.EOF at a
// clean end of file and an error marked ErrCorruption for a torn or
// undecodable record. The offset only advances past fully decoded records.
func (r *LogReader) ReadNext() (codec.Field, error) {
	record, err := r.readRecord()
	if err != nil {
		return codec.Field{}, err
	}

	field, n, err := r.decoder.Decode(record)
	if err != nil {
		return codec.Field{}, errors.Mark(errors.Wrapf(err, "record at offset %d", r.offset), ErrCorruption)
	}
	r.offset += int64(n)
	return field, nil
}

// readRecord frames one record using only its two length prefixes.
func (r *LogReader) readRecord() ([]byte, error) {
	// type code + key length
	head := make([]byte, 5)
	n, err := io.ReadFull(r.reader, head)
	if err != nil {
		if err == io.EOF && n == 0 {
			return nil, io.EOF
		}
		return nil, r.torn(err)
	}

	keyLen := int64(binary.BigEndian.Uint32(head[1:5]))
	if keyLen > int64(r.config.MaxRecordSize) {
		return nil, errors.Mark(errors.Newf("record at offset %d declares %d byte key", r.offset, keyLen), ErrCorruption)
	}

	// key + value length
	mid := make([]byte, keyLen+4)
	if _, err := io.ReadFull(r.reader, mid); err != nil {
		return nil, r.torn(err)
	}

	valLen := int64(binary.BigEndian.Uint32(mid[keyLen:]))
	total := codec.HeaderSize + keyLen + valLen
	if total > int64(r.config.MaxRecordSize) {
		return nil, errors.Mark(errors.Newf("record at offset %d declares %d bytes", r.offset, total), ErrCorruption)
	}

	record := make([]byte, 0, total)
	record = append(record, head...)
	record = append(record, mid...)
	record = record[:total]
	if _, err := io.ReadFull(r.reader, record[len(head)+len(mid):]); err != nil {
		return nil, r.torn(err)
	}
	return record, nil
}

func (r *LogReader) torn(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Mark(errors.Newf("torn record at offset %d", r.offset), ErrCorruption)
	}
	return err
}

// Seek sets the read offset. It must point at the start of a record.
func (r *LogReader) Seek(offset int64) error {
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	r.reader.Reset(r.file)
	r.offset = offset
	return nil
}

// Offset returns the offset of the next record to be read
func (r *LogReader) Offset() int64 {
	return r.offset
}

// Iterator returns a streaming iterator over the remaining fields
func (r *LogReader) Iterator() FieldIterator {
	return &logFieldIterator{reader: r}
}

// Close closes the log reader
func (r *LogReader) Close() error {
	return r.file.Close()
}

type logFieldIterator struct {
	reader *LogReader
	field  codec.Field
	offset int64
	err    error
	done   bool
}

func (it *logFieldIterator) Next() bool {
	if it.done {
		return false
	}
	it.offset = it.reader.Offset()
	it.field, it.err = it.reader.ReadNext()
	if it.err != nil {
		it.done = true
		if it.err == io.EOF {
			it.err = nil
		}
		return false
	}
	return true
}

func (it *logFieldIterator) Field() codec.Field {
	return it.field
}

func (it *logFieldIterator) Offset() int64 {
	return it.offset
}

func (it *logFieldIterator) Err() error {
	return it.err
}

func (it *logFieldIterator) Close() error {
	// the reader is owned by the caller
	return nil
}
