package store

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/fieldwire/pkg/codec"
)

// LogWriter appends field records to a log file. The format has no top-level
// container, so the log is simply records written back to back.
type LogWriter struct {
	file       *os.File
	writer     *bufio.Writer
	scratch    []byte
	fsyncTimer *time.Timer
	config     LogWriterConfig
	mutex      sync.Mutex
	offset     int64 // Current write offset
	closed     bool
}

// NewLogWriter creates a new log writer with the given configuration
func NewLogWriter(config LogWriterConfig) (*LogWriter, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		_ = file.Close()
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	if config.MaxRecordSize <= 0 {
		config.MaxRecordSize = DefaultMaxRecordSize
	}

	bufferSize := config.BufferSize
	if bufferSize <= 0 {
		bufferSize = 4096
	}

	writer := &LogWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, bufferSize),
		config: config,
		offset: stat.Size(),
	}

	if config.FsyncInterval > 0 {
		writer.fsyncTimer = time.AfterFunc(config.FsyncInterval, func() {
			writer.mutex.Lock()
			defer writer.mutex.Unlock()
			if !writer.closed {
				_ = writer.sync()
			}
		})
	}

	return writer, nil
}

// Append encodes f onto the end of the log and returns the record offset
func (w *LogWriter) Append(f codec.Field) (int64, error) {
	if err := w.checkSize(f.Size()); err != nil {
		return 0, err
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.scratch = codec.AppendField(w.scratch[:0], f)
	return w.write(w.scratch)
}

// AppendRaw appends an already encoded record. The record must decode on
// its own and contain nothing after it.
func (w *LogWriter) AppendRaw(record []byte) (int64, error) {
	if err := w.checkSize(len(record)); err != nil {
		return 0, err
	}
	_, n, err := codec.NewDecoder().Decode(record)
	if err != nil {
		return 0, errors.Wrap(err, "invalid record")
	}
	if n != len(record) {
		return 0, errors.Newf("invalid record: %d trailing bytes", len(record)-n)
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.write(record)
}

func (w *LogWriter) checkSize(size int) error {
	if size > w.config.MaxRecordSize {
		return errors.Wrapf(ErrRecordTooLarge, "%d byte record exceeds limit of %d", size, w.config.MaxRecordSize)
	}
	return nil
}

func (w *LogWriter) write(data []byte) (int64, error) {
	if w.closed {
		return 0, ErrClosed
	}

	n, err := w.writer.Write(data)
	if err != nil {
		return 0, err
	}

	recordOffset := w.offset
	w.offset += int64(n)

	if w.config.FsyncInterval == 0 {
		if err := w.sync(); err != nil {
			return 0, err
		}
	} else if w.fsyncTimer != nil {
		w.fsyncTimer.Reset(w.config.FsyncInterval)
	}

	return recordOffset, nil
}

// Sync forces a fsync to disk
func (w *LogWriter) Sync() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.sync()
}

func (w *LogWriter) sync() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close closes the log writer and ensures all data is synced
func (w *LogWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if w.fsyncTimer != nil {
		w.fsyncTimer.Stop()
	}

	if err := w.sync(); err != nil {
		_ = w.file.Close()
		return err
	}

	return w.file.Close()
}

// Size returns the current size of the log file
func (w *LogWriter) Size() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.offset
}

// Path returns the file path
func (w *LogWriter) Path() string {
	return w.config.FilePath
}
