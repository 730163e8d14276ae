package store

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/ssargent/fieldwire/pkg/codec"
)

// Recover truncates the log at filePath after its last complete record.
//
// Records are framed by their headers alone: a record counts as valid when
// its type code is known and the file holds every byte its lengths declare.
// Payloads are not decoded, so decoder limits such as max depth never cause
// data to be dropped. Only a record cut short by the end of the file, or one
// with an unknown type code, is truncated along with everything after it. A
// missing file is not an error.
func Recover(filePath string, logger zerolog.Logger) (*RecoveryResult, error) {
	startTime := time.Now()

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &RecoveryResult{RecoveryTime: time.Since(startTime)}, nil
		}
		return nil, err
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, err
	}
	fileSizeBefore := fileInfo.Size()

	reader := bufio.NewReader(file)
	var (
		recordsValidated int64
		lastValidOffset  int64
		corruption       error
	)
	for {
		size, err := frameRecord(reader)
		if err == io.EOF {
			break
		}
		if err != nil {
			if !errors.Is(err, ErrCorruption) {
				return nil, err
			}
			corruption = errors.Wrapf(err, "record at offset %d", lastValidOffset)
			break
		}
		recordsValidated++
		lastValidOffset += size
	}

	result := &RecoveryResult{
		RecordsValidated: recordsValidated,
		FileSizeBefore:   fileSizeBefore,
		FileSizeAfter:    fileSizeBefore,
	}

	if corruption != nil {
		if err := os.Truncate(filePath, lastValidOffset); err != nil {
			return nil, errors.Wrap(err, "failed to truncate log")
		}
		result.FileSizeAfter = lastValidOffset
		result.RecordsTruncated = 1

		logger.Warn().
			Err(corruption).
			Str("path", filePath).
			Int64("valid_records", recordsValidated).
			Int64("bytes_dropped", fileSizeBefore-lastValidOffset).
			Msg("truncated corrupt log tail")
	}

	result.RecoveryTime = time.Since(startTime)
	return result, nil
}

// frameRecord consumes one record from r and returns its size. It returns
// io.EOF when r is empty and an error marked ErrCorruption for a short or
// unknown-type record. The value is skipped without being buffered.
func frameRecord(r *bufio.Reader) (int64, error) {
	head := make([]byte, 5)
	n, err := io.ReadFull(r, head)
	if err != nil {
		if err == io.EOF && n == 0 {
			return 0, io.EOF
		}
		return 0, shortRecord(err)
	}
	kind := codec.Kind(head[0])
	if !kind.Valid() {
		return 0, errors.Mark(errors.Newf("unknown type code %d", uint8(kind)), ErrCorruption)
	}

	keyLen := int64(binary.BigEndian.Uint32(head[1:5]))
	if err := skip(r, keyLen); err != nil {
		return 0, err
	}

	valLenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, valLenBuf); err != nil {
		return 0, shortRecord(err)
	}
	valLen := int64(binary.BigEndian.Uint32(valLenBuf))
	if err := skip(r, valLen); err != nil {
		return 0, err
	}

	return codec.HeaderSize + keyLen + valLen, nil
}

func skip(r *bufio.Reader, n int64) error {
	copied, err := io.CopyN(io.Discard, r, n)
	if err != nil && copied < n {
		return shortRecord(err)
	}
	return nil
}

func shortRecord(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Mark(errors.New("record cut short by end of file"), ErrCorruption)
	}
	return err
}
