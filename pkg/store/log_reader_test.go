package store

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/fieldwire/pkg/codec"
)

func writeLog(t *testing.T, fields ...codec.Field) string {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), "fields.log")
	writer, err := NewLogWriter(LogWriterConfig{FilePath: filePath})
	require.NoError(t, err)
	for _, f := range fields {
		_, err := writer.Append(f)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return filePath
}

func testFields() []codec.Field {
	return []codec.Field{
		codec.NewField("age", codec.Int32(42)),
		codec.NewField("", codec.Message{codec.NewField("x", codec.Bool(true))}),
		codec.NewField("name", codec.String("ada")),
		codec.NewField("empty", codec.Bytes{}),
	}
}

func TestLogReader_ReadNext(t *testing.T) {
	fields := testFields()
	filePath := writeLog(t, fields...)

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	var offset int64
	for _, want := range fields {
		assert.Equal(t, offset, reader.Offset())
		got, err := reader.ReadNext()
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "got %+v want %+v", got, want)
		offset += int64(want.Size())
	}

	_, err = reader.ReadNext()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, offset, reader.Offset())
}

func TestLogReader_StartOffsetAndSeek(t *testing.T) {
	fields := testFields()
	filePath := writeLog(t, fields...)
	second := int64(fields[0].Size())

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath, StartOffset: second})
	require.NoError(t, err)
	defer reader.Close()

	got, err := reader.ReadNext()
	require.NoError(t, err)
	assert.True(t, fields[1].Equal(got))

	require.NoError(t, reader.Seek(0))
	got, err = reader.ReadNext()
	require.NoError(t, err)
	assert.True(t, fields[0].Equal(got))
}

func TestLogReader_Iterator(t *testing.T) {
	fields := testFields()
	filePath := writeLog(t, fields...)

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	it := reader.Iterator()
	defer it.Close()

	var got []codec.Field
	var offsets []int64
	for it.Next() {
		got = append(got, it.Field())
		offsets = append(offsets, it.Offset())
	}
	require.NoError(t, it.Err())
	require.Len(t, got, len(fields))
	assert.False(t, it.Next())

	var offset int64
	for i, f := range fields {
		assert.True(t, f.Equal(got[i]))
		assert.Equal(t, offset, offsets[i])
		offset += int64(f.Size())
	}
}

func TestLogReader_TornTail(t *testing.T) {
	fields := testFields()
	filePath := writeLog(t, fields...)

	info, err := os.Stat(filePath)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(filePath, info.Size()-2))

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	it := reader.Iterator()
	count := 0
	for it.Next() {
		count++
	}
	assert.Equal(t, len(fields)-1, count)
	assert.True(t, errors.Is(it.Err(), ErrCorruption))
}

func TestLogReader_UndecodableRecord(t *testing.T) {
	filePath := writeLog(t, codec.NewField("ok", codec.Int32(1)))

	bad := codec.EncodeField(codec.NewField("s", codec.String("x")))
	bad[len(bad)-1] = 0xFF // invalid UTF-8
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = file.Write(bad)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.ReadNext()
	require.NoError(t, err)

	_, err = reader.ReadNext()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorruption))
	assert.True(t, errors.Is(err, codec.ErrInvalidUTF8))
}

func TestLogReader_MaxRecordSize(t *testing.T) {
	filePath := writeLog(t, codec.NewField("big", codec.Bytes(make([]byte, 1024))))

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath, MaxRecordSize: 512})
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.ReadNext()
	assert.True(t, errors.Is(err, ErrCorruption))
}

func TestLogReader_DecoderPolicy(t *testing.T) {
	filePath := writeLog(t, codec.NewField("deep", codec.Message{
		codec.NewField("inner", codec.Message{codec.NewField("leaf", codec.Int32(1))}),
	}))

	reader, err := NewLogReader(LogReaderConfig{
		FilePath: filePath,
		Decoder:  codec.NewDecoder(codec.WithMaxDepth(1)),
	})
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.ReadNext()
	assert.True(t, errors.Is(err, codec.ErrDepthExceeded))
}

func TestNewLogReader_MissingFile(t *testing.T) {
	_, err := NewLogReader(LogReaderConfig{FilePath: filepath.Join(t.TempDir(), "missing.log")})
	assert.Error(t, err)
}
