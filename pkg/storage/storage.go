// Package storage keeps encoded fields in a pebble database keyed by KSUID.
package storage

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/fieldwire/pkg/codec"
)

// ErrNotFound is returned when no field is stored under an ID.
var ErrNotFound = errors.New("storage: field not found")

// ErrInvalidRecord marks raw records rejected before they reach the database.
var ErrInvalidRecord = errors.New("storage: invalid record")

// Option configures a FieldStorage.
type Option func(*FieldStorage)

// WithDecoder sets the decoder used by Read. Stored records were produced by
// the encoder, so this mostly matters for records written with CreateRaw.
func WithDecoder(d *codec.Decoder) Option {
	return func(s *FieldStorage) { s.decoder = d }
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *FieldStorage) { s.logger = logger }
}

// WithSync makes every write wait for the WAL to reach disk.
func WithSync(sync bool) Option {
	return func(s *FieldStorage) {
		if sync {
			s.writeOpts = pebble.Sync
		} else {
			s.writeOpts = pebble.NoSync
		}
	}
}

// FieldStorage stores one encoded field record per KSUID.
type FieldStorage struct {
	db        *pebble.DB
	decoder   *codec.Decoder
	logger    zerolog.Logger
	writeOpts *pebble.WriteOptions
}

// Open opens or creates the database at path.
func Open(path string, opts ...Option) (*FieldStorage, error) {
	s := &FieldStorage{
		decoder:   codec.NewDecoder(),
		logger:    zerolog.Nop(),
		writeOpts: pebble.NoSync,
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open storage at %s", path)
	}
	s.db = db
	s.logger.Debug().Str("path", path).Msg("storage opened")
	return s, nil
}

// Create stores f under a new ID.
func (s *FieldStorage) Create(f codec.Field) (ksuid.KSUID, error) {
	return s.CreateRaw(codec.EncodeField(f))
}

// CreateRaw stores an already encoded record under a new ID. The record must
// decode on its own with no trailing bytes.
func (s *FieldStorage) CreateRaw(record []byte) (ksuid.KSUID, error) {
	if err := s.checkRecord(record); err != nil {
		return ksuid.Nil, err
	}
	id := ksuid.New()
	if err := s.db.Set(id.Bytes(), record, s.writeOpts); err != nil {
		return ksuid.Nil, errors.Wrap(err, "failed to store field")
	}
	s.logger.Debug().Str("id", id.String()).Int("size", len(record)).Msg("field created")
	return id, nil
}

// Read decodes the field stored under id.
func (s *FieldStorage) Read(id ksuid.KSUID) (codec.Field, error) {
	record, err := s.ReadRaw(id)
	if err != nil {
		return codec.Field{}, err
	}
	f, _, err := s.decoder.Decode(record)
	if err != nil {
		return codec.Field{}, errors.Wrapf(err, "field %s", id)
	}
	return f, nil
}

// ReadRaw returns a copy of the encoded record stored under id.
func (s *FieldStorage) ReadRaw(id ksuid.KSUID) ([]byte, error) {
	data, closer, err := s.db.Get(id.Bytes())
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "id %s", id)
		}
		return nil, err
	}
	defer closer.Close()

	// data is only valid until the closer is released
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Update replaces the field stored under id. The ID must already exist.
func (s *FieldStorage) Update(id ksuid.KSUID, f codec.Field) error {
	if _, err := s.ReadRaw(id); err != nil {
		return err
	}
	if err := s.db.Set(id.Bytes(), codec.EncodeField(f), s.writeOpts); err != nil {
		return errors.Wrap(err, "failed to update field")
	}
	return nil
}

// Delete removes the field stored under id. Deleting a missing ID returns
// ErrNotFound.
func (s *FieldStorage) Delete(id ksuid.KSUID) error {
	if _, err := s.ReadRaw(id); err != nil {
		return err
	}
	return s.db.Delete(id.Bytes(), s.writeOpts)
}

// List returns up to limit IDs in ID order, which follows creation time at
// one-second resolution. A limit of zero or less returns every ID.
func (s *FieldStorage) List(limit int) ([]ksuid.KSUID, error) {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var ids []ksuid.KSUID
	for iter.First(); iter.Valid(); iter.Next() {
		id, err := ksuid.FromBytes(iter.Key())
		if err != nil {
			s.logger.Warn().Hex("key", iter.Key()).Msg("skipping non-ksuid key")
			continue
		}
		ids = append(ids, id)
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids, iter.Error()
}

// Close closes the database.
func (s *FieldStorage) Close() error {
	return s.db.Close()
}

func (s *FieldStorage) checkRecord(record []byte) error {
	_, n, err := s.decoder.Decode(record)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "invalid record"), ErrInvalidRecord)
	}
	if n != len(record) {
		return errors.Mark(errors.Newf("invalid record: %d trailing bytes", len(record)-n), ErrInvalidRecord)
	}
	return nil
}
