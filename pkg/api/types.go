package api

import (
	"time"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/fieldwire/pkg/codec"
	"github.com/ssargent/fieldwire/pkg/fieldjson"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// EncodeResponse is returned by the encode endpoint
type EncodeResponse struct {
	Hex  string `json:"hex"`
	Size int    `json:"size"`
}

// DecodeResponse is returned by the decode endpoint
type DecodeResponse struct {
	Field    fieldjson.View `json:"field"`
	Consumed int            `json:"consumed"`
	Trailing int            `json:"trailing"`
}

// FieldResponse is returned when reading a stored field
type FieldResponse struct {
	ID    string         `json:"id"`
	Size  int            `json:"size"`
	Field fieldjson.View `json:"field"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port            int
	Bind            string
	APIKey          string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

const (
	defaultMaxBodyBytes    = 16 << 20
	defaultShutdownTimeout = 10 * time.Second
)

// FieldStore is the storage the API serves fields from
type FieldStore interface {
	Create(f codec.Field) (ksuid.KSUID, error)
	CreateRaw(record []byte) (ksuid.KSUID, error)
	Read(id ksuid.KSUID) (codec.Field, error)
	ReadRaw(id ksuid.KSUID) ([]byte, error)
	Update(id ksuid.KSUID, f codec.Field) error
	Delete(id ksuid.KSUID) error
	List(limit int) ([]ksuid.KSUID, error)
}
