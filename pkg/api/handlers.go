package api

import (
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/fieldwire/pkg/codec"
	"github.com/ssargent/fieldwire/pkg/fieldjson"
	"github.com/ssargent/fieldwire/pkg/storage"
)

const contentTypeOctetStream = "application/octet-stream"

// Server holds the API server state
type Server struct {
	store   FieldStore
	decoder *codec.Decoder
	config  ServerConfig
	metrics *Metrics
	logger  zerolog.Logger
}

// NewServer creates a new API server. A nil decoder uses the default limits
// and a nil metrics set records into a private registry.
func NewServer(store FieldStore, decoder *codec.Decoder, config ServerConfig, metrics *Metrics, logger zerolog.Logger) *Server {
	if decoder == nil {
		decoder = codec.NewDecoder()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Server{
		store:   store,
		decoder: decoder,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Get the health status of the API
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleEncode turns a JSON field into its binary record. With ?format=raw
// the record itself is the response body; otherwise it is returned as hex.
//
//	@Summary	Encode a field
//	@Tags		codec
//	@Accept		json
//	@Produce	json,octet-stream
//	@Param		format	query		string	false	"raw for a binary response"
//	@Success	200		{object}	APIResponse{data=EncodeResponse}
//	@Failure	400		{object}	APIResponse
//	@Security	ApiKeyAuth
//	@Router		/encode [post]
func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	f, err := fieldjson.Parse(body)
	if err != nil {
		s.metrics.RecordCodecOperation("encode", false, 0)
		sendCodedError(w, err.Error(), "invalid_field", http.StatusBadRequest)
		return
	}

	record := codec.EncodeField(f)
	s.metrics.RecordCodecOperation("encode", true, len(record))

	if r.URL.Query().Get("format") == "raw" {
		writeRaw(w, http.StatusOK, record)
		return
	}
	sendSuccess(w, EncodeResponse{Hex: hex.EncodeToString(record), Size: len(record)})
}

// handleDecode decodes the first record in the request body. The body is
// binary unless the content type is text/plain, in which case it is hex.
//
//	@Summary	Decode a record
//	@Tags		codec
//	@Accept		octet-stream,plain
//	@Produce	json
//	@Success	200	{object}	APIResponse{data=DecodeResponse}
//	@Failure	400	{object}	APIResponse
//	@Failure	422	{object}	APIResponse
//	@Security	ApiKeyAuth
//	@Router		/decode [post]
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/plain") {
		decoded, err := hex.DecodeString(strings.TrimSpace(string(body)))
		if err != nil {
			sendCodedError(w, "body is not valid hex", "invalid_hex", http.StatusBadRequest)
			return
		}
		body = decoded
	}

	f, n, err := s.decoder.Decode(body)
	if err != nil {
		s.metrics.RecordCodecOperation("decode", false, 0)
		sendCodedError(w, err.Error(), decodeErrorCode(err), http.StatusUnprocessableEntity)
		return
	}
	s.metrics.RecordCodecOperation("decode", true, n)

	sendSuccess(w, DecodeResponse{
		Field:    fieldjson.ToView(f),
		Consumed: n,
		Trailing: len(body) - n,
	})
}

// decodeErrorCode maps a decode failure to a stable code for clients
func decodeErrorCode(err error) string {
	switch {
	case errors.Is(err, codec.ErrTruncated):
		return "truncated"
	case errors.Is(err, codec.ErrInvalidUTF8):
		return "invalid_utf8"
	case errors.Is(err, codec.ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, codec.ErrMalformedFixedWidth):
		return "malformed_fixed_width"
	case errors.Is(err, codec.ErrDepthExceeded):
		return "depth_exceeded"
	}
	return "decode_failed"
}

// handleCreateField stores a field. JSON bodies are parsed as fields and
// octet-stream bodies must hold exactly one binary record.
//
//	@Summary	Store a field
//	@Tags		fields
//	@Accept		json,octet-stream
//	@Produce	json
//	@Success	201	{object}	APIResponse
//	@Failure	400	{object}	APIResponse
//	@Failure	422	{object}	APIResponse
//	@Failure	500	{object}	APIResponse
//	@Security	ApiKeyAuth
//	@Router		/fields [post]
func (s *Server) handleCreateField(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var (
		id  ksuid.KSUID
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), contentTypeOctetStream) {
		id, err = s.store.CreateRaw(body)
		if err != nil {
			s.metrics.RecordStorageOperation("create", false, time.Since(start))
			if errors.Is(err, storage.ErrInvalidRecord) {
				sendCodedError(w, err.Error(), decodeErrorCode(err), http.StatusUnprocessableEntity)
				return
			}
			s.sendStorageError(w, err)
			return
		}
	} else {
		f, perr := fieldjson.Parse(body)
		if perr != nil {
			s.metrics.RecordStorageOperation("create", false, time.Since(start))
			sendCodedError(w, perr.Error(), "invalid_field", http.StatusBadRequest)
			return
		}
		id, err = s.store.Create(f)
		if err != nil {
			s.metrics.RecordStorageOperation("create", false, time.Since(start))
			s.logger.Error().Err(err).Msg("failed to create field")
			sendError(w, "Failed to store field", http.StatusInternalServerError)
			return
		}
	}

	s.metrics.RecordStorageOperation("create", true, time.Since(start))
	sendCreated(w, map[string]string{"id": id.String()})
}

// handleListFields godoc
//
//	@Summary	List stored field IDs
//	@Tags		fields
//	@Produce	json
//	@Param		limit	query		int	false	"Maximum number of IDs"
//	@Success	200		{object}	APIResponse
//	@Failure	400		{object}	APIResponse
//	@Security	ApiKeyAuth
//	@Router		/fields [get]
func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			sendError(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	ids, err := s.store.List(limit)
	if err != nil {
		s.metrics.RecordStorageOperation("list", false, time.Since(start))
		s.logger.Error().Err(err).Msg("failed to list fields")
		sendError(w, "Failed to list fields", http.StatusInternalServerError)
		return
	}
	s.metrics.RecordStorageOperation("list", true, time.Since(start))

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	sendSuccess(w, map[string]interface{}{"ids": out, "count": len(out)})
}

// handleGetField godoc
//
//	@Summary	Get a stored field
//	@Tags		fields
//	@Produce	json,octet-stream
//	@Param		id		path		string	true	"Field ID"
//	@Param		format	query		string	false	"raw for the binary record"
//	@Success	200		{object}	APIResponse{data=FieldResponse}
//	@Failure	404		{object}	APIResponse
//	@Security	ApiKeyAuth
//	@Router		/fields/{id} [get]
func (s *Server) handleGetField(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	record, err := s.store.ReadRaw(id)
	if err != nil {
		s.metrics.RecordStorageOperation("get", false, time.Since(start))
		s.sendStorageError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "raw" {
		s.metrics.RecordStorageOperation("get", true, time.Since(start))
		writeRaw(w, http.StatusOK, record)
		return
	}

	f, _, err := s.decoder.Decode(record)
	if err != nil {
		s.metrics.RecordStorageOperation("get", false, time.Since(start))
		sendCodedError(w, err.Error(), decodeErrorCode(err), http.StatusUnprocessableEntity)
		return
	}
	s.metrics.RecordStorageOperation("get", true, time.Since(start))
	sendSuccess(w, FieldResponse{ID: id.String(), Size: len(record), Field: fieldjson.ToView(f)})
}

// handleUpdateField godoc
//
//	@Summary	Replace a stored field
//	@Tags		fields
//	@Accept		json
//	@Produce	json
//	@Param		id	path		string	true	"Field ID"
//	@Success	200	{object}	APIResponse
//	@Failure	400	{object}	APIResponse
//	@Failure	404	{object}	APIResponse
//	@Security	ApiKeyAuth
//	@Router		/fields/{id} [put]
func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	f, err := fieldjson.Parse(body)
	if err != nil {
		sendCodedError(w, err.Error(), "invalid_field", http.StatusBadRequest)
		return
	}

	if err := s.store.Update(id, f); err != nil {
		s.metrics.RecordStorageOperation("update", false, time.Since(start))
		s.sendStorageError(w, err)
		return
	}
	s.metrics.RecordStorageOperation("update", true, time.Since(start))
	sendSuccess(w, map[string]string{"id": id.String(), "status": "updated"})
}

// handleDeleteField godoc
//
//	@Summary	Delete a stored field
//	@Tags		fields
//	@Produce	json
//	@Param		id	path		string	true	"Field ID"
//	@Success	200	{object}	APIResponse
//	@Failure	404	{object}	APIResponse
//	@Security	ApiKeyAuth
//	@Router		/fields/{id} [delete]
func (s *Server) handleDeleteField(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := s.store.Delete(id); err != nil {
		s.metrics.RecordStorageOperation("delete", false, time.Since(start))
		s.sendStorageError(w, err)
		return
	}
	s.metrics.RecordStorageOperation("delete", true, time.Since(start))
	sendSuccess(w, map[string]string{"id": id.String(), "status": "deleted"})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func (s *Server) sendStorageError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		sendError(w, "Field not found", http.StatusNotFound)
		return
	}
	s.logger.Error().Err(err).Msg("storage operation failed")
	sendError(w, "Storage operation failed", http.StatusInternalServerError)
}

func parseID(w http.ResponseWriter, r *http.Request) (ksuid.KSUID, bool) {
	id, err := ksuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, "Invalid field id", http.StatusBadRequest)
		return ksuid.Nil, false
	}
	return id, true
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", contentTypeOctetStream)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
