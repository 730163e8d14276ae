package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/fieldwire/pkg/codec"
	"github.com/ssargent/fieldwire/pkg/storage"
)

const testAPIKey = "test-key"

// ageRecord is the encoding of int32 field "age" = 42
var ageRecord = []byte{
	0x01,
	0x00, 0x00, 0x00, 0x03, 'a', 'g', 'e',
	0x00, 0x00, 0x00, 0x04,
	0x00, 0x00, 0x00, 0x2A,
}

func setupTestServer(t *testing.T, opts ...codec.DecoderOption) (*Server, http.Handler) {
	t.Helper()

	fs, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	server := NewServer(fs, codec.NewDecoder(opts...), ServerConfig{APIKey: testAPIKey}, NewMetrics(nil), zerolog.Nop())
	return server, NewRouter(server)
}

func doRequest(t *testing.T, h http.Handler, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("X-API-Key", testAPIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) (APIResponse, map[string]interface{}) {
	t.Helper()
	var response APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	data, _ := response.Data.(map[string]interface{})
	return response, data
}

func TestServer_handleHealth(t *testing.T) {
	_, h := setupTestServer(t)

	w := doRequest(t, h, "GET", "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	response, data := decodeResponse(t, w)
	assert.True(t, response.Success)
	assert.Equal(t, "healthy", data["status"])
}

func TestServer_handleEncode(t *testing.T) {
	_, h := setupTestServer(t)

	t.Run("hex response", func(t *testing.T) {
		w := doRequest(t, h, "POST", "/api/v1/encode", "application/json",
			[]byte(`{"key":"age","type":"int32","value":42}`))
		require.Equal(t, http.StatusOK, w.Code)

		_, data := decodeResponse(t, w)
		assert.Equal(t, hex.EncodeToString(ageRecord), data["hex"])
		assert.Equal(t, float64(16), data["size"])
	})

	t.Run("raw response", func(t *testing.T) {
		w := doRequest(t, h, "POST", "/api/v1/encode?format=raw", "application/json",
			[]byte(`{"key":"age","type":"int32","value":42}`))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, contentTypeOctetStream, w.Header().Get("Content-Type"))
		assert.Equal(t, ageRecord, w.Body.Bytes())
	})

	t.Run("invalid field", func(t *testing.T) {
		w := doRequest(t, h, "POST", "/api/v1/encode", "application/json",
			[]byte(`{"key":"age","type":"int32","value":"42"}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		response, _ := decodeResponse(t, w)
		assert.False(t, response.Success)
		assert.Equal(t, "invalid_field", response.Code)
	})
}

func TestServer_handleDecode(t *testing.T) {
	_, h := setupTestServer(t)

	t.Run("binary body with trailing bytes", func(t *testing.T) {
		body := append(append([]byte{}, ageRecord...), 0xFF, 0xFF)
		w := doRequest(t, h, "POST", "/api/v1/decode", contentTypeOctetStream, body)
		require.Equal(t, http.StatusOK, w.Code)

		_, data := decodeResponse(t, w)
		assert.Equal(t, float64(16), data["consumed"])
		assert.Equal(t, float64(2), data["trailing"])
		assert.Equal(t, map[string]interface{}{"key": "age", "type": "int32", "value": float64(42)}, data["field"])
	})

	t.Run("hex body", func(t *testing.T) {
		w := doRequest(t, h, "POST", "/api/v1/decode", "text/plain",
			[]byte(hex.EncodeToString(ageRecord)+"\n"))
		require.Equal(t, http.StatusOK, w.Code)

		_, data := decodeResponse(t, w)
		assert.Equal(t, float64(0), data["trailing"])
	})

	t.Run("bad hex", func(t *testing.T) {
		w := doRequest(t, h, "POST", "/api/v1/decode", "text/plain", []byte("zz"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	tests := []struct {
		name string
		body []byte
		code string
	}{
		{"empty body", nil, "truncated"},
		{"truncated header", ageRecord[:5], "truncated"},
		{"unknown type", []byte{0x07, 0, 0, 0, 0, 0, 0, 0, 0}, "unknown_type"},
		{"short int32", []byte{0x01, 0, 0, 0, 0, 0, 0, 0, 2, 0, 1}, "malformed_fixed_width"},
		{"bad utf8 key", []byte{0x03, 0, 0, 0, 1, 0xFF, 0, 0, 0, 1, 1}, "invalid_utf8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, h, "POST", "/api/v1/decode", contentTypeOctetStream, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

			response, _ := decodeResponse(t, w)
			assert.False(t, response.Success)
			assert.Equal(t, tt.code, response.Code)
		})
	}
}

func TestServer_handleDecode_DepthLimit(t *testing.T) {
	_, h := setupTestServer(t, codec.WithMaxDepth(1))

	inner := codec.NewField("x", codec.Message{codec.NewField("y", codec.Bool(true))})
	record := codec.EncodeField(codec.NewField("outer", codec.Message{inner}))

	w := doRequest(t, h, "POST", "/api/v1/decode", contentTypeOctetStream, record)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	response, _ := decodeResponse(t, w)
	assert.Equal(t, "depth_exceeded", response.Code)
}

func TestServer_FieldLifecycle(t *testing.T) {
	_, h := setupTestServer(t)

	w := doRequest(t, h, "POST", "/api/v1/fields", "application/json",
		[]byte(`{"key":"user","type":"message","value":[{"key":"name","type":"string","value":"ada"}]}`))
	require.Equal(t, http.StatusCreated, w.Code)
	_, data := decodeResponse(t, w)
	id, ok := data["id"].(string)
	require.True(t, ok)
	_, err := ksuid.Parse(id)
	require.NoError(t, err)

	t.Run("get json", func(t *testing.T) {
		w := doRequest(t, h, "GET", "/api/v1/fields/"+id, "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		_, data := decodeResponse(t, w)
		assert.Equal(t, id, data["id"])
		field := data["field"].(map[string]interface{})
		assert.Equal(t, "user", field["key"])
		assert.Equal(t, "message", field["type"])
	})

	t.Run("get raw", func(t *testing.T) {
		w := doRequest(t, h, "GET", "/api/v1/fields/"+id+"?format=raw", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		f, n, err := codec.NewDecoder().Decode(w.Body.Bytes())
		require.NoError(t, err)
		assert.Equal(t, w.Body.Len(), n)
		assert.Equal(t, "user", f.Key)
	})

	t.Run("update", func(t *testing.T) {
		w := doRequest(t, h, "PUT", "/api/v1/fields/"+id, "application/json",
			[]byte(`{"key":"user","type":"bool","value":false}`))
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(t, h, "GET", "/api/v1/fields/"+id, "", nil)
		_, data := decodeResponse(t, w)
		field := data["field"].(map[string]interface{})
		assert.Equal(t, "bool", field["type"])
		assert.Equal(t, false, field["value"])
	})

	t.Run("list", func(t *testing.T) {
		w := doRequest(t, h, "GET", "/api/v1/fields", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		_, data := decodeResponse(t, w)
		assert.Equal(t, float64(1), data["count"])
		assert.Equal(t, []interface{}{id}, data["ids"])
	})

	t.Run("delete", func(t *testing.T) {
		w := doRequest(t, h, "DELETE", "/api/v1/fields/"+id, "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(t, h, "GET", "/api/v1/fields/"+id, "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = doRequest(t, h, "DELETE", "/api/v1/fields/"+id, "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestServer_handleCreateField_Raw(t *testing.T) {
	_, h := setupTestServer(t)

	w := doRequest(t, h, "POST", "/api/v1/fields", contentTypeOctetStream, ageRecord)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, h, "POST", "/api/v1/fields", contentTypeOctetStream, append(append([]byte{}, ageRecord...), 0x00))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doRequest(t, h, "POST", "/api/v1/fields", contentTypeOctetStream, ageRecord[:10])
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	response, _ := decodeResponse(t, w)
	assert.Equal(t, "truncated", response.Code)
}

// failingStore fails every write with an error unrelated to the record.
type failingStore struct {
	FieldStore
}

func (failingStore) CreateRaw([]byte) (ksuid.KSUID, error) {
	return ksuid.Nil, errors.New("disk full")
}

func TestServer_handleCreateField_RawStorageFailure(t *testing.T) {
	server := NewServer(failingStore{}, nil, ServerConfig{APIKey: testAPIKey}, NewMetrics(nil), zerolog.Nop())
	h := NewRouter(server)

	w := doRequest(t, h, "POST", "/api/v1/fields", contentTypeOctetStream, ageRecord)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	response, _ := decodeResponse(t, w)
	assert.False(t, response.Success)
	assert.Empty(t, response.Code)
	assert.NotContains(t, w.Body.String(), "disk full")
}

func TestServer_handleListFields_Limit(t *testing.T) {
	_, h := setupTestServer(t)

	for i := 0; i < 3; i++ {
		w := doRequest(t, h, "POST", "/api/v1/fields", contentTypeOctetStream, ageRecord)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doRequest(t, h, "GET", "/api/v1/fields?limit=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, data := decodeResponse(t, w)
	assert.Equal(t, float64(2), data["count"])

	w = doRequest(t, h, "GET", "/api/v1/fields?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_InvalidID(t *testing.T) {
	_, h := setupTestServer(t)

	for _, method := range []string{"GET", "PUT", "DELETE"} {
		t.Run(method, func(t *testing.T) {
			w := doRequest(t, h, method, "/api/v1/fields/not-a-ksuid", "application/json",
				[]byte(`{"key":"a","type":"bool","value":true}`))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestServer_BodyTooLarge(t *testing.T) {
	fs, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer fs.Close()

	server := NewServer(fs, nil, ServerConfig{MaxBodyBytes: 8}, nil, zerolog.Nop())
	h := NewRouter(server)

	req := httptest.NewRequest("POST", "/api/v1/decode", strings.NewReader(string(ageRecord)))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
