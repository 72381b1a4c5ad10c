package nodes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/nodebase/pkg/execerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["text"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg-1"}`))
	}))
	defer server.Close()

	var out struct {
		ID string `json:"id"`
	}

	err := DoJSON(t.Context(), NewHTTPClient(time.Second), "test", Request{
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer token"},
		Body:    map[string]string{"text": "hello"},
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "msg-1", out.ID)
}

func TestDoJSON_ClassifiesStatus(t *testing.T) {
	tests := map[int]bool{
		http.StatusBadRequest:          false,
		http.StatusUnauthorized:        false,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
	}

	for code, retriable := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
		}))

		err := DoJSON(t.Context(), NewHTTPClient(time.Second), "test", Request{URL: server.URL}, nil)
		server.Close()

		require.Error(t, err)
		assert.Equal(t, retriable, execerr.IsRetriable(err), code)
	}
}

func TestDoJSON_NetworkErrorIsRetriable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	err := DoJSON(t.Context(), NewHTTPClient(time.Second), "test", Request{URL: url}, nil)
	require.Error(t, err)
	assert.True(t, execerr.IsRetriable(err))
	assert.Equal(t, execerr.KindTransport, execerr.KindOf(err))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "héé", Truncate("hééllo", 3))
}
