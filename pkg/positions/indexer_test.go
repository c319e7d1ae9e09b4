package positions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphClientQueryDecodesData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req graphRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "positions")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"balance":"123"}}`))
	}))
	defer server.Close()

	client := NewGraphClient(server.URL, "secret")
	var out struct {
		Balance string `json:"balance"`
	}
	err := client.Query(context.Background(), "{ positions { balance } }", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "123", out.Balance)
}

func TestGraphClientQueryPropagatesGraphQLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":[{"message":"subgraph unavailable"}]}`))
	}))
	defer server.Close()

	client := NewGraphClient(server.URL, "")
	err := client.Query(context.Background(), "{ positions { balance } }", nil, nil)
	assert.ErrorContains(t, err, "subgraph unavailable")
}

func TestGraphClientQueryPropagatesHTTPStatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewGraphClient(server.URL, "")
	err := client.Query(context.Background(), "{ positions { balance } }", nil, nil)
	assert.Error(t, err)
}

func TestGraphClientOmitsAuthHeaderWithoutAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":null}`))
	}))
	defer server.Close()

	client := NewGraphClient(server.URL, "")
	err := client.Query(context.Background(), "{ positions { balance } }", nil, nil)
	assert.NoError(t, err)
}
