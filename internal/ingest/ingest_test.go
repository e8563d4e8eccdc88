// ABOUTME: Tests for the ingestion service client.
// ABOUTME: Covers wire shape, success/rejection flags, and transport failures.

package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProcessor_Process(t *testing.T) {
	var gotReq processRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ingest", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(processResponse{OK: true})
	}))
	defer srv.Close()

	p := NewHTTPProcessor(srv.URL)
	ok, err := p.Process(context.Background(), "msg-123", "file")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "msg-123", gotReq.ContentID)
	assert.Equal(t, "file", gotReq.Kind)
}

func TestHTTPProcessor_Process_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(processResponse{OK: false})
	}))
	defer srv.Close()

	p := NewHTTPProcessor(srv.URL)
	ok, err := p.Process(context.Background(), "msg-123", "image")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHTTPProcessor_Process_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProcessor(srv.URL)
	_, err := p.Process(context.Background(), "msg-123", "file")
	assert.ErrorContains(t, err, "502")
}
