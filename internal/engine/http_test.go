// ABOUTME: Tests for the HTTP engine client.
// ABOUTME: Covers the request wire shape, answer extraction, errors, and fallback text.

package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/line-gateway/internal/session"
)

func TestHTTPEngine_Invoke(t *testing.T) {
	var gotReq invokeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/research", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(invokeResponse{FinalAnswer: "the answer"})
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL, time.Minute)
	cfg := ResearchConfig{MaxSearchQueries: 5, EnableWebSearch: true, ReportStructure: "academic", Language: "zh-TW"}

	answer, err := eng.Invoke(context.Background(), "台灣AI發展趨勢", cfg)
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
	assert.Equal(t, "台灣AI發展趨勢", gotReq.UserInstructions)
	assert.Equal(t, cfg, gotReq.Config)
}

func TestHTTPEngine_Invoke_EngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(invokeResponse{Error: "model overloaded"})
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL, time.Minute)
	_, err := eng.Invoke(context.Background(), "q", ResearchConfig{})
	assert.ErrorContains(t, err, "model overloaded")
}

func TestHTTPEngine_Invoke_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL, time.Minute)
	_, err := eng.Invoke(context.Background(), "q", ResearchConfig{})
	assert.ErrorContains(t, err, "500")
}

func TestHTTPEngine_Invoke_EmptyAnswerFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(invokeResponse{})
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL, time.Minute)
	answer, err := eng.Invoke(context.Background(), "q", ResearchConfig{})
	require.NoError(t, err)
	assert.Equal(t, noAnswerFallback, answer)
}

func TestConfigFromUser(t *testing.T) {
	user := session.UserConfig{
		MaxSearchQueries:      7,
		EnableWebSearch:       true,
		PreferredReportFormat: session.ReportFormatConcise,
		Language:              "zh-TW",
		NotificationEnabled:   true,
	}

	cfg := ConfigFromUser(user)
	assert.Equal(t, 7, cfg.MaxSearchQueries)
	assert.True(t, cfg.EnableWebSearch)
	assert.Equal(t, "concise", cfg.ReportStructure)
	assert.Equal(t, "zh-TW", cfg.Language)
}
