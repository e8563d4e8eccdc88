// ABOUTME: HTTP client implementation of the Engine interface.
// ABOUTME: Talks to the researcher service's /research endpoint with a long timeout.

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// noAnswerFallback is returned when the engine completes without an answer.
const noAnswerFallback = "無法生成研究結果。"

// HTTPEngine invokes the researcher service over HTTP.
type HTTPEngine struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPEngine creates an engine client for the researcher service at
// baseURL. timeout bounds a single invocation end to end; zero means the
// client's default of ten minutes.
func NewHTTPEngine(baseURL string, timeout time.Duration) *HTTPEngine {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &HTTPEngine{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// invokeRequest is the JSON request body for POST /research.
type invokeRequest struct {
	UserInstructions string         `json:"user_instructions"`
	Config           ResearchConfig `json:"config"`
}

// invokeResponse is the JSON response body from POST /research.
type invokeResponse struct {
	FinalAnswer string `json:"final_answer"`
	Error       string `json:"error,omitempty"`
}

// Invoke runs the query through the researcher service and returns the
// final answer text. An empty answer maps to a fixed fallback message.
func (e *HTTPEngine) Invoke(ctx context.Context, query string, cfg ResearchConfig) (string, error) {
	body, err := json.Marshal(invokeRequest{UserInstructions: query, Config: cfg})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/research", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("invoking engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("engine returned status %d: %s", resp.StatusCode, string(detail))
	}

	var decoded invokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding engine response: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("engine error: %s", decoded.Error)
	}
	if decoded.FinalAnswer == "" {
		return noAnswerFallback, nil
	}
	return decoded.FinalAnswer, nil
}
