// ABOUTME: Boundary to the file ingestion collaborator for non-text messages.
// ABOUTME: Defines the Processor interface and an HTTP client for the ingestion service.

package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// MaxFileSize is the largest content the ingestion path accepts.
const MaxFileSize = 10 * 1024 * 1024

// SupportedFormats lists the file extensions the knowledge store ingests.
var SupportedFormats = []string{"pdf", "txt", "docx", "jpg", "png"}

// Processor hands platform content to the knowledge store. The boolean
// result is all the detail the boundary provides: true means ingested,
// false means rejected. Errors are transport-level failures.
type Processor interface {
	Process(ctx context.Context, contentID, kind string) (bool, error)
}

// HTTPProcessor calls the ingestion service over HTTP.
type HTTPProcessor struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPProcessor creates an ingestion client for the service at baseURL.
func NewHTTPProcessor(baseURL string) *HTTPProcessor {
	return &HTTPProcessor{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// processRequest is the JSON request body for POST /ingest.
type processRequest struct {
	ContentID string `json:"content_id"`
	Kind      string `json:"kind"`
}

// processResponse is the JSON response body from POST /ingest.
type processResponse struct {
	OK bool `json:"ok"`
}

// Process submits the content reference for ingestion and returns the
// service's success flag.
func (p *HTTPProcessor) Process(ctx context.Context, contentID, kind string) (bool, error) {
	body, err := json.Marshal(processRequest{ContentID: contentID, Kind: kind})
	if err != nil {
		return false, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/ingest", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("calling ingestion service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("ingestion service returned status %d", resp.StatusCode)
	}

	var decoded processResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return false, fmt.Errorf("decoding ingestion response: %w", err)
	}
	return decoded.OK, nil
}
