// Package remote carries processing calls over HTTP: a Client that
// satisfies dispatcher.Processor and a Handler that serves any Processor.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aluiziolira/go-ebook-batch/models"
)

// ErrRemoteStatus is wrapped by Client errors for non-2xx answers.
var ErrRemoteStatus = errors.New("remote: unexpected status")

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// Request is the body of POST /process.
type Request struct {
	Books []models.BookInput `json:"books"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client calls a remote processing endpoint. Each Process call is a single
// attempt; cancellation is left to the caller's context.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewClient returns a client for the service at baseURL.
func NewClient(baseURL, userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
	}
}

// Process posts books to {baseURL}/process and decodes the combined result.
func (c *Client) Process(ctx context.Context, books []models.BookInput) (*models.ProcessingResult, error) {
	if books == nil {
		books = []models.BookInput{}
	}

	payload, err := json.Marshal(Request{Books: books})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call processing service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure errorResponse
		if json.Unmarshal(body, &failure) == nil && failure.Error != "" {
			return nil, fmt.Errorf("%w %d: %s", ErrRemoteStatus, resp.StatusCode, failure.Error)
		}
		return nil, fmt.Errorf("%w %d", ErrRemoteStatus, resp.StatusCode)
	}

	var result models.ProcessingResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
