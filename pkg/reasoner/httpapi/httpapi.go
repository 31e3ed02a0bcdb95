// Package httpapi implements a Reasoner backed by a JSON inference service.
// Classification posts {"text": ...} to /classify and generation posts
// {"prompt": ...} to /generate; both expect a JSON object back.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cfreitas/attenda/pkg/reasoner"
)

const defaultTimeoutSeconds = 30

// ErrUnexpectedStatus is returned when the inference endpoint answers with a
// non-200 status code.
var ErrUnexpectedStatus = errors.New("unexpected response status from inference endpoint")

// Client talks to a remote inference endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the inference service at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeoutSeconds * time.Second,
		},
	}
}

// Classify posts the text to the /classify endpoint. A label outside the
// known set is reported as chat with the backend's confidence retained.
func (c *Client) Classify(ctx context.Context, text string) (reasoner.Classification, error) {
	var out struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}

	err := c.post(ctx, "/classify", map[string]any{"text": text}, &out)
	if err != nil {
		return reasoner.Classification{}, err
	}

	label := strings.ToLower(strings.TrimSpace(out.Label))
	if !reasoner.ValidLabel(label) {
		label = reasoner.LabelChat
	}

	return reasoner.Classification{Label: label, Confidence: out.Confidence}, nil
}

// Generate posts the prompt to the /generate endpoint and returns its output.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var out struct {
		Output string `json:"output"`
	}

	err := c.post(ctx, "/generate", map[string]any{"prompt": prompt}, &out)
	if err != nil {
		return "", err
	}

	return out.Output, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference endpoint returned status %d: %w", resp.StatusCode, ErrUnexpectedStatus)
	}

	err = json.Unmarshal(respBody, out)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
