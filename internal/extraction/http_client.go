package extraction

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
)

// HTTPExtractor calls an external extraction service over HTTP.
type HTTPExtractor struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPExtractor constructs an HTTP-backed extractor.
func NewHTTPExtractor(baseURL, apiKey string, timeout time.Duration) (*HTTPExtractor, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("extractor base URL is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPExtractor{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type extractRequest struct {
	DocumentID string `json:"documentId"`
	FileName   string `json:"fileName"`
	MimeType   string `json:"mimeType"`
	Text       string `json:"text"`
}

type extractResponse struct {
	DocumentType   string                 `json:"documentType"`
	TypeConfidence float64                `json:"typeConfidence"`
	Fields         map[string]FieldResult `json:"fields"`
	Error          *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Extract posts the document text to the extraction service and classifies
// its failures into the retryable/permanent sentinels.
func (c *HTTPExtractor) Extract(ctx context.Context, input Input) (Result, error) {
	payload, err := json.Marshal(extractRequest{
		DocumentID: input.DocumentID,
		FileName:   input.FileName,
		MimeType:   input.MimeType,
		Text:       input.Text,
	})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read response: %v", ErrServiceUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnsupportedMediaType:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, input.MimeType)
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return Result{}, fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return Result{}, fmt.Errorf("extractor status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed extractResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if parsed.Error != nil {
		return Result{}, fmt.Errorf("extractor error: %s (%s)", parsed.Error.Message, parsed.Error.Code)
	}
	if parsed.Fields == nil {
		return Result{}, fmt.Errorf("%w: response missing fields", ErrMalformedOutput)
	}

	return Result{
		DocumentType:   strings.TrimSpace(parsed.DocumentType),
		TypeConfidence: parsed.TypeConfidence,
		Fields:         parsed.Fields,
	}, nil
}

var _ Extractor = (*HTTPExtractor)(nil)
