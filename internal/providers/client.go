package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sentinel-ops/lookup-broker/internal/models"
)

// ClientConfig configures the HTTP side of an adapter
type ClientConfig struct {
	Endpoint         string
	Timeout          time.Duration
	MaxResponseBytes int64
}

// envelope is the response shape shared by the verification providers
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// jsonClient posts JSON to a single provider endpoint. The credential is
// sent in a header, never in the URL.
type jsonClient struct {
	endpoint   string
	keyHeader  string
	maxBytes   int64
	httpClient *http.Client
}

func newJSONClient(cfg ClientConfig, keyHeader string) *jsonClient {
	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	return &jsonClient{
		endpoint:  cfg.Endpoint,
		keyHeader: keyHeader,
		maxBytes:  maxBytes,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// post sends body and decodes the provider envelope
func (c *jsonClient) post(ctx context.Context, body interface{}, cred Credential) (*envelope, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.keyHeader == "Authorization" {
		httpReq.Header.Set("Authorization", "Bearer "+cred.Secret)
	} else {
		httpReq.Header.Set(c.keyHeader, cred.Secret)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// *url.Error carries the endpoint only; the key lives in a header
		return nil, fmt.Errorf("%w: %w", models.ErrProviderCallFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", models.ErrProviderCallFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: provider returned status %d", models.ErrProviderCallFailed, resp.StatusCode)
	}
	if int64(len(raw)) > c.maxBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", models.ErrMalformedProviderData, c.maxBytes)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrMalformedProviderData, err)
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		// providers that answer without an envelope return the record itself
		env.Data = json.RawMessage(raw)
	}
	return &env, nil
}

// failed reports whether the provider explicitly rejected the lookup
func (e *envelope) failed() bool {
	return e.Success != nil && !*e.Success
}

// field decodes a single string field out of the data payload
func (e *envelope) field(names ...string) string {
	var m map[string]interface{}
	if err := json.Unmarshal(e.Data, &m); err != nil {
		return ""
	}
	for _, n := range names {
		if v, ok := m[n].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

var errEmptyInput = errors.New("input is empty after normalization")
