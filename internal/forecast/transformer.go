package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TransformerBackend is the batched inference capability of the
// transformer-based foundation time-series model. One call covers every
// item needing a refresh, never one call per item per day.
type TransformerBackend interface {
	PredictBatch(ctx context.Context, series map[string][]float64, horizon int) (map[string][]float64, error)
}

// TransformerClient talks to the model inference service over HTTP.
type TransformerClient struct {
	baseURL string
	client  *http.Client
}

// NewTransformerClient builds a client with a per-call timeout. The timeout
// bounds a single inference attempt; retries are the caller's concern.
func NewTransformerClient(baseURL string, timeout time.Duration) *TransformerClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TransformerClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type transformerRequest struct {
	Horizon int                  `json:"horizon"`
	Series  map[string][]float64 `json:"series"`
}

type transformerResponse struct {
	Predictions map[string][]float64 `json:"predictions"`
}

func (c *TransformerClient) PredictBatch(ctx context.Context, series map[string][]float64, horizon int) (map[string][]float64, error) {
	payload, err := json.Marshal(transformerRequest{Horizon: horizon, Series: series})
	if err != nil {
		return nil, fmt.Errorf("encode inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/forecast", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference service returned status %d", resp.StatusCode)
	}

	var body transformerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}
	if body.Predictions == nil {
		return nil, fmt.Errorf("inference response missing predictions")
	}
	return body.Predictions, nil
}

var _ TransformerBackend = (*TransformerClient)(nil)
