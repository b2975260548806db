package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Quorum-Labs/treasury_layer/pkg/logger"
)

// HTTPExecutor submits approved payloads to an external broadcast endpoint.
// The endpoint answers with a transaction reference once the submission is
// accepted.
type HTTPExecutor struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

// NewHTTPExecutor constructs an executor using the provided endpoint.
func NewHTTPExecutor(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPExecutor, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("executor endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse executor endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("http-executor")
	}
	return &HTTPExecutor{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		log:      log,
	}, nil
}

func (e *HTTPExecutor) Execute(ctx context.Context, payload string) (string, error) {
	body, err := json.Marshal(map[string]string{"payload": payload})
	if err != nil {
		return "", fmt.Errorf("encode executor request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build executor request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("executor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("executor status %d", resp.StatusCode)
	}

	var result struct {
		Reference string `json:"reference"`
		Error     string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode executor response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("executor rejected payload: %s", result.Error)
	}
	if result.Reference == "" {
		return "", fmt.Errorf("executor returned no reference")
	}
	return result.Reference, nil
}
