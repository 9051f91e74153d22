package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rentfold/esign/pkg/envelope"
)

// jsonRequest performs one authenticated JSON round trip and classifies
// failures: transport faults and 5xx/429 are retryable, vendor rejections and
// malformed bodies are permanent.
func jsonRequest(ctx context.Context, client *http.Client, p envelope.Provider, op, method, url, apiKey string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return permanentErr(p, op, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return permanentErr(p, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return retryableErr(p, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(p, op, resp.StatusCode); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return permanentErr(p, op, fmt.Errorf("malformed response: %w", err))
	}
	return nil
}

func rawRequest(ctx context.Context, client *http.Client, p envelope.Provider, op, url, apiKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, permanentErr(p, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, retryableErr(p, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(p, op, resp.StatusCode); err != nil {
		return nil, err
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryableErr(p, op, err)
	}
	return b, nil
}

func classifyStatus(p envelope.Provider, op string, code int) error {
	if code >= 500 || code == http.StatusTooManyRequests {
		return retryableErr(p, op, fmt.Errorf("vendor returned %d", code))
	}
	if code < 200 || code > 299 {
		return permanentErr(p, op, fmt.Errorf("vendor returned %d", code))
	}
	return nil
}
