// Package webhook provides the call_webhook action, which also backs the
// send_email and send_sms actions: all three deliver a payload to an
// external HTTP service and surface any remote failure as a step failure.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/convflow/convflow/pkg/actions"
)

const defaultTimeout = 30 * time.Second

var errMissingURL = errors.New("webhook action requires a url param")

type Action struct {
	method  string
	url     string
	headers map[string]string
	body    string
	client  *http.Client
}

func NewAction(params map[string]any) (*Action, error) {
	url, _ := params["url"].(string)
	if url == "" {
		return nil, errMissingURL
	}

	method, _ := params["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	body, _ := params["body"].(string)
	if body == "" {
		if payload, exists := params["payload"]; exists {
			encoded, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("failed to encode payload: %w", err)
			}

			body = string(encoded)
		}
	}

	headers := make(map[string]string)

	if headersParam, exists := params["headers"].(map[string]any); exists {
		for key, value := range headersParam {
			if str, ok := value.(string); ok {
				headers[key] = str
			}
		}
	}

	return &Action{
		method:  strings.ToUpper(method),
		url:     url,
		headers: headers,
		body:    body,
		client:  &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (a *Action) Execute(ctx context.Context, input actions.Input, logger *slog.Logger) (map[string]any, error) {
	logger.InfoContext(ctx, "Delivering webhook", "method", a.method, "url", a.url)

	var bodyReader io.Reader
	if a.body != "" {
		bodyReader = strings.NewReader(a.body)
	}

	req, err := http.NewRequestWithContext(ctx, a.method, a.url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	if a.body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range a.headers {
		req.Header.Set(key, value)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("remote service returned status %d", resp.StatusCode)
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err == nil {
		result["body"] = decoded
	} else {
		result["body"] = string(payload)
	}

	return result, nil
}
