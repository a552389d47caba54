package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPInvoker forwards prompts to an HTTP endpoint that speaks the reply
// contract: POST {"prompt": "..."} in, the reply JSON out. Which model sits
// behind the endpoint is the endpoint's business.
type HTTPInvoker struct {
	Endpoint string
	Client   *http.Client
}

func (h *HTTPInvoker) Invoke(ctx context.Context, prompt string) (*Reply, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, fmt.Errorf("marshal prompt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, ClassifyError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyError(fmt.Errorf("model endpoint returned %d: %s", resp.StatusCode, raw))
	}

	return ParseReply(raw)
}
