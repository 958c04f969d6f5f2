// Package templatestore talks to the external document-templating service
// used by the template-store delivery mode: a template is copied, the copy
// is patched with merge values, exported as PDF, and deleted. The pipeline
// guarantees the delete runs exactly once per created copy no matter how the
// preceding steps fare; the service bills storage quota for orphaned copies.
package templatestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Adapter is the contract the generation pipeline depends on. The HTTP
// client below is the production implementation; tests substitute fakes.
type Adapter interface {
	// CopyTemplate duplicates a stored template and returns the copy id.
	CopyTemplate(ctx context.Context, templateID string) (string, error)
	// ApplyReplacements patches the copy's placeholders with merge values.
	ApplyReplacements(ctx context.Context, tempID string, replacements map[string]string) error
	// ExportPDF renders the patched copy and returns the PDF bytes.
	ExportPDF(ctx context.Context, tempID string) ([]byte, error)
	// DeleteTemp removes the copy. Callers must invoke this exactly once
	// per id returned by CopyTemplate, on every exit path.
	DeleteTemp(ctx context.Context, tempID string) error
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	blob, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return blob, fmt.Errorf("%s %s failed status=%d body=%s", method, path, resp.StatusCode, string(blob))
	}
	return blob, nil
}

func (c *Client) CopyTemplate(ctx context.Context, templateID string) (string, error) {
	blob, err := c.do(ctx, http.MethodPost, "/v1/templates/"+templateID+"/copies", []byte("{}"))
	if err != nil {
		return "", err
	}
	var out struct {
		CopyID string `json:"copy_id"`
	}
	if err := json.Unmarshal(blob, &out); err != nil {
		return "", fmt.Errorf("decode copy response: %w", err)
	}
	if out.CopyID == "" {
		return "", fmt.Errorf("copy response missing copy_id")
	}
	return out.CopyID, nil
}

func (c *Client) ApplyReplacements(ctx context.Context, tempID string, replacements map[string]string) error {
	body, _ := json.Marshal(map[string]any{"replacements": replacements})
	_, err := c.do(ctx, http.MethodPost, "/v1/copies/"+tempID+"/replacements", body)
	return err
}

func (c *Client) ExportPDF(ctx context.Context, tempID string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/v1/copies/"+tempID+"/export?format=pdf", nil)
}

func (c *Client) DeleteTemp(ctx context.Context, tempID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/copies/"+tempID, nil)
	return err
}

var _ Adapter = (*Client)(nil)
