package servinghandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ruteri/model-registry-backend/api"
)

// Client talks to the serving process.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a Client for the serving process at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/")}
}

// Health returns the health message of the serving process.
func (c *Client) Health(ctx context.Context) (string, error) {
	return c.text(ctx, http.MethodGet, "/")
}

// LoadModel asks the serving process to load model id.
func (c *Client) LoadModel(ctx context.Context, id string) (string, error) {
	return c.text(ctx, http.MethodPost, "/models/"+url.PathEscape(id))
}

// UnloadModel drops the loaded model.
func (c *Client) UnloadModel(ctx context.Context, id string) (string, error) {
	return c.text(ctx, http.MethodDelete, "/models/"+url.PathEscape(id))
}

// LoadedModel describes the model held by the serving process.
func (c *Client) LoadedModel(ctx context.Context) (*api.LoadedModelInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed api.LoadedModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("could not parse models response: %w", err)
	}
	return &parsed.Model, nil
}

// Predict classifies features with the loaded model.
func (c *Client) Predict(ctx context.Context, features []float32) (*api.PredictionResponse, error) {
	body, err := json.Marshal(api.PredictionRequest{Features: features})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var prediction api.PredictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("could not parse prediction response: %w", err)
	}
	return &prediction, nil
}

func (c *Client) text(ctx context.Context, method, path string) (string, error) {
	resp, err := c.do(ctx, method, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read response: %w", err)
	}
	return string(body), nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not request %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, api.ReadResponseError(resp)
	}
	return resp, nil
}
