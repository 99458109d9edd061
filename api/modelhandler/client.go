package modelhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruteri/model-registry-backend/api"
)

// Client talks to the model registry HTTP API.
type Client struct {
	// BaseURL is the address of the registry server, e.g. http://localhost:8080
	BaseURL string

	// HTTPClient is used for all requests, http.DefaultClient if nil.
	HTTPClient *http.Client
}

// NewClient returns a Client for the registry at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/")}
}

// Health returns the health message of the registry.
func (c *Client) Health(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/", nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read health response: %w", err)
	}
	return string(body), nil
}

// CreateModel registers a new model record.
func (c *Client) CreateModel(ctx context.Context, name, version string) (*api.ModelResponse, error) {
	body, err := json.Marshal(api.CreateModelRequest{Name: name, Version: version})
	if err != nil {
		return nil, err
	}

	var model api.ModelResponse
	if err := c.doJSON(ctx, http.MethodPost, "/models", bytes.NewReader(body), "application/json", &model); err != nil {
		return nil, err
	}
	return &model, nil
}

// ListModels returns every record known to the registry.
func (c *Client) ListModels(ctx context.Context) ([]api.ModelResponse, error) {
	var models []api.ModelResponse
	if err := c.doJSON(ctx, http.MethodGet, "/models", nil, "", &models); err != nil {
		return nil, err
	}
	return models, nil
}

// GetModel returns one record.
func (c *Client) GetModel(ctx context.Context, id string) (*api.ModelResponse, error) {
	var model api.ModelResponse
	if err := c.doJSON(ctx, http.MethodGet, modelPath(id), nil, "", &model); err != nil {
		return nil, err
	}
	return &model, nil
}

// DeleteModel removes a record.
func (c *Client) DeleteModel(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, modelPath(id), nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// UploadModel streams localPath to the registry as the artifact of id.
func (c *Client) UploadModel(ctx context.Context, id string, localPath string) (*api.UploadResponse, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("could not open artifact: %w", err)
	}
	defer f.Close()

	return c.UploadModelFrom(ctx, id, filepath.Base(localPath), f)
}

// UploadModelFrom streams r to the registry as the artifact of id.
func (c *Client) UploadModelFrom(ctx context.Context, id string, filename string, r io.Reader) (*api.UploadResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile(UploadFormField, filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	var upload api.UploadResponse
	err := c.doJSON(ctx, http.MethodPost, modelPath(id)+"/upload", pr, mw.FormDataContentType(), &upload)
	// Unblocks the writer goroutine if the request ended before the body was consumed.
	pr.Close()
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// DownloadArtifact copies the stored artifact of id into w.
func (c *Client) DownloadArtifact(ctx context.Context, id string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, modelPath(id)+"/artifact", nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("could not read artifact: %w", err)
	}
	return n, nil
}

// Activate moves an INACTIVE record to ACTIVE.
func (c *Client) Activate(ctx context.Context, id string) (*api.ModelResponse, error) {
	return c.lifecycle(ctx, id, "activate")
}

// Deactivate moves an ACTIVE record to INACTIVE.
func (c *Client) Deactivate(ctx context.Context, id string) (*api.ModelResponse, error) {
	return c.lifecycle(ctx, id, "deactivate")
}

// Verify checks the artifact of an ACTIVE record.
func (c *Client) Verify(ctx context.Context, id string) (*api.ModelResponse, error) {
	return c.lifecycle(ctx, id, "verify")
}

func (c *Client) lifecycle(ctx context.Context, id, op string) (*api.ModelResponse, error) {
	var model api.ModelResponse
	if err := c.doJSON(ctx, http.MethodPost, modelPath(id)+"/"+op, nil, "", &model); err != nil {
		return nil, err
	}
	return &model, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}

// do sends the request and returns the response for 2xx status codes.
// Any other status is converted to an *api.ResponseError.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
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

func modelPath(id string) string {
	return "/models/" + url.PathEscape(id)
}
